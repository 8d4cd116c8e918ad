// Package docs registers the OpenAPI description served at /swagger/*.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "paths": {
        "/health": {"get": {"tags": ["health"], "summary": "Dependency health", "responses": {"200": {"description": "healthy"}, "206": {"description": "degraded"}}}},
        "/health/ready": {"get": {"tags": ["health"], "summary": "Readiness probe", "responses": {"200": {"description": "ready"}, "503": {"description": "not ready"}}}},
        "/v1/plans": {"get": {"tags": ["checkout"], "summary": "List plans with prices in paise", "responses": {"200": {"description": "plans"}}}},
        "/v1/checkout/orders": {"post": {"tags": ["checkout"], "summary": "Create a Razorpay order for a plan", "security": [{"BearerAuth": []}], "responses": {"201": {"description": "order"}, "404": {"description": "unknown plan"}, "502": {"description": "gateway error"}}}},
        "/v1/checkout/verify": {"post": {"tags": ["checkout"], "summary": "Verify checkout signature, record payment and activate or renew", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "payment and subscription"}, "400": {"description": "plan_id does not match the order"}, "401": {"description": "invalid signature"}, "409": {"description": "order already recorded or created for another user"}}}},
        "/v1/subscriptions/me": {"get": {"tags": ["subscriptions"], "summary": "Caller's subscription with derived fields", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "subscription"}, "404": {"description": "never subscribed"}}}},
        "/v1/subscriptions/trial": {"post": {"tags": ["subscriptions"], "summary": "Start a free trial", "security": [{"BearerAuth": []}], "responses": {"201": {"description": "trial"}, "409": {"description": "already subscribed"}}}},
        "/v1/subscriptions/cancel": {"post": {"tags": ["subscriptions"], "summary": "Cancel the caller's subscription", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "cancelled"}, "404": {"description": "no subscription"}}}},
        "/v1/subscriptions/auto-renew": {"put": {"tags": ["subscriptions"], "summary": "Toggle renewal reminders", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "updated"}}}},
        "/v1/payments": {"get": {"tags": ["payments"], "summary": "Caller's payment history", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "payments"}}}},
        "/v1/payments/{paymentId}/receipt": {"get": {"tags": ["payments"], "summary": "Presigned receipt URL", "security": [{"BearerAuth": []}], "parameters": [{"name": "paymentId", "in": "path", "required": true, "type": "string"}], "responses": {"200": {"description": "url"}, "404": {"description": "unknown payment"}}}},
        "/v1/admin/stats": {"get": {"tags": ["admin"], "summary": "Active subscriptions and revenue", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "stats"}}}},
        "/v1/admin/subscriptions": {"get": {"tags": ["admin"], "summary": "List subscriptions", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "subscriptions"}}}, "post": {"tags": ["admin"], "summary": "Grant a subscription outside checkout", "security": [{"BearerAuth": []}], "responses": {"201": {"description": "granted"}, "409": {"description": "user already has an active subscription"}}}},
        "/v1/admin/subscriptions/expiring": {"get": {"tags": ["admin"], "summary": "Active subscriptions ending within N days", "security": [{"BearerAuth": []}], "parameters": [{"name": "days", "in": "query", "type": "integer"}], "responses": {"200": {"description": "subscriptions"}}}},
        "/v1/admin/subscriptions/{userId}": {"get": {"tags": ["admin"], "summary": "Subscription of a user", "security": [{"BearerAuth": []}], "parameters": [{"name": "userId", "in": "path", "required": true, "type": "string"}], "responses": {"200": {"description": "subscription"}, "404": {"description": "not found"}}}},
        "/v1/admin/payments/{paymentId}/refund": {"post": {"tags": ["admin"], "summary": "Refund a payment through the gateway", "security": [{"BearerAuth": []}], "parameters": [{"name": "paymentId", "in": "path", "required": true, "type": "string"}], "responses": {"200": {"description": "refunded"}, "422": {"description": "payment not refundable"}}}},
        "/v1/admin/jobs": {"get": {"tags": ["admin"], "summary": "Scheduled job status", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "jobs"}}}},
        "/v1/admin/jobs/{name}/run": {"post": {"tags": ["admin"], "summary": "Trigger a job now", "security": [{"BearerAuth": []}], "parameters": [{"name": "name", "in": "path", "required": true, "type": "string"}], "responses": {"202": {"description": "triggered"}, "404": {"description": "unknown job"}}}},
        "/v1/webhooks/razorpay": {"post": {"tags": ["webhooks"], "summary": "Razorpay event receiver", "parameters": [{"name": "X-Razorpay-Signature", "in": "header", "required": true, "type": "string"}], "responses": {"200": {"description": "processed or duplicate"}, "401": {"description": "invalid signature"}}}}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "lexdesk billing API",
	Description:      "Subscriptions and Razorpay payments for the student, advocate and clerk portals.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
