package middleware

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"lexdesk/internal/common"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
)

const tokenContextKey = "jwt_token"

// JWTCustomClaims is the token payload issued by the identity service.
// The user id travels in the standard "sub" claim.
type JWTCustomClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// UserID parses the subject claim.
func (c *JWTCustomClaims) UserID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}

type JWTConfig struct {
	// Secret verifies HS256 tokens. Ignored when JWKSURL is set.
	Secret  string
	JWKSURL string
}

// JWTAuth validates bearer tokens and stores the caller's id and role on the
// request context. Close must be called on shutdown when a JWKS is in use.
type JWTAuth struct {
	jwks   *keyfunc.JWKS
	config echojwt.Config
}

func NewJWTAuth(cfg JWTConfig) (*JWTAuth, error) {
	auth := &JWTAuth{
		config: echojwt.Config{
			ContextKey: tokenContextKey,
			NewClaimsFunc: func(c echo.Context) jwt.Claims {
				return new(JWTCustomClaims)
			},
			ErrorHandler: func(c echo.Context, err error) error {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or missing token")
			},
		},
	}

	switch {
	case cfg.JWKSURL != "":
		jwks, err := keyfunc.Get(cfg.JWKSURL, keyfunc.Options{
			RefreshInterval:   time.Hour,
			RefreshRateLimit:  5 * time.Minute,
			RefreshTimeout:    10 * time.Second,
			RefreshUnknownKID: true,
			RefreshErrorHandler: func(err error) {
				log.Printf("WARN: JWKS refresh failed: %v", err)
			},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to load JWKS from %s: %w", cfg.JWKSURL, err)
		}
		auth.jwks = jwks
		auth.config.KeyFunc = jwks.Keyfunc
	case cfg.Secret != "":
		auth.config.SigningKey = []byte(cfg.Secret)
		auth.config.SigningMethod = echojwt.AlgorithmHS256
	default:
		return nil, fmt.Errorf("either a JWT secret or a JWKS URL is required")
	}

	return auth, nil
}

// Middleware verifies the token then resolves the identity carried in it.
func (a *JWTAuth) Middleware() echo.MiddlewareFunc {
	verify := echojwt.WithConfig(a.config)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return verify(identity(next))
	}
}

func (a *JWTAuth) Close() {
	if a.jwks != nil {
		a.jwks.EndBackground()
	}
}

func identity(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token, ok := c.Get(tokenContextKey).(*jwt.Token)
		if !ok {
			return echo.NewHTTPError(http.StatusUnauthorized, "Missing token")
		}

		claims, ok := token.Claims.(*JWTCustomClaims)
		if !ok {
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid claims")
		}

		userID, err := claims.UserID()
		if err != nil || userID == uuid.Nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid user_id format")
		}

		ctx := common.WithIdentity(c.Request().Context(), userID, claims.Role)
		c.SetRequest(c.Request().WithContext(ctx))

		return next(c)
	}
}
