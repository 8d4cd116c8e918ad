package middleware

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"lexdesk/internal/common"

	"github.com/labstack/echo/v4"
)

const (
	VersionStatusActive     = "active"
	VersionStatusDeprecated = "deprecated"
)

// APIVersion describes one published version of the billing API
type APIVersion struct {
	Version    string     `json:"version"`
	Status     string     `json:"status"`
	SunsetDate *time.Time `json:"sunset_date,omitempty"`
	Message    string     `json:"message,omitempty"`
}

// VersionMiddleware tags responses with API version metadata
type VersionMiddleware struct {
	supportedVersions map[string]APIVersion
	defaultVersion    string
}

func NewVersionMiddleware() *VersionMiddleware {
	return &VersionMiddleware{
		supportedVersions: map[string]APIVersion{
			"v1": {
				Version: "v1",
				Status:  VersionStatusActive,
				Message: "Current stable billing API",
			},
		},
		defaultVersion: "v1",
	}
}

// VersionHeader adds version information to response headers
func (vm *VersionMiddleware) VersionHeader(version string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			h.Set("X-API-Version", version)

			if ver, exists := vm.supportedVersions[version]; exists {
				if ver.Status == VersionStatusDeprecated && ver.SunsetDate != nil {
					h.Set("X-API-Deprecated", "true")
					h.Set("X-API-Sunset", ver.SunsetDate.Format(time.RFC3339))
					h.Set("Warning", fmt.Sprintf("299 lexdesk %q", "This API version is deprecated and will be removed on "+ver.SunsetDate.Format("2006-01-02")))
				}
				if ver.Message != "" {
					h.Set("X-API-Message", ver.Message)
				}
			}

			return next(c)
		}
	}
}

// VersionRoute creates a version-specific route group
func (vm *VersionMiddleware) VersionRoute(e *echo.Echo, version string) *echo.Group {
	group := e.Group("/" + version)
	group.Use(vm.VersionHeader(version))
	return group
}

// APIVersionResolver rejects unknown /vN prefixes and records the resolved version on the context
func (vm *VersionMiddleware) APIVersionResolver() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			version := extractVersionFromPath(c.Request().URL.Path)
			if version == "" {
				c.Set("api_version", vm.defaultVersion)
				return next(c)
			}

			if _, supported := vm.supportedVersions[version]; !supported {
				return c.JSON(http.StatusNotFound, common.CreateErrorResponse("UNSUPPORTED_VERSION", "Unsupported API version", map[string]string{
					"supported_versions": strings.Join(vm.SupportedVersions(), ", "),
				}))
			}
			c.Set("api_version", version)
			return next(c)
		}
	}
}

// Deprecate marks a version as deprecated from now until sunset
func (vm *VersionMiddleware) Deprecate(version, message string, sunset time.Time) {
	ver := vm.supportedVersions[version]
	ver.Version = version
	ver.Status = VersionStatusDeprecated
	ver.SunsetDate = &sunset
	if message != "" {
		ver.Message = message
	}
	vm.supportedVersions[version] = ver
}

// SupportedVersions lists the versions that still accept traffic
func (vm *VersionMiddleware) SupportedVersions() []string {
	var versions []string
	for version, info := range vm.supportedVersions {
		if info.Status == VersionStatusActive || info.Status == VersionStatusDeprecated {
			versions = append(versions, version)
		}
	}
	sort.Strings(versions)
	return versions
}

// extractVersionFromPath returns "vN" for paths like /v1/... and "" otherwise
func extractVersionFromPath(path string) string {
	if !strings.HasPrefix(path, "/v") {
		return ""
	}
	segment := strings.SplitN(strings.TrimPrefix(path, "/"), "/", 2)[0]
	if len(segment) < 2 {
		return ""
	}
	for _, r := range segment[1:] {
		if r < '0' || r > '9' {
			return ""
		}
	}
	if segment[1] == '0' {
		return ""
	}
	return segment
}
