package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/corvusHold/notify/internal/config"
	"github.com/corvusHold/notify/internal/identity/domain"
	"github.com/corvusHold/notify/internal/identity/service"
)

const ctxIdentityKey = "notify_identity"

// NewJWT returns an Echo middleware that validates access JWTs, stores the
// identity in the echo context and attaches an established session to the
// request context.
func NewJWT(cfg config.Config) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")

			// EventSource clients cannot set headers; accept a cookie or query token.
			if auth == "" {
				if cookie, err := c.Cookie("notify_access_token"); err == nil && cookie != nil && cookie.Value != "" {
					auth = "Bearer " + cookie.Value
				} else if q := c.QueryParam("access_token"); q != "" {
					auth = "Bearer " + q
				}
			}

			if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "missing bearer token"})
			}
			id, err := service.ParseToken(cfg.JWTSigningKey, strings.TrimPrefix(auth, "Bearer "))
			if err != nil {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid token"})
			}
			if !domain.ValidID(id.UserID) || !id.Tenant.Valid() {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid subject or tenant"})
			}

			c.Set(ctxIdentityKey, id)
			req := c.Request()
			c.SetRequest(req.WithContext(service.WithSession(req.Context(), service.Established(id))))
			return next(c)
		}
	}
}

// Identity returns the authenticated identity from context.
func Identity(c echo.Context) (domain.Identity, bool) {
	id, ok := c.Get(ctxIdentityKey).(domain.Identity)
	return id, ok
}

// TenantKey returns the authenticated tenant's scope key, or "".
func TenantKey(c echo.Context) string {
	if id, ok := Identity(c); ok {
		return id.Tenant.Key()
	}
	return ""
}

// RequireRole rejects callers whose role is not in roles.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, ok := Identity(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			}
			for _, r := range roles {
				if id.Role == r {
					return next(c)
				}
			}
			return c.JSON(http.StatusForbidden, map[string]string{"error": "forbidden"})
		}
	}
}
