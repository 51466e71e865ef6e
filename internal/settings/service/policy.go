package service

import (
	"time"

	"github.com/labstack/echo/v4"

	imw "github.com/corvusHold/notify/internal/identity/middleware"
	rl "github.com/corvusHold/notify/internal/platform/ratelimit"
	sdomain "github.com/corvusHold/notify/internal/settings/domain"
)

// TenantPolicy builds a rate-limit policy keyed by the caller's tenant whose
// limit and window can be overridden per tenant through limitKey/windowKey.
func TenantPolicy(s sdomain.Service, name, limitKey, windowKey string, defLimit int, defWindow time.Duration) rl.Policy {
	tenantOf := func(c echo.Context) *string {
		if k := imw.TenantKey(c); k != "" {
			return &k
		}
		return nil
	}
	return rl.Policy{
		Name:   name,
		Window: defWindow,
		Limit:  defLimit,
		Key:    rl.KeyTenantOrIP(name, imw.TenantKey),
		WindowFunc: func(c echo.Context) time.Duration {
			if d, err := s.GetDuration(c.Request().Context(), windowKey, tenantOf(c), defWindow); err == nil {
				return d
			}
			return defWindow
		},
		LimitFunc: func(c echo.Context) int {
			if v, err := s.GetInt(c.Request().Context(), limitKey, tenantOf(c), defLimit); err == nil {
				return v
			}
			return defLimit
		},
	}
}
