package settings

import (
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	rl "github.com/corvusHold/notify/internal/platform/ratelimit"
	ctrl "github.com/corvusHold/notify/internal/settings/controller"
	sdomain "github.com/corvusHold/notify/internal/settings/domain"
	svc "github.com/corvusHold/notify/internal/settings/service"
)

// Register wires the settings module over r, registers HTTP routes and returns
// the service so other modules can read tenant overrides.
func Register(e *echo.Echo, r sdomain.Repository, jwt echo.MiddlewareFunc, store rl.Store, log zerolog.Logger) *svc.Service {
	s := svc.New(r)
	c := ctrl.New(r, s)
	c.WithJWT(jwt).WithRateLimit(store).WithLogger(log)
	c.Register(e)
	return s
}
