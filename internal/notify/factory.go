package notify

import (
	"github.com/labstack/echo/v4"

	ctrl "github.com/corvusHold/notify/internal/notify/controller"
	svc "github.com/corvusHold/notify/internal/notify/service"
	rl "github.com/corvusHold/notify/internal/platform/ratelimit"
	sdomain "github.com/corvusHold/notify/internal/settings/domain"
)

// Register mounts the event emission endpoints over d. Emission is rate
// limited per tenant against store, with overrides read from settings.
func Register(e *echo.Echo, d *svc.Dispatcher, jwt echo.MiddlewareFunc, store rl.Store, settings sdomain.Service) {
	ctrl.New(d).WithJWT(jwt).WithRateLimit(store).WithSettings(settings).Register(e)
}
