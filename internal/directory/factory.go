package directory

import (
	"github.com/labstack/echo/v4"

	ctrl "github.com/corvusHold/notify/internal/directory/controller"
	domain "github.com/corvusHold/notify/internal/directory/domain"
	svc "github.com/corvusHold/notify/internal/directory/service"
)

// Register wires the directory module over repo, registers its HTTP routes and
// returns the service so the notify module can resolve audiences with it.
func Register(e *echo.Echo, repo domain.Repository, jwt echo.MiddlewareFunc) domain.Service {
	s := svc.New(repo)
	c := ctrl.New(s).WithJWT(jwt)
	c.Register(e)
	return s
}
