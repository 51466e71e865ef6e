package feed

import (
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	ctrl "github.com/corvusHold/notify/internal/feed/controller"
	fdomain "github.com/corvusHold/notify/internal/feed/domain"
	fsvc "github.com/corvusHold/notify/internal/feed/service"
	rdomain "github.com/corvusHold/notify/internal/reporting/domain"
	sdomain "github.com/corvusHold/notify/internal/settings/domain"
)

// Register wires the recipient feed endpoints over repo. Streams get their own
// Store each, reporting subscription failures to reporter, and end when the
// server shuts down.
func Register(e *echo.Echo, repo fdomain.Repository, limit int, jwt echo.MiddlewareFunc, settings sdomain.Service, reporter rdomain.Reporter, log zerolog.Logger) *ctrl.Controller {
	s := fsvc.New(repo, limit)
	s.SetLogger(log)
	newStore := func() *fsvc.Store {
		st := fsvc.NewStore(repo, limit)
		st.SetLogger(log)
		st.SetReporter(reporter)
		return st
	}
	c := ctrl.New(s, newStore).WithJWT(jwt).WithSettings(settings)
	c.Register(e)
	e.Server.RegisterOnShutdown(c.Shutdown)
	return c
}
