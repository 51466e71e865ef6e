package controller

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	idomain "github.com/corvusHold/notify/internal/identity/domain"
	imw "github.com/corvusHold/notify/internal/identity/middleware"
	rl "github.com/corvusHold/notify/internal/platform/ratelimit"
	sdomain "github.com/corvusHold/notify/internal/settings/domain"
	ssvc "github.com/corvusHold/notify/internal/settings/service"
)

// Controller exposes tenant-scoped settings management endpoints.
// Only a whitelist of notify tuning keys is accepted.
type Controller struct {
	repo    sdomain.Repository
	service sdomain.Service
	jwtMW   echo.MiddlewareFunc
	rlStore rl.Store
	log     zerolog.Logger
}

func New(repo sdomain.Repository, service sdomain.Service) *Controller {
	return &Controller{repo: repo, service: service, log: zerolog.Nop()}
}

// WithJWT injects the identity middleware for these endpoints.
func (h *Controller) WithJWT(mw echo.MiddlewareFunc) *Controller { h.jwtMW = mw; return h }

// WithRateLimit injects a shared Store for distributed rate limiting.
func (h *Controller) WithRateLimit(store rl.Store) *Controller { h.rlStore = store; return h }

// WithLogger injects the audit logger.
func (h *Controller) WithLogger(l zerolog.Logger) *Controller { h.log = l; return h }

// Register mounts settings endpoints under /api/v1.
func (h *Controller) Register(e *echo.Echo) {
	// Defaults: GET 60/min, PUT 10/min
	getPolicy := ssvc.TenantPolicy(h.service, "settings:get", sdomain.KeyRLSettingsGetLimit, sdomain.KeyRLSettingsGetWindow, 60, time.Minute)
	putPolicy := ssvc.TenantPolicy(h.service, "settings:put", sdomain.KeyRLSettingsPutLimit, sdomain.KeyRLSettingsPutWindow, 10, time.Minute)

	var getRL, putRL echo.MiddlewareFunc
	if h.rlStore != nil {
		getRL = rl.MiddlewareWithStore(getPolicy, h.rlStore)
		putRL = rl.MiddlewareWithStore(putPolicy, h.rlStore)
	} else {
		getRL = rl.Middleware(getPolicy)
		putRL = rl.Middleware(putPolicy)
	}

	adminOnly := imw.RequireRole(idomain.RoleAdmin)
	getMW := []echo.MiddlewareFunc{}
	putMW := []echo.MiddlewareFunc{}
	if h.jwtMW != nil {
		getMW = append(getMW, h.jwtMW)
		putMW = append(putMW, h.jwtMW)
	}
	getMW = append(getMW, adminOnly, getRL)
	putMW = append(putMW, adminOnly, putRL)

	e.GET("/api/v1/settings", h.getSettings, getMW...)
	e.PUT("/api/v1/settings", h.putSettings, putMW...)
}

type settingsResponse struct {
	EmitRateLimit  int    `json:"emit_rate_limit"`
	EmitRateWindow string `json:"emit_rate_window"`
	FeedLimit      int    `json:"feed_limit"`
}

type putSettingsRequest struct {
	EmitRateLimit  *int    `json:"emit_rate_limit"`
	EmitRateWindow *string `json:"emit_rate_window"`
	FeedLimit      *int    `json:"feed_limit"`
}

// getSettings serves GET /api/v1/settings: get tenant settings.
func (h *Controller) getSettings(c echo.Context) error {
	key := imw.TenantKey(c)
	if key == "" {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	}
	ctx := c.Request().Context()
	lim, _ := h.service.GetInt(ctx, sdomain.KeyRLEmitLimit, &key, 0)
	win, _ := h.service.GetString(ctx, sdomain.KeyRLEmitWindow, &key, "")
	feed, _ := h.service.GetInt(ctx, sdomain.KeyFeedLimit, &key, 0)
	return c.JSON(http.StatusOK, settingsResponse{
		EmitRateLimit:  lim,
		EmitRateWindow: win,
		FeedLimit:      feed,
	})
}

// putSettings serves PUT /api/v1/settings: upsert tenant settings.
func (h *Controller) putSettings(c echo.Context) error {
	id, ok := imw.Identity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	}
	key := id.Tenant.Key()
	var req putSettingsRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid json"})
	}
	if req.EmitRateLimit != nil && *req.EmitRateLimit < 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid emit_rate_limit"})
	}
	if req.FeedLimit != nil && (*req.FeedLimit < 0 || *req.FeedLimit > 500) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid feed_limit"})
	}
	if v := req.EmitRateWindow; v != nil && strings.TrimSpace(*v) != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(*v)); err != nil || d <= 0 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid emit_rate_window"})
		}
	}

	ctx := c.Request().Context()
	changed := make([]string, 0, 4)
	upsert := func(k, v string) error {
		if err := h.repo.Upsert(ctx, k, &key, v, false); err != nil {
			return err
		}
		changed = append(changed, k)
		return nil
	}
	var err error
	if req.EmitRateLimit != nil {
		err = upsert(sdomain.KeyRLEmitLimit, strconv.Itoa(*req.EmitRateLimit))
	}
	if err == nil && req.EmitRateWindow != nil {
		err = upsert(sdomain.KeyRLEmitWindow, strings.TrimSpace(*req.EmitRateWindow))
	}
	if err == nil && req.FeedLimit != nil {
		err = upsert(sdomain.KeyFeedLimit, strconv.Itoa(*req.FeedLimit))
	}
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if len(changed) > 0 {
		h.log.Info().
			Str("tenant", key).
			Str("user_id", id.UserID).
			Str("changed", strings.Join(changed, ",")).
			Msg("settings updated")
	}
	return c.NoContent(http.StatusNoContent)
}
