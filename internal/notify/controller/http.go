package controller

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	imw "github.com/corvusHold/notify/internal/identity/middleware"
	"github.com/corvusHold/notify/internal/notify/domain"
	rl "github.com/corvusHold/notify/internal/platform/ratelimit"
	"github.com/corvusHold/notify/internal/platform/validation"
	sdomain "github.com/corvusHold/notify/internal/settings/domain"
	ssvc "github.com/corvusHold/notify/internal/settings/service"
)

// Emitter is the dispatch surface the controller drives.
type Emitter interface {
	Emit(ctx context.Context, ev domain.DomainEvent)
	Dispatch(ctx context.Context, ev domain.DomainEvent) (domain.Outcome, error)
}

// Default emit rate limit per tenant when no setting overrides it.
const (
	defaultEmitLimit  = 120
	defaultEmitWindow = time.Minute
)

type Controller struct {
	emitter  Emitter
	settings sdomain.Service
	jwtMW    echo.MiddlewareFunc
	rlStore  rl.Store
}

func New(emitter Emitter) *Controller {
	return &Controller{emitter: emitter}
}

// WithJWT injects the identity middleware for these endpoints.
func (h *Controller) WithJWT(mw echo.MiddlewareFunc) *Controller { h.jwtMW = mw; return h }

// WithRateLimit injects a shared Store for distributed rate limiting.
func (h *Controller) WithRateLimit(store rl.Store) *Controller { h.rlStore = store; return h }

// WithSettings enables per-tenant rate limit overrides.
func (h *Controller) WithSettings(s sdomain.Service) *Controller { h.settings = s; return h }

func (h *Controller) Register(e *echo.Echo) {
	policy := rl.Policy{
		Name:   "notify:emit",
		Window: defaultEmitWindow,
		Limit:  defaultEmitLimit,
		Key:    rl.KeyTenantOrIP("notify:emit", imw.TenantKey),
	}
	if h.settings != nil {
		policy = ssvc.TenantPolicy(h.settings, "notify:emit", sdomain.KeyRLEmitLimit, sdomain.KeyRLEmitWindow, defaultEmitLimit, defaultEmitWindow)
	}
	var emitRL echo.MiddlewareFunc
	if h.rlStore != nil {
		emitRL = rl.MiddlewareWithStore(policy, h.rlStore)
	} else {
		emitRL = rl.Middleware(policy)
	}

	var mws []echo.MiddlewareFunc
	if h.jwtMW != nil {
		mws = append(mws, h.jwtMW)
	}
	g := e.Group("/api/v1/events", mws...)
	g.POST("", h.emit, emitRL)
	g.GET("/catalog", h.catalog)
}

type emitRequest struct {
	EventType  string               `json:"event_type" validate:"required,event_type"`
	Priority   string               `json:"priority" validate:"omitempty,oneof=low medium high critical"`
	DedupeKey  string               `json:"dedupe_key" validate:"max=256"`
	Audience   *domain.AudienceSpec `json:"audience"`
	Channels   []string             `json:"channels" validate:"omitempty,dive,channel"`
	EntityID   string               `json:"entity_id"`
	EntityType string               `json:"entity_type"`
	Metadata   map[string]any       `json:"metadata"`
	Title      string               `json:"title" validate:"max=200"`
	Body       string               `json:"body" validate:"max=2000"`
}

type outcomeResponse struct {
	Status          string `json:"status"`
	EventID         string `json:"event_id,omitempty"`
	QueueID         string `json:"queue_id,omitempty"`
	Recipients      int    `json:"recipients"`
	ChunksCommitted int    `json:"chunks_committed"`
	ChunksFailed    int    `json:"chunks_failed"`
	Error           string `json:"error,omitempty"`
}

type catalogEntryResponse struct {
	EventType       string `json:"event_type"`
	Module          string `json:"module"`
	Description     string `json:"description"`
	DefaultPriority string `json:"default_priority"`
	DefaultAudience string `json:"default_audience"`
}

func toDomainEvent(req emitRequest, tenant domain.TenantContext) (domain.DomainEvent, error) {
	ev := domain.DomainEvent{
		EventType:     domain.EventType(req.EventType),
		Priority:      domain.Priority(req.Priority),
		DedupeKey:     req.DedupeKey,
		EntityID:      req.EntityID,
		EntityType:    req.EntityType,
		Metadata:      req.Metadata,
		Title:         req.Title,
		Body:          req.Body,
		TenantContext: tenant,
	}
	if req.Audience != nil {
		a, err := domain.ParseAudience(*req.Audience)
		if err != nil {
			return domain.DomainEvent{}, err
		}
		ev.Audience = a
	}
	for _, ch := range req.Channels {
		ev.Channels = append(ev.Channels, domain.Channel(ch))
	}
	return ev, nil
}

// emit serves POST /api/v1/events: emit a domain event.
func (h *Controller) emit(c echo.Context) error {
	id, ok := imw.Identity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	}
	var req emitRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid json"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, validation.ErrorResponse(err))
	}
	ev, err := toDomainEvent(req, id.Tenant)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	if wait, _ := strconv.ParseBool(c.QueryParam("wait")); wait {
		out, err := h.emitter.Dispatch(c.Request().Context(), ev)
		resp := outcomeResponse{
			Status:          string(out.Status),
			EventID:         out.EventID,
			QueueID:         out.QueueID,
			Recipients:      out.Recipients,
			ChunksCommitted: out.ChunksCommitted,
			ChunksFailed:    out.ChunksFailed,
		}
		switch {
		case err == nil:
			return c.JSON(http.StatusOK, resp)
		case errors.Is(err, domain.ErrPartialFanout):
			resp.Error = err.Error()
			return c.JSON(http.StatusMultiStatus, resp)
		default:
			resp.Error = err.Error()
			return c.JSON(http.StatusBadGateway, resp)
		}
	}

	h.emitter.Emit(c.Request().Context(), ev)
	return c.JSON(http.StatusAccepted, map[string]string{"status": "accepted"})
}

// catalog serves GET /api/v1/events/catalog: list cataloged event types.
func (h *Controller) catalog(c echo.Context) error {
	entries := domain.Catalog()
	out := make([]catalogEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, catalogEntryResponse{
			EventType:       string(e.EventType),
			Module:          string(e.Module),
			Description:     e.Description,
			DefaultPriority: string(e.DefaultPriority),
			DefaultAudience: string(e.DefaultAudience.Scope()),
		})
	}
	return c.JSON(http.StatusOK, out)
}
