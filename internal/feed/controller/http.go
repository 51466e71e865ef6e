package controller

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	fdomain "github.com/corvusHold/notify/internal/feed/domain"
	fsvc "github.com/corvusHold/notify/internal/feed/service"
	imw "github.com/corvusHold/notify/internal/identity/middleware"
	metrics "github.com/corvusHold/notify/internal/metrics"
	ndomain "github.com/corvusHold/notify/internal/notify/domain"
	sdomain "github.com/corvusHold/notify/internal/settings/domain"
)

const heartbeatInterval = 25 * time.Second

type Controller struct {
	svc      *fsvc.Service
	newStore func() *fsvc.Store
	settings sdomain.Service
	jwtMW    echo.MiddlewareFunc

	closing   chan struct{}
	closeOnce sync.Once
}

// New builds the feed controller. newStore creates one Store per stream; a
// nil newStore disables the stream endpoint.
func New(svc *fsvc.Service, newStore func() *fsvc.Store) *Controller {
	return &Controller{svc: svc, newStore: newStore, closing: make(chan struct{})}
}

// Shutdown ends every open stream. http.Server.Shutdown does not cancel
// request contexts, so streams would otherwise hold it until its deadline.
func (h *Controller) Shutdown() {
	h.closeOnce.Do(func() { close(h.closing) })
}

// WithJWT injects the identity middleware for these endpoints.
func (h *Controller) WithJWT(mw echo.MiddlewareFunc) *Controller { h.jwtMW = mw; return h }

// WithSettings enables the per-tenant default page size.
func (h *Controller) WithSettings(s sdomain.Service) *Controller { h.settings = s; return h }

func (h *Controller) Register(e *echo.Echo) {
	var mws []echo.MiddlewareFunc
	if h.jwtMW != nil {
		mws = append(mws, h.jwtMW)
	}
	g := e.Group("/api/v1/notifications", mws...)
	g.GET("", h.list)
	g.GET("/unread-count", h.unreadCount)
	g.PATCH("/:id/read", h.markRead)
	g.POST("/read-all", h.markAllRead)
	if h.newStore != nil {
		g.GET("/stream", h.stream)
	}
}

type notificationResp struct {
	ID            string         `json:"id"`
	Title         string         `json:"title"`
	Body          string         `json:"body"`
	Module        string         `json:"module"`
	EventType     string         `json:"event_type"`
	Priority      string         `json:"priority"`
	Read          bool           `json:"read"`
	ReadAt        *time.Time     `json:"read_at,omitempty"`
	EntityID      string         `json:"entity_id,omitempty"`
	EntityType    string         `json:"entity_type,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	SourceEventID string         `json:"source_event_id"`
	CreatedAt     time.Time      `json:"created_at"`
	CreatedBy     string         `json:"created_by"`
}

type feedResp struct {
	Items  []notificationResp `json:"items"`
	Unread int                `json:"unread"`
}

func toResp(n ndomain.RecipientNotification) notificationResp {
	return notificationResp{
		ID:            n.ID,
		Title:         n.Title,
		Body:          n.Body,
		Module:        string(n.Module),
		EventType:     string(n.EventType),
		Priority:      string(n.Priority),
		Read:          n.Read,
		ReadAt:        n.ReadAt,
		EntityID:      n.EntityID,
		EntityType:    n.EntityType,
		Metadata:      n.Metadata,
		SourceEventID: n.SourceEventID,
		CreatedAt:     n.CreatedAt.UTC(),
		CreatedBy:     n.CreatedBy,
	}
}

func toFeedResp(items []ndomain.RecipientNotification, unread int) feedResp {
	out := feedResp{Items: make([]notificationResp, 0, len(items)), Unread: unread}
	for _, n := range items {
		out.Items = append(out.Items, toResp(n))
	}
	return out
}

func feedRef(c echo.Context) (ndomain.FeedRef, bool) {
	id, ok := imw.Identity(c)
	if !ok {
		return ndomain.FeedRef{}, false
	}
	return ndomain.FeedRef{Tenant: id.Tenant, RecipientID: id.UserID}, true
}

// list serves GET /api/v1/notifications: list the caller's notifications.
func (h *Controller) list(c echo.Context) error {
	ref, ok := feedRef(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	}
	ctx := c.Request().Context()
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit <= 0 && h.settings != nil {
		key := ref.Tenant.Key()
		limit, _ = h.settings.GetInt(ctx, sdomain.KeyFeedLimit, &key, h.svc.Limit())
	}
	items, unread, err := h.svc.List(ctx, ref, limit)
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": fdomain.ErrFeedUnavailable.Error()})
	}
	return c.JSON(http.StatusOK, toFeedResp(items, unread))
}

// unreadCount serves GET /api/v1/notifications/unread-count: count the caller's unread notifications.
func (h *Controller) unreadCount(c echo.Context) error {
	ref, ok := feedRef(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	}
	n, err := h.svc.UnreadCount(c.Request().Context(), ref)
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": fdomain.ErrFeedUnavailable.Error()})
	}
	return c.JSON(http.StatusOK, map[string]int{"unread": n})
}

// markRead serves PATCH /api/v1/notifications/:id/read: mark one notification read.
func (h *Controller) markRead(c echo.Context) error {
	ref, ok := feedRef(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	}
	if _, err := h.svc.MarkRead(c.Request().Context(), ref, c.Param("id")); err != nil {
		return c.JSON(http.StatusBadGateway, map[string]string{"error": err.Error()})
	}
	return c.NoContent(http.StatusNoContent)
}

// markAllRead serves POST /api/v1/notifications/read-all: mark every unread notification of the caller's feed read.
func (h *Controller) markAllRead(c echo.Context) error {
	ref, ok := feedRef(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	}
	n, err := h.svc.MarkAllRead(c.Request().Context(), ref)
	if err != nil {
		return c.JSON(http.StatusBadGateway, map[string]any{"error": err.Error(), "marked": n})
	}
	return c.JSON(http.StatusOK, map[string]int{"marked": n})
}

// stream serves GET /api/v1/notifications/stream: live feed as Server-Sent Events.
func (h *Controller) stream(c echo.Context) error {
	ref, ok := feedRef(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	}
	select {
	case <-h.closing:
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "server shutting down"})
	default:
	}
	ctx := c.Request().Context()
	store := h.newStore()
	if _, err := store.Connect(ctx, ref); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": fdomain.ErrFeedUnavailable.Error()})
	}
	defer store.Disconnect()
	metrics.StreamOpened()
	defer metrics.StreamClosed()

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	w.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()
	var lastErr error
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-h.closing:
			return nil
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return nil
			}
			w.Flush()
		case <-store.Changes():
			v := store.View()
			var err error
			if v.Err != nil {
				if errors.Is(lastErr, v.Err) {
					continue
				}
				err = writeEvent(w, "error", map[string]string{"error": v.Err.Error()})
			} else {
				err = writeEvent(w, "snapshot", toFeedResp(v.Items, v.Unread))
			}
			lastErr = v.Err
			if err != nil {
				return nil
			}
			w.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}
