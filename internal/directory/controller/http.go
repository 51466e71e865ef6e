package controller

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	domain "github.com/corvusHold/notify/internal/directory/domain"
	idomain "github.com/corvusHold/notify/internal/identity/domain"
	imw "github.com/corvusHold/notify/internal/identity/middleware"
	"github.com/corvusHold/notify/internal/platform/validation"
)

type Controller struct {
	svc   domain.Service
	jwtMW echo.MiddlewareFunc
}

func New(svc domain.Service) *Controller {
	return &Controller{svc: svc}
}

// WithJWT injects the identity middleware for these endpoints.
func (h *Controller) WithJWT(mw echo.MiddlewareFunc) *Controller { h.jwtMW = mw; return h }

func (h *Controller) Register(e *echo.Echo) {
	var mws []echo.MiddlewareFunc
	if h.jwtMW != nil {
		mws = append(mws, h.jwtMW)
	}
	g := e.Group("/api/v1", mws...)
	h.RegisterV1(g)
}

func (h *Controller) RegisterV1(g *echo.Group) {
	adminOnly := imw.RequireRole(idomain.RoleAdmin)
	g.POST("/directory/members", h.createMember, adminOnly)
	g.GET("/directory/members", h.listMembers)
	g.GET("/directory/members/:uid", h.getMember)
	g.PATCH("/directory/members/:uid/deactivate", h.deactivateMember, adminOnly)
}

type createMemberReq struct {
	UserID      string `json:"user_id" validate:"required"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email" validate:"omitempty,email"`
	Role        string `json:"role" validate:"required,oneof=admin admin-assistant staff resident"`
}

type memberResp struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email,omitempty"`
	Role        string `json:"role"`
	IsActive    bool   `json:"is_active"`
	CreatedAt   string `json:"created_at,omitempty"`
	UpdatedAt   string `json:"updated_at,omitempty"`
}

func toMemberResp(m domain.Member) memberResp {
	return memberResp{
		UserID:      m.UserID,
		DisplayName: m.DisplayName,
		Email:       m.Email,
		Role:        m.Role,
		IsActive:    m.Active,
		CreatedAt:   toTimeString(m.CreatedAt),
		UpdatedAt:   toTimeString(m.UpdatedAt),
	}
}

func toTimeString(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func (h *Controller) createMember(c echo.Context) error {
	id, ok := imw.Identity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	}
	var req createMemberReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid json"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, validation.ErrorResponse(err))
	}
	m, err := h.svc.Create(c.Request().Context(), id.Tenant, req.UserID, req.DisplayName, req.Email, req.Role)
	if errors.Is(err, domain.ErrMemberExists) {
		return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
	}
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusCreated, toMemberResp(m))
}

func (h *Controller) getMember(c echo.Context) error {
	id, ok := imw.Identity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	}
	m, err := h.svc.Get(c.Request().Context(), id.Tenant, c.Param("uid"))
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "not found"})
	}
	return c.JSON(http.StatusOK, toMemberResp(m))
}

func (h *Controller) deactivateMember(c echo.Context) error {
	id, ok := imw.Identity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	}
	err := h.svc.Deactivate(c.Request().Context(), id.Tenant, c.Param("uid"))
	if errors.Is(err, domain.ErrMemberNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "not found"})
	}
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	return c.NoContent(http.StatusNoContent)
}

type listQuery struct {
	Q        string `query:"q"`
	Role     string `query:"role"`
	Active   int    `query:"active"` // -1 any, 1 active, 0 inactive
	Page     int    `query:"page"`
	PageSize int    `query:"page_size"`
}

type listResponse struct {
	Items      []memberResp `json:"items"`
	Total      int64        `json:"total"`
	Page       int          `json:"page"`
	PageSize   int          `json:"page_size"`
	TotalPages int          `json:"total_pages"`
}

func (h *Controller) listMembers(c echo.Context) error {
	id, ok := imw.Identity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	}
	q := listQuery{Active: -1}
	if err := c.Bind(&q); err != nil {
		// fallback manual parse
		q.Q = c.QueryParam("q")
		q.Role = c.QueryParam("role")
		if a := c.QueryParam("active"); a != "" {
			if v, err := strconv.Atoi(a); err == nil {
				q.Active = v
			}
		}
		if p := c.QueryParam("page"); p != "" {
			if v, err := strconv.Atoi(p); err == nil {
				q.Page = v
			}
		}
		if ps := c.QueryParam("page_size"); ps != "" {
			if v, err := strconv.Atoi(ps); err == nil {
				q.PageSize = v
			}
		}
	}

	res, err := h.svc.List(c.Request().Context(), id.Tenant, domain.ListOptions{
		Query:    q.Q,
		Role:     q.Role,
		Active:   q.Active,
		Page:     q.Page,
		PageSize: q.PageSize,
	})
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	items := make([]memberResp, 0, len(res.Items))
	for _, m := range res.Items {
		items = append(items, toMemberResp(m))
	}
	return c.JSON(http.StatusOK, listResponse{
		Items:      items,
		Total:      res.Total,
		Page:       res.Page,
		PageSize:   res.PageSize,
		TotalPages: res.TotalPages,
	})
}
