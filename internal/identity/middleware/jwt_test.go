package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvusHold/notify/internal/config"
	"github.com/corvusHold/notify/internal/identity/domain"
	"github.com/corvusHold/notify/internal/identity/service"
)

const key = "test-signing-key"

func newEcho() *echo.Echo {
	e := echo.New()
	cfg := config.Config{JWTSigningKey: key}
	e.GET("/me", func(c echo.Context) error {
		id, ok := Identity(c)
		if !ok {
			return c.NoContent(http.StatusInternalServerError)
		}
		s, ok := service.SessionFrom(c.Request().Context())
		if !ok {
			return c.NoContent(http.StatusInternalServerError)
		}
		cur, _ := s.Current()
		return c.JSON(http.StatusOK, map[string]string{"uid": id.UserID, "session": cur.UserID, "tenant": TenantKey(c)})
	}, NewJWT(cfg))
	e.GET("/admin", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, NewJWT(cfg), RequireRole(domain.RoleAdmin))
	return e
}

func token(t *testing.T, id domain.Identity) string {
	t.Helper()
	tok, err := service.IssueToken(key, id, time.Hour)
	require.NoError(t, err)
	return tok
}

var bob = domain.Identity{UserID: "u-bob", Role: domain.RoleStaff, Tenant: domain.Tenant{ClientID: "c1", CondominiumID: "d1"}}

func TestNewJWT_AttachesIdentityAndSession(t *testing.T) {
	e := newEcho()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, bob))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"uid":"u-bob","session":"u-bob","tenant":"c1/d1"}`, rec.Body.String())
}

func TestNewJWT_QueryTokenForStreams(t *testing.T) {
	e := newEcho()
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/me?access_token="+token(t, bob), nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNewJWT_Rejects(t *testing.T) {
	e := newEcho()
	noTenant := bob
	noTenant.Tenant.CondominiumID = ""
	slashClient := bob
	slashClient.Tenant = domain.Tenant{ClientID: "c1/d1", CondominiumID: "x"}
	colonCondo := bob
	colonCondo.Tenant.CondominiumID = "d1:x"
	slashUser := bob
	slashUser.UserID = "u-bob/notifications"

	cases := map[string]string{
		"missing":         "",
		"malformed":       "Bearer nope",
		"no tenant":       "Bearer " + token(t, noTenant),
		"slash in client": "Bearer " + token(t, slashClient),
		"colon in condo":  "Bearer " + token(t, colonCondo),
		"slash in user":   "Bearer " + token(t, slashUser),
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestRequireRole(t *testing.T) {
	e := newEcho()
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, bob))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	admin := bob
	admin.Role = domain.RoleAdmin
	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, admin))
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
