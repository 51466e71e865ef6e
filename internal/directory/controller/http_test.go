package controller

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvusHold/notify/internal/config"
	"github.com/corvusHold/notify/internal/directory/repository"
	"github.com/corvusHold/notify/internal/directory/service"
	idomain "github.com/corvusHold/notify/internal/identity/domain"
	imw "github.com/corvusHold/notify/internal/identity/middleware"
	isvc "github.com/corvusHold/notify/internal/identity/service"
	"github.com/corvusHold/notify/internal/platform/validation"
)

const signingKey = "directory-test-key"

var tenant = idomain.Tenant{ClientID: "c1", CondominiumID: "d1"}

func setup() *echo.Echo {
	e := echo.New()
	e.Validator = validation.New()
	cfg := config.Config{JWTSigningKey: signingKey}
	New(service.New(repository.NewMemory())).WithJWT(imw.NewJWT(cfg)).Register(e)
	return e
}

func bearer(t *testing.T, role string) string {
	t.Helper()
	tok, err := isvc.IssueToken(signingKey, idomain.Identity{UserID: "actor", Role: role, Tenant: tenant}, time.Hour)
	require.NoError(t, err)
	return "Bearer " + tok
}

func do(e *echo.Echo, method, path, body, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if auth != "" {
		req.Header.Set(echo.HeaderAuthorization, auth)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestMembers_CreateListDeactivate(t *testing.T) {
	e := setup()
	admin := bearer(t, idomain.RoleAdmin)

	rec := do(e, http.MethodPost, "/api/v1/directory/members", `{"user_id":"u1","display_name":"Ana","role":"admin"}`, admin)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(e, http.MethodPost, "/api/v1/directory/members", `{"user_id":"u1","role":"admin"}`, admin)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(e, http.MethodPost, "/api/v1/directory/members", `{"user_id":"u2","role":"owner"}`, admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(e, http.MethodGet, "/api/v1/directory/members?role=admin", "", bearer(t, idomain.RoleStaff))
	require.Equal(t, http.StatusOK, rec.Code)
	var list listResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.EqualValues(t, 1, list.Total)
	assert.Equal(t, 20, list.PageSize)
	require.Len(t, list.Items, 1)
	assert.Equal(t, "Ana", list.Items[0].DisplayName)

	rec = do(e, http.MethodPatch, "/api/v1/directory/members/u1/deactivate", "", admin)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(e, http.MethodGet, "/api/v1/directory/members/u1", "", admin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"is_active":false`)

	rec = do(e, http.MethodPatch, "/api/v1/directory/members/ghost/deactivate", "", admin)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMembers_MutationsRequireAdmin(t *testing.T) {
	e := setup()

	rec := do(e, http.MethodPost, "/api/v1/directory/members", `{"user_id":"u1","role":"staff"}`, bearer(t, idomain.RoleStaff))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(e, http.MethodGet, "/api/v1/directory/members", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
