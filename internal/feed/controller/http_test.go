package controller

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvusHold/notify/internal/config"
	fsvc "github.com/corvusHold/notify/internal/feed/service"
	idomain "github.com/corvusHold/notify/internal/identity/domain"
	imw "github.com/corvusHold/notify/internal/identity/middleware"
	isvc "github.com/corvusHold/notify/internal/identity/service"
	ndomain "github.com/corvusHold/notify/internal/notify/domain"
	"github.com/corvusHold/notify/internal/notify/repository"
	sdomain "github.com/corvusHold/notify/internal/settings/domain"
	srepo "github.com/corvusHold/notify/internal/settings/repository"
	ssvc "github.com/corvusHold/notify/internal/settings/service"
)

const signingKey = "feed-test-key"

var tenant = idomain.Tenant{ClientID: "c1", CondominiumID: "d1"}

func setup(t *testing.T) (*echo.Echo, *repository.Memory, string) {
	t.Helper()
	return setupWithSettings(t, srepo.NewMemory())
}

func setupWithSettings(t *testing.T, sets *srepo.Memory) (*echo.Echo, *repository.Memory, string) {
	t.Helper()
	m := repository.NewMemory()
	e := echo.New()
	newStore := func() *fsvc.Store { return fsvc.NewStore(m, 100) }
	New(fsvc.New(m, 100), newStore).
		WithJWT(imw.NewJWT(config.Config{JWTSigningKey: signingKey})).
		WithSettings(ssvc.New(sets)).
		Register(e)
	tok, err := isvc.IssueToken(signingKey, idomain.Identity{UserID: "u1", Role: idomain.RoleAdmin, Tenant: tenant}, time.Hour)
	require.NoError(t, err)
	return e, m, tok
}

func seed(t *testing.T, m *repository.Memory, uid string, n int) []string {
	t.Helper()
	ids := make([]string, n)
	batch := make([]ndomain.RecipientNotification, n)
	for i := range batch {
		ids[i] = uuid.NewString()
		batch[i] = ndomain.RecipientNotification{
			ID: ids[i], RecipientID: uid, Title: "Low stock", EventType: ndomain.EventInventoryLowStock,
			Module: ndomain.ModuleInventory, Priority: ndomain.PriorityHigh,
			CreatedAt: time.Unix(int64(1000+i), 0), TenantContext: tenant,
		}
	}
	require.NoError(t, m.WriteBatch(context.Background(), batch))
	return ids
}

func do(e *echo.Echo, method, path, tok string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestFeed_ListReadAndCount(t *testing.T) {
	e, m, tok := setup(t)
	ids := seed(t, m, "u1", 4)
	seed(t, m, "someone-else", 2)

	rec := do(e, http.MethodGet, "/api/v1/notifications?limit=3", tok)
	require.Equal(t, http.StatusOK, rec.Code)
	var feed feedResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &feed))
	assert.Len(t, feed.Items, 3)
	assert.Equal(t, 4, feed.Unread)
	assert.Equal(t, ids[3], feed.Items[0].ID)

	rec = do(e, http.MethodPatch, "/api/v1/notifications/"+ids[0]+"/read", tok)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(e, http.MethodPatch, "/api/v1/notifications/"+ids[0]+"/read", tok)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(e, http.MethodGet, "/api/v1/notifications/unread-count", tok)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"unread":3}`, rec.Body.String())

	rec = do(e, http.MethodPost, "/api/v1/notifications/read-all", tok)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"marked":3}`, rec.Body.String())

	other := ndomain.FeedRef{Tenant: tenant, RecipientID: "someone-else"}
	n, err := m.CountUnread(context.Background(), other)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestFeed_TenantPageSize(t *testing.T) {
	sets := srepo.NewMemory()
	key := tenant.Key()
	require.NoError(t, sets.Upsert(context.Background(), sdomain.KeyFeedLimit, &key, "2", false))
	e, m, tok := setupWithSettings(t, sets)
	seed(t, m, "u1", 5)

	rec := do(e, http.MethodGet, "/api/v1/notifications", tok)
	require.Equal(t, http.StatusOK, rec.Code)
	var feed feedResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &feed))
	assert.Len(t, feed.Items, 2)
	assert.Equal(t, 5, feed.Unread)

	rec = do(e, http.MethodGet, "/api/v1/notifications?limit=4", tok)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &feed))
	assert.Len(t, feed.Items, 4)
}

func TestFeed_RequiresIdentity(t *testing.T) {
	e, _, _ := setup(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/notifications", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestFeed_StreamSendsSnapshots(t *testing.T) {
	e, m, tok := setup(t)
	seed(t, m, "u1", 2)
	srv := httptest.NewServer(e)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/notifications/stream?access_token="+tok, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	events := make(chan feedResp, 4)
	go func() {
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			line := sc.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			var f feedResp
			if json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &f) == nil {
				events <- f
			}
		}
		close(events)
	}()

	first := <-events
	assert.Len(t, first.Items, 2)
	assert.Equal(t, 2, first.Unread)

	seed(t, m, "u1", 1)
	require.Eventually(t, func() bool {
		select {
		case f := <-events:
			return len(f.Items) == 3
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}

func TestFeed_ShutdownClosesStream(t *testing.T) {
	m := repository.NewMemory()
	seed(t, m, "u1", 1)
	e := echo.New()
	ctl := New(fsvc.New(m, 100), func() *fsvc.Store { return fsvc.NewStore(m, 100) }).
		WithJWT(imw.NewJWT(config.Config{JWTSigningKey: signingKey}))
	ctl.Register(e)
	tok, err := isvc.IssueToken(signingKey, idomain.Identity{UserID: "u1", Role: idomain.RoleResident, Tenant: tenant}, time.Hour)
	require.NoError(t, err)
	srv := httptest.NewServer(e)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/notifications/stream?access_token=" + tok)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	ended := make(chan struct{})
	go func() {
		defer close(ended)
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
		}
	}()
	require.Eventually(t, func() bool { return m.Subscribers(ndomain.FeedRef{Tenant: tenant, RecipientID: "u1"}) == 1 },
		time.Second, 5*time.Millisecond)

	ctl.Shutdown()
	select {
	case <-ended:
	case <-time.After(2 * time.Second):
		t.Fatal("stream still open after Shutdown")
	}
	assert.Eventually(t, func() bool { return m.Subscribers(ndomain.FeedRef{Tenant: tenant, RecipientID: "u1"}) == 0 },
		time.Second, 5*time.Millisecond)

	rec := do(e, http.MethodGet, "/api/v1/notifications/stream", tok)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
