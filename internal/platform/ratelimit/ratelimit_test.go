package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, mw echo.MiddlewareFunc, n int) []int {
	t.Helper()
	e := echo.New()
	e.GET("/x", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, mw)
	codes := make([]int, 0, n)
	for i := 0; i < n; i++ {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
		codes = append(codes, rec.Code)
	}
	return codes
}

func TestMiddleware_BlocksAfterLimit(t *testing.T) {
	p := Policy{Name: "test:x", Window: time.Minute, Limit: 2}
	codes := serve(t, Middleware(p), 3)
	assert.Equal(t, []int{200, 200, 429}, codes)
}

func TestMiddleware_LimitFuncOverrides(t *testing.T) {
	p := Policy{Name: "test:x", Window: time.Minute, Limit: 1, LimitFunc: func(echo.Context) int { return 3 }}
	codes := serve(t, Middleware(p), 4)
	assert.Equal(t, []int{200, 200, 200, 429}, codes)
}

func TestMemoryStore_WindowResets(t *testing.T) {
	now := time.Unix(100, 0)
	s := &memoryStore{buckets: map[string]*bucket{}, now: func() time.Time { return now }}
	ctx := context.Background()

	ok, _, _ := s.Allow(ctx, "k", 1, time.Second)
	require.True(t, ok)
	ok, retry, _ := s.Allow(ctx, "k", 1, time.Second)
	require.False(t, ok)
	assert.Equal(t, 1, retry)

	now = now.Add(time.Second)
	ok, _, _ = s.Allow(ctx, "k", 1, time.Second)
	assert.True(t, ok)
}

type failingStore struct{}

func (failingStore) Allow(context.Context, string, int, time.Duration) (bool, int, error) {
	return false, 0, errors.New("store down")
}

func TestMiddlewareWithStore_FailsOpen(t *testing.T) {
	p := Policy{Name: "test:x", Limit: 1}
	codes := serve(t, MiddlewareWithStore(p, failingStore{}), 3)
	assert.Equal(t, []int{200, 200, 200}, codes)
}

func TestKeyTenantOrIP(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(echo.HeaderXRealIP, "10.0.0.1")
	c := e.NewContext(req, httptest.NewRecorder())

	assert.Equal(t, "emit:ip:10.0.0.1", KeyTenantOrIP("emit", nil)(c))
	assert.Equal(t, "emit:ten:c1/d1", KeyTenantOrIP("emit", func(echo.Context) string { return "c1/d1" })(c))
}
