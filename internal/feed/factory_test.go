package feed

import (
	"bufio"
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvusHold/notify/internal/config"
	idomain "github.com/corvusHold/notify/internal/identity/domain"
	imw "github.com/corvusHold/notify/internal/identity/middleware"
	isvc "github.com/corvusHold/notify/internal/identity/service"
	"github.com/corvusHold/notify/internal/notify/repository"
)

func TestRegister_ShutdownEndsOpenStreams(t *testing.T) {
	const key = "feed-factory-key"
	e := echo.New()
	e.HideBanner = true
	Register(e, repository.NewMemory(), 100, imw.NewJWT(config.Config{JWTSigningKey: key}), nil, nil, zerolog.Nop())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	e.Server.Handler = e
	go func() { _ = e.Server.Serve(ln) }()

	tok, err := isvc.IssueToken(key, idomain.Identity{UserID: "u1", Role: idomain.RoleStaff,
		Tenant: idomain.Tenant{ClientID: "c1", CondominiumID: "d1"}}, time.Hour)
	require.NoError(t, err)
	resp, err := http.Get("http://" + ln.Addr().String() + "/api/v1/notifications/stream?access_token=" + tok)
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

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	start := time.Now()
	require.NoError(t, e.Shutdown(ctx))
	assert.Less(t, time.Since(start), 3*time.Second, "shutdown waited on the open stream")

	select {
	case <-ended:
	case <-time.After(2 * time.Second):
		t.Fatal("stream still open after shutdown")
	}
}
