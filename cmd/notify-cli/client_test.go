package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBase = "http://notify.test"

func newMockedClient(t *testing.T) *NotifyClient {
	t.Helper()
	c := NewClient(testBase, "tok-123")
	httpmock.ActivateNonDefault(c.HTTP)
	t.Cleanup(httpmock.DeactivateAndReset)
	return c
}

func TestEmit_SendsBearerAndBody(t *testing.T) {
	c := newMockedClient(t)

	var got EmitRequest
	httpmock.RegisterResponder("POST", testBase+"/api/v1/events",
		func(req *http.Request) (*http.Response, error) {
			if req.Header.Get("Authorization") != "Bearer tok-123" {
				return httpmock.NewStringResponse(401, `{"error":"unauthorized"}`), nil
			}
			if err := json.NewDecoder(req.Body).Decode(&got); err != nil {
				return nil, err
			}
			return httpmock.NewJsonResponse(202, map[string]string{"status": "accepted"})
		})

	resp, err := c.Emit(EmitRequest{
		EventType: "maintenance.ticket_created",
		DedupeKey: "mr-1",
		Audience:  &Audience{Scope: "admins"},
	}, false)
	require.NoError(t, err)
	assert.Equal(t, "accepted", resp.Status)
	assert.Equal(t, "maintenance.ticket_created", got.EventType)
	assert.Equal(t, "mr-1", got.DedupeKey)
	require.NotNil(t, got.Audience)
	assert.Equal(t, "admins", got.Audience.Scope)
}

func TestEmit_WaitReturnsOutcome(t *testing.T) {
	c := newMockedClient(t)
	httpmock.RegisterResponder("POST", testBase+"/api/v1/events?wait=true",
		httpmock.NewStringResponder(207, `{"status":"partial","event_id":"e1","recipients":600,"chunks_committed":1,"chunks_failed":1,"error":"partial fan-out"}`))

	resp, err := c.Emit(EmitRequest{EventType: "finance.payment_received"}, true)
	require.NoError(t, err)
	assert.Equal(t, "partial", resp.Status)
	assert.Equal(t, 600, resp.Recipients)
	assert.Equal(t, 1, resp.ChunksFailed)
}

func TestAPIErrorIsSurfaced(t *testing.T) {
	c := newMockedClient(t)
	httpmock.RegisterResponder("GET", testBase+"/api/v1/settings",
		httpmock.NewStringResponder(403, `{"error":"forbidden"}`))
	httpmock.RegisterResponder("GET", testBase+"/healthz",
		httpmock.NewStringResponder(500, `boom`))

	_, err := c.GetSettings()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API error (403): forbidden")

	_, err = c.Health()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestFeedEndpoints(t *testing.T) {
	c := newMockedClient(t)
	httpmock.RegisterResponder("GET", testBase+"/api/v1/notifications?limit=5",
		httpmock.NewStringResponder(200, `{"items":[{"id":"n1","title":"Leak","priority":"high","read":false,"created_at":"2026-01-02T03:04:05Z"}],"unread":1}`))
	httpmock.RegisterResponder("GET", testBase+"/api/v1/notifications/unread-count",
		httpmock.NewStringResponder(200, `{"unread":4}`))
	httpmock.RegisterResponder("PATCH", testBase+"/api/v1/notifications/n1/read",
		httpmock.NewStringResponder(204, ``))
	httpmock.RegisterResponder("POST", testBase+"/api/v1/notifications/read-all",
		httpmock.NewStringResponder(200, `{"marked":3}`))

	feed, err := c.Feed(5)
	require.NoError(t, err)
	require.Len(t, feed.Items, 1)
	assert.Equal(t, "n1", feed.Items[0].ID)
	assert.Equal(t, 1, feed.Unread)

	n, err := c.UnreadCount()
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	require.NoError(t, c.MarkRead("n1"))

	marked, err := c.MarkAllRead()
	require.NoError(t, err)
	assert.Equal(t, 3, marked)

	info := httpmock.GetCallCountInfo()
	assert.Equal(t, 1, info["PATCH "+testBase+"/api/v1/notifications/n1/read"])
}

func TestListMembers_Query(t *testing.T) {
	c := newMockedClient(t)
	httpmock.RegisterResponder("GET", testBase+"/api/v1/directory/members",
		func(req *http.Request) (*http.Response, error) {
			q := req.URL.Query()
			if q.Get("role") != "staff" || q.Get("active") != "1" || q.Get("page") != "2" {
				return httpmock.NewStringResponse(400, `{"error":"bad query"}`), nil
			}
			return httpmock.NewStringResponse(200, `{"items":[{"user_id":"u1","role":"staff","is_active":true}],"total":21,"page":2,"page_size":20,"total_pages":2}`), nil
		})

	page, err := c.ListMembers(MemberQuery{Role: "staff", Active: 1, Page: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 21, page.Total)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "u1", page.Items[0].UserID)
}

func TestUpdateSettings_OmitsUnsetFields(t *testing.T) {
	c := newMockedClient(t)
	var raw map[string]any
	httpmock.RegisterResponder("PUT", testBase+"/api/v1/settings",
		func(req *http.Request) (*http.Response, error) {
			if err := json.NewDecoder(req.Body).Decode(&raw); err != nil {
				return nil, err
			}
			return httpmock.NewStringResponse(204, ``), nil
		})

	limit := 50
	require.NoError(t, c.UpdateSettings(SettingsUpdate{EmitRateLimit: &limit}))
	assert.Equal(t, map[string]any{"emit_rate_limit": float64(50)}, raw)
}

func TestBuildEmitRequest_UsersImplySpecificAudience(t *testing.T) {
	emitOpts.users = []string{"u1", "u2"}
	emitOpts.meta = map[string]string{"unit": "4B"}
	t.Cleanup(func() {
		emitOpts.users = nil
		emitOpts.meta = nil
	})

	req := buildEmitRequest("projects.task_assigned")
	require.NotNil(t, req.Audience)
	assert.Equal(t, "specific_users", req.Audience.Scope)
	assert.Equal(t, []string{"u1", "u2"}, req.Audience.UserIDs)
	assert.Equal(t, "4B", req.Metadata["unit"])
}

func TestPrinter_Formats(t *testing.T) {
	var buf bytes.Buffer
	p := &Printer{Out: &buf, Format: "table"}
	require.NoError(t, p.Count("unread", 7))
	assert.Equal(t, "unread: 7\n", buf.String())

	buf.Reset()
	p.Format = "json"
	require.NoError(t, p.Count("unread", 7))
	assert.JSONEq(t, `{"unread":7}`, buf.String())

	buf.Reset()
	p.Format = "table"
	require.NoError(t, p.Catalog([]CatalogEntry{{EventType: "finance.payment_received", Module: "finance", DefaultPriority: "medium", DefaultAudience: "admins"}}))
	assert.Contains(t, buf.String(), "EVENT TYPE")
	assert.Contains(t, buf.String(), "finance.payment_received")
}

func TestMaskToken(t *testing.T) {
	assert.Equal(t, "****", maskToken("abcd"))
	assert.Equal(t, "abcd****wxyz", maskToken("abcd1234wxyz"))
}
