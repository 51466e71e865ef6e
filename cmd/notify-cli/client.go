package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// API response structures
type CatalogEntry struct {
	EventType       string `json:"event_type"`
	Module          string `json:"module"`
	Description     string `json:"description"`
	DefaultPriority string `json:"default_priority"`
	DefaultAudience string `json:"default_audience"`
}

type Audience struct {
	Scope   string   `json:"scope"`
	UserIDs []string `json:"user_ids,omitempty"`
}

type EmitRequest struct {
	EventType  string         `json:"event_type"`
	Priority   string         `json:"priority,omitempty"`
	DedupeKey  string         `json:"dedupe_key,omitempty"`
	Audience   *Audience      `json:"audience,omitempty"`
	Channels   []string       `json:"channels,omitempty"`
	EntityID   string         `json:"entity_id,omitempty"`
	EntityType string         `json:"entity_type,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Title      string         `json:"title,omitempty"`
	Body       string         `json:"body,omitempty"`
}

type EmitResponse struct {
	Status          string `json:"status"`
	EventID         string `json:"event_id,omitempty"`
	QueueID         string `json:"queue_id,omitempty"`
	Recipients      int    `json:"recipients"`
	ChunksCommitted int    `json:"chunks_committed"`
	ChunksFailed    int    `json:"chunks_failed"`
	Error           string `json:"error,omitempty"`
}

type Notification struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	Module    string     `json:"module"`
	EventType string     `json:"event_type"`
	Priority  string     `json:"priority"`
	Read      bool       `json:"read"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

type Feed struct {
	Items  []Notification `json:"items"`
	Unread int            `json:"unread"`
}

type Member struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email,omitempty"`
	Role        string `json:"role"`
	IsActive    bool   `json:"is_active"`
	CreatedAt   string `json:"created_at,omitempty"`
}

type MemberPage struct {
	Items      []Member `json:"items"`
	Total      int64    `json:"total"`
	Page       int      `json:"page"`
	PageSize   int      `json:"page_size"`
	TotalPages int      `json:"total_pages"`
}

type MemberQuery struct {
	Query    string
	Role     string
	Active   int // -1 any
	Page     int
	PageSize int
}

type Settings struct {
	EmitRateLimit  int    `json:"emit_rate_limit"`
	EmitRateWindow string `json:"emit_rate_window"`
	FeedLimit      int    `json:"feed_limit"`
}

type SettingsUpdate struct {
	EmitRateLimit  *int    `json:"emit_rate_limit,omitempty"`
	EmitRateWindow *string `json:"emit_rate_window,omitempty"`
	FeedLimit      *int    `json:"feed_limit,omitempty"`
}

type HealthResponse struct {
	Status       string `json:"status"`
	Version      string `json:"version"`
	Time         string `json:"time"`
	DB           string `json:"db"`
	Cache        string `json:"cache"`
	DispatchMode string `json:"dispatch_mode"`
}

type ErrorResponse struct {
	Error  string              `json:"error"`
	Fields map[string][]string `json:"fields,omitempty"`
}

// NotifyClient calls the notify HTTP API.
type NotifyClient struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

func NewClient(baseURL, token string) *NotifyClient {
	return &NotifyClient{BaseURL: baseURL, Token: token, HTTP: &http.Client{Timeout: 30 * time.Second}}
}

func (c *NotifyClient) do(method, path string, body, target any) error {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonBody)
	}

	u := c.BaseURL + path
	logVerbose("Making %s request to %s", method, u)
	req, err := http.NewRequest(method, u, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	logVerbose("Response status: %s", resp.Status)

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	// 207 carries an outcome with a partial failure; let the caller see it.
	if resp.StatusCode >= 400 {
		var errResp ErrorResponse
		if err := json.Unmarshal(data, &errResp); err == nil && errResp.Error != "" {
			if len(errResp.Fields) > 0 {
				return fmt.Errorf("API error (%d): %s %v", resp.StatusCode, errResp.Error, errResp.Fields)
			}
			return fmt.Errorf("API error (%d): %s", resp.StatusCode, errResp.Error)
		}
		return fmt.Errorf("API error (%d): %s", resp.StatusCode, string(data))
	}
	if target != nil && len(data) > 0 {
		if err := json.Unmarshal(data, target); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}
	return nil
}

func (c *NotifyClient) Catalog() ([]CatalogEntry, error) {
	var out []CatalogEntry
	return out, c.do(http.MethodGet, "/api/v1/events/catalog", nil, &out)
}

// Emit posts an event. With wait the server dispatches synchronously and
// returns the outcome.
func (c *NotifyClient) Emit(req EmitRequest, wait bool) (EmitResponse, error) {
	path := "/api/v1/events"
	if wait {
		path += "?wait=true"
	}
	var out EmitResponse
	return out, c.do(http.MethodPost, path, req, &out)
}

func (c *NotifyClient) Feed(limit int) (Feed, error) {
	path := "/api/v1/notifications"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out Feed
	return out, c.do(http.MethodGet, path, nil, &out)
}

func (c *NotifyClient) UnreadCount() (int, error) {
	var out struct {
		Unread int `json:"unread"`
	}
	return out.Unread, c.do(http.MethodGet, "/api/v1/notifications/unread-count", nil, &out)
}

func (c *NotifyClient) MarkRead(id string) error {
	return c.do(http.MethodPatch, "/api/v1/notifications/"+url.PathEscape(id)+"/read", nil, nil)
}

func (c *NotifyClient) MarkAllRead() (int, error) {
	var out struct {
		Marked int `json:"marked"`
	}
	return out.Marked, c.do(http.MethodPost, "/api/v1/notifications/read-all", nil, &out)
}

func (c *NotifyClient) AddMember(userID, name, email, role string) (Member, error) {
	body := map[string]string{"user_id": userID, "display_name": name, "email": email, "role": role}
	var out Member
	return out, c.do(http.MethodPost, "/api/v1/directory/members", body, &out)
}

func (c *NotifyClient) ListMembers(q MemberQuery) (MemberPage, error) {
	v := url.Values{}
	if q.Query != "" {
		v.Set("q", q.Query)
	}
	if q.Role != "" {
		v.Set("role", q.Role)
	}
	v.Set("active", strconv.Itoa(q.Active))
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.PageSize > 0 {
		v.Set("page_size", strconv.Itoa(q.PageSize))
	}
	var out MemberPage
	return out, c.do(http.MethodGet, "/api/v1/directory/members?"+v.Encode(), nil, &out)
}

func (c *NotifyClient) DeactivateMember(userID string) error {
	return c.do(http.MethodPatch, "/api/v1/directory/members/"+url.PathEscape(userID)+"/deactivate", nil, nil)
}

func (c *NotifyClient) GetSettings() (Settings, error) {
	var out Settings
	return out, c.do(http.MethodGet, "/api/v1/settings", nil, &out)
}

func (c *NotifyClient) UpdateSettings(u SettingsUpdate) error {
	return c.do(http.MethodPut, "/api/v1/settings", u, nil)
}

func (c *NotifyClient) Health() (HealthResponse, error) {
	var out HealthResponse
	return out, c.do(http.MethodGet, "/healthz", nil, &out)
}
