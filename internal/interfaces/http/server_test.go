package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/justifi/internal/container"
)

type testServer struct {
	server    *Server
	container *container.Container
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *ErrorBody      `json:"error"`
}

func newTestServer(t *testing.T, rl RateLimitConfig) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := container.DefaultConfig()
	cfg.Notification.PollInterval = time.Hour
	c, err := container.NewContainer(cfg, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background()))
	t.Cleanup(func() { _ = c.Close() })

	srvCfg := DefaultServerConfig()
	srvCfg.RateLimit = rl
	srv := NewServer(srvCfg, Dependencies{
		Engine:    c.Engine(),
		Query:     c.Services().Query,
		Rules:     c.Services().Rules,
		Types:     c.Services().Types,
		Templates: c.Services().Templates,
		Users:     c.Services().Users,
		Exporter:  c.Exporter(),
		Health:    c,
		Metrics:   c.Metrics(),
		Version:   "test",
	}, zap.NewNop())

	return &testServer{server: srv, container: c}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	ts.server.Router().ServeHTTP(w, req)

	var env envelope
	if w.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func (ts *testServer) submit(t *testing.T) string {
	t.Helper()

	w, env := ts.do(t, http.MethodPost, "/api/rules", map[string]any{
		"name":            "default",
		"approver_emails": []string{"lead@corp.example", "cfo@corp.example"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.True(t, env.Success)

	w, env = ts.do(t, http.MethodPost, "/api/justifications", submitBody())
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	require.NotEmpty(t, created.ID)
	return created.ID
}

func submitBody() map[string]any {
	return map[string]any{
		"title":           "Load balancer upgrade",
		"type_code":       "CAPEX",
		"department":      "Platform",
		"cost_centre":     "CC-310",
		"requester_email": "ops@corp.example",
		"urgency":         "High",
		"description":     "Current appliances are end of life",
		"cost_estimate":   18000.5,
	}
}

type detailBody struct {
	Justification struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"justification"`
	Tasks []struct {
		ID            string `json:"id"`
		ApproverEmail string `json:"approver_email"`
		Status        string `json:"status"`
	} `json:"approval_tasks"`
	Comments []json.RawMessage `json:"comments"`
}

func (ts *testServer) detail(t *testing.T, id string) detailBody {
	t.Helper()
	w, env := ts.do(t, http.MethodGet, "/api/justifications/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var d detailBody
	require.NoError(t, json.Unmarshal(env.Data, &d))
	return d
}

func TestHealthEndpoints(t *testing.T) {
	ts := newTestServer(t, RateLimitConfig{})

	w, env := ts.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)
	assert.Contains(t, string(env.Data), `"version":"test"`)

	w, env = ts.do(t, http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)

	require.NoError(t, ts.container.Close())
	w, env = ts.do(t, http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.False(t, env.Success)
}

func TestSubmitAndApproveFlow(t *testing.T) {
	ts := newTestServer(t, RateLimitConfig{})
	id := ts.submit(t)

	d := ts.detail(t, id)
	assert.Equal(t, "PendingApproval", d.Justification.Status)
	require.Len(t, d.Tasks, 2)

	w, env := ts.do(t, http.MethodGet, "/api/inbox?approver_email=lead@corp.example", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var inbox []json.RawMessage
	require.NoError(t, json.Unmarshal(env.Data, &inbox))
	assert.Len(t, inbox, 1)

	for _, task := range d.Tasks {
		w, env = ts.do(t, http.MethodPost, "/api/approvals/"+task.ID+"/approve", map[string]any{
			"actor_email": task.ApproverEmail,
			"comment":     "ok",
		})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.JSONEq(t, `{"ok":true}`, string(env.Data))
	}

	assert.Equal(t, "Approved", ts.detail(t, id).Justification.Status)

	w, env = ts.do(t, http.MethodGet, "/api/justifications?status=Approved", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []json.RawMessage
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Len(t, list, 1)
}

func TestRequestInfoResubmitAndComments(t *testing.T) {
	ts := newTestServer(t, RateLimitConfig{})
	id := ts.submit(t)
	task := ts.detail(t, id).Tasks[0]

	w, _ := ts.do(t, http.MethodPost, "/api/approvals/"+task.ID+"/request-info", map[string]any{
		"actor_email": task.ApproverEmail,
		"reason":      "Attach the vendor quote",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "NeedsMoreInfo", ts.detail(t, id).Justification.Status)

	w, _ = ts.do(t, http.MethodPost, "/api/justifications/"+id+"/comments", map[string]any{
		"author_email": "ops@corp.example",
		"message":      "Quote attached",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w, _ = ts.do(t, http.MethodPost, "/api/justifications/"+id+"/resubmit", map[string]any{
		"actor_email": "ops@corp.example",
		"message":     "Updated",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	d := ts.detail(t, id)
	assert.Equal(t, "PendingApproval", d.Justification.Status)
	assert.NotEmpty(t, d.Comments)
}

func TestRejectFallsBackToComment(t *testing.T) {
	ts := newTestServer(t, RateLimitConfig{})
	id := ts.submit(t)
	task := ts.detail(t, id).Tasks[0]

	w, env := ts.do(t, http.MethodPost, "/api/approvals/"+task.ID+"/reject", map[string]any{
		"actor_email": task.ApproverEmail,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "InvalidArgument", env.Error.Kind)

	w, _ = ts.do(t, http.MethodPost, "/api/approvals/"+task.ID+"/reject", map[string]any{
		"actor_email": task.ApproverEmail,
		"comment":     "Over budget",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Rejected", ts.detail(t, id).Justification.Status)
}

func TestErrorMapping(t *testing.T) {
	ts := newTestServer(t, RateLimitConfig{})
	id := ts.submit(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		kind   string
	}{
		{"unknown justification", http.MethodGet, "/api/justifications/missing", nil, http.StatusNotFound, "NotFound"},
		{"unknown task", http.MethodPost, "/api/approvals/missing/approve", map[string]any{"actor_email": "a@corp.example"}, http.StatusNotFound, "NotFound"},
		{"malformed body", http.MethodPost, "/api/justifications", "not an object", http.StatusBadRequest, "InvalidArgument"},
		{"missing fields", http.MethodPost, "/api/justifications", map[string]any{"title": "x"}, http.StatusBadRequest, "InvalidArgument"},
		{"bad limit", http.MethodGet, "/api/justifications?limit=ten", nil, http.StatusBadRequest, "InvalidArgument"},
		{"inbox without approver", http.MethodGet, "/api/inbox", nil, http.StatusBadRequest, "InvalidArgument"},
		{"cancel by stranger", http.MethodPost, "/api/justifications/" + id + "/cancel", map[string]any{"actor_email": "x@corp.example", "reason": "no"}, http.StatusConflict, "Conflict"},
		{"resubmit while pending", http.MethodPost, "/api/justifications/" + id + "/resubmit", map[string]any{"actor_email": "ops@corp.example"}, http.StatusConflict, "Conflict"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, env := ts.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.False(t, env.Success)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.kind, env.Error.Kind)
			assert.NotEmpty(t, env.Error.Message)
		})
	}
}

func TestAdminRoutes(t *testing.T) {
	ts := newTestServer(t, RateLimitConfig{})

	w, _ := ts.do(t, http.MethodPost, "/api/types", map[string]any{
		"code": "CAPEX",
		"name": "Capital expense",
		"dynamic_fields": []map[string]any{
			{"key": "asset_tag", "label": "Asset tag", "type": "text", "required": true},
		},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w, _ = ts.do(t, http.MethodPost, "/api/types", map[string]any{"code": "CAPEX", "name": "Again"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w, env := ts.do(t, http.MethodGet, "/api/types/CAPEX", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), "asset_tag")

	w, _ = ts.do(t, http.MethodGet, "/api/types/OPEX", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// the registered type now requires its dynamic field
	w, _ = ts.do(t, http.MethodPost, "/api/rules", map[string]any{
		"name":            "capex",
		"type_code":       "CAPEX",
		"approver_emails": []string{"cfo@corp.example"},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	w, env = ts.do(t, http.MethodPost, "/api/justifications", submitBody())
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	require.NotNil(t, env.Error)

	w, env = ts.do(t, http.MethodGet, "/api/rules", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var rules []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &rules))
	require.Len(t, rules, 1)

	w, _ = ts.do(t, http.MethodPut, "/api/rules/"+rules[0].ID, map[string]any{
		"name":            "capex-renamed",
		"approver_emails": []string{"cfo@corp.example", "ceo@corp.example"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, env = ts.do(t, http.MethodGet, "/api/rules/"+rules[0].ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), "capex-renamed")
}

func TestTemplateRoutesRenderNotifications(t *testing.T) {
	ts := newTestServer(t, RateLimitConfig{})

	w, _ := ts.do(t, http.MethodPut, "/api/templates/welcome", map[string]any{"subject": "s", "html": "h"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = ts.do(t, http.MethodPut, "/api/templates/submitted", map[string]any{"subject": "{{.Nope}}", "html": "h"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = ts.do(t, http.MethodGet, "/api/templates/submitted", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = ts.do(t, http.MethodPut, "/api/templates/submitted", map[string]any{
		"subject": "Received: {{.Title}}",
		"html":    "<p>We got {{.Title}} from {{.RequesterEmail}}</p>",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, env := ts.do(t, http.MethodGet, "/api/templates", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"key":"submitted"`)

	ts.submit(t)

	pending, err := ts.container.Repositories().Notifications.ListPending(context.Background(), 10)
	require.NoError(t, err)
	var subjects []string
	for _, n := range pending {
		subjects = append(subjects, n.Subject)
		if n.Subject == "Received: Load balancer upgrade" {
			assert.Equal(t, "<p>We got Load balancer upgrade from ops@corp.example</p>", n.Body)
		}
	}
	assert.Contains(t, subjects, "Received: Load balancer upgrade")
	assert.Contains(t, subjects, "New approval request")

	w, _ = ts.do(t, http.MethodDelete, "/api/templates/submitted", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestUserRoutesGateRuleApprovers(t *testing.T) {
	ts := newTestServer(t, RateLimitConfig{})

	w, _ := ts.do(t, http.MethodPut, "/api/users/dev@corp.example", map[string]any{"name": "Dev"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w, _ = ts.do(t, http.MethodPut, "/api/users/CFO@corp.example", map[string]any{"name": "CFO", "role": "approver"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w, _ = ts.do(t, http.MethodPut, "/api/users/x@corp.example", map[string]any{"name": "X", "role": "owner"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env := ts.do(t, http.MethodGet, "/api/users/cfo@corp.example", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"role":"approver"`)

	w, _ = ts.do(t, http.MethodPost, "/api/rules", map[string]any{
		"name":            "dev-approves",
		"approver_emails": []string{"dev@corp.example"},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = ts.do(t, http.MethodPost, "/api/rules", map[string]any{
		"name":            "cfo-approves",
		"approver_emails": []string{"cfo@corp.example"},
	})
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w, _ = ts.do(t, http.MethodDelete, "/api/users/dev@corp.example", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = ts.do(t, http.MethodGet, "/api/users/dev@corp.example", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestExportJustification(t *testing.T) {
	ts := newTestServer(t, RateLimitConfig{})
	id := ts.submit(t)

	w, _ := ts.do(t, http.MethodGet, "/api/justifications/"+id+"/export", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, ts.container.Exporter().ContentType(), w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "justification-"+id+".xlsx")
	// xlsx is a zip archive
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("PK")))

	w, _ = ts.do(t, http.MethodGet, "/api/justifications/missing/export", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRateLimitAppliesToWrites(t *testing.T) {
	ts := newTestServer(t, RateLimitConfig{Enabled: true, RPS: 0.001, Burst: 2})

	for i := 0; i < 2; i++ {
		w, _ := ts.do(t, http.MethodPost, "/api/justifications", map[string]any{})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	}
	w, env := ts.do(t, http.MethodPost, "/api/justifications", map[string]any{})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, KindRateLimited, env.Error.Kind)

	// reads are not limited
	for i := 0; i < 5; i++ {
		w, _ = ts.do(t, http.MethodGet, "/api/justifications", nil)
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestRequestIDAndCORS(t *testing.T) {
	ts := newTestServer(t, RateLimitConfig{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	w := httptest.NewRecorder()
	ts.server.Router().ServeHTTP(w, req)
	assert.Equal(t, "req-123", w.Header().Get(RequestIDHeader))
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	w = httptest.NewRecorder()
	ts.server.Router().ServeHTTP(w, req)
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))

	req = httptest.NewRequest(http.MethodOptions, "/api/justifications", nil)
	w = httptest.NewRecorder()
	ts.server.Router().ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, RateLimitConfig{})
	ts.submit(t)

	scrape := func() string {
		req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
		w := httptest.NewRecorder()
		ts.server.Router().ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)
		return w.Body.String()
	}

	// transitions are counted by an async event handler
	assert.Eventually(t, func() bool {
		return strings.Contains(scrape(), "justifi_workflow_transitions_total")
	}, 2*time.Second, 10*time.Millisecond)
	assert.Contains(t, scrape(), "http_requests_total")
}

func TestIPRateLimiterSweepsIdleVisitors(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := newIPRateLimiter(1, 1)
	l.now = func() time.Time { return now }

	assert.True(t, l.allow("10.0.0.1"))
	assert.False(t, l.allow("10.0.0.1"))
	assert.True(t, l.allow("10.0.0.2"))

	now = now.Add(11 * time.Minute)
	assert.True(t, l.allow("10.0.0.3"))
	l.mu.Lock()
	_, kept := l.visitors["10.0.0.1"]
	l.mu.Unlock()
	assert.False(t, kept)
}
