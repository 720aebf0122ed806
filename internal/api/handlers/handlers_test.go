package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Ayash-Bera/shopassist/backend/internal/health"
	"github.com/Ayash-Bera/shopassist/backend/internal/models"
	"github.com/Ayash-Bera/shopassist/backend/internal/services"
	"github.com/Ayash-Bera/shopassist/backend/pkg/utils"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

type fakeChat struct {
	resp  models.AgentResponse
	err   error
	calls int
	req   models.ChatRequest
	meta  services.RequestMeta
}

func (f *fakeChat) Chat(ctx context.Context, req models.ChatRequest, meta services.RequestMeta) (models.AgentResponse, error) {
	f.calls++
	f.req = req
	f.meta = meta
	return f.resp, f.err
}

var testLimits = ChatLimits{MaxMessageChars: 10, MaxHistoryTurns: 2, RequestTimeout: time.Second}

func postChat(t *testing.T, h *ChatHandler, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	r := gin.New()
	r.POST("/", h.HandleChat)

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandleChat_Text(t *testing.T) {
	chat := &fakeChat{resp: &models.TextResponse{Content: "Hello!"}}
	h := NewChatHandler(chat, testLimits, quietLogger())

	w := postChat(t, h, `{"history":[{"role":"user","content":"hi"},{"role":"assistant","content":"yo"}],"message":"  Hi  "}`, nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"content":"Hello!"}`, w.Body.String())
	assert.Equal(t, 1, chat.calls)
	assert.Equal(t, "Hi", chat.req.Message)
	assert.Len(t, chat.req.History, 2)
	assert.NotEmpty(t, chat.meta.Session)
}

func TestHandleChat_Products(t *testing.T) {
	chat := &fakeChat{resp: &models.ProductResponse{QueryUsed: "crm"}}
	h := NewChatHandler(chat, testLimits, quietLogger())

	w := postChat(t, h, `{"history":[],"message":"crm tools"}`, map[string]string{"X-Session-ID": "abc"})

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"products":[],"query_used":"crm"}`, w.Body.String())
	assert.Equal(t, "abc", chat.meta.Session)
}

func TestHandleChat_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"malformed json", `{"message":`, "Invalid request format"},
		{"empty message", `{"history":[],"message":"   "}`, "Message cannot be empty"},
		{"message too long", `{"history":[],"message":"ééééééééééé"}`, "Message too long"},
		{"too many turns", `{"history":[{"role":"user","content":"a"},{"role":"assistant","content":"b"},{"role":"user","content":"c"}],"message":"hi"}`, "History too long"},
		{"invalid role", `{"history":[{"role":"system","content":"a"}],"message":"hi"}`, "invalid role"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chat := &fakeChat{resp: &models.TextResponse{Content: "x"}}
			h := NewChatHandler(chat, testLimits, quietLogger())

			w := postChat(t, h, tt.body, nil)

			require.Equal(t, http.StatusBadRequest, w.Code)
			var body utils.APIResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.False(t, body.Success)
			assert.Contains(t, body.Message, tt.want)
			assert.Zero(t, chat.calls)
		})
	}
}

func TestHandleChat_MessageAtLimitAccepted(t *testing.T) {
	chat := &fakeChat{resp: &models.TextResponse{Content: "ok"}}
	h := NewChatHandler(chat, testLimits, quietLogger())

	w := postChat(t, h, `{"message":"`+strings.Repeat("é", 10)+`"}`, nil)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHandleChat_TransportFailure(t *testing.T) {
	chat := &fakeChat{err: errors.New("agent failed: connection refused")}
	h := NewChatHandler(chat, testLimits, quietLogger())

	w := postChat(t, h, `{"history":[],"message":"hi"}`, nil)

	require.Equal(t, http.StatusBadGateway, w.Code)
	var body utils.APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, UnavailableMessage, body.Message)
	assert.NotContains(t, w.Body.String(), "connection refused")
}

type fakeQueries struct {
	limit int
	rows  []models.PopularQuery
	err   error
}

func (f *fakeQueries) PopularQueries(ctx context.Context, limit int) ([]models.PopularQuery, error) {
	f.limit = limit
	return f.rows, f.err
}

func getPopular(h *QueryHandler, target string) *httptest.ResponseRecorder {
	r := gin.New()
	r.GET("/api/v1/queries/popular", h.HandlePopularQueries)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func TestHandlePopularQueries_Limits(t *testing.T) {
	tests := []struct {
		target string
		want   int
	}{
		{"/api/v1/queries/popular", services.DefaultPopularLimit},
		{"/api/v1/queries/popular?limit=5", 5},
		{"/api/v1/queries/popular?limit=500", services.MaxPopularQueries},
		{"/api/v1/queries/popular?limit=abc", services.DefaultPopularLimit},
		{"/api/v1/queries/popular?limit=-1", services.DefaultPopularLimit},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			source := &fakeQueries{rows: []models.PopularQuery{{QueryText: "crm", SearchCount: 3}}}
			w := getPopular(NewQueryHandler(source, quietLogger()), tt.target)

			require.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tt.want, source.limit)
			assert.Contains(t, w.Body.String(), `"query_text":"crm"`)
		})
	}
}

func TestHandlePopularQueries_Error(t *testing.T) {
	source := &fakeQueries{err: errors.New("db down")}
	w := getPopular(NewQueryHandler(source, quietLogger()), "/api/v1/queries/popular")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "db down")
}

type fakeReporter struct {
	cached    *health.OverallHealth
	live      health.OverallHealth
	liveCalls int
}

func (f *fakeReporter) CheckCached(ctx context.Context) (*health.OverallHealth, error) {
	if f.cached == nil {
		return nil, errors.New("not cached")
	}
	return f.cached, nil
}

func (f *fakeReporter) CheckAll(ctx context.Context) health.OverallHealth {
	f.liveCalls++
	return f.live
}

func getHealth(h *HealthHandler, target string) *httptest.ResponseRecorder {
	r := gin.New()
	r.GET("/health", h.HandleHealth)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func TestHandleHealth(t *testing.T) {
	t.Run("cached snapshot", func(t *testing.T) {
		reporter := &fakeReporter{cached: &health.OverallHealth{Status: health.StatusHealthy}}
		w := getHealth(NewHealthHandler(reporter), "/health")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Zero(t, reporter.liveCalls)
	})

	t.Run("fresh forces live probe", func(t *testing.T) {
		reporter := &fakeReporter{
			cached: &health.OverallHealth{Status: health.StatusHealthy},
			live:   health.OverallHealth{Status: health.StatusDegraded},
		}
		w := getHealth(NewHealthHandler(reporter), "/health?fresh=true")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 1, reporter.liveCalls)
		assert.Contains(t, w.Body.String(), `"status":"degraded"`)
	})

	t.Run("unhealthy is 503", func(t *testing.T) {
		reporter := &fakeReporter{live: health.OverallHealth{Status: health.StatusUnhealthy}}
		w := getHealth(NewHealthHandler(reporter), "/health")

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, 1, reporter.liveCalls)
	})
}
