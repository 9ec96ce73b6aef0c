package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tellnow/backend/internal/ai"
	"tellnow/backend/internal/classifier"
)

type scriptedCompleter struct {
	geo   string
	class string
}

func (s *scriptedCompleter) Enabled() bool { return true }

func (s *scriptedCompleter) Complete(_ context.Context, req ai.CompletionRequest) (string, error) {
	user := req.Messages[len(req.Messages)-1].Content
	if strings.Contains(user, "Analyze this problem") {
		return s.class, nil
	}
	return s.geo, nil
}

func romeCompleter() *scriptedCompleter {
	return &scriptedCompleter{
		geo:   `{"city": "Roma", "coordinates": [41.89, 12.49]}`,
		class: `Ecco: {"category": "roads", "urgency": "HIGH", "explanation": "Buca pericolosa"}`,
	}
}

func newTestServer(t *testing.T, completer ai.Completer) (*Server, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	server, err := NewServer(Config{
		DBPath:    filepath.Join(t.TempDir(), "tellnow.db"),
		SilentDB:  true,
		Completer: completer,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = server.Close() })
	router, err := server.Router()
	require.NoError(t, err)
	return server, router
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch v := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(v))
	default:
		payload, err := json.Marshal(v)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealthEndpoints(t *testing.T) {
	_, router := newTestServer(t, nil)
	for _, path := range []string{"/api/check", "/api/healthz"} {
		rec := doJSON(t, router, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	}
}

func TestClassifyValidation(t *testing.T) {
	_, router := newTestServer(t, romeCompleter())
	tests := []struct {
		name string
		body any
	}{
		{"empty body", nil},
		{"malformed json", `{"text": `},
		{"blank text", ClassifyRequest{Text: "   ", Cap: "00184"}},
		{"missing cap", ClassifyRequest{Text: "Buca"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := doJSON(t, router, http.MethodPost, "/api/classify", tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			body := decode[map[string]string](t, rec)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestClassifyStoresIssue(t *testing.T) {
	_, router := newTestServer(t, romeCompleter())

	for _, path := range []string{"/api/classify", "/api/classify/"} {
		rec := doJSON(t, router, http.MethodPost, path, ClassifyRequest{Text: "Buca enorme in via Nazionale", Cap: "00184"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		got := decode[IssueDTO](t, rec)
		assert.NotZero(t, got.ID)
		assert.Equal(t, "Buca enorme in via Nazionale", got.Text)
		assert.Equal(t, "00184", got.Cap)
		assert.Equal(t, "web", got.Source)
		assert.Equal(t, "ok", got.Status)
		assert.NotEmpty(t, got.RequestID)
		assert.False(t, got.Timestamp.IsZero())
		assert.Equal(t, classifier.Result{
			Category:    "roads",
			Urgency:     "high",
			Explanation: "Buca pericolosa",
			City:        "Roma",
			Coordinates: [2]float64{41.89, 12.49},
		}, got.Classification)

		fetched := doJSON(t, router, http.MethodGet, "/api/issues/"+itoa(got.ID), nil)
		require.Equal(t, http.StatusOK, fetched.Code)
		assert.Equal(t, got.Classification, decode[IssueDTO](t, fetched).Classification)
	}
}

func TestClassifyWithoutModelStoresDefaults(t *testing.T) {
	_, router := newTestServer(t, nil)

	rec := doJSON(t, router, http.MethodPost, "/api/classify", ClassifyRequest{Text: "Lampione spento", Cap: "20121"})
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[IssueDTO](t, rec)
	assert.Equal(t, "failed", got.Status)
	assert.NotEmpty(t, got.Reason)
	assert.Equal(t, classifier.DefaultResult(), got.Classification)
}

func TestGetIssueErrors(t *testing.T) {
	_, router := newTestServer(t, nil)

	assert.Equal(t, http.StatusNotFound, doJSON(t, router, http.MethodGet, "/api/issues/42", nil).Code)
	assert.Equal(t, http.StatusBadRequest, doJSON(t, router, http.MethodGet, "/api/issues/abc", nil).Code)
	assert.Equal(t, http.StatusBadRequest, doJSON(t, router, http.MethodGet, "/api/issues/0", nil).Code)
}

func TestListIssuesAndStats(t *testing.T) {
	completer := romeCompleter()
	_, router := newTestServer(t, completer)

	post := func(text, postalCode string) {
		rec := doJSON(t, router, http.MethodPost, "/api/classify", ClassifyRequest{Text: text, Cap: postalCode})
		require.Equal(t, http.StatusOK, rec.Code)
	}
	post("buca 1", "00184")
	post("buca 2", "00184")
	completer.class = `{"category": "waste", "urgency": "low", "explanation": "Rifiuti"}`
	post("rifiuti", "20121")

	rec := doJSON(t, router, http.MethodGet, "/api/issues?category=roads&pageSize=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[IssuesResponse](t, rec)
	assert.EqualValues(t, 2, page.Total)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "buca 2", page.Items[0].Text)

	rec = doJSON(t, router, http.MethodGet, "/api/issues?page=1&pageSize=1&category=roads", nil)
	page = decode[IssuesResponse](t, rec)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "buca 1", page.Items[0].Text)

	rec = doJSON(t, router, http.MethodGet, "/api/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[StatsResponse](t, rec)
	assert.EqualValues(t, 3, stats.Total)
	assert.EqualValues(t, 2, stats.HighUrgencyCount)
	require.NotNil(t, stats.TopCategory)
	assert.Equal(t, "roads", *stats.TopCategory)
	require.NotNil(t, stats.TopZone)
	assert.Equal(t, "00184", *stats.TopZone)
	assert.Equal(t, map[string]int64{"roads": 2, "waste": 1}, stats.CategoriesDistribution)
	assert.Equal(t, map[string]int64{"00184": 2, "20121": 1}, stats.ZonesDistribution)
	require.Len(t, stats.RecentIssues, 3)
	assert.Equal(t, "rifiuti", stats.RecentIssues[0].Text)
	assert.Equal(t, "waste", stats.RecentIssues[0].Category)
	assert.Equal(t, "Roma", stats.RecentIssues[0].City)
}

func TestStatsEmptyShape(t *testing.T) {
	_, router := newTestServer(t, nil)
	rec := doJSON(t, router, http.MethodGet, "/api/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"total": 0,
		"high_urgency_count": 0,
		"top_category": null,
		"top_zone": null,
		"categories_distribution": {},
		"zones_distribution": {},
		"recent_issues": []
	}`, rec.Body.String())
}

func TestCategories(t *testing.T) {
	_, router := newTestServer(t, nil)
	rec := doJSON(t, router, http.MethodGet, "/api/categories", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string][]classifier.Category](t, rec)
	assert.Len(t, body["categories"], 24)
}

func TestCORSPreflight(t *testing.T) {
	_, router := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/classify", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Less(t, rec.Code, 300)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
	assert.Equal(t, "600", rec.Header().Get("Access-Control-Max-Age"))

	req = httptest.NewRequest(http.MethodOptions, "/api/classify", nil)
	req.Header.Set("Origin", "http://evil.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestIssueStreamBroadcasts(t *testing.T) {
	server, router := newTestServer(t, romeCompleter())
	httpServer := httptest.NewServer(router)
	defer httpServer.Close()

	wsURL := "ws" + strings.TrimPrefix(httpServer.URL, "http") + "/api/issues/stream"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return server.Notifier().Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	payload, err := json.Marshal(ClassifyRequest{Text: "Semaforo guasto", Cap: "00184"})
	require.NoError(t, err)
	resp, err := http.Post(httpServer.URL+"/api/classify", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var event IssueEvent
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, "issue", event.Type)
	require.NotNil(t, event.Issue)
	assert.Equal(t, "Semaforo guasto", event.Issue.Text)
	assert.Equal(t, "roads", event.Issue.Classification.Category)
	assert.False(t, event.Timestamp.IsZero())
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
