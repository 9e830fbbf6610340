package server

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"api-analyzer/internal/config"
	"api-analyzer/internal/store"
)

const corpus = `{
  "services": [
    {
      "name": "users",
      "endpoints": [
        {"path": "/users", "method": "POST",
         "request_schema": {"properties": {"name": {}, "email": {}}},
         "response_schema": {"properties": {"id": {}, "name": {}, "email": {}}}},
        {"path": "/users/{id}", "method": "GET",
         "response_schema": {"properties": {"id": {}, "name": {}, "email": {}}}},
        {"path": "/users/{id}", "method": "DELETE"}
      ]
    },
    {
      "name": "orders",
      "endpoints": [
        {"path": "/orders", "method": "POST",
         "request_schema": {"properties": {"id": {}, "name": {}}},
         "response_schema": {"properties": {"order_id": {}, "status": {}}}}
      ]
    }
  ]
}`

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T) (*Server, *gin.Engine) {
	t.Helper()
	srv := NewServer(config.Default(), store.NewMemoryStore())
	srv.pushInterval = 10 * time.Millisecond
	return srv, srv.SetupRouter()
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

// runToCompletion 导入语料并等待分析任务结束
func runToCompletion(t *testing.T, srv *Server, r *gin.Engine) string {
	t.Helper()
	w := do(r, http.MethodPost, "/api/import", corpus)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(r, http.MethodPost, "/api/analyze", "")
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	var created struct {
		TaskID string `json:"task_id"`
		Status string `json:"status"`
	}
	decode(t, w, &created)
	require.NotEmpty(t, created.TaskID)
	assert.Equal(t, TaskPending, created.Status)

	require.Eventually(t, func() bool {
		task, ok := srv.snapshot(created.TaskID)
		return ok && task.done()
	}, 5*time.Second, 10*time.Millisecond)
	return created.TaskID
}

func TestImport(t *testing.T) {
	_, r := newTestServer(t)

	w := do(r, http.MethodPost, "/api/import", corpus)
	require.Equal(t, http.StatusOK, w.Code)
	var result struct {
		Services  int `json:"services_imported"`
		Endpoints int `json:"endpoints_imported"`
	}
	decode(t, w, &result)
	assert.Equal(t, 2, result.Services)
	assert.Equal(t, 4, result.Endpoints)

	w = do(r, http.MethodGet, "/api/endpoints", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":4`)
}

func TestImportRejectsInvalidCorpus(t *testing.T) {
	_, r := newTestServer(t)

	w := do(r, http.MethodPost, "/api/import", `{"services": [{"name": "x", "endpoints": [{"path": "/a", "method": "FETCH"}]}]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "FETCH")

	w = do(r, http.MethodPost, "/api/import", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestImportYAML(t *testing.T) {
	_, r := newTestServer(t)
	body := "services:\n  - name: users\n    endpoints:\n      - path: /users\n        method: get\n"
	req := httptest.NewRequest(http.MethodPost, "/api/import", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-yaml")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"endpoints_imported":1`)
}

func TestAnalyzeTaskLifecycle(t *testing.T) {
	srv, r := newTestServer(t)
	taskID := runToCompletion(t, srv, r)

	w := do(r, http.MethodGet, "/api/task/"+taskID, "")
	require.Equal(t, http.StatusOK, w.Code)
	var task AnalysisTask
	decode(t, w, &task)
	assert.Equal(t, TaskCompleted, task.Status)
	assert.Equal(t, 100, task.Progress)
	require.NotNil(t, task.Result)
	assert.Equal(t, 4, task.Result.Summary.TotalEndpoints)
	assert.Equal(t, 6, task.Result.Summary.PairsCompared)
	assert.Contains(t, task.Result.ReportMD, "# API 关系分析报告")
	assert.True(t, strings.HasPrefix(task.Result.GraphMermaid, "flowchart LR"))

	w = do(r, http.MethodGet, "/api/task/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAnalyzeRejectsBadThreshold(t *testing.T) {
	_, r := newTestServer(t)
	w := do(r, http.MethodPost, "/api/analyze", `{"similarity_threshold": 2}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/api/analyze", `{"similarity_threshold": `)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRelationshipQueries(t *testing.T) {
	srv, r := newTestServer(t)
	runToCompletion(t, srv, r)

	var list struct {
		Relationships []store.Relationship `json:"relationships"`
		Total         int                  `json:"total"`
		Limit         int                  `json:"limit"`
	}
	w := do(r, http.MethodGet, "/api/relationships", "")
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &list)
	require.NotEmpty(t, list.Relationships)
	assert.Equal(t, len(list.Relationships), list.Total)
	assert.Equal(t, 100, list.Limit)

	w = do(r, http.MethodGet, "/api/relationships?type=data_flow&min_similarity=0.5&limit=1", "")
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &list)
	require.Len(t, list.Relationships, 1)
	assert.Equal(t, store.RelationshipDataFlow, list.Relationships[0].Type)
	assert.GreaterOrEqual(t, list.Relationships[0].Score, 0.5)

	for _, bad := range []string{"type=foo", "min_similarity=abc", "min_similarity=1.5", "skip=-1", "limit=0", "limit=5000"} {
		w = do(r, http.MethodGet, "/api/relationships?"+bad, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, bad)
	}

	id := list.Relationships[0].ID
	w = do(r, http.MethodGet, fmt.Sprintf("/api/relationships/%d", id), "")
	require.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodDelete, fmt.Sprintf("/api/relationships/%d", id), "")
	require.Equal(t, http.StatusOK, w.Code)
	w = do(r, http.MethodGet, fmt.Sprintf("/api/relationships/%d", id), "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), `"error"`)
	w = do(r, http.MethodDelete, fmt.Sprintf("/api/relationships/%d", id), "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(r, http.MethodGet, "/api/relationships/abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAggregateEndpoints(t *testing.T) {
	srv, r := newTestServer(t)
	runToCompletion(t, srv, r)

	w := do(r, http.MethodGet, "/api/relationships/statistics", "")
	require.Equal(t, http.StatusOK, w.Code)
	var stats struct {
		TotalEndpoints int `json:"total_endpoints"`
		TotalServices  int `json:"total_services"`
	}
	decode(t, w, &stats)
	assert.Equal(t, 4, stats.TotalEndpoints)
	assert.Equal(t, 2, stats.TotalServices)

	w = do(r, http.MethodGet, "/api/relationships/graph", "")
	require.Equal(t, http.StatusOK, w.Code)
	var view struct {
		TotalNodes          int     `json:"total_nodes"`
		ConnectedComponents int     `json:"connected_components"`
		Density             float64 `json:"density"`
	}
	decode(t, w, &view)
	assert.Equal(t, 4, view.TotalNodes)
	assert.Greater(t, view.Density, 0.0)

	w = do(r, http.MethodGet, "/api/relationships/common-fields", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"field_name":"id"`)

	w = do(r, http.MethodGet, "/api/relationships/services/1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"service_name":"users"`)

	w = do(r, http.MethodGet, "/api/relationships/endpoints/2", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"endpoint_info"`)

	w = do(r, http.MethodGet, "/api/relationships/services/99", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = do(r, http.MethodGet, "/api/relationships/endpoints/99", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestWebSocketPushesUntilDone(t *testing.T) {
	srv, r := newTestServer(t)
	ts := httptest.NewServer(r)
	defer ts.Close()

	w := do(r, http.MethodPost, "/api/import", corpus)
	require.Equal(t, http.StatusOK, w.Code)
	w = do(r, http.MethodPost, "/api/analyze", `{"similarity_threshold": 0.5}`)
	require.Equal(t, http.StatusAccepted, w.Code)
	var created struct {
		TaskID string `json:"task_id"`
	}
	decode(t, w, &created)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/ws?task_id=" + created.TaskID
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var last AnalysisTask
	for {
		var task AnalysisTask
		if err := conn.ReadJSON(&task); err != nil {
			break
		}
		last = task
		if task.done() {
			break
		}
	}
	assert.Equal(t, TaskCompleted, last.Status)
	require.NotNil(t, last.Request.Threshold)
	assert.Equal(t, 0.5, *last.Request.Threshold)

	task, ok := srv.snapshot(created.TaskID)
	require.True(t, ok)
	assert.Equal(t, TaskCompleted, task.Status)

	w = do(r, http.MethodGet, "/api/ws", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = do(r, http.MethodGet, "/api/ws?task_id=missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestFailMapsErrors(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{fmt.Errorf("%w: x", errBadRequest), http.StatusBadRequest},
		{fmt.Errorf("查询失败: %w", store.ErrNotFound), http.StatusNotFound},
		{bytes.ErrTooLarge, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		fail(c, tt.err)
		assert.Equal(t, tt.code, w.Code)
		assert.Contains(t, w.Body.String(), `"error"`)
	}
}
