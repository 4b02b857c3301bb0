package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	reach "github.com/anatolykoptev/go-reach"
	"github.com/anatolykoptev/go-reach/kv"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// newTestService returns a real service whose dispatcher never runs, so
// submitted jobs stay pending.
func newTestService(t *testing.T, queueSize int) *reach.Service {
	t.Helper()
	store, err := kv.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	jobs := reach.NewJobStore(store)
	dispatcher := reach.NewDispatcher(reach.NewWorker(jobs, nil), 1, queueSize)
	return reach.NewService(jobs, dispatcher, reach.Config{MinFollowers: 3000, MaxDepth: 3})
}

func do(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req, err := http.NewRequest(method, path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeJob(t *testing.T, w *httptest.ResponseRecorder) reach.Job {
	t.Helper()
	var job reach.Job
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &job))
	return job
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestHandleHealth(t *testing.T) {
	router := NewRouter(NewHandlers(newTestService(t, 4)))

	w := do(t, router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestHandleMetrics(t *testing.T) {
	router := NewRouter(NewHandlers(newTestService(t, 4)))

	w := do(t, router, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestHandleAnalyze_CreatesJob(t *testing.T) {
	router := NewRouter(NewHandlers(newTestService(t, 4)))

	w := do(t, router, http.MethodPost, "/analyze", AnalyzeRequest{Username: "TestUser", Depth: 2})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	job := decodeJob(t, w)
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, reach.StatusPending, job.Status)
	assert.Equal(t, "testuser", job.Target)
	assert.Equal(t, 2, job.Depth)
	assert.Equal(t, 3000, job.MinFollowers)
	assert.Empty(t, job.Results)
	assert.Equal(t, "Job created, waiting to start", job.Progress)

	w = do(t, router, http.MethodGet, "/analyze/"+job.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, job.ID, decodeJob(t, w).ID)
}

func TestHandleAnalyze_DefaultDepth(t *testing.T) {
	router := NewRouter(NewHandlers(newTestService(t, 4)))

	w := do(t, router, http.MethodPost, "/analyze", `{"username":"alice"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 1, decodeJob(t, w).Depth)
}

func TestHandleAnalyze_MinFollowersOverride(t *testing.T) {
	router := NewRouter(NewHandlers(newTestService(t, 4)))

	w := do(t, router, http.MethodPost, "/analyze", `{"username":"alice","min_followers":10}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 10, decodeJob(t, w).MinFollowers)
}

func TestHandleAnalyze_Invalid(t *testing.T) {
	router := NewRouter(NewHandlers(newTestService(t, 4)))

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"malformed json", `{"username":`, http.StatusBadRequest},
		{"missing username", `{"depth":1}`, http.StatusUnprocessableEntity},
		{"username too long", `{"username":"abcdefghijklmnopqrstuvwxyz012345"}`, http.StatusUnprocessableEntity},
		{"depth zero", `{"username":"alice","depth":0}`, http.StatusUnprocessableEntity},
		{"depth above schema limit", `{"username":"alice","depth":11}`, http.StatusUnprocessableEntity},
		{"depth above configured max", `{"username":"alice","depth":4}`, http.StatusBadRequest},
		{"negative min_followers", `{"username":"alice","min_followers":-1}`, http.StatusUnprocessableEntity},
		{"handle only @", `{"username":"@"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, router, http.MethodPost, "/analyze", tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Equal(t, codeInvalidRequest, decodeError(t, w).Code)
		})
	}
}

func TestHandleAnalyze_QueueFull(t *testing.T) {
	router := NewRouter(NewHandlers(newTestService(t, 1)))

	w := do(t, router, http.MethodPost, "/analyze", `{"username":"alice"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, router, http.MethodPost, "/analyze", `{"username":"bob"}`)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, codeUnavailable, resp.Code)
	require.NotEmpty(t, resp.JobID)

	w = do(t, router, http.MethodGet, "/analyze/"+resp.JobID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	job := decodeJob(t, w)
	assert.Equal(t, reach.StatusFailed, job.Status)
	assert.Equal(t, "bob", job.Target)
}

func TestHandleGetJob_NotFound(t *testing.T) {
	router := NewRouter(NewHandlers(newTestService(t, 4)))

	w := do(t, router, http.MethodGet, "/analyze/does-not-exist", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, ErrorResponse{Error: "Job not found", Code: codeNotFound}, decodeError(t, w))
}

func TestHandleCancelJob(t *testing.T) {
	router := NewRouter(NewHandlers(newTestService(t, 4)))

	w := do(t, router, http.MethodPost, "/analyze", `{"username":"alice"}`)
	require.Equal(t, http.StatusOK, w.Code)
	id := decodeJob(t, w).ID

	w = do(t, router, http.MethodDelete, "/analyze/"+id, nil)
	assert.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	w = do(t, router, http.MethodDelete, "/analyze/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

type fakeService struct {
	job       *reach.Job
	submitErr error
	getErr    error
	cancelErr error
}

func (f *fakeService) SubmitJob(context.Context, string, int, ...reach.SubmitOption) (string, error) {
	if f.submitErr != nil {
		return "", f.submitErr
	}
	return f.job.ID, nil
}

func (f *fakeService) GetJob(context.Context, string) (*reach.Job, error) {
	return f.job, f.getErr
}

func (f *fakeService) CancelJob(context.Context, string) error {
	return f.cancelErr
}

func TestHandleCancelJob_Finished(t *testing.T) {
	svc := &fakeService{cancelErr: reach.ErrInvalidRequest}
	router := NewRouter(NewHandlers(svc))

	w := do(t, router, http.MethodDelete, "/analyze/done", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, codeConflict, decodeError(t, w).Code)
}

func TestHandleGetJob_CompletedResults(t *testing.T) {
	svc := &fakeService{job: &reach.Job{
		ID:     "j1",
		Status: reach.StatusCompleted,
		Target: "seed",
		Depth:  1,
		Results: []reach.ResultItem{
			{Handle: "alice", DisplayName: "Alice", FollowerCount: 5000, FollowingCount: 10, Depth: 1},
		},
		Progress: "Completed: found 1 accounts",
	}}
	router := NewRouter(NewHandlers(svc))

	w := do(t, router, http.MethodGet, "/analyze/j1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw))
	assert.Equal(t, "completed", raw["status"])
	assert.Equal(t, "seed", raw["target_username"])
	results := raw["results"].([]any)
	require.Len(t, results, 1)
	assert.Equal(t, "alice", results[0].(map[string]any)["username"])
}

func TestHandleAnalyze_InternalError(t *testing.T) {
	svc := &fakeService{submitErr: &reach.StoreError{Op: "create", Err: assert.AnError}}
	router := NewRouter(NewHandlers(svc))

	w := do(t, router, http.MethodPost, "/analyze", `{"username":"alice"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, codeInternal, decodeError(t, w).Code)
}
