package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/taskweave"
	"github.com/ZanzyTHEbar/taskweave/internal/configgen"
	"github.com/ZanzyTHEbar/taskweave/internal/llm"
	"github.com/ZanzyTHEbar/taskweave/internal/tools"
)

type blockingLLM struct{}

func (blockingLLM) Generate(ctx context.Context, _ string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func testDoc() taskweave.Document {
	return taskweave.Document{
		Agent: taskweave.AgentSettings{Framework: "sequential"},
		Tools: []taskweave.ToolDefinition{
			{Name: "Translate", Spec: taskweave.PromptSpec{Template: "Translate: {input}"}},
			{Name: "Summarize", DependsOn: []string{"Translate"}, Spec: taskweave.AnalysisSpec{Template: "Summarize {input}"}},
		},
	}
}

func newTestServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	s, err := New(context.Background(), testDoc(), opts...)
	require.NoError(t, err)
	return s
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestNew_InvalidDocument(t *testing.T) {
	doc := taskweave.Document{Tools: []taskweave.ToolDefinition{
		{Name: "A", DependsOn: []string{"Ghost"}, Spec: taskweave.PromptSpec{}},
	}}
	_, err := New(context.Background(), doc)
	assert.ErrorIs(t, err, taskweave.ErrUnknownDependency)
}

func TestHealthz(t *testing.T) {
	rr := do(t, newTestServer(t).Handler(), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}

func TestListTools(t *testing.T) {
	rr := do(t, newTestServer(t).Handler(), http.MethodGet, "/v1/tools", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Framework string   `json:"framework"`
		Order     []string `json:"order"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "sequential", body.Framework)
	assert.Equal(t, []string{"Translate", "Summarize"}, body.Order)
}

func TestCreateRun(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode int
	}{
		{name: "question", body: `{"question":"hola"}`, wantCode: http.StatusOK},
		{name: "input wins", body: `{"input":"hola","question":"other"}`, wantCode: http.StatusOK},
		{name: "missing question", body: `{"question":"  "}`, wantCode: http.StatusBadRequest},
		{name: "malformed", body: `{`, wantCode: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, newTestServer(t).Handler(), http.MethodPost, "/v1/runs", tt.body)
			assert.Equal(t, tt.wantCode, rr.Code, rr.Body.String())
			if tt.wantCode != http.StatusOK {
				return
			}
			var resp taskweave.Response
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
			assert.Equal(t, "hola", resp.Question)
			assert.Equal(t, llm.MockEcho("Translate: hola"), resp.Outputs["Translate"].Output)
			assert.Contains(t, resp.Outputs, "Summarize")
		})
	}
}

func TestAsyncRunCompletes(t *testing.T) {
	s := newTestServer(t)
	rr := do(t, s.Handler(), http.MethodPost, "/v1/runs?async=true", `{"question":"hola"}`)
	require.Equal(t, http.StatusAccepted, rr.Code)

	var accepted map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &accepted))
	id := accepted["id"]
	require.NotEmpty(t, id)
	assert.Equal(t, "/v1/runs/"+id, rr.Header().Get("Location"))

	require.Eventually(t, func() bool {
		view, err := s.Jobs().Get(id)
		return err == nil && view.Status == JobCompleted
	}, 2*time.Second, 10*time.Millisecond)

	rr = do(t, s.Handler(), http.MethodGet, "/v1/runs/"+id, "")
	require.Equal(t, http.StatusOK, rr.Code)
	var view JobView
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &view))
	assert.True(t, view.IsComplete)
	require.NotNil(t, view.Response)
	assert.Len(t, view.Response.Outputs, 2)

	rr = do(t, s.Handler(), http.MethodGet, "/v1/runs", "")
	assert.Contains(t, rr.Body.String(), id)
}

func TestAsyncRunCancel(t *testing.T) {
	s := newTestServer(t, WithOrchestratorOptions(taskweave.WithLLM(blockingLLM{})))
	rr := do(t, s.Handler(), http.MethodPost, "/v1/runs?async=1", `{"question":"hola"}`)
	require.Equal(t, http.StatusAccepted, rr.Code)
	var accepted map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &accepted))
	id := accepted["id"]

	rr = do(t, s.Handler(), http.MethodDelete, "/v1/runs/"+id, "")
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = do(t, s.Handler(), http.MethodDelete, "/v1/runs/"+id, "")
	assert.Equal(t, http.StatusConflict, rr.Code)

	s.Jobs().Wait()
	view, err := s.Jobs().Get(id)
	require.NoError(t, err)
	assert.Equal(t, JobCancelled, view.Status)
}

func TestGetRunNotFound(t *testing.T) {
	s := newTestServer(t)
	assert.Equal(t, http.StatusNotFound, do(t, s.Handler(), http.MethodGet, "/v1/runs/nope", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, s.Handler(), http.MethodDelete, "/v1/runs/nope", "").Code)
}

func TestGenerateConfig(t *testing.T) {
	s := newTestServer(t)
	assert.Equal(t, http.StatusNotImplemented, do(t, s.Handler(), http.MethodPost, "/v1/configs", `{"question":"q"}`).Code)

	gen := configgen.New(tools.Default(), llm.NewMock())
	s = newTestServer(t, WithGenerator(gen))
	rr := do(t, s.Handler(), http.MethodPost, "/v1/configs", `{"question":"Compare Q1 and Q2"}`)
	require.Equal(t, http.StatusOK, rr.Code)

	doc, err := taskweave.ParseDocument(rr.Body.Bytes())
	require.NoError(t, err)
	assert.Len(t, doc.Tools, 3)
	assert.Equal(t, configgen.FallbackReason, doc.Metadata["fallback_reason"])
}

func TestGenerateConfig_Filters(t *testing.T) {
	gen := configgen.New(tools.Default(), llm.NewMock())
	s := newTestServer(t, WithGenerator(gen))

	rr := do(t, s.Handler(), http.MethodPost, "/v1/configs", `{"question":"q","tools":["Problem*"]}`)
	require.Equal(t, http.StatusOK, rr.Code)
	doc, err := taskweave.ParseDocument(rr.Body.Bytes())
	require.NoError(t, err)
	require.Len(t, doc.Tools, 1)
	assert.Equal(t, "ProblemTranslator", doc.Tools[0].Name)

	rr = do(t, s.Handler(), http.MethodPost, "/v1/configs", `{"question":"q","tags":["ghost"]}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = do(t, s.Handler(), http.MethodPost, "/v1/configs", `{"question":"q","tools":["[unclosed"]}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusFor(taskweave.NewMissingQuestionError()))
	assert.Equal(t, http.StatusUnprocessableEntity, statusFor(taskweave.NewCycleDetectedError([]string{"A"})))
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(context.Canceled))
	assert.Equal(t, http.StatusInternalServerError, statusFor(assert.AnError))
}

func TestListenAndServeStopsOnCancel(t *testing.T) {
	s := newTestServer(t, WithShutdownTimeout(time.Second))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestListenAndServeCancelsStuckJobsAfterTimeout(t *testing.T) {
	s := newTestServer(t,
		WithShutdownTimeout(200*time.Millisecond),
		WithOrchestratorOptions(taskweave.WithLLM(blockingLLM{})))
	id := s.Jobs().Submit("hola", s.run)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown blocked on a stuck job")
	}

	view, err := s.Jobs().Get(id)
	require.NoError(t, err)
	assert.Equal(t, JobCancelled, view.Status)
	s.Jobs().Wait()
}

func TestCleanupInterval(t *testing.T) {
	tests := []struct {
		retention time.Duration
		want      time.Duration
	}{
		{retention: 1, want: minCleanupInterval},
		{retention: 0, want: minCleanupInterval},
		{retention: time.Hour, want: 15 * time.Minute},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, cleanupInterval(tt.retention), tt.retention.String())
	}
}

func TestListenAndServeTinyRetention(t *testing.T) {
	s := newTestServer(t, WithJobRetention(1), WithShutdownTimeout(time.Second))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx, "127.0.0.1:0") }()
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestJobsCleanup(t *testing.T) {
	jobs := NewJobs(nil, nil)
	id := jobs.Submit("q", func(context.Context, string) (*taskweave.Response, error) {
		return &taskweave.Response{Question: "q"}, nil
	})
	jobs.Wait()

	assert.Equal(t, 0, jobs.Cleanup(time.Hour))
	assert.Equal(t, 1, jobs.Cleanup(0))
	_, err := jobs.Get(id)
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestJobsFailedRun(t *testing.T) {
	jobs := NewJobs(nil, nil)
	id := jobs.Submit("q", func(context.Context, string) (*taskweave.Response, error) {
		return nil, assert.AnError
	})
	jobs.Wait()

	view, err := jobs.Get(id)
	require.NoError(t, err)
	assert.Equal(t, JobFailed, view.Status)
	assert.True(t, strings.Contains(view.Error, assert.AnError.Error()))
}
