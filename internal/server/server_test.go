package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ken0yuan/auto-ai-web/internal/agent"
	"github.com/ken0yuan/auto-ai-web/internal/taskstore"
)

func newTestServer(t *testing.T, runner Runner) (*Server, *taskstore.Store) {
	t.Helper()
	store, err := taskstore.Open(filepath.Join(t.TempDir(), "tasks.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	if runner == nil {
		runner = RunnerFunc(func(ctx context.Context, url, task string) (*agent.Outcome, error) {
			return &agent.Outcome{Success: true, Message: "done", Steps: 1}, nil
		})
	}
	return New(nil, store, runner), store
}

func postJSON(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestSubmitAndStatus(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rec := postJSON(t, s.Router(), "/submit", map[string]string{
		"url":  "https://shop.test/",
		"task": "找到最便宜的耳机",
	})
	require.Equal(t, http.StatusAccepted, rec.Code)

	var created taskstore.Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, taskstore.StatusPending, created.Status)

	req := httptest.NewRequest(http.MethodGet, "/status/"+created.ID, nil)
	rec2 := httptest.NewRecorder()
	s.Router().ServeHTTP(rec2, req)
	require.Equal(t, http.StatusOK, rec2.Code)

	var got taskstore.Task
	require.NoError(t, json.Unmarshal(rec2.Body.Bytes(), &got))
	assert.Equal(t, created.ID, got.ID)
}

func TestSubmitValidation(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rec := postJSON(t, s.Router(), "/submit", map[string]string{"url": "https://x.test/"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/submit", bytes.NewReader([]byte("not json")))
	rec2 := httptest.NewRecorder()
	s.Router().ServeHTTP(rec2, req)
	assert.Equal(t, http.StatusBadRequest, rec2.Code)
}

func TestStatusUnknownTask(t *testing.T) {
	s, _ := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/status/does-not-exist", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWorkerCompletesTask(t *testing.T) {
	ran := make(chan string, 1)
	runner := RunnerFunc(func(ctx context.Context, url, task string) (*agent.Outcome, error) {
		ran <- task
		return &agent.Outcome{Success: true, Message: "已找到商品", Steps: 5}, nil
	})
	s, store := newTestServer(t, runner)

	created, err := store.Create(context.Background(), "https://shop.test/", "找商品")
	require.NoError(t, err)

	s.drainPending(context.Background())

	select {
	case task := <-ran:
		assert.Equal(t, "找商品", task)
	default:
		t.Fatal("runner was not invoked")
	}

	got, err := store.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, taskstore.StatusCompleted, got.Status)
	assert.Equal(t, "已找到商品", got.Result)
	assert.Equal(t, 5, got.Steps)
}

func TestWorkerRecordsFailure(t *testing.T) {
	runner := RunnerFunc(func(ctx context.Context, url, task string) (*agent.Outcome, error) {
		return nil, errors.New("browser exploded")
	})
	s, store := newTestServer(t, runner)

	created, err := store.Create(context.Background(), "https://shop.test/", "task")
	require.NoError(t, err)
	s.drainPending(context.Background())

	got, err := store.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, taskstore.StatusFailed, got.Status)
	assert.Contains(t, got.Error, "browser exploded")
}

func TestWorkerKeepsStepsOnExhaustion(t *testing.T) {
	runner := RunnerFunc(func(ctx context.Context, url, task string) (*agent.Outcome, error) {
		return &agent.Outcome{Success: false, Steps: 25}, fmt.Errorf("gave up: %w", agent.ErrLoopExhausted)
	})
	s, store := newTestServer(t, runner)

	created, err := store.Create(context.Background(), "https://shop.test/", "task")
	require.NoError(t, err)
	s.drainPending(context.Background())

	got, err := store.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, taskstore.StatusFailed, got.Status)
	assert.Equal(t, 25, got.Steps)
}

func TestWorkerDrainsQueueInOrder(t *testing.T) {
	var order []string
	runner := RunnerFunc(func(ctx context.Context, url, task string) (*agent.Outcome, error) {
		order = append(order, task)
		return &agent.Outcome{Success: true, Steps: 1}, nil
	})
	s, store := newTestServer(t, runner)

	ctx := context.Background()
	_, err := store.Create(ctx, "https://a.test/", "first")
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	_, err = store.Create(ctx, "https://b.test/", "second")
	require.NoError(t, err)

	s.drainPending(ctx)
	assert.Equal(t, []string{"first", "second"}, order)
}
