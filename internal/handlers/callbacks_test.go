package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/mvasquez-dev/photoloom-backend/internal/platform/compute"
)

type fakeRouter struct {
	got []compute.Completion
	err error
}

func (f *fakeRouter) HandleCompletion(ctx context.Context, completion compute.Completion) error {
	f.got = append(f.got, completion)
	return f.err
}

func postCompletion(t *testing.T, router *fakeRouter, body string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.POST("/internal/intelligence/callbacks", NewCallbacksHandler(router).HandleCompletion)

	req := httptest.NewRequest(http.MethodPost, "/internal/intelligence/callbacks", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func TestHandleCompletionAccepts(t *testing.T) {
	router := &fakeRouter{}
	rec := postCompletion(t, router, `{
		"job_id": "job-1",
		"task_type": "clip_embedding",
		"status": "succeeded",
		"result": {"vector": [0.1, 0.2]}
	}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status want=200 got=%d body=%s", rec.Code, rec.Body)
	}
	if len(router.got) != 1 {
		t.Fatalf("completions forwarded want=1 got=%d", len(router.got))
	}
	if router.got[0].JobID != "job-1" {
		t.Fatalf("job id want=job-1 got=%s", router.got[0].JobID)
	}
}

func TestHandleCompletionRejectsInvalid(t *testing.T) {
	router := &fakeRouter{}

	for name, body := range map[string]string{
		"not json":     `{`,
		"missing id":   `{"task_type": "clip_embedding", "status": "succeeded"}`,
		"unknown task": `{"job_id": "job-1", "task_type": "palm_reading", "status": "succeeded"}`,
	} {
		rec := postCompletion(t, router, body)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: status want=400 got=%d", name, rec.Code)
		}
	}
	if len(router.got) != 0 {
		t.Fatalf("invalid payloads must not reach the router, got %d", len(router.got))
	}
}

func TestHandleCompletionSurfacesRouterFailure(t *testing.T) {
	router := &fakeRouter{err: errors.New("store unavailable")}
	rec := postCompletion(t, router, `{
		"job_id": "job-1",
		"task_type": "face_detection",
		"status": "failed",
		"error": "oom"
	}`)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status want=500 got=%d", rec.Code)
	}
}
