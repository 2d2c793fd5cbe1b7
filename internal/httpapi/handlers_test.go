package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/outage-watch/internal/db"
	"horse.fit/outage-watch/internal/extraction"
	"horse.fit/outage-watch/internal/jobs"
	"horse.fit/outage-watch/internal/pipeline"
	"horse.fit/outage-watch/internal/posts"
	"horse.fit/outage-watch/internal/reconcile"
)

type fakeRecordStore struct {
	pingErr   error
	items     []db.InterruptionSummary
	details   map[int64]*db.InterruptionDetail
	listCalls []db.InterruptionListOptions
}

func (s *fakeRecordStore) Ping(context.Context) error { return s.pingErr }

func (s *fakeRecordStore) ListInterruptions(_ context.Context, opts db.InterruptionListOptions) ([]db.InterruptionSummary, error) {
	s.listCalls = append(s.listCalls, opts)
	return s.items, nil
}

func (s *fakeRecordStore) GetInterruption(_ context.Context, id int64) (*db.InterruptionDetail, error) {
	detail, ok := s.details[id]
	if !ok {
		return nil, db.ErrNoRows
	}
	return detail, nil
}

type fakeReconciler struct {
	outcome reconcile.Outcome
	err     error
	calls   int
}

func (f *fakeReconciler) Reconcile(_ context.Context, rec extraction.Record) (reconcile.Outcome, error) {
	f.calls++
	outcome := f.outcome
	outcome.Preview = rec
	return outcome, f.err
}

type fakeProcessor struct {
	block chan struct{}
}

func (f *fakeProcessor) Process(_ context.Context, oldPosts, newPosts []posts.Post) (pipeline.Report, error) {
	if f.block != nil {
		<-f.block
	}
	fresh := posts.FindNewPosts(oldPosts, newPosts)
	return pipeline.Report{OldPosts: len(oldPosts), NewPosts: len(fresh)}, nil
}

func newTestServer(records *fakeRecordStore, reconciler *fakeReconciler, processor Processor) *Server {
	return NewServer(Dependencies{
		Records:    records,
		Reconciler: reconciler,
		Processor:  processor,
		Jobs:       jobs.NewRegistry(zerolog.Nop(), jobs.Options{}),
	}, zerolog.Nop(), Options{Location: time.UTC})
}

func doRequest(t *testing.T, s *Server, method, target, body string) (*httptest.ResponseRecorder, jsendResponse) {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var resp jsendResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return rec, resp
}

func TestHandleHealth(t *testing.T) {
	t.Parallel()

	s := newTestServer(&fakeRecordStore{}, &fakeReconciler{}, nil)
	rec, resp := doRequest(t, s, http.MethodGet, "/api/v1/health", "")
	if rec.Code != http.StatusOK || resp.Status != "success" {
		t.Fatalf("unexpected health response %d %+v", rec.Code, resp)
	}

	down := newTestServer(&fakeRecordStore{pingErr: errors.New("refused")}, &fakeReconciler{}, nil)
	rec, resp = doRequest(t, down, http.MethodGet, "/api/v1/health", "")
	if rec.Code != http.StatusServiceUnavailable || resp.Status != "error" {
		t.Fatalf("expected 503 error, got %d %+v", rec.Code, resp)
	}
}

func TestHandleDiffPosts(t *testing.T) {
	t.Parallel()

	s := newTestServer(&fakeRecordStore{}, &fakeReconciler{}, nil)
	body := `{
		"old": {"url": "https://facebook.com/coop", "posts": [{"text": "A", "image_links": [], "timestamp": "1h"}]},
		"new": [{"text": "A", "image_links": [], "timestamp": "2h"}, {"text": "C", "image_links": ["https://x/1.jpg"]}]
	}`

	rec, resp := doRequest(t, s, http.MethodPost, "/api/v1/posts/diff", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	data := resp.Data.(map[string]any)
	if data["count"].(float64) != 1 {
		t.Fatalf("expected one new post, got %v", data["count"])
	}
	items := data["items"].([]any)
	if items[0].(map[string]any)["text"] != "C" {
		t.Fatalf("unexpected new post %v", items[0])
	}
}

func TestHandleDiffPostsMalformed(t *testing.T) {
	t.Parallel()

	s := newTestServer(&fakeRecordStore{}, &fakeReconciler{}, nil)
	rec, resp := doRequest(t, s, http.MethodPost, "/api/v1/posts/diff", `{"old": [], "new": "not posts"}`)
	if rec.Code != http.StatusBadRequest || resp.Status != "fail" {
		t.Fatalf("expected 400 fail, got %d %+v", rec.Code, resp)
	}
	if side := resp.Data.(map[string]any)["side"]; side != "new" {
		t.Fatalf("expected new side, got %v", side)
	}
}

func TestHandleReconcileStatusMapping(t *testing.T) {
	t.Parallel()

	id := int64(42)
	valid := `{"is_power_interruption_related": true, "date": "2025-06-05", "start_time": "0600H", "end_time": "1800H"}`

	cases := []struct {
		name       string
		body       string
		reconciler *fakeReconciler
		wantCode   int
		wantStatus string
	}{
		{
			name:       "created",
			body:       valid,
			reconciler: &fakeReconciler{outcome: reconcile.Outcome{Status: reconcile.StatusCreated, RecordID: &id}},
			wantCode:   http.StatusCreated,
			wantStatus: "success",
		},
		{
			name:       "duplicate",
			body:       valid,
			reconciler: &fakeReconciler{outcome: reconcile.Outcome{Status: reconcile.StatusDuplicate, RecordID: &id}},
			wantCode:   http.StatusOK,
			wantStatus: "success",
		},
		{
			name:       "schema failure",
			body:       `{"is_power_interruption_related": "maybe"}`,
			reconciler: &fakeReconciler{},
			wantCode:   http.StatusBadRequest,
			wantStatus: "fail",
		},
		{
			name: "parse error",
			body: valid,
			reconciler: &fakeReconciler{
				outcome: reconcile.Outcome{Status: reconcile.StatusParseError},
				err:     &reconcile.DateTimeParseError{Field: "start_time", Value: "soon"},
			},
			wantCode:   http.StatusUnprocessableEntity,
			wantStatus: "fail",
		},
		{
			name: "creation failed",
			body: valid,
			reconciler: &fakeReconciler{
				outcome: reconcile.Outcome{Status: reconcile.StatusCreationFailed},
				err:     &reconcile.PersistenceError{Op: "insert", Err: errors.New("disk full")},
			},
			wantCode:   http.StatusInternalServerError,
			wantStatus: "error",
		},
	}

	for _, tc := range cases {
		s := newTestServer(&fakeRecordStore{}, tc.reconciler, nil)
		rec, resp := doRequest(t, s, http.MethodPost, "/api/v1/interruptions/reconcile", tc.body)
		if rec.Code != tc.wantCode || resp.Status != tc.wantStatus {
			t.Fatalf("%s: got %d %q, want %d %q", tc.name, rec.Code, resp.Status, tc.wantCode, tc.wantStatus)
		}
	}
}

func TestHandleListInterruptionsValidatesQuery(t *testing.T) {
	t.Parallel()

	store := &fakeRecordStore{}
	s := newTestServer(store, &fakeReconciler{}, nil)

	rec, _ := doRequest(t, s, http.MethodGet, "/api/v1/interruptions?limit=0&from=June", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	rec, _ = doRequest(t, s, http.MethodGet, "/api/v1/interruptions?from=2025-06-01&to=2025-06-30&limit=10&offset=20", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(store.listCalls) != 1 {
		t.Fatalf("expected one list call")
	}
	call := store.listCalls[0]
	if call.Limit != 10 || call.Offset != 20 || call.From.Day() != 1 || call.To.Day() != 30 {
		t.Fatalf("unexpected list options %+v", call)
	}
}

func TestHandleGetInterruption(t *testing.T) {
	t.Parallel()

	store := &fakeRecordStore{details: map[int64]*db.InterruptionDetail{
		7: {InterruptionSummary: db.InterruptionSummary{ID: 7, Date: "2025-06-05"}},
	}}
	s := newTestServer(store, &fakeReconciler{}, nil)

	rec, _ := doRequest(t, s, http.MethodGet, "/api/v1/interruptions/7", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	rec, _ = doRequest(t, s, http.MethodGet, "/api/v1/interruptions/8", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	rec, _ = doRequest(t, s, http.MethodGet, "/api/v1/interruptions/abc", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestJobLifecycle(t *testing.T) {
	t.Parallel()

	processor := &fakeProcessor{block: make(chan struct{})}
	s := newTestServer(&fakeRecordStore{}, &fakeReconciler{}, processor)

	rec, resp := doRequest(t, s, http.MethodPost, "/api/v1/jobs", `{"old": [], "new": [{"text": "brownout"}]}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	jobID := resp.Data.(map[string]any)["id"].(string)

	deadline := time.Now().Add(2 * time.Second)
	for {
		job, err := s.jobs.Get(jobID)
		if err != nil {
			t.Fatalf("get job: %v", err)
		}
		if job.Status == jobs.StatusRunning {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("job never started")
		}
		time.Sleep(5 * time.Millisecond)
	}

	rec, _ = doRequest(t, s, http.MethodDelete, "/api/v1/jobs/"+jobID, "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 while running, got %d", rec.Code)
	}

	close(processor.block)
	s.jobs.Wait()

	rec, resp = doRequest(t, s, http.MethodGet, "/api/v1/jobs/"+jobID, "")
	if rec.Code != http.StatusOK || resp.Data.(map[string]any)["status"] != string(jobs.StatusCompleted) {
		t.Fatalf("expected completed job, got %d %+v", rec.Code, resp.Data)
	}

	rec, _ = doRequest(t, s, http.MethodDelete, "/api/v1/jobs/"+jobID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected delete to succeed, got %d", rec.Code)
	}
	rec, _ = doRequest(t, s, http.MethodGet, "/api/v1/jobs/"+jobID, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rec.Code)
	}
}

func TestCreateJobWithoutProcessor(t *testing.T) {
	t.Parallel()

	s := newTestServer(&fakeRecordStore{}, &fakeReconciler{}, nil)
	rec, _ := doRequest(t, s, http.MethodPost, "/api/v1/jobs", `{"old": [], "new": []}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}
