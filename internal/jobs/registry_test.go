package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestRegistry() *Registry {
	var (
		mu   sync.Mutex
		tick int
		seq  int
	)
	base := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	return NewRegistry(zerolog.Nop(), Options{
		Now: func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			tick++
			return base.Add(time.Duration(tick) * time.Second)
		},
		NewID: func() string {
			mu.Lock()
			defer mu.Unlock()
			seq++
			return fmt.Sprintf("job-%d", seq)
		},
	})
}

func TestStartRecordsCompletion(t *testing.T) {
	t.Parallel()

	r := newTestRegistry()
	job := r.Start(context.Background(), "process", func(_ context.Context, progress func(string)) (any, error) {
		progress("halfway")
		return map[string]int{"created": 2}, nil
	})
	if job.Status != StatusPending {
		t.Fatalf("expected pending job on start, got %s", job.Status)
	}
	r.Wait()

	got, err := r.Get(job.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if got.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s", got.Status)
	}
	if got.Message != "halfway" {
		t.Fatalf("expected progress message, got %q", got.Message)
	}
	if got.StartedAt == nil || got.FinishedAt == nil || got.FinishedAt.Before(*got.StartedAt) {
		t.Fatalf("unexpected timestamps %+v", got)
	}
	if result, ok := got.Result.(map[string]int); !ok || result["created"] != 2 {
		t.Fatalf("unexpected result %#v", got.Result)
	}
}

func TestStartRecordsFailureAndPanic(t *testing.T) {
	t.Parallel()

	r := newTestRegistry()
	failed := r.Start(context.Background(), "process", func(context.Context, func(string)) (any, error) {
		return nil, errors.New("extractor unavailable")
	})
	panicked := r.Start(context.Background(), "process", func(context.Context, func(string)) (any, error) {
		panic("boom")
	})
	r.Wait()

	for _, id := range []string{failed.ID, panicked.ID} {
		got, err := r.Get(id)
		if err != nil {
			t.Fatalf("get job: %v", err)
		}
		if got.Status != StatusFailed || got.Error == "" {
			t.Fatalf("expected failed job with error, got %+v", got)
		}
	}
}

func TestDeleteRefusesRunningJob(t *testing.T) {
	t.Parallel()

	r := newTestRegistry()
	release := make(chan struct{})
	started := make(chan struct{})
	job := r.Start(context.Background(), "process", func(context.Context, func(string)) (any, error) {
		close(started)
		<-release
		return nil, nil
	})
	<-started

	if err := r.Delete(job.ID); !errors.Is(err, ErrJobRunning) {
		t.Fatalf("expected ErrJobRunning, got %v", err)
	}

	close(release)
	r.Wait()

	if err := r.Delete(job.ID); err != nil {
		t.Fatalf("delete finished job: %v", err)
	}
	if _, err := r.Get(job.ID); !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound after delete, got %v", err)
	}
	if err := r.Delete(job.ID); !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound on second delete, got %v", err)
	}
}

func TestListNewestFirst(t *testing.T) {
	t.Parallel()

	r := newTestRegistry()
	first := r.Create("process")
	second := r.Create("process")

	jobs := r.List()
	if len(jobs) != 2 {
		t.Fatalf("expected two jobs, got %d", len(jobs))
	}
	if jobs[0].ID != second.ID || jobs[1].ID != first.ID {
		t.Fatalf("unexpected order: %s, %s", jobs[0].ID, jobs[1].ID)
	}
}

func TestRegistriesAreIndependent(t *testing.T) {
	t.Parallel()

	a := NewRegistry(zerolog.Nop(), Options{})
	b := NewRegistry(zerolog.Nop(), Options{})
	job := a.Create("process")

	if _, err := b.Get(job.ID); !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("expected job to be scoped to its registry")
	}
	if len(job.ID) != 36 {
		t.Fatalf("expected UUID job id, got %q", job.ID)
	}
}
