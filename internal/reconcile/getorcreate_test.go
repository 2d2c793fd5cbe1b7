package reconcile

import (
	"context"
	"errors"
	"testing"

	"horse.fit/outage-watch/internal/db"
)

func TestGetOrCreateIsIdempotent(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	ctx := context.Background()

	first, err := GetOrCreate(ctx, store, db.KindAffectedCustomer, map[string]any{"name": "Acme Corp"}, []string{"name"})
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	second, err := GetOrCreate(ctx, store, db.KindAffectedCustomer, map[string]any{"name": "Acme Corp"}, []string{"name"})
	if err != nil {
		t.Fatalf("second call: %v", err)
	}

	if first != second {
		t.Fatalf("expected same id, got %d and %d", first, second)
	}
	if got := store.entityCount(db.KindAffectedCustomer); got != 1 {
		t.Fatalf("expected one customer row, got %d", got)
	}
}

func TestGetOrCreateScopesBarangayToArea(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	ctx := context.Background()
	keys := []string{"name", "area_id"}

	a, err := GetOrCreate(ctx, store, db.KindBarangay, map[string]any{"name": "Brgy 1", "area_id": int64(1)}, keys)
	if err != nil {
		t.Fatalf("area 1: %v", err)
	}
	b, err := GetOrCreate(ctx, store, db.KindBarangay, map[string]any{"name": "Brgy 1", "area_id": int64(2)}, keys)
	if err != nil {
		t.Fatalf("area 2: %v", err)
	}
	if a == b {
		t.Fatalf("expected distinct barangays per area")
	}
}

func TestGetOrCreateRejectsIncompleteMatchKey(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	ctx := context.Background()

	cases := []map[string]any{
		{"name": "J. Dela Cruz"},
		{"name": "J. Dela Cruz", "position": nil},
		{"name": "  ", "position": "Lineman"},
	}
	for _, attrs := range cases {
		_, err := GetOrCreate(ctx, store, db.KindPersonnel, attrs, []string{"name", "position"})
		var incomplete *IncompleteMatchKeyError
		if !errors.As(err, &incomplete) {
			t.Fatalf("expected IncompleteMatchKeyError for %v, got %v", attrs, err)
		}
		if incomplete.Kind != db.KindPersonnel {
			t.Fatalf("unexpected kind %q", incomplete.Kind)
		}
	}
	if store.getOrCreateCalls != 0 {
		t.Fatalf("store should not be called for incomplete keys, got %d calls", store.getOrCreateCalls)
	}
}

func TestGetOrCreateWrapsStoreFailure(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	boom := errors.New("connection reset")
	store.failKinds[db.KindSpecificActivity] = boom

	_, err := GetOrCreate(context.Background(), store, db.KindSpecificActivity, map[string]any{"name": "Tree trimming"}, []string{"name"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
}
