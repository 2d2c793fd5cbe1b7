package reconcile

import (
	"context"
	"fmt"
	"strings"

	"horse.fit/outage-watch/internal/db"
)

// EntityStore is the slice of the persistence layer get-or-create needs.
type EntityStore interface {
	GetOrCreate(ctx context.Context, kind db.EntityKind, attrs map[string]any, matchKeys []string) (int64, error)
}

// GetOrCreate returns the id of the kind row matching attrs on matchKeys,
// creating it from attrs when absent. Every match key must carry a non-nil,
// non-blank value, else *IncompleteMatchKeyError is returned and the store is
// not called.
func GetOrCreate(ctx context.Context, store EntityStore, kind db.EntityKind, attrs map[string]any, matchKeys []string) (int64, error) {
	if store == nil {
		return 0, fmt.Errorf("entity store is nil")
	}
	if len(matchKeys) == 0 {
		return 0, fmt.Errorf("%s: match keys are required", kind)
	}
	for _, key := range matchKeys {
		if !hasValue(attrs[key]) {
			return 0, &IncompleteMatchKeyError{Kind: kind, Key: key}
		}
	}

	id, err := store.GetOrCreate(ctx, kind, attrs, matchKeys)
	if err != nil {
		return 0, fmt.Errorf("get or create %s: %w", kind, err)
	}
	return id, nil
}

func hasValue(v any) bool {
	switch value := v.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(value) != ""
	case *string:
		return value != nil && strings.TrimSpace(*value) != ""
	default:
		return true
	}
}
