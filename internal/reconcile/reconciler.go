package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/outage-watch/internal/db"
	"horse.fit/outage-watch/internal/extraction"
)

type Status string

const (
	StatusIrrelevant     Status = "irrelevant"
	StatusDuplicate      Status = "duplicate"
	StatusCreated        Status = "created"
	StatusParseError     Status = "parse_error"
	StatusCreationFailed Status = "creation_failed"
)

// Outcome is returned for every reconciliation, including failed ones.
type Outcome struct {
	Status       Status            `json:"status"`
	RecordID     *int64            `json:"record_id,omitempty"`
	NoticeID     *int64            `json:"notice_id,omitempty"`
	Preview      extraction.Record `json:"preview"`
	SkippedLinks int               `json:"skipped_links"`
}

// Store is the persistence collaborator. *db.Pool implements it.
type Store interface {
	EntityStore
	FindInterruptionsByDate(ctx context.Context, date time.Time) ([]db.InterruptionCandidate, error)
	InsertInterruption(ctx context.Context, in db.InterruptionInsert) (int64, error)
	SetInterruptionNotice(ctx context.Context, recordID, noticeID int64) error
	Link(ctx context.Context, kind db.LinkKind, ownerID, targetID int64) error
}

type Options struct {
	// Location is where extracted dates and times are interpreted. Defaults to UTC.
	Location *time.Location
	// Now stamps created_at. Defaults to time.Now.
	Now func() time.Time
}

type Reconciler struct {
	store    Store
	logger   zerolog.Logger
	location *time.Location
	now      func() time.Time
	dates    *keyedMutex
}

func NewReconciler(store Store, logger zerolog.Logger, opts Options) *Reconciler {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Reconciler{
		store:    store,
		logger:   logger,
		location: loc,
		now:      now,
		dates:    newKeyedMutex(),
	}
}

// Reconcile decides whether rec is irrelevant, a duplicate of a stored record
// or new, and persists it in the last case. The returned error is non-nil
// only for StatusParseError (*DateTimeParseError) and StatusCreationFailed
// (*PersistenceError).
func (r *Reconciler) Reconcile(ctx context.Context, rec extraction.Record) (Outcome, error) {
	outcome := Outcome{Preview: rec}
	if r == nil || r.store == nil {
		outcome.Status = StatusCreationFailed
		return outcome, &PersistenceError{Op: "reconcile", Err: fmt.Errorf("reconciler is not initialized")}
	}

	if !rec.IsPowerInterruptionRelated {
		outcome.Status = StatusIrrelevant
		return outcome, nil
	}

	sched, err := parseSchedule(rec.Date, rec.StartTime, rec.EndTime, r.location)
	if err != nil {
		r.logger.Warn().Err(err).Str("date", rec.Date).Msg("extracted schedule could not be parsed")
		outcome.Status = StatusParseError
		return outcome, err
	}

	unlock := r.dates.Lock(sched.date.Format("2006-01-02"))
	defer unlock()

	candidates, err := r.store.FindInterruptionsByDate(ctx, sched.date)
	if err != nil {
		outcome.Status = StatusCreationFailed
		return outcome, &PersistenceError{Op: "find same-date records", Err: err}
	}

	areas := areaNameSet(rec.AreaNames())
	for _, candidate := range candidates {
		if !candidate.StartTime.Equal(sched.start) || !candidate.EndTime.Equal(sched.end) {
			continue
		}
		if !sameNameSet(areas, areaNameSet(candidate.AreaNames)) {
			continue
		}
		id := candidate.ID
		r.logger.Info().Int64("record_id", id).Str("date", rec.Date).Msg("duplicate interruption record")
		outcome.Status = StatusDuplicate
		outcome.RecordID = &id
		return outcome, nil
	}

	recordID, err := r.store.InsertInterruption(ctx, db.InterruptionInsert{
		IsPowerInterruptionRelated: true,
		IsUpdate:                   rec.IsUpdate,
		CreatedAt:                  r.now().UTC(),
		Reason:                     rec.Reason,
		Date:                       sched.date,
		StartTime:                  sched.start,
		EndTime:                    sched.end,
		AffectedLine:               rec.AffectedLine,
	})
	if err != nil {
		outcome.Status = StatusCreationFailed
		return outcome, &PersistenceError{Op: "insert power_interruption_data", Err: err}
	}

	log := r.logger.With().Int64("record_id", recordID).Logger()

	// The notice is written only once the main row exists, so a failed main
	// insert leaves nothing behind.
	noticeID, skipped := r.BuildNotice(ctx, rec)
	outcome.SkippedLinks += skipped
	if noticeID != nil {
		if err := r.store.SetInterruptionNotice(ctx, recordID, *noticeID); err != nil {
			log.Error().Err(err).Int64("notice_id", *noticeID).Msg("skipping notice attachment after storage failure")
			outcome.SkippedLinks++
		} else {
			outcome.NoticeID = noticeID
		}
	}

	for _, area := range rec.AffectedAreas {
		areaID, ok := r.getOrCreate(ctx, log, db.KindAffectedArea, map[string]any{"name": area.Name}, "name")
		if !ok {
			outcome.SkippedLinks += 1 + len(area.Barangays)
			continue
		}
		if !r.link(ctx, log, db.LinkDataAreas, recordID, areaID) {
			outcome.SkippedLinks++
		}
		for _, barangay := range area.Barangays {
			attrs := map[string]any{"name": barangay, "area_id": areaID}
			if _, ok := r.getOrCreate(ctx, log, db.KindBarangay, attrs, "name", "area_id"); !ok {
				outcome.SkippedLinks++
			}
		}
	}

	outcome.SkippedLinks += r.linkNamed(ctx, log, db.KindAffectedCustomer, db.LinkDataCustomers, recordID, rec.AffectedCustomers)
	outcome.SkippedLinks += r.linkNamed(ctx, log, db.KindSpecificActivity, db.LinkDataActivities, recordID, rec.SpecificActivities)

	log.Info().
		Str("date", rec.Date).
		Int("areas", len(rec.AffectedAreas)).
		Int("skipped_links", outcome.SkippedLinks).
		Msg("interruption record created")

	outcome.Status = StatusCreated
	outcome.RecordID = &recordID
	return outcome, nil
}

// linkNamed get-or-creates each name-keyed entity and links it to ownerID.
// It returns how many entities or links were skipped.
func (r *Reconciler) linkNamed(ctx context.Context, log zerolog.Logger, kind db.EntityKind, linkKind db.LinkKind, ownerID int64, names []string) int {
	skipped := 0
	for _, name := range names {
		id, ok := r.getOrCreate(ctx, log, kind, map[string]any{"name": name}, "name")
		if !ok {
			skipped++
			continue
		}
		if !r.link(ctx, log, linkKind, ownerID, id) {
			skipped++
		}
	}
	return skipped
}

func (r *Reconciler) getOrCreate(ctx context.Context, log zerolog.Logger, kind db.EntityKind, attrs map[string]any, matchKeys ...string) (int64, bool) {
	id, err := GetOrCreate(ctx, r.store, kind, attrs, matchKeys)
	if err != nil {
		var incomplete *IncompleteMatchKeyError
		if errors.As(err, &incomplete) {
			log.Warn().Err(err).Str("kind", string(kind)).Msg("skipping related entity with incomplete match key")
		} else {
			log.Error().Err(err).Str("kind", string(kind)).Msg("skipping related entity after storage failure")
		}
		return 0, false
	}
	return id, true
}

func (r *Reconciler) link(ctx context.Context, log zerolog.Logger, kind db.LinkKind, ownerID, targetID int64) bool {
	if err := r.store.Link(ctx, kind, ownerID, targetID); err != nil {
		log.Error().
			Err(err).
			Str("link", string(kind)).
			Int64("owner_id", ownerID).
			Int64("target_id", targetID).
			Msg("skipping association after storage failure")
		return false
	}
	return true
}

func areaNameSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, name := range names {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			set[trimmed] = struct{}{}
		}
	}
	return set
}

func sameNameSet(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for name := range a {
		if _, ok := b[name]; !ok {
			return false
		}
	}
	return true
}
