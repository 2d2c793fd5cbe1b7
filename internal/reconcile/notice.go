package reconcile

import (
	"context"

	"horse.fit/outage-watch/internal/db"
	"horse.fit/outage-watch/internal/extraction"
)

// BuildNotice persists rec's first notice, reusing an existing row with the
// same control number, and links its personnel, customers and activities.
// It returns nil when there is no usable notice, plus the number of skipped
// entities or links. Failures never abort the caller.
func (r *Reconciler) BuildNotice(ctx context.Context, rec extraction.Record) (*int64, int) {
	notice, ok := rec.FirstNotice()
	if !ok {
		return nil, 0
	}

	log := r.logger.With().Str("control_no", notice.ControlNo).Logger()

	if notice.ControlNo == "" || notice.DateIssued == "" {
		log.Warn().
			Str("date_issued", notice.DateIssued).
			Msg("notice is missing control_no or date_issued; recording without notice")
		return nil, 0
	}

	issued, err := parseDate(notice.DateIssued, r.location)
	if err != nil {
		log.Warn().
			Err(err).
			Str("date_issued", notice.DateIssued).
			Msg("notice date_issued could not be parsed; recording without notice")
		return nil, 0
	}

	noticeID, ok := r.getOrCreate(ctx, log, db.KindNotice, map[string]any{
		"control_no":  notice.ControlNo,
		"date_issued": issued,
	}, "control_no")
	if !ok {
		return nil, 1
	}

	log = log.With().Int64("notice_id", noticeID).Logger()
	skipped := 0

	for _, person := range notice.Personnel {
		attrs := map[string]any{
			"name":     optional(person.Name),
			"position": optional(person.Position),
		}
		personID, ok := r.getOrCreate(ctx, log, db.KindPersonnel, attrs, "name", "position")
		if !ok {
			skipped++
			continue
		}
		if !r.link(ctx, log, db.LinkNoticePersonnel, noticeID, personID) {
			skipped++
		}
	}

	skipped += r.linkNamed(ctx, log, db.KindAffectedCustomer, db.LinkNoticeCustomers, noticeID, notice.AffectedCustomers)
	skipped += r.linkNamed(ctx, log, db.KindSpecificActivity, db.LinkNoticeActivities, noticeID, notice.SpecificActivities)

	return &noticeID, skipped
}

func optional(value string) any {
	if value == "" {
		return nil
	}
	return value
}
