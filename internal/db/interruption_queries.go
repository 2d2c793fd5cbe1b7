package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// InterruptionInsert carries the scalar columns of one power_interruption_data row.
type InterruptionInsert struct {
	IsPowerInterruptionRelated bool
	IsUpdate                   bool
	CreatedAt                  time.Time
	Reason                     string
	Date                       time.Time
	StartTime                  time.Time
	EndTime                    time.Time
	AffectedLine               string
	NoticeID                   *int64
}

// InterruptionCandidate is an existing same-date record considered by the duplicate check.
type InterruptionCandidate struct {
	ID        int64
	StartTime time.Time
	EndTime   time.Time
	AreaNames []string
}

// InterruptionSummary is the list read model.
type InterruptionSummary struct {
	ID           int64     `json:"id"`
	IsUpdate     bool      `json:"is_update"`
	Reason       *string   `json:"reason,omitempty"`
	Date         string    `json:"date"`
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time"`
	AffectedLine *string   `json:"affected_line,omitempty"`
	NoticeID     *int64    `json:"notice_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	Areas        []string  `json:"affected_areas"`
}

// InterruptionListOptions bounds ListInterruptions; zero From/To are open ends.
type InterruptionListOptions struct {
	From   time.Time
	To     time.Time
	Limit  int
	Offset int
}

// InterruptionDetail is one record with its full association graph.
type InterruptionDetail struct {
	InterruptionSummary
	AffectedAreas      []AreaDetail  `json:"affected_area_details"`
	AffectedCustomers  []string      `json:"affected_customers"`
	SpecificActivities []string      `json:"specific_activities"`
	Notice             *NoticeDetail `json:"notice,omitempty"`
}

type AreaDetail struct {
	ID        int64    `json:"id"`
	Name      string   `json:"name"`
	Barangays []string `json:"barangays"`
}

type NoticeDetail struct {
	ID                 int64          `json:"id"`
	ControlNo          string         `json:"control_no"`
	DateIssued         string         `json:"date_issued"`
	Personnel          []PersonDetail `json:"personnel"`
	AffectedCustomers  []string       `json:"affected_customers"`
	SpecificActivities []string       `json:"specific_activities"`
}

type PersonDetail struct {
	Name     string `json:"name"`
	Position string `json:"position"`
}

// InsertInterruption inserts the main record row and returns its id.
func (p *Pool) InsertInterruption(ctx context.Context, in InterruptionInsert) (int64, error) {
	const q = `
INSERT INTO power_interruption_data (
	is_power_interruption_related,
	is_update,
	created_at,
	reason,
	date,
	start_time,
	end_time,
	affected_line,
	notice_id
) VALUES ($1, $2, $3, $4, $5::date, $6, $7, $8, $9)
RETURNING id
`

	createdAt := in.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	var id int64
	args := []any{
		in.IsPowerInterruptionRelated,
		in.IsUpdate,
		createdAt.UTC(),
		nullableString(in.Reason),
		in.Date.Format(dateLayout),
		in.StartTime,
		in.EndTime,
		nullableString(in.AffectedLine),
		in.NoticeID,
	}
	if err := p.scanOne(ctx, q, args, &id); err != nil {
		return 0, fmt.Errorf("insert power_interruption_data: %w", err)
	}
	return id, nil
}

// SetInterruptionNotice points an existing record at its notice.
func (p *Pool) SetInterruptionNotice(ctx context.Context, recordID, noticeID int64) error {
	const q = `UPDATE power_interruption_data SET notice_id = $2 WHERE id = $1`

	affected, err := p.exec(ctx, q, recordID, noticeID)
	if err != nil {
		return fmt.Errorf("attach notice %d to record %d: %w", noticeID, recordID, err)
	}
	if affected == 0 {
		return fmt.Errorf("attach notice %d to record %d: %w", noticeID, recordID, ErrNoRows)
	}
	return nil
}

// FindInterruptionsByDate returns every record on date with its area names.
func (p *Pool) FindInterruptionsByDate(ctx context.Context, date time.Time) ([]InterruptionCandidate, error) {
	const q = `
SELECT
	d.id,
	d.start_time,
	d.end_time,
	a.name
FROM power_interruption_data d
LEFT JOIN data_areas da
	ON da.data_id = d.id
LEFT JOIN affected_areas a
	ON a.id = da.area_id
WHERE d.date = $1::date
ORDER BY d.id ASC, a.name ASC
`

	rows, err := p.query(ctx, q, date.Format(dateLayout))
	if err != nil {
		return nil, fmt.Errorf("query interruptions by date: %w", err)
	}
	defer rows.Close()

	items := make([]InterruptionCandidate, 0)
	for rows.Next() {
		var (
			id         int64
			start, end time.Time
			areaName   *string
		)
		if err := rows.Scan(&id, &start, &end, &areaName); err != nil {
			return nil, fmt.Errorf("scan interruption candidate: %w", err)
		}
		if len(items) == 0 || items[len(items)-1].ID != id {
			items = append(items, InterruptionCandidate{ID: id, StartTime: start, EndTime: end, AreaNames: []string{}})
		}
		if areaName != nil {
			last := &items[len(items)-1]
			last.AreaNames = append(last.AreaNames, *areaName)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate interruption candidates: %w", err)
	}
	return items, nil
}

// ListInterruptions lists records newest date first.
func (p *Pool) ListInterruptions(ctx context.Context, opts InterruptionListOptions) ([]InterruptionSummary, error) {
	if opts.Limit <= 0 {
		return nil, fmt.Errorf("limit must be > 0")
	}
	if opts.Offset < 0 {
		return nil, fmt.Errorf("offset must be >= 0")
	}
	if !opts.From.IsZero() && !opts.To.IsZero() && opts.To.Before(opts.From) {
		return nil, fmt.Errorf("from must not be after to")
	}

	const q = `
SELECT
	d.id,
	d.is_update,
	d.reason,
	d.date,
	d.start_time,
	d.end_time,
	d.affected_line,
	d.notice_id,
	d.created_at
FROM power_interruption_data d
WHERE ($1::date IS NULL OR d.date >= $1::date)
  AND ($2::date IS NULL OR d.date <= $2::date)
ORDER BY d.date DESC, d.start_time DESC, d.id DESC
LIMIT $3
OFFSET $4
`

	rows, err := p.query(ctx, q, nullableDate(opts.From), nullableDate(opts.To), opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("list interruptions: %w", err)
	}

	items := make([]InterruptionSummary, 0, opts.Limit)
	for rows.Next() {
		item, err := scanInterruptionSummary(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate interruptions: %w", err)
	}
	rows.Close()

	for i := range items {
		areas, err := p.listAreas(ctx, items[i].ID)
		if err != nil {
			return nil, err
		}
		items[i].Areas = areaNames(areas)
	}
	return items, nil
}

// GetInterruption loads one record and its associations; ErrNoRows when missing.
func (p *Pool) GetInterruption(ctx context.Context, id int64) (*InterruptionDetail, error) {
	if id <= 0 {
		return nil, fmt.Errorf("id must be > 0")
	}

	const q = `
SELECT
	d.id,
	d.is_update,
	d.reason,
	d.date,
	d.start_time,
	d.end_time,
	d.affected_line,
	d.notice_id,
	d.created_at
FROM power_interruption_data d
WHERE d.id = $1
`

	rows, err := p.query(ctx, q, id)
	if err != nil {
		return nil, fmt.Errorf("query interruption: %w", err)
	}
	if !rows.Next() {
		err := rows.Err()
		rows.Close()
		if err != nil {
			return nil, fmt.Errorf("query interruption: %w", err)
		}
		return nil, ErrNoRows
	}
	summary, err := scanInterruptionSummary(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}

	detail := &InterruptionDetail{InterruptionSummary: summary}

	if detail.AffectedAreas, err = p.listAreas(ctx, id); err != nil {
		return nil, err
	}
	detail.Areas = areaNames(detail.AffectedAreas)
	for i := range detail.AffectedAreas {
		barangays, err := p.listNames(ctx, `SELECT name FROM barangays WHERE area_id = $1 ORDER BY name ASC, id ASC`, detail.AffectedAreas[i].ID)
		if err != nil {
			return nil, fmt.Errorf("list barangays: %w", err)
		}
		detail.AffectedAreas[i].Barangays = barangays
	}

	if detail.AffectedCustomers, err = p.listNames(ctx, `
SELECT c.name
FROM data_customers dc
JOIN affected_customers c ON c.id = dc.customer_id
WHERE dc.data_id = $1
ORDER BY c.name ASC`, id); err != nil {
		return nil, fmt.Errorf("list record customers: %w", err)
	}
	if detail.SpecificActivities, err = p.listNames(ctx, `
SELECT s.name
FROM data_activities da
JOIN specific_activities s ON s.id = da.activity_id
WHERE da.data_id = $1
ORDER BY s.name ASC`, id); err != nil {
		return nil, fmt.Errorf("list record activities: %w", err)
	}

	if summary.NoticeID != nil {
		notice, err := p.getNotice(ctx, *summary.NoticeID)
		if err != nil && !errors.Is(err, ErrNoRows) {
			return nil, err
		}
		detail.Notice = notice
	}

	return detail, nil
}

func (p *Pool) getNotice(ctx context.Context, noticeID int64) (*NoticeDetail, error) {
	const q = `
SELECT id, control_no, date_issued
FROM power_interruption_notices
WHERE id = $1
`

	var (
		notice     NoticeDetail
		dateIssued time.Time
	)
	if err := p.scanOne(ctx, q, []any{noticeID}, &notice.ID, &notice.ControlNo, &dateIssued); err != nil {
		if IsNoRows(err) {
			return nil, ErrNoRows
		}
		return nil, fmt.Errorf("query notice: %w", err)
	}
	notice.DateIssued = dateIssued.Format(dateLayout)

	rows, err := p.query(ctx, `
SELECT pe.name, pe.position
FROM notice_personnel np
JOIN personnel pe ON pe.id = np.personnel_id
WHERE np.notice_id = $1
ORDER BY pe.name ASC, pe.position ASC`, noticeID)
	if err != nil {
		return nil, fmt.Errorf("list notice personnel: %w", err)
	}
	defer rows.Close()

	notice.Personnel = make([]PersonDetail, 0)
	for rows.Next() {
		var person PersonDetail
		if err := rows.Scan(&person.Name, &person.Position); err != nil {
			return nil, fmt.Errorf("scan notice personnel: %w", err)
		}
		notice.Personnel = append(notice.Personnel, person)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notice personnel: %w", err)
	}

	if notice.AffectedCustomers, err = p.listNames(ctx, `
SELECT c.name
FROM notice_customers nc
JOIN affected_customers c ON c.id = nc.customer_id
WHERE nc.notice_id = $1
ORDER BY c.name ASC`, noticeID); err != nil {
		return nil, fmt.Errorf("list notice customers: %w", err)
	}
	if notice.SpecificActivities, err = p.listNames(ctx, `
SELECT s.name
FROM notice_activities na
JOIN specific_activities s ON s.id = na.activity_id
WHERE na.notice_id = $1
ORDER BY s.name ASC`, noticeID); err != nil {
		return nil, fmt.Errorf("list notice activities: %w", err)
	}

	return &notice, nil
}

func (p *Pool) listAreas(ctx context.Context, dataID int64) ([]AreaDetail, error) {
	rows, err := p.query(ctx, `
SELECT a.id, a.name
FROM data_areas da
JOIN affected_areas a ON a.id = da.area_id
WHERE da.data_id = $1
ORDER BY a.name ASC`, dataID)
	if err != nil {
		return nil, fmt.Errorf("list record areas: %w", err)
	}
	defer rows.Close()

	areas := make([]AreaDetail, 0)
	for rows.Next() {
		var area AreaDetail
		if err := rows.Scan(&area.ID, &area.Name); err != nil {
			return nil, fmt.Errorf("scan record area: %w", err)
		}
		area.Barangays = []string{}
		areas = append(areas, area)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate record areas: %w", err)
	}
	return areas, nil
}

func (p *Pool) listNames(ctx context.Context, query string, id int64) ([]string, error) {
	rows, err := p.query(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return names, nil
}

func scanInterruptionSummary(rows *sql.Rows) (InterruptionSummary, error) {
	var (
		item InterruptionSummary
		date time.Time
	)
	if err := rows.Scan(
		&item.ID,
		&item.IsUpdate,
		&item.Reason,
		&date,
		&item.StartTime,
		&item.EndTime,
		&item.AffectedLine,
		&item.NoticeID,
		&item.CreatedAt,
	); err != nil {
		return InterruptionSummary{}, fmt.Errorf("scan interruption: %w", err)
	}
	item.Date = date.Format(dateLayout)
	item.Areas = []string{}
	return item, nil
}

func areaNames(areas []AreaDetail) []string {
	names := make([]string, 0, len(areas))
	for _, area := range areas {
		names = append(names, area.Name)
	}
	return names
}

func nullableString(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func nullableDate(value time.Time) *string {
	if value.IsZero() {
		return nil
	}
	formatted := value.Format(dateLayout)
	return &formatted
}
