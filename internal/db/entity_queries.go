package db

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ErrUnknownEntityKind is returned for kinds, link kinds or columns outside the whitelist.
var ErrUnknownEntityKind = errors.New("unknown entity kind")

// EntityKind names a shared-entity table that supports get-or-create.
type EntityKind string

const (
	KindAffectedArea     EntityKind = "affected_areas"
	KindBarangay         EntityKind = "barangays"
	KindAffectedCustomer EntityKind = "affected_customers"
	KindSpecificActivity EntityKind = "specific_activities"
	KindPersonnel        EntityKind = "personnel"
	KindNotice           EntityKind = "power_interruption_notices"
)

// LinkKind names an association table.
type LinkKind string

const (
	LinkDataAreas        LinkKind = "data_areas"
	LinkDataCustomers    LinkKind = "data_customers"
	LinkDataActivities   LinkKind = "data_activities"
	LinkNoticePersonnel  LinkKind = "notice_personnel"
	LinkNoticeCustomers  LinkKind = "notice_customers"
	LinkNoticeActivities LinkKind = "notice_activities"
)

type entitySpec struct {
	table   string
	columns map[string]struct{}
}

type linkSpec struct {
	table       string
	ownerColumn string
	targetCol   string
}

var entitySpecs = map[EntityKind]entitySpec{
	KindAffectedArea:     {table: "affected_areas", columns: columnSet("name")},
	KindBarangay:         {table: "barangays", columns: columnSet("name", "area_id")},
	KindAffectedCustomer: {table: "affected_customers", columns: columnSet("name")},
	KindSpecificActivity: {table: "specific_activities", columns: columnSet("name")},
	KindPersonnel:        {table: "personnel", columns: columnSet("name", "position")},
	KindNotice:           {table: "power_interruption_notices", columns: columnSet("control_no", "date_issued")},
}

var linkSpecs = map[LinkKind]linkSpec{
	LinkDataAreas:        {table: "data_areas", ownerColumn: "data_id", targetCol: "area_id"},
	LinkDataCustomers:    {table: "data_customers", ownerColumn: "data_id", targetCol: "customer_id"},
	LinkDataActivities:   {table: "data_activities", ownerColumn: "data_id", targetCol: "activity_id"},
	LinkNoticePersonnel:  {table: "notice_personnel", ownerColumn: "notice_id", targetCol: "personnel_id"},
	LinkNoticeCustomers:  {table: "notice_customers", ownerColumn: "notice_id", targetCol: "customer_id"},
	LinkNoticeActivities: {table: "notice_activities", ownerColumn: "notice_id", targetCol: "activity_id"},
}

func columnSet(names ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(names))
	for _, name := range names {
		out[name] = struct{}{}
	}
	return out
}

type getOrCreateQueries struct {
	selectSQL  string
	selectArgs []any
	insertSQL  string
	insertArgs []any
}

// buildGetOrCreateQueries renders the lookup and insert statements for one
// get-or-create call. Callers validate that match keys carry values.
func buildGetOrCreateQueries(kind EntityKind, attrs map[string]any, matchKeys []string) (getOrCreateQueries, error) {
	spec, ok := entitySpecs[kind]
	if !ok {
		return getOrCreateQueries{}, fmt.Errorf("%w: %q", ErrUnknownEntityKind, kind)
	}
	if len(matchKeys) == 0 {
		return getOrCreateQueries{}, fmt.Errorf("match keys are required for %s", kind)
	}

	columns := make([]string, 0, len(attrs))
	for column := range attrs {
		if _, ok := spec.columns[column]; !ok {
			return getOrCreateQueries{}, fmt.Errorf("%w: column %q on %s", ErrUnknownEntityKind, column, kind)
		}
		columns = append(columns, column)
	}
	sort.Strings(columns)

	conditions := make([]string, 0, len(matchKeys))
	selectArgs := make([]any, 0, len(matchKeys))
	for i, key := range matchKeys {
		if _, ok := spec.columns[key]; !ok {
			return getOrCreateQueries{}, fmt.Errorf("%w: column %q on %s", ErrUnknownEntityKind, key, kind)
		}
		value, ok := attrs[key]
		if !ok {
			return getOrCreateQueries{}, fmt.Errorf("match key %q missing from attributes", key)
		}
		conditions = append(conditions, key+" = $"+strconv.Itoa(i+1))
		selectArgs = append(selectArgs, value)
	}

	placeholders := make([]string, 0, len(columns))
	insertArgs := make([]any, 0, len(columns))
	for i, column := range columns {
		placeholders = append(placeholders, "$"+strconv.Itoa(i+1))
		insertArgs = append(insertArgs, attrs[column])
	}

	return getOrCreateQueries{
		selectSQL: "SELECT id FROM " + spec.table +
			" WHERE " + strings.Join(conditions, " AND ") +
			" ORDER BY id LIMIT 1",
		selectArgs: selectArgs,
		insertSQL: "INSERT INTO " + spec.table +
			" (" + strings.Join(columns, ", ") + ") VALUES (" + strings.Join(placeholders, ", ") + ")" +
			" ON CONFLICT DO NOTHING RETURNING id",
		insertArgs: insertArgs,
	}, nil
}

// GetOrCreate returns the lowest id matching attrs on matchKeys, inserting a
// row when none exists. A concurrent insert that wins the unique index is
// picked up by re-selecting.
func (p *Pool) GetOrCreate(ctx context.Context, kind EntityKind, attrs map[string]any, matchKeys []string) (int64, error) {
	queries, err := buildGetOrCreateQueries(kind, attrs, matchKeys)
	if err != nil {
		return 0, err
	}

	id, err := p.selectID(ctx, queries.selectSQL, queries.selectArgs)
	if err == nil {
		return id, nil
	}
	if !IsNoRows(err) {
		return 0, fmt.Errorf("lookup %s: %w", kind, err)
	}

	if err := p.scanOne(ctx, queries.insertSQL, queries.insertArgs, &id); err != nil {
		if !IsNoRows(err) {
			return 0, fmt.Errorf("insert %s: %w", kind, err)
		}
		id, err = p.selectID(ctx, queries.selectSQL, queries.selectArgs)
		if err != nil {
			return 0, fmt.Errorf("re-select %s after conflict: %w", kind, err)
		}
	}
	return id, nil
}

func (p *Pool) selectID(ctx context.Context, query string, args []any) (int64, error) {
	var id int64
	if err := p.scanOne(ctx, query, args, &id); err != nil {
		return 0, err
	}
	return id, nil
}

func buildLinkQuery(kind LinkKind) (string, error) {
	spec, ok := linkSpecs[kind]
	if !ok {
		return "", fmt.Errorf("%w: link %q", ErrUnknownEntityKind, kind)
	}
	return "INSERT INTO " + spec.table +
		" (" + spec.ownerColumn + ", " + spec.targetCol + ") VALUES ($1, $2)" +
		" ON CONFLICT DO NOTHING", nil
}

// Link inserts one association row; an existing identical row is left alone.
func (p *Pool) Link(ctx context.Context, kind LinkKind, ownerID, targetID int64) error {
	query, err := buildLinkQuery(kind)
	if err != nil {
		return err
	}
	if _, err := p.exec(ctx, query, ownerID, targetID); err != nil {
		return fmt.Errorf("link %s %d -> %d: %w", kind, ownerID, targetID, err)
	}
	return nil
}
