package extraction

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Record is the normalized shape of one AI-extracted interruption announcement.
type Record struct {
	IsPowerInterruptionRelated bool     `json:"is_power_interruption_related"`
	IsUpdate                   bool     `json:"is_update"`
	Reason                     string   `json:"reason"`
	Date                       string   `json:"date"`
	StartTime                  string   `json:"start_time"`
	EndTime                    string   `json:"end_time"`
	AffectedLine               string   `json:"affected_line"`
	AffectedAreas              []Area   `json:"affected_areas"`
	AffectedCustomers          []string `json:"affected_customers"`
	SpecificActivities         []string `json:"specific_activities"`
	Notices                    []Notice `json:"notices"`
}

type Area struct {
	Name      string   `json:"name"`
	Barangays []string `json:"barangays"`
}

type Notice struct {
	ControlNo          string   `json:"control_no"`
	DateIssued         string   `json:"date_issued"`
	Personnel          []Person `json:"personnel"`
	AffectedCustomers  []string `json:"affected_customers"`
	SpecificActivities []string `json:"specific_activities"`
}

type Person struct {
	Name     string `json:"name"`
	Position string `json:"position"`
}

// AreaNames returns the affected-area names in input order.
func (r Record) AreaNames() []string {
	names := make([]string, 0, len(r.AffectedAreas))
	for _, area := range r.AffectedAreas {
		names = append(names, area.Name)
	}
	return names
}

// FirstNotice returns notices[0]; later entries are never used.
func (r Record) FirstNotice() (Notice, bool) {
	if len(r.Notices) == 0 {
		return Notice{}, false
	}
	return r.Notices[0], true
}

type wireRecord struct {
	IsPowerInterruptionRelated *bool        `json:"is_power_interruption_related"`
	IsUpdate                   *bool        `json:"is_update"`
	Reason                     *string      `json:"reason"`
	Date                       *string      `json:"date"`
	StartTime                  *string      `json:"start_time"`
	EndTime                    *string      `json:"end_time"`
	AffectedLine               *string      `json:"affected_line"`
	AffectedAreas              []wireArea   `json:"affected_areas"`
	AffectedCustomers          nameList     `json:"affected_customers"`
	SpecificActivities         nameList     `json:"specific_activities"`
	Notices                    []wireNotice `json:"notices"`
}

type wireArea struct {
	Name      *string  `json:"name"`
	Barangays nameList `json:"barangays"`
}

type wireNotice struct {
	ControlNo          *string      `json:"control_no"`
	DateIssued         *string      `json:"date_issued"`
	Personnel          []wirePerson `json:"personnel"`
	AffectedCustomers  nameList     `json:"affected_customers"`
	SpecificActivities nameList     `json:"specific_activities"`
}

type wirePerson struct {
	Name     *string `json:"name"`
	Position *string `json:"position"`
}

// nameList accepts ["a", "b"] as well as [{"name": "a"}, {"name": "b"}].
type nameList []string

func (n *nameList) UnmarshalJSON(data []byte) error {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}

	out := make([]string, 0, len(items))
	for i, item := range items {
		trimmed := bytes.TrimSpace(item)
		if len(trimmed) == 0 {
			continue
		}
		switch trimmed[0] {
		case '"':
			var s string
			if err := json.Unmarshal(trimmed, &s); err != nil {
				return fmt.Errorf("item %d: %w", i, err)
			}
			out = append(out, s)
		case '{':
			var obj struct {
				Name *string `json:"name"`
			}
			if err := json.Unmarshal(trimmed, &obj); err != nil {
				return fmt.Errorf("item %d: %w", i, err)
			}
			if obj.Name != nil {
				out = append(out, *obj.Name)
			}
		case 'n':
		default:
			return fmt.Errorf("item %d must be a string or an object with a name", i)
		}
	}
	*n = out
	return nil
}

func (w wireRecord) normalize() Record {
	rec := Record{
		IsPowerInterruptionRelated: derefBool(w.IsPowerInterruptionRelated),
		IsUpdate:                   derefBool(w.IsUpdate),
		Reason:                     trimmed(w.Reason),
		Date:                       trimmed(w.Date),
		StartTime:                  trimmed(w.StartTime),
		EndTime:                    trimmed(w.EndTime),
		AffectedLine:               trimmed(w.AffectedLine),
		AffectedAreas:              make([]Area, 0, len(w.AffectedAreas)),
		AffectedCustomers:          cleanNames(w.AffectedCustomers),
		SpecificActivities:         cleanNames(w.SpecificActivities),
	}

	for _, area := range w.AffectedAreas {
		name := trimmed(area.Name)
		if name == "" {
			continue
		}
		rec.AffectedAreas = append(rec.AffectedAreas, Area{
			Name:      name,
			Barangays: cleanNames(area.Barangays),
		})
	}

	if len(w.Notices) > 0 {
		rec.Notices = make([]Notice, 0, len(w.Notices))
		for _, notice := range w.Notices {
			n := Notice{
				ControlNo:          trimmed(notice.ControlNo),
				DateIssued:         trimmed(notice.DateIssued),
				Personnel:          make([]Person, 0, len(notice.Personnel)),
				AffectedCustomers:  cleanNames(notice.AffectedCustomers),
				SpecificActivities: cleanNames(notice.SpecificActivities),
			}
			for _, person := range notice.Personnel {
				p := Person{Name: trimmed(person.Name), Position: trimmed(person.Position)}
				if p.Name == "" && p.Position == "" {
					continue
				}
				n.Personnel = append(n.Personnel, p)
			}
			rec.Notices = append(rec.Notices, n)
		}
	}

	return rec
}

func cleanNames(names nameList) []string {
	out := make([]string, 0, len(names))
	for _, name := range names {
		if v := strings.TrimSpace(name); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func trimmed(v *string) string {
	if v == nil {
		return ""
	}
	return strings.TrimSpace(*v)
}

func derefBool(v *bool) bool {
	return v != nil && *v
}
