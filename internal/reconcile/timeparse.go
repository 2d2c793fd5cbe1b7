package reconcile

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

var (
	// "2000H", "0600h" and the bare military form "0600".
	compactClockPattern = regexp.MustCompile(`^([0-9]{2})([0-9]{2})[hH]?$`)
	// Local notices write noon as "12:00 NN" and midnight as "12:00 MN".
	meridiemSuffixPattern = regexp.MustCompile(`^(.*?)\s*(NN|N\.N\.|MN|M\.N\.)$`)
	clockComponentPattern = regexp.MustCompile(`[0-9]:[0-5][0-9]|[0-9]\s*[AP]M\b`)
)

var clockLayouts = []string{
	"15:04",
	"15:04:05",
	"3:04PM",
	"3:04 PM",
	"3PM",
	"3 PM",
}

var meridiemReplacer = strings.NewReplacer("A.M.", "AM", "P.M.", "PM")

// normalizeClock upper-cases value and rewrites local spellings into forms
// the clock layouts accept: "2000H" and "2000" become "20:00", "12:00 NN"
// becomes "12:00 PM" and "12:00 MN" becomes "12:00 AM".
func normalizeClock(value string) string {
	trimmed := strings.ToUpper(strings.TrimSpace(value))
	if m := compactClockPattern.FindStringSubmatch(trimmed); m != nil {
		return m[1] + ":" + m[2]
	}
	switch trimmed {
	case "NOON":
		return "12:00 PM"
	case "MIDNIGHT":
		return "12:00 AM"
	}
	trimmed = meridiemReplacer.Replace(trimmed)
	if m := meridiemSuffixPattern.FindStringSubmatch(trimmed); m != nil {
		if strings.HasPrefix(m[2], "N") {
			return m[1] + " PM"
		}
		return m[1] + " AM"
	}
	return trimmed
}

// parseDate reads a free-form calendar date and returns midnight of that day in loc.
func parseDate(value string, loc *time.Location) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	parsed, err := dateparse.ParseIn(trimmed, loc)
	if err != nil {
		return time.Time{}, err
	}
	parsed = parsed.In(loc)
	return time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 0, 0, 0, 0, loc), nil
}

// parseClockOn reads a clock time and places it on day. Same-day is assumed,
// so an end time before the start time is not rolled forward.
func parseClockOn(value string, day time.Time) (time.Time, error) {
	normalized := normalizeClock(value)
	if normalized == "" {
		return time.Time{}, fmt.Errorf("empty time")
	}

	for _, layout := range clockLayouts {
		if clock, err := time.Parse(layout, normalized); err == nil {
			return onDay(day, clock), nil
		}
	}

	// dateparse reads digit runs without a clock as years or days and would
	// yield midnight, so only input with an explicit clock reaches it.
	if compactClockPattern.MatchString(strings.TrimSpace(value)) || !clockComponentPattern.MatchString(normalized) {
		return time.Time{}, fmt.Errorf("unrecognized clock time %q", value)
	}
	parsed, err := dateparse.ParseIn(normalized, day.Location())
	if err != nil {
		return time.Time{}, err
	}
	return onDay(day, parsed.In(day.Location())), nil
}

func onDay(day, clock time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), clock.Hour(), clock.Minute(), clock.Second(), 0, day.Location())
}

type schedule struct {
	date  time.Time
	start time.Time
	end   time.Time
}

func parseSchedule(date, startTime, endTime string, loc *time.Location) (schedule, error) {
	if strings.TrimSpace(date) == "" {
		return schedule{}, &DateTimeParseError{Field: "date"}
	}
	day, err := parseDate(date, loc)
	if err != nil {
		return schedule{}, &DateTimeParseError{Field: "date", Value: date, Err: err}
	}

	if strings.TrimSpace(startTime) == "" {
		return schedule{}, &DateTimeParseError{Field: "start_time"}
	}
	start, err := parseClockOn(startTime, day)
	if err != nil {
		return schedule{}, &DateTimeParseError{Field: "start_time", Value: startTime, Err: err}
	}

	if strings.TrimSpace(endTime) == "" {
		return schedule{}, &DateTimeParseError{Field: "end_time"}
	}
	end, err := parseClockOn(endTime, day)
	if err != nil {
		return schedule{}, &DateTimeParseError{Field: "end_time", Value: endTime, Err: err}
	}

	return schedule{date: day, start: start, end: end}, nil
}
