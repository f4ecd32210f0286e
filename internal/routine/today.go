package routine

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/beanjar/internal/model"
)

var dayTokens = [7]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

var ErrNoDays = errors.New("days_of_week must name at least one day")

// ParseDays turns a comma-joined day list ("Mon,Wed,Fri") into a weekday set.
// Tokens are matched case-insensitively on their first three letters.
func ParseDays(s string) (map[time.Weekday]bool, error) {
	days := make(map[time.Weekday]bool)
	for _, tok := range strings.Split(s, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		wd, ok := weekdayFromToken(tok)
		if !ok {
			return nil, fmt.Errorf("unknown day %q", tok)
		}
		days[wd] = true
	}
	if len(days) == 0 {
		return nil, ErrNoDays
	}
	return days, nil
}

func weekdayFromToken(tok string) (time.Weekday, bool) {
	if len(tok) < 3 {
		return 0, false
	}
	prefix := strings.ToLower(tok[:3])
	for i, d := range dayTokens {
		if strings.ToLower(d) == prefix {
			return time.Weekday(i), true
		}
	}
	return 0, false
}

// FormatDays renders a weekday set in canonical Sun..Sat order.
func FormatDays(days map[time.Weekday]bool) string {
	var parts []string
	for i, d := range dayTokens {
		if days[time.Weekday(i)] {
			parts = append(parts, d)
		}
	}
	return strings.Join(parts, ",")
}

// NormalizeDays validates and canonicalises a day list.
func NormalizeDays(s string) (string, error) {
	days, err := ParseDays(s)
	if err != nil {
		return "", err
	}
	return FormatDays(days), nil
}

// ScheduledOn reports whether the routine runs on t's weekday.
func ScheduledOn(r model.Routine, t time.Time) bool {
	days, err := ParseDays(r.DaysOfWeek)
	if err != nil {
		return false
	}
	return days[t.Weekday()]
}

// Today projects a routine onto the day containing now. tasks are the tasks
// produced by the routine; any created inside today's window marks it done.
// When several match, the newest wins.
func Today(r model.Routine, tasks []model.Task, now time.Time) model.RoutineToday {
	out := model.RoutineToday{
		Routine:        r,
		ScheduledToday: ScheduledOn(r, now),
	}

	start := StartOfDay(now)
	end := EndOfDay(now)

	var match *model.Task
	for i := range tasks {
		t := &tasks[i]
		if t.RoutineID == nil || *t.RoutineID != r.ID {
			continue
		}
		if t.CreatedAt.Before(start) || t.CreatedAt.After(end) {
			continue
		}
		if match == nil || t.CreatedAt.After(match.CreatedAt) {
			match = t
		}
	}

	if match != nil {
		id := match.ID
		status := match.Status
		out.IsCompletedToday = true
		out.TaskID = &id
		out.TaskStatus = &status
	}
	return out
}

func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// EndOfDay is the last representable instant of t's day.
func EndOfDay(t time.Time) time.Time {
	return StartOfDay(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}
