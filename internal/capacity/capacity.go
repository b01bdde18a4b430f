// Package capacity turns a user's weekly time budget into placeable time.
//
// A Model is built from a Preference and answers three questions for any week:
// where the week starts and ends in the user's timezone, how many minutes may be
// scheduled in it, and which time-of-day windows sessions may be packed into.
package capacity

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // zone lookups on hosts without zoneinfo
)

const minutesPerDay = 24 * 60

// ErrInvalidConfiguration indicates the capacity preference cannot drive an allocation.
var ErrInvalidConfiguration = errors.New("capacity: invalid configuration")

// ConfigError reports which preference field made the configuration unusable.
type ConfigError struct {
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("capacity: invalid %s: %s", e.Field, e.Reason)
}

// Is allows errors.Is(err, ErrInvalidConfiguration).
func (e *ConfigError) Is(target error) bool {
	return target == ErrInvalidConfiguration
}

// Preference is the per-user recurring weekly budget.
//
// DayStart and DayEnd bound the time of day sessions may occupy, in minutes
// after local midnight. A zero DayEnd means the end of the day, so the zero
// value of both fields allows the whole day.
type Preference struct {
	WeeklyMinutes  int
	SessionMinutes int
	Timezone       string
	DayStart       int
	DayEnd         int
}

// Interval is a half-open span of time [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Minutes returns the whole minutes covered by the interval, rounding partial minutes up.
func (i Interval) Minutes() int {
	return ceilMinutes(i.End.Sub(i.Start))
}

// Overlaps reports whether both intervals share any instant.
func (i Interval) Overlaps(other Interval) bool {
	return i.Start.Before(other.End) && other.Start.Before(i.End)
}

// Clip returns the part of i that lies within bounds.
func (i Interval) Clip(bounds Interval) (Interval, bool) {
	if !i.Overlaps(bounds) {
		return Interval{}, false
	}
	clipped := i
	if clipped.Start.Before(bounds.Start) {
		clipped.Start = bounds.Start
	}
	if clipped.End.After(bounds.End) {
		clipped.End = bounds.End
	}
	return clipped, true
}

// Model answers week and slot questions for a validated Preference.
type Model struct {
	pref     Preference
	location *time.Location
	dayStart int
	dayEnd   int
}

// New validates the preference and builds a Model.
//
// A non-positive session length, a negative weekly budget, an unknown timezone
// or an empty day window are configuration faults. A weekly budget of zero is
// valid and means the user currently has no capacity.
func New(pref Preference) (*Model, error) {
	if pref.SessionMinutes <= 0 {
		return nil, &ConfigError{Field: "session_minutes", Reason: "must be positive"}
	}
	if pref.WeeklyMinutes < 0 {
		return nil, &ConfigError{Field: "weekly_minutes", Reason: "must not be negative"}
	}

	loc, err := LoadLocation(pref.Timezone)
	if err != nil {
		return nil, &ConfigError{Field: "timezone", Reason: err.Error()}
	}

	dayEnd := pref.DayEnd
	if dayEnd == 0 {
		dayEnd = minutesPerDay
	}
	if pref.DayStart < 0 || pref.DayStart >= minutesPerDay {
		return nil, &ConfigError{Field: "day_start", Reason: "must be within the day"}
	}
	if dayEnd <= pref.DayStart || dayEnd > minutesPerDay {
		return nil, &ConfigError{Field: "day_end", Reason: "must be after day_start and within the day"}
	}

	return &Model{pref: pref, location: loc, dayStart: pref.DayStart, dayEnd: dayEnd}, nil
}

// LoadLocation resolves an IANA zone name; an empty name means UTC.
func LoadLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, "UTC") {
		return time.UTC, nil
	}
	return time.LoadLocation(name)
}

// Preference returns the preference the model was built from.
func (m *Model) Preference() Preference {
	return m.pref
}

// Location returns the timezone anchoring week boundaries.
func (m *Model) Location() *time.Location {
	return m.location
}

// WeekWindow returns the Monday-midnight start of the local week containing
// anchor and the start of the following week.
func (m *Model) WeekWindow(anchor time.Time) (time.Time, time.Time) {
	local := anchor.In(m.location)
	offset := (int(local.Weekday()) + 6) % 7
	y, mo, d := local.Date()
	start := time.Date(y, mo, d-offset, 0, 0, 0, 0, m.location)
	end := time.Date(y, mo, d-offset+7, 0, 0, 0, 0, m.location)
	return start, end
}

// AvailableMinutes returns the scheduling ceiling for the week starting at weekStart.
// The preference does not vary by week.
func (m *Model) AvailableMinutes(time.Time) int {
	return m.pref.WeeklyMinutes
}

// SlotLength returns the nominal session length in minutes.
func (m *Model) SlotLength() int {
	return m.pref.SessionMinutes
}

// DefaultBlock is the single block granted to a game with no known estimate.
// It is capped at WeeklyMinutes when that is positive and smaller, so such a
// game always fits an empty week. The allocator and the projector both size
// unknown games with it and so charge them the same minutes.
func (m *Model) DefaultBlock() int {
	if m.pref.WeeklyMinutes > 0 && m.pref.WeeklyMinutes < m.pref.SessionMinutes {
		return m.pref.WeeklyMinutes
	}
	return m.pref.SessionMinutes
}

// HasCapacity reports whether any minutes can be scheduled at all.
func (m *Model) HasCapacity() bool {
	return m.pref.WeeklyMinutes > 0
}

// DayWindows returns the placeable window of each of the seven days starting at
// weekStart, in chronological order.
func (m *Model) DayWindows(weekStart time.Time) []Interval {
	local := weekStart.In(m.location)
	y, mo, d := local.Date()

	windows := make([]Interval, 0, 7)
	for day := 0; day < 7; day++ {
		start := time.Date(y, mo, d+day, m.dayStart/60, m.dayStart%60, 0, 0, m.location)
		var end time.Time
		if m.dayEnd == minutesPerDay {
			end = time.Date(y, mo, d+day+1, 0, 0, 0, 0, m.location)
		} else {
			end = time.Date(y, mo, d+day, m.dayEnd/60, m.dayEnd%60, 0, 0, m.location)
		}
		if !end.After(start) {
			continue
		}
		windows = append(windows, Interval{Start: start, End: end})
	}
	return windows
}

// ParseClock parses "HH:MM" into minutes after midnight. "24:00" is accepted as
// the end of the day.
func ParseClock(value string) (int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	if value == "24:00" {
		return minutesPerDay, nil
	}
	parsed, err := time.Parse("15:04", value)
	if err != nil {
		return 0, fmt.Errorf("capacity: invalid clock value %q", value)
	}
	return parsed.Hour()*60 + parsed.Minute(), nil
}

// FormatClock renders minutes after midnight as "HH:MM".
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

func ceilMinutes(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	whole := d / time.Minute
	if d%time.Minute != 0 {
		whole++
	}
	return int(whole)
}
