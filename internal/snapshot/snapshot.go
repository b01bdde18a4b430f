// Package snapshot reads and writes offline backlog snapshots.
//
// A snapshot holds everything one allocation or projection consumes: the
// capacity preference, the library and the sessions already on the calendar.
// Files are TOML or YAML with identical keys; the format follows the file
// extension.
package snapshot

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/example/backlog-scheduler/internal/backlog"
	"github.com/example/backlog-scheduler/internal/capacity"
	"github.com/example/backlog-scheduler/internal/projection"
	"github.com/example/backlog-scheduler/internal/scheduler"
)

// ErrUnsupportedFormat is returned for file extensions other than TOML or YAML.
var ErrUnsupportedFormat = errors.New("snapshot: unsupported format")

// Format selects the snapshot encoding.
type Format string

const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
)

// FormatFromPath picks the encoding from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
}

// Snapshot is the offline input of one planning session. A zero Now is
// replaced by the caller's clock.
type Snapshot struct {
	Now      time.Time `toml:"now,omitempty" yaml:"now,omitempty"`
	Capacity Capacity  `toml:"capacity" yaml:"capacity"`
	Games    []Game    `toml:"games" yaml:"games"`
	Existing []Session `toml:"existing,omitempty" yaml:"existing,omitempty"`
}

// Capacity mirrors the weekly budget with "HH:MM" day bounds.
type Capacity struct {
	WeeklyMinutes  int    `toml:"weekly_minutes" yaml:"weekly_minutes"`
	SessionMinutes int    `toml:"session_minutes" yaml:"session_minutes"`
	Timezone       string `toml:"timezone,omitempty" yaml:"timezone,omitempty"`
	DayStart       string `toml:"day_start,omitempty" yaml:"day_start,omitempty"`
	DayEnd         string `toml:"day_end,omitempty" yaml:"day_end,omitempty"`
}

// Game is one library entry.
type Game struct {
	ID              string `toml:"id" yaml:"id"`
	Title           string `toml:"title" yaml:"title"`
	Priority        int    `toml:"priority" yaml:"priority"`
	PlayedMinutes   int    `toml:"played_minutes" yaml:"played_minutes"`
	EstimateMinutes *int   `toml:"estimate_minutes,omitempty" yaml:"estimate_minutes,omitempty"`
	Status          string `toml:"status,omitempty" yaml:"status,omitempty"`
}

// Session is a calendar entry that allocation must avoid.
type Session struct {
	GameID string    `toml:"game_id" yaml:"game_id"`
	Start  time.Time `toml:"start" yaml:"start"`
	End    time.Time `toml:"end" yaml:"end"`
}

// Load reads the snapshot at path.
func Load(path string) (Snapshot, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return Snapshot{}, err
	}
	file, err := os.Open(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("snapshot: open %s: %w", path, err)
	}
	defer file.Close()

	snap, err := Decode(file, format)
	if err != nil {
		return Snapshot{}, fmt.Errorf("snapshot: %s: %w", path, err)
	}
	return snap, nil
}

// Decode parses a snapshot. Unknown keys are rejected.
func Decode(r io.Reader, format Format) (Snapshot, error) {
	var snap Snapshot
	switch format {
	case FormatTOML:
		decoder := toml.NewDecoder(r)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&snap); err != nil {
			return Snapshot{}, fmt.Errorf("parse toml: %w", err)
		}
	case FormatYAML:
		decoder := yaml.NewDecoder(r)
		decoder.KnownFields(true)
		if err := decoder.Decode(&snap); err != nil && !errors.Is(err, io.EOF) {
			return Snapshot{}, fmt.Errorf("parse yaml: %w", err)
		}
	default:
		return Snapshot{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	return snap, nil
}

// Encode writes the snapshot in the given format.
func Encode(w io.Writer, format Format, snap Snapshot) error {
	switch format {
	case FormatTOML:
		return toml.NewEncoder(w).Encode(snap)
	case FormatYAML:
		var buf bytes.Buffer
		encoder := yaml.NewEncoder(&buf)
		encoder.SetIndent(2)
		if err := encoder.Encode(snap); err != nil {
			return err
		}
		if err := encoder.Close(); err != nil {
			return err
		}
		_, err := w.Write(buf.Bytes())
		return err
	}
	return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}

// Save writes the snapshot to path in the format its extension names.
func Save(path string, snap Snapshot) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := Encode(&buf, format, snap); err != nil {
		return fmt.Errorf("snapshot: encode: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("snapshot: write %s: %w", path, err)
	}
	return nil
}

// Preference converts the capacity block, parsing the clock bounds.
func (s Snapshot) Preference() (capacity.Preference, error) {
	start, err := capacity.ParseClock(s.Capacity.DayStart)
	if err != nil {
		return capacity.Preference{}, fmt.Errorf("snapshot: day_start: %w", err)
	}
	end, err := capacity.ParseClock(s.Capacity.DayEnd)
	if err != nil {
		return capacity.Preference{}, fmt.Errorf("snapshot: day_end: %w", err)
	}
	return capacity.Preference{
		WeeklyMinutes:  s.Capacity.WeeklyMinutes,
		SessionMinutes: s.Capacity.SessionMinutes,
		Timezone:       s.Capacity.Timezone,
		DayStart:       start,
		DayEnd:         end,
	}, nil
}

// Items converts the library into backlog items.
func (s Snapshot) Items() ([]backlog.Item, error) {
	items := make([]backlog.Item, 0, len(s.Games))
	for _, game := range s.Games {
		status, err := backlog.ParseStatus(game.Status)
		if err != nil {
			return nil, fmt.Errorf("snapshot: game %q: %w", game.ID, err)
		}
		items = append(items, backlog.Item{
			GameID:          game.ID,
			Title:           game.Title,
			Priority:        game.Priority,
			PlayedMinutes:   game.PlayedMinutes,
			EstimateMinutes: game.EstimateMinutes,
			Status:          status,
		})
	}
	return items, nil
}

// Titles maps game ids to titles for display.
func (s Snapshot) Titles() map[string]string {
	titles := make(map[string]string, len(s.Games))
	for _, game := range s.Games {
		titles[game.ID] = game.Title
	}
	return titles
}

func (s Snapshot) now(fallback time.Time) time.Time {
	if s.Now.IsZero() {
		return fallback
	}
	return s.Now
}

// SchedulerRequest builds an allocation request for the given horizon.
func (s Snapshot) SchedulerRequest(weeks int, runID string, fallbackNow time.Time) (scheduler.Request, error) {
	pref, err := s.Preference()
	if err != nil {
		return scheduler.Request{}, err
	}
	items, err := s.Items()
	if err != nil {
		return scheduler.Request{}, err
	}
	existing := make([]scheduler.Session, 0, len(s.Existing))
	for _, session := range s.Existing {
		existing = append(existing, scheduler.Session{GameID: session.GameID, Start: session.Start, End: session.End})
	}
	return scheduler.Request{
		Backlog:  items,
		Capacity: pref,
		Existing: existing,
		Weeks:    weeks,
		Now:      s.now(fallbackNow),
		RunID:    runID,
	}, nil
}

// ProjectionRequest builds a projection request. Existing sessions do not
// affect projections.
func (s Snapshot) ProjectionRequest(fallbackNow time.Time) (projection.Request, error) {
	pref, err := s.Preference()
	if err != nil {
		return projection.Request{}, err
	}
	items, err := s.Items()
	if err != nil {
		return projection.Request{}, err
	}
	return projection.Request{Backlog: items, Capacity: pref, Now: s.now(fallbackNow)}, nil
}
