// Package scheduler places play sessions for a user's backlog into free calendar time.
//
// Allocation is a greedy single pass over weeks. Each week's budget is the
// weekly capacity minus the minutes already booked in that week; the budget is
// spent on the backlog in priority order, carrying a partially scheduled game
// into the following week before any lower priority game is considered. A game
// without an estimate needs exactly one default block and is split across a
// week boundary like any other game when the week's leftover is smaller.
//
// Sessions are packed forward from the start of each day's window, then the
// next day. A run never overlaps existing sessions or its own output, never
// places a session before Now and never spends more than a week's budget.
package scheduler

import (
	"errors"
	"time"

	"github.com/example/backlog-scheduler/internal/backlog"
	"github.com/example/backlog-scheduler/internal/capacity"
)

var (
	// ErrInvalidHorizon indicates fewer than one week was requested.
	ErrInvalidHorizon = errors.New("scheduler: weeks requested must be at least 1")
	// ErrInvalidSession indicates an existing session does not end after it starts.
	ErrInvalidSession = errors.New("scheduler: existing session must end after it starts")
)

// GeneratedSession is a session created by an allocation run.
// SourceRun identifies the batch so it can be undone as a unit.
type GeneratedSession struct {
	GameID    string
	Start     time.Time
	End       time.Time
	SourceRun string
}

// Minutes returns the session length in minutes.
func (g GeneratedSession) Minutes() int {
	return int(g.End.Sub(g.Start) / time.Minute)
}

// Session converts the generated session into a plain calendar entry.
func (g GeneratedSession) Session() Session {
	return Session{GameID: g.GameID, Start: g.Start, End: g.End}
}

// Request carries everything one allocation run consumes.
type Request struct {
	Backlog  []backlog.Item
	Capacity capacity.Preference
	Existing []Session
	Weeks    int
	Now      time.Time
	RunID    string
}

// cursor tracks the backlog position and how much of the current game has
// been placed during this run.
type cursor struct {
	index  int
	placed int
}

// Allocate produces the sessions for the requested horizon.
//
// Configuration and integrity faults are returned before anything is placed.
// An empty backlog or a horizon without usable capacity yields an empty batch.
func Allocate(req Request) ([]GeneratedSession, error) {
	if req.Weeks < 1 {
		return nil, ErrInvalidHorizon
	}
	model, err := capacity.New(req.Capacity)
	if err != nil {
		return nil, err
	}
	items, err := backlog.Order(req.Backlog)
	if err != nil {
		return nil, err
	}
	busy, err := newTimeline(req.Existing)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 || !model.HasCapacity() {
		return nil, nil
	}

	firstWeek, _ := model.WeekWindow(req.Now)
	var (
		generated []GeneratedSession
		cur       cursor
	)
	for week := 0; week < req.Weeks && cur.index < len(items); week++ {
		start, end := model.WeekWindow(firstWeek.AddDate(0, 0, 7*week))
		var placed []GeneratedSession
		placed, cur = fillWeek(model, busy, items, cur, capacity.Interval{Start: start, End: end}, req.Now, req.RunID)
		generated = append(generated, placed...)
	}
	return generated, nil
}

// fillWeek spends one week's budget and returns the advanced cursor.
func fillWeek(model *capacity.Model, busy *timeline, items []backlog.Item, cur cursor, week capacity.Interval, now time.Time, runID string) ([]GeneratedSession, cursor) {
	remaining := model.AvailableMinutes(week.Start) - busy.minutesWithin(week)
	if remaining <= 0 {
		return nil, cur
	}

	windows := model.DayWindows(week.Start)
	notBefore := week.Start
	if now.After(notBefore) {
		notBefore = now
	}

	var placed []GeneratedSession
	for remaining > 0 && cur.index < len(items) {
		item := items[cur.index]
		need := item.Need(model.DefaultBlock())
		block := min(model.SlotLength(), need-cur.placed, remaining)

		start, ok := busy.earliest(windows, notBefore, block)
		if !ok {
			break
		}
		session := GeneratedSession{
			GameID:    item.GameID,
			Start:     start,
			End:       start.Add(time.Duration(block) * time.Minute),
			SourceRun: runID,
		}
		busy.insert(capacity.Interval{Start: session.Start, End: session.End})
		placed = append(placed, session)

		remaining -= block
		notBefore = session.End
		cur.placed += block
		if cur.placed >= need {
			cur = cursor{index: cur.index + 1}
		}
	}
	return placed, cur
}

// MinutesByGame totals the generated minutes per game.
func MinutesByGame(sessions []GeneratedSession) map[string]int {
	totals := make(map[string]int)
	for _, session := range sessions {
		totals[session.GameID] += session.Minutes()
	}
	return totals
}
