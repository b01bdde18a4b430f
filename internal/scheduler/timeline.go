package scheduler

import (
	"sort"
	"time"

	"github.com/example/backlog-scheduler/internal/capacity"
)

// timeline is the sorted set of busy intervals for one user during a run.
type timeline struct {
	busy []capacity.Interval
}

func newTimeline(existing []Session) (*timeline, error) {
	busy := make([]capacity.Interval, 0, len(existing))
	for _, session := range existing {
		if !session.End.After(session.Start) {
			return nil, ErrInvalidSession
		}
		busy = append(busy, capacity.Interval{Start: session.Start, End: session.End})
	}
	sort.Slice(busy, func(i, j int) bool {
		return busy[i].Start.Before(busy[j].Start)
	})
	return &timeline{busy: busy}, nil
}

// minutesWithin sums the busy minutes that fall inside bounds.
func (t *timeline) minutesWithin(bounds capacity.Interval) int {
	total := 0
	for _, interval := range t.busy {
		if !interval.Start.Before(bounds.End) {
			break
		}
		if clipped, ok := interval.Clip(bounds); ok {
			total += clipped.Minutes()
		}
	}
	return total
}

// earliest finds the first start at or after notBefore where a block of the
// given length fits inside one window without touching a busy interval.
func (t *timeline) earliest(windows []capacity.Interval, notBefore time.Time, minutes int) (time.Time, bool) {
	length := time.Duration(minutes) * time.Minute
	for _, window := range windows {
		if !window.End.After(notBefore) {
			continue
		}
		cursor := window.Start
		if cursor.Before(notBefore) {
			cursor = notBefore
		}

		for _, interval := range t.busy {
			if !interval.End.After(cursor) {
				continue
			}
			if !interval.Start.Before(window.End) {
				break
			}
			if !cursor.Add(length).After(interval.Start) {
				break
			}
			cursor = interval.End
		}

		if !cursor.Add(length).After(window.End) {
			return cursor, true
		}
	}
	return time.Time{}, false
}

func (t *timeline) insert(interval capacity.Interval) {
	idx := sort.Search(len(t.busy), func(i int) bool {
		return t.busy[i].Start.After(interval.Start)
	})
	t.busy = append(t.busy, capacity.Interval{})
	copy(t.busy[idx+1:], t.busy[idx:])
	t.busy[idx] = interval
}
