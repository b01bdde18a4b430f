// Package backlog produces the priority-ordered view of a user's unfinished games.
package backlog

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Status is the library state of a game.
type Status string

const (
	// StatusPlanned marks a game the user intends to play.
	StatusPlanned Status = "planned"
	// StatusPlaying marks a game in progress.
	StatusPlaying Status = "playing"
	// StatusFinished marks a completed game.
	StatusFinished Status = "finished"
	// StatusDropped marks a game the user gave up on.
	StatusDropped Status = "dropped"
)

// Active reports whether the status belongs in the backlog ordering.
// An unset status is treated as planned.
func (s Status) Active() bool {
	switch s {
	case "", StatusPlanned, StatusPlaying:
		return true
	default:
		return false
	}
}

// ParseStatus normalizes a status name. An empty value yields StatusPlanned.
func ParseStatus(value string) (Status, error) {
	switch Status(strings.ToLower(strings.TrimSpace(value))) {
	case "", StatusPlanned:
		return StatusPlanned, nil
	case StatusPlaying:
		return StatusPlaying, nil
	case StatusFinished:
		return StatusFinished, nil
	case StatusDropped:
		return StatusDropped, nil
	}
	return "", fmt.Errorf("backlog: unknown status %q", value)
}

var (
	// ErrDuplicatePriority indicates two active items share a priority.
	ErrDuplicatePriority = errors.New("backlog: duplicate priority among active items")
	// ErrInvalidItem indicates an item violates the record invariants.
	ErrInvalidItem = errors.New("backlog: invalid item")
)

// DuplicatePriorityError names the games that collide on a priority value.
type DuplicatePriorityError struct {
	Priority int
	GameIDs  []string
}

// Error implements the error interface.
func (e *DuplicatePriorityError) Error() string {
	return fmt.Sprintf("backlog: priority %d shared by games %s", e.Priority, strings.Join(e.GameIDs, ", "))
}

// Is allows errors.Is(err, ErrDuplicatePriority).
func (e *DuplicatePriorityError) Is(target error) bool {
	return target == ErrDuplicatePriority
}

// Item is one game from a user's library as the engine sees it.
// EstimateMinutes is nil when no estimate is known.
type Item struct {
	GameID          string
	Title           string
	Priority        int
	PlayedMinutes   int
	EstimateMinutes *int
	Status          Status
}

// EstimateKnown reports whether a time-to-finish estimate exists.
func (i Item) EstimateKnown() bool {
	return i.EstimateMinutes != nil
}

// Remaining returns max(0, estimate - played). It is zero for unknown estimates;
// use Need for scheduling purposes.
func (i Item) Remaining() int {
	if i.EstimateMinutes == nil {
		return 0
	}
	if remaining := *i.EstimateMinutes - i.PlayedMinutes; remaining > 0 {
		return remaining
	}
	return 0
}

// Need returns the minutes the item asks for: its remaining time when the
// estimate is known, otherwise exactly one default block.
func (i Item) Need(defaultBlock int) int {
	if !i.EstimateKnown() {
		return defaultBlock
	}
	return i.Remaining()
}

// Order filters items down to the schedulable backlog and sorts it by priority.
//
// Inactive items are dropped, as are items whose known estimate is already
// covered by played time. Duplicate priorities among active items are reported
// rather than tie-broken. The returned slice is freshly allocated.
func Order(items []Item) ([]Item, error) {
	seenIDs := make(map[string]struct{}, len(items))
	byPriority := make(map[int][]string)
	active := make([]Item, 0, len(items))

	for _, item := range items {
		if err := validate(item); err != nil {
			return nil, err
		}
		if _, dup := seenIDs[item.GameID]; dup {
			return nil, fmt.Errorf("%w: game %s listed twice", ErrInvalidItem, item.GameID)
		}
		seenIDs[item.GameID] = struct{}{}

		if !item.Status.Active() {
			continue
		}
		byPriority[item.Priority] = append(byPriority[item.Priority], item.GameID)
		active = append(active, cloneItem(item))
	}

	if err := duplicateError(byPriority); err != nil {
		return nil, err
	}

	sort.Slice(active, func(a, b int) bool {
		return active[a].Priority < active[b].Priority
	})

	ordered := active[:0]
	for _, item := range active {
		if item.EstimateKnown() && item.Remaining() == 0 {
			continue
		}
		ordered = append(ordered, item)
	}
	return ordered, nil
}

func validate(item Item) error {
	if strings.TrimSpace(item.GameID) == "" {
		return fmt.Errorf("%w: game id is required", ErrInvalidItem)
	}
	if item.PlayedMinutes < 0 {
		return fmt.Errorf("%w: game %s has negative played minutes", ErrInvalidItem, item.GameID)
	}
	if item.EstimateMinutes != nil && *item.EstimateMinutes < 0 {
		return fmt.Errorf("%w: game %s has a negative estimate", ErrInvalidItem, item.GameID)
	}
	return nil
}

func duplicateError(byPriority map[int][]string) error {
	var worst *DuplicatePriorityError
	for priority, ids := range byPriority {
		if len(ids) < 2 {
			continue
		}
		// Report the most urgent collision so the message is deterministic.
		if worst == nil || priority < worst.Priority {
			sorted := append([]string(nil), ids...)
			sort.Strings(sorted)
			worst = &DuplicatePriorityError{Priority: priority, GameIDs: sorted}
		}
	}
	if worst == nil {
		return nil
	}
	return worst
}

func cloneItem(item Item) Item {
	if item.EstimateMinutes != nil {
		estimate := *item.EstimateMinutes
		item.EstimateMinutes = &estimate
	}
	return item
}

// Minutes is a convenience for building an estimate pointer.
func Minutes(value int) *int {
	return &value
}
