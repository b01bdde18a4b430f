package scheduler

import (
	"sort"
	"time"
)

// Session is a calendar entry already placed for the user. End is exclusive.
type Session struct {
	GameID string
	Start  time.Time
	End    time.Time
}

// Overlaps reports whether two half-open sessions share any instant.
func Overlaps(a, b Session) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

// Conflict pairs two sessions whose intervals intersect.
type Conflict struct {
	First  Session
	Second Session
}

// DetectOverlaps returns the existing sessions the candidate intersects, ordered by start.
func DetectOverlaps(existing []Session, candidate Session) []Session {
	var hits []Session
	for _, session := range existing {
		if Overlaps(session, candidate) {
			hits = append(hits, session)
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Start.Before(hits[j].Start)
	})
	return hits
}

// FindConflicts reports every intersecting pair within sessions.
func FindConflicts(sessions []Session) []Conflict {
	if len(sessions) < 2 {
		return nil
	}
	ordered := append([]Session(nil), sessions...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Start.Before(ordered[j].Start)
	})

	var conflicts []Conflict
	for i := range ordered {
		for j := i + 1; j < len(ordered); j++ {
			if !ordered[j].Start.Before(ordered[i].End) {
				break
			}
			conflicts = append(conflicts, Conflict{First: ordered[i], Second: ordered[j]})
		}
	}
	return conflicts
}
