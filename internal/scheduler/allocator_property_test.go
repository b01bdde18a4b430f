package scheduler_test

import (
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/example/backlog-scheduler/internal/backlog"
	"github.com/example/backlog-scheduler/internal/capacity"
	"github.com/example/backlog-scheduler/internal/projection"
	"github.com/example/backlog-scheduler/internal/scheduler"
)

var propertyMonday = time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC)

// allocationCase is a randomly generated allocation input.
type allocationCase struct {
	Items    []backlog.Item
	Pref     capacity.Preference
	Existing []scheduler.Session
	Weeks    int
	Now      time.Time
}

func (c allocationCase) request() scheduler.Request {
	return scheduler.Request{
		Backlog:  c.Items,
		Capacity: c.Pref,
		Existing: c.Existing,
		Weeks:    c.Weeks,
		Now:      c.Now,
		RunID:    "prop",
	}
}

// genAllocationCase builds backlogs of one to six games with unique priorities,
// some of them without an estimate. Existing sessions and a mid-week now are
// only produced when realistic is set; otherwise the case is one the projector
// must agree with.
func genAllocationCase(realistic bool) gopter.Gen {
	return gen.IntRange(1, 6).FlatMap(func(n interface{}) gopter.Gen {
		count := n.(int)
		return gopter.CombineGens(
			gen.SliceOfN(count, gen.IntRange(0, 1500)),
			gen.SliceOfN(count, gen.IntRange(0, 300)),
			gen.SliceOfN(count, gen.Bool()),
			gen.IntRange(0, 3000),
			gen.IntRange(15, 240),
			gen.IntRange(1, 4),
			gen.SliceOfN(4, gen.IntRange(0, 4*7*24*60)),
			gen.SliceOfN(4, gen.IntRange(1, 180)),
			gen.IntRange(0, 7*24*60-1),
		).Map(func(values []interface{}) allocationCase {
			estimates := values[0].([]int)
			played := values[1].([]int)
			unknownFlags := values[2].([]bool)
			offsets := values[6].([]int)
			lengths := values[7].([]int)

			c := allocationCase{
				Pref:  capacity.Preference{WeeklyMinutes: values[3].(int), SessionMinutes: values[4].(int)},
				Weeks: values[5].(int),
				Now:   propertyMonday,
			}

			size := min(len(estimates), len(played), len(unknownFlags))
			for i := 0; i < size; i++ {
				item := backlog.Item{
					GameID:        fmt.Sprintf("game-%d", i),
					Priority:      size - i,
					PlayedMinutes: played[i],
					Status:        backlog.StatusPlaying,
				}
				if !unknownFlags[i] {
					item.EstimateMinutes = backlog.Minutes(estimates[i])
				}
				c.Items = append(c.Items, item)
			}

			if realistic {
				c.Now = propertyMonday.Add(time.Duration(values[8].(int)) * time.Minute)
				for i := 0; i < min(len(offsets), len(lengths)); i++ {
					start := propertyMonday.Add(time.Duration(offsets[i]) * time.Minute)
					c.Existing = append(c.Existing, scheduler.Session{
						GameID: fmt.Sprintf("booked-%d", i),
						Start:  start,
						End:    start.Add(time.Duration(lengths[i]) * time.Minute),
					})
				}
			}
			return c
		})
	}, reflect.TypeOf(allocationCase{}))
}

func newProperties() *gopter.Properties {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.MaxSize = 20
	return gopter.NewProperties(parameters)
}

func TestAllocateProperties(t *testing.T) {
	properties := newProperties()

	properties.Property("generated sessions never overlap each other or existing sessions", prop.ForAll(
		func(c allocationCase) bool {
			sessions, err := scheduler.Allocate(c.request())
			if err != nil {
				return false
			}
			plain := make([]scheduler.Session, 0, len(sessions))
			for _, s := range sessions {
				if len(scheduler.DetectOverlaps(c.Existing, s.Session())) > 0 {
					return false
				}
				plain = append(plain, s.Session())
			}
			return len(scheduler.FindConflicts(plain)) == 0
		},
		genAllocationCase(true),
	))

	properties.Property("weekly budget is never exceeded", prop.ForAll(
		func(c allocationCase) bool {
			sessions, err := scheduler.Allocate(c.request())
			if err != nil {
				return false
			}
			model, err := capacity.New(c.Pref)
			if err != nil {
				return false
			}

			generated := make(map[int64]int)
			for _, s := range sessions {
				start, end := model.WeekWindow(s.Start)
				if s.End.After(end) {
					return false
				}
				generated[start.Unix()] += s.Minutes()
			}
			for weekStart, minutes := range generated {
				bounds := capacity.Interval{Start: time.Unix(weekStart, 0).UTC()}
				bounds.End = bounds.Start.AddDate(0, 0, 7)
				booked := 0
				for _, e := range c.Existing {
					if clipped, ok := (capacity.Interval{Start: e.Start, End: e.End}).Clip(bounds); ok {
						booked += clipped.Minutes()
					}
				}
				if minutes > max(0, c.Pref.WeeklyMinutes-booked) {
					return false
				}
			}
			return true
		},
		genAllocationCase(true),
	))

	properties.Property("sessions start at or after now and respect the session length", prop.ForAll(
		func(c allocationCase) bool {
			sessions, err := scheduler.Allocate(c.request())
			if err != nil {
				return false
			}
			for _, s := range sessions {
				if s.Start.Before(c.Now) || s.Minutes() <= 0 || s.Minutes() > c.Pref.SessionMinutes {
					return false
				}
			}
			return true
		},
		genAllocationCase(true),
	))

	properties.Property("a game is only scheduled once every more urgent game is satisfied", prop.ForAll(
		func(c allocationCase) bool {
			sessions, err := scheduler.Allocate(c.request())
			if err != nil {
				return false
			}
			model, err := capacity.New(c.Pref)
			if err != nil {
				return false
			}
			ordered, err := backlog.Order(c.Items)
			if err != nil {
				return false
			}

			totals := scheduler.MinutesByGame(sessions)
			for i, item := range ordered {
				need := item.Need(model.DefaultBlock())
				if totals[item.GameID] > need {
					return false
				}
				if totals[item.GameID] == 0 {
					continue
				}
				for _, ahead := range ordered[:i] {
					if totals[ahead.GameID] != ahead.Need(model.DefaultBlock()) {
						return false
					}
				}
			}
			return true
		},
		genAllocationCase(true),
	))

	properties.Property("allocation agrees with the projection week by week", prop.ForAll(
		func(c allocationCase) bool {
			result, err := projection.Project(projection.Request{Backlog: c.Items, Capacity: c.Pref, Now: c.Now})
			if err != nil {
				return false
			}
			for weeks := 1; weeks <= c.Weeks; weeks++ {
				req := c.request()
				req.Weeks = weeks
				sessions, err := scheduler.Allocate(req)
				if err != nil {
					return false
				}
				if !sameTotals(scheduler.MinutesByGame(sessions), result.MinutesWithin(weeks)) {
					return false
				}
			}
			return true
		},
		genAllocationCase(false),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestAllocateMatchesProjectionForUnknownEstimates(t *testing.T) {
	t.Parallel()

	items := []backlog.Item{
		{GameID: "a", Priority: 1, EstimateMinutes: backlog.Minutes(70), Status: backlog.StatusPlanned},
		{GameID: "u", Priority: 2, Status: backlog.StatusPlanned},
		{GameID: "b", Priority: 3, EstimateMinutes: backlog.Minutes(100), Status: backlog.StatusPlanned},
	}
	pref := capacity.Preference{WeeklyMinutes: 100, SessionMinutes: 60}

	result, err := projection.Project(projection.Request{Backlog: items, Capacity: pref, Now: propertyMonday})
	if err != nil {
		t.Fatalf("Project returned error: %v", err)
	}
	if result.Projections[1].WeeksUntilStart != 0 {
		t.Fatalf("expected u to start in the current week, got %d", result.Projections[1].WeeksUntilStart)
	}
	for weeks := 1; weeks <= 3; weeks++ {
		sessions, err := scheduler.Allocate(scheduler.Request{Backlog: items, Capacity: pref, Weeks: weeks, Now: propertyMonday})
		if err != nil {
			t.Fatalf("Allocate returned error: %v", err)
		}
		got, want := scheduler.MinutesByGame(sessions), result.MinutesWithin(weeks)
		if !sameTotals(got, want) {
			t.Fatalf("after %d weeks allocation placed %v, projection expects %v", weeks, got, want)
		}
	}
}

// The current week keeps its full budget, but only the time left after now is
// placeable. Late on Sunday the allocator therefore falls short of the
// projection for that week and the next week starts with a fresh budget.
func TestAllocateLateInTheWeek(t *testing.T) {
	t.Parallel()

	items := []backlog.Item{{GameID: "long", Priority: 1, EstimateMinutes: backlog.Minutes(2000), Status: backlog.StatusPlaying}}
	pref := capacity.Preference{WeeklyMinutes: 600, SessionMinutes: 60}
	sundayNight := propertyMonday.Add(6*24*time.Hour + 22*time.Hour + 30*time.Minute)
	nextMonday := propertyMonday.AddDate(0, 0, 7)

	sessions, err := scheduler.Allocate(scheduler.Request{Backlog: items, Capacity: pref, Weeks: 2, Now: sundayNight})
	if err != nil {
		t.Fatalf("Allocate returned error: %v", err)
	}
	current, following := 0, 0
	for _, s := range sessions {
		if s.Start.Before(sundayNight) {
			t.Fatalf("session %+v starts before now", s)
		}
		if s.Start.Before(nextMonday) {
			current += s.Minutes()
			continue
		}
		following += s.Minutes()
	}
	if current != 60 {
		t.Fatalf("expected one 60 minute session before midnight, got %d minutes", current)
	}
	if following != 600 {
		t.Fatalf("expected the next week to get its full budget, got %d minutes", following)
	}

	result, err := projection.Project(projection.Request{Backlog: items, Capacity: pref, Now: sundayNight})
	if err != nil {
		t.Fatalf("Project returned error: %v", err)
	}
	if got := result.MinutesWithin(1)["long"]; got != 600 {
		t.Fatalf("expected the projection to count the full current week, got %d", got)
	}
}

func sameTotals(a, b map[string]int) bool {
	for id, minutes := range a {
		if b[id] != minutes {
			return false
		}
	}
	for id, minutes := range b {
		if a[id] != minutes {
			return false
		}
	}
	return true
}
