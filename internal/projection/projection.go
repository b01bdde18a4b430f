// Package projection estimates when each backlog item will be finished.
//
// The projector walks the backlog in the same priority order the allocator
// uses and spends the same weekly budget, but arithmetically: no calendar slots
// are placed. Results are pure functions of the inputs and are never stored.
//
// A game without an estimate counts as one capacity.Model.DefaultBlock, which
// is capped at the weekly minutes exactly as in the allocator. Its completion
// date is computed from that block and flagged by EstimateKnown.
package projection

import (
	"time"

	"github.com/example/backlog-scheduler/internal/backlog"
	"github.com/example/backlog-scheduler/internal/capacity"
)

// Projection is the forecast for one backlog item.
//
// Available is false when the user has no weekly capacity; WeeksUntilStart and
// EstimatedCompletion are meaningless in that case.
type Projection struct {
	GameID                          string
	Title                           string
	Priority                        int
	RemainingMinutes                int
	CumulativeRemainingMinutesAhead int
	WeeksUntilStart                 int
	EstimatedCompletion             Date
	EstimateKnown                   bool
	Available                       bool
}

// Result is the full forecast for a backlog.
type Result struct {
	WeekStart             Date
	WeeklyMinutes         int
	TotalRemainingMinutes int
	NoCapacity            bool
	Projections           []Projection
}

// Request carries the projector inputs.
type Request struct {
	Backlog  []backlog.Item
	Capacity capacity.Preference
	Now      time.Time
}

// Project forecasts completion for every schedulable backlog item.
func Project(req Request) (Result, error) {
	model, err := capacity.New(req.Capacity)
	if err != nil {
		return Result{}, err
	}
	items, err := backlog.Order(req.Backlog)
	if err != nil {
		return Result{}, err
	}

	weekStart, _ := model.WeekWindow(req.Now)
	weekly := model.AvailableMinutes(weekStart)
	result := Result{
		WeekStart:     DateOf(weekStart),
		WeeklyMinutes: weekly,
		NoCapacity:    !model.HasCapacity(),
		Projections:   make([]Projection, 0, len(items)),
	}

	block := model.DefaultBlock()
	before := 0
	for _, item := range items {
		need := item.Need(block)
		cumulative := before + need

		projection := Projection{
			GameID:                          item.GameID,
			Title:                           item.Title,
			Priority:                        item.Priority,
			RemainingMinutes:                need,
			CumulativeRemainingMinutesAhead: cumulative,
			EstimateKnown:                   item.EstimateKnown(),
			Available:                       model.HasCapacity(),
		}
		if projection.Available {
			projection.WeeksUntilStart = before / weekly
			weeks := ceilDiv(cumulative, weekly)
			y, m, d := weekStart.Date()
			projection.EstimatedCompletion = DateOf(time.Date(y, m, d+7*weeks, 0, 0, 0, 0, weekStart.Location()))
		}

		result.Projections = append(result.Projections, projection)
		before = cumulative
	}
	result.TotalRemainingMinutes = before
	return result, nil
}

// MinutesWithin returns, per game, the minutes the simulation consumes during
// the first weeks of the forecast. It is zero for every game when there is no
// capacity.
func (r Result) MinutesWithin(weeks int) map[string]int {
	consumed := make(map[string]int, len(r.Projections))
	if r.NoCapacity || weeks <= 0 {
		return consumed
	}
	budget := r.WeeklyMinutes * weeks
	for _, p := range r.Projections {
		before := p.CumulativeRemainingMinutesAhead - p.RemainingMinutes
		available := budget - before
		if available <= 0 {
			break
		}
		consumed[p.GameID] = min(p.RemainingMinutes, available)
	}
	return consumed
}

func ceilDiv(a, b int) int {
	if a <= 0 {
		return 0
	}
	return (a + b - 1) / b
}
