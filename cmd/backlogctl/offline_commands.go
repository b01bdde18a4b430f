package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/example/backlog-scheduler/internal/capacity"
	"github.com/example/backlog-scheduler/internal/projection"
	"github.com/example/backlog-scheduler/internal/scheduler"
	"github.com/example/backlog-scheduler/internal/snapshot"
)

type sessionView struct {
	GameID  string    `json:"game_id"`
	Title   string    `json:"title"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	Minutes int       `json:"minutes"`
}

type planReport struct {
	RunID         string         `json:"run_id"`
	Weeks         int            `json:"weeks"`
	Sessions      []sessionView  `json:"sessions"`
	MinutesByGame map[string]int `json:"minutes_by_game"`
}

func newPlanCommand(ctx *commandContext) *cobra.Command {
	var (
		weeks int
		runID string
	)

	cmd := &cobra.Command{
		Use:   "plan SNAPSHOT",
		Short: "Allocate play sessions for a snapshot without touching the database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := snapshot.Load(args[0])
			if err != nil {
				return err
			}
			id := runID
			if id == "" {
				id = uuid.NewString()
			}
			req, err := snap.SchedulerRequest(weeks, id, ctx.now())
			if err != nil {
				return err
			}
			warnConflicts(cmd, scheduler.FindConflicts(req.Existing))
			sessions, err := scheduler.Allocate(req)
			if err != nil {
				return fmt.Errorf("allocate: %w", err)
			}

			report := planReport{
				RunID:         id,
				Weeks:         weeks,
				Sessions:      make([]sessionView, 0, len(sessions)),
				MinutesByGame: scheduler.MinutesByGame(sessions),
			}
			titles := snap.Titles()
			for _, session := range sessions {
				report.Sessions = append(report.Sessions, sessionView{
					GameID:  session.GameID,
					Title:   titles[session.GameID],
					Start:   session.Start,
					End:     session.End,
					Minutes: session.Minutes(),
				})
			}

			if ctx.wantJSON(cmd) {
				return writeJSON(cmd, report)
			}
			loc, _ := capacity.LoadLocation(req.Capacity.Timezone)
			printSessions(cmd, report.Sessions, loc)
			fmt.Fprintf(cmd.OutOrStdout(), "run %s: %d sessions\n", report.RunID, len(report.Sessions))
			return nil
		},
	}

	cmd.Flags().IntVar(&weeks, "weeks", 1, "Number of weeks to plan, starting with the current one")
	cmd.Flags().StringVar(&runID, "run-id", "", "Run identifier stamped on the sessions (random when empty)")
	return cmd
}

// warnConflicts reports overlapping existing sessions on stderr. They are
// still treated as busy time.
func warnConflicts(cmd *cobra.Command, conflicts []scheduler.Conflict) {
	for _, c := range conflicts {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: existing sessions overlap: %s %s-%s and %s %s-%s\n",
			c.First.GameID, c.First.Start.UTC().Format(time.RFC3339), c.First.End.UTC().Format(time.RFC3339),
			c.Second.GameID, c.Second.Start.UTC().Format(time.RFC3339), c.Second.End.UTC().Format(time.RFC3339))
	}
}

func printSessions(cmd *cobra.Command, sessions []sessionView, loc *time.Location) {
	if len(sessions) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No sessions were placed.")
		return
	}
	rows := make([][]string, 0, len(sessions))
	for _, session := range sessions {
		rows = append(rows, []string{
			session.Title,
			formatSessionTime(session.Start, loc),
			formatSessionTime(session.End, loc),
			formatMinutes(session.Minutes),
		})
	}
	printTable(cmd, []string{"Game", "Start", "End", "Length"}, rows, []columnAlignment{alignLeft, alignLeft, alignLeft, alignRight})
}

type projectionView struct {
	GameID              string           `json:"game_id"`
	Title               string           `json:"title"`
	Priority            int              `json:"priority"`
	RemainingMinutes    int              `json:"remaining_minutes"`
	MinutesAhead        int              `json:"cumulative_remaining_minutes_ahead"`
	EstimateKnown       bool             `json:"estimate_known"`
	WeeksUntilStart     *int             `json:"weeks_until_start"`
	EstimatedCompletion *projection.Date `json:"estimated_completion"`
}

type projectionReport struct {
	WeekStart             projection.Date  `json:"week_start"`
	WeeklyMinutes         int              `json:"weekly_minutes"`
	TotalRemainingMinutes int              `json:"total_remaining_minutes"`
	NoCapacity            bool             `json:"no_capacity"`
	Projections           []projectionView `json:"projections"`
}

func newProjectionReport(result projection.Result) projectionReport {
	report := projectionReport{
		WeekStart:             result.WeekStart,
		WeeklyMinutes:         result.WeeklyMinutes,
		TotalRemainingMinutes: result.TotalRemainingMinutes,
		NoCapacity:            result.NoCapacity,
		Projections:           make([]projectionView, 0, len(result.Projections)),
	}
	for _, p := range result.Projections {
		view := projectionView{
			GameID:           p.GameID,
			Title:            p.Title,
			Priority:         p.Priority,
			RemainingMinutes: p.RemainingMinutes,
			MinutesAhead:     p.CumulativeRemainingMinutesAhead,
			EstimateKnown:    p.EstimateKnown,
		}
		if p.Available {
			weeks, completion := p.WeeksUntilStart, p.EstimatedCompletion
			view.WeeksUntilStart = &weeks
			view.EstimatedCompletion = &completion
		}
		report.Projections = append(report.Projections, view)
	}
	return report
}

func printProjection(cmd *cobra.Command, report projectionReport) {
	out := cmd.OutOrStdout()
	if len(report.Projections) == 0 {
		fmt.Fprintln(out, "The backlog is empty.")
		return
	}
	rows := make([][]string, 0, len(report.Projections))
	for _, p := range report.Projections {
		remaining := formatMinutes(p.RemainingMinutes)
		if !p.EstimateKnown {
			remaining = "?"
		}
		starts, completion := "-", "-"
		if p.WeeksUntilStart != nil {
			starts = strconv.Itoa(*p.WeeksUntilStart)
			completion = p.EstimatedCompletion.String()
		}
		rows = append(rows, []string{
			strconv.Itoa(p.Priority),
			p.Title,
			remaining,
			formatMinutes(p.MinutesAhead),
			starts,
			completion,
		})
	}
	printTable(cmd,
		[]string{"#", "Game", "Remaining", "Ahead", "Starts in (weeks)", "Done by"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignRight, alignRight, alignRight, alignLeft},
	)
	fmt.Fprintf(out, "week of %s: %s per week, %s remaining\n",
		report.WeekStart, formatMinutes(report.WeeklyMinutes), formatMinutes(report.TotalRemainingMinutes))
	if report.NoCapacity {
		fmt.Fprintln(out, "No weekly capacity is configured; completion dates are unavailable.")
	}
}

func newProjectCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "project SNAPSHOT",
		Short: "Forecast completion dates for a snapshot's backlog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := snapshot.Load(args[0])
			if err != nil {
				return err
			}
			req, err := snap.ProjectionRequest(ctx.now())
			if err != nil {
				return err
			}
			result, err := projection.Project(req)
			if err != nil {
				return fmt.Errorf("project: %w", err)
			}
			report := newProjectionReport(result)
			if ctx.wantJSON(cmd) {
				return writeJSON(cmd, report)
			}
			printProjection(cmd, report)
			return nil
		},
	}
}
