package main

import (
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/backlog-scheduler/internal/application"
	"github.com/example/backlog-scheduler/internal/bootstrap"
	"github.com/example/backlog-scheduler/internal/capacity"
	"github.com/example/backlog-scheduler/internal/persistence/sqlite"
	"github.com/example/backlog-scheduler/internal/snapshot"
)

func newGenerateCommand(ctx *commandContext) *cobra.Command {
	var (
		user  string
		weeks int
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Allocate and store play sessions for an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(storage *sqlite.Storage, services *bootstrap.Services) error {
				principal, err := principalFor(cmd.Context(), storage, user)
				if err != nil {
					return err
				}
				result, err := services.Plans.Generate(cmd.Context(), application.GenerateParams{Principal: principal, Weeks: weeks})
				if err != nil {
					return err
				}
				titles, loc, err := displayContext(cmd, services, principal)
				if err != nil {
					return err
				}

				views := sessionViews(result.Sessions, titles)
				if ctx.wantJSON(cmd) {
					minutes := make(map[string]int)
					for _, view := range views {
						minutes[view.GameID] += view.Minutes
					}
					return writeJSON(cmd, planReport{RunID: result.Run.ID, Weeks: result.Run.Weeks, Sessions: views, MinutesByGame: minutes})
				}
				printSessions(cmd, views, loc)
				fmt.Fprintf(cmd.OutOrStdout(), "run %s: %d sessions stored\n", result.Run.ID, result.Run.SessionCount)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "Account email")
	cmd.Flags().IntVar(&weeks, "weeks", 1, "Number of weeks to plan, starting with the current one")
	return cmd
}

func newUndoCommand(ctx *commandContext) *cobra.Command {
	var user string

	cmd := &cobra.Command{
		Use:   "undo RUN_ID",
		Short: "Delete every session a plan run created",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(storage *sqlite.Storage, services *bootstrap.Services) error {
				principal, err := principalFor(cmd.Context(), storage, user)
				if err != nil {
					return err
				}
				removed, err := services.Plans.UndoRun(cmd.Context(), principal, args[0])
				if err != nil {
					return err
				}
				if ctx.wantJSON(cmd) {
					return writeJSON(cmd, map[string]any{"run_id": args[0], "removed": removed})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "run %s undone: %d sessions removed\n", args[0], removed)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "Account email")
	return cmd
}

type runView struct {
	ID           string    `json:"id"`
	Weeks        int       `json:"weeks"`
	SessionCount int       `json:"session_count"`
	CreatedAt    time.Time `json:"created_at"`
}

func newRunsCommand(ctx *commandContext) *cobra.Command {
	var user string

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List an account's plan runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd, func(storage *sqlite.Storage, services *bootstrap.Services) error {
				principal, err := principalFor(cmd.Context(), storage, user)
				if err != nil {
					return err
				}
				runs, err := services.Plans.ListRuns(cmd.Context(), principal)
				if err != nil {
					return err
				}
				views := make([]runView, 0, len(runs))
				for _, run := range runs {
					views = append(views, runView{ID: run.ID, Weeks: run.Weeks, SessionCount: run.SessionCount, CreatedAt: run.CreatedAt})
				}
				if ctx.wantJSON(cmd) {
					return writeJSON(cmd, views)
				}
				if len(views) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No plan runs.")
					return nil
				}
				rows := make([][]string, 0, len(views))
				for _, view := range views {
					rows = append(rows, []string{view.ID, view.CreatedAt.Local().Format(time.DateTime), strconv.Itoa(view.Weeks), strconv.Itoa(view.SessionCount)})
				}
				printTable(cmd, []string{"Run", "Created", "Weeks", "Sessions"}, rows, []columnAlignment{alignLeft, alignLeft, alignRight, alignRight})
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "Account email")
	return cmd
}

func newExportCommand(ctx *commandContext) *cobra.Command {
	var (
		user string
		out  string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write an account's backlog, preference and current sessions to a snapshot file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if out == "" {
				return fmt.Errorf("--out is required")
			}
			if _, err := snapshot.FormatFromPath(out); err != nil {
				return err
			}
			return ctx.withServices(cmd, func(storage *sqlite.Storage, services *bootstrap.Services) error {
				principal, err := principalFor(cmd.Context(), storage, user)
				if err != nil {
					return err
				}
				snap, err := exportSnapshot(cmd, services, principal, ctx.now())
				if err != nil {
					return err
				}
				if err := snapshot.Save(out, snap); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %d games and %d sessions to %s\n", len(snap.Games), len(snap.Existing), out)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "Account email")
	cmd.Flags().StringVar(&out, "out", "", "Snapshot file to write (.toml, .yaml or .yml)")
	return cmd
}

// exportSnapshot captures everything an offline plan needs: sessions from the
// start of the current week onwards count against that week's budget.
func exportSnapshot(cmd *cobra.Command, services *bootstrap.Services, principal application.Principal, now time.Time) (snapshot.Snapshot, error) {
	pref, err := services.Preferences.GetPreference(cmd.Context(), principal)
	if err != nil {
		return snapshot.Snapshot{}, err
	}
	model, err := capacity.New(pref.Capacity())
	if err != nil {
		return snapshot.Snapshot{}, err
	}
	weekStart, _ := model.WeekWindow(now)

	games, err := services.Library.ListGames(cmd.Context(), principal)
	if err != nil {
		return snapshot.Snapshot{}, err
	}
	sessions, err := services.Plans.ListSessions(cmd.Context(), principal, weekStart, time.Time{})
	if err != nil {
		return snapshot.Snapshot{}, err
	}

	snap := snapshot.Snapshot{
		Now: now.UTC().Truncate(time.Second),
		Capacity: snapshot.Capacity{
			WeeklyMinutes:  pref.WeeklyMinutes,
			SessionMinutes: pref.SessionMinutes,
			Timezone:       pref.Timezone,
		},
		Games:    make([]snapshot.Game, 0, len(games)),
		Existing: make([]snapshot.Session, 0, len(sessions)),
	}
	if pref.DayStart != 0 {
		snap.Capacity.DayStart = capacity.FormatClock(pref.DayStart)
	}
	if pref.DayEnd != 0 {
		snap.Capacity.DayEnd = capacity.FormatClock(pref.DayEnd)
	}
	for _, game := range games {
		snap.Games = append(snap.Games, snapshot.Game{
			ID:              game.ID,
			Title:           game.Title,
			Priority:        game.Priority,
			PlayedMinutes:   game.PlayedMinutes,
			EstimateMinutes: game.EstimateMinutes,
			Status:          string(game.Status),
		})
	}
	for _, session := range sessions {
		snap.Existing = append(snap.Existing, snapshot.Session{GameID: session.GameID, Start: session.Start.UTC(), End: session.End.UTC()})
	}
	return snap, nil
}

func newMigrateCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStorage(cmd, func(storage *sqlite.Storage, logger *slog.Logger) error {
				applied, err := storage.Migrate(cmd.Context(), logger)
				if err != nil {
					return err
				}
				if ctx.wantJSON(cmd) {
					versions := make([]string, 0, len(applied))
					for _, m := range applied {
						versions = append(versions, m.Version)
					}
					return writeJSON(cmd, map[string]any{"applied": versions})
				}
				if len(applied) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Schema is up to date.")
					return nil
				}
				for _, m := range applied {
					fmt.Fprintf(cmd.OutOrStdout(), "applied %s %s\n", m.Version, m.Description)
				}
				return nil
			})
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show applied and pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStorage(cmd, func(storage *sqlite.Storage, _ *slog.Logger) error {
				status, err := storage.MigrationStatus(cmd.Context())
				if err != nil {
					return err
				}
				type row struct {
					Version   string     `json:"version"`
					State     string     `json:"state"`
					AppliedAt *time.Time `json:"applied_at,omitempty"`
				}
				rows := make([]row, 0, len(status.Applied)+len(status.Pending))
				for _, m := range status.Applied {
					appliedAt := m.AppliedAt
					rows = append(rows, row{Version: m.Version, State: "applied", AppliedAt: &appliedAt})
				}
				for _, m := range status.Pending {
					rows = append(rows, row{Version: m.Version, State: "pending"})
				}
				if ctx.wantJSON(cmd) {
					return writeJSON(cmd, map[string]any{"current_version": status.CurrentVersion, "migrations": rows})
				}
				table := make([][]string, 0, len(rows))
				for _, r := range rows {
					applied := ""
					if r.AppliedAt != nil {
						applied = r.AppliedAt.Local().Format(time.DateTime)
					}
					table = append(table, []string{r.Version, r.State, applied})
				}
				printTable(cmd, []string{"Version", "State", "Applied"}, table, nil)
				return nil
			})
		},
	})
	return cmd
}

// displayContext loads game titles and the account timezone for rendering.
func displayContext(cmd *cobra.Command, services *bootstrap.Services, principal application.Principal) (map[string]string, *time.Location, error) {
	games, err := services.Library.ListGames(cmd.Context(), principal)
	if err != nil {
		return nil, nil, err
	}
	titles := make(map[string]string, len(games))
	for _, game := range games {
		titles[game.ID] = game.Title
	}
	pref, err := services.Preferences.GetPreference(cmd.Context(), principal)
	if err != nil {
		return nil, nil, err
	}
	loc, err := capacity.LoadLocation(pref.Timezone)
	if err != nil {
		loc = time.UTC
	}
	return titles, loc, nil
}

func sessionViews(sessions []application.PlaySession, titles map[string]string) []sessionView {
	views := make([]sessionView, 0, len(sessions))
	for _, session := range sessions {
		views = append(views, sessionView{
			GameID:  session.GameID,
			Title:   titles[session.GameID],
			Start:   session.Start,
			End:     session.End,
			Minutes: session.Minutes(),
		})
	}
	return views
}
