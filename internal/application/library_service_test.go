package application

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/example/backlog-scheduler/internal/backlog"
)

var alice = Principal{UserID: "alice"}

func minutes(n int) *int { return &n }

func strPtr(s string) *string { return &s }

func newLibrary(games ...Game) (*LibraryService, *gameRepositoryStub) {
	repo := newGameRepositoryStub(games...)
	now := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	return NewLibraryService(repo, sequence("game"), func() time.Time { return now }), repo
}

func activeGame(id string, priority int) Game {
	return Game{ID: id, UserID: alice.UserID, Title: id, Priority: priority, Status: backlog.StatusPlanned}
}

func TestLibraryService_AddGame(t *testing.T) {
	t.Parallel()

	t.Run("appends active games at the lowest priority", func(t *testing.T) {
		t.Parallel()
		svc, _ := newLibrary(activeGame("a", 1), activeGame("b", 2))

		game, err := svc.AddGame(context.Background(), alice, GameInput{Title: " Celeste ", EstimateMinutes: minutes(600)})
		if err != nil {
			t.Fatalf("AddGame failed: %v", err)
		}
		if game.Priority != 3 || game.Status != backlog.StatusPlanned || game.Title != "Celeste" {
			t.Fatalf("unexpected game %+v", game)
		}
	})

	t.Run("finished games carry no priority", func(t *testing.T) {
		t.Parallel()
		svc, _ := newLibrary(activeGame("a", 1))

		game, err := svc.AddGame(context.Background(), alice, GameInput{Title: "Done", Status: "finished"})
		if err != nil {
			t.Fatalf("AddGame failed: %v", err)
		}
		if game.Priority != 0 {
			t.Fatalf("expected priority 0, got %d", game.Priority)
		}
	})

	t.Run("validates fields", func(t *testing.T) {
		t.Parallel()
		svc, _ := newLibrary()

		_, err := svc.AddGame(context.Background(), alice, GameInput{Title: " ", Status: "paused", PlayedMinutes: -1, EstimateMinutes: minutes(-5)})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		for _, field := range []string{"title", "status", "played_minutes", "estimate_minutes"} {
			if _, ok := vErr.FieldErrors[field]; !ok {
				t.Fatalf("expected %s in %v", field, vErr.FieldErrors)
			}
		}
	})
}

func TestLibraryService_UpdateGame(t *testing.T) {
	t.Parallel()

	t.Run("finishing a game closes the priority gap", func(t *testing.T) {
		t.Parallel()
		svc, repo := newLibrary(activeGame("a", 1), activeGame("b", 2), activeGame("c", 3))

		game, err := svc.UpdateGame(context.Background(), alice, "b", GameUpdate{Status: strPtr("finished")})
		if err != nil {
			t.Fatalf("UpdateGame failed: %v", err)
		}
		if game.Priority != 0 || game.Status != backlog.StatusFinished {
			t.Fatalf("unexpected game %+v", game)
		}
		want := map[string]int{"a": 1, "b": 0, "c": 2}
		if got := repo.priorities(alice.UserID); !reflect.DeepEqual(got, want) {
			t.Fatalf("expected %v, got %v", want, got)
		}
	})

	t.Run("reactivating appends to the end", func(t *testing.T) {
		t.Parallel()
		dropped := Game{ID: "d", UserID: alice.UserID, Title: "d", Status: backlog.StatusDropped}
		svc, _ := newLibrary(activeGame("a", 1), dropped)

		game, err := svc.UpdateGame(context.Background(), alice, "d", GameUpdate{Status: strPtr("playing")})
		if err != nil {
			t.Fatalf("UpdateGame failed: %v", err)
		}
		if game.Priority != 2 {
			t.Fatalf("expected priority 2, got %d", game.Priority)
		}
	})

	t.Run("updates progress and clears estimates", func(t *testing.T) {
		t.Parallel()
		g := activeGame("a", 1)
		g.EstimateMinutes = minutes(300)
		svc, _ := newLibrary(g)

		game, err := svc.UpdateGame(context.Background(), alice, "a", GameUpdate{PlayedMinutes: minutes(120), ClearEstimate: true})
		if err != nil {
			t.Fatalf("UpdateGame failed: %v", err)
		}
		if game.PlayedMinutes != 120 || game.EstimateMinutes != nil {
			t.Fatalf("unexpected game %+v", game)
		}
	})

	t.Run("games of other users are not found", func(t *testing.T) {
		t.Parallel()
		svc, _ := newLibrary(activeGame("a", 1))
		if _, err := svc.UpdateGame(context.Background(), Principal{UserID: "mallory"}, "a", GameUpdate{}); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestLibraryService_RemoveGame(t *testing.T) {
	t.Parallel()

	svc, repo := newLibrary(activeGame("a", 1), activeGame("b", 2), activeGame("c", 3))
	if err := svc.RemoveGame(context.Background(), alice, "a"); err != nil {
		t.Fatalf("RemoveGame failed: %v", err)
	}
	want := map[string]int{"b": 1, "c": 2}
	if got := repo.priorities(alice.UserID); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestLibraryService_Reorder(t *testing.T) {
	t.Parallel()

	finished := Game{ID: "f", UserID: alice.UserID, Title: "f", Status: backlog.StatusFinished}

	t.Run("applies a full permutation", func(t *testing.T) {
		t.Parallel()
		svc, repo := newLibrary(activeGame("a", 1), activeGame("b", 2), activeGame("c", 3), finished)

		if err := svc.Reorder(context.Background(), alice, []string{"c", "a", "b"}); err != nil {
			t.Fatalf("Reorder failed: %v", err)
		}
		want := map[string]int{"c": 1, "a": 2, "b": 3, "f": 0}
		if got := repo.priorities(alice.UserID); !reflect.DeepEqual(got, want) {
			t.Fatalf("expected %v, got %v", want, got)
		}

		ordered, err := svc.OrderedBacklog(context.Background(), alice)
		if err != nil {
			t.Fatalf("OrderedBacklog failed: %v", err)
		}
		ids := make([]string, len(ordered))
		for i, g := range ordered {
			ids[i] = g.ID
		}
		if !reflect.DeepEqual(ids, []string{"c", "a", "b"}) {
			t.Fatalf("unexpected backlog order %v", ids)
		}
	})

	cases := map[string][]string{
		"missing game":   {"a", "b"},
		"duplicate id":   {"a", "b", "b"},
		"unknown id":     {"a", "b", "z"},
		"inactive game":  {"a", "b", "c", "f"},
		"empty ordering": nil,
	}
	for name, ids := range cases {
		ids := ids
		t.Run("rejects "+name, func(t *testing.T) {
			t.Parallel()
			svc, repo := newLibrary(activeGame("a", 1), activeGame("b", 2), activeGame("c", 3), finished)

			err := svc.Reorder(context.Background(), alice, ids)
			var vErr *ValidationError
			if !errors.As(err, &vErr) || vErr.FieldErrors["game_ids"] == "" {
				t.Fatalf("expected game_ids validation error, got %v", err)
			}
			if len(repo.reorderLog) != 0 {
				t.Fatalf("expected no writes, got %v", repo.reorderLog)
			}
		})
	}
}

func TestLibraryService_OrderedBacklogIntegrity(t *testing.T) {
	t.Parallel()

	svc, _ := newLibrary(activeGame("a", 1), activeGame("b", 1))
	if _, err := svc.OrderedBacklog(context.Background(), alice); !errors.Is(err, ErrIntegrity) {
		t.Fatalf("expected ErrIntegrity, got %v", err)
	}
}
