package backlog

import (
	"errors"
	"testing"
)

func TestOrder(t *testing.T) {
	t.Parallel()

	t.Run("sorts active items by priority", func(t *testing.T) {
		items := []Item{
			{GameID: "c", Priority: 3, EstimateMinutes: Minutes(100), Status: StatusPlanned},
			{GameID: "a", Priority: 1, EstimateMinutes: Minutes(100), Status: StatusPlaying},
			{GameID: "b", Priority: 2, Status: StatusPlanned},
		}

		ordered, err := Order(items)
		if err != nil {
			t.Fatalf("Order returned error: %v", err)
		}
		got := ids(ordered)
		want := []string{"a", "b", "c"}
		if !equal(got, want) {
			t.Fatalf("expected %v, got %v", want, got)
		}
	})

	t.Run("drops finished dropped and fully played items", func(t *testing.T) {
		items := []Item{
			{GameID: "done", Priority: 1, Status: StatusFinished},
			{GameID: "quit", Priority: 1, Status: StatusDropped},
			{GameID: "played-out", Priority: 2, PlayedMinutes: 120, EstimateMinutes: Minutes(100)},
			{GameID: "keep", Priority: 3, PlayedMinutes: 10, EstimateMinutes: Minutes(100)},
		}

		ordered, err := Order(items)
		if err != nil {
			t.Fatalf("Order returned error: %v", err)
		}
		if got := ids(ordered); !equal(got, []string{"keep"}) {
			t.Fatalf("expected only keep, got %v", got)
		}
		if ordered[0].Remaining() != 90 {
			t.Fatalf("expected 90 remaining minutes, got %d", ordered[0].Remaining())
		}
	})

	t.Run("inactive items may share a priority with active ones", func(t *testing.T) {
		items := []Item{
			{GameID: "old", Priority: 1, Status: StatusFinished},
			{GameID: "new", Priority: 1, Status: StatusPlanned},
		}
		if _, err := Order(items); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})

	t.Run("rejects duplicate priorities among active items", func(t *testing.T) {
		items := []Item{
			{GameID: "a", Priority: 1},
			{GameID: "b", Priority: 2, EstimateMinutes: Minutes(30), PlayedMinutes: 30},
			{GameID: "c", Priority: 2, Status: StatusPlaying},
		}

		_, err := Order(items)
		if !errors.Is(err, ErrDuplicatePriority) {
			t.Fatalf("expected ErrDuplicatePriority, got %v", err)
		}
		var dupErr *DuplicatePriorityError
		if !errors.As(err, &dupErr) {
			t.Fatalf("expected *DuplicatePriorityError, got %T", err)
		}
		if dupErr.Priority != 2 || !equal(dupErr.GameIDs, []string{"b", "c"}) {
			t.Fatalf("unexpected duplicate details %+v", dupErr)
		}
	})

	t.Run("rejects malformed items", func(t *testing.T) {
		cases := map[string][]Item{
			"missing id":        {{Priority: 1}},
			"negative played":   {{GameID: "a", Priority: 1, PlayedMinutes: -1}},
			"negative estimate": {{GameID: "a", Priority: 1, EstimateMinutes: Minutes(-10)}},
			"repeated game":     {{GameID: "a", Priority: 1}, {GameID: "a", Priority: 2}},
		}
		for name, items := range cases {
			if _, err := Order(items); !errors.Is(err, ErrInvalidItem) {
				t.Fatalf("%s: expected ErrInvalidItem, got %v", name, err)
			}
		}
	})

	t.Run("does not alias caller estimates", func(t *testing.T) {
		estimate := 100
		items := []Item{{GameID: "a", Priority: 1, EstimateMinutes: &estimate}}
		ordered, err := Order(items)
		if err != nil {
			t.Fatalf("Order returned error: %v", err)
		}
		*ordered[0].EstimateMinutes = 5
		if estimate != 100 {
			t.Fatalf("caller estimate was mutated to %d", estimate)
		}
	})

	t.Run("empty input yields empty output", func(t *testing.T) {
		ordered, err := Order(nil)
		if err != nil || len(ordered) != 0 {
			t.Fatalf("expected empty result, got %v (err=%v)", ordered, err)
		}
	})
}

func TestItemNeed(t *testing.T) {
	t.Parallel()

	known := Item{GameID: "a", PlayedMinutes: 30, EstimateMinutes: Minutes(90)}
	if known.Need(60) != 60 {
		t.Fatalf("expected remaining time as need, got %d", known.Need(60))
	}

	unknown := Item{GameID: "b", PlayedMinutes: 500}
	if unknown.Need(45) != 45 {
		t.Fatalf("expected one default block, got %d", unknown.Need(45))
	}
	if unknown.Remaining() != 0 {
		t.Fatalf("expected zero remaining for unknown estimate, got %d", unknown.Remaining())
	}
}

func TestParseStatus(t *testing.T) {
	t.Parallel()

	for input, want := range map[string]Status{"": StatusPlanned, "Playing": StatusPlaying, " finished ": StatusFinished, "dropped": StatusDropped} {
		got, err := ParseStatus(input)
		if err != nil || got != want {
			t.Fatalf("ParseStatus(%q) = %q, %v; want %q", input, got, err, want)
		}
	}
	if _, err := ParseStatus("wishlist"); err == nil {
		t.Fatalf("expected error for unknown status")
	}
}

func ids(items []Item) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.GameID)
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
