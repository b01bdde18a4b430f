package testfixtures

import (
	"testing"
	"time"
)

func TestClock(t *testing.T) {
	t.Parallel()

	if clock := NewClock(time.Time{}); !clock.Now().Equal(ReferenceTime()) {
		t.Fatalf("expected ReferenceTime, got %v", clock.Now())
	}

	monday := time.Date(2024, time.March, 4, 9, 0, 0, 0, time.UTC)
	clock := NewClock(monday)
	nowFn := clock.NowFunc()

	if got := clock.Advance(90 * time.Minute); !got.Equal(monday.Add(90 * time.Minute)) {
		t.Fatalf("advance returned %v", got)
	}
	if got := nowFn(); !got.Equal(clock.Now()) {
		t.Fatalf("expected NowFunc to follow the clock, got %v", got)
	}

	clock.Set(monday)
	if got := clock.AdvanceWeeks(2, nil); !got.Equal(monday.AddDate(0, 0, 14)) {
		t.Fatalf("expected two weeks later, got %v", got)
	}
}

func TestClock_AdvanceWeeksKeepsLocalTimeAcrossDST(t *testing.T) {
	t.Parallel()

	berlin, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Skipf("zone data unavailable: %v", err)
	}
	// 2024-03-31 is the spring-forward Sunday in Berlin.
	before := time.Date(2024, time.March, 25, 19, 0, 0, 0, berlin)
	clock := NewClock(before)

	after := clock.AdvanceWeeks(1, berlin)
	if after.Hour() != 19 || after.Day() != 1 || after.Month() != time.April {
		t.Fatalf("expected 2024-04-01 19:00 local, got %v", after)
	}
	if elapsed := after.Sub(before); elapsed != 167*time.Hour {
		t.Fatalf("expected a 167 hour week, got %s", elapsed)
	}
}
