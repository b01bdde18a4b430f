package application

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPreferenceService(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	defaults := DefaultPreference("UTC")

	t.Run("falls back to defaults", func(t *testing.T) {
		t.Parallel()
		svc := NewPreferenceService(newPreferenceRepositoryStub(), defaults, nil)
		pref, err := svc.GetPreference(context.Background(), alice)
		if err != nil {
			t.Fatalf("GetPreference failed: %v", err)
		}
		if pref.UserID != alice.UserID || pref.WeeklyMinutes != 600 || pref.SessionMinutes != 60 {
			t.Fatalf("unexpected defaults %+v", pref)
		}
	})

	t.Run("stores valid updates", func(t *testing.T) {
		t.Parallel()
		repo := newPreferenceRepositoryStub()
		svc := NewPreferenceService(repo, defaults, func() time.Time { return now })

		input := PreferenceInput{WeeklyMinutes: 300, SessionMinutes: 45, Timezone: "Europe/Berlin", DayStart: 18 * 60, DayEnd: 23 * 60}
		pref, err := svc.UpdatePreference(context.Background(), alice, input)
		if err != nil {
			t.Fatalf("UpdatePreference failed: %v", err)
		}
		if !pref.UpdatedAt.Equal(now) || repo.prefs[alice.UserID].DayEnd != 23*60 {
			t.Fatalf("unexpected stored preference %+v", repo.prefs[alice.UserID])
		}
	})

	t.Run("zero weekly minutes is valid", func(t *testing.T) {
		t.Parallel()
		svc := NewPreferenceService(newPreferenceRepositoryStub(), defaults, nil)
		if _, err := svc.UpdatePreference(context.Background(), alice, PreferenceInput{SessionMinutes: 60}); err != nil {
			t.Fatalf("expected zero capacity to be accepted, got %v", err)
		}
	})

	cases := []struct {
		name  string
		input PreferenceInput
		field string
	}{
		{"negative weekly", PreferenceInput{WeeklyMinutes: -1, SessionMinutes: 60}, "weekly_minutes"},
		{"weekly beyond a week", PreferenceInput{WeeklyMinutes: 10081, SessionMinutes: 60}, "weekly_minutes"},
		{"zero session", PreferenceInput{WeeklyMinutes: 60}, "session_minutes"},
		{"unknown zone", PreferenceInput{WeeklyMinutes: 60, SessionMinutes: 60, Timezone: "Mars/Olympus"}, "timezone"},
		{"inverted window", PreferenceInput{WeeklyMinutes: 60, SessionMinutes: 60, DayStart: 20 * 60, DayEnd: 18 * 60}, "day_end"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run("rejects "+tc.name, func(t *testing.T) {
			t.Parallel()
			svc := NewPreferenceService(newPreferenceRepositoryStub(), defaults, nil)
			_, err := svc.UpdatePreference(context.Background(), alice, tc.input)
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if _, ok := vErr.FieldErrors[tc.field]; !ok {
				t.Fatalf("expected %s in %v", tc.field, vErr.FieldErrors)
			}
		})
	}
}
