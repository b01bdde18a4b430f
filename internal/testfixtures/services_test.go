package testfixtures

import (
	"context"
	"testing"
	"time"

	"github.com/example/backlog-scheduler/internal/application"
)

func TestServiceFactoryOverSQLite(t *testing.T) {
	harness := NewSQLiteHarness(t)
	clock := NewClock(time.Date(2024, time.March, 4, 9, 0, 0, 0, time.UTC))
	factory := NewServiceFactory(WithClock(clock))
	services := factory.NewSQLiteServices(harness)
	ctx := context.Background()

	user, err := services.Users.Register(ctx, application.RegisterParams{Email: "factory@example.com", DisplayName: "Factory", Password: "correct horse"})
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if user.ID != "id-1" {
		t.Fatalf("expected generated ID id-1, got %q", user.ID)
	}
	if issued := factory.IDGenerator.Issued(); len(issued) == 0 || issued[0] != user.ID {
		t.Fatalf("expected the user ID to come from the factory generator, got %v", issued)
	}
	if !user.CreatedAt.Equal(clock.Now()) {
		t.Fatalf("expected the factory clock to stamp the user, got %v", user.CreatedAt)
	}

	pref, err := harness.Preferences.GetPreference(ctx, user.ID)
	if err != nil {
		t.Fatalf("expected a default preference to be stored: %v", err)
	}
	if pref.WeeklyMinutes != 600 || pref.Timezone != "UTC" {
		t.Fatalf("unexpected default preference %+v", pref)
	}
}
