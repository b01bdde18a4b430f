package application

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fakeHasher(password string) (string, error) { return "hashed:" + password, nil }

func TestUserService_Register(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	defaults := DefaultPreference("Europe/Berlin")

	t.Run("stores the account and default preference", func(t *testing.T) {
		t.Parallel()
		users := newUserRepositoryStub()
		prefs := newPreferenceRepositoryStub()
		svc := NewUserService(users, prefs, defaults, fakeHasher, sequence("user"), func() time.Time { return now })

		user, err := svc.Register(context.Background(), RegisterParams{Email: " Alice@Example.com ", DisplayName: " Alice ", Password: "long enough"})
		if err != nil {
			t.Fatalf("Register failed: %v", err)
		}
		if user.ID != "user-1" || user.Email != "alice@example.com" || user.DisplayName != "Alice" {
			t.Fatalf("unexpected user %+v", user)
		}
		if got := users.users["user-1"].PasswordHash; got != "hashed:long enough" {
			t.Fatalf("expected hashed password to be stored, got %q", got)
		}
		pref, ok := prefs.prefs["user-1"]
		if !ok || pref.WeeklyMinutes != 600 || pref.SessionMinutes != 60 || pref.Timezone != "Europe/Berlin" {
			t.Fatalf("expected default preference, got %+v", pref)
		}
	})

	t.Run("reports every invalid field", func(t *testing.T) {
		t.Parallel()
		svc := NewUserService(newUserRepositoryStub(), nil, defaults, fakeHasher, nil, nil)

		_, err := svc.Register(context.Background(), RegisterParams{Email: "not-an-email", Password: "short"})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		for _, field := range []string{"email", "display_name", "password"} {
			if _, ok := vErr.FieldErrors[field]; !ok {
				t.Fatalf("expected %s to be reported, got %v", field, vErr.FieldErrors)
			}
		}
	})

	t.Run("surfaces duplicate emails", func(t *testing.T) {
		t.Parallel()
		users := newUserRepositoryStub()
		svc := NewUserService(users, nil, defaults, fakeHasher, sequence("user"), nil)
		params := RegisterParams{Email: "bob@example.com", DisplayName: "Bob", Password: "long enough"}
		if _, err := svc.Register(context.Background(), params); err != nil {
			t.Fatalf("first Register failed: %v", err)
		}
		if _, err := svc.Register(context.Background(), params); !errors.Is(err, ErrAlreadyExists) {
			t.Fatalf("expected ErrAlreadyExists, got %v", err)
		}
	})
}

func TestUserService_GetUser(t *testing.T) {
	t.Parallel()

	users := newUserRepositoryStub()
	users.users["user-1"] = UserCredentials{User: User{ID: "user-1", Email: "a@example.com"}}
	users.users["user-2"] = UserCredentials{User: User{ID: "user-2", Email: "b@example.com"}}
	svc := NewUserService(users, nil, PreferenceInput{}, fakeHasher, nil, nil)

	user, err := svc.GetUser(context.Background(), Principal{UserID: "user-1"}, "")
	if err != nil || user.ID != "user-1" {
		t.Fatalf("expected own account, got %+v %v", user, err)
	}
	if _, err := svc.GetUser(context.Background(), Principal{UserID: "user-1"}, "user-2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected other accounts to be hidden, got %v", err)
	}
	if _, err := svc.GetUser(context.Background(), Principal{}, "user-1"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized without a principal, got %v", err)
	}
}
