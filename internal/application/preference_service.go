package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/backlog-scheduler/internal/capacity"
)

// PreferenceService reads and validates the weekly play budget.
type PreferenceService struct {
	preferences PreferenceRepository
	defaults    PreferenceInput
	now         func() time.Time
	logger      *slog.Logger
}

// NewPreferenceService wires dependencies for preference operations. defaults
// is returned for users that never stored a preference.
func NewPreferenceService(preferences PreferenceRepository, defaults PreferenceInput, now func() time.Time) *PreferenceService {
	return NewPreferenceServiceWithLogger(preferences, defaults, now, nil)
}

// NewPreferenceServiceWithLogger wires dependencies with a specific logger.
func NewPreferenceServiceWithLogger(preferences PreferenceRepository, defaults PreferenceInput, now func() time.Time, logger *slog.Logger) *PreferenceService {
	if now == nil {
		now = time.Now
	}
	return &PreferenceService{preferences: preferences, defaults: defaults, now: now, logger: defaultLogger(logger)}
}

// GetPreference returns the stored preference or the defaults.
func (s *PreferenceService) GetPreference(ctx context.Context, principal Principal) (Preference, error) {
	if s == nil {
		return Preference{}, fmt.Errorf("PreferenceService is nil")
	}
	if principal.UserID == "" {
		return Preference{}, ErrUnauthorized
	}
	if s.preferences == nil {
		return s.fromInput(principal.UserID, s.defaults), nil
	}

	pref, err := s.preferences.GetPreference(ctx, principal.UserID)
	if errors.Is(err, ErrNotFound) {
		return s.fromInput(principal.UserID, s.defaults), nil
	}
	return pref, err
}

// UpdatePreference validates input against the capacity model and stores it.
func (s *PreferenceService) UpdatePreference(ctx context.Context, principal Principal, input PreferenceInput) (pref Preference, err error) {
	if s == nil {
		return Preference{}, fmt.Errorf("PreferenceService is nil")
	}
	if s.preferences == nil {
		return Preference{}, fmt.Errorf("preference repository not configured")
	}
	if principal.UserID == "" {
		return Preference{}, ErrUnauthorized
	}

	logger := serviceLogger(ctx, s.logger, "PreferenceService", "UpdatePreference", "principal_id", principal.UserID)
	defer func() {
		logOutcome(ctx, logger, err, "update preference",
			"weekly_minutes", pref.WeeklyMinutes,
			"session_minutes", pref.SessionMinutes,
			"timezone", pref.Timezone,
		)
	}()

	candidate := s.fromInput(principal.UserID, input)
	if vErr := validatePreference(candidate); vErr.HasErrors() {
		return Preference{}, vErr
	}
	candidate.UpdatedAt = s.now()
	return s.preferences.UpsertPreference(ctx, candidate)
}

func (s *PreferenceService) fromInput(userID string, input PreferenceInput) Preference {
	return Preference{
		UserID:         userID,
		WeeklyMinutes:  input.WeeklyMinutes,
		SessionMinutes: input.SessionMinutes,
		Timezone:       strings.TrimSpace(input.Timezone),
		DayStart:       input.DayStart,
		DayEnd:         input.DayEnd,
	}
}

// validatePreference reports every field the capacity model would reject.
func validatePreference(pref Preference) *ValidationError {
	vErr := &ValidationError{}
	if pref.WeeklyMinutes < 0 {
		vErr.add("weekly_minutes", "weekly minutes must not be negative")
	}
	if pref.WeeklyMinutes > 7*24*60 {
		vErr.add("weekly_minutes", "weekly minutes cannot exceed the length of a week")
	}
	if pref.SessionMinutes <= 0 {
		vErr.add("session_minutes", "session minutes must be positive")
	}
	if _, err := capacity.LoadLocation(pref.Timezone); err != nil {
		vErr.add("timezone", "timezone is not a known IANA zone")
	}
	if vErr.HasErrors() {
		return vErr
	}

	if _, err := capacity.New(pref.Capacity()); err != nil {
		var cfgErr *capacity.ConfigError
		if errors.As(err, &cfgErr) {
			vErr.add(cfgErr.Field, cfgErr.Reason)
		} else {
			vErr.add("preferences", err.Error())
		}
	}
	return vErr
}
