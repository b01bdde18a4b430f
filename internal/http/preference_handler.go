package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/backlog-scheduler/internal/application"
	"github.com/example/backlog-scheduler/internal/capacity"
)

type preferenceService interface {
	GetPreference(ctx context.Context, principal application.Principal) (application.Preference, error)
	UpdatePreference(ctx context.Context, principal application.Principal, input application.PreferenceInput) (application.Preference, error)
}

// PreferenceHandler serves the caller's weekly play budget.
type PreferenceHandler struct {
	service   preferenceService
	responder responder
	logger    *slog.Logger
}

func NewPreferenceHandler(service preferenceService, logger *slog.Logger) *PreferenceHandler {
	base := defaultLogger(logger)
	return &PreferenceHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *PreferenceHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	principal, ok := requirePrincipal(r)
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingPrincipal)
		return
	}
	pref, err := h.service.GetPreference(r.Context(), principal)
	if err != nil {
		handlerLogger(r.Context(), h.logger, "PreferenceHandler", "Get", "principal_id", principal.UserID).
			ErrorContext(r.Context(), "failed to load preferences", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, preferenceResponse{Preference: toPreferenceDTO(pref)})
}

func (h *PreferenceHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	principal, ok := requirePrincipal(r)
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingPrincipal)
		return
	}
	logger := handlerLogger(r.Context(), h.logger, "PreferenceHandler", "Update", "principal_id", principal.UserID)

	var req preferenceDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.ErrorContext(r.Context(), "failed to decode preferences", "error", err, "error_kind", "bad_request")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	input, err := req.input()
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	pref, err := h.service.UpdatePreference(r.Context(), principal, input)
	if err != nil {
		logger.ErrorContext(r.Context(), "failed to update preferences", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "preferences updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, preferenceResponse{Preference: toPreferenceDTO(pref)})
}

type preferenceResponse struct {
	Preference preferenceDTO `json:"preference"`
}

// preferenceDTO carries the day window as "HH:MM" clock values.
type preferenceDTO struct {
	WeeklyMinutes  int    `json:"weekly_minutes"`
	SessionMinutes int    `json:"session_minutes"`
	Timezone       string `json:"timezone"`
	DayStart       string `json:"day_start"`
	DayEnd         string `json:"day_end"`
	UpdatedAt      string `json:"updated_at,omitempty"`
}

func (d preferenceDTO) input() (application.PreferenceInput, error) {
	fields := make(map[string]string)
	start, err := capacity.ParseClock(d.DayStart)
	if err != nil {
		fields["day_start"] = "must be HH:MM"
	}
	end, err := capacity.ParseClock(d.DayEnd)
	if err != nil {
		fields["day_end"] = "must be HH:MM"
	}
	if len(fields) > 0 {
		return application.PreferenceInput{}, &application.ValidationError{FieldErrors: fields}
	}
	return application.PreferenceInput{
		WeeklyMinutes:  d.WeeklyMinutes,
		SessionMinutes: d.SessionMinutes,
		Timezone:       d.Timezone,
		DayStart:       start,
		DayEnd:         end,
	}, nil
}

func toPreferenceDTO(pref application.Preference) preferenceDTO {
	dto := preferenceDTO{
		WeeklyMinutes:  pref.WeeklyMinutes,
		SessionMinutes: pref.SessionMinutes,
		Timezone:       pref.Timezone,
		DayStart:       capacity.FormatClock(pref.DayStart),
		DayEnd:         capacity.FormatClock(pref.DayEnd),
	}
	if pref.DayEnd == 0 {
		dto.DayEnd = capacity.FormatClock(24 * 60)
	}
	if !pref.UpdatedAt.IsZero() {
		dto.UpdatedAt = pref.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return dto
}
