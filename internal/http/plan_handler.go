package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/backlog-scheduler/internal/application"
	"github.com/example/backlog-scheduler/internal/projection"
)

type planService interface {
	Generate(ctx context.Context, params application.GenerateParams) (application.PlanResult, error)
	UndoRun(ctx context.Context, principal application.Principal, runID string) (int, error)
	ListRuns(ctx context.Context, principal application.Principal) ([]application.PlanRun, error)
	ListSessions(ctx context.Context, principal application.Principal, from, to time.Time) ([]application.PlaySession, error)
	Project(ctx context.Context, principal application.Principal) (projection.Result, error)
}

// PlanHandler serves plan runs, stored play sessions and projections.
type PlanHandler struct {
	service   planService
	responder responder
	logger    *slog.Logger
}

func NewPlanHandler(service planService, logger *slog.Logger) *PlanHandler {
	base := defaultLogger(logger)
	return &PlanHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *PlanHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "PlanHandler", operation, attrs...)
}

func (h *PlanHandler) begin(w http.ResponseWriter, r *http.Request) (application.Principal, bool) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return application.Principal{}, false
	}
	principal, ok := requirePrincipal(r)
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingPrincipal)
		return application.Principal{}, false
	}
	return principal, true
}

func (h *PlanHandler) List(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.begin(w, r)
	if !ok {
		return
	}
	runs, err := h.service.ListRuns(r.Context(), principal)
	if err != nil {
		h.log(r.Context(), "List", "principal_id", principal.UserID).
			ErrorContext(r.Context(), "failed to list plan runs", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	dtos := make([]planRunDTO, 0, len(runs))
	for _, run := range runs {
		dtos = append(dtos, toPlanRunDTO(run))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, planRunsResponse{Runs: dtos})
}

// Generate allocates sessions for the requested number of weeks.
func (h *PlanHandler) Generate(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.begin(w, r)
	if !ok {
		return
	}
	logger := h.log(r.Context(), "Generate", "principal_id", principal.UserID)

	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.ErrorContext(r.Context(), "failed to decode plan request", "error", err, "error_kind", "bad_request")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	result, err := h.service.Generate(r.Context(), application.GenerateParams{Principal: principal, Weeks: req.Weeks})
	if err != nil {
		logger.ErrorContext(r.Context(), "plan generation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "plan generated", "run_id", result.Run.ID, "sessions", len(result.Sessions))
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, planResponse{
		Run:      toPlanRunDTO(result.Run),
		Sessions: toPlaySessionDTOs(result.Sessions),
	})
}

// Undo deletes every session a run created.
func (h *PlanHandler) Undo(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.begin(w, r)
	if !ok {
		return
	}
	runID, ok := ResourceIDFromContext(r.Context())
	if !ok || runID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidRunID)
		return
	}
	logger := h.log(r.Context(), "Undo", "principal_id", principal.UserID, "run_id", runID)

	removed, err := h.service.UndoRun(r.Context(), principal, runID)
	if err != nil {
		logger.ErrorContext(r.Context(), "failed to undo plan run", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "plan run undone", "removed", removed)
	h.responder.writeJSON(r.Context(), w, http.StatusOK, undoResponse{RunID: runID, Removed: removed})
}

// Sessions lists stored sessions intersecting the optional from/to range.
func (h *PlanHandler) Sessions(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.begin(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	fields := make(map[string]string)
	from, err := parseOptionalTime(query.Get("from"))
	if err != nil {
		fields["from"] = "must be an RFC 3339 timestamp"
	}
	to, err := parseOptionalTime(query.Get("to"))
	if err != nil {
		fields["to"] = "must be an RFC 3339 timestamp"
	}
	if len(fields) > 0 {
		h.responder.handleServiceError(r.Context(), w, &application.ValidationError{FieldErrors: fields})
		return
	}

	sessions, err := h.service.ListSessions(r.Context(), principal, from, to)
	if err != nil {
		h.log(r.Context(), "Sessions", "principal_id", principal.UserID).
			ErrorContext(r.Context(), "failed to list play sessions", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, playSessionsResponse{Sessions: toPlaySessionDTOs(sessions)})
}

// Projections reports the completion forecast for the backlog.
func (h *PlanHandler) Projections(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.begin(w, r)
	if !ok {
		return
	}
	result, err := h.service.Project(r.Context(), principal)
	if err != nil {
		h.log(r.Context(), "Projections", "principal_id", principal.UserID).
			ErrorContext(r.Context(), "projection failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toProjectionResponse(result))
}

func parseOptionalTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, value)
}

type generateRequest struct {
	Weeks int `json:"weeks"`
}

type planRunDTO struct {
	ID           string `json:"id"`
	Weeks        int    `json:"weeks"`
	SessionCount int    `json:"session_count"`
	CreatedAt    string `json:"created_at"`
}

type playSessionDTO struct {
	ID      string `json:"id"`
	GameID  string `json:"game_id"`
	RunID   string `json:"run_id,omitempty"`
	Start   string `json:"start"`
	End     string `json:"end"`
	Minutes int    `json:"minutes"`
}

type planResponse struct {
	Run      planRunDTO       `json:"run"`
	Sessions []playSessionDTO `json:"sessions"`
}

type planRunsResponse struct {
	Runs []planRunDTO `json:"runs"`
}

type playSessionsResponse struct {
	Sessions []playSessionDTO `json:"sessions"`
}

type undoResponse struct {
	RunID   string `json:"run_id"`
	Removed int    `json:"removed"`
}

type projectionDTO struct {
	GameID                          string           `json:"game_id"`
	Title                           string           `json:"title"`
	Priority                        int              `json:"priority"`
	RemainingMinutes                int              `json:"remaining_minutes"`
	CumulativeRemainingMinutesAhead int              `json:"cumulative_remaining_minutes_ahead"`
	EstimateKnown                   bool             `json:"estimate_known"`
	WeeksUntilStart                 *int             `json:"weeks_until_start"`
	EstimatedCompletion             *projection.Date `json:"estimated_completion"`
}

type projectionResponse struct {
	WeekStart             projection.Date `json:"week_start"`
	WeeklyMinutes         int             `json:"weekly_minutes"`
	TotalRemainingMinutes int             `json:"total_remaining_minutes"`
	NoCapacity            bool            `json:"no_capacity"`
	Projections           []projectionDTO `json:"projections"`
}

func toPlanRunDTO(run application.PlanRun) planRunDTO {
	return planRunDTO{
		ID:           run.ID,
		Weeks:        run.Weeks,
		SessionCount: run.SessionCount,
		CreatedAt:    run.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func toPlaySessionDTOs(sessions []application.PlaySession) []playSessionDTO {
	out := make([]playSessionDTO, 0, len(sessions))
	for _, session := range sessions {
		out = append(out, playSessionDTO{
			ID:      session.ID,
			GameID:  session.GameID,
			RunID:   session.RunID,
			Start:   session.Start.UTC().Format(time.RFC3339),
			End:     session.End.UTC().Format(time.RFC3339),
			Minutes: session.Minutes(),
		})
	}
	return out
}

// toProjectionResponse renders unavailable forecasts as nulls.
func toProjectionResponse(result projection.Result) projectionResponse {
	resp := projectionResponse{
		WeekStart:             result.WeekStart,
		WeeklyMinutes:         result.WeeklyMinutes,
		TotalRemainingMinutes: result.TotalRemainingMinutes,
		NoCapacity:            result.NoCapacity,
		Projections:           make([]projectionDTO, 0, len(result.Projections)),
	}
	for _, p := range result.Projections {
		dto := projectionDTO{
			GameID:                          p.GameID,
			Title:                           p.Title,
			Priority:                        p.Priority,
			RemainingMinutes:                p.RemainingMinutes,
			CumulativeRemainingMinutesAhead: p.CumulativeRemainingMinutesAhead,
			EstimateKnown:                   p.EstimateKnown,
		}
		if p.Available {
			weeks := p.WeeksUntilStart
			completion := p.EstimatedCompletion
			dto.WeeksUntilStart = &weeks
			dto.EstimatedCompletion = &completion
		}
		resp.Projections = append(resp.Projections, dto)
	}
	return resp
}
