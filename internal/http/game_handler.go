package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/backlog-scheduler/internal/application"
)

type libraryService interface {
	ListGames(ctx context.Context, principal application.Principal) ([]application.Game, error)
	GetGame(ctx context.Context, principal application.Principal, gameID string) (application.Game, error)
	AddGame(ctx context.Context, principal application.Principal, input application.GameInput) (application.Game, error)
	UpdateGame(ctx context.Context, principal application.Principal, gameID string, update application.GameUpdate) (application.Game, error)
	RemoveGame(ctx context.Context, principal application.Principal, gameID string) error
	Reorder(ctx context.Context, principal application.Principal, gameIDs []string) error
	OrderedBacklog(ctx context.Context, principal application.Principal) ([]application.Game, error)
}

// GameHandler serves the game library and the ordered backlog.
type GameHandler struct {
	service   libraryService
	responder responder
	logger    *slog.Logger
}

func NewGameHandler(service libraryService, logger *slog.Logger) *GameHandler {
	base := defaultLogger(logger)
	return &GameHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *GameHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "GameHandler", operation, attrs...)
}

// begin resolves the principal, answering 401 when it is missing.
func (h *GameHandler) begin(w http.ResponseWriter, r *http.Request) (application.Principal, bool) {
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

func (h *GameHandler) List(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.begin(w, r)
	if !ok {
		return
	}
	games, err := h.service.ListGames(r.Context(), principal)
	if err != nil {
		h.log(r.Context(), "List", "principal_id", principal.UserID).
			ErrorContext(r.Context(), "failed to list games", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, gamesResponse{Games: toGameDTOs(games)})
}

func (h *GameHandler) Get(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.begin(w, r)
	if !ok {
		return
	}
	gameID, ok := ResourceIDFromContext(r.Context())
	if !ok || gameID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidGameID)
		return
	}
	game, err := h.service.GetGame(r.Context(), principal, gameID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, gameResponse{Game: toGameDTO(game)})
}

func (h *GameHandler) Create(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.begin(w, r)
	if !ok {
		return
	}
	logger := h.log(r.Context(), "Create", "principal_id", principal.UserID)

	var req createGameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.ErrorContext(r.Context(), "failed to decode game", "error", err, "error_kind", "bad_request")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	game, err := h.service.AddGame(r.Context(), principal, application.GameInput{
		Title:           req.Title,
		Status:          req.Status,
		PlayedMinutes:   req.PlayedMinutes,
		EstimateMinutes: req.EstimateMinutes,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "failed to add game", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("game_id", game.ID).InfoContext(r.Context(), "game added")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, gameResponse{Game: toGameDTO(game)})
}

func (h *GameHandler) Update(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.begin(w, r)
	if !ok {
		return
	}
	gameID, ok := ResourceIDFromContext(r.Context())
	if !ok || gameID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidGameID)
		return
	}
	logger := h.log(r.Context(), "Update", "principal_id", principal.UserID, "game_id", gameID)

	var req updateGameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.ErrorContext(r.Context(), "failed to decode game update", "error", err, "error_kind", "bad_request")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	game, err := h.service.UpdateGame(r.Context(), principal, gameID, application.GameUpdate{
		Title:           req.Title,
		Status:          req.Status,
		PlayedMinutes:   req.PlayedMinutes,
		EstimateMinutes: req.EstimateMinutes,
		ClearEstimate:   req.ClearEstimate,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "failed to update game", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "game updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, gameResponse{Game: toGameDTO(game)})
}

func (h *GameHandler) Delete(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.begin(w, r)
	if !ok {
		return
	}
	gameID, ok := ResourceIDFromContext(r.Context())
	if !ok || gameID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidGameID)
		return
	}
	logger := h.log(r.Context(), "Delete", "principal_id", principal.UserID, "game_id", gameID)

	if err := h.service.RemoveGame(r.Context(), principal, gameID); err != nil {
		logger.ErrorContext(r.Context(), "failed to remove game", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "game removed")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

// Backlog lists the active games in play order.
func (h *GameHandler) Backlog(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.begin(w, r)
	if !ok {
		return
	}
	games, err := h.service.OrderedBacklog(r.Context(), principal)
	if err != nil {
		h.log(r.Context(), "Backlog", "principal_id", principal.UserID).
			ErrorContext(r.Context(), "failed to load backlog", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, gamesResponse{Games: toGameDTOs(games)})
}

// Reorder replaces the play order with the submitted id list and returns the
// resulting backlog.
func (h *GameHandler) Reorder(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.begin(w, r)
	if !ok {
		return
	}
	logger := h.log(r.Context(), "Reorder", "principal_id", principal.UserID)

	var req reorderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.ErrorContext(r.Context(), "failed to decode order", "error", err, "error_kind", "bad_request")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	if err := h.service.Reorder(r.Context(), principal, req.GameIDs); err != nil {
		logger.ErrorContext(r.Context(), "failed to reorder backlog", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	games, err := h.service.OrderedBacklog(r.Context(), principal)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "backlog reordered", "count", len(req.GameIDs))
	h.responder.writeJSON(r.Context(), w, http.StatusOK, gamesResponse{Games: toGameDTOs(games)})
}

type createGameRequest struct {
	Title           string `json:"title"`
	Status          string `json:"status"`
	PlayedMinutes   int    `json:"played_minutes"`
	EstimateMinutes *int   `json:"estimate_minutes"`
}

type updateGameRequest struct {
	Title           *string `json:"title"`
	Status          *string `json:"status"`
	PlayedMinutes   *int    `json:"played_minutes"`
	EstimateMinutes *int    `json:"estimate_minutes"`
	ClearEstimate   bool    `json:"clear_estimate"`
}

type reorderRequest struct {
	GameIDs []string `json:"game_ids"`
}

type gameResponse struct {
	Game gameDTO `json:"game"`
}

type gamesResponse struct {
	Games []gameDTO `json:"games"`
}

type gameDTO struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Status          string `json:"status"`
	Priority        int    `json:"priority"`
	PlayedMinutes   int    `json:"played_minutes"`
	EstimateMinutes *int   `json:"estimate_minutes"`
	CreatedAt       string `json:"created_at"`
	UpdatedAt       string `json:"updated_at"`
}

func toGameDTO(game application.Game) gameDTO {
	return gameDTO{
		ID:              game.ID,
		Title:           game.Title,
		Status:          string(game.Status),
		Priority:        game.Priority,
		PlayedMinutes:   game.PlayedMinutes,
		EstimateMinutes: game.EstimateMinutes,
		CreatedAt:       game.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:       game.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func toGameDTOs(games []application.Game) []gameDTO {
	out := make([]gameDTO, 0, len(games))
	for _, game := range games {
		out = append(out, toGameDTO(game))
	}
	return out
}
