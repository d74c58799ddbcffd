package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/prepstack-ai/prepstack-engine/pkg/apperrors"
	"github.com/prepstack-ai/prepstack-engine/pkg/auth"
	"github.com/prepstack-ai/prepstack-engine/pkg/models"
	"github.com/prepstack-ai/prepstack-engine/pkg/services"
)

// Coaching actions accepted by the multiplexed endpoint.
const (
	ActionStartSession  = "start_design_session"
	ActionUpdateBoard   = "update_board_state"
	ActionReactToBoard  = "react_to_board_changes"
	ActionCoachMessage  = "coach_message"
	ActionEvaluateFinal = "evaluate_final_design"
)

// CoachRequest is the action-dispatched request body for POST /api/design/coach.
// The user is taken from the JWT, never from the payload.
type CoachRequest struct {
	Action     string             `json:"action"`
	ProblemID  *uuid.UUID         `json:"problemId,omitempty"`
	SessionID  *uuid.UUID         `json:"sessionId,omitempty"`
	BoardState *models.BoardState `json:"boardState,omitempty"`
	Message    string             `json:"message,omitempty"`
}

// CoachHandler exposes the design-coaching HTTP surface.
type CoachHandler struct {
	coach  services.CoachService
	logger *zap.Logger
}

// NewCoachHandler creates a new CoachHandler.
func NewCoachHandler(coach services.CoachService, logger *zap.Logger) *CoachHandler {
	return &CoachHandler{coach: coach, logger: logger.Named("coach-handler")}
}

// RegisterRoutes registers the coaching routes on the given mux.
func (h *CoachHandler) RegisterRoutes(mux *http.ServeMux, mw *auth.Middleware) {
	mux.HandleFunc("POST /api/design/coach", mw.RequireAuth(h.Coach))
	mux.HandleFunc("GET /api/design/sessions/{sessionId}/history", mw.RequireAuth(h.History))
	mux.HandleFunc("DELETE /api/design/sessions/{sessionId}", mw.RequireAuth(h.Delete))
}

// Coach handles POST /api/design/coach, dispatching on the action field.
// Preconditions are validated before any side effect.
func (h *CoachHandler) Coach(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.RequireUserUUIDFromContext(r.Context())
	if err != nil {
		_ = ErrorResponse(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}

	var req CoachRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Request body must be valid JSON")
		return
	}

	switch req.Action {
	case ActionStartSession:
		h.startSession(w, r, userID, &req)
	case ActionUpdateBoard:
		h.updateBoard(w, r, userID, &req)
	case ActionReactToBoard:
		h.reactToBoard(w, r, userID, &req)
	case ActionCoachMessage:
		h.coachMessage(w, r, userID, &req)
	case ActionEvaluateFinal:
		h.evaluateFinal(w, r, userID, &req)
	default:
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Unknown action: "+req.Action)
	}
}

func (h *CoachHandler) startSession(w http.ResponseWriter, r *http.Request, userID uuid.UUID, req *CoachRequest) {
	if req.ProblemID == nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "problemId is required")
		return
	}

	result, err := h.coach.StartOrResume(r.Context(), userID, *req.ProblemID)
	if err != nil {
		h.serviceError(w, "start_design_session", err)
		return
	}

	response := map[string]interface{}{
		"sessionId": result.Session.ID,
		"resumed":   result.Resumed,
	}
	if result.Message != "" {
		response["message"] = result.Message
	}
	if result.Board != nil {
		response["boardState"] = result.Board
	}

	h.writeJSON(w, response)
}

func (h *CoachHandler) updateBoard(w http.ResponseWriter, r *http.Request, userID uuid.UUID, req *CoachRequest) {
	if req.SessionID == nil || req.BoardState == nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "sessionId and boardState are required")
		return
	}

	if err := h.coach.UpdateBoard(r.Context(), userID, *req.SessionID, req.BoardState); err != nil {
		h.serviceError(w, "update_board_state", err)
		return
	}

	h.writeJSON(w, map[string]interface{}{"sessionId": *req.SessionID})
}

func (h *CoachHandler) reactToBoard(w http.ResponseWriter, r *http.Request, userID uuid.UUID, req *CoachRequest) {
	if req.SessionID == nil || req.BoardState == nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "sessionId and boardState are required")
		return
	}

	result, err := h.coach.ReactToBoardChange(r.Context(), userID, *req.SessionID, req.BoardState)
	if err != nil {
		h.serviceError(w, "react_to_board_changes", err)
		return
	}

	response := map[string]interface{}{"sessionId": *req.SessionID}
	if result.Message != "" {
		response["message"] = result.Message
	}
	if result.Completeness != nil {
		response["completeness"] = result.Completeness
	}

	h.writeJSON(w, response)
}

func (h *CoachHandler) coachMessage(w http.ResponseWriter, r *http.Request, userID uuid.UUID, req *CoachRequest) {
	if req.SessionID == nil || req.Message == "" {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "sessionId and message are required")
		return
	}

	result, err := h.coach.HandleMessage(r.Context(), userID, *req.SessionID, req.Message)
	if err != nil {
		h.serviceError(w, "coach_message", err)
		return
	}

	response := map[string]interface{}{
		"sessionId": *req.SessionID,
		"message":   result.Message,
	}
	if result.Completeness != nil {
		response["completeness"] = result.Completeness
	}

	h.writeJSON(w, response)
}

func (h *CoachHandler) evaluateFinal(w http.ResponseWriter, r *http.Request, userID uuid.UUID, req *CoachRequest) {
	if req.SessionID == nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "sessionId is required")
		return
	}

	result, err := h.coach.Evaluate(r.Context(), userID, *req.SessionID, req.BoardState)
	if err != nil {
		h.serviceError(w, "evaluate_final_design", err)
		return
	}

	h.writeJSON(w, map[string]interface{}{
		"sessionId":  *req.SessionID,
		"evaluation": result.Evaluation,
		"passed":     result.Passed,
	})
}

// History handles GET /api/design/sessions/{sessionId}/history. An optional
// ?limit= query keeps only the most recent turns.
func (h *CoachHandler) History(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.RequireUserUUIDFromContext(r.Context())
	if err != nil {
		_ = ErrorResponse(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}

	sessionID, err := uuid.Parse(r.PathValue("sessionId"))
	if err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "sessionId must be a UUID")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 {
			_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "limit must be a positive integer")
			return
		}
	}

	turns, err := h.coach.GetHistory(r.Context(), userID, sessionID, limit)
	if err != nil {
		h.serviceError(w, "get_history", err)
		return
	}

	h.writeJSON(w, map[string]interface{}{
		"sessionId": sessionID,
		"turns":     turns,
	})
}

// Delete handles DELETE /api/design/sessions/{sessionId}.
func (h *CoachHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.RequireUserUUIDFromContext(r.Context())
	if err != nil {
		_ = ErrorResponse(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}

	sessionID, err := uuid.Parse(r.PathValue("sessionId"))
	if err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "sessionId must be a UUID")
		return
	}

	if err := h.coach.Delete(r.Context(), userID, sessionID); err != nil {
		h.serviceError(w, "delete_session", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// serviceError maps service-layer errors to HTTP responses.
func (h *CoachHandler) serviceError(w http.ResponseWriter, action string, err error) {
	switch {
	case errors.Is(err, apperrors.ErrNotFound), errors.Is(err, apperrors.ErrSpecMissing):
		_ = ErrorResponse(w, http.StatusNotFound, "not_found", "Session or problem not found")
	case errors.Is(err, apperrors.ErrSessionCompleted):
		_ = ErrorResponse(w, http.StatusConflict, "session_completed", "Session is already completed")
	case errors.Is(err, apperrors.ErrEmptyEvaluation):
		h.logger.Error("Evaluation failed", zap.String("action", action), zap.Error(err))
		_ = ErrorResponse(w, http.StatusBadGateway, "evaluation_failed", "The evaluation could not be produced; please try again")
	default:
		h.logger.Error("Coach action failed", zap.String("action", action), zap.Error(err))
		_ = ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Internal server error")
	}
}

func (h *CoachHandler) writeJSON(w http.ResponseWriter, data interface{}) {
	if err := WriteJSON(w, http.StatusOK, data); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}
