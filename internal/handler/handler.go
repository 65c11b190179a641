// Package handler maps the HTTP API onto the session registry. It carries no
// business logic: every route resolves a session and delegates to one
// orchestrator operation.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/edaccel/readtutor/internal/model"
	"github.com/edaccel/readtutor/internal/passage"
	"github.com/edaccel/readtutor/internal/session"
	"github.com/edaccel/readtutor/internal/store"
)

type Handler struct {
	registry *session.Registry
	passage  passage.Passage
	archive  *store.Archive
}

// New creates the handler. A nil archive disables the archived-session routes'
// data source (they return empty listings).
func New(registry *session.Registry, p passage.Passage, archive *store.Archive) *Handler {
	return &Handler{registry: registry, passage: p, archive: archive}
}

// Routes mounts all API routes on the router.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/health", h.handleHealth)
	r.Get("/passage", h.handlePassage)
	r.Post("/session/start", h.handleStart)
	r.Post("/chat", h.handleChat)
	r.Get("/session/{sessionID}/status", h.handleStatus)
	r.Delete("/session/{sessionID}", h.handleDelete)
	r.Post("/session/{sessionID}/quiz/submit", h.handleSubmitQuiz)
	r.Post("/session/{sessionID}/skip", h.handleSkip)
	r.Get("/sessions", h.handleArchivedSessions)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"live_sessions": h.registry.Count(),
	})
}

func (h *Handler) handlePassage(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.passage)
}

// handleStart creates a fresh session and returns the evaluator's opening
// question. A missing session_id gets a generated one.
func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"session_id"`
	}
	// An empty body is fine; anything else malformed is a bad request.
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	o := h.registry.Create(req.SessionID)
	reply := o.GetIntro(r.Context())

	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": req.SessionID,
		"response":   reply.Response,
		"phase":      reply.Phase,
		"plan":       reply.Plan,
	})
}

// handleChat routes a learner message to its session, creating the session on
// first contact. A brand-new session gets the intro instead of processing the
// message as an answer.
func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"session_id"`
		Message   string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	o, existed := h.registry.Get(req.SessionID)
	var reply session.Reply
	if !existed {
		o = h.registry.GetOrCreate(req.SessionID)
		reply = o.GetIntro(r.Context())
	} else {
		reply = o.ProcessMessage(r.Context(), req.Message)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"session_id":           req.SessionID,
		"response":             reply.Response,
		"phase":                reply.Phase,
		"plan":                 reply.Plan,
		"transitioned":         reply.Transitioned,
		"session_complete":     reply.SessionComplete,
		"show_quiz":            reply.ShowQuiz,
		"quiz_data":            reply.QuizData,
		"teacher_questions":    reply.TeacherQuestions,
		"questions_until_quiz": reply.QuestionsUntilQuiz,
	})
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	o, ok := h.registry.Get(sessionID)
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, o.Snapshot())
}

// handleDelete drops a session from the live registry and, when an archive is
// configured, removes its stored snapshot as well.
func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	_, live := h.registry.Get(sessionID)
	h.registry.Delete(sessionID)
	if h.archive != nil {
		if err := h.archive.Delete(sessionID); err != nil {
			slog.Error("could not delete archived session", "session_id", sessionID, "error", err)
			writeError(w, http.StatusInternalServerError, "could not delete archived session")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"deleted":  sessionID,
		"was_live": live,
	})
}

func (h *Handler) handleSubmitQuiz(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	o, ok := h.registry.Get(sessionID)
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	var req struct {
		Answers []model.QuizAnswer `json:"answers"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := o.SubmitQuiz(r.Context(), req.Answers)
	if err != nil {
		if errors.Is(err, session.ErrNoActiveQuiz) {
			writeError(w, http.StatusConflict, "no active quiz for this session")
			return
		}
		slog.Error("quiz submission failed", "session_id", sessionID, "error", err)
		writeError(w, http.StatusInternalServerError, "quiz submission failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleSkip(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	o, ok := h.registry.Get(sessionID)
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	var req struct {
		Phase string `json:"phase"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	target, err := model.ParsePhase(req.Phase)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	reply, err := o.SkipTo(r.Context(), target)
	if err != nil {
		if errors.Is(err, session.ErrBackwardTransition) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"response": reply.Response,
		"phase":    reply.Phase,
	})
}

// handleArchivedSessions lists live session ids alongside the archived
// summaries.
func (h *Handler) handleArchivedSessions(w http.ResponseWriter, r *http.Request) {
	active := h.registry.List()
	sort.Strings(active)

	sessions := []store.Summary{}
	if h.archive != nil {
		var err error
		sessions, err = h.archive.List(50)
		if err != nil {
			slog.Error("could not list archived sessions", "error", err)
			writeError(w, http.StatusInternalServerError, "could not list archived sessions")
			return
		}
		if sessions == nil {
			sessions = []store.Summary{}
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"active":   active,
		"sessions": sessions,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}
