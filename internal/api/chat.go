package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/asmaf9056/afatimachtbot36/internal/domain"
	"github.com/asmaf9056/afatimachtbot36/internal/session"
)

// ChatHandler serves the conversation and enrollment form actions over plain HTTP.
type ChatHandler struct {
	*Handler
}

// NewChatHandler creates a chat handler.
func NewChatHandler(base *Handler) *ChatHandler {
	return &ChatHandler{Handler: base}
}

// RegisterRoutes registers session, chat and enrollment routes.
func (h *ChatHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/session", h.GetSession)
		r.Post("/session/reset", h.ResetSession)
		r.Post("/chat", h.Chat)
		r.Route("/enrollment", func(r chi.Router) {
			r.Post("/open", h.OpenForm)
			r.Put("/draft", h.UpdateDraft)
			r.Post("/submit", h.Submit)
			r.Post("/close", h.CloseForm)
		})
	})
}

type chatRequest struct {
	Message string `json:"message"`
}

// GetSession returns the visitor's current session view.
func (h *ChatHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	snap, err := h.sessions.Snapshot(r.Context(), sessionKey(r))
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	JSON(w, http.StatusOK, snap)
}

// ResetSession clears the transcript and the form.
func (h *ChatHandler) ResetSession(w http.ResponseWriter, r *http.Request) {
	h.snapshotAction(w, r, h.sessions.Reset)
}

// Chat sends one utterance and returns the reply with the updated session.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := h.decode(w, r, &req, false); err != nil {
		writeError(w, r, err, nil)
		return
	}
	res, err := h.sessions.Say(r.Context(), sessionKey(r), req.Message)
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	JSON(w, http.StatusOK, res)
}

// OpenForm shows the enrollment form once enrollment has been offered.
func (h *ChatHandler) OpenForm(w http.ResponseWriter, r *http.Request) {
	h.snapshotAction(w, r, h.sessions.OpenForm)
}

// CloseForm hides the form.
func (h *ChatHandler) CloseForm(w http.ResponseWriter, r *http.Request) {
	h.snapshotAction(w, r, h.sessions.CloseForm)
}

// UpdateDraft applies field edits to the open form.
func (h *ChatHandler) UpdateDraft(w http.ResponseWriter, r *http.Request) {
	var patch domain.DraftPatch
	if err := h.decode(w, r, &patch, false); err != nil {
		writeError(w, r, err, nil)
		return
	}
	snap, err := h.sessions.UpdateDraft(r.Context(), sessionKey(r), patch)
	if err != nil {
		writeError(w, r, err, &snap)
		return
	}
	JSON(w, http.StatusOK, snap)
}

// Submit validates the draft, optionally patched by the request body, and confirms it.
func (h *ChatHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var patch *domain.DraftPatch
	if r.ContentLength != 0 {
		var p domain.DraftPatch
		if err := h.decode(w, r, &p, true); err != nil {
			writeError(w, r, err, nil)
			return
		}
		patch = &p
	}
	res, err := h.sessions.Submit(r.Context(), sessionKey(r), patch)
	if err != nil {
		writeError(w, r, err, snapshotOrNil(res.Snapshot))
		return
	}
	JSON(w, http.StatusOK, res)
}

func (h *ChatHandler) snapshotAction(w http.ResponseWriter, r *http.Request, action func(ctx context.Context, key session.Key) (session.Snapshot, error)) {
	snap, err := action(r.Context(), sessionKey(r))
	if err != nil {
		writeError(w, r, err, snapshotOrNil(snap))
		return
	}
	JSON(w, http.StatusOK, snap)
}

// snapshotOrNil drops the zero snapshot returned when no session was reached.
func snapshotOrNil(s session.Snapshot) *session.Snapshot {
	if s.State == "" {
		return nil
	}
	return &s
}
