// Package api provides HTTP handlers for the enrollment widget.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/containerd/errdefs"
	"github.com/containerd/errdefs/pkg/errhttp"

	"github.com/asmaf9056/afatimachtbot36/internal/enrollment"
	"github.com/asmaf9056/afatimachtbot36/internal/identity"
	"github.com/asmaf9056/afatimachtbot36/internal/session"
)

// Handler provides common handler utilities.
type Handler struct {
	sessions     *session.Service
	maxBodyBytes int64
}

// NewHandler creates a new Handler with common dependencies.
func NewHandler(sessions *session.Service, maxBodyBytes int64) *Handler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = 1 << 20
	}
	return &Handler{sessions: sessions, maxBodyBytes: maxBodyBytes}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// errorBody is the payload for failed actions. Session is included when the action reached a
// session so the widget can re-render without another round trip.
type errorBody struct {
	Error   string                  `json:"error"`
	Fields  []enrollment.FieldError `json:"fields,omitempty"`
	Session *session.Snapshot       `json:"session,omitempty"`
}

func newErrorBody(err error, snap *session.Snapshot) (int, errorBody) {
	status := errhttp.ToHTTP(err)
	body := errorBody{Error: err.Error(), Session: snap}
	var verr *enrollment.ValidationError
	if errors.As(err, &verr) {
		body.Fields = verr.Fields
	}
	if status >= http.StatusInternalServerError && !errdefs.IsUnavailable(err) {
		body.Error = "internal error"
	}
	return status, body
}

// writeError maps err onto its HTTP status. snap may be nil.
func writeError(w http.ResponseWriter, r *http.Request, err error, snap *session.Snapshot) {
	status, body := newErrorBody(err, snap)
	if status >= http.StatusInternalServerError {
		slog.Error("Request failed", "path", r.URL.Path, "error", err)
	}
	JSON(w, status, body)
}

// sessionKey builds the session key from the identity middleware's context values.
func sessionKey(r *http.Request) session.Key {
	return session.Key{
		VisitorID: identity.VisitorIDFromContext(r.Context()),
		SessionID: identity.SessionIDFromContext(r.Context()),
	}
}

// decode reads a JSON body into v. An empty body leaves v untouched when allowEmpty is set.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any, allowEmpty bool) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if allowEmpty && errors.Is(err, io.EOF) {
			return nil
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return fmt.Errorf("request body too large: %w", errdefs.ErrInvalidArgument)
		}
		return fmt.Errorf("invalid request body: %v: %w", err, errdefs.ErrInvalidArgument)
	}
	return nil
}
