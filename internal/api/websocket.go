package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/containerd/errdefs"

	"github.com/asmaf9056/afatimachtbot36/internal/agent"
	"github.com/asmaf9056/afatimachtbot36/internal/domain"
	"github.com/asmaf9056/afatimachtbot36/internal/enrollment"
	"github.com/asmaf9056/afatimachtbot36/internal/intent"
	"github.com/asmaf9056/afatimachtbot36/internal/session"
)

const (
	wsChannel      = "chat_ws"
	wsWriteTimeout = 10 * time.Second
)

// Limiter decides whether a visitor may perform another action.
type Limiter interface {
	Allow(key string) bool
}

// wsRequest is one client action. ID is echoed on the matching event.
type wsRequest struct {
	ID      string             `json:"id,omitempty"`
	Type    string             `json:"type"`
	Message string             `json:"message,omitempty"`
	Draft   *domain.DraftPatch `json:"draft,omitempty"`
}

// wsEvent is one server event. Events are written in the order requests were read.
type wsEvent struct {
	ID           string                  `json:"id,omitempty"`
	Type         string                  `json:"type"`
	Reply        *agent.Reply            `json:"reply,omitempty"`
	Intent       *intent.Result          `json:"intent,omitempty"`
	Confirmation *domain.Confirmation    `json:"confirmation,omitempty"`
	Session      *session.Snapshot       `json:"session,omitempty"`
	Error        string                  `json:"error,omitempty"`
	Status       int                     `json:"status,omitempty"`
	Fields       []enrollment.FieldError `json:"fields,omitempty"`
}

// WebSocketHandler serves the widget over a single WebSocket per tab.
type WebSocketHandler struct {
	*Handler
	limiter        Limiter
	allowedOrigins []string
	isDev          bool
}

// NewWebSocketHandler creates a new WebSocket handler. limiter may be nil.
func NewWebSocketHandler(base *Handler, limiter Limiter, allowedOrigins []string, isDev bool) *WebSocketHandler {
	return &WebSocketHandler{
		Handler:        base,
		limiter:        limiter,
		allowedOrigins: allowedOrigins,
		isDev:          isDev,
	}
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := sessionKey(r)
	slog.Info("WebSocket connection request", "visitor_id", key.VisitorID, "session_id", key.SessionID, "ip", r.RemoteAddr)

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "visitor_id", key.VisitorID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "visitor_id", key.VisitorID)
		}
	}()
	ws.SetReadLimit(h.maxBodyBytes)

	ctx := session.WithChannel(r.Context(), wsChannel)

	// Send the current view first so a reconnecting tab can redraw.
	snap, err := h.sessions.Snapshot(ctx, key)
	if err != nil {
		h.write(ctx, ws, errorEvent("", err, nil))
		return
	}
	if err := h.write(ctx, ws, wsEvent{Type: "session", Session: &snap}); err != nil {
		return
	}

	h.readLoop(ctx, ws, key)
	slog.Info("WebSocket session ended", "visitor_id", key.VisitorID, "session_id", key.SessionID)
}

func (h *WebSocketHandler) readLoop(ctx context.Context, ws *websocket.Conn, key session.Key) {
	for {
		var req wsRequest
		if err := wsjson.Read(ctx, ws, &req); err != nil {
			if websocket.CloseStatus(err) != -1 || errors.Is(err, context.Canceled) {
				slog.Debug("WebSocket closed by client", "visitor_id", key.VisitorID)
			} else {
				slog.Warn("WebSocket read error", "error", err, "visitor_id", key.VisitorID)
			}
			return
		}

		if h.limiter != nil && !h.limiter.Allow(key.VisitorID) {
			err := fmt.Errorf("rate limit exceeded, please slow down: %w", errdefs.ErrResourceExhausted)
			if h.write(ctx, ws, errorEvent(req.ID, err, nil)) != nil {
				return
			}
			continue
		}

		if err := h.write(ctx, ws, h.dispatch(ctx, key, req)); err != nil {
			slog.Debug("WebSocket write error", "error", err, "visitor_id", key.VisitorID)
			return
		}
	}
}

// dispatch runs one request to completion. Requests on a connection are handled one at a time.
func (h *WebSocketHandler) dispatch(ctx context.Context, key session.Key, req wsRequest) wsEvent {
	var (
		snap session.Snapshot
		err  error
	)
	switch req.Type {
	case "chat":
		res, err := h.sessions.Say(ctx, key, req.Message)
		if err != nil {
			return errorEvent(req.ID, err, nil)
		}
		return wsEvent{ID: req.ID, Type: "chat", Reply: &res.Reply, Intent: &res.Intent, Session: &res.Snapshot}
	case "submit":
		res, err := h.sessions.Submit(ctx, key, req.Draft)
		if err != nil {
			return errorEvent(req.ID, err, snapshotOrNil(res.Snapshot))
		}
		return wsEvent{ID: req.ID, Type: "submitted", Confirmation: res.Confirmation, Session: &res.Snapshot}
	case "open":
		snap, err = h.sessions.OpenForm(ctx, key)
	case "draft":
		if req.Draft == nil {
			return errorEvent(req.ID, fmt.Errorf("draft is required: %w", errdefs.ErrInvalidArgument), nil)
		}
		snap, err = h.sessions.UpdateDraft(ctx, key, *req.Draft)
	case "close":
		snap, err = h.sessions.CloseForm(ctx, key)
	case "reset":
		snap, err = h.sessions.Reset(ctx, key)
	case "session":
		snap, err = h.sessions.Snapshot(ctx, key)
	default:
		return errorEvent(req.ID, fmt.Errorf("unknown message type %q: %w", req.Type, errdefs.ErrInvalidArgument), nil)
	}
	if err != nil {
		return errorEvent(req.ID, err, snapshotOrNil(snap))
	}
	return wsEvent{ID: req.ID, Type: "session", Session: &snap}
}

func errorEvent(id string, err error, snap *session.Snapshot) wsEvent {
	status, body := newErrorBody(err, snap)
	return wsEvent{
		ID:      id,
		Type:    "error",
		Error:   body.Error,
		Status:  status,
		Fields:  body.Fields,
		Session: body.Session,
	}
}

func (h *WebSocketHandler) write(ctx context.Context, ws *websocket.Conn, ev wsEvent) error {
	wctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return wsjson.Write(wctx, ws, ev)
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range h.allowedOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigins)
	return false
}
