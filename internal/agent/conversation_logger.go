package agent

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// ConversationLogConfig controls the NDJSON conversation log.
type ConversationLogConfig struct {
	Enabled       bool
	Dir           string
	GlobalEnabled bool
	GlobalPath    string
	QueueSize     int
}

// ConversationLogEvent is one line of the conversation log.
type ConversationLogEvent struct {
	Timestamp  string         `json:"ts"`
	UserID     string         `json:"user_id"`
	SessionID  string         `json:"session_id"`
	Channel    string         `json:"channel"`
	Direction  string         `json:"direction"`
	EventType  string         `json:"event_type"`
	ContentRaw string         `json:"content_raw,omitempty"`
	Content    string         `json:"content,omitempty"`
	Meta       map[string]any `json:"meta,omitempty"`
}

// Event types that end a session's log file. The file is closed after the event is written and
// reopened in append mode if the session logs again.
const (
	EventSessionExpired = "session_expired"
	EventSessionReset   = "session_reset"
)

// ConversationLogger records conversation events. Log must not block the caller.
type ConversationLogger interface {
	Log(event ConversationLogEvent)
	Close() error
}

type noopConversationLogger struct{}

func (noopConversationLogger) Log(ConversationLogEvent) {}
func (noopConversationLogger) Close() error             { return nil }

// NopConversationLogger returns a logger that discards everything.
func NopConversationLogger() ConversationLogger { return noopConversationLogger{} }

type fileConversationLogger struct {
	cfg     ConversationLogConfig
	logger  *slog.Logger
	queue   chan ConversationLogEvent
	done    chan struct{}
	dropped atomic.Int64
	mu      sync.RWMutex
	closed  bool
	filesMu sync.Mutex
	files   map[string]*os.File
	global  *os.File
}

// NewConversationLogger returns a queue-backed NDJSON writer, or a no-op logger when disabled.
// Events are written to <Dir>/<user>/<session>.ndjson and, when GlobalEnabled, to GlobalPath.
func NewConversationLogger(cfg ConversationLogConfig, logger *slog.Logger) (ConversationLogger, error) {
	if !cfg.Enabled {
		return noopConversationLogger{}, nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Dir == "" {
		cfg.Dir = "./data/conversations"
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create conversation log dir: %w", err)
	}

	l := &fileConversationLogger{
		cfg:    cfg,
		logger: logger,
		queue:  make(chan ConversationLogEvent, cfg.QueueSize),
		done:   make(chan struct{}),
		files:  make(map[string]*os.File),
	}
	if cfg.GlobalEnabled && cfg.GlobalPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.GlobalPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create global conversation log dir: %w", err)
		}
		f, err := os.OpenFile(cfg.GlobalPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open global conversation log: %w", err)
		}
		l.global = f
	}
	go l.run()
	return l, nil
}

func (l *fileConversationLogger) Log(event ConversationLogEvent) {
	if event.Timestamp == "" {
		event.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	}
	if event.Content == "" && event.ContentRaw != "" {
		event.Content = cleanForReadability(event.ContentRaw)
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return
	}
	select {
	case l.queue <- event:
	default:
		if n := l.dropped.Add(1); n%100 == 1 {
			l.logger.Warn("conversation log queue full, dropping events", "dropped_total", n)
		}
	}
}

func (l *fileConversationLogger) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	close(l.queue)
	l.mu.Unlock()
	<-l.done

	var firstErr error
	l.filesMu.Lock()
	for key, f := range l.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(l.files, key)
	}
	l.filesMu.Unlock()
	if l.global != nil {
		if err := l.global.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (l *fileConversationLogger) run() {
	defer close(l.done)
	for event := range l.queue {
		line, err := json.Marshal(event)
		if err != nil {
			l.logger.Warn("failed to marshal conversation event", "error", err)
			continue
		}
		line = append(line, '\n')

		f, err := l.sessionFile(event.UserID, event.SessionID)
		if err != nil {
			l.logger.Warn("failed to open conversation log", "user_id", event.UserID, "error", err)
		} else if _, err := f.Write(line); err != nil {
			l.logger.Warn("failed to write conversation log", "user_id", event.UserID, "error", err)
		}
		if l.global != nil {
			if _, err := l.global.Write(line); err != nil {
				l.logger.Warn("failed to write global conversation log", "error", err)
			}
		}
		if event.EventType == EventSessionExpired || event.EventType == EventSessionReset {
			l.releaseSession(event.UserID, event.SessionID)
		}
	}
}

func sessionFileKey(userID, sessionID string) (user, session, key string) {
	user = safePathComponent(userID, "anonymous")
	session = safePathComponent(sessionID, "default")
	return user, session, user + "/" + session
}

// releaseSession closes the session's log file.
func (l *fileConversationLogger) releaseSession(userID, sessionID string) {
	_, _, key := sessionFileKey(userID, sessionID)
	l.filesMu.Lock()
	f, ok := l.files[key]
	delete(l.files, key)
	l.filesMu.Unlock()
	if !ok {
		return
	}
	if err := f.Close(); err != nil {
		l.logger.Warn("failed to close conversation log", "user_id", userID, "error", err)
	}
}

func (l *fileConversationLogger) openFiles() int {
	l.filesMu.Lock()
	defer l.filesMu.Unlock()
	return len(l.files)
}

func (l *fileConversationLogger) sessionFile(userID, sessionID string) (*os.File, error) {
	user, session, key := sessionFileKey(userID, sessionID)
	l.filesMu.Lock()
	defer l.filesMu.Unlock()
	if f, ok := l.files[key]; ok {
		return f, nil
	}
	dir := filepath.Join(l.cfg.Dir, user)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(filepath.Join(dir, session+".ndjson"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	l.files[key] = f
	return f, nil
}

var unsafePathChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

func safePathComponent(s, def string) string {
	s = unsafePathChars.ReplaceAllString(s, "_")
	s = strings.Trim(s, ".")
	if s == "" {
		return def
	}
	return s
}

var ansiSequence = regexp.MustCompile(`\x1b\[[0-9;?]*[ -/]*[@-~]|\x1b\][^\x07]*\x07`)

// cleanForReadability strips terminal escape sequences and collapses whitespace.
func cleanForReadability(s string) string {
	s = ansiSequence.ReplaceAllString(s, "")
	return strings.Join(strings.Fields(s), " ")
}
