package agent

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"github.com/asmaf9056/afatimachtbot36/internal/catalog"
	"github.com/asmaf9056/afatimachtbot36/internal/domain"
)

// Service produces replies using the completion provider with the fallback table as backstop.
type Service struct {
	completer Completer
	breaker   *gobreaker.CircuitBreaker
	fallback  *FallbackResponder
	catalog   *catalog.Catalog
	retriever Retriever
	cfg       Config
	logger    *slog.Logger
}

// NewService wires a reply service. completer and retriever may be nil.
func NewService(cfg Config, cat *catalog.Catalog, completer Completer, retriever Retriever, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = DefaultConfig().BreakerFailures
	}
	s := &Service{
		completer: completer,
		fallback:  NewFallbackResponder(cat.Fallback),
		catalog:   cat,
		retriever: retriever,
		cfg:       cfg,
		logger:    logger,
	}
	s.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "completion",
		MaxRequests: 1,
		Timeout:     cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("completion breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return s
}

// Enabled reports whether a completion provider is configured.
func (s *Service) Enabled() bool { return s.completer != nil }

// Provider returns the provider name, or "none".
func (s *Service) Provider() string {
	if s.completer == nil {
		return ProviderNone
	}
	return s.completer.Name()
}

// BreakerState returns the circuit breaker state as a string.
func (s *Service) BreakerState() string { return s.breaker.State().String() }

// Respond answers the last user turn in turns. It makes at most one provider call, bounded by the
// configured timeout and detached from ctx cancellation, and never returns an error: any provider
// failure is reported in Reply.Err and answered from the fallback table.
func (s *Service) Respond(ctx context.Context, turns []domain.Turn) Reply {
	start := time.Now()
	query := lastUserText(turns)

	if s.completer == nil {
		return s.fallbackReply(query, nil, start)
	}

	preamble := BuildPreamble(s.catalog, s.retrieve(ctx, query))
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.Timeout)
	defer cancel()

	out, err := s.breaker.Execute(func() (interface{}, error) {
		return s.completer.Complete(callCtx, preamble, turns)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = remoteError(s.completer.Name(), 0, err)
		}
		s.logger.Warn("completion unavailable, using fallback",
			"provider", s.completer.Name(),
			"error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return s.fallbackReply(query, err, start)
	}
	return Reply{
		Text:     out.(string),
		Source:   ResponseTypeLLM,
		Provider: s.completer.Name(),
		Latency:  time.Since(start),
	}
}

func (s *Service) fallbackReply(query string, err error, start time.Time) Reply {
	text, topic := s.fallback.Respond(query)
	return Reply{
		Text:     text,
		Source:   ResponseTypePattern,
		Topic:    topic,
		Notice:   s.catalog.OfflineNotice,
		Err:      err,
		Provider: s.Provider(),
		Latency:  time.Since(start),
	}
}

func (s *Service) retrieve(ctx context.Context, query string) []domain.Chunk {
	if s.retriever == nil || s.cfg.ContextChunks <= 0 || query == "" {
		return nil
	}
	chunks, err := s.retriever.Search(ctx, query, s.cfg.ContextChunks)
	if err != nil {
		s.logger.Warn("knowledge search failed", "error", err)
		return nil
	}
	return chunks
}

func lastUserText(turns []domain.Turn) string {
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == domain.RoleUser {
			return turns[i].Text
		}
	}
	return ""
}
