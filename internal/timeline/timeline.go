// Package timeline defines the best-effort notification interface the
// orchestrator emits human-readable cycle summaries through, falling back
// to a terse notify() excerpt when the rich timeline transport is
// unavailable.
package timeline

import (
	"context"

	"github.com/rs/zerolog"
)

// Entry is one timeline emission.
type Entry struct {
	Title string
	Body  string
	Icon  string
}

// Sink is the interface the orchestrator consumes.
type Sink interface {
	Emit(ctx context.Context, e Entry) error
}

// LogSink emits timeline entries as structured log lines, the fallback used
// when no richer transport (push, webhook) is configured. It satisfies the
// design's "fall back to notify(excerpt)" requirement: on any write it
// degrades to a one-line log rather than propagating an error upward.
type LogSink struct {
	Logger zerolog.Logger
}

func (s LogSink) Emit(ctx context.Context, e Entry) error {
	s.Logger.Info().Str("icon", e.Icon).Str("title", e.Title).Msg(e.Body)
	return nil
}

// FallbackSink wraps a primary Sink and degrades to a LogSink excerpt if the
// primary emit fails, matching the design's "best-effort delivery ... fall
// back to notify(excerpt)" contract.
type FallbackSink struct {
	Primary  Sink
	Fallback LogSink
}

func (s FallbackSink) Emit(ctx context.Context, e Entry) error {
	if s.Primary != nil {
		if err := s.Primary.Emit(ctx, e); err == nil {
			return nil
		}
	}
	excerpt := e
	if len(excerpt.Body) > 140 {
		excerpt.Body = excerpt.Body[:140] + "…"
	}
	return s.Fallback.Emit(ctx, excerpt)
}
