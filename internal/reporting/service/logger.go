package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/corvusHold/notify/internal/reporting/domain"
)

// Logger is a Reporter that writes failures to a zerolog logger.
type Logger struct{ log zerolog.Logger }

func NewLogger(l zerolog.Logger) *Logger { return &Logger{log: l} }

func (l *Logger) Report(ctx context.Context, f domain.Failure) error {
	ev := l.log.Error().
		Err(f.Err).
		Str("kind", string(f.Kind)).
		Str("stage", string(f.Stage)).
		Str("client_id", f.ClientID).
		Str("condominium_id", f.CondominiumID).
		Str("event_type", f.EventType).
		Str("source_event_id", f.SourceEventID).
		Str("source_queue_id", f.SourceQueueID).
		Time("ts", f.Time)
	if f.ChunkIndex >= 0 {
		ev = ev.Int("chunk_index", f.ChunkIndex).Int("chunk_size", len(f.Recipients))
	}
	ev.Msg("dispatch failure")
	return nil
}
