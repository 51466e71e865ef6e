package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/corvusHold/notify/internal/reporting/domain"
)

// Ledger is a Reporter that appends failures to notify_dispatch_failures so
// partial fan-outs can be reconciled later.
type Ledger struct{ pool *pgxpool.Pool }

func NewLedger(pool *pgxpool.Pool) *Ledger { return &Ledger{pool: pool} }

func (l *Ledger) Report(ctx context.Context, f domain.Failure) error {
	const sql = `
		INSERT INTO notify_dispatch_failures (id, kind, stage, client_id, condominium_id, event_type,
			source_event_id, source_queue_id, chunk_index, recipients, error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	recipients := f.Recipients
	if recipients == nil {
		recipients = []string{}
	}
	msg := ""
	if f.Err != nil {
		msg = f.Err.Error()
	}
	_, err := l.pool.Exec(ctx, sql, uuid.NewString(), string(f.Kind), string(f.Stage), f.ClientID, f.CondominiumID, f.EventType,
		f.SourceEventID, f.SourceQueueID, f.ChunkIndex, recipients, msg, f.Time)
	if err != nil {
		return fmt.Errorf("insert dispatch failure: %w", err)
	}
	return nil
}
