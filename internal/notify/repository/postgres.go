package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/corvusHold/notify/internal/notify/domain"
)

// Notifier is told about feeds whose content changed after a commit.
type Notifier interface {
	FeedChanged(ctx context.Context, ref domain.FeedRef)
}

type nopNotifier struct{}

func (nopNotifier) FeedChanged(context.Context, domain.FeedRef) {}

// Postgres stores events, queue records and feeds in Postgres.
type Postgres struct {
	pool     *pgxpool.Pool
	notifier Notifier
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool, notifier: nopNotifier{}}
}

// WithNotifier sets the change notifier used after feed writes.
func (r *Postgres) WithNotifier(n Notifier) *Postgres {
	if n != nil {
		r.notifier = n
	}
	return r
}

// withinTx runs fn in a transaction, rolling back on error or panic.
func (r *Postgres) withinTx(ctx context.Context, fn func(tx pgx.Tx) error) (err error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		} else if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			err = tx.Commit(ctx)
		}
	}()
	return fn(tx)
}

func (r *Postgres) CreateEvent(ctx context.Context, rec domain.EventRecord) error {
	const sql = `
		INSERT INTO notify_events (id, client_id, condominium_id, event_type, module, priority, dedupe_key,
			audience, channels, entity_id, entity_type, metadata, title, body, status, created_at, created_by, created_by_name)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`
	aud, err := json.Marshal(rec.Audience)
	if err != nil {
		return fmt.Errorf("encode audience: %w", err)
	}
	md, err := encodeMetadata(rec.Metadata)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, sql,
		rec.ID, rec.TenantContext.ClientID, rec.TenantContext.CondominiumID, string(rec.EventType), string(rec.Module),
		string(rec.Priority), rec.DedupeKey, aud, channelStrings(rec.Channels), rec.EntityID, rec.EntityType, md,
		rec.Title, rec.Body, string(rec.Status), rec.CreatedAt, rec.CreatedBy, rec.CreatedByName)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (r *Postgres) CreateQueue(ctx context.Context, rec domain.QueueRecord) error {
	const sql = `
		INSERT INTO notify_queue (id, source_event_id, client_id, condominium_id, event_type, module, priority,
			channels, status, dedupe_key, recipients, recipients_count, created_at, dispatched_at, dispatched_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err := r.pool.Exec(ctx, sql,
		rec.ID, rec.SourceEventID, rec.TenantContext.ClientID, rec.TenantContext.CondominiumID, string(rec.EventType),
		string(rec.Module), string(rec.Priority), channelStrings(rec.Channels), rec.Status, rec.DedupeKey,
		rec.Recipients, rec.RecipientsCount, rec.CreatedAt, rec.DispatchedAt, rec.DispatchedBy)
	if err != nil {
		return fmt.Errorf("insert queue record: %w", err)
	}
	return nil
}

// WriteBatch inserts all notifications in one transaction.
func (r *Postgres) WriteBatch(ctx context.Context, items []domain.RecipientNotification) error {
	if len(items) > domain.MaxBatchOps {
		return domain.ErrBatchTooLarge
	}
	if len(items) == 0 {
		return nil
	}
	const sql = `
		INSERT INTO notify_notifications (id, client_id, condominium_id, recipient_id, title, body, module, event_type,
			priority, read, read_at, entity_id, entity_type, metadata, source_event_id, source_queue_id, created_at, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`
	b := &pgx.Batch{}
	for _, n := range items {
		md, err := encodeMetadata(n.Metadata)
		if err != nil {
			return err
		}
		b.Queue(sql, n.ID, n.TenantContext.ClientID, n.TenantContext.CondominiumID, n.RecipientID, n.Title, n.Body,
			string(n.Module), string(n.EventType), string(n.Priority), n.Read, n.ReadAt, n.EntityID, n.EntityType, md,
			n.SourceEventID, n.SourceQueueID, n.CreatedAt, n.CreatedBy)
	}
	err := r.withinTx(ctx, func(tx pgx.Tx) error {
		if err := tx.SendBatch(ctx, b).Close(); err != nil {
			return fmt.Errorf("insert notifications: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	seen := map[string]struct{}{}
	for _, n := range items {
		ref := n.Ref()
		if _, ok := seen[ref.Path()]; ok {
			continue
		}
		seen[ref.Path()] = struct{}{}
		r.notifier.FeedChanged(ctx, ref)
	}
	return nil
}

func (r *Postgres) ListRecent(ctx context.Context, ref domain.FeedRef, limit int) ([]domain.RecipientNotification, error) {
	const sql = `
		SELECT id::text, client_id, condominium_id, recipient_id, title, body, module, event_type, priority,
			read, read_at, entity_id, entity_type, metadata, source_event_id::text, source_queue_id::text,
			created_at, created_by
		FROM notify_notifications
		WHERE client_id = $1 AND condominium_id = $2 AND recipient_id = $3
		ORDER BY created_at DESC, id DESC
		LIMIT $4
	`
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, sql, ref.Tenant.ClientID, ref.Tenant.CondominiumID, ref.RecipientID, limit)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	out := make([]domain.RecipientNotification, 0, limit)
	for rows.Next() {
		var (
			n         domain.RecipientNotification
			module    string
			eventType string
			priority  string
			md        []byte
		)
		if err := rows.Scan(&n.ID, &n.TenantContext.ClientID, &n.TenantContext.CondominiumID, &n.RecipientID,
			&n.Title, &n.Body, &module, &eventType, &priority, &n.Read, &n.ReadAt, &n.EntityID, &n.EntityType,
			&md, &n.SourceEventID, &n.SourceQueueID, &n.CreatedAt, &n.CreatedBy); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n.Module = domain.Module(module)
		n.EventType = domain.EventType(eventType)
		n.Priority = domain.Priority(priority)
		if len(md) > 0 {
			if err := json.Unmarshal(md, &n.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata: %w", err)
			}
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return out, nil
}

func (r *Postgres) CountUnread(ctx context.Context, ref domain.FeedRef) (int, error) {
	const sql = `
		SELECT COUNT(*) FROM notify_notifications
		WHERE client_id = $1 AND condominium_id = $2 AND recipient_id = $3 AND NOT read
	`
	var n int
	if err := r.pool.QueryRow(ctx, sql, ref.Tenant.ClientID, ref.Tenant.CondominiumID, ref.RecipientID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return n, nil
}

// MarkRead flips the unread subset of ids in one statement; already-read rows
// keep their original read_at.
func (r *Postgres) MarkRead(ctx context.Context, ref domain.FeedRef, ids []string, at time.Time) (int, error) {
	if len(ids) > domain.MaxBatchOps {
		return 0, domain.ErrBatchTooLarge
	}
	if len(ids) == 0 {
		return 0, nil
	}
	const sql = `
		UPDATE notify_notifications
		SET read = TRUE, read_at = $5
		WHERE client_id = $1 AND condominium_id = $2 AND recipient_id = $3
			AND id::text = ANY($4) AND NOT read
	`
	tag, err := r.pool.Exec(ctx, sql, ref.Tenant.ClientID, ref.Tenant.CondominiumID, ref.RecipientID, ids, at)
	if err != nil {
		return 0, fmt.Errorf("mark read: %w", err)
	}
	changed := int(tag.RowsAffected())
	if changed > 0 {
		r.notifier.FeedChanged(ctx, ref)
	}
	return changed, nil
}

func channelStrings(chs []domain.Channel) []string {
	out := make([]string, len(chs))
	for i, c := range chs {
		out[i] = string(c)
	}
	return out
}

func encodeMetadata(md map[string]any) ([]byte, error) {
	if md == nil {
		return []byte("{}"), nil
	}
	b, err := json.Marshal(md)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	return b, nil
}
