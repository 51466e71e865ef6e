package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/corvusHold/notify/internal/config"
	idomain "github.com/corvusHold/notify/internal/identity/domain"
	metrics "github.com/corvusHold/notify/internal/metrics"
	"github.com/corvusHold/notify/internal/notify/audience"
	"github.com/corvusHold/notify/internal/notify/dedupe"
	"github.com/corvusHold/notify/internal/notify/domain"
	rdomain "github.com/corvusHold/notify/internal/reporting/domain"
)

// Dispatcher turns domain events into persisted events, queue records and
// per-recipient feed documents.
type Dispatcher struct {
	store    domain.Store
	resolver *audience.Resolver
	guard    dedupe.Guard
	identity idomain.Provider
	handoff  domain.Handoff
	reporter rdomain.Reporter
	server   bool
	chunk    int
	log      zerolog.Logger
	now      func() time.Time
	newID    func() string
	wg       sync.WaitGroup
}

func New(store domain.Store, dir domain.Directory, guard dedupe.Guard, ids idomain.Provider, cfg config.Config) *Dispatcher {
	chunk := cfg.FanoutChunk
	if chunk <= 0 || chunk > domain.MaxBatchOps {
		chunk = domain.DefaultChunkSize
	}
	return &Dispatcher{
		store:    store,
		resolver: audience.New(dir),
		guard:    guard,
		identity: ids,
		server:   cfg.ServerDispatch(),
		chunk:    chunk,
		log:      zerolog.Nop(),
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// SetLogger allows injection of a structured logger.
func (d *Dispatcher) SetLogger(l zerolog.Logger) { d.log = l }

// SetReporter sets the failure sink.
func (d *Dispatcher) SetReporter(r rdomain.Reporter) { d.reporter = r }

// SetHandoff sets the consumer notified of pending_dispatch records in server mode.
func (d *Dispatcher) SetHandoff(h domain.Handoff) { d.handoff = h }

// SetClock overrides the time source.
func (d *Dispatcher) SetClock(now func() time.Time) { d.now = now }

// Emit runs Dispatch in the background and never reports back to the caller.
// The caller's cancellation does not abort the emission; its values (session)
// are kept.
func (d *Dispatcher) Emit(ctx context.Context, ev domain.DomainEvent) {
	ctx = context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if p := recover(); p != nil {
				d.log.Error().Interface("panic", p).Str("event_type", string(ev.EventType)).Msg("emit panicked")
			}
		}()
		if _, err := d.Dispatch(ctx, ev); err != nil {
			d.log.Debug().Err(err).Str("event_type", string(ev.EventType)).Msg("emit finished with error")
		}
	}()
}

// Wait blocks until every in-flight emission finished.
func (d *Dispatcher) Wait() { d.wg.Wait() }

// Drain is Wait bounded by ctx.
func (d *Dispatcher) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dispatch runs the pipeline synchronously. Missing identity and duplicate
// suppression are outcomes, not errors.
func (d *Dispatcher) Dispatch(ctx context.Context, ev domain.DomainEvent) (domain.Outcome, error) {
	et := string(ev.EventType)

	id, err := d.identity.Await(ctx)
	if err != nil {
		d.log.Debug().Err(err).Str("event_type", et).Msg("no identity; emission skipped")
		metrics.IncEmitOutcome(et, string(domain.OutcomeSkippedNoIdentity))
		return domain.Outcome{Status: domain.OutcomeSkippedNoIdentity}, nil
	}
	// The session scope wins over whatever the producer put on the event.
	tenant := id.Tenant

	entry, ok := domain.Lookup(ev.EventType)
	if !ok {
		err := fmt.Errorf("%w: %q", domain.ErrUnknownEventType, et)
		d.report(ctx, rdomain.Failure{Kind: rdomain.KindInvalidEvent, Stage: rdomain.StageCatalog,
			ClientID: tenant.ClientID, CondominiumID: tenant.CondominiumID, EventType: et, ChunkIndex: -1, Err: err})
		metrics.IncEmitOutcome(et, string(domain.OutcomeFailed))
		return domain.Outcome{Status: domain.OutcomeFailed}, err
	}

	if key := strings.TrimSpace(ev.DedupeKey); key != "" && d.guard != nil {
		if d.guard.ShouldSkip(ctx, tenant.Key()+":"+key) {
			d.log.Debug().Str("event_type", et).Str("dedupe_key", key).Msg("duplicate suppressed")
			metrics.IncEmitOutcome(et, string(domain.OutcomeSkippedDuplicate))
			return domain.Outcome{Status: domain.OutcomeSkippedDuplicate}, nil
		}
	}

	rec, aud := d.buildEvent(ev, entry, id)
	failure := rdomain.Failure{ClientID: tenant.ClientID, CondominiumID: tenant.CondominiumID, EventType: et, ChunkIndex: -1}

	if err := d.store.CreateEvent(ctx, rec); err != nil {
		failure.Kind, failure.Stage, failure.Err = rdomain.KindStorageWrite, rdomain.StagePersistEvent, err
		d.report(ctx, failure)
		metrics.IncEmitOutcome(et, string(domain.OutcomeFailed))
		return domain.Outcome{Status: domain.OutcomeFailed}, fmt.Errorf("persist event: %w", err)
	}
	out := domain.Outcome{EventID: rec.ID}
	failure.SourceEventID = rec.ID

	if d.server {
		if d.handoff != nil {
			if err := d.handoff.Publish(ctx, rec); err != nil {
				failure.Kind, failure.Stage, failure.Err = rdomain.KindHandoff, rdomain.StageHandoff, err
				d.report(ctx, failure)
			}
		}
		out.Status = domain.OutcomeDeferred
		metrics.IncEmitOutcome(et, string(out.Status))
		return out, nil
	}

	recipients, err := d.resolver.Resolve(ctx, tenant, id.UserID, aud)
	if err != nil {
		failure.Kind, failure.Stage, failure.Err = rdomain.KindDirectoryQuery, rdomain.StageResolve, err
		d.report(ctx, failure)
		out.Status = domain.OutcomeFailed
		metrics.IncEmitOutcome(et, string(out.Status))
		return out, err
	}

	now := d.now()
	q := domain.QueueRecord{
		ID:              d.newID(),
		SourceEventID:   rec.ID,
		EventType:       rec.EventType,
		Module:          rec.Module,
		Priority:        rec.Priority,
		Channels:        rec.Channels,
		Status:          domain.QueueStatusDispatched,
		DedupeKey:       rec.DedupeKey,
		Recipients:      recipients,
		RecipientsCount: len(recipients),
		CreatedAt:       now,
		DispatchedAt:    now,
		DispatchedBy:    id.UserID,
		TenantContext:   tenant,
	}
	if err := d.store.CreateQueue(ctx, q); err != nil {
		failure.Kind, failure.Stage, failure.Err = rdomain.KindStorageWrite, rdomain.StagePersistQueue, err
		d.report(ctx, failure)
		out.Status = domain.OutcomeFailed
		metrics.IncEmitOutcome(et, string(out.Status))
		return out, fmt.Errorf("persist queue record: %w", err)
	}
	out.QueueID = q.ID
	out.Recipients = len(recipients)
	out.Status = domain.OutcomeDispatched
	metrics.ObserveRecipients(len(recipients))

	if !domain.HasChannel(rec.Channels, domain.ChannelInApp) {
		metrics.IncEmitOutcome(et, string(out.Status))
		return out, nil
	}

	failure.SourceQueueID = q.ID
	for i, chunk := range Chunk(recipients, d.chunk) {
		batch := make([]domain.RecipientNotification, len(chunk))
		for j, uid := range chunk {
			batch[j] = d.buildNotification(rec, q, uid, now)
		}
		if err := d.store.WriteBatch(ctx, batch); err != nil {
			f := failure
			f.Kind, f.Stage, f.ChunkIndex, f.Recipients, f.Err = rdomain.KindPartialFanout, rdomain.StageFanout, i, chunk, err
			d.report(ctx, f)
			out.ChunksFailed++
			continue
		}
		out.ChunksCommitted++
	}
	metrics.AddFanoutChunks(out.ChunksCommitted, out.ChunksFailed)
	metrics.IncEmitOutcome(et, string(out.Status))

	if out.ChunksFailed > 0 {
		return out, fmt.Errorf("%w: %d of %d chunks failed for queue %s", domain.ErrPartialFanout,
			out.ChunksFailed, out.ChunksFailed+out.ChunksCommitted, q.ID)
	}
	return out, nil
}

func (d *Dispatcher) buildEvent(ev domain.DomainEvent, entry domain.CatalogEntry, id idomain.Identity) (domain.EventRecord, domain.Audience) {
	aud := ev.Audience
	if aud == nil {
		aud = entry.DefaultAudience
	}
	channels := ev.Channels
	if len(channels) == 0 {
		channels = domain.DefaultChannels()
	}
	module := ev.Module
	if module == "" {
		module = entry.Module
	}
	priority := ev.Priority
	if !priority.Valid() {
		priority = entry.DefaultPriority
	}
	title := strings.TrimSpace(ev.Title)
	if title == "" {
		title = entry.Description
	}
	status := domain.StatusEmitted
	if d.server {
		status = domain.StatusPendingDispatch
	}
	rec := domain.EventRecord{
		ID:            d.newID(),
		EventType:     ev.EventType,
		Module:        module,
		Priority:      priority,
		DedupeKey:     strings.TrimSpace(ev.DedupeKey),
		Audience:      domain.SpecOf(aud),
		Channels:      append([]domain.Channel(nil), channels...),
		EntityID:      ev.EntityID,
		EntityType:    ev.EntityType,
		Metadata:      copyMetadata(ev.Metadata),
		Title:         title,
		Body:          ev.Body,
		Status:        status,
		CreatedAt:     d.now(),
		CreatedBy:     id.UserID,
		CreatedByName: id.DisplayName,
		TenantContext: id.Tenant,
	}
	return rec, aud
}

func (d *Dispatcher) buildNotification(rec domain.EventRecord, q domain.QueueRecord, recipient string, at time.Time) domain.RecipientNotification {
	return domain.RecipientNotification{
		ID:            d.newID(),
		RecipientID:   recipient,
		Title:         rec.Title,
		Body:          rec.Body,
		Module:        rec.Module,
		EventType:     rec.EventType,
		Priority:      rec.Priority,
		EntityID:      rec.EntityID,
		EntityType:    rec.EntityType,
		Metadata:      copyMetadata(rec.Metadata),
		SourceEventID: rec.ID,
		SourceQueueID: q.ID,
		CreatedAt:     at,
		CreatedBy:     rec.CreatedBy,
		TenantContext: rec.TenantContext,
	}
}

func (d *Dispatcher) report(ctx context.Context, f rdomain.Failure) {
	f.Time = d.now()
	metrics.IncFailure(string(f.Kind))
	if d.reporter == nil {
		d.log.Error().Err(f.Err).Str("kind", string(f.Kind)).Str("stage", string(f.Stage)).Msg("dispatch failure")
		return
	}
	if err := d.reporter.Report(ctx, f); err != nil {
		d.log.Warn().Err(err).Str("kind", string(f.Kind)).Msg("failure report not recorded")
	}
}

// Chunk splits ids into consecutive slices of at most size elements, giving
// ceil(len(ids)/size) chunks. A size outside (0, MaxBatchOps] means MaxBatchOps.
func Chunk(ids []string, size int) [][]string {
	if size <= 0 || size > domain.MaxBatchOps {
		size = domain.MaxBatchOps
	}
	if len(ids) == 0 {
		return nil
	}
	out := make([][]string, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		out = append(out, ids[start:end])
	}
	return out
}

func copyMetadata(md map[string]any) map[string]any {
	if md == nil {
		return nil
	}
	out := make(map[string]any, len(md))
	for k, v := range md {
		out[k] = v
	}
	return out
}
