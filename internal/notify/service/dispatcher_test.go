package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvusHold/notify/internal/config"
	idomain "github.com/corvusHold/notify/internal/identity/domain"
	isvc "github.com/corvusHold/notify/internal/identity/service"
	"github.com/corvusHold/notify/internal/notify/dedupe"
	"github.com/corvusHold/notify/internal/notify/domain"
	"github.com/corvusHold/notify/internal/notify/repository"
	rdomain "github.com/corvusHold/notify/internal/reporting/domain"
)

var (
	tenant = domain.TenantContext{ClientID: "c1", CondominiumID: "d1"}
	actor  = idomain.Identity{UserID: "actor", DisplayName: "Ana", Role: idomain.RoleAdmin, Tenant: tenant}
)

type fakeDirectory struct {
	byRole map[string][]string
	err    error
}

func (f *fakeDirectory) ListIDsByRoles(_ context.Context, _ domain.TenantContext, roles []string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []string
	for _, r := range roles {
		out = append(out, f.byRole[r]...)
	}
	return out, nil
}

type recordingReporter struct {
	mu  sync.Mutex
	got []rdomain.Failure
}

func (r *recordingReporter) Report(_ context.Context, f rdomain.Failure) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, f)
	return nil
}

// flakyStore fails WriteBatch for the listed call numbers (0-based).
type flakyStore struct {
	*repository.Memory
	mu     sync.Mutex
	calls  int
	failOn map[int]bool
	sizes  []int
}

func (s *flakyStore) WriteBatch(ctx context.Context, items []domain.RecipientNotification) error {
	s.mu.Lock()
	n := s.calls
	s.calls++
	s.sizes = append(s.sizes, len(items))
	s.mu.Unlock()
	if s.failOn[n] {
		return errors.New("batch commit failed")
	}
	return s.Memory.WriteBatch(ctx, items)
}

type recordingHandoff struct{ got []domain.EventRecord }

func (h *recordingHandoff) Publish(_ context.Context, rec domain.EventRecord) error {
	h.got = append(h.got, rec)
	return nil
}

type fixture struct {
	d        *Dispatcher
	store    *flakyStore
	dir      *fakeDirectory
	reporter *recordingReporter
	ctx      context.Context
}

func newFixture(t *testing.T, cfg config.Config) *fixture {
	t.Helper()
	if cfg.DispatchMode == "" {
		cfg.DispatchMode = config.DispatchClient
	}
	if cfg.FanoutChunk == 0 {
		cfg.FanoutChunk = 400
	}
	store := &flakyStore{Memory: repository.NewMemory(), failOn: map[int]bool{}}
	dir := &fakeDirectory{byRole: map[string][]string{
		idomain.RoleAdmin:          {"admin-1", "admin-2"},
		idomain.RoleAdminAssistant: {"assistant-1"},
	}}
	rep := &recordingReporter{}
	d := New(store, dir, dedupe.NewMemory(dedupe.DefaultWindow), isvc.NewContextProvider(time.Second), cfg)
	d.SetReporter(rep)
	ctx := isvc.WithSession(context.Background(), isvc.Established(actor))
	return &fixture{d: d, store: store, dir: dir, reporter: rep, ctx: ctx}
}

func invoiceEvent() domain.DomainEvent {
	return domain.DomainEvent{
		EventType:  domain.EventFinanceInvoicePendingPayment,
		DedupeKey:  "invoice-42",
		EntityID:   "42",
		EntityType: "invoice",
		Title:      "Invoice 42 pending payment",
		Body:       "Invoice 42 is awaiting payment",
		Metadata:   map[string]any{"amount": 1200},
	}
}

func TestDispatch_InvoiceScenario(t *testing.T) {
	f := newFixture(t, config.Config{})

	out, err := f.d.Dispatch(f.ctx, invoiceEvent())
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeDispatched, out.Status)
	assert.Equal(t, 3, out.Recipients)
	assert.Equal(t, 1, out.ChunksCommitted)

	events := f.store.Events()
	require.Len(t, events, 1)
	ev := events[0]
	assert.Equal(t, domain.StatusEmitted, ev.Status)
	assert.Equal(t, domain.PriorityHigh, ev.Priority)
	assert.Equal(t, domain.ModuleFinance, ev.Module)
	assert.Equal(t, domain.ScopeAdminsAndAssistants, ev.Audience.Scope)
	assert.Equal(t, []domain.Channel{domain.ChannelInApp}, ev.Channels)
	assert.Equal(t, "actor", ev.CreatedBy)
	assert.Equal(t, "Ana", ev.CreatedByName)

	queues := f.store.Queues()
	require.Len(t, queues, 1)
	q := queues[0]
	assert.Equal(t, ev.ID, q.SourceEventID)
	assert.ElementsMatch(t, []string{"admin-1", "admin-2", "assistant-1"}, q.Recipients)
	assert.Equal(t, len(q.Recipients), q.RecipientsCount)
	assert.Equal(t, domain.QueueStatusDispatched, q.Status)

	for _, uid := range q.Recipients {
		ref := domain.FeedRef{Tenant: tenant, RecipientID: uid}
		items, err := f.store.ListRecent(context.Background(), ref, 10)
		require.NoError(t, err)
		require.Len(t, items, 1, uid)
		n := items[0]
		assert.False(t, n.Read)
		assert.Nil(t, n.ReadAt)
		assert.Equal(t, ev.ID, n.SourceEventID)
		assert.Equal(t, q.ID, n.SourceQueueID)
		assert.Equal(t, "Invoice 42 pending payment", n.Title)
		assert.Equal(t, 1200, n.Metadata["amount"])
	}
}

func TestDispatch_DuplicateWithinWindowPersistsOnce(t *testing.T) {
	f := newFixture(t, config.Config{})

	out1, err := f.d.Dispatch(f.ctx, invoiceEvent())
	require.NoError(t, err)
	out2, err := f.d.Dispatch(f.ctx, invoiceEvent())
	require.NoError(t, err)

	assert.Equal(t, domain.OutcomeDispatched, out1.Status)
	assert.Equal(t, domain.OutcomeSkippedDuplicate, out2.Status)
	assert.Len(t, f.store.Events(), 1)
}

func TestDispatch_DedupeScopedByTenant(t *testing.T) {
	f := newFixture(t, config.Config{})
	_, err := f.d.Dispatch(f.ctx, invoiceEvent())
	require.NoError(t, err)

	other := actor
	other.Tenant = domain.TenantContext{ClientID: "c1", CondominiumID: "d2"}
	ctx := isvc.WithSession(context.Background(), isvc.Established(other))
	out, err := f.d.Dispatch(ctx, invoiceEvent())
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeDispatched, out.Status)
	assert.Len(t, f.store.Events(), 2)
}

func TestDispatch_EmptyDedupeKeyBypassesGuard(t *testing.T) {
	f := newFixture(t, config.Config{})
	ev := invoiceEvent()
	ev.DedupeKey = ""

	for i := 0; i < 3; i++ {
		out, err := f.d.Dispatch(f.ctx, ev)
		require.NoError(t, err)
		assert.Equal(t, domain.OutcomeDispatched, out.Status)
	}
	assert.Len(t, f.store.Events(), 3)
}

func TestDispatch_NoIdentityAbortsSilently(t *testing.T) {
	f := newFixture(t, config.Config{})

	out, err := f.d.Dispatch(context.Background(), invoiceEvent())
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeSkippedNoIdentity, out.Status)

	noTenant := actor
	noTenant.Tenant = domain.TenantContext{ClientID: "c1"}
	out, err = f.d.Dispatch(isvc.WithSession(context.Background(), isvc.Established(noTenant)), invoiceEvent())
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeSkippedNoIdentity, out.Status)

	assert.Empty(t, f.store.Events())
	assert.Empty(t, f.reporter.got, "missing identity is not a failure")
}

func TestDispatch_SessionTenantWins(t *testing.T) {
	f := newFixture(t, config.Config{})
	ev := invoiceEvent()
	ev.TenantContext = domain.TenantContext{ClientID: "spoofed", CondominiumID: "x"}

	_, err := f.d.Dispatch(f.ctx, ev)
	require.NoError(t, err)
	assert.Equal(t, tenant, f.store.Events()[0].TenantContext)
}

func TestDispatch_FallbackToActor(t *testing.T) {
	f := newFixture(t, config.Config{})
	ev := domain.DomainEvent{EventType: domain.EventProjectsTaskAssigned, Title: "Task assigned"}

	out, err := f.d.Dispatch(f.ctx, ev)
	require.NoError(t, err)
	assert.Equal(t, 1, out.Recipients)
	assert.Equal(t, []string{"actor"}, f.store.Queues()[0].Recipients)

	f.dir.byRole = map[string][]string{}
	ev = domain.DomainEvent{EventType: domain.EventInventoryOutOfStock, Audience: domain.Admins{}}
	_, err = f.d.Dispatch(f.ctx, ev)
	require.NoError(t, err)
	items, _ := f.store.ListRecent(context.Background(), domain.FeedRef{Tenant: tenant, RecipientID: "actor"}, 10)
	assert.Len(t, items, 2)
}

func TestDispatch_ChunkInvariant(t *testing.T) {
	f := newFixture(t, config.Config{FanoutChunk: 400})
	ids := make([]string, 1001)
	for i := range ids {
		ids[i] = fmt.Sprintf("u%04d", i)
	}
	ev := domain.DomainEvent{EventType: domain.EventStaffShiftUnassigned, Audience: domain.SpecificUsers{UserIDs: ids}}

	out, err := f.d.Dispatch(f.ctx, ev)
	require.NoError(t, err)
	assert.Equal(t, 3, out.ChunksCommitted)
	assert.Equal(t, []int{400, 400, 201}, f.store.sizes)
	for _, size := range f.store.sizes {
		assert.LessOrEqual(t, size, domain.MaxBatchOps)
	}
}

func TestDispatch_PartialFanoutKeepsCommittedChunks(t *testing.T) {
	f := newFixture(t, config.Config{FanoutChunk: 2})
	f.store.failOn[1] = true
	ids := []string{"u1", "u2", "u3", "u4", "u5"}
	ev := domain.DomainEvent{EventType: domain.EventStaffAbsenceReported, Audience: domain.SpecificUsers{UserIDs: ids}}

	out, err := f.d.Dispatch(f.ctx, ev)
	require.ErrorIs(t, err, domain.ErrPartialFanout)
	assert.Equal(t, domain.OutcomeDispatched, out.Status)
	assert.Equal(t, 2, out.ChunksCommitted)
	assert.Equal(t, 1, out.ChunksFailed)

	delivered := 0
	for _, uid := range ids {
		items, _ := f.store.ListRecent(context.Background(), domain.FeedRef{Tenant: tenant, RecipientID: uid}, 10)
		delivered += len(items)
	}
	assert.Equal(t, 3, delivered)

	require.Len(t, f.reporter.got, 1)
	fail := f.reporter.got[0]
	assert.Equal(t, rdomain.KindPartialFanout, fail.Kind)
	assert.Equal(t, 1, fail.ChunkIndex)
	assert.Equal(t, []string{"u3", "u4"}, fail.Recipients)
	assert.Equal(t, out.QueueID, fail.SourceQueueID)
	assert.Equal(t, out.EventID, fail.SourceEventID)
}

func TestDispatch_ServerModeDefers(t *testing.T) {
	f := newFixture(t, config.Config{DispatchMode: config.DispatchServer})
	h := &recordingHandoff{}
	f.d.SetHandoff(h)

	out, err := f.d.Dispatch(f.ctx, invoiceEvent())
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeDeferred, out.Status)

	events := f.store.Events()
	require.Len(t, events, 1)
	assert.Equal(t, domain.StatusPendingDispatch, events[0].Status)
	assert.Empty(t, f.store.Queues())
	require.Len(t, h.got, 1)
	assert.Equal(t, events[0].ID, h.got[0].ID)
}

func TestDispatch_NonInAppChannelsSkipFanout(t *testing.T) {
	f := newFixture(t, config.Config{})
	ev := invoiceEvent()
	ev.Channels = []domain.Channel{domain.ChannelEmail}

	out, err := f.d.Dispatch(f.ctx, ev)
	require.NoError(t, err)
	assert.Equal(t, 3, out.Recipients)
	assert.Zero(t, out.ChunksCommitted)
	assert.Len(t, f.store.Queues(), 1)
	assert.Empty(t, f.store.sizes)
}

func TestDispatch_UnknownEventType(t *testing.T) {
	f := newFixture(t, config.Config{})
	_, err := f.d.Dispatch(f.ctx, domain.DomainEvent{EventType: "inventory.teleported"})
	assert.ErrorIs(t, err, domain.ErrUnknownEventType)
	assert.Empty(t, f.store.Events())
}

func TestDispatch_DirectoryFailureReported(t *testing.T) {
	f := newFixture(t, config.Config{})
	f.dir.err = errors.New("directory down")

	out, err := f.d.Dispatch(f.ctx, invoiceEvent())
	require.Error(t, err)
	assert.Equal(t, domain.OutcomeFailed, out.Status)
	assert.Len(t, f.store.Events(), 1, "event record stays for reconciliation")
	assert.Empty(t, f.store.Queues())
	require.Len(t, f.reporter.got, 1)
	assert.Equal(t, rdomain.KindDirectoryQuery, f.reporter.got[0].Kind)
}

func TestEmit_SurvivesCallerCancellation(t *testing.T) {
	f := newFixture(t, config.Config{})
	ctx, cancel := context.WithCancel(f.ctx)
	f.d.Emit(ctx, invoiceEvent())
	cancel()
	f.d.Wait()

	assert.Len(t, f.store.Events(), 1)
}

func TestEmit_ConcurrentDuplicatesPersistOnce(t *testing.T) {
	f := newFixture(t, config.Config{})
	for i := 0; i < 20; i++ {
		f.d.Emit(f.ctx, invoiceEvent())
	}
	require.NoError(t, f.d.Drain(context.Background()))
	assert.Len(t, f.store.Events(), 1)
}

func TestChunk(t *testing.T) {
	ids := func(n int) []string {
		out := make([]string, n)
		for i := range out {
			out[i] = fmt.Sprint(i)
		}
		return out
	}
	cases := []struct {
		n, size, want int
	}{
		{0, 400, 0},
		{1, 400, 1},
		{400, 400, 1},
		{401, 400, 2},
		{1200, 400, 3},
		{1001, 0, 3},
		{1001, 10000, 3},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("%d_by_%d", tc.n, tc.size), func(t *testing.T) {
			chunks := Chunk(ids(tc.n), tc.size)
			assert.Len(t, chunks, tc.want)
			total := 0
			for _, c := range chunks {
				total += len(c)
			}
			assert.Equal(t, tc.n, total)
		})
	}
}
