package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shelfwise/catalog-notifier/internal/config"
	"github.com/shelfwise/catalog-notifier/internal/model"
	"github.com/shelfwise/catalog-notifier/internal/repository"
)

var (
	orgA = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	orgB = uuid.MustParse("22222222-2222-2222-2222-222222222222")
	orgC = uuid.MustParse("33333333-3333-3333-3333-333333333333")
)

// fakeOutbox is an in-memory OutboxRepository with injectable failures.
type fakeOutbox struct {
	mu     sync.Mutex
	nextID int64
	events []*model.OutboxEvent

	cursors map[string]int64 // org|consumer -> last event id

	failMarkDeliveredOnce map[int64]error
	failListFor           map[uuid.UUID]error
	failMigrate           error
	failPrune             error
}

var _ repository.OutboxRepository = (*fakeOutbox)(nil)

func newFakeOutbox() *fakeOutbox {
	return &fakeOutbox{
		cursors:               map[string]int64{},
		failMarkDeliveredOnce: map[int64]error{},
		failListFor:           map[uuid.UUID]error{},
	}
}

func (f *fakeOutbox) add(orgID uuid.UUID, eventType string, attempts int, createdAt time.Time, delivered bool) *model.OutboxEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	ev := &model.OutboxEvent{
		ID:         f.nextID,
		OrgID:      orgID,
		EventType:  eventType,
		EntityType: model.EntityTypeCatalogingJob,
		EntityID:   "job-" + uuid.NewString()[:8],
		EventData:  json.RawMessage(`{"operation":"update","status":"completed"}`),
		Attempts:   attempts,
		CreatedAt:  createdAt,
	}
	if delivered {
		now := time.Now().UTC()
		ev.DeliveredAt = &now
	}
	f.events = append(f.events, ev)
	return ev
}

func (f *fakeOutbox) get(id int64) *model.OutboxEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ev := range f.events {
		if ev.ID == id {
			return ev
		}
	}
	return nil
}

func (f *fakeOutbox) cursor(orgID uuid.UUID, consumerID string) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cursors[orgID.String()+"|"+consumerID]
}

func (f *fakeOutbox) Insert(_ context.Context, _ *sqlx.Tx, ev *model.OutboxEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	ev.ID = f.nextID
	ev.CreatedAt = time.Now().UTC()
	cp := *ev
	f.events = append(f.events, &cp)
	return nil
}

func (f *fakeOutbox) ListTenantsWithUndelivered(_ context.Context, maxAttempts int) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	seen := map[uuid.UUID]bool{}
	for _, ev := range f.events {
		if ev.DeliveredAt == nil && ev.Attempts < maxAttempts {
			seen[ev.OrgID] = true
		}
	}
	orgs := make([]uuid.UUID, 0, len(seen))
	for org := range seen {
		orgs = append(orgs, org)
	}
	sort.Slice(orgs, func(i, j int) bool { return orgs[i].String() < orgs[j].String() })
	return orgs, nil
}

func (f *fakeOutbox) ListUndelivered(_ context.Context, orgID uuid.UUID, maxAttempts, limit int) ([]model.OutboxEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failListFor[orgID]; err != nil {
		return nil, err
	}
	var out []model.OutboxEvent
	for _, ev := range f.events {
		if ev.OrgID == orgID && ev.DeliveredAt == nil && ev.Attempts < maxAttempts {
			out = append(out, *ev)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeOutbox) MarkDelivered(_ context.Context, ev *model.OutboxEvent, consumerID string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failMarkDeliveredOnce[ev.ID]; ok {
		delete(f.failMarkDeliveredOnce, ev.ID)
		return err
	}
	stored := f.findLocked(ev.ID)
	if stored == nil || stored.DeliveredAt != nil {
		return nil
	}
	stored.DeliveredAt = &at
	key := ev.OrgID.String() + "|" + consumerID
	if ev.ID > f.cursors[key] {
		f.cursors[key] = ev.ID
	}
	return nil
}

func (f *fakeOutbox) MarkDeliveryFailure(_ context.Context, id int64, cause string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ev := f.findLocked(id); ev != nil {
		ev.Attempts++
		ev.LastError = &cause
	}
	return nil
}

func (f *fakeOutbox) MigrateFailedToDLQ(_ context.Context, maxAttempts int, maxAge time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failMigrate != nil {
		return 0, f.failMigrate
	}
	cutoff := time.Now().UTC().Add(-maxAge)
	var kept []*model.OutboxEvent
	var moved int64
	for _, ev := range f.events {
		if ev.DeliveredAt == nil && (ev.Attempts >= maxAttempts || ev.CreatedAt.Before(cutoff)) {
			moved++
			continue
		}
		kept = append(kept, ev)
	}
	f.events = kept
	return moved, nil
}

func (f *fakeOutbox) PruneDelivered(_ context.Context, retention time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failPrune != nil {
		return 0, f.failPrune
	}
	cutoff := time.Now().UTC().Add(-retention)
	var kept []*model.OutboxEvent
	var pruned int64
	for _, ev := range f.events {
		if ev.DeliveredAt != nil && ev.CreatedAt.Before(cutoff) {
			pruned++
			continue
		}
		kept = append(kept, ev)
	}
	f.events = kept
	return pruned, nil
}

func (f *fakeOutbox) findLocked(id int64) *model.OutboxEvent {
	for _, ev := range f.events {
		if ev.ID == id {
			return ev
		}
	}
	return nil
}

// fakePublisher records publishes and can fail specific events or all of them.
type fakePublisher struct {
	mu          sync.Mutex
	published   []int64     // event ids in publish order
	visits      []uuid.UUID // org of every publish attempt, failed ones included
	failOnEvent map[int64]error
	failAll     error
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{failOnEvent: map[int64]error{}}
}

func (p *fakePublisher) Publish(_ context.Context, orgID uuid.UUID, payload []byte) error {
	var ev model.OutboxEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return err
	}
	p.mu.Lock()
	p.visits = append(p.visits, orgID)
	p.mu.Unlock()
	if p.failAll != nil {
		return p.failAll
	}
	if err := p.failOnEvent[ev.ID]; err != nil {
		return err
	}
	p.mu.Lock()
	p.published = append(p.published, ev.ID)
	p.mu.Unlock()
	return nil
}

func (p *fakePublisher) order() []int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int64(nil), p.published...)
}

func (p *fakePublisher) tenantVisits() []uuid.UUID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]uuid.UUID(nil), p.visits...)
}

type fakeFirehose struct {
	mu   sync.Mutex
	envs []model.DeliveredEvent
	err  error
}

func (h *fakeFirehose) Emit(_ context.Context, ev model.DeliveredEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err != nil {
		return h.err
	}
	h.envs = append(h.envs, ev)
	return nil
}

func (h *fakeFirehose) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.envs)
}

func newTestRelay(outbox repository.OutboxRepository, pub *fakePublisher, fh Firehose) *Relay {
	return NewRelay(outbox, pub, fh, config.RelayConfig{
		ConsumerID:  "push-relay",
		BatchSize:   100,
		MaxAttempts: 5,
	}, zap.NewNop())
}

func TestRelayDeliversInOrderAcrossTenants(t *testing.T) {
	outbox := newFakeOutbox()
	now := time.Now().UTC()
	e1 := outbox.add(orgA, model.EventJobCompleted.String(), 0, now, false)
	e2 := outbox.add(orgA, model.EventJobUpdated.String(), 0, now, false)
	e3 := outbox.add(orgB, model.EventJobFailed.String(), 0, now, false)

	pub := newFakePublisher()
	fh := &fakeFirehose{}
	relay := newTestRelay(outbox, pub, fh)

	n, err := relay.Cycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	assert.Equal(t, []int64{e1.ID, e2.ID, e3.ID}, pub.order())
	for _, ev := range []*model.OutboxEvent{e1, e2, e3} {
		assert.NotNil(t, outbox.get(ev.ID).DeliveredAt, "event %d should be delivered", ev.ID)
	}
	assert.Equal(t, e2.ID, outbox.cursor(orgA, "push-relay"))
	assert.Equal(t, e3.ID, outbox.cursor(orgB, "push-relay"))
	assert.Equal(t, 3, fh.count())
}

func TestRelayStopsTenantQueueOnPublishFailure(t *testing.T) {
	outbox := newFakeOutbox()
	now := time.Now().UTC()
	e1 := outbox.add(orgA, model.EventJobCompleted.String(), 0, now, false)
	e2 := outbox.add(orgA, model.EventJobCompleted.String(), 0, now, false)
	e3 := outbox.add(orgA, model.EventJobCompleted.String(), 0, now, false)
	e4 := outbox.add(orgB, model.EventJobCompleted.String(), 0, now, false)

	pub := newFakePublisher()
	pub.failOnEvent[e2.ID] = errors.New("broker unreachable")
	relay := newTestRelay(outbox, pub, nil)

	n, err := relay.Cycle(context.Background())
	require.NoError(t, err) // tenant failures are contained, not surfaced
	assert.Equal(t, 2, n)

	assert.NotNil(t, outbox.get(e1.ID).DeliveredAt)
	assert.Nil(t, outbox.get(e2.ID).DeliveredAt)
	assert.Equal(t, 1, outbox.get(e2.ID).Attempts)
	require.NotNil(t, outbox.get(e2.ID).LastError)
	assert.Contains(t, *outbox.get(e2.ID).LastError, "broker unreachable")

	// Later events in the same tenant never overtake the failed one.
	assert.Nil(t, outbox.get(e3.ID).DeliveredAt)
	assert.NotContains(t, pub.order(), e3.ID)

	// The other tenant is unaffected.
	assert.NotNil(t, outbox.get(e4.ID).DeliveredAt)
}

func TestRelayRedeliversAfterStateWriteFailure(t *testing.T) {
	outbox := newFakeOutbox()
	ev := outbox.add(orgA, model.EventJobCompleted.String(), 0, time.Now().UTC(), false)
	outbox.failMarkDeliveredOnce[ev.ID] = errors.New("connection reset")

	pub := newFakePublisher()
	relay := newTestRelay(outbox, pub, nil)

	n, err := relay.Cycle(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Nil(t, outbox.get(ev.ID).DeliveredAt)

	// The publish already went out; the next cycle pushes it again.
	n, err = relay.Cycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []int64{ev.ID, ev.ID}, pub.order())
	assert.NotNil(t, outbox.get(ev.ID).DeliveredAt)
}

func TestRelayFirehoseErrorsAreDroppable(t *testing.T) {
	outbox := newFakeOutbox()
	ev := outbox.add(orgA, model.EventJobCompleted.String(), 0, time.Now().UTC(), false)

	pub := newFakePublisher()
	fh := &fakeFirehose{err: errors.New("kafka down")}
	relay := newTestRelay(outbox, pub, fh)

	n, err := relay.Cycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NotNil(t, outbox.get(ev.ID).DeliveredAt)
}

func TestRelayLeavesExhaustedEventsForDLQ(t *testing.T) {
	outbox := newFakeOutbox()
	now := time.Now().UTC()
	poisoned := outbox.add(orgA, model.EventJobCompleted.String(), 5, now, false)
	fresh := outbox.add(orgA, model.EventJobCompleted.String(), 0, now, false)

	pub := newFakePublisher()
	relay := newTestRelay(outbox, pub, nil)

	n, err := relay.Cycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// The exhausted event no longer blocks the tenant's queue.
	assert.Equal(t, []int64{fresh.ID}, pub.order())
	assert.Nil(t, outbox.get(poisoned.ID).DeliveredAt)
}

func TestRelayRotatesStartingTenant(t *testing.T) {
	outbox := newFakeOutbox()
	now := time.Now().UTC()
	outbox.add(orgA, model.EventJobCompleted.String(), 0, now, false)
	outbox.add(orgB, model.EventJobCompleted.String(), 0, now, false)
	outbox.add(orgC, model.EventJobCompleted.String(), 0, now, false)

	pub := newFakePublisher()
	pub.failAll = errors.New("broker unreachable")
	relay := newTestRelay(outbox, pub, nil)

	for i := 0; i < 3; i++ {
		_, err := relay.Cycle(context.Background())
		require.NoError(t, err)
	}

	// Every cycle attempts each tenant's head event once; the head of the
	// list shifts by one tenant per cycle.
	visits := pub.tenantVisits()
	require.Len(t, visits, 9)
	assert.Equal(t, []uuid.UUID{orgA, orgB, orgC}, visits[0:3])
	assert.Equal(t, []uuid.UUID{orgB, orgC, orgA}, visits[3:6])
	assert.Equal(t, []uuid.UUID{orgC, orgA, orgB}, visits[6:9])
}

func TestRelayListFailureIsolatesTenant(t *testing.T) {
	outbox := newFakeOutbox()
	now := time.Now().UTC()
	outbox.add(orgA, model.EventJobCompleted.String(), 0, now, false)
	e2 := outbox.add(orgB, model.EventJobCompleted.String(), 0, now, false)
	outbox.failListFor[orgA] = errors.New("query timeout")

	pub := newFakePublisher()
	relay := newTestRelay(outbox, pub, nil)

	n, err := relay.Cycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []int64{e2.ID}, pub.order())
}
