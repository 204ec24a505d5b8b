package service_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/medflow/pharmacy-stock/internal/inventory/domain"
	"github.com/medflow/pharmacy-stock/internal/inventory/memstore"
	"github.com/medflow/pharmacy-stock/internal/inventory/service"
	"github.com/medflow/pharmacy-stock/pkg/logger"
	"github.com/medflow/pharmacy-stock/pkg/testutil"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{now: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type activityLog struct {
	mu      sync.Mutex
	entries []domain.Activity
	err     error
}

func (l *activityLog) RecordActivity(_ context.Context, a domain.Activity) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, a)
	return l.err
}

func (l *activityLog) All() []domain.Activity {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]domain.Activity(nil), l.entries...)
}

type eventLog struct {
	mu          sync.Mutex
	moved       []*domain.StockMovement
	transitions []*domain.AlertTransition
	err         error
}

func (l *eventLog) PublishStockMoved(_ context.Context, m *domain.StockMovement) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.moved = append(l.moved, m)
	return l.err
}

func (l *eventLog) PublishAlertTransition(_ context.Context, t *domain.AlertTransition) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.transitions = append(l.transitions, t)
	return l.err
}

// staleItems fails the first n conditional updates with a version conflict.
type staleItems struct {
	service.ItemStore
	remaining atomic.Int32
	calls     atomic.Int32
}

func (s *staleItems) UpdateStock(ctx context.Context, item *domain.InventoryItem, expected int64) error {
	s.calls.Add(1)
	if s.remaining.Add(-1) >= 0 {
		return domain.ErrStaleVersion
	}
	return s.ItemStore.UpdateStock(ctx, item, expected)
}

// laggingItems answers plain reads from an old snapshot, the way a read
// issued before a concurrent commit would. Locking reads see current state.
type laggingItems struct {
	service.ItemStore
	snapshot map[string]*domain.InventoryItem
}

func (l *laggingItems) GetByID(ctx context.Context, id string) (*domain.InventoryItem, error) {
	if item, ok := l.snapshot[id]; ok {
		return item.Clone(), nil
	}
	return l.ItemStore.GetByID(ctx, id)
}

// brokenAlerts fails every upsert.
type brokenAlerts struct {
	service.AlertStore
	err error
}

func (b *brokenAlerts) UpsertActive(context.Context, *domain.AlertRecord) (bool, error) {
	return false, b.err
}

type harness struct {
	store    *memstore.Store
	stores   service.Stores
	clock    *fakeClock
	activity *activityLog
	events   *eventLog
	ledger   *service.Ledger
	monitor  *service.Monitor
	svc      *service.StockService
	fixtures *testutil.FixtureFactory
}

type harnessOption func(*harness, *service.LedgerConfig)

func withItems(wrap func(service.ItemStore) service.ItemStore) harnessOption {
	return func(h *harness, _ *service.LedgerConfig) { h.stores.Items = wrap(h.stores.Items) }
}

func withAlerts(wrap func(service.AlertStore) service.AlertStore) harnessOption {
	return func(h *harness, _ *service.LedgerConfig) { h.stores.Alerts = wrap(h.stores.Alerts) }
}

func withLedgerConfig(fn func(*service.LedgerConfig)) harnessOption {
	return func(_ *harness, cfg *service.LedgerConfig) { fn(cfg) }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()

	store := memstore.New(memstore.DefaultUnits()...)
	h := &harness{
		store: store,
		stores: service.Stores{
			Items:     store.Items(),
			Movements: store.Movements(),
			Alerts:    store.Alerts(),
			Units:     store.Units(),
			Tx:        store,
		},
		clock:    newFakeClock(time.Date(2024, time.June, 1, 9, 0, 0, 0, time.UTC)),
		activity: &activityLog{},
		events:   &eventLog{},
		fixtures: testutil.NewFixtureFactory(),
	}

	cfg := service.LedgerConfig{
		MaxRetries:      5,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		SyncAlerts:      true,
	}
	for _, opt := range opts {
		opt(h, &cfg)
	}

	log := logger.Nop()
	h.monitor = service.NewMonitor(h.stores.Alerts, h.clock, log)
	h.ledger = service.NewLedger(h.stores, h.monitor, h.clock, cfg, log)
	auditor := service.NewLedgerAuditor(h.stores, log)
	h.svc = service.NewStockService(h.stores, h.ledger, h.monitor, auditor, h.activity, h.events, h.clock, log)
	return h
}

// seed stores an item directly, bypassing CreateItem.
func (h *harness) seed(t *testing.T, opts ...func(*domain.InventoryItem)) *domain.InventoryItem {
	t.Helper()
	item := h.fixtures.InventoryItem(opts...)
	require.NoError(t, h.store.Items().Create(context.Background(), item))
	return item
}

func (h *harness) item(t *testing.T, id string) *domain.InventoryItem {
	t.Helper()
	item, err := h.store.Items().GetByID(context.Background(), id)
	require.NoError(t, err)
	return item
}

func (h *harness) active(t *testing.T, itemID string) []*domain.AlertRecord {
	t.Helper()
	alerts, err := h.store.Alerts().ActiveByItem(context.Background(), itemID)
	require.NoError(t, err)
	return alerts
}

func (h *harness) movements(t *testing.T, itemID string) []*domain.StockMovement {
	t.Helper()
	ms, err := h.store.Movements().ListByItem(context.Background(), itemID)
	require.NoError(t, err)
	return ms
}

func kinds(alerts []*domain.AlertRecord) []domain.AlertKind {
	out := make([]domain.AlertKind, len(alerts))
	for i, a := range alerts {
		out[i] = a.Kind
	}
	return out
}
