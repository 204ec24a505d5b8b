// Package memstore is an in-memory implementation of the inventory stores.
// Every call and every transaction runs under one store-wide lock, so
// transactions are serializable. A failed transaction restores the snapshot
// taken when it began.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/medflow/pharmacy-stock/internal/inventory/domain"
	"github.com/medflow/pharmacy-stock/pkg/errors"
)

type txKey struct{}

// Store holds items, movements, alerts and the unit catalog.
type Store struct {
	mu        sync.Mutex
	items     map[string]*domain.InventoryItem
	movements []*domain.StockMovement
	alerts    []*domain.AlertRecord
	units     []*domain.UnitDefinition
}

// New returns an empty store seeded with units.
func New(units ...*domain.UnitDefinition) *Store {
	s := &Store{items: make(map[string]*domain.InventoryItem)}
	for _, u := range units {
		c := *u
		s.units = append(s.units, &c)
	}
	return s
}

type snapshot struct {
	items     map[string]*domain.InventoryItem
	movements []*domain.StockMovement
	alerts    []*domain.AlertRecord
}

func (s *Store) snapshot() snapshot {
	snap := snapshot{
		items:     make(map[string]*domain.InventoryItem, len(s.items)),
		movements: append([]*domain.StockMovement(nil), s.movements...),
		alerts:    make([]*domain.AlertRecord, len(s.alerts)),
	}
	for id, item := range s.items {
		snap.items[id] = item.Clone()
	}
	for i, a := range s.alerts {
		c := *a
		snap.alerts[i] = &c
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.items = snap.items
	s.movements = snap.movements
	s.alerts = snap.alerts
}

// InTx runs fn with the store locked. Calls made with the context handed to
// fn do not lock again. A nested InTx joins the outer transaction.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.inTx(ctx) {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	if err := fn(context.WithValue(ctx, txKey{}, s)); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func (s *Store) inTx(ctx context.Context) bool {
	owner, ok := ctx.Value(txKey{}).(*Store)
	return ok && owner == s
}

// lock takes the store lock unless ctx already holds it.
func (s *Store) lock(ctx context.Context) func() {
	if s.inTx(ctx) {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// Items returns the item store view.
func (s *Store) Items() *ItemStore { return &ItemStore{s: s} }

// Movements returns the movement store view.
func (s *Store) Movements() *MovementStore { return &MovementStore{s: s} }

// Alerts returns the alert store view.
func (s *Store) Alerts() *AlertStore { return &AlertStore{s: s} }

// Units returns the unit catalog view.
func (s *Store) Units() *UnitStore { return &UnitStore{s: s} }

// ItemStore mirrors repository.ItemRepository.
type ItemStore struct{ s *Store }

func (st *ItemStore) Create(ctx context.Context, item *domain.InventoryItem) error {
	defer st.s.lock(ctx)()

	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	if _, exists := st.s.items[item.ID]; exists {
		return errors.Conflict("a record with these values already exists")
	}
	if item.Status == "" {
		item.Status = domain.ItemStatusActive
	}
	if item.Version == 0 {
		item.Version = 1
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	item.UpdatedAt = item.CreatedAt

	st.s.items[item.ID] = item.Clone()
	return nil
}

func (st *ItemStore) GetByID(ctx context.Context, id string) (*domain.InventoryItem, error) {
	defer st.s.lock(ctx)()

	item, ok := st.s.items[id]
	if !ok || item.IsDeleted() {
		return nil, errors.NotFound("item")
	}
	return item.Clone(), nil
}

// GetForUpdate is GetByID. Transactions already run one at a time.
func (st *ItemStore) GetForUpdate(ctx context.Context, id string) (*domain.InventoryItem, error) {
	return st.GetByID(ctx, id)
}

func (st *ItemStore) UpdateStock(ctx context.Context, item *domain.InventoryItem, expectedVersion int64) error {
	defer st.s.lock(ctx)()

	stored, ok := st.s.items[item.ID]
	if !ok || stored.IsDeleted() || stored.Version != expectedVersion {
		return domain.ErrStaleVersion
	}
	if item.CurrentStockBaseUnits < 0 {
		return errors.InsufficientStock(stored.CurrentStockBaseUnits, stored.CurrentStockBaseUnits-item.CurrentStockBaseUnits)
	}

	stored.CurrentStockBaseUnits = item.CurrentStockBaseUnits
	stored.EarliestExpiry = cloneTime(item.EarliestExpiry)
	stored.Version = item.Version
	stored.UpdatedAt = item.UpdatedAt
	return nil
}

func (st *ItemStore) UpdateThreshold(ctx context.Context, id string, threshold *int64, at time.Time) (*domain.InventoryItem, error) {
	defer st.s.lock(ctx)()

	stored, ok := st.s.items[id]
	if !ok || stored.IsDeleted() {
		return nil, errors.NotFound("item")
	}
	if threshold != nil {
		t := *threshold
		stored.LowStockThreshold = &t
	} else {
		stored.LowStockThreshold = nil
	}
	stored.Version++
	stored.UpdatedAt = at
	return stored.Clone(), nil
}

func (st *ItemStore) SoftDelete(ctx context.Context, id string, at time.Time) error {
	defer st.s.lock(ctx)()

	stored, ok := st.s.items[id]
	if !ok || stored.IsDeleted() {
		return errors.NotFound("item")
	}
	stored.Status = domain.ItemStatusDeleted
	stored.DeletedAt = &at
	stored.UpdatedAt = at
	stored.Version++
	return nil
}

func (st *ItemStore) ListIDs(ctx context.Context) ([]string, error) {
	defer st.s.lock(ctx)()

	live := make([]*domain.InventoryItem, 0, len(st.s.items))
	for _, item := range st.s.items {
		if !item.IsDeleted() {
			live = append(live, item)
		}
	}
	sort.Slice(live, func(i, j int) bool {
		if !live[i].CreatedAt.Equal(live[j].CreatedAt) {
			return live[i].CreatedAt.Before(live[j].CreatedAt)
		}
		return live[i].ID < live[j].ID
	})

	ids := make([]string, len(live))
	for i, item := range live {
		ids[i] = item.ID
	}
	return ids, nil
}

// MovementStore mirrors repository.MovementRepository.
type MovementStore struct{ s *Store }

func (st *MovementStore) Create(ctx context.Context, m *domain.StockMovement) error {
	defer st.s.lock(ctx)()

	if _, ok := st.s.items[m.ItemID]; !ok {
		return errors.NotFound("item")
	}
	if m.QuantityBaseUnits <= 0 {
		return errors.Validation(map[string]string{"quantity": "must be greater than zero"})
	}
	for _, existing := range st.s.movements {
		if existing.ItemID == m.ItemID && existing.ItemVersion == m.ItemVersion {
			return domain.ErrStaleVersion
		}
	}
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	c := *m
	st.s.movements = append(st.s.movements, &c)
	return nil
}

func (st *MovementStore) List(ctx context.Context, f domain.MovementFilter) ([]*domain.StockMovement, int64, error) {
	defer st.s.lock(ctx)()

	term := strings.ToLower(strings.TrimSpace(f.Search))
	var matched []*domain.StockMovement
	for _, m := range st.s.movements {
		if f.ItemID != "" && m.ItemID != f.ItemID {
			continue
		}
		if f.OperationType != "" && m.OperationType != f.OperationType {
			continue
		}
		if term != "" &&
			!strings.Contains(strings.ToLower(m.ItemName), term) &&
			!strings.Contains(strings.ToLower(m.PerformerName), term) {
			continue
		}
		matched = append(matched, m)
	}

	asc := f.Sort == domain.SortAsc
	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt) == asc
		}
		return (a.ItemVersion < b.ItemVersion) == asc
	})

	out := []*domain.StockMovement{}
	for _, m := range paginate(len(matched), f.Offset(), f.PerPage) {
		c := *matched[m]
		out = append(out, &c)
	}
	return out, int64(len(matched)), nil
}

func (st *MovementStore) ListByItem(ctx context.Context, itemID string) ([]*domain.StockMovement, error) {
	defer st.s.lock(ctx)()

	out := []*domain.StockMovement{}
	for _, m := range st.s.movements {
		if m.ItemID == itemID {
			c := *m
			out = append(out, &c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ItemVersion < out[j].ItemVersion })
	return out, nil
}

// AlertStore mirrors repository.AlertRepository.
type AlertStore struct{ s *Store }

func (st *AlertStore) active(itemID string, kind domain.AlertKind) *domain.AlertRecord {
	for _, a := range st.s.alerts {
		if a.ItemID == itemID && a.Kind == kind && a.Status == domain.AlertStatusActive {
			return a
		}
	}
	return nil
}

func (st *AlertStore) UpsertActive(ctx context.Context, a *domain.AlertRecord) (bool, error) {
	defer st.s.lock(ctx)()

	at := a.UpdatedAt
	if at.IsZero() {
		at = time.Now().UTC()
	}
	a.Status = domain.AlertStatusActive

	if existing := st.active(a.ItemID, a.Kind); existing != nil {
		existing.ItemName = a.ItemName
		existing.Description = a.Description
		existing.CurrentStock = a.CurrentStock
		existing.Threshold = cloneInt64(a.Threshold)
		existing.UpdatedAt = at
		a.ID, a.CreatedAt, a.UpdatedAt = existing.ID, existing.CreatedAt, at
		return false, nil
	}

	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	a.CreatedAt, a.UpdatedAt = at, at
	c := *a
	c.Threshold = cloneInt64(a.Threshold)
	st.s.alerts = append(st.s.alerts, &c)
	return true, nil
}

func (st *AlertStore) Resolve(ctx context.Context, itemID string, kind domain.AlertKind, at time.Time) (*domain.AlertRecord, error) {
	defer st.s.lock(ctx)()

	existing := st.active(itemID, kind)
	if existing == nil {
		return nil, nil
	}
	existing.Status = domain.AlertStatusResolved
	existing.ResolvedAt = &at
	existing.UpdatedAt = at

	c := *existing
	return &c, nil
}

func (st *AlertStore) ActiveByItem(ctx context.Context, itemID string) ([]*domain.AlertRecord, error) {
	defer st.s.lock(ctx)()

	out := []*domain.AlertRecord{}
	for _, a := range st.s.alerts {
		if a.ItemID == itemID && a.Status == domain.AlertStatusActive {
			c := *a
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out, nil
}

func (st *AlertStore) List(ctx context.Context, f domain.AlertFilter) ([]*domain.AlertRecord, int64, error) {
	defer st.s.lock(ctx)()

	var matched []*domain.AlertRecord
	for _, a := range st.s.alerts {
		if f.ItemID != "" && a.ItemID != f.ItemID {
			continue
		}
		if f.Kind != "" && a.Kind != f.Kind {
			continue
		}
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		matched = append(matched, a)
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if !matched[i].UpdatedAt.Equal(matched[j].UpdatedAt) {
			return matched[i].UpdatedAt.After(matched[j].UpdatedAt)
		}
		return matched[i].ID < matched[j].ID
	})

	out := []*domain.AlertRecord{}
	for _, idx := range paginate(len(matched), f.Offset(), f.PerPage) {
		c := *matched[idx]
		out = append(out, &c)
	}
	return out, int64(len(matched)), nil
}

// UnitStore mirrors repository.UnitRepository.
type UnitStore struct{ s *Store }

func (st *UnitStore) List(ctx context.Context) ([]*domain.UnitDefinition, error) {
	defer st.s.lock(ctx)()

	out := make([]*domain.UnitDefinition, len(st.s.units))
	for i, u := range st.s.units {
		c := *u
		out[i] = &c
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DisplayOrder != out[j].DisplayOrder {
			return out[i].DisplayOrder < out[j].DisplayOrder
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// paginate returns the indexes of one page. A non-positive limit means all rows.
func paginate(n, offset, limit int) []int {
	if offset >= n {
		return nil
	}
	end := n
	if limit > 0 && offset+limit < n {
		end = offset + limit
	}
	idx := make([]int, 0, end-offset)
	for i := offset; i < end; i++ {
		idx = append(idx, i)
	}
	return idx
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneInt64(n *int64) *int64 {
	if n == nil {
		return nil
	}
	v := *n
	return &v
}
