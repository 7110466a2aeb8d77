package budget

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"centavo/internal/domain/category"
	"centavo/internal/shared/logger"
)

type stateKey struct {
	categoryID string
	monthStart time.Time
}

type stateCell struct {
	allocated int64
	inflow    int64
	activity  int64
}

func (c *stateCell) available() int64 { return c.allocated + c.inflow - c.activity }

// fakeBudgetStore keeps allocations, cached monthly cells, and the ledger
// facts (inflow/activity per category and month) that rebuild and compare
// replay against. Seeding helpers write both the cache and the facts, the
// way the posting pipeline does.
type fakeBudgetStore struct {
	allocations    []*Allocation
	states         map[stateKey]*stateCell
	ledgerInflow   map[stateKey]int64
	ledgerActivity map[stateKey]int64
}

func newFakeBudgetStore() *fakeBudgetStore {
	return &fakeBudgetStore{
		states:         make(map[stateKey]*stateCell),
		ledgerInflow:   make(map[stateKey]int64),
		ledgerActivity: make(map[stateKey]int64),
	}
}

func (f *fakeBudgetStore) cell(k stateKey) *stateCell {
	if f.states[k] == nil {
		f.states[k] = &stateCell{}
	}
	return f.states[k]
}

func (f *fakeBudgetStore) seedInflow(categoryID string, monthStart time.Time, amount int64) {
	k := stateKey{categoryID, monthStart}
	f.cell(k).inflow += amount
	f.ledgerInflow[k] += amount
}

func (f *fakeBudgetStore) seedActivity(categoryID string, monthStart time.Time, amount int64) {
	k := stateKey{categoryID, monthStart}
	f.cell(k).activity += amount
	f.ledgerActivity[k] += amount
}

func (f *fakeBudgetStore) AllocateFromPool(ctx context.Context, a *Allocation) error {
	pool := f.cell(stateKey{category.PoolCategoryID, a.MonthStart})
	if pool.available()-a.AmountMinor < 0 {
		return ErrInsufficientReadyToAssign
	}
	pool.allocated -= a.AmountMinor
	f.cell(stateKey{a.ToCategoryID, a.MonthStart}).allocated += a.AmountMinor
	cp := *a
	f.allocations = append(f.allocations, &cp)
	return nil
}

func (f *fakeBudgetStore) MoveAllocation(ctx context.Context, a *Allocation) error {
	f.cell(stateKey{*a.FromCategoryID, a.MonthStart}).allocated -= a.AmountMinor
	f.cell(stateKey{a.ToCategoryID, a.MonthStart}).allocated += a.AmountMinor
	cp := *a
	f.allocations = append(f.allocations, &cp)
	return nil
}

func (f *fakeBudgetStore) StatesForMonth(ctx context.Context, monthStart time.Time) ([]*MonthlyState, error) {
	var out []*MonthlyState
	for k, c := range f.states {
		if !k.monthStart.Equal(monthStart) {
			continue
		}
		out = append(out, &MonthlyState{
			CategoryID:     k.categoryID,
			MonthStart:     k.monthStart,
			AllocatedMinor: c.allocated,
			InflowMinor:    c.inflow,
			ActivityMinor:  c.activity,
			AvailableMinor: c.available(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CategoryID < out[j].CategoryID })
	return out, nil
}

func (f *fakeBudgetStore) ReadyToAssign(ctx context.Context, monthStart time.Time) (int64, error) {
	if c := f.states[stateKey{category.PoolCategoryID, monthStart}]; c != nil {
		return c.available(), nil
	}
	return 0, nil
}

func (f *fakeBudgetStore) ListAllocations(ctx context.Context, monthStart time.Time) ([]*Allocation, error) {
	var out []*Allocation
	for i := len(f.allocations) - 1; i >= 0; i-- {
		if f.allocations[i].MonthStart.Equal(monthStart) {
			cp := *f.allocations[i]
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeBudgetStore) RebuildMonth(ctx context.Context, monthStart time.Time) error {
	derived := f.derive(monthStart)
	for k := range f.states {
		if k.monthStart.Equal(monthStart) {
			delete(f.states, k)
		}
	}
	for k, c := range derived {
		f.states[k] = c
	}
	return nil
}

func (f *fakeBudgetStore) CompareMonth(ctx context.Context, monthStart time.Time) ([]StateComparison, error) {
	derived := f.derive(monthStart)

	keys := make(map[stateKey]bool)
	for k := range f.states {
		if k.monthStart.Equal(monthStart) {
			keys[k] = true
		}
	}
	for k := range derived {
		keys[k] = true
	}

	var out []StateComparison
	for k := range keys {
		c := StateComparison{CategoryID: k.categoryID, MonthStart: k.monthStart}
		if cell := f.states[k]; cell != nil {
			c.CachedAllocatedMinor, c.CachedInflowMinor, c.CachedActivityMinor = cell.allocated, cell.inflow, cell.activity
		}
		if cell := derived[k]; cell != nil {
			c.DerivedAllocatedMinor, c.DerivedInflowMinor, c.DerivedActivityMinor = cell.allocated, cell.inflow, cell.activity
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CategoryID < out[j].CategoryID })
	return out, nil
}

func (f *fakeBudgetStore) derive(monthStart time.Time) map[stateKey]*stateCell {
	out := make(map[stateKey]*stateCell)
	get := func(categoryID string) *stateCell {
		k := stateKey{categoryID, monthStart}
		if out[k] == nil {
			out[k] = &stateCell{}
		}
		return out[k]
	}
	for _, a := range f.allocations {
		if !a.MonthStart.Equal(monthStart) {
			continue
		}
		get(a.ToCategoryID).allocated += a.AmountMinor
		source := category.PoolCategoryID
		if a.FromCategoryID != nil {
			source = *a.FromCategoryID
		}
		get(source).allocated -= a.AmountMinor
	}
	for k, v := range f.ledgerInflow {
		if k.monthStart.Equal(monthStart) && v != 0 {
			get(k.categoryID).inflow += v
		}
	}
	for k, v := range f.ledgerActivity {
		if k.monthStart.Equal(monthStart) && v != 0 {
			get(k.categoryID).activity += v
		}
	}
	return out
}

type fakeCategories struct {
	categories map[string]*category.Category
}

func (f *fakeCategories) GetCategory(ctx context.Context, categoryID string) (*category.Category, error) {
	if c, ok := f.categories[categoryID]; ok {
		return c, nil
	}
	return nil, category.ErrCategoryNotFound
}

func newBudget(t *testing.T) (*Service, *fakeBudgetStore) {
	t.Helper()
	store := newFakeBudgetStore()
	categories := &fakeCategories{categories: map[string]*category.Category{
		"netflix":                   {CategoryID: "netflix", IsActive: true},
		"groceries":                 {CategoryID: "groceries", IsActive: true},
		"dining_out":                {CategoryID: "dining_out", IsActive: true},
		"old_hobby":                 {CategoryID: "old_hobby", IsActive: false},
		category.PoolCategoryID:     {CategoryID: category.PoolCategoryID, IsSystem: true, IsActive: true},
		category.TransferCategoryID: {CategoryID: category.TransferCategoryID, IsSystem: true, IsActive: true},
	}}
	return NewService(store, categories, logger.Nop()), store
}

func month(y int, m time.Month) time.Time {
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}

func sumAvailable(t *testing.T, store *fakeBudgetStore, monthStart time.Time) int64 {
	t.Helper()
	states, err := store.StatesForMonth(context.Background(), monthStart)
	if err != nil {
		t.Fatalf("StatesForMonth() error: %v", err)
	}
	var total int64
	for _, s := range states {
		total += s.AvailableMinor
	}
	return total
}

func TestAllocate_MovesPoolToCategory(t *testing.T) {
	service, store := newBudget(t)
	ctx := context.Background()
	dec := month(2025, time.December)
	store.seedInflow(category.PoolCategoryID, dec, 20000)

	a, err := service.Allocate(ctx, dec, "netflix", 1500)
	if err != nil {
		t.Fatalf("Allocate() unexpected error: %v", err)
	}
	if a.FromCategoryID != nil {
		t.Errorf("pool allocation FromCategoryID = %v, want nil", *a.FromCategoryID)
	}

	rta, err := service.ReadyToAssign(ctx, dec)
	if err != nil {
		t.Fatalf("ReadyToAssign() error: %v", err)
	}
	if rta != 18500 {
		t.Errorf("ready to assign = %d, want 18500", rta)
	}
	netflix := store.states[stateKey{"netflix", dec}]
	if netflix == nil || netflix.available() != 1500 {
		t.Errorf("netflix available = %+v, want 1500", netflix)
	}
	if total := sumAvailable(t, store, dec); total != 20000 {
		t.Errorf("total available = %d after allocation, want 20000", total)
	}
}

func TestAllocate_MidMonthDateNormalizes(t *testing.T) {
	service, store := newBudget(t)
	ctx := context.Background()
	dec := month(2025, time.December)
	store.seedInflow(category.PoolCategoryID, dec, 5000)

	a, err := service.Allocate(ctx, time.Date(2025, time.December, 15, 10, 30, 0, 0, time.UTC), "groceries", 1000)
	if err != nil {
		t.Fatalf("Allocate() unexpected error: %v", err)
	}
	if !a.MonthStart.Equal(dec) {
		t.Errorf("allocation month = %v, want %v", a.MonthStart, dec)
	}
}

func TestAllocate_InsufficientReadyToAssign(t *testing.T) {
	service, store := newBudget(t)
	ctx := context.Background()
	dec := month(2025, time.December)
	store.seedInflow(category.PoolCategoryID, dec, 1000)

	_, err := service.Allocate(ctx, dec, "netflix", 1500)
	if !errors.Is(err, ErrInsufficientReadyToAssign) {
		t.Fatalf("Allocate() error = %v, want %v", err, ErrInsufficientReadyToAssign)
	}
	if err.Error() != "ready-to-assign is insufficient for this allocation" {
		t.Errorf("Allocate() error message = %q", err.Error())
	}

	rta, _ := service.ReadyToAssign(ctx, dec)
	if rta != 1000 {
		t.Errorf("ready to assign = %d after refused allocation, want 1000", rta)
	}
	if len(store.allocations) != 0 {
		t.Errorf("refused allocation was recorded anyway")
	}
	if store.states[stateKey{"netflix", dec}] != nil {
		t.Error("refused allocation touched the destination row")
	}
}

func TestAllocate_CanDrainPoolToZero(t *testing.T) {
	service, store := newBudget(t)
	ctx := context.Background()
	dec := month(2025, time.December)
	store.seedInflow(category.PoolCategoryID, dec, 1500)

	if _, err := service.Allocate(ctx, dec, "netflix", 1500); err != nil {
		t.Fatalf("Allocate() unexpected error: %v", err)
	}
	rta, _ := service.ReadyToAssign(ctx, dec)
	if rta != 0 {
		t.Errorf("ready to assign = %d, want 0", rta)
	}
}

func TestAllocate_Validation(t *testing.T) {
	dec := month(2025, time.December)
	tests := []struct {
		name       string
		monthStart time.Time
		categoryID string
		amount     int64
		wantErr    error
	}{
		{name: "zero amount", monthStart: dec, categoryID: "netflix", amount: 0, wantErr: ErrInvalidAmount},
		{name: "negative amount", monthStart: dec, categoryID: "netflix", amount: -100, wantErr: ErrInvalidAmount},
		{name: "missing month", categoryID: "netflix", amount: 100, wantErr: ErrMonthRequired},
		{name: "unknown category", monthStart: dec, categoryID: "ghost", amount: 100, wantErr: ErrUnknownCategory},
		{name: "inactive category", monthStart: dec, categoryID: "old_hobby", amount: 100, wantErr: ErrInactiveCategory},
		{name: "pool as destination", monthStart: dec, categoryID: category.PoolCategoryID, amount: 100, wantErr: ErrSystemCategory},
		{name: "wash as destination", monthStart: dec, categoryID: category.TransferCategoryID, amount: 100, wantErr: ErrSystemCategory},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, store := newBudget(t)
			_, err := service.Allocate(context.Background(), tt.monthStart, tt.categoryID, tt.amount)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Allocate() error = %v, want %v", err, tt.wantErr)
			}
			if len(store.allocations) != 0 {
				t.Error("Allocate() recorded an allocation on validation failure")
			}
		})
	}
}

func TestMove_ShiftsBetweenEnvelopes(t *testing.T) {
	service, store := newBudget(t)
	ctx := context.Background()
	dec := month(2025, time.December)
	store.seedInflow(category.PoolCategoryID, dec, 5000)

	if _, err := service.Allocate(ctx, dec, "groceries", 2000); err != nil {
		t.Fatalf("Allocate() error: %v", err)
	}
	a, err := service.Move(ctx, dec, "groceries", "dining_out", 500)
	if err != nil {
		t.Fatalf("Move() unexpected error: %v", err)
	}
	if a.FromCategoryID == nil || *a.FromCategoryID != "groceries" {
		t.Errorf("move FromCategoryID = %v, want groceries", a.FromCategoryID)
	}

	groceries := store.states[stateKey{"groceries", dec}]
	dining := store.states[stateKey{"dining_out", dec}]
	if groceries.available() != 1500 || dining.available() != 500 {
		t.Errorf("available = %d/%d, want 1500/500", groceries.available(), dining.available())
	}
	rta, _ := service.ReadyToAssign(ctx, dec)
	if rta != 3000 {
		t.Errorf("ready to assign = %d, want 3000 (moves never touch the pool)", rta)
	}
	if total := sumAvailable(t, store, dec); total != 5000 {
		t.Errorf("total available = %d after move, want 5000", total)
	}
}

func TestMove_AllowsNegativeSource(t *testing.T) {
	service, store := newBudget(t)
	ctx := context.Background()
	dec := month(2025, time.December)

	if _, err := service.Move(ctx, dec, "groceries", "dining_out", 500); err != nil {
		t.Fatalf("Move() unexpected error: %v", err)
	}
	groceries := store.states[stateKey{"groceries", dec}]
	if groceries.available() != -500 {
		t.Errorf("groceries available = %d, want -500", groceries.available())
	}
}

func TestMove_Validation(t *testing.T) {
	dec := month(2025, time.December)
	tests := []struct {
		name    string
		from    string
		to      string
		amount  int64
		wantErr error
	}{
		{name: "same category", from: "groceries", to: "groceries", amount: 100, wantErr: ErrSameCategory},
		{name: "zero amount", from: "groceries", to: "dining_out", amount: 0, wantErr: ErrInvalidAmount},
		{name: "pool as source", from: category.PoolCategoryID, to: "dining_out", amount: 100, wantErr: ErrSystemCategory},
		{name: "unknown destination", from: "groceries", to: "ghost", amount: 100, wantErr: ErrUnknownCategory},
		{name: "inactive source", from: "old_hobby", to: "dining_out", amount: 100, wantErr: ErrInactiveCategory},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, store := newBudget(t)
			_, err := service.Move(context.Background(), dec, tt.from, tt.to, tt.amount)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Move() error = %v, want %v", err, tt.wantErr)
			}
			if len(store.allocations) != 0 {
				t.Error("Move() recorded an allocation on validation failure")
			}
		})
	}
}

func TestRebuildMonth_Converges(t *testing.T) {
	service, store := newBudget(t)
	ctx := context.Background()
	dec := month(2025, time.December)
	store.seedInflow(category.PoolCategoryID, dec, 20000)
	store.seedActivity("groceries", dec, 2345)

	if _, err := service.Allocate(ctx, dec, "groceries", 3000); err != nil {
		t.Fatalf("Allocate() error: %v", err)
	}
	if _, err := service.Move(ctx, dec, "groceries", "dining_out", 500); err != nil {
		t.Fatalf("Move() error: %v", err)
	}

	// Tamper with the cache, then rebuild it from the facts.
	store.cell(stateKey{"groceries", dec}).activity += 999
	store.cell(stateKey{"dining_out", dec}).allocated -= 250

	if err := service.RebuildMonth(ctx, dec); err != nil {
		t.Fatalf("RebuildMonth() unexpected error: %v", err)
	}

	drifts, err := service.VerifyMonth(ctx, dec)
	if err != nil {
		t.Fatalf("VerifyMonth() error: %v", err)
	}
	if len(drifts) != 0 {
		t.Errorf("VerifyMonth() reported %d drifts after rebuild, want 0: %+v", len(drifts), drifts)
	}

	groceries := store.states[stateKey{"groceries", dec}]
	if groceries.allocated != 2500 || groceries.activity != 2345 {
		t.Errorf("groceries after rebuild = %+v, want allocated 2500 activity 2345", groceries)
	}
	rta, _ := service.ReadyToAssign(ctx, dec)
	if rta != 17000 {
		t.Errorf("ready to assign = %d after rebuild, want 17000", rta)
	}
}

func TestVerifyMonth_ReportsDrift(t *testing.T) {
	service, store := newBudget(t)
	ctx := context.Background()
	dec := month(2025, time.December)
	store.seedActivity("netflix", dec, 1500)

	// Lose an activity update, the way a torn write would.
	store.cell(stateKey{"netflix", dec}).activity -= 300

	drifts, err := service.VerifyMonth(ctx, dec)
	if err != nil {
		t.Fatalf("VerifyMonth() unexpected error: %v", err)
	}
	if len(drifts) != 1 {
		t.Fatalf("VerifyMonth() reported %d drifts, want 1: %+v", len(drifts), drifts)
	}
	d := drifts[0]
	if d.CategoryID != "netflix" || d.Field != "activity_minor" {
		t.Errorf("drift = %+v, want netflix activity_minor", d)
	}
	if d.CachedMinor != 1200 || d.DerivedMinor != 1500 || d.DriftMinor != -300 {
		t.Errorf("drift values = cached %d derived %d drift %d, want 1200/1500/-300", d.CachedMinor, d.DerivedMinor, d.DriftMinor)
	}
}

func TestMonthSummary(t *testing.T) {
	service, store := newBudget(t)
	ctx := context.Background()
	dec := month(2025, time.December)
	store.seedInflow(category.PoolCategoryID, dec, 20000)

	if _, err := service.Allocate(ctx, dec, "netflix", 1500); err != nil {
		t.Fatalf("Allocate() error: %v", err)
	}

	summary, err := service.MonthSummary(ctx, dec)
	if err != nil {
		t.Fatalf("MonthSummary() unexpected error: %v", err)
	}
	if summary.ReadyToAssignMinor != 18500 {
		t.Errorf("summary ready to assign = %d, want 18500", summary.ReadyToAssignMinor)
	}
	if len(summary.Categories) != 2 {
		t.Fatalf("summary has %d rows, want 2 (pool and netflix)", len(summary.Categories))
	}
	var sawNetflix bool
	for _, row := range summary.Categories {
		if row.CategoryID == "netflix" {
			sawNetflix = true
			if row.AvailableMinor != 1500 {
				t.Errorf("netflix available = %d, want 1500", row.AvailableMinor)
			}
		}
	}
	if !sawNetflix {
		t.Error("summary is missing the netflix row")
	}
}

func TestReadyToAssign_EmptyMonth(t *testing.T) {
	service, _ := newBudget(t)
	rta, err := service.ReadyToAssign(context.Background(), month(2030, time.June))
	if err != nil {
		t.Fatalf("ReadyToAssign() unexpected error: %v", err)
	}
	if rta != 0 {
		t.Errorf("ready to assign = %d for an untouched month, want 0", rta)
	}
}

func TestListAllocations(t *testing.T) {
	service, store := newBudget(t)
	ctx := context.Background()
	dec := month(2025, time.December)
	jan := month(2026, time.January)
	store.seedInflow(category.PoolCategoryID, dec, 10000)
	store.seedInflow(category.PoolCategoryID, jan, 10000)

	if _, err := service.Allocate(ctx, dec, "netflix", 1500); err != nil {
		t.Fatalf("Allocate() error: %v", err)
	}
	if _, err := service.Allocate(ctx, jan, "netflix", 1500); err != nil {
		t.Fatalf("Allocate() error: %v", err)
	}

	allocations, err := service.ListAllocations(ctx, dec)
	if err != nil {
		t.Fatalf("ListAllocations() unexpected error: %v", err)
	}
	if len(allocations) != 1 {
		t.Errorf("ListAllocations() returned %d rows for december, want 1", len(allocations))
	}
}
