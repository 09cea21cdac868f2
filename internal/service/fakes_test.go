package service

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"inventory-ledger/internal/models"
	"inventory-ledger/internal/store"

	"github.com/shopspring/decimal"
)

// fakeStore is an in-memory stand-in for *store.Store. It implements every
// store-facing interface the services consume so unit tests run without a
// database while keeping the transactional semantics observable: an operation
// either applies all of its writes or none of them.
type fakeStore struct {
	mu sync.Mutex

	nextID      int64
	products    map[int64]*models.Product
	suppliers   map[int64]*models.Supplier
	users       []models.User
	operators   []models.Operator
	purchases   map[int64]*models.Purchase
	instances   map[int64]*models.Instance
	adjustments map[int64]*models.StockAdjustment

	// collideCreates forces the next N CreatePurchase calls to report a
	// reception-number collision regardless of the number.
	collideCreates int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		products:    make(map[int64]*models.Product),
		suppliers:   make(map[int64]*models.Supplier),
		purchases:   make(map[int64]*models.Purchase),
		instances:   make(map[int64]*models.Instance),
		adjustments: make(map[int64]*models.StockAdjustment),
	}
}

func (f *fakeStore) id() int64 {
	f.nextID++
	return f.nextID
}

func (f *fakeStore) addProduct(p models.Product) *models.Product {
	f.mu.Lock()
	defer f.mu.Unlock()
	p.ID = f.id()
	f.products[p.ID] = &p
	return &p
}

func (f *fakeStore) addSupplier(s models.Supplier) *models.Supplier {
	f.mu.Lock()
	defer f.mu.Unlock()
	s.ID = f.id()
	f.suppliers[s.ID] = &s
	return &s
}

func (f *fakeStore) addUser(u models.User) *models.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	u.ID = f.id()
	f.users = append(f.users, u)
	return &f.users[len(f.users)-1]
}

func (f *fakeStore) addOperator(o models.Operator) *models.Operator {
	f.mu.Lock()
	defer f.mu.Unlock()
	o.ID = f.id()
	f.operators = append(f.operators, o)
	return &f.operators[len(f.operators)-1]
}

// seedInstance inserts a unit directly, bypassing service flows. createdAt
// controls FIFO ordering in removal tests.
func (f *fakeStore) seedInstance(inst models.Instance, createdAt time.Time) *models.Instance {
	f.mu.Lock()
	defer f.mu.Unlock()
	inst.ID = f.id()
	inst.CreatedAt = createdAt
	f.instances[inst.ID] = &inst
	return &inst
}

func (f *fakeStore) GetProduct(ctx context.Context, tenantID, id int64) (*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok || p.TenantID != tenantID {
		return nil, models.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeStore) GetProductByUPC(ctx context.Context, tenantID int64, upc string) (*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.products {
		if p.TenantID == tenantID && p.UPC == upc {
			cp := *p
			return &cp, nil
		}
	}
	return nil, models.ErrNotFound
}

func (f *fakeStore) GetSupplier(ctx context.Context, tenantID, id int64) (*models.Supplier, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.suppliers[id]
	if !ok || s.TenantID != tenantID {
		return nil, models.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeStore) GetUserByPIN(ctx context.Context, tenantID int64, pin string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.users {
		u := f.users[i]
		if u.TenantID == tenantID && u.PIN != "" && u.PIN == pin {
			return &u, nil
		}
	}
	return nil, models.ErrNotFound
}

func (f *fakeStore) GetUsersWithPINHash(ctx context.Context, tenantID int64) ([]models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.User
	for _, u := range f.users {
		if u.TenantID == tenantID && u.PINHash != nil {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeStore) GetOperator(ctx context.Context, tenantID, id int64) (*models.Operator, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.operators {
		o := f.operators[i]
		if o.TenantID == tenantID && o.ID == id {
			return &o, nil
		}
	}
	return nil, models.ErrNotFound
}

func (f *fakeStore) GetOperatorByPIN(ctx context.Context, tenantID int64, pin string) (*models.Operator, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.operators {
		o := f.operators[i]
		if o.TenantID == tenantID && o.PIN == pin {
			return &o, nil
		}
	}
	return nil, models.ErrNotFound
}

func (f *fakeStore) MaxReceptionSequence(ctx context.Context, prefix string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	max := 0
	for _, p := range f.purchases {
		if !strings.HasPrefix(p.ReceptionNumber, prefix) {
			continue
		}
		seq, err := strconv.Atoi(p.ReceptionNumber[len(prefix):])
		if err == nil && seq > max {
			max = seq
		}
	}
	return max, nil
}

func (f *fakeStore) CreatePurchase(ctx context.Context, purchase *models.Purchase, instances []*models.Instance) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.collideCreates > 0 {
		f.collideCreates--
		return store.ErrReceptionNumberTaken
	}
	for _, p := range f.purchases {
		if p.ReceptionNumber == purchase.ReceptionNumber {
			return store.ErrReceptionNumberTaken
		}
	}

	purchase.ID = f.id()
	purchase.CreatedAt = time.Now()
	cp := *purchase
	f.purchases[cp.ID] = &cp

	for _, inst := range instances {
		inst.PurchaseID = &purchase.ID
		if err := inst.Validate(); err != nil {
			return err
		}
		inst.ID = f.id()
		inst.CreatedAt = time.Now()
		ic := *inst
		f.instances[ic.ID] = &ic
	}
	return nil
}

func (f *fakeStore) GetPurchase(ctx context.Context, tenantID, id int64) (*models.Purchase, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.purchases[id]
	if !ok || p.TenantID != tenantID {
		return nil, models.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeStore) GetInstancesByPurchase(ctx context.Context, purchaseID int64) ([]models.Instance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Instance
	for _, inst := range f.instances {
		if inst.PurchaseID != nil && *inst.PurchaseID == purchaseID {
			out = append(out, *inst)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) UpdatePurchase(ctx context.Context, purchase *models.Purchase, updates []store.InstanceUpdate, added []*models.Instance) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	stored, ok := f.purchases[purchase.ID]
	if !ok || stored.TenantID != purchase.TenantID {
		return models.ErrNotFound
	}

	for _, upd := range updates {
		inst, ok := f.instances[upd.ID]
		if !ok || inst.PurchaseID == nil || *inst.PurchaseID != purchase.ID {
			return models.ErrNotFound
		}
		inst.Serial = upd.Serial
		inst.UnitCost = upd.UnitCost
		inst.OriginalCost = upd.OriginalCost
		inst.UpdatedAt = time.Now()
	}

	for _, inst := range added {
		inst.PurchaseID = &purchase.ID
		if err := inst.Validate(); err != nil {
			return err
		}
		inst.ID = f.id()
		inst.CreatedAt = time.Now()
		ic := *inst
		f.instances[ic.ID] = &ic
	}

	stored.SupplierID = purchase.SupplierID
	stored.Currency = purchase.Currency
	stored.ExchangeRate = purchase.ExchangeRate
	stored.Status = models.PurchaseStatusDraft

	total := decimal.Zero
	for _, inst := range f.instances {
		if inst.PurchaseID != nil && *inst.PurchaseID == purchase.ID {
			total = total.Add(inst.UnitCost)
		}
	}
	stored.TotalCost = total
	purchase.TotalCost = total
	purchase.Status = models.PurchaseStatusDraft
	return nil
}

func (f *fakeStore) ConfirmPurchase(ctx context.Context, tenantID, purchaseID int64) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p, ok := f.purchases[purchaseID]
	if !ok || p.TenantID != tenantID {
		return nil, models.ErrNotFound
	}
	p.Status = models.PurchaseStatusConfirmed

	var productIDs []int64
	for _, inst := range f.instances {
		if inst.PurchaseID != nil && *inst.PurchaseID == purchaseID && inst.Status == models.InstanceStatusPending {
			inst.Status = models.InstanceStatusInStock
			inst.UpdatedAt = time.Now()
			productIDs = append(productIDs, inst.ProductID)
		}
	}
	return productIDs, nil
}

func (f *fakeStore) DeletePurchase(ctx context.Context, tenantID, purchaseID int64) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p, ok := f.purchases[purchaseID]
	if !ok || p.TenantID != tenantID {
		return nil, models.ErrNotFound
	}
	for _, inst := range f.instances {
		if inst.PurchaseID != nil && *inst.PurchaseID == purchaseID && inst.Status == models.InstanceStatusSold {
			return nil, models.ErrPurchaseHasSales
		}
	}

	var productIDs []int64
	for id, inst := range f.instances {
		if inst.PurchaseID != nil && *inst.PurchaseID == purchaseID {
			productIDs = append(productIDs, inst.ProductID)
			delete(f.instances, id)
		}
	}
	delete(f.purchases, purchaseID)
	return productIDs, nil
}

func (f *fakeStore) FindActiveSerials(ctx context.Context, tenantID int64, serials []string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	want := make(map[string]struct{}, len(serials))
	for _, s := range serials {
		want[s] = struct{}{}
	}

	active := make(map[string]struct{}, len(serials))
	for _, inst := range f.instances {
		if inst.Serial == nil {
			continue
		}
		if inst.Status != models.InstanceStatusPending && inst.Status != models.InstanceStatusInStock {
			continue
		}
		product, ok := f.products[inst.ProductID]
		if !ok || product.TenantID != tenantID {
			continue
		}
		if _, ok := want[*inst.Serial]; ok {
			active[*inst.Serial] = struct{}{}
		}
	}

	var out []string
	for _, s := range serials {
		if _, ok := active[s]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeStore) CountInStock(ctx context.Context, tenantID, productID int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	product, ok := f.products[productID]
	if !ok || product.TenantID != tenantID {
		return 0, nil
	}
	count := 0
	for _, inst := range f.instances {
		if inst.ProductID == productID && inst.Status == models.InstanceStatusInStock {
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) AddAdjustmentInstances(ctx context.Context, adj *models.StockAdjustment, instances []*models.Instance) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	adj.ID = f.id()
	adj.CreatedAt = time.Now()
	ac := *adj
	f.adjustments[ac.ID] = &ac

	for _, inst := range instances {
		inst.AdjustmentID = &adj.ID
		if err := inst.Validate(); err != nil {
			return err
		}
		inst.ID = f.id()
		inst.CreatedAt = time.Now()
		ic := *inst
		f.instances[ic.ID] = &ic
	}
	return nil
}

func (f *fakeStore) RemoveOldestInStock(ctx context.Context, adj *models.StockAdjustment, count int) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var candidates []*models.Instance
	for _, inst := range f.instances {
		if inst.ProductID == adj.ProductID && inst.Status == models.InstanceStatusInStock {
			candidates = append(candidates, inst)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].CreatedAt.Equal(candidates[j].CreatedAt) {
			return candidates[i].ID < candidates[j].ID
		}
		return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
	})

	if len(candidates) < count {
		return nil, &models.InsufficientStockError{
			ProductID: adj.ProductID,
			Available: len(candidates),
			Requested: count,
		}
	}

	adj.ID = f.id()
	adj.CreatedAt = time.Now()
	ac := *adj
	f.adjustments[ac.ID] = &ac

	ids := make([]int64, 0, count)
	for _, inst := range candidates[:count] {
		inst.Status = models.InstanceStatusAdjustment
		inst.AdjustmentID = &adj.ID
		inst.UpdatedAt = time.Now()
		ids = append(ids, inst.ID)
	}
	return ids, nil
}

func (f *fakeStore) GetAdjustment(ctx context.Context, tenantID, id int64) (*models.StockAdjustment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	adj, ok := f.adjustments[id]
	if !ok || adj.TenantID != tenantID {
		return nil, models.ErrNotFound
	}
	cp := *adj
	return &cp, nil
}

func (f *fakeStore) GetAdjustmentInstances(ctx context.Context, adjustmentID int64) ([]models.Instance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Instance
	for _, inst := range f.instances {
		if inst.AdjustmentID != nil && *inst.AdjustmentID == adjustmentID {
			out = append(out, *inst)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// instancesByStatus counts a product's units per status
func (f *fakeStore) instancesByStatus(productID int64) map[string]int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]int)
	for _, inst := range f.instances {
		if inst.ProductID == productID {
			out[inst.Status]++
		}
	}
	return out
}

// fakeEvents records published events
type fakeEvents struct {
	mu        sync.Mutex
	created   []*models.PurchaseCreatedEvent
	confirmed []*models.PurchaseConfirmedEvent
	deleted   []*models.PurchaseDeletedEvent
	adjusted  []*models.StockAdjustedEvent
	intakes   []*models.BulkIntakeEvent
}

func (e *fakeEvents) PublishPurchaseCreated(ctx context.Context, event *models.PurchaseCreatedEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.created = append(e.created, event)
	return nil
}

func (e *fakeEvents) PublishPurchaseConfirmed(ctx context.Context, event *models.PurchaseConfirmedEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.confirmed = append(e.confirmed, event)
	return nil
}

func (e *fakeEvents) PublishPurchaseDeleted(ctx context.Context, event *models.PurchaseDeletedEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.deleted = append(e.deleted, event)
	return nil
}

func (e *fakeEvents) PublishStockAdjusted(ctx context.Context, event *models.StockAdjustedEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.adjusted = append(e.adjusted, event)
	return nil
}

func (e *fakeEvents) PublishBulkIntake(ctx context.Context, event *models.BulkIntakeEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.intakes = append(e.intakes, event)
	return nil
}

// fakeCache is an in-memory StockCache
type fakeCache struct {
	mu          sync.Mutex
	counts      map[int64]int
	invalidated []int64
}

func newFakeCache() *fakeCache {
	return &fakeCache{counts: make(map[int64]int)}
}

func (c *fakeCache) GetStockCount(ctx context.Context, productID int64) (int, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	count, ok := c.counts[productID]
	return count, ok, nil
}

func (c *fakeCache) SetStockCount(ctx context.Context, productID int64, count int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[productID] = count
	return nil
}

func (c *fakeCache) InvalidateProductStock(ctx context.Context, productIDs ...int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range productIDs {
		delete(c.counts, id)
		c.invalidated = append(c.invalidated, id)
	}
	return nil
}
