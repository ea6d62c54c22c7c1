package store

import (
	"context"
	"maps"
	"math"
	"slices"
	"sync"
	"time"

	serrors "github.com/abgdnv/storemanager/internal/errors"
	"github.com/google/uuid"
)

// MemoryDB is the shared state behind the in-memory stores.
// A transaction holds the write lock for its whole duration and restores a snapshot on failure.
type MemoryDB struct {
	mu       sync.RWMutex
	products map[uuid.UUID]Product
	sales    map[uuid.UUID]Sale
	// insertion order, FindAll walks these
	productIDs []uuid.UUID
	saleIDs    []uuid.UUID
}

// NewMemoryDB creates an empty in-memory database.
func NewMemoryDB() *MemoryDB {
	return &MemoryDB{
		products: make(map[uuid.UUID]Product),
		sales:    make(map[uuid.UUID]Sale),
	}
}

type memTxKey struct{}

type memSnapshot struct {
	products   map[uuid.UUID]Product
	sales      map[uuid.UUID]Sale
	productIDs []uuid.UUID
	saleIDs    []uuid.UUID
}

// WithTransaction implements TxManager.
func (db *MemoryDB) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if db.inTx(ctx) {
		return fn(ctx)
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	snap := db.snapshot()
	if err := fn(context.WithValue(ctx, memTxKey{}, db)); err != nil {
		db.restore(snap)
		return err
	}
	return nil
}

func (db *MemoryDB) inTx(ctx context.Context) bool {
	owner, ok := ctx.Value(memTxKey{}).(*MemoryDB)
	return ok && owner == db
}

// lock acquires the write lock unless ctx already runs inside a transaction of this db.
func (db *MemoryDB) lock(ctx context.Context) func() {
	if db.inTx(ctx) {
		return func() {}
	}
	db.mu.Lock()
	return db.mu.Unlock
}

func (db *MemoryDB) rlock(ctx context.Context) func() {
	if db.inTx(ctx) {
		return func() {}
	}
	db.mu.RLock()
	return db.mu.RUnlock
}

// Sale items are copied on write, so a shallow copy of the maps is enough.
func (db *MemoryDB) snapshot() memSnapshot {
	return memSnapshot{
		products:   maps.Clone(db.products),
		sales:      maps.Clone(db.sales),
		productIDs: slices.Clone(db.productIDs),
		saleIDs:    slices.Clone(db.saleIDs),
	}
}

func (db *MemoryDB) restore(s memSnapshot) {
	db.products = s.products
	db.sales = s.sales
	db.productIDs = s.productIDs
	db.saleIDs = s.saleIDs
}

// MemoryProductStore implements ProductStore on a MemoryDB.
type MemoryProductStore struct {
	db *MemoryDB
}

// NewMemoryProductStore creates a new instance of ProductStore backed by db.
func NewMemoryProductStore(db *MemoryDB) *MemoryProductStore {
	return &MemoryProductStore{db: db}
}

// FindByID retrieves a product by its ID.
func (s *MemoryProductStore) FindByID(ctx context.Context, id uuid.UUID) (*Product, error) {
	defer s.db.rlock(ctx)()

	p, ok := s.db.products[id]
	if !ok {
		return nil, serrors.ErrProductNotFound
	}
	return &p, nil
}

// FindAll retrieves all products.
func (s *MemoryProductStore) FindAll(ctx context.Context) ([]Product, error) {
	defer s.db.rlock(ctx)()

	list := make([]Product, 0, len(s.db.productIDs))
	for _, id := range s.db.productIDs {
		list = append(list, s.db.products[id])
	}
	return list, nil
}

// Create creates a new product and returns it.
func (s *MemoryProductStore) Create(ctx context.Context, name string, quantity int32) (*Product, error) {
	defer s.db.lock(ctx)()

	if s.nameTaken(name, uuid.Nil) {
		return nil, serrors.ErrProductExists
	}
	now := time.Now().UTC()
	product := Product{
		ID:        uuid.New(),
		Name:      name,
		Quantity:  quantity,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.db.products[product.ID] = product
	s.db.productIDs = append(s.db.productIDs, product.ID)

	return &product, nil
}

func (s *MemoryProductStore) Update(ctx context.Context, id uuid.UUID, name string, quantity int32) (*Product, error) {
	defer s.db.lock(ctx)()

	product, ok := s.db.products[id]
	if !ok {
		return nil, serrors.ErrProductNotFound
	}
	if s.nameTaken(name, id) {
		return nil, serrors.ErrProductExists
	}
	product.Name = name
	product.Quantity = quantity
	product.UpdatedAt = time.Now().UTC()
	s.db.products[id] = product

	return &product, nil
}

// DeleteByID deletes a product by its ID.
func (s *MemoryProductStore) DeleteByID(ctx context.Context, id uuid.UUID) (*Product, error) {
	defer s.db.lock(ctx)()

	product, ok := s.db.products[id]
	if !ok {
		return nil, serrors.ErrProductNotFound
	}
	delete(s.db.products, id)
	s.db.productIDs = slices.DeleteFunc(slices.Clone(s.db.productIDs), func(v uuid.UUID) bool { return v == id })
	return &product, nil
}

func (s *MemoryProductStore) AdjustQuantity(ctx context.Context, id uuid.UUID, delta int32) (*Product, error) {
	defer s.db.lock(ctx)()

	product, ok := s.db.products[id]
	if !ok {
		return nil, serrors.ErrProductNotFound
	}
	next := int64(product.Quantity) + int64(delta)
	if next < 0 {
		return nil, serrors.ErrInsufficientStock
	}
	if next > math.MaxInt32 {
		return nil, serrors.ErrStockOverflow
	}
	product.Quantity = int32(next)
	product.UpdatedAt = time.Now().UTC()
	s.db.products[id] = product

	return &product, nil
}

func (s *MemoryProductStore) nameTaken(name string, except uuid.UUID) bool {
	for id, p := range s.db.products {
		if id != except && p.Name == name {
			return true
		}
	}
	return false
}

// MemorySaleStore implements SaleStore on a MemoryDB.
type MemorySaleStore struct {
	db *MemoryDB
}

// NewMemorySaleStore creates a new instance of SaleStore backed by db.
func NewMemorySaleStore(db *MemoryDB) *MemorySaleStore {
	return &MemorySaleStore{db: db}
}

func (s *MemorySaleStore) FindByID(ctx context.Context, id uuid.UUID) (*Sale, error) {
	defer s.db.rlock(ctx)()

	sale, ok := s.db.sales[id]
	if !ok {
		return nil, serrors.ErrSaleNotFound
	}
	sale.Items = slices.Clone(sale.Items)
	return &sale, nil
}

func (s *MemorySaleStore) FindAll(ctx context.Context) ([]Sale, error) {
	defer s.db.rlock(ctx)()

	list := make([]Sale, 0, len(s.db.saleIDs))
	for _, id := range s.db.saleIDs {
		sale := s.db.sales[id]
		sale.Items = slices.Clone(sale.Items)
		list = append(list, sale)
	}
	return list, nil
}

func (s *MemorySaleStore) Create(ctx context.Context, items []SaleItem) (*Sale, error) {
	defer s.db.lock(ctx)()

	now := time.Now().UTC()
	sale := Sale{
		ID:        uuid.New(),
		Items:     slices.Clone(items),
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.db.sales[sale.ID] = sale
	s.db.saleIDs = append(s.db.saleIDs, sale.ID)

	out := sale
	out.Items = slices.Clone(items)
	return &out, nil
}

func (s *MemorySaleStore) Replace(ctx context.Context, id uuid.UUID, items []SaleItem) (*Sale, error) {
	defer s.db.lock(ctx)()

	sale, ok := s.db.sales[id]
	if !ok {
		return nil, serrors.ErrSaleNotFound
	}
	sale.Items = slices.Clone(items)
	sale.UpdatedAt = time.Now().UTC()
	s.db.sales[id] = sale

	out := sale
	out.Items = slices.Clone(items)
	return &out, nil
}

func (s *MemorySaleStore) DeleteByID(ctx context.Context, id uuid.UUID) error {
	defer s.db.lock(ctx)()

	if _, ok := s.db.sales[id]; !ok {
		return serrors.ErrSaleNotFound
	}
	delete(s.db.sales, id)
	s.db.saleIDs = slices.DeleteFunc(slices.Clone(s.db.saleIDs), func(v uuid.UUID) bool { return v == id })
	return nil
}
