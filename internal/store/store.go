// Package store provides interfaces for product and sale storage operations.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Product represents a product entity in the store.
type Product struct {
	ID        uuid.UUID
	Name      string
	Quantity  int32
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SaleItem is one line item of a sale.
type SaleItem struct {
	ProductID uuid.UUID
	Quantity  int32
}

// Sale represents a sale entity in the store. Items keep submission order.
type Sale struct {
	ID        uuid.UUID
	Items     []SaleItem
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ProductStore is an interface for product storage operations.
// It abstracts the underlying data store, allowing for different implementations (e.g., in-memory, database).
type ProductStore interface {
	// FindByID retrieves a single product by its unique identifier.
	// Returns ErrProductNotFound if no product exists with the given ID.
	FindByID(ctx context.Context, id uuid.UUID) (*Product, error)

	// FindAll returns all products in insertion order.
	// Returns an empty slice if no products exist.
	FindAll(ctx context.Context) ([]Product, error)

	// Create adds a new product to the system.
	// Returns ErrProductExists if a product with the same name exists.
	Create(ctx context.Context, name string, quantity int32) (*Product, error)

	// Update replaces name and quantity of an existing product.
	// Returns ErrProductNotFound or ErrProductExists.
	Update(ctx context.Context, id uuid.UUID, name string, quantity int32) (*Product, error)

	// DeleteByID removes a product and returns it.
	// Returns ErrProductNotFound if no product exists with the given ID.
	DeleteByID(ctx context.Context, id uuid.UUID) (*Product, error)

	// AdjustQuantity adds delta (negative for a debit) to the product quantity as one conditional write.
	// Returns ErrInsufficientStock if the result would be negative and ErrStockOverflow if it would
	// exceed math.MaxInt32. Nothing is written in either case.
	// Returns ErrProductNotFound if no product exists with the given ID.
	AdjustQuantity(ctx context.Context, id uuid.UUID, delta int32) (*Product, error)
}

// SaleStore is an interface for sale storage operations.
type SaleStore interface {
	// FindByID retrieves a sale with its items.
	// Returns ErrSaleNotFound if no sale exists with the given ID.
	FindByID(ctx context.Context, id uuid.UUID) (*Sale, error)

	// FindAll returns all sales in creation order.
	FindAll(ctx context.Context) ([]Sale, error)

	// Create persists a new sale with the given items.
	Create(ctx context.Context, items []SaleItem) (*Sale, error)

	// Replace swaps the items of an existing sale.
	// Returns ErrSaleNotFound if no sale exists with the given ID.
	Replace(ctx context.Context, id uuid.UUID, items []SaleItem) (*Sale, error)

	// DeleteByID removes a sale and its items.
	// Returns ErrSaleNotFound if no sale exists with the given ID.
	DeleteByID(ctx context.Context, id uuid.UUID) error
}

// TxManager runs fn as a single unit of work across stores.
// Store calls made with the context passed to fn join the transaction.
// A non-nil error from fn rolls back every write made through that context.
type TxManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
