package store

import (
	"context"
	"errors"
	"fmt"

	serrors "github.com/abgdnv/storemanager/internal/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	productColumns = `id, name, quantity, created_at, updated_at`

	findProductByID = `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	findAllProducts = `SELECT ` + productColumns + ` FROM products ORDER BY seq`

	createProduct = `INSERT INTO products (id, name, quantity) VALUES ($1, $2, $3)
RETURNING ` + productColumns

	updateProduct = `UPDATE products SET name = $2, quantity = $3, updated_at = now() WHERE id = $1
RETURNING ` + productColumns

	deleteProduct = `DELETE FROM products WHERE id = $1 RETURNING ` + productColumns

	adjustProductQuantity = `UPDATE products SET quantity = (quantity::bigint + $2::bigint)::integer, updated_at = now()
WHERE id = $1 AND quantity::bigint + $2::bigint BETWEEN 0 AND 2147483647
RETURNING ` + productColumns

	productExists = `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`
)

// PgProductStore implements ProductStore on PostgreSQL.
type PgProductStore struct {
	pgStore
}

// NewPgProductStore creates a new instance of ProductStore using a PostgreSQL connection pool.
func NewPgProductStore(dbp *pgxpool.Pool) *PgProductStore {
	return &PgProductStore{pgStore{db: dbp}}
}

func (p *PgProductStore) FindByID(ctx context.Context, id uuid.UUID) (*Product, error) {
	product, err := scanProduct(p.conn(ctx).QueryRow(ctx, findProductByID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, serrors.ErrProductNotFound
		}
		return nil, fmt.Errorf("find product %s: %w", id, err)
	}
	return product, nil
}

func (p *PgProductStore) FindAll(ctx context.Context) ([]Product, error) {
	rows, err := p.conn(ctx).Query(ctx, findAllProducts)
	if err != nil {
		return nil, fmt.Errorf("find products: %w", err)
	}
	products, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Product, error) {
		pr, err := scanProduct(row)
		if err != nil {
			return Product{}, err
		}
		return *pr, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan products: %w", err)
	}
	return products, nil
}

func (p *PgProductStore) Create(ctx context.Context, name string, quantity int32) (*Product, error) {
	product, err := scanProduct(p.conn(ctx).QueryRow(ctx, createProduct, uuid.New(), name, quantity))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, serrors.ErrProductExists
		}
		return nil, fmt.Errorf("create product: %w", err)
	}
	return product, nil
}

func (p *PgProductStore) Update(ctx context.Context, id uuid.UUID, name string, quantity int32) (*Product, error) {
	product, err := scanProduct(p.conn(ctx).QueryRow(ctx, updateProduct, id, name, quantity))
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return nil, serrors.ErrProductNotFound
		case isUniqueViolation(err):
			return nil, serrors.ErrProductExists
		}
		return nil, fmt.Errorf("update product %s: %w", id, err)
	}
	return product, nil
}

func (p *PgProductStore) DeleteByID(ctx context.Context, id uuid.UUID) (*Product, error) {
	product, err := scanProduct(p.conn(ctx).QueryRow(ctx, deleteProduct, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, serrors.ErrProductNotFound
		}
		return nil, fmt.Errorf("delete product %s: %w", id, err)
	}
	return product, nil
}

func (p *PgProductStore) AdjustQuantity(ctx context.Context, id uuid.UUID, delta int32) (*Product, error) {
	var product *Product
	txErr := p.withTransaction(ctx, func(q DBTX) error {
		var err error
		product, err = scanProduct(q.QueryRow(ctx, adjustProductQuantity, id, delta))
		if err == nil {
			return nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("adjust quantity of product %s: %w", id, err)
		}
		// Either the product is gone or the guard rejected the delta.
		var exists bool
		if err := q.QueryRow(ctx, productExists, id).Scan(&exists); err != nil {
			return fmt.Errorf("check product %s: %w", id, err)
		}
		if !exists {
			return serrors.ErrProductNotFound
		}
		if delta > 0 {
			return serrors.ErrStockOverflow
		}
		return serrors.ErrInsufficientStock
	})
	if txErr != nil {
		return nil, txErr
	}
	return product, nil
}

func scanProduct(row pgx.Row) (*Product, error) {
	var pr Product
	if err := row.Scan(&pr.ID, &pr.Name, &pr.Quantity, &pr.CreatedAt, &pr.UpdatedAt); err != nil {
		return nil, err
	}
	return &pr, nil
}
