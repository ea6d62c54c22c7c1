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
	saleColumns = `id, created_at, updated_at`

	findSaleByID = `SELECT ` + saleColumns + ` FROM sales WHERE id = $1`

	findAllSales = `SELECT ` + saleColumns + ` FROM sales ORDER BY seq`

	findSaleItems = `SELECT product_id, quantity FROM sale_items WHERE sale_id = $1 ORDER BY position`

	findAllSaleItems = `SELECT si.sale_id, si.product_id, si.quantity
FROM sale_items si JOIN sales s ON s.id = si.sale_id
ORDER BY s.seq, si.position`

	createSale = `INSERT INTO sales (id) VALUES ($1) RETURNING ` + saleColumns

	touchSale = `UPDATE sales SET updated_at = now() WHERE id = $1 RETURNING ` + saleColumns

	createSaleItem = `INSERT INTO sale_items (sale_id, position, product_id, quantity) VALUES ($1, $2, $3, $4)`

	deleteSaleItems = `DELETE FROM sale_items WHERE sale_id = $1`

	deleteSale = `DELETE FROM sales WHERE id = $1`
)

// PgSaleStore implements SaleStore on PostgreSQL.
// Items live in sale_items keyed by (sale_id, position).
type PgSaleStore struct {
	pgStore
}

// NewPgSaleStore creates a new instance of SaleStore using a PostgreSQL connection pool.
func NewPgSaleStore(dbp *pgxpool.Pool) *PgSaleStore {
	return &PgSaleStore{pgStore{db: dbp}}
}

func (p *PgSaleStore) FindByID(ctx context.Context, id uuid.UUID) (*Sale, error) {
	var sale *Sale

	// Sale row and items must come from the same snapshot.
	txErr := p.withTransaction(ctx, func(q DBTX) error {
		var err error
		sale, err = scanSale(q.QueryRow(ctx, findSaleByID, id))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return serrors.ErrSaleNotFound
			}
			return fmt.Errorf("find sale %s: %w", id, err)
		}
		rows, err := q.Query(ctx, findSaleItems, id)
		if err != nil {
			return fmt.Errorf("find items of sale %s: %w", id, err)
		}
		sale.Items, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (SaleItem, error) {
			var it SaleItem
			err := row.Scan(&it.ProductID, &it.Quantity)
			return it, err
		})
		if err != nil {
			return fmt.Errorf("scan items of sale %s: %w", id, err)
		}
		return nil
	})

	if txErr != nil {
		return nil, txErr
	}
	return sale, nil
}

func (p *PgSaleStore) FindAll(ctx context.Context) ([]Sale, error) {
	var sales []Sale

	txErr := p.withTransaction(ctx, func(q DBTX) error {
		rows, err := q.Query(ctx, findAllSales)
		if err != nil {
			return fmt.Errorf("find sales: %w", err)
		}
		sales, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (Sale, error) {
			s, err := scanSale(row)
			if err != nil {
				return Sale{}, err
			}
			return *s, nil
		})
		if err != nil {
			return fmt.Errorf("scan sales: %w", err)
		}

		index := make(map[uuid.UUID]int, len(sales))
		for i := range sales {
			sales[i].Items = []SaleItem{}
			index[sales[i].ID] = i
		}

		rows, err = q.Query(ctx, findAllSaleItems)
		if err != nil {
			return fmt.Errorf("find sale items: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var saleID uuid.UUID
			var it SaleItem
			if err := rows.Scan(&saleID, &it.ProductID, &it.Quantity); err != nil {
				return fmt.Errorf("scan sale item: %w", err)
			}
			if i, ok := index[saleID]; ok {
				sales[i].Items = append(sales[i].Items, it)
			}
		}
		return rows.Err()
	})

	if txErr != nil {
		return nil, txErr
	}
	return sales, nil
}

func (p *PgSaleStore) Create(ctx context.Context, items []SaleItem) (*Sale, error) {
	var sale *Sale

	txErr := p.withTransaction(ctx, func(q DBTX) error {
		var err error
		sale, err = scanSale(q.QueryRow(ctx, createSale, uuid.New()))
		if err != nil {
			return fmt.Errorf("create sale: %w", err)
		}
		if err := insertSaleItems(ctx, q, sale.ID, items); err != nil {
			return err
		}
		sale.Items = append([]SaleItem(nil), items...)
		return nil
	})

	if txErr != nil {
		return nil, txErr
	}
	return sale, nil
}

func (p *PgSaleStore) Replace(ctx context.Context, id uuid.UUID, items []SaleItem) (*Sale, error) {
	var sale *Sale

	txErr := p.withTransaction(ctx, func(q DBTX) error {
		var err error
		sale, err = scanSale(q.QueryRow(ctx, touchSale, id))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return serrors.ErrSaleNotFound
			}
			return fmt.Errorf("update sale %s: %w", id, err)
		}
		if _, err := q.Exec(ctx, deleteSaleItems, id); err != nil {
			return fmt.Errorf("delete items of sale %s: %w", id, err)
		}
		if err := insertSaleItems(ctx, q, id, items); err != nil {
			return err
		}
		sale.Items = append([]SaleItem(nil), items...)
		return nil
	})

	if txErr != nil {
		return nil, txErr
	}
	return sale, nil
}

// DeleteByID removes the sale, sale_items rows go with it through ON DELETE CASCADE.
func (p *PgSaleStore) DeleteByID(ctx context.Context, id uuid.UUID) error {
	tag, err := p.conn(ctx).Exec(ctx, deleteSale, id)
	if err != nil {
		return fmt.Errorf("delete sale %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return serrors.ErrSaleNotFound
	}
	return nil
}

func insertSaleItems(ctx context.Context, q DBTX, saleID uuid.UUID, items []SaleItem) error {
	batch := &pgx.Batch{}
	for i, it := range items {
		batch.Queue(createSaleItem, saleID, i, it.ProductID, it.Quantity)
	}
	if err := q.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("create items of sale %s: %w", saleID, err)
	}
	return nil
}

func scanSale(row pgx.Row) (*Sale, error) {
	var s Sale
	if err := row.Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}
