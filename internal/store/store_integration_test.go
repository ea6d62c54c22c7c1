package store

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"os"
	"sync"
	"testing"
	"time"

	serrors "github.com/abgdnv/storemanager/internal/errors"
	"github.com/abgdnv/storemanager/internal/store/migrations"
	"github.com/abgdnv/storemanager/pkg/bootstrap"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const skipIntegrationTests = "STORE_SVC_SKIP_INTEGRATION_TESTS"

// PgStoreSuite is a test suite for the PostgreSQL store implementations.
type PgStoreSuite struct {
	suite.Suite
	pgContainer *postgres.PostgresContainer
	dbPool      *pgxpool.Pool
	products    ProductStore
	sales       SaleStore
	tx          TxManager
	logger      *slog.Logger
	ctx         context.Context
}

// SetupSuite starts a PostgreSQL container and applies the embedded migrations.
func (s *PgStoreSuite) SetupSuite() {
	s.ctx = context.Background()
	var err error
	s.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))

	s.pgContainer, err = postgres.Run(s.ctx,
		"postgres:17.5-alpine",
		postgres.WithDatabase("store_db"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Minute),
		),
		testcontainers.WithWaitStrategy(
			wait.ForListeningPort("5432/tcp"),
		),
	)
	require.NoError(s.T(), err, "Failed to run PostgreSQL container")

	connStr, err := s.pgContainer.ConnectionString(s.ctx, "sslmode=disable")
	require.NoError(s.T(), err, "Failed to get connection string from container")

	s.dbPool, err = bootstrap.NewDbPool(s.ctx, connStr, 30*time.Second)
	require.NoError(s.T(), err, "Failed to create pgxpool")

	require.NoError(s.T(), bootstrap.Migrate(migrations.FS, connStr), "Failed to apply migrations")
	s.logger.Info("Migrations applied for store tests")

	s.products = NewPgProductStore(s.dbPool)
	s.sales = NewPgSaleStore(s.dbPool)
	s.tx = NewPgTxManager(s.dbPool)
}

// TearDownSuite cleans up resources after all tests in the suite have run.
func (s *PgStoreSuite) TearDownSuite() {
	if s.dbPool != nil {
		s.dbPool.Close()
	}
	if s.pgContainer != nil {
		if err := s.pgContainer.Terminate(s.ctx); err != nil {
			s.logger.Warn("failed to terminate PostgreSQL container", "error", err)
		}
	}
}

// SetupTest empties every table before each test.
func (s *PgStoreSuite) SetupTest() {
	_, err := s.dbPool.Exec(s.ctx, "TRUNCATE TABLE sale_items, sales, products RESTART IDENTITY CASCADE")
	require.NoError(s.T(), err, "Failed to truncate tables")
}

// TestPgStoreIntegration runs the PostgreSQL store integration tests.
func TestPgStoreIntegration(t *testing.T) {
	if os.Getenv(skipIntegrationTests) == "1" {
		t.Skip("Skipping integration tests based on " + skipIntegrationTests + " env var")
	}
	suite.Run(t, new(PgStoreSuite))
}

func (s *PgStoreSuite) createProduct(name string, quantity int32) *Product {
	s.T().Helper()
	p, err := s.products.Create(s.ctx, name, quantity)
	require.NoError(s.T(), err, "createProduct helper failed")
	return p
}

func (s *PgStoreSuite) TestProductCRUD() {
	// given
	hammer := s.createProduct("Martelo de Thor", 10)
	suit := s.createProduct("Traje de encolhimento", 20)

	// when
	all, err := s.products.FindAll(s.ctx)

	// then
	require.NoError(s.T(), err)
	require.Len(s.T(), all, 2)
	assert.Equal(s.T(), hammer.ID, all[0].ID)
	assert.Equal(s.T(), suit.ID, all[1].ID)

	found, err := s.products.FindByID(s.ctx, hammer.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), hammer.Name, found.Name)
	assert.Equal(s.T(), int32(10), found.Quantity)
	assert.WithinDuration(s.T(), hammer.CreatedAt, found.CreatedAt, time.Second)

	updated, err := s.products.Update(s.ctx, hammer.ID, "Martelo do Batman", 7)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "Martelo do Batman", updated.Name)
	assert.Equal(s.T(), int32(7), updated.Quantity)

	deleted, err := s.products.DeleteByID(s.ctx, hammer.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "Martelo do Batman", deleted.Name)

	_, err = s.products.FindByID(s.ctx, hammer.ID)
	require.ErrorIs(s.T(), err, serrors.ErrProductNotFound)
	_, err = s.products.DeleteByID(s.ctx, hammer.ID)
	require.ErrorIs(s.T(), err, serrors.ErrProductNotFound)
	_, err = s.products.Update(s.ctx, uuid.New(), "Martelo do Batman", 1)
	require.ErrorIs(s.T(), err, serrors.ErrProductNotFound)
}

func (s *PgStoreSuite) TestProductUniqueName() {
	// given
	s.createProduct("Martelo de Thor", 10)
	suit := s.createProduct("Traje de encolhimento", 20)

	// when
	_, createErr := s.products.Create(s.ctx, "Martelo de Thor", 1)
	_, updateErr := s.products.Update(s.ctx, suit.ID, "Martelo de Thor", 1)

	// then
	require.ErrorIs(s.T(), createErr, serrors.ErrProductExists)
	require.ErrorIs(s.T(), updateErr, serrors.ErrProductExists)
}

func (s *PgStoreSuite) TestAdjustQuantity() {
	testCases := []struct {
		name     string
		initial  int32
		delta    int32
		missing  bool
		wantQty  int32
		expected error
	}{
		{name: "debit within stock", initial: 10, delta: -4, wantQty: 6},
		{name: "debit whole stock", initial: 10, delta: -10, wantQty: 0},
		{name: "credit", initial: 10, delta: 5, wantQty: 15},
		{name: "credit up to max", initial: math.MaxInt32 - 5, delta: 5, wantQty: math.MaxInt32},
		{name: "credit past max", initial: math.MaxInt32, delta: 5, wantQty: math.MaxInt32, expected: serrors.ErrStockOverflow},
		{name: "debit over stock", initial: 10, delta: -11, wantQty: 10, expected: serrors.ErrInsufficientStock},
		{name: "unknown product", initial: 10, delta: -1, missing: true, expected: serrors.ErrProductNotFound},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			s.SetupTest()
			// given
			p := s.createProduct("Martelo de Thor", tc.initial)
			id := p.ID
			if tc.missing {
				id = uuid.New()
			}

			// when
			adjusted, err := s.products.AdjustQuantity(s.ctx, id, tc.delta)

			// then
			if tc.expected != nil {
				require.ErrorIs(s.T(), err, tc.expected)
				require.Nil(s.T(), adjusted)
			} else {
				require.NoError(s.T(), err)
				assert.Equal(s.T(), tc.wantQty, adjusted.Quantity)
			}
			stored, err := s.products.FindByID(s.ctx, p.ID)
			require.NoError(s.T(), err)
			if !tc.missing {
				assert.Equal(s.T(), tc.wantQty, stored.Quantity)
			}
		})
	}
}

func (s *PgStoreSuite) TestAdjustQuantity_Concurrent() {
	// given
	p := s.createProduct("Martelo de Thor", 20)
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0

	// when
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.products.AdjustQuantity(s.ctx, p.ID, -1); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	// then
	assert.Equal(s.T(), 20, succeeded)
	stored, err := s.products.FindByID(s.ctx, p.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), int32(0), stored.Quantity)
}

func (s *PgStoreSuite) TestSaleCRUD() {
	// given
	p1, p2 := uuid.New(), uuid.New()
	items := []SaleItem{{ProductID: p1, Quantity: 2}, {ProductID: p2, Quantity: 1}}

	// when
	created, err := s.sales.Create(s.ctx, items)

	// then
	require.NoError(s.T(), err)
	require.NotEqual(s.T(), uuid.Nil, created.ID)
	assert.Equal(s.T(), items, created.Items)

	found, err := s.sales.FindByID(s.ctx, created.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), items, found.Items, "submission order must be kept")

	replaced, err := s.sales.Replace(s.ctx, created.ID, []SaleItem{{ProductID: p2, Quantity: 5}})
	require.NoError(s.T(), err)
	assert.Equal(s.T(), created.ID, replaced.ID)
	found, err = s.sales.FindByID(s.ctx, created.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), []SaleItem{{ProductID: p2, Quantity: 5}}, found.Items)

	second, err := s.sales.Create(s.ctx, []SaleItem{{ProductID: p1, Quantity: 3}})
	require.NoError(s.T(), err)
	all, err := s.sales.FindAll(s.ctx)
	require.NoError(s.T(), err)
	require.Len(s.T(), all, 2)
	assert.Equal(s.T(), created.ID, all[0].ID)
	assert.Equal(s.T(), []SaleItem{{ProductID: p2, Quantity: 5}}, all[0].Items)
	assert.Equal(s.T(), second.ID, all[1].ID)
	assert.Equal(s.T(), []SaleItem{{ProductID: p1, Quantity: 3}}, all[1].Items)

	require.NoError(s.T(), s.sales.DeleteByID(s.ctx, created.ID))
	_, err = s.sales.FindByID(s.ctx, created.ID)
	require.ErrorIs(s.T(), err, serrors.ErrSaleNotFound)
	require.ErrorIs(s.T(), s.sales.DeleteByID(s.ctx, created.ID), serrors.ErrSaleNotFound)
	_, err = s.sales.Replace(s.ctx, created.ID, []SaleItem{{ProductID: p1, Quantity: 1}})
	require.ErrorIs(s.T(), err, serrors.ErrSaleNotFound)
}

func (s *PgStoreSuite) TestWithTransaction_Rollback() {
	// given
	p := s.createProduct("Martelo de Thor", 10)
	boom := errors.New("boom")

	// when
	err := s.tx.WithTransaction(s.ctx, func(ctx context.Context) error {
		if _, err := s.products.AdjustQuantity(ctx, p.ID, -3); err != nil {
			return err
		}
		if _, err := s.sales.Create(ctx, []SaleItem{{ProductID: p.ID, Quantity: 3}}); err != nil {
			return err
		}
		return boom
	})

	// then
	require.ErrorIs(s.T(), err, boom)
	stored, err := s.products.FindByID(s.ctx, p.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), int32(10), stored.Quantity)
	all, err := s.sales.FindAll(s.ctx)
	require.NoError(s.T(), err)
	assert.Empty(s.T(), all)
}

func (s *PgStoreSuite) TestWithTransaction_Commit() {
	// given
	p := s.createProduct("Martelo de Thor", 10)
	var sale *Sale

	// when
	err := s.tx.WithTransaction(s.ctx, func(ctx context.Context) error {
		if _, err := s.products.AdjustQuantity(ctx, p.ID, -3); err != nil {
			return err
		}
		var err error
		sale, err = s.sales.Create(ctx, []SaleItem{{ProductID: p.ID, Quantity: 3}})
		return err
	})

	// then
	require.NoError(s.T(), err)
	stored, err := s.products.FindByID(s.ctx, p.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), int32(7), stored.Quantity)
	found, err := s.sales.FindByID(s.ctx, sale.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), []SaleItem{{ProductID: p.ID, Quantity: 3}}, found.Items)
}
