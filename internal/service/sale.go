package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"

	perrors "github.com/abgdnv/storemanager/internal/errors"
	"github.com/abgdnv/storemanager/internal/store"
	"github.com/abgdnv/storemanager/pkg/logger"
	"github.com/abgdnv/storemanager/pkg/messaging"
	"github.com/abgdnv/storemanager/pkg/messaging/events"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
)

const meterName = "store-manager"

// SaleService registers sales and keeps product stock consistent with them.
// Every operation runs in a single transaction spanning products and sales.
type SaleService interface {
	// Register validates every item, debits stock for each and records the sale.
	// Returns ErrWrongSaleItems for a malformed payload or unknown product,
	// ErrStockProblem if any item exceeds the available stock. Nothing is written on failure.
	Register(ctx context.Context, items []SaleItemInput) (*SaleDto, error)

	// FindAll returns all sales in creation order.
	FindAll(ctx context.Context) ([]SaleDto, error)

	// FindByID returns a single sale.
	// Returns ErrWrongSaleID for a malformed id and ErrSaleNotFoundResponse if no sale exists.
	FindByID(ctx context.Context, id string) (*SaleDto, error)

	// Replace credits the stock of the current items back, debits the new ones
	// and stores them under the same sale id. Only the net difference per product is written.
	// Returns ErrStockLimit if a credit would push a product past the maximum quantity.
	Replace(ctx context.Context, id string, items []SaleItemInput) (*SaleDto, error)

	// Cancel credits the stock of every item back and removes the sale.
	// Returns the cancelled sale, or ErrStockLimit if a credit would push a product
	// past the maximum quantity, in which case nothing changes.
	Cancel(ctx context.Context, id string) (*SaleDto, error)
}

// SaleDto represents the data transfer object for a sale.
type SaleDto struct {
	ID        string        `json:"_id"`
	ItemsSold []SaleItemDto `json:"itemsSold"`
}

// SaleItemDto is one line item of a SaleDto.
type SaleItemDto struct {
	ProductID string `json:"productId"`
	Quantity  int32  `json:"quantity"`
}

// SaleProcessor implements SaleService.
type SaleProcessor struct {
	tx        store.TxManager
	products  store.ProductStore
	sales     store.SaleStore
	publisher messaging.Publisher

	registered      metric.Int64Counter
	replaced        metric.Int64Counter
	cancelled       metric.Int64Counter
	stockRejections metric.Int64Counter
}

// NewSaleService creates a new SaleProcessor.
func NewSaleService(tx store.TxManager, products store.ProductStore, sales store.SaleStore, publisher messaging.Publisher) *SaleProcessor {
	if publisher == nil {
		publisher = messaging.NopPublisher{}
	}
	meter := otel.Meter(meterName)
	return &SaleProcessor{
		tx:              tx,
		products:        products,
		sales:           sales,
		publisher:       publisher,
		registered:      mustCounter(meter, "sales_registered", "Total number of registered sales"),
		replaced:        mustCounter(meter, "sales_replaced", "Total number of replaced sales"),
		cancelled:       mustCounter(meter, "sales_cancelled", "Total number of cancelled sales"),
		stockRejections: mustCounter(meter, "stock_rejections", "Total number of sales rejected for insufficient stock"),
	}
}

func mustCounter(meter metric.Meter, name, description string) metric.Int64Counter {
	counter, err := meter.Int64Counter(name, metric.WithDescription(description))
	if err != nil {
		panic(fmt.Sprintf("failed to create %s counter: %v", name, err))
	}
	return counter
}

func (s *SaleProcessor) Register(ctx context.Context, items []SaleItemInput) (*SaleDto, error) {
	cmd, err := validateSaleItems(items)
	if err != nil {
		return nil, err
	}
	storeItems := toStoreItems(cmd.Items)

	var sale *store.Sale
	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.applyStock(ctx, netChanges(nil, storeItems)); err != nil {
			return err
		}
		var err error
		sale, err = s.sales.Create(ctx, storeItems)
		if err != nil {
			return fmt.Errorf("failed to create sale: %w", err)
		}
		return nil
	})
	if err != nil {
		s.countRejection(ctx, err)
		return nil, err
	}

	ctx = logger.AppendCtx(ctx, slog.String("sale_id", sale.ID.String()))
	s.publish(ctx, events.NewSaleRegistered(sale.ID, toEventItems(sale.Items)))
	s.registered.Add(ctx, 1)

	return toSaleDto(sale), nil
}

func (s *SaleProcessor) FindAll(ctx context.Context) ([]SaleDto, error) {
	sales, err := s.sales.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch sales: %w", err)
	}
	dtos := make([]SaleDto, len(sales))
	for i := range sales {
		dtos[i] = *toSaleDto(&sales[i])
	}
	return dtos, nil
}

func (s *SaleProcessor) FindByID(ctx context.Context, id string) (*SaleDto, error) {
	saleID, err := parseID(id, perrors.ErrWrongSaleID)
	if err != nil {
		return nil, err
	}
	sale, err := s.sales.FindByID(ctx, saleID)
	if err != nil {
		return nil, saleError(err, saleID)
	}
	return toSaleDto(sale), nil
}

func (s *SaleProcessor) Replace(ctx context.Context, id string, items []SaleItemInput) (*SaleDto, error) {
	saleID, err := parseID(id, perrors.ErrWrongSaleID)
	if err != nil {
		return nil, err
	}
	ctx = logger.AppendCtx(ctx, slog.String("sale_id", saleID.String()))

	var sale *store.Sale
	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		current, err := s.sales.FindByID(ctx, saleID)
		if err != nil {
			return saleError(err, saleID)
		}
		cmd, err := validateSaleItems(items)
		if err != nil {
			return err
		}
		newItems := toStoreItems(cmd.Items)

		if err := s.applyStock(ctx, netChanges(current.Items, newItems)); err != nil {
			return err
		}
		sale, err = s.sales.Replace(ctx, saleID, newItems)
		if err != nil {
			return saleError(err, saleID)
		}
		return nil
	})
	if err != nil {
		s.countRejection(ctx, err)
		return nil, err
	}

	s.publish(ctx, events.NewSaleReplaced(sale.ID, toEventItems(sale.Items)))
	s.replaced.Add(ctx, 1)

	return toSaleDto(sale), nil
}

func (s *SaleProcessor) Cancel(ctx context.Context, id string) (*SaleDto, error) {
	saleID, err := parseID(id, perrors.ErrWrongSaleID)
	if err != nil {
		return nil, err
	}
	ctx = logger.AppendCtx(ctx, slog.String("sale_id", saleID.String()))

	var sale *store.Sale
	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		sale, err = s.sales.FindByID(ctx, saleID)
		if err != nil {
			return saleError(err, saleID)
		}
		if err := s.applyStock(ctx, netChanges(sale.Items, nil)); err != nil {
			return err
		}
		if err := s.sales.DeleteByID(ctx, saleID); err != nil {
			return saleError(err, saleID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.NewSaleCancelled(sale.ID, toEventItems(sale.Items)))
	s.cancelled.Add(ctx, 1)

	return toSaleDto(sale), nil
}

// stockChange is the net movement of one product within an operation.
type stockChange struct {
	productID uuid.UUID
	delta     int64
	// sold marks products among the items being sold, those must exist.
	sold bool
}

// netChanges folds credits and debits per product, ordered by product ID so that
// concurrent transactions lock product rows in the same order.
func netChanges(credits, debits []store.SaleItem) []stockChange {
	byProduct := make(map[uuid.UUID]*stockChange, len(credits)+len(debits))
	get := func(id uuid.UUID) *stockChange {
		c, ok := byProduct[id]
		if !ok {
			c = &stockChange{productID: id}
			byProduct[id] = c
		}
		return c
	}
	for _, it := range credits {
		get(it.ProductID).delta += int64(it.Quantity)
	}
	for _, it := range debits {
		c := get(it.ProductID)
		c.delta -= int64(it.Quantity)
		c.sold = true
	}

	out := make([]stockChange, 0, len(byProduct))
	for _, c := range byProduct {
		out = append(out, *c)
	}
	slices.SortFunc(out, func(a, b stockChange) int {
		return bytes.Compare(a.productID[:], b.productID[:])
	})
	return out
}

// applyStock writes every change. The first failing product aborts the caller's transaction.
// Credits to products deleted since the sale are skipped.
func (s *SaleProcessor) applyStock(ctx context.Context, changes []stockChange) error {
	for _, c := range changes {
		if c.delta == 0 && !c.sold {
			continue
		}
		err := s.adjust(ctx, c)
		switch {
		case err == nil:
			continue
		case errors.Is(err, perrors.ErrInsufficientStock):
			slog.WarnContext(ctx, "Insufficient stock", "product_id", c.productID, "requested", -c.delta)
			return fmt.Errorf("%w: product %s: %w", perrors.ErrStockProblem, c.productID, err)
		case errors.Is(err, perrors.ErrStockOverflow):
			slog.WarnContext(ctx, "Stock limit reached", "product_id", c.productID, "restored", c.delta)
			return fmt.Errorf("%w: product %s: %w", perrors.ErrStockLimit, c.productID, err)
		case errors.Is(err, perrors.ErrProductNotFound) && c.sold:
			return fmt.Errorf("%w: product %s: %w", perrors.ErrWrongSaleItems, c.productID, err)
		case errors.Is(err, perrors.ErrProductNotFound):
			slog.WarnContext(ctx, "Product no longer exists, stock not restored", "product_id", c.productID, "quantity", c.delta)
		default:
			return fmt.Errorf("failed to adjust stock of product %s: %w", c.productID, err)
		}
	}
	return nil
}

// adjust applies one change. A zero delta still checks that a sold product exists.
func (s *SaleProcessor) adjust(ctx context.Context, c stockChange) error {
	if c.delta >= math.MinInt32 && c.delta <= math.MaxInt32 {
		_, err := s.products.AdjustQuantity(ctx, c.productID, int32(c.delta))
		return err
	}
	// Repeated items can sum past int32, no stock can cover or hold that.
	if _, err := s.products.FindByID(ctx, c.productID); err != nil {
		return err
	}
	if c.delta < 0 {
		return perrors.ErrInsufficientStock
	}
	return perrors.ErrStockOverflow
}

func (s *SaleProcessor) countRejection(ctx context.Context, err error) {
	if errors.Is(err, perrors.ErrInsufficientStock) {
		s.stockRejections.Add(ctx, 1)
	}
}

// publish sends the event after commit. A failure is logged and does not fail the operation.
func (s *SaleProcessor) publish(ctx context.Context, event events.SaleEvent) {
	carrier := make(propagation.MapCarrier)
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	event.Carrier = carrier
	if err := s.publisher.Publish(ctx, event); err != nil {
		slog.ErrorContext(ctx, "Failed to publish sale event", "subject", event.Subject(), "error", err)
	}
}

func saleError(err error, id uuid.UUID) error {
	if errors.Is(err, perrors.ErrSaleNotFound) {
		return fmt.Errorf("%w: %w", perrors.ErrSaleNotFoundResponse, err)
	}
	return fmt.Errorf("sale %s: %w", id, err)
}

func toStoreItems(items []saleItemCommand) []store.SaleItem {
	out := make([]store.SaleItem, len(items))
	for i, it := range items {
		out[i] = store.SaleItem{
			ProductID: uuid.MustParse(it.ProductID),
			Quantity:  int32(it.Quantity),
		}
	}
	return out
}

func toEventItems(items []store.SaleItem) []events.SaleItem {
	out := make([]events.SaleItem, len(items))
	for i, it := range items {
		out[i] = events.SaleItem{ProductID: it.ProductID, Quantity: it.Quantity}
	}
	return out
}

// toSaleDto converts a store.Sale to a SaleDto.
func toSaleDto(sale *store.Sale) *SaleDto {
	items := make([]SaleItemDto, len(sale.Items))
	for i, it := range sale.Items {
		items[i] = SaleItemDto{ProductID: it.ProductID.String(), Quantity: it.Quantity}
	}
	return &SaleDto{
		ID:        sale.ID.String(),
		ItemsSold: items,
	}
}
