package events

import (
	"encoding/json"
	"time"

	"github.com/abgdnv/storemanager/pkg/messaging"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/propagation"
)

// SaleItem is one line of a sale as carried by sale events.
type SaleItem struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int32     `json:"quantity"`
}

// SaleEvent is published after a sale is registered, replaced or cancelled.
// Carrier holds the trace context of the request that caused it.
type SaleEvent struct {
	subject    string
	ID         uuid.UUID              `json:"event_id"`
	Carrier    propagation.MapCarrier `json:"carrier,omitempty"`
	SaleID     uuid.UUID              `json:"sale_id"`
	Items      []SaleItem             `json:"items"`
	OccurredAt time.Time              `json:"occurred_at"`
}

func NewSaleRegistered(saleID uuid.UUID, items []SaleItem) SaleEvent {
	return newSaleEvent(messaging.SalesRegisteredSubject, saleID, items)
}

func NewSaleReplaced(saleID uuid.UUID, items []SaleItem) SaleEvent {
	return newSaleEvent(messaging.SalesReplacedSubject, saleID, items)
}

func NewSaleCancelled(saleID uuid.UUID, items []SaleItem) SaleEvent {
	return newSaleEvent(messaging.SalesCancelledSubject, saleID, items)
}

func newSaleEvent(subject string, saleID uuid.UUID, items []SaleItem) SaleEvent {
	return SaleEvent{
		subject:    subject,
		ID:         uuid.New(),
		SaleID:     saleID,
		Items:      items,
		OccurredAt: time.Now().UTC(),
	}
}

func (e SaleEvent) Subject() string {
	return e.subject
}

// MsgID lets the stream drop a redelivered publish of the same event.
func (e SaleEvent) MsgID() string {
	return e.ID.String()
}

func (e SaleEvent) Payload() ([]byte, error) {
	return json.Marshal(e)
}
