// Package messaging defines the event publishing contract shared by the services.
package messaging

import (
	"context"
)

// Subjects of the SALES JetStream stream.
const (
	SalesStream            = "SALES"
	SalesSubjects          = "sales.>"
	SalesRegisteredSubject = "sales.registered"
	SalesReplacedSubject   = "sales.replaced"
	SalesCancelledSubject  = "sales.cancelled"
)

type Event interface {
	Subject() string
	Payload() ([]byte, error)
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NopPublisher drops every event. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
