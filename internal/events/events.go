// Package events defines the activity events published to Kafka and
// consumed by the notifier and the activity feed projector.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	TypeOrderPlaced     = "OrderPlaced"
	TypePaymentRecorded = "PaymentRecorded"
	TypeBookAdded       = "BookAdded"
	TypeListPublished   = "ListPublished"
	TypeBooksBorrowed   = "BooksBorrowed"
)

// Envelope wraps an event payload with identity and timing metadata.
type Envelope struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// New builds an envelope around a payload.
func New(eventType string, payload any) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		ID:        uuid.New().String(),
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now(),
	}, nil
}

// Publisher is implemented by the Kafka producer. Domain services treat a
// nil Publisher as "events disabled".
type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
}

type PlacedItem struct {
	BookID string  `json:"book_id"`
	Title  string  `json:"title"`
	Price  float64 `json:"price"`
}

type OrderPlaced struct {
	OrderID     string       `json:"order_id"`
	Username    string       `json:"username"`
	TotalAmount float64      `json:"total_amount"`
	CopyType    string       `json:"copy_type"`
	Items       []PlacedItem `json:"items"`
}

type PaymentRecorded struct {
	PaymentID     string  `json:"payment_id"`
	BillingID     string  `json:"billing_id"`
	Username      string  `json:"username"`
	Amount        float64 `json:"amount"`
	ReceiptNumber string  `json:"receipt_number"`
	Settled       bool    `json:"settled"`
}

type BookAdded struct {
	BookID string `json:"book_id"`
	Title  string `json:"title"`
	Author string `json:"author"`
}

type ListPublished struct {
	Slug  string `json:"slug"`
	Title string `json:"title"`
	Owner string `json:"owner"`
}

type BooksBorrowed struct {
	Username string   `json:"username"`
	BookIDs  []string `json:"book_ids"`
}
