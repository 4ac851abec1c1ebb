// Package activity projects published events into the recent-activity
// feed shown on the storefront.
package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/example/bookshelf/internal/events"
	"github.com/example/bookshelf/internal/fault"
	"github.com/example/bookshelf/internal/infrastructure/store"
)

// Activity types recorded in the feed.
const (
	TypeOrderPlaced   = "order_placed"
	TypePayment       = "payment"
	TypeBookAdded     = "book_added"
	TypeListPublished = "list_published"
	TypeBorrowed      = "borrowed"
)

// Record is one row of the recent-activity feed.
type Record struct {
	ID           string    `json:"id"`
	Username     string    `json:"username,omitempty"`
	RefID        string    `json:"ref_id"`
	ActivityType string    `json:"activity_type"`
	Timestamp    time.Time `json:"timestamp"`
}

// Projector consumes events and writes activity records.
type Projector struct {
	store store.DocumentStore
}

func NewProjector(st store.DocumentStore) *Projector {
	return &Projector{store: st}
}

// HandleEvent processes a single event from Kafka.
func (p *Projector) HandleEvent(ctx context.Context, key, value []byte) error {
	var envelope events.Envelope
	if err := json.Unmarshal(value, &envelope); err != nil {
		log.Printf("[Activity] Failed to unmarshal event: %v", err)
		return err
	}

	switch envelope.Type {
	case events.TypeOrderPlaced:
		var e events.OrderPlaced
		if err := json.Unmarshal(envelope.Data, &e); err != nil {
			return err
		}
		for _, item := range e.Items {
			if err := p.record(ctx, e.Username, item.BookID, TypeOrderPlaced, envelope.Timestamp); err != nil {
				return err
			}
		}
	case events.TypePaymentRecorded:
		var e events.PaymentRecorded
		if err := json.Unmarshal(envelope.Data, &e); err != nil {
			return err
		}
		return p.record(ctx, e.Username, e.BillingID, TypePayment, envelope.Timestamp)
	case events.TypeBookAdded:
		var e events.BookAdded
		if err := json.Unmarshal(envelope.Data, &e); err != nil {
			return err
		}
		return p.record(ctx, "", e.BookID, TypeBookAdded, envelope.Timestamp)
	case events.TypeListPublished:
		var e events.ListPublished
		if err := json.Unmarshal(envelope.Data, &e); err != nil {
			return err
		}
		return p.record(ctx, e.Owner, e.Slug, TypeListPublished, envelope.Timestamp)
	case events.TypeBooksBorrowed:
		var e events.BooksBorrowed
		if err := json.Unmarshal(envelope.Data, &e); err != nil {
			return err
		}
		for _, bookID := range e.BookIDs {
			if err := p.record(ctx, e.Username, bookID, TypeBorrowed, envelope.Timestamp); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *Projector) record(ctx context.Context, username, refID, activityType string, ts time.Time) error {
	rec := &Record{
		ID:           uuid.New().String(),
		Username:     username,
		RefID:        refID,
		ActivityType: activityType,
		Timestamp:    ts,
	}
	return p.store.Insert(ctx, store.CollectionActivity, rec.ID, rec)
}

// Recent returns the newest activity records, capped at limit.
func Recent(ctx context.Context, st store.DocumentStore, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}

	var records []Record
	if err := st.Find(ctx, store.CollectionActivity, nil, &records); err != nil {
		return nil, fmt.Errorf("%w: %v", fault.ErrInternal, err)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Timestamp.After(records[j].Timestamp)
	})
	if len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}
