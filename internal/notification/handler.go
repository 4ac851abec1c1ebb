// Package notification turns consumed events into customer-facing
// emails. User accounts live outside this system, so mail goes to the
// configured operations address.
package notification

import (
	"context"
	"encoding/json"
	"log"

	"github.com/example/bookshelf/internal/email"
	"github.com/example/bookshelf/internal/events"
)

// Sender is the email surface the handler needs.
type Sender interface {
	SendOrderConfirmation(to, orderID string, total float64, items []email.OrderLine) error
	SendPaymentReceipt(to, receiptNumber, billingID string, amount float64, settled bool) error
}

// Handler processes events for sending notifications
type Handler struct {
	sender Sender
	to     string
}

// NewHandler creates a new notification handler
func NewHandler(sender Sender, to string) *Handler {
	return &Handler{sender: sender, to: to}
}

// HandleEvent processes an event from Kafka
func (h *Handler) HandleEvent(ctx context.Context, key, value []byte) error {
	var envelope events.Envelope
	if err := json.Unmarshal(value, &envelope); err != nil {
		log.Printf("[Notifier] Failed to unmarshal event: %v", err)
		return err
	}

	switch envelope.Type {
	case events.TypeOrderPlaced:
		return h.handleOrderPlaced(envelope)
	case events.TypePaymentRecorded:
		return h.handlePaymentRecorded(envelope)
	}
	return nil
}

func (h *Handler) handleOrderPlaced(envelope events.Envelope) error {
	var e events.OrderPlaced
	if err := json.Unmarshal(envelope.Data, &e); err != nil {
		log.Printf("[Notifier] Failed to unmarshal OrderPlaced event: %v", err)
		return err
	}

	log.Printf("[Notifier] Processing OrderPlaced for order %s, user %s", e.OrderID, e.Username)

	lines := make([]email.OrderLine, 0, len(e.Items))
	for _, item := range e.Items {
		lines = append(lines, email.OrderLine{Title: item.Title, Price: item.Price})
	}

	if err := h.sender.SendOrderConfirmation(h.to, e.OrderID, e.TotalAmount, lines); err != nil {
		log.Printf("[Notifier] Failed to send order confirmation for %s: %v", e.OrderID, err)
		return err
	}
	log.Printf("[Notifier] Order confirmation sent for %s", e.OrderID)
	return nil
}

func (h *Handler) handlePaymentRecorded(envelope events.Envelope) error {
	var e events.PaymentRecorded
	if err := json.Unmarshal(envelope.Data, &e); err != nil {
		log.Printf("[Notifier] Failed to unmarshal PaymentRecorded event: %v", err)
		return err
	}

	log.Printf("[Notifier] Processing PaymentRecorded %s for billing %s", e.PaymentID, e.BillingID)

	if err := h.sender.SendPaymentReceipt(h.to, e.ReceiptNumber, e.BillingID, e.Amount, e.Settled); err != nil {
		log.Printf("[Notifier] Failed to send payment receipt %s: %v", e.ReceiptNumber, err)
		return err
	}
	log.Printf("[Notifier] Payment receipt sent for %s", e.ReceiptNumber)
	return nil
}
