// Package billing manages billing records, payments, invoices and late
// fees. Billing is independent of the order mechanism: records are
// created explicitly and settled through payments.
package billing

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/example/bookshelf/internal/events"
	"github.com/example/bookshelf/internal/fault"
	"github.com/example/bookshelf/internal/infrastructure/store"
)

const (
	taxRate        = 0.08
	defaultDueDays = 30

	lateFeePerDay   = 2.0
	lateFeeCapShare = 0.5
)

// Billing record statuses.
const (
	StatusPending   = "pending"
	StatusPaid      = "paid"
	StatusOverdue   = "overdue"
	StatusCancelled = "cancelled"
)

// Billing payment statuses.
const (
	PaymentUnpaid  = "unpaid"
	PaymentPaid    = "paid"
	PaymentPartial = "partial"
)

// Payment row statuses.
const (
	PaymentRowPending   = "pending"
	PaymentRowCompleted = "completed"
	PaymentRowFailed    = "failed"
	PaymentRowRefunded  = "refunded"
)

// Billable item types.
const (
	ItemBook       = "book"
	ItemLateFee    = "late_fee"
	ItemMembership = "membership"
	ItemService    = "service"
)

// Item is a single billed line. TotalPrice is always computed
// server-side from unit price and quantity.
type Item struct {
	ItemType    string     `json:"item_type"`
	ItemID      string     `json:"item_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Quantity    int        `json:"quantity"`
	UnitPrice   float64    `json:"unit_price"`
	TotalPrice  float64    `json:"total_price"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	ReturnDate  *time.Time `json:"return_date,omitempty"`
}

// Address is a billing address.
type Address struct {
	Street  string `json:"street,omitempty"`
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	ZipCode string `json:"zip_code,omitempty"`
	Country string `json:"country,omitempty"`
}

// Record is an invoiceable set of charges against a user.
type Record struct {
	BillingID      string     `json:"billing_id"`
	Username       string     `json:"username"`
	Items          []Item     `json:"items"`
	Subtotal       float64    `json:"subtotal"`
	Tax            float64    `json:"tax"`
	Discount       float64    `json:"discount"`
	TotalAmount    float64    `json:"total_amount"`
	Status         string     `json:"status"`
	PaymentMethod  string     `json:"payment_method"`
	PaymentStatus  string     `json:"payment_status"`
	DueDate        time.Time  `json:"due_date"`
	PaidDate       *time.Time `json:"paid_date,omitempty"`
	Notes          string     `json:"notes,omitempty"`
	InvoiceNumber  string     `json:"invoice_number"`
	BillingAddress *Address   `json:"billing_address,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// Payment is a single settlement event against a billing record.
// Immutable once created.
type Payment struct {
	PaymentID     string    `json:"payment_id"`
	BillingID     string    `json:"billing_id"`
	Username      string    `json:"username"`
	Amount        float64   `json:"amount"`
	PaymentMethod string    `json:"payment_method"`
	PaymentStatus string    `json:"payment_status"`
	TransactionID string    `json:"transaction_id,omitempty"`
	CardLast4     string    `json:"card_last4,omitempty"`
	CardBrand     string    `json:"card_brand,omitempty"`
	PaymentDate   time.Time `json:"payment_date"`
	Notes         string    `json:"notes,omitempty"`
	ReceiptNumber string    `json:"receipt_number"`
}

// Invoice is the customer-facing projection of a billing record.
// Discount is applied here, not at record creation.
type Invoice struct {
	InvoiceNumber string     `json:"invoice_number"`
	BillingDate   time.Time  `json:"billing_date"`
	DueDate       time.Time  `json:"due_date"`
	Username      string     `json:"username"`
	Address       *Address   `json:"address,omitempty"`
	Items         []Item     `json:"items"`
	Subtotal      float64    `json:"subtotal"`
	Tax           float64    `json:"tax"`
	Discount      float64    `json:"discount"`
	TotalAmount   float64    `json:"total_amount"`
	AmountDue     float64    `json:"amount_due"`
	Status        string     `json:"status"`
	PaymentStatus string     `json:"payment_status"`
	PaidDate      *time.Time `json:"paid_date,omitempty"`
}

// Stats summarizes a user's billing records. TotalAmount sums every
// record regardless of status, cancelled and overdue included.
type Stats struct {
	TotalBillings   int     `json:"total_billings"`
	PaidBillings    int     `json:"paid_billings"`
	PendingBillings int     `json:"pending_billings"`
	OverdueBillings int     `json:"overdue_billings"`
	TotalAmount     float64 `json:"total_amount"`
}

type Service struct {
	store     store.DocumentStore
	publisher events.Publisher
}

func NewService(st store.DocumentStore, publisher events.Publisher) *Service {
	return &Service{store: st, publisher: publisher}
}

// ItemInput is one billed line as supplied by the caller. The line
// total is never trusted from the caller.
type ItemInput struct {
	ItemType    string
	ItemID      string
	Title       string
	Description string
	Quantity    int
	UnitPrice   float64
	DueDate     *time.Time
	ReturnDate  *time.Time
}

// CreateInput carries a new billing record request.
type CreateInput struct {
	Username       string
	Items          []ItemInput
	PaymentMethod  string
	BillingAddress *Address
	Notes          string
	DueDate        *time.Time
}

// Create builds a billing record: per-line totals and the 8% tax are
// computed server-side, the due date defaults to 30 days out, and the
// invoice number is assigned exactly once. Discount is zero at creation
// and only applied when the invoice is rendered.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Record, error) {
	if in.Username == "" || len(in.Items) == 0 {
		return nil, fmt.Errorf("%w: username and at least one item are required", fault.ErrInvalidArgument)
	}

	items := make([]Item, 0, len(in.Items))
	var subtotal float64
	for _, it := range in.Items {
		if it.UnitPrice < 0 {
			return nil, fmt.Errorf("%w: unit price must not be negative", fault.ErrInvalidArgument)
		}
		itemType := it.ItemType
		if itemType == "" {
			itemType = ItemBook
		}
		switch itemType {
		case ItemBook, ItemLateFee, ItemMembership, ItemService:
		default:
			return nil, fmt.Errorf("%w: unknown item type %q", fault.ErrInvalidArgument, itemType)
		}
		quantity := it.Quantity
		if quantity <= 0 {
			quantity = 1
		}
		totalPrice := it.UnitPrice * float64(quantity)
		subtotal += totalPrice
		items = append(items, Item{
			ItemType:    itemType,
			ItemID:      it.ItemID,
			Title:       it.Title,
			Description: it.Description,
			Quantity:    quantity,
			UnitPrice:   it.UnitPrice,
			TotalPrice:  totalPrice,
			DueDate:     it.DueDate,
			ReturnDate:  it.ReturnDate,
		})
	}

	tax := subtotal * taxRate

	now := time.Now()
	dueDate := now.AddDate(0, 0, defaultDueDays)
	if in.DueDate != nil {
		dueDate = *in.DueDate
	}

	method := in.PaymentMethod
	if method == "" {
		method = "cash"
	}

	record := &Record{
		BillingID:      uuid.New().String(),
		Username:       in.Username,
		Items:          items,
		Subtotal:       subtotal,
		Tax:            tax,
		Discount:       0,
		TotalAmount:    subtotal + tax,
		Status:         StatusPending,
		PaymentMethod:  method,
		PaymentStatus:  PaymentUnpaid,
		DueDate:        dueDate,
		Notes:          in.Notes,
		InvoiceNumber:  generateInvoiceNumber(),
		BillingAddress: in.BillingAddress,
		CreatedAt:      now,
	}

	if err := s.store.Insert(ctx, store.CollectionBillings, record.BillingID, record); err != nil {
		return nil, fmt.Errorf("%w: %v", fault.ErrInternal, err)
	}
	return record, nil
}

// Get returns a billing record by id.
func (s *Service) Get(ctx context.Context, billingID string) (*Record, error) {
	var record Record
	if err := s.store.FindByID(ctx, store.CollectionBillings, billingID, &record); err != nil {
		if err == store.ErrNotFound {
			return nil, fmt.Errorf("%w: billing record not found", fault.ErrNotFound)
		}
		return nil, fmt.Errorf("%w: %v", fault.ErrInternal, err)
	}
	return &record, nil
}

// ListByUser returns a user's billing records, newest first.
func (s *Service) ListByUser(ctx context.Context, username string) ([]Record, error) {
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", fault.ErrInvalidArgument)
	}

	var records []Record
	if err := s.store.Find(ctx, store.CollectionBillings, store.Filter{store.Eq("username", username)}, &records); err != nil {
		return nil, fmt.Errorf("%w: %v", fault.ErrInternal, err)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records, nil
}

// UpdateStatus sets the record and payment statuses directly (admin
// operation).
func (s *Service) UpdateStatus(ctx context.Context, billingID, status, paymentStatus string) (*Record, error) {
	record, err := s.Get(ctx, billingID)
	if err != nil {
		return nil, err
	}

	if status != "" {
		switch status {
		case StatusPending, StatusPaid, StatusOverdue, StatusCancelled:
			record.Status = status
		default:
			return nil, fmt.Errorf("%w: unknown status %q", fault.ErrInvalidArgument, status)
		}
	}
	if paymentStatus != "" {
		switch paymentStatus {
		case PaymentUnpaid, PaymentPaid, PaymentPartial:
			record.PaymentStatus = paymentStatus
		default:
			return nil, fmt.Errorf("%w: unknown payment status %q", fault.ErrInvalidArgument, paymentStatus)
		}
	}

	if err := s.store.Update(ctx, store.CollectionBillings, billingID, record); err != nil {
		return nil, fmt.Errorf("%w: %v", fault.ErrInternal, err)
	}
	return record, nil
}

// PaymentInput carries a settlement request against a billing record.
type PaymentInput struct {
	BillingID     string
	Amount        float64
	PaymentMethod string
	TransactionID string
	CardLast4     string
	CardBrand     string
	Notes         string
}

// ProcessPayment records a payment and settles the billing record
// against the cumulative amount paid to date: all completed payments
// for the billing id are summed before deciding paid versus partial,
// so repeated partial payments accumulate correctly.
func (s *Service) ProcessPayment(ctx context.Context, in PaymentInput) (*Payment, *Record, error) {
	if in.BillingID == "" {
		return nil, nil, fmt.Errorf("%w: billing id is required", fault.ErrInvalidArgument)
	}
	if in.Amount <= 0 {
		return nil, nil, fmt.Errorf("%w: amount must be positive", fault.ErrInvalidArgument)
	}

	record, err := s.Get(ctx, in.BillingID)
	if err != nil {
		return nil, nil, err
	}

	method := in.PaymentMethod
	if method == "" {
		method = "cash"
	}

	payment := &Payment{
		PaymentID:     uuid.New().String(),
		BillingID:     in.BillingID,
		Username:      record.Username,
		Amount:        in.Amount,
		PaymentMethod: method,
		PaymentStatus: PaymentRowCompleted,
		TransactionID: in.TransactionID,
		CardLast4:     in.CardLast4,
		CardBrand:     in.CardBrand,
		PaymentDate:   time.Now(),
		Notes:         in.Notes,
		ReceiptNumber: generateReceiptNumber(),
	}
	if err := s.store.Insert(ctx, store.CollectionPayments, payment.PaymentID, payment); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", fault.ErrInternal, err)
	}

	paidToDate, err := s.store.SumField(ctx, store.CollectionPayments, store.Filter{
		store.Eq("billing_id", in.BillingID),
		store.Eq("payment_status", PaymentRowCompleted),
	}, "amount")
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", fault.ErrInternal, err)
	}

	settled := paidToDate >= record.TotalAmount
	if settled {
		now := time.Now()
		record.PaymentStatus = PaymentPaid
		record.Status = StatusPaid
		record.PaidDate = &now
	} else {
		record.PaymentStatus = PaymentPartial
	}
	if err := s.store.Update(ctx, store.CollectionBillings, record.BillingID, record); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", fault.ErrInternal, err)
	}

	if s.publisher != nil {
		event, err := events.New(events.TypePaymentRecorded, events.PaymentRecorded{
			PaymentID:     payment.PaymentID,
			BillingID:     payment.BillingID,
			Username:      payment.Username,
			Amount:        payment.Amount,
			ReceiptNumber: payment.ReceiptNumber,
			Settled:       settled,
		})
		if err == nil {
			_ = s.publisher.Publish(ctx, payment.BillingID, event)
		}
	}

	return payment, record, nil
}

// PaymentHistory returns a user's payments, newest first.
func (s *Service) PaymentHistory(ctx context.Context, username string) ([]Payment, error) {
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", fault.ErrInvalidArgument)
	}

	var payments []Payment
	if err := s.store.Find(ctx, store.CollectionPayments, store.Filter{store.Eq("username", username)}, &payments); err != nil {
		return nil, fmt.Errorf("%w: %v", fault.ErrInternal, err)
	}
	sort.Slice(payments, func(i, j int) bool {
		return payments[i].PaymentDate.After(payments[j].PaymentDate)
	})
	return payments, nil
}

// GenerateInvoice projects a billing record into its customer-facing
// invoice. Pure read; nothing is mutated.
func (s *Service) GenerateInvoice(ctx context.Context, billingID string) (*Invoice, error) {
	record, err := s.Get(ctx, billingID)
	if err != nil {
		return nil, err
	}

	return &Invoice{
		InvoiceNumber: record.InvoiceNumber,
		BillingDate:   record.CreatedAt,
		DueDate:       record.DueDate,
		Username:      record.Username,
		Address:       record.BillingAddress,
		Items:         record.Items,
		Subtotal:      record.Subtotal,
		Tax:           record.Tax,
		Discount:      record.Discount,
		TotalAmount:   record.TotalAmount,
		AmountDue:     record.TotalAmount - record.Discount,
		Status:        record.Status,
		PaymentStatus: record.PaymentStatus,
		PaidDate:      record.PaidDate,
	}, nil
}

// CalculateLateFee computes the late fee for a billing record: $2 per
// day late, capped at half the record's total. Pure read.
func (s *Service) CalculateLateFee(ctx context.Context, billingID string) (daysLate int, fee float64, err error) {
	record, err := s.Get(ctx, billingID)
	if err != nil {
		return 0, 0, err
	}

	daysLate = int(time.Since(record.DueDate).Hours() / 24)
	if daysLate > 0 {
		fee = min(float64(daysLate)*lateFeePerDay, record.TotalAmount*lateFeeCapShare)
	}
	return daysLate, fee, nil
}

// Overdue returns all records past due and not yet settled or
// cancelled, oldest due date first.
func (s *Service) Overdue(ctx context.Context) ([]Record, error) {
	var records []Record
	filter := store.Filter{
		store.In("status", StatusPending, StatusOverdue),
		store.Lt("due_date", time.Now()),
	}
	if err := s.store.Find(ctx, store.CollectionBillings, filter, &records); err != nil {
		return nil, fmt.Errorf("%w: %v", fault.ErrInternal, err)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].DueDate.Before(records[j].DueDate)
	})
	return records, nil
}

// UserStats aggregates a user's billing counts and total billed amount.
func (s *Service) UserStats(ctx context.Context, username string) (*Stats, error) {
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", fault.ErrInvalidArgument)
	}

	byUser := store.Filter{store.Eq("username", username)}

	total, err := s.store.Count(ctx, store.CollectionBillings, byUser)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", fault.ErrInternal, err)
	}
	paid, err := s.store.Count(ctx, store.CollectionBillings, append(byUser, store.Eq("payment_status", PaymentPaid)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", fault.ErrInternal, err)
	}
	pending, err := s.store.Count(ctx, store.CollectionBillings, append(byUser, store.Eq("payment_status", PaymentUnpaid)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", fault.ErrInternal, err)
	}
	overdue, err := s.store.Count(ctx, store.CollectionBillings, store.Filter{
		store.Eq("username", username),
		store.In("status", StatusPending, StatusOverdue),
		store.Lt("due_date", time.Now()),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", fault.ErrInternal, err)
	}

	// Deliberately unfiltered by status: the aggregate includes
	// cancelled and overdue records.
	totalAmount, err := s.store.SumField(ctx, store.CollectionBillings, byUser, "total_amount")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", fault.ErrInternal, err)
	}

	return &Stats{
		TotalBillings:   total,
		PaidBillings:    paid,
		PendingBillings: pending,
		OverdueBillings: overdue,
		TotalAmount:     totalAmount,
	}, nil
}

// generateInvoiceNumber builds INV-YYYYMMDD-NNN with a random 3-digit
// suffix. Assigned once at record creation.
func generateInvoiceNumber() string {
	return fmt.Sprintf("INV-%s-%03d", time.Now().Format("20060102"), rand.Intn(1000))
}

// generateReceiptNumber builds RCP-YYYYMMDD-NNN with a random 3-digit
// suffix. Assigned once at payment creation.
func generateReceiptNumber() string {
	return fmt.Sprintf("RCP-%s-%03d", time.Now().Format("20060102"), rand.Intn(1000))
}
