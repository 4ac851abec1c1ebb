// Package order handles order placement, listing and the softcopy
// download authorization rule.
package order

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"strconv"
	"time"

	"github.com/example/bookshelf/internal/domain/catalog"
	"github.com/example/bookshelf/internal/events"
	"github.com/example/bookshelf/internal/fault"
	"github.com/example/bookshelf/internal/infrastructure/store"
)

const (
	StatusPlaced = "PLACED"

	PaymentPending   = "pending"
	PaymentCompleted = "completed"
	PaymentFailed    = "failed"

	maxIDAttempts = 5
)

// Line is a single order line. Quantity is always 1 in every current
// flow.
type Line struct {
	Title    string  `json:"title"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
	CopyType string  `json:"copy_type"`
	BookID   string  `json:"book_id"`
}

// Order is an immutable purchase record.
type Order struct {
	OrderID         string    `json:"order_id"`
	Username        string    `json:"username"`
	Items           []Line    `json:"items"`
	TotalAmount     float64   `json:"total_amount"`
	PaymentMethod   string    `json:"payment_method"`
	PaymentStatus   string    `json:"payment_status"`
	Status          string    `json:"status"`
	BookIDs         []string  `json:"book_ids"`
	CopyType        string    `json:"copy_type"`
	CustomerName    string    `json:"customer_name,omitempty"`
	CustomerPhone   string    `json:"customer_phone,omitempty"`
	DeliveryAddress string    `json:"delivery_address,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

type Service struct {
	store     store.DocumentStore
	publisher events.Publisher
}

func NewService(st store.DocumentStore, publisher events.Publisher) *Service {
	return &Service{store: st, publisher: publisher}
}

// PlaceInput carries the order placement request.
type PlaceInput struct {
	Username        string
	BookIDs         []string
	PaymentMethod   string
	PaymentStatus   string
	CopyType        string
	TotalAmount     float64 // 0 means "compute from lines"
	CustomerName    string
	CustomerPhone   string
	DeliveryAddress string
}

// Place creates an order for the resolvable subset of the requested
// books. Ids that do not resolve are dropped; only when none resolve is
// the order rejected. This lenient-match policy is deliberate: the
// caller sees the resolved lines in the result and can detect drops.
func (s *Service) Place(ctx context.Context, in PlaceInput) (*Order, error) {
	if in.Username == "" || len(in.BookIDs) == 0 {
		return nil, fmt.Errorf("%w: username and book ids are required", fault.ErrInvalidArgument)
	}

	copyType := in.CopyType
	if copyType == "" {
		copyType = string(catalog.CopyHardcopy)
	}
	if copyType != string(catalog.CopyHardcopy) && copyType != string(catalog.CopySoftcopy) {
		return nil, fmt.Errorf("%w: unknown copy type %q", fault.ErrInvalidArgument, copyType)
	}

	paymentStatus := in.PaymentStatus
	if paymentStatus == "" {
		paymentStatus = PaymentPending
	}
	if paymentStatus != PaymentPending && paymentStatus != PaymentCompleted && paymentStatus != PaymentFailed {
		return nil, fmt.Errorf("%w: unknown payment status %q", fault.ErrInvalidArgument, paymentStatus)
	}

	var books []catalog.Book
	if err := s.store.Find(ctx, store.CollectionBooks, store.Filter{store.In("id", in.BookIDs...)}, &books); err != nil {
		return nil, fmt.Errorf("%w: %v", fault.ErrInternal, err)
	}
	if len(books) == 0 {
		return nil, fmt.Errorf("%w: no books found for purchase", fault.ErrNotFound)
	}

	lines := make([]Line, 0, len(books))
	var calculated float64
	for _, b := range books {
		lines = append(lines, Line{
			Title:    b.Title,
			Price:    b.Price,
			Quantity: 1,
			CopyType: copyType,
			BookID:   b.ID,
		})
		calculated += b.Price
	}

	total := in.TotalAmount
	if total == 0 {
		total = calculated
	}

	method := in.PaymentMethod
	if method == "" {
		method = "Online Payment"
	}

	ord := &Order{
		Username:        in.Username,
		Items:           lines,
		TotalAmount:     total,
		PaymentMethod:   method,
		PaymentStatus:   paymentStatus,
		Status:          StatusPlaced,
		BookIDs:         in.BookIDs,
		CopyType:        copyType,
		CustomerName:    in.CustomerName,
		CustomerPhone:   in.CustomerPhone,
		DeliveryAddress: in.DeliveryAddress,
		CreatedAt:       time.Now(),
	}

	// The id embeds a timestamp plus randomness; on the rare collision
	// a fresh id is generated and the insert retried.
	inserted := false
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		ord.OrderID = generateOrderID()
		err := s.store.Insert(ctx, store.CollectionOrders, ord.OrderID, ord)
		if err == nil {
			inserted = true
			break
		}
		if err != store.ErrDuplicate {
			return nil, fmt.Errorf("%w: %v", fault.ErrInternal, err)
		}
	}
	if !inserted {
		return nil, fmt.Errorf("%w: could not allocate a unique order id", fault.ErrInternal)
	}

	if s.publisher != nil {
		placed := make([]events.PlacedItem, 0, len(lines))
		for _, line := range lines {
			placed = append(placed, events.PlacedItem{
				BookID: line.BookID,
				Title:  line.Title,
				Price:  line.Price,
			})
		}
		event, err := events.New(events.TypeOrderPlaced, events.OrderPlaced{
			OrderID:     ord.OrderID,
			Username:    ord.Username,
			TotalAmount: ord.TotalAmount,
			CopyType:    ord.CopyType,
			Items:       placed,
		})
		if err == nil {
			_ = s.publisher.Publish(ctx, ord.OrderID, event)
		}
	}

	return ord, nil
}

// ListByUser returns the user's orders, newest first.
func (s *Service) ListByUser(ctx context.Context, username string) ([]Order, error) {
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", fault.ErrInvalidArgument)
	}

	var orders []Order
	if err := s.store.Find(ctx, store.CollectionOrders, store.Filter{store.Eq("username", username)}, &orders); err != nil {
		return nil, fmt.Errorf("%w: %v", fault.ErrInternal, err)
	}
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
	return orders, nil
}

// AuthorizeDownload checks that the user owns a completed softcopy order
// containing the book, and returns the book whose digital asset may be
// served. Ownership failures are Forbidden; a missing book or asset is
// NotFound.
func (s *Service) AuthorizeDownload(ctx context.Context, username, bookID string) (*catalog.Book, error) {
	if username == "" || bookID == "" {
		return nil, fmt.Errorf("%w: username and book id are required", fault.ErrInvalidArgument)
	}

	var orders []Order
	filter := store.Filter{
		store.Eq("username", username),
		store.Eq("copy_type", string(catalog.CopySoftcopy)),
		store.Eq("payment_status", PaymentCompleted),
	}
	if err := s.store.Find(ctx, store.CollectionOrders, filter, &orders); err != nil {
		return nil, fmt.Errorf("%w: %v", fault.ErrInternal, err)
	}

	authorized := false
	for _, ord := range orders {
		for _, line := range ord.Items {
			if line.BookID == bookID {
				authorized = true
				break
			}
		}
	}
	if !authorized {
		return nil, fmt.Errorf("%w: no completed softcopy order for this book", fault.ErrForbidden)
	}

	var book catalog.Book
	if err := s.store.FindByID(ctx, store.CollectionBooks, bookID, &book); err != nil {
		if err == store.ErrNotFound {
			return nil, fmt.Errorf("%w: book not found", fault.ErrNotFound)
		}
		return nil, fmt.Errorf("%w: %v", fault.ErrInternal, err)
	}
	if book.PDFURL == "" {
		return nil, fmt.Errorf("%w: no digital copy available for this book", fault.ErrNotFound)
	}
	return &book, nil
}

const base36Upper = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// generateOrderID builds a human-readable, roughly sortable id:
// ORD-YYYYMMDD-<last 6 digits of epoch ms>-<4 random base36 chars>.
func generateOrderID() string {
	now := time.Now()
	ms := strconv.FormatInt(now.UnixMilli(), 10)
	tail := ms[len(ms)-6:]

	suffix := make([]byte, 4)
	for i := range suffix {
		suffix[i] = base36Upper[rand.Intn(len(base36Upper))]
	}

	return fmt.Sprintf("ORD-%s-%s-%s", now.Format("20060102"), tail, suffix)
}
