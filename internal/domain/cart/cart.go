// Package cart maintains each user's cart ledger and borrow history.
// Cart entries snapshot the book's title and price at add time; the
// snapshot wins over later catalog changes.
package cart

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/example/bookshelf/internal/domain/catalog"
	"github.com/example/bookshelf/internal/events"
	"github.com/example/bookshelf/internal/fault"
	"github.com/example/bookshelf/internal/infrastructure/store"
)

// Entry is a single cart line: a book reference with snapshotted
// title and price.
type Entry struct {
	BookID  string    `json:"book_id"`
	Title   string    `json:"title"`
	Price   float64   `json:"price"`
	AddedAt time.Time `json:"added_at"`
}

// BorrowedBook is one record in a user's borrow history.
type BorrowedBook struct {
	BookID    string    `json:"book_id"`
	Title     string    `json:"title"`
	TakenDate time.Time `json:"taken_date"`
}

// ledger is the per-user cart document, keyed by username.
type ledger struct {
	Username string         `json:"username"`
	Items    []Entry        `json:"items"`
	Borrowed []BorrowedBook `json:"borrowed"`
}

// ListedEntry is a cart entry enriched with live catalog fields. Title
// and price come from the snapshot; author, genre and image are live.
type ListedEntry struct {
	BookID string  `json:"book_id"`
	Title  string  `json:"title"`
	Author string  `json:"author"`
	Genre  string  `json:"genre"`
	Price  float64 `json:"price"`
	Image  string  `json:"image"`
}

// BorrowReport is one row of the cross-user borrowed report.
type BorrowReport struct {
	BookID    string    `json:"book_id"`
	Title     string    `json:"title"`
	Author    string    `json:"author"`
	Borrower  string    `json:"borrower"`
	TakenDate time.Time `json:"taken_date"`
}

type Service struct {
	store     store.DocumentStore
	publisher events.Publisher
}

func NewService(st store.DocumentStore, publisher events.Publisher) *Service {
	return &Service{store: st, publisher: publisher}
}

// Add puts a book in the user's cart. Adding a book that is already in
// the cart is rejected, not merged. Caller-supplied title/price win over
// the catalog's; when neither yields a price, a pseudo-random filler in
// [100,600) is used. The filler keeps legacy carts priceable and is a
// documented policy, not an accident.
func (s *Service) Add(ctx context.Context, username, bookID, title string, price float64) error {
	if username == "" || bookID == "" {
		return fmt.Errorf("%w: username and book id are required", fault.ErrInvalidArgument)
	}

	led, exists, err := s.load(ctx, username)
	if err != nil {
		return err
	}
	for _, entry := range led.Items {
		if entry.BookID == bookID {
			return fmt.Errorf("%w: book already in cart", fault.ErrConflict)
		}
	}

	var book catalog.Book
	if err := s.store.FindByID(ctx, store.CollectionBooks, bookID, &book); err != nil {
		if err == store.ErrNotFound {
			return fmt.Errorf("%w: book not found", fault.ErrNotFound)
		}
		return fmt.Errorf("%w: %v", fault.ErrInternal, err)
	}

	if title == "" {
		title = book.Title
	}
	if price == 0 {
		price = book.Price
	}
	if price == 0 {
		price = fallbackPrice()
	}

	led.Items = append(led.Items, Entry{
		BookID:  bookID,
		Title:   title,
		Price:   price,
		AddedAt: time.Now(),
	})
	return s.save(ctx, username, led, exists)
}

// Remove deletes exactly one cart entry.
func (s *Service) Remove(ctx context.Context, username, bookID string) error {
	if username == "" || bookID == "" {
		return fmt.Errorf("%w: username and book id are required", fault.ErrInvalidArgument)
	}

	led, exists, err := s.load(ctx, username)
	if err != nil {
		return err
	}

	index := -1
	for i, entry := range led.Items {
		if entry.BookID == bookID {
			index = i
			break
		}
	}
	if index == -1 {
		return fmt.Errorf("%w: book not found in cart", fault.ErrNotFound)
	}

	led.Items = append(led.Items[:index], led.Items[index+1:]...)
	return s.save(ctx, username, led, exists)
}

// List returns the user's cart enriched with live catalog fields.
// Entries whose book has been deleted from the catalog are omitted.
func (s *Service) List(ctx context.Context, username string) ([]ListedEntry, error) {
	led, _, err := s.load(ctx, username)
	if err != nil {
		return nil, err
	}

	listed := make([]ListedEntry, 0, len(led.Items))
	for _, entry := range led.Items {
		var book catalog.Book
		if err := s.store.FindByID(ctx, store.CollectionBooks, entry.BookID, &book); err != nil {
			if err == store.ErrNotFound {
				continue
			}
			return nil, fmt.Errorf("%w: %v", fault.ErrInternal, err)
		}

		title := entry.Title
		if title == "" {
			title = book.Title
		}
		price := entry.Price
		if price == 0 {
			price = book.Price
		}
		if price == 0 {
			price = fallbackPrice()
		}
		image := book.Image
		if image == "" {
			image = fmt.Sprintf("https://picsum.photos/seed/%s/240/340", book.Title)
		}

		listed = append(listed, ListedEntry{
			BookID: entry.BookID,
			Title:  title,
			Author: book.Author,
			Genre:  book.Genre,
			Price:  price,
			Image:  image,
		})
	}
	return listed, nil
}

// RecordPurchase empties the cart after a successful buy checkout.
func (s *Service) RecordPurchase(ctx context.Context, username string) error {
	led, exists, err := s.load(ctx, username)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}
	led.Items = nil
	return s.save(ctx, username, led, true)
}

// RecordBorrow empties the cart and appends each entry to the user's
// borrow history. Used by the library-style checkout.
func (s *Service) RecordBorrow(ctx context.Context, username string) error {
	led, exists, err := s.load(ctx, username)
	if err != nil {
		return err
	}

	now := time.Now()
	bookIDs := make([]string, 0, len(led.Items))
	for _, entry := range led.Items {
		var book catalog.Book
		if err := s.store.FindByID(ctx, store.CollectionBooks, entry.BookID, &book); err != nil {
			if err == store.ErrNotFound {
				return fmt.Errorf("%w: book not found", fault.ErrNotFound)
			}
			return fmt.Errorf("%w: %v", fault.ErrInternal, err)
		}
		led.Borrowed = append(led.Borrowed, BorrowedBook{
			BookID:    entry.BookID,
			Title:     book.Title,
			TakenDate: now,
		})
		bookIDs = append(bookIDs, entry.BookID)
	}
	led.Items = nil

	if err := s.save(ctx, username, led, exists); err != nil {
		return err
	}

	if s.publisher != nil && len(bookIDs) > 0 {
		event, err := events.New(events.TypeBooksBorrowed, events.BooksBorrowed{
			Username: username,
			BookIDs:  bookIDs,
		})
		if err == nil {
			_ = s.publisher.Publish(ctx, username, event)
		}
	}
	return nil
}

// Return removes books from the user's borrow history.
func (s *Service) Return(ctx context.Context, username string, bookIDs []string) error {
	if username == "" || len(bookIDs) == 0 {
		return fmt.Errorf("%w: username and book ids are required", fault.ErrInvalidArgument)
	}

	led, exists, err := s.load(ctx, username)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: user has no borrow history", fault.ErrNotFound)
	}

	returning := make(map[string]bool, len(bookIDs))
	for _, id := range bookIDs {
		returning[id] = true
	}

	kept := led.Borrowed[:0]
	removed := 0
	for _, b := range led.Borrowed {
		if returning[b.BookID] {
			removed++
			continue
		}
		kept = append(kept, b)
	}
	if removed == 0 {
		return fmt.Errorf("%w: no borrowed books match the given ids", fault.ErrNotFound)
	}

	led.Borrowed = kept
	return s.save(ctx, username, led, true)
}

// BorrowHistory returns the user's borrow history.
func (s *Service) BorrowHistory(ctx context.Context, username string) ([]BorrowedBook, error) {
	led, _, err := s.load(ctx, username)
	if err != nil {
		return nil, err
	}
	return led.Borrowed, nil
}

// BorrowedAll reports every outstanding borrow across all users.
func (s *Service) BorrowedAll(ctx context.Context) ([]BorrowReport, error) {
	var ledgers []ledger
	if err := s.store.Find(ctx, store.CollectionCarts, nil, &ledgers); err != nil {
		return nil, fmt.Errorf("%w: %v", fault.ErrInternal, err)
	}

	reports := make([]BorrowReport, 0)
	for _, led := range ledgers {
		for _, b := range led.Borrowed {
			report := BorrowReport{
				BookID:    b.BookID,
				Title:     "Unknown",
				Author:    "Unknown",
				Borrower:  led.Username,
				TakenDate: b.TakenDate,
			}
			var book catalog.Book
			if err := s.store.FindByID(ctx, store.CollectionBooks, b.BookID, &book); err == nil {
				report.Title = book.Title
				report.Author = book.Author
			}
			reports = append(reports, report)
		}
	}
	return reports, nil
}

func (s *Service) load(ctx context.Context, username string) (*ledger, bool, error) {
	var led ledger
	err := s.store.FindByID(ctx, store.CollectionCarts, username, &led)
	if err == store.ErrNotFound {
		return &ledger{Username: username}, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", fault.ErrInternal, err)
	}
	return &led, true, nil
}

func (s *Service) save(ctx context.Context, username string, led *ledger, exists bool) error {
	var err error
	if exists {
		err = s.store.Update(ctx, store.CollectionCarts, username, led)
	} else {
		err = s.store.Insert(ctx, store.CollectionCarts, username, led)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", fault.ErrInternal, err)
	}
	return nil
}

// fallbackPrice fills in a price when neither the caller nor the catalog
// supplies one.
func fallbackPrice() float64 {
	return float64(rand.Intn(500) + 100)
}
