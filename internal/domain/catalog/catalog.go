// Package catalog manages the book inventory: admin CRUD plus the
// browse-side search, filter, recommendation and quote operations.
package catalog

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/example/bookshelf/internal/events"
	"github.com/example/bookshelf/internal/fault"
	"github.com/example/bookshelf/internal/infrastructure/store"
)

// CopyType is the availability of a book: physical, digital or both.
type CopyType string

const (
	CopyHardcopy CopyType = "hardcopy"
	CopySoftcopy CopyType = "softcopy"
	CopyBoth     CopyType = "both"
)

const searchLimit = 4

// Book is a catalog record.
type Book struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Author      string    `json:"author"`
	Price       float64   `json:"price"`
	Genre       string    `json:"genre"`
	Image       string    `json:"image"`
	Description string    `json:"description"`
	PDFURL      string    `json:"pdf_url"`
	CopyType    CopyType  `json:"copy_type"`
	CreatedAt   time.Time `json:"created_at"`
}

// Quote is a quoted price for a book.
type Quote struct {
	BookID string  `json:"book_id"`
	Title  string  `json:"title"`
	Price  float64 `json:"price"`
}

type Service struct {
	store     store.DocumentStore
	publisher events.Publisher
}

func NewService(st store.DocumentStore, publisher events.Publisher) *Service {
	return &Service{store: st, publisher: publisher}
}

// AddInput carries the fields for a new book.
type AddInput struct {
	Title       string
	Author      string
	Price       float64
	Genre       string
	Image       string
	Description string
	PDFURL      string
	CopyType    CopyType
}

// Add creates a book. A book is identified by its (title, author) pair;
// adding an existing pair is rejected.
func (s *Service) Add(ctx context.Context, in AddInput) (*Book, error) {
	if in.Title == "" || in.Author == "" || in.Genre == "" {
		return nil, fmt.Errorf("%w: title, author, price and genre are required", fault.ErrInvalidArgument)
	}
	if in.Price < 0 {
		return nil, fmt.Errorf("%w: price must not be negative", fault.ErrInvalidArgument)
	}

	existing, err := s.count(ctx, store.Filter{
		store.Eq("title", in.Title),
		store.Eq("author", in.Author),
	})
	if err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, fmt.Errorf("%w: book with this title and author already exists", fault.ErrConflict)
	}

	copyType := in.CopyType
	if copyType == "" {
		copyType = CopyHardcopy
	}
	if copyType != CopyHardcopy && copyType != CopySoftcopy && copyType != CopyBoth {
		return nil, fmt.Errorf("%w: unknown copy type %q", fault.ErrInvalidArgument, copyType)
	}

	book := &Book{
		ID:          uuid.New().String(),
		Title:       in.Title,
		Author:      in.Author,
		Price:       in.Price,
		Genre:       in.Genre,
		Image:       in.Image,
		Description: in.Description,
		PDFURL:      in.PDFURL,
		CopyType:    copyType,
		CreatedAt:   time.Now(),
	}
	if err := s.store.Insert(ctx, store.CollectionBooks, book.ID, book); err != nil {
		return nil, fmt.Errorf("%w: %v", fault.ErrInternal, err)
	}

	if s.publisher != nil {
		event, err := events.New(events.TypeBookAdded, events.BookAdded{
			BookID: book.ID,
			Title:  book.Title,
			Author: book.Author,
		})
		if err == nil {
			_ = s.publisher.Publish(ctx, book.ID, event)
		}
	}

	return book, nil
}

// Get returns a book by id.
func (s *Service) Get(ctx context.Context, id string) (*Book, error) {
	var book Book
	if err := s.store.FindByID(ctx, store.CollectionBooks, id, &book); err != nil {
		if err == store.ErrNotFound {
			return nil, fmt.Errorf("%w: book not found", fault.ErrNotFound)
		}
		return nil, fmt.Errorf("%w: %v", fault.ErrInternal, err)
	}
	return &book, nil
}

// List returns every book, newest first.
func (s *Service) List(ctx context.Context) ([]Book, error) {
	return s.find(ctx, nil)
}

// UpdateInput carries optional changes to a book. Nil fields are untouched.
type UpdateInput struct {
	Title       *string
	Author      *string
	Price       *float64
	Genre       *string
	Image       *string
	Description *string
	PDFURL      *string
	CopyType    *CopyType
}

// Update modifies an existing book.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (*Book, error) {
	book, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Title != nil {
		book.Title = *in.Title
	}
	if in.Author != nil {
		book.Author = *in.Author
	}
	if in.Price != nil {
		if *in.Price < 0 {
			return nil, fmt.Errorf("%w: price must not be negative", fault.ErrInvalidArgument)
		}
		book.Price = *in.Price
	}
	if in.Genre != nil {
		book.Genre = *in.Genre
	}
	if in.Image != nil {
		book.Image = *in.Image
	}
	if in.Description != nil {
		book.Description = *in.Description
	}
	if in.PDFURL != nil {
		book.PDFURL = *in.PDFURL
	}
	if in.CopyType != nil {
		book.CopyType = *in.CopyType
	}

	if err := s.store.Update(ctx, store.CollectionBooks, id, book); err != nil {
		return nil, fmt.Errorf("%w: %v", fault.ErrInternal, err)
	}
	return book, nil
}

// Delete removes a book.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, store.CollectionBooks, id); err != nil {
		if err == store.ErrNotFound {
			return fmt.Errorf("%w: book not found", fault.ErrNotFound)
		}
		return fmt.Errorf("%w: %v", fault.ErrInternal, err)
	}
	return nil
}

// Search matches text case-insensitively against title, author and
// genre, capped at a handful of results. "-" means "everything".
func (s *Service) Search(ctx context.Context, text string) ([]Book, error) {
	if text == "-" {
		return s.List(ctx)
	}

	seen := make(map[string]bool)
	var results []Book
	for _, field := range []string{"title", "author", "genre"} {
		books, err := s.find(ctx, store.Filter{store.Contains(field, text)})
		if err != nil {
			return nil, err
		}
		for _, b := range books {
			if seen[b.ID] {
				continue
			}
			seen[b.ID] = true
			results = append(results, b)
			if len(results) == searchLimit {
				return results, nil
			}
		}
	}
	return results, nil
}

// Filter narrows books by genre and title substring; "all" wildcards
// either criterion.
func (s *Service) Filter(ctx context.Context, genre, title string) ([]Book, error) {
	var filter store.Filter
	if genre != "" && genre != "all" {
		filter = append(filter, store.Eq("genre", genre))
	}
	if title != "" && title != "all" {
		filter = append(filter, store.Contains("title", title))
	}
	return s.find(ctx, filter)
}

// Recommendations returns up to 12 books matching the caller's top-3
// genres, derived from the supplied borrow history; with no usable
// history it falls back to any 12 books.
func (s *Service) Recommendations(ctx context.Context, borrowedBookIDs []string) ([]Book, error) {
	genreCount := make(map[string]int)
	if len(borrowedBookIDs) > 0 {
		borrowed, err := s.find(ctx, store.Filter{store.In("id", borrowedBookIDs...)})
		if err != nil {
			return nil, err
		}
		for _, b := range borrowed {
			if b.Genre != "" {
				genreCount[b.Genre]++
			}
		}
	}

	var filter store.Filter
	if len(genreCount) > 0 {
		genres := make([]string, 0, len(genreCount))
		for g := range genreCount {
			genres = append(genres, g)
		}
		sort.Slice(genres, func(i, j int) bool {
			if genreCount[genres[i]] != genreCount[genres[j]] {
				return genreCount[genres[i]] > genreCount[genres[j]]
			}
			return genres[i] < genres[j]
		})
		if len(genres) > 3 {
			genres = genres[:3]
		}
		filter = store.Filter{store.In("genre", genres...)}
	}

	books, err := s.find(ctx, filter)
	if err != nil {
		return nil, err
	}
	if len(books) > 12 {
		books = books[:12]
	}
	return books, nil
}

// Prices quotes a list of books. Quoted prices follow the legacy
// formula (base 399 plus title-length variance) rather than the catalog
// price.
func (s *Service) Prices(ctx context.Context, ids []string) ([]Quote, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: book ids are required", fault.ErrInvalidArgument)
	}

	books, err := s.find(ctx, store.Filter{store.In("id", ids...)})
	if err != nil {
		return nil, err
	}

	quotes := make([]Quote, 0, len(books))
	for _, b := range books {
		quotes = append(quotes, Quote{
			BookID: b.ID,
			Title:  b.Title,
			Price:  float64(399 + len(b.Title)),
		})
	}
	return quotes, nil
}

// Seed loads demo books into an empty catalog. It is a no-op when books
// already exist.
func (s *Service) Seed(ctx context.Context) (int, error) {
	existing, err := s.count(ctx, nil)
	if err != nil {
		return 0, err
	}
	if existing > 0 {
		return 0, nil
	}

	for _, b := range demoBooks {
		if _, err := s.Add(ctx, b); err != nil {
			return 0, err
		}
	}
	return len(demoBooks), nil
}

var demoBooks = []AddInput{
	{Title: "The Great Gatsby", Author: "F. Scott Fitzgerald", Genre: "Classic", Price: 299, Image: "https://picsum.photos/seed/gatsby/240/340"},
	{Title: "To Kill a Mockingbird", Author: "Harper Lee", Genre: "Classic", Price: 249, Image: "https://picsum.photos/seed/mockingbird/240/340"},
	{Title: "1984", Author: "George Orwell", Genre: "Dystopian", Price: 199, Image: "https://picsum.photos/seed/1984/240/340"},
	{Title: "Pride and Prejudice", Author: "Jane Austen", Genre: "Romance", Price: 179, Image: "https://picsum.photos/seed/pride/240/340"},
	{Title: "The Hobbit", Author: "J.R.R. Tolkien", Genre: "Fantasy", Price: 399, Image: "https://picsum.photos/seed/hobbit/240/340"},
}

func (s *Service) find(ctx context.Context, filter store.Filter) ([]Book, error) {
	var books []Book
	if err := s.store.Find(ctx, store.CollectionBooks, filter, &books); err != nil {
		return nil, fmt.Errorf("%w: %v", fault.ErrInternal, err)
	}
	sort.Slice(books, func(i, j int) bool {
		return books[i].CreatedAt.After(books[j].CreatedAt)
	})
	return books, nil
}

func (s *Service) count(ctx context.Context, filter store.Filter) (int, error) {
	n, err := s.store.Count(ctx, store.CollectionBooks, filter)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", fault.ErrInternal, err)
	}
	return n, nil
}
