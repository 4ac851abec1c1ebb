// Package publiclist publishes read-only snapshots of book selections
// under shareable slugs.
package publiclist

import (
	"context"
	"fmt"
	"math/rand"
	"regexp"
	"strings"
	"time"

	"github.com/example/bookshelf/internal/domain/catalog"
	"github.com/example/bookshelf/internal/events"
	"github.com/example/bookshelf/internal/fault"
	"github.com/example/bookshelf/internal/infrastructure/store"
)

const maxSlugAttempts = 5

// List is a published, read-only snapshot of book references.
type List struct {
	Slug          string    `json:"slug"`
	Title         string    `json:"title"`
	OwnerUsername string    `json:"owner_username"`
	BookIDs       []string  `json:"book_ids"`
	CreatedAt     time.Time `json:"created_at"`
}

type Service struct {
	store     store.DocumentStore
	publisher events.Publisher
}

func NewService(st store.DocumentStore, publisher events.Publisher) *Service {
	return &Service{store: st, publisher: publisher}
}

// Publish snapshots the given book ids under a slug derived from the
// title plus a short random suffix. On the rare slug collision a fresh
// suffix is generated and the insert retried.
func (s *Service) Publish(ctx context.Context, title string, bookIDs []string, owner string) (*List, error) {
	if title == "" || len(bookIDs) == 0 {
		return nil, fmt.Errorf("%w: title and at least one book id are required", fault.ErrInvalidArgument)
	}
	if owner == "" {
		owner = "guest"
	}

	list := &List{
		Title:         title,
		OwnerUsername: owner,
		BookIDs:       bookIDs,
		CreatedAt:     time.Now(),
	}

	inserted := false
	for attempt := 0; attempt < maxSlugAttempts; attempt++ {
		list.Slug = generateSlug(title)
		err := s.store.Insert(ctx, store.CollectionPublicLists, list.Slug, list)
		if err == nil {
			inserted = true
			break
		}
		if err != store.ErrDuplicate {
			return nil, fmt.Errorf("%w: %v", fault.ErrInternal, err)
		}
	}
	if !inserted {
		return nil, fmt.Errorf("%w: could not allocate a unique slug", fault.ErrInternal)
	}

	if s.publisher != nil {
		event, err := events.New(events.TypeListPublished, events.ListPublished{
			Slug:  list.Slug,
			Title: list.Title,
			Owner: list.OwnerUsername,
		})
		if err == nil {
			_ = s.publisher.Publish(ctx, list.Slug, event)
		}
	}

	return list, nil
}

// Resolve returns a published list and the books it references that
// still exist in the catalog. Books deleted since publishing are
// silently omitted.
func (s *Service) Resolve(ctx context.Context, slug string) (*List, []catalog.Book, error) {
	var list List
	if err := s.store.FindByID(ctx, store.CollectionPublicLists, slug, &list); err != nil {
		if err == store.ErrNotFound {
			return nil, nil, fmt.Errorf("%w: list not found", fault.ErrNotFound)
		}
		return nil, nil, fmt.Errorf("%w: %v", fault.ErrInternal, err)
	}

	var books []catalog.Book
	if len(list.BookIDs) > 0 {
		if err := s.store.Find(ctx, store.CollectionBooks, store.Filter{store.In("id", list.BookIDs...)}, &books); err != nil {
			return nil, nil, fmt.Errorf("%w: %v", fault.ErrInternal, err)
		}
	}
	return &list, books, nil
}

var slugStrip = regexp.MustCompile(`[^a-z0-9]+`)

const base36Lower = "0123456789abcdefghijklmnopqrstuvwxyz"

// generateSlug normalizes the title (lower-cased, hyphenated, stripped)
// and appends a 6-character random suffix for collision resistance.
func generateSlug(title string) string {
	normalized := strings.Trim(slugStrip.ReplaceAllString(strings.ToLower(title), "-"), "-")
	if normalized == "" {
		normalized = "list"
	}

	suffix := make([]byte, 6)
	for i := range suffix {
		suffix[i] = base36Lower[rand.Intn(len(base36Lower))]
	}
	return normalized + "-" + string(suffix)
}
