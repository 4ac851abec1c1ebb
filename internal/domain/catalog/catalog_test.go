package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/bookshelf/internal/fault"
	"github.com/example/bookshelf/internal/infrastructure/store"
)

func newTestService() *Service {
	return NewService(store.NewMemoryStore(), nil)
}

func addBook(t *testing.T, svc *Service, title, author, genre string, price float64) *Book {
	t.Helper()
	book, err := svc.Add(context.Background(), AddInput{
		Title:  title,
		Author: author,
		Genre:  genre,
		Price:  price,
	})
	require.NoError(t, err)
	return book
}

func TestService_Add(t *testing.T) {
	svc := newTestService()

	book, err := svc.Add(context.Background(), AddInput{
		Title:    "Dune",
		Author:   "Frank Herbert",
		Genre:    "Sci-Fi",
		Price:    350,
		CopyType: CopyBoth,
	})

	require.NoError(t, err)
	assert.NotEmpty(t, book.ID)
	assert.Equal(t, "Dune", book.Title)
	assert.Equal(t, CopyBoth, book.CopyType)
	assert.False(t, book.CreatedAt.IsZero())
}

func TestService_Add_DefaultsToHardcopy(t *testing.T) {
	svc := newTestService()
	book := addBook(t, svc, "Dune", "Frank Herbert", "Sci-Fi", 350)
	assert.Equal(t, CopyHardcopy, book.CopyType)
}

func TestService_Add_Validation(t *testing.T) {
	svc := newTestService()

	tests := []struct {
		name string
		in   AddInput
	}{
		{"missing title", AddInput{Author: "a", Genre: "g", Price: 1}},
		{"missing author", AddInput{Title: "t", Genre: "g", Price: 1}},
		{"missing genre", AddInput{Title: "t", Author: "a", Price: 1}},
		{"negative price", AddInput{Title: "t", Author: "a", Genre: "g", Price: -1}},
		{"bad copy type", AddInput{Title: "t", Author: "a", Genre: "g", Price: 1, CopyType: "ebook"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Add(context.Background(), tt.in)
			assert.ErrorIs(t, err, fault.ErrInvalidArgument)
		})
	}
}

func TestService_Add_DuplicateTitleAuthor(t *testing.T) {
	svc := newTestService()
	addBook(t, svc, "Dune", "Frank Herbert", "Sci-Fi", 350)

	_, err := svc.Add(context.Background(), AddInput{
		Title:  "Dune",
		Author: "Frank Herbert",
		Genre:  "Sci-Fi",
		Price:  400,
	})
	assert.ErrorIs(t, err, fault.ErrConflict)

	// Same title by a different author is fine.
	_, err = svc.Add(context.Background(), AddInput{
		Title:  "Dune",
		Author: "Someone Else",
		Genre:  "Sci-Fi",
		Price:  400,
	})
	assert.NoError(t, err)
}

func TestService_GetUpdateDelete(t *testing.T) {
	svc := newTestService()
	book := addBook(t, svc, "Dune", "Frank Herbert", "Sci-Fi", 350)

	got, err := svc.Get(context.Background(), book.ID)
	require.NoError(t, err)
	assert.Equal(t, book.Title, got.Title)

	newPrice := 275.0
	updated, err := svc.Update(context.Background(), book.ID, UpdateInput{Price: &newPrice})
	require.NoError(t, err)
	assert.Equal(t, 275.0, updated.Price)
	assert.Equal(t, "Dune", updated.Title)

	require.NoError(t, svc.Delete(context.Background(), book.ID))

	_, err = svc.Get(context.Background(), book.ID)
	assert.ErrorIs(t, err, fault.ErrNotFound)
	assert.ErrorIs(t, svc.Delete(context.Background(), book.ID), fault.ErrNotFound)
}

func TestService_Update_NegativePrice(t *testing.T) {
	svc := newTestService()
	book := addBook(t, svc, "Dune", "Frank Herbert", "Sci-Fi", 350)

	bad := -5.0
	_, err := svc.Update(context.Background(), book.ID, UpdateInput{Price: &bad})
	assert.ErrorIs(t, err, fault.ErrInvalidArgument)
}

func TestService_Search(t *testing.T) {
	svc := newTestService()
	addBook(t, svc, "The Go Programming Language", "Donovan", "Programming", 400)
	addBook(t, svc, "Go in Action", "Kennedy", "Programming", 300)
	addBook(t, svc, "Cooking Basics", "Gordon", "Cooking", 200)

	books, err := svc.Search(context.Background(), "go")
	require.NoError(t, err)
	// "Gordon" matches on author as well.
	assert.Len(t, books, 3)

	books, err = svc.Search(context.Background(), "cooking")
	require.NoError(t, err)
	assert.Len(t, books, 1)

	books, err = svc.Search(context.Background(), "nothing-here")
	require.NoError(t, err)
	assert.Empty(t, books)
}

func TestService_Search_Dash_ReturnsAll(t *testing.T) {
	svc := newTestService()
	addBook(t, svc, "One", "A", "g", 1)
	addBook(t, svc, "Two", "B", "g", 1)

	books, err := svc.Search(context.Background(), "-")
	require.NoError(t, err)
	assert.Len(t, books, 2)
}

func TestService_Search_CapsResults(t *testing.T) {
	svc := newTestService()
	for _, title := range []string{"Go I", "Go II", "Go III", "Go IV", "Go V", "Go VI"} {
		addBook(t, svc, title, "Author", "Programming", 100)
	}

	books, err := svc.Search(context.Background(), "go")
	require.NoError(t, err)
	assert.Len(t, books, searchLimit)
}

func TestService_Search_NoDuplicates(t *testing.T) {
	svc := newTestService()
	// Matches on title, author and genre at once.
	addBook(t, svc, "Go Deep", "Gopher", "Go", 100)

	books, err := svc.Search(context.Background(), "go")
	require.NoError(t, err)
	assert.Len(t, books, 1)
}

func TestService_Filter(t *testing.T) {
	svc := newTestService()
	addBook(t, svc, "Dune", "Herbert", "Sci-Fi", 350)
	addBook(t, svc, "Dune Messiah", "Herbert", "Sci-Fi", 320)
	addBook(t, svc, "Emma", "Austen", "Romance", 180)

	tests := []struct {
		name  string
		genre string
		title string
		want  int
	}{
		{"genre only", "Sci-Fi", "", 2},
		{"title substring", "", "messiah", 1},
		{"both criteria", "Sci-Fi", "dune", 2},
		{"all wildcards", "all", "all", 3},
		{"empty means all", "", "", 3},
		{"no match", "Horror", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			books, err := svc.Filter(context.Background(), tt.genre, tt.title)
			require.NoError(t, err)
			assert.Len(t, books, tt.want)
		})
	}
}

func TestService_Recommendations_TopGenres(t *testing.T) {
	svc := newTestService()
	scifi1 := addBook(t, svc, "Dune", "Herbert", "Sci-Fi", 350)
	scifi2 := addBook(t, svc, "Foundation", "Asimov", "Sci-Fi", 300)
	romance := addBook(t, svc, "Emma", "Austen", "Romance", 180)
	addBook(t, svc, "Horror House", "King", "Horror", 220)

	// Sci-Fi borrowed twice, Romance once: both land in the top-3, the
	// unborrowed Horror genre does not.
	books, err := svc.Recommendations(context.Background(), []string{scifi1.ID, scifi2.ID, romance.ID})
	require.NoError(t, err)

	genres := make(map[string]bool)
	for _, b := range books {
		genres[b.Genre] = true
	}
	assert.True(t, genres["Sci-Fi"])
	assert.True(t, genres["Romance"])
	assert.False(t, genres["Horror"])
}

func TestService_Recommendations_NoHistory_FallsBack(t *testing.T) {
	svc := newTestService()
	addBook(t, svc, "Dune", "Herbert", "Sci-Fi", 350)
	addBook(t, svc, "Emma", "Austen", "Romance", 180)

	books, err := svc.Recommendations(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, books, 2)
}

func TestService_Recommendations_CapAtTwelve(t *testing.T) {
	svc := newTestService()
	titles := []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k", "l", "m", "n"}
	for _, title := range titles {
		addBook(t, svc, title, "Author", "Genre", 100)
	}

	books, err := svc.Recommendations(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, books, 12)
}

func TestService_Prices(t *testing.T) {
	svc := newTestService()
	book := addBook(t, svc, "Dune", "Herbert", "Sci-Fi", 350)

	quotes, err := svc.Prices(context.Background(), []string{book.ID})
	require.NoError(t, err)
	require.Len(t, quotes, 1)
	// Quoted price comes from the title length, not the catalog price.
	assert.Equal(t, float64(399+len("Dune")), quotes[0].Price)
}

func TestService_Prices_NoIDs(t *testing.T) {
	svc := newTestService()
	_, err := svc.Prices(context.Background(), nil)
	assert.ErrorIs(t, err, fault.ErrInvalidArgument)
}

func TestService_Seed(t *testing.T) {
	svc := newTestService()

	count, err := svc.Seed(context.Background())
	require.NoError(t, err)
	assert.Equal(t, len(demoBooks), count)

	// Second run is a no-op.
	count, err = svc.Seed(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	books, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, books, len(demoBooks))
}
