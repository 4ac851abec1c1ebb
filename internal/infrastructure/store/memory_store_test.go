package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testDoc struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Category  string    `json:"category"`
	Amount    float64   `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}

func TestMemoryStore_InsertAndFindByID(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	doc := testDoc{ID: "d1", Name: "first", Amount: 42.5}
	require.NoError(t, st.Insert(ctx, "docs", "d1", doc))

	var got testDoc
	require.NoError(t, st.FindByID(ctx, "docs", "d1", &got))
	assert.Equal(t, doc.Name, got.Name)
	assert.Equal(t, doc.Amount, got.Amount)
}

func TestMemoryStore_Insert_Duplicate(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, st.Insert(ctx, "docs", "d1", testDoc{ID: "d1"}))
	err := st.Insert(ctx, "docs", "d1", testDoc{ID: "d1"})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestMemoryStore_Update(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, st.Insert(ctx, "docs", "d1", testDoc{ID: "d1", Name: "before"}))
	require.NoError(t, st.Update(ctx, "docs", "d1", testDoc{ID: "d1", Name: "after"}))

	var got testDoc
	require.NoError(t, st.FindByID(ctx, "docs", "d1", &got))
	assert.Equal(t, "after", got.Name)
}

func TestMemoryStore_Update_Missing(t *testing.T) {
	st := NewMemoryStore()
	err := st.Update(context.Background(), "docs", "missing", testDoc{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_FindByID_Missing(t *testing.T) {
	st := NewMemoryStore()
	var got testDoc
	err := st.FindByID(context.Background(), "docs", "missing", &got)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_Delete(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, st.Insert(ctx, "docs", "d1", testDoc{ID: "d1"}))
	require.NoError(t, st.Delete(ctx, "docs", "d1"))

	var got testDoc
	assert.ErrorIs(t, st.FindByID(ctx, "docs", "d1", &got), ErrNotFound)
	assert.ErrorIs(t, st.Delete(ctx, "docs", "d1"), ErrNotFound)
}

func seedTestDocs(t *testing.T, st *MemoryStore) {
	t.Helper()
	ctx := context.Background()
	docs := []testDoc{
		{ID: "d1", Name: "Alpha Guide", Category: "fiction", Amount: 100, CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
		{ID: "d2", Name: "Beta Manual", Category: "fiction", Amount: 250, CreatedAt: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)},
		{ID: "d3", Name: "Gamma Atlas", Category: "reference", Amount: 400, CreatedAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, d := range docs {
		require.NoError(t, st.Insert(ctx, "docs", d.ID, d))
	}
}

func TestMemoryStore_Find_Eq(t *testing.T) {
	st := NewMemoryStore()
	seedTestDocs(t, st)

	var got []testDoc
	require.NoError(t, st.Find(context.Background(), "docs", Filter{Eq("category", "fiction")}, &got))
	assert.Len(t, got, 2)
}

func TestMemoryStore_Find_In(t *testing.T) {
	st := NewMemoryStore()
	seedTestDocs(t, st)

	var got []testDoc
	require.NoError(t, st.Find(context.Background(), "docs", Filter{In("id", "d1", "d3", "nope")}, &got))
	assert.Len(t, got, 2)
}

func TestMemoryStore_Find_Lt_Number(t *testing.T) {
	st := NewMemoryStore()
	seedTestDocs(t, st)

	var got []testDoc
	require.NoError(t, st.Find(context.Background(), "docs", Filter{Lt("amount", 300)}, &got))
	assert.Len(t, got, 2)
}

func TestMemoryStore_Find_Lt_Time(t *testing.T) {
	st := NewMemoryStore()
	seedTestDocs(t, st)

	cutoff := time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC)
	var got []testDoc
	require.NoError(t, st.Find(context.Background(), "docs", Filter{Lt("created_at", cutoff)}, &got))
	assert.Len(t, got, 2)
}

func TestMemoryStore_Find_Contains(t *testing.T) {
	st := NewMemoryStore()
	seedTestDocs(t, st)

	tests := []struct {
		name string
		text string
		want int
	}{
		{"case-insensitive match", "alpha", 1},
		{"partial match", "a", 3},
		{"no match", "zzz", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []testDoc
			require.NoError(t, st.Find(context.Background(), "docs", Filter{Contains("name", tt.text)}, &got))
			assert.Len(t, got, tt.want)
		})
	}
}

func TestMemoryStore_Find_Conjunction(t *testing.T) {
	st := NewMemoryStore()
	seedTestDocs(t, st)

	var got []testDoc
	filter := Filter{Eq("category", "fiction"), Lt("amount", 200)}
	require.NoError(t, st.Find(context.Background(), "docs", filter, &got))
	require.Len(t, got, 1)
	assert.Equal(t, "d1", got[0].ID)
}

func TestMemoryStore_Find_EmptyFilterMatchesAll(t *testing.T) {
	st := NewMemoryStore()
	seedTestDocs(t, st)

	var got []testDoc
	require.NoError(t, st.Find(context.Background(), "docs", nil, &got))
	assert.Len(t, got, 3)
}

func TestMemoryStore_Find_EmptyCollection(t *testing.T) {
	st := NewMemoryStore()

	var got []testDoc
	require.NoError(t, st.Find(context.Background(), "docs", nil, &got))
	assert.Empty(t, got)
}

func TestMemoryStore_Count(t *testing.T) {
	st := NewMemoryStore()
	seedTestDocs(t, st)

	count, err := st.Count(context.Background(), "docs", Filter{Eq("category", "reference")})
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = st.Count(context.Background(), "docs", nil)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestMemoryStore_SumField(t *testing.T) {
	st := NewMemoryStore()
	seedTestDocs(t, st)

	sum, err := st.SumField(context.Background(), "docs", Filter{Eq("category", "fiction")}, "amount")
	require.NoError(t, err)
	assert.Equal(t, 350.0, sum)

	sum, err = st.SumField(context.Background(), "docs", nil, "amount")
	require.NoError(t, err)
	assert.Equal(t, 750.0, sum)

	sum, err = st.SumField(context.Background(), "docs", Filter{Eq("category", "nope")}, "amount")
	require.NoError(t, err)
	assert.Equal(t, 0.0, sum)
}

func TestMemoryStore_CollectionsAreIsolated(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, st.Insert(ctx, "a", "d1", testDoc{ID: "d1"}))
	require.NoError(t, st.Insert(ctx, "b", "d1", testDoc{ID: "d1"}))

	var got testDoc
	require.NoError(t, st.FindByID(ctx, "a", "d1", &got))
	require.NoError(t, st.Delete(ctx, "a", "d1"))
	require.NoError(t, st.FindByID(ctx, "b", "d1", &got))
}
