package store

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// Collections persisted by the application.
const (
	CollectionBooks       = "books"
	CollectionCarts       = "carts"
	CollectionOrders      = "orders"
	CollectionBillings    = "billings"
	CollectionPayments    = "payments"
	CollectionPublicLists = "public_lists"
	CollectionAdmins      = "admins"
	CollectionActivity    = "recent_activity"
)

var (
	ErrNotFound  = errors.New("document not found")
	ErrDuplicate = errors.New("duplicate document id")
)

// Op is a filter comparison operator.
type Op string

const (
	OpEq       Op = "eq"
	OpIn       Op = "in"
	OpLt       Op = "lt"
	OpContains Op = "contains" // case-insensitive substring on string fields
)

// Cond is a single condition against a JSON field of a document.
type Cond struct {
	Field string
	Op    Op
	Value any
}

// Filter is a conjunction of conditions. An empty filter matches everything.
type Filter []Cond

func Eq(field string, value any) Cond       { return Cond{Field: field, Op: OpEq, Value: value} }
func In(field string, values ...string) Cond {
	return Cond{Field: field, Op: OpIn, Value: values}
}
func Lt(field string, value any) Cond       { return Cond{Field: field, Op: OpLt, Value: value} }
func Contains(field, text string) Cond {
	return Cond{Field: field, Op: OpContains, Value: text}
}

// DocumentStore is the generic CRUD/query interface every backend implements.
// Documents are JSON-encodable values keyed by (collection, id).
type DocumentStore interface {
	// Insert stores a new document. Returns ErrDuplicate if the id exists.
	Insert(ctx context.Context, collection, id string, doc any) error

	// Update replaces an existing document. Returns ErrNotFound if absent.
	Update(ctx context.Context, collection, id string, doc any) error

	// FindByID decodes the document into out. Returns ErrNotFound if absent.
	FindByID(ctx context.Context, collection, id string, out any) error

	// Find decodes all matching documents into out, which must be a
	// pointer to a slice.
	Find(ctx context.Context, collection string, filter Filter, out any) error

	// Delete removes a document. Returns ErrNotFound if absent.
	Delete(ctx context.Context, collection, id string) error

	// Count returns the number of matching documents.
	Count(ctx context.Context, collection string, filter Filter) (int, error)

	// SumField returns the sum of a numeric field across matching documents.
	SumField(ctx context.Context, collection string, filter Filter, field string) (float64, error)
}

// jsonValue round-trips a value through JSON so filter values compare
// against decoded documents on equal footing (numbers become float64,
// time.Time becomes an RFC 3339 string).
func jsonValue(v any) any {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil
	}
	return out
}

// matches evaluates a filter against a decoded document. Shared by the
// in-memory backend and the DynamoDB backend's client-side filtering.
func matches(doc map[string]any, filter Filter) bool {
	for _, cond := range filter {
		if !matchCond(doc[cond.Field], cond) {
			return false
		}
	}
	return true
}

func matchCond(field any, cond Cond) bool {
	switch cond.Op {
	case OpEq:
		return field == jsonValue(cond.Value)
	case OpIn:
		values, ok := cond.Value.([]string)
		if !ok {
			return false
		}
		s, ok := field.(string)
		if !ok {
			return false
		}
		for _, v := range values {
			if s == v {
				return true
			}
		}
		return false
	case OpLt:
		want := jsonValue(cond.Value)
		switch w := want.(type) {
		case float64:
			f, ok := field.(float64)
			return ok && f < w
		case string:
			// RFC 3339 timestamps compare correctly as strings.
			s, ok := field.(string)
			return ok && s < w
		}
		return false
	case OpContains:
		text, ok := cond.Value.(string)
		if !ok {
			return false
		}
		s, ok := field.(string)
		if !ok {
			return false
		}
		return strings.Contains(strings.ToLower(s), strings.ToLower(text))
	}
	return false
}

// numericField extracts a float64 field from a decoded document.
func numericField(doc map[string]any, field string) float64 {
	if f, ok := doc[field].(float64); ok {
		return f
	}
	return 0
}

// timeValue normalizes a filter value that may be a time.Time for backends
// that store timestamps as RFC 3339 strings.
func timeValue(v any) (string, bool) {
	if t, ok := v.(time.Time); ok {
		b, err := t.MarshalJSON()
		if err != nil {
			return "", false
		}
		return strings.Trim(string(b), `"`), true
	}
	return "", false
}
