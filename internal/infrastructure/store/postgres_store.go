package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
)

const uniqueViolation = "23505"

// PostgresStore implements DocumentStore on a single JSONB table keyed
// by (collection, id).
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed document store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// ConnectPostgres establishes a connection to PostgreSQL.
func ConnectPostgres(connStr string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}

// EnsureSchema creates the documents table if it does not exist.
func (ps *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := ps.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS documents (
			collection TEXT NOT NULL,
			id         TEXT NOT NULL,
			doc        JSONB NOT NULL,
			PRIMARY KEY (collection, id)
		)`)
	return err
}

func (ps *PostgresStore) Insert(ctx context.Context, collection, id string, doc any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	_, err = ps.db.ExecContext(ctx,
		`INSERT INTO documents (collection, id, doc) VALUES ($1, $2, $3)`,
		collection, id, raw)
	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == uniqueViolation {
		return ErrDuplicate
	}
	return err
}

func (ps *PostgresStore) Update(ctx context.Context, collection, id string, doc any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	res, err := ps.db.ExecContext(ctx,
		`UPDATE documents SET doc = $3 WHERE collection = $1 AND id = $2`,
		collection, id, raw)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (ps *PostgresStore) FindByID(ctx context.Context, collection, id string, out any) error {
	var raw []byte
	err := ps.db.QueryRowContext(ctx,
		`SELECT doc FROM documents WHERE collection = $1 AND id = $2`,
		collection, id).Scan(&raw)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func (ps *PostgresStore) Find(ctx context.Context, collection string, filter Filter, out any) error {
	where, args, err := buildWhere(collection, filter)
	if err != nil {
		return err
	}

	rows, err := ps.db.QueryContext(ctx, `SELECT doc FROM documents WHERE `+where, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	raws := make([]json.RawMessage, 0)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return err
		}
		raws = append(raws, raw)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	combined, err := json.Marshal(raws)
	if err != nil {
		return err
	}
	return json.Unmarshal(combined, out)
}

func (ps *PostgresStore) Delete(ctx context.Context, collection, id string) error {
	res, err := ps.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = $1 AND id = $2`,
		collection, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (ps *PostgresStore) Count(ctx context.Context, collection string, filter Filter) (int, error) {
	where, args, err := buildWhere(collection, filter)
	if err != nil {
		return 0, err
	}

	var count int
	err = ps.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM documents WHERE `+where, args...).Scan(&count)
	return count, err
}

func (ps *PostgresStore) SumField(ctx context.Context, collection string, filter Filter, field string) (float64, error) {
	where, args, err := buildWhere(collection, filter)
	if err != nil {
		return 0, err
	}

	var sum float64
	query := fmt.Sprintf(
		`SELECT COALESCE(SUM((doc->>%s)::numeric), 0) FROM documents WHERE %s`,
		pq.QuoteLiteral(field), where)
	err = ps.db.QueryRowContext(ctx, query, args...).Scan(&sum)
	return sum, err
}

// buildWhere translates a filter into a WHERE clause over the JSONB doc
// column. The collection condition is always the first argument.
func buildWhere(collection string, filter Filter) (string, []any, error) {
	clauses := []string{"collection = $1"}
	args := []any{collection}

	for _, cond := range filter {
		field := fmt.Sprintf("doc->>%s", pq.QuoteLiteral(cond.Field))
		n := len(args) + 1

		switch cond.Op {
		case OpEq:
			switch v := cond.Value.(type) {
			case int, int64, float64:
				clauses = append(clauses, fmt.Sprintf("(%s)::numeric = $%d", field, n))
				args = append(args, v)
			case bool:
				clauses = append(clauses, fmt.Sprintf("(%s)::boolean = $%d", field, n))
				args = append(args, v)
			default:
				clauses = append(clauses, fmt.Sprintf("%s = $%d", field, n))
				args = append(args, v)
			}
		case OpIn:
			values, ok := cond.Value.([]string)
			if !ok {
				return "", nil, fmt.Errorf("in filter on %q requires string values", cond.Field)
			}
			clauses = append(clauses, fmt.Sprintf("%s = ANY($%d)", field, n))
			args = append(args, pq.Array(values))
		case OpLt:
			if ts, ok := timeValue(cond.Value); ok {
				clauses = append(clauses, fmt.Sprintf("(%s)::timestamptz < $%d", field, n))
				args = append(args, ts)
			} else {
				clauses = append(clauses, fmt.Sprintf("(%s)::numeric < $%d", field, n))
				args = append(args, cond.Value)
			}
		case OpContains:
			clauses = append(clauses, fmt.Sprintf("%s ILIKE '%%' || $%d || '%%'", field, n))
			args = append(args, cond.Value)
		default:
			return "", nil, fmt.Errorf("unsupported filter op %q", cond.Op)
		}
	}

	return strings.Join(clauses, " AND "), args, nil
}
