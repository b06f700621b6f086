package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stridept/stridept-backend/internal/telemetry/tracing"
	"github.com/stridept/stridept-backend/pkg"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
)

// PsqlStore keeps every document in a single documents table,
// one row per (collection, id), with the document body as jsonb.
type PsqlStore struct {
	db *pgxpool.Pool
}

func NewPsqlStore(db *pgxpool.Pool) *PsqlStore {
	return &PsqlStore{
		db: db,
	}
}

// querier is satisfied by both pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// CreateSchema creates the documents table if not present.
func (s *PsqlStore) CreateSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS documents (
			collection	TEXT NOT NULL,
			id			TEXT NOT NULL,
			doc			JSONB NOT NULL,
			PRIMARY KEY (collection, id)
		);`,
	)
	if err != nil {
		return fmt.Errorf("create documents table: %w", err)
	}
	return nil
}

func (s *PsqlStore) Get(ctx context.Context, collection, id string) (_ Document, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "store.get")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("collection", collection))
	span.SetAttributes(attribute.String("id", id))

	return getDocument(ctx, s.db, collection, id, false)
}

func (s *PsqlStore) Set(ctx context.Context, collection, id string, doc Document, merge bool) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "store.set")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("collection", collection))
	span.SetAttributes(attribute.String("id", id))
	span.SetAttributes(attribute.Bool("merge", merge))

	return setDocument(ctx, s.db, collection, id, doc, merge)
}

func (s *PsqlStore) Insert(ctx context.Context, collection, id string, doc Document) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "store.insert")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("collection", collection))
	span.SetAttributes(attribute.String("id", id))

	docJson, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}

	if _, err := s.db.Exec(
		ctx,
		`INSERT INTO documents (collection, id, doc) VALUES ($1, $2, $3);`,
		collection, id, docJson,
	); err != nil {
		if pkg.IsUniqueViolationError(err) {
			return ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (s *PsqlStore) Update(ctx context.Context, collection, id string, fields Document) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "store.update")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("collection", collection))
	span.SetAttributes(attribute.String("id", id))

	return updateDocument(ctx, s.db, collection, id, fields)
}

func (s *PsqlStore) Query(ctx context.Context, collection string, filters ...Filter) (_ []Document, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "store.query")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("collection", collection))
	span.SetAttributes(attribute.Int("filters", len(filters)))

	filterObj := make(map[string]any, len(filters))
	for _, f := range filters {
		filterObj[f.Field] = f.Value
	}
	filterJson, err := json.Marshal(filterObj)
	if err != nil {
		return nil, fmt.Errorf("marshal filters: %w", err)
	}

	rows, err := s.db.Query(
		ctx,
		`SELECT doc FROM documents WHERE collection = $1 AND doc @> $2::jsonb ORDER BY id;`,
		collection, filterJson,
	)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	var docs []Document
	for rows.Next() {
		var docBytes []byte
		if err := rows.Scan(&docBytes); err != nil {
			return nil, fmt.Errorf("rows scan: %w", err)
		}
		var doc Document
		if err := json.Unmarshal(docBytes, &doc); err != nil {
			return nil, fmt.Errorf("unmarshal document: %w", err)
		}
		docs = append(docs, doc)
	}

	if docs == nil {
		docs = make([]Document, 0)
	}

	return docs, nil
}

// Transaction runs fn within a single database transaction. Documents read
// inside are locked until commit, so all reads and writes within fn are
// atomic: either every write lands, or none does.
func (s *PsqlStore) Transaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "store.transaction")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	return pgx.BeginTxFunc(ctx, s.db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return fn(ctx, &psqlTx{tx: tx})
	})
}

type psqlTx struct {
	tx pgx.Tx
}

func (t *psqlTx) Get(ctx context.Context, collection, id string) (Document, error) {
	return getDocument(ctx, t.tx, collection, id, true)
}

func (t *psqlTx) Set(ctx context.Context, collection, id string, doc Document, merge bool) error {
	return setDocument(ctx, t.tx, collection, id, doc, merge)
}

func (t *psqlTx) Update(ctx context.Context, collection, id string, fields Document) error {
	return updateDocument(ctx, t.tx, collection, id, fields)
}

func getDocument(ctx context.Context, db querier, collection, id string, forUpdate bool) (Document, error) {
	query := `SELECT doc FROM documents WHERE collection = $1 AND id = $2;`
	if forUpdate {
		query = `SELECT doc FROM documents WHERE collection = $1 AND id = $2 FOR UPDATE;`
	}

	rows, err := db.Query(ctx, query, collection, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if !rows.Next() {
		return nil, ErrNotFound
	}

	var docBytes []byte
	if err := rows.Scan(&docBytes); err != nil {
		return nil, fmt.Errorf("rows scan: %w", err)
	}

	var doc Document
	if err := json.Unmarshal(docBytes, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal document: %w", err)
	}
	return doc, nil
}

func setDocument(ctx context.Context, db querier, collection, id string, doc Document, merge bool) error {
	docJson, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}

	query := `
		INSERT INTO documents (collection, id, doc) VALUES ($1, $2, $3)
			ON CONFLICT (collection, id) DO UPDATE SET doc = EXCLUDED.doc;`
	if merge {
		query = `
		INSERT INTO documents (collection, id, doc) VALUES ($1, $2, $3)
			ON CONFLICT (collection, id) DO UPDATE SET doc = documents.doc || EXCLUDED.doc;`
	}

	if _, err := db.Exec(ctx, query, collection, id, docJson); err != nil {
		return err
	}
	return nil
}

func updateDocument(ctx context.Context, db querier, collection, id string, fields Document) error {
	fieldsJson, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("marshal fields: %w", err)
	}

	tag, err := db.Exec(
		ctx,
		`UPDATE documents SET doc = doc || $3::jsonb WHERE collection = $1 AND id = $2;`,
		collection, id, fieldsJson,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
