// Package pgstore provides a PostgreSQL implementation of triage.Store and
// apikey.Store.
package pgstore

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linnemanlabs/sift/internal/apikey"
	"github.com/linnemanlabs/sift/internal/triage"
)

var tracer = otel.Tracer("github.com/linnemanlabs/sift/internal/triage/pgstore")

//go:embed schema.sql
var schema string

// Store persists feedback, audit entries, settings and API keys in
// PostgreSQL. The pool is owned by the caller.
type Store struct {
	pool *pgxpool.Pool
}

// New applies the schema and returns a ready Store.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const feedbackColumns = `id, content, source, category, priority_score, priority_reason,
	status, created_at, updated_at, is_sample`

// queueOrder mirrors triage.QueueLess, with id as a stable final tiebreak.
const queueOrder = `ORDER BY CASE status
		WHEN 'pending' THEN 1
		WHEN 'in_progress' THEN 2
		WHEN 'resolved' THEN 3
		ELSE 4 END,
	priority_score DESC, created_at DESC, id DESC`

func startSpan(ctx context.Context, name, op string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", op),
	))
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// Get retrieves a feedback item by ID.
func (s *Store) Get(ctx context.Context, id string) (*triage.FeedbackItem, bool, error) {
	ctx, span := startSpan(ctx, "pgstore.Get", "SELECT")
	defer span.End()

	it, ok, err := getFeedback(ctx, s.pool, id, false)
	if err != nil {
		return nil, false, fail(span, err)
	}
	return it, ok, nil
}

// List returns every item in queue order.
func (s *Store) List(ctx context.Context) ([]*triage.FeedbackItem, error) {
	ctx, span := startSpan(ctx, "pgstore.List", "SELECT")
	defer span.End()

	rows, err := s.pool.Query(ctx, `SELECT `+feedbackColumns+` FROM feedback `+queueOrder)
	if err != nil {
		return nil, fail(span, fmt.Errorf("query feedback: %w", err))
	}
	defer rows.Close()

	var out []*triage.FeedbackItem
	for rows.Next() {
		it, err := scanFeedback(rows)
		if err != nil {
			return nil, fail(span, err)
		}
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fail(span, fmt.Errorf("iterate feedback: %w", err))
	}
	span.SetAttributes(attribute.Int("feedback.count", len(out)))
	return out, nil
}

// ListAudit returns up to limit entries, newest first.
func (s *Store) ListAudit(ctx context.Context, limit int) ([]*triage.AuditEntry, error) {
	ctx, span := startSpan(ctx, "pgstore.ListAudit", "SELECT")
	defer span.End()

	rows, err := s.pool.Query(ctx,
		`SELECT id, feedback_id, action, old_value, new_value, created_at
		 FROM audit_log ORDER BY created_at DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fail(span, fmt.Errorf("query audit_log: %w", err))
	}
	defer rows.Close()

	var out []*triage.AuditEntry
	for rows.Next() {
		var (
			e      triage.AuditEntry
			action string
		)
		if err := rows.Scan(&e.ID, &e.FeedbackID, &action, &e.OldValue, &e.NewValue, &e.CreatedAt); err != nil {
			return nil, fail(span, fmt.Errorf("scan audit entry: %w", err))
		}
		e.Action = triage.Action(action)
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fail(span, fmt.Errorf("iterate audit_log: %w", err))
	}
	return out, nil
}

// Settings returns every stored setting.
func (s *Store) Settings(ctx context.Context) (map[string]string, error) {
	ctx, span := startSpan(ctx, "pgstore.Settings", "SELECT")
	defer span.End()

	rows, err := s.pool.Query(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, fail(span, fmt.Errorf("query settings: %w", err))
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fail(span, fmt.Errorf("scan setting: %w", err))
		}
		out[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fail(span, fmt.Errorf("iterate settings: %w", err))
	}
	return out, nil
}

// PutSettings upserts the given settings in one transaction.
func (s *Store) PutSettings(ctx context.Context, settings map[string]string) error {
	ctx, span := startSpan(ctx, "pgstore.PutSettings", "UPSERT")
	defer span.End()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fail(span, fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is harmless

	for k, v := range settings {
		if _, err := tx.Exec(ctx,
			`INSERT INTO settings (key, value) VALUES ($1, $2)
			 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`, k, v); err != nil {
			return fail(span, fmt.Errorf("upsert setting %s: %w", k, err))
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fail(span, fmt.Errorf("commit: %w", err))
	}
	return nil
}

// Atomic runs fn inside a database transaction. The transaction commits only
// if fn returns nil.
func (s *Store) Atomic(ctx context.Context, fn func(ctx context.Context, tx triage.Tx) error) error {
	ctx, span := startSpan(ctx, "pgstore.Atomic", "TRANSACTION")
	defer span.End()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fail(span, fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is harmless

	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		return fail(span, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fail(span, fmt.Errorf("commit: %w", err))
	}
	return nil
}

// pgTx implements triage.Tx on top of a pgx transaction.
type pgTx struct {
	tx pgx.Tx
}

// Get locks the row until the transaction ends so concurrent
// read-modify-write updates of one item serialize.
func (t *pgTx) Get(ctx context.Context, id string) (*triage.FeedbackItem, bool, error) {
	return getFeedback(ctx, t.tx, id, true)
}

func (t *pgTx) PutFeedback(ctx context.Context, it *triage.FeedbackItem) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO feedback (`+feedbackColumns+`)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		 ON CONFLICT (id) DO UPDATE SET
			content         = EXCLUDED.content,
			source          = EXCLUDED.source,
			category        = EXCLUDED.category,
			priority_score  = EXCLUDED.priority_score,
			priority_reason = EXCLUDED.priority_reason,
			status          = EXCLUDED.status,
			updated_at      = EXCLUDED.updated_at,
			is_sample       = EXCLUDED.is_sample`,
		it.ID, it.Content, string(it.Origin), it.Category.String(), it.Score, it.Reason,
		string(it.Status), it.CreatedAt, it.UpdatedAt, it.IsSample,
	)
	if err != nil {
		return fmt.Errorf("upsert feedback %s: %w", it.ID, err)
	}
	return nil
}

func (t *pgTx) AppendAudit(ctx context.Context, e *triage.AuditEntry) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO audit_log (id, feedback_id, action, old_value, new_value, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID, e.FeedbackID, string(e.Action), e.OldValue, e.NewValue, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func (t *pgTx) DeleteAudit(ctx context.Context, scope triage.Scope) (int64, error) {
	query := `DELETE FROM audit_log`
	if scope == triage.ScopeSamples {
		query += ` WHERE feedback_id IN (SELECT id FROM feedback WHERE is_sample)`
	}
	tag, err := t.tx.Exec(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("delete audit_log: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (t *pgTx) DeleteFeedback(ctx context.Context, scope triage.Scope) (int64, error) {
	query := `DELETE FROM feedback`
	if scope == triage.ScopeSamples {
		query += ` WHERE is_sample`
	}
	tag, err := t.tx.Exec(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("delete feedback: %w", err)
	}
	return tag.RowsAffected(), nil
}

func getFeedback(ctx context.Context, q querier, id string, forUpdate bool) (*triage.FeedbackItem, bool, error) {
	query := `SELECT ` + feedbackColumns + ` FROM feedback WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	it, err := scanFeedback(q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return it, true, nil
}

// scanFeedback scans one feedback row. pgx.ErrNoRows is returned unwrapped.
func scanFeedback(row pgx.Row) (*triage.FeedbackItem, error) {
	var (
		it                       triage.FeedbackItem
		origin, category, status string
	)
	err := row.Scan(&it.ID, &it.Content, &origin, &category, &it.Score, &it.Reason,
		&status, &it.CreatedAt, &it.UpdatedAt, &it.IsSample)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan feedback: %w", err)
	}

	c, err := triage.ParseCategory(category)
	if err != nil {
		return nil, fmt.Errorf("feedback %s: %w", it.ID, err)
	}
	it.Category = c
	it.Origin = triage.Origin(origin)
	it.Status = triage.Status(status)
	return &it, nil
}

// PutKey inserts or updates an API key.
func (s *Store) PutKey(ctx context.Context, k *apikey.Key) error {
	ctx, span := startSpan(ctx, "pgstore.PutKey", "UPSERT")
	defer span.End()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO api_keys (id, name, key, created_at, is_active)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE SET
			name      = EXCLUDED.name,
			is_active = EXCLUDED.is_active`,
		k.ID, k.Name, k.Key, k.CreatedAt, k.Active,
	)
	if err != nil {
		return fail(span, fmt.Errorf("upsert api key: %w", err))
	}
	return nil
}

// GetKey retrieves an API key by ID.
func (s *Store) GetKey(ctx context.Context, id string) (*apikey.Key, bool, error) {
	ctx, span := startSpan(ctx, "pgstore.GetKey", "SELECT")
	defer span.End()

	return s.findKey(ctx, span, `WHERE id = $1`, id)
}

// FindKey looks a key up by its secret value.
func (s *Store) FindKey(ctx context.Context, key string) (*apikey.Key, bool, error) {
	ctx, span := startSpan(ctx, "pgstore.FindKey", "SELECT")
	defer span.End()

	return s.findKey(ctx, span, `WHERE key = $1`, key)
}

func (s *Store) findKey(ctx context.Context, span trace.Span, where string, arg string) (*apikey.Key, bool, error) {
	var k apikey.Key
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, key, created_at, is_active FROM api_keys `+where, arg,
	).Scan(&k.ID, &k.Name, &k.Key, &k.CreatedAt, &k.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fail(span, fmt.Errorf("scan api key: %w", err))
	}
	return &k, true, nil
}

// ListKeys returns every key, oldest first.
func (s *Store) ListKeys(ctx context.Context) ([]*apikey.Key, error) {
	ctx, span := startSpan(ctx, "pgstore.ListKeys", "SELECT")
	defer span.End()

	rows, err := s.pool.Query(ctx,
		`SELECT id, name, key, created_at, is_active FROM api_keys ORDER BY created_at, id`)
	if err != nil {
		return nil, fail(span, fmt.Errorf("query api_keys: %w", err))
	}
	defer rows.Close()

	var out []*apikey.Key
	for rows.Next() {
		var k apikey.Key
		if err := rows.Scan(&k.ID, &k.Name, &k.Key, &k.CreatedAt, &k.Active); err != nil {
			return nil, fail(span, fmt.Errorf("scan api key: %w", err))
		}
		out = append(out, &k)
	}
	if err := rows.Err(); err != nil {
		return nil, fail(span, fmt.Errorf("iterate api_keys: %w", err))
	}
	return out, nil
}

// DeleteKey removes an API key by ID.
func (s *Store) DeleteKey(ctx context.Context, id string) error {
	ctx, span := startSpan(ctx, "pgstore.DeleteKey", "DELETE")
	defer span.End()

	if _, err := s.pool.Exec(ctx, `DELETE FROM api_keys WHERE id = $1`, id); err != nil {
		return fail(span, fmt.Errorf("delete api key: %w", err))
	}
	return nil
}

var (
	_ triage.Store = (*Store)(nil)
	_ apikey.Store = (*Store)(nil)
)
