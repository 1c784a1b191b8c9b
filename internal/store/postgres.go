package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"
	"github.com/pressly/goose/v3"

	"sales-nlu/internal/retry"
)

//go:embed migrations/*.sql
var migrations embed.FS

const (
	connectAttempts = 5
	connectBackoff  = 250 * time.Millisecond
	maxListLimit    = 500
)

type PostgresStore struct {
	db *sql.DB
}

// NewPostgres opens dsn, waits for the database to accept connections and
// applies the embedded migrations.
func NewPostgres(ctx context.Context, dsn string, log *slog.Logger) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := ping(ctx, db, log); err != nil {
		db.Close()
		return nil, err
	}
	s := &PostgresStore{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func ping(ctx context.Context, db *sql.DB, log *slog.Logger) error {
	err := retry.Do(ctx, connectAttempts, connectBackoff, func() error {
		return db.PingContext(ctx)
	}, func(attempt int, wait time.Duration, err error) {
		log.Warn("postgres not ready, retrying", "attempt", attempt, "wait", wait, "err", err)
	})
	if err != nil {
		return fmt.Errorf("postgres unreachable: %w", err)
	}
	return nil
}

// migrationLockID is the advisory lock shared by every replica's migrator.
const migrationLockID = 734112093

func (s *PostgresStore) migrate(ctx context.Context) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	// Replicas starting together queue on the lock; later holders find
	// nothing to apply.
	return withAdvisoryLock(ctx, conn, migrationLockID, func() error {
		goose.SetBaseFS(migrations)
		goose.SetTableName("nlu_schema_migrations")
		if err := goose.SetDialect("postgres"); err != nil {
			return err
		}
		if err := goose.UpContext(ctx, s.db, "migrations"); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		return nil
	})
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// withAdvisoryLock blocks until the session-level lock id is held on conn,
// runs fn and releases the lock.
func withAdvisoryLock(ctx context.Context, conn execer, id int64, fn func() error) error {
	if _, err := conn.ExecContext(ctx, `SELECT pg_advisory_lock($1)`, id); err != nil {
		return fmt.Errorf("failed to acquire migration lock: %w", err)
	}
	defer func() {
		_, _ = conn.ExecContext(context.Background(), `SELECT pg_advisory_unlock($1)`, id)
	}()
	return fn()
}

func (s *PostgresStore) Record(ctx context.Context, rec Record) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	errs := rec.Errors
	if errs == nil {
		errs = []string{}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO operation_records(id, operation, provider, model, outcome, attempts, errors, duration_ms, created_at)
		VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		rec.ID, rec.Operation, rec.Provider, rec.Model, rec.Outcome, rec.Attempts, pq.Array(errs), rec.DurationMS, rec.CreatedAt)
	return err
}

func (s *PostgresStore) ListRecent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, operation, provider, model, outcome, attempts, errors, duration_ms, created_at
		FROM operation_records
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.Operation, &rec.Provider, &rec.Model, &rec.Outcome,
			&rec.Attempts, pq.Array(&rec.Errors), &rec.DurationMS, &rec.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
