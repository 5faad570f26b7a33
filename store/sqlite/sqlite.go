/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Persists templates, instances, the generation ledger, leave requests and
  per-tenant reminder settings. Two views share one database handle:

  Obligations(): recurring.Store, reminders.Store, obligation.Store
  Leave():       leave.Store

IDEMPOTENCY:
  generation_ledger has a UNIQUE index on (template_id, period). A retried
  generation for a period that was already committed fails with
  generic.ErrDuplicateIdempotencyKey inside its transaction, so the instance
  is never written twice.

RAW RECORDS:
  Templates and instances are returned as string records. A row with an
  unparsable date or an unknown status is still returned; the services parse
  and report it individually.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) and a single connection,
  which also keeps ":memory:" databases shared across calls.

USAGE:
  store, err := sqlite.New("./data/obligations.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  gen := recurring.NewGenerationService(store.Obligations(), log)

SEE ALSO:
  - store/memory: in-memory implementation for tests
  - recurring/service.go, reminders/service.go, leave/service.go: interfaces
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/mattn/go-sqlite3"
)

// Store owns the database handle.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New opens (and migrates) a SQLite database at dbPath.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// NewFromDB wraps an existing handle without migrating it. The caller owns
// the schema.
func NewFromDB(db *sql.DB) *Store {
	return &Store{db: db}
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Obligations returns the obligation view of the store.
func (s *Store) Obligations() *ObligationStore {
	return &ObligationStore{conn{store: s, q: s.db}}
}

// Leave returns the leave request view of the store.
func (s *Store) Leave() *LeaveStore {
	return &LeaveStore{conn{store: s, q: s.db}}
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS templates (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		amount TEXT NOT NULL,
		counterparty TEXT NOT NULL DEFAULT '',
		frequency TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT,
		last_generated_date TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_templates_tenant ON templates(tenant_id);

	CREATE TABLE IF NOT EXISTS instances (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		amount TEXT NOT NULL,
		counterparty TEXT NOT NULL DEFAULT '',
		due_date TEXT,
		status TEXT NOT NULL,
		recurring_source_id TEXT,
		generated_for TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_instances_tenant_due ON instances(tenant_id, due_date);
	CREATE INDEX IF NOT EXISTS idx_instances_source ON instances(recurring_source_id)
		WHERE recurring_source_id IS NOT NULL;

	-- One row per (template, period): the idempotency key of generation
	CREATE TABLE IF NOT EXISTS generation_ledger (
		idempotency_key TEXT PRIMARY KEY,
		template_id TEXT NOT NULL,
		tenant_id TEXT NOT NULL,
		period TEXT NOT NULL,
		instance_id TEXT NOT NULL,
		run_date TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_generation_template_period
		ON generation_ledger(template_id, period);
	CREATE INDEX IF NOT EXISTS idx_generation_tenant ON generation_ledger(tenant_id);

	CREATE TABLE IF NOT EXISTS leave_requests (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		employee_id TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		reason TEXT NOT NULL,
		is_urgent INTEGER NOT NULL DEFAULT 0,
		urgency_reason TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		approval_reason TEXT NOT NULL DEFAULT '',
		rejection_reason TEXT NOT NULL DEFAULT '',
		decided_by TEXT NOT NULL DEFAULT '',
		change_reason TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_leave_tenant_employee ON leave_requests(tenant_id, employee_id);

	CREATE TABLE IF NOT EXISTS tenant_settings (
		tenant_id TEXT PRIMARY KEY,
		reminder_days INTEGER NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS notification_reads (
		tenant_id TEXT NOT NULL,
		notification_id TEXT NOT NULL,
		read_at TEXT NOT NULL,
		PRIMARY KEY (tenant_id, notification_id)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// CONNECTION - db or tx behind one interface
// =============================================================================

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// conn is bound either to the database or to a running transaction. A
// transaction-bound conn skips the store lock, which WithTx already holds.
type conn struct {
	store *Store
	q     queryer
	inTx  bool
}

func (c conn) rlock() func() {
	if c.inTx {
		return func() {}
	}
	c.store.mu.RLock()
	return c.store.mu.RUnlock
}

func (c conn) lock() func() {
	if c.inTx {
		return func() {}
	}
	c.store.mu.Lock()
	return c.store.mu.Unlock
}

// withTx runs fn inside a database transaction. Nested calls reuse the
// running transaction.
func (c conn) withTx(ctx context.Context, fn func(tx conn) error) error {
	if c.inTx {
		return fn(c)
	}
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	sqlTx, err := c.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(conn{store: c.store, q: sqlTx, inTx: true}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
