package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"PopWatcher/internal/domain"
	"PopWatcher/internal/ports"
)

// ErrUnavailable marks ledger errors that must abort announcing: the process
// may never publish without a reachable dedup store.
var ErrUnavailable = errors.New("ledger unavailable")

// PostgresLedger persists announced item ids in Postgres. Entries are
// append-only; retention is an external housekeeping concern.
type PostgresLedger struct {
	db      *sql.DB
	builder sq.StatementBuilderType
}

var _ ports.Ledger = (*PostgresLedger)(nil)

// Open connects to Postgres with the given DSN.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return db, nil
}

// NewPostgresLedger wires a sql.DB implementation.
func NewPostgresLedger(db *sql.DB) *PostgresLedger {
	return &PostgresLedger{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Ping verifies the ledger store is reachable. Called once at startup; a
// failure there is fatal for the process.
func (l *PostgresLedger) Ping(ctx context.Context) error {
	if err := l.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// EnsureSchema creates the ledger table when it does not exist yet.
func (l *PostgresLedger) EnsureSchema(ctx context.Context) error {
	const ddl = `CREATE TABLE IF NOT EXISTS announced_items (
        item_id      TEXT PRIMARY KEY,
        announced_at TIMESTAMPTZ NOT NULL,
        source_page  TEXT NOT NULL DEFAULT ''
    )`

	if _, err := l.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("%w: ensure schema: %v", ErrUnavailable, err)
	}
	return nil
}

// Contains reports whether the item id has been announced before.
func (l *PostgresLedger) Contains(ctx context.Context, itemID string) (bool, error) {
	query, args, err := l.builder.
		Select("1").
		From("announced_items").
		Where(sq.Eq{"item_id": itemID}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build contains query: %w", err)
	}

	var one int
	err = l.db.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: query contains: %v", ErrUnavailable, err)
	}
	return true, nil
}

// ContainsAll returns a map with the ids that already exist in the ledger.
func (l *PostgresLedger) ContainsAll(ctx context.Context, itemIDs []string) (map[string]bool, error) {
	result := make(map[string]bool, len(itemIDs))
	if len(itemIDs) == 0 {
		return result, nil
	}

	query, args, err := l.builder.
		Select("item_id").
		From("announced_items").
		Where(sq.Expr("item_id = ANY(?)", pq.StringArray(itemIDs))).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build contains-all query: %w", err)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query contains-all: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		result[id] = true
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: rows iteration: %v", ErrUnavailable, err)
	}

	return result, nil
}

// Record appends one ledger entry. Recording an already-present id is a
// no-op: the insert conflicts on the primary key and does nothing.
func (l *PostgresLedger) Record(ctx context.Context, entry domain.LedgerEntry) error {
	query, args, err := l.builder.
		Insert("announced_items").
		Columns("item_id", "announced_at", "source_page").
		Values(entry.ItemID, entry.AnnouncedAt, entry.SourcePage).
		Suffix("ON CONFLICT (item_id) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("build record query: %w", err)
	}

	if _, err := l.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%w: record %s: %v", ErrUnavailable, entry.ItemID, err)
	}
	return nil
}
