package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS admission_decisions (
	id          TEXT PRIMARY KEY,
	recorded_at INTEGER NOT NULL,
	client_id   TEXT NOT NULL,
	allowed     INTEGER NOT NULL,
	latency_ns  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_decisions_recorded_at
	ON admission_decisions(recorded_at);
CREATE INDEX IF NOT EXISTS idx_decisions_client
	ON admission_decisions(client_id, recorded_at);
`

// SQLiteStore persists audit records in a SQLite database. It uses WAL mode
// for concurrent readers and prepared statements on the hot paths.
type SQLiteStore struct {
	db *sql.DB

	appendStmt *sql.Stmt
	recentStmt *sql.Stmt
	pruneStmt  *sql.Stmt
}

// SQLiteConfig configures the SQLite audit store.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// NewSQLiteStore opens (and if needed initializes) the decision log at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	return NewSQLiteStoreWithConfig(SQLiteConfig{Path: path})
}

// NewSQLiteStoreWithConfig opens a store with custom settings.
func NewSQLiteStoreWithConfig(cfg SQLiteConfig) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("audit: sqlite path cannot be empty")
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=%d&_synchronous=NORMAL",
		cfg.Path, cfg.BusyTimeout.Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("audit: failed to open database: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("audit: failed to initialize schema: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.prepareStatements(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *SQLiteStore) prepareStatements() error {
	var err error

	s.appendStmt, err = s.db.Prepare(
		`INSERT INTO admission_decisions (id, recorded_at, client_id, allowed, latency_ns)
		 VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("audit: failed to prepare append: %w", err)
	}

	s.recentStmt, err = s.db.Prepare(
		`SELECT id, recorded_at, client_id, allowed, latency_ns
		 FROM admission_decisions ORDER BY recorded_at DESC LIMIT ?`)
	if err != nil {
		return fmt.Errorf("audit: failed to prepare recent: %w", err)
	}

	s.pruneStmt, err = s.db.Prepare(
		`DELETE FROM admission_decisions WHERE recorded_at < ?`)
	if err != nil {
		return fmt.Errorf("audit: failed to prepare prune: %w", err)
	}

	return nil
}

// Append persists one record.
func (s *SQLiteStore) Append(ctx context.Context, record *Record) error {
	allowed := 0
	if record.Allowed {
		allowed = 1
	}

	_, err := s.appendStmt.ExecContext(ctx,
		record.ID,
		record.Timestamp.UnixNano(),
		record.ClientID,
		allowed,
		int64(record.Latency),
	)
	if err != nil {
		return fmt.Errorf("audit: failed to append record: %w", err)
	}
	return nil
}

// Recent returns up to limit records, newest first.
func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]*Record, error) {
	rows, err := s.recentStmt.QueryContext(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("audit: failed to query records: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		var (
			record     Record
			recordedAt int64
			allowed    int
			latencyNS  int64
		)
		if err := rows.Scan(&record.ID, &recordedAt, &record.ClientID, &allowed, &latencyNS); err != nil {
			return nil, fmt.Errorf("audit: failed to scan record: %w", err)
		}
		record.Timestamp = time.Unix(0, recordedAt)
		record.Allowed = allowed != 0
		record.Latency = time.Duration(latencyNS)
		records = append(records, &record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit: failed to iterate records: %w", err)
	}

	return records, nil
}

// Prune deletes records older than the cutoff and returns how many rows
// were removed.
func (s *SQLiteStore) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	result, err := s.pruneStmt.ExecContext(ctx, olderThan.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("audit: failed to prune records: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("audit: failed to count pruned rows: %w", err)
	}
	return deleted, nil
}

// Close releases prepared statements and the database handle.
func (s *SQLiteStore) Close() error {
	for _, stmt := range []*sql.Stmt{s.appendStmt, s.recentStmt, s.pruneStmt} {
		if stmt != nil {
			stmt.Close()
		}
	}
	return s.db.Close()
}
