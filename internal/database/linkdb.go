package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"linkharvest/internal/model"
)

// LinkDB provides SQLite-based storage for crawl sessions and discovered
// target links.
//
// Design decision: We use a single database file across sessions rather than
// one file per crawl. Targets carry a UNIQUE constraint per seed, so
// re-crawling the same site refreshes existing rows instead of accumulating
// duplicates, and cross-session queries ("when did this link first appear")
// stay simple.
type LinkDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures LinkDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent performance.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a LinkDB in the specified directory.
// If CreateIfNotExists is true, the directory and database file are created.
// If CreateIfNotExists is false and the database doesn't exist, an error is
// returned.
func Open(dbDir string, opts Options) (*LinkDB, error) {
	dbPath := filepath.Join(dbDir, "linkharvest.db")

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// modernc.org/sqlite DSN: mode=rw prevents creating new files,
	// mode=rwc allows creation.
	var dsn string
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	} else {
		dsn = dbPath + "?mode=rw"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer; a single connection avoids
	// SQLITE_BUSY under concurrent inserts.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	ldb := &LinkDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := ldb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return ldb, nil
}

// Close closes the database connection.
func (ldb *LinkDB) Close() error {
	return ldb.db.Close()
}

// Path returns the path of the database file.
func (ldb *LinkDB) Path() string {
	return ldb.dbPath
}

// createTables creates the database schema if it doesn't exist.
func (ldb *LinkDB) createTables() error {
	schema := `
	-- Sessions store one row per crawl run with its summary counters.
	CREATE TABLE IF NOT EXISTS sessions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		seed TEXT NOT NULL,
		started_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		duration_ms INTEGER,
		pages_visited INTEGER,
		pagination_fetches INTEGER,
		gateways_resolved INTEGER,
		links_found INTEGER,
		cancelled INTEGER DEFAULT 0,
		skipped_urls TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_seed ON sessions(seed);
	CREATE INDEX IF NOT EXISTS idx_sessions_started ON sessions(started_at);

	-- Targets store discovered links, deduplicated per seed.
	CREATE TABLE IF NOT EXISTS targets (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id INTEGER NOT NULL REFERENCES sessions(id),
		seed TEXT NOT NULL,
		source_url TEXT NOT NULL,
		target_url TEXT NOT NULL,
		kind TEXT NOT NULL,
		first_seen DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(target_url, seed)
	);

	CREATE INDEX IF NOT EXISTS idx_targets_session ON targets(session_id);
	CREATE INDEX IF NOT EXISTS idx_targets_kind ON targets(kind);
	CREATE INDEX IF NOT EXISTS idx_targets_url ON targets(target_url);
	`

	_, err := ldb.db.ExecContext(context.Background(), schema)
	return err
}

// InsertSession stores a crawl report's summary row and returns the session
// id for target inserts.
func (ldb *LinkDB) InsertSession(ctx context.Context, report *model.CrawlReport) (int64, error) {
	skippedJSON, err := json.Marshal(report.SkippedURLs)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize skipped URLs: %w", err)
	}

	query := `
	INSERT INTO sessions (seed, duration_ms, pages_visited, pagination_fetches, gateways_resolved, links_found, cancelled, skipped_urls)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := ldb.db.ExecContext(ctx, query,
		report.Seed,
		report.Duration.Milliseconds(),
		report.PagesVisited,
		report.PaginationFetches,
		report.GatewaysResolved,
		len(report.Targets),
		boolToInt(report.Cancelled),
		string(skippedJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert session: %w", err)
	}

	return result.LastInsertId()
}

// InsertTargets stores the discovered links of a session in one transaction.
// Re-discovered targets (same target URL and seed) update in place, keeping
// the original first_seen timestamp.
func (ldb *LinkDB) InsertTargets(ctx context.Context, sessionID int64, seed string, links []model.TargetLink) error {
	tx, err := ldb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `
	INSERT INTO targets (session_id, seed, source_url, target_url, kind)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(target_url, seed) DO UPDATE SET
		session_id = excluded.session_id,
		source_url = excluded.source_url,
		kind = excluded.kind
	`

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, link := range links {
		if _, err := stmt.ExecContext(ctx, sessionID, seed, link.SourceURL, link.TargetURL, string(link.Kind)); err != nil {
			return fmt.Errorf("failed to insert target %s: %w", link.TargetURL, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit targets: %w", err)
	}
	return nil
}

// TargetRecord is a stored target link with its bookkeeping columns.
type TargetRecord struct {
	ID        int64
	SessionID int64
	Seed      string
	Link      model.TargetLink
	FirstSeen time.Time
}

// ListTargets returns the stored targets for a seed in first-seen order.
func (ldb *LinkDB) ListTargets(ctx context.Context, seed string) ([]TargetRecord, error) {
	query := `
	SELECT id, session_id, seed, source_url, target_url, kind, first_seen
	FROM targets
	WHERE seed = ?
	ORDER BY id
	`

	rows, err := ldb.db.QueryContext(ctx, query, seed)
	if err != nil {
		return nil, fmt.Errorf("failed to list targets: %w", err)
	}
	defer rows.Close()

	var records []TargetRecord
	for rows.Next() {
		var rec TargetRecord
		var kind string
		var firstSeen string
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.Seed, &rec.Link.SourceURL, &rec.Link.TargetURL, &kind, &firstSeen); err != nil {
			return nil, fmt.Errorf("failed to scan target: %w", err)
		}
		rec.Link.Kind = model.LinkKind(kind)
		rec.FirstSeen = parseTimestamp(firstSeen)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate targets: %w", err)
	}

	return records, nil
}

// HasTarget reports whether a target URL is already stored for the seed.
func (ldb *LinkDB) HasTarget(ctx context.Context, seed, targetURL string) (bool, error) {
	query := `SELECT COUNT(*) FROM targets WHERE seed = ? AND target_url = ?`

	var count int
	if err := ldb.db.QueryRowContext(ctx, query, seed, targetURL).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check target: %w", err)
	}
	return count > 0, nil
}

// SessionRecord is a stored crawl session summary.
type SessionRecord struct {
	ID                int64
	Seed              string
	StartedAt         time.Time
	Duration          time.Duration
	PagesVisited      int
	PaginationFetches int
	GatewaysResolved  int
	LinksFound        int
	Cancelled         bool
}

// ListSessions returns the stored sessions for a seed, most recent first.
func (ldb *LinkDB) ListSessions(ctx context.Context, seed string) ([]SessionRecord, error) {
	query := `
	SELECT id, seed, started_at, duration_ms, pages_visited, pagination_fetches, gateways_resolved, links_found, cancelled
	FROM sessions
	WHERE seed = ?
	ORDER BY id DESC
	`

	rows, err := ldb.db.QueryContext(ctx, query, seed)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var records []SessionRecord
	for rows.Next() {
		var rec SessionRecord
		var startedAt string
		var durationMS int64
		var cancelled int
		if err := rows.Scan(&rec.ID, &rec.Seed, &startedAt, &durationMS, &rec.PagesVisited, &rec.PaginationFetches, &rec.GatewaysResolved, &rec.LinksFound, &cancelled); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		rec.StartedAt = parseTimestamp(startedAt)
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		rec.Cancelled = cancelled != 0
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sessions: %w", err)
	}

	return records, nil
}

// parseTimestamp parses the timestamp formats SQLite returns depending on
// version and configuration.
func parseTimestamp(s string) time.Time {
	formats := []string{
		"2006-01-02 15:04:05",
		time.RFC3339,
		"2006-01-02T15:04:05Z",
	}
	for _, f := range formats {
		if t, err := time.Parse(f, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
