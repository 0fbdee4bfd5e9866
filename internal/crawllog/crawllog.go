// Package crawllog records every scheduling hand-off the middle queue
// makes to the fetcher: which URL was emitted, from which host, at what
// monotonic time, and with what wait hint. It is a narrow, single-table
// sqlite log carrying the discovery-metadata (URL, discovered-from,
// depth) that the frontier itself no longer tracks once a URL leaves
// it — the frontier stores only the canonical URL and its score.
package crawllog

import (
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS crawl_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	url TEXT NOT NULL,
	host TEXT NOT NULL,
	discovered_from TEXT,
	depth INTEGER NOT NULL DEFAULT 0,
	emitted_at_ms INTEGER NOT NULL,
	wait_hint_ms INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_crawl_log_host ON crawl_log(host);
CREATE INDEX IF NOT EXISTS idx_crawl_log_emitted_at ON crawl_log(emitted_at_ms);
`

// Record is one hand-off from the middle queue to the fetcher.
type Record struct {
	URL            string
	Host           string
	DiscoveredFrom string
	Depth          int
	EmittedAtMs    int64
	WaitHintMs     int64
}

// Log is a WAL-mode sqlite-backed append log of Records.
type Log struct {
	mu         sync.Mutex
	db         *sql.DB
	insertStmt *sql.Stmt
}

// Open creates (or reuses) the sqlite file at path in WAL mode with a
// single-writer connection pool, then ensures the schema exists.
func Open(path string) (*Log, error) {
	dsn := fmt.Sprintf("%s?_journal=WAL&_synchronous=NORMAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("crawllog: open: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("crawllog: ping: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("crawllog: create schema: %w", err)
	}

	stmt, err := db.Prepare(`
		INSERT INTO crawl_log (url, host, discovered_from, depth, emitted_at_ms, wait_hint_ms)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("crawllog: prepare insert: %w", err)
	}

	return &Log{db: db, insertStmt: stmt}, nil
}

// Record appends one hand-off entry.
func (l *Log) Record(r Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, err := l.insertStmt.Exec(r.URL, r.Host, r.DiscoveredFrom, r.Depth, r.EmittedAtMs, r.WaitHintMs)
	if err != nil {
		return fmt.Errorf("crawllog: insert: %w", err)
	}
	return nil
}

// RecentByHost returns up to limit most recent records for host,
// newest first.
func (l *Log) RecentByHost(host string, limit int) ([]Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rows, err := l.db.Query(`
		SELECT url, host, discovered_from, depth, emitted_at_ms, wait_hint_ms
		FROM crawl_log
		WHERE host = ?
		ORDER BY emitted_at_ms DESC
		LIMIT ?
	`, host, limit)
	if err != nil {
		return nil, fmt.Errorf("crawllog: query: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		var discoveredFrom sql.NullString
		if err := rows.Scan(&r.URL, &r.Host, &discoveredFrom, &r.Depth, &r.EmittedAtMs, &r.WaitHintMs); err != nil {
			return nil, fmt.Errorf("crawllog: scan: %w", err)
		}
		r.DiscoveredFrom = discoveredFrom.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// Count returns the total number of recorded hand-offs.
func (l *Log) Count() (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var n int64
	err := l.db.QueryRow(`SELECT COUNT(*) FROM crawl_log`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("crawllog: count: %w", err)
	}
	return n, nil
}

// Close releases the prepared statement and the underlying connection.
func (l *Log) Close() error {
	l.insertStmt.Close()
	return l.db.Close()
}
