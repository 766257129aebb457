package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/hive/internal/models"
)

// Statistics keys in the scheme_stats table.
const (
	statDate      = "date"
	statConcepts  = "concepts"
	statRelations = "relations"
	statBroader   = "broader"
	statNarrower  = "narrower"
	statRelated   = "related"
)

// SQLiteStats implements StatsStore on a SQLite database named dbName inside each index directory.
type SQLiteStats struct {
	dbName string
}

// NewSQLiteStats returns a SQLiteStats looking for dbName in index directories.
func NewSQLiteStats(dbName string) *SQLiteStats {
	return &SQLiteStats{dbName: dbName}
}

// Path returns the database path for indexDir.
func (s *SQLiteStats) Path(indexDir string) string {
	return filepath.Join(indexDir, s.dbName)
}

// Statistics opens the database read-only and returns the recorded statistics.
// A missing database or a missing statistic is an error.
func (s *SQLiteStats) Statistics(ctx context.Context, indexDir string) (models.Statistics, error) {
	path := s.Path(indexDir)
	if _, err := os.Stat(path); err != nil {
		return models.Statistics{}, fmt.Errorf("index database unavailable: %w", err)
	}
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return models.Statistics{}, fmt.Errorf("failed to open index database: %w", err)
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, `SELECT key, value FROM scheme_stats`)
	if err != nil {
		return models.Statistics{}, fmt.Errorf("failed to query statistics: %w", err)
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return models.Statistics{}, err
		}
		values[k] = v
	}
	if err := rows.Err(); err != nil {
		return models.Statistics{}, err
	}

	var st models.Statistics
	var ok bool
	if st.LastDate, ok = values[statDate]; !ok {
		return models.Statistics{}, fmt.Errorf("statistic not found: %s", statDate)
	}
	counts := []struct {
		key string
		dst *int
	}{
		{statConcepts, &st.Concepts},
		{statRelations, &st.Relations},
		{statBroader, &st.Broader},
		{statNarrower, &st.Narrower},
		{statRelated, &st.Related},
	}
	for _, c := range counts {
		raw, ok := values[c.key]
		if !ok {
			return models.Statistics{}, fmt.Errorf("statistic not found: %s", c.key)
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return models.Statistics{}, fmt.Errorf("invalid statistic %s: %w", c.key, err)
		}
		*c.dst = n
	}
	return st, nil
}

// PutStatistics records st in the database for indexDir, creating it if needed.
// Used to lay down fixtures in the layout the index administration service writes.
func (s *SQLiteStats) PutStatistics(ctx context.Context, indexDir string, st models.Statistics) error {
	if err := os.MkdirAll(indexDir, 0755); err != nil {
		return fmt.Errorf("failed to create index directory: %w", err)
	}
	db, err := sql.Open("sqlite3", s.Path(indexDir))
	if err != nil {
		return fmt.Errorf("failed to open index database: %w", err)
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS scheme_stats (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);`); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO scheme_stats (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	values := [][2]string{
		{statDate, st.LastDate},
		{statConcepts, strconv.Itoa(st.Concepts)},
		{statRelations, strconv.Itoa(st.Relations)},
		{statBroader, strconv.Itoa(st.Broader)},
		{statNarrower, strconv.Itoa(st.Narrower)},
		{statRelated, strconv.Itoa(st.Related)},
	}
	for _, kv := range values {
		if _, err := stmt.ExecContext(ctx, kv[0], kv[1]); err != nil {
			return err
		}
	}
	return tx.Commit()
}
