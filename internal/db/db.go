// Package db archives exported sessions in a sqlite database. The schema is
// managed by embedded golang-migrate migrations and the database is exposed
// for live inspection through tailsql on the debug routes.
package db

import (
	"compress/gzip"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/tailscale/tailsql/server/tailsql"
	_ "modernc.org/sqlite"
	"tailscale.com/tsweb"

	"github.com/banshee-data/beaconradar/internal/history"
	"github.com/banshee-data/beaconradar/internal/monitoring"
)

// ErrSessionNotFound is returned when a session id has no archive entry.
var ErrSessionNotFound = errors.New("session not found in archive")

var logf = monitoring.Prefixed("db")

type DB struct {
	*sql.DB
	path string
}

// pragmas are applied to every connection opened by Open.
var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA temp_store=MEMORY",
	"PRAGMA foreign_keys=ON",
}

// Open opens (creating if needed) the archive at path and applies any
// pending migrations.
func Open(path string) (*DB, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	if err := db.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// openDB opens the archive without touching its schema.
func openDB(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One connection keeps the per-connection pragmas in force.
	sqlDB.SetMaxOpenConns(1)

	for _, p := range pragmas {
		if _, err := sqlDB.Exec(p); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}
	return &DB{DB: sqlDB, path: path}, nil
}

// Path returns the file the archive was opened from.
func (db *DB) Path() string { return db.path }

// SessionSummary is one row of the sessions table.
type SessionSummary struct {
	ID         string    `json:"session_id"`
	StartedAt  time.Time `json:"started_at"`
	ArchivedAt time.Time `json:"archived_at"`
	Records    int       `json:"records"`
}

// ArchiveSession stores the export log of a session in one transaction.
// Archiving the same session again replaces its earlier rows.
func (db *DB) ArchiveSession(id string, startedAt time.Time, records []history.ExportRecord) (int, error) {
	if id == "" {
		return 0, fmt.Errorf("archive: session id is required")
	}

	tx, err := db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM observations WHERE session_id = ?`, id); err != nil {
		return 0, fmt.Errorf("failed to clear observations: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM sessions WHERE session_id = ?`, id); err != nil {
		return 0, fmt.Errorf("failed to clear session: %w", err)
	}

	_, err = tx.Exec(
		`INSERT INTO sessions (session_id, started_at, archived_at, records) VALUES (?, ?, ?, ?)`,
		id, startedAt.UTC().Format(time.RFC3339Nano), time.Now().UTC().Format(time.RFC3339Nano), len(records),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert session: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO observations (session_id, seq, ts, mac, name, rssi) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for i, r := range records {
		if _, err := stmt.Exec(id, i, r.Timestamp, r.ID, r.Name, r.RSSI); err != nil {
			return 0, fmt.Errorf("failed to insert observation %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	logf("archived session %s (%d records)", id, len(records))
	return len(records), nil
}

// SessionRecords returns the archived export log of a session in its
// original order.
func (db *DB) SessionRecords(id string) ([]history.ExportRecord, error) {
	var exists int
	err := db.QueryRow(`SELECT COUNT(*) FROM sessions WHERE session_id = ?`, id).Scan(&exists)
	if err != nil {
		return nil, err
	}
	if exists == 0 {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	rows, err := db.Query(`SELECT ts, mac, name, rssi FROM observations WHERE session_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []history.ExportRecord{}
	for rows.Next() {
		var r history.ExportRecord
		if err := rows.Scan(&r.Timestamp, &r.ID, &r.Name, &r.RSSI); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// Sessions lists archived sessions, newest first.
func (db *DB) Sessions() ([]SessionSummary, error) {
	rows, err := db.Query(`SELECT session_id, started_at, archived_at, records FROM sessions ORDER BY archived_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []SessionSummary
	for rows.Next() {
		var (
			s                  SessionSummary
			started, archived string
		)
		if err := rows.Scan(&s.ID, &started, &archived, &s.Records); err != nil {
			return nil, err
		}
		s.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		s.ArchivedAt, _ = time.Parse(time.RFC3339Nano, archived)
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}

// AttachAdminRoutes mounts tailsql over the archive and a backup download
// on the tsweb debug routes of mux.
func (db *DB) AttachAdminRoutes(mux *http.ServeMux) error {
	debug := tsweb.Debugger(mux)
	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		return fmt.Errorf("failed to create tailsql server: %w", err)
	}
	tsql.SetDB("sqlite://"+filepath.Base(db.path), db.DB, &tailsql.DBOptions{
		Label: "Beacon archive",
	})

	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())
	debug.Handle("backup", "Create and download a backup of the archive now", http.HandlerFunc(db.serveBackup))
	return nil
}

func (db *DB) serveBackup(w http.ResponseWriter, r *http.Request) {
	backupPath := filepath.Join(os.TempDir(), fmt.Sprintf("beaconradar-backup-%d.db", time.Now().UnixNano()))
	if _, err := db.Exec("VACUUM INTO ?", backupPath); err != nil {
		http.Error(w, fmt.Sprintf("Failed to create backup: %v", err), http.StatusInternalServerError)
		return
	}
	defer func() {
		if err := os.Remove(backupPath); err != nil {
			logf("failed to remove backup file: %v", err)
		}
	}()

	backupFile, err := os.Open(backupPath)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to open backup file: %v", err), http.StatusInternalServerError)
		return
	}
	defer backupFile.Close()

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.gz", filepath.Base(backupPath)))
	w.Header().Set("Content-Type", "application/gzip")

	gz := gzip.NewWriter(w)
	defer gz.Close()
	if _, err := io.Copy(gz, backupFile); err != nil {
		logf("failed to stream backup: %v", err)
	}
}
