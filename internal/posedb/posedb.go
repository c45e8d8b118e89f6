// Package posedb records validated position fixes to sqlite for later
// analysis. Recording is best-effort: a failed insert is logged and the
// pipeline keeps running.
package posedb

import (
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/tailscale/tailsql/server/tailsql"
	"gonum.org/v1/gonum/stat"
	_ "modernc.org/sqlite"
	"tailscale.com/tsweb"

	"github.com/banshee-data/pose.report/internal/monitoring"
	"github.com/banshee-data/pose.report/internal/pose"
)

type DB struct {
	*sql.DB
	sessionID string
}

// NewDB opens (creating if needed) the fix database at path and starts a new
// recording session identified by a UUID.
func NewDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			session_id        TEXT PRIMARY KEY,
			started_at        TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS fixes (
			session_id        TEXT,
			x                 DOUBLE,
			y                 DOUBLE,
			z                 DOUBLE,
			std_dev           DOUBLE,
			source            TEXT,
			fix_time          TIMESTAMP,
			timestamp         TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY(session_id) REFERENCES sessions(session_id)
		);
		CREATE INDEX IF NOT EXISTS idx_fixes_session ON fixes(session_id, fix_time);
	`)
	if err != nil {
		return nil, err
	}

	sessionID := uuid.NewString()
	if _, err := db.Exec("INSERT INTO sessions (session_id) VALUES (?)", sessionID); err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}

	return &DB{DB: db, sessionID: sessionID}, nil
}

// SessionID returns the UUID of the current recording session.
func (db *DB) SessionID() string { return db.sessionID }

// InsertFix writes one fix to the current session.
func (db *DB) InsertFix(f pose.Fix) error {
	_, err := db.Exec(
		"INSERT INTO fixes (session_id, x, y, z, std_dev, source, fix_time) VALUES (?, ?, ?, ?, ?, ?, ?)",
		db.sessionID, f.X, f.Y, f.Z, f.StdDev, f.Source, f.Time,
	)
	return err
}

// RecordFix implements pose.Recorder. Insert failures are logged, never
// surfaced: persistence must not add a failure path to the pipeline.
func (db *DB) RecordFix(f pose.Fix) {
	if err := db.InsertFix(f); err != nil {
		monitoring.Logf("failed to record fix: %v", err)
	}
}

// RecentFixes returns up to limit fixes from the current session, newest
// first.
func (db *DB) RecentFixes(limit int) ([]pose.Fix, error) {
	rows, err := db.Query(
		"SELECT x, y, z, std_dev, source, fix_time FROM fixes WHERE session_id = ? ORDER BY fix_time DESC LIMIT ?",
		db.sessionID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fixes []pose.Fix
	for rows.Next() {
		var f pose.Fix
		if err := rows.Scan(&f.X, &f.Y, &f.Z, &f.StdDev, &f.Source, &f.Time); err != nil {
			return nil, err
		}
		fixes = append(fixes, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return fixes, nil
}

// SessionStats summarises the current session's fixes.
type SessionStats struct {
	SessionID string    `json:"session_id"`
	Count     int       `json:"count"`
	MeanX     float64   `json:"mean_x"`
	MeanY     float64   `json:"mean_y"`
	MeanZ     float64   `json:"mean_z"`
	JitterX   float64   `json:"jitter_x"` // stddev of x over the session
	JitterY   float64   `json:"jitter_y"`
	JitterZ   float64   `json:"jitter_z"`
	MeanNoise float64   `json:"mean_noise"` // mean reported stdDev
	First     time.Time `json:"first,omitempty"`
	Last      time.Time `json:"last,omitempty"`
}

// Stats computes position statistics for the current session.
func (db *DB) Stats() (SessionStats, error) {
	rows, err := db.Query(
		"SELECT x, y, z, std_dev, fix_time FROM fixes WHERE session_id = ? ORDER BY fix_time ASC",
		db.sessionID,
	)
	if err != nil {
		return SessionStats{}, err
	}
	defer rows.Close()

	var xs, ys, zs, noise []float64
	var first, last time.Time
	for rows.Next() {
		var x, y, z, sd float64
		var at time.Time
		if err := rows.Scan(&x, &y, &z, &sd, &at); err != nil {
			return SessionStats{}, err
		}
		if len(xs) == 0 {
			first = at
		}
		last = at
		xs = append(xs, x)
		ys = append(ys, y)
		zs = append(zs, z)
		noise = append(noise, sd)
	}
	if err := rows.Err(); err != nil {
		return SessionStats{}, err
	}

	s := SessionStats{SessionID: db.sessionID, Count: len(xs)}
	if len(xs) == 0 {
		return s, nil
	}
	s.MeanX = stat.Mean(xs, nil)
	s.MeanY = stat.Mean(ys, nil)
	s.MeanZ = stat.Mean(zs, nil)
	s.MeanNoise = stat.Mean(noise, nil)
	if len(xs) > 1 {
		s.JitterX = stat.StdDev(xs, nil)
		s.JitterY = stat.StdDev(ys, nil)
		s.JitterZ = stat.StdDev(zs, nil)
	}
	s.First = first
	s.Last = last
	return s, nil
}

// AttachAdminRoutes mounts a tailSQL browser over the fix database on the
// debug mux. These routes are reachable only via localhost/Tailscale.
func (db *DB) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		log.Fatalf("failed to create tailsql server: %v", err)
	}
	tsql.SetDB("sqlite://pose.db", db.DB, &tailsql.DBOptions{
		Label: "Pose DB",
	})

	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())
}
