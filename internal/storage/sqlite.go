// Package storage keeps the history of aggregate master queries in SQLite.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"net/netip"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/masterstat/assets"
	"github.com/woozymasta/masterstat/internal/masterstat"
	"github.com/woozymasta/masterstat/internal/models"
	_ "modernc.org/sqlite" // Driver sqlite
)

// Repository manages the SQLite database connection.
type Repository struct {
	db *sql.DB
}

// New initializes a new SQLite connection, sets connection pool parameters, and runs migrations.
func New(dbPath string) (*Repository, error) {
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(1)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(1 * time.Hour)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := runMigrations(db, assets.Migrations()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Repository{db: db}, nil
}

// Close closes the underlying database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// SaveRun stores a run with its per-master outcomes and server list, returning the new run ID.
func (r *Repository) SaveRun(run models.Run) (int64, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.Exec(`
		INSERT INTO runs (started_at, duration_ms, masters, succeeded, servers, fingerprint)
		VALUES (?, ?, ?, ?, ?, ?)`,
		run.StartedAt.UTC(), run.Duration.Milliseconds(), run.MasterCount, run.Succeeded, run.ServerCount, run.Fingerprint,
	)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	for i, m := range run.Masters {
		if _, err := tx.Exec(`
			INSERT INTO master_results (run_id, position, master, servers, error, elapsed_ms)
			VALUES (?, ?, ?, ?, ?, ?)`,
			id, i, m.Master, m.Servers, m.Error, m.Elapsed.Milliseconds(),
		); err != nil {
			return 0, fmt.Errorf("insert master result %s: %w", m.Master, err)
		}
	}

	stmt, err := tx.Prepare(`INSERT OR IGNORE INTO run_servers (run_id, ip, port) VALUES (?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer func() { _ = stmt.Close() }()

	for _, s := range run.Servers {
		if _, err := stmt.Exec(id, s.Addr().String(), s.Port); err != nil {
			return 0, fmt.Errorf("insert server %s: %w", s, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}

	return id, nil
}

// ListRuns returns up to limit runs, newest first, without masters and servers.
func (r *Repository) ListRuns(limit int) ([]models.Run, error) {
	rows, err := r.db.Query(`
		SELECT id, started_at, duration_ms, masters, succeeded, servers, fingerprint
		FROM runs
		ORDER BY started_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var runs []models.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return runs, nil
}

// LatestRun returns the newest run with its masters and servers, or nil if there is none.
func (r *Repository) LatestRun() (*models.Run, error) {
	row := r.db.QueryRow(`
		SELECT id, started_at, duration_ms, masters, succeeded, servers, fingerprint
		FROM runs
		ORDER BY started_at DESC, id DESC
		LIMIT 1`)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // Not found
	}
	if err != nil {
		return nil, err
	}

	if run.Masters, err = r.masterResults(run.ID); err != nil {
		return nil, err
	}
	if run.Servers, err = r.runServers(run.ID); err != nil {
		return nil, err
	}

	return &run, nil
}

// PruneRuns deletes runs started before the given time and returns how many were removed.
func (r *Repository) PruneRuns(before time.Time) (int64, error) {
	res, err := r.db.Exec(`DELETE FROM runs WHERE started_at < ?`, before.UTC())
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (models.Run, error) {
	var (
		run        models.Run
		durationMS int64
	)

	err := s.Scan(&run.ID, &run.StartedAt, &durationMS, &run.MasterCount, &run.Succeeded, &run.ServerCount, &run.Fingerprint)
	run.Duration = time.Duration(durationMS) * time.Millisecond

	return run, err
}

func (r *Repository) masterResults(runID int64) ([]models.MasterOutcome, error) {
	rows, err := r.db.Query(`
		SELECT master, servers, error, elapsed_ms
		FROM master_results
		WHERE run_id = ?
		ORDER BY position`, runID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []models.MasterOutcome
	for rows.Next() {
		var (
			m         models.MasterOutcome
			elapsedMS int64
		)
		if err := rows.Scan(&m.Master, &m.Servers, &m.Error, &elapsedMS); err != nil {
			return nil, err
		}
		m.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		out = append(out, m)
	}

	return out, rows.Err()
}

func (r *Repository) runServers(runID int64) ([]masterstat.ServerAddress, error) {
	rows, err := r.db.Query(`SELECT ip, port FROM run_servers WHERE run_id = ?`, runID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []masterstat.ServerAddress
	for rows.Next() {
		var (
			ip   string
			port uint16
		)
		if err := rows.Scan(&ip, &port); err != nil {
			return nil, err
		}

		addr, err := netip.ParseAddr(ip)
		if err != nil || !addr.Is4() {
			return nil, fmt.Errorf("invalid stored address %q", ip)
		}
		out = append(out, masterstat.ServerAddress{IP: addr.As4(), Port: port})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return masterstat.SortedUnique(out), nil
}

// Record stores an aggregate as a new run. With skipUnchanged the run is not stored
// if its server set fingerprint equals the latest stored run; saved reports the outcome.
func (r *Repository) Record(agg masterstat.Aggregate, startedAt time.Time, duration time.Duration, skipUnchanged bool) (id int64, saved bool, err error) {
	run := models.NewRun(agg, startedAt, duration)

	if skipUnchanged {
		var last string
		err := r.db.QueryRow(`SELECT fingerprint FROM runs ORDER BY started_at DESC, id DESC LIMIT 1`).Scan(&last)
		switch {
		case err == nil && last == run.Fingerprint:
			log.Debug().Str("fingerprint", last).Msg("Server set unchanged, run not stored")
			return 0, false, nil
		case err != nil && !errors.Is(err, sql.ErrNoRows):
			return 0, false, err
		}
	}

	id, err = r.SaveRun(run)
	if err != nil {
		return 0, false, err
	}

	log.Debug().Int64("run", id).Int("servers", run.ServerCount).Msg("Run stored")

	return id, true, nil
}
