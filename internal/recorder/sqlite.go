package recorder

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"

	"StochSentinel/internal/model"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

// SQLiteRecorder persists the cycle journal to a SQLite database.
type SQLiteRecorder struct {
	db  *sql.DB
	mu  sync.Mutex
	log logrus.FieldLogger
}

// CycleRow is one journal entry as stored.
type CycleRow struct {
	ID         string
	Source     string
	Timeframe  string
	StartedAt  int64
	FinishedAt int64
	Universe   int
	Scanned    int
	Skipped    int
	Oversold   []string
	Overbought []string
	AlertSent  bool
	Error      string
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string, log logrus.FieldLogger) (*SQLiteRecorder, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, log: log}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.WithField("path", dbPath).Info("sqlite recorder opened")
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS screening_cycles (
			id           TEXT PRIMARY KEY,
			source       TEXT NOT NULL,
			timeframe    TEXT NOT NULL,
			started_at   INTEGER NOT NULL,
			finished_at  INTEGER NOT NULL,
			universe     INTEGER,
			scanned      INTEGER,
			skipped      INTEGER,
			oversold     TEXT,
			overbought   TEXT,
			alert_sent   INTEGER,
			error        TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_cycles_started ON screening_cycles(started_at)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordCycle(rep *model.CycleReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	errText := ""
	switch {
	case rep.Err != nil:
		errText = rep.Err.Error()
	case rep.DeliveryErr != nil:
		errText = rep.DeliveryErr.Error()
	}

	_, err := r.db.Exec(`INSERT INTO screening_cycles
		(id, source, timeframe, started_at, finished_at, universe, scanned, skipped,
		 oversold, overbought, alert_sent, error)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		rep.ID, rep.Source, rep.Timeframe.String(),
		rep.StartedAt.UnixMilli(), rep.FinishedAt.UnixMilli(),
		rep.Universe, rep.Scanned, rep.Skipped,
		joinSymbols(rep.Classification.Oversold), joinSymbols(rep.Classification.Overbought),
		rep.AlertSent, errText,
	)
	return err
}

// RecentCycles returns up to limit journal entries, newest first.
func (r *SQLiteRecorder) RecentCycles(limit int) ([]CycleRow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.db.Query(`SELECT id, source, timeframe, started_at, finished_at,
		universe, scanned, skipped, oversold, overbought, alert_sent, error
		FROM screening_cycles ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CycleRow
	for rows.Next() {
		var (
			row                  CycleRow
			oversold, overbought string
		)
		if err := rows.Scan(&row.ID, &row.Source, &row.Timeframe, &row.StartedAt, &row.FinishedAt,
			&row.Universe, &row.Scanned, &row.Skipped, &oversold, &overbought, &row.AlertSent, &row.Error); err != nil {
			return nil, err
		}
		row.Oversold = splitSymbols(oversold)
		row.Overbought = splitSymbols(overbought)
		out = append(out, row)
	}
	return out, rows.Err()
}

func (r *SQLiteRecorder) Close() error {
	r.log.Info("closing sqlite recorder")
	return r.db.Close()
}

func joinSymbols(snaps []model.Snapshot) string {
	names := make([]string, len(snaps))
	for i, s := range snaps {
		names[i] = s.Symbol
	}
	return strings.Join(names, ",")
}

func splitSymbols(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
