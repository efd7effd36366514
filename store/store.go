// Package store keeps an archive of finished games in a SQLite database.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

var ErrGameNotFound = errors.New("game not found")

const schema = `
CREATE TABLE IF NOT EXISTS games (
	id          TEXT PRIMARY KEY,
	started_at  INTEGER NOT NULL,
	finished_at INTEGER NOT NULL,
	white       TEXT NOT NULL,
	black       TEXT NOT NULL,
	difficulty  TEXT NOT NULL,
	result      TEXT NOT NULL,
	method      TEXT NOT NULL,
	plies       INTEGER NOT NULL,
	start_fen   TEXT NOT NULL,
	final_fen   TEXT NOT NULL,
	pgn         TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS games_finished_at ON games (finished_at);
`

// GameRecord is one archived game. Result uses PGN notation (1-0, 0-1,
// 1/2-1/2, *).
type GameRecord struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	White      string
	Black      string
	Difficulty string
	Result     string
	Method     string
	Plies      int
	StartFEN   string
	FinalFEN   string
	PGN        string
}

type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path. Use ":memory:" for
// a throwaway database.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	pragmas := []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to execute %s: %w", p, err)
		}
	}
	// Autoplay workers write concurrently; sqlite wants one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	log.Debug().Str("path", path).Msg("opened-game-store")
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SaveGame inserts rec, assigning a new id if it has none. It returns the id.
func (s *Store) SaveGame(ctx context.Context, rec GameRecord) (string, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.FinishedAt.IsZero() {
		rec.FinishedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO games (id, started_at, finished_at, white, black, difficulty,
			result, method, plies, start_fen, final_fen, pgn)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.StartedAt.UnixMilli(), rec.FinishedAt.UnixMilli(), rec.White, rec.Black,
		rec.Difficulty, rec.Result, rec.Method, rec.Plies, rec.StartFEN, rec.FinalFEN, rec.PGN)
	if err != nil {
		return "", fmt.Errorf("failed to save game: %w", err)
	}
	return rec.ID, nil
}

const selectCols = `SELECT id, started_at, finished_at, white, black, difficulty,
	result, method, plies, start_fen, final_fen, pgn FROM games`

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (GameRecord, error) {
	var rec GameRecord
	var started, finished int64
	err := sc.Scan(&rec.ID, &started, &finished, &rec.White, &rec.Black, &rec.Difficulty,
		&rec.Result, &rec.Method, &rec.Plies, &rec.StartFEN, &rec.FinalFEN, &rec.PGN)
	if err != nil {
		return rec, err
	}
	rec.StartedAt = time.UnixMilli(started)
	rec.FinishedAt = time.UnixMilli(finished)
	return rec, nil
}

func (s *Store) Game(ctx context.Context, id string) (GameRecord, error) {
	row := s.db.QueryRowContext(ctx, selectCols+` WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return rec, fmt.Errorf("%w: %s", ErrGameNotFound, id)
	}
	return rec, err
}

// RecentGames returns up to limit games, newest first.
func (s *Store) RecentGames(ctx context.Context, limit int) ([]GameRecord, error) {
	rows, err := s.db.QueryContext(ctx, selectCols+` ORDER BY finished_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var recs []GameRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// ResultCounts tallies stored games by result.
func (s *Store) ResultCounts(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT result, COUNT(*) FROM games GROUP BY result`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := map[string]int{}
	for rows.Next() {
		var res string
		var n int
		if err := rows.Scan(&res, &n); err != nil {
			return nil, err
		}
		counts[res] = n
	}
	return counts, rows.Err()
}
