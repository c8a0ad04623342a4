package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/beka-birhanu/mazesync/game/maze"
	"github.com/beka-birhanu/mazesync/service/i"
	"github.com/google/uuid"
	_ "modernc.org/sqlite" // pure Go driver
)

// SQLiteRoundRepo stores finished rounds in a local SQLite file.
type SQLiteRoundRepo struct {
	db *sql.DB
}

// OpenSQLiteRoundRepo opens (creating if needed) the database at path and
// runs migrations. A leading ~ expands to the home directory.
func OpenSQLiteRoundRepo(path string) (*SQLiteRoundRepo, error) {
	if path != "" && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("repo: cannot expand home directory: %w", err)
		}
		path = filepath.Join(home, path[1:])
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("repo: cannot create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("repo: cannot open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("repo: cannot connect to database: %w", err)
	}

	r := &SQLiteRoundRepo{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("repo: migration failed: %w", err)
	}
	return r, nil
}

func (r *SQLiteRoundRepo) migrate() error {
	_, err := r.db.Exec(`
		CREATE TABLE IF NOT EXISTS rounds (
			id TEXT PRIMARY KEY,
			seed TEXT NOT NULL,
			width INTEGER NOT NULL,
			height INTEGER NOT NULL,
			winner_id TEXT NOT NULL,
			moves INTEGER NOT NULL DEFAULT 0,
			started_at INTEGER NOT NULL,
			finished_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_rounds_finished ON rounds(finished_at DESC);
	`)
	return err
}

// Close closes the database.
func (r *SQLiteRoundRepo) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Save inserts or replaces a round.
func (r *SQLiteRoundRepo) Save(ctx context.Context, round *i.Round) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO rounds (id, seed, width, height, winner_id, moves, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			seed = excluded.seed,
			width = excluded.width,
			height = excluded.height,
			winner_id = excluded.winner_id,
			moves = excluded.moves,
			started_at = excluded.started_at,
			finished_at = excluded.finished_at`,
		round.ID.String(), string(round.Seed), round.Width, round.Height,
		round.WinnerID.String(), round.Moves,
		round.StartedAt.UnixMilli(), round.FinishedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("repo: cannot save round: %w", err)
	}
	return nil
}

// ByID retrieves a round by its ID.
func (r *SQLiteRoundRepo) ByID(ctx context.Context, id uuid.UUID) (*i.Round, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, seed, width, height, winner_id, moves, started_at, finished_at
		FROM rounds WHERE id = ?`, id.String())
	round, err := scanRound(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", i.ErrRoundNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("repo: cannot load round: %w", err)
	}
	return round, nil
}

// Recent returns up to limit rounds, newest first.
func (r *SQLiteRoundRepo) Recent(ctx context.Context, limit int) ([]i.Round, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, seed, width, height, winner_id, moves, started_at, finished_at
		FROM rounds ORDER BY finished_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("repo: cannot query rounds: %w", err)
	}
	defer rows.Close()

	rounds := make([]i.Round, 0, limit)
	for rows.Next() {
		round, err := scanRound(rows)
		if err != nil {
			return nil, fmt.Errorf("repo: cannot scan round: %w", err)
		}
		rounds = append(rounds, *round)
	}
	return rounds, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRound(s scanner) (*i.Round, error) {
	var (
		id, seed, winner  string
		started, finished int64
		round             i.Round
	)
	if err := s.Scan(&id, &seed, &round.Width, &round.Height, &winner, &round.Moves, &started, &finished); err != nil {
		return nil, err
	}

	var err error
	if round.ID, err = uuid.Parse(id); err != nil {
		return nil, err
	}
	if round.WinnerID, err = uuid.Parse(winner); err != nil {
		return nil, err
	}
	round.Seed = maze.Seed(seed)
	round.StartedAt = time.UnixMilli(started).UTC()
	round.FinishedAt = time.UnixMilli(finished).UTC()
	return &round, nil
}
