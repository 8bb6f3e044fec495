package store

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/osa030/bgplayer/internal/domain/track"
)

// PostgresConfig represents the postgres backend settings.
type PostgresConfig struct {
	DSN     string `mapstructure:"dsn" validate:"required"`
	Migrate bool   `mapstructure:"migrate"`
}

// DB defines the database operations used by the store.
// It is implemented by *pgxpool.Pool and can be mocked for testing.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// Postgres stores the playlist in player_tracks and the index in the
// single row of player_state.
type Postgres struct {
	db DB
}

// OpenPostgres connects to the database and optionally creates the tables.
func OpenPostgres(ctx context.Context, cfg PostgresConfig) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create postgres pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "failed to connect to postgres")
	}
	p := NewPostgres(pool)
	if cfg.Migrate {
		if err := p.Migrate(ctx); err != nil {
			pool.Close()
			return nil, err
		}
	}
	return p, nil
}

// NewPostgres wraps an existing connection pool.
func NewPostgres(db DB) *Postgres {
	return &Postgres{db: db}
}

// Migrate creates the tables when they do not exist.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, `
      CREATE TABLE IF NOT EXISTS player_tracks (
          position INT PRIMARY KEY,
          locator  TEXT NOT NULL,
          title    TEXT NOT NULL DEFAULT '',
          album    TEXT NOT NULL DEFAULT '',
          artist   TEXT NOT NULL DEFAULT ''
      )
    `); err != nil {
		return errors.Wrap(err, "failed to create player_tracks")
	}
	if _, err := p.db.Exec(ctx, `
      CREATE TABLE IF NOT EXISTS player_state (
          id          INT PRIMARY KEY CHECK (id = 1),
          track_index INT NOT NULL
      )
    `); err != nil {
		return errors.Wrap(err, "failed to create player_state")
	}
	return nil
}

// StorePlaylist replaces the playlist in one transaction.
func (p *Postgres) StorePlaylist(ctx context.Context, tracks []track.Track) error {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	if _, err := tx.Exec(ctx, `DELETE FROM player_tracks`); err != nil {
		_ = tx.Rollback(ctx)
		return errors.Wrap(err, "failed to delete playlist")
	}
	for i, t := range tracks {
		if _, err := tx.Exec(ctx,
			`INSERT INTO player_tracks (position, locator, title, album, artist) VALUES ($1, $2, $3, $4, $5)`,
			i, t.Locator, t.Title, t.Album, t.Artist,
		); err != nil {
			_ = tx.Rollback(ctx)
			return errors.Wrapf(err, "failed to insert track %d", i)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "failed to commit playlist")
	}
	return nil
}

func (p *Postgres) LoadPlaylist(ctx context.Context) ([]track.Track, error) {
	rows, err := p.db.Query(ctx, `SELECT locator, title, album, artist FROM player_tracks ORDER BY position`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query playlist")
	}
	defer rows.Close()

	var tracks []track.Track
	for rows.Next() {
		var t track.Track
		if err := rows.Scan(&t.Locator, &t.Title, &t.Album, &t.Artist); err != nil {
			return nil, errors.Wrap(err, "failed to scan track")
		}
		tracks = append(tracks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read playlist")
	}
	return tracks, nil
}

func (p *Postgres) StoreIndex(ctx context.Context, index int) error {
	if _, err := p.db.Exec(ctx,
		`INSERT INTO player_state (id, track_index) VALUES (1, $1) ON CONFLICT (id) DO UPDATE SET track_index = EXCLUDED.track_index`,
		index,
	); err != nil {
		return errors.Wrap(err, "failed to store index")
	}
	return nil
}

func (p *Postgres) LoadIndex(ctx context.Context) (int, error) {
	var index int
	err := p.db.QueryRow(ctx, `SELECT track_index FROM player_state WHERE id = 1`).Scan(&index)
	if errors.Is(err, pgx.ErrNoRows) {
		return NoIndex, nil
	}
	if err != nil {
		return NoIndex, errors.Wrap(err, "failed to load index")
	}
	return index, nil
}

// Clear removes the playlist and the index in one transaction.
func (p *Postgres) Clear(ctx context.Context) error {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	for _, stmt := range []string{`DELETE FROM player_tracks`, `DELETE FROM player_state`} {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			_ = tx.Rollback(ctx)
			return errors.Wrap(err, "failed to clear state")
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "failed to commit clear")
	}
	return nil
}

func (p *Postgres) Close() error {
	p.db.Close()
	return nil
}
