// Package postgres provides a PostgreSQL implementation of snapshot.Store.
//
// Rows are stored as JSONB in the encoding produced by snapshot.Marshal, so
// every property type survives the round trip.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/rbaliyan/exmdb/propval"
	"github.com/rbaliyan/exmdb/snapshot"
)

var _ snapshot.Store = (*Store)(nil)

// uniqueViolation is the SQLSTATE for a duplicate key.
const uniqueViolation = "23505"

// Store implements snapshot.Store using PostgreSQL.
type Store struct {
	db        *sqlx.DB
	opts      *options
	connected int32
	logger    *slog.Logger
}

// New creates a store on db. Call Connect to create the table.
func New(db *sqlx.DB, opts ...Option) *Store {
	o := newOptions(opts...)
	return &Store{
		db:     db,
		opts:   o,
		logger: o.logger,
	}
}

// NewFromDB wraps a standard sql.DB opened with the "postgres" driver.
func NewFromDB(db *sql.DB, opts ...Option) *Store {
	return New(sqlx.NewDb(db, "postgres"), opts...)
}

// Connect pings the database and creates the table and indexes.
func (s *Store) Connect(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.connected, 0, 1) {
		return snapshot.ErrAlreadyConnected
	}

	if s.db == nil {
		atomic.StoreInt32(&s.connected, 0)
		return fmt.Errorf("postgres: db is required")
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		atomic.StoreInt32(&s.connected, 0)
		return fmt.Errorf("postgres ping: %w", err)
	}

	if err := s.ensureSchema(ctx); err != nil {
		atomic.StoreInt32(&s.connected, 0)
		return fmt.Errorf("ensure schema: %w", err)
	}

	s.logger.Info("connected to PostgreSQL", "table", s.opts.table)
	return nil
}

// Close marks the store as disconnected.
// The caller is responsible for closing the database connection.
func (s *Store) Close(_ context.Context) error {
	atomic.StoreInt32(&s.connected, 0)
	return nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id UUID PRIMARY KEY,
			addr VARCHAR(255) NOT NULL DEFAULT '',
			prefix TEXT NOT NULL,
			path TEXT NOT NULL,
			taken_at TIMESTAMPTZ NOT NULL,
			rows JSONB NOT NULL DEFAULT '[]'
		)
	`, s.opts.table)

	if _, err := s.db.ExecContext(ctx, createTable); err != nil {
		return fmt.Errorf("create table: %w", err)
	}

	idx := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_location ON %s(prefix, path, taken_at DESC)`,
		s.opts.table, s.opts.table)
	if _, err := s.db.ExecContext(ctx, idx); err != nil {
		s.logger.Warn("failed to create index", "error", err, "sql", idx)
	}
	return nil
}

func (s *Store) checkConnected() error {
	if atomic.LoadInt32(&s.connected) == 0 {
		return snapshot.ErrNotConnected
	}
	return nil
}

// record is the table row.
type record struct {
	ID      string    `db:"id"`
	Addr    string    `db:"addr"`
	Prefix  string    `db:"prefix"`
	Path    string    `db:"path"`
	TakenAt time.Time `db:"taken_at"`
	Rows    []byte    `db:"rows"`
}

func (r *record) snapshot() (*snapshot.Snapshot, error) {
	var rows []propval.Row
	if err := json.Unmarshal(r.Rows, &rows); err != nil {
		return nil, fmt.Errorf("decode rows: %w", err)
	}
	return &snapshot.Snapshot{
		ID:      r.ID,
		Addr:    r.Addr,
		Prefix:  r.Prefix,
		Path:    r.Path,
		TakenAt: r.TakenAt.UTC(),
		Rows:    rows,
	}, nil
}

const columns = `id, addr, prefix, path, taken_at, rows`

// Save inserts snap. A duplicate id is ErrAlreadyExists.
func (s *Store) Save(ctx context.Context, snap *snapshot.Snapshot) error {
	if err := s.checkConnected(); err != nil {
		return err
	}
	if snap.ID == "" {
		snap.ID = uuid.New().String()
	} else if !snapshot.ValidID(snap.ID) {
		return snapshot.ErrInvalidID
	}

	rows, err := json.Marshal(snap.Rows)
	if err != nil {
		return fmt.Errorf("encode rows: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES ($1, $2, $3, $4, $5, $6)`, s.opts.table, columns)
	_, err = s.db.ExecContext(ctx, query, snap.ID, snap.Addr, snap.Prefix, snap.Path, snap.TakenAt, rows)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return snapshot.ErrAlreadyExists
		}
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

// Get loads the snapshot with the given id.
func (s *Store) Get(ctx context.Context, id string) (*snapshot.Snapshot, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, snapshot.ErrInvalidID
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	var rec record
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, columns, s.opts.table)
	if err := s.db.GetContext(ctx, &rec, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, snapshot.ErrNotFound
		}
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	return rec.snapshot()
}

// Latest loads the newest snapshot of path on prefix.
func (s *Store) Latest(ctx context.Context, prefix, path string) (*snapshot.Snapshot, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	var rec record
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE prefix = $1 AND path = $2
		ORDER BY taken_at DESC
		LIMIT 1
	`, columns, s.opts.table)
	if err := s.db.GetContext(ctx, &rec, query, prefix, path); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, snapshot.ErrNotFound
		}
		return nil, fmt.Errorf("latest snapshot: %w", err)
	}
	return rec.snapshot()
}

// Delete removes the snapshot with the given id.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.checkConnected(); err != nil {
		return err
	}
	if _, err := uuid.Parse(id); err != nil {
		return snapshot.ErrInvalidID
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, s.opts.table), id)
	if err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	if n == 0 {
		return snapshot.ErrNotFound
	}
	return nil
}
