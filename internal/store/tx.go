package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Store owns every storage-level statement. Handlers get an explicit
// instance; there is no package-level singleton.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) DB() *sql.DB {
	return s.db
}

func now() int64 {
	return time.Now().Unix()
}

// withTx runs fn inside a transaction, rolling back on any error. Every
// mutation in this package goes through here so partial writes are never
// observable.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Counter columns adjusted by adjustCount. Table and column names always come
// from these constants, never from request input.
const (
	colRooms   = "n_rooms"
	colRacks   = "n_racks"
	colHosts   = "n_hosts"
	colTotalIP = "total_ip"
)

// adjustCount applies delta to one cached counter with a single atomic
// UPDATE. A decrement that would go negative matches no row and fails the
// transaction: counters error on underflow, they never clamp.
func adjustCount(ctx context.Context, tx *sql.Tx, table, column, id string, delta int) error {
	if delta == 0 {
		return nil
	}
	q := fmt.Sprintf(
		`UPDATE %s SET %s = %s + ?, updated_at = ? WHERE id = ? AND %s + ? >= 0`,
		table, column, column, column,
	)
	res, err := tx.ExecContext(ctx, q, delta, now(), id, delta)
	if err != nil {
		return fmt.Errorf("adjust %s.%s by %+d: %w", table, column, delta, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("adjust %s.%s by %+d for %s: row missing or counter underflow", table, column, delta, id)
	}
	return nil
}

// countChildren returns COUNT(*) of rows whose fkColumn references parentID.
func countChildren(ctx context.Context, tx *sql.Tx, table, fkColumn, parentID string) (int, error) {
	var n int
	q := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s = ?`, table, fkColumn)
	if err := tx.QueryRowContext(ctx, q, parentID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s by %s: %w", table, fkColumn, err)
	}
	return n, nil
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func fromNull(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}
