package store

import (
	"database/sql"
	"time"

	_ "modernc.org/sqlite"
)

// Pool bounds: one warm connection, ten concurrent transactions at most.
// Requests beyond that wait on the pool and fail via their context deadline.
const (
	maxOpenConns    = 10
	maxIdleConns    = 1
	connMaxLifetime = 5 * time.Minute
)

// OpenDB opens the SQLite database with the pragmas every pooled connection
// needs. foreign_keys and busy_timeout are per-connection in SQLite, so they
// go in the DSN rather than a one-off Exec. _txlock=immediate makes write
// transactions take the write lock up front, so concurrent counter updates
// serialize instead of failing mid-transaction on lock upgrade.
func OpenDB(path string) (*sql.DB, error) {
	dsn := path + "?_txlock=immediate" +
		"&_pragma=journal_mode(WAL)" +
		"&_pragma=foreign_keys(1)" +
		"&_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
