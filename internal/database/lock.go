package database

import (
	"context"
	"database/sql"
	"fmt"
)

// Locker wraps MySQL advisory locks (GET_LOCK / RELEASE_LOCK).  The
// reconciler holds one lock per resource for the duration of a pass so
// two concurrent passes over the same resource cannot both miss each
// other's in-flight inserts and double-create bookings.  Advisory locks
// are session-scoped, so the lock and its release must run on the same
// pooled connection; Acquire pins a *sql.Conn until the returned
// release function is called.
type Locker struct {
	db *sql.DB
}

// NewLocker returns a Locker bound to the given database.
func NewLocker(db *sql.DB) *Locker { return &Locker{db: db} }

// Acquire tries to take the named lock, waiting up to timeoutSec
// seconds.  It returns acquired=false without error when another
// session already holds the lock.  On success the caller must invoke
// the returned release function exactly once.
func (l *Locker) Acquire(ctx context.Context, name string, timeoutSec int) (release func(), acquired bool, err error) {
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return nil, false, err
	}
	var got sql.NullInt64
	if err := conn.QueryRowContext(ctx, `SELECT GET_LOCK(?, ?)`, name, timeoutSec).Scan(&got); err != nil {
		_ = conn.Close()
		return nil, false, fmt.Errorf("get lock %q: %w", name, err)
	}
	// GET_LOCK returns 1 on success, 0 on timeout, NULL on error.
	if !got.Valid || got.Int64 != 1 {
		_ = conn.Close()
		return nil, false, nil
	}
	release = func() {
		// Best effort: closing the connection would release the lock
		// anyway, but an explicit RELEASE_LOCK returns it immediately
		// instead of waiting for pool reuse.
		_, _ = conn.ExecContext(context.Background(), `SELECT RELEASE_LOCK(?)`, name)
		_ = conn.Close()
	}
	return release, true, nil
}
