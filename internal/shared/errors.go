package shared

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound indicates a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrRowLocked indicates another operation holds the row lock; callers
	// should retry rather than wait.
	ErrRowLocked = errors.New("row locked by concurrent operation")
)

// pgLockNotAvailable is the SQLSTATE raised by FOR UPDATE NOWAIT on a held lock.
const pgLockNotAvailable = "55P03"

// MapLockError converts a lock_not_available failure into ErrRowLocked and
// returns every other error unchanged.
func MapLockError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgLockNotAvailable {
		return ErrRowLocked
	}
	return err
}
