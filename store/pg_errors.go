package store

import (
	"errors"

	"github.com/lib/pq"

	"pushnami/api/apperr"
)

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

// translatePQ maps constraint violations onto the app error taxonomy and
// returns nil when err is not one of them.
func translatePQ(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return nil
	}
	switch pqErr.Code {
	case pqUniqueViolation:
		return apperr.ErrConflict
	case pqForeignKeyViolation:
		return apperr.ErrNotFound
	}
	return nil
}
