package postgres

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"github.com/platinummonkey/integrationhub/pkg/apperr"
)

const uniqueViolation = "23505"

// classify maps driver errors onto the shared error kinds
func classify(err error, entity, id string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFoundf(entity, id)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if pqErr.Code == uniqueViolation {
			return apperr.Invalid("%s conflicts with an existing record", entity)
		}
		if pqErr.Code.Class() == "08" {
			return apperr.Wrap(apperr.TransientFailure, err, "database connection failed")
		}
	}
	return err
}

// expectOneRow turns an update that touched nothing into NotFound
func expectOneRow(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.NotFoundf(entity, id)
	}
	return nil
}
