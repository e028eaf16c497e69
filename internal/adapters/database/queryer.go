package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	apperrors "github.com/berez-app/berez/backend/pkg/errors"
)

// queryer is satisfied by *goqu.Database and *goqu.TxDatabase, so every adapter runs
// unchanged inside or outside a transaction.
type queryer interface {
	Dialect() string
	From(from ...interface{}) *goqu.SelectDataset
	Insert(table interface{}) *goqu.InsertDataset
	Update(table interface{}) *goqu.UpdateDataset
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

const (
	tableFountains = "fountains"
	tableReviews   = "reviews"
	tablePhotos    = "photos"
	tableReports   = "fountain_reports"
	tableUsers     = "users"
)

// insertReturningID inserts rec and returns the generated id. Postgres reports it through
// RETURNING, sqlite through LastInsertId.
func insertReturningID(ctx context.Context, q queryer, table string, rec goqu.Record) (int64, error) {
	ins := q.Insert(table).Rows(rec)
	if q.Dialect() == "postgres" {
		var id int64
		if _, err := ins.Returning("id").Executor().ScanValContext(ctx, &id); err != nil {
			return 0, err
		}
		return id, nil
	}
	res, err := ins.Executor().ExecContext(ctx)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// affectedOne turns a zero-row update into NotFound
func affectedOne(res sql.Result, what string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return apperrors.NewStorageError(fmt.Sprintf("failed to update %s", what), err)
	}
	if n == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("%s with id %d not found", what, id))
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique || liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
