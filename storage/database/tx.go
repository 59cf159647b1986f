package database

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type txKey struct{}

// querier is implemented by both *sqlx.DB and *sqlx.Tx.
type querier interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

// conn returns the transaction carried by ctx, if any, db otherwise.
func conn(ctx context.Context, db *sqlx.DB) querier {
	if tx, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return db
}

func inTx(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{}).(*sqlx.Tx)
	return ok
}

type TxRunner struct {
	db *sqlx.DB
}

var _ core.TxRunner = (*TxRunner)(nil)

func NewTxRunner(db *sqlx.DB) *TxRunner {
	return &TxRunner{db: db}
}

// WithinTx runs fn in a new transaction, or in the one ctx already carries.
func (r *TxRunner) WithinTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if inTx(ctx) {
		return fn(ctx)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err = fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}

// get runs a squirrel select into dest.
func get(ctx context.Context, q querier, dest interface{}, b sq.Sqlizer) error {
	query, args, err := b.ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	return q.GetContext(ctx, dest, query, args...)
}

func selectAll(ctx context.Context, q querier, dest interface{}, b sq.Sqlizer) error {
	query, args, err := b.ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	return q.SelectContext(ctx, dest, query, args...)
}

// exec runs a squirrel statement and returns the number of affected rows.
func exec(ctx context.Context, q querier, b sq.Sqlizer) (int64, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "building query")
	}
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func existsQuery(ctx context.Context, q querier, b sq.SelectBuilder) (bool, error) {
	query, args, err := b.Prefix("SELECT EXISTS (").Suffix(")").ToSql()
	if err != nil {
		return false, errors.Wrap(err, "building query")
	}
	var ok bool
	err = q.GetContext(ctx, &ok, query, args...)
	return ok, err
}
