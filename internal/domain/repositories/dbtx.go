package repositories

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the query surface shared by *pgxpool.Pool and pgx.Tx, so a
// repository method runs the same whether or not a transaction is open.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, arguments ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, arguments ...interface{}) pgx.Row
}

type txKeyType struct{}

// SetTx returns a context carrying the open transaction. Repositories
// called under it route their queries through the transaction.
func SetTx(ctx context.Context, tx pgx.Tx) context.Context {
	return context.WithValue(ctx, txKeyType{}, tx)
}

// GetTx returns the transaction carried by ctx, or nil outside one.
func GetTx(ctx context.Context) pgx.Tx {
	if tx, ok := ctx.Value(txKeyType{}).(pgx.Tx); ok {
		return tx
	}
	return nil
}
