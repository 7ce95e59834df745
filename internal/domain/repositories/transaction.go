package repositories

import "context"

// TxFn is a function that runs within a transaction
type TxFn func(ctx context.Context) error

// TransactionManager handles database transactions
type TransactionManager interface {
	// RunInTransaction executes a function within a transaction
	RunInTransaction(ctx context.Context, fn TxFn) error
}
