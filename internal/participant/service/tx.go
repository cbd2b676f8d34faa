package service

import "context"

// TxRunner provides a transactional boundary covering both identity and
// profile writes. The SQL-backed runner opens a database transaction and
// threads it through the context so the stores' executors join it; substrates
// without multi-document transactions leave the runner nil and the service
// falls back to the compensating-write protocol.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}
