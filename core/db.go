package core

import "context"

// TxRunner runs fn inside a single database transaction carried by the context.
// Repositories called with that context join the transaction; fn returning an
// error rolls everything back.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}
