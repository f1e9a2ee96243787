package database

import (
	"context"
	"errors"
)

// ErrNoTransaction is returned when Commit or Rollback find no transaction in
// the context.
var ErrNoTransaction = errors.New("no transaction in context")

type txKey struct{}

// txScope tracks how many units of work share one transaction. Only the
// outermost unit (depth 1) finishes it.
type txScope struct {
	tx    Transaction
	depth int
}

func scopeFrom(ctx context.Context) *txScope {
	scope, _ := ctx.Value(txKey{}).(*txScope)
	return scope
}

// ExecutorFromContext returns the transaction joined by ctx, or conn when the
// caller runs outside a unit of work.
func ExecutorFromContext(ctx context.Context, conn Connection) Executor {
	if scope := scopeFrom(ctx); scope != nil {
		return scope.tx
	}
	return conn
}

// UnitOfWork opens transactions on a connection and carries them in the
// context. A Begin inside an open unit joins it instead of nesting.
type UnitOfWork struct {
	conn Connection
}

// NewUnitOfWork returns a UnitOfWork over conn.
func NewUnitOfWork(conn Connection) *UnitOfWork {
	return &UnitOfWork{conn: conn}
}

// Begin starts a transaction, or joins the one already in ctx.
func (u *UnitOfWork) Begin(ctx context.Context) (context.Context, error) {
	if outer := scopeFrom(ctx); outer != nil {
		return context.WithValue(ctx, txKey{}, &txScope{tx: outer.tx, depth: outer.depth + 1}), nil
	}
	tx, err := u.conn.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	return context.WithValue(ctx, txKey{}, &txScope{tx: tx, depth: 1}), nil
}

// Commit commits when ctx holds the outermost unit; joined units are a no-op.
func (u *UnitOfWork) Commit(ctx context.Context) error {
	return finish(ctx, Transaction.Commit)
}

// Rollback rolls back when ctx holds the outermost unit. A failing joined
// unit returns its error to the outer one, which decides.
func (u *UnitOfWork) Rollback(ctx context.Context) error {
	return finish(ctx, Transaction.Rollback)
}

func finish(ctx context.Context, end func(Transaction, context.Context) error) error {
	scope := scopeFrom(ctx)
	if scope == nil {
		return ErrNoTransaction
	}
	if scope.depth > 1 {
		return nil
	}
	return end(scope.tx, ctx)
}
