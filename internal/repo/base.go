package repo

import (
	"context"

	"gorm.io/gorm"
)

// Base anchors a domain repository on a shared gorm handle. Repositories
// embed it by value; WithTx re-binds by building a fresh Base around the
// transaction handle instead of mutating the original.
type Base struct {
	conn *gorm.DB
}

// NewBase wraps the provided gorm connection or transaction.
func NewBase(conn *gorm.DB) Base {
	return Base{conn: conn}
}

// DB returns the handle bound to ctx for cancellation propagation.
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.conn
	}
	return b.conn.WithContext(ctx)
}
