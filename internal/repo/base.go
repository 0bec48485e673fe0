// Package repo holds the pieces every GORM repository embeds.
package repo

import (
	"context"

	"gorm.io/gorm"
)

// Base carries the connection, or transaction, a repository runs against.
type Base struct {
	db *gorm.DB
}

func NewBase(db *gorm.DB) Base {
	return Base{db: db}
}

// DB returns the connection bound to ctx. A nil ctx yields the raw handle.
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	return b.db.WithContext(ctx)
}

// Affected unpacks a conditional write. Callers treat zero rows as "the
// guard did not hold" rather than as an error.
func Affected(res *gorm.DB) (int64, error) {
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
