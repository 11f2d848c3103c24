package jobs

import (
	"gorm.io/gorm"

	"github.com/jdziat/service-jobs/pkg/storage"
)

type (
	// GormStorage stores snapshots in a SQL database through GORM.
	GormStorage = storage.GormStorage

	// PoolOption configures the connection pool.
	PoolOption = storage.PoolOption
)

// NewGormStorage wraps an open GORM connection.
func NewGormStorage(db *gorm.DB) *GormStorage {
	return storage.NewGormStorage(db)
}

// OpenStorage connects to a sqlite or postgres database.
func OpenStorage(driver, dsn string, opts ...PoolOption) (*GormStorage, error) {
	return storage.Open(driver, dsn, opts...)
}
