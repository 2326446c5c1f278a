package auth

import (
	"time"

	"asylum-lite/apps/server/internal/store"
)

// NewService picks the SQL manager when a database is configured, memory otherwise.
func NewService(db *store.DB, sessionTTL time.Duration) (Service, error) {
	if db == nil {
		return NewManager(sessionTTL), nil
	}
	return NewSQLManager(db, sessionTTL)
}
