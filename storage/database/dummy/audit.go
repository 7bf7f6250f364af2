package dummydb

import (
	"context"

	"github.com/darasahq/darasa/core/audit"
)

type auditRepository struct {
	db *auditTable
}

var _ audit.Repository = (*auditRepository)(nil) // interface compliance check

func NewAuditRepository(db *DB) audit.Repository {
	return &auditRepository{db: db.audit}
}

func (repo *auditRepository) CreateEntry(ctx context.Context, e audit.Entry) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.pkCount++
	e.ID = repo.db.pkCount
	repo.db.table = append(repo.db.table, e)
	return nil
}

func (repo *auditRepository) QueryEntriesByUser(ctx context.Context, userID string, limit int) ([]audit.Entry, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if limit <= 0 {
		limit = 100
	}

	// newest first
	entries := make([]audit.Entry, 0, limit)
	for i := len(repo.db.table) - 1; i >= 0 && len(entries) < limit; i-- {
		if repo.db.table[i].UserID == userID {
			entries = append(entries, repo.db.table[i])
		}
	}
	return entries, nil
}
