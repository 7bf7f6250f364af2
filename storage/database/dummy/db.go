// Package dummydb provides in-memory repository implementations for tests.
package dummydb

import (
	"sync"

	"github.com/darasahq/darasa/core/audit"
	"github.com/darasahq/darasa/core/batch"
	"github.com/darasahq/darasa/core/content"
	"github.com/darasahq/darasa/core/submission"
	"github.com/darasahq/darasa/core/user"
)

type (
	DB struct {
		user       *userTable
		batch      *batchTable
		ppt        *pptTable
		assignment *assignmentTable
		submission *submissionTable
		audit      *auditTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	batchTable struct {
		sync.RWMutex
		table map[string]*batch.Batch
	}

	pptTable struct {
		sync.RWMutex
		table map[string]*content.PPT
	}

	assignmentTable struct {
		sync.RWMutex
		table map[string]*content.Assignment
	}

	submissionTable struct {
		sync.RWMutex
		table map[string]*submission.Submission
	}

	auditTable struct {
		sync.RWMutex
		pkCount int64
		table   []audit.Entry
	}
)

func Open() (*DB, error) {
	db := &DB{
		user:       &userTable{table: make(map[string]*user.User)},
		batch:      &batchTable{table: make(map[string]*batch.Batch)},
		ppt:        &pptTable{table: make(map[string]*content.PPT)},
		assignment: &assignmentTable{table: make(map[string]*content.Assignment)},
		submission: &submissionTable{table: make(map[string]*submission.Submission)},
		audit:      &auditTable{},
	}
	return db, nil
}

// Reset empties all tables; repositories created from this DB stay valid.
func (db *DB) Reset() {
	db.user.Lock()
	db.user.table = make(map[string]*user.User)
	db.user.Unlock()

	db.batch.Lock()
	db.batch.table = make(map[string]*batch.Batch)
	db.batch.Unlock()

	db.ppt.Lock()
	db.ppt.table = make(map[string]*content.PPT)
	db.ppt.Unlock()

	db.assignment.Lock()
	db.assignment.table = make(map[string]*content.Assignment)
	db.assignment.Unlock()

	db.submission.Lock()
	db.submission.table = make(map[string]*submission.Submission)
	db.submission.Unlock()

	db.audit.Lock()
	db.audit.pkCount = 0
	db.audit.table = nil
	db.audit.Unlock()
}
