// Package audit records an append-only activity trail. Writes are always
// best-effort: a failed audit write never aborts the request that caused it.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/darasahq/darasa/core"
)

// Actions
const (
	ActionLogin         = "login"
	ActionPasswordReset = "password_reset"
	ActionCreate        = "create"
	ActionUpdate        = "update"
	ActionDelete        = "delete"
	ActionSubmit        = "submit"
	ActionGrade         = "grade"
)

type Entry struct {
	ID         int64     `json:"id"`
	UserID     string    `json:"user_id,omitempty"`
	Action     string    `json:"action"`
	ObjectKind string    `json:"object_kind,omitempty"`
	ObjectID   string    `json:"object_id,omitempty"`
	IP         string    `json:"ip,omitempty"`
	UserAgent  string    `json:"user_agent,omitempty"`
	CreatedAt  time.Time `json:"created_at"` // UTC
}

type Repository interface {
	CreateEntry(ctx context.Context, e Entry) error
	QueryEntriesByUser(ctx context.Context, userID string, limit int) ([]Entry, error)
}

type (
	Service interface {
		// Log records e asynchronously; it never returns an error.
		Log(e Entry)
		QueryByUser(ctx context.Context, userID string, limit int) ([]Entry, error)
	}

	service struct {
		repo   Repository
		logger core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, logger core.Logger) Service {
	return &service{repo: repo, logger: logger}
}

func (svc *service) Log(e Entry) {
	e.CreatedAt = time.Now().UTC()
	go func() {
		if err := svc.repo.CreateEntry(context.Background(), e); err != nil {
			svc.logger.Warn(fmt.Sprintf("writing audit entry: %v", err), err)
		}
	}()
}

func (svc *service) QueryByUser(ctx context.Context, userID string, limit int) ([]Entry, error) {
	return svc.repo.QueryEntriesByUser(ctx, userID, limit)
}
