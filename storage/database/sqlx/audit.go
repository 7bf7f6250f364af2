package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/darasahq/darasa/core/audit"
)

type auditRow struct {
	ID         int64       `db:"id"`
	UserID     null.String `db:"user_id"`
	Action     string      `db:"action"`
	ObjectKind string      `db:"object_kind"`
	ObjectID   string      `db:"object_id"`
	IP         string      `db:"ip"`
	UserAgent  string      `db:"user_agent"`
	CreatedAt  null.Time   `db:"created_at"`
}

func (r auditRow) unrow() audit.Entry {
	return audit.Entry{
		ID:         r.ID,
		UserID:     r.UserID.String,
		Action:     r.Action,
		ObjectKind: r.ObjectKind,
		ObjectID:   r.ObjectID,
		IP:         r.IP,
		UserAgent:  r.UserAgent,
		CreatedAt:  r.CreatedAt.Time,
	}
}

type auditRepository struct {
	db *sqlx.DB
}

var _ audit.Repository = (*auditRepository)(nil) // interface compliance check

func NewAuditRepository(db *sqlx.DB) *auditRepository {
	return &auditRepository{db: db}
}

func (repo auditRepository) CreateEntry(ctx context.Context, e audit.Entry) error {
	row := auditRow{
		UserID:     null.NewString(e.UserID, e.UserID != ""),
		Action:     e.Action,
		ObjectKind: e.ObjectKind,
		ObjectID:   e.ObjectID,
		IP:         e.IP,
		UserAgent:  e.UserAgent,
		CreatedAt:  null.NewTime(e.CreatedAt.UTC(), !e.CreatedAt.IsZero()),
	}
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO activity_log (user_id, action, object_kind, object_id, ip, user_agent, created_at)
		VALUES (:user_id, :action, :object_kind, :object_id, :ip, :user_agent, :created_at)`,
		row,
	)
	if err != nil {
		return errors.Wrap(err, "inserting activity log entry")
	}
	return nil
}

func (repo auditRepository) QueryEntriesByUser(ctx context.Context, userID string, limit int) ([]audit.Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []auditRow
	err := repo.db.SelectContext(ctx, &rows,
		`SELECT * FROM activity_log WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "querying activity log")
	}

	entries := make([]audit.Entry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, row.unrow())
	}
	return entries, nil
}
