package sqlxrepos

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/content"
)

// fileCol stores a core.FileInfo descriptor in a JSONB column.
type fileCol core.FileInfo

func (f fileCol) Value() (driver.Value, error) {
	return json.Marshal(core.FileInfo(f))
}

func (f *fileCol) Scan(src interface{}) error {
	if src == nil {
		*f = fileCol{}
		return nil
	}
	b, ok := src.([]byte)
	if !ok {
		return errors.Errorf("unsupported file column type %T", src)
	}
	return json.Unmarshal(b, f)
}

// filesCol stores a list of file descriptors in a JSONB column.
type filesCol []core.FileInfo

func (f filesCol) Value() (driver.Value, error) {
	if f == nil {
		f = filesCol{}
	}
	return json.Marshal([]core.FileInfo(f))
}

func (f *filesCol) Scan(src interface{}) error {
	if src == nil {
		*f = nil
		return nil
	}
	b, ok := src.([]byte)
	if !ok {
		return errors.Errorf("unsupported files column type %T", src)
	}
	return json.Unmarshal(b, f)
}

type pptRow struct {
	ID           string    `db:"id"`
	Title        string    `db:"title"`
	Description  string    `db:"description"`
	BatchID      string    `db:"batch_id"`
	UploadedByID string    `db:"uploaded_by_id"`
	File         fileCol   `db:"file"`
	CreatedAt    null.Time `db:"created_at"`
	UpdatedAt    null.Time `db:"updated_at"`
}

func (r pptRow) unrow() content.PPT {
	return content.PPT{
		ID:           r.ID,
		Title:        r.Title,
		Description:  r.Description,
		BatchID:      r.BatchID,
		UploadedByID: r.UploadedByID,
		File:         core.FileInfo(r.File),
		CreatedAt:    r.CreatedAt.Time,
		UpdatedAt:    r.UpdatedAt.Time,
	}
}

func rowPPT(p content.PPT) pptRow {
	return pptRow{
		ID:           p.ID,
		Title:        p.Title,
		Description:  p.Description,
		BatchID:      p.BatchID,
		UploadedByID: p.UploadedByID,
		File:         fileCol(p.File),
		CreatedAt:    null.NewTime(p.CreatedAt.UTC(), !p.CreatedAt.IsZero()),
		UpdatedAt:    null.NewTime(p.UpdatedAt.UTC(), !p.UpdatedAt.IsZero()),
	}
}

type assignmentRow struct {
	ID                string    `db:"id"`
	Title             string    `db:"title"`
	Description       string    `db:"description"`
	BatchID           string    `db:"batch_id"`
	UploadedByID      string    `db:"uploaded_by_id"`
	File              fileCol   `db:"file"`
	Deadline          null.Time `db:"deadline"`
	AllowResubmission bool      `db:"allow_resubmission"`
	MaxMarks          int       `db:"max_marks"`
	CreatedAt         null.Time `db:"created_at"`
	UpdatedAt         null.Time `db:"updated_at"`
}

func (r assignmentRow) unrow() content.Assignment {
	return content.Assignment{
		ID:                r.ID,
		Title:             r.Title,
		Description:       r.Description,
		BatchID:           r.BatchID,
		UploadedByID:      r.UploadedByID,
		File:              core.FileInfo(r.File),
		Deadline:          r.Deadline.Time,
		AllowResubmission: r.AllowResubmission,
		MaxMarks:          r.MaxMarks,
		CreatedAt:         r.CreatedAt.Time,
		UpdatedAt:         r.UpdatedAt.Time,
	}
}

func rowAssignment(a content.Assignment) assignmentRow {
	return assignmentRow{
		ID:                a.ID,
		Title:             a.Title,
		Description:       a.Description,
		BatchID:           a.BatchID,
		UploadedByID:      a.UploadedByID,
		File:              fileCol(a.File),
		Deadline:          null.NewTime(a.Deadline.UTC(), !a.Deadline.IsZero()),
		AllowResubmission: a.AllowResubmission,
		MaxMarks:          a.MaxMarks,
		CreatedAt:         null.NewTime(a.CreatedAt.UTC(), !a.CreatedAt.IsZero()),
		UpdatedAt:         null.NewTime(a.UpdatedAt.UTC(), !a.UpdatedAt.IsZero()),
	}
}

type contentRepository struct {
	db *sqlx.DB
}

var _ content.Repository = (*contentRepository)(nil) // interface compliance check

func NewContentRepository(db *sqlx.DB) *contentRepository {
	return &contentRepository{db: db}
}

func (repo contentRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return content.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

// contentFilterClauses works for both ppt and assignment tables; alias is the
// queried table's name in the FROM clause.
func (repo contentRepository) contentFilterClauses(filter *content.QueryFilter, alias string) (string, []interface{}) {
	if filter == nil {
		return "", nil
	}

	var (
		clauses []string
		args    []interface{}
	)
	if filter.Search != "" {
		clauses = append(clauses, "("+alias+".title ILIKE ? OR "+alias+".description ILIKE ?)")
		val := "%" + filter.Search + "%"
		args = append(args, val, val)
	}
	if filter.BatchID != "" {
		clauses = append(clauses, alias+".batch_id = ?")
		args = append(args, filter.BatchID)
	}
	if filter.TrainerID != "" {
		clauses = append(clauses, alias+".batch_id IN (SELECT id FROM batch WHERE trainer_id = ?)")
		args = append(args, filter.TrainerID)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (repo contentRepository) CreatePPT(ctx context.Context, p content.PPT) (content.PPT, error) {
	row := rowPPT(p)
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO ppt (id, title, description, batch_id, uploaded_by_id, file, created_at, updated_at)
		VALUES (:id, :title, :description, :batch_id, :uploaded_by_id, :file, :created_at, :updated_at)`,
		row,
	)
	if err != nil {
		return content.PPT{}, errors.Wrap(err, "inserting ppt")
	}
	return row.unrow(), nil
}

func (repo contentRepository) GetPPT(ctx context.Context, id string) (content.PPT, error) {
	var row pptRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM ppt WHERE id = $1`, id); err != nil {
		return content.PPT{}, repo.trapNoRowsErr(err, "finding ppt")
	}
	return row.unrow(), nil
}

func (repo contentRepository) QueryPPTs(ctx context.Context, filter *content.QueryFilter, ordering []core.DBOrdering) ([]content.PPT, error) {
	query := `SELECT * FROM ppt`
	where, args := repo.contentFilterClauses(filter, "ppt")
	query += where
	query += orderByClause(ordering, "created_at DESC")

	var rows []pptRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "querying ppts")
	}

	ppts := make([]content.PPT, 0, len(rows))
	for _, row := range rows {
		ppts = append(ppts, row.unrow())
	}
	return ppts, nil
}

func (repo contentRepository) CountPPTs(ctx context.Context, filter *content.QueryFilter) (int, error) {
	query := `SELECT COUNT(*) FROM ppt`
	where, args := repo.contentFilterClauses(filter, "ppt")
	query += where

	var count int
	if err := repo.db.GetContext(ctx, &count, repo.db.Rebind(query), args...); err != nil {
		return 0, errors.Wrap(err, "counting ppts")
	}
	return count, nil
}

func (repo contentRepository) UpdatePPT(ctx context.Context, p content.PPT) (content.PPT, error) {
	row := rowPPT(p)
	res, err := repo.db.NamedExecContext(ctx, `
		UPDATE ppt SET title = :title, description = :description, file = :file, updated_at = :updated_at
		WHERE id = :id`,
		row,
	)
	if err != nil {
		return content.PPT{}, errors.Wrap(err, "updating ppt")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return content.PPT{}, content.ErrNotFound
	}
	return repo.GetPPT(ctx, p.ID)
}

func (repo contentRepository) DeletePPT(ctx context.Context, id string) error {
	if _, err := repo.db.ExecContext(ctx, `DELETE FROM ppt WHERE id = $1`, id); err != nil {
		return errors.Wrap(err, "deleting ppt")
	}
	return nil
}

func (repo contentRepository) CreateAssignment(ctx context.Context, a content.Assignment) (content.Assignment, error) {
	row := rowAssignment(a)
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO assignment (id, title, description, batch_id, uploaded_by_id, file, deadline, allow_resubmission, max_marks, created_at, updated_at)
		VALUES (:id, :title, :description, :batch_id, :uploaded_by_id, :file, :deadline, :allow_resubmission, :max_marks, :created_at, :updated_at)`,
		row,
	)
	if err != nil {
		return content.Assignment{}, errors.Wrap(err, "inserting assignment")
	}
	return row.unrow(), nil
}

func (repo contentRepository) GetAssignment(ctx context.Context, id string) (content.Assignment, error) {
	var row assignmentRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM assignment WHERE id = $1`, id); err != nil {
		return content.Assignment{}, repo.trapNoRowsErr(err, "finding assignment")
	}
	return row.unrow(), nil
}

func (repo contentRepository) QueryAssignments(ctx context.Context, filter *content.QueryFilter, ordering []core.DBOrdering) ([]content.Assignment, error) {
	query := `SELECT * FROM assignment`
	where, args := repo.contentFilterClauses(filter, "assignment")
	query += where
	query += orderByClause(ordering, "deadline ASC")

	var rows []assignmentRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "querying assignments")
	}

	asgs := make([]content.Assignment, 0, len(rows))
	for _, row := range rows {
		asgs = append(asgs, row.unrow())
	}
	return asgs, nil
}

func (repo contentRepository) CountAssignments(ctx context.Context, filter *content.QueryFilter) (int, error) {
	query := `SELECT COUNT(*) FROM assignment`
	where, args := repo.contentFilterClauses(filter, "assignment")
	query += where

	var count int
	if err := repo.db.GetContext(ctx, &count, repo.db.Rebind(query), args...); err != nil {
		return 0, errors.Wrap(err, "counting assignments")
	}
	return count, nil
}

func (repo contentRepository) UpdateAssignment(ctx context.Context, a content.Assignment, allowResubmission *bool) (content.Assignment, error) {
	if allowResubmission != nil {
		a.AllowResubmission = *allowResubmission
	} else {
		orig, err := repo.GetAssignment(ctx, a.ID)
		if err != nil {
			return content.Assignment{}, err
		}
		a.AllowResubmission = orig.AllowResubmission
	}

	row := rowAssignment(a)
	res, err := repo.db.NamedExecContext(ctx, `
		UPDATE assignment
		SET title = :title, description = :description, file = :file, deadline = :deadline,
		    allow_resubmission = :allow_resubmission, max_marks = :max_marks, updated_at = :updated_at
		WHERE id = :id`,
		row,
	)
	if err != nil {
		return content.Assignment{}, errors.Wrap(err, "updating assignment")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return content.Assignment{}, content.ErrNotFound
	}
	return repo.GetAssignment(ctx, a.ID)
}

func (repo contentRepository) DeleteAssignment(ctx context.Context, id string) error {
	if _, err := repo.db.ExecContext(ctx, `DELETE FROM assignment WHERE id = $1`, id); err != nil {
		return errors.Wrap(err, "deleting assignment")
	}
	return nil
}
