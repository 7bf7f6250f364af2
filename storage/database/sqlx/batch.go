package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/batch"
)

type batchRow struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	TrainerID string    `db:"trainer_id"`
	StartDate null.Time `db:"start_date"`
	EndDate   null.Time `db:"end_date"`
	IsActive  null.Bool `db:"is_active"`
	CreatedAt null.Time `db:"created_at"`
	UpdatedAt null.Time `db:"updated_at"`
}

func (r batchRow) unrow() batch.Batch {
	return batch.Batch{
		ID:        r.ID,
		Name:      r.Name,
		TrainerID: r.TrainerID,
		StartDate: r.StartDate.Time,
		EndDate:   r.EndDate.Time,
		IsActive:  r.IsActive.Ptr(),
		CreatedAt: r.CreatedAt.Time,
		UpdatedAt: r.UpdatedAt.Time,
	}
}

func rowBatch(b batch.Batch) batchRow {
	return batchRow{
		ID:        b.ID,
		Name:      b.Name,
		TrainerID: b.TrainerID,
		StartDate: null.NewTime(b.StartDate.UTC(), !b.StartDate.IsZero()),
		EndDate:   null.NewTime(b.EndDate.UTC(), !b.EndDate.IsZero()),
		IsActive:  null.BoolFromPtr(b.IsActive),
		CreatedAt: null.NewTime(b.CreatedAt.UTC(), !b.CreatedAt.IsZero()),
		UpdatedAt: null.NewTime(b.UpdatedAt.UTC(), !b.UpdatedAt.IsZero()),
	}
}

type batchRepository struct {
	db *sqlx.DB
}

var _ batch.Repository = (*batchRepository)(nil) // interface compliance check

func NewBatchRepository(db *sqlx.DB) *batchRepository {
	return &batchRepository{db: db}
}

func (repo batchRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return batch.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo batchRepository) CreateBatch(ctx context.Context, b batch.Batch) (batch.Batch, error) {
	b.ID = uuid.New().String()
	row := rowBatch(b)
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO batch (id, name, trainer_id, start_date, end_date, is_active, created_at, updated_at)
		VALUES (:id, :name, :trainer_id, :start_date, :end_date, :is_active, :created_at, :updated_at)`,
		row,
	)
	if err != nil {
		return batch.Batch{}, errors.Wrap(err, "inserting batch")
	}
	return row.unrow(), nil
}

func (repo batchRepository) GetBatch(ctx context.Context, id string) (batch.Batch, error) {
	if _, err := uuid.Parse(id); err != nil {
		return batch.Batch{}, batch.ErrNotFound
	}
	var row batchRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM batch WHERE id = $1`, id); err != nil {
		return batch.Batch{}, repo.trapNoRowsErr(err, "finding batch")
	}
	return row.unrow(), nil
}

func (repo batchRepository) batchFilterClauses(filter *batch.QueryFilter) (string, []interface{}) {
	if filter == nil || filter.IsEmpty() {
		return "", nil
	}

	var (
		clauses []string
		args    []interface{}
	)
	if filter.Search != "" {
		clauses = append(clauses, "name ILIKE ?")
		args = append(args, "%"+filter.Search+"%")
	}
	if filter.TrainerID != "" {
		clauses = append(clauses, "trainer_id = ?")
		args = append(args, filter.TrainerID)
	}
	if filter.IsActive != nil {
		clauses = append(clauses, "is_active = ?")
		args = append(args, *filter.IsActive)
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (repo batchRepository) QueryBatches(ctx context.Context, filter *batch.QueryFilter, ordering []core.DBOrdering) ([]batch.Batch, error) {
	query := `SELECT * FROM batch`
	where, args := repo.batchFilterClauses(filter)
	query += where
	query += orderByClause(ordering, "created_at DESC")

	var rows []batchRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "querying batches")
	}

	batches := make([]batch.Batch, 0, len(rows))
	for _, row := range rows {
		batches = append(batches, row.unrow())
	}
	return batches, nil
}

func (repo batchRepository) CountBatches(ctx context.Context, filter *batch.QueryFilter) (int, error) {
	query := `SELECT COUNT(*) FROM batch`
	where, args := repo.batchFilterClauses(filter)
	query += where

	var count int
	if err := repo.db.GetContext(ctx, &count, repo.db.Rebind(query), args...); err != nil {
		return 0, errors.Wrap(err, "counting batches")
	}
	return count, nil
}

func (repo batchRepository) UpdateBatch(ctx context.Context, b batch.Batch, isActive *bool) (batch.Batch, error) {
	var (
		sets []string
		args []interface{}
	)
	set := func(col string, val interface{}) {
		sets = append(sets, col+" = ?")
		args = append(args, val)
	}

	if b.Name != "" {
		set("name", b.Name)
	}
	if b.TrainerID != "" {
		set("trainer_id", b.TrainerID)
	}
	if !b.StartDate.IsZero() {
		set("start_date", b.StartDate.UTC())
	}
	if !b.EndDate.IsZero() {
		set("end_date", b.EndDate.UTC())
	}
	if !b.UpdatedAt.IsZero() {
		set("updated_at", b.UpdatedAt.UTC())
	}
	if isActive != nil {
		set("is_active", *isActive)
	}
	if len(sets) == 0 {
		return repo.GetBatch(ctx, b.ID)
	}

	query := `UPDATE batch SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`
	args = append(args, b.ID)

	res, err := repo.db.ExecContext(ctx, repo.db.Rebind(query), args...)
	if err != nil {
		return batch.Batch{}, errors.Wrap(err, "updating batch")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return batch.Batch{}, batch.ErrNotFound
	}
	return repo.GetBatch(ctx, b.ID)
}

func (repo batchRepository) DeleteBatch(ctx context.Context, id string) error {
	if _, err := repo.db.ExecContext(ctx, `DELETE FROM batch WHERE id = $1`, id); err != nil {
		return errors.Wrap(err, "deleting batch")
	}
	return nil
}
