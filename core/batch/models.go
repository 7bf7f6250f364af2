package batch

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/darasahq/darasa/core"
)

// Batch is a cohort of students supervised by exactly one trainer.
// Student membership is implicit: it lives on the student documents
// (user.BatchID) and is always resolved by query, never cached here.
type Batch struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	TrainerID string    `json:"trainer_id"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	IsActive  *bool     `json:"is_active"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

// NewBatch contains information needed to create a new Batch.
type NewBatch struct {
	Name      string    `json:"name" validate:"required"`
	TrainerID string    `json:"trainer_id" validate:"required,uuid4"`
	StartDate time.Time `json:"start_date" validate:"required"`
	EndDate   time.Time `json:"end_date" validate:"required,gtfield=StartDate"`
}

func (nb *NewBatch) Validate(validate *validator.Validate) error {
	nb.Name = core.CleanString(nb.Name)
	return validate.Struct(nb)
}

// UpdateBatch defines what information may be provided to modify an existing Batch.
// TrainerID reassignment is an admin-only operation, enforced by the service.
type UpdateBatch struct {
	Name      string    `json:"name"`
	TrainerID string    `json:"trainer_id" validate:"omitempty,uuid4"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	IsActive  *bool     `json:"is_active"`
}

func (ub *UpdateBatch) Validate(origBatch Batch, validate *validator.Validate) error {
	name := core.CleanString(ub.Name)
	if name != "" {
		ub.Name = name
	} else {
		ub.Name = origBatch.Name
	}
	return validate.Struct(ub)
}

// AddStudent assigns an existing student-role user to a batch.
type AddStudent struct {
	StudentID string `json:"student_id" validate:"required,uuid4"`
}

func (as *AddStudent) Validate(validate *validator.Validate) error {
	return validate.Struct(as)
}

// QueryFilter fields are combined with an AND operation.
type QueryFilter struct {
	Search    string `query:"search"`
	TrainerID string `query:"trainer_id"`
	IsActive  *bool  `query:"is_active"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.TrainerID == "" && qf.IsActive == nil
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}

type Repository interface {
	CreateBatch(ctx context.Context, b Batch) (Batch, error)
	GetBatch(ctx context.Context, id string) (Batch, error)
	// QueryBatches applies an AND operation on available QueryFilter fields.
	QueryBatches(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Batch, error)
	CountBatches(ctx context.Context, filter *QueryFilter) (int, error)
	// UpdateBatch only writes non-zero fields of b; isActive is applied when non-nil.
	UpdateBatch(ctx context.Context, b Batch, isActive *bool) (Batch, error)
	DeleteBatch(ctx context.Context, id string) error
}
