package content

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/darasahq/darasa/core"
)

// PPT is a presentation document scoped to a batch; the file bytes live in
// external object storage, only the descriptor is kept here.
type PPT struct {
	ID           string        `json:"id"`
	Title        string        `json:"title"`
	Description  string        `json:"description"`
	BatchID      string        `json:"batch_id"`
	UploadedByID string        `json:"uploaded_by_id"`
	File         core.FileInfo `json:"file"`
	CreatedAt    time.Time     `json:"created_at"` // UTC
	UpdatedAt    time.Time     `json:"updated_at"` // UTC
}

// Assignment is coursework scoped to a batch, submittable until Deadline.
type Assignment struct {
	ID                string        `json:"id"`
	Title             string        `json:"title"`
	Description       string        `json:"description"`
	BatchID           string        `json:"batch_id"`
	UploadedByID      string        `json:"uploaded_by_id"`
	File              core.FileInfo `json:"file"`
	Deadline          time.Time     `json:"deadline"`
	AllowResubmission bool          `json:"allow_resubmission"`
	MaxMarks          int           `json:"max_marks"`
	CreatedAt         time.Time     `json:"created_at"` // UTC
	UpdatedAt         time.Time     `json:"updated_at"` // UTC
}

type NewPPT struct {
	Title       string `json:"title" form:"title" validate:"required"`
	Description string `json:"description" form:"description"`
	BatchID     string `json:"batch_id" form:"batch_id" validate:"required,uuid4"`
}

func (np *NewPPT) Validate(validate *validator.Validate) error {
	np.Title = core.CleanString(np.Title)
	np.Description = core.CleanString(np.Description)
	return validate.Struct(np)
}

type UpdatePPT struct {
	Title       string `json:"title" form:"title"`
	Description string `json:"description" form:"description"`
}

func (up *UpdatePPT) Validate(orig PPT, validate *validator.Validate) error {
	title := core.CleanString(up.Title)
	if title != "" {
		up.Title = title
	} else {
		up.Title = orig.Title
	}
	desc := core.CleanString(up.Description)
	if desc != "" {
		up.Description = desc
	} else {
		up.Description = orig.Description
	}
	return validate.Struct(up)
}

type NewAssignment struct {
	Title             string    `json:"title" form:"title" validate:"required"`
	Description       string    `json:"description" form:"description"`
	BatchID           string    `json:"batch_id" form:"batch_id" validate:"required,uuid4"`
	Deadline          time.Time `json:"deadline" form:"deadline" validate:"required"`
	AllowResubmission bool      `json:"allow_resubmission" form:"allow_resubmission"`
	MaxMarks          int       `json:"max_marks" form:"max_marks" validate:"required,gt=0"`
}

func (na *NewAssignment) Validate(validate *validator.Validate) error {
	na.Title = core.CleanString(na.Title)
	na.Description = core.CleanString(na.Description)
	return validate.Struct(na)
}

type UpdateAssignment struct {
	Title             string    `json:"title" form:"title"`
	Description       string    `json:"description" form:"description"`
	Deadline          time.Time `json:"deadline" form:"deadline"`
	AllowResubmission *bool     `json:"allow_resubmission" form:"allow_resubmission"`
	MaxMarks          int       `json:"max_marks" form:"max_marks" validate:"omitempty,gt=0"`
}

func (ua *UpdateAssignment) Validate(orig Assignment, validate *validator.Validate) error {
	title := core.CleanString(ua.Title)
	if title != "" {
		ua.Title = title
	} else {
		ua.Title = orig.Title
	}
	desc := core.CleanString(ua.Description)
	if desc != "" {
		ua.Description = desc
	} else {
		ua.Description = orig.Description
	}
	if ua.Deadline.IsZero() {
		ua.Deadline = orig.Deadline
	}
	if ua.MaxMarks == 0 {
		ua.MaxMarks = orig.MaxMarks
	}
	return validate.Struct(ua)
}

// QueryFilter fields are combined with an AND operation.
// TrainerID scopes to batches owned by that trainer.
type QueryFilter struct {
	Search    string `query:"search"`
	BatchID   string `query:"batch_id"`
	TrainerID string `query:"-"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}

type Repository interface {
	CreatePPT(ctx context.Context, p PPT) (PPT, error)
	GetPPT(ctx context.Context, id string) (PPT, error)
	QueryPPTs(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]PPT, error)
	CountPPTs(ctx context.Context, filter *QueryFilter) (int, error)
	UpdatePPT(ctx context.Context, p PPT) (PPT, error)
	DeletePPT(ctx context.Context, id string) error

	CreateAssignment(ctx context.Context, a Assignment) (Assignment, error)
	GetAssignment(ctx context.Context, id string) (Assignment, error)
	QueryAssignments(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Assignment, error)
	CountAssignments(ctx context.Context, filter *QueryFilter) (int, error)
	UpdateAssignment(ctx context.Context, a Assignment, allowResubmission *bool) (Assignment, error)
	DeleteAssignment(ctx context.Context, id string) error
}

// SubmissionPurger is the slice of the submission store the content service
// needs for cascading an assignment delete. Satisfied by submission.Repository.
type SubmissionPurger interface {
	QuerySubmissionFiles(ctx context.Context, assignmentID string) ([]core.FileInfo, error)
	DeleteSubmissionsByAssignment(ctx context.Context, assignmentID string) error
}
