package submission

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/darasahq/darasa/core"
)

// Statuses. A submission enters as submitted or late depending on the
// deadline, and only ever transitions to graded.
const (
	StatusSubmitted = "submitted"
	StatusLate      = "late"
	StatusGraded    = "graded"
)

// Submission is a student's current work for one assignment: at most one
// exists per (assignment, student) pair, resubmissions replace it in place.
type Submission struct {
	ID            string          `json:"id"`
	AssignmentID  string          `json:"assignment_id"`
	StudentID     string          `json:"student_id"`
	Files         []core.FileInfo `json:"files"`
	Status        string          `json:"status"`
	Marks         *int            `json:"marks,omitempty"`
	Feedback      string          `json:"feedback,omitempty"`
	FeedbackImage *core.FileInfo  `json:"feedback_image,omitempty"`
	GradedByID    string          `json:"graded_by_id,omitempty"`
	GradedAt      time.Time       `json:"graded_at,omitempty"`
	SubmittedAt   time.Time       `json:"submitted_at"` // UTC
}

func (s *Submission) IsGraded() bool { return s.Status == StatusGraded }

// GradeSubmission carries a grading decision.
type GradeSubmission struct {
	Marks    *int   `json:"marks" form:"marks" validate:"required,gte=0"`
	Feedback string `json:"feedback" form:"feedback"`
}

func (gs *GradeSubmission) Validate(validate *validator.Validate) error {
	gs.Feedback = core.CleanString(gs.Feedback)
	return validate.Struct(gs)
}

type Repository interface {
	// UpsertSubmission inserts s, or replaces the existing row for
	// (s.AssignmentID, s.StudentID); the storage layer's uniqueness constraint
	// is what holds the at-most-one invariant under concurrent submits.
	UpsertSubmission(ctx context.Context, s Submission) (Submission, error)
	GetSubmission(ctx context.Context, id string) (Submission, error)
	GetByAssignmentAndStudent(ctx context.Context, assignmentID, studentID string) (Submission, error)
	QueryByAssignment(ctx context.Context, assignmentID string) ([]Submission, error)
	QueryByStudent(ctx context.Context, studentID string) ([]Submission, error)
	// UpdateGrade writes the grading fields of s only.
	UpdateGrade(ctx context.Context, s Submission) (Submission, error)
	CountUngradedForTrainer(ctx context.Context, trainerID string) (int, error)

	QuerySubmissionFiles(ctx context.Context, assignmentID string) ([]core.FileInfo, error)
	DeleteSubmissionsByAssignment(ctx context.Context, assignmentID string) error
}
