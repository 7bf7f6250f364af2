package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/submission"
)

type submissionRow struct {
	ID            string      `db:"id"`
	AssignmentID  string      `db:"assignment_id"`
	StudentID     string      `db:"student_id"`
	Files         filesCol    `db:"files"`
	Status        string      `db:"status"`
	Marks         null.Int    `db:"marks"`
	Feedback      string      `db:"feedback"`
	FeedbackImage fileCol     `db:"feedback_image"`
	GradedByID    null.String `db:"graded_by_id"`
	GradedAt      null.Time   `db:"graded_at"`
	SubmittedAt   null.Time   `db:"submitted_at"`
}

func (r submissionRow) unrow() submission.Submission {
	s := submission.Submission{
		ID:           r.ID,
		AssignmentID: r.AssignmentID,
		StudentID:    r.StudentID,
		Files:        []core.FileInfo(r.Files),
		Status:       r.Status,
		Marks:        r.Marks.Ptr(),
		Feedback:     r.Feedback,
		GradedByID:   r.GradedByID.String,
		GradedAt:     r.GradedAt.Time,
		SubmittedAt:  r.SubmittedAt.Time,
	}
	if fi := core.FileInfo(r.FeedbackImage); !fi.IsZero() {
		s.FeedbackImage = &fi
	}
	return s
}

func rowSubmission(s submission.Submission) submissionRow {
	row := submissionRow{
		ID:           s.ID,
		AssignmentID: s.AssignmentID,
		StudentID:    s.StudentID,
		Files:        filesCol(s.Files),
		Status:       s.Status,
		Marks:        null.IntFromPtr(s.Marks),
		Feedback:     s.Feedback,
		GradedByID:   null.NewString(s.GradedByID, s.GradedByID != ""),
		GradedAt:     null.NewTime(s.GradedAt.UTC(), !s.GradedAt.IsZero()),
		SubmittedAt:  null.NewTime(s.SubmittedAt.UTC(), !s.SubmittedAt.IsZero()),
	}
	if s.FeedbackImage != nil {
		row.FeedbackImage = fileCol(*s.FeedbackImage)
	}
	return row
}

type submissionRepository struct {
	db *sqlx.DB
}

var _ submission.Repository = (*submissionRepository)(nil) // interface compliance check

func NewSubmissionRepository(db *sqlx.DB) *submissionRepository {
	return &submissionRepository{db: db}
}

func (repo submissionRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return submission.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo submissionRepository) UpsertSubmission(ctx context.Context, s submission.Submission) (submission.Submission, error) {
	// the unique (assignment_id, student_id) constraint keeps concurrent
	// submits down to a single surviving row
	row := rowSubmission(s)
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO submission (id, assignment_id, student_id, files, status, marks, feedback, feedback_image, graded_by_id, graded_at, submitted_at)
		VALUES (:id, :assignment_id, :student_id, :files, :status, :marks, :feedback, :feedback_image, :graded_by_id, :graded_at, :submitted_at)
		ON CONFLICT ON CONSTRAINT submission_assignment_student_key DO UPDATE
		SET files = EXCLUDED.files, status = EXCLUDED.status, marks = EXCLUDED.marks,
		    feedback = EXCLUDED.feedback, feedback_image = EXCLUDED.feedback_image,
		    graded_by_id = EXCLUDED.graded_by_id, graded_at = EXCLUDED.graded_at,
		    submitted_at = EXCLUDED.submitted_at`,
		row,
	)
	if err != nil {
		return submission.Submission{}, errors.Wrap(err, "upserting submission")
	}
	return repo.GetByAssignmentAndStudent(ctx, s.AssignmentID, s.StudentID)
}

func (repo submissionRepository) GetSubmission(ctx context.Context, id string) (submission.Submission, error) {
	var row submissionRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM submission WHERE id = $1`, id); err != nil {
		return submission.Submission{}, repo.trapNoRowsErr(err, "finding submission")
	}
	return row.unrow(), nil
}

func (repo submissionRepository) GetByAssignmentAndStudent(ctx context.Context, assignmentID, studentID string) (submission.Submission, error) {
	var row submissionRow
	err := repo.db.GetContext(ctx, &row,
		`SELECT * FROM submission WHERE assignment_id = $1 AND student_id = $2`, assignmentID, studentID)
	if err != nil {
		return submission.Submission{}, repo.trapNoRowsErr(err, "finding submission")
	}
	return row.unrow(), nil
}

func (repo submissionRepository) QueryByAssignment(ctx context.Context, assignmentID string) ([]submission.Submission, error) {
	var rows []submissionRow
	err := repo.db.SelectContext(ctx, &rows,
		`SELECT * FROM submission WHERE assignment_id = $1 ORDER BY submitted_at ASC`, assignmentID)
	if err != nil {
		return nil, errors.Wrap(err, "querying submissions")
	}
	return unrowSubmissions(rows), nil
}

func (repo submissionRepository) QueryByStudent(ctx context.Context, studentID string) ([]submission.Submission, error) {
	var rows []submissionRow
	err := repo.db.SelectContext(ctx, &rows,
		`SELECT * FROM submission WHERE student_id = $1 ORDER BY submitted_at DESC`, studentID)
	if err != nil {
		return nil, errors.Wrap(err, "querying submissions")
	}
	return unrowSubmissions(rows), nil
}

func (repo submissionRepository) UpdateGrade(ctx context.Context, s submission.Submission) (submission.Submission, error) {
	row := rowSubmission(s)
	res, err := repo.db.NamedExecContext(ctx, `
		UPDATE submission
		SET status = :status, marks = :marks, feedback = :feedback, feedback_image = :feedback_image,
		    graded_by_id = :graded_by_id, graded_at = :graded_at
		WHERE id = :id`,
		row,
	)
	if err != nil {
		return submission.Submission{}, errors.Wrap(err, "updating grade")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return submission.Submission{}, submission.ErrNotFound
	}
	return repo.GetSubmission(ctx, s.ID)
}

func (repo submissionRepository) CountUngradedForTrainer(ctx context.Context, trainerID string) (int, error) {
	var count int
	err := repo.db.GetContext(ctx, &count, `
		SELECT COUNT(*)
		FROM submission s
		JOIN assignment a ON a.id = s.assignment_id
		JOIN batch b ON b.id = a.batch_id
		WHERE b.trainer_id = $1 AND s.status <> $2`,
		trainerID, submission.StatusGraded,
	)
	if err != nil {
		return 0, errors.Wrap(err, "counting ungraded submissions")
	}
	return count, nil
}

func (repo submissionRepository) QuerySubmissionFiles(ctx context.Context, assignmentID string) ([]core.FileInfo, error) {
	subs, err := repo.QueryByAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}

	var files []core.FileInfo
	for _, s := range subs {
		files = append(files, s.Files...)
		if s.FeedbackImage != nil {
			files = append(files, *s.FeedbackImage)
		}
	}
	return files, nil
}

func (repo submissionRepository) DeleteSubmissionsByAssignment(ctx context.Context, assignmentID string) error {
	if _, err := repo.db.ExecContext(ctx, `DELETE FROM submission WHERE assignment_id = $1`, assignmentID); err != nil {
		return errors.Wrap(err, "deleting submissions")
	}
	return nil
}

func unrowSubmissions(rows []submissionRow) []submission.Submission {
	subs := make([]submission.Submission, 0, len(rows))
	for _, row := range rows {
		subs = append(subs, row.unrow())
	}
	return subs
}
