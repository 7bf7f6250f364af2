package submission

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/batch"
	"github.com/darasahq/darasa/core/content"
	"github.com/darasahq/darasa/core/user"
)

var (
	// errors
	ErrNotFound               = errors.New("submission not found")
	ErrNoFiles                = errors.New("no files provided")
	ErrResubmissionNotAllowed = errors.New("the deadline has passed and this assignment does not allow resubmission")
	ErrInvalidScore           = errors.New("marks exceed the assignment's max marks")

	nowFunc = time.Now // mockable
)

type (
	Service interface {
		Submit(ctx context.Context, actor user.User, assignmentID string, uploads []core.Upload) (Submission, error)
		Grade(ctx context.Context, actor user.User, id string, gs GradeSubmission, feedbackImg *core.Upload) (Submission, error)
		Get(ctx context.Context, actor user.User, id string) (Submission, error)
		QueryByAssignment(ctx context.Context, actor user.User, assignmentID string) ([]Submission, error)
		QueryOwn(ctx context.Context, actor user.User) ([]Submission, error)
	}

	service struct {
		repo        Repository
		contentRepo content.Repository
		batchSvc    batch.Service
		usrRepo     user.Repository
		storage     core.FileStorage
		mailSvc     core.EmailService
		logger      core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(
	repo Repository,
	contentRepo content.Repository,
	batchSvc batch.Service,
	usrRepo user.Repository,
	storage core.FileStorage,
	mailSvc core.EmailService,
	logger core.Logger,
) Service {
	return &service{
		repo:        repo,
		contentRepo: contentRepo,
		batchSvc:    batchSvc,
		usrRepo:     usrRepo,
		storage:     storage,
		mailSvc:     mailSvc,
		logger:      logger,
	}
}

func (svc *service) Submit(ctx context.Context, actor user.User, assignmentID string, uploads []core.Upload) (Submission, error) {
	asg, err := svc.contentRepo.GetAssignment(ctx, assignmentID)
	if err != nil {
		return Submission{}, err
	}
	if !actor.IsStudent() || actor.BatchID != asg.BatchID {
		return Submission{}, core.ErrPermissionDenied
	}
	if len(uploads) == 0 {
		return Submission{}, core.NewValidationError(ErrNoFiles, core.FieldError{Field: "files", Error: ErrNoFiles.Error()})
	}

	now := nowFunc().UTC()
	isLate := now.After(asg.Deadline)

	prior, err := svc.repo.GetByAssignmentAndStudent(ctx, assignmentID, actor.ID)
	hasPrior := err == nil
	if err != nil && errors.Cause(err) != ErrNotFound {
		return Submission{}, err
	}
	if hasPrior && isLate && !asg.AllowResubmission {
		return Submission{}, core.NewConflictError(ErrResubmissionNotAllowed)
	}

	// upload the new files first: a failed upload leaves the prior submission
	// (row and blobs) untouched.
	infos := make([]core.FileInfo, 0, len(uploads))
	for _, up := range uploads {
		info, err := svc.storage.Upload(ctx, actor.Role,
			fmt.Sprintf("submissions/%s/%s/%s", assignmentID, actor.ID, up.Name), up)
		if err != nil {
			for _, stored := range infos {
				svc.deleteBlob(stored)
			}
			return Submission{}, errors.Wrap(err, "uploading submission file")
		}
		infos = append(infos, info)
	}

	// a resubmission replaces the prior files; old blobs go best-effort
	if hasPrior {
		for _, f := range prior.Files {
			svc.deleteBlob(f)
		}
	}

	status := StatusSubmitted
	if isLate {
		status = StatusLate
	}
	sub := Submission{
		ID:           uuid.New().String(),
		AssignmentID: assignmentID,
		StudentID:    actor.ID,
		Files:        infos,
		Status:       status,
		SubmittedAt:  now,
	}
	sub, err = svc.repo.UpsertSubmission(ctx, sub)
	if err != nil {
		return Submission{}, err
	}

	go svc.notifyTrainer(asg, actor, isLate)
	return sub, nil
}

func (svc *service) Grade(ctx context.Context, actor user.User, id string, gs GradeSubmission, feedbackImg *core.Upload) (Submission, error) {
	sub, err := svc.repo.GetSubmission(ctx, id)
	if err != nil {
		return Submission{}, err
	}
	asg, err := svc.contentRepo.GetAssignment(ctx, sub.AssignmentID)
	if err != nil {
		return Submission{}, err
	}
	// only the batch owner (or an admin) may grade
	if _, err = svc.batchSvc.CheckOwnership(ctx, actor, asg.BatchID); err != nil {
		return Submission{}, err
	}
	if gs.Marks == nil || *gs.Marks < 0 || *gs.Marks > asg.MaxMarks {
		return Submission{}, core.NewValidationError(ErrInvalidScore,
			core.FieldError{Field: "marks", Error: fmt.Sprintf("marks must be between 0 and %d", asg.MaxMarks)})
	}

	if feedbackImg != nil {
		if sub.FeedbackImage != nil {
			svc.deleteBlob(*sub.FeedbackImage)
		}
		info, err := svc.storage.Upload(ctx, actor.Role,
			fmt.Sprintf("feedback/%s/%s", sub.ID, feedbackImg.Name), *feedbackImg)
		if err != nil {
			return Submission{}, errors.Wrap(err, "uploading feedback image")
		}
		sub.FeedbackImage = &info
	}

	// re-grading is an idempotent overwrite, not an error
	sub.Marks = gs.Marks
	sub.Feedback = gs.Feedback
	sub.Status = StatusGraded
	sub.GradedByID = actor.ID
	sub.GradedAt = nowFunc().UTC()

	sub, err = svc.repo.UpdateGrade(ctx, sub)
	if err != nil {
		return Submission{}, err
	}

	go svc.notifyStudent(asg, sub)
	return sub, nil
}

func (svc *service) Get(ctx context.Context, actor user.User, id string) (Submission, error) {
	sub, err := svc.repo.GetSubmission(ctx, id)
	if err != nil {
		return Submission{}, err
	}
	if actor.IsStudent() {
		if sub.StudentID != actor.ID {
			return Submission{}, core.ErrPermissionDenied
		}
		return sub, nil
	}
	asg, err := svc.contentRepo.GetAssignment(ctx, sub.AssignmentID)
	if err != nil {
		return Submission{}, err
	}
	if _, err = svc.batchSvc.CheckOwnership(ctx, actor, asg.BatchID); err != nil {
		return Submission{}, err
	}
	return sub, nil
}

func (svc *service) QueryByAssignment(ctx context.Context, actor user.User, assignmentID string) ([]Submission, error) {
	asg, err := svc.contentRepo.GetAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}

	// students only ever see their own submission
	if actor.IsStudent() {
		if actor.BatchID != asg.BatchID {
			return nil, core.ErrPermissionDenied
		}
		sub, err := svc.repo.GetByAssignmentAndStudent(ctx, assignmentID, actor.ID)
		if err != nil {
			if errors.Cause(err) == ErrNotFound {
				return []Submission{}, nil
			}
			return nil, err
		}
		return []Submission{sub}, nil
	}

	if _, err = svc.batchSvc.CheckOwnership(ctx, actor, asg.BatchID); err != nil {
		return nil, err
	}
	return svc.repo.QueryByAssignment(ctx, assignmentID)
}

func (svc *service) QueryOwn(ctx context.Context, actor user.User) ([]Submission, error) {
	return svc.repo.QueryByStudent(ctx, actor.ID)
}

// helpers

func (svc *service) deleteBlob(info core.FileInfo) {
	if info.IsZero() {
		return
	}
	if err := svc.storage.Delete(context.Background(), info.FilePath); err != nil {
		svc.logger.Warn(fmt.Sprintf("deleting blob %s: %v", info.FilePath, err), err)
	}
}

func (svc *service) notifyTrainer(asg content.Assignment, student user.User, late bool) {
	ctx := context.Background()
	// internal read, not on behalf of the submitting student
	b, err := svc.batchSvc.Get(ctx, user.User{Role: user.RoleAdmin}, asg.BatchID)
	if err != nil {
		svc.logger.Error(fmt.Sprintf("loading batch for notification: %v", err), err)
		return
	}
	trainer, err := svc.usrRepo.GetUser(ctx, user.GetFilter{ID: b.TrainerID})
	if err != nil {
		svc.logger.Error(fmt.Sprintf("loading trainer for notification: %v", err), err)
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: trainer.Name, Address: trainer.Email}},
		Subject:      "New submission: " + asg.Title,
		TemplateName: "submission-received",
		TemplateData: struct {
			Name            string
			StudentName     string
			AssignmentTitle string
			Late            bool
		}{Name: trainer.Name, StudentName: student.Name, AssignmentTitle: asg.Title, Late: late},
	})
}

func (svc *service) notifyStudent(asg content.Assignment, sub Submission) {
	student, err := svc.usrRepo.GetUser(context.Background(), user.GetFilter{ID: sub.StudentID})
	if err != nil {
		svc.logger.Error(fmt.Sprintf("loading student for notification: %v", err), err)
		return
	}
	var marks int
	if sub.Marks != nil {
		marks = *sub.Marks
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: student.Name, Address: student.Email}},
		Subject:      "Your submission was graded: " + asg.Title,
		TemplateName: "submission-graded",
		TemplateData: struct {
			Name            string
			AssignmentTitle string
			Marks           int
			MaxMarks        int
			Feedback        string
		}{Name: student.Name, AssignmentTitle: asg.Title, Marks: marks, MaxMarks: asg.MaxMarks, Feedback: sub.Feedback},
	})
}
