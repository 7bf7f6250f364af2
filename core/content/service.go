package content

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/batch"
	"github.com/darasahq/darasa/core/user"
)

var (
	// errors
	ErrNotFound    = errors.New("content not found")
	ErrFileMissing = errors.New("a file is required")
)

type (
	Service interface {
		CreatePPT(ctx context.Context, actor user.User, np NewPPT, up core.Upload) (PPT, error)
		GetPPT(ctx context.Context, actor user.User, id string) (PPT, error)
		QueryPPTs(ctx context.Context, actor user.User, filter *QueryFilter, ordering []core.DBOrdering) ([]PPT, error)
		UpdatePPT(ctx context.Context, actor user.User, id string, upd UpdatePPT, up *core.Upload) (PPT, error)
		DeletePPT(ctx context.Context, actor user.User, id string) error

		CreateAssignment(ctx context.Context, actor user.User, na NewAssignment, up core.Upload) (Assignment, error)
		GetAssignment(ctx context.Context, actor user.User, id string) (Assignment, error)
		QueryAssignments(ctx context.Context, actor user.User, filter *QueryFilter, ordering []core.DBOrdering) ([]Assignment, error)
		UpdateAssignment(ctx context.Context, actor user.User, id string, upd UpdateAssignment, up *core.Upload) (Assignment, error)
		DeleteAssignment(ctx context.Context, actor user.User, id string) error
	}

	service struct {
		repo     Repository
		subs     SubmissionPurger
		batchSvc batch.Service
		usrRepo  user.Repository
		storage  core.FileStorage
		mailSvc  core.EmailService
		logger   core.Logger
		validate *validator.Validate
	}
)

var _ Service = (*service)(nil)

func NewService(
	repo Repository,
	subs SubmissionPurger,
	batchSvc batch.Service,
	usrRepo user.Repository,
	storage core.FileStorage,
	mailSvc core.EmailService,
	logger core.Logger,
	validate *validator.Validate,
) Service {
	return &service{
		repo:     repo,
		subs:     subs,
		batchSvc: batchSvc,
		usrRepo:  usrRepo,
		storage:  storage,
		mailSvc:  mailSvc,
		logger:   logger,
		validate: validate,
	}
}

// PPTs

func (svc *service) CreatePPT(ctx context.Context, actor user.User, np NewPPT, up core.Upload) (PPT, error) {
	if up.Body == nil {
		return PPT{}, core.NewValidationError(ErrFileMissing, core.FieldError{Field: "file", Error: ErrFileMissing.Error()})
	}
	b, err := svc.batchSvc.CheckOwnership(ctx, actor, np.BatchID)
	if err != nil {
		return PPT{}, err
	}

	info, err := svc.storage.Upload(ctx, actor.Role, fmt.Sprintf("ppts/%s/%s", np.BatchID, up.Name), up)
	if err != nil {
		return PPT{}, errors.Wrap(err, "uploading ppt file")
	}

	now := time.Now().UTC()
	p := PPT{
		ID:           uuid.New().String(),
		Title:        np.Title,
		Description:  np.Description,
		BatchID:      np.BatchID,
		UploadedByID: actor.ID,
		File:         info,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	p, err = svc.repo.CreatePPT(ctx, p)
	if err != nil {
		svc.deleteBlob(info) // do not leave an orphaned blob behind
		return PPT{}, err
	}

	go svc.notifyBatch(b, p.Title, time.Time{})
	return p, nil
}

func (svc *service) GetPPT(ctx context.Context, actor user.User, id string) (PPT, error) {
	p, err := svc.repo.GetPPT(ctx, id)
	if err != nil {
		return PPT{}, err
	}
	if err = svc.checkReadAccess(ctx, actor, p.BatchID); err != nil {
		return PPT{}, err
	}
	return p, nil
}

func (svc *service) QueryPPTs(ctx context.Context, actor user.User, filter *QueryFilter, ordering []core.DBOrdering) ([]PPT, error) {
	filter, empty := svc.scopeFilter(actor, filter)
	if empty {
		return []PPT{}, nil
	}
	return svc.repo.QueryPPTs(ctx, filter, ordering)
}

func (svc *service) UpdatePPT(ctx context.Context, actor user.User, id string, upd UpdatePPT, up *core.Upload) (PPT, error) {
	p, err := svc.repo.GetPPT(ctx, id)
	if err != nil {
		return PPT{}, err
	}
	if _, err = svc.batchSvc.CheckOwnership(ctx, actor, p.BatchID); err != nil {
		return PPT{}, err
	}
	if err = upd.Validate(p, svc.validate); err != nil {
		return PPT{}, err
	}

	if up != nil {
		// delete-then-upload; the DB row is only touched after a successful upload,
		// so a failed upload leaves the previous record (and descriptor) intact.
		svc.deleteBlob(p.File)
		info, err := svc.storage.Upload(ctx, actor.Role, fmt.Sprintf("ppts/%s/%s", p.BatchID, up.Name), *up)
		if err != nil {
			return PPT{}, errors.Wrap(err, "uploading ppt file")
		}
		p.File = info
	}

	p.Title = upd.Title
	p.Description = upd.Description
	p.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdatePPT(ctx, p)
}

func (svc *service) DeletePPT(ctx context.Context, actor user.User, id string) error {
	p, err := svc.repo.GetPPT(ctx, id)
	if err != nil {
		return err
	}
	if _, err = svc.batchSvc.CheckOwnership(ctx, actor, p.BatchID); err != nil {
		return err
	}
	svc.deleteBlob(p.File)
	return svc.repo.DeletePPT(ctx, id)
}

// Assignments

func (svc *service) CreateAssignment(ctx context.Context, actor user.User, na NewAssignment, up core.Upload) (Assignment, error) {
	if up.Body == nil {
		return Assignment{}, core.NewValidationError(ErrFileMissing, core.FieldError{Field: "file", Error: ErrFileMissing.Error()})
	}
	b, err := svc.batchSvc.CheckOwnership(ctx, actor, na.BatchID)
	if err != nil {
		return Assignment{}, err
	}

	info, err := svc.storage.Upload(ctx, actor.Role, fmt.Sprintf("assignments/%s/%s", na.BatchID, up.Name), up)
	if err != nil {
		return Assignment{}, errors.Wrap(err, "uploading assignment file")
	}

	now := time.Now().UTC()
	a := Assignment{
		ID:                uuid.New().String(),
		Title:             na.Title,
		Description:       na.Description,
		BatchID:           na.BatchID,
		UploadedByID:      actor.ID,
		File:              info,
		Deadline:          na.Deadline.UTC(),
		AllowResubmission: na.AllowResubmission,
		MaxMarks:          na.MaxMarks,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	a, err = svc.repo.CreateAssignment(ctx, a)
	if err != nil {
		svc.deleteBlob(info)
		return Assignment{}, err
	}

	go svc.notifyBatch(b, a.Title, a.Deadline)
	return a, nil
}

func (svc *service) GetAssignment(ctx context.Context, actor user.User, id string) (Assignment, error) {
	a, err := svc.repo.GetAssignment(ctx, id)
	if err != nil {
		return Assignment{}, err
	}
	if err = svc.checkReadAccess(ctx, actor, a.BatchID); err != nil {
		return Assignment{}, err
	}
	return a, nil
}

func (svc *service) QueryAssignments(ctx context.Context, actor user.User, filter *QueryFilter, ordering []core.DBOrdering) ([]Assignment, error) {
	filter, empty := svc.scopeFilter(actor, filter)
	if empty {
		return []Assignment{}, nil
	}
	return svc.repo.QueryAssignments(ctx, filter, ordering)
}

func (svc *service) UpdateAssignment(ctx context.Context, actor user.User, id string, upd UpdateAssignment, up *core.Upload) (Assignment, error) {
	a, err := svc.repo.GetAssignment(ctx, id)
	if err != nil {
		return Assignment{}, err
	}
	if _, err = svc.batchSvc.CheckOwnership(ctx, actor, a.BatchID); err != nil {
		return Assignment{}, err
	}
	if err = upd.Validate(a, svc.validate); err != nil {
		return Assignment{}, err
	}

	if up != nil {
		svc.deleteBlob(a.File)
		info, err := svc.storage.Upload(ctx, actor.Role, fmt.Sprintf("assignments/%s/%s", a.BatchID, up.Name), *up)
		if err != nil {
			return Assignment{}, errors.Wrap(err, "uploading assignment file")
		}
		a.File = info
	}

	a.Title = upd.Title
	a.Description = upd.Description
	a.Deadline = upd.Deadline.UTC()
	a.MaxMarks = upd.MaxMarks
	a.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateAssignment(ctx, a, upd.AllowResubmission)
}

func (svc *service) DeleteAssignment(ctx context.Context, actor user.User, id string) error {
	a, err := svc.repo.GetAssignment(ctx, id)
	if err != nil {
		return err
	}
	if _, err = svc.batchSvc.CheckOwnership(ctx, actor, a.BatchID); err != nil {
		return err
	}

	// cascade: submission blobs, submission rows, own blob, own row.
	// blob deletes are best-effort: one failure must not stop the rest.
	files, err := svc.subs.QuerySubmissionFiles(ctx, id)
	if err != nil {
		return errors.Wrap(err, "querying submission files")
	}
	for _, f := range files {
		svc.deleteBlob(f)
	}
	if err = svc.subs.DeleteSubmissionsByAssignment(ctx, id); err != nil {
		return errors.Wrap(err, "deleting submissions")
	}
	svc.deleteBlob(a.File)
	return svc.repo.DeleteAssignment(ctx, id)
}

// helpers

// scopeFilter narrows the query to what the actor may see; the second return
// reports that nothing is visible (unassigned student).
func (svc *service) scopeFilter(actor user.User, filter *QueryFilter) (*QueryFilter, bool) {
	if filter == nil {
		filter = new(QueryFilter)
	}
	switch {
	case actor.IsAdmin():
	case actor.IsTrainer():
		filter.TrainerID = actor.ID
	default: // student
		if actor.BatchID == "" {
			return filter, true
		}
		filter.BatchID = actor.BatchID
	}
	return filter, false
}

func (svc *service) checkReadAccess(ctx context.Context, actor user.User, batchID string) error {
	if actor.IsStudent() {
		if actor.BatchID == batchID {
			return nil
		}
		return core.ErrPermissionDenied
	}
	_, err := svc.batchSvc.CheckOwnership(ctx, actor, batchID)
	return err
}

// deleteBlob removes a stored file, logging instead of failing: blob deletes
// never roll back or block the surrounding mutation.
func (svc *service) deleteBlob(info core.FileInfo) {
	if info.IsZero() {
		return
	}
	if err := svc.storage.Delete(context.Background(), info.FilePath); err != nil {
		svc.logger.Warn(fmt.Sprintf("deleting blob %s: %v", info.FilePath, err), err)
	}
}

// notifyBatch emails every student of the batch about new material; best-effort.
func (svc *service) notifyBatch(b batch.Batch, title string, deadline time.Time) {
	students, err := svc.usrRepo.QueryUsers(context.Background(), &user.QueryFilter{BatchID: b.ID}, nil)
	if err != nil {
		svc.logger.Error(fmt.Sprintf("querying batch students: %v", err), err)
		return
	}

	msgs := make([]*core.EmailMessage, 0, len(students))
	for _, s := range students {
		data := struct {
			Name      string
			Title     string
			BatchName string
			Deadline  string
		}{Name: s.Name, Title: title, BatchName: b.Name}
		if !deadline.IsZero() {
			data.Deadline = deadline.Format(time.RFC1123)
		}
		msgs = append(msgs, &core.EmailMessage{
			To:           []mail.Address{{Name: s.Name, Address: s.Email}},
			Subject:      "New material: " + title,
			TemplateName: "content-published",
			TemplateData: data,
		})
	}
	svc.mailSvc.SendMessages(msgs...)
}
