package batch

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/user"
)

var (
	// errors
	ErrNotFound    = errors.New("batch not found")
	ErrHasStudents = errors.New("batch still has enrolled students")
	ErrNotTrainer  = errors.New("assigned user is not a trainer")
	ErrNotStudent  = errors.New("assigned user is not a student")
)

type (
	Service interface {
		Create(ctx context.Context, actor user.User, nb NewBatch) (Batch, error)
		Get(ctx context.Context, actor user.User, id string) (Batch, error)
		Query(ctx context.Context, actor user.User, filter *QueryFilter, ordering []core.DBOrdering) ([]Batch, error)
		Update(ctx context.Context, actor user.User, id string, ub UpdateBatch) (Batch, error)
		Delete(ctx context.Context, actor user.User, id string) error
		Students(ctx context.Context, actor user.User, id string) ([]user.User, error)
		AddStudent(ctx context.Context, actor user.User, batchID, studentID string) (user.User, error)
		RemoveStudent(ctx context.Context, actor user.User, batchID, studentID string) error

		// CheckOwnership verifies that actor may mutate resources scoped to the
		// batch: admins always may, trainers iff they own it.
		CheckOwnership(ctx context.Context, actor user.User, batchID string) (Batch, error)
	}

	service struct {
		repo     Repository
		usrRepo  user.Repository
		validate *validator.Validate
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, usrRepo user.Repository, validate *validator.Validate) Service {
	return &service{
		repo:     repo,
		usrRepo:  usrRepo,
		validate: validate,
	}
}

func (svc *service) Create(ctx context.Context, actor user.User, nb NewBatch) (Batch, error) {
	if !actor.IsAdmin() {
		return Batch{}, core.ErrPermissionDenied
	}
	if err := svc.checkTrainer(ctx, nb.TrainerID); err != nil {
		return Batch{}, err
	}

	now := time.Now().UTC()
	active := true
	b := Batch{
		Name:      nb.Name,
		TrainerID: nb.TrainerID,
		StartDate: nb.StartDate.UTC(),
		EndDate:   nb.EndDate.UTC(),
		IsActive:  &active,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return svc.repo.CreateBatch(ctx, b)
}

func (svc *service) Get(ctx context.Context, actor user.User, id string) (Batch, error) {
	b, err := svc.repo.GetBatch(ctx, id)
	if err != nil {
		return Batch{}, err
	}
	if err = checkReadAccess(actor, b); err != nil {
		return Batch{}, err
	}
	return b, nil
}

func (svc *service) Query(ctx context.Context, actor user.User, filter *QueryFilter, ordering []core.DBOrdering) ([]Batch, error) {
	if filter == nil {
		filter = new(QueryFilter)
	}
	switch {
	case actor.IsAdmin():
		// unscoped
	case actor.IsTrainer():
		filter.TrainerID = actor.ID
	default: // student: own batch only
		if actor.BatchID == "" {
			return []Batch{}, nil
		}
		b, err := svc.repo.GetBatch(ctx, actor.BatchID)
		if err != nil {
			if errors.Cause(err) == ErrNotFound {
				return []Batch{}, nil
			}
			return nil, err
		}
		return []Batch{b}, nil
	}
	return svc.repo.QueryBatches(ctx, filter, ordering)
}

func (svc *service) Update(ctx context.Context, actor user.User, id string, ub UpdateBatch) (Batch, error) {
	b, err := svc.CheckOwnership(ctx, actor, id)
	if err != nil {
		return Batch{}, err
	}
	if err = ub.Validate(b, svc.validate); err != nil {
		return Batch{}, err
	}

	if ub.TrainerID != "" && ub.TrainerID != b.TrainerID {
		// reassigning the owning trainer is admin-only
		if !actor.IsAdmin() {
			return Batch{}, core.ErrPermissionDenied
		}
		if err = svc.checkTrainer(ctx, ub.TrainerID); err != nil {
			return Batch{}, err
		}
	}

	return svc.repo.UpdateBatch(ctx, Batch{
		ID:        id,
		Name:      ub.Name,
		TrainerID: ub.TrainerID,
		StartDate: ub.StartDate.UTC(),
		EndDate:   ub.EndDate.UTC(),
		UpdatedAt: time.Now().UTC(),
	}, ub.IsActive)
}

func (svc *service) Delete(ctx context.Context, actor user.User, id string) error {
	if _, err := svc.CheckOwnership(ctx, actor, id); err != nil {
		return err
	}

	// hard precondition, not a cascade: a batch with enrolled students cannot go
	cnt, err := svc.usrRepo.CountUsers(ctx, &user.QueryFilter{BatchID: id})
	if err != nil {
		return errors.Wrap(err, "counting enrolled students")
	}
	if cnt > 0 {
		return core.NewConflictError(ErrHasStudents)
	}
	return svc.repo.DeleteBatch(ctx, id)
}

func (svc *service) Students(ctx context.Context, actor user.User, id string) ([]user.User, error) {
	if _, err := svc.CheckOwnership(ctx, actor, id); err != nil {
		return nil, err
	}
	return svc.usrRepo.QueryUsers(ctx, &user.QueryFilter{BatchID: id}, nil)
}

func (svc *service) AddStudent(ctx context.Context, actor user.User, batchID, studentID string) (user.User, error) {
	if !actor.IsAdmin() {
		return user.User{}, core.ErrPermissionDenied
	}
	if _, err := svc.repo.GetBatch(ctx, batchID); err != nil {
		return user.User{}, err
	}

	student, err := svc.usrRepo.GetUser(ctx, user.GetFilter{ID: studentID})
	if err != nil {
		return user.User{}, err
	}
	if !student.IsStudent() {
		return user.User{}, core.NewValidationError(ErrNotStudent,
			core.FieldError{Field: "student_id", Error: ErrNotStudent.Error()})
	}
	return svc.usrRepo.UpdateUser(ctx, user.User{ID: studentID, UpdatedAt: time.Now().UTC()}, nil, &batchID)
}

func (svc *service) RemoveStudent(ctx context.Context, actor user.User, batchID, studentID string) error {
	if !actor.IsAdmin() {
		return core.ErrPermissionDenied
	}

	student, err := svc.usrRepo.GetUser(ctx, user.GetFilter{ID: studentID})
	if err != nil {
		return err
	}
	if student.BatchID != batchID {
		return user.ErrNotFound
	}
	unassigned := ""
	_, err = svc.usrRepo.UpdateUser(ctx, user.User{ID: studentID, UpdatedAt: time.Now().UTC()}, nil, &unassigned)
	return err
}

func (svc *service) CheckOwnership(ctx context.Context, actor user.User, batchID string) (Batch, error) {
	b, err := svc.repo.GetBatch(ctx, batchID)
	if err != nil {
		return Batch{}, err
	}
	if actor.IsAdmin() {
		return b, nil
	}
	if actor.IsTrainer() && b.TrainerID == actor.ID {
		return b, nil
	}
	return Batch{}, core.ErrPermissionDenied
}

func (svc *service) checkTrainer(ctx context.Context, trainerID string) error {
	trainer, err := svc.usrRepo.GetUser(ctx, user.GetFilter{ID: trainerID})
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return core.NewValidationError(err, core.FieldError{Field: "trainer_id", Error: err.Error()})
		}
		return err
	}
	if !trainer.IsTrainer() {
		return core.NewValidationError(ErrNotTrainer,
			core.FieldError{Field: "trainer_id", Error: ErrNotTrainer.Error()})
	}
	return nil
}

// checkReadAccess applies the read-side scoping rules:
// admin always; trainer iff owner; student iff member.
func checkReadAccess(actor user.User, b Batch) error {
	switch {
	case actor.IsAdmin():
		return nil
	case actor.IsTrainer() && b.TrainerID == actor.ID:
		return nil
	case actor.IsStudent() && actor.BatchID == b.ID:
		return nil
	}
	return core.ErrPermissionDenied
}
