// Package dashboard serves role-scoped read-only aggregates.
package dashboard

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/batch"
	"github.com/darasahq/darasa/core/content"
	"github.com/darasahq/darasa/core/submission"
	"github.com/darasahq/darasa/core/user"
)

var ErrNoBatch = errors.New("student is not assigned to a batch")

// Dashboard carries the aggregates relevant to the requesting role;
// unrelated fields stay nil/zero and are omitted from the response.
type Dashboard struct {
	Role string `json:"role"`

	// admin
	TotalUsers    int `json:"total_users,omitempty"`
	TotalBatches  int `json:"total_batches,omitempty"`
	TotalTrainers int `json:"total_trainers,omitempty"`
	TotalStudents int `json:"total_students,omitempty"`

	// admin & trainer
	TotalPPTs        int `json:"total_ppts,omitempty"`
	TotalAssignments int `json:"total_assignments,omitempty"`

	// trainer
	OwnBatches          []batch.Batch `json:"own_batches,omitempty"`
	EnrolledStudents    int           `json:"enrolled_students,omitempty"`
	UngradedSubmissions int           `json:"ungraded_submissions,omitempty"`

	// student
	Batch             *batch.Batch            `json:"batch,omitempty"`
	MySubmissions     []submission.Submission `json:"my_submissions,omitempty"`
	GradedSubmissions int                     `json:"graded_submissions,omitempty"`
}

type (
	Service interface {
		Get(ctx context.Context, actor user.User) (Dashboard, error)
	}

	service struct {
		usrRepo     user.Repository
		batchRepo   batch.Repository
		contentRepo content.Repository
		subRepo     submission.Repository
	}
)

var _ Service = (*service)(nil)

func NewService(
	usrRepo user.Repository,
	batchRepo batch.Repository,
	contentRepo content.Repository,
	subRepo submission.Repository,
) Service {
	return &service{
		usrRepo:     usrRepo,
		batchRepo:   batchRepo,
		contentRepo: contentRepo,
		subRepo:     subRepo,
	}
}

func (svc *service) Get(ctx context.Context, actor user.User) (Dashboard, error) {
	switch {
	case actor.IsAdmin():
		return svc.adminDashboard(ctx)
	case actor.IsTrainer():
		return svc.trainerDashboard(ctx, actor)
	default:
		return svc.studentDashboard(ctx, actor)
	}
}

// gather runs the given queries in parallel and returns the first error.
func gather(queries ...func() error) error {
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	for _, q := range queries {
		q := q
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := q(); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return firstErr
}

func (svc *service) adminDashboard(ctx context.Context) (Dashboard, error) {
	d := Dashboard{Role: user.RoleAdmin}
	err := gather(
		func() (err error) { d.TotalUsers, err = svc.usrRepo.CountUsers(ctx, nil); return },
		func() (err error) {
			d.TotalTrainers, err = svc.usrRepo.CountUsers(ctx, &user.QueryFilter{Role: user.RoleTrainer})
			return
		},
		func() (err error) {
			d.TotalStudents, err = svc.usrRepo.CountUsers(ctx, &user.QueryFilter{Role: user.RoleStudent})
			return
		},
		func() (err error) { d.TotalBatches, err = svc.batchRepo.CountBatches(ctx, nil); return },
		func() (err error) { d.TotalPPTs, err = svc.contentRepo.CountPPTs(ctx, nil); return },
		func() (err error) { d.TotalAssignments, err = svc.contentRepo.CountAssignments(ctx, nil); return },
	)
	if err != nil {
		return Dashboard{}, errors.Wrap(err, "building admin dashboard")
	}
	return d, nil
}

func (svc *service) trainerDashboard(ctx context.Context, actor user.User) (Dashboard, error) {
	d := Dashboard{Role: user.RoleTrainer}
	err := gather(
		func() (err error) {
			d.OwnBatches, err = svc.batchRepo.QueryBatches(ctx, &batch.QueryFilter{TrainerID: actor.ID}, nil)
			return
		},
		func() (err error) {
			d.TotalPPTs, err = svc.contentRepo.CountPPTs(ctx, &content.QueryFilter{TrainerID: actor.ID})
			return
		},
		func() (err error) {
			d.TotalAssignments, err = svc.contentRepo.CountAssignments(ctx, &content.QueryFilter{TrainerID: actor.ID})
			return
		},
		func() (err error) {
			d.UngradedSubmissions, err = svc.subRepo.CountUngradedForTrainer(ctx, actor.ID)
			return
		},
	)
	if err != nil {
		return Dashboard{}, errors.Wrap(err, "building trainer dashboard")
	}
	for _, b := range d.OwnBatches {
		cnt, err := svc.usrRepo.CountUsers(ctx, &user.QueryFilter{BatchID: b.ID})
		if err != nil {
			return Dashboard{}, errors.Wrap(err, "counting enrolled students")
		}
		d.EnrolledStudents += cnt
	}
	if d.OwnBatches == nil {
		d.OwnBatches = []batch.Batch{}
	}
	return d, nil
}

func (svc *service) studentDashboard(ctx context.Context, actor user.User) (Dashboard, error) {
	// an unassigned student gets an explicit error, never partial aggregates
	if actor.BatchID == "" {
		return Dashboard{}, core.NewValidationError(ErrNoBatch)
	}

	d := Dashboard{Role: user.RoleStudent}
	err := gather(
		func() error {
			b, err := svc.batchRepo.GetBatch(ctx, actor.BatchID)
			if err != nil {
				return err
			}
			d.Batch = &b
			return nil
		},
		func() (err error) {
			d.TotalAssignments, err = svc.contentRepo.CountAssignments(ctx, &content.QueryFilter{BatchID: actor.BatchID})
			return
		},
		func() (err error) {
			d.TotalPPTs, err = svc.contentRepo.CountPPTs(ctx, &content.QueryFilter{BatchID: actor.BatchID})
			return
		},
		func() (err error) { d.MySubmissions, err = svc.subRepo.QueryByStudent(ctx, actor.ID); return },
	)
	if err != nil {
		return Dashboard{}, errors.Wrap(err, "building student dashboard")
	}
	for _, s := range d.MySubmissions {
		if s.IsGraded() {
			d.GradedSubmissions++
		}
	}
	if d.MySubmissions == nil {
		d.MySubmissions = []submission.Submission{}
	}
	return d, nil
}
