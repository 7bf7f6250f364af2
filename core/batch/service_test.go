package batch_test

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/batch"
	"github.com/darasahq/darasa/core/user"
	dummydb "github.com/darasahq/darasa/storage/database/dummy"
)

type testEnv struct {
	svc     batch.Service
	usrRepo user.Repository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := dummydb.Open()
	require.NoError(t, err)
	usrRepo := dummydb.NewUserRepository(db)
	return &testEnv{
		svc:     batch.NewService(dummydb.NewBatchRepository(db), usrRepo, validator.New()),
		usrRepo: usrRepo,
	}
}

func (env *testEnv) createUser(t *testing.T, name, role, batchID string) user.User {
	t.Helper()
	active := true
	usr, err := env.usrRepo.CreateUser(context.Background(), user.User{
		Name:     name,
		Email:    name + "@test.cd",
		Role:     role,
		BatchID:  batchID,
		IsActive: &active,
	})
	require.NoError(t, err)
	return usr
}

func newBatch(name, trainerID string) batch.NewBatch {
	now := time.Now()
	return batch.NewBatch{
		Name:      name,
		TrainerID: trainerID,
		StartDate: now,
		EndDate:   now.AddDate(0, 3, 0),
	}
}

func TestService_Create(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.createUser(t, "admin", user.RoleAdmin, "")
	trainer := env.createUser(t, "trainer", user.RoleTrainer, "")
	student := env.createUser(t, "student", user.RoleStudent, "")

	t.Run("admin only", func(t *testing.T) {
		_, err := env.svc.Create(ctx, trainer, newBatch("Go 101", trainer.ID))
		assert.Equal(t, core.ErrPermissionDenied, errors.Cause(err))
	})

	t.Run("trainer must hold the trainer role", func(t *testing.T) {
		_, err := env.svc.Create(ctx, admin, newBatch("Go 101", student.ID))
		var vErr *core.ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, batch.ErrNotTrainer, vErr.Err)
	})

	t.Run("ok", func(t *testing.T) {
		b, err := env.svc.Create(ctx, admin, newBatch("Go 101", trainer.ID))
		require.NoError(t, err)
		assert.NotEmpty(t, b.ID)
		assert.Equal(t, trainer.ID, b.TrainerID)
		assert.True(t, *b.IsActive)
	})
}

func TestService_Query_scoping(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.createUser(t, "admin", user.RoleAdmin, "")
	trainer1 := env.createUser(t, "trainer1", user.RoleTrainer, "")
	trainer2 := env.createUser(t, "trainer2", user.RoleTrainer, "")

	b1, err := env.svc.Create(ctx, admin, newBatch("Go 101", trainer1.ID))
	require.NoError(t, err)
	_, err = env.svc.Create(ctx, admin, newBatch("Go 201", trainer2.ID))
	require.NoError(t, err)

	student := env.createUser(t, "student", user.RoleStudent, b1.ID)
	stray := env.createUser(t, "stray", user.RoleStudent, "")

	all, err := env.svc.Query(ctx, admin, nil, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	own, err := env.svc.Query(ctx, trainer1, nil, nil)
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, b1.ID, own[0].ID)

	mine, err := env.svc.Query(ctx, student, nil, nil)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, b1.ID, mine[0].ID)

	none, err := env.svc.Query(ctx, stray, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestService_Update_reassignTrainer(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.createUser(t, "admin", user.RoleAdmin, "")
	trainer1 := env.createUser(t, "trainer1", user.RoleTrainer, "")
	trainer2 := env.createUser(t, "trainer2", user.RoleTrainer, "")

	b, err := env.svc.Create(ctx, admin, newBatch("Go 101", trainer1.ID))
	require.NoError(t, err)

	t.Run("owning trainer may rename", func(t *testing.T) {
		got, err := env.svc.Update(ctx, trainer1, b.ID, batch.UpdateBatch{Name: "Go 102"})
		require.NoError(t, err)
		assert.Equal(t, "Go 102", got.Name)
	})

	t.Run("trainer cannot reassign", func(t *testing.T) {
		_, err := env.svc.Update(ctx, trainer1, b.ID, batch.UpdateBatch{TrainerID: trainer2.ID})
		assert.Equal(t, core.ErrPermissionDenied, errors.Cause(err))
	})

	t.Run("foreign trainer denied", func(t *testing.T) {
		_, err := env.svc.Update(ctx, trainer2, b.ID, batch.UpdateBatch{Name: "Stolen"})
		assert.Equal(t, core.ErrPermissionDenied, errors.Cause(err))
	})

	t.Run("admin reassigns", func(t *testing.T) {
		got, err := env.svc.Update(ctx, admin, b.ID, batch.UpdateBatch{TrainerID: trainer2.ID})
		require.NoError(t, err)
		assert.Equal(t, trainer2.ID, got.TrainerID)
	})
}

func TestService_Update_validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.createUser(t, "admin", user.RoleAdmin, "")
	trainer := env.createUser(t, "trainer", user.RoleTrainer, "")

	b, err := env.svc.Create(ctx, admin, newBatch("Go 101", trainer.ID))
	require.NoError(t, err)

	t.Run("blank name keeps the current one", func(t *testing.T) {
		got, err := env.svc.Update(ctx, admin, b.ID, batch.UpdateBatch{Name: "   "})
		require.NoError(t, err)
		assert.Equal(t, "Go 101", got.Name)
	})

	t.Run("malformed trainer id rejected", func(t *testing.T) {
		_, err := env.svc.Update(ctx, admin, b.ID, batch.UpdateBatch{TrainerID: "not-a-uuid"})
		var vErrs validator.ValidationErrors
		require.True(t, errors.As(err, &vErrs))
		assert.Equal(t, "TrainerID", vErrs[0].Field())
	})
}

func TestService_Delete_withEnrolledStudents(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.createUser(t, "admin", user.RoleAdmin, "")
	trainer := env.createUser(t, "trainer", user.RoleTrainer, "")

	b, err := env.svc.Create(ctx, admin, newBatch("Go 101", trainer.ID))
	require.NoError(t, err)
	student := env.createUser(t, "student", user.RoleStudent, "")
	_, err = env.svc.AddStudent(ctx, admin, b.ID, student.ID)
	require.NoError(t, err)

	err = env.svc.Delete(ctx, admin, b.ID)
	var cErr *core.ConflictError
	require.ErrorAs(t, err, &cErr)
	assert.Equal(t, batch.ErrHasStudents, cErr.Err)

	// unenroll, then the delete goes through
	require.NoError(t, env.svc.RemoveStudent(ctx, admin, b.ID, student.ID))
	require.NoError(t, env.svc.Delete(ctx, admin, b.ID))

	_, err = env.svc.Get(ctx, admin, b.ID)
	assert.Equal(t, batch.ErrNotFound, errors.Cause(err))
}

func TestService_roster(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.createUser(t, "admin", user.RoleAdmin, "")
	trainer := env.createUser(t, "trainer", user.RoleTrainer, "")

	b, err := env.svc.Create(ctx, admin, newBatch("Go 101", trainer.ID))
	require.NoError(t, err)
	student := env.createUser(t, "student", user.RoleStudent, "")

	t.Run("add requires admin", func(t *testing.T) {
		_, err := env.svc.AddStudent(ctx, trainer, b.ID, student.ID)
		assert.Equal(t, core.ErrPermissionDenied, errors.Cause(err))
	})

	t.Run("only students can enroll", func(t *testing.T) {
		_, err := env.svc.AddStudent(ctx, admin, b.ID, trainer.ID)
		var vErr *core.ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, batch.ErrNotStudent, vErr.Err)
	})

	t.Run("add and list", func(t *testing.T) {
		enrolled, err := env.svc.AddStudent(ctx, admin, b.ID, student.ID)
		require.NoError(t, err)
		assert.Equal(t, b.ID, enrolled.BatchID)

		students, err := env.svc.Students(ctx, trainer, b.ID)
		require.NoError(t, err)
		require.Len(t, students, 1)
		assert.Equal(t, student.ID, students[0].ID)
	})

	t.Run("remove clears membership", func(t *testing.T) {
		require.NoError(t, env.svc.RemoveStudent(ctx, admin, b.ID, student.ID))
		usr, err := env.usrRepo.GetUser(ctx, user.GetFilter{ID: student.ID})
		require.NoError(t, err)
		assert.Empty(t, usr.BatchID)
	})

	t.Run("remove a non-member", func(t *testing.T) {
		err := env.svc.RemoveStudent(ctx, admin, b.ID, student.ID)
		assert.Equal(t, user.ErrNotFound, errors.Cause(err))
	})
}
