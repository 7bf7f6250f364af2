package dashboard_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/batch"
	"github.com/darasahq/darasa/core/content"
	"github.com/darasahq/darasa/core/dashboard"
	"github.com/darasahq/darasa/core/submission"
	"github.com/darasahq/darasa/core/user"
	dummydb "github.com/darasahq/darasa/storage/database/dummy"
)

type testEnv struct {
	svc dashboard.Service

	usrRepo     user.Repository
	batchRepo   batch.Repository
	contentRepo content.Repository
	subRepo     submission.Repository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := dummydb.Open()
	require.NoError(t, err)

	env := &testEnv{
		usrRepo:     dummydb.NewUserRepository(db),
		batchRepo:   dummydb.NewBatchRepository(db),
		contentRepo: dummydb.NewContentRepository(db),
		subRepo:     dummydb.NewSubmissionRepository(db),
	}
	env.svc = dashboard.NewService(env.usrRepo, env.batchRepo, env.contentRepo, env.subRepo)
	return env
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

func (env *testEnv) createBatch(t *testing.T, name, trainerID string) batch.Batch {
	t.Helper()
	b, err := env.batchRepo.CreateBatch(context.Background(), batch.Batch{Name: name, TrainerID: trainerID})
	require.NoError(t, err)
	return b
}

func (env *testEnv) createAssignment(t *testing.T, batchID string) content.Assignment {
	t.Helper()
	a, err := env.contentRepo.CreateAssignment(context.Background(), content.Assignment{
		Title:    "HW",
		BatchID:  batchID,
		Deadline: time.Now().Add(24 * time.Hour).UTC(),
		MaxMarks: 100,
	})
	require.NoError(t, err)
	return a
}

func (env *testEnv) createSubmission(t *testing.T, assignmentID, studentID, status string) submission.Submission {
	t.Helper()
	s, err := env.subRepo.UpsertSubmission(context.Background(), submission.Submission{
		ID:           assignmentID + "/" + studentID,
		AssignmentID: assignmentID,
		StudentID:    studentID,
		Files:        []core.FileInfo{{FileName: "ans.pdf", FilePath: "submissions/ans.pdf"}},
		Status:       status,
		SubmittedAt:  time.Now().UTC(),
	})
	require.NoError(t, err)
	return s
}

func TestService_Get_admin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	admin := env.createUser(t, "admin", user.RoleAdmin, "")
	trainer := env.createUser(t, "trainer", user.RoleTrainer, "")
	b := env.createBatch(t, "Go 101", trainer.ID)
	env.createUser(t, "student", user.RoleStudent, b.ID)
	env.createAssignment(t, b.ID)

	d, err := env.svc.Get(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, user.RoleAdmin, d.Role)
	assert.Equal(t, 3, d.TotalUsers)
	assert.Equal(t, 1, d.TotalTrainers)
	assert.Equal(t, 1, d.TotalStudents)
	assert.Equal(t, 1, d.TotalBatches)
	assert.Equal(t, 1, d.TotalAssignments)
	assert.Zero(t, d.TotalPPTs)
}

func TestService_Get_trainer(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	trainer := env.createUser(t, "trainer", user.RoleTrainer, "")
	other := env.createUser(t, "other", user.RoleTrainer, "")
	b := env.createBatch(t, "Go 101", trainer.ID)
	env.createBatch(t, "Go 201", other.ID)

	student := env.createUser(t, "student", user.RoleStudent, b.ID)
	env.createUser(t, "student2", user.RoleStudent, b.ID)

	asg := env.createAssignment(t, b.ID)
	env.createSubmission(t, asg.ID, student.ID, submission.StatusSubmitted)

	d, err := env.svc.Get(ctx, trainer)
	require.NoError(t, err)
	assert.Equal(t, user.RoleTrainer, d.Role)
	require.Len(t, d.OwnBatches, 1)
	assert.Equal(t, b.ID, d.OwnBatches[0].ID)
	assert.Equal(t, 2, d.EnrolledStudents)
	assert.Equal(t, 1, d.TotalAssignments)
	assert.Equal(t, 1, d.UngradedSubmissions)

	// grading clears the backlog
	graded := env.createSubmission(t, asg.ID, student.ID, submission.StatusGraded)
	_, err = env.subRepo.UpdateGrade(ctx, graded)
	require.NoError(t, err)

	d, err = env.svc.Get(ctx, trainer)
	require.NoError(t, err)
	assert.Zero(t, d.UngradedSubmissions)
}

func TestService_Get_student(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	trainer := env.createUser(t, "trainer", user.RoleTrainer, "")
	b := env.createBatch(t, "Go 101", trainer.ID)
	student := env.createUser(t, "student", user.RoleStudent, b.ID)

	asg1 := env.createAssignment(t, b.ID)
	asg2 := env.createAssignment(t, b.ID)
	env.createSubmission(t, asg1.ID, student.ID, submission.StatusGraded)
	env.createSubmission(t, asg2.ID, student.ID, submission.StatusSubmitted)

	d, err := env.svc.Get(ctx, student)
	require.NoError(t, err)
	assert.Equal(t, user.RoleStudent, d.Role)
	require.NotNil(t, d.Batch)
	assert.Equal(t, b.ID, d.Batch.ID)
	assert.Equal(t, 2, d.TotalAssignments)
	assert.Len(t, d.MySubmissions, 2)
	assert.Equal(t, 1, d.GradedSubmissions)
}

func TestService_Get_unassignedStudent(t *testing.T) {
	env := newTestEnv(t)

	stray := env.createUser(t, "stray", user.RoleStudent, "")
	_, err := env.svc.Get(context.Background(), stray)
	var vErr *core.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, dashboard.ErrNoBatch, vErr.Err)
}
