package content_test

import (
	"context"
	"log"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/batch"
	"github.com/darasahq/darasa/core/content"
	"github.com/darasahq/darasa/core/submission"
	"github.com/darasahq/darasa/core/user"
	emailsvc "github.com/darasahq/darasa/services/email"
	logsvc "github.com/darasahq/darasa/services/logger"
	dummydb "github.com/darasahq/darasa/storage/database/dummy"
	"github.com/darasahq/darasa/storage/object"
)

type testEnv struct {
	svc     content.Service
	subRepo submission.Repository
	usrRepo user.Repository
	storage *object.DummyStorage

	admin   user.User
	trainer user.User
	other   user.User
	student user.User
	batch   batch.Batch
}

func testConf() *core.Config {
	return &core.Config{
		TestMode:         true,
		AppName:          "Darasa",
		FrontendBaseURL:  "https://darasa.test",
		DefaultFromEmail: "noreply@darasa.test",
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	conf := testConf()
	db, err := dummydb.Open()
	require.NoError(t, err)

	usrRepo := dummydb.NewUserRepository(db)
	batchRepo := dummydb.NewBatchRepository(db)
	contentRepo := dummydb.NewContentRepository(db)
	subRepo := dummydb.NewSubmissionRepository(db)

	logger := logsvc.NewRollbarLogger(log.New(os.Stdout, "TEST : ", log.LstdFlags), conf)
	logger.Enable(false)
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	storage := object.NewDummyStorage()

	validate := validator.New()
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	core.InitValidators(validate, translator)
	core.ParseEmailTemplates(conf, logger)

	batchSvc := batch.NewService(batchRepo, usrRepo, validate)
	env := &testEnv{
		svc:     content.NewService(contentRepo, subRepo, batchSvc, usrRepo, storage, mailSvc, logger, validate),
		subRepo: subRepo,
		usrRepo: usrRepo,
		storage: storage,
	}

	ctx := context.Background()
	env.admin = env.createUser(t, "admin", user.RoleAdmin, "")
	env.trainer = env.createUser(t, "trainer", user.RoleTrainer, "")
	env.other = env.createUser(t, "other", user.RoleTrainer, "")

	now := time.Now()
	env.batch, err = batchSvc.Create(ctx, env.admin, batch.NewBatch{
		Name:      "Go 101",
		TrainerID: env.trainer.ID,
		StartDate: now,
		EndDate:   now.AddDate(0, 3, 0),
	})
	require.NoError(t, err)
	env.student = env.createUser(t, "student", user.RoleStudent, env.batch.ID)

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

func upload(name, body string) core.Upload {
	return core.Upload{
		Name:        name,
		ContentType: "application/octet-stream",
		Size:        int64(len(body)),
		Body:        strings.NewReader(body),
	}
}

func TestService_CreatePPT(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	np := content.NewPPT{Title: "Intro", BatchID: env.batch.ID}

	t.Run("file required", func(t *testing.T) {
		_, err := env.svc.CreatePPT(ctx, env.trainer, np, core.Upload{})
		var vErr *core.ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, content.ErrFileMissing, vErr.Err)
	})

	t.Run("foreign trainer denied", func(t *testing.T) {
		_, err := env.svc.CreatePPT(ctx, env.other, np, upload("intro.pptx", "deck"))
		assert.Equal(t, core.ErrPermissionDenied, errors.Cause(err))
	})

	t.Run("ok", func(t *testing.T) {
		p, err := env.svc.CreatePPT(ctx, env.trainer, np, upload("intro.pptx", "deck"))
		require.NoError(t, err)
		assert.NotEmpty(t, p.ID)
		assert.Equal(t, env.trainer.ID, p.UploadedByID)
		assert.Equal(t, "intro.pptx", p.File.FileName)
		assert.True(t, env.storage.Exists(p.File.FilePath))
	})
}

func TestService_UpdatePPT_keepsFileWithoutUpload(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	p, err := env.svc.CreatePPT(ctx, env.trainer,
		content.NewPPT{Title: "Intro", BatchID: env.batch.ID}, upload("intro.pptx", "deck"))
	require.NoError(t, err)

	got, err := env.svc.UpdatePPT(ctx, env.trainer, p.ID, content.UpdatePPT{Title: "Intro v2"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Intro v2", got.Title)
	assert.Equal(t, p.File, got.File) // descriptor untouched
	assert.True(t, env.storage.Exists(p.File.FilePath))

	got, err = env.svc.UpdatePPT(ctx, env.trainer, p.ID, content.UpdatePPT{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Intro v2", got.Title) // empty update keeps fields
}

func TestService_UpdatePPT_replacesFile(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	p, err := env.svc.CreatePPT(ctx, env.trainer,
		content.NewPPT{Title: "Intro", BatchID: env.batch.ID}, upload("intro.pptx", "deck"))
	require.NoError(t, err)

	up := upload("intro-v2.pptx", "deck v2")
	got, err := env.svc.UpdatePPT(ctx, env.trainer, p.ID, content.UpdatePPT{Title: "Intro"}, &up)
	require.NoError(t, err)
	assert.Equal(t, "intro-v2.pptx", got.File.FileName)
	assert.False(t, env.storage.Exists(p.File.FilePath))
	assert.True(t, env.storage.Exists(got.File.FilePath))
}

func TestService_queryScoping(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.CreatePPT(ctx, env.trainer,
		content.NewPPT{Title: "Intro", BatchID: env.batch.ID}, upload("intro.pptx", "deck"))
	require.NoError(t, err)

	all, err := env.svc.QueryPPTs(ctx, env.admin, nil, nil)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	own, err := env.svc.QueryPPTs(ctx, env.trainer, nil, nil)
	require.NoError(t, err)
	assert.Len(t, own, 1)

	foreign, err := env.svc.QueryPPTs(ctx, env.other, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, foreign)

	mine, err := env.svc.QueryPPTs(ctx, env.student, nil, nil)
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	stray := env.createUser(t, "stray", user.RoleStudent, "")
	none, err := env.svc.QueryPPTs(ctx, stray, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestService_DeleteAssignment_cascades(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a, err := env.svc.CreateAssignment(ctx, env.trainer, content.NewAssignment{
		Title:    "HW1",
		BatchID:  env.batch.ID,
		Deadline: time.Now().Add(24 * time.Hour),
		MaxMarks: 100,
	}, upload("hw1.pdf", "homework"))
	require.NoError(t, err)

	sub, err := env.subRepo.UpsertSubmission(ctx, submission.Submission{
		ID:           "s1",
		AssignmentID: a.ID,
		StudentID:    env.student.ID,
		Files:        []core.FileInfo{mustUpload(t, env.storage, "submissions/ans.pdf", "answers")},
		Status:       submission.StatusSubmitted,
		SubmittedAt:  time.Now().UTC(),
	})
	require.NoError(t, err)

	require.NoError(t, env.svc.DeleteAssignment(ctx, env.trainer, a.ID))

	_, err = env.svc.GetAssignment(ctx, env.admin, a.ID)
	assert.Equal(t, content.ErrNotFound, errors.Cause(err))
	_, err = env.subRepo.GetSubmission(ctx, sub.ID)
	assert.Equal(t, submission.ErrNotFound, errors.Cause(err))
	assert.False(t, env.storage.Exists(a.File.FilePath))
	assert.Equal(t, 0, env.storage.Len())
}

func mustUpload(t *testing.T, storage *object.DummyStorage, path, body string) core.FileInfo {
	t.Helper()
	info, err := storage.Upload(context.Background(), user.RoleTrainer, path, upload(path, body))
	require.NoError(t, err)
	return info
}
