package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"reflect"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	. "github.com/darasahq/darasa/apps/api/echo"
	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/audit"
	"github.com/darasahq/darasa/core/batch"
	"github.com/darasahq/darasa/core/content"
	"github.com/darasahq/darasa/core/dashboard"
	"github.com/darasahq/darasa/core/submission"
	"github.com/darasahq/darasa/core/user"
	emailsvc "github.com/darasahq/darasa/services/email"
	logsvc "github.com/darasahq/darasa/services/logger"
	dummydb "github.com/darasahq/darasa/storage/database/dummy"
	"github.com/darasahq/darasa/storage/object"
)

var (
	db  *dummydb.DB
	app Server

	usrRepo   user.Repository
	batchRepo batch.Repository

	usrSvc     user.Service
	batchSvc   batch.Service
	contentSvc content.Service
	subSvc     submission.Service
	dashSvc    dashboard.Service
	auditSvc   audit.Service

	logger     core.Logger
	validate   *validator.Validate
	translator ut.Translator

	errMissingToken = httpErr{Error: "missing or malformed jwt"}
)

func testConfig() *core.Config {
	return &core.Config{
		TestMode:         true,
		AppName:          "Darasa",
		SecretKey:        []byte("secret"),
		FrontendBaseURL:  "https://darasa.test",
		DefaultFromEmail: "noreply@darasa.test",
		Server: core.ServerConfig{
			JWTExpirationDelta:        7 * 24 * time.Hour,
			JWTRefreshExpirationDelta: 4 * time.Hour,
			PasswordResetTimeoutDelta: 3 * 24 * time.Hour,
		},
	}
}

func TestMain(m *testing.M) {
	conf := testConfig()

	rollbarLogger := logsvc.NewRollbarLogger(log.New(os.Stdout, "TEST : ", log.LstdFlags), conf)
	rollbarLogger.Enable(false)
	logger = rollbarLogger

	// set up DB & repos
	db, _ = dummydb.Open()
	usrRepo = dummydb.NewUserRepository(db)
	batchRepo = dummydb.NewBatchRepository(db)
	contentRepo := dummydb.NewContentRepository(db)
	subRepo := dummydb.NewSubmissionRepository(db)
	auditRepo := dummydb.NewAuditRepository(db)

	// set up services
	storage := object.NewDummyStorage()
	mailSvc := emailsvc.NewConsoleServiceMock(conf)

	validate = validator.New()
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ = uni.GetTranslator("en")
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	core.ParseEmailTemplates(conf, logger)
	user.InitTokenGen(conf)

	usrSvc = user.NewServiceMock(usrRepo, mailSvc, conf)
	batchSvc = batch.NewService(batchRepo, usrRepo, validate)
	contentSvc = content.NewService(contentRepo, subRepo, batchSvc, usrRepo, storage, mailSvc, logger, validate)
	subSvc = submission.NewService(subRepo, contentRepo, batchSvc, usrRepo, storage, mailSvc, logger)
	dashSvc = dashboard.NewService(usrRepo, batchRepo, contentRepo, subRepo)
	auditSvc = audit.NewService(auditRepo, logger)

	// set up server
	app = newTestServer(conf)

	os.Exit(m.Run())
}

// newTestServer builds a Server over the shared repos and services; tests that
// need different server settings spin up their own instance.
func newTestServer(conf *core.Config) Server {
	return NewServer(
		ServerDeps{
			Conf:           conf,
			Logger:         logger,
			UserSvc:        usrSvc,
			BatchSvc:       batchSvc,
			ContentSvc:     contentSvc,
			SubmissionSvc:  subSvc,
			DashboardSvc:   dashSvc,
			AuditSvc:       auditSvc,
			Validate:       validate,
			Translator:     translator,
			DisableReqLogs: true,
		},
	)
}

func resetDB(t *testing.T) {
	t.Helper()
	db.Reset()
	emailsvc.ClearSentMessages()
}

func createUser(t *testing.T, name, email, pwd, role, batchID string, isActive bool) user.User {
	t.Helper()
	usr := user.User{
		Name:     name,
		Email:    email,
		Role:     role,
		BatchID:  batchID,
		IsActive: &isActive,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("SetPassword() failed, %v", err)
		}
	}
	usr, err := usrRepo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed, %v", err)
	}
	return usr
}

func createBatch(t *testing.T, name, trainerID string) batch.Batch {
	t.Helper()
	b, err := batchRepo.CreateBatch(context.Background(), batch.Batch{
		Name:      name,
		TrainerID: trainerID,
	})
	if err != nil {
		t.Fatalf("CreateBatch() failed, %v", err)
	}
	return b
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	extra    interface{}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func getToken(t *testing.T, usr user.User) string {
	claims := GetUserClaims(usr)
	token, err := GenerateToken(claims)
	if err != nil {
		t.Fatalf("getToken(): %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj(): %v", err)
	}
	return data
}

func marchallList(t *testing.T, objs ...interface{}) []byte {
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList(): %v", err)
	}
	return data
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
