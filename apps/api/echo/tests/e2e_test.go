package tests

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/darasahq/darasa/core/batch"
	"github.com/darasahq/darasa/core/content"
	"github.com/darasahq/darasa/core/dashboard"
	"github.com/darasahq/darasa/core/submission"
	"github.com/darasahq/darasa/core/user"
)

type filePart struct {
	field   string
	name    string
	content string
}

func newMultipartRequest(
	t *testing.T,
	method, path, token string,
	fields map[string]string,
	files ...filePart,
) (*http.Request, *httptest.ResponseRecorder) {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for field, value := range fields {
		if err := w.WriteField(field, value); err != nil {
			t.Fatalf("WriteField(%s) failed, %v", field, err)
		}
	}
	for _, f := range files {
		fw, err := w.CreateFormFile(f.field, f.name)
		if err != nil {
			t.Fatalf("CreateFormFile(%s) failed, %v", f.field, err)
		}
		if _, err = fw.Write([]byte(f.content)); err != nil {
			t.Fatalf("writing file part %s failed, %v", f.name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("closing multipart writer failed, %v", err)
	}

	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func doJSON(t *testing.T, method, path, token string, body []byte, wantCode int, out interface{}) {
	t.Helper()
	req, rec := newAuthRequest(method, path, token, body)
	app.ServeHTTP(rec, req)
	if rec.Code != wantCode {
		t.Fatalf("%s %s failed! code = %v; wantCode %v (body %s)", method, path, rec.Code, wantCode, rec.Body.String())
	}
	if out != nil {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("%s %s: json.Unmarshal() failed! err %v", method, path, err)
		}
	}
}

// Test_courseLifecycle walks the happy path end to end: an admin provisions a
// trainer, a student and a batch; the trainer publishes a ppt and an
// assignment; the student submits; the trainer grades; both check their
// dashboards.
func Test_courseLifecycle(t *testing.T) {
	resetDB(t)

	admin := createUser(t, "Admin", "admin@test.cd", "", user.RoleAdmin, "", true)
	adminToken := getToken(t, admin)

	// admin provisions the accounts
	var trainer user.User
	doJSON(t, http.MethodPost, "/v1/users", adminToken, marchallObj(t, user.NewUser{
		Name:            "Trainer",
		Email:           "trainer@test.cd",
		Password:        "MyP@ssw0rd!",
		PasswordConfirm: "MyP@ssw0rd!",
		Role:            user.RoleTrainer,
	}), http.StatusCreated, &trainer)

	var student user.User
	doJSON(t, http.MethodPost, "/v1/users", adminToken, marchallObj(t, user.NewUser{
		Name:            "Hero",
		Email:           "hero@test.cd",
		Password:        "MyP@ssw0rd!",
		PasswordConfirm: "MyP@ssw0rd!",
		Role:            user.RoleStudent,
	}), http.StatusCreated, &student)

	trainerToken := getToken(t, trainer)

	// admin opens a batch and enrolls the student
	var b batch.Batch
	doJSON(t, http.MethodPost, "/v1/batches", adminToken, marchallObj(t, batch.NewBatch{
		Name:      "Cohort 1",
		TrainerID: trainer.ID,
		StartDate: time.Now(),
		EndDate:   time.Now().AddDate(0, 3, 0),
	}), http.StatusCreated, &b)

	doJSON(t, http.MethodPost, "/v1/batches/"+b.ID+"/students", adminToken,
		marchallObj(t, batch.AddStudent{StudentID: student.ID}), http.StatusOK, nil)

	// enrollment lands on the user record, refresh the token
	doJSON(t, http.MethodGet, "/v1/users/"+student.ID, adminToken, nil, http.StatusOK, &student)
	if student.BatchID != b.ID {
		t.Fatalf("enrollment failed! batchID = %s; want %s", student.BatchID, b.ID)
	}
	studentToken := getToken(t, student)

	t.Run("batch with enrolled students cannot be deleted", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/v1/batches/"+b.ID, adminToken)
		app.ServeHTTP(rec, req)
		tt := httpTest{wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "batch still has enrolled students"})}
		checkCodeAndData(t, tt, rec)
	})

	// trainer publishes course material
	t.Run("trainer publishes ppt", func(t *testing.T) {
		req, rec := newMultipartRequest(t, http.MethodPost, "/v1/ppts", trainerToken,
			map[string]string{"title": "Intro", "batch_id": b.ID},
			filePart{field: "file", name: "intro.pptx", content: "slides"},
		)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("failed! code = %v (body %s)", rec.Code, rec.Body.String())
		}
		var p content.PPT
		if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
			t.Fatalf("json.Unmarshal() failed! err %v", err)
		}
		if p.UploadedByID != trainer.ID {
			t.Errorf("failed! uploadedByID = %s; want %s", p.UploadedByID, trainer.ID)
		}
		if p.File.FileName != "intro.pptx" {
			t.Errorf("failed! fileName = %s", p.File.FileName)
		}
	})

	t.Run("foreign trainer cannot publish to the batch", func(t *testing.T) {
		stranger := createUser(t, "Stranger", "stranger@test.cd", "", user.RoleTrainer, "", true)
		req, rec := newMultipartRequest(t, http.MethodPost, "/v1/ppts", getToken(t, stranger),
			map[string]string{"title": "Hijack", "batch_id": b.ID},
			filePart{field: "file", name: "evil.pptx", content: "slides"},
		)
		app.ServeHTTP(rec, req)
		tt := httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"})}
		checkCodeAndData(t, tt, rec)
	})

	var asg content.Assignment
	t.Run("trainer publishes assignment", func(t *testing.T) {
		req, rec := newMultipartRequest(t, http.MethodPost, "/v1/assignments", trainerToken,
			map[string]string{
				"title":              "Week 1 exercises",
				"batch_id":           b.ID,
				"deadline":           time.Now().Add(72 * time.Hour).Format(time.RFC3339),
				"allow_resubmission": "true",
				"max_marks":          "100",
			},
			filePart{field: "file", name: "exercises.pdf", content: "questions"},
		)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("failed! code = %v (body %s)", rec.Code, rec.Body.String())
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &asg); err != nil {
			t.Fatalf("json.Unmarshal() failed! err %v", err)
		}
		if asg.MaxMarks != 100 || !asg.AllowResubmission {
			t.Errorf("failed! maxMarks = %d, allowResubmission = %v", asg.MaxMarks, asg.AllowResubmission)
		}
	})

	t.Run("student sees the assignment", func(t *testing.T) {
		var asgs []content.Assignment
		doJSON(t, http.MethodGet, "/v1/assignments", studentToken, nil, http.StatusOK, &asgs)
		if len(asgs) != 1 || asgs[0].ID != asg.ID {
			t.Fatalf("failed! asgs = %+v", asgs)
		}
	})

	var sub submission.Submission
	t.Run("student submits", func(t *testing.T) {
		req, rec := newMultipartRequest(t, http.MethodPost, "/v1/assignments/"+asg.ID+"/submit", studentToken, nil,
			filePart{field: "files", name: "answers.pdf", content: "answers"},
			filePart{field: "files", name: "notes.txt", content: "notes"},
		)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("failed! code = %v (body %s)", rec.Code, rec.Body.String())
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &sub); err != nil {
			t.Fatalf("json.Unmarshal() failed! err %v", err)
		}
		if sub.Status != submission.StatusSubmitted {
			t.Errorf("failed! status = %s; want %s", sub.Status, submission.StatusSubmitted)
		}
		if len(sub.Files) != 2 {
			t.Errorf("failed! files = %d; want 2", len(sub.Files))
		}
	})

	t.Run("trainer reviews and grades", func(t *testing.T) {
		var subs []submission.Submission
		doJSON(t, http.MethodGet, "/v1/assignments/"+asg.ID+"/submissions", trainerToken, nil, http.StatusOK, &subs)
		if len(subs) != 1 {
			t.Fatalf("failed! subs = %d; want 1", len(subs))
		}

		req, rec := newMultipartRequest(t, http.MethodPut, "/v1/submissions/"+sub.ID+"/grade", trainerToken,
			map[string]string{"marks": "80", "feedback": "Good work"},
			filePart{field: "feedback_image", name: "annotated.png", content: "png"},
		)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v (body %s)", rec.Code, rec.Body.String())
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &sub); err != nil {
			t.Fatalf("json.Unmarshal() failed! err %v", err)
		}
		if sub.Status != submission.StatusGraded {
			t.Errorf("failed! status = %s; want %s", sub.Status, submission.StatusGraded)
		}
		if sub.Marks == nil || *sub.Marks != 80 {
			t.Errorf("failed! marks = %v; want 80", sub.Marks)
		}
		if sub.GradedByID != trainer.ID {
			t.Errorf("failed! gradedByID = %s; want %s", sub.GradedByID, trainer.ID)
		}
		if sub.FeedbackImage == nil {
			t.Error("failed! missing feedback image")
		}
	})

	t.Run("student cannot grade", func(t *testing.T) {
		req, rec := newMultipartRequest(t, http.MethodPut, "/v1/submissions/"+sub.ID+"/grade", studentToken,
			map[string]string{"marks": "100"},
		)
		app.ServeHTTP(rec, req)
		tt := httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "requires one of roles: admin, trainer"})}
		checkCodeAndData(t, tt, rec)
	})

	t.Run("student dashboard", func(t *testing.T) {
		var dash dashboard.Dashboard
		doJSON(t, http.MethodGet, "/v1/dashboard", studentToken, nil, http.StatusOK, &dash)
		if dash.Role != user.RoleStudent {
			t.Errorf("failed! role = %s", dash.Role)
		}
		if dash.Batch == nil || dash.Batch.ID != b.ID {
			t.Errorf("failed! batch = %+v", dash.Batch)
		}
		if dash.TotalAssignments != 1 || len(dash.MySubmissions) != 1 || dash.GradedSubmissions != 1 {
			t.Errorf("failed! dash = %+v", dash)
		}
	})

	t.Run("trainer dashboard", func(t *testing.T) {
		var dash dashboard.Dashboard
		doJSON(t, http.MethodGet, "/v1/dashboard", trainerToken, nil, http.StatusOK, &dash)
		if dash.Role != user.RoleTrainer {
			t.Errorf("failed! role = %s", dash.Role)
		}
		if len(dash.OwnBatches) != 1 || dash.EnrolledStudents != 1 {
			t.Errorf("failed! dash = %+v", dash)
		}
		if dash.UngradedSubmissions != 0 {
			t.Errorf("failed! ungraded = %d; want 0", dash.UngradedSubmissions)
		}
	})
}
