package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/audit"
	"github.com/darasahq/darasa/core/submission"
	"github.com/darasahq/darasa/core/user"
)

type submissionApi struct {
	svc      submission.Service
	usrSvc   user.Service
	auditSvc audit.Service
	validate *validator.Validate
}

func registerSubmissionAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc submission.Service,
	usrSvc user.Service,
	auditSvc audit.Service,
	validate *validator.Validate,
) {
	api := submissionApi{
		svc:      svc,
		usrSvc:   usrSvc,
		auditSvc: auditSvc,
		validate: validate,
	}

	ag := g.Group("/assignments/:id", jwt)
	ag.POST("/submit", api.submit, roleMiddleware(user.RoleStudent))
	ag.GET("/submissions", api.queryByAssignment)

	sg := g.Group("/submissions", jwt)
	sg.GET("", api.queryOwn, roleMiddleware(user.RoleStudent))
	sg.GET("/:id", api.retrieve)
	sg.PUT("/:id/grade", api.grade, roleMiddleware(user.RoleTrainer))
}

func (api *submissionApi) submit(ctx echo.Context) error {
	form, err := ctx.MultipartForm()
	if err != nil {
		return core.NewValidationError(
			submission.ErrNoFiles, core.FieldError{Field: "files", Error: submission.ErrNoFiles.Error()})
	}

	var uploads []core.Upload
	var closers []func()
	defer func() {
		for _, closeFn := range closers {
			closeFn()
		}
	}()
	for _, fh := range form.File["files"] {
		up, closer, err := formUpload(fh)
		if err != nil {
			return err
		}
		closers = append(closers, closer)
		uploads = append(uploads, up)
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	sub, err := api.svc.Submit(ctx.Request().Context(), ctxUsr, ctx.Param("id"), uploads)
	if err != nil {
		return errors.Wrap(err, "submitting assignment")
	}

	api.auditSvc.Log(newAuditEntry(ctx, ctxUsr.ID, audit.ActionSubmit, "submission", sub.ID))
	return ctx.JSON(http.StatusCreated, sub)
}

func (api *submissionApi) queryByAssignment(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	subs, err := api.svc.QueryByAssignment(ctx.Request().Context(), ctxUsr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying submissions")
	}
	if subs == nil {
		subs = []submission.Submission{}
	}
	return ctx.JSON(http.StatusOK, subs)
}

func (api *submissionApi) queryOwn(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	subs, err := api.svc.QueryOwn(ctx.Request().Context(), ctxUsr)
	if err != nil {
		return errors.Wrap(err, "querying own submissions")
	}
	if subs == nil {
		subs = []submission.Submission{}
	}
	return ctx.JSON(http.StatusOK, subs)
}

func (api *submissionApi) retrieve(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	sub, err := api.svc.Get(ctx.Request().Context(), ctxUsr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting submission")
	}
	return ctx.JSON(http.StatusOK, sub)
}

func (api *submissionApi) grade(ctx echo.Context) error {
	var data submission.GradeSubmission
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to GradeSubmission")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	feedbackImg, closer, err := optionalFeedbackImage(ctx)
	if err != nil {
		return err
	}
	defer closer()

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	sub, err := api.svc.Grade(ctx.Request().Context(), ctxUsr, ctx.Param("id"), data, feedbackImg)
	if err != nil {
		return errors.Wrap(err, "grading submission")
	}

	api.auditSvc.Log(newAuditEntry(ctx, ctxUsr.ID, audit.ActionGrade, "submission", sub.ID))
	return ctx.JSON(http.StatusOK, sub)
}

func optionalFeedbackImage(ctx echo.Context) (*core.Upload, func(), error) {
	fh, err := ctx.FormFile("feedback_image")
	if err != nil {
		return nil, func() {}, nil
	}
	up, closer, err := formUpload(fh)
	if err != nil {
		return nil, nil, err
	}
	return &up, closer, nil
}
