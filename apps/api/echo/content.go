package echoapi

import (
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/audit"
	"github.com/darasahq/darasa/core/content"
	"github.com/darasahq/darasa/core/user"
)

type contentApi struct {
	svc      content.Service
	usrSvc   user.Service
	auditSvc audit.Service
	validate *validator.Validate
}

func registerContentAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc content.Service,
	usrSvc user.Service,
	auditSvc audit.Service,
	validate *validator.Validate,
) {
	api := contentApi{
		svc:      svc,
		usrSvc:   usrSvc,
		auditSvc: auditSvc,
		validate: validate,
	}

	pg := g.Group("/ppts", jwt)
	pg.POST("", api.createPPT, roleMiddleware(user.RoleTrainer))
	pg.GET("", api.queryPPTs)
	pdg := pg.Group("/:id")
	pdg.GET("", api.retrievePPT)
	pdg.PUT("", api.updatePPT, roleMiddleware(user.RoleTrainer))
	pdg.DELETE("", api.destroyPPT, roleMiddleware(user.RoleTrainer))

	ag := g.Group("/assignments", jwt)
	ag.POST("", api.createAssignment, roleMiddleware(user.RoleTrainer))
	ag.GET("", api.queryAssignments)
	adg := ag.Group("/:id")
	adg.GET("", api.retrieveAssignment)
	adg.PUT("", api.updateAssignment, roleMiddleware(user.RoleTrainer))
	adg.DELETE("", api.destroyAssignment, roleMiddleware(user.RoleTrainer))
}

// formUpload converts a multipart file header to a core.Upload.
// The returned closer must be called once the upload has been consumed.
func formUpload(fh *multipart.FileHeader) (core.Upload, func(), error) {
	f, err := fh.Open()
	if err != nil {
		return core.Upload{}, nil, errors.Wrap(err, "opening uploaded file")
	}
	up := core.Upload{
		Name:        fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Body:        f,
	}
	return up, func() { _ = f.Close() }, nil
}

// requiredFormFile fetches the "file" part or returns a field validation error.
func requiredFormFile(ctx echo.Context) (core.Upload, func(), error) {
	fh, err := ctx.FormFile("file")
	if err != nil {
		return core.Upload{}, nil, core.NewValidationError(
			content.ErrFileMissing, core.FieldError{Field: "file", Error: content.ErrFileMissing.Error()})
	}
	return formUpload(fh)
}

// optionalFormFile fetches the "file" part if present.
func optionalFormFile(ctx echo.Context) (*core.Upload, func(), error) {
	fh, err := ctx.FormFile("file")
	if err != nil {
		return nil, func() {}, nil
	}
	up, closer, err := formUpload(fh)
	if err != nil {
		return nil, nil, err
	}
	return &up, closer, nil
}

// PPTs

func (api *contentApi) createPPT(ctx echo.Context) error {
	var data content.NewPPT
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPPT")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	up, closer, err := requiredFormFile(ctx)
	if err != nil {
		return err
	}
	defer closer()

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	p, err := api.svc.CreatePPT(ctx.Request().Context(), ctxUsr, data, up)
	if err != nil {
		return errors.Wrap(err, "creating ppt")
	}

	api.auditSvc.Log(newAuditEntry(ctx, ctxUsr.ID, audit.ActionCreate, "ppt", p.ID))
	return ctx.JSON(http.StatusCreated, p)
}

func (api *contentApi) queryPPTs(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	filter := new(content.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []content.PPT{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	ppts, err := api.svc.QueryPPTs(ctx.Request().Context(), ctxUsr, filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying ppts")
	}
	if ppts == nil {
		ppts = []content.PPT{}
	}
	return ctx.JSON(http.StatusOK, ppts)
}

func (api *contentApi) retrievePPT(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	p, err := api.svc.GetPPT(ctx.Request().Context(), ctxUsr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting ppt")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *contentApi) updatePPT(ctx echo.Context) error {
	var data content.UpdatePPT
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdatePPT")
	}

	up, closer, err := optionalFormFile(ctx)
	if err != nil {
		return err
	}
	defer closer()

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	p, err := api.svc.UpdatePPT(ctx.Request().Context(), ctxUsr, ctx.Param("id"), data, up)
	if err != nil {
		return errors.Wrap(err, "updating ppt")
	}

	api.auditSvc.Log(newAuditEntry(ctx, ctxUsr.ID, audit.ActionUpdate, "ppt", p.ID))
	return ctx.JSON(http.StatusOK, p)
}

func (api *contentApi) destroyPPT(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	if err := api.svc.DeletePPT(ctx.Request().Context(), ctxUsr, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting ppt")
	}

	api.auditSvc.Log(newAuditEntry(ctx, ctxUsr.ID, audit.ActionDelete, "ppt", ctx.Param("id")))
	return ctx.NoContent(http.StatusNoContent)
}

// Assignments

// assignmentForm carries multipart form fields; deadline is RFC3339 since the
// form binder only handles basic kinds.
type assignmentForm struct {
	Title             string `form:"title"`
	Description       string `form:"description"`
	BatchID           string `form:"batch_id"`
	Deadline          string `form:"deadline"`
	AllowResubmission string `form:"allow_resubmission"`
	MaxMarks          int    `form:"max_marks"`
}

func (f *assignmentForm) deadline() (time.Time, error) {
	if f.Deadline == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, f.Deadline)
	if err != nil {
		return time.Time{}, core.NewValidationError(
			nil, core.FieldError{Field: "deadline", Error: "must be a valid RFC3339 timestamp"})
	}
	return t, nil
}

func (f *assignmentForm) allowResubmission() (*bool, error) {
	if f.AllowResubmission == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(f.AllowResubmission)
	if err != nil {
		return nil, core.NewValidationError(
			nil, core.FieldError{Field: "allow_resubmission", Error: "must be a boolean"})
	}
	return &v, nil
}

func (api *contentApi) createAssignment(ctx echo.Context) error {
	var form assignmentForm
	if err := ctx.Bind(&form); err != nil {
		return errors.Wrap(err, "binding to assignmentForm")
	}
	deadline, err := form.deadline()
	if err != nil {
		return err
	}
	allowResub, err := form.allowResubmission()
	if err != nil {
		return err
	}

	data := content.NewAssignment{
		Title:       form.Title,
		Description: form.Description,
		BatchID:     form.BatchID,
		Deadline:    deadline,
		MaxMarks:    form.MaxMarks,
	}
	if allowResub != nil {
		data.AllowResubmission = *allowResub
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	up, closer, err := requiredFormFile(ctx)
	if err != nil {
		return err
	}
	defer closer()

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	a, err := api.svc.CreateAssignment(ctx.Request().Context(), ctxUsr, data, up)
	if err != nil {
		return errors.Wrap(err, "creating assignment")
	}

	api.auditSvc.Log(newAuditEntry(ctx, ctxUsr.ID, audit.ActionCreate, "assignment", a.ID))
	return ctx.JSON(http.StatusCreated, a)
}

func (api *contentApi) queryAssignments(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	filter := new(content.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []content.Assignment{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	asgs, err := api.svc.QueryAssignments(ctx.Request().Context(), ctxUsr, filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying assignments")
	}
	if asgs == nil {
		asgs = []content.Assignment{}
	}
	return ctx.JSON(http.StatusOK, asgs)
}

func (api *contentApi) retrieveAssignment(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	a, err := api.svc.GetAssignment(ctx.Request().Context(), ctxUsr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting assignment")
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *contentApi) updateAssignment(ctx echo.Context) error {
	var form assignmentForm
	if err := ctx.Bind(&form); err != nil {
		return errors.Wrap(err, "binding to assignmentForm")
	}
	deadline, err := form.deadline()
	if err != nil {
		return err
	}
	allowResub, err := form.allowResubmission()
	if err != nil {
		return err
	}

	data := content.UpdateAssignment{
		Title:             form.Title,
		Description:       form.Description,
		Deadline:          deadline,
		AllowResubmission: allowResub,
		MaxMarks:          form.MaxMarks,
	}

	up, closer, err := optionalFormFile(ctx)
	if err != nil {
		return err
	}
	defer closer()

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	a, err := api.svc.UpdateAssignment(ctx.Request().Context(), ctxUsr, ctx.Param("id"), data, up)
	if err != nil {
		return errors.Wrap(err, "updating assignment")
	}

	api.auditSvc.Log(newAuditEntry(ctx, ctxUsr.ID, audit.ActionUpdate, "assignment", a.ID))
	return ctx.JSON(http.StatusOK, a)
}

func (api *contentApi) destroyAssignment(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	if err := api.svc.DeleteAssignment(ctx.Request().Context(), ctxUsr, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting assignment")
	}

	api.auditSvc.Log(newAuditEntry(ctx, ctxUsr.ID, audit.ActionDelete, "assignment", ctx.Param("id")))
	return ctx.NoContent(http.StatusNoContent)
}
