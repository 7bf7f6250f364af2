package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core/audit"
	"github.com/darasahq/darasa/core/batch"
	"github.com/darasahq/darasa/core/user"
)

type batchApi struct {
	svc      batch.Service
	usrSvc   user.Service
	auditSvc audit.Service
	validate *validator.Validate
}

func registerBatchAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc batch.Service,
	usrSvc user.Service,
	auditSvc audit.Service,
	validate *validator.Validate,
) {
	api := batchApi{
		svc:      svc,
		usrSvc:   usrSvc,
		auditSvc: auditSvc,
		validate: validate,
	}

	bg := g.Group("/batches", jwt)
	bg.POST("", api.create, roleMiddleware())
	bg.GET("", api.query)

	dg := bg.Group("/:id")
	dg.GET("", api.retrieve)
	dg.PUT("", api.update, roleMiddleware(user.RoleTrainer))
	dg.DELETE("", api.destroy, roleMiddleware())

	// roster
	dg.GET("/students", api.students, roleMiddleware(user.RoleTrainer))
	dg.POST("/students", api.addStudent, roleMiddleware())
	dg.DELETE("/students/:studentID", api.removeStudent, roleMiddleware())
}

func (api *batchApi) create(ctx echo.Context) error {
	var data batch.NewBatch
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewBatch")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	b, err := api.svc.Create(ctx.Request().Context(), ctxUsr, data)
	if err != nil {
		return errors.Wrap(err, "creating batch")
	}

	api.auditSvc.Log(newAuditEntry(ctx, ctxUsr.ID, audit.ActionCreate, "batch", b.ID))
	return ctx.JSON(http.StatusCreated, b)
}

func (api *batchApi) query(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	filter := new(batch.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []batch.Batch{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	batches, err := api.svc.Query(ctx.Request().Context(), ctxUsr, filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying batches")
	}
	if batches == nil {
		batches = []batch.Batch{}
	}
	return ctx.JSON(http.StatusOK, batches)
}

func (api *batchApi) retrieve(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	b, err := api.svc.Get(ctx.Request().Context(), ctxUsr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting batch")
	}
	return ctx.JSON(http.StatusOK, b)
}

func (api *batchApi) update(ctx echo.Context) error {
	var data batch.UpdateBatch
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateBatch")
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	b, err := api.svc.Update(ctx.Request().Context(), ctxUsr, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating batch")
	}

	api.auditSvc.Log(newAuditEntry(ctx, ctxUsr.ID, audit.ActionUpdate, "batch", b.ID))
	return ctx.JSON(http.StatusOK, b)
}

func (api *batchApi) destroy(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	if err := api.svc.Delete(ctx.Request().Context(), ctxUsr, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting batch")
	}

	api.auditSvc.Log(newAuditEntry(ctx, ctxUsr.ID, audit.ActionDelete, "batch", ctx.Param("id")))
	return ctx.NoContent(http.StatusNoContent)
}

func (api *batchApi) students(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	students, err := api.svc.Students(ctx.Request().Context(), ctxUsr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying batch students")
	}
	if students == nil {
		students = []user.User{}
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *batchApi) addStudent(ctx echo.Context) error {
	var data batch.AddStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AddStudent")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	student, err := api.svc.AddStudent(ctx.Request().Context(), ctxUsr, ctx.Param("id"), data.StudentID)
	if err != nil {
		return errors.Wrap(err, "adding student to batch")
	}

	api.auditSvc.Log(newAuditEntry(ctx, ctxUsr.ID, audit.ActionUpdate, "batch", ctx.Param("id")))
	return ctx.JSON(http.StatusOK, student)
}

func (api *batchApi) removeStudent(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	err = api.svc.RemoveStudent(ctx.Request().Context(), ctxUsr, ctx.Param("id"), ctx.Param("studentID"))
	if err != nil {
		return errors.Wrap(err, "removing student from batch")
	}

	api.auditSvc.Log(newAuditEntry(ctx, ctxUsr.ID, audit.ActionUpdate, "batch", ctx.Param("id")))
	return ctx.NoContent(http.StatusNoContent)
}
