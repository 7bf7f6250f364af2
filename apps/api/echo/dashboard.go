package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core/dashboard"
	"github.com/darasahq/darasa/core/user"
)

type dashboardApi struct {
	svc    dashboard.Service
	usrSvc user.Service
}

func registerDashboardAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc dashboard.Service, usrSvc user.Service) {
	api := dashboardApi{svc: svc, usrSvc: usrSvc}
	g.GET("/dashboard", api.retrieve, jwt)
}

func (api *dashboardApi) retrieve(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	dash, err := api.svc.Get(ctx.Request().Context(), ctxUsr)
	if err != nil {
		return errors.Wrap(err, "getting dashboard")
	}
	return ctx.JSON(http.StatusOK, dash)
}
