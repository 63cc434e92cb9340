package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core/analytics"
)

type visitApi struct {
	svc      analytics.Service
	auth     *authenticator
	validate *validator.Validate
}

func registerVisitAPI(g *echo.Group, auth *authenticator, opts Options) {
	api := visitApi{
		svc:      opts.AnalyticsSvc,
		auth:     auth,
		validate: opts.Validate,
	}

	g.POST("/visits", api.record)
	g.PATCH("/visits/:id", api.end)
}

// record starts a visitor session, linked to the user when the request carries a valid token.
func (api *visitApi) record(ctx echo.Context) error {
	var data analytics.NewVisit
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewVisit")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	var userID string
	if claims, ok := api.auth.optionalClaims(ctx); ok {
		userID = claims.Subject
	}
	v, err := api.svc.RecordVisit(ctx.Request().Context(), data, userID)
	if err != nil {
		return errors.Wrap(err, "recording visit")
	}
	return ctx.JSON(http.StatusCreated, v)
}

func (api *visitApi) end(ctx echo.Context) error {
	var data analytics.EndVisit
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to EndVisit")
	}
	if err := api.validate.Struct(&data); err != nil {
		return err
	}
	if err := api.svc.EndVisit(ctx.Request().Context(), ctx.Param("id"), data); err != nil {
		return errors.Wrap(err, "ending visit")
	}
	return ctx.NoContent(http.StatusNoContent)
}
