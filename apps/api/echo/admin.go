package echoapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core"
	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core/analytics"
	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core/certificate"
	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core/course"
	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core/subscription"
	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core/user"
)

type adminApi struct {
	userSvc      user.Service
	courseSvc    course.Service
	requestSvc   subscription.Service
	certSvc      certificate.Service
	analyticsSvc analytics.Service
	auth         *authenticator
	validate     *validator.Validate
}

// registerAdminAPI expects `g` to only let admins through.
func registerAdminAPI(g *echo.Group, auth *authenticator, opts Options) {
	api := adminApi{
		userSvc:      opts.UserSvc,
		courseSvc:    opts.CourseSvc,
		requestSvc:   opts.RequestSvc,
		certSvc:      opts.CertificateSvc,
		analyticsSvc: opts.AnalyticsSvc,
		auth:         auth,
		validate:     opts.Validate,
	}

	g.GET("/users", api.queryUsers)
	g.POST("/reset-password", api.resetPassword)

	g.GET("/requests", api.queryRequests)
	g.PATCH("/requests/:id", api.reviewRequest)

	g.POST("/courses", api.createCourse)
	g.PUT("/courses/:id", api.updateCourse)
	g.DELETE("/courses/:id", api.deleteCourse)

	g.GET("/certificates", api.queryCertificates)

	ag := g.Group("/analytics")
	ag.GET("/overview", api.overview)
	ag.GET("/courses", api.courseStats)
	ag.GET("/courses/:id", api.courseDetail)
	ag.GET("/visitors", api.visitors)
	ag.GET("/subscriptions", api.subscriptions)
}

// Users

func (api *adminApi) queryUsers(ctx echo.Context) error {
	filter, err := bindUserFilter(ctx)
	if err != nil {
		return err
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	users, err := api.userSvc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying users")
	}
	if users == nil {
		users = []user.Summary{}
	}
	return ctx.JSON(http.StatusOK, users)
}

// bindUserFilter reads `search`, `role`, `is_pro`, `created_from` and `created_to` (RFC 3339).
func bindUserFilter(ctx echo.Context) (*user.QueryFilter, error) {
	filter := &user.QueryFilter{
		Search: ctx.QueryParam("search"),
		Role:   ctx.QueryParam("role"),
	}
	if v := ctx.QueryParam("is_pro"); v != "" {
		isPro, err := strconv.ParseBool(v)
		if err != nil {
			return nil, core.NewFieldValidationError("is_pro", "must be true or false")
		}
		filter.IsPro = &isPro
	}
	for param, dst := range map[string]*time.Time{"created_from": &filter.CreatedFrom, "created_to": &filter.CreatedTo} {
		v := ctx.QueryParam(param)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, core.NewFieldValidationError(param, "must be an RFC 3339 date-time")
		}
		*dst = t.UTC()
	}
	filter.Clean()
	return filter, nil
}

func (api *adminApi) resetPassword(ctx echo.Context) error {
	var data AdminResetRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AdminResetRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.userSvc.AdminResetPassword(ctx.Request().Context(), data.UserID, data.Action); err != nil {
		return errors.Wrap(err, "resetting user password")
	}
	msg := msgResetLinkSent
	if data.Action == user.ResetActionForceTemp {
		msg = msgTempPasswordSent
	}
	return ctx.JSON(http.StatusOK, MessageResponse{Message: msg})
}

// Requests

func (api *adminApi) queryRequests(ctx echo.Context) error {
	var (
		reqs []subscription.Request
		err  error
	)
	if ctx.QueryParam("status") == "all" {
		reqs, err = api.requestSvc.ListAll(ctx.Request().Context())
	} else {
		reqs, err = api.requestSvc.ListPending(ctx.Request().Context())
	}
	if err != nil {
		return errors.Wrap(err, "listing requests")
	}
	return ctx.JSON(http.StatusOK, nonNilRequests(reqs))
}

func (api *adminApi) reviewRequest(ctx echo.Context) error {
	admin, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data subscription.Review
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Review")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	req, err := api.requestSvc.Review(ctx.Request().Context(), admin, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "reviewing request")
	}
	return ctx.JSON(http.StatusOK, req)
}

// Courses

func (api *adminApi) createCourse(ctx echo.Context) error {
	var data course.NewCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCourse")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	c, err := api.courseSvc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating course")
	}
	return ctx.JSON(http.StatusCreated, newCourseView(c))
}

func (api *adminApi) updateCourse(ctx echo.Context) error {
	var data course.UpdateCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateCourse")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	c, err := api.courseSvc.Update(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating course")
	}
	return ctx.JSON(http.StatusOK, newCourseView(c))
}

func (api *adminApi) deleteCourse(ctx echo.Context) error {
	if err := api.courseSvc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting course")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Certificates

func (api *adminApi) queryCertificates(ctx echo.Context) error {
	var (
		certs []certificate.Certificate
		err   error
	)
	if courseID := ctx.QueryParam("course_id"); courseID != "" {
		certs, err = api.certSvc.ListByCourse(ctx.Request().Context(), courseID)
	} else {
		certs, err = api.certSvc.ListAll(ctx.Request().Context())
	}
	if err != nil {
		return errors.Wrap(err, "listing certificates")
	}
	return ctx.JSON(http.StatusOK, nonNilCertificates(certs))
}

// Analytics

func (api *adminApi) overview(ctx echo.Context) error {
	res, err := api.analyticsSvc.Overview(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "computing overview")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *adminApi) courseStats(ctx echo.Context) error {
	res, err := api.analyticsSvc.Courses(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "computing course stats")
	}
	if res == nil {
		res = []analytics.CourseStats{}
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *adminApi) courseDetail(ctx echo.Context) error {
	res, err := api.analyticsSvc.CourseDetail(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "computing course detail")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *adminApi) visitors(ctx echo.Context) error {
	res, err := api.analyticsSvc.Visitors(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "computing visitors")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *adminApi) subscriptions(ctx echo.Context) error {
	res, err := api.analyticsSvc.Subscriptions(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "computing subscriptions")
	}
	return ctx.JSON(http.StatusOK, res)
}

type AdminResetRequest struct {
	UserID string `json:"user_id" validate:"required"`
	Action string `json:"action" validate:"omitempty,oneof=send_email force_temp"`
}

func (ar *AdminResetRequest) Validate(validate *validator.Validate) error {
	ar.UserID = core.CleanString(ar.UserID)
	ar.Action = core.CleanString(ar.Action, true /* lower */)
	return validate.Struct(ar)
}
