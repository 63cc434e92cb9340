package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core/certificate"
	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core/course"
	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core/progress"
)

type courseApi struct {
	svc         course.Service
	progressSvc progress.Service
	certSvc     certificate.Service
	auth        *authenticator
	validate    *validator.Validate
}

func registerCourseAPI(g *echo.Group, jwt echo.MiddlewareFunc, auth *authenticator, opts Options) {
	api := courseApi{
		svc:         opts.CourseSvc,
		progressSvc: opts.ProgressSvc,
		certSvc:     opts.CertificateSvc,
		auth:        auth,
		validate:    opts.Validate,
	}

	cg := g.Group("/courses")
	cg.GET("", api.list)
	cg.GET("/:course", api.retrieve)

	cg.GET("/:course/progress", api.progress, jwt)
	cg.POST("/:course/progress", api.saveProgress, jwt)
	cg.GET("/:course/certificate", api.eligibility, jwt)
	cg.GET("/:course/lessons/:index/pdf", api.lessonPDF, jwt)
}

// CourseView is a Course with the platform hosting its videos.
type CourseView struct {
	course.Course
	Host string `json:"host"`
}

func newCourseView(c course.Course) CourseView {
	c.Lessons = c.SortedLessons()
	return CourseView{Course: c, Host: c.Host()}
}

func (api *courseApi) list(ctx echo.Context) error {
	courses, err := api.svc.List(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing courses")
	}
	views := make([]CourseView, 0, len(courses))
	for _, c := range courses {
		views = append(views, newCourseView(c))
	}
	return ctx.JSON(http.StatusOK, views)
}

func (api *courseApi) retrieve(ctx echo.Context) error {
	c, err := api.svc.Get(ctx.Request().Context(), ctx.Param("course"))
	if err != nil {
		return errors.Wrap(err, "finding course")
	}
	return ctx.JSON(http.StatusOK, newCourseView(c))
}

// contextCourse finds the course of the request. Progress on courses missing from the catalog
// is still tracked under the requested ID.
func (api *courseApi) contextCourse(ctx echo.Context) (course.Course, error) {
	slugOrID := ctx.Param("course")
	c, err := api.svc.Get(ctx.Request().Context(), slugOrID)
	if err != nil {
		if errors.Cause(err) == course.ErrNotFound {
			return course.Course{ID: slugOrID}, nil
		}
		return course.Course{}, errors.Wrap(err, "finding course")
	}
	return c, nil
}

func (api *courseApi) progress(ctx echo.Context) error {
	usr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	c, err := api.contextCourse(ctx)
	if err != nil {
		return err
	}

	rows, err := api.progressSvc.List(ctx.Request().Context(), usr.ID, c.ID)
	if err != nil {
		return errors.Wrap(err, "listing progress")
	}
	if rows == nil {
		rows = []progress.Progress{}
	}
	return ctx.JSON(http.StatusOK, ProgressResponse{
		Progress: rows,
		Summary:  progress.Summarize(rows, len(c.Lessons)),
	})
}

func (api *courseApi) saveProgress(ctx echo.Context) error {
	usr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data progress.Update
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to progress.Update")
	}
	if err := api.validate.Struct(&data); err != nil {
		return err
	}

	c, err := api.contextCourse(ctx)
	if err != nil {
		return err
	}
	p, err := api.progressSvc.Save(ctx.Request().Context(), usr.ID, c.ID, data)
	if err != nil {
		return errors.Wrap(err, "saving progress")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *courseApi) eligibility(ctx echo.Context) error {
	usr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	el, err := api.certSvc.Eligibility(ctx.Request().Context(), usr, ctx.Param("course"))
	if err != nil {
		return errors.Wrap(err, "checking certificate eligibility")
	}
	return ctx.JSON(http.StatusOK, el)
}

func (api *courseApi) lessonPDF(ctx echo.Context) error {
	usr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	index, ok := intParam(ctx, "index")
	if !ok {
		return course.ErrInvalidLessonIndex
	}

	pdf, err := api.svc.LessonPDF(ctx.Request().Context(), usr, ctx.Param("course"), index)
	if err != nil {
		return errors.Wrap(err, "opening lesson pdf")
	}
	defer pdf.Body.Close()

	header := ctx.Response().Header()
	header.Set(echo.HeaderContentDisposition, pdf.Disposition)
	header.Set("Cache-Control", "private, no-store")
	if pdf.ContentLength != "" {
		header.Set(echo.HeaderContentLength, pdf.ContentLength)
	}
	return ctx.Stream(http.StatusOK, pdf.ContentType, pdf.Body)
}

type ProgressResponse struct {
	Progress []progress.Progress `json:"progress"`
	Summary  progress.Summary    `json:"summary"`
}
