package course

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core"
	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core/user"
)

var (
	// errors
	ErrNotFound           = errors.New("Course not found")
	ErrSlugExists         = core.NewFieldValidationError("slug", "a course with this slug already exists")
	ErrInvalidLessonIndex = core.NewValidationError(errors.New("Invalid lessonIndex"))
	ErrProRequired        = errors.New("Pro membership required to download lesson PDFs")
	ErrNoPDF              = errors.New("This lesson has no PDF available")
	ErrUpstreamPDF        = errors.New("Failed to fetch PDF")

	unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9.-]`)
)

type (
	Repository interface {
		// CreateCourse returns ErrSlugExists when the slug is taken.
		CreateCourse(ctx context.Context, c Course, exec ...core.DBExecutor) (Course, error)
		// GetCourse finds a course by slug or ID.
		GetCourse(ctx context.Context, slugOrID string, exec ...core.DBExecutor) (Course, error)
		// QueryCourses returns all courses, newest first.
		QueryCourses(ctx context.Context, exec ...core.DBExecutor) ([]Course, error)
		UpdateCourse(ctx context.Context, c Course, exec ...core.DBExecutor) (Course, error)
		DeleteCourse(ctx context.Context, id string, exec ...core.DBExecutor) error
		CreateLessonDownload(ctx context.Context, d LessonDownload, exec ...core.DBExecutor) error
	}

	// Cache keeps catalog reads away from the database. Misses and failures are not errors.
	Cache interface {
		GetCatalog(ctx context.Context) ([]Course, bool)
		SetCatalog(ctx context.Context, courses []Course)
		GetCourse(ctx context.Context, slugOrID string) (Course, bool)
		SetCourse(ctx context.Context, c Course)
		Invalidate(ctx context.Context)
	}

	Service interface {
		List(ctx context.Context) ([]Course, error)
		Get(ctx context.Context, slugOrID string) (Course, error)
		Create(ctx context.Context, nc NewCourse) (Course, error)
		Update(ctx context.Context, id string, uc UpdateCourse) (Course, error)
		Delete(ctx context.Context, id string) error
		LessonPDF(ctx context.Context, usr user.User, slugOrID string, lessonIndex int) (PDFDownload, error)
	}

	service struct {
		tx         core.Transactor
		repo       Repository
		cache      Cache
		httpClient *http.Client
		logger     core.Logger
	}

	Option func(*service)
)

var _ Service = (*service)(nil)

// WithHTTPClient sets the client used to fetch lesson PDFs.
func WithHTTPClient(client *http.Client) Option {
	return func(svc *service) { svc.httpClient = client }
}

func NewService(tx core.Transactor, repo Repository, cache Cache, logger core.Logger, opts ...Option) Service {
	svc := &service{
		tx:         tx,
		repo:       repo,
		cache:      cache,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

func (svc *service) List(ctx context.Context) ([]Course, error) {
	if courses, ok := svc.cache.GetCatalog(ctx); ok {
		return courses, nil
	}
	courses, err := svc.repo.QueryCourses(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}
	svc.cache.SetCatalog(ctx, courses)
	return courses, nil
}

func (svc *service) Get(ctx context.Context, slugOrID string) (Course, error) {
	slugOrID = core.CleanString(slugOrID)
	if slugOrID == "" {
		return Course{}, ErrNotFound
	}
	if c, ok := svc.cache.GetCourse(ctx, slugOrID); ok {
		return c, nil
	}
	c, err := svc.repo.GetCourse(ctx, slugOrID)
	if err != nil {
		return Course{}, err
	}
	svc.cache.SetCourse(ctx, c)
	return c, nil
}

func (svc *service) Create(ctx context.Context, nc NewCourse) (Course, error) {
	now := core.NowFunc()
	c := Course{
		Slug:         nc.Slug,
		Title:        nc.Title,
		Description:  nc.Description,
		ThumbnailURL: nc.ThumbnailURL,
		Category:     nc.Category,
		Level:        nc.Level,
		AccessType:   nc.AccessType,
		Lessons:      nc.lessons(),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		var err error
		c, err = svc.repo.CreateCourse(ctx, c, exec)
		return err
	})
	if err != nil {
		return Course{}, err
	}
	svc.cache.Invalidate(ctx)
	return c, nil
}

func (svc *service) Update(ctx context.Context, id string, uc UpdateCourse) (Course, error) {
	orig, err := svc.repo.GetCourse(ctx, id)
	if err != nil {
		return Course{}, err
	}
	c := Course{
		ID:           orig.ID,
		Slug:         uc.Slug,
		Title:        uc.Title,
		Description:  uc.Description,
		ThumbnailURL: uc.ThumbnailURL,
		Category:     uc.Category,
		Level:        uc.Level,
		AccessType:   uc.AccessType,
		Lessons:      uc.lessons(),
		CreatedAt:    orig.CreatedAt,
		UpdatedAt:    core.NowFunc(),
	}

	err = svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		var err error
		c, err = svc.repo.UpdateCourse(ctx, c, exec)
		return err
	})
	if err != nil {
		return Course{}, err
	}
	svc.cache.Invalidate(ctx)
	return c, nil
}

func (svc *service) Delete(ctx context.Context, id string) error {
	c, err := svc.repo.GetCourse(ctx, id)
	if err != nil {
		return err
	}
	if err := svc.repo.DeleteCourse(ctx, c.ID); err != nil {
		return errors.Wrap(err, "deleting course")
	}
	svc.cache.Invalidate(ctx)
	return nil
}

// LessonPDF opens the PDF of a lesson for a Pro user. The caller must close PDFDownload.Body.
func (svc *service) LessonPDF(ctx context.Context, usr user.User, slugOrID string, lessonIndex int) (PDFDownload, error) {
	if lessonIndex < 0 {
		return PDFDownload{}, ErrInvalidLessonIndex
	}
	if !usr.IsPro {
		return PDFDownload{}, ErrProRequired
	}

	c, err := svc.Get(ctx, slugOrID)
	if err != nil {
		return PDFDownload{}, err
	}
	lesson, ok := c.Lesson(lessonIndex)
	if !ok || lesson.PDFURL == "" {
		return PDFDownload{}, ErrNoPDF
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, lesson.PDFURL, nil)
	if err != nil {
		return PDFDownload{}, errors.Wrap(ErrUpstreamPDF, err.Error())
	}
	req.Header.Set("Cache-Control", "no-store")
	res, err := svc.httpClient.Do(req)
	if err != nil {
		return PDFDownload{}, errors.Wrap(ErrUpstreamPDF, err.Error())
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		_ = res.Body.Close()
		return PDFDownload{}, errors.Wrap(ErrUpstreamPDF, fmt.Sprintf("upstream status %d", res.StatusCode))
	}

	download := LessonDownload{UserID: usr.ID, CourseID: c.ID, LessonIndex: lessonIndex, CreatedAt: core.NowFunc()}
	if err := svc.repo.CreateLessonDownload(ctx, download); err != nil {
		svc.logger.Warn(fmt.Sprintf("recording lesson download: %v", err), err, usr)
	}

	pdf := PDFDownload{
		Body:          res.Body,
		ContentType:   res.Header.Get("Content-Type"),
		ContentLength: res.Header.Get("Content-Length"),
		Disposition:   res.Header.Get("Content-Disposition"),
	}
	if pdf.ContentType == "" {
		pdf.ContentType = "application/pdf"
	}
	if pdf.Disposition == "" {
		pdf.Disposition = fmt.Sprintf(`attachment; filename="%s.pdf"`, lessonFilename(lesson, lessonIndex))
	}
	return pdf, nil
}

func lessonFilename(l Lesson, index int) string {
	name := strings.TrimSpace(l.Title)
	if name == "" {
		name = fmt.Sprintf("lesson-%d", index+1)
	}
	return unsafeFilenameChars.ReplaceAllString(name, "-")
}

type noopCache struct{}

// NewNoopCache returns a Cache that never hits.
func NewNoopCache() Cache { return noopCache{} }

func (noopCache) GetCatalog(context.Context) ([]Course, bool) { return nil, false }
func (noopCache) SetCatalog(context.Context, []Course) {}
func (noopCache) GetCourse(context.Context, string) (Course, bool) { return Course{}, false }
func (noopCache) SetCourse(context.Context, Course) {}
func (noopCache) Invalidate(context.Context) {}
