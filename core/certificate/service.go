package certificate

import (
	"bytes"
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core"
	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core/course"
	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core/progress"
	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core/user"
)

var (
	// errors
	ErrNotFound         = errors.New("Certificate not found")
	ErrCourseIncomplete = errors.New("Course must be 100% complete to generate a certificate")
)

type (
	// Renderer draws the PDF of a certificate.
	Renderer interface {
		Render(cert Certificate, verifyURL string) ([]byte, error)
	}

	Repository interface {
		CreateCertificate(ctx context.Context, cert Certificate, exec ...core.DBExecutor) (Certificate, error)
		// GetCertificate finds a certificate by its public CertificateID. Returns ErrNotFound otherwise.
		GetCertificate(ctx context.Context, certificateID string, exec ...core.DBExecutor) (Certificate, error)
		// FindCertificate returns the certificate of a user for a course, or ErrNotFound.
		FindCertificate(ctx context.Context, userID, courseID string, exec ...core.DBExecutor) (Certificate, error)
		// QueryCertificates returns the matching certificates, newest first.
		QueryCertificates(ctx context.Context, filter QueryFilter, exec ...core.DBExecutor) ([]Certificate, error)
	}

	Service interface {
		Eligibility(ctx context.Context, usr user.User, courseSlugOrID string) (Eligibility, error)
		// Issue returns the certificate and its PDF.
		Issue(ctx context.Context, usr user.User, is Issue) (Certificate, []byte, error)
		Download(ctx context.Context, usr user.User, certificateID string) (Certificate, []byte, error)
		Verify(ctx context.Context, certificateID string) (Verification, error)
		ListMine(ctx context.Context, usr user.User) ([]Certificate, error)
		ListAll(ctx context.Context) ([]Certificate, error)
		ListByCourse(ctx context.Context, courseID string) ([]Certificate, error)
		VerifyURL(certificateID string) string
	}

	service struct {
		conf        *core.Config
		tx          core.Transactor
		repo        Repository
		courseSvc   course.Service
		progressSvc progress.Service
		renderer    Renderer
		mailSvc     core.EmailService
	}

	issuedMailData struct {
		FullName      string
		CourseTitle   string
		CertificateID string
		VerifyURL     string
	}
)

var _ Service = (*service)(nil)

func NewService(
	conf *core.Config,
	tx core.Transactor,
	repo Repository,
	courseSvc course.Service,
	progressSvc progress.Service,
	renderer Renderer,
	mailSvc core.EmailService,
) Service {
	return &service{
		conf:        conf,
		tx:          tx,
		repo:        repo,
		courseSvc:   courseSvc,
		progressSvc: progressSvc,
		renderer:    renderer,
		mailSvc:     mailSvc,
	}
}

// findCourse falls back to a course without lessons when the catalog does not know it,
// so that progress alone decides the eligibility.
func (svc *service) findCourse(ctx context.Context, slugOrID string) (course.Course, error) {
	c, err := svc.courseSvc.Get(ctx, slugOrID)
	if err != nil {
		if errors.Cause(err) == course.ErrNotFound {
			return course.Course{ID: slugOrID}, nil
		}
		return course.Course{}, errors.Wrap(err, "finding course")
	}
	return c, nil
}

func (svc *service) Eligibility(ctx context.Context, usr user.User, courseSlugOrID string) (Eligibility, error) {
	c, err := svc.findCourse(ctx, courseSlugOrID)
	if err != nil {
		return Eligibility{}, err
	}
	return svc.eligibility(ctx, usr, c)
}

func (svc *service) eligibility(ctx context.Context, usr user.User, c course.Course) (Eligibility, error) {
	sum, err := svc.progressSvc.Summarize(ctx, usr.ID, c)
	if err != nil {
		return Eligibility{}, err
	}
	el := Eligibility{
		CanClaim:       sum.CanClaim,
		CompletedCount: sum.CompletedCount,
		TotalLessons:   sum.TotalLessons,
		Percent:        sum.Percent,
	}

	cert, err := svc.repo.FindCertificate(ctx, usr.ID, c.ID)
	switch {
	case err == nil:
		el.AlreadyIssued = true
		el.CertificateID = cert.CertificateID
	case errors.Cause(err) != ErrNotFound:
		return Eligibility{}, errors.Wrap(err, "finding certificate")
	}
	return el, nil
}

// Issue creates the certificate of a completed course, or returns the one already issued.
func (svc *service) Issue(ctx context.Context, usr user.User, is Issue) (Certificate, []byte, error) {
	c, err := svc.findCourse(ctx, is.CourseID)
	if err != nil {
		return Certificate{}, nil, err
	}
	el, err := svc.eligibility(ctx, usr, c)
	if err != nil {
		return Certificate{}, nil, err
	}
	if !el.CanClaim {
		return Certificate{}, nil, ErrCourseIncomplete
	}

	courseTitle := c.Title
	if courseTitle == "" {
		courseTitle = is.CourseTitle
	}
	studentID := is.StudentID
	if studentID == "" {
		studentID = usr.ID
	}

	var (
		cert    Certificate
		created bool
	)
	err = svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		var err error
		cert, err = svc.repo.FindCertificate(ctx, usr.ID, c.ID, exec)
		if err == nil {
			return nil
		}
		if errors.Cause(err) != ErrNotFound {
			return errors.Wrap(err, "finding certificate")
		}

		now := core.NowFunc()
		cert, err = svc.repo.CreateCertificate(ctx, Certificate{
			CertificateID:  uuid.New().String(),
			UserID:         usr.ID,
			CourseID:       c.ID,
			CourseTitle:    courseTitle,
			FullName:       is.FullName,
			StudentID:      studentID,
			CompletionDate: now,
			CreatedAt:      now,
		}, exec)
		created = err == nil
		return errors.Wrap(err, "creating certificate")
	})
	if err != nil {
		return Certificate{}, nil, err
	}

	pdf, err := svc.render(cert)
	if err != nil {
		return Certificate{}, nil, err
	}
	if created {
		svc.notifyIssued(usr, cert, pdf)
	}
	return cert, pdf, nil
}

func (svc *service) render(cert Certificate) ([]byte, error) {
	pdf, err := svc.renderer.Render(cert, svc.VerifyURL(cert.CertificateID))
	return pdf, errors.Wrap(err, "rendering certificate")
}

func (svc *service) notifyIssued(usr user.User, cert Certificate, pdf []byte) {
	msg := &core.EmailMessage{
		To:           []mail.Address{{Name: cert.FullName, Address: usr.Email}},
		Subject:      fmt.Sprintf("Your %s certificate for %s", svc.conf.AppName, cert.CourseTitle),
		TemplateName: core.TmplCertificateIssued,
		TemplateData: issuedMailData{
			FullName:      cert.FullName,
			CourseTitle:   cert.CourseTitle,
			CertificateID: cert.CertificateID,
			VerifyURL:     svc.VerifyURL(cert.CertificateID),
		},
	}
	if err := msg.Attach(bytes.NewReader(pdf), cert.Filename(), "application/pdf"); err == nil {
		svc.mailSvc.SendMessages(msg)
	}
}

func (svc *service) Download(ctx context.Context, usr user.User, certificateID string) (Certificate, []byte, error) {
	cert, err := svc.repo.GetCertificate(ctx, core.CleanString(certificateID))
	if err != nil {
		return Certificate{}, nil, err
	}
	if cert.UserID != usr.ID {
		return Certificate{}, nil, ErrNotFound
	}
	pdf, err := svc.render(cert)
	if err != nil {
		return Certificate{}, nil, err
	}
	return cert, pdf, nil
}

func (svc *service) Verify(ctx context.Context, certificateID string) (Verification, error) {
	certificateID = core.CleanString(certificateID)
	if certificateID == "" {
		return Verification{}, ErrNotFound
	}
	cert, err := svc.repo.GetCertificate(ctx, certificateID)
	if err != nil {
		return Verification{}, err
	}
	return Verification{
		Valid:          true,
		CertificateID:  cert.CertificateID,
		FullName:       cert.FullName,
		CourseTitle:    cert.CourseTitle,
		CompletionDate: cert.CompletionDate,
		CreatedAt:      cert.CreatedAt,
	}, nil
}

func (svc *service) ListMine(ctx context.Context, usr user.User) ([]Certificate, error) {
	return svc.repo.QueryCertificates(ctx, QueryFilter{UserID: usr.ID})
}

func (svc *service) ListAll(ctx context.Context) ([]Certificate, error) {
	return svc.repo.QueryCertificates(ctx, QueryFilter{})
}

func (svc *service) ListByCourse(ctx context.Context, courseID string) ([]Certificate, error) {
	return svc.repo.QueryCertificates(ctx, QueryFilter{CourseID: courseID})
}

// VerifyURL is the public page where anyone can check a certificate.
func (svc *service) VerifyURL(certificateID string) string {
	return VerifyURL(svc.conf.FrontendBaseURL, certificateID)
}

func VerifyURL(baseURL, certificateID string) string {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "https://" + base
	}
	return base + "/verify/" + certificateID
}
