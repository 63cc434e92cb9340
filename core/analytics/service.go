package analytics

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core"
	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core/course"
)

var ErrVisitNotFound = errors.New("Visit not found")

type (
	Repository interface {
		Users(ctx context.Context, exec ...core.DBExecutor) ([]UserRow, error)
		// Progress returns the progress rows of a course, or of every course when courseID is empty.
		Progress(ctx context.Context, courseID string, exec ...core.DBExecutor) ([]ProgressRow, error)
		// Certificates returns the certificates of a course, newest first.
		Certificates(ctx context.Context, courseID string, exec ...core.DBExecutor) ([]CertificateRow, error)
		CertificateCounts(ctx context.Context, exec ...core.DBExecutor) (map[string]int, error)
		RequestCounts(ctx context.Context, exec ...core.DBExecutor) (RequestCounts, error)
		Visits(ctx context.Context, exec ...core.DBExecutor) ([]Visit, error)
	}

	VisitRepository interface {
		CreateVisit(ctx context.Context, v Visit, exec ...core.DBExecutor) (Visit, error)
		// EndVisit returns ErrVisitNotFound when the visit does not exist.
		EndVisit(ctx context.Context, id string, durationSeconds int, exec ...core.DBExecutor) error
	}

	Service interface {
		Overview(ctx context.Context) (Overview, error)
		Courses(ctx context.Context) ([]CourseStats, error)
		CourseDetail(ctx context.Context, slugOrID string) (CourseDetail, error)
		Visitors(ctx context.Context) (Visitors, error)
		Subscriptions(ctx context.Context) (Subscriptions, error)
		RecordVisit(ctx context.Context, nv NewVisit, userID string) (Visit, error)
		EndVisit(ctx context.Context, id string, ev EndVisit) error
	}

	service struct {
		conf      *core.Config
		repo      Repository
		visits    VisitRepository
		courseSvc course.Service
	}
)

var _ Service = (*service)(nil)

func NewService(conf *core.Config, repo Repository, visits VisitRepository, courseSvc course.Service) Service {
	return &service{conf: conf, repo: repo, visits: visits, courseSvc: courseSvc}
}

func (svc *service) Overview(ctx context.Context) (Overview, error) {
	var (
		users   []UserRow
		rows    []ProgressRow
		courses []course.Course
		counts  RequestCounts
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		users, err = svc.repo.Users(gctx)
		return errors.Wrap(err, "reading users")
	})
	g.Go(func() (err error) {
		rows, err = svc.repo.Progress(gctx, "")
		return errors.Wrap(err, "reading progress")
	})
	g.Go(func() (err error) {
		courses, err = svc.courseSvc.List(gctx)
		return errors.Wrap(err, "listing courses")
	})
	g.Go(func() (err error) {
		counts, err = svc.repo.RequestCounts(gctx)
		return errors.Wrap(err, "counting requests")
	})
	if err := g.Wait(); err != nil {
		return Overview{}, err
	}

	now := core.NowFunc()
	today := core.StartOfDay(now)
	ov := Overview{
		TotalStudents:    len(users),
		CourseCount:      len(courses),
		Revenue:          Revenue(svc.conf.Pro.Amount, counts.Approved),
		Currency:         svc.conf.Pro.Currency,
		StudentGrowth:    StudentGrowth(users, now),
		CourseWatchHours: CourseWatchHours(rows, courses),
	}
	for _, u := range users {
		if !u.CreatedAt.Before(today) {
			ov.NewToday++
		}
		if u.IsPro {
			ov.ProCount++
		} else {
			ov.FreeCount++
		}
	}
	ov.SubscriptionDistribution = SubscriptionDistribution(ov.FreeCount, ov.ProCount)
	return ov, nil
}

func (svc *service) Courses(ctx context.Context) ([]CourseStats, error) {
	var (
		courses    []course.Course
		rows       []ProgressRow
		certCounts map[string]int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		courses, err = svc.courseSvc.List(gctx)
		return errors.Wrap(err, "listing courses")
	})
	g.Go(func() (err error) {
		rows, err = svc.repo.Progress(gctx, "")
		return errors.Wrap(err, "reading progress")
	})
	g.Go(func() (err error) {
		certCounts, err = svc.repo.CertificateCounts(gctx)
		return errors.Wrap(err, "counting certificates")
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return Courses(courses, rows, certCounts), nil
}

func (svc *service) CourseDetail(ctx context.Context, slugOrID string) (CourseDetail, error) {
	c, err := svc.courseSvc.Get(ctx, slugOrID)
	if err != nil {
		return CourseDetail{}, err
	}

	var (
		rows  []ProgressRow
		certs []CertificateRow
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		rows, err = svc.repo.Progress(gctx, c.ID)
		return errors.Wrap(err, "reading progress")
	})
	g.Go(func() (err error) {
		certs, err = svc.repo.Certificates(gctx, c.ID)
		return errors.Wrap(err, "reading certificates")
	})
	if err := g.Wait(); err != nil {
		return CourseDetail{}, err
	}
	return Detail(c, rows, certs), nil
}

func (svc *service) Visitors(ctx context.Context) (Visitors, error) {
	visits, err := svc.repo.Visits(ctx)
	if err != nil {
		return Visitors{}, errors.Wrap(err, "reading visits")
	}
	return VisitorStats(visits, core.NowFunc()), nil
}

func (svc *service) Subscriptions(ctx context.Context) (Subscriptions, error) {
	var (
		counts RequestCounts
		users  []UserRow
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		counts, err = svc.repo.RequestCounts(gctx)
		return errors.Wrap(err, "counting requests")
	})
	g.Go(func() (err error) {
		users, err = svc.repo.Users(gctx)
		return errors.Wrap(err, "reading users")
	})
	if err := g.Wait(); err != nil {
		return Subscriptions{}, err
	}

	subs := Subscriptions{RequestCounts: counts}
	for _, u := range users {
		if u.IsPro {
			subs.ProCount++
		}
	}
	return subs, nil
}

func (svc *service) RecordVisit(ctx context.Context, nv NewVisit, userID string) (Visit, error) {
	return svc.visits.CreateVisit(ctx, Visit{
		ID:        uuid.New().String(),
		Path:      nv.Path,
		UserID:    userID,
		CreatedAt: core.NowFunc(),
	})
}

func (svc *service) EndVisit(ctx context.Context, id string, ev EndVisit) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrVisitNotFound
	}
	return svc.visits.EndVisit(ctx, id, ev.DurationSeconds)
}
