package inmemdb

import (
	"context"
	"sort"

	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core"
	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core/analytics"
	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core/subscription"
)

type analyticsRepository struct {
	db *DB
}

var (
	_ analytics.Repository      = (*analyticsRepository)(nil)
	_ analytics.VisitRepository = (*analyticsRepository)(nil)
)

func NewAnalyticsRepository(db *DB) analytics.Repository {
	return &analyticsRepository{db: db}
}

func NewVisitRepository(db *DB) analytics.VisitRepository {
	return &analyticsRepository{db: db}
}

func (repo *analyticsRepository) Users(_ context.Context, _ ...core.DBExecutor) ([]analytics.UserRow, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	rows := make([]analytics.UserRow, 0, len(repo.db.users))
	for _, u := range repo.db.users {
		rows = append(rows, analytics.UserRow{ID: u.ID, IsPro: u.IsPro, CreatedAt: u.CreatedAt})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].CreatedAt.Before(rows[j].CreatedAt) })
	return rows, nil
}

func (repo *analyticsRepository) Progress(_ context.Context, courseID string, _ ...core.DBExecutor) ([]analytics.ProgressRow, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	rows := make([]analytics.ProgressRow, 0)
	for _, p := range repo.db.progress {
		if courseID != "" && p.CourseID != courseID {
			continue
		}
		rows = append(rows, analytics.ProgressRow{
			UserID:              p.UserID,
			CourseID:            p.CourseID,
			LessonIndex:         p.LessonIndex,
			Completed:           p.Completed,
			LastPositionSeconds: p.LastPositionSeconds,
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].CourseID != rows[j].CourseID {
			return rows[i].CourseID < rows[j].CourseID
		}
		return rows[i].LessonIndex < rows[j].LessonIndex
	})
	return rows, nil
}

func (repo *analyticsRepository) Certificates(_ context.Context, courseID string, _ ...core.DBExecutor) ([]analytics.CertificateRow, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	rows := make([]analytics.CertificateRow, 0)
	for _, c := range repo.db.certificates {
		if c.CourseID != courseID {
			continue
		}
		rows = append(rows, analytics.CertificateRow{
			CertificateID:  c.CertificateID,
			CourseID:       c.CourseID,
			FullName:       c.FullName,
			CourseTitle:    c.CourseTitle,
			CompletionDate: c.CompletionDate,
			CreatedAt:      c.CreatedAt,
		})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].CreatedAt.After(rows[j].CreatedAt) })
	return rows, nil
}

func (repo *analyticsRepository) CertificateCounts(_ context.Context, _ ...core.DBExecutor) (map[string]int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	counts := make(map[string]int)
	for _, c := range repo.db.certificates {
		counts[c.CourseID]++
	}
	return counts, nil
}

func (repo *analyticsRepository) RequestCounts(_ context.Context, _ ...core.DBExecutor) (analytics.RequestCounts, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var counts analytics.RequestCounts
	for _, r := range repo.db.requests {
		switch r.Status {
		case subscription.StatusPending:
			counts.Pending++
		case subscription.StatusApproved:
			counts.Approved++
		case subscription.StatusRejected:
			counts.Rejected++
		}
		counts.Total++
	}
	return counts, nil
}

func (repo *analyticsRepository) Visits(_ context.Context, _ ...core.DBExecutor) ([]analytics.Visit, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	visits := make([]analytics.Visit, 0, len(repo.db.visits))
	for _, v := range repo.db.visits {
		visits = append(visits, v)
	}
	sort.Slice(visits, func(i, j int) bool { return visits[i].CreatedAt.Before(visits[j].CreatedAt) })
	return visits, nil
}

func (repo *analyticsRepository) CreateVisit(_ context.Context, v analytics.Visit, _ ...core.DBExecutor) (analytics.Visit, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	repo.db.visits[v.ID] = v
	return v, nil
}

func (repo *analyticsRepository) EndVisit(_ context.Context, id string, durationSeconds int, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	v, ok := repo.db.visits[id]
	if !ok {
		return analytics.ErrVisitNotFound
	}
	v.DurationSeconds = &durationSeconds
	repo.db.visits[id] = v
	return nil
}
