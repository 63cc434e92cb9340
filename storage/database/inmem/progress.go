package inmemdb

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core"
	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core/progress"
)

type progressRepository struct {
	db *DB
}

var _ progress.Repository = (*progressRepository)(nil)

func NewProgressRepository(db *DB) progress.Repository {
	return &progressRepository{db: db}
}

func progressKey(userID, courseID string, lessonIndex int) string {
	return fmt.Sprintf("%s/%s/%d", userID, courseID, lessonIndex)
}

func (repo *progressRepository) ListProgress(_ context.Context, userID, courseID string, _ ...core.DBExecutor) ([]progress.Progress, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var rows []progress.Progress
	for _, p := range repo.db.progress {
		if p.UserID == userID && p.CourseID == courseID {
			rows = append(rows, p)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].LessonIndex < rows[j].LessonIndex })
	return rows, nil
}

func (repo *progressRepository) GetProgress(
	_ context.Context,
	userID, courseID string,
	lessonIndex int,
	_ ...core.DBExecutor,
) (progress.Progress, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if p, ok := repo.db.progress[progressKey(userID, courseID, lessonIndex)]; ok {
		return p, nil
	}
	return progress.Progress{}, progress.ErrNotFound
}

func (repo *progressRepository) CreateProgress(_ context.Context, p progress.Progress, _ ...core.DBExecutor) (progress.Progress, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	key := progressKey(p.UserID, p.CourseID, p.LessonIndex)
	if _, ok := repo.db.progress[key]; ok {
		return progress.Progress{}, progress.ErrExists
	}
	p.ID = uuid.New().String()
	repo.db.progress[key] = p
	return p, nil
}

func (repo *progressRepository) UpdateProgress(_ context.Context, p progress.Progress, _ ...core.DBExecutor) (progress.Progress, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	key := progressKey(p.UserID, p.CourseID, p.LessonIndex)
	existing, ok := repo.db.progress[key]
	if !ok || existing.ID != p.ID {
		return progress.Progress{}, progress.ErrNotFound
	}
	repo.db.progress[key] = p
	return p, nil
}
