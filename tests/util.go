package testutil

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core"
	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core/course"
	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core/user"
	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/services/logger"
)

// NewLogger returns a silent logger that never reaches Rollbar.
func NewLogger(conf *core.Config) core.Logger {
	logger := logsvc.NewRollbarLogger(zap.NewNop(), conf)
	logger.Enable(false)
	return logger
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	email, pwd, role string,
	isPro bool,
	createdAt ...time.Time,
) user.User {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	if role == "" {
		role = user.RoleStudent
	}
	usr := user.User{
		Email:     email,
		Role:      role,
		IsPro:     isPro,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateCourse(
	t *testing.T,
	repo course.Repository,
	slug, accessType string,
	lessons ...course.Lesson,
) course.Course {
	now := time.Now().UTC()
	for i := range lessons {
		if lessons[i].Order == 0 {
			lessons[i].Order = i + 1
		}
	}
	c, err := repo.CreateCourse(context.Background(), course.Course{
		Slug:       slug,
		Title:      "Course " + slug,
		AccessType: accessType,
		Lessons:    lessons,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if err != nil {
		t.Fatalf("CreateCourse() failed: %v", err)
	}
	return c
}

// Lessons returns `n` YouTube lessons.
func Lessons(n int) []course.Lesson {
	lessons := make([]course.Lesson, 0, n)
	for i := 0; i < n; i++ {
		lessons = append(lessons, course.Lesson{
			Title:    "Lesson",
			VideoURL: "https://www.youtube.com/watch?v=kulmis",
			Order:    i + 1,
		})
	}
	return lessons
}
