package analytics

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core"
)

// Rows read by the reducers.
type (
	UserRow struct {
		ID        string    `boil:"id"`
		IsPro     bool      `boil:"is_pro"`
		CreatedAt time.Time `boil:"created_at"`
	}

	ProgressRow struct {
		UserID              string `boil:"user_id"`
		CourseID            string `boil:"course_id"`
		LessonIndex         int    `boil:"lesson_index"`
		Completed           bool   `boil:"completed"`
		LastPositionSeconds int    `boil:"last_position_seconds"`
	}

	CertificateRow struct {
		CertificateID  string    `boil:"certificate_id" json:"certificate_id"`
		CourseID       string    `boil:"course_id" json:"course_id"`
		FullName       string    `boil:"full_name" json:"full_name"`
		CourseTitle    string    `boil:"course_title" json:"course_title"`
		CompletionDate time.Time `boil:"completion_date" json:"completion_date"`
		CreatedAt      time.Time `boil:"created_at" json:"created_at"`
	}

	RequestCounts struct {
		Pending  int `boil:"pending" json:"pending"`
		Approved int `boil:"approved" json:"approved"`
		Rejected int `boil:"rejected" json:"rejected"`
		Total    int `boil:"total" json:"total"`
	}
)

// Visit is one visitor session on the frontend.
type Visit struct {
	ID              string    `json:"id"`
	Path            string    `json:"path"`
	UserID          string    `json:"user_id,omitempty"`
	DurationSeconds *int      `json:"duration_seconds"`
	CreatedAt       time.Time `json:"created_at"` // UTC
}

type NewVisit struct {
	Path string `json:"path" validate:"max=500"`
}

func (nv *NewVisit) Validate(validate *validator.Validate) error {
	nv.Path = core.CleanString(nv.Path)
	if nv.Path == "" {
		nv.Path = "/"
	}
	return validate.Struct(nv)
}

type EndVisit struct {
	DurationSeconds int `json:"duration_seconds" validate:"min=0,max=86400"`
}

// Chart series.
type (
	Point struct {
		Date  string `json:"date"` // MM-DD
		Count int    `json:"count"`
	}

	Slice struct {
		Name  string `json:"name"`
		Value int    `json:"value"`
	}

	CourseHours struct {
		Course string  `json:"course"`
		Hours  float64 `json:"hours"`
	}

	LessonStat struct {
		Lesson    string  `json:"lesson"` // L1, L2...
		Completed int     `json:"completed"`
		Total     int     `json:"total"`
		Hours     float64 `json:"hours"`
	}
)

type Overview struct {
	TotalStudents            int             `json:"total_students"`
	NewToday                 int             `json:"new_today"`
	ProCount                 int             `json:"pro_count"`
	FreeCount                int             `json:"free_count"`
	CourseCount              int             `json:"course_count"`
	Revenue                  decimal.Decimal `json:"revenue"`
	Currency                 string          `json:"currency"`
	StudentGrowth            []Point         `json:"student_growth"`
	CourseWatchHours         []CourseHours   `json:"course_watch_hours"`
	SubscriptionDistribution []Slice         `json:"subscription_distribution"`
}

type CourseStats struct {
	CourseID           string    `json:"course_id"`
	Title              string    `json:"title"`
	Slug               string    `json:"slug"`
	ThumbnailURL       string    `json:"thumbnail_url"`
	AccessType         string    `json:"access_type"`
	Host               string    `json:"host"`
	TotalLessons       int       `json:"total_lessons"`
	TotalWatchHours    float64   `json:"total_watch_hours"`
	CompletionRate     int       `json:"completion_rate"`
	CertificatesIssued int       `json:"certificates_issued"`
	StudentsEnrolled   int       `json:"students_enrolled"`
	CreatedAt          time.Time `json:"created_at"`
}

type CourseDetail struct {
	CourseStats
	AvgWatchHoursPerStudent float64          `json:"avg_watch_hours_per_student"`
	UniqueStudents          int              `json:"unique_students"`
	AvgCompletion           int              `json:"avg_completion"`
	Lessons                 []LessonStat     `json:"lessons"`
	ProgressDistribution    []Slice          `json:"progress_distribution"`
	DropOffLesson           int              `json:"drop_off_lesson"`     // 1-based
	MostWatchedLesson       int              `json:"most_watched_lesson"` // 1-based
	Certificates            []CertificateRow `json:"certificates"`
}

type Visitors struct {
	Today             int `json:"today"`
	ThisWeek          int `json:"this_week"`
	ThisMonth         int `json:"this_month"`
	AvgSessionMinutes int `json:"avg_session_minutes"`
}

type Subscriptions struct {
	RequestCounts
	ProCount int `json:"pro_count"`
}
