package analytics

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core"
	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core/course"
)

const (
	growthDays  = 30
	noDataLabel = "No data"
)

var bucketLabels = [4]string{"0–25%", "25–50%", "50–75%", "75–100%"}

// hours converts seconds to hours rounded to one decimal.
func hours(seconds int) float64 {
	return math.Round(float64(seconds)/3600*10) / 10
}

func percent(part, whole int) int {
	if whole == 0 {
		whole = 1
	}
	return int(math.Round(float64(part) / float64(whole) * 100))
}

// StudentGrowth counts signups per UTC day over the last 30 days, oldest first.
func StudentGrowth(users []UserRow, now time.Time) []Point {
	today := core.StartOfDay(now)
	first := today.AddDate(0, 0, -(growthDays - 1))

	counts := make(map[string]int, growthDays)
	for _, u := range users {
		day := core.StartOfDay(u.CreatedAt)
		if day.Before(first) || day.After(today) {
			continue
		}
		counts[day.Format("01-02")]++
	}

	points := make([]Point, 0, growthDays)
	for d := first; !d.After(today); d = d.AddDate(0, 0, 1) {
		key := d.Format("01-02")
		points = append(points, Point{Date: key, Count: counts[key]})
	}
	return points
}

// CourseWatchHours sums the watched time per course, biggest first.
// Courses missing from the catalog are labelled with the first 8 chars of their id.
func CourseWatchHours(rows []ProgressRow, courses []course.Course) []CourseHours {
	titles := make(map[string]string, len(courses))
	for _, c := range courses {
		titles[c.ID] = c.Title
	}

	var ids []string
	seconds := make(map[string]int)
	for _, p := range rows {
		if _, ok := seconds[p.CourseID]; !ok {
			ids = append(ids, p.CourseID)
		}
		seconds[p.CourseID] += p.LastPositionSeconds
	}

	res := make([]CourseHours, 0, len(ids))
	for _, id := range ids {
		h := hours(seconds[id])
		if h <= 0 {
			continue
		}
		label, ok := titles[id]
		if !ok {
			label = id
			if len(label) > 8 {
				label = label[:8]
			}
		}
		res = append(res, CourseHours{Course: label, Hours: h})
	}
	sort.SliceStable(res, func(i, j int) bool { return res[i].Hours > res[j].Hours })
	return res
}

// SubscriptionDistribution splits users between Free and Pro, dropping empty slices.
func SubscriptionDistribution(free, pro int) []Slice {
	slices := make([]Slice, 0, 2)
	for _, s := range []Slice{{Name: "Free", Value: free}, {Name: "Pro", Value: pro}} {
		if s.Value > 0 {
			slices = append(slices, s)
		}
	}
	return slices
}

// Revenue is the Pro price times the number of approved requests.
func Revenue(amount decimal.Decimal, approved int) decimal.Decimal {
	return amount.Mul(decimal.NewFromInt(int64(approved)))
}

// CompletionRate is the share of completed lessons over every (lesson, enrolled student) pair, capped at 100.
func CompletionRate(completions, lessons, students int) int {
	rate := percent(completions, lessons*students)
	if rate > 100 {
		return 100
	}
	return rate
}

// Courses computes the catalog statistics from every progress row.
func Courses(courses []course.Course, rows []ProgressRow, certCounts map[string]int) []CourseStats {
	type acc struct {
		seconds, completions int
		users                map[string]struct{}
	}
	byCourse := make(map[string]*acc)
	for _, p := range rows {
		a, ok := byCourse[p.CourseID]
		if !ok {
			a = &acc{users: make(map[string]struct{})}
			byCourse[p.CourseID] = a
		}
		a.seconds += p.LastPositionSeconds
		if p.Completed {
			a.completions++
		}
		a.users[p.UserID] = struct{}{}
	}

	stats := make([]CourseStats, 0, len(courses))
	for _, c := range courses {
		a, ok := byCourse[c.ID]
		if !ok {
			a = &acc{}
		}
		stats = append(stats, CourseStats{
			CourseID:           c.ID,
			Title:              c.Title,
			Slug:               c.Slug,
			ThumbnailURL:       c.ThumbnailURL,
			AccessType:         c.AccessType,
			Host:               c.Host(),
			TotalLessons:       len(c.Lessons),
			TotalWatchHours:    hours(a.seconds),
			CompletionRate:     CompletionRate(a.completions, len(c.Lessons), len(a.users)),
			CertificatesIssued: certCounts[c.ID],
			StudentsEnrolled:   len(a.users),
			CreatedAt:          c.CreatedAt,
		})
	}
	return stats
}

// Detail computes the statistics of one course from its progress rows.
func Detail(c course.Course, rows []ProgressRow, certs []CertificateRow) CourseDetail {
	lessonCount := len(c.Lessons)

	type lessonAcc struct{ completed, total, seconds int }
	byLesson := make([]lessonAcc, lessonCount)
	completedByUser := make(map[string]int)
	var users []string
	var totalSeconds, totalCompletions int

	for _, p := range rows {
		totalSeconds += p.LastPositionSeconds
		if _, ok := completedByUser[p.UserID]; !ok {
			users = append(users, p.UserID)
			completedByUser[p.UserID] = 0
		}
		if p.Completed {
			totalCompletions++
			completedByUser[p.UserID]++
		}
		if p.LessonIndex >= 0 && p.LessonIndex < lessonCount {
			l := &byLesson[p.LessonIndex]
			l.total++
			l.seconds += p.LastPositionSeconds
			if p.Completed {
				l.completed++
			}
		}
	}

	d := CourseDetail{
		CourseStats: CourseStats{
			CourseID:           c.ID,
			Title:              c.Title,
			Slug:               c.Slug,
			ThumbnailURL:       c.ThumbnailURL,
			AccessType:         c.AccessType,
			Host:               c.Host(),
			TotalLessons:       lessonCount,
			TotalWatchHours:    hours(totalSeconds),
			CompletionRate:     CompletionRate(totalCompletions, lessonCount, len(users)),
			CertificatesIssued: len(certs),
			StudentsEnrolled:   len(users),
			CreatedAt:          c.CreatedAt,
		},
		UniqueStudents: len(users),
		AvgCompletion:  percent(totalCompletions, lessonCount*len(users)),
		Lessons:        make([]LessonStat, 0, lessonCount),
		Certificates:   certs,
	}
	if len(users) > 0 {
		d.AvgWatchHoursPerStudent = math.Round(float64(totalSeconds)/float64(len(users))/3600*10) / 10
	}

	dropOff, minRate := 0, 1.0
	mostWatched, maxSeconds := 0, 0
	for i, l := range byLesson {
		d.Lessons = append(d.Lessons, LessonStat{
			Lesson:    fmt.Sprintf("L%d", i+1),
			Completed: l.completed,
			Total:     l.total,
			Hours:     hours(l.seconds),
		})
		rate := 1.0
		if l.total > 0 {
			rate = float64(l.completed) / float64(l.total)
		}
		if rate < minRate {
			dropOff, minRate = i, rate
		}
		if l.seconds > maxSeconds {
			mostWatched, maxSeconds = i, l.seconds
		}
	}
	d.DropOffLesson = dropOff + 1
	d.MostWatchedLesson = mostWatched + 1

	percents := make([]float64, 0, len(users))
	for _, id := range users {
		pct := 0.0
		if lessonCount > 0 {
			pct = float64(completedByUser[id]) / float64(lessonCount) * 100
		}
		percents = append(percents, pct)
	}
	d.ProgressDistribution = ProgressBuckets(percents)
	return d
}

// ProgressBuckets groups completion percents into quarters, dropping empty ones.
// An empty distribution becomes a single "No data" slice.
func ProgressBuckets(percents []float64) []Slice {
	var buckets [4]int
	for _, pct := range percents {
		switch {
		case pct <= 25:
			buckets[0]++
		case pct <= 50:
			buckets[1]++
		case pct <= 75:
			buckets[2]++
		default:
			buckets[3]++
		}
	}

	slices := make([]Slice, 0, len(buckets))
	for i, n := range buckets {
		if n > 0 {
			slices = append(slices, Slice{Name: bucketLabels[i], Value: n})
		}
	}
	if len(slices) == 0 {
		slices = append(slices, Slice{Name: noDataLabel, Value: 1})
	}
	return slices
}

// VisitorStats counts the sessions started today, in the last 7 days and in the last month.
func VisitorStats(visits []Visit, now time.Time) Visitors {
	today := core.StartOfDay(now)
	week := now.AddDate(0, 0, -7)
	month := now.AddDate(0, -1, 0)

	var v Visitors
	var seconds, timed int
	for _, s := range visits {
		if !s.CreatedAt.Before(today) {
			v.Today++
		}
		if !s.CreatedAt.Before(week) {
			v.ThisWeek++
		}
		if !s.CreatedAt.Before(month) {
			v.ThisMonth++
		}
		if s.DurationSeconds != nil {
			seconds += *s.DurationSeconds
			timed++
		}
	}
	if timed > 0 {
		v.AvgSessionMinutes = int(math.Round(float64(seconds) / float64(timed) / 60))
	}
	return v
}
