package course

import (
	"io"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core"
)

// Access types
const (
	AccessFree = "free"
	AccessPro  = "pro"
)

// Video hosts
const (
	HostVimeo   = "Vimeo"
	HostYouTube = "YouTube"
	HostCustom  = "Custom"
)

type Course struct {
	ID           string    `json:"id"`
	Slug         string    `json:"slug"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	ThumbnailURL string    `json:"thumbnail_url"`
	Category     string    `json:"category"`
	Level        string    `json:"level"`
	AccessType   string    `json:"access_type"`
	Lessons      []Lesson  `json:"lessons"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
}

type Lesson struct {
	Title       string `json:"title"`
	VideoURL    string `json:"video_url"`
	Description string `json:"description"`
	Order       int    `json:"order"`
	PDFURL      string `json:"pdf_url,omitempty"`
	PDFSize     string `json:"pdf_size,omitempty"`
}

func (c Course) IsPro() bool {
	return c.AccessType == AccessPro
}

// SortedLessons returns the lessons by ascending Order. Lesson indexes refer to this order.
func (c Course) SortedLessons() []Lesson {
	lessons := make([]Lesson, len(c.Lessons))
	copy(lessons, c.Lessons)
	sort.SliceStable(lessons, func(i, j int) bool { return lessons[i].Order < lessons[j].Order })
	return lessons
}

// Lesson returns the lesson at `index` in SortedLessons.
func (c Course) Lesson(index int) (Lesson, bool) {
	lessons := c.SortedLessons()
	if index < 0 || index >= len(lessons) {
		return Lesson{}, false
	}
	return lessons[index], true
}

// Host tells where the course videos are hosted, based on its first lesson.
func (c Course) Host() string {
	lessons := c.SortedLessons()
	if len(lessons) == 0 {
		return HostCustom
	}
	return DetectHost(lessons[0].VideoURL)
}

// DetectHost maps a video URL to its hosting platform.
func DetectHost(videoURL string) string {
	host := strings.ToLower(videoURL)
	if u, err := url.Parse(strings.TrimSpace(videoURL)); err == nil && u.Host != "" {
		host = strings.ToLower(u.Host)
	}
	switch {
	case strings.Contains(host, "vimeo.com"):
		return HostVimeo
	case strings.Contains(host, "youtube.com"), strings.Contains(host, "youtu.be"):
		return HostYouTube
	default:
		return HostCustom
	}
}

// NewCourse contains information needed to create a new Course.
type NewCourse struct {
	Slug         string      `json:"slug" validate:"required,slug,max=120"`
	Title        string      `json:"title" validate:"required,notblank,max=200"`
	Description  string      `json:"description"`
	ThumbnailURL string      `json:"thumbnail_url" validate:"omitempty,url"`
	Category     string      `json:"category" validate:"max=80"`
	Level        string      `json:"level" validate:"max=40"`
	AccessType   string      `json:"access_type" validate:"omitempty,oneof=free pro"`
	Lessons      []NewLesson `json:"lessons" validate:"dive"`
}

type NewLesson struct {
	Title       string `json:"title" validate:"required,notblank"`
	VideoURL    string `json:"video_url" validate:"required,url"`
	Description string `json:"description"`
	Order       int    `json:"order"`
	PDFURL      string `json:"pdf_url" validate:"omitempty,url"`
	PDFSize     string `json:"pdf_size"`
}

func (nc *NewCourse) Validate(validate *validator.Validate) error {
	nc.clean()
	return validate.Struct(nc)
}

func (nc *NewCourse) clean() {
	nc.Slug = core.CleanString(nc.Slug, true /* lower */)
	nc.Title = core.CleanString(nc.Title)
	nc.Description = core.CleanString(nc.Description)
	nc.ThumbnailURL = core.CleanString(nc.ThumbnailURL)
	nc.Category = core.CleanString(nc.Category)
	nc.Level = core.CleanString(nc.Level)
	nc.AccessType = core.CleanString(nc.AccessType, true /* lower */)
	if nc.AccessType == "" {
		nc.AccessType = AccessFree
	}
	for i := range nc.Lessons {
		l := &nc.Lessons[i]
		l.Title = core.CleanString(l.Title)
		l.VideoURL = core.CleanString(l.VideoURL)
		l.Description = core.CleanString(l.Description)
		l.PDFURL = core.CleanString(l.PDFURL)
		l.PDFSize = core.CleanString(l.PDFSize)
	}
}

func (nc NewCourse) lessons() []Lesson {
	lessons := make([]Lesson, 0, len(nc.Lessons))
	for i, l := range nc.Lessons {
		order := l.Order
		if order == 0 {
			order = i + 1
		}
		lessons = append(lessons, Lesson{
			Title:       l.Title,
			VideoURL:    l.VideoURL,
			Description: l.Description,
			Order:       order,
			PDFURL:      l.PDFURL,
			PDFSize:     l.PDFSize,
		})
	}
	return lessons
}

// UpdateCourse replaces every field of an existing Course.
type UpdateCourse = NewCourse

// LessonDownload records a lesson PDF served to a Pro user.
type LessonDownload struct {
	ID          string
	UserID      string
	CourseID    string
	LessonIndex int
	CreatedAt   time.Time
}

// PDFDownload is a lesson PDF being streamed from its upstream host.
type PDFDownload struct {
	Body          io.ReadCloser
	ContentType   string
	ContentLength string
	Disposition   string
}
