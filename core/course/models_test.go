package course

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectHost(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{url: "https://vimeo.com/123", want: HostVimeo},
		{url: "https://player.vimeo.com/video/123", want: HostVimeo},
		{url: "https://www.youtube.com/watch?v=abc", want: HostYouTube},
		{url: " https://youtu.be/abc ", want: HostYouTube},
		{url: "HTTPS://WWW.YOUTUBE.COM/embed/abc", want: HostYouTube},
		{url: "youtube.com/watch?v=abc", want: HostYouTube},
		{url: "https://cdn.kulmis.test/lesson.mp4", want: HostCustom},
		{url: "", want: HostCustom},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectHost(tt.url))
		})
	}
}

func TestCourse_lessons(t *testing.T) {
	c := Course{Lessons: []Lesson{
		{Title: "Third", VideoURL: "https://youtu.be/3", Order: 3},
		{Title: "First", VideoURL: "https://vimeo.com/1", Order: 1},
		{Title: "Second", VideoURL: "https://youtu.be/2", Order: 2},
	}}

	sorted := c.SortedLessons()
	assert.Equal(t, []string{"First", "Second", "Third"}, []string{sorted[0].Title, sorted[1].Title, sorted[2].Title})
	assert.Equal(t, "Third", c.Lessons[0].Title, "the course is left untouched")

	l, ok := c.Lesson(1)
	assert.True(t, ok)
	assert.Equal(t, "Second", l.Title)
	_, ok = c.Lesson(3)
	assert.False(t, ok)
	_, ok = c.Lesson(-1)
	assert.False(t, ok)

	assert.Equal(t, HostVimeo, c.Host(), "the first lesson decides")
	assert.Equal(t, HostCustom, Course{}.Host())
}

func TestNewCourse_clean(t *testing.T) {
	nc := NewCourse{
		Slug:       " Go-Basics ",
		Title:      " Go ",
		AccessType: " ",
		Lessons: []NewLesson{
			{Title: " Intro ", VideoURL: " https://youtu.be/1 "},
			{Title: "Types", VideoURL: "https://youtu.be/2", Order: 7},
			{Title: "Funcs", VideoURL: "https://youtu.be/3"},
		},
	}
	nc.clean()
	assert.Equal(t, "go-basics", nc.Slug)
	assert.Equal(t, "Go", nc.Title)
	assert.Equal(t, AccessFree, nc.AccessType)

	lessons := nc.lessons()
	assert.Equal(t, "Intro", lessons[0].Title)
	assert.Equal(t, "https://youtu.be/1", lessons[0].VideoURL)
	assert.Equal(t, []int{1, 7, 3}, []int{lessons[0].Order, lessons[1].Order, lessons[2].Order})
}

func TestLessonFilename(t *testing.T) {
	assert.Equal(t, "Intro-to-Go--part-1-", lessonFilename(Lesson{Title: " Intro to Go (part 1) "}, 0))
	assert.Equal(t, "lesson-3", lessonFilename(Lesson{}, 2))
	assert.Equal(t, "v1.2-notes", lessonFilename(Lesson{Title: "v1.2 notes"}, 0))
}
