package course_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core"
	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core/course"
	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core/user"
	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/storage/database/inmem"
	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/tests"
)

// memCache is a course.Cache counting its hits.
type memCache struct {
	mu      sync.Mutex
	catalog []course.Course
	items   map[string]course.Course
	hits    int
}

func newMemCache() *memCache {
	return &memCache{items: make(map[string]course.Course)}
}

func (c *memCache) GetCatalog(context.Context) ([]course.Course, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.catalog == nil {
		return nil, false
	}
	c.hits++
	return c.catalog, true
}

func (c *memCache) SetCatalog(_ context.Context, courses []course.Course) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.catalog = courses
}

func (c *memCache) GetCourse(_ context.Context, slugOrID string) (course.Course, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	item, ok := c.items[slugOrID]
	if ok {
		c.hits++
	}
	return item, ok
}

func (c *memCache) SetCourse(_ context.Context, item course.Course) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[item.ID] = item
	c.items[item.Slug] = item
}

func (c *memCache) Invalidate(context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.catalog = nil
	c.items = make(map[string]course.Course)
}

func newService(t *testing.T, opts ...course.Option) (course.Service, *memCache, *inmemdb.DB) {
	db := inmemdb.Open()
	cache := newMemCache()
	logger := testutil.NewLogger(core.NewTestConfig())
	svc := course.NewService(inmemdb.NewTransactor(db), inmemdb.NewCourseRepository(db), cache, logger, opts...)
	return svc, cache, db
}

func newCourse(slug string) course.NewCourse {
	return course.NewCourse{
		Slug:       slug,
		Title:      "Course " + slug,
		AccessType: course.AccessPro,
		Lessons:    []course.NewLesson{{Title: "Intro", VideoURL: "https://youtu.be/1"}},
	}
}

func TestService_cache(t *testing.T) {
	svc, cache, _ := newService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, newCourse("go-basics"))
	require.NoError(t, err)

	_, err = svc.List(ctx)
	require.NoError(t, err)
	courses, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, courses, 1)
	assert.Equal(t, 1, cache.hits, "second read is cached")

	_, err = svc.Get(ctx, "go-basics")
	require.NoError(t, err)
	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, 2, cache.hits, "courses are cached by id and slug")

	_, err = svc.Create(ctx, newCourse("python"))
	require.NoError(t, err)
	courses, err = svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, courses, 2, "writes invalidate the cache")

	_, err = svc.Get(ctx, " ")
	assert.Equal(t, course.ErrNotFound, errors.Cause(err))
}

func TestService_CreateUpdateDelete(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, newCourse("go-basics"))
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, 1, created.Lessons[0].Order)

	_, err = svc.Create(ctx, newCourse("go-basics"))
	assert.Equal(t, course.ErrSlugExists, errors.Cause(err))

	uc := newCourse("go-basics")
	uc.Title = "Go, revisited"
	updated, err := svc.Update(ctx, created.ID, uc)
	require.NoError(t, err)
	assert.Equal(t, "Go, revisited", updated.Title)
	assert.True(t, created.CreatedAt.Equal(updated.CreatedAt))

	_, err = svc.Update(ctx, "ghost", uc)
	assert.Equal(t, course.ErrNotFound, errors.Cause(err))

	require.NoError(t, svc.Delete(ctx, "go-basics"))
	_, err = svc.Get(ctx, created.ID)
	assert.Equal(t, course.ErrNotFound, errors.Cause(err))
	assert.Equal(t, course.ErrNotFound, errors.Cause(svc.Delete(ctx, created.ID)))
}

func TestService_LessonPDF(t *testing.T) {
	var gotCacheControl string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCacheControl = r.Header.Get("Cache-Control")
		if r.URL.Path == "/named.pdf" {
			w.Header().Set("Content-Disposition", `inline; filename="upstream.pdf"`)
		}
		_, _ = w.Write([]byte("%PDF-1.4"))
	}))
	defer upstream.Close()

	svc, _, db := newService(t, course.WithHTTPClient(upstream.Client()))
	ctx := context.Background()

	nc := newCourse("go-basics")
	nc.Lessons = []course.NewLesson{
		{Title: "Intro to Go", VideoURL: "https://youtu.be/1", PDFURL: upstream.URL + "/intro.pdf"},
		{Title: "Named", VideoURL: "https://youtu.be/2", PDFURL: upstream.URL + "/named.pdf"},
		{Title: "Broken", VideoURL: "https://youtu.be/3", PDFURL: "http://127.0.0.1:1/unreachable.pdf"},
	}
	c, err := svc.Create(ctx, nc)
	require.NoError(t, err)

	pro := user.User{ID: "u-pro", IsPro: true}

	_, err = svc.LessonPDF(ctx, pro, c.Slug, -1)
	assert.Equal(t, course.ErrInvalidLessonIndex, errors.Cause(err))
	_, err = svc.LessonPDF(ctx, user.User{ID: "u-free"}, c.Slug, 0)
	assert.Equal(t, course.ErrProRequired, errors.Cause(err))
	_, err = svc.LessonPDF(ctx, pro, "ghost", 0)
	assert.Equal(t, course.ErrNotFound, errors.Cause(err))
	_, err = svc.LessonPDF(ctx, pro, c.Slug, 2)
	assert.Equal(t, course.ErrUpstreamPDF, errors.Cause(err))

	pdf, err := svc.LessonPDF(ctx, pro, c.ID, 0)
	require.NoError(t, err)
	body, err := io.ReadAll(pdf.Body)
	require.NoError(t, err)
	_ = pdf.Body.Close()
	assert.Equal(t, "%PDF-1.4", string(body))
	assert.Equal(t, `attachment; filename="Intro-to-Go.pdf"`, pdf.Disposition)
	assert.Equal(t, "no-store", gotCacheControl)

	pdf, err = svc.LessonPDF(ctx, pro, c.ID, 1)
	require.NoError(t, err)
	_ = pdf.Body.Close()
	assert.Equal(t, `inline; filename="upstream.pdf"`, pdf.Disposition)

	downloads := db.Downloads()
	require.Len(t, downloads, 2)
	assert.Equal(t, "u-pro", downloads[0].UserID)
	assert.Equal(t, c.ID, downloads[0].CourseID)
}
