package cachesvc

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core"
	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core/course"
	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/tests"
)

func setup(t *testing.T) (*CourseCache, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	cache := NewCourseCacheWithClient(client, time.Minute, testutil.NewLogger(core.NewTestConfig()))
	t.Cleanup(func() { _ = cache.Close() })
	return cache, srv
}

var goBasics = course.Course{
	ID:         "c-1",
	Slug:       "go-basics",
	Title:      "Go Basics",
	AccessType: course.AccessFree,
	Lessons:    []course.Lesson{{Title: "Intro", VideoURL: "https://youtu.be/1", Order: 1}},
	CreatedAt:  time.Date(2024, 5, 20, 10, 0, 0, 0, time.UTC),
	UpdatedAt:  time.Date(2024, 5, 20, 10, 0, 0, 0, time.UTC),
}

func TestCourseCache_catalog(t *testing.T) {
	cache, srv := setup(t)
	ctx := context.Background()

	_, ok := cache.GetCatalog(ctx)
	assert.False(t, ok)

	cache.SetCatalog(ctx, []course.Course{goBasics})
	got, ok := cache.GetCatalog(ctx)
	require.True(t, ok)
	assert.Equal(t, []course.Course{goBasics}, got)
	assert.Equal(t, time.Minute, srv.TTL(catalogKey))

	srv.FastForward(time.Minute)
	_, ok = cache.GetCatalog(ctx)
	assert.False(t, ok, "expired")
}

func TestCourseCache_course(t *testing.T) {
	cache, srv := setup(t)
	ctx := context.Background()

	cache.SetCourse(ctx, goBasics)
	for _, key := range []string{"c-1", "go-basics"} {
		got, ok := cache.GetCourse(ctx, key)
		require.True(t, ok, key)
		assert.Equal(t, goBasics, got)
	}
	_, ok := cache.GetCourse(ctx, "rust")
	assert.False(t, ok)

	t.Run("corrupted entry is dropped", func(t *testing.T) {
		require.NoError(t, srv.Set(courseKey("broken"), "{not json"))
		_, ok := cache.GetCourse(ctx, "broken")
		assert.False(t, ok)
		assert.False(t, srv.Exists(courseKey("broken")))
	})
}

func TestCourseCache_Invalidate(t *testing.T) {
	cache, srv := setup(t)
	ctx := context.Background()

	cache.SetCatalog(ctx, []course.Course{goBasics})
	for i := 0; i < scanBatchSize+20; i++ {
		c := goBasics
		c.ID, c.Slug = "c-"+strconv.Itoa(i), "course-"+strconv.Itoa(i)
		cache.SetCourse(ctx, c)
	}
	require.NoError(t, srv.Set("session:abc", "kept"))

	cache.Invalidate(ctx)

	_, ok := cache.GetCatalog(ctx)
	assert.False(t, ok)
	_, ok = cache.GetCourse(ctx, "go-basics")
	assert.False(t, ok)
	assert.Equal(t, []string{"session:abc"}, srv.Keys())
}

func TestCourseCache_redisDown(t *testing.T) {
	cache, srv := setup(t)
	ctx := context.Background()
	cache.SetCourse(ctx, goBasics)
	srv.Close()

	_, ok := cache.GetCourse(ctx, "go-basics")
	assert.False(t, ok, "failures are misses")
	cache.SetCatalog(ctx, []course.Course{goBasics})
	cache.Invalidate(ctx)
}

func TestNewCourseCache(t *testing.T) {
	ctx := context.Background()
	logger := testutil.NewLogger(core.NewTestConfig())

	noop, err := NewCourseCache(ctx, core.RedisConfig{}, logger)
	require.NoError(t, err)
	assert.Equal(t, course.NewNoopCache(), noop)

	srv := miniredis.RunT(t)
	cache, err := NewCourseCache(ctx, core.RedisConfig{Addr: srv.Addr()}, logger)
	require.NoError(t, err)
	require.IsType(t, &CourseCache{}, cache)
	assert.Equal(t, defaultTTL, cache.(*CourseCache).ttl)
	_ = cache.(*CourseCache).Close()

	srv.Close()
	_, err = NewCourseCache(ctx, core.RedisConfig{Addr: srv.Addr()}, logger)
	assert.Error(t, err)
}

