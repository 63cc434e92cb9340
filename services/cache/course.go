// Package cachesvc keeps the course catalog in Redis.
package cachesvc

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core"
	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core/course"
)

const (
	keyPrefix     = "course:"
	catalogKey    = keyPrefix + "catalog"
	scanBatchSize = 100
	defaultTTL    = 5 * time.Minute
)

// CourseCache implements course.Cache on Redis. Redis failures are logged and treated as misses.
type CourseCache struct {
	client *redis.Client
	ttl    time.Duration
	logger core.Logger
}

var _ course.Cache = (*CourseCache)(nil)

// NewCourseCache connects to Redis. It returns the no-op cache when no address is configured.
func NewCourseCache(ctx context.Context, conf core.RedisConfig, logger core.Logger) (course.Cache, error) {
	if conf.Addr == "" {
		return course.NewNoopCache(), nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     conf.Addr,
		Password: conf.Password,
		DB:       conf.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrapf(err, "connecting to redis at %s", conf.Addr)
	}
	return NewCourseCacheWithClient(client, conf.CourseCacheTTL, logger), nil
}

func NewCourseCacheWithClient(client *redis.Client, ttl time.Duration, logger core.Logger) *CourseCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &CourseCache{client: client, ttl: ttl, logger: logger}
}

func courseKey(slugOrID string) string {
	return keyPrefix + "item:" + slugOrID
}

func (c *CourseCache) get(ctx context.Context, key string, dest interface{}) bool {
	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false
	}
	if err != nil {
		c.logger.Warn(fmt.Sprintf("reading %s from cache: %v", key, err), err)
		return false
	}
	if err := json.Unmarshal(data, dest); err != nil {
		c.logger.Warn(fmt.Sprintf("decoding %s from cache: %v", key, err), err)
		_ = c.client.Del(ctx, key).Err()
		return false
	}
	return true
}

func (c *CourseCache) set(ctx context.Context, value interface{}, keys ...string) {
	data, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn(fmt.Sprintf("encoding cache value: %v", err), err)
		return
	}
	pipe := c.client.TxPipeline()
	for _, key := range keys {
		pipe.Set(ctx, key, data, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Warn(fmt.Sprintf("writing cache: %v", err), err)
	}
}

func (c *CourseCache) GetCatalog(ctx context.Context) ([]course.Course, bool) {
	var courses []course.Course
	ok := c.get(ctx, catalogKey, &courses)
	return courses, ok
}

func (c *CourseCache) SetCatalog(ctx context.Context, courses []course.Course) {
	c.set(ctx, courses, catalogKey)
}

func (c *CourseCache) GetCourse(ctx context.Context, slugOrID string) (course.Course, bool) {
	var crs course.Course
	ok := c.get(ctx, courseKey(slugOrID), &crs)
	return crs, ok
}

// SetCourse caches the course under both its ID and its slug.
func (c *CourseCache) SetCourse(ctx context.Context, crs course.Course) {
	c.set(ctx, crs, courseKey(crs.ID), courseKey(crs.Slug))
}

// Invalidate drops every cached course.
func (c *CourseCache) Invalidate(ctx context.Context) {
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, keyPrefix+"*", scanBatchSize).Result()
		if err != nil {
			c.logger.Warn(fmt.Sprintf("scanning course cache: %v", err), err)
			return
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				c.logger.Warn(fmt.Sprintf("invalidating course cache: %v", err), err)
				return
			}
		}
		if cursor = next; cursor == 0 {
			return
		}
	}
}

func (c *CourseCache) Close() error {
	return c.client.Close()
}
