package person

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"deathnote/internal/registry/models"
	id "deathnote/pkg/domain"
)

// DefaultCacheTTL bounds staleness for reads that bypass invalidation,
// such as writes applied by another process.
const DefaultCacheTTL = 30 * time.Second

// Store is the person persistence contract the cache decorates.
type Store interface {
	Create(ctx context.Context, p *models.Person) error
	FindByID(ctx context.Context, personID id.PersonID) (*models.Person, error)
	List(ctx context.Context) ([]*models.Person, error)
	ListDue(ctx context.Context, now time.Time) ([]*models.Person, error)
	Update(ctx context.Context, p *models.Person) error
	Delete(ctx context.Context, personID id.PersonID) error
}

// Cached is a read-through cache around a person store. Single-record reads
// are served from Redis when possible; every write invalidates the cached
// entry. ListDue always goes to the backing store because the scheduler
// must never act on a stale due set.
type Cached struct {
	inner  Store
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

type CachedOption func(c *Cached)

func WithCacheTTL(ttl time.Duration) CachedOption {
	return func(c *Cached) {
		c.ttl = ttl
	}
}

func WithCacheLogger(logger *slog.Logger) CachedOption {
	return func(c *Cached) {
		c.logger = logger
	}
}

func NewCached(inner Store, client *redis.Client, opts ...CachedOption) *Cached {
	c := &Cached{
		inner:  inner,
		client: client,
		ttl:    DefaultCacheTTL,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

func cacheKey(personID id.PersonID) string {
	return "person:" + personID.String()
}

func (c *Cached) Create(ctx context.Context, p *models.Person) error {
	if err := c.inner.Create(ctx, p); err != nil {
		return err
	}
	c.invalidate(ctx, p.ID)
	return nil
}

func (c *Cached) FindByID(ctx context.Context, personID id.PersonID) (*models.Person, error) {
	key := cacheKey(personID)
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var p models.Person
		if err := json.Unmarshal(payload, &p); err == nil {
			return &p, nil
		}
		// A corrupt entry is dropped and re-fetched.
		c.invalidate(ctx, personID)
	} else if !errors.Is(err, redis.Nil) {
		c.logger.WarnContext(ctx, "person cache read failed",
			"person_id", personID, "error", err)
	}

	p, err := c.inner.FindByID(ctx, personID)
	if err != nil {
		return nil, err
	}
	if payload, err := json.Marshal(p); err == nil {
		if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
			c.logger.WarnContext(ctx, "person cache write failed",
				"person_id", personID, "error", err)
		}
	}
	return p, nil
}

func (c *Cached) List(ctx context.Context) ([]*models.Person, error) {
	return c.inner.List(ctx)
}

// ListDue bypasses the cache: the scheduler decides deaths from this set.
func (c *Cached) ListDue(ctx context.Context, now time.Time) ([]*models.Person, error) {
	return c.inner.ListDue(ctx, now)
}

// Update writes through and drops the cached entry on failure as well as
// success. After a version mismatch the cache may still hold the copy that
// lost the race, and the caller's retry re-reads through FindByID, which
// must then reach the backing store.
func (c *Cached) Update(ctx context.Context, p *models.Person) error {
	err := c.inner.Update(ctx, p)
	c.invalidate(ctx, p.ID)
	return err
}

func (c *Cached) Delete(ctx context.Context, personID id.PersonID) error {
	err := c.inner.Delete(ctx, personID)
	c.invalidate(ctx, personID)
	return err
}

func (c *Cached) invalidate(ctx context.Context, personID id.PersonID) {
	if err := c.client.Del(ctx, cacheKey(personID)).Err(); err != nil {
		c.logger.WarnContext(ctx, "person cache invalidation failed",
			"person_id", personID, "error", err)
	}
}
