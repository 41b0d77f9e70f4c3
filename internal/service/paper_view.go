package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-papers/internal/config"
	"github.com/stemsi/exstem-papers/internal/logger"
	"github.com/stemsi/exstem-papers/internal/model"
	"golang.org/x/sync/singleflight"
)

type paperQuestionLister interface {
	ListQuestionDetails(ctx context.Context, paperID uuid.UUID) ([]model.PaperQuestion, error)
}

// PaperViewBuilder renders paper views straight from the store.
type PaperViewBuilder struct {
	papers paperQuestionLister
}

// NewPaperViewBuilder creates a new PaperViewBuilder.
func NewPaperViewBuilder(papers paperQuestionLister) *PaperViewBuilder {
	return &PaperViewBuilder{papers: papers}
}

// Get joins the paper's links with the bank and strips the answer keys.
func (b *PaperViewBuilder) Get(ctx context.Context, p *model.Paper) (*model.PaperView, error) {
	details, err := b.papers.ListQuestionDetails(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("list paper questions: %w", err)
	}

	view := &model.PaperView{
		PaperID:         p.ID,
		ExamID:          p.ExamID,
		Title:           p.Title,
		DurationMinutes: p.DurationMinutes,
		TotalQuestions:  p.TotalQuestions,
		TotalScore:      p.TotalScore,
		Questions:       make([]model.QuestionForStudent, 0, len(details)),
	}
	for i := range details {
		d := &details[i]
		view.Questions = append(view.Questions, d.Question.ForStudent(d.Score, d.SortOrder))
	}
	return view, nil
}

// Warm is a no-op; nothing is stored.
func (b *PaperViewBuilder) Warm(context.Context, *model.Paper) error { return nil }

// Evict is a no-op; nothing is stored.
func (b *PaperViewBuilder) Evict(context.Context, uuid.UUID) error { return nil }

// PaperViewCache keeps rendered views of non-draft papers in Redis.
// Concurrent misses for the same paper share one load.
type PaperViewCache struct {
	source *PaperViewBuilder
	rdb    *redis.Client
	ttl    time.Duration
	sf     singleflight.Group
	log    zerolog.Logger
}

// NewPaperViewCache creates a new PaperViewCache.
func NewPaperViewCache(source *PaperViewBuilder, rdb *redis.Client, ttl time.Duration, log zerolog.Logger) *PaperViewCache {
	return &PaperViewCache{
		source: source,
		rdb:    rdb,
		ttl:    ttl,
		log:    logger.Component(log, "paper_view_cache"),
	}
}

// Get serves the view from Redis, loading and caching it on a miss.
// Draft papers change freely and always bypass the cache.
func (c *PaperViewCache) Get(ctx context.Context, p *model.Paper) (*model.PaperView, error) {
	if p.Status == model.PaperStatusDraft {
		return c.source.Get(ctx, p)
	}

	key := config.CacheKey.PaperViewKey(p.ID.String())
	if view, ok := c.lookup(ctx, key); ok {
		return view, nil
	}

	v, err, _ := c.sf.Do(key, func() (interface{}, error) {
		if view, ok := c.lookup(ctx, key); ok {
			return view, nil
		}
		view, err := c.source.Get(ctx, p)
		if err != nil {
			return nil, err
		}
		c.store(ctx, key, view)
		return view, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.PaperView), nil
}

// Warm renders the view and writes it to Redis.
func (c *PaperViewCache) Warm(ctx context.Context, p *model.Paper) error {
	view, err := c.source.Get(ctx, p)
	if err != nil {
		return err
	}
	data, err := json.Marshal(view)
	if err != nil {
		return fmt.Errorf("marshal paper view: %w", err)
	}
	key := config.CacheKey.PaperViewKey(p.ID.String())
	if err := c.rdb.Set(ctx, key, data, c.ttlWithJitter()).Err(); err != nil {
		return fmt.Errorf("cache paper view: %w", err)
	}
	return nil
}

// Evict drops the cached view.
func (c *PaperViewCache) Evict(ctx context.Context, paperID uuid.UUID) error {
	return c.rdb.Del(ctx, config.CacheKey.PaperViewKey(paperID.String())).Err()
}

func (c *PaperViewCache) lookup(ctx context.Context, key string) (*model.PaperView, bool) {
	data, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn().Err(err).Str("key", key).Msg("Paper view cache read failed")
		}
		return nil, false
	}
	var view model.PaperView
	if err := json.Unmarshal(data, &view); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("Discarding corrupt paper view")
		return nil, false
	}
	return &view, true
}

func (c *PaperViewCache) store(ctx context.Context, key string, view *model.PaperView) {
	data, err := json.Marshal(view)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, data, c.ttlWithJitter()).Err(); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("Paper view cache write failed")
	}
}

// ttlWithJitter adds up to 10% to spread expirations.
func (c *PaperViewCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	return c.ttl + time.Duration(rand.Int64N(int64(c.ttl)/10+1))
}
