package session

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"browserctl/internal/config"
	"browserctl/pkg/models"
)

const redisKeyPrefix = "browserctl:session:"

// RedisPersister mirrors Session writes to Redis so sessions survive a
// process restart when cfg.Session.Persist is enabled.
type RedisPersister struct {
	client *redis.Client
}

// NewRedisPersister builds a client from cfg.Redis and verifies
// connectivity with a single PING.
func NewRedisPersister(ctx context.Context, cfg config.RedisConfig) (*RedisPersister, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	opts.DB = cfg.DB

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &RedisPersister{client: client}, nil
}

func (p *RedisPersister) Save(ctx context.Context, sess *models.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	ttl := sess.ExpiresAt.Sub(sess.CreatedAt)
	return p.client.Set(ctx, redisKeyPrefix+sess.ID, data, ttl).Err()
}

func (p *RedisPersister) Delete(ctx context.Context, id string) error {
	return p.client.Del(ctx, redisKeyPrefix+id).Err()
}

func (p *RedisPersister) LoadAll(ctx context.Context) ([]*models.Session, error) {
	var sessions []*models.Session

	iter := p.client.Scan(ctx, 0, redisKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		data, err := p.client.Get(ctx, iter.Val()).Bytes()
		if err != nil {
			continue
		}
		var sess models.Session
		if err := json.Unmarshal(data, &sess); err != nil {
			continue
		}
		if sess.ConnectionIDs == nil {
			sess.ConnectionIDs = make(map[string]struct{})
		}
		sessions = append(sessions, &sess)
	}
	return sessions, iter.Err()
}

// Close releases the underlying Redis connection pool.
func (p *RedisPersister) Close() error {
	return p.client.Close()
}
