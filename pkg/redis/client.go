package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gatsis/gatsishub-backend/pkg/config"
)

const (
	keyNamespace      = "gh"
	idempotencyPrefix = "idempotency"
	rateLimitPrefix   = "rate_limit"
	counterPrefix     = "counter"
	sessionPrefix     = "session"
	verifyCodePrefix  = "verify"
	lockPrefix        = "lock"
)

var errNotInitialized = errors.New("redis client not initialized")

type cmdable interface {
	Ping(context.Context) *redis.StatusCmd
	Set(context.Context, string, any, time.Duration) *redis.StatusCmd
	Get(context.Context, string) *redis.StringCmd
	SetNX(context.Context, string, any, time.Duration) *redis.BoolCmd
	Incr(context.Context, string) *redis.IntCmd
	Expire(context.Context, string, time.Duration) *redis.BoolCmd
	Del(context.Context, ...string) *redis.IntCmd
	Publish(context.Context, string, any) *redis.IntCmd
}

// Client wraps the Redis connection behind namespaced key builders. Every
// key it writes lives under the "gh:" prefix so one instance can serve
// several environments.
type Client struct {
	store cmdable
	raw   *redis.Client
}

// Pinger exposes the health-check surface.
type Pinger interface {
	Ping(context.Context) error
}

// IdempotencyStore is the slice of the client the idempotency helpers need.
type IdempotencyStore interface {
	Get(context.Context, string) (string, error)
	SetNX(context.Context, string, any, time.Duration) (bool, error)
	IdempotencyKey(scope, id string) string
	Del(context.Context, ...string) error
}

// New connects and verifies the connection before returning.
func New(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	opts, err := buildOptions(cfg)
	if err != nil {
		return nil, err
	}
	raw := redis.NewClient(opts)
	if err := raw.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Client{store: raw, raw: raw}, nil
}

// buildOptions prefers a full URL; discrete address/password/db fields are
// the fallback, and pool/timeout settings fill in wherever the URL left
// them zero.
func buildOptions(cfg config.RedisConfig) (*redis.Options, error) {
	var opts *redis.Options
	switch {
	case cfg.URL != "":
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis url: %w", err)
		}
		opts = parsed
	case cfg.Address != "":
		opts = &redis.Options{Addr: cfg.Address, Password: cfg.Password, DB: cfg.DB}
	default:
		return nil, errors.New("redis url or address is required")
	}

	if opts.DB == 0 {
		opts.DB = cfg.DB
	}
	if opts.PoolSize == 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if opts.MinIdleConns == 0 {
		opts.MinIdleConns = cfg.MinIdleConns
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = cfg.ReadTimeout
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = cfg.WriteTimeout
	}
	return opts, nil
}

func (c *Client) ready() error {
	if c == nil || c.store == nil {
		return errNotInitialized
	}
	return nil
}

func (c *Client) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if err := c.ready(); err != nil {
		return err
	}
	return c.store.Set(ctx, key, value, ttl).Err()
}

func (c *Client) Get(ctx context.Context, key string) (string, error) {
	if err := c.ready(); err != nil {
		return "", err
	}
	return c.store.Get(ctx, key).Result()
}

func (c *Client) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if err := c.ready(); err != nil {
		return false, err
	}
	return c.store.SetNX(ctx, key, value, ttl).Result()
}

func (c *Client) Incr(ctx context.Context, key string) (int64, error) {
	if err := c.ready(); err != nil {
		return 0, err
	}
	return c.store.Incr(ctx, key).Result()
}

// IncrWithTTL increments and stamps the TTL when this increment created the
// key, so a counter window starts at its first hit.
func (c *Client) IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := c.Incr(ctx, key)
	if err != nil {
		return 0, err
	}
	if ttl > 0 && count == 1 {
		if _, err := c.store.Expire(ctx, key, ttl).Result(); err != nil {
			return count, err
		}
	}
	return count, nil
}

// FixedWindowAllow counts a hit against a fixed window and reports whether
// the scope is still under its limit.
func (c *Client) FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error) {
	count, err := c.IncrWithTTL(ctx, c.RateLimitKey(scope), window)
	if err != nil {
		return false, 0, err
	}
	return count <= limit, count, nil
}

func (c *Client) Del(ctx context.Context, keys ...string) error {
	if err := c.ready(); err != nil {
		return err
	}
	return c.store.Del(ctx, keys...).Err()
}

// Publish sends a payload on the given pub/sub channel.
func (c *Client) Publish(ctx context.Context, channel string, payload any) error {
	if err := c.ready(); err != nil {
		return err
	}
	return c.store.Publish(ctx, channel, payload).Err()
}

// Subscribe opens a pub/sub subscription. Callers own the returned
// subscription and must Close it.
func (c *Client) Subscribe(ctx context.Context, channels ...string) (*redis.PubSub, error) {
	if c == nil || c.raw == nil {
		return nil, errNotInitialized
	}
	return c.raw.Subscribe(ctx, channels...), nil
}

func (c *Client) Ping(ctx context.Context) error {
	if err := c.ready(); err != nil {
		return err
	}
	return c.store.Ping(ctx).Err()
}

func (c *Client) Close() error {
	if c == nil || c.raw == nil {
		return nil
	}
	return c.raw.Close()
}

// Key builders. All keys share the "gh" namespace and colon-joined parts.

func (c *Client) IdempotencyKey(scope, id string) string {
	return c.key(idempotencyPrefix, scope, id)
}

func (c *Client) RateLimitKey(scope string) string {
	return c.key(rateLimitPrefix, scope)
}

func (c *Client) CounterKey(name string) string {
	return c.key(counterPrefix, name)
}

func (c *Client) LockKey(name string) string {
	return c.key(lockPrefix, name)
}

func (c *Client) AccessSessionKey(accessID string) string {
	return c.key(sessionPrefix, "access", accessID)
}

func (c *Client) RefreshTokenKey(actorKind, actorID string) string {
	return c.key(sessionPrefix, actorKind, actorID)
}

func (c *Client) VerificationCodeKey(actorKind, actorID string) string {
	return c.key(verifyCodePrefix, actorKind, actorID)
}

// Session and second-factor helpers bind the key builders to their stores.

func (c *Client) StoreRefreshToken(ctx context.Context, actorKind, actorID, token string, ttl time.Duration) error {
	return c.Set(ctx, c.RefreshTokenKey(actorKind, actorID), token, ttl)
}

func (c *Client) GetRefreshToken(ctx context.Context, actorKind, actorID string) (string, error) {
	return c.Get(ctx, c.RefreshTokenKey(actorKind, actorID))
}

func (c *Client) RevokeRefreshToken(ctx context.Context, actorKind, actorID string) error {
	return c.Del(ctx, c.RefreshTokenKey(actorKind, actorID))
}

func (c *Client) StoreVerificationCode(ctx context.Context, actorKind, actorID, code string, ttl time.Duration) error {
	return c.Set(ctx, c.VerificationCodeKey(actorKind, actorID), code, ttl)
}

func (c *Client) GetVerificationCode(ctx context.Context, actorKind, actorID string) (string, error) {
	return c.Get(ctx, c.VerificationCodeKey(actorKind, actorID))
}

// ConsumeVerificationCode deletes the stored code; codes are single-use.
func (c *Client) ConsumeVerificationCode(ctx context.Context, actorKind, actorID string) error {
	return c.Del(ctx, c.VerificationCodeKey(actorKind, actorID))
}

func (c *Client) key(parts ...string) string {
	joined := []string{keyNamespace}
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			joined = append(joined, trimmed)
		}
	}
	return strings.Join(joined, ":")
}
