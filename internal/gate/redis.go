// Package gate holds dispatch gates that keep their claims outside the task
// store.
package gate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/sandeepkv93/remindd/internal/model"
)

const DefaultPrefix = "remindd:claim"

// Redis claims a (task, revision, kind) slot with SET NX. The key embeds the
// schedule revision, so a deadline edit produces fresh keys and old claims
// simply age out.
type Redis struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
	owner  string
}

type RedisOption func(*Redis)

func WithPrefix(prefix string) RedisOption {
	return func(r *Redis) {
		if prefix != "" {
			r.prefix = prefix
		}
	}
}

// WithTTL bounds how long claims are kept. Zero keeps them forever.
func WithTTL(ttl time.Duration) RedisOption {
	return func(r *Redis) { r.ttl = ttl }
}

// WithOwner sets the value stored under each claim key.
func WithOwner(owner string) RedisOption {
	return func(r *Redis) {
		if owner != "" {
			r.owner = owner
		}
	}
}

func NewRedis(client redis.Cmdable, opts ...RedisOption) (*Redis, error) {
	if client == nil {
		return nil, errors.New("gate: nil redis client")
	}
	g := &Redis{
		client: client,
		prefix: DefaultPrefix,
		owner:  uuid.NewString(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

func (g *Redis) Key(claim model.Claim) string {
	return fmt.Sprintf("%s:%s:%d:%s", g.prefix, claim.TaskID, claim.Revision, claim.Kind)
}

func (g *Redis) TryClaim(ctx context.Context, claim model.Claim) (bool, error) {
	if err := claim.Validate(); err != nil {
		return false, err
	}
	ok, err := g.client.SetNX(ctx, g.Key(claim), g.owner, g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("gate: claim %s: %w", g.Key(claim), err)
	}
	return ok, nil
}

// Holder returns the owner token stored for claim, or "" when unclaimed.
func (g *Redis) Holder(ctx context.Context, claim model.Claim) (string, error) {
	v, err := g.client.Get(ctx, g.Key(claim)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("gate: read %s: %w", g.Key(claim), err)
	}
	return v, nil
}
