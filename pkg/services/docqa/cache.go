package docqa

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"invoice-scan/pkg/models"
)

// Cache stores answers for an image and question set.
type Cache interface {
	Get(ctx context.Context, key string) (models.Answers, bool, error)
	Set(ctx context.Context, key string, answers models.Answers) error
}

// RedisCache keeps answers as JSON strings with a TTL.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, key string) (models.Answers, bool, error) {
	b, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var a models.Answers
	if err := json.Unmarshal(b, &a); err != nil {
		return nil, false, err
	}
	return a, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, answers models.Answers) error {
	b, err := json.Marshal(answers)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, b, c.ttl).Err()
}

// cacheKey is docqa:<model>:<image sha256>:<question set sha256 prefix>.
func cacheKey(model string, image []byte, questions []string) string {
	img := sha256.Sum256(image)
	qs := sha256.Sum256([]byte(strings.Join(questions, "\n")))
	return "docqa:" + model + ":" + hex.EncodeToString(img[:]) + ":" + hex.EncodeToString(qs[:8])
}
