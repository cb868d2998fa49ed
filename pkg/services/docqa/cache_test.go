package docqa

import (
	"context"
	"image"
	"image/color"
	"os"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoice-scan/pkg/models"
)

func solidImage(w, h int) image.Image {
	return imaging.New(w, h, color.White)
}

func TestRedisCache(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	ctx := context.Background()
	require.NoError(t, client.Ping(ctx).Err())

	cache := NewRedisCache(client, time.Minute)
	key := cacheKey("test/model", []byte(t.Name()), models.InvoiceQuestions)
	defer client.Del(ctx, key)

	_, ok, err := cache.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	want := models.Answers{models.QuestionInvoiceNumber: "INV-7"}
	require.NoError(t, cache.Set(ctx, key, want))

	got, ok, err := cache.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, want, got)

	ttl, err := client.TTL(ctx, key).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}
