//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suanfamama/atelier/internal/testutil"
)

func TestRedis_Integration(t *testing.T) {
	ctx := context.Background()

	container, err := testutil.NewRedisContainer(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	client, err := NewRedisClient(ctx, RedisConfig{Addr: container.Addr})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	c := NewRedis(client)
	require.NoError(t, c.Ping(ctx))

	var got []item
	found, err := c.Get(ctx, "collections", &got)
	require.NoError(t, err)
	assert.False(t, found)

	want := []item{{ID: 7, Title: "Urban Minimalist"}}
	require.NoError(t, c.Set(ctx, "collections", want, time.Minute))

	found, err = c.Get(ctx, "collections", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, want, got)
}
