package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetGetExpire(t *testing.T) {
	ctx := context.Background()
	c := NewCache(0, 0)
	now := time.Now()
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	now = now.Add(2 * time.Minute)
	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestSetNX(t *testing.T) {
	ctx := context.Background()
	c := NewCache(0, 0)

	ok, err := c.SetNX(ctx, "k", []byte("a"), time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.SetNX(ctx, "k", []byte("b"), time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	got, _ := c.Get(ctx, "k")
	assert.Equal(t, []byte("a"), got)
}

func TestEvictsWhenFull(t *testing.T) {
	ctx := context.Background()
	c := NewCache(2, 0)

	_ = c.Set(ctx, "short", []byte("1"), time.Second)
	_ = c.Set(ctx, "forever", []byte("2"), 0)
	_ = c.Set(ctx, "new", []byte("3"), time.Hour)

	assert.Equal(t, 2, c.Count())
	_, err := c.Get(ctx, "short")
	assert.ErrorIs(t, err, ErrMiss)
	_, err = c.Get(ctx, "forever")
	assert.NoError(t, err)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	c := NewCache(0, 0)
	_ = c.Set(ctx, "k", []byte("v"), 0)
	require.NoError(t, c.Delete(ctx, "k"))
	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)
}
