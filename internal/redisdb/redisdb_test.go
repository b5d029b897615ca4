package redisdb

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseURL(t *testing.T) {
	opts, err := ParseURL("redis:6379")
	require.NoError(t, err)
	assert.Equal(t, "redis:6379", opts.Addr)

	opts, err = ParseURL("redis://:secret@cache.local:6380/2")
	require.NoError(t, err)
	assert.Equal(t, "cache.local:6380", opts.Addr)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 2, opts.DB)
}

func TestNew_Pings(t *testing.T) {
	s := miniredis.RunT(t)

	client, err := New(context.Background(), s.Addr())
	require.NoError(t, err)
	defer client.Close()

	assert.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
	got, err := s.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}

func TestNew_Unreachable(t *testing.T) {
	s := miniredis.RunT(t)
	addr := s.Addr()
	s.Close()

	_, err := New(context.Background(), addr)
	assert.Error(t, err)
}
