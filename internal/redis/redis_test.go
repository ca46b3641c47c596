package redis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigOptions(t *testing.T) {
	opts, err := Config{Addr: "cache:6379", Password: "pw", DB: 2}.options()
	require.NoError(t, err)
	assert.Equal(t, "cache:6379", opts.Addr)
	assert.Equal(t, "pw", opts.Password)
	assert.Equal(t, 2, opts.DB)

	opts, err = Config{Addr: "redis://:secret@cache:6380/3", DB: 9}.options()
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 3, opts.DB)

	_, err = Config{Addr: "http://cache"}.options()
	assert.Error(t, err)
}

func TestNew_EmptyAddr(t *testing.T) {
	_, err := New(context.Background(), Config{})
	assert.ErrorContains(t, err, "empty address")
}
