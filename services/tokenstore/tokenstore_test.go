package tokenstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/academia/core"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	s := NewMemoryStore()
	s.nowFunc = func() time.Time { return now }

	require.NoError(t, s.Revoke(ctx, "a", now.Add(time.Hour)))
	require.NoError(t, s.Revoke(ctx, "expired", now.Add(-time.Minute)))

	tests := []struct {
		name string
		jti  string
		want bool
	}{
		{name: "revoked", jti: "a", want: true},
		{name: "already expired", jti: "expired"},
		{name: "unknown", jti: "b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.IsRevoked(ctx, tt.jti)
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	// once the token expires it is forgotten
	s.nowFunc = func() time.Time { return now.Add(2 * time.Hour) }
	got, err := s.IsRevoked(ctx, "a")
	assert.NoError(t, err)
	assert.False(t, got)

	require.NoError(t, s.Revoke(ctx, "c", now.Add(3*time.Hour)))
	assert.NotContains(t, s.revoked, "a")
}

func TestNew(t *testing.T) {
	conf := core.NewTestConfig()
	s, err := New(conf)
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	conf.Redis.URL = "redis://localhost:6379/1"
	s, err = New(conf)
	require.NoError(t, err)
	assert.IsType(t, &RedisStore{}, s)

	conf.Redis.URL = "://nope"
	_, err = New(conf)
	assert.Error(t, err)
}
