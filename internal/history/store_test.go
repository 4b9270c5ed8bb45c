package history

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatbridge/config"
	"chatbridge/internal/core"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0)

	msgs, err := s.Load(ctx, "conv-1")
	require.NoError(t, err)
	assert.Empty(t, msgs)
	assert.NotNil(t, msgs)

	require.NoError(t, s.Append(ctx, "conv-1",
		core.Message{Role: core.RoleUser, Content: "Do you have oak tables?"},
		core.Message{Role: core.RoleAssistant, Content: "Yes."},
	))
	require.NoError(t, s.Append(ctx, "conv-2", core.Message{Role: core.RoleUser, Content: "other"}))

	msgs, err = s.Load(ctx, "conv-1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "Yes.", msgs[1].Content)
	assert.Equal(t, 2, s.Sessions())

	require.NoError(t, s.Clear(ctx, "conv-1"))
	msgs, err = s.Load(ctx, "conv-1")
	require.NoError(t, err)
	assert.Empty(t, msgs)
	assert.Equal(t, 1, s.Sessions())
}

func TestMemoryStore_MaxMessages(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(3)

	for _, c := range []string{"1", "2", "3", "4", "5"} {
		require.NoError(t, s.Append(ctx, "c", core.Message{Role: core.RoleUser, Content: c}))
	}

	msgs, err := s.Load(ctx, "c")
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "3", msgs[0].Content)
}

func TestMemoryStore_EmptySession(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0)

	_, err := s.Load(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidSession)
	assert.ErrorIs(t, s.Append(ctx, "", core.Message{}), ErrInvalidSession)
	assert.ErrorIs(t, s.Clear(ctx, ""), ErrInvalidSession)
}

func TestNewStore(t *testing.T) {
	ctx := context.Background()

	s, err := NewStore(ctx, config.HistoryConfig{Backend: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	_, err = NewStore(ctx, config.HistoryConfig{Backend: "redis"})
	assert.Error(t, err)

	_, err = NewStore(ctx, config.HistoryConfig{Backend: "etcd"})
	assert.EqualError(t, err, "unknown history backend: etcd")

	_, err = NewStore(ctx, config.HistoryConfig{Backend: "redis", Redis: config.RedisConfig{URL: "not a url"}})
	assert.Error(t, err)
}
