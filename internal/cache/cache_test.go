package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Orders int    `json:"orders"`
	Label  string `json:"label"`
}

func TestManager_SetGet(t *testing.T) {
	m := NewManager(nil, time.Minute, nil)
	defer m.Close()

	ctx := context.Background()
	require.NoError(t, m.Set(ctx, "2017-01-01_2017-12-31", payload{Orders: 42, Label: "year"}))

	var got payload
	require.NoError(t, m.Get(ctx, "2017-01-01_2017-12-31", &got))
	assert.Equal(t, payload{Orders: 42, Label: "year"}, got)
	assert.Equal(t, 1, m.Len())
}

func TestManager_Miss(t *testing.T) {
	m := NewManager(nil, time.Minute, nil)
	defer m.Close()

	var got payload
	err := m.Get(context.Background(), "absent", &got)
	assert.True(t, errors.Is(err, ErrMiss))
}

func TestManager_Expiry(t *testing.T) {
	m := NewManager(nil, 10*time.Millisecond, nil)
	defer m.Close()

	ctx := context.Background()
	require.NoError(t, m.Set(ctx, "k", payload{Orders: 1}))
	time.Sleep(20 * time.Millisecond)

	var got payload
	assert.ErrorIs(t, m.Get(ctx, "k", &got), ErrMiss)

	m.local.evictExpired(time.Now())
	assert.Equal(t, 0, m.Len())
}

func TestManager_Purge(t *testing.T) {
	m := NewManager(nil, time.Minute, nil)
	defer m.Close()

	ctx := context.Background()
	require.NoError(t, m.Set(ctx, "a", payload{}))
	require.NoError(t, m.Set(ctx, "b", payload{}))
	m.Purge()

	assert.Equal(t, 0, m.Len())
}

func TestManager_CloseTwice(t *testing.T) {
	m := NewManager(nil, time.Minute, nil)
	assert.NoError(t, m.Close())
	assert.NoError(t, m.Close())
}
