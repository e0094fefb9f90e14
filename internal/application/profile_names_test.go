package application

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func syncSpawn(wg *sync.WaitGroup) func(func(ctx context.Context)) bool {
	return func(job func(ctx context.Context)) bool {
		wg.Add(1)
		go func() {
			defer wg.Done()
			job(context.Background())
		}()
		return true
	}
}

func TestProfileNamesLookupReturnsFallbackThenResolved(t *testing.T) {
	t.Parallel()

	var wg sync.WaitGroup
	var resolved atomic.Int32
	profiles := &fakeProfiles{names: map[string]string{"pk-bob": "  Bob  "}}
	names := newProfileNames(profiles, syncSpawn(&wg), func() { resolved.Add(1) }, zap.NewNop())

	assert.Equal(t, "bob-author", names.Lookup("pk-bob", "bob-author"))
	wg.Wait()

	assert.Equal(t, "Bob", names.Lookup("pk-bob", "bob-author"))
	assert.Equal(t, int32(1), resolved.Load())
}

func TestProfileNamesRemembersMisses(t *testing.T) {
	t.Parallel()

	var wg sync.WaitGroup
	profiles := &fakeProfiles{names: map[string]string{}}
	names := newProfileNames(profiles, syncSpawn(&wg), nil, zap.NewNop())

	assert.Equal(t, "pk-x", names.Lookup("pk-x", ""))
	wg.Wait()
	assert.Equal(t, "pk-x", names.Lookup("pk-x", ""))
	wg.Wait()

	profiles.mu.Lock()
	assert.Equal(t, 1, profiles.calls)
	profiles.mu.Unlock()
}

func TestProfileNamesRetainPrunesCache(t *testing.T) {
	t.Parallel()

	profiles := &fakeProfiles{names: map[string]string{"pk-a": "A", "pk-b": "B"}}
	names := newProfileNames(profiles, func(func(context.Context)) bool { return false }, nil, zap.NewNop())

	_, err := names.Resolve(context.Background(), "pk-a")
	require.NoError(t, err)
	_, err = names.Resolve(context.Background(), "pk-b")
	require.NoError(t, err)

	names.Retain(map[string]struct{}{"pk-a": {}})

	_, ok := names.cached("pk-a")
	assert.True(t, ok)
	_, ok = names.cached("pk-b")
	assert.False(t, ok)
}

func TestProfileNamesWithoutSourceUsesFallback(t *testing.T) {
	t.Parallel()

	names := newProfileNames(nil, func(func(context.Context)) bool {
		t.Fatal("no fetch expected without a source")
		return false
	}, nil, zap.NewNop())

	assert.Equal(t, "Alice", names.Lookup("pk-alice", "Alice"))
	_, err := names.Resolve(context.Background(), "pk-alice")
	assert.Error(t, err)
}
