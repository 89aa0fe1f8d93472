package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/infermesh/infermesh/core"
	"github.com/infermesh/infermesh/runner"
)

func TestLifecycle_GetOrCreateSingleInstanceUnderConcurrency(t *testing.T) {
	var factoryCalls int32
	reg := &runner.Registration{
		Name: "llm_runner",
		Factory: func() runner.Runner {
			atomic.AddInt32(&factoryCalls, 1)
			return newMockRunner()
		},
		Capabilities: []core.Capability{core.CapabilityTextGeneration},
	}

	l := NewLifecycle(nil)

	const callers = 16
	instances := make([]*instance, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			instances[i] = l.getOrCreate(reg)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&factoryCalls), "factory must run exactly once per name")
	for _, ins := range instances[1:] {
		assert.Same(t, instances[0], ins)
	}
}

func TestLifecycle_EnsureLoadedIdempotent(t *testing.T) {
	m := newMockRunner()
	l := NewLifecycle(nil)
	reg := &runner.Registration{
		Name:         "llm_runner",
		Factory:      func() runner.Runner { return m },
		Capabilities: []core.Capability{core.CapabilityTextGeneration},
	}
	ins := l.getOrCreate(reg)

	ins.mu.Lock()
	require.Nil(t, l.ensureLoadedLocked(context.Background(), ins, "m1", nil))
	require.Nil(t, l.ensureLoadedLocked(context.Background(), ins, "m1", nil))
	ins.mu.Unlock()

	load, _, _ := m.counts()
	assert.Equal(t, 1, load)
	assert.True(t, m.IsLoaded())
	assert.Equal(t, "m1", m.LoadedModelID())
}

func TestLifecycle_EnsureLoadedFailureClearsState(t *testing.T) {
	m := newMockRunner()
	m.loadErr = assert.AnError
	l := NewLifecycle(nil)
	reg := &runner.Registration{
		Name:         "llm_runner",
		Factory:      func() runner.Runner { return m },
		Capabilities: []core.Capability{core.CapabilityTextGeneration},
	}
	ins := l.getOrCreate(reg)

	ins.mu.Lock()
	lerr := l.ensureLoadedLocked(context.Background(), ins, "m1", nil)
	ins.mu.Unlock()

	require.NotNil(t, lerr)
	assert.Equal(t, core.ErrLoadFailed, lerr.Kind)
	assert.Empty(t, l.LoadedModels())

	// A later attempt is not wedged by the earlier failure.
	m.loadErr = nil
	ins.mu.Lock()
	require.Nil(t, l.ensureLoadedLocked(context.Background(), ins, "m1", nil))
	ins.mu.Unlock()
	assert.Equal(t, map[string]string{"llm_runner": "m1"}, l.LoadedModels())
}

func TestLifecycle_RemoveUnknownNameIsNoOp(t *testing.T) {
	l := NewLifecycle(nil)
	assert.NoError(t, l.remove(context.Background(), "ghost"))
}
