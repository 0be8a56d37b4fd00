package reasoning

import (
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"multiverse-spatial/internal/scenegraph"
	"multiverse-spatial/internal/spatial"
)

func TestResourceManagerAllocateRelease(t *testing.T) {
	m := NewResourceManager(100)
	assert.True(t, m.AllocateMemory("a", 60))
	assert.False(t, m.AllocateMemory("b", 41))
	assert.True(t, m.AllocateMemory("b", 40))
	assert.Equal(t, 0, m.AvailableMemory())
	assert.False(t, m.AllocateMemory("c", 1))
	assert.False(t, m.AllocateMemory("c", -1))

	assert.Equal(t, 40, m.ReleaseMemory("b", 50), "release is capped at the reservation")
	assert.Equal(t, 0, m.ReleaseMemory("ghost", 10))
	assert.Equal(t, map[string]int{"a": 60}, m.Allocations())

	assert.False(t, m.Reallocate("a", 101))
	assert.Equal(t, 60, m.Allocations()["a"])
	assert.True(t, m.Reallocate("a", 100))
	assert.True(t, m.Reallocate("a", 0))
	assert.Empty(t, m.Allocations())
	assert.Equal(t, 100, m.MaxMemory())
}

func TestResourceManagerNeverExceedsBudget(t *testing.T) {
	const budget = 64
	m := NewResourceManager(budget)
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(int64(w)))
			component := fmt.Sprintf("worker-%d", w)
			for i := 0; i < 500; i++ {
				switch rng.Intn(3) {
				case 0:
					m.AllocateMemory(component, rng.Intn(20))
				case 1:
					m.ReleaseMemory(component, rng.Intn(20))
				default:
					m.Reallocate(component, rng.Intn(20))
				}
				snap := m.Snapshot()
				assert.LessOrEqual(t, snap.AllocatedMB, budget)
				assert.Equal(t, budget-snap.AllocatedMB, snap.AvailableMB)
			}
		}(w)
	}
	wg.Wait()

	total := 0
	for _, mb := range m.Allocations() {
		total += mb
	}
	assert.LessOrEqual(t, total, budget)
}

func TestSetResourceTier(t *testing.T) {
	e := newTestEngine(t, newTestGraph(t))

	assert.ErrorIs(t, e.SetResourceTier(6), ErrInvalidTier)
	assert.ErrorIs(t, e.SetResourceTier(-1), ErrInvalidTier)
	assert.Equal(t, 5, e.Tier())

	before := len(e.History())
	require.NoError(t, e.SetResourceTier(5))
	assert.Len(t, e.History(), before, "same tier is a no-op")

	require.NoError(t, e.SetResourceTier(2))
	assert.Equal(t, 2, e.Tier())
	assert.Equal(t, "balanced", e.Profile().Name)
	assert.Equal(t, 32, e.Resources().Allocations()[componentName])
	assert.Equal(t, "set_resource_tier", e.History()[len(e.History())-1].Operation)
}

func TestTierDegradesToBudget(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MemoryBudgetMB = 40
	e := NewEngine(newTestGraph(t), cfg, zaptest.NewLogger(t))
	assert.Equal(t, 2, e.Tier())

	err := e.SetResourceTier(4)
	assert.ErrorIs(t, err, ErrResourceExhausted)
	assert.Equal(t, 2, e.Tier(), "previous tier is kept")
	assert.Equal(t, 32, e.Resources().Allocations()[componentName])

	require.NoError(t, e.SetResourceTier(0))
	assert.Equal(t, 8, e.Resources().Allocations()[componentName])
}

func TestEnginesShareResourceManager(t *testing.T) {
	shared := NewResourceManager(300)
	cfg := DefaultConfig()
	cfg.Resources = shared

	first := NewEngine(newTestGraph(t), cfg, zaptest.NewLogger(t))
	cfg.Component = "replica"
	second := NewEngine(newTestGraph(t), cfg, zaptest.NewLogger(t))
	assert.Equal(t, 5, first.Tier())
	assert.Equal(t, 2, second.Tier())
	assert.Equal(t, map[string]int{componentName: 256, "replica": 32}, shared.Allocations())
}

func TestTierResizesHistory(t *testing.T) {
	a := node("a", scenegraph.TypeItem, spatial.V(0, 0, 0), cube(1))
	b := node("b", scenegraph.TypeItem, spatial.V(5, 0, 0), cube(1))
	e := newTestEngine(t, newTestGraph(t, a, b))
	require.NoError(t, e.SetResourceTier(0))

	for i := 0; i < 40; i++ {
		e.AnalyzeRelationships(a, b)
	}
	hist := e.History()
	assert.Len(t, hist, 16)
	assert.Equal(t, "analyze_relationships", hist[0].Operation)
}
