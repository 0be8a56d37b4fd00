package reasoning

import (
	"sync"
)

// DefaultMemoryBudgetMB is the budget used when none is configured.
const DefaultMemoryBudgetMB = 512

// ResourceManager tracks memory reservations against a fixed budget.
// The sum of allocations never exceeds the budget.
type ResourceManager struct {
	mu          sync.Mutex
	maxMB       int
	allocations map[string]int
}

func NewResourceManager(maxMB int) *ResourceManager {
	if maxMB < 0 {
		maxMB = 0
	}
	return &ResourceManager{maxMB: maxMB, allocations: make(map[string]int)}
}

func (m *ResourceManager) allocatedLocked() int {
	total := 0
	for _, mb := range m.allocations {
		total += mb
	}
	return total
}

// AllocateMemory adds mb to the component's reservation if it fits.
func (m *ResourceManager) AllocateMemory(component string, mb int) bool {
	if mb < 0 {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.allocatedLocked()+mb > m.maxMB {
		return false
	}
	m.allocations[component] += mb
	return true
}

// ReleaseMemory returns up to mb of the component's reservation and reports
// how much was released.
func (m *ResourceManager) ReleaseMemory(component string, mb int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	held := m.allocations[component]
	if mb > held {
		mb = held
	}
	if mb <= 0 {
		return 0
	}
	if held == mb {
		delete(m.allocations, component)
	} else {
		m.allocations[component] = held - mb
	}
	return mb
}

// Reallocate replaces the component's reservation with mb in one step.
// On failure the old reservation stays.
func (m *ResourceManager) Reallocate(component string, mb int) bool {
	if mb < 0 {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.allocatedLocked()-m.allocations[component]+mb > m.maxMB {
		return false
	}
	if mb == 0 {
		delete(m.allocations, component)
	} else {
		m.allocations[component] = mb
	}
	return true
}

func (m *ResourceManager) AvailableMemory() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxMB - m.allocatedLocked()
}

func (m *ResourceManager) MaxMemory() int {
	return m.maxMB
}

// Allocations returns a copy of the current reservations.
func (m *ResourceManager) Allocations() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int, len(m.allocations))
	for k, v := range m.allocations {
		out[k] = v
	}
	return out
}

// ResourceSnapshot is a consistent view of the manager.
type ResourceSnapshot struct {
	MaxMB       int            `json:"max_mb"`
	AllocatedMB int            `json:"allocated_mb"`
	AvailableMB int            `json:"available_mb"`
	Allocations map[string]int `json:"allocations"`
}

func (m *ResourceManager) Snapshot() ResourceSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	allocs := make(map[string]int, len(m.allocations))
	for k, v := range m.allocations {
		allocs[k] = v
	}
	used := m.allocatedLocked()
	return ResourceSnapshot{
		MaxMB:       m.maxMB,
		AllocatedMB: used,
		AvailableMB: m.maxMB - used,
		Allocations: allocs,
	}
}
