package reasoning

import (
	"fmt"

	"go.uber.org/zap"

	"multiverse-spatial/internal/config"
)

// SetResourceTier switches the engine to another quality/cost profile. The new
// profile's memory is reserved first; if it does not fit, the current tier
// stays and ErrResourceExhausted is returned. Cached results are kept.
func (e *Engine) SetResourceTier(tier int) error {
	if tier < config.MinTier || tier > config.MaxTier {
		return fmt.Errorf("%w: %d (want %d..%d)", ErrInvalidTier, tier, config.MinTier, config.MaxTier)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if tier == e.tier {
		return nil
	}
	return e.applyProfile(tier, e.profiles[tier])
}

func (e *Engine) applyProfile(tier int, p config.TierProfile) error {
	if !e.resources.Reallocate(e.component, p.MemoryMB) {
		e.logger.Warn("tier rejected: memory budget exhausted",
			zap.Int("tier", tier),
			zap.Int("required_mb", p.MemoryMB),
			zap.Int("available_mb", e.resources.AvailableMemory()))
		return fmt.Errorf("tier %d needs %d MB: %w", tier, p.MemoryMB, ErrResourceExhausted)
	}
	prev := e.tier
	e.tier = tier
	e.profile = p
	e.cache.resize(p.CacheCapacity)
	e.history.resize(p.HistoryCapacity)
	e.logger.Info("resource tier changed",
		zap.Int("from", prev), zap.Int("to", tier), zap.String("profile", p.Name))
	e.record("set_resource_tier",
		map[string]any{"tier": tier},
		map[string]any{"previous": prev, "profile": p.Name, "memory_mb": p.MemoryMB})
	return nil
}

// SetProfiles replaces the tier table and re-applies the active tier.
func (e *Engine) SetProfiles(p config.Profiles) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.applyProfile(e.tier, p[e.tier]); err != nil {
		return err
	}
	e.profiles = p
	return nil
}

// Tier returns the active tier.
func (e *Engine) Tier() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tier
}

// Profile returns the active tier profile.
func (e *Engine) Profile() config.TierProfile {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.profile
}

// Profiles returns the tier table in use.
func (e *Engine) Profiles() config.Profiles {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.profiles
}
