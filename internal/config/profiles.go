// internal/config/profiles.go

package config

import (
	_ "embed"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Границы ресурсных уровней.
const (
	MinTier     = 0
	MaxTier     = 5
	DefaultTier = MaxTier
)

//go:embed profiles.yaml
var defaultProfilesYAML []byte

// ErrInvalidProfiles — набор профилей не прошёл проверку.
var ErrInvalidProfiles = errors.New("invalid tier profiles")

// TierProfile — параметры качества и стоимости одного уровня.
type TierProfile struct {
	Tier            int     `yaml:"tier" json:"tier" validate:"min=0,max=5"`
	Name            string  `yaml:"name" json:"name" validate:"required"`
	Occlusion       bool    `yaml:"occlusion" json:"occlusion"`
	Contexts        bool    `yaml:"contexts" json:"contexts"`
	MaxObstacles    int     `yaml:"max_obstacles" json:"max_obstacles" validate:"min=0"`
	MaxContexts     int     `yaml:"max_contexts" json:"max_contexts" validate:"min=0"`
	CacheCapacity   int     `yaml:"cache_capacity" json:"cache_capacity" validate:"min=0"`
	Precision       float64 `yaml:"precision" json:"precision" validate:"min=0"`
	HistoryCapacity int     `yaml:"history_capacity" json:"history_capacity" validate:"min=1"`
	MemoryMB        int     `yaml:"memory_mb" json:"memory_mb" validate:"min=0"`
}

// Profiles — полный набор уровней, индекс совпадает с номером уровня.
type Profiles [MaxTier + 1]TierProfile

type profilesFile struct {
	Tiers []TierProfile `yaml:"tiers" validate:"dive"`
}

var validate = validator.New()

// DefaultProfiles возвращает встроенные профили.
func DefaultProfiles() Profiles {
	p, err := ParseProfiles(defaultProfilesYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded tier profiles: %v", err))
	}
	return p
}

// ParseProfiles разбирает YAML с профилями. Должны быть описаны все уровни 0..5.
func ParseProfiles(data []byte) (Profiles, error) {
	var file profilesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Profiles{}, fmt.Errorf("%w: %v", ErrInvalidProfiles, err)
	}
	if err := validate.Struct(file); err != nil {
		return Profiles{}, fmt.Errorf("%w: %v", ErrInvalidProfiles, err)
	}

	var out Profiles
	seen := make(map[int]bool)
	for _, p := range file.Tiers {
		if seen[p.Tier] {
			return Profiles{}, fmt.Errorf("%w: tier %d defined twice", ErrInvalidProfiles, p.Tier)
		}
		seen[p.Tier] = true
		out[p.Tier] = p
	}
	if len(seen) != len(out) {
		return Profiles{}, fmt.Errorf("%w: expected %d tiers, got %d", ErrInvalidProfiles, len(out), len(seen))
	}
	return out, nil
}

// TierOverride — частичное переопределение уровня. Поле nil сохраняет базовое
// значение; явный 0 у лимита означает «без ограничения».
type TierOverride struct {
	Tier            int      `yaml:"tier" validate:"min=0,max=5"`
	Name            *string  `yaml:"name"`
	Occlusion       *bool    `yaml:"occlusion"`
	Contexts        *bool    `yaml:"contexts"`
	MaxObstacles    *int     `yaml:"max_obstacles"`
	MaxContexts     *int     `yaml:"max_contexts"`
	CacheCapacity   *int     `yaml:"cache_capacity"`
	Precision       *float64 `yaml:"precision"`
	HistoryCapacity *int     `yaml:"history_capacity"`
	MemoryMB        *int     `yaml:"memory_mb"`
}

type overridesFile struct {
	Tiers []TierOverride `yaml:"tiers" validate:"dive"`
}

// Merge накладывает переопределения на базовые профили. Заданные поля
// заменяют базовые, остальные не меняются; base и overrides не изменяются.
func Merge(base Profiles, overrides []TierOverride) Profiles {
	result := base
	for _, o := range overrides {
		if o.Tier < MinTier || o.Tier > MaxTier {
			continue
		}
		r := &result[o.Tier]
		set(&r.Name, o.Name)
		set(&r.Occlusion, o.Occlusion)
		set(&r.Contexts, o.Contexts)
		set(&r.MaxObstacles, o.MaxObstacles)
		set(&r.MaxContexts, o.MaxContexts)
		set(&r.CacheCapacity, o.CacheCapacity)
		set(&r.Precision, o.Precision)
		set(&r.HistoryCapacity, o.HistoryCapacity)
		set(&r.MemoryMB, o.MemoryMB)
	}
	return result
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}
