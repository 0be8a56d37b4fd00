// internal/config/store.go

package config

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"multiverse-spatial/internal/minio"
)

// ProfilesObject — ключ объекта с переопределениями профилей в бакете.
const ProfilesObject = "tiers/profiles.yaml"

// ObjectGetter — источник объектов (MinIO или заглушка в тестах).
type ObjectGetter interface {
	GetObject(ctx context.Context, bucket, object string) ([]byte, error)
}

// Store отдаёт профили уровней: встроенные значения плюс переопределения из MinIO.
type Store struct {
	objects ObjectGetter
	bucket  string
	base    Profiles
	logger  *zap.Logger

	cacheLock sync.RWMutex
	cache     *Profiles
}

// NewStore создаёт хранилище профилей. objects может быть nil — тогда
// используются только встроенные профили.
func NewStore(objects ObjectGetter, bucket string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		objects: objects,
		bucket:  bucket,
		base:    DefaultProfiles(),
		logger:  logger,
	}
}

// Profiles возвращает актуальные профили (с кэшированием).
func (s *Store) Profiles(ctx context.Context) (Profiles, error) {
	s.cacheLock.RLock()
	if s.cache != nil {
		p := *s.cache
		s.cacheLock.RUnlock()
		return p, nil
	}
	s.cacheLock.RUnlock()

	profiles, err := s.load(ctx)
	if err != nil {
		return s.base, err
	}

	s.cacheLock.Lock()
	s.cache = &profiles
	s.cacheLock.Unlock()
	return profiles, nil
}

// Invalidate сбрасывает кэш; следующий вызов Profiles перечитает MinIO.
func (s *Store) Invalidate() {
	s.cacheLock.Lock()
	s.cache = nil
	s.cacheLock.Unlock()
}

// Watch перечитывает профили каждые interval (hot-reload) и вызывает
// onChange, если они изменились. Блокируется до отмены ctx.
func (s *Store) Watch(ctx context.Context, interval time.Duration, onChange func(Profiles)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	current, _ := s.Profiles(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Invalidate()
			next, err := s.Profiles(ctx)
			if err != nil {
				s.logger.Warn("tier profile refresh failed", zap.Error(err))
				continue
			}
			if !reflect.DeepEqual(next, current) {
				s.logger.Info("tier profiles changed")
				current = next
				onChange(next)
			}
		}
	}
}

func (s *Store) load(ctx context.Context) (Profiles, error) {
	if s.objects == nil {
		return s.base, nil
	}
	data, err := s.objects.GetObject(ctx, s.bucket, ProfilesObject)
	if err != nil {
		if errors.Is(err, minio.ErrObjectNotFound) {
			return s.base, nil // no override
		}
		s.logger.Warn("tier profile override unavailable, using defaults", zap.Error(err))
		return s.base, nil
	}

	var file overridesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return s.base, fmt.Errorf("%w: override: %v", ErrInvalidProfiles, err)
	}
	if err := validate.Struct(file); err != nil {
		return s.base, fmt.Errorf("%w: override: %v", ErrInvalidProfiles, err)
	}
	merged := Merge(s.base, file.Tiers)
	for _, p := range merged {
		if err := validate.Struct(p); err != nil {
			return s.base, fmt.Errorf("%w: tier %d: %v", ErrInvalidProfiles, p.Tier, err)
		}
	}
	return merged, nil
}
