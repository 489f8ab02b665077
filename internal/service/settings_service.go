package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"tablebook/internal/database"
	"tablebook/internal/domain"
	"tablebook/internal/repository"
	"tablebook/internal/settings"

	"github.com/rs/zerolog"
)

// SettingsService resolves settings snapshots through the cache, sqlite
// store, environment and default tiers, and applies validated updates.
type SettingsService struct {
	store         domain.Repository
	cache         domain.SettingsCache
	flatSeatBound int
	logger        *zerolog.Logger
}

func NewSettingsService(store domain.Repository, cache domain.SettingsCache, flatSeatBound int, logger *zerolog.Logger) *SettingsService {
	if flatSeatBound <= 0 {
		flatSeatBound = settings.FlatSeatBoundLegacy
	}
	return &SettingsService{
		store:         store,
		cache:         cache,
		flatSeatBound: flatSeatBound,
		logger:        logger,
	}
}

// loadStored reads the stored settings payload for a key, cache first.
// A nil payload with nil error means no stored value exists and resolution
// should fall through to the environment and default tiers.
func (s *SettingsService) loadStored(ctx context.Context, key string) ([]byte, error) {
	if s.cache != nil {
		payload, err := s.cache.Get(ctx, key)
		if err == nil {
			return payload, nil
		}
		if !errors.Is(err, repository.ErrCacheMiss) {
			s.logger.Warn().Err(err).Str("key", key).Msg("settings cache read failed")
		}
	}

	payload, err := s.store.GetSettings(ctx, key)
	if errors.Is(err, database.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, payload); err != nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("settings cache write failed")
		}
	}
	return payload, nil
}

// logFallback notes resolutions that did not come from the store. A missing
// stored value is a normal condition, not an error.
func (s *SettingsService) logFallback(key string, src settings.Source) {
	if src != settings.SourceStore {
		s.logger.Info().Str("key", key).Str("source", string(src)).Msg("settings resolved from fallback tier")
	}
}

func (s *SettingsService) ClosureSettings(ctx context.Context) (settings.ClosureSettings, settings.Source, error) {
	payload, err := s.loadStored(ctx, settings.KeyClosure)
	if err != nil {
		return settings.ClosureSettings{}, "", err
	}
	cfg, src := settings.ResolveClosure(payload)
	s.logFallback(settings.KeyClosure, src)
	return cfg, src, nil
}

func (s *SettingsService) AvailabilitySettings(ctx context.Context) (settings.AvailabilitySettings, settings.Source, error) {
	payload, err := s.loadStored(ctx, settings.KeyAvailability)
	if err != nil {
		return settings.AvailabilitySettings{}, "", err
	}
	cfg, src := settings.ResolveAvailability(payload)
	s.logFallback(settings.KeyAvailability, src)
	return cfg, src, nil
}

func (s *SettingsService) CapacityModel(ctx context.Context) (settings.CapacityModel, settings.Source, error) {
	payload, err := s.loadStored(ctx, settings.KeyCapacity)
	if err != nil {
		return settings.CapacityModel{}, "", err
	}
	model, src := settings.ResolveCapacity(payload)
	s.logFallback(settings.KeyCapacity, src)
	return model, src, nil
}

func (s *SettingsService) ConfirmationSettings(ctx context.Context) (settings.ConfirmationSettings, settings.Source, error) {
	payload, err := s.loadStored(ctx, settings.KeyConfirmation)
	if err != nil {
		return settings.ConfirmationSettings{}, "", err
	}
	cfg, src := settings.ResolveConfirmation(payload)
	s.logFallback(settings.KeyConfirmation, src)
	return cfg, src, nil
}

// storeValidated persists a settings payload and drops the cached snapshot
// so the next read picks up the new value.
func (s *SettingsService) storeValidated(ctx context.Context, key string, violations []settings.Violation, value interface{}) error {
	if len(violations) > 0 {
		return &settings.ValidationError{Violations: violations}
	}

	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}

	if err := s.store.UpsertSettings(ctx, key, payload); err != nil {
		return err
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, key); err != nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("settings cache invalidate failed")
		}
	}

	s.logger.Info().Str("key", key).Msg("settings updated")
	return nil
}

func (s *SettingsService) UpdateClosureSettings(ctx context.Context, cfg settings.ClosureSettings) error {
	return s.storeValidated(ctx, settings.KeyClosure, cfg.Validate(), cfg)
}

func (s *SettingsService) UpdateAvailabilitySettings(ctx context.Context, cfg settings.AvailabilitySettings) error {
	return s.storeValidated(ctx, settings.KeyAvailability, cfg.Validate(), cfg)
}

func (s *SettingsService) UpdateCapacityModel(ctx context.Context, m settings.CapacityModel) error {
	return s.storeValidated(ctx, settings.KeyCapacity, m.ValidateWithFlatBound(s.flatSeatBound), m)
}

func (s *SettingsService) UpdateConfirmationSettings(ctx context.Context, cfg settings.ConfirmationSettings) error {
	// Any combination of overrides is valid, including none.
	return s.storeValidated(ctx, settings.KeyConfirmation, nil, cfg)
}
