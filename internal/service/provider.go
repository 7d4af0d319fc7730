// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/wneessen/geo-loc/internal/cache"
	"github.com/wneessen/geo-loc/internal/config"
	"github.com/wneessen/geo-loc/internal/http"
	"github.com/wneessen/geo-loc/internal/location"
	"github.com/wneessen/geo-loc/internal/location/provider/corelocation"
	"github.com/wneessen/geo-loc/internal/location/provider/geoclue"
	"github.com/wneessen/geo-loc/internal/location/provider/ipapi"
	"github.com/wneessen/geo-loc/internal/logger"
)

const redisPingTimeout = time.Second

// selectProviders creates the providers available in this build. The network fallback is
// always present.
func (s *Service) selectProviders() error {
	providers := make(map[location.Selection]location.Provider)

	fallback, err := ipapi.New(http.New(s.logger), s.config.IPAPI.Endpoint, s.logger)
	if err != nil {
		return fmt.Errorf("failed to create IP provider: %w", err)
	}
	providers[location.NetworkFallback] = fallback

	if location.NativeService.Available() {
		bridge, err := corelocation.NewDefault(s.logger)
		if err != nil {
			return fmt.Errorf("failed to create CoreLocation provider: %w", err)
		}
		providers[location.NativeService] = bridge
	}

	if location.DesktopService.Available() {
		providers[location.DesktopService] = geoclue.New(
			geoclue.WithDesktopID(s.config.GeoClue.DesktopID),
			geoclue.WithAccuracyLevel(s.config.AccuracyLevel()),
			geoclue.WithLogger(s.logger),
		)
	}

	if s.config.Cache.Disable {
		s.providers = providers
		return nil
	}

	store, err := s.cacheStore()
	if err != nil {
		return err
	}
	for sel, provider := range providers {
		providers[sel] = cache.NewCachedProvider(provider, store, s.config.Cache.TTL, s.logger)
	}
	s.providers = providers
	s.logger.Debug("fix cache enabled", slog.String("backend", s.config.Cache.Backend),
		slog.Duration("ttl", s.config.Cache.TTL))
	return nil
}

func (s *Service) cacheStore() (cache.Store, error) {
	switch s.config.Cache.Backend {
	case config.CacheBackendMemory:
		return cache.NewMemoryStore(), nil
	case config.CacheBackendRedis:
		store, err := cache.NewRedisStore(cache.RedisOptions{
			Addr:     s.config.Cache.Redis.Addr,
			Password: s.config.Cache.Redis.Password,
			DB:       s.config.Cache.Redis.DB,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create redis cache: %w", err)
		}
		s.closers = append(s.closers, store)

		ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
		defer cancel()
		if err = store.Ping(ctx); err != nil {
			s.logger.Warn("redis cache unreachable, fixes will not be cached", logger.Err(err),
				slog.String("addr", s.config.Cache.Redis.Addr))
		}
		return store, nil
	default:
		store, err := cache.NewFileStore(s.config.Cache.Dir)
		if err != nil {
			s.logger.Warn("file cache unavailable, using memory cache", logger.Err(err))
			return cache.NewMemoryStore(), nil
		}
		return store, nil
	}
}
