// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package cache provides a pass-through fix cache keyed by provider name.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/wneessen/geo-loc/internal/location"
	"github.com/wneessen/geo-loc/internal/logger"
)

// DefaultTTL is used when a CachedProvider is created without a positive TTL.
const DefaultTTL = time.Minute * 10

// Store persists fixes under a key until their TTL expires.
type Store interface {
	Get(ctx context.Context, key string) (location.Fix, bool, error)
	Set(ctx context.Context, key string, fix location.Fix, ttl time.Duration) error
}

// record is the serialized form of a cached fix.
type record struct {
	Latitude   float64   `json:"lat"`
	Longitude  float64   `json:"lon"`
	Accuracy   *float64  `json:"accuracy,omitempty"`
	Provider   string    `json:"provider"`
	ObservedAt time.Time `json:"observed_at"`
	Expiry     time.Time `json:"expiry"`
}

func newRecord(fix location.Fix, expiry time.Time) record {
	rec := record{
		Latitude:   fix.Latitude,
		Longitude:  fix.Longitude,
		Provider:   fix.Provider,
		ObservedAt: fix.ObservedAt,
		Expiry:     expiry,
	}
	if acc, ok := fix.AccuracyMeters(); ok {
		rec.Accuracy = &acc
	}
	return rec
}

func (r record) fix() (location.Fix, error) {
	fix := location.NewFix(r.Latitude, r.Longitude, r.Provider, r.ObservedAt)
	if r.Accuracy != nil {
		fix = fix.WithAccuracy(*r.Accuracy)
	}
	return fix, fix.Validate()
}

func encode(fix location.Fix, expiry time.Time) ([]byte, error) {
	data, err := json.Marshal(newRecord(fix, expiry))
	if err != nil {
		return nil, fmt.Errorf("failed to encode cached fix: %w", err)
	}
	return data, nil
}

func decode(data []byte) (record, location.Fix, error) {
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, location.Fix{}, fmt.Errorf("failed to decode cached fix: %w", err)
	}
	fix, err := rec.fix()
	if err != nil {
		return rec, location.Fix{}, fmt.Errorf("cached fix is invalid: %w", err)
	}
	return rec, fix, nil
}

// CachedProvider wraps a location.Provider. Only successful fixes are stored and store
// failures never fail a lookup.
type CachedProvider struct {
	provider location.Provider
	store    Store
	ttl      time.Duration
	logger   *logger.Logger
}

func NewCachedProvider(provider location.Provider, store Store, ttl time.Duration, log *logger.Logger) *CachedProvider {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if log == nil {
		log = logger.Discard()
	}
	return &CachedProvider{
		provider: provider,
		store:    store,
		ttl:      ttl,
		logger:   log,
	}
}

func (c *CachedProvider) Name() string {
	return c.provider.Name()
}

func (c *CachedProvider) Locate(ctx context.Context, timeout time.Duration) (location.Fix, error) {
	key := c.provider.Name()

	fix, ok, err := c.store.Get(ctx, key)
	switch {
	case err != nil:
		c.logger.Warn("failed to read fix from cache", slog.String("provider", key), logger.Err(err))
	case ok:
		c.logger.Debug("using cached fix", slog.String("provider", key),
			slog.Time("observed_at", fix.ObservedAt))
		return fix, nil
	}

	fix, err = c.provider.Locate(ctx, timeout)
	if err != nil {
		return fix, err
	}
	if err = c.store.Set(ctx, key, fix, c.ttl); err != nil {
		c.logger.Warn("failed to store fix in cache", slog.String("provider", key), logger.Err(err))
	}
	return fix, nil
}
