// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package corelocation turns the callback based CoreLocation API into a single awaitable
// location request.
package corelocation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/wneessen/geo-loc/internal/location"
	"github.com/wneessen/geo-loc/internal/logger"
)

const name = location.TagCoreLocation

// Bridge requests one fix at a time from a Platform. It does not support overlapping
// requests; the orchestrator issues them sequentially.
type Bridge struct {
	platform Platform
	class    *DelegateClass
	logger   *logger.Logger
}

// New returns a Bridge on top of the given platform.
func New(platform Platform, log *logger.Logger) (*Bridge, error) {
	if platform == nil {
		return nil, errors.New("platform is required")
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Bridge{
		platform: platform,
		class:    RegisteredDelegateClass(),
		logger:   log,
	}, nil
}

// NewDefault returns a Bridge on top of the CoreLocation framework of this build.
func NewDefault(log *logger.Logger) (*Bridge, error) {
	platform, err := DefaultPlatform()
	if err != nil {
		return nil, err
	}
	return New(platform, log)
}

func (b *Bridge) Name() string {
	return name
}

// Locate implements location.Provider.
func (b *Bridge) Locate(ctx context.Context, timeout time.Duration) (location.Fix, error) {
	return b.Request(ctx, timeout)
}

// Request asks CoreLocation for a single fix and waits at most timeout for it. A zero or
// negative timeout is replaced by location.DefaultTimeout.
func (b *Bridge) Request(ctx context.Context, timeout time.Duration) (location.Fix, error) {
	timeout = location.NormalizeTimeout(timeout)

	if !b.platform.ServicesEnabled() {
		return location.Fix{}, location.NewError(location.KindServiceDisabled, name,
			"location services are disabled")
	}
	if status := b.platform.AuthorizationStatus(); status.Denied() {
		return location.Fix{}, location.NewError(location.KindAuthorizationDenied, name,
			"authorization status is "+status.String())
	}

	manager, err := b.platform.NewManager()
	if err != nil {
		return location.Fix{}, location.WrapError(location.KindFailed, name,
			fmt.Errorf("failed to create location manager: %w", err))
	}
	delegate := b.class.NewDelegate()
	defer func() {
		manager.Release()
		delegate.Dealloc()
	}()

	manager.SetDelegate(delegate)
	manager.RequestWhenInUseAuthorization()
	manager.StartUpdatingLocation()
	b.logger.Debug("waiting for CoreLocation fix", slog.Duration("timeout", timeout))

	ctxWait, cancelWait := context.WithTimeout(ctx, timeout)
	defer cancelWait()

	select {
	case res, ok := <-delegate.results:
		if !ok {
			return location.Fix{}, location.NewError(location.KindFailed, name, "location channel closed")
		}
		if res.failed {
			return location.Fix{}, location.NewError(location.KindFailed, name, res.failure)
		}
		return convert(res.location)
	case <-ctxWait.Done():
		manager.StopUpdatingLocation()
		if errors.Is(ctxWait.Err(), context.DeadlineExceeded) {
			return location.Fix{}, location.NewError(location.KindTimeout, name, "")
		}
		return location.Fix{}, location.WrapError(location.KindFailed, name, ctxWait.Err())
	}
}

func convert(loc NativeLocation) (location.Fix, error) {
	fix := location.NewFix(loc.Latitude, loc.Longitude, name, location.TimeFromEpochSeconds(loc.Timestamp)).
		WithAccuracy(loc.HorizontalAccuracy)
	if err := fix.Validate(); err != nil {
		return location.Fix{}, location.WrapError(location.KindFailed, name, err)
	}
	return fix, nil
}
