// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package ipapi implements the network fallback provider. It derives a coarse location from
// the public IP address of the host through the ip-api.com JSON endpoint.
package ipapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/wneessen/geo-loc/internal/http"
	"github.com/wneessen/geo-loc/internal/location"
	"github.com/wneessen/geo-loc/internal/logger"
)

const (
	// DefaultEndpoint is queried when no endpoint is configured.
	DefaultEndpoint = "http://ip-api.com/json"

	name       = location.TagIP
	statusFail = "fail"
)

// APIResult is the subset of the ip-api.com response the provider evaluates. Coordinates
// are pointers so a missing field can be told apart from 0.
type APIResult struct {
	Status    string   `json:"status,omitempty"`
	Message   string   `json:"message,omitempty"`
	Country   string   `json:"country,omitempty"`
	City      string   `json:"city,omitempty"`
	Latitude  *float64 `json:"lat"`
	Longitude *float64 `json:"lon"`
	Query     string   `json:"query,omitempty"`
}

type Provider struct {
	http     *http.Client
	endpoint string
	logger   *logger.Logger
	now      func() time.Time
}

// New returns the fallback provider. An empty endpoint selects DefaultEndpoint.
func New(client *http.Client, endpoint string, log *logger.Logger) (*Provider, error) {
	if client == nil {
		return nil, errors.New("http client is required")
	}
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Provider{
		http:     client,
		endpoint: endpoint,
		logger:   log,
		now:      time.Now,
	}, nil
}

func (p *Provider) Name() string {
	return name
}

// Locate performs exactly one lookup. Every failure is reported as a network error.
func (p *Provider) Locate(ctx context.Context, timeout time.Duration) (location.Fix, error) {
	timeout = location.NormalizeTimeout(timeout)

	result := new(APIResult)
	if _, err := p.http.GetWithTimeout(ctx, p.endpoint, result, nil, nil, timeout); err != nil {
		return location.Fix{}, location.WrapError(location.KindNetwork, name,
			fmt.Errorf("failed to get geolocation data from API: %w", err))
	}
	if result.Status == statusFail {
		reason := result.Message
		if reason == "" {
			reason = "lookup failed"
		}
		return location.Fix{}, location.NewError(location.KindNetwork, name, reason)
	}
	if result.Latitude == nil || result.Longitude == nil {
		return location.Fix{}, location.NewError(location.KindNetwork, name, "response is missing coordinates")
	}

	fix := location.NewFix(location.Truncate(*result.Latitude, location.TruncPrecision),
		location.Truncate(*result.Longitude, location.TruncPrecision), name, p.now())
	if err := fix.Validate(); err != nil {
		return location.Fix{}, location.WrapError(location.KindNetwork, name, err)
	}
	p.logger.Debug("resolved location from IP address", slog.String("city", result.City),
		slog.String("country", result.Country))

	return fix, nil
}
