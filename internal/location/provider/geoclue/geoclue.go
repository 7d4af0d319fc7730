// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package geoclue implements the desktop location provider on top of the GeoClue2 D-Bus
// service.
package geoclue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/wneessen/geo-loc/internal/location"
	"github.com/wneessen/geo-loc/internal/logger"
)

const (
	busName           = "org.freedesktop.GeoClue2"
	managerPath       = dbus.ObjectPath("/org/freedesktop/GeoClue2/Manager")
	managerInterface  = "org.freedesktop.GeoClue2.Manager"
	clientInterface   = "org.freedesktop.GeoClue2.Client"
	locationInterface = "org.freedesktop.GeoClue2.Location"
	propertiesGet     = "org.freedesktop.DBus.Properties.Get"
	propertiesSet     = "org.freedesktop.DBus.Properties.Set"

	// DefaultDesktopID identifies the application towards GeoClue and its agent.
	DefaultDesktopID = "geo-loc"

	pollInterval = 500 * time.Millisecond
	stopTimeout  = time.Second
	noLocation   = dbus.ObjectPath("/")
	name         = location.TagGeoClue
)

// AccuracyLevel mirrors GClueAccuracyLevel.
type AccuracyLevel uint32

const (
	AccuracyNone         AccuracyLevel = 0
	AccuracyCountry      AccuracyLevel = 1
	AccuracyCity         AccuracyLevel = 4
	AccuracyNeighborhood AccuracyLevel = 5
	AccuracyStreet       AccuracyLevel = 6
	AccuracyExact        AccuracyLevel = 8
)

var accuracyLevels = map[string]AccuracyLevel{
	"country":      AccuracyCountry,
	"city":         AccuracyCity,
	"neighborhood": AccuracyNeighborhood,
	"street":       AccuracyStreet,
	"exact":        AccuracyExact,
}

// ParseAccuracyLevel returns the level for a configuration name. An empty name selects
// AccuracyExact.
func ParseAccuracyLevel(level string) (AccuracyLevel, error) {
	if level == "" {
		return AccuracyExact, nil
	}
	if l, ok := accuracyLevels[strings.ToLower(strings.TrimSpace(level))]; ok {
		return l, nil
	}
	return AccuracyNone, fmt.Errorf("unsupported accuracy level: %q", level)
}

func (l AccuracyLevel) String() string {
	for k, v := range accuracyLevels {
		if v == l {
			return k
		}
	}
	return "none"
}

// conn is the part of *dbus.Conn the provider talks to.
type conn interface {
	Object(dest string, path dbus.ObjectPath) dbus.BusObject
	Close() error
}

type Provider struct {
	desktopID string
	accuracy  AccuracyLevel
	logger    *logger.Logger
	connect   func(ctx context.Context) (conn, error)
}

// Option configures the Provider.
type Option func(*Provider)

// WithDesktopID sets the desktop ID announced to GeoClue.
func WithDesktopID(id string) Option {
	return func(p *Provider) {
		if id != "" {
			p.desktopID = id
		}
	}
}

// WithAccuracyLevel sets the requested accuracy level.
func WithAccuracyLevel(level AccuracyLevel) Option {
	return func(p *Provider) {
		p.accuracy = level
	}
}

// WithLogger sets the logger of the Provider.
func WithLogger(log *logger.Logger) Option {
	return func(p *Provider) {
		if log != nil {
			p.logger = log
		}
	}
}

func New(opts ...Option) *Provider {
	provider := &Provider{
		desktopID: DefaultDesktopID,
		accuracy:  AccuracyExact,
		logger:    logger.Discard(),
		connect:   connectSystemBus,
	}
	for _, opt := range opts {
		opt(provider)
	}
	return provider
}

func connectSystemBus(ctx context.Context) (conn, error) {
	return dbus.ConnectSystemBus(dbus.WithContext(ctx))
}

func (p *Provider) Name() string {
	return name
}

// Locate asks GeoClue for a single fix. The client is started, its Location property is
// polled until GeoClue publishes a location and the client is stopped again on every path.
func (p *Provider) Locate(ctx context.Context, timeout time.Duration) (fix location.Fix, err error) {
	ctx, cancel := context.WithTimeout(ctx, location.NormalizeTimeout(timeout))
	defer cancel()

	bus, err := p.connect(ctx)
	if err != nil {
		return fix, location.WrapError(location.KindServiceDisabled, name,
			fmt.Errorf("failed to connect to system bus: %w", err))
	}
	defer func() {
		if closeErr := bus.Close(); closeErr != nil {
			p.logger.Error("failed to close system bus connection", logger.Err(closeErr))
		}
	}()

	var clientPath dbus.ObjectPath
	manager := bus.Object(busName, managerPath)
	if err = manager.CallWithContext(ctx, managerInterface+".GetClient", 0).Store(&clientPath); err != nil {
		return fix, classify(ctx, location.KindServiceDisabled, "failed to get GeoClue client", err)
	}
	p.logger.Debug("obtained GeoClue client", slog.String("path", string(clientPath)))

	client := bus.Object(busName, clientPath)
	if err = setProperty(ctx, client, clientInterface, "DesktopId", p.desktopID); err != nil {
		return fix, classify(ctx, location.KindFailed, "failed to set desktop id", err)
	}
	if err = setProperty(ctx, client, clientInterface, "RequestedAccuracyLevel", uint32(p.accuracy)); err != nil {
		return fix, classify(ctx, location.KindFailed, "failed to set requested accuracy level", err)
	}
	if err = client.CallWithContext(ctx, clientInterface+".Start", 0).Err; err != nil {
		return fix, classify(ctx, location.KindFailed, "failed to start GeoClue client", err)
	}
	defer p.stop(ctx, client)

	path, err := p.awaitLocation(ctx, client)
	if err != nil {
		return fix, err
	}
	return p.readLocation(ctx, bus.Object(busName, path))
}

// stop releases the client. Failures are only logged.
func (p *Provider) stop(ctx context.Context, client dbus.BusObject) {
	ctxStop, cancelStop := context.WithTimeout(context.WithoutCancel(ctx), stopTimeout)
	defer cancelStop()
	if err := client.CallWithContext(ctxStop, clientInterface+".Stop", 0).Err; err != nil {
		p.logger.Warn("failed to stop GeoClue client", logger.Err(err))
	}
}

func (p *Provider) awaitLocation(ctx context.Context, client dbus.BusObject) (dbus.ObjectPath, error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		prop, err := getProperty(ctx, client, clientInterface, "Location")
		if err != nil {
			return "", classify(ctx, location.KindFailed, "failed to read client location", err)
		}
		if ctx.Err() != nil {
			return "", contextError(ctx)
		}
		if path, ok := prop.Value().(dbus.ObjectPath); ok && path.IsValid() && path != noLocation {
			return path, nil
		}

		select {
		case <-ctx.Done():
			return "", contextError(ctx)
		case <-ticker.C:
		}
	}
}

func (p *Provider) readLocation(ctx context.Context, obj dbus.BusObject) (location.Fix, error) {
	lat, err := floatProperty(ctx, obj, "Latitude")
	if err != nil {
		return location.Fix{}, classify(ctx, location.KindFailed, "failed to read latitude", err)
	}
	lon, err := floatProperty(ctx, obj, "Longitude")
	if err != nil {
		return location.Fix{}, classify(ctx, location.KindFailed, "failed to read longitude", err)
	}
	acc, err := floatProperty(ctx, obj, "Accuracy")
	if err != nil {
		p.logger.Debug("GeoClue location has no accuracy", logger.Err(err))
		acc = -1
	}

	observed := time.Now()
	if prop, err := getProperty(ctx, obj, locationInterface, "Timestamp"); err == nil {
		if ts, ok := parseTimestamp(prop); ok {
			observed = ts
		}
	}

	if ctx.Err() != nil {
		return location.Fix{}, contextError(ctx)
	}

	fix := location.NewFix(lat, lon, name, observed).WithAccuracy(acc)
	if err = fix.Validate(); err != nil {
		return location.Fix{}, location.WrapError(location.KindFailed, name, err)
	}
	return fix, nil
}

func floatProperty(ctx context.Context, obj dbus.BusObject, property string) (float64, error) {
	prop, err := getProperty(ctx, obj, locationInterface, property)
	if err != nil {
		return 0, err
	}
	value, ok := prop.Value().(float64)
	if !ok {
		return 0, fmt.Errorf("property %s has unexpected type %s", property, prop.Signature())
	}
	return value, nil
}

// getProperty reads a property bounded by ctx. BusObject.GetProperty has no context.
func getProperty(ctx context.Context, obj dbus.BusObject, iface, property string) (dbus.Variant, error) {
	var value dbus.Variant
	err := obj.CallWithContext(ctx, propertiesGet, 0, iface, property).Store(&value)
	return value, err
}

func setProperty(ctx context.Context, obj dbus.BusObject, iface, property string, value any) error {
	return obj.CallWithContext(ctx, propertiesSet, 0, iface, property, dbus.MakeVariant(value)).Err
}

// parseTimestamp converts the (tt) Timestamp property, seconds and microseconds since the
// Unix epoch.
func parseTimestamp(prop dbus.Variant) (time.Time, bool) {
	fields, ok := prop.Value().([]any)
	if !ok || len(fields) != 2 {
		return time.Time{}, false
	}
	sec, ok := fields[0].(uint64)
	if !ok {
		return time.Time{}, false
	}
	usec, ok := fields[1].(uint64)
	if !ok || sec == 0 {
		return time.Time{}, false
	}
	return time.Unix(int64(sec), int64(usec)*int64(time.Microsecond)).UTC(), true
}

// classify maps a D-Bus failure to the location error taxonomy. fallback is used for errors
// that are neither an authorization failure nor caused by the deadline.
func classify(ctx context.Context, fallback location.Kind, reason string, err error) error {
	if ctx.Err() != nil {
		return contextError(ctx)
	}
	if isAuthorizationError(dbusErrorName(err)) {
		return location.WrapError(location.KindAuthorizationDenied, name, fmt.Errorf("%s: %w", reason, err))
	}
	return location.WrapError(fallback, name, fmt.Errorf("%s: %w", reason, err))
}

func dbusErrorName(err error) string {
	var dbusErr dbus.Error
	if errors.As(err, &dbusErr) {
		return dbusErr.Name
	}
	var dbusErrPtr *dbus.Error
	if errors.As(err, &dbusErrPtr) && dbusErrPtr != nil {
		return dbusErrPtr.Name
	}
	return ""
}

func isAuthorizationError(errName string) bool {
	if errName == "" {
		return false
	}
	return strings.HasSuffix(errName, ".AccessDenied") || strings.HasSuffix(errName, ".NotAuthorized")
}

func contextError(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return location.NewError(location.KindTimeout, name, "")
	}
	return location.WrapError(location.KindFailed, name, ctx.Err())
}
