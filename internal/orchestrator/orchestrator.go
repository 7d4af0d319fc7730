// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package orchestrator sequences the platform location providers against the IP based
// fallback and turns their outcome into exactly one fix or one error.
package orchestrator

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/vorlif/spreak"

	"github.com/wneessen/geo-loc/internal/location"
	"github.com/wneessen/geo-loc/internal/logger"
)

const diagPrefix = "geo-loc: "

// Orchestrator resolves a provider selection and acquires a single fix.
type Orchestrator struct {
	providers map[location.Selection]location.Provider
	available func(location.Selection) bool
	diag      io.Writer
	localizer *spreak.Localizer
	logger    *logger.Logger
}

// Option configures the Orchestrator.
type Option func(*Orchestrator)

// WithDiagnostics sets the writer that receives remediation and progress messages.
func WithDiagnostics(w io.Writer) Option {
	return func(o *Orchestrator) {
		if w != nil {
			o.diag = w
		}
	}
}

// WithLocalizer translates the diagnostic messages.
func WithLocalizer(l *spreak.Localizer) Option {
	return func(o *Orchestrator) {
		o.localizer = l
	}
}

func WithLogger(log *logger.Logger) Option {
	return func(o *Orchestrator) {
		if log != nil {
			o.logger = log
		}
	}
}

// WithAvailability replaces the build capability query.
func WithAvailability(fn func(location.Selection) bool) Option {
	return func(o *Orchestrator) {
		if fn != nil {
			o.available = fn
		}
	}
}

// New returns an Orchestrator for the given providers. Selections without a provider are
// reported as not implemented.
func New(providers map[location.Selection]location.Provider, opts ...Option) *Orchestrator {
	orch := &Orchestrator{
		providers: make(map[location.Selection]location.Provider, len(providers)),
		available: location.Selection.Available,
		diag:      io.Discard,
		logger:    logger.Discard(),
	}
	for sel, provider := range providers {
		if provider != nil {
			orch.providers[sel] = provider
		}
	}
	for _, opt := range opts {
		opt(orch)
	}
	return orch
}

// Resolve maps Automatic to the platform provider of this build or to NetworkFallback.
// Explicit selections are returned unchanged.
func (o *Orchestrator) Resolve(requested location.Selection) location.Selection {
	if requested != location.Automatic {
		return requested
	}
	for _, sel := range []location.Selection{location.NativeService, location.DesktopService} {
		if _, ok := o.providers[sel]; ok && o.available(sel) {
			return sel
		}
	}
	return location.NetworkFallback
}

// Acquire returns exactly one fix or one error. An explicit selection is final. A failed
// platform provider is retried once against the fallback only when the request was
// Automatic. Every attempt is bounded by timeout.
func (o *Orchestrator) Acquire(ctx context.Context, requested location.Selection, timeout time.Duration,
	verbose bool,
) (location.Fix, error) {
	timeout = location.NormalizeTimeout(timeout)
	resolved := o.Resolve(requested)
	o.progress(verbose, "resolved provider %s to %s", requested, resolved)
	o.logger.Debug("acquiring location", slog.String("requested", requested.String()),
		slog.String("resolved", resolved.String()), slog.Duration("timeout", timeout))

	fix, err := o.attempt(ctx, resolved, timeout, verbose)
	if err == nil || resolved == location.NetworkFallback {
		return fix, err
	}

	denied := location.KindOf(err) == location.KindAuthorizationDenied
	if denied {
		o.remediate(resolved)
	}
	if requested != location.Automatic || !fallbackAllowed(err) || ctx.Err() != nil {
		return location.Fix{}, err
	}

	o.logger.Info("platform provider failed, falling back to IP based location",
		slog.String("provider", resolved.String()), logger.Err(err))
	if verbose || denied {
		o.write(o.tr("falling back to IP-based location..."))
	}
	return o.attempt(ctx, location.NetworkFallback, timeout, verbose)
}

func (o *Orchestrator) attempt(ctx context.Context, sel location.Selection, timeout time.Duration,
	verbose bool,
) (location.Fix, error) {
	provider, ok := o.providers[sel]
	if !ok || !o.available(sel) {
		return location.Fix{}, location.NewError(location.KindNotImplemented, sel.Tag(),
			"provider is not supported by this build")
	}

	o.progress(verbose, "requesting fix from %s (timeout %s)", provider.Name(), timeout)
	fix, err := safeLocate(ctx, provider, timeout)
	if err != nil {
		o.progress(verbose, "%s failed: %s", provider.Name(), err)
		return location.Fix{}, err
	}
	o.progress(verbose, "fix acquired from %s", provider.Name())
	return fix, nil
}

// safeLocate invokes the provider and recovers from panics. Errors outside the location
// taxonomy are reported as failures of the provider.
func safeLocate(ctx context.Context, provider location.Provider, timeout time.Duration) (fix location.Fix, err error) {
	defer func() {
		if r := recover(); r != nil {
			fix = location.Fix{}
			err = location.NewError(location.KindFailed, provider.Name(), fmt.Sprintf("provider panicked: %v", r))
		}
	}()

	fix, err = provider.Locate(ctx, timeout)
	if err != nil && location.KindOf(err) == location.KindUnknown {
		err = location.WrapError(location.KindFailed, provider.Name(), err)
	}
	return fix, err
}

func fallbackAllowed(err error) bool {
	switch location.KindOf(err) {
	case location.KindAuthorizationDenied, location.KindServiceDisabled, location.KindTimeout,
		location.KindFailed:
		return true
	default:
		return false
	}
}

func (o *Orchestrator) remediate(sel location.Selection) {
	switch sel {
	case location.NativeService:
		o.write(o.tr("permission denied - location access is disabled for this application\n\n" +
			"To enable location access:\n" +
			"1. Open System Settings\n" +
			"2. Go to Privacy & Security → Location Services\n" +
			"3. Enable Location Services\n" +
			"4. Allow location access for your terminal application"))
	default:
		o.write(o.tr("permission denied - location services disabled\n\n" +
			"To enable location access:\n" +
			"1. Open GNOME Settings (gnome-control-center)\n" +
			"2. Go to Privacy & Security → Location Services\n" +
			"3. Enable Location Services\n" +
			"4. Ensure geo-loc.desktop is installed in /usr/share/applications/"))
	}
}

func (o *Orchestrator) progress(verbose bool, format string, args ...any) {
	if !verbose {
		return
	}
	o.write(o.tr(format, args...))
}

func (o *Orchestrator) tr(format string, args ...any) string {
	if o.localizer == nil {
		if len(args) == 0 {
			return format
		}
		return fmt.Sprintf(format, args...)
	}
	if len(args) == 0 {
		return o.localizer.Get(format)
	}
	return o.localizer.Getf(format, args...)
}

func (o *Orchestrator) write(msg string) {
	if _, err := fmt.Fprintln(o.diag, diagPrefix+msg); err != nil {
		o.logger.Error("failed to write diagnostics", logger.Err(err))
	}
}
