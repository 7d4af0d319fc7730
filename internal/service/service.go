// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package service wires configuration, providers and presentation into a single geo-loc run.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/vorlif/spreak"
	"golang.org/x/text/language"

	"github.com/wneessen/geo-loc/internal/config"
	"github.com/wneessen/geo-loc/internal/i18n"
	"github.com/wneessen/geo-loc/internal/location"
	"github.com/wneessen/geo-loc/internal/location/provider/geoclue"
	"github.com/wneessen/geo-loc/internal/logger"
	"github.com/wneessen/geo-loc/internal/orchestrator"
	"github.com/wneessen/geo-loc/internal/presenter"
)

type Service struct {
	config    *config.Config
	logger    *logger.Logger
	localizer *spreak.Localizer
	presenter *presenter.Presenter
	providers map[location.Selection]location.Provider
	closers   []io.Closer

	agentRunning func(context.Context) (bool, error)
}

func New(conf *config.Config, log *logger.Logger, loc *spreak.Localizer) (*Service, error) {
	if conf == nil {
		return nil, errors.New("config is required")
	}
	if log == nil {
		log = logger.Discard()
	}

	tag, err := i18n.Tag(conf.Locale)
	if err != nil {
		tag = language.English
	}
	pres, err := presenter.New(conf.OutputFormat(),
		presenter.WithTemplate(conf.Template),
		presenter.WithLocalizer(loc),
		presenter.WithLanguage(tag),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create presenter: %w", err)
	}

	service := &Service{
		config:       conf,
		logger:       log,
		localizer:    loc,
		presenter:    pres,
		agentRunning: geoclue.AgentRunning,
	}
	if err = service.selectProviders(); err != nil {
		return nil, errors.Join(err, service.Close())
	}
	return service, nil
}

// Run acquires one fix and writes it to stdout. Diagnostics go to stderr.
func (s *Service) Run(ctx context.Context, stdout, stderr io.Writer) error {
	orch := orchestrator.New(s.providers,
		orchestrator.WithDiagnostics(stderr),
		orchestrator.WithLocalizer(s.localizer),
		orchestrator.WithLogger(s.logger),
	)

	requested := s.config.Selection()
	if s.config.Verbose && orch.Resolve(requested) == location.DesktopService {
		s.diagnoseAgent(ctx, stderr)
	}

	fix, err := orch.Acquire(ctx, requested, s.config.Timeout, s.config.Verbose)
	if err != nil {
		return err
	}
	s.logger.Debug("location acquired", slog.String("fix", fix.String()))

	if err = s.presenter.Render(stdout, fix); err != nil {
		return fmt.Errorf("failed to render location: %w", err)
	}
	return nil
}

// Close releases the resources held by the providers.
func (s *Service) Close() error {
	var errs []error
	for _, closer := range s.closers {
		if err := closer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

func (s *Service) diagnoseAgent(ctx context.Context, w io.Writer) {
	running, err := s.agentRunning(ctx)
	if err != nil {
		s.diag(w, "failed to check for a GeoClue agent: %s", err)
		return
	}
	s.diag(w, "GeoClue agent is running: %t", running)
}

func (s *Service) diag(w io.Writer, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if s.localizer != nil {
		msg = s.localizer.Getf(format, args...)
	}
	if _, err := fmt.Fprintln(w, "geo-loc: "+msg); err != nil {
		s.logger.Error("failed to write diagnostics", logger.Err(err))
	}
}
