// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package presenter renders a location fix in the supported output formats.
package presenter

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/vorlif/humanize"
	"github.com/vorlif/humanize/locale/de"
	"github.com/vorlif/spreak"
	"golang.org/x/text/language"

	"github.com/wneessen/geo-loc/internal/location"
)

// Format selects the output rendering.
type Format int

const (
	FormatPlain Format = iota
	FormatJSON
	FormatCSV
	FormatEnv
	FormatHuman
	FormatTemplate
)

var formatNames = map[Format]string{
	FormatPlain:    "plain",
	FormatJSON:     "json",
	FormatCSV:      "csv",
	FormatEnv:      "env",
	FormatHuman:    "human",
	FormatTemplate: "template",
}

var ErrMissingTemplate = errors.New("template format requires a template")

// ParseFormat parses a format name. An empty name selects FormatPlain.
func ParseFormat(name string) (Format, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return FormatPlain, nil
	}
	for format, formatName := range formatNames {
		if formatName == name {
			return format, nil
		}
	}
	return FormatPlain, fmt.Errorf("unknown output format %q, expected one of: plain, json, csv, env, human, template",
		name)
}

func (f Format) String() string {
	if name, ok := formatNames[f]; ok {
		return name
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// View is the presentation form of a fix. It is the data passed to user templates.
type View struct {
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	Accuracy    *float64  `json:"accuracy_m"`
	Provider    string    `json:"provider"`
	ObservedAt  time.Time `json:"timestamp"`
	HasAccuracy bool      `json:"-"`
}

// NewView converts a fix into a View.
func NewView(fix location.Fix) View {
	view := View{
		Latitude:   fix.Latitude,
		Longitude:  fix.Longitude,
		Provider:   fix.Provider,
		ObservedAt: fix.ObservedAt.UTC(),
	}
	if acc, ok := fix.AccuracyMeters(); ok {
		view.Accuracy = &acc
		view.HasAccuracy = true
	}
	return view
}

type Presenter struct {
	format    Format
	tpl       *template.Template
	localizer *spreak.Localizer
	humanizer *humanize.Humanizer
}

// Option configures the Presenter.
type Option func(*Presenter) error

// WithTemplate parses the text/template used by FormatTemplate.
func WithTemplate(text string) Option {
	return func(p *Presenter) error {
		if strings.TrimSpace(text) == "" {
			return nil
		}
		tpl, err := template.New("output").Funcs(p.templateFuncMap()).Parse(text)
		if err != nil {
			return fmt.Errorf("failed to parse output template: %w", err)
		}
		p.tpl = tpl
		return nil
	}
}

// WithLocalizer translates the labels of the human readable format.
func WithLocalizer(loc *spreak.Localizer) Option {
	return func(p *Presenter) error {
		p.localizer = loc
		return nil
	}
}

// WithLanguage selects the language of relative times.
func WithLanguage(tag language.Tag) Option {
	return func(p *Presenter) error {
		collection, err := humanize.New(humanize.WithLocale(de.New()))
		if err != nil {
			return fmt.Errorf("failed to create humanizer: %w", err)
		}
		p.humanizer = collection.CreateHumanizer(tag)
		return nil
	}
}

func New(format Format, opts ...Option) (*Presenter, error) {
	presenter := &Presenter{
		format: format,
	}
	for _, opt := range opts {
		if err := opt(presenter); err != nil {
			return nil, err
		}
	}
	if presenter.humanizer == nil {
		if err := WithLanguage(language.English)(presenter); err != nil {
			return nil, err
		}
	}
	if format == FormatTemplate && presenter.tpl == nil {
		return nil, ErrMissingTemplate
	}
	return presenter, nil
}

// Render writes the fix to w in the configured format.
func (p *Presenter) Render(w io.Writer, fix location.Fix) error {
	view := NewView(fix)
	switch p.format {
	case FormatPlain:
		_, err := fmt.Fprintf(w, "%s %s\n", formatFloat(view.Latitude), formatFloat(view.Longitude))
		return err
	case FormatJSON:
		return renderJSON(w, view)
	case FormatCSV:
		return renderCSV(w, view)
	case FormatEnv:
		return renderEnv(w, view)
	case FormatHuman:
		return p.renderHuman(w, view)
	case FormatTemplate:
		if err := p.tpl.Execute(w, view); err != nil {
			return fmt.Errorf("failed to execute output template: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unsupported output format: %s", p.format)
	}
}

func renderJSON(w io.Writer, view View) error {
	encoder := json.NewEncoder(w)
	if err := encoder.Encode(view); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

func renderCSV(w io.Writer, view View) error {
	writer := csv.NewWriter(w)
	rows := [][]string{
		{"latitude", "longitude", "accuracy_m", "provider", "timestamp"},
		{
			formatFloat(view.Latitude), formatFloat(view.Longitude), formatAccuracy(view),
			view.Provider, view.ObservedAt.Format(time.RFC3339Nano),
		},
	}
	if err := writer.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write CSV: %w", err)
	}
	return nil
}

func renderEnv(w io.Writer, view View) error {
	vars := []struct{ key, value string }{
		{"GEO_LAT", formatFloat(view.Latitude)},
		{"GEO_LON", formatFloat(view.Longitude)},
		{"GEO_ACCURACY", formatAccuracy(view)},
		{"GEO_PROVIDER", view.Provider},
		{"GEO_TIMESTAMP", view.ObservedAt.Format(time.RFC3339Nano)},
	}
	for _, v := range vars {
		if _, err := fmt.Fprintf(w, "%s=%s\n", v.key, v.value); err != nil {
			return err
		}
	}
	return nil
}

func formatFloat(val float64) string {
	return strconv.FormatFloat(val, 'f', -1, 64)
}

func formatAccuracy(view View) string {
	if view.Accuracy == nil {
		return ""
	}
	return formatFloat(*view.Accuracy)
}
