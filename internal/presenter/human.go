// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package presenter

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/vorlif/spreak/localize"
)

var humanLabels = []localize.MsgID{"Latitude", "Longitude", "Accuracy", "Provider", "Observed"}

// renderHuman writes one aligned "label: value" line per field.
func (p *Presenter) renderHuman(w io.Writer, view View) error {
	accuracy := p.translate("unknown")
	if view.Accuracy != nil {
		accuracy = fmt.Sprintf("%s m", formatFloat(*view.Accuracy))
	}
	values := []string{
		formatFloat(view.Latitude),
		formatFloat(view.Longitude),
		accuracy,
		view.Provider,
		fmt.Sprintf("%s (%s)", p.naturalTime(view.ObservedAt), view.ObservedAt.Format(time.RFC3339)),
	}

	labels := make([]string, len(humanLabels))
	width := 0
	for i, label := range humanLabels {
		labels[i] = p.translate(label)
		width = max(width, runewidth.StringWidth(labels[i]))
	}
	for i, label := range labels {
		padding := strings.Repeat(" ", width-runewidth.StringWidth(label)+1)
		if _, err := fmt.Fprintf(w, "%s:%s%s\n", label, padding, values[i]); err != nil {
			return err
		}
	}
	return nil
}

func (p *Presenter) translate(msg localize.MsgID) string {
	if p.localizer == nil {
		return msg
	}
	return p.localizer.Get(msg)
}

func (p *Presenter) naturalTime(val time.Time) string {
	return p.humanizer.NaturalTime(val)
}
