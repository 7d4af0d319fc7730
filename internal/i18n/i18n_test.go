// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package i18n

import (
	"testing"

	"golang.org/x/text/language"
)

func TestNew(t *testing.T) {
	t.Run("new i18n provider with empty locale string succeeds", func(t *testing.T) {
		provider, err := New("")
		if err != nil {
			t.Fatalf("failed to create i18n provider: %s", err)
		}
		if provider == nil {
			t.Fatal("expected i18n provider to be non-nil")
		}
	})
	t.Run("german messages are translated", func(t *testing.T) {
		provider, err := New("de")
		if err != nil {
			t.Fatalf("failed to create i18n provider: %s", err)
		}
		if got := provider.Get("Latitude"); got != "Breitengrad" {
			t.Errorf("expected translation to be %q, got %q", "Breitengrad", got)
		}
		if got := provider.Getf("fix acquired from %s", "ip"); got != "Position von ip erhalten" {
			t.Errorf("expected translation to be %q, got %q", "Position von ip erhalten", got)
		}
	})
	t.Run("english messages are returned unchanged", func(t *testing.T) {
		provider, err := New("en")
		if err != nil {
			t.Fatalf("failed to create i18n provider: %s", err)
		}
		if got := provider.Get("Latitude"); got != "Latitude" {
			t.Errorf("expected message to be unchanged, got %q", got)
		}
	})
	t.Run("invalid locale fails", func(t *testing.T) {
		if _, err := New("not a locale!"); err == nil {
			t.Error("expected invalid locale to fail")
		}
	})
}

func TestTag(t *testing.T) {
	tag, err := Tag("de-DE")
	if err != nil {
		t.Fatalf("failed to parse locale: %s", err)
	}
	base, _ := tag.Base()
	if base != language.MustParseBase("de") {
		t.Errorf("expected base language de, got %s", base)
	}
}
