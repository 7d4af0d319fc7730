// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package location

import (
	"fmt"
	"strings"
)

// Selection is the closed set of provider choices a caller can request.
type Selection int

const (
	// Automatic defers to the capabilities of the current build.
	Automatic Selection = iota
	// NativeService is the operating system's location service (CoreLocation).
	NativeService
	// DesktopService is the D-Bus based desktop location service (GeoClue2).
	DesktopService
	// NetworkFallback is the IP based lookup.
	NetworkFallback
)

var selectionNames = map[Selection]string{
	Automatic:       "auto",
	NativeService:   TagCoreLocation,
	DesktopService:  TagGeoClue,
	NetworkFallback: TagIP,
}

// Selections lists every selection in CLI order.
func Selections() []Selection {
	return []Selection{Automatic, NativeService, DesktopService, NetworkFallback}
}

// ParseSelection parses the CLI/config name of a selection. Matching is case-insensitive.
func ParseSelection(name string) (Selection, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || name == "automatic" {
		return Automatic, nil
	}
	for sel, selName := range selectionNames {
		if selName == name {
			return sel, nil
		}
	}
	return Automatic, fmt.Errorf("unknown provider %q, expected one of: auto, corelocation, geoclue, ip", name)
}

func (s Selection) String() string {
	if name, ok := selectionNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Selection(%d)", int(s))
}

// Tag returns the provider tag of fixes produced by the selection. Automatic has no tag of
// its own.
func (s Selection) Tag() string {
	if s == Automatic {
		return ""
	}
	return s.String()
}

// Available reports whether the selection has an implementation in this build. Automatic
// and NetworkFallback are always available.
func (s Selection) Available() bool {
	switch s {
	case Automatic, NetworkFallback:
		return true
	case NativeService:
		return nativeServiceBuilt
	case DesktopService:
		return desktopServiceBuilt
	default:
		return false
	}
}

// Preferred returns the selection Automatic resolves to: the platform's native provider if
// this build offers one, otherwise NetworkFallback.
func Preferred() Selection {
	return preferredFor(nativeServiceBuilt, desktopServiceBuilt)
}

func preferredFor(native, desktop bool) Selection {
	switch {
	case native:
		return NativeService
	case desktop:
		return DesktopService
	default:
		return NetworkFallback
	}
}
