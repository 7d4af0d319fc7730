// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

//go:build !darwin || !cgo

package corelocation

// DefaultPlatform reports that this build has no CoreLocation framework.
func DefaultPlatform() (Platform, error) {
	return nil, ErrUnsupported
}

func registerDelegateClass() uintptr {
	return 0
}
