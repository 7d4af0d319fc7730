// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package corelocation

import (
	"errors"
	"sync"
)

// ClassName is the name under which the delegate class is registered with the Objective-C
// runtime.
const ClassName = "GeoLocCLDelegate"

// ErrUnsupported is returned by DefaultPlatform on builds without CoreLocation.
var ErrUnsupported = errors.New("CoreLocation is only available on macOS builds with cgo enabled")

// AuthorizationStatus mirrors CLAuthorizationStatus.
type AuthorizationStatus int

const (
	StatusNotDetermined AuthorizationStatus = iota
	StatusRestricted
	StatusDenied
	StatusAuthorizedAlways
	StatusAuthorizedWhenInUse
)

func (s AuthorizationStatus) String() string {
	switch s {
	case StatusNotDetermined:
		return "not determined"
	case StatusRestricted:
		return "restricted"
	case StatusDenied:
		return "denied"
	case StatusAuthorizedAlways:
		return "authorized always"
	case StatusAuthorizedWhenInUse:
		return "authorized when in use"
	default:
		return "unknown"
	}
}

// Denied reports whether the status rules out a location request.
func (s AuthorizationStatus) Denied() bool {
	return s == StatusDenied || s == StatusRestricted
}

// NativeLocation is a location as reported by CLLocation. Timestamp is in seconds since
// the Unix epoch; a negative HorizontalAccuracy means the accuracy is unknown.
type NativeLocation struct {
	Latitude           float64
	Longitude          float64
	HorizontalAccuracy float64
	Timestamp          float64
}

// Platform is the class-level surface of CLLocationManager.
type Platform interface {
	ServicesEnabled() bool
	AuthorizationStatus() AuthorizationStatus
	NewManager() (Manager, error)
}

// Manager is one CLLocationManager instance. Callbacks for the registered delegate arrive on
// a thread owned by the manager, never on the caller's goroutine.
type Manager interface {
	SetDelegate(d *Delegate)
	RequestWhenInUseAuthorization()
	StartUpdatingLocation()
	StopUpdatingLocation()
	// Release tears the native objects down. It must not block on the native thread.
	Release()
}

// DelegateClass is the process-wide delegate registration. It is created once and never
// modified afterward.
type DelegateClass struct {
	Name   string
	native uintptr
}

var delegateClass = sync.OnceValue(func() *DelegateClass {
	return &DelegateClass{
		Name:   ClassName,
		native: registerDelegateClass(),
	}
})

// RegisteredDelegateClass returns the delegate class, registering it on first use.
func RegisteredDelegateClass() *DelegateClass {
	return delegateClass()
}

// Native returns the runtime handle of the class, or 0 if the build has no Objective-C
// runtime.
func (c *DelegateClass) Native() uintptr {
	return c.native
}
