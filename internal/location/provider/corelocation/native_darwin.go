// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

//go:build darwin && cgo

package corelocation

/*
#cgo CFLAGS: -x objective-c -fno-objc-arc
#cgo LDFLAGS: -framework CoreLocation -framework Foundation
#include <stdlib.h>
#include "corelocation_darwin.h"
*/
import "C"

import (
	"errors"
	"runtime"
	"runtime/cgo"
	"sync"
	"sync/atomic"
	"unsafe"
)

const (
	// runSlice is how long the manager thread spins its run loop between release checks.
	runSlice = 0.25
	// finalSlice gives the teardown block a chance to run before the thread exits.
	finalSlice = 0.05
)

type nativePlatform struct{}

// DefaultPlatform returns the CoreLocation framework.
func DefaultPlatform() (Platform, error) {
	return nativePlatform{}, nil
}

func registerDelegateClass() uintptr {
	return uintptr(C.geoloc_delegate_class())
}

func (nativePlatform) ServicesEnabled() bool {
	return bool(C.geoloc_services_enabled())
}

func (nativePlatform) AuthorizationStatus() AuthorizationStatus {
	return AuthorizationStatus(C.geoloc_authorization_status())
}

// NewManager creates a CLLocationManager on a dedicated OS thread running a CFRunLoop, so
// delegate callbacks have a run loop to be delivered on.
func (nativePlatform) NewManager() (Manager, error) {
	m := &nativeManager{ready: make(chan error, 1)}
	go m.loop()
	if err := <-m.ready; err != nil {
		return nil, err
	}
	return m, nil
}

// binding is what the Objective-C delegate instance points to through its cgo.Handle.
type binding struct {
	delegate *Delegate
	manager  Manager
}

type nativeManager struct {
	ready chan error

	mu       sync.Mutex
	released atomic.Bool
	runloop  unsafe.Pointer
	manager  unsafe.Pointer
	delegate unsafe.Pointer
}

func (m *nativeManager) loop() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	m.runloop = C.geoloc_current_runloop()
	m.manager = C.geoloc_manager_new()
	if m.manager == nil {
		C.geoloc_release_runloop(m.runloop)
		m.ready <- errors.New("failed to allocate CLLocationManager")
		return
	}
	m.ready <- nil

	for !m.released.Load() {
		C.geoloc_run_slice(C.double(runSlice))
	}
	C.geoloc_run_slice(C.double(finalSlice))
	C.geoloc_release_runloop(m.runloop)
}

func (m *nativeManager) SetDelegate(d *Delegate) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.released.Load() || m.delegate != nil {
		return
	}
	handle := cgo.NewHandle(&binding{delegate: d, manager: m})
	m.delegate = C.geoloc_delegate_new(C.uintptr_t(handle))
	if m.delegate == nil {
		handle.Delete()
		return
	}
	C.geoloc_set_delegate(m.runloop, m.manager, m.delegate)
}

func (m *nativeManager) RequestWhenInUseAuthorization() {
	m.perform(func() { C.geoloc_request_authorization(m.runloop, m.manager) })
}

func (m *nativeManager) StartUpdatingLocation() {
	m.perform(func() { C.geoloc_start_updates(m.runloop, m.manager) })
}

// StopUpdatingLocation only enqueues the stop on the manager thread, so it is safe to call
// from within a delegate callback.
func (m *nativeManager) StopUpdatingLocation() {
	m.perform(func() { C.geoloc_stop_updates(m.runloop, m.manager) })
}

func (m *nativeManager) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.released.Load() {
		return
	}
	C.geoloc_teardown(m.runloop, m.manager, m.delegate)
	m.released.Store(true)
}

func (m *nativeManager) perform(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.released.Load() {
		return
	}
	fn()
}

//export geolocDidUpdateLocation
func geolocDidUpdateLocation(h C.uintptr_t, lat, lon, acc, ts C.double) {
	b, ok := cgo.Handle(h).Value().(*binding)
	if !ok {
		return
	}
	b.delegate.DidUpdateLocations(b.manager, []NativeLocation{{
		Latitude:           float64(lat),
		Longitude:          float64(lon),
		HorizontalAccuracy: float64(acc),
		Timestamp:          float64(ts),
	}})
}

//export geolocDidFail
func geolocDidFail(h C.uintptr_t, desc *C.char) {
	b, ok := cgo.Handle(h).Value().(*binding)
	if !ok {
		return
	}
	reason := "unknown"
	if desc != nil {
		reason = C.GoString(desc)
	}
	b.delegate.DidFailWithError(b.manager, reason)
}

//export geolocDealloc
func geolocDealloc(h C.uintptr_t) {
	handle := cgo.Handle(h)
	if b, ok := handle.Value().(*binding); ok {
		b.delegate.Dealloc()
	}
	handle.Delete()
}
