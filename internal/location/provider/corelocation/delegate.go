// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package corelocation

import (
	"sync"
)

type outcome struct {
	location NativeLocation
	failure  string
	failed   bool
}

// pendingRequest is the one-shot slot between the native callback thread and the waiting
// caller. Only the first take gets the channel, every later take gets nil.
type pendingRequest struct {
	mu sync.Mutex
	ch chan outcome
}

func (p *pendingRequest) take() chan outcome {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch := p.ch
	p.ch = nil
	return ch
}

// Delegate receives the CLLocationManagerDelegate callbacks for exactly one request.
type Delegate struct {
	class   *DelegateClass
	slot    pendingRequest
	results <-chan outcome
}

// NewDelegate returns a Delegate instance of the class with a fresh pending request.
func (c *DelegateClass) NewDelegate() *Delegate {
	ch := make(chan outcome, 1)
	return &Delegate{
		class:   c,
		slot:    pendingRequest{ch: ch},
		results: ch,
	}
}

// Class returns the class the delegate was created from.
func (d *Delegate) Class() *DelegateClass {
	return d.class
}

// DidUpdateLocations handles locationManager:didUpdateLocations:. Only the most recent
// location is used; an empty list is ignored.
func (d *Delegate) DidUpdateLocations(manager Manager, locations []NativeLocation) {
	if len(locations) == 0 {
		return
	}
	if ch := d.slot.take(); ch != nil {
		ch <- outcome{location: locations[len(locations)-1]}
		close(ch)
	}
	if manager != nil {
		manager.StopUpdatingLocation()
	}
}

// DidFailWithError handles locationManager:didFailWithError:.
func (d *Delegate) DidFailWithError(manager Manager, description string) {
	if description == "" {
		description = "unknown"
	}
	if ch := d.slot.take(); ch != nil {
		ch <- outcome{failure: description, failed: true}
		close(ch)
	}
	if manager != nil {
		manager.StopUpdatingLocation()
	}
}

// Dealloc releases the pending request. A caller still waiting sees the channel closed
// without a value.
func (d *Delegate) Dealloc() {
	if ch := d.slot.take(); ch != nil {
		close(ch)
	}
}
