// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package location holds the types shared by all location providers: the normalized Fix,
// the provider selection and the error taxonomy.
package location

import (
	"fmt"
	"math"
	"time"
)

// Provider tags identify the source that produced a Fix.
const (
	TagCoreLocation = "corelocation"
	TagGeoClue      = "geoclue"
	TagIP           = "ip"
)

// Fix is a single resolved location observation. A Fix is a value and is never modified once
// it has been handed to a caller.
type Fix struct {
	Latitude   float64
	Longitude  float64
	Provider   string
	ObservedAt time.Time

	accuracy    float64
	hasAccuracy bool
}

// NewFix returns a Fix without accuracy information. The observation time is stored in UTC.
func NewFix(lat, lon float64, provider string, observedAt time.Time) Fix {
	return Fix{
		Latitude:   lat,
		Longitude:  lon,
		Provider:   provider,
		ObservedAt: observedAt.UTC(),
	}
}

// WithAccuracy returns a copy of the Fix carrying the given horizontal accuracy radius in
// meters. Negative or NaN values mean "unknown" and leave the accuracy absent.
func (f Fix) WithAccuracy(meters float64) Fix {
	if math.IsNaN(meters) || meters < 0 {
		f.accuracy, f.hasAccuracy = 0, false
		return f
	}
	f.accuracy, f.hasAccuracy = meters, true
	return f
}

// HasAccuracy reports whether the source reported a horizontal accuracy.
func (f Fix) HasAccuracy() bool {
	return f.hasAccuracy
}

// AccuracyMeters returns the horizontal accuracy radius and whether it is known.
func (f Fix) AccuracyMeters() (float64, bool) {
	return f.accuracy, f.hasAccuracy
}

// Coordinate returns the position of the Fix.
func (f Fix) Coordinate() Coordinate {
	return Coordinate{Lat: f.Latitude, Lon: f.Longitude}
}

// Validate makes sure the Fix is fully populated. Providers call it before handing out a
// Fix so that a partial result never leaves the package.
func (f Fix) Validate() error {
	if !f.Coordinate().Valid() {
		return fmt.Errorf("coordinates out of range: %f, %f", f.Latitude, f.Longitude)
	}
	if f.Provider == "" {
		return fmt.Errorf("fix has no provider tag")
	}
	if f.ObservedAt.IsZero() {
		return fmt.Errorf("fix has no observation time")
	}
	return nil
}

func (f Fix) String() string {
	if f.hasAccuracy {
		return fmt.Sprintf("%f,%f (±%.0fm, %s, %s)", f.Latitude, f.Longitude, f.accuracy, f.Provider,
			f.ObservedAt.Format(time.RFC3339))
	}
	return fmt.Sprintf("%f,%f (%s, %s)", f.Latitude, f.Longitude, f.Provider, f.ObservedAt.Format(time.RFC3339))
}

// TimeFromEpochSeconds converts fractional seconds since the Unix epoch into a UTC time,
// rounded to the nearest nanosecond.
func TimeFromEpochSeconds(seconds float64) time.Time {
	secs, frac := math.Modf(seconds)
	nanos := math.Round(frac * float64(time.Second))
	return time.Unix(int64(secs), int64(nanos)).UTC()
}
