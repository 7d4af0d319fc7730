// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package location

import (
	"context"
	"time"
)

// DefaultTimeout is used whenever a caller passes a zero or negative timeout.
const DefaultTimeout = time.Second * 5

// Provider produces at most one Fix or fails within the given timeout. Implementations never
// retry internally and report failures as *Error.
type Provider interface {
	Name() string
	Locate(ctx context.Context, timeout time.Duration) (Fix, error)
}

// NormalizeTimeout coerces a zero or negative timeout to DefaultTimeout.
func NormalizeTimeout(timeout time.Duration) time.Duration {
	if timeout <= 0 {
		return DefaultTimeout
	}
	return timeout
}
