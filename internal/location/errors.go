// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package location

import (
	"errors"
	"strings"
)

// Kind classifies why a provider could not produce a Fix.
type Kind int

const (
	KindUnknown Kind = iota
	// KindServiceDisabled means the location service is turned off or not reachable.
	KindServiceDisabled
	// KindAuthorizationDenied means the user did not grant location access.
	KindAuthorizationDenied
	// KindTimeout means the deadline elapsed before a fix or a failure arrived.
	KindTimeout
	// KindFailed means the location service reported an error.
	KindFailed
	// KindNetwork means the network lookup failed, timed out or returned unusable data.
	KindNetwork
	// KindNotImplemented means the selected provider has no implementation in this build.
	KindNotImplemented
)

// Exit codes follow sysexits.h where one fits.
const (
	ExitFailure     = 1
	ExitUnavailable = 70
	ExitNoPerm      = 77
)

var kindMessages = map[Kind]string{
	KindUnknown:             "unknown error",
	KindServiceDisabled:     "location service unavailable",
	KindAuthorizationDenied: "permission denied",
	KindTimeout:             "timeout waiting for location",
	KindFailed:              "location service error",
	KindNetwork:             "network error",
	KindNotImplemented:      "provider not available in this build",
}

func (k Kind) String() string {
	if msg, ok := kindMessages[k]; ok {
		return msg
	}
	return kindMessages[KindUnknown]
}

// ExitCode returns the process exit code for failures of this kind.
func (k Kind) ExitCode() int {
	switch k {
	case KindAuthorizationDenied:
		return ExitNoPerm
	case KindServiceDisabled, KindNotImplemented:
		return ExitUnavailable
	default:
		return ExitFailure
	}
}

// Sentinels for errors.Is. They match every *Error of the same kind.
var (
	ErrServiceDisabled     = &Error{Kind: KindServiceDisabled}
	ErrAuthorizationDenied = &Error{Kind: KindAuthorizationDenied}
	ErrTimeout             = &Error{Kind: KindTimeout}
	ErrFailed              = &Error{Kind: KindFailed}
	ErrNetwork             = &Error{Kind: KindNetwork}
	ErrNotImplemented      = &Error{Kind: KindNotImplemented}
)

// Error is the error type returned by providers and the orchestrator.
type Error struct {
	Kind     Kind
	Provider string
	Reason   string
	Err      error
}

// NewError returns an Error of the given kind for provider.
func NewError(kind Kind, provider, reason string) *Error {
	return &Error{Kind: kind, Provider: provider, Reason: reason}
}

// WrapError returns an Error of the given kind for provider wrapping err.
func WrapError(kind Kind, provider string, err error) *Error {
	return &Error{Kind: kind, Provider: provider, Err: err}
}

func (e *Error) Error() string {
	var sb strings.Builder
	if e.Provider != "" {
		sb.WriteString(e.Provider)
		sb.WriteString(": ")
	}
	sb.WriteString(e.Kind.String())
	if e.Reason != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Reason)
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel of e's kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Provider == "" && t.Reason == "" && t.Err == nil && t.Kind == e.Kind
}

// KindOf returns the Kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var locErr *Error
	if errors.As(err, &locErr) {
		return locErr.Kind
	}
	return KindUnknown
}

// ExitCode returns the process exit code for err. A nil error maps to 0.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	return KindOf(err).ExitCode()
}
