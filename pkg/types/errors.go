// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "errors"

// Error kinds. Callers wrap them with fmt.Errorf("%w: ...") and match with
// errors.Is.
var (
	// ErrConfiguration covers a missing or unreadable credential, bad settings,
	// and a holdings file without the required columns. Fatal.
	ErrConfiguration = errors.New("configuration error")

	// ErrDataFormat covers holdings values that cannot be reduced to a year.
	ErrDataFormat = errors.New("data format error")

	// ErrTransientFetch covers HTTP failures, malformed JSON and missing
	// response fields. It aborts the current search unit only.
	ErrTransientFetch = errors.New("transient fetch error")

	// ErrRequestTimeout is returned alongside ErrTransientFetch when a
	// request exceeds the configured timeout.
	ErrRequestTimeout = errors.New("request timeout")

	// ErrPersistence covers checkpoint and output write failures. Fatal.
	ErrPersistence = errors.New("persistence error")

	// ErrCorruptCheckpoint means a checkpoint exists but cannot be decoded.
	ErrCorruptCheckpoint = errors.New("corrupt checkpoint")
)

// IsFatal reports whether err must stop the whole run rather than only the
// current search unit.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, ErrTransientFetch)
}
