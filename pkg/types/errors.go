// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "fmt"

// ErrorList accumulates configuration-level problems so a caller can
// attempt partial work and report everything at once instead of failing
// on the first field. Hard failures (bad identities, transport errors)
// stay ordinary returned errors; this is only for user-authored config.
type ErrorList struct {
	errs []string
}

// AddError records one formatted problem.
func (e *ErrorList) AddError(format string, args ...any) {
	e.errs = append(e.errs, fmt.Sprintf(format, args...))
}

// HasErrors reports whether any problem was recorded.
func (e *ErrorList) HasErrors() bool {
	return len(e.errs) > 0
}

// Errors returns the recorded problems in insertion order.
func (e *ErrorList) Errors() []string {
	return e.errs
}

// Err returns a single wrapped error summarizing the list, or nil.
func (e *ErrorList) Err() error {
	if len(e.errs) == 0 {
		return nil
	}
	return fmt.Errorf("%d configuration error(s): %v", len(e.errs), e.errs)
}
