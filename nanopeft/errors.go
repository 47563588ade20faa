package nanopeft

import (
	"errors"
	"strings"
)

// ArgMismatchError reports the known training-argument incompatibility
// between the trainer and the adapter/model wiring. It carries a
// remediation hint surfaced to the operator before the process exits.
type ArgMismatchError struct {
	Argument string
	Err      error
}

func (e *ArgMismatchError) Error() string {
	if e.Err != nil {
		return "incompatible training argument " + e.Argument + ": " + e.Err.Error()
	}
	return "incompatible training argument " + e.Argument
}

func (e *ArgMismatchError) Unwrap() error {
	return e.Err
}

// ArgMismatchHint is the remediation printed when the incompatibility is
// detected
const ArgMismatchHint = "Update the training service and adapter libraries to matching versions and retry."

// argMismatchMarkers are message fragments produced by training services
// that only surface the incompatibility as text. Fragile by construction;
// the typed error above is preferred whenever the backend can return it.
var argMismatchMarkers = []string{
	"unexpected keyword argument",
	"incompatible training argument",
}

// IsArgMismatch reports whether the error is the known training-argument
// incompatibility, either as a typed error or by message inspection
func IsArgMismatch(err error) bool {
	if err == nil {
		return false
	}
	var mismatch *ArgMismatchError
	if errors.As(err, &mismatch) {
		return true
	}
	msg := err.Error()
	for _, marker := range argMismatchMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
