package mangle

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrStructuralViolation means the rewritten method cannot be emitted
	// safely. It is fatal for the whole run and never retried.
	ErrStructuralViolation = errors.New("structural violation")

	// ErrNotRegular is returned when a strategy asks to split a block that
	// holds no instructions of its own.
	ErrNotRegular = errors.New("block is not regular")

	ErrIntensityRange = errors.New("intensity must be in [0,1)")
)

// violation wraps ErrStructuralViolation with the method identity.
func violation(method string, format string, args ...interface{}) error {
	return errors.Wrapf(ErrStructuralViolation, "method %s: %s", method, fmt.Sprintf(format, args...))
}
