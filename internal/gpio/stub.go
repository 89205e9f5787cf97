//go:build !linux

package gpio

import (
	"errors"
	"fmt"
)

// ErrUnsupported is returned on platforms without the GPIO character device.
var ErrUnsupported = errors.New("gpio: character device requires linux")

// RealReader exists on other platforms only so the daemon builds there.
type RealReader struct{}

// NewRealReader always fails off linux.
func NewRealReader(pinOpen, pinClose int) (*RealReader, error) {
	return nil, fmt.Errorf("open pins %d/%d: %w", pinOpen, pinClose, ErrUnsupported)
}

// Read reports both contacts released along with ErrUnsupported.
func (r *RealReader) Read() (bool, bool, error) {
	return true, true, ErrUnsupported
}

func (r *RealReader) Close() error { return nil }
