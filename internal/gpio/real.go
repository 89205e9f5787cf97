//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealReader reads GPIO from actual hardware using Linux GPIO character device.
type RealReader struct {
	chip      *gpiocdev.Chip
	openLine  *gpiocdev.Line
	closeLine *gpiocdev.Line
}

// NewRealReader requests both pins as inputs with the internal pull-up enabled.
// Dry contacts have no voltage source of their own and pull the pin to ground.
func NewRealReader(pinOpen, pinClose int) (*RealReader, error) {
	chip, err := gpiocdev.NewChip("gpiochip0", gpiocdev.WithConsumer("garage-sensor"))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	openLine, err := chip.RequestLine(pinOpen, gpiocdev.AsInput, gpiocdev.WithPullUp)
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request open pin %d: %w", pinOpen, err)
	}

	closeLine, err := chip.RequestLine(pinClose, gpiocdev.AsInput, gpiocdev.WithPullUp)
	if err != nil {
		openLine.Close()
		chip.Close()
		return nil, fmt.Errorf("request close pin %d: %w", pinClose, err)
	}

	return &RealReader{
		chip:      chip,
		openLine:  openLine,
		closeLine: closeLine,
	}, nil
}

// Read returns the raw levels of the open and close pins (true = high).
func (r *RealReader) Read() (bool, bool, error) {
	openRaw, err := r.openLine.Value()
	if err != nil {
		return true, true, fmt.Errorf("read open pin: %w", err)
	}

	closeRaw, err := r.closeLine.Value()
	if err != nil {
		return true, true, fmt.Errorf("read close pin: %w", err)
	}

	return openRaw == 1, closeRaw == 1, nil
}

// Close releases both lines and the chip.
func (r *RealReader) Close() error {
	var errs []error

	if r.openLine != nil {
		if err := r.openLine.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close open pin: %w", err))
		}
	}
	if r.closeLine != nil {
		if err := r.closeLine.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close close pin: %w", err))
		}
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
