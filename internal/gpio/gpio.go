// Package gpio provides GPIO input reading with hardware abstraction.
// The real implementation uses Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Reader reads the raw levels of the two dry-contact inputs.
type Reader interface {
	// Read returns the raw electrical levels of the open and close pins.
	// Inputs are pulled up, so an engaged contact reads low (false).
	// Returns (openHigh, closeHigh, error).
	Read() (bool, bool, error)

	// Close releases GPIO resources.
	Close() error
}

// Default pin definitions (BCM numbering)
const (
	DefaultPinOpen  = 23 // Open limit switch / open button
	DefaultPinClose = 24 // Close limit switch / close button
)
