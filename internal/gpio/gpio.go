// Package gpio provides named digital input reading with hardware abstraction.
// The real implementation uses the Linux GPIO character device with kernel debounce.
// The fake implementation allows testing without hardware.
package gpio

import "time"

// Reader reads named digital inputs.
type Reader interface {
	// Read returns the raw (uninverted), debounced level of the named input.
	Read(channel string) (bool, error)

	// Close releases GPIO resources.
	Close() error
}

// DefaultChip is the Raspberry Pi header GPIO controller.
const DefaultChip = "gpiochip0"

// MinDebounce is the shortest debounce accepted for rig inputs.
const MinDebounce = 10 * time.Millisecond
