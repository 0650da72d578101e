package gps

import (
	"errors"
	"io"
)

// ErrUnavailable wraps every failure to open a receiver. It is fatal to
// the caller; providers never retry.
var ErrUnavailable = errors.New("gps: receiver unavailable")

// Provider is the interface for NMEA byte sources.
type Provider interface {
	io.Reader
	Name() string
	// Connect opens the underlying device.
	Connect() error
	// Close releases the device. A Read blocked on the device returns
	// io.EOF shortly after.
	Close() error
}
