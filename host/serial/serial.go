// Package serial opens the host side of the servo link
package serial

import (
	"io"
	"time"
)

// Port is an open serial connection
type Port interface {
	io.ReadWriteCloser

	// Flush discards data received but not yet read
	Flush() error
}

// Driver selects the serial library backing a Port
type Driver string

const (
	DriverTarm  Driver = "tarm"
	DriverBugST Driver = "bugst"
)

// Config holds serial port configuration
type Config struct {
	// Device path (e.g., "/dev/ttyACM0", "COM3")
	Device string

	// Baud rate; the firmware UART runs at 115200
	Baud int

	// ReadTimeout bounds a single Read; 0 blocks
	ReadTimeout time.Duration

	Driver Driver
}

// DefaultBaud is the firmware UART rate
const DefaultBaud = 115200

// DefaultConfig returns the configuration matching the firmware
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        DefaultBaud,
		ReadTimeout: 100 * time.Millisecond,
		Driver:      DriverTarm,
	}
}
