//go:build avr && atmega2560

package main

import (
	"errors"
	"machine"

	"megaservo/core"
)

var (
	errNotOnTimer = errors.New("pin not on this timer")
	errZeroPeriod = errors.New("zero PWM period")
)

// machinePins maps board pins onto the 16-bit compare outputs
var machinePins = map[machine.Pin]core.Pin{
	machine.D2:  core.D2,
	machine.D3:  core.D3,
	machine.D5:  core.D5,
	machine.D6:  core.D6,
	machine.D7:  core.D7,
	machine.D8:  core.D8,
	machine.D11: core.D11,
	machine.D12: core.D12,
	machine.D13: core.D13,
	machine.D44: core.D44,
	machine.D45: core.D45,
	machine.D46: core.D46,
}

// timerPWM exposes one core timer as a drivers servo.PWM so the
// tinygo.org/x/drivers servo package can run on it
type timerPWM struct {
	timer  *core.Timer
	pins   *core.Pins
	cfg    core.ServoConfig
	servos [core.NumChannels]*core.Servo
}

func newTimerPWM(timer *core.Timer, pins *core.Pins) *timerPWM {
	return &timerPWM{timer: timer, pins: pins, cfg: core.DefaultServoConfig()}
}

// Configure sets the timer frequency from the requested period. A timer
// already running at that frequency is left alone.
func (p *timerPWM) Configure(config machine.PWMConfig) error {
	if config.Period == 0 {
		return errZeroPeriod
	}
	p.cfg.FreqHz = uint32(1e9 / config.Period)
	return p.timer.Configure(p.cfg.FreqHz)
}

// Channel binds and enables the compare output on pin
func (p *timerPWM) Channel(pin machine.Pin) (uint8, error) {
	cp, ok := machinePins[pin]
	if !ok {
		return 0, core.ErrNoCapability
	}
	capability, err := p.pins.Capability(cp)
	if err != nil {
		return 0, err
	}
	f := capability.Fact()
	if f.Timer != p.timer.ID() {
		return 0, errNotOnTimer
	}
	s, err := p.timer.Bind(capability, p.cfg)
	if err != nil {
		return 0, err
	}
	if err := s.Enable(); err != nil {
		return 0, err
	}
	p.servos[f.Channel] = s
	return uint8(f.Channel), nil
}

// Top is the number of ticks in one period
func (p *timerPWM) Top() uint32 {
	return uint32(p.timer.Timing().Top) + 1
}

// Set writes a raw compare value
func (p *timerPWM) Set(channel uint8, value uint32) {
	if channel >= core.NumChannels || p.servos[channel] == nil {
		return
	}
	if value > 0xFFFF {
		value = 0xFFFF
	}
	_ = p.servos[channel].SetTicks(uint16(value))
}

// Servo returns the binding behind a channel
func (p *timerPWM) Servo(channel uint8) *core.Servo {
	if channel >= core.NumChannels {
		return nil
	}
	return p.servos[channel]
}
