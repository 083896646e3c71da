// PWM timing arithmetic for 16-bit timers in fast PWM mode with TOP in ICRn.
//
// The PWM frequency follows the datasheet relation
//
//	f = clock / (N * (1 + TOP))
//
// where N is the prescaler. Smaller prescalers give finer ticks but a shorter
// maximum period. At 16 MHz:
//
//	N=1     62.5 ns/tick     4.1 ms max cycle
//	N=8     0.5 us/tick     32.8 ms max cycle, 4000 steps over 0.5-2.5 ms (0.045 deg/step)
//	N=64    4 us/tick        262 ms max cycle,  500 steps over 0.5-2.5 ms (0.36 deg/step)
//
// TOP is rounded to the nearest tick, so the generated frequency can be off by
// up to one tick (N/clock seconds) per period.
package core

import (
	"errors"
	"math"
)

var (
	ErrOutOfRange  = errors.New("TOP out of 16-bit range")
	ErrUnreachable = errors.New("no prescaler reaches frequency")
)

// MaxAngle is the rated travel of a standard hobby servo in degrees
const MaxAngle = 180

// Prescaler is the clock divisor feeding a timer's counter
type Prescaler uint16

const (
	Prescale1    Prescaler = 1
	Prescale8    Prescaler = 8
	Prescale64   Prescaler = 64
	Prescale256  Prescaler = 256
	Prescale1024 Prescaler = 1024
)

// Prescalers is the divisor set in ascending order
var Prescalers = [...]Prescaler{Prescale1, Prescale8, Prescale64, Prescale256, Prescale1024}

// Valid reports whether p is one of the hardware divisors
func (p Prescaler) Valid() bool {
	return p.clockSelect() != 0
}

// clockSelect returns the CSn2:0 field for p, 0 (timer stopped) if invalid
func (p Prescaler) clockSelect() uint8 {
	switch p {
	case Prescale1:
		return 0b001
	case Prescale8:
		return 0b010
	case Prescale64:
		return 0b011
	case Prescale256:
		return 0b100
	case Prescale1024:
		return 0b101
	default:
		return 0
	}
}

func (p Prescaler) String() string {
	return "clk/" + utoa(uint32(p))
}

// TimingError carries the inputs of a failed TOP computation
type TimingError struct {
	ClockHz   uint32
	Prescaler Prescaler
	FreqHz    uint32
	Err       error
}

func (e *TimingError) Error() string {
	return e.Err.Error() + ": clock=" + utoa(e.ClockHz) + "Hz " + e.Prescaler.String() +
		" freq=" + utoa(e.FreqHz) + "Hz"
}

func (e *TimingError) Unwrap() error {
	return e.Err
}

// ComputeTop returns the TOP value giving freqHz with the given prescaler.
// TOP is round(clock/(N*f)) - 1 and must land in 1..65535.
func ComputeTop(clockHz uint32, p Prescaler, freqHz uint32) (uint16, error) {
	if freqHz == 0 || !p.Valid() {
		return 0, &TimingError{clockHz, p, freqHz, ErrOutOfRange}
	}
	div := uint64(p) * uint64(freqHz)
	counts := (uint64(clockHz) + div/2) / div
	if counts < 2 || counts-1 > math.MaxUint16 {
		return 0, &TimingError{clockHz, p, freqHz, ErrOutOfRange}
	}
	return uint16(counts - 1), nil
}

// PickPrescaler returns the smallest prescaler whose TOP fits 16 bits,
// which is the one with the finest tick for freqHz.
func PickPrescaler(clockHz uint32, freqHz uint32) (Prescaler, error) {
	for _, p := range Prescalers {
		if _, err := ComputeTop(clockHz, p, freqHz); err == nil {
			return p, nil
		}
	}
	return 0, &TimingError{clockHz, 0, freqHz, ErrUnreachable}
}

// TickMicros is the duration of one timer tick in microseconds
func TickMicros(clockHz uint32, p Prescaler) float32 {
	if clockHz == 0 {
		return 0
	}
	return float32(float64(p) * 1e6 / float64(clockHz))
}

// AngleToTicks converts a servo angle into a compare value. The angle is
// clamped to [0, 180] and the pulse is interpolated linearly between
// pulseMinUs and pulseMaxUs; the result is clamped to [0, top].
func AngleToTicks(angle float32, top uint16, pulseMinUs, pulseMaxUs uint32, tickUs float32) uint16 {
	if tickUs <= 0 {
		return 0
	}
	angle = clampAngle(angle)
	span := float64(pulseMaxUs) - float64(pulseMinUs)
	pulse := float64(pulseMinUs) + float64(angle)/MaxAngle*span
	ticks := math.Round(pulse / float64(tickUs))
	if ticks < 0 {
		return 0
	}
	if ticks > float64(top) {
		return top
	}
	return uint16(ticks)
}

// TicksToAngle is the inverse of AngleToTicks, used for readback
func TicksToAngle(ticks uint16, top uint16, pulseMinUs, pulseMaxUs uint32, tickUs float32) float32 {
	if pulseMaxUs <= pulseMinUs {
		return 0
	}
	if ticks > top {
		ticks = top
	}
	pulse := float64(ticks) * float64(tickUs)
	angle := (pulse - float64(pulseMinUs)) / float64(pulseMaxUs-pulseMinUs) * MaxAngle
	return clampAngle(float32(angle))
}

func clampAngle(angle float32) float32 {
	switch {
	case angle != angle: // NaN
		return 0
	case angle < 0:
		return 0
	case angle > MaxAngle:
		return MaxAngle
	}
	return angle
}

// Timing is the register configuration of one PWM output: the timer-wide
// prescaler and TOP, plus the channel's compare value.
type Timing struct {
	Prescaler Prescaler
	Top       uint16
	Compare   uint16
}

// NewTiming picks the finest prescaler for freqHz and computes its TOP
func NewTiming(clockHz uint32, freqHz uint32) (Timing, error) {
	p, err := PickPrescaler(clockHz, freqHz)
	if err != nil {
		return Timing{}, err
	}
	top, err := ComputeTop(clockHz, p, freqHz)
	if err != nil {
		return Timing{}, err
	}
	return Timing{Prescaler: p, Top: top}, nil
}

// Frequency is the PWM frequency actually generated at clockHz
func (t Timing) Frequency(clockHz uint32) float32 {
	if t.Prescaler == 0 {
		return 0
	}
	return float32(float64(clockHz) / (float64(t.Prescaler) * (float64(t.Top) + 1)))
}

// PeriodMicros is the PWM period in microseconds
func (t Timing) PeriodMicros(clockHz uint32) float32 {
	return TickMicros(clockHz, t.Prescaler) * (float32(t.Top) + 1)
}

// MaxPeriodMicros is the longest period reachable with this prescaler (TOP=65535)
func (t Timing) MaxPeriodMicros(clockHz uint32) float32 {
	return TickMicros(clockHz, t.Prescaler) * 65536
}

// DegreesPerTick is the angular resolution one compare step gives
func DegreesPerTick(tickUs float32, pulseMinUs, pulseMaxUs uint32) float32 {
	if pulseMaxUs <= pulseMinUs {
		return 0
	}
	return tickUs * MaxAngle / float32(pulseMaxUs-pulseMinUs)
}
