package core

// Waveform is the WGMn3:0 waveform generation mode of a 16-bit timer
type Waveform uint8

const (
	WaveformNormal Waveform = 0
	// WaveformFastPWMICR counts 0..ICRn, so ICRn sets the period and
	// OCRnx the duty cycle independently.
	WaveformFastPWMICR Waveform = 14
)

// CompareOutput is the COMnx1:0 behaviour of an output compare pin
type CompareOutput uint8

const (
	CompareDisconnected CompareOutput = 0b00
	CompareNonInverting CompareOutput = 0b10 // set at BOTTOM, clear on match
	CompareInverting    CompareOutput = 0b11
)

// PinMode is the GPIO state of a pin while its compare output is disconnected
type PinMode uint8

const (
	PinInput     PinMode = iota // reset state, high impedance
	PinOutputLow                // driven low, no pulses reach the servo
)

// TimerPort is the raw register interface of the 16-bit timers.
// Platform-specific code provides it; ProgramEmitter is its only caller.
type TimerPort interface {
	// StopTimer clears the timer's control registers and counter,
	// which also stops its clock
	StopTimer(timer TimerID) error

	// SetWaveform selects the waveform generation mode
	SetWaveform(timer TimerID, mode Waveform) error

	// WriteTop writes ICRn
	WriteTop(timer TimerID, top uint16) error

	// SelectPrescaler sets the clock source; the counter starts running
	SelectPrescaler(timer TimerID, p Prescaler) error

	// WriteCompare writes OCRnx
	WriteCompare(timer TimerID, ch Channel, value uint16) error

	// SetCompareOutput connects or disconnects the channel from its pin
	SetCompareOutput(timer TimerID, ch Channel, mode CompareOutput) error

	// SetPinMode sets the direction and level of a compare pin
	SetPinMode(pin Pin, mode PinMode) error

	// ReadCounter reads TCNTn
	ReadCounter(timer TimerID) (uint16, error)
}

// Global singleton used by firmware code.
var timerPort TimerPort

// SetTimerPort is called by target-specific code to register its port.
func SetTimerPort(p TimerPort) {
	timerPort = p
}

// MustTimerPort returns the registered port or panics if missing.
func MustTimerPort() TimerPort {
	if timerPort == nil {
		panic("timer port not configured")
	}
	return timerPort
}
