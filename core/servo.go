package core

import "errors"

var (
	ErrUnreachableFrequency   = errors.New("frequency unreachable with 16-bit timer")
	ErrTimerAlreadyConfigured = errors.New("timer already configured for another frequency")
	ErrServoReleased          = errors.New("servo released")
	ErrChannelInUse           = errors.New("compare channel in use")
)

// ConfigError reports a failed timer or servo configuration
type ConfigError struct {
	Timer  TimerID
	FreqHz uint32
	Err    error
}

func (e *ConfigError) Error() string {
	return e.Timer.String() + " at " + utoa(e.FreqHz) + "Hz: " + e.Err.Error()
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Default servo calibration: 50 Hz frame, 0.5-2.5 ms pulse for 0-180 degrees
const (
	DefaultFreqHz     = 50
	DefaultPulseMinUs = 500
	DefaultPulseMaxUs = 2500
)

// ServoConfig is the per-servo calibration supplied at bind time
type ServoConfig struct {
	FreqHz     uint32
	PulseMinUs uint32
	PulseMaxUs uint32
}

// DefaultServoConfig returns the calibration of a standard hobby servo
func DefaultServoConfig() ServoConfig {
	return ServoConfig{
		FreqHz:     DefaultFreqHz,
		PulseMinUs: DefaultPulseMinUs,
		PulseMaxUs: DefaultPulseMaxUs,
	}
}

// Controller owns the 16-bit timers of one MCU. It is not safe for
// concurrent use; firmware drives it from the main loop only.
type Controller struct {
	clockHz uint32
	emitter Emitter
	timers  [len(Timers)]*Timer
}

// NewController creates a controller issuing register writes through emitter
func NewController(emitter Emitter, clockHz uint32) *Controller {
	c := &Controller{clockHz: clockHz, emitter: emitter}
	for i, id := range Timers {
		c.timers[i] = &Timer{id: id, ctrl: c}
	}
	return c
}

// ClockHz returns the system clock the controller computes timing for
func (c *Controller) ClockHz() uint32 {
	return c.clockHz
}

// Timer returns the owner object of a timer, nil for unknown IDs
func (c *Controller) Timer(id TimerID) *Timer {
	idx := id.index()
	if idx < 0 {
		return nil
	}
	return c.timers[idx]
}

// Bind attaches a servo to the timer channel named by capability
func (c *Controller) Bind(capability Capability, cfg ServoConfig) (*Servo, error) {
	t := c.Timer(capability.fact.Timer)
	if t == nil {
		return nil, ErrNoCapability
	}
	return t.Bind(capability, cfg)
}

// Servos returns every live binding in timer/channel order
func (c *Controller) Servos() []*Servo {
	var out []*Servo
	for _, t := range c.timers {
		for _, s := range t.channels {
			if s != nil {
				out = append(out, s)
			}
		}
	}
	return out
}

// Timer is the single owner of a timer's prescaler and TOP. The first
// configuration fixes them; channels are handed out only afterwards.
type Timer struct {
	id         TimerID
	ctrl       *Controller
	configured bool
	freqHz     uint32
	timing     Timing
	channels   [NumChannels]*Servo
}

// ID returns the timer's identifier
func (t *Timer) ID() TimerID {
	return t.id
}

// Configured reports whether the timer's frequency has been fixed
func (t *Timer) Configured() bool {
	return t.configured
}

// FreqHz returns the configured frequency, 0 before Configure
func (t *Timer) FreqHz() uint32 {
	return t.freqHz
}

// Timing returns the timer-wide prescaler and TOP
func (t *Timer) Timing() Timing {
	return Timing{Prescaler: t.timing.Prescaler, Top: t.timing.Top}
}

// TickMicros returns the duration of one counter tick
func (t *Timer) TickMicros() float32 {
	return TickMicros(t.ctrl.clockHz, t.timing.Prescaler)
}

// Configure fixes the timer's frequency. Repeating the same frequency is a
// no-op; asking for a different one fails with ErrTimerAlreadyConfigured.
func (t *Timer) Configure(freqHz uint32) error {
	if t.configured {
		if freqHz != t.freqHz {
			return &ConfigError{t.id, freqHz, ErrTimerAlreadyConfigured}
		}
		return nil
	}

	timing, err := NewTiming(t.ctrl.clockHz, freqHz)
	if err != nil {
		return &ConfigError{t.id, freqHz, ErrUnreachableFrequency}
	}
	if err := t.ctrl.emitter.ApplyTiming(t.id, timing); err != nil {
		return &ConfigError{t.id, freqHz, err}
	}

	t.configured = true
	t.freqHz = freqHz
	t.timing = timing
	recordEvent(EvtTopApply, t.id, 0, timing.Top)
	DebugPrintln("[SERVO] " + t.id.String() + " " + timing.Prescaler.String() +
		" TOP=" + utoa(uint32(timing.Top)))
	return nil
}

// Bind consumes capability and returns a disabled servo on its channel.
// The timer is configured for cfg.FreqHz if it is not already.
func (t *Timer) Bind(capability Capability, cfg ServoConfig) (*Servo, error) {
	f := capability.fact
	if capability.claim == nil || f.Timer != t.id {
		return nil, ErrNoCapability
	}
	if capability.claim.owner != nil {
		return nil, ErrPinInUse
	}
	if t.channels[f.Channel] != nil {
		return nil, ErrChannelInUse
	}
	if cfg.PulseMaxUs <= cfg.PulseMinUs {
		return nil, &ConfigError{t.id, cfg.FreqHz, ErrOutOfRange}
	}
	if err := t.Configure(cfg.FreqHz); err != nil {
		return nil, err
	}

	s := &Servo{
		timer: t,
		fact:  f,
		claim: capability.claim,
		cfg:   cfg,
		state: ServoDisabled,
	}
	if err := t.ctrl.emitter.SetCompare(t.id, f.Channel, 0); err != nil {
		return nil, err
	}
	if err := t.ctrl.emitter.SetChannelMode(t.id, f.Channel, false); err != nil {
		return nil, err
	}
	_ = s.claim.acquire(s)
	t.channels[f.Channel] = s
	recordEvent(EvtBind, t.id, f.Channel, 0)
	DebugPrintln("[SERVO] bound " + f.String())
	return s, nil
}

// Servo returns the binding on a channel, nil when free
func (t *Timer) Servo(ch Channel) *Servo {
	if ch >= NumChannels {
		return nil
	}
	return t.channels[ch]
}

// ServoState is the lifecycle state of a binding
type ServoState uint8

const (
	ServoUnconfigured ServoState = iota
	ServoDisabled
	ServoEnabled
)

func (s ServoState) String() string {
	switch s {
	case ServoDisabled:
		return "disabled"
	case ServoEnabled:
		return "enabled"
	default:
		return "unconfigured"
	}
}

// Servo is a hobby servo bound to one timer compare channel. It is the only
// writer of that channel's compare register, so the cached compare value is
// the hardware value.
type Servo struct {
	timer   *Timer
	fact    Fact
	claim   *pinClaim
	cfg     ServoConfig
	compare uint16
	state   ServoState
}

// Fact returns the (timer, channel, pin) the servo is bound to
func (s *Servo) Fact() Fact {
	return s.fact
}

// Config returns the servo calibration
func (s *Servo) Config() ServoConfig {
	return s.cfg
}

// State returns the lifecycle state
func (s *Servo) State() ServoState {
	return s.state
}

// Enabled reports whether pulses are being generated
func (s *Servo) Enabled() bool {
	return s.state == ServoEnabled
}

// Timing returns the timer's prescaler and TOP with this channel's compare
func (s *Servo) Timing() Timing {
	t := s.timer.Timing()
	t.Compare = s.compare
	return t
}

// Ticks returns the current compare value
func (s *Servo) Ticks() uint16 {
	return s.compare
}

// connected reports whether the compare output drives the pin. Fast PWM
// still emits a one-tick pulse at OCRnx=BOTTOM, so a zero compare keeps
// the output disconnected even while enabled.
func (s *Servo) connected() bool {
	return s.state == ServoEnabled && s.compare != 0
}

// Enable starts the pulse train. The compare output is connected once the
// compare value is nonzero.
func (s *Servo) Enable() error {
	switch s.state {
	case ServoUnconfigured:
		return ErrServoReleased
	case ServoEnabled:
		return nil
	}
	if s.compare != 0 {
		if err := s.timer.ctrl.emitter.SetChannelMode(s.fact.Timer, s.fact.Channel, true); err != nil {
			return err
		}
	}
	s.state = ServoEnabled
	recordEvent(EvtEnable, s.fact.Timer, s.fact.Channel, s.compare)
	return nil
}

// Disable stops the pulse train and leaves the pin driven low
func (s *Servo) Disable() error {
	switch s.state {
	case ServoUnconfigured:
		return ErrServoReleased
	case ServoDisabled:
		return nil
	}
	if s.connected() {
		if err := s.timer.ctrl.emitter.SetChannelMode(s.fact.Timer, s.fact.Channel, false); err != nil {
			return err
		}
	}
	s.state = ServoDisabled
	recordEvent(EvtDisable, s.fact.Timer, s.fact.Channel, s.compare)
	return nil
}

// SetAngle moves the servo. Angles outside [0, 180] are clamped. The
// compare register is only written when the tick value changes.
func (s *Servo) SetAngle(angle float32) error {
	if s.state == ServoUnconfigured {
		return ErrServoReleased
	}
	top := s.timer.timing.Top
	ticks := AngleToTicks(angle, top, s.cfg.PulseMinUs, s.cfg.PulseMaxUs, s.timer.TickMicros())
	return s.writeCompare(ticks)
}

// SetMicroseconds sets the pulse width directly, clamped to the
// calibrated pulse range
func (s *Servo) SetMicroseconds(us uint32) error {
	if us < s.cfg.PulseMinUs {
		us = s.cfg.PulseMinUs
	}
	if us > s.cfg.PulseMaxUs {
		us = s.cfg.PulseMaxUs
	}
	span := float32(s.cfg.PulseMaxUs - s.cfg.PulseMinUs)
	return s.SetAngle(float32(us-s.cfg.PulseMinUs) / span * MaxAngle)
}

// SetTicks writes a raw compare value, clamped to TOP
func (s *Servo) SetTicks(ticks uint16) error {
	if s.state == ServoUnconfigured {
		return ErrServoReleased
	}
	if top := s.timer.timing.Top; ticks > top {
		ticks = top
	}
	return s.writeCompare(ticks)
}

func (s *Servo) writeCompare(ticks uint16) error {
	if ticks == s.compare {
		return nil
	}
	em := s.timer.ctrl.emitter
	wasConnected := s.connected()
	if wasConnected && ticks == 0 {
		if err := em.SetChannelMode(s.fact.Timer, s.fact.Channel, false); err != nil {
			return err
		}
	}
	if err := em.SetCompare(s.fact.Timer, s.fact.Channel, ticks); err != nil {
		return err
	}
	s.compare = ticks
	recordEvent(EvtCompare, s.fact.Timer, s.fact.Channel, ticks)
	if !wasConnected && s.connected() {
		return em.SetChannelMode(s.fact.Timer, s.fact.Channel, true)
	}
	return nil
}

// Positioned reports whether a nonzero compare value has been written
func (s *Servo) Positioned() bool {
	return s.compare != 0
}

// Angle returns the commanded angle from the cached compare value. An
// unpositioned servo reports 0; check Positioned first.
func (s *Servo) Angle() float32 {
	return TicksToAngle(s.compare, s.timer.timing.Top, s.cfg.PulseMinUs, s.cfg.PulseMaxUs, s.timer.TickMicros())
}

// Release disables the servo and frees its channel and pin. The timer keeps
// its frequency.
func (s *Servo) Release() error {
	if s.state == ServoUnconfigured {
		return ErrServoReleased
	}
	if err := s.timer.ctrl.emitter.SetChannelMode(s.fact.Timer, s.fact.Channel, false); err != nil {
		return err
	}
	s.state = ServoUnconfigured
	s.timer.channels[s.fact.Channel] = nil
	s.claim.release(s)
	recordEvent(EvtRelease, s.fact.Timer, s.fact.Channel, 0)
	return nil
}
