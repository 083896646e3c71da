package core

import "errors"

var (
	ErrUnknownTimer       = errors.New("unknown timer")
	ErrTimingApplied      = errors.New("timer timing already applied")
	ErrTimerNotConfigured = errors.New("timer timing not applied")
)

// Emitter performs the register writes a servo binding asks for. Timing is
// applied once per timer before any channel operation on that timer.
type Emitter interface {
	ApplyTiming(timer TimerID, t Timing) error
	SetCompare(timer TimerID, ch Channel, value uint16) error
	SetChannelMode(timer TimerID, ch Channel, enabled bool) error
}

// OpKind identifies a single TimerPort operation
type OpKind uint8

const (
	OpStopTimer OpKind = iota
	OpWaveform
	OpWriteTop
	OpPrescaler
	OpWriteCompare
	OpCompareOutput
	OpPinMode
)

// Op is one register operation. Value holds the operand: waveform mode,
// TOP, prescaler divisor, compare value, compare output or pin mode.
type Op struct {
	Kind    OpKind
	Timer   TimerID
	Channel Channel
	Pin     Pin
	Value   uint16
}

func (op Op) String() string {
	ch := op.Timer.String() + op.Channel.String()
	switch op.Kind {
	case OpStopTimer:
		return op.Timer.String() + " stop"
	case OpWaveform:
		return op.Timer.String() + " waveform=" + utoa(uint32(op.Value))
	case OpWriteTop:
		return op.Timer.String() + " ICR=" + utoa(uint32(op.Value))
	case OpPrescaler:
		return op.Timer.String() + " prescaler=" + Prescaler(op.Value).String()
	case OpWriteCompare:
		return ch + " OCR=" + utoa(uint32(op.Value))
	case OpCompareOutput:
		return ch + " COM=" + utoa(uint32(op.Value))
	case OpPinMode:
		if PinMode(op.Value) == PinOutputLow {
			return op.Pin.String() + " output-low"
		}
		return op.Pin.String() + " input"
	default:
		return "op?"
	}
}

func (op Op) apply(port TimerPort) error {
	switch op.Kind {
	case OpStopTimer:
		return port.StopTimer(op.Timer)
	case OpWaveform:
		return port.SetWaveform(op.Timer, Waveform(op.Value))
	case OpWriteTop:
		return port.WriteTop(op.Timer, op.Value)
	case OpPrescaler:
		return port.SelectPrescaler(op.Timer, Prescaler(op.Value))
	case OpWriteCompare:
		return port.WriteCompare(op.Timer, op.Channel, op.Value)
	case OpCompareOutput:
		return port.SetCompareOutput(op.Timer, op.Channel, CompareOutput(op.Value))
	case OpPinMode:
		return port.SetPinMode(op.Pin, PinMode(op.Value))
	}
	return nil
}

// Program is an ordered list of register operations
type Program []Op

// Run applies the operations in order, stopping at the first error
func (p Program) Run(port TimerPort) error {
	for _, op := range p {
		if err := op.apply(port); err != nil {
			return err
		}
	}
	return nil
}

// TimingProgram configures a timer for fast PWM with TOP in ICRn. The
// clock is selected last so the counter only starts once TOP is in place.
func TimingProgram(timer TimerID, t Timing) Program {
	return Program{
		{Kind: OpStopTimer, Timer: timer},
		{Kind: OpWaveform, Timer: timer, Value: uint16(WaveformFastPWMICR)},
		{Kind: OpWriteTop, Timer: timer, Value: t.Top},
		{Kind: OpPrescaler, Timer: timer, Value: uint16(t.Prescaler)},
	}
}

// ChannelProgram connects or disconnects a compare channel from its pin.
// A disconnected pin is left driven low.
func ChannelProgram(timer TimerID, ch Channel, enabled bool) Program {
	f, ok := FactForChannel(timer, ch)
	if !ok {
		return nil
	}
	if enabled {
		return Program{
			{Kind: OpPinMode, Timer: timer, Channel: ch, Pin: f.Pin, Value: uint16(PinOutputLow)},
			{Kind: OpCompareOutput, Timer: timer, Channel: ch, Pin: f.Pin, Value: uint16(CompareNonInverting)},
		}
	}
	return Program{
		{Kind: OpCompareOutput, Timer: timer, Channel: ch, Pin: f.Pin, Value: uint16(CompareDisconnected)},
		{Kind: OpPinMode, Timer: timer, Channel: ch, Pin: f.Pin, Value: uint16(PinOutputLow)},
	}
}

// ProgramEmitter implements Emitter on top of a TimerPort
type ProgramEmitter struct {
	port    TimerPort
	applied [len(Timers)]bool
	trace   func(Op)
}

// NewProgramEmitter creates an emitter driving port
func NewProgramEmitter(port TimerPort) *ProgramEmitter {
	return &ProgramEmitter{port: port}
}

// SetTrace installs a callback invoked with every operation before it runs
func (e *ProgramEmitter) SetTrace(fn func(Op)) {
	e.trace = fn
}

// Applied reports whether the timer's timing has been written
func (e *ProgramEmitter) Applied(timer TimerID) bool {
	idx := timer.index()
	return idx >= 0 && e.applied[idx]
}

// ApplyTiming implements Emitter
func (e *ProgramEmitter) ApplyTiming(timer TimerID, t Timing) error {
	idx := timer.index()
	if idx < 0 {
		return ErrUnknownTimer
	}
	if e.applied[idx] {
		return ErrTimingApplied
	}
	if err := e.run(TimingProgram(timer, t)); err != nil {
		return err
	}
	e.applied[idx] = true
	return nil
}

// SetCompare implements Emitter
func (e *ProgramEmitter) SetCompare(timer TimerID, ch Channel, value uint16) error {
	if err := e.checkChannel(timer, ch); err != nil {
		return err
	}
	return e.run(Program{{Kind: OpWriteCompare, Timer: timer, Channel: ch, Value: value}})
}

// SetChannelMode implements Emitter
func (e *ProgramEmitter) SetChannelMode(timer TimerID, ch Channel, enabled bool) error {
	if err := e.checkChannel(timer, ch); err != nil {
		return err
	}
	return e.run(ChannelProgram(timer, ch, enabled))
}

func (e *ProgramEmitter) checkChannel(timer TimerID, ch Channel) error {
	idx := timer.index()
	if idx < 0 || ch >= NumChannels {
		return ErrUnknownTimer
	}
	if !e.applied[idx] {
		return ErrTimerNotConfigured
	}
	return nil
}

func (e *ProgramEmitter) run(p Program) error {
	for _, op := range p {
		if e.trace != nil {
			e.trace(op)
		}
		if err := op.apply(e.port); err != nil {
			return err
		}
	}
	return nil
}
