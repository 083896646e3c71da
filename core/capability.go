// Servo capability registry for the ATmega2560 16-bit timer/counters.
//
// Each 16-bit timer (TC1, TC3, TC4, TC5) drives three output compare
// channels, and every channel is hard-wired to exactly one pin. The table
// below is the complete set of valid (timer, channel, pin) facts. Pin tokens
// (pins.go) and the OCnx constructors turn this table into types, so a
// capability for a triple outside the table cannot be written down.
package core

// TimerID identifies one of the 16-bit timer/counter units
type TimerID uint8

const (
	Timer1 TimerID = 1
	Timer3 TimerID = 3
	Timer4 TimerID = 4
	Timer5 TimerID = 5
)

// Timers lists the servo-capable timers in register order
var Timers = [...]TimerID{Timer1, Timer3, Timer4, Timer5}

func (t TimerID) String() string {
	switch t {
	case Timer1, Timer3, Timer4, Timer5:
		return "TC" + itoa(int(t))
	default:
		return "TC?"
	}
}

// index maps a timer onto a dense 0-3 slot, -1 when unknown
func (t TimerID) index() int {
	switch t {
	case Timer1:
		return 0
	case Timer3:
		return 1
	case Timer4:
		return 2
	case Timer5:
		return 3
	default:
		return -1
	}
}

// Channel identifies an output compare channel within a timer
type Channel uint8

const (
	ChannelA Channel = iota
	ChannelB
	ChannelC
)

// NumChannels is the number of output compare channels per 16-bit timer
const NumChannels = 3

func (c Channel) String() string {
	switch c {
	case ChannelA:
		return "A"
	case ChannelB:
		return "B"
	case ChannelC:
		return "C"
	default:
		return "?"
	}
}

// Pin is an Arduino Mega digital pin number
type Pin uint8

const (
	D2  Pin = 2
	D3  Pin = 3
	D5  Pin = 5
	D6  Pin = 6
	D7  Pin = 7
	D8  Pin = 8
	D11 Pin = 11
	D12 Pin = 12
	D13 Pin = 13
	D44 Pin = 44
	D45 Pin = 45
	D46 Pin = 46
)

func (p Pin) String() string {
	return "D" + itoa(int(p))
}

// PortBit is the AVR I/O port letter and bit a pin lives on
type PortBit struct {
	Port byte // 'B', 'E', 'H' or 'L'
	Bit  uint8
}

func (pb PortBit) String() string {
	return "P" + string(pb.Port) + itoa(int(pb.Bit))
}

// Fact is one valid (timer, channel, pin) wiring
type Fact struct {
	Timer   TimerID
	Channel Channel
	Pin     Pin
	Port    PortBit
}

// Name returns the datasheet name of the compare output, e.g. "OC1A"
func (f Fact) Name() string {
	return "OC" + itoa(int(f.Timer)) + f.Channel.String()
}

func (f Fact) String() string {
	return f.Name() + "/" + f.Pin.String() + "/" + f.Port.String()
}

// facts is the ATmega2560 output compare wiring for the 16-bit timers.
// Order is timer then channel; the slice is never modified.
var facts = [...]Fact{
	{Timer1, ChannelA, D11, PortBit{'B', 5}},
	{Timer1, ChannelB, D12, PortBit{'B', 6}},
	{Timer1, ChannelC, D13, PortBit{'B', 7}},
	{Timer3, ChannelA, D5, PortBit{'E', 3}},
	{Timer3, ChannelB, D2, PortBit{'E', 4}},
	{Timer3, ChannelC, D3, PortBit{'E', 5}},
	{Timer4, ChannelA, D6, PortBit{'H', 3}},
	{Timer4, ChannelB, D7, PortBit{'H', 4}},
	{Timer4, ChannelC, D8, PortBit{'H', 5}},
	{Timer5, ChannelA, D46, PortBit{'L', 3}},
	{Timer5, ChannelB, D45, PortBit{'L', 4}},
	{Timer5, ChannelC, D44, PortBit{'L', 5}},
}

// Facts returns a copy of the capability table
func Facts() []Fact {
	out := make([]Fact, len(facts))
	copy(out, facts[:])
	return out
}

// IsValid reports whether the silicon routes the given channel of timer to pin
func IsValid(timer TimerID, channel Channel, pin Pin) bool {
	f, ok := FactForChannel(timer, channel)
	return ok && f.Pin == pin
}

// FactForChannel returns the wiring of a timer's compare channel
func FactForChannel(timer TimerID, channel Channel) (Fact, bool) {
	idx := timer.index()
	if idx < 0 || channel >= NumChannels {
		return Fact{}, false
	}
	return facts[idx*NumChannels+int(channel)], true
}

// FactForPin returns the compare channel wired to pin. Pins map to at most
// one 16-bit compare output.
func FactForPin(pin Pin) (Fact, bool) {
	for _, f := range facts {
		if f.Pin == pin {
			return f, true
		}
	}
	return Fact{}, false
}

// ParsePin converts "D11" or "11" into a Pin with a 16-bit compare output
func ParsePin(s string) (Pin, bool) {
	if len(s) > 1 && (s[0] == 'D' || s[0] == 'd') {
		s = s[1:]
	}
	n, ok := atou(s)
	if !ok || n > 255 {
		return 0, false
	}
	if _, ok := FactForPin(Pin(n)); !ok {
		return 0, false
	}
	return Pin(n), true
}

// Capability is proof that a (timer, channel, pin) triple is in the registry.
// Values are only produced by the OCnx constructors and Pins.Capability; the
// zero value is rejected by Bind.
type Capability struct {
	fact  Fact
	claim *pinClaim
}

// Fact returns the wiring this capability stands for
func (c Capability) Fact() Fact {
	return c.fact
}

func newCapability(timer TimerID, channel Channel, claim *pinClaim) Capability {
	f, _ := FactForChannel(timer, channel)
	return Capability{fact: f, claim: claim}
}

// OC1A is timer 1 channel A on D11 (PB5)
func OC1A(p PinD11) Capability { return newCapability(Timer1, ChannelA, p.claim) }

// OC1B is timer 1 channel B on D12 (PB6)
func OC1B(p PinD12) Capability { return newCapability(Timer1, ChannelB, p.claim) }

// OC1C is timer 1 channel C on D13 (PB7)
func OC1C(p PinD13) Capability { return newCapability(Timer1, ChannelC, p.claim) }

// OC3A is timer 3 channel A on D5 (PE3)
func OC3A(p PinD5) Capability { return newCapability(Timer3, ChannelA, p.claim) }

// OC3B is timer 3 channel B on D2 (PE4)
func OC3B(p PinD2) Capability { return newCapability(Timer3, ChannelB, p.claim) }

// OC3C is timer 3 channel C on D3 (PE5)
func OC3C(p PinD3) Capability { return newCapability(Timer3, ChannelC, p.claim) }

// OC4A is timer 4 channel A on D6 (PH3)
func OC4A(p PinD6) Capability { return newCapability(Timer4, ChannelA, p.claim) }

// OC4B is timer 4 channel B on D7 (PH4)
func OC4B(p PinD7) Capability { return newCapability(Timer4, ChannelB, p.claim) }

// OC4C is timer 4 channel C on D8 (PH5)
func OC4C(p PinD8) Capability { return newCapability(Timer4, ChannelC, p.claim) }

// OC5A is timer 5 channel A on D46 (PL3)
func OC5A(p PinD46) Capability { return newCapability(Timer5, ChannelA, p.claim) }

// OC5B is timer 5 channel B on D45 (PL4)
func OC5B(p PinD45) Capability { return newCapability(Timer5, ChannelB, p.claim) }

// OC5C is timer 5 channel C on D44 (PL5)
func OC5C(p PinD44) Capability { return newCapability(Timer5, ChannelC, p.claim) }
