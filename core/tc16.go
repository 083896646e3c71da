package core

// RegisterBus gives byte access to the AVR data space. On hardware it is
// backed by volatile memory-mapped I/O; MemoryBus backs it in tests and on
// the host.
type RegisterBus interface {
	Load8(addr uint16) uint8
	Store8(addr uint16, v uint8)
}

// ATmega2560 16-bit timer register blocks. Every timer uses the same layout
// relative to its TCCRnA address.
const (
	tc1Base = 0x80
	tc3Base = 0x90
	tc4Base = 0xA0
	tc5Base = 0x120

	offTCCRA = 0x0
	offTCCRB = 0x1
	offTCCRC = 0x2
	offTCNT  = 0x4
	offICR   = 0x6
	offOCRA  = 0x8 // OCRnB and OCRnC follow at +2 and +4

	wgmLowMask   = 0b0000_0011 // WGMn1:0 in TCCRnA
	wgmHighShift = 3           // WGMn3:2 in TCCRnB bits 4:3
	wgmHighMask  = 0b0001_1000
	csMask       = 0b0000_0111
)

// Interrupt flag and mask registers sit outside the timer blocks
var (
	tifrAddr  = [len(Timers)]uint16{0x36, 0x38, 0x39, 0x3A}
	timskAddr = [len(Timers)]uint16{0x6F, 0x71, 0x72, 0x73}
)

// GPIO register triplets (PINx, DDRx, PORTx) for the compare pins
var gpioBase = map[byte]uint16{
	'B': 0x23,
	'E': 0x2C,
	'H': 0x100,
	'L': 0x109,
}

func timerBase(timer TimerID) (uint16, bool) {
	switch timer {
	case Timer1:
		return tc1Base, true
	case Timer3:
		return tc3Base, true
	case Timer4:
		return tc4Base, true
	case Timer5:
		return tc5Base, true
	}
	return 0, false
}

// TC16Port implements TimerPort for the ATmega2560 16-bit timers
type TC16Port struct {
	bus RegisterBus
}

// NewTC16Port creates a port on top of bus
func NewTC16Port(bus RegisterBus) *TC16Port {
	return &TC16Port{bus: bus}
}

// write16 stores a 16-bit register. The high byte goes first into the
// shared TEMP register, so interrupts stay masked for the pair.
func (p *TC16Port) write16(addr uint16, v uint16) {
	state := disableInterrupts()
	p.bus.Store8(addr+1, uint8(v>>8))
	p.bus.Store8(addr, uint8(v))
	restoreInterrupts(state)
}

// read16 loads a 16-bit register, low byte first
func (p *TC16Port) read16(addr uint16) uint16 {
	state := disableInterrupts()
	lo := p.bus.Load8(addr)
	hi := p.bus.Load8(addr + 1)
	restoreInterrupts(state)
	return uint16(hi)<<8 | uint16(lo)
}

func (p *TC16Port) modify(addr uint16, mask, bits uint8) {
	v := p.bus.Load8(addr)
	p.bus.Store8(addr, v&^mask|bits&mask)
}

// StopTimer implements TimerPort
func (p *TC16Port) StopTimer(timer TimerID) error {
	base, ok := timerBase(timer)
	if !ok {
		return ErrUnknownTimer
	}
	p.bus.Store8(base+offTCCRB, 0)
	p.bus.Store8(base+offTCCRA, 0)
	p.bus.Store8(base+offTCCRC, 0)
	p.write16(base+offTCNT, 0)
	return nil
}

// SetWaveform implements TimerPort
func (p *TC16Port) SetWaveform(timer TimerID, mode Waveform) error {
	base, ok := timerBase(timer)
	if !ok {
		return ErrUnknownTimer
	}
	p.modify(base+offTCCRA, wgmLowMask, uint8(mode))
	p.modify(base+offTCCRB, wgmHighMask, uint8(mode)>>2<<wgmHighShift)
	return nil
}

// WriteTop implements TimerPort
func (p *TC16Port) WriteTop(timer TimerID, top uint16) error {
	base, ok := timerBase(timer)
	if !ok {
		return ErrUnknownTimer
	}
	p.write16(base+offICR, top)
	return nil
}

// SelectPrescaler implements TimerPort
func (p *TC16Port) SelectPrescaler(timer TimerID, ps Prescaler) error {
	base, ok := timerBase(timer)
	if !ok {
		return ErrUnknownTimer
	}
	if !ps.Valid() {
		return &TimingError{Prescaler: ps, Err: ErrOutOfRange}
	}
	p.modify(base+offTCCRB, csMask, ps.clockSelect())
	return nil
}

// WriteCompare implements TimerPort
func (p *TC16Port) WriteCompare(timer TimerID, ch Channel, value uint16) error {
	base, ok := timerBase(timer)
	if !ok || ch >= NumChannels {
		return ErrUnknownTimer
	}
	p.write16(base+offOCRA+2*uint16(ch), value)
	return nil
}

// SetCompareOutput implements TimerPort
func (p *TC16Port) SetCompareOutput(timer TimerID, ch Channel, mode CompareOutput) error {
	base, ok := timerBase(timer)
	if !ok || ch >= NumChannels {
		return ErrUnknownTimer
	}
	shift := 6 - 2*uint8(ch) // COMnA at 7:6, COMnB at 5:4, COMnC at 3:2
	p.modify(base+offTCCRA, 0b11<<shift, uint8(mode)<<shift)
	return nil
}

// SetPinMode implements TimerPort
func (p *TC16Port) SetPinMode(pin Pin, mode PinMode) error {
	f, ok := FactForPin(pin)
	if !ok {
		return ErrNoCapability
	}
	base := gpioBase[f.Port.Port]
	bit := uint8(1) << f.Port.Bit
	ddr, port := base+1, base+2
	p.modify(port, bit, 0)
	if mode == PinOutputLow {
		p.modify(ddr, bit, bit)
	} else {
		p.modify(ddr, bit, 0)
	}
	return nil
}

// ReadCounter implements TimerPort
func (p *TC16Port) ReadCounter(timer TimerID) (uint16, error) {
	base, ok := timerBase(timer)
	if !ok {
		return 0, ErrUnknownTimer
	}
	return p.read16(base + offTCNT), nil
}

// TimerRegisters is a read-back of one timer's register block
type TimerRegisters struct {
	Timer               TimerID
	TCCRA, TCCRB, TCCRC uint8
	TIFR, TIMSK         uint8
	TCNT, ICR           uint16
	OCR                 [NumChannels]uint16
}

// Waveform decodes WGMn3:0 from the control registers
func (r TimerRegisters) Waveform() Waveform {
	return Waveform(r.TCCRA&wgmLowMask | (r.TCCRB&wgmHighMask)>>wgmHighShift<<2)
}

// String formats the registers on one line, e.g.
// "TC1 TCCRA=130 TCCRB=26 TCCRC=0 TCNT=812 ICR=39999 OCRA=3000 OCRB=0 OCRC=0 TIFR=0 TIMSK=0"
func (r TimerRegisters) String() string {
	s := r.Timer.String() +
		" TCCRA=" + utoa(uint32(r.TCCRA)) +
		" TCCRB=" + utoa(uint32(r.TCCRB)) +
		" TCCRC=" + utoa(uint32(r.TCCRC)) +
		" TCNT=" + utoa(uint32(r.TCNT)) +
		" ICR=" + utoa(uint32(r.ICR))
	for ch := Channel(0); ch < NumChannels; ch++ {
		s += " OCR" + ch.String() + "=" + utoa(uint32(r.OCR[ch]))
	}
	return s + " TIFR=" + utoa(uint32(r.TIFR)) + " TIMSK=" + utoa(uint32(r.TIMSK))
}

// Dump reads back every register of a timer. The counter keeps running,
// so TCNT is only a sample.
func (p *TC16Port) Dump(timer TimerID) (TimerRegisters, error) {
	base, ok := timerBase(timer)
	if !ok {
		return TimerRegisters{}, ErrUnknownTimer
	}
	tcnt, err := p.ReadCounter(timer)
	if err != nil {
		return TimerRegisters{}, err
	}
	r := TimerRegisters{
		Timer: timer,
		TCCRA: p.bus.Load8(base + offTCCRA),
		TCCRB: p.bus.Load8(base + offTCCRB),
		TCCRC: p.bus.Load8(base + offTCCRC),
		TIFR:  p.bus.Load8(tifrAddr[timer.index()]),
		TIMSK: p.bus.Load8(timskAddr[timer.index()]),
		TCNT:  tcnt,
		ICR:   p.read16(base + offICR),
	}
	for ch := Channel(0); ch < NumChannels; ch++ {
		r.OCR[ch] = p.read16(base + offOCRA + 2*uint16(ch))
	}
	return r, nil
}

// MemoryBus is a RAM-backed RegisterBus covering the AVR I/O and extended
// I/O space. Every store is appended to Writes.
type MemoryBus struct {
	mem    [0x200]uint8
	Writes []BusWrite
}

// BusWrite records one byte store
type BusWrite struct {
	Addr  uint16
	Value uint8
}

// NewMemoryBus returns a zeroed bus
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{}
}

// Load8 implements RegisterBus
func (m *MemoryBus) Load8(addr uint16) uint8 {
	if int(addr) >= len(m.mem) {
		return 0
	}
	return m.mem[addr]
}

// Store8 implements RegisterBus
func (m *MemoryBus) Store8(addr uint16, v uint8) {
	if int(addr) >= len(m.mem) {
		return
	}
	m.mem[addr] = v
	m.Writes = append(m.Writes, BusWrite{addr, v})
}

// Load16 reads a little-endian register pair
func (m *MemoryBus) Load16(addr uint16) uint16 {
	return uint16(m.Load8(addr+1))<<8 | uint16(m.Load8(addr))
}
