package core

import "errors"

var (
	ErrPinsTaken    = errors.New("pins already taken")
	ErrPinInUse     = errors.New("pin in use")
	ErrNoCapability = errors.New("no 16-bit compare output on pin")
)

// pinClaim is shared by every copy of a pin token. A Go value cannot be
// moved out of its owner, so exclusive use is tracked here instead.
type pinClaim struct {
	pin   Pin
	owner *Servo
}

func (c *pinClaim) acquire(s *Servo) error {
	if c.owner != nil {
		return ErrPinInUse
	}
	c.owner = s
	return nil
}

func (c *pinClaim) release(s *Servo) {
	if c.owner == s {
		c.owner = nil
	}
}

// One token type per servo-capable pin. The types are what make
// OC1A(pins.D12) a compile error.
type (
	PinD2  struct{ claim *pinClaim }
	PinD3  struct{ claim *pinClaim }
	PinD5  struct{ claim *pinClaim }
	PinD6  struct{ claim *pinClaim }
	PinD7  struct{ claim *pinClaim }
	PinD8  struct{ claim *pinClaim }
	PinD11 struct{ claim *pinClaim }
	PinD12 struct{ claim *pinClaim }
	PinD13 struct{ claim *pinClaim }
	PinD44 struct{ claim *pinClaim }
	PinD45 struct{ claim *pinClaim }
	PinD46 struct{ claim *pinClaim }
)

// Pins holds the tokens for every pin wired to a 16-bit compare output
type Pins struct {
	D2  PinD2
	D3  PinD3
	D5  PinD5
	D6  PinD6
	D7  PinD7
	D8  PinD8
	D11 PinD11
	D12 PinD12
	D13 PinD13
	D44 PinD44
	D45 PinD45
	D46 PinD46

	claims map[Pin]*pinClaim
}

var pinsTaken bool

// TakePins hands out the pin tokens. It succeeds once per program, like
// taking the peripheral singleton; later calls return ErrPinsTaken.
func TakePins() (*Pins, error) {
	if pinsTaken {
		return nil, ErrPinsTaken
	}
	pinsTaken = true
	return newPins(), nil
}

func newPins() *Pins {
	p := &Pins{claims: make(map[Pin]*pinClaim, len(facts))}
	for _, f := range facts {
		p.claims[f.Pin] = &pinClaim{pin: f.Pin}
	}
	p.D2 = PinD2{p.claims[D2]}
	p.D3 = PinD3{p.claims[D3]}
	p.D5 = PinD5{p.claims[D5]}
	p.D6 = PinD6{p.claims[D6]}
	p.D7 = PinD7{p.claims[D7]}
	p.D8 = PinD8{p.claims[D8]}
	p.D11 = PinD11{p.claims[D11]}
	p.D12 = PinD12{p.claims[D12]}
	p.D13 = PinD13{p.claims[D13]}
	p.D44 = PinD44{p.claims[D44]}
	p.D45 = PinD45{p.claims[D45]}
	p.D46 = PinD46{p.claims[D46]}
	return p
}

// Capability looks up the compare output for a pin chosen at runtime, for
// configuration-driven tools. Only registry facts are ever returned; pins
// without a 16-bit compare output fail with ErrNoCapability. Firmware should
// prefer the typed OCnx constructors.
func (p *Pins) Capability(pin Pin) (Capability, error) {
	f, ok := FactForPin(pin)
	if !ok {
		return Capability{}, ErrNoCapability
	}
	return Capability{fact: f, claim: p.claims[pin]}, nil
}

// InUse reports whether a binding currently owns pin
func (p *Pins) InUse(pin Pin) bool {
	c, ok := p.claims[pin]
	return ok && c.owner != nil
}
