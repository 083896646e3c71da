package core

import "testing"

func TestCapabilityTable(t *testing.T) {
	all := Facts()
	if len(all) != len(Timers)*NumChannels {
		t.Fatalf("Expected %d facts, got %d", len(Timers)*NumChannels, len(all))
	}

	seen := make(map[Pin]bool)
	for _, f := range all {
		if !IsValid(f.Timer, f.Channel, f.Pin) {
			t.Errorf("Expected %s to be valid", f)
		}
		if seen[f.Pin] {
			t.Errorf("Pin %s wired to more than one compare output", f.Pin)
		}
		seen[f.Pin] = true

		byPin, ok := FactForPin(f.Pin)
		if !ok || byPin != f {
			t.Errorf("Expected FactForPin(%s) = %s, got %s", f.Pin, f, byPin)
		}
	}
}

func TestIsValidRejectsUnwiredTriples(t *testing.T) {
	testCases := []struct {
		timer   TimerID
		channel Channel
		pin     Pin
	}{
		{Timer1, ChannelC, D11},
		{Timer1, ChannelA, D12},
		{Timer3, ChannelA, D2},
		{Timer5, ChannelC, D46},
		{TimerID(2), ChannelA, D11},
		{Timer4, Channel(3), D6},
	}

	for _, tc := range testCases {
		if IsValid(tc.timer, tc.channel, tc.pin) {
			t.Errorf("Expected (%s, %s, %s) to be invalid", tc.timer, tc.channel, tc.pin)
		}
	}
}

func TestFactNames(t *testing.T) {
	f, ok := FactForChannel(Timer3, ChannelB)
	if !ok {
		t.Fatal("Expected TC3 channel B to exist")
	}
	if f.Name() != "OC3B" {
		t.Errorf("Expected OC3B, got %s", f.Name())
	}
	if f.String() != "OC3B/D2/PE4" {
		t.Errorf("Expected OC3B/D2/PE4, got %s", f.String())
	}
	if Timer5.String() != "TC5" || TimerID(9).String() != "TC?" {
		t.Errorf("Unexpected timer names %s %s", Timer5, TimerID(9))
	}
}

func TestParsePin(t *testing.T) {
	testCases := []struct {
		in   string
		pin  Pin
		okay bool
	}{
		{"D11", D11, true},
		{"d44", D44, true},
		{"3", D3, true},
		{"D4", 0, false},
		{"D", 0, false},
		{"", 0, false},
		{"D1x", 0, false},
		{"D300", 0, false},
	}

	for _, tc := range testCases {
		pin, ok := ParsePin(tc.in)
		if ok != tc.okay || pin != tc.pin {
			t.Errorf("ParsePin(%q): expected (%s, %v), got (%s, %v)", tc.in, tc.pin, tc.okay, pin, ok)
		}
	}
}

func TestTypedConstructors(t *testing.T) {
	pins := newPins()

	testCases := []struct {
		cap  Capability
		name string
		pin  Pin
	}{
		{OC1A(pins.D11), "OC1A", D11},
		{OC1B(pins.D12), "OC1B", D12},
		{OC1C(pins.D13), "OC1C", D13},
		{OC3A(pins.D5), "OC3A", D5},
		{OC3B(pins.D2), "OC3B", D2},
		{OC3C(pins.D3), "OC3C", D3},
		{OC4A(pins.D6), "OC4A", D6},
		{OC4B(pins.D7), "OC4B", D7},
		{OC4C(pins.D8), "OC4C", D8},
		{OC5A(pins.D46), "OC5A", D46},
		{OC5B(pins.D45), "OC5B", D45},
		{OC5C(pins.D44), "OC5C", D44},
	}

	for _, tc := range testCases {
		f := tc.cap.Fact()
		if f.Name() != tc.name || f.Pin != tc.pin {
			t.Errorf("Expected %s on %s, got %s", tc.name, tc.pin, f)
		}
		if tc.cap.claim == nil || tc.cap.claim.pin != tc.pin {
			t.Errorf("Expected %s to carry the claim for %s", tc.name, tc.pin)
		}
	}
}

func TestRuntimeCapability(t *testing.T) {
	pins := newPins()

	c, err := pins.Capability(D45)
	if err != nil {
		t.Fatalf("Capability(D45) failed: %v", err)
	}
	if c.Fact().Name() != "OC5B" {
		t.Errorf("Expected OC5B, got %s", c.Fact().Name())
	}

	if _, err := pins.Capability(Pin(4)); err != ErrNoCapability {
		t.Errorf("Expected ErrNoCapability for D4, got %v", err)
	}
}

func TestTakePinsOnce(t *testing.T) {
	saved := pinsTaken
	defer func() { pinsTaken = saved }()
	pinsTaken = false

	if _, err := TakePins(); err != nil {
		t.Fatalf("First TakePins failed: %v", err)
	}
	if _, err := TakePins(); err != ErrPinsTaken {
		t.Errorf("Expected ErrPinsTaken, got %v", err)
	}
}
