// Package config loads the JSON description of a servo deployment used by
// the host tool
package config

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"megaservo/core"
)

// DefaultClockHz is the Arduino Mega system clock
const DefaultClockHz = 16_000_000

// Config describes the MCU clock, the link and the servo wiring
type Config struct {
	ClockHz uint32        `json:"clock_hz"`
	Serial  SerialConfig  `json:"serial"`
	Servos  []ServoConfig `json:"servos"`
}

// SerialConfig selects the link device
type SerialConfig struct {
	Device string `json:"device"`
	Baud   int    `json:"baud"`
	Driver string `json:"driver"`
}

// ServoConfig describes one servo. Timer and Channel are optional and, when
// present, must agree with the compare output wired to Pin.
type ServoConfig struct {
	Name       string   `json:"name"`
	OID        uint8    `json:"oid"`
	Pin        string   `json:"pin"`
	Timer      int      `json:"timer,omitempty"`
	Channel    string   `json:"channel,omitempty"`
	FreqHz     uint32   `json:"freq_hz"`
	PulseMinUs uint32   `json:"pulse_min_us"`
	PulseMaxUs uint32   `json:"pulse_max_us"`
	Angle      *float32 `json:"angle,omitempty"`
}

// LoadConfig parses a JSON configuration and applies defaults
func LoadConfig(jsonData []byte) (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(jsonData, &cfg); err != nil {
		return nil, errors.Wrap(err, "parse config")
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

// LoadFile reads and parses a configuration file
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}
	return LoadConfig(data)
}

// applyDefaults fills in missing values with a standard hobby servo setup
func applyDefaults(cfg *Config) {
	if cfg.ClockHz == 0 {
		cfg.ClockHz = DefaultClockHz
	}
	if cfg.Serial.Baud == 0 {
		cfg.Serial.Baud = 115200
	}
	if cfg.Serial.Driver == "" {
		cfg.Serial.Driver = "tarm"
	}

	for i := range cfg.Servos {
		s := &cfg.Servos[i]
		if s.FreqHz == 0 {
			s.FreqHz = core.DefaultFreqHz
		}
		if s.PulseMinUs == 0 {
			s.PulseMinUs = core.DefaultPulseMinUs
		}
		if s.PulseMaxUs == 0 {
			s.PulseMaxUs = core.DefaultPulseMaxUs
		}
		if s.Name == "" {
			s.Name = "servo" + strings.TrimPrefix(strings.ToUpper(s.Pin), "D")
		}
	}
}

// Validate reports every problem in the configuration at once
func (c *Config) Validate() error {
	var err error
	if len(c.Servos) == 0 {
		err = multierr.Append(err, errors.New("no servos configured"))
	}

	pins := make(map[core.Pin]string)
	oids := make(map[uint8]string)
	timerFreq := make(map[core.TimerID]uint32)

	for _, s := range c.Servos {
		fact, ferr := s.Fact()
		if ferr != nil {
			err = multierr.Append(err, errors.Wrapf(ferr, "servo %s", s.Name))
			continue
		}

		if other, dup := pins[fact.Pin]; dup {
			err = multierr.Append(err, errors.Errorf("servo %s: pin %s already used by %s", s.Name, fact.Pin, other))
		}
		pins[fact.Pin] = s.Name

		if other, dup := oids[s.OID]; dup {
			err = multierr.Append(err, errors.Errorf("servo %s: oid %d already used by %s", s.Name, s.OID, other))
		}
		oids[s.OID] = s.Name

		if s.PulseMaxUs <= s.PulseMinUs {
			err = multierr.Append(err, errors.Errorf("servo %s: pulse_max_us %d must exceed pulse_min_us %d",
				s.Name, s.PulseMaxUs, s.PulseMinUs))
		}
		if s.Angle != nil && (*s.Angle < 0 || *s.Angle > core.MaxAngle) {
			err = multierr.Append(err, errors.Errorf("servo %s: angle %v outside 0-180", s.Name, *s.Angle))
		}

		if _, perr := core.PickPrescaler(c.ClockHz, s.FreqHz); perr != nil {
			err = multierr.Append(err, errors.Wrapf(perr, "servo %s", s.Name))
		} else if f, seen := timerFreq[fact.Timer]; seen && f != s.FreqHz {
			err = multierr.Append(err, errors.Wrapf(core.ErrTimerAlreadyConfigured,
				"servo %s: %s runs at %d Hz, %d Hz requested", s.Name, fact.Timer, f, s.FreqHz))
		} else {
			timerFreq[fact.Timer] = s.FreqHz
		}
	}
	return err
}

// Fact resolves the servo's pin to its compare output and cross-checks the
// optional timer and channel fields
func (s ServoConfig) Fact() (core.Fact, error) {
	pin, ok := core.ParsePin(s.Pin)
	if !ok {
		return core.Fact{}, errors.Wrapf(core.ErrNoCapability, "pin %q", s.Pin)
	}
	fact, _ := core.FactForPin(pin)

	if s.Timer != 0 || s.Channel != "" {
		ch, ok := parseChannel(s.Channel)
		if !ok {
			return core.Fact{}, errors.Errorf("channel %q is not A, B or C", s.Channel)
		}
		if !core.IsValid(core.TimerID(s.Timer), ch, pin) {
			return core.Fact{}, errors.Errorf("TC%d channel %s is not wired to %s (it is %s)",
				s.Timer, s.Channel, pin, fact.Name())
		}
	}
	return fact, nil
}

// Calibration converts to the core servo configuration
func (s ServoConfig) Calibration() core.ServoConfig {
	return core.ServoConfig{
		FreqHz:     s.FreqHz,
		PulseMinUs: s.PulseMinUs,
		PulseMaxUs: s.PulseMaxUs,
	}
}

func parseChannel(s string) (core.Channel, bool) {
	switch strings.ToUpper(s) {
	case "A":
		return core.ChannelA, true
	case "B":
		return core.ChannelB, true
	case "C":
		return core.ChannelC, true
	}
	return 0, false
}
