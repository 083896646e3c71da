// Package plan binds a configured servo set against a simulated register
// bus and reports the resulting timer configuration
package plan

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/pkg/errors"

	"megaservo/core"
	"megaservo/host/config"
)

// TimerPlan is the derived configuration of one timer
type TimerPlan struct {
	Timer       core.TimerID
	FreqHz      uint32
	Timing      core.Timing
	TickUs      float32
	ActualHz    float32
	MaxPeriodUs float32
}

// ServoPlan is the derived configuration of one servo
type ServoPlan struct {
	Name    string
	OID     uint8
	Fact    core.Fact
	Ticks   uint16
	Angle   float32
	DegTick float32
	Enabled bool
}

// Plan is the outcome of binding a configuration
type Plan struct {
	ClockHz uint32
	Timers  []TimerPlan
	Servos  []ServoPlan
	Program []core.Op

	// Registers is the read-back of every configured timer once the
	// program has run
	Registers []core.TimerRegisters
}

// Build validates cfg and binds every servo through the real controller
// and register emitter on an in-memory bus. Servos with an angle are
// positioned and enabled. The pins are released again before returning.
func Build(cfg *config.Config, pins *core.Pins) (*Plan, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &Plan{ClockHz: cfg.ClockHz}
	port := core.NewTC16Port(core.NewMemoryBus())
	em := core.NewProgramEmitter(port)
	em.SetTrace(func(op core.Op) { p.Program = append(p.Program, op) })
	ctrl := core.NewController(em, cfg.ClockHz)
	defer func() {
		em.SetTrace(nil)
		for _, s := range ctrl.Servos() {
			_ = s.Release()
		}
	}()

	for _, sc := range cfg.Servos {
		fact, err := sc.Fact()
		if err != nil {
			return nil, errors.Wrapf(err, "servo %s", sc.Name)
		}
		capability, err := pins.Capability(fact.Pin)
		if err != nil {
			return nil, errors.Wrapf(err, "servo %s", sc.Name)
		}
		s, err := ctrl.Bind(capability, sc.Calibration())
		if err != nil {
			return nil, errors.Wrapf(err, "bind servo %s", sc.Name)
		}
		if sc.Angle != nil {
			if err := s.SetAngle(*sc.Angle); err != nil {
				return nil, errors.Wrapf(err, "servo %s", sc.Name)
			}
			if err := s.Enable(); err != nil {
				return nil, errors.Wrapf(err, "servo %s", sc.Name)
			}
		}

		tick := ctrl.Timer(fact.Timer).TickMicros()
		p.Servos = append(p.Servos, ServoPlan{
			Name:    sc.Name,
			OID:     sc.OID,
			Fact:    fact,
			Ticks:   s.Ticks(),
			Angle:   s.Angle(),
			DegTick: core.DegreesPerTick(tick, sc.PulseMinUs, sc.PulseMaxUs),
			Enabled: s.Enabled(),
		})
	}

	for _, id := range core.Timers {
		t := ctrl.Timer(id)
		if !t.Configured() {
			continue
		}
		timing := t.Timing()
		p.Timers = append(p.Timers, TimerPlan{
			Timer:       id,
			FreqHz:      t.FreqHz(),
			Timing:      timing,
			TickUs:      t.TickMicros(),
			ActualHz:    timing.Frequency(cfg.ClockHz),
			MaxPeriodUs: timing.MaxPeriodMicros(cfg.ClockHz),
		})
		regs, err := port.Dump(id)
		if err != nil {
			return nil, errors.Wrapf(err, "dump %s", id)
		}
		p.Registers = append(p.Registers, regs)
	}
	return p, nil
}

// Print writes the plan as aligned tables. With program set the register
// operations are listed too.
func (p *Plan) Print(w io.Writer, program bool) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "clock\t%d Hz\n\n", p.ClockHz)

	fmt.Fprintln(tw, "TIMER\tFREQ\tPRESCALER\tTOP\tTICK\tACTUAL\tMAX PERIOD")
	for _, t := range p.Timers {
		fmt.Fprintf(tw, "%s\t%d Hz\t%s\t%d\t%.4g us\t%.4f Hz\t%.1f ms\n",
			t.Timer, t.FreqHz, t.Timing.Prescaler, t.Timing.Top, t.TickUs, t.ActualHz, t.MaxPeriodUs/1000)
	}

	fmt.Fprintln(tw, "\nSERVO\tOID\tOUTPUT\tPIN\tTICKS\tANGLE\tDEG/TICK\tSTATE")
	for _, s := range p.Servos {
		state := "disabled"
		if s.Enabled {
			state = "enabled"
		}
		angle := "-"
		if s.Ticks != 0 {
			angle = fmt.Sprintf("%.2f", s.Angle)
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s (%s)\t%d\t%s\t%.3f\t%s\n",
			s.Name, s.OID, s.Fact.Name(), s.Fact.Pin, s.Fact.Port, s.Ticks, angle, s.DegTick, state)
	}

	if program {
		fmt.Fprintln(tw, "\nREGISTER PROGRAM")
		for i, op := range p.Program {
			fmt.Fprintf(tw, "%3d\t%s\n", i, op)
		}
		fmt.Fprintln(tw, "\nREGISTERS")
		for _, r := range p.Registers {
			fmt.Fprintln(tw, r)
		}
	}
	return tw.Flush()
}
