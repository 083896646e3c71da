package plan

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"megaservo/core"
	"megaservo/host/config"
)

var pins *core.Pins

func TestMain(m *testing.M) {
	var err error
	pins, err = core.TakePins()
	if err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

const twoTimers = `{
  "servos": [
    {"name": "pan", "oid": 0, "pin": "D11", "angle": 90},
    {"name": "tilt", "oid": 1, "pin": "D12"},
    {"name": "grip", "oid": 2, "pin": "D3", "freq_hz": 60, "pulse_min_us": 1000, "pulse_max_us": 2000}
  ]
}`

func load(t *testing.T, js string) *config.Config {
	t.Helper()
	cfg, err := config.LoadConfig([]byte(js))
	require.NoError(t, err)
	return cfg
}

func TestBuild(t *testing.T) {
	p, err := Build(load(t, twoTimers), pins)
	require.NoError(t, err)

	require.Len(t, p.Timers, 2)
	tc1 := p.Timers[0]
	assert.Equal(t, core.Timer1, tc1.Timer)
	assert.Equal(t, core.Timing{Prescaler: core.Prescale8, Top: 39999}, tc1.Timing)
	assert.InDelta(t, 0.5, tc1.TickUs, 1e-6)
	assert.InDelta(t, 50, tc1.ActualHz, 1e-3)

	tc3 := p.Timers[1]
	assert.Equal(t, core.Timer3, tc3.Timer)
	assert.Equal(t, uint32(60), tc3.FreqHz)
	assert.Equal(t, uint16(33332), tc3.Timing.Top)

	require.Len(t, p.Servos, 3)
	pan := p.Servos[0]
	assert.Equal(t, "OC1A", pan.Fact.Name())
	assert.Equal(t, uint16(3000), pan.Ticks)
	assert.InDelta(t, 90, pan.Angle, 0.01)
	assert.InDelta(t, 0.045, pan.DegTick, 1e-4)
	assert.True(t, pan.Enabled)

	assert.False(t, p.Servos[1].Enabled)
	assert.Equal(t, uint16(0), p.Servos[1].Ticks)
	assert.Equal(t, core.Timer3, p.Servos[2].Fact.Timer)
}

func TestBuildProgram(t *testing.T) {
	p, err := Build(load(t, twoTimers), pins)
	require.NoError(t, err)

	// pan: timing(4) bind(3) angle(1) enable(2); tilt: bind(3);
	// grip: timing(4) bind(3)
	require.Len(t, p.Program, 20)
	assert.Equal(t, core.Op{Kind: core.OpStopTimer, Timer: core.Timer1}, p.Program[0])
	assert.Equal(t, core.Op{Kind: core.OpPrescaler, Timer: core.Timer1, Value: uint16(core.Prescale8)}, p.Program[3])
	assert.Equal(t, core.Op{Kind: core.OpWriteCompare, Timer: core.Timer1, Channel: core.ChannelA, Value: 3000}, p.Program[7])
	assert.Equal(t, core.OpStopTimer, p.Program[13].Kind)
	assert.Equal(t, core.Timer3, p.Program[13].Timer)

	for _, op := range p.Program {
		assert.NotEqual(t, core.Timer4, op.Timer)
	}
}

func TestBuildRegisters(t *testing.T) {
	p, err := Build(load(t, twoTimers), pins)
	require.NoError(t, err)

	require.Len(t, p.Registers, 2)
	tc1 := p.Registers[0]
	assert.Equal(t, core.Timer1, tc1.Timer)
	assert.Equal(t, core.WaveformFastPWMICR, tc1.Waveform())
	assert.Equal(t, uint16(39999), tc1.ICR)
	assert.Equal(t, [core.NumChannels]uint16{3000, 0, 0}, tc1.OCR)
	assert.Equal(t, uint8(0x82), tc1.TCCRA, "only COM1A connected")

	tc3 := p.Registers[1]
	assert.Equal(t, core.Timer3, tc3.Timer)
	assert.Equal(t, uint16(33332), tc3.ICR)
	assert.Equal(t, uint8(0x02), tc3.TCCRA)
}

func TestBuildReleasesPins(t *testing.T) {
	_, err := Build(load(t, twoTimers), pins)
	require.NoError(t, err)

	assert.False(t, pins.InUse(core.D11))
	assert.False(t, pins.InUse(core.D3))

	_, err = Build(load(t, twoTimers), pins)
	assert.NoError(t, err)
}

func TestBuildInvalid(t *testing.T) {
	cfg := load(t, `{"servos": [
		{"name": "a", "oid": 0, "pin": "D11"},
		{"name": "b", "oid": 1, "pin": "D12", "freq_hz": 300}
	]}`)

	_, err := Build(cfg, pins)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrTimerAlreadyConfigured)
}

func TestPrint(t *testing.T) {
	p, err := Build(load(t, twoTimers), pins)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, p.Print(&buf, false))
	out := buf.String()
	assert.Contains(t, out, "16000000 Hz")
	assert.Contains(t, out, "TC1")
	assert.Contains(t, out, "clk/8")
	assert.Contains(t, out, "39999")
	assert.Contains(t, out, "OC3C")
	assert.Contains(t, out, "D3 (PE5)")
	assert.NotContains(t, out, "REGISTER PROGRAM")

	buf.Reset()
	require.NoError(t, p.Print(&buf, true))
	assert.Contains(t, buf.String(), "REGISTER PROGRAM")
	assert.Contains(t, buf.String(), "TC1 ICR=39999")
	assert.Contains(t, buf.String(), "REGISTERS")
	assert.Contains(t, buf.String(), "TC3 TCCRA=2 TCCRB=26")
}
