package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"megaservo/host/serial"
)

const testConfig = `{
  "serial": {"device": "/dev/ttyUSB3", "baud": 57600, "driver": "bugst"},
  "servos": [
    {"name": "pan", "oid": 0, "pin": "D11", "angle": 45},
    {"name": "lift", "oid": 1, "pin": "D46", "freq_hz": 330, "pulse_min_us": 900, "pulse_max_us": 2100}
  ]
}`

func writeConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "servos.json")
	require.NoError(t, os.WriteFile(path, []byte(testConfig), 0o644))
	return path
}

func TestRunPlan(t *testing.T) {
	var out bytes.Buffer
	err := run([]string{"plan", "-config", writeConfig(t), "-program"}, strings.NewReader(""), &out)
	require.NoError(t, err)

	text := out.String()
	assert.Contains(t, text, "TC1")
	assert.Contains(t, text, "TC5")
	assert.Contains(t, text, "OC5A")
	assert.Contains(t, text, "REGISTER PROGRAM")
	assert.Contains(t, text, "TC1A OCR=2000")
}

func TestRunUsage(t *testing.T) {
	var out bytes.Buffer
	assert.Error(t, run(nil, strings.NewReader(""), &out))
	assert.Contains(t, out.String(), "Usage:")

	out.Reset()
	assert.NoError(t, run([]string{"help"}, strings.NewReader(""), &out))
	assert.Contains(t, out.String(), "servoctl plan")
}

func TestRunPlanMissingFile(t *testing.T) {
	var out bytes.Buffer
	err := run([]string{"plan", "-config", filepath.Join(t.TempDir(), "none.json")}, strings.NewReader(""), &out)
	assert.Error(t, err)
}

func TestRunBadFlag(t *testing.T) {
	var out bytes.Buffer
	assert.Error(t, run([]string{"query", "-nope"}, strings.NewReader(""), &out))
}

func TestApplySerialConfig(t *testing.T) {
	path := writeConfig(t)

	cfg := serial.DefaultConfig("/dev/ttyACM0")
	require.NoError(t, applySerialConfig(cfg, path, map[string]bool{"config": true}))
	assert.Equal(t, "/dev/ttyUSB3", cfg.Device)
	assert.Equal(t, 57600, cfg.Baud)
	assert.Equal(t, serial.DriverBugST, cfg.Driver)

	cfg = serial.DefaultConfig("/dev/ttyACM1")
	require.NoError(t, applySerialConfig(cfg, path, map[string]bool{"config": true, "device": true}))
	assert.Equal(t, "/dev/ttyACM1", cfg.Device)
	assert.Equal(t, 57600, cfg.Baud)
}
