//go:build avr && atmega2560

package main

import (
	"machine"

	"tinygo.org/x/drivers/servo"

	"megaservo/core"
	"megaservo/protocol"
)

const (
	cpuHz    = 16_000_000
	baudRate = 115200
)

var (
	uart         = machine.Serial
	inputBuffer  *protocol.FifoBuffer
	outputBuffer *protocol.ScratchOutput
	transport    *protocol.Transport
	controller   *core.Controller
	timers       *core.TC16Port

	rxByte      [1]byte
	rxOverflows uint32
)

func main() {
	uart.Configure(machine.UARTConfig{BaudRate: baudRate})
	core.SetDebugWriter(func(s string) {
		println(s)
	})

	core.RegisterConstant("MCU", "atmega2560")
	core.RegisterConstant("CLOCK_FREQ", "16000000")
	if err := core.InitServoCommands(); err != nil {
		println("servo commands:", err.Error())
		return
	}

	inputBuffer = protocol.NewFifoBuffer(protocol.MessageMax)
	outputBuffer = protocol.NewScratchOutput()

	transport = protocol.NewTransport(outputBuffer, core.DispatchCommand)
	transport.SetErrorHandler(core.ReportCommandError)
	transport.SetResetCallback(disableAll)
	transport.SetFlushCallback(writeSerial)
	core.SetGlobalTransport(transport)

	if err := setupServos(); err != nil {
		println("servo setup:", err.Error())
		return
	}

	for {
		readSerial()

		if inputBuffer.Available() > 0 {
			data := inputBuffer.Data()
			in := protocol.NewSliceInputBuffer(data)
			transport.Receive(in)
			if consumed := len(data) - in.Available(); consumed > 0 {
				inputBuffer.Pop(consumed)
			}
		}

		writeSerial()
	}
}

// setupServos binds the board's servo outputs and publishes them by oid.
// Pins 11, 12 and 3 go through the typed constructors; pin 6 runs through
// the drivers servo package on TC4.
func setupServos() error {
	pins, err := core.TakePins()
	if err != nil {
		return err
	}

	timers = core.NewTC16Port(volatileBus{})
	core.SetTimerPort(timers)
	controller = core.NewController(core.NewProgramEmitter(core.MustTimerPort()), cpuHz)

	cfg := core.DefaultServoConfig()
	for oid, capability := range []core.Capability{
		core.OC1A(pins.D11),
		core.OC1B(pins.D12),
		core.OC3C(pins.D3),
	} {
		s, err := controller.Bind(capability, cfg)
		if err != nil {
			return err
		}
		core.AddServo(uint8(oid), s)
	}

	pwm := newTimerPWM(controller.Timer(core.Timer4), pins)
	sv, err := servo.New(pwm, machine.D6)
	if err != nil {
		return err
	}
	if err := sv.SetAngle(90); err != nil {
		return err
	}
	core.AddServo(3, pwm.Servo(uint8(core.ChannelA)))
	return nil
}

// disableAll stops every pulse train when the host reconnects. Pending
// input stays queued since the reconnecting frame is still being parsed.
// The event ring and timer registers are dumped first while debug output
// is enabled.
func disableAll() {
	core.DebugPrintln("[MAIN] host reset, disabling servos")
	core.DumpEvents()
	core.DumpTimers(timers)
	for _, s := range controller.Servos() {
		_ = s.Disable()
	}
}

func readSerial() {
	for uart.Buffered() > 0 {
		b, err := uart.ReadByte()
		if err != nil {
			return
		}
		rxByte[0] = b
		if inputBuffer.Write(rxByte[:]) == 0 {
			rxOverflows++
			return
		}
	}
}

func writeSerial() {
	result := outputBuffer.Result()
	if len(result) == 0 {
		return
	}
	_, _ = uart.Write(result)
	outputBuffer.Reset()
}
