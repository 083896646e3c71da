// Package link drives servos on the firmware over the framed serial link
package link

import (
	"context"
	"io"
	"log/slog"
	"math"
	"time"

	"github.com/pkg/errors"

	"megaservo/host/serial"
	"megaservo/protocol"
)

// ErrNotConnected is returned by operations on a closed link
var ErrNotConnected = errors.New("not connected to MCU")

// ResponseTimeout bounds the wait for servo_state after a query
const ResponseTimeout = time.Second

// ErrorWindow bounds the wait for a servo_error after a write is ACKed
const ErrorWindow = 20 * time.Millisecond

// Link is a connection to the servo firmware
type Link struct {
	transport *protocol.HostTransport
	log       *slog.Logger
}

// Dial opens the serial device and starts the transport
func Dial(cfg *serial.Config, log *slog.Logger) (*Link, error) {
	port, err := serial.Open(cfg)
	if err != nil {
		return nil, err
	}
	if err := port.Flush(); err != nil {
		log.Debug("flush failed", "err", err)
	}
	l := New(port, log)

	// The Mega resets when the port opens; give the bootloader time to
	// hand over
	time.Sleep(2 * time.Second)
	return l, nil
}

// New starts a link over an already open port
func New(port io.ReadWriteCloser, log *slog.Logger) *Link {
	if log == nil {
		log = slog.Default()
	}
	return &Link{
		transport: protocol.NewHostTransport(port),
		log:       log,
	}
}

// Close stops the transport and closes the port
func (l *Link) Close() error {
	if l.transport == nil {
		return nil
	}
	err := l.transport.Close()
	l.transport = nil
	return err
}

// SetAngle moves servo oid to deg degrees. A write the firmware rejects
// returns a protocol.ServoError.
func (l *Link) SetAngle(ctx context.Context, oid uint8, deg float64) error {
	if math.IsNaN(deg) {
		return errors.New("angle is NaN")
	}
	centi := uint32(math.Round(math.Max(0, math.Min(180, deg)) * 100))
	l.log.Debug("set_servo_angle", "oid", oid, "centideg", centi)
	return l.write(ctx, oid, protocol.MsgSetServoAngle, centi)
}

// SetEnabled starts or stops the pulse train of servo oid
func (l *Link) SetEnabled(ctx context.Context, oid uint8, enabled bool) error {
	var v uint32
	if enabled {
		v = 1
	}
	l.log.Debug("set_servo_enable", "oid", oid, "enable", enabled)
	return l.write(ctx, oid, protocol.MsgSetServoEnable, v)
}

// SetTicks writes a raw compare value to servo oid
func (l *Link) SetTicks(ctx context.Context, oid uint8, ticks uint16) error {
	l.log.Debug("set_servo_ticks", "oid", oid, "ticks", ticks)
	return l.write(ctx, oid, protocol.MsgSetServoTicks, uint32(ticks))
}

// Query reads the state of servo oid. A servo_error reply is returned as a
// protocol.ServoError.
func (l *Link) Query(ctx context.Context, oid uint8) (protocol.ServoState, error) {
	if l.transport == nil {
		return protocol.ServoState{}, ErrNotConnected
	}
	l.discardStale()
	if err := l.send(ctx, protocol.MsgQueryServo, uint32(oid)); err != nil {
		return protocol.ServoState{}, err
	}
	return l.receive(ctx, oid)
}

// write sends a servo command and waits briefly for the servo_error the
// firmware sends when it rejects one
func (l *Link) write(ctx context.Context, oid uint8, id uint16, args ...uint32) error {
	if l.transport == nil {
		return ErrNotConnected
	}
	l.discardStale()
	if err := l.send(ctx, id, append([]uint32{uint32(oid)}, args...)...); err != nil {
		return err
	}
	return l.checkError(ctx, oid)
}

// discardStale drops queued replies to earlier commands
func (l *Link) discardStale() {
	for _, payload := range l.transport.DrainResponses() {
		if _, err := protocol.DecodeResponse(payload); err != nil {
			l.log.Warn("earlier command failed", "err", err)
		}
	}
}

// checkError returns a servo_error addressed to oid that arrives within
// ErrorWindow. Silence means the write was accepted.
func (l *Link) checkError(ctx context.Context, oid uint8) error {
	ctx, cancel := context.WithTimeout(ctx, ErrorWindow)
	defer cancel()
	for {
		payload, err := l.transport.ReceiveResponse(ctx)
		if errors.Is(err, protocol.ErrTransportClosed) {
			return err
		}
		if err != nil {
			return nil
		}
		_, err = protocol.DecodeResponse(payload)
		var se protocol.ServoError
		switch {
		case errors.As(err, &se) && se.OID == oid:
			return se
		case err != nil:
			l.log.Warn("earlier command failed", "err", err)
		}
	}
}

func (l *Link) send(ctx context.Context, id uint16, args ...uint32) error {
	if l.transport == nil {
		return ErrNotConnected
	}
	return l.transport.SendCommand(ctx, id, func(out protocol.OutputBuffer) {
		for _, a := range args {
			protocol.EncodeVLQUint(out, a)
		}
	})
}

// receive waits for the reply addressed to oid, skipping stale replies
func (l *Link) receive(ctx context.Context, oid uint8) (protocol.ServoState, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ResponseTimeout)
		defer cancel()
	}
	for {
		payload, err := l.transport.ReceiveResponse(ctx)
		if err != nil {
			return protocol.ServoState{}, err
		}
		state, err := protocol.DecodeResponse(payload)
		var se protocol.ServoError
		switch {
		case errors.As(err, &se):
			if se.OID == oid {
				return protocol.ServoState{}, se
			}
		case err != nil:
			l.log.Warn("undecodable response", "err", err)
		case state.OID == oid:
			return state, nil
		}
		l.log.Debug("skipping reply for another servo")
	}
}
