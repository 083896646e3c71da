//go:build !tinygo

package protocol

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"
)

// fakeMCU runs a firmware Transport on one end of a pipe. query_servo is
// answered with servo_state; every other command is accepted silently.
func fakeMCU(t *testing.T, conn net.Conn) {
	t.Helper()
	out := NewScratchOutput()
	var tr *Transport
	tr = NewTransport(out, func(cmdID uint16, data *[]byte) error {
		oid, err := DecodeVLQUint(data)
		if err != nil {
			return err
		}
		switch cmdID {
		case MsgQueryServo:
			tr.SendCommand(MsgServoState, ServoState{OID: uint8(oid), Enabled: true, Ticks: 3000, Top: 39999, Centideg: 9000}.Encode)
		case MsgSetServoAngle, MsgSetServoEnable, MsgSetServoTicks:
			_, err = DecodeVLQUint(data)
		}
		return err
	})

	go func() {
		fifo := NewFifoBuffer(256)
		buf := make([]byte, 64)
		for {
			n, err := conn.Read(buf)
			if err != nil {
				return
			}
			fifo.Write(buf[:n])
			tr.Receive(fifo)
			if len(out.Result()) > 0 {
				if _, err := conn.Write(out.Result()); err != nil {
					return
				}
				out.Reset()
			}
		}
	}()
}

func TestHostTransportRoundTrip(t *testing.T) {
	hostEnd, mcuEnd := net.Pipe()
	fakeMCU(t, mcuEnd)
	defer mcuEnd.Close()

	host := NewHostTransport(hostEnd)
	defer host.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := host.SendCommand(ctx, MsgSetServoAngle, func(o OutputBuffer) {
		EncodeVLQUint(o, 0)
		EncodeVLQUint(o, 4500)
	})
	if err != nil {
		t.Fatalf("SendCommand failed: %v", err)
	}
	if host.Sequence() != MessageDest|1 {
		t.Errorf("Expected sequence 0x11 after ACK, got 0x%02X", host.Sequence())
	}

	err = host.SendCommand(ctx, MsgQueryServo, func(o OutputBuffer) { EncodeVLQUint(o, 4) })
	if err != nil {
		t.Fatalf("SendCommand(query) failed: %v", err)
	}
	payload, err := host.ReceiveResponse(ctx)
	if err != nil {
		t.Fatalf("ReceiveResponse failed: %v", err)
	}
	state, err := DecodeResponse(payload)
	if err != nil {
		t.Fatalf("DecodeResponse failed: %v", err)
	}
	if state.OID != 4 || state.Ticks != 3000 || !state.Enabled {
		t.Errorf("Unexpected state %+v", state)
	}
}

func TestHostTransportAckTimeout(t *testing.T) {
	hostEnd, mcuEnd := net.Pipe()
	defer mcuEnd.Close()

	// Drain writes without answering
	go func() {
		buf := make([]byte, 64)
		for {
			if _, err := mcuEnd.Read(buf); err != nil {
				return
			}
		}
	}()

	host := NewHostTransport(hostEnd)
	defer host.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := host.SendCommand(ctx, MsgQueryServo, nil); err == nil {
		t.Error("Expected ACK timeout")
	}
}

func TestHostTransportLateAck(t *testing.T) {
	hostEnd, mcuEnd := net.Pipe()
	defer mcuEnd.Close()

	var mu sync.Mutex
	var ran []uint32
	out := NewScratchOutput()
	tr := NewTransport(out, func(cmdID uint16, data *[]byte) error {
		v, err := DecodeVLQUint(data)
		mu.Lock()
		ran = append(ran, v)
		mu.Unlock()
		return err
	})

	// The ACK for the second frame is held back past the host's deadline
	go func() {
		fifo := NewFifoBuffer(256)
		buf := make([]byte, 64)
		replies := 0
		for {
			n, err := mcuEnd.Read(buf)
			if err != nil {
				return
			}
			fifo.Write(buf[:n])
			tr.Receive(fifo)
			if len(out.Result()) == 0 {
				continue
			}
			replies++
			if replies == 2 {
				time.Sleep(100 * time.Millisecond)
			}
			if _, err := mcuEnd.Write(out.Result()); err != nil {
				return
			}
			out.Reset()
		}
	}()

	host := NewHostTransport(hostEnd)
	defer host.Close()

	send := func(timeout time.Duration, v uint32) error {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return host.SendCommand(ctx, MsgSetServoTicks, func(o OutputBuffer) { EncodeVLQUint(o, v) })
	}

	if err := send(time.Second, 1); err != nil {
		t.Fatalf("First SendCommand failed: %v", err)
	}
	if err := send(50*time.Millisecond, 2); err == nil {
		t.Fatal("Expected ACK timeout")
	}

	deadline := time.Now().Add(time.Second)
	for len(host.ackCh) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("Late ACK never arrived")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := send(time.Second, 3); err != nil {
		t.Fatalf("SendCommand after late ACK failed: %v", err)
	}
	if host.Sequence() != MessageDest|3 {
		t.Errorf("Expected sequence 0x13, got 0x%02X", host.Sequence())
	}
	mu.Lock()
	defer mu.Unlock()
	if len(ran) != 3 || ran[2] != 3 {
		t.Errorf("Expected the third command to run on the MCU, got %v", ran)
	}
}

func TestHostTransportResponseBeforeAck(t *testing.T) {
	hostEnd, mcuEnd := net.Pipe()
	defer mcuEnd.Close()

	// ACK and response arrive in one write
	go func() {
		buf := make([]byte, 64)
		if _, err := mcuEnd.Read(buf); err != nil {
			return
		}
		out := NewScratchOutput()
		out.Output(AckFrame(MessageDest | 1))
		_ = EncodeFrame(out, MessageDest|1, func(o OutputBuffer) {
			EncodeVLQUint(o, uint32(MsgServoError))
			ServoError{OID: 7, Code: ErrCodeUnknownOID}.Encode(o)
		})
		_, _ = mcuEnd.Write(out.Result())
	}()

	host := NewHostTransport(hostEnd)
	defer host.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := host.SendCommand(ctx, MsgSetServoAngle, nil); err != nil {
		t.Fatalf("SendCommand failed: %v", err)
	}
	if got := host.DrainResponses(); len(got) != 1 {
		t.Errorf("Expected the response queued with the ACK, got %d", len(got))
	}
}

func TestHostTransportClosed(t *testing.T) {
	hostEnd, mcuEnd := net.Pipe()
	defer mcuEnd.Close()

	host := NewHostTransport(hostEnd)
	if err := host.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	// Second close is a no-op
	_ = host.Close()

	if _, err := host.ReceiveResponse(context.Background()); err != ErrTransportClosed {
		t.Errorf("Expected ErrTransportClosed, got %v", err)
	}
}
