//go:build !tinygo

package protocol

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// ErrTransportClosed is returned by operations on a closed transport
var ErrTransportClosed = errors.New("transport closed")

// DefaultAckTimeout bounds the wait for an ACK when the caller's context
// has no deadline
const DefaultAckTimeout = 2 * time.Second

// HostTransport is the host end of the link. It sends commands, waits for
// their ACKs and queues response frames. A background goroutine owns the
// read side; writes are serialized by a mutex.
type HostTransport struct {
	port io.ReadWriteCloser

	writeMu sync.Mutex
	seq     uint8

	input     *FifoBuffer
	ackCh     chan Frame
	respCh    chan Frame
	stopCh    chan struct{}
	doneCh    chan struct{}
	closeOnce sync.Once
}

// NewHostTransport starts a transport on port
func NewHostTransport(port io.ReadWriteCloser) *HostTransport {
	t := &HostTransport{
		port:   port,
		seq:    MessageDest,
		input:  NewFifoBuffer(4 * MessageLengthMax),
		ackCh:  make(chan Frame, 1),
		respCh: make(chan Frame, 16),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	go t.readLoop()
	return t
}

// SendCommand frames one command, writes it and waits for the ACK
func (t *HostTransport) SendCommand(ctx context.Context, cmdID uint16, args func(output OutputBuffer)) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	t.resync()
	out := NewScratchOutput()
	err := EncodeFrame(out, t.seq, func(output OutputBuffer) {
		EncodeVLQUint(output, uint32(cmdID))
		if args != nil {
			args(output)
		}
	})
	if err != nil {
		return errors.Wrapf(err, "encode command %d", cmdID)
	}

	msg := out.Result()
	n, err := t.port.Write(msg)
	if err != nil {
		return errors.Wrap(err, "write frame")
	}
	if n != len(msg) {
		return errors.Errorf("short write: %d/%d bytes", n, len(msg))
	}

	if err := t.waitForAck(ctx); err != nil {
		return errors.Wrapf(err, "command %d", cmdID)
	}
	return nil
}

// resync drops ACKs that arrived after an earlier wait gave up. Each one
// names the sequence the MCU expects, so the next frame is stamped with it
// instead of repeating a sequence the MCU would NAK. Must be called with
// writeMu held.
func (t *HostTransport) resync() {
	for {
		select {
		case ack := <-t.ackCh:
			t.seq = ack.Sequence
		default:
			return
		}
	}
}

// waitForAck consumes ACKs until one names the sequence after ours. Must
// be called with writeMu held.
func (t *HostTransport) waitForAck(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultAckTimeout)
		defer cancel()
	}

	want := NextSequence(t.seq)
	for {
		select {
		case ack := <-t.ackCh:
			if ack.Sequence != want {
				// NAK: the MCU expects another sequence
				t.seq = ack.Sequence
				return errors.Errorf("nak: mcu expects sequence 0x%02x", ack.Sequence)
			}
			t.seq = want
			return nil
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "waiting for ack")
		case <-t.stopCh:
			return ErrTransportClosed
		}
	}
}

// ReceiveResponse returns the next response frame's payload
func (t *HostTransport) ReceiveResponse(ctx context.Context) ([]byte, error) {
	select {
	case f := <-t.respCh:
		return f.Payload, nil
	case <-ctx.Done():
		return nil, errors.Wrap(ctx.Err(), "waiting for response")
	case <-t.stopCh:
		return nil, ErrTransportClosed
	}
}

// DrainResponses removes and returns every queued response payload
func (t *HostTransport) DrainResponses() [][]byte {
	var out [][]byte
	for {
		select {
		case f := <-t.respCh:
			out = append(out, f.Payload)
		default:
			return out
		}
	}
}

// Sequence returns the sequence the next command will carry
func (t *HostTransport) Sequence() uint8 {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return t.seq
}

func (t *HostTransport) readLoop() {
	defer close(t.doneCh)

	buf := make([]byte, 128)
	for {
		select {
		case <-t.stopCh:
			return
		default:
		}

		n, err := t.port.Read(buf)
		if n > 0 {
			t.input.Write(buf[:n])
			t.processFrames()
		}
		if err != nil {
			// Serial drivers report a read timeout as io.EOF, so errors
			// only end the loop once Close has been called
			time.Sleep(10 * time.Millisecond)
		}
	}
}

// processFrames decodes every complete frame in the input buffer
func (t *HostTransport) processFrames() {
	data := t.input.Data()
	var acks []Frame
	for len(data) > 0 {
		if data[0] == MessageValueSync {
			data = data[1:]
			continue
		}
		frame, n, err := ParseFrame(data)
		if err == ErrFrameIncomplete {
			break
		}
		if err != nil {
			data = skipToSync(data)
			continue
		}
		data = data[n:]

		// Payload aliases the FIFO; copy before handing it to another goroutine
		frame.Payload = append([]byte(nil), frame.Payload...)
		if frame.IsAck() {
			acks = append(acks, frame)
			continue
		}
		t.dispatch(frame)
	}

	// Responses read together with an ACK are queued before the ACK is
	// released, so a sender sees them once SendCommand returns
	for _, ack := range acks {
		t.dispatch(ack)
	}

	if consumed := t.input.Available() - len(data); consumed > 0 {
		t.input.Pop(consumed)
	}
}

func (t *HostTransport) dispatch(f Frame) {
	if f.IsAck() {
		select {
		case t.ackCh <- f:
		default:
			// keep only the latest ACK
			select {
			case <-t.ackCh:
			default:
			}
			t.ackCh <- f
		}
		return
	}

	select {
	case t.respCh <- f:
	default:
		// drop the oldest response
		select {
		case <-t.respCh:
		default:
		}
		t.respCh <- f
	}
}

// Close stops the reader and closes the port
func (t *HostTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.stopCh)
		err = t.port.Close()
		<-t.doneCh
	})
	return err
}
