package protocol

// CommandHandler is a function type for handling decoded commands
type CommandHandler func(cmdID uint16, data *[]byte) error

// Transport is the firmware end of the link. It is driven from the main
// loop only and keeps no locks.
type Transport struct {
	synchronized bool
	// nextSequence is the sequence expected from the host (0x10-0x1F); it
	// is also stamped on ACKs and responses
	nextSequence  uint8
	output        OutputBuffer
	handler       CommandHandler
	errorHandler  func(cmdID uint16, err error)
	resetCallback func()
	flushCallback func()
}

// NewTransport creates a new Transport instance
func NewTransport(output OutputBuffer, handler CommandHandler) *Transport {
	return &Transport{
		synchronized: true,
		nextSequence: MessageDest,
		output:       output,
		handler:      handler,
	}
}

// Receive consumes complete frames from input, dispatches in-sequence
// frames and answers every frame with an ACK/NAK
func (t *Transport) Receive(input InputBuffer) {
	data := input.Data()

	for len(data) > 0 {
		if !t.synchronized {
			data = skipToSync(data)
			if data != nil {
				t.synchronized = true
				t.encodeAckNak()
			}
			continue
		}

		if data[0] == MessageValueSync {
			data = data[1:]
			continue
		}

		frame, n, err := ParseFrame(data)
		if err == ErrFrameIncomplete {
			break
		}
		if err != nil {
			t.synchronized = false
			continue
		}
		data = data[n:]

		// A frame with the initial sequence after traffic means the host
		// restarted its side of the link
		if frame.Sequence == MessageDest && t.nextSequence != MessageDest {
			t.nextSequence = MessageDest
			if t.resetCallback != nil {
				t.resetCallback()
			}
		}

		if frame.Sequence == t.nextSequence {
			t.nextSequence = NextSequence(frame.Sequence)
			t.encodeAckNak()
			t.parseFrame(frame.Payload)
		} else {
			// Out of sequence: the ACK doubles as a NAK naming the
			// expected sequence
			t.encodeAckNak()
		}
	}

	if consumed := input.Available() - len(data); consumed > 0 {
		input.Pop(consumed)
	}
}

// parseFrame dispatches every message in a payload. A handler error is
// reported and the rest of the frame is still processed.
func (t *Transport) parseFrame(payload []byte) {
	for len(payload) > 0 {
		cmdID, err := DecodeVLQUint(&payload)
		if err != nil {
			t.synchronized = false
			return
		}
		if t.handler == nil {
			return
		}
		before := len(payload)
		if err := t.handler(uint16(cmdID), &payload); err != nil {
			if t.errorHandler != nil {
				t.errorHandler(uint16(cmdID), err)
			}
			// A handler that did not consume its arguments leaves the
			// payload undecodable
			if len(payload) == before {
				return
			}
		}
	}
}

// encodeAckNak writes an ACK carrying the next expected sequence and
// flushes it ahead of any response
func (t *Transport) encodeAckNak() {
	t.output.Output(AckFrame(t.nextSequence))
	if t.flushCallback != nil {
		t.flushCallback()
	}
}

// SendCommand frames one message. Responses carry the current sequence.
func (t *Transport) SendCommand(cmdID uint16, args func(output OutputBuffer)) {
	_ = EncodeFrame(t.output, t.nextSequence, func(output OutputBuffer) {
		EncodeVLQUint(output, uint32(cmdID))
		if args != nil {
			args(output)
		}
	})
}

// Reset returns the transport to its power-on state
func (t *Transport) Reset() {
	t.synchronized = true
	t.nextSequence = MessageDest
	if t.resetCallback != nil {
		t.resetCallback()
	}
}

// Synchronized reports whether the transport is aligned on frame boundaries
func (t *Transport) Synchronized() bool {
	return t.synchronized
}

// SetResetCallback sets a callback to be called when host reset is detected
func (t *Transport) SetResetCallback(callback func()) {
	t.resetCallback = callback
}

// SetFlushCallback sets a callback that pushes pending output to the wire
func (t *Transport) SetFlushCallback(callback func()) {
	t.flushCallback = callback
}

// SetErrorHandler sets a callback for command handler failures
func (t *Transport) SetErrorHandler(handler func(cmdID uint16, err error)) {
	t.errorHandler = handler
}
