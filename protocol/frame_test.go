package protocol

import (
	"bytes"
	"testing"
)

func buildFrame(t *testing.T, seq uint8, payload []byte) []byte {
	t.Helper()
	out := NewScratchOutput()
	if err := EncodeFrame(out, seq, func(o OutputBuffer) { o.Output(payload) }); err != nil {
		t.Fatalf("EncodeFrame failed: %v", err)
	}
	return append([]byte(nil), out.Result()...)
}

func TestEncodeParseFrame(t *testing.T) {
	payload := []byte{0x01, 0x02, 0x03}
	data := buildFrame(t, MessageDest|3, payload)

	if len(data) != MessageLengthMin+len(payload) {
		t.Errorf("Expected frame length %d, got %d", MessageLengthMin+len(payload), len(data))
	}
	if data[MessagePositionLen] != uint8(len(data)) {
		t.Errorf("Expected length byte %d, got %d", len(data), data[0])
	}
	if data[len(data)-1] != MessageValueSync {
		t.Errorf("Expected trailing sync byte, got 0x%02X", data[len(data)-1])
	}

	frame, n, err := ParseFrame(data)
	if err != nil {
		t.Fatalf("ParseFrame failed: %v", err)
	}
	if n != len(data) {
		t.Errorf("Expected %d bytes consumed, got %d", len(data), n)
	}
	if frame.Sequence != MessageDest|3 {
		t.Errorf("Expected sequence 0x13, got 0x%02X", frame.Sequence)
	}
	if !bytes.Equal(frame.Payload, payload) {
		t.Errorf("Expected payload %v, got %v", payload, frame.Payload)
	}
	if frame.IsAck() {
		t.Error("Expected a non-empty frame not to be an ACK")
	}
}

func TestParseFrameErrors(t *testing.T) {
	good := buildFrame(t, MessageDest, []byte{0x04, 0x00})

	if _, _, err := ParseFrame(good[:3]); err != ErrFrameIncomplete {
		t.Errorf("Expected ErrFrameIncomplete for short buffer, got %v", err)
	}
	if _, _, err := ParseFrame(good[:len(good)-1]); err != ErrFrameIncomplete {
		t.Errorf("Expected ErrFrameIncomplete for truncated frame, got %v", err)
	}

	badCRC := append([]byte(nil), good...)
	badCRC[2] ^= 0xFF
	if _, _, err := ParseFrame(badCRC); err != ErrFrameInvalid {
		t.Errorf("Expected ErrFrameInvalid for bad CRC, got %v", err)
	}

	badSeq := append([]byte(nil), good...)
	badSeq[MessagePositionSeq] = 0x20
	if _, _, err := ParseFrame(badSeq); err != ErrFrameInvalid {
		t.Errorf("Expected ErrFrameInvalid for bad sequence, got %v", err)
	}

	badSync := append([]byte(nil), good...)
	badSync[len(badSync)-1] = 0x00
	if _, _, err := ParseFrame(badSync); err != ErrFrameInvalid {
		t.Errorf("Expected ErrFrameInvalid for missing sync, got %v", err)
	}

	badLen := append([]byte(nil), good...)
	badLen[MessagePositionLen] = 2
	if _, _, err := ParseFrame(badLen); err != ErrFrameInvalid {
		t.Errorf("Expected ErrFrameInvalid for bad length, got %v", err)
	}
}

func TestEncodeFrameTooLong(t *testing.T) {
	out := NewScratchOutput()
	err := EncodeFrame(out, MessageDest, func(o OutputBuffer) { o.Output(make([]byte, MessageLengthMax)) })
	if err != ErrFrameTooLong {
		t.Errorf("Expected ErrFrameTooLong, got %v", err)
	}
}

func TestAckFrame(t *testing.T) {
	ack := AckFrame(MessageDest | 1)
	expected := []byte{5, 0x11, 0x8F, 0x08, MessageValueSync}
	if !bytes.Equal(ack, expected) {
		t.Errorf("Expected ACK %X, got %X", expected, ack)
	}

	frame, _, err := ParseFrame(ack)
	if err != nil {
		t.Fatalf("ParseFrame(ack) failed: %v", err)
	}
	if !frame.IsAck() {
		t.Error("Expected ACK frame to report IsAck")
	}
}

func TestNextSequence(t *testing.T) {
	if got := NextSequence(0x10); got != 0x11 {
		t.Errorf("Expected 0x11, got 0x%02X", got)
	}
	if got := NextSequence(0x1F); got != 0x10 {
		t.Errorf("Expected wrap to 0x10, got 0x%02X", got)
	}
}
