package protocol

import (
	"bytes"
	"testing"
)

func TestVLQEncodeDecodeInt(t *testing.T) {
	testCases := []int32{
		0, 1, -1, 95, 96, -32, -33, 127, -127, 128, -128,
		1000, -1000, 65535, -65535, 1000000, -1000000,
		1 << 30, -(1 << 30),
	}

	for _, expected := range testCases {
		output := NewScratchOutput()
		EncodeVLQInt(output, expected)
		encoded := output.Result()

		data := encoded
		decoded, err := DecodeVLQInt(&data)
		if err != nil {
			t.Errorf("Failed to decode VLQ for value %d: %v", expected, err)
			continue
		}
		if decoded != expected {
			t.Errorf("VLQ mismatch: expected %d, got %d (encoded as %v)", expected, decoded, encoded)
		}
		if len(data) != 0 {
			t.Errorf("VLQ decode didn't consume all bytes for value %d: %d bytes remaining", expected, len(data))
		}
	}
}

func TestVLQEncoding(t *testing.T) {
	testCases := []struct {
		value    int32
		expected []byte
	}{
		{0, []byte{0x00}},
		{95, []byte{0x5F}},
		{96, []byte{0x80, 0x60}},
		{-1, []byte{0x7F}},
		{-32, []byte{0x60}},
		{-33, []byte{0xFF, 0x5F}},
		{39999, []byte{0x82, 0xB8, 0x3F}},
	}

	for _, tc := range testCases {
		got := EncodeVLQ(tc.value)
		if !bytes.Equal(got, tc.expected) {
			t.Errorf("Expected %d to encode as %X, got %X", tc.value, tc.expected, got)
		}
	}
}

func TestVLQEncodeDecodeUint(t *testing.T) {
	testCases := []uint32{0, 1, 127, 128, 255, 1000, 4999, 18000, 39999, 65535, 1000000}

	for _, expected := range testCases {
		output := NewScratchOutput()
		EncodeVLQUint(output, expected)

		data := output.Result()
		decoded, err := DecodeVLQUint(&data)
		if err != nil {
			t.Errorf("Failed to decode VLQ for value %d: %v", expected, err)
			continue
		}
		if decoded != expected {
			t.Errorf("VLQ mismatch: expected %d, got %d", expected, decoded)
		}
	}
}

func TestVLQSequence(t *testing.T) {
	output := NewScratchOutput()
	EncodeVLQUint(output, 3)
	EncodeVLQUint(output, 9000)
	EncodeVLQInt(output, -5)

	data := output.Result()
	a, _ := DecodeVLQUint(&data)
	b, _ := DecodeVLQUint(&data)
	c, err := DecodeVLQInt(&data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if a != 3 || b != 9000 || c != -5 {
		t.Errorf("Expected 3 9000 -5, got %d %d %d", a, b, c)
	}
}

func TestVLQBufferTooSmall(t *testing.T) {
	data := []byte{0x80} // continuation bit with no following byte
	_, err := DecodeVLQInt(&data)
	if err != ErrBufferTooSmall {
		t.Errorf("Expected ErrBufferTooSmall, got %v", err)
	}
	if len(data) != 1 {
		t.Errorf("Expected data untouched on error, got %d bytes", len(data))
	}

	var empty []byte
	if _, err := DecodeVLQUint(&empty); err != ErrBufferTooSmall {
		t.Errorf("Expected ErrBufferTooSmall for empty input, got %v", err)
	}
}

func TestVLQTooLong(t *testing.T) {
	data := []byte{0x81, 0x81, 0x81, 0x81, 0x81, 0x01}
	if _, err := DecodeVLQInt(&data); err != ErrInvalidVLQ {
		t.Errorf("Expected ErrInvalidVLQ, got %v", err)
	}
}

func TestVLQBytes(t *testing.T) {
	out := NewScratchOutput()
	EncodeVLQBytes(out, []byte("hello"))
	EncodeVLQUint(out, 7)
	data := append([]byte(nil), out.Result()...)

	if data[0] != 5 {
		t.Errorf("Expected length prefix 5, got %d", data[0])
	}
	got, err := DecodeVLQBytes(&data)
	if err != nil {
		t.Fatalf("DecodeVLQBytes failed: %v", err)
	}
	if string(got) != "hello" {
		t.Errorf("Expected hello, got %q", got)
	}
	if v, _ := DecodeVLQUint(&data); v != 7 {
		t.Errorf("Expected trailing 7, got %d", v)
	}

	short := []byte{4, 'a', 'b'}
	if _, err := DecodeVLQBytes(&short); err != ErrBufferTooSmall {
		t.Errorf("Expected ErrBufferTooSmall, got %v", err)
	}
	if len(short) != 3 {
		t.Errorf("Expected data untouched on error, got %d bytes", len(short))
	}
}
