package protocol

import "testing"

func TestCRC16(t *testing.T) {
	testCases := []struct {
		data     []byte
		expected uint16
	}{
		{[]byte{}, 0xFFFF},
		{[]byte("123456789"), 0x6F91},
		{[]byte{MessageLengthMin, MessageDest}, 0x9E81},
		{[]byte{MessageLengthMin, MessageDest | 1}, 0x8F08},
	}

	for _, tc := range testCases {
		if got := CRC16(tc.data); got != tc.expected {
			t.Errorf("Expected CRC16(%v) = 0x%04X, got 0x%04X", tc.data, tc.expected, got)
		}
	}
}

func TestCRC16Update(t *testing.T) {
	data := []byte("123456789")
	crc := CRC16Update(0xFFFF, data[:4])
	crc = CRC16Update(crc, data[4:])
	if crc != CRC16(data) {
		t.Errorf("Expected incremental CRC 0x%04X, got 0x%04X", CRC16(data), crc)
	}
}

func TestCRC16Different(t *testing.T) {
	if CRC16([]byte{0x01, 0x02, 0x03}) == CRC16([]byte{0x01, 0x02, 0x04}) {
		t.Error("Expected different CRCs for different inputs")
	}
}
