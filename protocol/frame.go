package protocol

import "errors"

// Frame layout
const (
	MessageHeaderSize  = 2
	MessageTrailerSize = 3
	MessageLengthMin   = MessageHeaderSize + MessageTrailerSize
	MessageLengthMax   = 64
	MessagePositionLen = 0
	MessagePositionSeq = 1
	MessageTrailerCRC  = 3
	MessageTrailerSync = 1
	MessageValueSync   = 0x7E
	MessageDest        = 0x10
)

var (
	// ErrFrameIncomplete means more bytes are needed before the frame at the
	// head of the buffer can be decoded
	ErrFrameIncomplete = errors.New("incomplete frame")

	// ErrFrameInvalid means the head of the buffer is not a valid frame and
	// the reader must resynchronize on the next sync byte
	ErrFrameInvalid = errors.New("invalid frame")

	ErrFrameTooLong = errors.New("frame exceeds maximum length")
)

// Frame is a decoded link frame
type Frame struct {
	Sequence uint8
	Payload  []byte
}

// IsAck reports whether the frame only acknowledges a sequence number
func (f Frame) IsAck() bool {
	return len(f.Payload) == 0
}

// ParseFrame decodes the frame at the start of data and returns the number
// of bytes it occupies. Payload aliases data.
func ParseFrame(data []byte) (Frame, int, error) {
	if len(data) < MessageLengthMin {
		return Frame{}, 0, ErrFrameIncomplete
	}

	msgLen := int(data[MessagePositionLen])
	if msgLen < MessageLengthMin || msgLen > MessageLengthMax {
		return Frame{}, 0, ErrFrameInvalid
	}
	seq := data[MessagePositionSeq]
	if seq&^MessageSeqMask != MessageDest {
		return Frame{}, 0, ErrFrameInvalid
	}
	if len(data) < msgLen {
		return Frame{}, 0, ErrFrameIncomplete
	}
	if data[msgLen-MessageTrailerSync] != MessageValueSync {
		return Frame{}, 0, ErrFrameInvalid
	}

	frameCRC := uint16(data[msgLen-MessageTrailerCRC])<<8 |
		uint16(data[msgLen-MessageTrailerCRC+1])
	if frameCRC != CRC16(data[:msgLen-MessageTrailerSize]) {
		return Frame{}, 0, ErrFrameInvalid
	}

	return Frame{
		Sequence: seq,
		Payload:  data[MessageHeaderSize : msgLen-MessageTrailerSize],
	}, msgLen, nil
}

// EncodeFrame writes a complete frame to output. The payload callback writes
// the messages; the length byte is patched afterwards.
func EncodeFrame(output OutputBuffer, seq uint8, payload func(output OutputBuffer)) error {
	cursor := output.CurPosition()
	output.Output([]byte{0, seq})
	if payload != nil {
		payload(output)
	}

	length := len(output.DataSince(cursor)) + MessageTrailerSize
	if length > MessageLengthMax {
		return ErrFrameTooLong
	}
	output.Update(cursor, uint8(length))

	crc := CRC16(output.DataSince(cursor))
	output.Output([]byte{uint8(crc >> 8), uint8(crc), MessageValueSync})
	return nil
}

// AckFrame returns the acknowledgement for the next expected sequence
func AckFrame(nextSeq uint8) []byte {
	crc := CRC16([]byte{MessageLengthMin, nextSeq})
	return []byte{MessageLengthMin, nextSeq, uint8(crc >> 8), uint8(crc), MessageValueSync}
}

// NextSequence advances a sequence number within the 0x10-0x1F window
func NextSequence(seq uint8) uint8 {
	return (seq+1)&MessageSeqMask | MessageDest
}

// skipToSync returns data after the first sync byte, or nil when there is
// none
func skipToSync(data []byte) []byte {
	for i, b := range data {
		if b == MessageValueSync {
			return data[i+1:]
		}
	}
	return nil
}
