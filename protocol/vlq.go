package protocol

import "errors"

var (
	ErrInvalidVLQ     = errors.New("invalid VLQ encoding")
	ErrBufferTooSmall = errors.New("buffer too small for VLQ")
)

// vlqMaxLen is the longest encoding of a 32-bit value
const vlqMaxLen = 5

// EncodeVLQInt writes v as a variable-length quantity, most significant
// group first. Values in [-32, 96) take a single byte; the high bit marks
// continuation and bits 6:5 of the first byte carry the sign.
func EncodeVLQInt(output OutputBuffer, v int32) {
	var buf [vlqMaxLen]byte
	n := 0
	for shift := 28; shift > 0; shift -= 7 {
		lim := int32(1) << (shift - 2)
		if v < -lim || v >= 3*lim {
			buf[n] = byte((v>>shift)&0x7F) | 0x80
			n++
		}
	}
	buf[n] = byte(v & 0x7F)
	output.Output(buf[:n+1])
}

// EncodeVLQUint encodes an unsigned integer to VLQ format
func EncodeVLQUint(output OutputBuffer, v uint32) {
	EncodeVLQInt(output, int32(v))
}

// DecodeVLQInt decodes a signed VLQ and advances data past it
func DecodeVLQInt(data *[]byte) (int32, error) {
	buf := *data
	if len(buf) == 0 {
		return 0, ErrBufferTooSmall
	}

	c := uint32(buf[0])
	v := c & 0x7F
	if c&0x60 == 0x60 {
		v |= ^uint32(0x1F)
	}
	i := 1
	for c&0x80 != 0 {
		if i >= len(buf) {
			return 0, ErrBufferTooSmall
		}
		if i >= vlqMaxLen {
			return 0, ErrInvalidVLQ
		}
		c = uint32(buf[i])
		v = v<<7 | c&0x7F
		i++
	}

	*data = buf[i:]
	return int32(v), nil
}

// DecodeVLQUint decodes an unsigned VLQ and advances data past it
func DecodeVLQUint(data *[]byte) (uint32, error) {
	v, err := DecodeVLQInt(data)
	return uint32(v), err
}

// EncodeVLQ returns the encoding of v as a new slice
func EncodeVLQ(v int32) []byte {
	out := NewScratchOutput()
	EncodeVLQInt(out, v)
	return append([]byte(nil), out.Result()...)
}

// EncodeVLQBytes writes a length-prefixed byte string
func EncodeVLQBytes(output OutputBuffer, data []byte) {
	EncodeVLQUint(output, uint32(len(data)))
	output.Output(data)
}

// DecodeVLQBytes reads a length-prefixed byte string. The result aliases
// data; data is left untouched on error.
func DecodeVLQBytes(data *[]byte) ([]byte, error) {
	rest := *data
	length, err := DecodeVLQUint(&rest)
	if err != nil {
		return nil, err
	}
	if uint32(len(rest)) < length {
		return nil, ErrBufferTooSmall
	}
	*data = rest[length:]
	return rest[:length], nil
}
