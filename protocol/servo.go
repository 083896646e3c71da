package protocol

import "errors"

var ErrUnexpectedMessage = errors.New("unexpected message")

// Error codes carried by servo_error
const (
	ErrCodeUnknownOID uint8 = 1
	ErrCodeReleased   uint8 = 2
	ErrCodeArgument   uint8 = 3
	ErrCodeHardware   uint8 = 4
)

// ErrorCodeString names a servo_error code
func ErrorCodeString(code uint8) string {
	switch code {
	case ErrCodeUnknownOID:
		return "unknown oid"
	case ErrCodeReleased:
		return "servo released"
	case ErrCodeArgument:
		return "bad argument"
	case ErrCodeHardware:
		return "hardware error"
	default:
		return "unknown error"
	}
}

// ServoState is the body of a servo_state response
type ServoState struct {
	OID      uint8
	Enabled  bool
	Ticks    uint16
	Top      uint16
	Centideg uint16 // angle in hundredths of a degree
}

// Encode writes the response arguments
func (s ServoState) Encode(output OutputBuffer) {
	EncodeVLQUint(output, uint32(s.OID))
	if s.Enabled {
		EncodeVLQUint(output, 1)
	} else {
		EncodeVLQUint(output, 0)
	}
	EncodeVLQUint(output, uint32(s.Ticks))
	EncodeVLQUint(output, uint32(s.Top))
	EncodeVLQUint(output, uint32(s.Centideg))
}

// DecodeServoState reads servo_state arguments
func DecodeServoState(data *[]byte) (ServoState, error) {
	var vals [5]uint32
	for i := range vals {
		v, err := DecodeVLQUint(data)
		if err != nil {
			return ServoState{}, err
		}
		vals[i] = v
	}
	return ServoState{
		OID:      uint8(vals[0]),
		Enabled:  vals[1] != 0,
		Ticks:    uint16(vals[2]),
		Top:      uint16(vals[3]),
		Centideg: uint16(vals[4]),
	}, nil
}

// ServoError is the body of a servo_error response
type ServoError struct {
	OID  uint8
	Code uint8
}

func (e ServoError) Error() string {
	return "servo " + utoa(uint32(e.OID)) + ": " + ErrorCodeString(e.Code)
}

// Encode writes the response arguments
func (e ServoError) Encode(output OutputBuffer) {
	EncodeVLQUint(output, uint32(e.OID))
	EncodeVLQUint(output, uint32(e.Code))
}

// DecodeServoError reads servo_error arguments
func DecodeServoError(data *[]byte) (ServoError, error) {
	oid, err := DecodeVLQUint(data)
	if err != nil {
		return ServoError{}, err
	}
	code, err := DecodeVLQUint(data)
	if err != nil {
		return ServoError{}, err
	}
	return ServoError{OID: uint8(oid), Code: uint8(code)}, nil
}

// DecodeResponse decodes a response payload. A servo_error response is
// returned as a ServoError error value.
func DecodeResponse(payload []byte) (ServoState, error) {
	id, err := DecodeVLQUint(&payload)
	if err != nil {
		return ServoState{}, err
	}
	switch uint16(id) {
	case MsgServoState:
		return DecodeServoState(&payload)
	case MsgServoError:
		se, err := DecodeServoError(&payload)
		if err != nil {
			return ServoState{}, err
		}
		return ServoState{}, se
	}
	return ServoState{}, ErrUnexpectedMessage
}

func utoa(n uint32) string {
	if n == 0 {
		return "0"
	}
	var buf [10]byte
	pos := len(buf)
	for n > 0 {
		pos--
		buf[pos] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[pos:])
}
