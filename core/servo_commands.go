package core

import (
	"errors"

	"megaservo/protocol"
)

var ErrUnknownOID = errors.New("unknown servo oid")

// servoOIDs maps link object IDs to bound servos
var servoOIDs = make(map[uint8]*Servo)

// InitServoCommands registers the servo link messages under their fixed IDs
func InitServoCommands() error {
	handlers := map[uint16]CommandHandler{
		protocol.MsgSetServoAngle:  handleSetServoAngle,
		protocol.MsgSetServoEnable: handleSetServoEnable,
		protocol.MsgSetServoTicks:  handleSetServoTicks,
		protocol.MsgQueryServo:     handleQueryServo,
		protocol.MsgIdentify:       handleIdentify,
	}
	for _, m := range protocol.Messages {
		if err := globalRegistry.RegisterWithID(m.ID, m.Name, m.Format, handlers[m.ID]); err != nil {
			return err
		}
	}
	globalDictionary.Invalidate()
	return nil
}

// AddServo publishes a servo under oid and lists its wiring in the
// dictionary as SERVO_<oid>. A nil servo removes the entry.
func AddServo(oid uint8, s *Servo) {
	name := "SERVO_" + utoa(uint32(oid))
	if s == nil {
		delete(servoOIDs, oid)
		globalDictionary.RemoveConstant(name)
		return
	}
	servoOIDs[oid] = s
	globalDictionary.AddConstant(name, s.Fact().String())
}

// LookupServo returns the servo published under oid
func LookupServo(oid uint8) (*Servo, bool) {
	s, ok := servoOIDs[oid]
	return s, ok
}

// ResetServos clears the oid table
func ResetServos() {
	for oid := range servoOIDs {
		globalDictionary.RemoveConstant("SERVO_" + utoa(uint32(oid)))
	}
	servoOIDs = make(map[uint8]*Servo)
}

// decodeServoArgs reads the oid plus n further arguments. The whole
// argument list is consumed before the oid is resolved so that a failed
// lookup leaves the frame decodable. An oid wider than a byte cannot be
// named in servo_error, so it is rejected without a reply.
func decodeServoArgs(data *[]byte, n int) (*Servo, uint8, [2]uint32, error) {
	var args [2]uint32
	oid32, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return nil, 0, args, err
	}
	for i := 0; i < n; i++ {
		if args[i], err = protocol.DecodeVLQUint(data); err != nil {
			return nil, 0, args, err
		}
	}
	if oid32 > 0xFF {
		return nil, 0, args, ErrUnknownOID
	}
	oid := uint8(oid32)
	s, ok := LookupServo(oid)
	if !ok {
		sendServoError(oid, ErrUnknownOID)
		return nil, oid, args, ErrUnknownOID
	}
	return s, oid, args, nil
}

// handleSetServoAngle moves a servo
// Format: set_servo_angle oid=%c centideg=%hu
func handleSetServoAngle(data *[]byte) error {
	s, oid, args, err := decodeServoArgs(data, 1)
	if err != nil {
		return err
	}
	return servoResult(oid, s.SetAngle(float32(args[0])/100))
}

// handleSetServoEnable starts or stops the pulse train
// Format: set_servo_enable oid=%c enable=%c
func handleSetServoEnable(data *[]byte) error {
	s, oid, args, err := decodeServoArgs(data, 1)
	if err != nil {
		return err
	}
	if args[0] != 0 {
		err = s.Enable()
	} else {
		err = s.Disable()
	}
	return servoResult(oid, err)
}

// handleSetServoTicks writes a raw compare value
// Format: set_servo_ticks oid=%c ticks=%hu
func handleSetServoTicks(data *[]byte) error {
	s, oid, args, err := decodeServoArgs(data, 1)
	if err != nil {
		return err
	}
	ticks := args[0]
	if ticks > 0xFFFF {
		ticks = 0xFFFF
	}
	return servoResult(oid, s.SetTicks(uint16(ticks)))
}

// handleQueryServo reports a servo's state
// Format: query_servo oid=%c
func handleQueryServo(data *[]byte) error {
	s, oid, _, err := decodeServoArgs(data, 0)
	if err != nil {
		return err
	}
	SendResponse("servo_state", ServoStateOf(oid, s).Encode)
	return nil
}

// ServoStateOf snapshots a servo for the servo_state response
func ServoStateOf(oid uint8, s *Servo) protocol.ServoState {
	return protocol.ServoState{
		OID:      oid,
		Enabled:  s.Enabled(),
		Ticks:    s.Ticks(),
		Top:      s.Timing().Top,
		Centideg: uint16(s.Angle()*100 + 0.5),
	}
}

func servoResult(oid uint8, err error) error {
	if err != nil {
		sendServoError(oid, err)
	}
	return err
}

func sendServoError(oid uint8, err error) {
	SendResponse("servo_error", protocol.ServoError{OID: oid, Code: errorCode(err)}.Encode)
}

func errorCode(err error) uint8 {
	switch {
	case errors.Is(err, ErrUnknownOID):
		return protocol.ErrCodeUnknownOID
	case errors.Is(err, ErrServoReleased):
		return protocol.ErrCodeReleased
	case errors.Is(err, ErrOutOfRange):
		return protocol.ErrCodeArgument
	default:
		return protocol.ErrCodeHardware
	}
}
