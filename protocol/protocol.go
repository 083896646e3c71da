// Package protocol implements the framed serial link between the servo
// firmware and the host tool.
//
// A frame is [len][seq][payload...][crc hi][crc lo][0x7E]. The payload is a
// sequence of messages, each a VLQ message ID followed by VLQ arguments. A
// frame with an empty payload acknowledges the sequence number it carries.
package protocol

// Version is the link protocol version reported by the host tool
const Version = "1.0.0"

// Protocol constants
const (
	MessageMax = 256 // Scratch buffer size, room for an ACK plus several response frames

	// Message sequence masks
	MessageSeqMask = 0x0F
)

// Message IDs. Both sides use this fixed table; the firmware registers its
// handlers in this order and checks the result.
const (
	MsgServoState     uint16 = 0 // response: oid enabled ticks top centideg
	MsgSetServoAngle  uint16 = 1 // oid centideg
	MsgSetServoEnable uint16 = 2 // oid enable
	MsgSetServoTicks  uint16 = 3 // oid ticks
	MsgQueryServo     uint16 = 4 // oid
	MsgServoError     uint16 = 5 // response: oid code

	MsgIdentify         uint16 = 6 // offset count
	MsgIdentifyResponse uint16 = 7 // response: offset data
)

// IdentifyChunkSize is the dictionary chunk the host requests per identify
const IdentifyChunkSize = 40

// MessageFormat describes one entry of the message table
type MessageFormat struct {
	ID       uint16
	Name     string
	Format   string
	Response bool
}

// Messages is the message table in ID order
var Messages = []MessageFormat{
	{MsgServoState, "servo_state", "oid=%c enabled=%c ticks=%hu top=%hu centideg=%hu", true},
	{MsgSetServoAngle, "set_servo_angle", "oid=%c centideg=%hu", false},
	{MsgSetServoEnable, "set_servo_enable", "oid=%c enable=%c", false},
	{MsgSetServoTicks, "set_servo_ticks", "oid=%c ticks=%hu", false},
	{MsgQueryServo, "query_servo", "oid=%c", false},
	{MsgServoError, "servo_error", "oid=%c code=%c", true},
	{MsgIdentify, "identify", "offset=%u count=%c", false},
	{MsgIdentifyResponse, "identify_response", "offset=%u data=%.*s", true},
}

// MessageByName looks up a message table entry
func MessageByName(name string) (MessageFormat, bool) {
	for _, m := range Messages {
		if m.Name == name {
			return m, true
		}
	}
	return MessageFormat{}, false
}
