package core

import "megaservo/protocol"

// ResponseSender frames a message toward the host. *protocol.Transport
// implements it.
type ResponseSender interface {
	SendCommand(cmdID uint16, args func(output protocol.OutputBuffer))
}

// Global transport for sending responses (set by main)
var globalTransport ResponseSender

// SetGlobalTransport sets the global transport for sending responses
func SetGlobalTransport(transport ResponseSender) {
	globalTransport = transport
}

// SendResponse sends a registered response message using the global
// transport. It is a no-op until a transport is set.
func SendResponse(responseName string, args func(output protocol.OutputBuffer)) {
	if globalTransport == nil {
		return
	}
	cmd, ok := globalRegistry.GetCommandByName(responseName)
	if !ok {
		// every response is registered by InitServoCommands
		panic("response not registered: " + responseName)
	}
	globalTransport.SendCommand(cmd.ID, args)
}

// ReportCommandError is installed as the transport's error handler
func ReportCommandError(cmdID uint16, err error) {
	name := "#" + utoa(uint32(cmdID))
	if cmd, ok := globalRegistry.GetCommand(cmdID); ok {
		name = cmd.Name
	}
	DebugPrintln("[CMD] " + name + ": " + err.Error())
}
