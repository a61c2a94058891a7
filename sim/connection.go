package sim

// SendError marks a failure send or receive
type SendError struct{}

// NewSendError creates a SendError
func NewSendError() *SendError {
	e := new(SendError)
	return e
}

// A Connection is responsible for delivering messages to its destination.
type Connection interface {
	Named
	Hookable

	// PlugIn connects a port to the connection. The sourceSideBufSize is the
	// number of messages that the connection can buffer on the source side.
	PlugIn(port Port, sourceSideBufSize int)
	Unplug(port Port)

	// NotifyAvailable is called by a port to notify the connection that the
	// port can receive messages again.
	NotifyAvailable(port Port)

	// NotifySend is called by a port to notify the connection that there are
	// messages waiting in the port's outgoing buffer.
	NotifySend()
}

// HookPosConnStartSend marks a connection accept to send a message.
var HookPosConnStartSend = &HookPos{Name: "Conn Start Send"}

// HookPosConnStartTrans marks a connection start to transmit a message.
var HookPosConnStartTrans = &HookPos{Name: "Conn Start Trans"}

// HookPosConnDoneTrans marks a connection complete transmitting a message.
var HookPosConnDoneTrans = &HookPos{Name: "Conn Done Trans"}

// HookPosConnDeliver marks a connection delivered a message.
var HookPosConnDeliver = &HookPos{Name: "Conn Deliver"}
