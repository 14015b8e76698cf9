package mail

// State is the position of a connector in the IMAP session lifecycle.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateLoggedIn
	StateMailboxSelected

	// StateConnectionFailed is held only while a failed session is torn
	// down; the connector always returns to StateDisconnected afterwards.
	StateConnectionFailed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateLoggedIn:
		return "logged_in"
	case StateMailboxSelected:
		return "mailbox_selected"
	case StateConnectionFailed:
		return "connection_failed"
	default:
		return "unknown"
	}
}
