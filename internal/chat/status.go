package chat

// Status is the delivery state of a message. Transitions only move
// forward; Delivered and Failed are terminal.
type Status string

const (
	StatusSending   Status = "Sending"
	StatusSent      Status = "Sent"
	StatusDelivered Status = "Delivered"
	StatusFailed    Status = "Failed"
)

// Terminal reports whether a status can never change again.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusFailed
}

// Transition returns the status a message ends up in when requested is
// applied to current. Illegal moves (backwards, out of a terminal state,
// unknown values) leave the status unchanged; callers always get a
// definite status back and proceed. This keeps a late out-of-order ack
// from resurrecting a message already marked Failed.
func Transition(current, requested Status) Status {
	if current.Terminal() {
		return current
	}
	switch current {
	case StatusSending:
		switch requested {
		case StatusSent, StatusDelivered, StatusFailed:
			return requested
		}
	case StatusSent:
		switch requested {
		case StatusDelivered, StatusFailed:
			return requested
		}
	}
	return current
}
