package session

// State is the connection state of one subject's channel.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Reconnecting
	Error
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalText renders the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Status is a point-in-time view of a session.
type Status struct {
	Subject     string `json:"subject"`
	State       State  `json:"state"`
	LastError   string `json:"last_error,omitempty"`
	Pending     int    `json:"pending_edits"`
	InFlight    string `json:"in_flight_edit,omitempty"`
	Subscribers int    `json:"subscribers"`
}
