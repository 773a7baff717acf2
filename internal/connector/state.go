package connector

// State is a connector's position in its lifecycle.
//
//	connect   -> Connected | Mock | Failed
//	close     -> Disconnected
//	reconnect -> close, then connect
type State int

const (
	StateDisconnected State = iota
	StateConnected
	StateMock
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateMock:
		return "mock"
	case StateFailed:
		return "failed"
	default:
		return "disconnected"
	}
}

// Status is the externally reported connector status.
type Status string

const (
	StatusHealthy      Status = "healthy"
	StatusMock         Status = "mock"
	StatusFailed       Status = "failed"
	StatusDisconnected Status = "disconnected"
)

// Status maps a lifecycle state to the reported status.
func (s State) Status() Status {
	switch s {
	case StateConnected:
		return StatusHealthy
	case StateMock:
		return StatusMock
	case StateFailed:
		return StatusFailed
	default:
		return StatusDisconnected
	}
}

// Metadata describes a registered connector.
type Metadata struct {
	Type        string `json:"type"`
	Status      Status `json:"status"`
	Description string `json:"description"`
	Error       string `json:"error,omitempty"`
}
