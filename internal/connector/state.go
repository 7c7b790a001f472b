package connector

// State is the connection state owned by the supervisor.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	StateExhausted    State = "exhausted"
)

func (s State) String() string {
	return string(s)
}
