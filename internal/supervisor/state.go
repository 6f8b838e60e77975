package supervisor

import "fmt"

// ConnectionState is the externally observed transport state.
type ConnectionState int

const (
	StateIdle ConnectionState = iota
	StateBootstrapping
	StatePolling
	StateStreaming
	StateClosed
)

var stateNames = [...]string{
	StateIdle:          "IDLE",
	StateBootstrapping: "BOOTSTRAPPING",
	StatePolling:       "POLLING",
	StateStreaming:     "STREAMING",
	StateClosed:        "CLOSED",
}

func (s ConnectionState) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "UNKNOWN"
	}
	return stateNames[s]
}

// MarshalText implements encoding.TextMarshaler.
func (s ConnectionState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *ConnectionState) UnmarshalText(text []byte) error {
	for i, name := range stateNames {
		if name == string(text) {
			*s = ConnectionState(i)
			return nil
		}
	}
	return fmt.Errorf("unknown connection state %q", text)
}
