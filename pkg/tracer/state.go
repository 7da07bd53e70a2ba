package tracer

// State is the shared stream/transaction lifecycle. The only reachable
// sequence is a prefix of OPEN -> CLOSED -> FREED; nothing leaves FREED.
type State int

const (
	StateOpen State = iota
	StateClosed
	StateFreed
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "OPEN"
	case StateClosed:
		return "CLOSED"
	case StateFreed:
		return "FREED"
	default:
		return "INVALID"
	}
}
