package proxy

// State is the lifecycle position of a proxy session.
type State int32

const (
	StateOpen         State = iota // request accepted, upstream not yet answered
	StateStreaming                 // upstream answered, headers committed to the client
	StateClosedNormal              // upstream ended or reset the stream
	StateClosedClient              // client went away
	StateClosedError               // upstream failed
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateStreaming:
		return "streaming"
	case StateClosedNormal:
		return "closed_normal"
	case StateClosedClient:
		return "closed_client"
	case StateClosedError:
		return "closed_error"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s >= StateClosedNormal
}

// Query parameters the provider expects next to the signature.
const (
	ParamN         = "n"
	ParamB         = "b"
	ParamSignature = "vavoo_auth"
)
