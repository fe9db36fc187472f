package remusbuf

// Kind is a device kind.
type Kind int

// Device kinds.
const (
	KindNIC Kind = iota + 1
	KindDisk
)

// String returns "nic" or "disk".
func (k Kind) String() string {
	switch k {
	case KindNIC:
		return "nic"
	case KindDisk:
		return "disk"
	default:
		return "unknown"
	}
}

// Phase identifies a coordinator round.
type Phase string

// Phases in lifecycle order. Postsuspend, Preresume and Commit repeat once
// per checkpoint epoch.
const (
	PhaseSetup       Phase = "setup"
	PhasePostsuspend Phase = "postsuspend"
	PhasePreresume   Phase = "preresume"
	PhaseCommit      Phase = "commit"
	PhaseTeardown    Phase = "teardown"
)

// Params selects which device kinds take part in a cycle.
type Params struct {
	NetBuffer  bool
	DiskBuffer bool
}

// Enabled reports whether devices of kind k take part.
func (p Params) Enabled(k Kind) bool {
	switch k {
	case KindNIC:
		return p.NetBuffer
	case KindDisk:
		return p.DiskBuffer
	}
	return false
}
