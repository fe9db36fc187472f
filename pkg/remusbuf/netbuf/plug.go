package netbuf

import (
	"encoding/binary"
	"fmt"
)

// HandleRoot is the parent handle of a link's root qdisc.
const HandleRoot uint32 = 0xFFFFFFFF

// KindPlug is the traffic-control kind of the plug qdisc.
const KindPlug = "plug"

// PlugAction is a plug qdisc directive (TCQ_PLUG_*).
type PlugAction int32

// Plug directives understood by the kernel's sch_plug.
const (
	// PlugBuffer inserts a barrier: packets queued from now on are held.
	PlugBuffer PlugAction = 0
	// PlugReleaseOne releases the packets up to the oldest barrier.
	PlugReleaseOne PlugAction = 1
	// PlugReleaseIndefinite releases everything and stops buffering.
	PlugReleaseIndefinite PlugAction = 2
	// PlugLimit changes the queue limit.
	PlugLimit PlugAction = 3
)

// String returns the directive name.
func (a PlugAction) String() string {
	switch a {
	case PlugBuffer:
		return "buffer"
	case PlugReleaseOne:
		return "release-one"
	case PlugReleaseIndefinite:
		return "release-indefinite"
	case PlugLimit:
		return "limit"
	default:
		return fmt.Sprintf("plug-action(%d)", int32(a))
	}
}

// Qdisc is the part of a queueing discipline the handler tracks.
type Qdisc struct {
	LinkIndex int
	Handle    uint32
	Parent    uint32
	Kind      string
}

// IsRoot reports whether q is its link's root qdisc.
func (q Qdisc) IsRoot() bool {
	return q.Parent == HandleRoot
}

// String formats the qdisc like tc does, e.g. "plug 1:0 dev 12 root".
func (q Qdisc) String() string {
	parent := "root"
	if !q.IsRoot() {
		parent = fmt.Sprintf("parent %x:%x", q.Parent>>16, q.Parent&0xFFFF)
	}
	return fmt.Sprintf("%s %x:%x dev %d %s", q.Kind, q.Handle>>16, q.Handle&0xFFFF, q.LinkIndex, parent)
}

// plugOptions encodes struct tc_plug_qopt { int action; __u32 limit; }.
func plugOptions(action PlugAction, limit uint32) []byte {
	b := make([]byte, 8)
	binary.NativeEndian.PutUint32(b[0:4], uint32(action))
	binary.NativeEndian.PutUint32(b[4:8], limit)
	return b
}
