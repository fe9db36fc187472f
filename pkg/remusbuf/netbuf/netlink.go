package netbuf

import "errors"

// Netlink is the rtnetlink surface the handler uses. One instance is shared
// by every device of a cycle; the handler serializes all calls.
type Netlink interface {
	// Qdiscs dumps the qdiscs of every link.
	Qdiscs() ([]Qdisc, error)

	// LinkIndex resolves an interface name.
	LinkIndex(name string) (int, error)

	// Plug sends a plug directive to q.
	Plug(q Qdisc, action PlugAction) error

	// Close releases the socket.
	Close()
}

// Dialer opens a Netlink connection.
type Dialer func() (Netlink, error)

// ErrNetlinkUnavailable is returned by Dial on platforms without rtnetlink.
var ErrNetlinkUnavailable = errors.New("rtnetlink not available on this platform")
