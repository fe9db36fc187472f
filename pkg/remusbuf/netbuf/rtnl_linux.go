//go:build linux

package netbuf

import (
	"fmt"

	"github.com/vishvananda/netlink"
	"github.com/vishvananda/netlink/nl"
	"golang.org/x/sys/unix"
)

// rtnl implements Netlink over a route socket.
type rtnl struct {
	h *netlink.Handle
}

// Dial opens a NETLINK_ROUTE handle.
func Dial() (Netlink, error) {
	h, err := netlink.NewHandle(unix.NETLINK_ROUTE)
	if err != nil {
		return nil, fmt.Errorf("open route socket: %w", err)
	}
	return &rtnl{h: h}, nil
}

// Qdiscs dumps every qdisc. Kinds the library does not model, plug among
// them, come back as *netlink.GenericQdisc and keep their kind string.
func (r *rtnl) Qdiscs() ([]Qdisc, error) {
	qs, err := r.h.QdiscList(nil)
	if err != nil {
		return nil, fmt.Errorf("list qdiscs: %w", err)
	}
	out := make([]Qdisc, 0, len(qs))
	for _, q := range qs {
		a := q.Attrs()
		out = append(out, Qdisc{
			LinkIndex: a.LinkIndex,
			Handle:    a.Handle,
			Parent:    a.Parent,
			Kind:      q.Type(),
		})
	}
	return out, nil
}

// LinkIndex resolves an interface name to its index.
func (r *rtnl) LinkIndex(name string) (int, error) {
	link, err := r.h.LinkByName(name)
	if err != nil {
		return 0, fmt.Errorf("link %s: %w", name, err)
	}
	return link.Attrs().Index, nil
}

// Plug re-adds q with new plug options, which is how sch_plug takes
// directives.
func (r *rtnl) Plug(q Qdisc, action PlugAction) error {
	req := nl.NewNetlinkRequest(unix.RTM_NEWQDISC, unix.NLM_F_ACK)
	req.AddData(&nl.TcMsg{
		Family:  nl.FAMILY_ALL,
		Ifindex: int32(q.LinkIndex),
		Handle:  q.Handle,
		Parent:  q.Parent,
	})
	req.AddData(nl.NewRtAttr(nl.TCA_KIND, nl.ZeroTerminated(q.Kind)))
	req.AddData(nl.NewRtAttr(nl.TCA_OPTIONS, plugOptions(action, 0)))

	if _, err := req.Execute(unix.NETLINK_ROUTE, 0); err != nil {
		return fmt.Errorf("plug %s on %s: %w", action, q, err)
	}
	return nil
}

// Close releases the handle's sockets.
func (r *rtnl) Close() {
	r.h.Delete()
}
