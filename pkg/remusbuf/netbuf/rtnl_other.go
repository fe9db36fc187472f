//go:build !linux

package netbuf

// Dial always fails off Linux.
func Dial() (Netlink, error) {
	return nil, ErrNetlinkUnavailable
}
