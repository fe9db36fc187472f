//go:build !linux

package drbd

// Open always fails off Linux.
func Open(path string) (Conn, error) {
	return nil, ErrControlUnavailable
}
