//go:build linux

package drbd

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// fdConn is a Conn over a read-only file descriptor.
type fdConn struct {
	path string
	fd   int
}

// Open opens path read-only for control requests.
func Open(path string) (Conn, error) {
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &fdConn{path: path, fd: fd}, nil
}

func (c *fdConn) SendCheckpoint() error {
	if err := unix.IoctlSetInt(c.fd, SendCheckpoint, 0); err != nil {
		return fmt.Errorf("send checkpoint on %s: %w", c.path, err)
	}
	return nil
}

func (c *fdConn) WaitCheckpointAck() error {
	if err := unix.IoctlSetInt(c.fd, WaitCheckpointAck, 0); err != nil {
		return fmt.Errorf("wait checkpoint ack on %s: %w", c.path, err)
	}
	return nil
}

func (c *fdConn) Close() error {
	return unix.Close(c.fd)
}
