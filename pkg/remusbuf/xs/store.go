// Package xs provides the key/value configuration store that device handlers use
// to exchange per-device parameters with hotplug scripts.
//
// Keys are slash-separated paths laid out like xenstore, e.g.
// /libxl/<domid>/remus/netbuf/<devid>/ifb. The toolstack's real store is an
// external collaborator; this package defines the Store interface it must
// satisfy and ships an in-memory and a SQLite-backed implementation.
package xs

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Store reads and writes configuration values.
// Implementations must be safe for concurrent use.
type Store interface {
	// Read returns the value at path.
	// A missing key is not an error: it returns ok == false.
	Read(ctx context.Context, path string) (value string, ok bool, err error)

	// Write stores value at path, overwriting any existing value.
	Write(ctx context.Context, path, value string) error

	// Remove deletes path and everything below it.
	// Returns nil if nothing exists there.
	Remove(ctx context.Context, path string) error

	// Close releases any resources (connections, files).
	Close() error
}

// Sentinel errors for store operations.
var (
	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("config store closed")

	// ErrInvalidPath indicates a path that is empty or not absolute.
	ErrInvalidPath = errors.New("invalid store path")
)

// ValidatePath checks that path is absolute and has no empty components.
func ValidatePath(path string) error {
	if path == "" || !strings.HasPrefix(path, "/") {
		return fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	if path != "/" && (strings.HasSuffix(path, "/") || strings.Contains(path, "//")) {
		return fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	return nil
}

// DomainPath returns the per-domain root, /local/domain/<domid>.
func DomainPath(domid uint32) string {
	return fmt.Sprintf("/local/domain/%d", domid)
}

// LibxlPath returns the toolstack-private root for a domain, /libxl/<domid>.
func LibxlPath(domid uint32) string {
	return fmt.Sprintf("/libxl/%d", domid)
}

// VifNamePath returns where the backend publishes a NIC's interface name.
// Backends live in dom0, so the path is rooted at /local/domain/0.
func VifNamePath(domid uint32, devid int) string {
	return fmt.Sprintf("%s/backend/vif/%d/%d/vifname", DomainPath(0), domid, devid)
}

// NetbufPath returns the checkpoint subtree of one network device.
// It is passed to the netbuf script as XENBUS_PATH.
func NetbufPath(domid uint32, devid int) string {
	return fmt.Sprintf("%s/remus/netbuf/%d", LibxlPath(domid), devid)
}

// ReadRequired reads path and fails if the key is missing or empty.
func ReadRequired(ctx context.Context, s Store, path string) (string, error) {
	v, ok, err := s.Read(ctx, path)
	if err != nil {
		return "", err
	}
	if !ok || v == "" {
		return "", fmt.Errorf("read %s: %w", path, ErrNotFound)
	}
	return v, nil
}

// ErrNotFound is returned by ReadRequired when a key is absent.
var ErrNotFound = errors.New("key not found")
