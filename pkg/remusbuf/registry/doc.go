// Package registry provides a generic thread-safe registry that keeps values
// grouped by key in registration order.
//
// Ordering matters for callers that probe candidates one after another, such as
// device-kind matching where the first handler that claims a device wins.
//
// # Basic Usage
//
//	r := registry.New[string, string]()
//	r.Register("disk", "drbd")
//	r.Register("disk", "plain")
//	r.Register("nic", "netbuf")
//
//	r.Get("disk")  // ["drbd", "plain"]
//	r.Keys()       // ["disk", "nic"]
//
// # Thread Safety
//
// All methods are safe for concurrent use. Get, Keys and Range hand out copies,
// so callers may keep them while other goroutines register more values.
package registry
