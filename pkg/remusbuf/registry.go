package remusbuf

import (
	"errors"
	"fmt"

	"github.com/randalmurphal/remusbuf/pkg/remusbuf/registry"
)

// Registry holds device-kind handlers in registration order, grouped by kind.
// Several handlers may serve one kind; matching tries them in order.
type Registry struct {
	handlers *registry.Registry[Kind, Handler]
}

// NewRegistry creates a registry holding the given handlers in order.
func NewRegistry(handlers ...Handler) *Registry {
	r := &Registry{handlers: registry.New[Kind, Handler]()}
	for _, h := range handlers {
		r.Register(h)
	}
	return r
}

// Register appends a handler after those already registered for its kind.
func (r *Registry) Register(h Handler) {
	r.handlers.Register(h.Kind(), h)
}

// Handlers returns the handlers of kind k in registration order.
func (r *Registry) Handlers(k Kind) []Handler {
	return r.handlers.Get(k)
}

// All returns every handler, grouped by kind in order of first registration.
func (r *Registry) All() []Handler {
	out := make([]Handler, 0, r.handlers.Len())
	r.handlers.Range(func(_ Kind, h Handler) bool {
		out = append(out, h)
		return true
	})
	return out
}

// Len returns the number of registered handlers.
func (r *Registry) Len() int {
	return r.handlers.Len()
}

// Match finds the handler that owns dev and binds it.
//
// Candidates of the device's kind are probed one at a time. A candidate
// without Match claims immediately. ErrNotClaimed advances to the next
// candidate; any other error stops probing. The returned error wraps
// ErrUnsupported when no candidate claimed the device.
func (r *Registry) Match(ctx Context, dev *Device) (Handler, error) {
	if dev.handler != nil {
		return dev.handler, nil
	}

	candidates := r.Handlers(dev.kind)
	for i, h := range candidates {
		dev.probe = i

		m, ok := h.(Matcher)
		if !ok {
			dev.bind(h)
			return h, nil
		}

		err := m.Match(ctx, dev)
		switch {
		case err == nil:
			dev.bind(h)
			return h, nil
		case errors.Is(err, ErrNotClaimed):
			ctx.Logger().Debug("handler declined device", "handler", h.Name())
			continue
		default:
			return nil, fmt.Errorf("%w: %s: %w", ErrUnsupported, h.Name(), err)
		}
	}
	return nil, ErrUnsupported
}
