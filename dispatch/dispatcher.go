// Package dispatch routes decoded fields to the consumers interested in them.
//
// Consumers register either a single field key or an ordered group of keys. A single
// registration fires for every occurrence of its key; a group registration collects
// values in its GroupBuffer across messages and fires once every key of the group has
// arrived, in any order, after which the buffer is emptied.
//
// Dispatch runs consumers inline on the calling goroutine. Registration may happen
// concurrently with dispatching.
package dispatch

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/arloliu/go-devlink/wire"
	"github.com/puzpuzpuz/xsync/v3"
)

// ErrInvalidRegistration indicates a registration with a nil handler, an empty key,
// or a group with no or duplicated keys.
var ErrInvalidRegistration = errors.New("dispatch: invalid registration")

// FieldHandler consumes the value of a single field.
type FieldHandler func(value wire.Value)

// GroupHandler consumes the values of a group, in the order of the group keys.
type GroupHandler func(values []wire.Value)

// RawHandler consumes every decoded message after its fields were routed.
type RawHandler func(msg *wire.Message)

// groupSlot binds a group registration to the index of one of its keys.
type groupSlot struct {
	group *GroupRegistration
	index int
}

// Dispatcher is the registry of field consumers.
//
// The zero value is not usable, use New.
type Dispatcher struct {
	singles *xsync.MapOf[string, []FieldHandler]
	groups  *xsync.MapOf[string, []groupSlot]
	raw     atomic.Pointer[RawHandler]

	mu         sync.Mutex // serializes registration
	allGroups  []*GroupRegistration
	registered map[Registration]struct{}
	count      int
}

// New creates an empty Dispatcher.
func New() *Dispatcher {
	return &Dispatcher{
		singles: xsync.NewMapOf[string, []FieldHandler](),
		groups:  xsync.NewMapOf[string, []groupSlot](),

		registered: make(map[Registration]struct{}),
	}
}

// Register adds reg to the dispatcher. Registrations are never removed, and a
// registration that was already added is rejected.
func (d *Dispatcher) Register(reg Registration) error {
	if reg == nil {
		return ErrInvalidRegistration
	}
	if err := reg.validate(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	// a group registered twice would store every value twice into its one buffer
	if _, ok := d.registered[reg]; ok {
		return fmt.Errorf("%w: already registered", ErrInvalidRegistration)
	}
	d.registered[reg] = struct{}{}

	switch r := reg.(type) {
	case *SingleRegistration:
		d.singles.Compute(r.key, func(old []FieldHandler, _ bool) ([]FieldHandler, bool) {
			handlers := make([]FieldHandler, len(old), len(old)+1)
			copy(handlers, old)

			return append(handlers, r.handler), false
		})

	case *GroupRegistration:
		for i, key := range r.keys {
			slot := groupSlot{group: r, index: i}
			d.groups.Compute(key, func(old []groupSlot, _ bool) ([]groupSlot, bool) {
				slots := make([]groupSlot, len(old), len(old)+1)
				copy(slots, old)

				return append(slots, slot), false
			})
		}
		d.allGroups = append(d.allGroups, r)
	}
	d.count++

	return nil
}

// SetRawHandler sets the consumer receiving every whole message. A nil handler
// removes it.
func (d *Dispatcher) SetRawHandler(h RawHandler) {
	if h == nil {
		d.raw.Store(nil)
		return
	}
	d.raw.Store(&h)
}

// Len returns the number of registrations.
func (d *Dispatcher) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.count
}

// Dispatch routes every field of msg to the matching registrations, in field order,
// then hands the whole message to the raw handler.
func (d *Dispatcher) Dispatch(msg *wire.Message) {
	if msg == nil {
		return
	}

	msg.Range(func(key string, value wire.Value) bool {
		if handlers, ok := d.singles.Load(key); ok {
			for _, h := range handlers {
				h(value)
			}
		}

		if slots, ok := d.groups.Load(key); ok {
			for _, slot := range slots {
				if values, complete := slot.group.buffer.store(slot.index, value); complete {
					slot.group.handler(values)
				}
			}
		}

		return true
	})

	if raw := d.raw.Load(); raw != nil {
		(*raw)(msg)
	}
}

// Reset empties the buffers of every group registration.
func (d *Dispatcher) Reset() {
	d.mu.Lock()
	groups := make([]*GroupRegistration, len(d.allGroups))
	copy(groups, d.allGroups)
	d.mu.Unlock()

	for _, g := range groups {
		g.buffer.reset()
	}
}
