package dispatch

import (
	"fmt"
	"sync"

	"github.com/arloliu/go-devlink/wire"
)

// Registration is a consumer interest: a SingleRegistration or a GroupRegistration.
type Registration interface {
	validate() error
}

// SingleRegistration routes every value of one field key to a handler.
type SingleRegistration struct {
	key     string
	handler FieldHandler
}

// Single creates a registration for one field key.
func Single(key string, h FieldHandler) *SingleRegistration {
	return &SingleRegistration{key: key, handler: h}
}

// Key returns the registered field key.
func (r *SingleRegistration) Key() string { return r.key }

func (r *SingleRegistration) validate() error {
	if r == nil {
		return ErrInvalidRegistration
	}
	if r.key == "" {
		return fmt.Errorf("%w: empty key", ErrInvalidRegistration)
	}
	if r.handler == nil {
		return fmt.Errorf("%w: nil handler for key %q", ErrInvalidRegistration, r.key)
	}

	return nil
}

// GroupRegistration collects the values of several keys and fires once all of them
// have arrived. Its buffer belongs to the registration: two groups over the same keys
// fill independently.
type GroupRegistration struct {
	keys    []string
	handler GroupHandler
	buffer  *GroupBuffer
}

// Group creates a registration over the ordered keys.
func Group(keys []string, h GroupHandler) *GroupRegistration {
	cp := make([]string, len(keys))
	copy(cp, keys)

	return &GroupRegistration{keys: cp, handler: h, buffer: newGroupBuffer(len(cp))}
}

// Keys returns a copy of the group keys.
func (r *GroupRegistration) Keys() []string {
	cp := make([]string, len(r.keys))
	copy(cp, r.keys)

	return cp
}

// Buffer returns the partial state of the group.
func (r *GroupRegistration) Buffer() *GroupBuffer { return r.buffer }

func (r *GroupRegistration) validate() error {
	if r == nil {
		return ErrInvalidRegistration
	}
	if len(r.keys) == 0 {
		return fmt.Errorf("%w: empty group", ErrInvalidRegistration)
	}
	if r.handler == nil {
		return fmt.Errorf("%w: nil handler for group %v", ErrInvalidRegistration, r.keys)
	}

	seen := make(map[string]struct{}, len(r.keys))
	for _, key := range r.keys {
		if key == "" {
			return fmt.Errorf("%w: empty key in group %v", ErrInvalidRegistration, r.keys)
		}
		if _, dup := seen[key]; dup {
			return fmt.Errorf("%w: duplicated key %q in group %v", ErrInvalidRegistration, key, r.keys)
		}
		seen[key] = struct{}{}
	}

	return nil
}

// GroupBuffer holds the values received so far for a group, one slot per key.
type GroupBuffer struct {
	mu     sync.Mutex
	slots  []wire.Value
	filled int
}

func newGroupBuffer(size int) *GroupBuffer {
	return &GroupBuffer{slots: make([]wire.Value, size)}
}

// Filled returns the number of non-empty slots.
func (b *GroupBuffer) Filled() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.filled
}

// IsEmpty reports whether no slot holds a value.
func (b *GroupBuffer) IsEmpty() bool {
	return b.Filled() == 0
}

// store puts v at index. When this fills the last empty slot it returns the values
// and empties the buffer.
func (b *GroupBuffer) store(index int, v wire.Value) ([]wire.Value, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.slots[index].IsValid() {
		b.filled++
	}
	b.slots[index] = v

	if b.filled < len(b.slots) {
		return nil, false
	}

	values := make([]wire.Value, len(b.slots))
	copy(values, b.slots)
	b.clear()

	return values, true
}

func (b *GroupBuffer) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.clear()
}

func (b *GroupBuffer) clear() {
	for i := range b.slots {
		b.slots[i] = wire.Value{}
	}
	b.filled = 0
}
