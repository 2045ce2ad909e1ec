package wire

import "strings"

// Field is a named value of a decoded line.
type Field struct {
	Key   string
	Value Value
}

// Message is the ordered set of fields decoded from one inbound line.
//
// Keys keep the position of their first appearance. When a line repeats a key the
// later value replaces the earlier one.
type Message struct {
	fields []Field
	index  map[string]int
}

// NewMessage creates a Message holding fields in order.
func NewMessage(fields ...Field) *Message {
	msg := &Message{
		fields: make([]Field, 0, len(fields)),
		index:  make(map[string]int, len(fields)),
	}
	for _, f := range fields {
		msg.Set(f.Key, f.Value)
	}

	return msg
}

// Set stores value under key.
func (m *Message) Set(key string, value Value) {
	if m.index == nil {
		m.index = make(map[string]int)
	}

	if i, ok := m.index[key]; ok {
		m.fields[i].Value = value
		return
	}

	m.index[key] = len(m.fields)
	m.fields = append(m.fields, Field{Key: key, Value: value})
}

// Get returns the value stored under key.
func (m *Message) Get(key string) (Value, bool) {
	i, ok := m.index[key]
	if !ok {
		return Value{}, false
	}

	return m.fields[i].Value, true
}

// Len returns the number of fields.
func (m *Message) Len() int {
	return len(m.fields)
}

// Keys returns the field keys in order.
func (m *Message) Keys() []string {
	keys := make([]string, len(m.fields))
	for i, f := range m.fields {
		keys[i] = f.Key
	}

	return keys
}

// Fields returns a copy of the fields in order.
func (m *Message) Fields() []Field {
	fields := make([]Field, len(m.fields))
	copy(fields, m.fields)

	return fields
}

// Range calls fn for every field in order until fn returns false.
func (m *Message) Range(fn func(key string, value Value) bool) {
	for _, f := range m.fields {
		if !fn(f.Key, f.Value) {
			return
		}
	}
}

// String returns a human readable form, e.g. {Gas: 420, Flame: 0}.
func (m *Message) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	for i, f := range m.fields {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(f.Key)
		sb.WriteString(": ")
		sb.WriteString(f.Value.String())
	}
	sb.WriteByte('}')

	return sb.String()
}
