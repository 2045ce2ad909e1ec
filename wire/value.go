package wire

import (
	"strconv"
	"strings"
)

// Kind identifies the variant held by a Value.
type Kind uint8

const (
	// InvalidKind is the kind of the zero Value.
	InvalidKind Kind = iota
	// NumberKind is produced by the "n" tag.
	NumberKind
	// TextKind is produced by the "s" tag.
	TextKind
	// ListKind is produced by the "l" tag.
	ListKind
)

// String returns the name of the kind.
func (k Kind) String() string {
	switch k {
	case NumberKind:
		return "number"
	case TextKind:
		return "text"
	case ListKind:
		return "list"
	default:
		return "invalid"
	}
}

// Tag returns the wire tag of the kind, or 0 for InvalidKind.
func (k Kind) Tag() byte {
	switch k {
	case NumberKind:
		return TagNumber
	case TextKind:
		return TagText
	case ListKind:
		return TagList
	default:
		return 0
	}
}

// Value is a decoded field value: a Number, a Text or a List of Values.
//
// Lists produced by the decoder only contain Numbers. The zero Value is invalid.
type Value struct {
	kind  Kind
	num   float64
	text  string
	items []Value
}

// Number creates a Number value.
func Number(f float64) Value {
	return Value{kind: NumberKind, num: f}
}

// Text creates a Text value.
func Text(s string) Value {
	return Value{kind: TextKind, text: s}
}

// List creates a List value holding items. The slice is copied.
func List(items ...Value) Value {
	cp := make([]Value, len(items))
	copy(cp, items)

	return Value{kind: ListKind, items: cp}
}

// Numbers creates a List of Number values.
func Numbers(nums ...float64) Value {
	items := make([]Value, len(nums))
	for i, n := range nums {
		items[i] = Number(n)
	}

	return Value{kind: ListKind, items: items}
}

// Kind returns the variant of v.
func (v Value) Kind() Kind { return v.kind }

// IsValid reports whether v holds a value.
func (v Value) IsValid() bool { return v.kind != InvalidKind }

// Float returns the number held by v. ok is false when v is not a Number.
func (v Value) Float() (f float64, ok bool) {
	return v.num, v.kind == NumberKind
}

// Text returns the text held by v. ok is false when v is not a Text.
func (v Value) Text() (s string, ok bool) {
	return v.text, v.kind == TextKind
}

// Items returns a copy of the elements of v. ok is false when v is not a List.
func (v Value) Items() (items []Value, ok bool) {
	if v.kind != ListKind {
		return nil, false
	}
	items = make([]Value, len(v.items))
	copy(items, v.items)

	return items, true
}

// Floats returns the elements of a List of Numbers. ok is false when v is not a List
// or holds a non-Number element.
func (v Value) Floats() (nums []float64, ok bool) {
	if v.kind != ListKind {
		return nil, false
	}
	nums = make([]float64, len(v.items))
	for i, item := range v.items {
		f, isNum := item.Float()
		if !isNum {
			return nil, false
		}
		nums[i] = f
	}

	return nums, true
}

// Len returns the number of elements of a List, and 0 for other kinds.
func (v Value) Len() int {
	return len(v.items)
}

// Equal reports whether v and o hold the same variant and contents.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}

	switch v.kind {
	case NumberKind:
		return v.num == o.num
	case TextKind:
		return v.text == o.text
	case ListKind:
		if len(v.items) != len(o.items) {
			return false
		}
		for i := range v.items {
			if !v.items[i].Equal(o.items[i]) {
				return false
			}
		}

		return true
	default:
		return true
	}
}

// String returns a human readable form of v, e.g. 420, "F93E13B4" or [10 20 15].
func (v Value) String() string {
	switch v.kind {
	case NumberKind:
		return formatNumber(v.num)
	case TextKind:
		return strconv.Quote(v.text)
	case ListKind:
		var sb strings.Builder
		sb.WriteByte('[')
		for i, item := range v.items {
			if i > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteString(item.String())
		}
		sb.WriteByte(']')

		return sb.String()
	default:
		return "<invalid>"
	}
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
