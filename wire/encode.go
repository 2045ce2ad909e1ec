package wire

import (
	"fmt"
	"strings"
)

// EncodeValue renders v as tag "(" body ")", e.g. n(420), s(F93E13B4) or l(10,20,15).
func EncodeValue(v Value) (string, error) {
	var sb strings.Builder
	if err := appendValue(&sb, v); err != nil {
		return "", err
	}

	return sb.String(), nil
}

// EncodeSegment renders one name ":" tag "(" body ")" segment.
func EncodeSegment(name string, v Value) (string, error) {
	var sb strings.Builder
	if err := appendSegment(&sb, name, v); err != nil {
		return "", err
	}

	return sb.String(), nil
}

// Encode renders every field of msg as a '|' separated line, without line terminator.
func Encode(msg *Message) (string, error) {
	if msg == nil || msg.Len() == 0 {
		return "", ErrEmptyLine
	}

	var sb strings.Builder
	for i, f := range msg.fields {
		if i > 0 {
			sb.WriteByte(SegmentSeparator)
		}
		if err := appendSegment(&sb, f.Key, f.Value); err != nil {
			return "", err
		}
	}

	return sb.String(), nil
}

func appendSegment(sb *strings.Builder, name string, v Value) error {
	if err := validateName(name); err != nil {
		return err
	}

	sb.WriteString(name)
	sb.WriteByte(NameSeparator)

	return appendValue(sb, v)
}

func appendValue(sb *strings.Builder, v Value) error {
	switch v.kind {
	case NumberKind:
		sb.WriteByte(TagNumber)
		sb.WriteByte(BodyOpen)
		sb.WriteString(formatNumber(v.num))

	case TextKind:
		if strings.ContainsAny(v.text, "|\r\n") {
			return fmt.Errorf("%w: text %q contains a separator", ErrUnencodable, v.text)
		}
		sb.WriteByte(TagText)
		sb.WriteByte(BodyOpen)
		sb.WriteString(v.text)

	case ListKind:
		sb.WriteByte(TagList)
		sb.WriteByte(BodyOpen)
		for i, item := range v.items {
			f, ok := item.Float()
			if !ok {
				return fmt.Errorf("%w: list element %d is %s, only numbers are allowed", ErrUnencodable, i, item.kind)
			}
			if i > 0 {
				sb.WriteByte(ListSeparator)
			}
			sb.WriteString(formatNumber(f))
		}

	default:
		return fmt.Errorf("%w: invalid value", ErrUnencodable)
	}

	sb.WriteByte(BodyClose)

	return nil
}

func validateName(name string) error {
	if name == "" || strings.TrimSpace(name) != name {
		return fmt.Errorf("%w: name %q is empty or padded", ErrUnencodable, name)
	}
	if strings.ContainsAny(name, ":|()\r\n") {
		return fmt.Errorf("%w: name %q contains a delimiter", ErrUnencodable, name)
	}

	return nil
}
