package wire

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Protocol delimiters and type tags.
const (
	SegmentSeparator = '|'
	NameSeparator    = ':'
	ListSeparator    = ','
	BodyOpen         = '('
	BodyClose        = ')'

	TagText   = 's'
	TagNumber = 'n'
	TagList   = 'l'
)

// StripLine applies the lenient framing used on raw transport reads: the bytes are
// taken as text, surrounding whitespace is trimmed and a single trailing '|' is dropped.
//
// An empty result means there is nothing to decode.
func StripLine(raw []byte) string {
	return trimLine(string(raw))
}

func trimLine(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, string(SegmentSeparator))

	return strings.TrimSpace(s)
}

// Decode parses one protocol line into a Message.
//
// The line is trimmed and a trailing '|' is ignored. Any malformed segment rejects
// the whole line: the returned error is a *ProtocolError and no partial Message is
// returned.
func Decode(line string) (*Message, error) {
	trimmed := trimLine(line)
	if trimmed == "" {
		return nil, newProtocolError(line, "", ErrEmptyLine)
	}

	segments := strings.Split(trimmed, string(SegmentSeparator))
	msg := &Message{
		fields: make([]Field, 0, len(segments)),
		index:  make(map[string]int, len(segments)),
	}

	for _, seg := range segments {
		name, value, err := decodeSegment(seg)
		if err != nil {
			return nil, newProtocolError(line, seg, err)
		}
		msg.Set(name, value)
	}

	return msg, nil
}

// decodeSegment parses name ":" tag "(" body ")".
func decodeSegment(seg string) (string, Value, error) {
	seg = strings.TrimSpace(seg)

	name, rest, found := strings.Cut(seg, string(NameSeparator))
	if !found {
		return "", Value{}, fmt.Errorf("%w: missing %q", ErrMalformedSegment, NameSeparator)
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return "", Value{}, fmt.Errorf("%w: empty name", ErrMalformedSegment)
	}

	rest = strings.TrimSpace(rest)
	open := strings.IndexByte(rest, BodyOpen)
	if open < 0 || len(rest) < open+2 || rest[len(rest)-1] != BodyClose {
		return "", Value{}, fmt.Errorf("%w: unbalanced parentheses", ErrMalformedSegment)
	}

	// the tag must sit directly against the body
	tag := rest[:open]
	body := rest[open+1 : len(rest)-1]

	value, err := decodeBody(tag, body)
	if err != nil {
		return "", Value{}, err
	}

	return name, value, nil
}

func decodeBody(tag string, body string) (Value, error) {
	if len(tag) != 1 {
		return Value{}, fmt.Errorf("%w %q", ErrUnknownTag, tag)
	}

	switch tag[0] {
	case TagText:
		return Text(body), nil

	case TagNumber:
		f, err := parseNumber(body)
		if err != nil {
			return Value{}, err
		}

		return Number(f), nil

	case TagList:
		body = strings.TrimSpace(body)
		if body == "" {
			return List(), nil
		}

		parts := strings.Split(body, string(ListSeparator))
		items := make([]Value, len(parts))
		for i, part := range parts {
			f, err := parseNumber(part)
			if err != nil {
				return Value{}, err
			}
			items[i] = Number(f)
		}

		return Value{kind: ListKind, items: items}, nil

	default:
		return Value{}, fmt.Errorf("%w %q", ErrUnknownTag, tag)
	}
}

func parseNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		// out of range values saturate to ±Inf
		if errors.Is(err, strconv.ErrRange) {
			return f, nil
		}

		return 0, fmt.Errorf("%w %q", ErrInvalidNumber, s)
	}

	return f, nil
}
