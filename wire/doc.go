// Package wire implements the line-oriented text protocol spoken by the devices.
//
// A line carries one or more named fields separated by '|':
//
//	line    := segment ("|" segment)*
//	segment := name ":" tag "(" body ")"
//	tag     := "s" | "n" | "l"
//
// The tag selects how body is interpreted:
//   - s: Text, the body is taken verbatim.
//   - n: Number, the body is parsed as a 64-bit float.
//   - l: List, the body is a comma-separated list of numbers.
//
// Examples:
//
//	IUD:s(F93E13B4)
//	Gas:n(420)|Flame:n(0)
//	distances:l(10,20,15,18,22)
//
// Decoding is all-or-nothing: a malformed segment rejects the whole line with a
// *ProtocolError. Outbound traffic is opaque text chosen by the application; the
// encoder in this package is a convenience for building well-formed lines.
package wire
