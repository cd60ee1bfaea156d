// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package templates

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf16"
)

// Argument is one extracted, typed argument.
type Argument struct {
	Name string

	// Value is an int64 for integer parameters and a string for string
	// parameters.
	Value any
}

// Arguments is an ordered argument list. Order is the function's declared
// parameter order and is preserved by Encode.
type Arguments []Argument

// Get returns the value of the named argument.
func (a Arguments) Get(name string) (any, bool) {
	for _, arg := range a {
		if arg.Name == name {
			return arg.Value, true
		}
	}
	return nil, false
}

// Map returns the arguments as an unordered map.
func (a Arguments) Map() map[string]any {
	m := make(map[string]any, len(a))
	for _, arg := range a {
		m[arg.Name] = arg.Value
	}
	return m
}

// Encode returns the canonical textual encoding of the arguments.
//
// Description:
//
//	Produces a JSON object with members in declaration order, using the
//	function calling convention's layout: ", " between members, ": "
//	between key and value, and ASCII-only output (everything outside
//	printable ASCII is written as \uXXXX, with surrogate pairs above the
//	BMP). For example:
//
//	  {"date": "2025-02-15", "time": "14:00", "meeting_room": "Room A"}
//
//	Encoding is deterministic: the same Arguments always encode to the
//	same string.
//
// Outputs:
//
//	string - The encoded object. "{}" for no arguments.
//	error - Non-nil if a value has an unsupported type.
func (a Arguments) Encode() (string, error) {
	if len(a) == 0 {
		return "{}", nil
	}

	var b strings.Builder
	b.WriteByte('{')
	for i, arg := range a {
		if i > 0 {
			b.WriteString(", ")
		}
		writeJSONString(&b, arg.Name)
		b.WriteString(": ")
		if err := writeJSONValue(&b, arg.Value); err != nil {
			return "", fmt.Errorf("argument %s: %w", arg.Name, err)
		}
	}
	b.WriteByte('}')
	return b.String(), nil
}

// MarshalJSON encodes the arguments as an ordered JSON object.
func (a Arguments) MarshalJSON() ([]byte, error) {
	s, err := a.Encode()
	if err != nil {
		return nil, err
	}
	return []byte(s), nil
}

func writeJSONValue(b *strings.Builder, v any) error {
	switch val := v.(type) {
	case int64:
		b.WriteString(strconv.FormatInt(val, 10))
	case int:
		b.WriteString(strconv.Itoa(val))
	case string:
		writeJSONString(b, val)
	case nil:
		b.WriteString("null")
	default:
		return fmt.Errorf("unsupported value type %T", v)
	}
	return nil
}

const hexDigits = "0123456789abcdef"

func writeJSONString(b *strings.Builder, s string) {
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case '\b':
			b.WriteString(`\b`)
		case '\f':
			b.WriteString(`\f`)
		default:
			switch {
			case r >= 0x20 && r < 0x7f:
				b.WriteRune(r)
			case r > 0xffff:
				hi, lo := utf16.EncodeRune(r)
				writeUnicodeEscape(b, hi)
				writeUnicodeEscape(b, lo)
			default:
				writeUnicodeEscape(b, r)
			}
		}
	}
	b.WriteByte('"')
}

func writeUnicodeEscape(b *strings.Builder, r rune) {
	b.WriteString(`\u`)
	b.WriteByte(hexDigits[(r>>12)&0xf])
	b.WriteByte(hexDigits[(r>>8)&0xf])
	b.WriteByte(hexDigits[(r>>4)&0xf])
	b.WriteByte(hexDigits[r&0xf])
}
