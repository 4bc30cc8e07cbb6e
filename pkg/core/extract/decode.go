// Copyright Flowbot Authors
// SPDX-License-Identifier: Apache-2.0

package extract

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	json5 "github.com/yosuke-furukawa/json5/encoding/json5"
)

// decoder turns a textual payload into a structured value.
type decoder struct {
	name   string
	decode func(s string) (any, error)
}

// decoders are tried in order; the first success wins.
var decoders = []decoder{
	{name: "json", decode: decodeStrict},
	{name: "literal", decode: decodeLiteral},
}

// Decode parses s as a structured value. Strict JSON is tried first, then a
// relaxed literal form that accepts single-quoted strings, trailing commas
// and True/False/None. The boolean reports whether any decoder succeeded.
func Decode(s string) (any, bool) {
	for _, d := range decoders {
		if v, err := d.decode(s); err == nil {
			return v, true
		}
	}
	return nil, false
}

// Numbers decode as json.Number so the dump reproduces them exactly.
func decodeStrict(s string) (any, error) {
	data := []byte(s)
	if !json.Valid(data) {
		return nil, errInvalid
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

func decodeLiteral(s string) (any, error) {
	data := []byte(normalizeLiterals(s))

	// Unmarshal rejects trailing input, the stream decoder does not.
	var whole any
	if err := json5.Unmarshal(data, &whole); err != nil {
		return nil, err
	}

	dec := json5.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return fromJSON5(v), nil
}

// fromJSON5 replaces json5.Number values with their encoding/json
// equivalent.
func fromJSON5(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, e := range t {
			t[k] = fromJSON5(e)
		}
		return t
	case []any:
		for i, e := range t {
			t[i] = fromJSON5(e)
		}
		return t
	case json5.Number:
		return json.Number(t)
	default:
		return v
	}
}

var errInvalid = errors.New("invalid json")

var pythonLiterals = map[string]string{
	"True":  "true",
	"False": "false",
	"None":  "null",
}

// normalizeLiterals rewrites bare True/False/None identifiers to their JSON
// spelling. Quoted strings are copied through untouched.
func normalizeLiterals(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]

		if quote != 0 {
			b.WriteByte(c)
			switch c {
			case '\\':
				if i+1 < len(s) {
					i++
					b.WriteByte(s[i])
				}
			case quote:
				quote = 0
			}
			continue
		}

		switch {
		case c == '"' || c == '\'':
			quote = c
			b.WriteByte(c)
		case isIdentStart(c):
			j := i + 1
			for j < len(s) && isIdentPart(s[j]) {
				j++
			}
			word := s[i:j]
			if lit, ok := pythonLiterals[word]; ok {
				b.WriteString(lit)
			} else {
				b.WriteString(word)
			}
			i = j - 1
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
