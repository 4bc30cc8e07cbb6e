// Copyright Flowbot Authors
// SPDX-License-Identifier: Apache-2.0

package extract

import "strings"

// Shape identifies the envelope convention a value was recognized as.
type Shape int

const (
	ShapeUnknown        Shape = iota
	ShapeText                 // bare string
	ShapeOutputItems          // sequence holding a "message" output item
	ShapeSequence             // any other sequence, read through its first element
	ShapeOutputEnvelope       // mapping whose "output" holds a "message" item
	ShapeDirectText           // mapping with a string "text" field
	ShapeContentList          // mapping with "content" parts or a "content" string
	ShapeMessage              // mapping wrapping a "message" mapping
	ShapeChoices              // chat completion "choices"
)

var shapeNames = [...]string{
	ShapeUnknown:        "unknown",
	ShapeText:           "text",
	ShapeOutputItems:    "output_items",
	ShapeSequence:       "sequence",
	ShapeOutputEnvelope: "output_envelope",
	ShapeDirectText:     "direct_text",
	ShapeContentList:    "content_list",
	ShapeMessage:        "message",
	ShapeChoices:        "choices",
}

func (s Shape) String() string {
	if s < 0 || int(s) >= len(shapeNames) {
		return "unknown"
	}
	return shapeNames[s]
}

// maxDepth bounds how many wrapper levels are unwrapped before giving up.
const maxDepth = 64

// step is the outcome of resolving a single level of the value tree. Either
// text holds the answer, or descend is set and next is the value to read
// at the following level.
type step struct {
	shape   Shape
	text    string
	next    any
	descend bool
}

// resolve classifies v against the known conventions in precedence order.
func resolve(v any) step {
	switch val := v.(type) {
	case string:
		return step{shape: ShapeText, text: strings.TrimSpace(val)}
	case []any:
		if text, ok := messageText(val); ok {
			return step{shape: ShapeOutputItems, text: text}
		}
		if len(val) > 0 {
			return step{shape: ShapeSequence, next: val[0], descend: true}
		}
	case map[string]any:
		return resolveMapping(val)
	}
	return step{shape: ShapeUnknown}
}

func resolveMapping(m map[string]any) step {
	if output, ok := m["output"].([]any); ok {
		if text, ok := messageText(output); ok {
			return step{shape: ShapeOutputEnvelope, text: text}
		}
	}

	if text, ok := m["text"].(string); ok {
		return step{shape: ShapeDirectText, text: strings.TrimSpace(text)}
	}

	switch content := m["content"].(type) {
	case []any:
		if text := joinParts(contentParts(content)); text != "" {
			return step{shape: ShapeContentList, text: text}
		}
	case string:
		return step{shape: ShapeContentList, text: strings.TrimSpace(content)}
	}

	if msg, ok := m["message"].(map[string]any); ok {
		return step{shape: ShapeMessage, next: msg, descend: true}
	}

	if choices, ok := m["choices"].([]any); ok && len(choices) > 0 {
		return step{shape: ShapeChoices, next: choices[0], descend: true}
	}

	return step{shape: ShapeUnknown}
}

// walk applies resolve level by level until a terminal step or maxDepth.
// It returns the text, the outermost shape seen and whether any convention
// produced text.
func walk(v any) (string, Shape, bool) {
	envelope := ShapeUnknown
	for depth := 0; depth < maxDepth; depth++ {
		s := resolve(v)
		if depth == 0 {
			envelope = s.shape
		}
		if !s.descend {
			return s.text, envelope, s.shape != ShapeUnknown
		}
		v = s.next
	}
	return "", envelope, false
}

// messageText finds the first "message" item whose output_text parts join
// to non-empty text.
func messageText(items []any) (string, bool) {
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok || m["type"] != "message" {
			continue
		}
		content, ok := m["content"].([]any)
		if !ok {
			continue
		}

		var parts []string
		for _, c := range content {
			part, ok := c.(map[string]any)
			if !ok || part["type"] != "output_text" {
				continue
			}
			if text, ok := part["text"].(string); ok {
				parts = append(parts, text)
			}
		}
		if text := joinParts(parts); text != "" {
			return text, true
		}
	}
	return "", false
}

// contentParts collects text from a content list. Entries of any type that
// carry a string "text" are taken, as are bare strings.
func contentParts(content []any) []string {
	var parts []string
	for _, item := range content {
		switch c := item.(type) {
		case map[string]any:
			if text, ok := c["text"].(string); ok {
				parts = append(parts, text)
			}
		case string:
			parts = append(parts, c)
		}
	}
	return parts
}

func joinParts(parts []string) string {
	return strings.TrimSpace(strings.Join(parts, "\n"))
}
