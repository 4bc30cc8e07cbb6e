// Copyright Flowbot Authors
// SPDX-License-Identifier: Apache-2.0

// Package extract pulls the answer text out of upstream LLM response
// payloads.
//
// Upstreams disagree on envelope layout: chat completions nest the answer
// under choices[0].message.content, the Responses API under
// output[].content[] items of type output_text, and prompt flows return
// bespoke simplified objects or Python reprs of either. Extraction never
// fails. A payload that decodes but carries no recognizable text comes back
// as indented JSON, and one that does not decode comes back verbatim
// (trimmed).
package extract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/leseb/flowbot/pkg/observability/logging"
)

// Result describes how a payload was resolved.
type Result struct {
	// Text is the extracted answer, the indented dump, or the trimmed
	// original, in that order of preference.
	Text string
	// Envelope is the outermost convention the payload matched.
	Envelope Shape
	// Decoded reports whether a structured value was obtained.
	Decoded bool
	// Dumped reports that no text was found and Text is the indented dump.
	Dumped bool
}

// Text returns the answer carried by raw. See Resolve for accepted inputs.
func Text(raw any) string {
	return Resolve(raw).Text
}

// Resolve extracts text from raw, which may be a string, raw JSON bytes, an
// already decoded value (map[string]any / []any), or any JSON-marshalable
// Go value such as a typed response struct.
func Resolve(raw any) Result {
	switch r := raw.(type) {
	case nil:
		return Result{}
	case string:
		return resolveString(r)
	case []byte:
		return resolveString(string(r))
	case json.RawMessage:
		return resolveString(string(r))
	case map[string]any, []any:
		return resolveValue(r)
	}

	v, ok := toValue(raw)
	if !ok {
		return Result{Text: strings.TrimSpace(fmt.Sprint(raw))}
	}
	return resolveValue(v)
}

func resolveString(s string) Result {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "{") && !strings.HasPrefix(trimmed, "[") {
		return Result{Text: trimmed, Envelope: ShapeText}
	}

	v, ok := Decode(s)
	if !ok {
		return Result{Text: trimmed}
	}
	return resolveValue(v)
}

func resolveValue(v any) Result {
	text, envelope, found := walk(v)
	if found && text != "" {
		return Result{Text: text, Envelope: envelope, Decoded: true}
	}
	return Result{Text: dump(v), Envelope: envelope, Decoded: true, Dumped: true}
}

// toValue normalizes an arbitrary Go value into the generic JSON tree.
func toValue(raw any) (any, bool) {
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, false
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, false
	}
	return v, true
}

func dump(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return strings.TrimSpace(fmt.Sprint(v))
	}
	return strings.TrimRight(buf.String(), "\n")
}

// Extractor is Text with logging of the degraded paths.
type Extractor struct {
	logger *logging.Logger
}

// New creates an Extractor. A nil logger disables logging.
func New(logger *logging.Logger) *Extractor {
	return &Extractor{logger: logger}
}

// Extract returns the answer carried by raw, logging when no text could be
// located and the indented dump is returned instead.
func (e *Extractor) Extract(raw any) string {
	return e.Resolve(raw).Text
}

// Resolve is the package-level Resolve with the degraded paths logged.
func (e *Extractor) Resolve(raw any) Result {
	res := Resolve(raw)
	if e.logger != nil {
		switch {
		case res.Dumped:
			e.logger.Warn("No answer text in response payload, returning formatted dump",
				"envelope", res.Envelope.String(),
				"bytes", len(res.Text))
		case !res.Decoded && res.Envelope == ShapeUnknown && res.Text != "":
			e.logger.Debug("Response payload looked structured but did not decode, returning it verbatim",
				"bytes", len(res.Text))
		}
	}
	return res
}
