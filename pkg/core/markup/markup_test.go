// Copyright Flowbot Authors
// SPDX-License-Identifier: Apache-2.0

package markup

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "  store hours in Austin?  ", "store hours in Austin?"},
		{"comparison is not markup", "a < b", "a < b"},
		{"teams paragraph", "<p>What are the <b>hours</b> for store 12?</p>", "What are the hours for store 12?"},
		{"mention and entities", `<at>Bot</at>&nbsp;hi &amp; bye`, "Bot hi & bye"},
		{"scripts dropped", "<div>keep<script>drop()</script><style>p{}</style></div>", "keep"},
		{"spaces collapsed within a line", "<p>line   one\n\n   line two</p>", "line one\n\nline two"},
		{"br breaks the line", "line one\nline two <br> three", "line one\nline two\nthree"},
		{"blocks start new lines", "<h1>Returns</h1>Bring the <b>receipt</b>.<ul><li>30 days</li><li>Unopened</li></ul>", "Returns\nBring the receipt.\n30 days\nUnopened"},
		{"paragraph gap kept once", "<p>first</p>\n\n\n\n<p>second</p>", "first\n\nsecond"},
		{"plain text keeps its lines", "Policy 4.2\n  Refunds   within 30 days\n", "Policy 4.2\nRefunds within 30 days"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ToText(tt.in))
		})
	}
}

func TestStripMentions(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "  where is the milk?  ", "where is the milk?"},
		{"angle brackets untouched", "is a<b and c>d true?", "is a<b and c>d true?"},
		{"tag names untouched", "what does the <div> tag do?", "what does the <div> tag do?"},
		{"newlines untouched", "line one\nline two <br> three", "line one\nline two <br> three"},
		{"leading mention", "<at>Flowbot</at> where is the milk?", "where is the milk?"},
		{"mention with other markup", "<at>Flowbot</at> is a<b and c>d true?", "is a<b and c>d true?"},
		{"upper case mention", "<AT>Flowbot</AT> hours?", "hours?"},
		{"mention in the middle", "ask <at>Flowbot</at> about TX stores", "ask  about TX stores"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripMentions(tt.in))
		})
	}
}
