// Copyright Flowbot Authors
// SPDX-License-Identifier: Apache-2.0

// Package markup reduces HTML fragments to plain text. Indexed page chunks
// may still carry tags, and Teams prefixes channel messages with <at>
// mentions of the bot.
package markup

import (
	"bytes"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// blockElements start on a new line in the extracted text.
var blockElements = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true,
	"dd": true, "div": true, "dl": true, "dt": true, "figcaption": true,
	"footer": true, "h1": true, "h2": true, "h3": true, "h4": true,
	"h5": true, "h6": true, "header": true, "hr": true, "li": true,
	"main": true, "nav": true, "ol": true, "p": true, "pre": true,
	"section": true, "table": true, "tr": true, "ul": true,
}

// ToText returns the visible text of s. Line breaks survive: br and block
// elements end a line, and runs of spaces within a line are collapsed.
// Script, style and noscript elements are dropped. Input without tags only
// has its whitespace normalized.
func ToText(s string) string {
	if !looksLikeMarkup(s) {
		return normalizeLines(s)
	}

	doc, err := html.Parse(strings.NewReader(s))
	if err != nil {
		return normalizeLines(s)
	}

	var sb strings.Builder
	collectText(doc, &sb)
	return normalizeLines(sb.String())
}

// StripMentions removes <at>…</at> mention elements and leaves every other
// byte of s as written, so questions about tags or comparisons reach the
// flow unchanged. The result is trimmed.
func StripMentions(s string) string {
	if !strings.Contains(strings.ToLower(s), "<at") {
		return strings.TrimSpace(s)
	}

	var out bytes.Buffer
	depth := 0
	z := html.NewTokenizer(strings.NewReader(s))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if z.Err() != io.EOF {
				return strings.TrimSpace(s)
			}
			break
		}

		name, _ := z.TagName()
		isAt := string(name) == "at"
		switch {
		case tt == html.StartTagToken && isAt:
			depth++
			continue
		case tt == html.EndTagToken && isAt && depth > 0:
			depth--
			continue
		case tt == html.SelfClosingTagToken && isAt:
			continue
		}
		if depth == 0 {
			out.Write(z.Raw())
		}
	}
	return strings.TrimSpace(out.String())
}

func looksLikeMarkup(s string) bool {
	i := strings.IndexByte(s, '<')
	return i >= 0 && strings.IndexByte(s[i:], '>') > 0
}

func collectText(n *html.Node, sb *strings.Builder) {
	block := false
	if n.Type == html.ElementNode {
		switch n.Data {
		case "script", "style", "noscript":
			return
		case "br":
			sb.WriteString("\n")
			return
		}
		block = blockElements[n.Data]
	}

	if block {
		endLine(sb)
	}
	if n.Type == html.TextNode {
		sb.WriteString(n.Data)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, sb)
	}
	if block {
		endLine(sb)
	}
}

func endLine(sb *strings.Builder) {
	if sb.Len() > 0 && !strings.HasSuffix(sb.String(), "\n") {
		sb.WriteString("\n")
	}
}

// normalizeLines collapses spaces within each line, keeps at most one blank
// line between paragraphs and trims the result.
func normalizeLines(s string) string {
	var lines []string
	blank := false
	for _, line := range strings.Split(s, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			blank = len(lines) > 0
			continue
		}
		if blank {
			lines = append(lines, "")
			blank = false
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
