// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package ai

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

// policy is safe for concurrent use once built.
var policy = bluemonday.UGCPolicy()

// Normalize turns raw provider output into an HTML fragment. Markdown code
// fences are removed, unsafe markup (scripts, event handlers) is stripped,
// and text that does not start with an opening tag is wrapped in a single
// paragraph. Text comes back HTML-escaped by the sanitizer, so "It's"
// is stored as "It&#39;s" and "&" as "&amp;"; browsers render both as
// the original characters.
func Normalize(raw string) string {
	text := policy.Sanitize(stripFences(raw))
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	if startsWithTag(text) {
		return text
	}
	return "<p>" + text + "</p>"
}

// stripFences removes a surrounding markdown code fence such as
// ```html ... ``` that models often add around HTML output.
func stripFences(response string) string {
	response = strings.TrimSpace(response)

	if strings.HasPrefix(response, "```") {
		// Find the end of the opening fence line.
		if firstNewline := strings.Index(response, "\n"); firstNewline != -1 {
			response = response[firstNewline+1:]
		} else {
			response = strings.TrimPrefix(response, "```")
		}
		if idx := strings.LastIndex(response, "```"); idx != -1 {
			response = response[:idx]
		}
	}

	return strings.TrimSpace(response)
}

// startsWithTag reports whether the first HTML token is an opening or
// self-closing tag.
func startsWithTag(s string) bool {
	z := html.NewTokenizer(strings.NewReader(s))
	switch z.Next() {
	case html.StartTagToken, html.SelfClosingTagToken:
		return true
	default:
		return false
	}
}
