// Package sanitize strips markup from user-supplied event text.
package sanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// maxPasses bounds the strip/decode loop in Text.
const maxPasses = 4

// strictPolicy removes all HTML.
var strictPolicy = bluemonday.StrictPolicy()

// Text strips all tags and surrounding whitespace and returns plain text.
// The policy escapes what it keeps, so each pass decodes entities again;
// passes repeat until the text is stable, so markup smuggled in as
// entities is stripped on the next pass instead of being revived.
func Text(input string) string {
	s := input
	for range maxPasses {
		next := html.UnescapeString(strictPolicy.Sanitize(s))
		if next == s {
			break
		}
		s = next
	}
	return strings.TrimSpace(s)
}
