// Package header rewrites heading lines in a document body.
package header

import (
	"regexp"
	"strings"

	"github.com/aretw0/fieldwatch/pkg/core"
)

// Rewrite replaces the first body line starting with header by
// header + " " + value. Whatever followed the header on that line is
// discarded. The header is matched as literal text.
//
// The front-matter block, if any, is never searched. When no line matches,
// or header is empty, content is returned unchanged with false.
func Rewrite(content, header string, value any) (string, bool) {
	if header == "" {
		return content, false
	}

	offset := BodyOffset(content)
	body := content[offset:]

	loc := pattern(header).FindStringIndex(body)
	if loc == nil {
		return content, false
	}

	replacement := header + " " + singleLine(core.FormatValue(value))

	var b strings.Builder
	b.Grow(len(content) + len(replacement))
	b.WriteString(content[:offset])
	b.WriteString(body[:loc[0]])
	b.WriteString(replacement)
	b.WriteString(body[loc[1]:])
	return b.String(), true
}

var lineBreaks = regexp.MustCompile(`\s*[\r\n]\s*`)

// singleLine joins the lines of a multi-line value with single spaces.
func singleLine(s string) string {
	return lineBreaks.ReplaceAllString(strings.TrimRight(s, " \t\r\n"), " ")
}

// pattern matches a whole line starting with the literal header, excluding
// its line terminator so "\n" and "\r\n" survive the rewrite.
func pattern(header string) *regexp.Regexp {
	return regexp.MustCompile(`(?m)^` + regexp.QuoteMeta(header) + `[^\r\n]*`)
}

// BodyOffset returns the byte offset where the document body starts,
// skipping a leading "---" delimited front-matter block. It returns 0 when
// there is no complete block.
func BodyOffset(content string) int {
	first, rest, ok := cutLine(content)
	if !ok || first != "---" {
		return 0
	}

	pos := len(content) - len(rest)
	for rest != "" {
		line, next, _ := cutLine(rest)
		pos += len(rest) - len(next)
		if line == "---" {
			return pos
		}
		rest = next
	}
	return 0
}

// cutLine splits s after its first line. The returned line has its "\n" or
// "\r\n" terminator removed; found is false when s has no terminator.
func cutLine(s string) (line, rest string, found bool) {
	line, rest, found = strings.Cut(s, "\n")
	return strings.TrimSuffix(line, "\r"), rest, found
}
