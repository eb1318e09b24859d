package extract

import (
	"regexp"
	"strings"
)

var (
	hyphenBreak  = regexp.MustCompile(`(\w)-\n(\w)`)
	multiNewline = regexp.MustCompile(`\n{2,}`)
	multiSpace   = regexp.MustCompile(`[ \t]{2,}`)
)

// CleanText normalizes extracted page text. Words hyphenated across line
// breaks are rejoined, runs of blank lines collapse to one break, and
// horizontal whitespace runs collapse to a single space.
func CleanText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = hyphenBreak.ReplaceAllString(text, "$1$2")
	text = multiNewline.ReplaceAllString(text, "\n")
	text = multiSpace.ReplaceAllString(text, " ")

	lines := strings.Split(text, "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
