package aggregate

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// plainText reduces rendered HTML to whitespace-normalized text for feed
// descriptions. Code blocks are replaced with a placeholder since they
// rarely survive feed readers intact.
func plainText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	doc.Find("pre").Each(func(_ int, s *goquery.Selection) {
		s.ReplaceWithHtml("<p>[Code snippet]</p>")
	})
	return strings.Join(strings.Fields(doc.Text()), " ")
}

// summarize truncates text at a word boundary near limit, appending an
// ellipsis when anything was cut. The cut never splits a UTF-8 sequence.
func summarize(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	cut := text[:runeBoundary(text, limit)]
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " ,;:.") + "..."
}

/// runeBoundary backs n up to the nearest rune start so s[:n] stays valid
// UTF-8.
func runeBoundary(s string, n int) int {
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return n
}
