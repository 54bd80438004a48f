package render

import (
	"fmt"
	"strings"
	"unicode"

	gmast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// anchorTransformer assigns deterministic id attributes to headings so the
// rendered HTML and the outline agree on anchors across runs.
type anchorTransformer struct{}

func (t *anchorTransformer) Transform(doc *gmast.Document, reader text.Reader, _ parser.Context) {
	source := reader.Source()
	seen := make(map[string]int)

	_ = gmast.Walk(doc, func(n gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}
		h, ok := n.(*gmast.Heading)
		if !ok {
			return gmast.WalkContinue, nil
		}
		anchor := Anchorize(nodeText(h, source))
		if anchor == "" {
			anchor = "section"
		}
		if count := seen[anchor]; count > 0 {
			seen[anchor] = count + 1
			anchor = fmt.Sprintf("%s-%d", anchor, count)
		} else {
			seen[anchor] = 1
		}
		h.SetAttributeString("id", []byte(anchor))
		return gmast.WalkSkipChildren, nil
	})
}

var stripMarks = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Anchorize converts heading text into a URL-safe anchor: diacritics folded
// away, lowercased, runs of non-alphanumerics collapsed to single hyphens.
func Anchorize(s string) string {
	folded, _, err := transform.String(stripMarks, s)
	if err != nil {
		folded = s
	}

	var sb strings.Builder
	lastHyphen := true // suppress a leading hyphen
	for _, r := range strings.ToLower(folded) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			sb.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				sb.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimSuffix(sb.String(), "-")
}
