// Package render turns a content item into a structured rendered document.
package render

import (
	"bytes"
	"fmt"
	"math"
	"strings"

	"github.com/yuin/goldmark"
	gmast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"

	"github.com/evansims/contentbuild/internal/content"
	"github.com/evansims/contentbuild/internal/errors"
)

// Heading is one entry in a document's outline.
type Heading struct {
	Level  int    `json:"level"`
	Text   string `json:"text"`
	Anchor string `json:"anchor"`
}

// Document is the rendered form of one content item. Rendering is
// deterministic: identical content hashes produce byte-identical documents,
// which the cache contract depends on.
type Document struct {
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	HTML        string    `json:"html"`
	Outline     []Heading `json:"outline,omitempty"`
	WordCount   int       `json:"word_count"`
	ReadingTime int       `json:"reading_time"` // minutes, at ~200 wpm
}

// LinkResolver reports whether an internal /topic/slug target exists in the
// current build set.
type LinkResolver func(topic, slug string) bool

// Renderer renders Markdown bodies. Safe for concurrent use.
type Renderer struct {
	md goldmark.Markdown
}

// New creates a Renderer with GFM extensions and deterministic heading
// anchors enabled.
func New() *Renderer {
	return &Renderer{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithParserOptions(
				parser.WithASTTransformers(util.Prioritized(&anchorTransformer{}, 100)),
			),
			goldmark.WithRendererOptions(html.WithUnsafe()),
		),
	}
}

// Render converts an item's body to a Document. Unparsable markup or
// unresolved internal link targets yield a render error; the caller decides
// whether that is a warning or item-fatal (strict mode).
func (r *Renderer) Render(item *content.Item, resolve LinkResolver) (*Document, error) {
	source := []byte(item.Body)

	var buf bytes.Buffer
	if err := r.md.Convert(source, &buf); err != nil {
		return nil, errors.Wrap(err, errors.CategoryRender, errors.SeverityError, "markdown conversion failed").
			WithContext("path", item.SourcePath)
	}

	root := r.md.Parser().Parse(text.NewReader(source))

	if resolve != nil {
		if broken := unresolvedInternalLinks(root, source, resolve); len(broken) > 0 {
			return nil, errors.New(errors.CategoryRender, errors.SeverityError,
				fmt.Sprintf("unresolved internal links: %s", strings.Join(broken, ", "))).
				WithContext("path", item.SourcePath)
		}
	}

	words := len(strings.Fields(item.Body))
	return &Document{
		Title:       item.Meta.Title,
		Description: item.Meta.Description,
		HTML:        buf.String(),
		Outline:     extractOutline(root, source),
		WordCount:   words,
		ReadingTime: int(math.Ceil(float64(words) / 200.0)),
	}, nil
}

// unresolvedInternalLinks collects /topic/slug destinations that do not
// resolve in the current build set. External URLs and fragments are ignored.
func unresolvedInternalLinks(root gmast.Node, source []byte, resolve LinkResolver) []string {
	var broken []string
	_ = gmast.Walk(root, func(n gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}
		link, ok := n.(*gmast.Link)
		if !ok {
			return gmast.WalkContinue, nil
		}
		dest := string(link.Destination)
		topic, slug, ok := splitInternal(dest)
		if !ok {
			return gmast.WalkContinue, nil
		}
		if !resolve(topic, slug) {
			broken = append(broken, dest)
		}
		return gmast.WalkContinue, nil
	})
	return broken
}

// splitInternal matches root-relative /topic/slug destinations.
func splitInternal(dest string) (topic, slug string, ok bool) {
	if !strings.HasPrefix(dest, "/") || strings.HasPrefix(dest, "//") {
		return "", "", false
	}
	dest = strings.TrimPrefix(dest, "/")
	if i := strings.IndexAny(dest, "#?"); i >= 0 {
		dest = dest[:i]
	}
	dest = strings.TrimSuffix(dest, "/")
	parts := strings.Split(dest, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

func extractOutline(root gmast.Node, source []byte) []Heading {
	var outline []Heading
	_ = gmast.Walk(root, func(n gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}
		h, ok := n.(*gmast.Heading)
		if !ok {
			return gmast.WalkContinue, nil
		}
		txt := nodeText(h, source)
		anchor := ""
		if id, found := h.AttributeString("id"); found {
			if b, isBytes := id.([]byte); isBytes {
				anchor = string(b)
			}
		}
		outline = append(outline, Heading{Level: h.Level, Text: txt, Anchor: anchor})
		return gmast.WalkSkipChildren, nil
	})
	return outline
}

// nodeText concatenates the literal text of a node's descendants.
func nodeText(n gmast.Node, source []byte) string {
	var sb strings.Builder
	_ = gmast.Walk(n, func(child gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}
		switch t := child.(type) {
		case *gmast.Text:
			sb.Write(t.Segment.Value(source))
		case *gmast.CodeSpan:
			for c := t.FirstChild(); c != nil; c = c.NextSibling() {
				if seg, ok := c.(*gmast.Text); ok {
					sb.Write(seg.Segment.Value(source))
				}
			}
			return gmast.WalkSkipChildren, nil
		}
		return gmast.WalkContinue, nil
	})
	return sb.String()
}
