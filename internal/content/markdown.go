package content

import (
	"github.com/yuin/goldmark"
	gmast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/evansims/contentbuild/internal/frontmatter"
)

func splitAndParse(raw []byte) (map[string]any, []byte, bool, error) {
	meta, body, had, err := frontmatter.Split(raw)
	if err != nil {
		return nil, nil, false, err
	}
	fields, err := frontmatter.Parse(meta)
	if err != nil {
		return nil, nil, had, err
	}
	return fields, body, had, nil
}

// parseMarkdown parses a body (frontmatter already removed) into a Goldmark
// AST for analysis; rendering uses its own configured instance.
func parseMarkdown(body []byte) gmast.Node {
	return goldmark.New().Parser().Parse(text.NewReader(body))
}
