// Package aggregate produces per-item records and the cross-item artifacts:
// syndication feed, sitemap, and plain-text exports. Aggregates are always
// fully regenerated from the current item set — never served from cache.
package aggregate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/evansims/contentbuild/internal/cache"
	"github.com/evansims/contentbuild/internal/config"
	"github.com/evansims/contentbuild/internal/content"
	"github.com/evansims/contentbuild/internal/images"
	"github.com/evansims/contentbuild/internal/render"
)

// Record pairs a content item with its rendered document and derivatives.
type Record struct {
	Item     *content.Item
	Doc      *render.Document
	Variants []images.VariantResult
}

// Generator writes aggregate artifacts under the output directory.
type Generator struct {
	cfg *config.Config
}

// NewGenerator creates a Generator for the given configuration.
func NewGenerator(cfg *config.Config) *Generator {
	return &Generator{cfg: cfg}
}

// published filters out drafts and orders newest created first (ties
// broken by key for determinism). Ordering follows the creation date, not
// the updated date: editing an old item must not move it up the feed.
func published(records []Record) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if !r.Item.Meta.Draft {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		di, dj := out[i].Item.Meta.Created, out[j].Item.Meta.Created
		if !di.Equal(dj) {
			return di.After(dj)
		}
		return out[i].Item.Key() < out[j].Item.Key()
	})
	return out
}

// itemRecord is the JSON shape of one per-item record file. Field order is
// fixed by the struct so records are byte-stable across runs.
type itemRecord struct {
	Topic       string                 `json:"topic"`
	Slug        string                 `json:"slug"`
	URL         string                 `json:"url"`
	Title       string                 `json:"title"`
	Description string                 `json:"description,omitempty"`
	Tags        []string               `json:"tags,omitempty"`
	Created     string                 `json:"created,omitempty"`
	Updated     string                 `json:"updated,omitempty"`
	Draft       bool                   `json:"draft,omitempty"`
	Hash        string                 `json:"hash"`
	WordCount   int                    `json:"word_count"`
	ReadingTime int                    `json:"reading_time"`
	Outline     []render.Heading       `json:"outline,omitempty"`
	HTML        string                 `json:"html"`
	Images      []variantRecord        `json:"images,omitempty"`
	Extra       map[string]any         `json:"extra,omitempty"`
}

type variantRecord struct {
	File   string `json:"file"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Format string `json:"format"`
	Capped bool   `json:"capped,omitempty"`
}

// RecordOptions controls which per-item files are written.
type RecordOptions struct {
	SkipJSON bool
	SkipHTML bool
}

// WriteItemRecord writes output/content/<topic>/<slug>/index.{json,html} for
// one record and returns the written paths with their content hashes, which
// feed the cache entry for the document.
func (g *Generator) WriteItemRecord(rec Record, opts RecordOptions) (map[string]string, error) {
	dir := filepath.Join(g.cfg.Output.Dir, "content", rec.Item.Topic, rec.Item.Slug)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create record directory: %w", err)
	}

	outputs := make(map[string]string)

	if !opts.SkipJSON {
		data, err := json.MarshalIndent(g.toRecord(rec), "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshal record %s: %w", rec.Item.Key(), err)
		}
		data = append(data, '\n')
		path := filepath.Join(dir, "index.json")
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return nil, fmt.Errorf("write %s: %w", path, err)
		}
		outputs[path] = cache.HashBytes(data)
	}

	if !opts.SkipHTML {
		html, err := g.renderPage(rec)
		if err != nil {
			return nil, fmt.Errorf("render page %s: %w", rec.Item.Key(), err)
		}
		path := filepath.Join(dir, "index.html")
		if err := os.WriteFile(path, html, 0o644); err != nil {
			return nil, fmt.Errorf("write %s: %w", path, err)
		}
		outputs[path] = cache.HashBytes(html)
	}

	return outputs, nil
}

func (g *Generator) toRecord(rec Record) itemRecord {
	out := itemRecord{
		Topic:       rec.Item.Topic,
		Slug:        rec.Item.Slug,
		URL:         g.cfg.ItemURL(rec.Item.Topic, rec.Item.Slug),
		Title:       rec.Doc.Title,
		Description: rec.Doc.Description,
		Tags:        rec.Item.Meta.Tags,
		Draft:       rec.Item.Meta.Draft,
		Hash:        rec.Item.Hash,
		WordCount:   rec.Doc.WordCount,
		ReadingTime: rec.Doc.ReadingTime,
		Outline:     rec.Doc.Outline,
		HTML:        rec.Doc.HTML,
		Extra:       rec.Item.Meta.Extra,
	}
	if !rec.Item.Meta.Created.IsZero() {
		out.Created = rec.Item.Meta.Created.Format(time.RFC3339)
	}
	if !rec.Item.Meta.Updated.IsZero() {
		out.Updated = rec.Item.Meta.Updated.Format(time.RFC3339)
	}
	for _, v := range rec.Variants {
		out.Images = append(out.Images, variantRecord{
			File:   filepath.Base(v.Path),
			Width:  v.Width,
			Height: v.Height,
			Format: v.Spec.Format,
			Capped: v.Capped,
		})
	}
	return out
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
{{if .Description}}<meta name="description" content="{{.Description}}">
{{end}}</head>
<body>
<article>
<header>
<h1>{{.Title}}</h1>
<p class="meta">{{.ReadingTime}} min read · {{.WordCount}} words</p>
</header>
{{.Body}}
</article>
</body>
</html>
`))

func (g *Generator) renderPage(rec Record) ([]byte, error) {
	var buf bytes.Buffer
	err := pageTemplate.Execute(&buf, struct {
		Title       string
		Description string
		ReadingTime int
		WordCount   int
		Body        template.HTML
	}{
		Title:       rec.Doc.Title,
		Description: rec.Doc.Description,
		ReadingTime: rec.Doc.ReadingTime,
		WordCount:   rec.Doc.WordCount,
		Body:        template.HTML(rec.Doc.HTML), // #nosec G203 - our own rendered markdown
	})
	return buf.Bytes(), err
}
