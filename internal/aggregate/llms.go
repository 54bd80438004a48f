package aggregate

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// summaryLength is how much of each item body llms.txt carries.
const summaryLength = 500

// WriteLLMS writes output/llms.txt, a condensed machine-readable export of
/// published items: metadata plus the first part of each body. Entries are
// ordered newest first.
func (g *Generator) WriteLLMS(records []Record) (string, error) {
	var buf bytes.Buffer
	for _, rec := range published(records) {
		body := strings.TrimSpace(rec.Item.Body)
		if len(body) > summaryLength {
			body = body[:runeBoundary(body, summaryLength)] + "..."
		}
		g.writeLLMSEntry(&buf, rec, body)
	}

	path := filepath.Join(g.cfg.Output.Dir, "llms.txt")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

// WriteLLMSFull writes output/llms-full.txt with complete item bodies.
func (g *Generator) WriteLLMSFull(records []Record) (string, error) {
	var buf bytes.Buffer
	for _, rec := range published(records) {
		g.writeLLMSEntry(&buf, rec, strings.TrimSpace(rec.Item.Body))
	}

	path := filepath.Join(g.cfg.Output.Dir, "llms-full.txt")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

func (g *Generator) writeLLMSEntry(buf *bytes.Buffer, rec Record, body string) {
	fmt.Fprintf(buf, "URL: /%s/%s\n", rec.Item.Topic, rec.Item.Slug)
	fmt.Fprintf(buf, "Title: %s\n", rec.Doc.Title)
	date := ""
	if d := rec.Item.PublishDate(); !d.IsZero() {
		date = d.Format("2006-01-02")
	}
	fmt.Fprintf(buf, "Date: %s\n\n", date)
	fmt.Fprintf(buf, "%s\n\n", rec.Item.Meta.Description)
	fmt.Fprintf(buf, "%s\n\n---\n", body)
}
