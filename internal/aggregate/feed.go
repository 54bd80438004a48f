package aggregate

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"time"
)

// feedItemLimit caps the syndication feed at the most recent entries.
const feedItemLimit = 20

// WriteFeed writes output/feed.xml containing the newest published items.
// The lastBuildDate is taken from the newest item rather than the wall
// clock so an unchanged content set produces a byte-identical feed.
func (g *Generator) WriteFeed(records []Record) (string, error) {
	items := published(records)
	if len(items) > feedItemLimit {
		items = items[:feedItemLimit]
	}

	var buf bytes.Buffer
	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	buf.WriteString("\n")
	buf.WriteString(`<rss version="2.0" xmlns:atom="http://www.w3.org/2005/Atom">`)
	buf.WriteString("\n  <channel>\n")

	writeElement(&buf, "title", g.cfg.Site.Title, 4)
	writeElement(&buf, "link", g.cfg.Site.BaseURL, 4)
	writeElement(&buf, "description", g.cfg.Site.Description, 4)
	buf.WriteString(fmt.Sprintf("    <atom:link href=\"%s/feed.xml\" rel=\"self\" type=\"application/rss+xml\" />\n",
		html.EscapeString(trimSlash(g.cfg.Site.BaseURL))))
	writeElement(&buf, "language", "en", 4)

	if len(items) > 0 {
		writeElement(&buf, "lastBuildDate", items[0].Item.Meta.Created.Format(time.RFC1123Z), 4)
	}

	for _, rec := range items {
		g.writeFeedItem(&buf, rec)
	}

	buf.WriteString("  </channel>\n</rss>\n")

	path := filepath.Join(g.cfg.Output.Dir, "feed.xml")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

func (g *Generator) writeFeedItem(buf *bytes.Buffer, rec Record) {
	url := g.cfg.ItemURL(rec.Item.Topic, rec.Item.Slug)

	buf.WriteString("    <item>\n")
	writeElement(buf, "title", rec.Doc.Title, 6)
	writeElement(buf, "link", url, 6)
	buf.WriteString("      <guid isPermaLink=\"true\">")
	xml.EscapeText(buf, []byte(url)) // nolint:errcheck
	buf.WriteString("</guid>\n")

	description := rec.Item.Meta.Description
	if description == "" {
		description = summarize(plainText(rec.Doc.HTML), 300)
	}
	writeElement(buf, "description", description, 6)

	if d := rec.Item.Meta.Created; !d.IsZero() {
		writeElement(buf, "pubDate", d.Format(time.RFC1123Z), 6)
	}
	if g.cfg.Site.Author != "" {
		writeElement(buf, "author", g.cfg.Site.Author, 6)
	}
	for _, tag := range rec.Item.Meta.Tags {
		writeElement(buf, "category", tag, 6)
	}
	buf.WriteString("    </item>\n")
}

func writeElement(buf *bytes.Buffer, tag, content string, indent int) {
	if content == "" {
		return
	}
	for i := 0; i < indent; i++ {
		buf.WriteByte(' ')
	}
	buf.WriteString("<")
	buf.WriteString(tag)
	buf.WriteString(">")
	xml.EscapeText(buf, []byte(content)) // nolint:errcheck
	buf.WriteString("</")
	buf.WriteString(tag)
	buf.WriteString(">\n")
}

func trimSlash(s string) string {
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}
