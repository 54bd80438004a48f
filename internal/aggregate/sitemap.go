package aggregate

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

type urlSet struct {
	XMLName xml.Name   `xml:"urlset"`
	Xmlns   string     `xml:"xmlns,attr"`
	URLs    []urlEntry `xml:"url"`
}

type urlEntry struct {
	Loc        string `xml:"loc"`
	LastMod    string `xml:"lastmod,omitempty"`
	ChangeFreq string `xml:"changefreq,omitempty"`
	Priority   string `xml:"priority,omitempty"`
}

// WriteSitemap writes output/sitemap.xml covering the home page, every
// topic with at least one published item, and every published item. All
// lastmod values derive from item dates so output is reproducible.
func (g *Generator) WriteSitemap(records []Record) (string, error) {
	items := published(records)

	base := trimSlash(g.cfg.Site.BaseURL)

	// Newest date per topic, and overall, drive lastmod for the
	// listing pages.
	topicLatest := make(map[string]time.Time)
	var latest time.Time
	for _, rec := range items {
		d := rec.Item.PublishDate()
		if d.After(topicLatest[rec.Item.Topic]) {
			topicLatest[rec.Item.Topic] = d
		}
		if d.After(latest) {
			latest = d
		}
	}

	set := urlSet{Xmlns: "http://www.sitemaps.org/schemas/sitemap/0.9"}

	home := urlEntry{Loc: base + "/", ChangeFreq: "daily", Priority: "1.0"}
	if !latest.IsZero() {
		home.LastMod = latest.Format("2006-01-02")
	}
	set.URLs = append(set.URLs, home)

	topics := make([]string, 0, len(topicLatest))
	for topic := range topicLatest {
		topics = append(topics, topic)
	}
	sort.Strings(topics)
	for _, topic := range topics {
		set.URLs = append(set.URLs, urlEntry{
			Loc:        fmt.Sprintf("%s/%s", base, topic),
			LastMod:    topicLatest[topic].Format("2006-01-02"),
			ChangeFreq: "weekly",
			Priority:   "0.8",
		})
	}

	for _, rec := range items {
		entry := urlEntry{
			Loc:        g.cfg.ItemURL(rec.Item.Topic, rec.Item.Slug),
			ChangeFreq: "monthly",
			Priority:   "0.7",
		}
		if d := rec.Item.PublishDate(); !d.IsZero() {
			entry.LastMod = d.Format("2006-01-02")
		}
		set.URLs = append(set.URLs, entry)
	}

	data, err := xml.MarshalIndent(set, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal sitemap: %w", err)
	}
	out := append([]byte(xml.Header), data...)
	out = append(out, '\n')

	path := filepath.Join(g.cfg.Output.Dir, "sitemap.xml")
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}
