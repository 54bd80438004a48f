// Package content defines the in-memory document model and the indexer that
// discovers documents under a content root.
package content

import (
	"time"
)

// Metadata holds the typed frontmatter fields of a document. Unrecognized
// keys are preserved in Extra so custom fields survive into item records
// and participate in the content hash.
type Metadata struct {
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Tags        []string       `json:"tags,omitempty"`
	Created     time.Time      `json:"created"`
	Updated     time.Time      `json:"updated"`
	Draft       bool           `json:"draft,omitempty"`
	Extra       map[string]any `json:"extra,omitempty"`
}

// ImageRef is a source image associated with a document.
type ImageRef struct {
	// Path is the absolute path to the source image on disk.
	Path string `json:"path"`
	// Name is the image file name relative to the document directory.
	Name string `json:"name"`
	// Cover marks the conventional index.* cover image.
	Cover bool `json:"cover,omitempty"`
}

// Item is one discovered document. Identity is (Topic, Slug). Items are
// immutable for the duration of a build pass.
type Item struct {
	Topic      string   `json:"topic"`
	Slug       string   `json:"slug"`
	Meta       Metadata `json:"meta"`
	Body       string   `json:"-"`
	Hash       string   `json:"hash"`
	Images     []ImageRef
	SourcePath string `json:"source_path"`
}

// Key returns the unique identity of the item within a build.
func (it *Item) Key() string {
	return it.Topic + "/" + it.Slug
}

// PublishDate returns the freshness date for sitemaps and exports:
// Updated when set, else Created.
func (it *Item) PublishDate() time.Time {
	if !it.Meta.Updated.IsZero() {
		return it.Meta.Updated
	}
	return it.Meta.Created
}
