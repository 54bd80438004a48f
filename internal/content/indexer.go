package content

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	gmast "github.com/yuin/goldmark/ast"

	"github.com/evansims/contentbuild/internal/errors"
)

// Document file names probed inside each slug directory, in order.
var documentNames = []string{"index.md", "index.mdx"}

// Cover image names probed inside each slug directory, in order.
var coverNames = []string{"index.jpg", "index.jpeg", "index.png", "index.webp"}

// ScanOptions narrows an index pass.
type ScanOptions struct {
	// TopicFilter restricts the scan to one topic directory when non-empty.
	TopicFilter string
	// IncludeDrafts keeps items flagged draft in the result set.
	IncludeDrafts bool
}

// ScanResult is the outcome of one index pass over the content root.
type ScanResult struct {
	// Items is ordered by (topic, slug) for deterministic planning.
	Items []*Item
	// Warnings holds per-item parse problems; affected items are excluded.
	Warnings []*errors.BuildError
	// DraftsSkipped counts items excluded by the draft flag.
	DraftsSkipped int
}

// Indexer discovers content items under a root directory.
type Indexer struct {
	root   string
	logger *slog.Logger
}

// NewIndexer creates an indexer over the given content root.
func NewIndexer(root string) *Indexer {
	return &Indexer{root: root, logger: slog.Default()}
}

// Scan walks the content tree and parses every document it finds. Malformed
// items become warnings and are excluded; only an unreadable root is fatal.
func (ix *Indexer) Scan(opts ScanOptions) (*ScanResult, error) {
	topicDirs, err := ix.topicDirs(opts.TopicFilter)
	if err != nil {
		return nil, err
	}

	res := &ScanResult{}
	seen := make(map[string]string) // (topic, slug) key -> source path

	for _, topic := range topicDirs {
		topicPath := filepath.Join(ix.root, topic)
		entries, err := os.ReadDir(topicPath)
		if err != nil {
			res.Warnings = append(res.Warnings, errors.Wrap(err, errors.CategoryParse, errors.SeverityWarning,
				"unreadable topic directory").WithContext("path", topicPath))
			continue
		}

		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			dir := filepath.Join(topicPath, entry.Name())
			item, warn := ix.loadItem(topic, entry.Name(), dir)
			if warn != nil {
				res.Warnings = append(res.Warnings, warn)
				continue
			}
			if item == nil {
				continue // no document file, not an error
			}
			if prev, dup := seen[item.Key()]; dup {
				res.Warnings = append(res.Warnings, errors.New(errors.CategoryParse, errors.SeverityWarning,
					fmt.Sprintf("duplicate slug %q (already defined by %s)", item.Key(), prev)).
					WithContext("path", item.SourcePath))
				continue
			}
			seen[item.Key()] = item.SourcePath

			if item.Meta.Draft && !opts.IncludeDrafts {
				res.DraftsSkipped++
				ix.logger.Debug("Skipping draft", "item", item.Key())
				continue
			}
			res.Items = append(res.Items, item)
		}
	}

	sort.Slice(res.Items, func(i, j int) bool {
		if res.Items[i].Topic != res.Items[j].Topic {
			return res.Items[i].Topic < res.Items[j].Topic
		}
		return res.Items[i].Slug < res.Items[j].Slug
	})

	ix.logger.Info("Content scan complete",
		"items", len(res.Items),
		"warnings", len(res.Warnings),
		"drafts_skipped", res.DraftsSkipped)
	return res, nil
}

// topicDirs lists topic directories under the root, honoring the filter.
func (ix *Indexer) topicDirs(filter string) ([]string, error) {
	info, err := os.Stat(ix.root)
	if err != nil || !info.IsDir() {
		return nil, errors.Setup(fmt.Sprintf("content root %s is not a readable directory", ix.root), err)
	}

	if filter != "" {
		if _, err := os.Stat(filepath.Join(ix.root, filter)); err != nil {
			return nil, errors.Setup(fmt.Sprintf("topic %q not found under %s", filter, ix.root), err)
		}
		return []string{filter}, nil
	}

	entries, err := os.ReadDir(ix.root)
	if err != nil {
		return nil, errors.Setup(fmt.Sprintf("read content root %s", ix.root), err)
	}
	var topics []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			topics = append(topics, e.Name())
		}
	}
	sort.Strings(topics)
	return topics, nil
}

// loadItem reads and parses one slug directory. A nil, nil return means the
// directory holds no document.
func (ix *Indexer) loadItem(topic, dirSlug, dir string) (*Item, *errors.BuildError) {
	docPath := ""
	for _, name := range documentNames {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			docPath = p
			break
		}
	}
	if docPath == "" {
		return nil, nil
	}

	raw, err := os.ReadFile(docPath) // #nosec G304 - path discovered under the configured root
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryParse, errors.SeverityWarning, "unreadable document").
			WithContext("path", docPath)
	}

	meta, body, _, err := splitAndParse(raw)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryParse, errors.SeverityWarning, "malformed frontmatter").
			WithContext("path", docPath)
	}

	typed, err := typeMetadata(meta)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryParse, errors.SeverityWarning, "invalid metadata").
			WithContext("path", docPath)
	}
	if typed.Title == "" {
		return nil, errors.New(errors.CategoryParse, errors.SeverityWarning, "missing required field: title").
			WithContext("path", docPath)
	}

	slug := dirSlug
	if s, ok := meta["slug"].(string); ok && s != "" {
		slug = s
	}
	if !validSlug(slug) {
		return nil, errors.New(errors.CategoryParse, errors.SeverityWarning,
			fmt.Sprintf("invalid slug %q (want lowercase letters, digits, hyphens)", slug)).
			WithContext("path", docPath)
	}

	hash, err := ComputeHash(meta, body)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryParse, errors.SeverityWarning, "content hash failed").
			WithContext("path", docPath)
	}

	item := &Item{
		Topic:      topic,
		Slug:       slug,
		Meta:       typed,
		Body:       string(body),
		Hash:       hash,
		SourcePath: docPath,
	}
	item.Images = discoverImages(dir, body)
	return item, nil
}

// discoverImages collects the conventional cover image plus any local image
// referenced from the body that exists next to the document.
func discoverImages(dir string, body []byte) []ImageRef {
	var refs []ImageRef
	seen := make(map[string]bool)

	for _, name := range coverNames {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			refs = append(refs, ImageRef{Path: p, Name: name, Cover: true})
			seen[name] = true
			break
		}
	}

	for _, dest := range extractImageDestinations(body) {
		if isRemoteRef(dest) {
			continue
		}
		name := filepath.Clean(strings.TrimPrefix(dest, "./"))
		if strings.Contains(name, "..") || seen[name] {
			continue
		}
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			refs = append(refs, ImageRef{Path: p, Name: name})
			seen[name] = true
		}
	}
	return refs
}

func isRemoteRef(dest string) bool {
	if strings.HasPrefix(dest, "//") || strings.HasPrefix(dest, "/") {
		return true
	}
	u, err := url.Parse(dest)
	return err != nil || u.Scheme != ""
}

// extractImageDestinations walks the Markdown AST collecting image targets.
func extractImageDestinations(body []byte) []string {
	root := parseMarkdown(body)

	var dests []string
	_ = gmast.Walk(root, func(n gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}
		if img, ok := n.(*gmast.Image); ok {
			dests = append(dests, string(img.Destination))
		}
		return gmast.WalkContinue, nil
	})
	return dests
}

func validSlug(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
		case r == '-':
		default:
			return false
		}
	}
	return !strings.HasPrefix(s, "-") && !strings.HasSuffix(s, "-")
}

// typeMetadata maps raw frontmatter fields onto the typed Metadata struct,
// keeping unrecognized keys in Extra.
func typeMetadata(fields map[string]any) (Metadata, error) {
	var m Metadata
	extra := make(map[string]any)

	for k, v := range fields {
		switch k {
		case "title":
			s, ok := v.(string)
			if !ok {
				return m, fmt.Errorf("title must be a string, got %T", v)
			}
			m.Title = strings.TrimSpace(s)
		case "description", "tagline":
			if s, ok := v.(string); ok && m.Description == "" {
				m.Description = strings.TrimSpace(s)
			}
		case "tags":
			tags, err := stringList(v)
			if err != nil {
				return m, fmt.Errorf("tags: %w", err)
			}
			m.Tags = tags
		case "created", "published_at":
			ts, err := parseDate(v)
			if err != nil {
				return m, fmt.Errorf("%s: %w", k, err)
			}
			m.Created = ts
		case "updated", "updated_at":
			ts, err := parseDate(v)
			if err != nil {
				return m, fmt.Errorf("%s: %w", k, err)
			}
			m.Updated = ts
		case "draft":
			b, ok := v.(bool)
			if !ok {
				return m, fmt.Errorf("draft must be a boolean, got %T", v)
			}
			m.Draft = b
		case "slug":
			// Consumed by the indexer for identity; not metadata.
		default:
			extra[k] = v
		}
	}

	if m.Updated.IsZero() {
		m.Updated = m.Created
	}
	if len(extra) > 0 {
		m.Extra = extra
	}
	return m, nil
}

func stringList(v any) ([]string, error) {
	switch vv := v.(type) {
	case nil:
		return nil, nil
	case []string:
		return vv, nil
	case []any:
		out := make([]string, 0, len(vv))
		for _, item := range vv {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("expected string element, got %T", item)
			}
			out = append(out, s)
		}
		return out, nil
	case string:
		return []string{vv}, nil
	default:
		return nil, fmt.Errorf("expected list of strings, got %T", v)
	}
}

var dateLayouts = []string{"2006-01-02", time.RFC3339, "2006-01-02 15:04:05"}

func parseDate(v any) (time.Time, error) {
	switch vv := v.(type) {
	case time.Time:
		return vv.UTC(), nil
	case string:
		for _, layout := range dateLayouts {
			if ts, err := time.Parse(layout, vv); err == nil {
				return ts.UTC(), nil
			}
		}
		return time.Time{}, fmt.Errorf("unrecognized date %q", vv)
	default:
		return time.Time{}, fmt.Errorf("expected date, got %T", v)
	}
}
