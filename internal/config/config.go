// Package config loads and validates the contentbuild configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for a build.
type Config struct {
	Site    SiteConfig           `yaml:"site"`
	Content ContentConfig        `yaml:"content"`
	Topics  map[string]TopicNode `yaml:"topics"`
	Output  OutputConfig         `yaml:"output"`
	Cache   CacheConfig          `yaml:"cache"`
	Images  ImageConfig          `yaml:"images"`
	Build   BuildConfig          `yaml:"build"`
}

// SiteConfig describes the published site for feeds and sitemaps.
type SiteConfig struct {
	BaseURL     string `yaml:"base_url"`
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Author      string `yaml:"author"`
}

// ContentConfig locates the content tree.
type ContentConfig struct {
	Root string `yaml:"root"`
}

// TopicNode describes one entry in the topic registry. Items reference
// topics by map key only; the registry owns titles and descriptions.
type TopicNode struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Parent      string `yaml:"parent,omitempty"`
}

// OutputConfig locates generated artifacts.
type OutputConfig struct {
	Dir string `yaml:"dir"`
}

// CacheConfig locates persisted build state.
type CacheConfig struct {
	Dir string `yaml:"dir"`
}

// ImageConfig controls derivative generation.
type ImageConfig struct {
	Formats     []string       `yaml:"formats"`
	Breakpoints []int          `yaml:"breakpoints"`
	Quality     map[string]int `yaml:"quality"`
}

// BuildConfig controls execution.
type BuildConfig struct {
	Workers       int  `yaml:"workers"`
	IncludeDrafts bool `yaml:"include_drafts"`
}

// Load reads, defaults, and validates a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 - path comes from the CLI flag
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.applyDefaults()
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Content.Root == "" {
		c.Content.Root = "content"
	}
	if c.Output.Dir == "" {
		c.Output.Dir = "output"
	}
	if c.Cache.Dir == "" {
		c.Cache.Dir = ".contentbuild"
	}
	if len(c.Images.Formats) == 0 {
		c.Images.Formats = []string{"webp", "jpeg"}
	}
	if len(c.Images.Breakpoints) == 0 {
		c.Images.Breakpoints = []int{480, 768, 1024, 1600}
	}
	if c.Images.Quality == nil {
		c.Images.Quality = map[string]int{}
	}
	for _, f := range c.Images.Formats {
		if _, ok := c.Images.Quality[f]; !ok {
			c.Images.Quality[f] = defaultQuality(f)
		}
	}
	if c.Site.Title == "" {
		c.Site.Title = "Untitled Site"
	}
}

func defaultQuality(format string) int {
	switch format {
	case "jpeg", "jpg":
		return 85
	case "webp":
		return 80
	default:
		return 80
	}
}

// applyEnvOverrides applies CONTENTBUILD_* environment variables. The env
// file itself is loaded by main via godotenv before Load runs.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("CONTENTBUILD_CONTENT_ROOT"); v != "" {
		c.Content.Root = v
	}
	if v := os.Getenv("CONTENTBUILD_OUTPUT_DIR"); v != "" {
		c.Output.Dir = v
	}
	if v := os.Getenv("CONTENTBUILD_CACHE_DIR"); v != "" {
		c.Cache.Dir = v
	}
	if v := os.Getenv("CONTENTBUILD_SITE_BASE_URL"); v != "" {
		c.Site.BaseURL = v
	}
	if v := os.Getenv("CONTENTBUILD_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Build.Workers = n
		}
	}
}

// Validate checks invariants that would otherwise surface mid-build.
func (c *Config) Validate() error {
	if c.Site.BaseURL != "" && !strings.HasPrefix(c.Site.BaseURL, "http://") && !strings.HasPrefix(c.Site.BaseURL, "https://") {
		return fmt.Errorf("site.base_url must be an absolute http(s) URL, got %q", c.Site.BaseURL)
	}
	for i, bp := range c.Images.Breakpoints {
		if bp <= 0 {
			return fmt.Errorf("images.breakpoints[%d] must be positive, got %d", i, bp)
		}
	}
	for f, q := range c.Images.Quality {
		if q < 1 || q > 100 {
			return fmt.Errorf("images.quality.%s must be in [1,100], got %d", f, q)
		}
	}
	if c.Build.Workers < 0 {
		return fmt.Errorf("build.workers must be >= 0, got %d", c.Build.Workers)
	}
	for id, topic := range c.Topics {
		if topic.Parent == "" {
			continue
		}
		if _, ok := c.Topics[topic.Parent]; !ok {
			return fmt.Errorf("topics.%s.parent references unknown topic %q", id, topic.Parent)
		}
	}
	return nil
}

// TopicIDs returns the registered topic IDs in sorted order.
func (c *Config) TopicIDs() []string {
	ids := make([]string, 0, len(c.Topics))
	for id := range c.Topics {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ItemURL returns the canonical URL for a (topic, slug) pair.
func (c *Config) ItemURL(topic, slug string) string {
	base := strings.TrimSuffix(c.Site.BaseURL, "/")
	return fmt.Sprintf("%s/%s/%s", base, topic, slug)
}

// CacheManifestPath returns the path of the persisted cache manifest.
func (c *Config) CacheManifestPath() string {
	return filepath.Join(c.Cache.Dir, "manifest.json")
}

// WriteStarter writes a commented starter configuration to path. It refuses
// to overwrite an existing file unless force is set.
func WriteStarter(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}
	return os.WriteFile(path, []byte(starterYAML), 0o644)
}

const starterYAML = `site:
  base_url: https://example.com
  title: My Site
  description: Writing and notes
  author: Anonymous

content:
  root: content

topics:
  blog:
    title: Blog
    description: Posts and articles

output:
  dir: output

cache:
  dir: .contentbuild

images:
  formats: [webp, jpeg]
  breakpoints: [480, 768, 1024, 1600]
  quality:
    webp: 80
    jpeg: 85

build:
  workers: 0
  include_drafts: false
`
