package build

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"path/filepath"

	"github.com/evansims/contentbuild/internal/cache"
	"github.com/evansims/contentbuild/internal/config"
	"github.com/evansims/contentbuild/internal/content"
	"github.com/evansims/contentbuild/internal/errors"
	"github.com/evansims/contentbuild/internal/images"
)

// UnitKind tags a work unit as document or image work.
type UnitKind string

const (
	UnitRender UnitKind = "render"
	UnitImage  UnitKind = "image"
)

// Unit is one schedulable piece of work. A render unit produces the record
// files for one item; an image unit produces every variant of one source
// image. Image units for one item share a Source so the file decodes once.
type Unit struct {
	Kind   UnitKind
	Key    string // cache key
	Reason string // why the cache could not satisfy it

	Item *content.Item

	// Image unit fields.
	Source  *images.Source
	Specs   []images.VariantSpec
	DestDir string
}

// Replay is a cache hit: recorded outputs verified on disk, no work needed.
type Replay struct {
	Unit  Unit
	Entry cache.Entry
}

// Plan is the split of all discovered work into fresh units and replays.
type Plan struct {
	Units   []Unit
	Replays []Replay
}

// PlanOptions alter cache keys and scheduling.
type PlanOptions struct {
	Force    bool
	SkipHTML bool
	SkipJSON bool
}

// docParamHash captures every setting that changes document outputs. Items
// rebuilt under different settings must not reuse each other's entries.
func docParamHash(cfg *config.Config, opts PlanOptions) string {
	params := struct {
		BaseURL  string `json:"base_url"`
		SkipHTML bool   `json:"skip_html"`
		SkipJSON bool   `json:"skip_json"`
	}{cfg.Site.BaseURL, opts.SkipHTML, opts.SkipJSON}
	data, _ := json.Marshal(params)
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// BuildPlan checks every item and source image against the cache and
// returns the work split. Warnings (unhashable source images) go to the
// report; the affected image is dropped from the plan.
func BuildPlan(cfg *config.Config, store *cache.Store, items []*content.Item, opts PlanOptions, report *Report) *Plan {
	plan := &Plan{}
	specs := images.SpecsFromConfig(cfg.Images)
	specSetHash := images.SpecSetHash(specs)
	docParams := docParamHash(cfg, opts)

	for _, item := range items {
		// Derivatives live apart from the record files.
		imageDir := filepath.Join(cfg.Output.Dir, "images", item.Topic, item.Slug)

		unit := Unit{Kind: UnitRender, Key: item.Hash, Item: item}
		decision := store.Check(item.Hash, docParams, opts.Force)
		if decision.Skip {
			plan.Replays = append(plan.Replays, Replay{Unit: unit, Entry: decision.Entry})
		} else {
			unit.Reason = decision.Reason
			plan.Units = append(plan.Units, unit)
		}

		for _, ref := range item.Images {
			srcHash, err := cache.HashFile(ref.Path)
			if err != nil {
				report.AddWarning(errors.Wrap(err, errors.CategoryImageDecode, errors.SeverityWarning,
					"cannot hash source image").WithContext("path", ref.Path))
				continue
			}

			unit := Unit{
				Kind:    UnitImage,
				Key:     images.CacheKey(item.Key(), srcHash, specSetHash),
				Item:    item,
				Source:  images.NewSource(ref.Path, ref.Name, srcHash),
				Specs:   specs,
				DestDir: imageDir,
			}
			decision := store.Check(unit.Key, specSetHash, opts.Force)
			if decision.Skip {
				plan.Replays = append(plan.Replays, Replay{Unit: unit, Entry: decision.Entry})
			} else {
				unit.Reason = decision.Reason
				plan.Units = append(plan.Units, unit)
			}
		}
	}

	return plan
}
