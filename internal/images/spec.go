// Package images produces responsive derivatives from source images.
package images

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/evansims/contentbuild/internal/config"
)

// VariantSpec is one target derivative: width, format, quality. Pure value.
type VariantSpec struct {
	Width   int    `json:"width"`
	Format  string `json:"format"`
	Quality int    `json:"quality"`
}

// FileName returns the output file name for a variant of the given source
// image, e.g. "index-480w.webp" for source "index.jpg".
func (v VariantSpec) FileName(sourceName string) string {
	stem := sourceName
	if i := strings.LastIndex(stem, "."); i > 0 {
		stem = stem[:i]
	}
	return fmt.Sprintf("%s-%dw.%s", stem, v.Width, v.Format)
}

// SpecsFromConfig expands the configured formats and breakpoints into the
// ordered variant list applied to every source image. Order is breakpoints
// ascending, formats as configured, so planning is deterministic.
func SpecsFromConfig(img config.ImageConfig) []VariantSpec {
	breakpoints := make([]int, len(img.Breakpoints))
	copy(breakpoints, img.Breakpoints)
	sort.Ints(breakpoints)

	specs := make([]VariantSpec, 0, len(breakpoints)*len(img.Formats))
	for _, w := range breakpoints {
		for _, f := range img.Formats {
			specs = append(specs, VariantSpec{Width: w, Format: f, Quality: img.Quality[f]})
		}
	}
	return specs
}

// SpecSetHash computes the parameter hash for a variant spec list. Two
// builds with the same hash request identical derivatives, so cached image
// entries recorded under it remain valid.
func SpecSetHash(specs []VariantSpec) string {
	sorted := make([]VariantSpec, len(specs))
	copy(sorted, specs)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Width != sorted[j].Width {
			return sorted[i].Width < sorted[j].Width
		}
		return sorted[i].Format < sorted[j].Format
	})

	data, err := json.Marshal(sorted)
	if err != nil {
		// Marshaling a slice of plain value structs cannot fail.
		panic(err)
	}
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
