package images

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"

	"github.com/evansims/contentbuild/internal/cache"
	"github.com/evansims/contentbuild/internal/errors"
)

// VariantResult describes one produced derivative.
type VariantResult struct {
	Spec       VariantSpec `json:"spec"`
	Path       string      `json:"path"`
	Width      int         `json:"width"`
	Height     int         `json:"height"`
	Capped     bool        `json:"capped,omitempty"`
	OutputHash string      `json:"output_hash"`
}

// TranscodeVariant produces a single derivative from a shared source into
// destDir. Decoding happens at most once per Source across all its variants.
//
// When the requested width exceeds the source width the output is clamped to
// the source width and marked capped; the pipeline never upscales.
func TranscodeVariant(src *Source, spec VariantSpec, destDir string) (*VariantResult, error) {
	img, err := src.Decode()
	if err != nil {
		return nil, err
	}

	enc, ok := encoders[spec.Format]
	if !ok {
		return nil, errors.New(errors.CategoryImageVariant, errors.SeverityWarning,
			fmt.Sprintf("unsupported format %q (available: %v)", spec.Format, SupportedFormats())).
			WithContext("path", src.Path).
			WithContext("format", spec.Format)
	}

	bounds := img.Bounds()
	targetWidth := spec.Width
	capped := false
	if targetWidth > bounds.Dx() {
		targetWidth = bounds.Dx()
		capped = true
	}

	// Lanczos preserves detail on downscale; resizing with height 0 keeps
	// the aspect ratio. Re-encoding drops source metadata.
	resized := imaging.Resize(img, targetWidth, 0, imaging.Lanczos)

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, errors.Wrap(err, errors.CategoryImageVariant, errors.SeverityWarning, "cannot create output directory").
			WithContext("path", destDir)
	}

	outPath := filepath.Join(destDir, spec.FileName(src.Name))
	f, err := os.Create(outPath) // #nosec G304 - outputs are partitioned by item identity
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryImageVariant, errors.SeverityWarning, "cannot create variant file").
			WithContext("path", outPath)
	}

	if err := enc(f, resized, spec.Quality); err != nil {
		_ = f.Close()
		_ = os.Remove(outPath)
		return nil, errors.Wrap(err, errors.CategoryImageVariant, errors.SeverityWarning,
			fmt.Sprintf("encode %s failed", spec.Format)).
			WithContext("path", outPath)
	}
	if err := f.Close(); err != nil {
		return nil, errors.Wrap(err, errors.CategoryImageVariant, errors.SeverityWarning, "cannot finish variant file").
			WithContext("path", outPath)
	}

	outHash, err := cache.HashFile(outPath)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryImageVariant, errors.SeverityWarning, "cannot hash variant file").
			WithContext("path", outPath)
	}

	return &VariantResult{
		Spec:       spec,
		Path:       outPath,
		Width:      targetWidth,
		Height:     resized.Bounds().Dy(),
		Capped:     capped,
		OutputHash: outHash,
	}, nil
}

// CacheKey derives the cache key for one source image under the current
// variant parameters. The owner key scopes the entry to one item's output
/// tree: two items carrying byte-identical source images must not share an
// entry, or one item's recorded outputs would satisfy the other's check.
func CacheKey(owner, sourceHash, specSetHash string) string {
	return owner + "+" + sourceHash + "+" + specSetHash
}
