package images

import (
	"image"
	"io"
	"sort"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
)

// encodeFunc writes img to w at the given quality (ignored by lossless
// formats).
type encodeFunc func(w io.Writer, img image.Image, quality int) error

// Format support is capability-gated through this registry: a format with no
// registered encoder yields a per-variant unsupported-format warning rather
// than a pipeline failure.
var encoders = map[string]encodeFunc{
	"jpeg": encodeJPEG,
	"jpg":  encodeJPEG,
	"png":  encodePNG,
	"webp": encodeWebP,
}

func encodeJPEG(w io.Writer, img image.Image, quality int) error {
	return imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(quality))
}

func encodePNG(w io.Writer, img image.Image, _ int) error {
	return imaging.Encode(w, img, imaging.PNG)
}

func encodeWebP(w io.Writer, img image.Image, quality int) error {
	return webp.Encode(w, img, &webp.Options{Quality: float32(quality)})
}

// FormatSupported reports whether an encoder is available for format.
func FormatSupported(format string) bool {
	_, ok := encoders[format]
	return ok
}

// SupportedFormats lists the registered encoder formats, sorted.
func SupportedFormats() []string {
	out := make([]string, 0, len(encoders))
	for f := range encoders {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}
