package images

import (
	"image"
	"os"
	"sync"

	"github.com/disintegration/imaging"

	// Register the WebP decoder so WebP sources can be read. JPEG, PNG and
	// GIF decoders are registered by imaging's dependencies.
	_ "golang.org/x/image/webp"

	"github.com/evansims/contentbuild/internal/errors"
)

// Source is one source image shared by all of its variant jobs. The file is
// decoded exactly once; concurrent variant jobs block on the first decode
// and then read the shared buffer, which is never written after decoding.
type Source struct {
	Path string
	// Name is the file name relative to the item directory.
	Name string
	// Hash is the content hash of the encoded source bytes.
	Hash string

	once sync.Once
	img  image.Image
	err  error
}

// NewSource creates a shared decode handle for a source image.
func NewSource(path, name, hash string) *Source {
	return &Source{Path: path, Name: name, Hash: hash}
}

// Decode returns the decoded image, decoding on first use. A failure is
// sticky: every variant of an undecodable source observes the same
// image_decode error.
func (s *Source) Decode() (image.Image, error) {
	s.once.Do(func() {
		f, err := os.Open(s.Path) // #nosec G304 - discovered under the content root
		if err != nil {
			s.err = errors.Wrap(err, errors.CategoryImageDecode, errors.SeverityWarning, "cannot open source image").
				WithContext("path", s.Path)
			return
		}
		defer f.Close()

		img, err := imaging.Decode(f)
		if err != nil {
			s.err = errors.Wrap(err, errors.CategoryImageDecode, errors.SeverityWarning, "cannot decode source image").
				WithContext("path", s.Path)
			return
		}
		s.img = img
	})
	return s.img, s.err
}

// Bounds returns the decoded dimensions, forcing a decode if needed.
func (s *Source) Bounds() (width, height int, err error) {
	img, err := s.Decode()
	if err != nil {
		return 0, 0, err
	}
	b := img.Bounds()
	return b.Dx(), b.Dy(), nil
}
