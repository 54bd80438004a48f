package content

import (
	"strings"

	"github.com/inful/mdfp"

	"github.com/evansims/contentbuild/internal/frontmatter"
)

// ComputeHash computes the canonical content fingerprint over a document's
// frontmatter fields and body.
//
// Canonicalization rules:
//   - frontmatter serialized with sorted keys and LF newlines
//   - a single trailing newline trimmed from the serialized YAML
//   - the fingerprint field itself excluded, so stamping a document with
//     its own fingerprint does not change the fingerprint
func ComputeHash(fields map[string]any, body []byte) (string, error) {
	fieldsForHash := make(map[string]any, len(fields))
	for k, v := range fields {
		if k == mdfp.FingerprintField {
			continue
		}
		fieldsForHash[k] = v
	}

	metaForHash := ""
	if len(fieldsForHash) > 0 {
		serialized, err := frontmatter.SerializeCanonical(fieldsForHash)
		if err != nil {
			return "", err
		}
		metaForHash = trimSingleTrailingNewline(string(serialized))
	}

	return mdfp.CalculateFingerprintFromParts(metaForHash, string(body)), nil
}

func trimSingleTrailingNewline(s string) string {
	if before, ok := strings.CutSuffix(s, "\r\n"); ok {
		return before
	}
	if before, ok := strings.CutSuffix(s, "\n"); ok {
		return before
	}
	return s
}
