package frontmatter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit(t *testing.T) {
	meta, body, had, err := Split([]byte("---\ntitle: Hello\n---\nBody text\n"))
	require.NoError(t, err)
	assert.True(t, had)
	assert.Equal(t, "title: Hello\n", string(meta))
	assert.Equal(t, "Body text\n", string(body))
}

func TestSplitNoFrontmatter(t *testing.T) {
	meta, body, had, err := Split([]byte("Just markdown\n"))
	require.NoError(t, err)
	assert.False(t, had)
	assert.Nil(t, meta)
	assert.Equal(t, "Just markdown\n", string(body))
}

func TestSplitEmptyBlock(t *testing.T) {
	meta, body, had, err := Split([]byte("---\n---\nBody\n"))
	require.NoError(t, err)
	assert.True(t, had)
	assert.Empty(t, meta)
	assert.Equal(t, "Body\n", string(body))
}

func TestSplitUnterminated(t *testing.T) {
	_, _, _, err := Split([]byte("---\ntitle: Hello\nBody without closing"))
	assert.ErrorIs(t, err, ErrMissingClosingDelimiter)
}

func TestSplitNormalizesCRLF(t *testing.T) {
	metaCRLF, bodyCRLF, _, err := Split([]byte("---\r\ntitle: Hello\r\n---\r\nBody\r\n"))
	require.NoError(t, err)
	metaLF, bodyLF, _, err2 := Split([]byte("---\ntitle: Hello\n---\nBody\n"))
	require.NoError(t, err2)

	assert.Equal(t, string(metaLF), string(metaCRLF))
	assert.Equal(t, string(bodyLF), string(bodyCRLF))
}

func TestParse(t *testing.T) {
	fields, err := Parse([]byte("title: Hello\ntags: [go, build]\ndraft: true\n"))
	require.NoError(t, err)
	assert.Equal(t, "Hello", fields["title"])
	assert.Equal(t, true, fields["draft"])
	assert.Equal(t, []any{"go", "build"}, fields["tags"])
}

func TestParseEmpty(t *testing.T) {
	fields, err := Parse(nil)
	require.NoError(t, err)
	assert.Empty(t, fields)
}

func TestSerializeCanonicalDeterminism(t *testing.T) {
	fields := map[string]any{
		"title": "Hello",
		"tags":  []string{"go", "build"},
		"nested": map[string]any{
			"b": 2,
			"a": 1,
		},
		"draft": false,
	}

	first, err := SerializeCanonical(fields)
	require.NoError(t, err)

	// Re-serializing (and serializing a rebuilt map) must be byte-identical.
	for range 10 {
		again, err := SerializeCanonical(map[string]any{
			"draft":  false,
			"nested": map[string]any{"a": 1, "b": 2},
			"tags":   []string{"go", "build"},
			"title":  "Hello",
		})
		require.NoError(t, err)
		assert.Equal(t, string(first), string(again))
	}

	// Keys come out sorted.
	assert.Regexp(t, `(?s)^draft:.*nested:.*tags:.*title:`, string(first))
}

func TestSerializeCanonicalEmpty(t *testing.T) {
	out, err := SerializeCanonical(nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestRoundTripStability(t *testing.T) {
	// Parsing serialized output and serializing again is stable.
	fields := map[string]any{"title": "Post", "order": 3}
	once, err := SerializeCanonical(fields)
	require.NoError(t, err)

	parsed, err := Parse(once)
	require.NoError(t, err)
	twice, err := SerializeCanonical(parsed)
	require.NoError(t, err)

	assert.Equal(t, string(once), string(twice))
}
