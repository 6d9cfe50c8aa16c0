package fingerprint_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jiazeyu1987/hospitalscan/internal/fingerprint"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "strips html tags",
			input: "<p>hospital equipment tender</p>",
			want:  "hospital equipment tender",
		},
		{
			name:  "strips punctuation and collapses whitespace",
			input: "Tender:   hospital,  equipment!!",
			want:  "tender hospital equipment",
		},
		{
			name:  "keeps cjk characters",
			input: "医院设备采购项目公告发布时间",
			want:  "医院设备采购项目公告发布时间",
		},
		{
			name:  "short text normalizes to empty",
			input: "tender",
			want:  "",
		},
		{
			name:  "empty input",
			input: "",
			want:  "",
		},
		{
			name:  "markup only is too short",
			input: "<div><span></span></div>",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, fingerprint.Normalize(tt.input))
		})
	}
}

func TestHash_DeterministicIdentity(t *testing.T) {
	t.Parallel()

	h1 := fingerprint.Hash("X", "2025-01-01", "ABC")
	h2 := fingerprint.Hash("X", "2025-01-01", "ABC")

	require.Len(t, h1, 64)
	assert.Equal(t, h1, h2)

	h3 := fingerprint.Hash("X", "2025-01-02", "ABC")
	assert.NotEqual(t, h1, h3)
}

func TestHash_ContentTruncatedAt500Runes(t *testing.T) {
	t.Parallel()

	long := make([]rune, 600)
	for i := range long {
		long[i] = 'a'
	}

	base := string(long[:500])
	h1 := fingerprint.Hash("t", "d", base)
	h2 := fingerprint.Hash("t", "d", string(long))

	assert.Equal(t, h1, h2, "hash should only cover the first 500 characters")
}

func TestTokenize(t *testing.T) {
	t.Parallel()

	tokens := fingerprint.Tokenize("hospital tender 2025 医院设备")

	for _, want := range []string{"hospital", "tender", "2025", "医", "院", "设", "备"} {
		_, ok := tokens[want]
		assert.True(t, ok, "missing token %q", want)
	}
	assert.Len(t, tokens, 7)
}

func TestTokenizeFoldsCase(t *testing.T) {
	t.Parallel()

	raw := fingerprint.Tokenize("Hospital TENDER Notice")
	lower := fingerprint.Tokenize("hospital tender notice")

	assert.Equal(t, lower, raw)
}

func TestJaccard(t *testing.T) {
	t.Parallel()

	a := fingerprint.Tokenize("hospital equipment tender")
	b := fingerprint.Tokenize("hospital equipment notice")

	got := fingerprint.Jaccard(a, b)
	assert.InDelta(t, 0.5, got, 1e-9)

	assert.Zero(t, fingerprint.Jaccard(a, nil))
	assert.InDelta(t, 1.0, fingerprint.Jaccard(a, a), 1e-9)
}

func TestSequenceRatio(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 1.0, fingerprint.SequenceRatio("abcdef", "abcdef"), 1e-9)
	assert.Zero(t, fingerprint.SequenceRatio("abc", ""))
	assert.InDelta(t, 1.0, fingerprint.SequenceRatio("", ""), 1e-9)

	// Half the characters of the longer string match.
	got := fingerprint.SequenceRatio("abcd", "abcdabcd")
	assert.Greater(t, got, 0.5)
	assert.Less(t, got, 1.0)
}

func TestSimilarity_ShortTextIsNonComparable(t *testing.T) {
	t.Parallel()

	// Below the minimum normalized length similarity is always zero,
	// even against itself.
	assert.Zero(t, fingerprint.Similarity("tender", "tender"))
	assert.Zero(t, fingerprint.Similarity("short", "a much longer text about hospital procurement"))
}

func TestSimilarity_IdenticalLongText(t *testing.T) {
	t.Parallel()

	text := "hospital medical equipment procurement tender announcement 2025"
	assert.InDelta(t, 1.0, fingerprint.Similarity(text, text), 1e-9)
}

func TestNew_FingerprintPair(t *testing.T) {
	t.Parallel()

	fp := fingerprint.New("医院设备采购", "2025-03-01", "医院设备采购项目预算100万元")

	require.Len(t, fp.Hash, 64)
	assert.NotEmpty(t, fp.Tokens)
	assert.Contains(t, fp.SortedTokens(), "医")
}
