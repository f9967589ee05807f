package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSentences(t *testing.T) {
	got := Sentences("  First one. Second?! Third...   \n\n  . Fourth")
	assert.Equal(t, []string{"First one", "Second", "Third", "Fourth"}, got)

	assert.Empty(t, Sentences(""))
	assert.Empty(t, Sentences(" ...!?  "))
}

func TestChunk(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		maxSize int
		want    []string
	}{
		{
			name:    "empty input",
			text:    "",
			maxSize: 10,
			want:    nil,
		},
		{
			name:    "all sentences fit",
			text:    "One. Two. Three.",
			maxSize: 100,
			want:    []string{"One Two Three"},
		},
		{
			name:    "separator counts toward the limit",
			text:    "aaaa. bbbb. cccc.",
			maxSize: 9,
			want:    []string{"aaaa bbbb", "cccc"},
		},
		{
			name:    "exact fit is not split",
			text:    "aaaa. bbbb.",
			maxSize: 9,
			want:    []string{"aaaa bbbb"},
		},
		{
			name:    "oversized sentence stays whole",
			text:    "short. this sentence is far too long. tail.",
			maxSize: 10,
			want:    []string{"short", "this sentence is far too long", "tail"},
		},
		{
			name:    "non-positive size uses default",
			text:    "a. b.",
			maxSize: 0,
			want:    []string{"a b"},
		},
		{
			name:    "size counts characters not bytes",
			text:    "£1,000 minimum. ££££.",
			maxSize: 20,
			want:    []string{"£1,000 minimum ££££"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Chunk(tt.text, tt.maxSize))
		})
	}
}

func TestChunkPreservesSentenceSequence(t *testing.T) {
	inputs := []string{
		"The minimum deposit is £1,000. Accounts are protected! Is interest paid monthly? Yes.",
		strings.Repeat("Lorem ipsum dolor sit amet. ", 60),
		"No punctuation at all",
		"A!B?C.D",
	}
	for _, text := range inputs {
		for _, size := range []int{1, 5, 16, 64, 512} {
			passages := Chunk(text, size)

			var rebuilt []string
			for _, p := range passages {
				rebuilt = append(rebuilt, strings.Split(p, " ")...)
			}
			var want []string
			for _, s := range Sentences(text) {
				want = append(want, strings.Split(s, " ")...)
			}
			assert.Equal(t, want, rebuilt, "size=%d", size)
		}
	}
}

func TestChunkRespectsMaxSize(t *testing.T) {
	text := "Short one. A somewhat longer sentence here. x. " +
		strings.Repeat("word ", 40) + ". Tail sentence."
	for _, size := range []int{8, 20, 50, 120} {
		for _, p := range Chunk(text, size) {
			if utf8.RuneCountInString(p) <= size {
				continue
			}
			// only a lone sentence may exceed the limit
			require.Len(t, Sentences(p), 1, "size=%d passage=%q", size, p)
		}
	}
}

func TestChunkDeterministic(t *testing.T) {
	text := strings.Repeat("Deterministic output matters. Really? Yes! ", 25)
	first := Chunk(text, 64)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Chunk(text, 64))
	}
}
