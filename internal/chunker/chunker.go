// Package chunker splits document text into sentence-aligned passages.
package chunker

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// DefaultMaxSize is the passage size limit, in characters, used when none is configured.
const DefaultMaxSize = 512

var sentenceDelimiter = regexp.MustCompile(`[.!?]+`)

// Sentences splits text on runs of terminal punctuation and returns the
// trimmed, non-empty pieces in order. The punctuation itself is dropped.
func Sentences(text string) []string {
	parts := sentenceDelimiter.Split(text, -1)
	sentences := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}

// Chunk greedily packs sentences, joined by a single space, into passages of at
// most maxSize characters. A sentence longer than maxSize on its own becomes a
// single oversized passage rather than being truncated. maxSize <= 0 selects
// DefaultMaxSize.
func Chunk(text string, maxSize int) []string {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}

	var (
		passages []string
		buf      strings.Builder
		bufLen   int
	)
	for _, sentence := range Sentences(text) {
		n := utf8.RuneCountInString(sentence)
		if bufLen > 0 && bufLen+1+n > maxSize {
			passages = append(passages, buf.String())
			buf.Reset()
			bufLen = 0
		}
		if bufLen > 0 {
			buf.WriteByte(' ')
			bufLen++
		}
		buf.WriteString(sentence)
		bufLen += n
	}
	if bufLen > 0 {
		passages = append(passages, buf.String())
	}
	return passages
}
