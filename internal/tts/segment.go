package tts

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/dgnsrekt/narrate/internal/ttypes"
)

// sentencePattern matches a run of non-terminators followed by one or more
// terminators. A line break ends a sentence like a full stop does.
var sentencePattern = regexp.MustCompile(`[^。！？.!?\n]+[。！？.!?\n]+`)

// Segment splits text into sentences in source order. Text that no match
// covers, such as a trailing fragment without a terminator, becomes its own
// sentence in its original position. Every sentence is trimmed and none is
// empty.
func Segment(text string) []ttypes.Sentence {
	var sentences []ttypes.Sentence

	add := func(start, end int) {
		span := text[start:end]
		lead := len(span) - len(strings.TrimLeftFunc(span, unicode.IsSpace))
		trimmed := strings.TrimSpace(span)
		if trimmed == "" {
			return
		}
		sentences = append(sentences, ttypes.Sentence{
			ID:          fmt.Sprintf("s%d", len(sentences)),
			Text:        trimmed,
			Position:    len(sentences),
			StartOffset: start + lead,
			EndOffset:   start + lead + len(trimmed),
		})
	}

	prev := 0
	for _, loc := range sentencePattern.FindAllStringIndex(text, -1) {
		// Text between matches stays a sentence of its own so output order
		// always follows the document.
		if loc[0] > prev {
			add(prev, loc[0])
		}
		add(loc[0], loc[1])
		prev = loc[1]
	}
	if prev < len(text) {
		add(prev, len(text))
	}

	return sentences
}

// Texts returns the text of each sentence.
func Texts(sentences []ttypes.Sentence) []string {
	out := make([]string, len(sentences))
	for i, s := range sentences {
		out[i] = s.Text
	}
	return out
}
