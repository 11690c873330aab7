// Package spanset merges raw flagged character ranges into canonical
// redaction spans: clamped, sorted, merged, and widened to word boundaries
// so partial-word redactions never escape into the rewriter.
package spanset

import (
	"sort"
	"unicode"
	"unicode/utf8"
)

// Span is a half-open [Start,End) byte range into the owning segment text.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the byte length of the span.
func (s Span) Len() int { return s.End - s.Start }

// isWord reports whether r is considered a word character for boundary checks.
// Letters, numbers, combining marks (Mn), and connector punctuation (Pc,
// e.g. underscore). Hyphen and most punctuation remain non-word
func isWord(r rune) bool {
	if r == utf8.RuneError || r == 0 {
		return false
	}
	return unicode.IsLetter(r) ||
		unicode.IsNumber(r) ||
		unicode.In(r, unicode.Mn, unicode.Pc)
}

// expandToToken widens [start,end) to the containing token when the range
// already touches word characters. A range whose edges rest on spaces or
// punctuation is left alone, which keeps a second Normalize pass a no-op
func expandToToken(s string, start, end int) (int, int) {
	ls, rs := start, end
	if r, _ := utf8.DecodeRuneInString(s[ls:]); isWord(r) {
		for ls > 0 {
			r, sz := utf8.DecodeLastRuneInString(s[:ls])
			if !isWord(r) {
				break
			}
			ls -= sz
		}
	}
	if r, _ := utf8.DecodeLastRuneInString(s[:rs]); rs > 0 && isWord(r) {
		for rs < len(s) {
			r, sz := utf8.DecodeRuneInString(s[rs:])
			if !isWord(r) {
				break
			}
			rs += sz
		}
	}
	return ls, rs
}

// absorbSpaces extends start backward and end forward over adjacent spaces
// so neighboring flagged words read as one continuous removable unit
func absorbSpaces(s string, start, end int) (int, int) {
	for start > 0 && s[start-1] == ' ' {
		start--
	}
	for end < len(s) && s[end] == ' ' {
		end++
	}
	return start, end
}

// Normalize merges raw classifier spans against text into the minimal set of
// non-overlapping redaction ranges, widened to token boundaries and across
// adjacent spaces. Out-of-range offsets are clamped, empty ranges dropped.
// Output is sorted by Start, pairwise non-overlapping, each End > Start.
// Deterministic and idempotent: running Normalize on its own output
// returns the same spans
func Normalize(text string, raw []Span) []Span {
	if len(raw) == 0 {
		return nil
	}

	clamped := make([]Span, 0, len(raw))
	for _, sp := range raw {
		st, en := clamp(sp.Start, 0, len(text)), clamp(sp.End, 0, len(text))
		if en <= st {
			continue
		}
		clamped = append(clamped, Span{Start: st, End: en})
	}
	if len(clamped) == 0 {
		return nil
	}

	sort.Slice(clamped, func(i, j int) bool {
		if clamped[i].Start != clamped[j].Start {
			return clamped[i].Start < clamped[j].Start
		}
		return clamped[i].End < clamped[j].End
	})

	merged := mergeSorted(clamped)

	widened := make([]Span, 0, len(merged))
	for _, sp := range merged {
		st, en := expandToToken(text, sp.Start, sp.End)
		st, en = absorbSpaces(text, st, en)
		widened = append(widened, Span{Start: st, End: en})
	}

	// widening can make neighbors touch, merge once more
	return mergeSorted(widened)
}

// Union returns the total byte count covered by normalized spans.
// Input must already be normalized (sorted, non-overlapping)
func Union(spans []Span) int {
	n := 0
	for _, sp := range spans {
		n += sp.Len()
	}
	return n
}

// mergeSorted folds sorted spans, merging any span whose Start falls at or
// before the accumulator End
func mergeSorted(spans []Span) []Span {
	out := make([]Span, 0, len(spans))
	acc := spans[0]
	for _, sp := range spans[1:] {
		if sp.Start <= acc.End {
			if sp.End > acc.End {
				acc.End = sp.End
			}
			continue
		}
		out = append(out, acc)
		acc = sp
	}
	return append(out, acc)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
