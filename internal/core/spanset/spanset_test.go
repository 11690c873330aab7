package spanset

import (
	"reflect"
	"testing"
)

func TestNormalize_Table(t *testing.T) {
	tests := []struct {
		name string
		text string
		in   []Span
		out  []Span
	}{
		{
			name: "empty input yields nil",
			text: "anything",
			in:   nil,
			out:  nil,
		},
		{
			name: "single aligned span absorbs surrounding spaces",
			text: "this is fucking annoying",
			in:   []Span{{8, 15}},
			out:  []Span{{7, 16}},
		},
		{
			name: "adjacent spans bridge a single space",
			text: "abcde fghi",
			in:   []Span{{0, 4}, {6, 10}},
			out:  []Span{{0, 10}},
		},
		{
			name: "overlapping spans merge",
			text: "aaaa bbbb cccc",
			in:   []Span{{0, 7}, {5, 9}},
			out:  []Span{{0, 10}},
		},
		{
			name: "contained span collapses",
			text: "zzzz yyyy xxxx",
			in:   []Span{{0, 14}, {5, 9}},
			out:  []Span{{0, 14}},
		},
		{
			name: "unsorted input sorts by start",
			text: "one two three four",
			in:   []Span{{14, 18}, {0, 3}},
			out:  []Span{{0, 4}, {13, 18}},
		},
		{
			name: "out of range offsets clamp",
			text: "short",
			in:   []Span{{-3, 2}, {4, 99}},
			out:  []Span{{0, 5}},
		},
		{
			name: "inverted span dropped",
			text: "hello world",
			in:   []Span{{7, 3}},
			out:  nil,
		},
		{
			name: "empty after clamp dropped",
			text: "hi",
			in:   []Span{{5, 9}},
			out:  nil,
		},
		{
			name: "partial word widens to token",
			text: "unbelievable stuff",
			in:   []Span{{2, 8}},
			out:  []Span{{0, 13}},
		},
		{
			name: "multibyte text stays on rune boundaries",
			text: "das ist scheiße wirklich",
			in:   []Span{{8, 12}},
			out:  []Span{{7, 17}},
		},
		{
			name: "disjoint spans stay disjoint",
			text: "aaa bbb ccc ddd",
			in:   []Span{{0, 3}, {12, 15}},
			out:  []Span{{0, 4}, {11, 15}},
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			got := Normalize(tc.text, tc.in)
			if !reflect.DeepEqual(got, tc.out) {
				t.Fatalf("Normalize(%q, %v) = %v, want %v", tc.text, tc.in, got, tc.out)
			}
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	texts := []struct {
		text string
		in   []Span
	}{
		{"this is fucking annoying", []Span{{8, 15}}},
		{"abcde fghi", []Span{{0, 4}, {6, 10}}},
		{"one two three four", []Span{{14, 18}, {0, 3}, {4, 7}}},
	}
	for _, tc := range texts {
		once := Normalize(tc.text, tc.in)
		twice := Normalize(tc.text, once)
		if !reflect.DeepEqual(once, twice) {
			t.Fatalf("Normalize not idempotent for %q: first %v, second %v", tc.text, once, twice)
		}
	}
}

func TestNormalize_Invariants(t *testing.T) {
	text := "the quick brown fox jumps over the lazy dog"
	in := []Span{{4, 9}, {10, 15}, {20, 25}, {8, 12}}
	got := Normalize(text, in)

	for i, sp := range got {
		if sp.End <= sp.Start {
			t.Fatalf("span %d not positive: %v", i, sp)
		}
		if sp.Start < 0 || sp.End > len(text) {
			t.Fatalf("span %d out of bounds: %v", i, sp)
		}
		if i > 0 && got[i-1].End >= sp.Start {
			t.Fatalf("spans %d and %d overlap: %v %v", i-1, i, got[i-1], sp)
		}
	}
}

func TestUnion(t *testing.T) {
	if got := Union([]Span{{0, 4}, {10, 15}}); got != 9 {
		t.Fatalf("Union = %d, want 9", got)
	}
	if got := Union(nil); got != 0 {
		t.Fatalf("Union(nil) = %d, want 0", got)
	}
}
