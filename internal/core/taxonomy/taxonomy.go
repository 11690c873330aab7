// Package taxonomy owns the classification label set and run-level tallies.
package taxonomy

import "strings"

// Label is a classifier verdict for one segment.
// Unknown labels are carried verbatim through counts but never flagged
type Label string

// Canonical labels. BOTH denotes co-occurring HATE and EXTREMIST signal.
// UNCLEAR and UnclearASR are abstentions: recognized, never flagged
const (
	LabelNone       Label = "NONE"
	LabelProfanity  Label = "PROFANITY"
	LabelHate       Label = "HATE"
	LabelExtremist  Label = "EXTREMIST"
	LabelBoth       Label = "BOTH"
	LabelUnclear    Label = "UNCLEAR"
	LabelUnclearASR Label = "UNCLEAR_ASR"
)

// ParseLabel uppercases and trims s; anything outside the canonical set is
// returned as-is so unknown classifier output stays observable
func ParseLabel(s string) Label {
	l := Label(strings.ToUpper(strings.TrimSpace(s)))
	if l == "" {
		return LabelNone
	}
	return l
}

// Recognized reports whether l is one of the canonical labels
func Recognized(l Label) bool {
	switch l {
	case LabelNone, LabelProfanity, LabelHate, LabelExtremist, LabelBoth, LabelUnclear, LabelUnclearASR:
		return true
	}
	return false
}

// Severity buckets labels for report readability
func Severity(l Label) string {
	switch l {
	case LabelHate, LabelExtremist, LabelBoth:
		return "high"
	case LabelProfanity:
		return "medium"
	case LabelNone, LabelUnclear, LabelUnclearASR:
		return "none"
	}
	return "low"
}

// LabelSet is a set of labels used for flagged and removal membership checks
type LabelSet map[Label]struct{}

// NewLabelSet builds a set from labels
func NewLabelSet(labels ...Label) LabelSet {
	s := make(LabelSet, len(labels))
	for _, l := range labels {
		s[l] = struct{}{}
	}
	return s
}

// ParseLabelSet builds a set from raw strings, e.g. a config CSV
func ParseLabelSet(raw []string) LabelSet {
	s := make(LabelSet, len(raw))
	for _, r := range raw {
		if l := ParseLabel(r); l != LabelNone {
			s[l] = struct{}{}
		}
	}
	return s
}

// Has reports set membership
func (s LabelSet) Has(l Label) bool {
	_, ok := s[l]
	return ok
}

// DefaultFlagged is the default flagged-label set
func DefaultFlagged() LabelSet {
	return NewLabelSet(LabelProfanity, LabelHate, LabelExtremist, LabelBoth)
}

// DefaultRemoval is the default removal-label set; PROFANITY is opt-in
func DefaultRemoval() LabelSet {
	return NewLabelSet(LabelHate, LabelExtremist, LabelBoth)
}

// Verdict is the per-segment input to Aggregate: the parsed label and
// whether the normalizer produced at least one non-empty span
type Verdict struct {
	Index    int
	Label    Label
	HasSpans bool
}

// RunSummary tallies one moderation run
type RunSummary struct {
	TotalSegments   int           `json:"total_segments"`
	FlaggedSegments int           `json:"flagged_segments"`
	FlaggedIndexes  []int         `json:"flagged_indexes"`
	LabelCounts     map[Label]int `json:"label_counts"`
}

// Flagged reports whether a verdict counts as flagged under the set:
// membership is the primary signal, a localized span the secondary one.
// Unknown labels and abstentions are never flagged
func Flagged(v Verdict, flagged LabelSet) bool {
	if flagged.Has(v.Label) {
		return true
	}
	switch v.Label {
	case LabelProfanity, LabelHate, LabelExtremist, LabelBoth:
		return v.HasSpans
	}
	return false
}

// Aggregate computes the RunSummary over all segment verdicts.
// Every label is tallied, including NONE and unknown ones
func Aggregate(verdicts []Verdict, flagged LabelSet) RunSummary {
	sum := RunSummary{
		TotalSegments: len(verdicts),
		LabelCounts:   make(map[Label]int, 8),
	}
	for _, v := range verdicts {
		sum.LabelCounts[v.Label]++
		if Flagged(v, flagged) {
			sum.FlaggedSegments++
			sum.FlaggedIndexes = append(sum.FlaggedIndexes, v.Index)
		}
	}
	return sum
}
