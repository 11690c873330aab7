// Package policy decides, per segment, whether flagged content is kept or
// rewritten and resynthesized. Decisions are pure functions of their inputs
// so runs are reproducible.
package policy

import (
	"hushcut/internal/core/spanset"
	"hushcut/internal/core/taxonomy"
)

// Action is the remediation decision for one segment
type Action string

const (
	// ActionKeep leaves the segment and its audio untouched
	ActionKeep Action = "KEEP"
	// ActionRewriteResynth rewrites the text and resynthesizes the audio
	ActionRewriteResynth Action = "REWRITE_AND_RESYNTH"
)

// Config is the externally supplied policy surface
type Config struct {
	// Removal is the label set that triggers rewrite and resynthesis
	Removal taxonomy.LabelSet

	// WholeSegmentWhenUnlocalized redacts the full segment text when a
	// removal label arrives with zero localized spans
	WholeSegmentWhenUnlocalized bool

	// ProfanityDictionaryOnly routes PROFANITY through dictionary
	// substitution without full resynthesis
	ProfanityDictionaryOnly bool
}

// Default returns the default policy: removal set {HATE, EXTREMIST, BOTH},
// whole-segment redaction for unlocalized flags
func Default() Config {
	return Config{
		Removal:                     taxonomy.DefaultRemoval(),
		WholeSegmentWhenUnlocalized: true,
	}
}

// Decision is the outcome for one segment
type Decision struct {
	Action Action

	// Spans are the redaction targets handed to the rewriter. Covers the
	// whole text when the flag was unlocalized and policy says so
	Spans []spanset.Span

	// DictionaryOnly tells the orchestrator to skip resynthesis and use
	// dictionary substitution for this segment
	DictionaryOnly bool
}

// Decide maps a segment's label and normalized spans to a Decision.
// Pure: identical inputs always yield the identical decision
func Decide(text string, label taxonomy.Label, spans []spanset.Span, cfg Config) Decision {
	if !cfg.Removal.Has(label) {
		return Decision{Action: ActionKeep}
	}

	d := Decision{
		Action: ActionRewriteResynth,
		Spans:  spans,
	}
	if len(spans) == 0 && cfg.WholeSegmentWhenUnlocalized && len(text) > 0 {
		d.Spans = []spanset.Span{{Start: 0, End: len(text)}}
	}
	if label == taxonomy.LabelProfanity && cfg.ProfanityDictionaryOnly {
		d.DictionaryOnly = true
	}
	return d
}
