package policy

import (
	"reflect"
	"testing"

	"hushcut/internal/core/spanset"
	"hushcut/internal/core/taxonomy"
)

func TestDecide_Table(t *testing.T) {
	def := Default()

	tests := []struct {
		name  string
		text  string
		label taxonomy.Label
		spans []spanset.Span
		cfg   Config
		want  Decision
	}{
		{
			name:  "profanity kept under default removal set",
			text:  "this is fucking annoying",
			label: taxonomy.LabelProfanity,
			spans: []spanset.Span{{Start: 7, End: 16}},
			cfg:   def,
			want:  Decision{Action: ActionKeep},
		},
		{
			name:  "hate rewrites",
			text:  "I hate those people",
			label: taxonomy.LabelHate,
			spans: []spanset.Span{{Start: 1, End: 7}},
			cfg:   def,
			want:  Decision{Action: ActionRewriteResynth, Spans: []spanset.Span{{Start: 1, End: 7}}},
		},
		{
			name:  "extremist rewrites",
			text:  "some text",
			label: taxonomy.LabelExtremist,
			spans: []spanset.Span{{Start: 0, End: 4}},
			cfg:   def,
			want:  Decision{Action: ActionRewriteResynth, Spans: []spanset.Span{{Start: 0, End: 4}}},
		},
		{
			name:  "unlocalized flag covers whole segment",
			text:  "bad segment",
			label: taxonomy.LabelBoth,
			spans: nil,
			cfg:   def,
			want:  Decision{Action: ActionRewriteResynth, Spans: []spanset.Span{{Start: 0, End: 11}}},
		},
		{
			name:  "unlocalized flag without whole segment policy",
			text:  "bad segment",
			label: taxonomy.LabelBoth,
			spans: nil,
			cfg:   Config{Removal: taxonomy.DefaultRemoval()},
			want:  Decision{Action: ActionRewriteResynth},
		},
		{
			name:  "none keeps",
			text:  "fine",
			label: taxonomy.LabelNone,
			spans: nil,
			cfg:   def,
			want:  Decision{Action: ActionKeep},
		},
		{
			name:  "unknown label keeps",
			text:  "whatever",
			label: taxonomy.Label("SARCASM"),
			spans: []spanset.Span{{Start: 0, End: 8}},
			cfg:   def,
			want:  Decision{Action: ActionKeep},
		},
		{
			name:  "profanity in removal set rewrites",
			text:  "swear here",
			label: taxonomy.LabelProfanity,
			spans: []spanset.Span{{Start: 0, End: 5}},
			cfg: Config{
				Removal: taxonomy.NewLabelSet(taxonomy.LabelProfanity, taxonomy.LabelHate),
			},
			want: Decision{Action: ActionRewriteResynth, Spans: []spanset.Span{{Start: 0, End: 5}}},
		},
		{
			name:  "profanity dictionary only",
			text:  "swear here",
			label: taxonomy.LabelProfanity,
			spans: []spanset.Span{{Start: 0, End: 5}},
			cfg: Config{
				Removal:                 taxonomy.NewLabelSet(taxonomy.LabelProfanity),
				ProfanityDictionaryOnly: true,
			},
			want: Decision{
				Action:         ActionRewriteResynth,
				Spans:          []spanset.Span{{Start: 0, End: 5}},
				DictionaryOnly: true,
			},
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			got := Decide(tc.text, tc.label, tc.spans, tc.cfg)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("Decide = %+v, want %+v", got, tc.want)
			}
		})
	}
}

// Decide must be pure: repeated calls with identical inputs agree
func TestDecide_Deterministic(t *testing.T) {
	cfg := Default()
	spans := []spanset.Span{{Start: 2, End: 6}}
	first := Decide("I hate those people", taxonomy.LabelHate, spans, cfg)
	for i := 0; i < 10; i++ {
		again := Decide("I hate those people", taxonomy.LabelHate, spans, cfg)
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("call %d differed: %+v vs %+v", i, first, again)
		}
	}
}

// every removal label maps to rewrite, every other recognized label to keep
func TestDecide_RemovalMembership(t *testing.T) {
	cfg := Default()
	all := []taxonomy.Label{
		taxonomy.LabelNone, taxonomy.LabelProfanity, taxonomy.LabelHate,
		taxonomy.LabelExtremist, taxonomy.LabelBoth, taxonomy.LabelUnclear,
		taxonomy.LabelUnclearASR,
	}
	for _, l := range all {
		got := Decide("text", l, nil, cfg).Action
		want := ActionKeep
		if cfg.Removal.Has(l) {
			want = ActionRewriteResynth
		}
		if got != want {
			t.Fatalf("label %q: action %q, want %q", l, got, want)
		}
	}
}
