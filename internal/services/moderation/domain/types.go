// Package domain holds the moderation pipeline's data model and the ports
// the pipeline consumes its collaborators through.
package domain

import (
	"time"

	"hushcut/internal/core/spanset"
	"hushcut/internal/core/taxonomy"
)

// Mode selects how far the pipeline runs
type Mode string

const (
	// ModeClassify stops after classification and reporting
	ModeClassify Mode = "classify"
	// ModeRedact runs the full rewrite and resynthesis pipeline
	ModeRedact Mode = "redact"
)

// Status summarizes the run outcome
type Status string

const (
	// StatusClean means nothing was flagged
	StatusClean Status = "clean"
	// StatusSuccess means every remediation succeeded
	StatusSuccess Status = "success"
	// StatusPartial means at least one remediation failed
	StatusPartial Status = "partial"
)

// Segment is one time-bounded, speaker-attributed unit of transcribed
// speech. Immutable once created; referenced by Index throughout a run
type Segment struct {
	Index     int     `json:"index"`
	Start     float64 `json:"start"`
	End       float64 `json:"end"`
	SpeakerID string  `json:"speaker_id,omitempty"`
	Text      string  `json:"text"`
}

// ClassificationSpan is a raw character range flagged by the classifier,
// offsets into the owning segment's text
type ClassificationSpan struct {
	Quote     string `json:"quote"`
	CharStart int    `json:"char_start"`
	CharEnd   int    `json:"char_end"`
}

// Classification is the classifier's verdict for one segment
type Classification struct {
	Label     taxonomy.Label       `json:"label"`
	Rationale string               `json:"rationale,omitempty"`
	Spans     []ClassificationSpan `json:"spans,omitempty"`
}

// SpeakerTurn is one diarized stretch of speech by a single speaker
type SpeakerTurn struct {
	Speaker string
	Start   float64
	End     float64
}

// Transcript is the ASR output the pipeline starts from
type Transcript struct {
	Text     string
	Language string
	Duration float64
	Segments []Segment
}

// AudioBlob is an opaque rendered audio buffer
type AudioBlob struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Bytes       []byte `json:"-"`
}

// RemediationRecord captures the outcome of one segment's rewrite and
// resynthesis attempt. Exactly one record exists per segment the policy
// selected; untouched segments produce none
type RemediationRecord struct {
	SegmentIndex   int        `json:"segment_index"`
	OriginalText   string     `json:"original_text"`
	RewrittenText  string     `json:"rewritten_text"`
	WasRewritten   bool       `json:"was_rewritten"`
	GeneratedAudio *AudioBlob `json:"generated_audio,omitempty"`
	Error          string     `json:"error,omitempty"`
}

// SegmentReport is one segment with its classification and redaction targets
type SegmentReport struct {
	Segment
	Classification  Classification `json:"classification"`
	NormalizedSpans []spanset.Span `json:"normalized_spans,omitempty"`
	Severity        string         `json:"severity"`
	Action          string         `json:"action"`
}

// ModerationResult is the finalized output of one run
type ModerationResult struct {
	ID           string              `json:"id"`
	CreatedAt    time.Time           `json:"created_at"`
	Filename     string              `json:"filename"`
	Mode         Mode                `json:"mode"`
	Status       Status              `json:"status"`
	Transcript   string              `json:"transcript"`
	Language     string              `json:"language"`
	Duration     float64             `json:"duration"`
	Segments     []SegmentReport     `json:"segments"`
	Summary      taxonomy.RunSummary `json:"summary"`
	Remediations []RemediationRecord `json:"remediations,omitempty"`
	Audio        *AudioBlob          `json:"audio,omitempty"`
}
