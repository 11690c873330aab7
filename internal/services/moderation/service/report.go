package service

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"hushcut/internal/core/policy"
	"hushcut/internal/core/spanset"
	"hushcut/internal/core/taxonomy"
	"hushcut/internal/services/moderation/domain"
)

// buildResult is the report builder: pure aggregation of everything the
// pipeline produced, no decision logic
func buildResult(
	in domain.ModerateInput,
	tr domain.Transcript,
	segs []domain.Segment,
	cls []domain.Classification,
	norm [][]spanset.Span,
	decisions []policy.Decision,
	summary taxonomy.RunSummary,
	records []domain.RemediationRecord,
	sanitized *domain.AudioBlob,
) domain.ModerationResult {
	reports := make([]domain.SegmentReport, len(segs))
	for i, sg := range segs {
		reports[i] = domain.SegmentReport{
			Segment:         sg,
			Classification:  cls[i],
			NormalizedSpans: norm[i],
			Severity:        taxonomy.Severity(cls[i].Label),
			Action:          string(decisions[i].Action),
		}
	}

	sort.Slice(records, func(a, b int) bool {
		return records[a].SegmentIndex < records[b].SegmentIndex
	})

	return domain.ModerationResult{
		ID:           uuid.NewString(),
		CreatedAt:    time.Now().UTC(),
		Filename:     in.Filename,
		Mode:         in.Mode,
		Status:       runStatus(summary, records),
		Transcript:   tr.Text,
		Language:     tr.Language,
		Duration:     tr.Duration,
		Segments:     reports,
		Summary:      summary,
		Remediations: records,
		Audio:        sanitized,
	}
}

// runStatus distinguishes fully clean input from successful and degraded
// remediation so callers can tell redacted output from untouched output
func runStatus(summary taxonomy.RunSummary, records []domain.RemediationRecord) domain.Status {
	if summary.FlaggedSegments == 0 && len(records) == 0 {
		return domain.StatusClean
	}
	for _, r := range records {
		if r.Error != "" {
			return domain.StatusPartial
		}
	}
	return domain.StatusSuccess
}
