// Package repo persists moderation runs to Postgres.
package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"hushcut/internal/core/taxonomy"
	perr "hushcut/internal/platform/errors"
	"hushcut/internal/platform/store"
	"hushcut/internal/services/moderation/domain"

	"hushcut/internal/modkit/repokit"
)

type (
	pg     struct{ q repokit.Queryer }
	binder struct{}
)

// NewPG constructs a repo binder for Postgres
func NewPG() repokit.Binder[Storage] { return binder{} }

// Bind implements repokit.Binder
func (binder) Bind(q repokit.Queryer) Storage { return &pg{q: q} }

// Storage defines the moderation run repository
type Storage interface {
	InsertRun(ctx context.Context, res domain.ModerationResult) error
	GetRun(ctx context.Context, id string) (domain.ModerationResult, error)
}

// Runs wraps Storage behind a transaction runner so one finalized run lands
// atomically. It satisfies the service's RunStore
type Runs struct {
	db     repokit.TxRunner
	binder repokit.Binder[Storage]
}

// NewRuns constructs the transactional run store
func NewRuns(db repokit.TxRunner) *Runs {
	if db == nil {
		panic("moderation.Runs requires a non nil TxRunner")
	}
	return &Runs{db: db, binder: NewPG()}
}

// InsertRun writes the run and all its segments in one transaction
func (r *Runs) InsertRun(ctx context.Context, res domain.ModerationResult) error {
	return repokit.WithTx(ctx, r.db, func(q repokit.Queryer) error {
		return r.binder.Bind(q).InsertRun(ctx, res)
	})
}

// GetRun reads one run back
func (r *Runs) GetRun(ctx context.Context, id string) (domain.ModerationResult, error) {
	return r.binder.Bind(r.db).GetRun(ctx, id)
}

// InsertRun implements Storage
func (s *pg) InsertRun(ctx context.Context, res domain.ModerationResult) error {
	counts, err := json.Marshal(res.Summary.LabelCounts)
	if err != nil {
		return perr.Wrap(err, perr.ErrorCodeJSON, "marshal label counts")
	}

	const runSQL = `INSERT INTO moderation_runs
		(id, created_at, filename, mode, status, language, duration,
		 transcript, total_segments, flagged_segments, label_counts)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`
	if _, err := s.q.Exec(ctx, runSQL,
		res.ID, res.CreatedAt, res.Filename, string(res.Mode), string(res.Status),
		res.Language, res.Duration, res.Transcript,
		res.Summary.TotalSegments, res.Summary.FlaggedSegments, counts,
	); err != nil {
		return perr.FromPostgres(err, "insert moderation run")
	}

	if len(res.Segments) == 0 {
		return nil
	}

	flagged := make(map[int]struct{}, len(res.Summary.FlaggedIndexes))
	for _, idx := range res.Summary.FlaggedIndexes {
		flagged[idx] = struct{}{}
	}
	remediation := make(map[int]domain.RemediationRecord, len(res.Remediations))
	for _, rec := range res.Remediations {
		remediation[rec.SegmentIndex] = rec
	}

	var sb strings.Builder
	sb.WriteString(`INSERT INTO moderation_segments
		(run_id, idx, start_s, end_s, speaker_id, text, label, rationale,
		 severity, action, flagged, remediated, rewritten_text, was_rewritten,
		 remediation_error) VALUES `)

	args := make([]any, 0, len(res.Segments)*15)
	for i, sg := range res.Segments {
		if i > 0 {
			sb.WriteByte(',')
		}
		base := i*15 + 1
		fmt.Fprintf(&sb, "($%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d)",
			base, base+1, base+2, base+3, base+4, base+5, base+6, base+7,
			base+8, base+9, base+10, base+11, base+12, base+13, base+14)

		_, isFlagged := flagged[sg.Index]
		rec, remediated := remediation[sg.Index]
		args = append(args,
			res.ID, sg.Index, sg.Start, sg.End, sg.SpeakerID, sg.Text,
			string(sg.Classification.Label), sg.Classification.Rationale,
			sg.Severity, sg.Action, isFlagged, remediated,
			rec.RewrittenText, rec.WasRewritten, rec.Error,
		)
	}
	if _, err := s.q.Exec(ctx, sb.String(), args...); err != nil {
		return perr.FromPostgres(err, "insert moderation segments")
	}
	return nil
}

type runRow struct {
	ID              string    `db:"id"`
	CreatedAt       time.Time `db:"created_at"`
	Filename        string    `db:"filename"`
	Mode            string    `db:"mode"`
	Status          string    `db:"status"`
	Language        string    `db:"language"`
	Duration        float64   `db:"duration"`
	Transcript      string    `db:"transcript"`
	TotalSegments   int       `db:"total_segments"`
	FlaggedSegments int       `db:"flagged_segments"`
	LabelCounts     []byte    `db:"label_counts"`
}

type segmentRow struct {
	Idx              int     `db:"idx"`
	StartS           float64 `db:"start_s"`
	EndS             float64 `db:"end_s"`
	SpeakerID        string  `db:"speaker_id"`
	Text             string  `db:"text"`
	Label            string  `db:"label"`
	Rationale        string  `db:"rationale"`
	Severity         string  `db:"severity"`
	Action           string  `db:"action"`
	Flagged          bool    `db:"flagged"`
	Remediated       bool    `db:"remediated"`
	RewrittenText    string  `db:"rewritten_text"`
	WasRewritten     bool    `db:"was_rewritten"`
	RemediationError string  `db:"remediation_error"`
}

// GetRun implements Storage. Audio bytes are never persisted, so the
// returned result carries the report only
func (s *pg) GetRun(ctx context.Context, id string) (domain.ModerationResult, error) {
	run, err := store.StructByName[runRow](ctx, s.q, `
		SELECT id, created_at, filename, mode, status,
			language, duration, transcript, total_segments, flagged_segments,
			label_counts
		FROM moderation_runs WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, perr.ErrNotFound) {
			return domain.ModerationResult{}, perr.NotFoundf("moderation run %s", id)
		}
		return domain.ModerationResult{}, perr.FromPostgres(err, "read moderation run")
	}

	rows, err := store.StructsByName[segmentRow](ctx, s.q, `
		SELECT idx, start_s, end_s, speaker_id, text, label, rationale,
			severity, action, flagged, remediated, rewritten_text,
			was_rewritten, remediation_error
		FROM moderation_segments WHERE run_id = $1 ORDER BY idx`, id)
	if err != nil {
		return domain.ModerationResult{}, perr.FromPostgres(err, "read moderation segments")
	}

	var counts map[taxonomy.Label]int
	if len(run.LabelCounts) > 0 {
		if err := json.Unmarshal(run.LabelCounts, &counts); err != nil {
			return domain.ModerationResult{}, perr.Wrap(err, perr.ErrorCodeJSON, "unmarshal label counts")
		}
	}

	res := domain.ModerationResult{
		ID:         run.ID,
		CreatedAt:  run.CreatedAt,
		Filename:   run.Filename,
		Mode:       domain.Mode(run.Mode),
		Status:     domain.Status(run.Status),
		Transcript: run.Transcript,
		Language:   run.Language,
		Duration:   run.Duration,
		Summary: taxonomy.RunSummary{
			TotalSegments:   run.TotalSegments,
			FlaggedSegments: run.FlaggedSegments,
			LabelCounts:     counts,
		},
	}

	for _, row := range rows {
		sg := domain.SegmentReport{
			Segment: domain.Segment{
				Index:     row.Idx,
				Start:     row.StartS,
				End:       row.EndS,
				SpeakerID: row.SpeakerID,
				Text:      row.Text,
			},
			Classification: domain.Classification{
				Label:     taxonomy.Label(row.Label),
				Rationale: row.Rationale,
			},
			Severity: row.Severity,
			Action:   row.Action,
		}
		res.Segments = append(res.Segments, sg)

		if row.Flagged {
			res.Summary.FlaggedIndexes = append(res.Summary.FlaggedIndexes, row.Idx)
		}
		if row.Remediated {
			res.Remediations = append(res.Remediations, domain.RemediationRecord{
				SegmentIndex:  row.Idx,
				OriginalText:  row.Text,
				RewrittenText: row.RewrittenText,
				WasRewritten:  row.WasRewritten,
				Error:         row.RemediationError,
			})
		}
	}
	return res, nil
}
