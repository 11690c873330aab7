//go:build integration_pg
// +build integration_pg

package repo

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"hushcut/internal/core/policy"
	"hushcut/internal/core/taxonomy"
	perr "hushcut/internal/platform/errors"
	"hushcut/internal/platform/store"
	"hushcut/internal/services/moderation/domain"
)

func startPostgres(t *testing.T) (dsn string, stop func()) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)

	req := tc.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "postgres",
			"POSTGRES_PASSWORD": "postgres",
			"POSTGRES_DB":       "postgres",
		},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort("5432/tcp"),
			wait.ForLog("database system is ready to accept connections"),
		).WithDeadline(2 * time.Minute),
	}
	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		cancel()
		t.Fatalf("failed to start postgres container: %v", err)
	}

	host, err := c.Host(ctx)
	if err != nil {
		_ = c.Terminate(context.Background())
		cancel()
		t.Fatalf("failed to get container host: %v", err)
	}
	mapped, err := c.MappedPort(ctx, "5432/tcp")
	if err != nil {
		_ = c.Terminate(context.Background())
		cancel()
		t.Fatalf("failed to get mapped port: %v", err)
	}

	dsn = fmt.Sprintf("postgres://postgres:postgres@%s:%s/postgres?sslmode=disable", host, mapped.Port())
	stop = func() {
		_ = c.Terminate(context.Background())
		cancel()
	}
	return dsn, stop
}

func sampleResult() domain.ModerationResult {
	return domain.ModerationResult{
		ID:         uuid.NewString(),
		CreatedAt:  time.Now().UTC().Truncate(time.Microsecond),
		Filename:   "meeting.wav",
		Mode:       domain.ModeRedact,
		Status:     domain.StatusSuccess,
		Transcript: "hello there I hate those people",
		Language:   "en",
		Duration:   4,
		Segments: []domain.SegmentReport{
			{
				Segment: domain.Segment{Index: 0, Start: 0, End: 1, SpeakerID: "spk_0", Text: "hello there"},
				Classification: domain.Classification{
					Label: taxonomy.LabelNone,
				},
				Severity: taxonomy.Severity(taxonomy.LabelNone),
				Action:   string(policy.ActionKeep),
			},
			{
				Segment: domain.Segment{Index: 1, Start: 2, End: 3, SpeakerID: "spk_1", Text: "I hate those people"},
				Classification: domain.Classification{
					Label:     taxonomy.LabelHate,
					Rationale: "targets a group",
				},
				Severity: taxonomy.Severity(taxonomy.LabelHate),
				Action:   string(policy.ActionRewriteResynth),
			},
		},
		Summary: taxonomy.RunSummary{
			TotalSegments:   2,
			FlaggedSegments: 1,
			FlaggedIndexes:  []int{1},
			LabelCounts: map[taxonomy.Label]int{
				taxonomy.LabelNone: 1,
				taxonomy.LabelHate: 1,
			},
		},
		Remediations: []domain.RemediationRecord{
			{
				SegmentIndex:  1,
				OriginalText:  "I hate those people",
				RewrittenText: "I disagree with those people",
				WasRewritten:  true,
			},
		},
	}
}

func TestRuns_RoundTrip_Integration(t *testing.T) {
	dsn, stop := startPostgres(t)
	defer stop()

	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	st, err := store.Open(ctx, store.Config{
		AppName: "hushcut-repo-integration",
		PG:      store.PGConfig{Enabled: true, URL: dsn, MaxConns: 2},
	})
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	defer func() { _ = st.Close(context.Background()) }()

	if err := EnsureSchema(ctx, st.PG); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	// second run must be a no-op
	if err := EnsureSchema(ctx, st.PG); err != nil {
		t.Fatalf("EnsureSchema rerun: %v", err)
	}

	runs := NewRuns(st.PG)
	want := sampleResult()

	if err := runs.InsertRun(ctx, want); err != nil {
		t.Fatalf("InsertRun: %v", err)
	}

	got, err := runs.GetRun(ctx, want.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}

	if got.ID != want.ID || got.Status != want.Status || got.Mode != want.Mode {
		t.Errorf("run header = %s/%s/%s, want %s/%s/%s",
			got.ID, got.Status, got.Mode, want.ID, want.Status, want.Mode)
	}
	if got.Transcript != want.Transcript || got.Language != "en" {
		t.Errorf("transcript round trip mismatch: %+v", got)
	}
	if len(got.Segments) != 2 {
		t.Fatalf("segments = %d, want 2", len(got.Segments))
	}
	if got.Segments[1].Classification.Label != taxonomy.LabelHate {
		t.Errorf("segment 1 label = %q", got.Segments[1].Classification.Label)
	}
	if got.Segments[1].SpeakerID != "spk_1" {
		t.Errorf("segment 1 speaker = %q", got.Segments[1].SpeakerID)
	}
	if got.Summary.FlaggedSegments != 1 || got.Summary.LabelCounts[taxonomy.LabelHate] != 1 {
		t.Errorf("summary round trip mismatch: %+v", got.Summary)
	}
	if len(got.Remediations) != 1 {
		t.Fatalf("remediations = %d, want 1", len(got.Remediations))
	}
	rec := got.Remediations[0]
	if rec.SegmentIndex != 1 || !rec.WasRewritten || rec.RewrittenText != "I disagree with those people" {
		t.Errorf("remediation round trip mismatch: %+v", rec)
	}

	// unknown id surfaces as not-found, not an empty result
	if _, err := runs.GetRun(ctx, uuid.NewString()); !perr.IsCode(err, perr.ErrorCodeNotFound) {
		t.Errorf("GetRun on unknown id = %v, want not-found", err)
	}

	// a classify run never remediated anything; readback must not invent
	// records, and a flagged KEEP segment must keep its flagged index
	classifyRun := domain.ModerationResult{
		ID:         uuid.NewString(),
		CreatedAt:  time.Now().UTC().Truncate(time.Microsecond),
		Filename:   "meeting.mp3",
		Mode:       domain.ModeClassify,
		Status:     domain.StatusSuccess,
		Transcript: "this is fucking annoying",
		Language:   "en",
		Duration:   2,
		Segments: []domain.SegmentReport{
			{
				Segment: domain.Segment{Index: 0, Start: 0, End: 2, SpeakerID: "spk_0", Text: "this is fucking annoying"},
				Classification: domain.Classification{
					Label: taxonomy.LabelProfanity,
				},
				Severity: taxonomy.Severity(taxonomy.LabelProfanity),
				Action:   string(policy.ActionKeep),
			},
		},
		Summary: taxonomy.RunSummary{
			TotalSegments:   1,
			FlaggedSegments: 1,
			FlaggedIndexes:  []int{0},
			LabelCounts:     map[taxonomy.Label]int{taxonomy.LabelProfanity: 1},
		},
	}
	if err := runs.InsertRun(ctx, classifyRun); err != nil {
		t.Fatalf("InsertRun classify run: %v", err)
	}
	back, err := runs.GetRun(ctx, classifyRun.ID)
	if err != nil {
		t.Fatalf("GetRun classify run: %v", err)
	}
	if len(back.Remediations) != 0 {
		t.Errorf("classify run readback invented %d remediation records", len(back.Remediations))
	}
	if len(back.Summary.FlaggedIndexes) != 1 || back.Summary.FlaggedIndexes[0] != 0 {
		t.Errorf("flagged KEEP segment lost on readback: %v", back.Summary.FlaggedIndexes)
	}
	if back.Summary.FlaggedSegments != 1 {
		t.Errorf("flagged_segments = %d, want 1", back.Summary.FlaggedSegments)
	}
}
