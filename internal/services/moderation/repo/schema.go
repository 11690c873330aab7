package repo

import (
	"context"

	"hushcut/internal/modkit/repokit"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS moderation_runs (
		id               uuid PRIMARY KEY,
		created_at       timestamptz NOT NULL,
		filename         text NOT NULL,
		mode             text NOT NULL,
		status           text NOT NULL,
		language         text NOT NULL DEFAULT '',
		duration         double precision NOT NULL DEFAULT 0,
		transcript       text NOT NULL DEFAULT '',
		total_segments   integer NOT NULL DEFAULT 0,
		flagged_segments integer NOT NULL DEFAULT 0,
		label_counts     jsonb
	)`,
	`CREATE TABLE IF NOT EXISTS moderation_segments (
		run_id            uuid NOT NULL REFERENCES moderation_runs(id) ON DELETE CASCADE,
		idx               integer NOT NULL,
		start_s           double precision NOT NULL,
		end_s             double precision NOT NULL,
		speaker_id        text NOT NULL DEFAULT '',
		text              text NOT NULL,
		label             text NOT NULL,
		rationale         text NOT NULL DEFAULT '',
		severity          text NOT NULL DEFAULT '',
		action            text NOT NULL,
		flagged           boolean NOT NULL DEFAULT false,
		remediated        boolean NOT NULL DEFAULT false,
		rewritten_text    text NOT NULL DEFAULT '',
		was_rewritten     boolean NOT NULL DEFAULT false,
		remediation_error text NOT NULL DEFAULT '',
		PRIMARY KEY (run_id, idx)
	)`,
	`CREATE INDEX IF NOT EXISTS moderation_runs_created_at_idx
		ON moderation_runs (created_at DESC)`,
}

// EnsureSchema creates the run tables when they do not exist. The service
// owns its schema, there is no external migration step
func EnsureSchema(ctx context.Context, db repokit.TxRunner) error {
	for _, stmt := range schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
