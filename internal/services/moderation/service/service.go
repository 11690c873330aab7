// Package service contains the moderation pipeline: transcription,
// diarization, per-segment classification, policy decisions, rewrite and
// resynthesis, and assembly of the sanitized track.
package service

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"hushcut/internal/core/policy"
	"hushcut/internal/core/spanset"
	"hushcut/internal/core/taxonomy"
	"hushcut/internal/core/timeline"
	perr "hushcut/internal/platform/errors"
	"hushcut/internal/platform/logger"
	"hushcut/internal/services/moderation/domain"
)

// Service defines the moderation service contract
type Service interface {
	domain.ModeratorPort
	domain.RunReaderPort
}

// Config tunes the pipeline
type Config struct {
	// Flagged is the label set counted as flagged in the summary
	Flagged taxonomy.LabelSet

	// Policy drives per-segment KEEP versus REWRITE_AND_RESYNTH decisions
	Policy policy.Config

	// ClassifyWorkers bounds the classification fan-out
	ClassifyWorkers int

	// RemediateWorkers bounds the rewrite and resynthesis pool
	RemediateWorkers int

	// SynthSampleRate is the sample rate of replacement audio when known.
	// Zero skips the mismatch warning against the source track
	SynthSampleRate int

	// JobTimeout caps one run end to end. Zero means no cap beyond the
	// caller's context
	JobTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Flagged == nil {
		c.Flagged = taxonomy.DefaultFlagged()
	}
	if c.Policy.Removal == nil {
		c.Policy = policy.Default()
	}
	if c.ClassifyWorkers <= 0 {
		c.ClassifyWorkers = 4
	}
	if c.RemediateWorkers <= 0 {
		c.RemediateWorkers = 4
	}
	return c
}

// Svc implements Service
type Svc struct {
	cfg Config
	log logger.Logger

	asr        domain.TranscriberPort
	diarizer   domain.DiarizerPort
	classifier domain.ClassifierPort
	rewriter   domain.RewriterPort
	synth      domain.SynthesizerPort

	runs RunStore
}

// RunStore persists finalized runs. Nil disables persistence
type RunStore interface {
	InsertRun(ctx context.Context, res domain.ModerationResult) error
	GetRun(ctx context.Context, id string) (domain.ModerationResult, error)
}

// New wires a moderation service from its collaborators
func New(
	cfg Config,
	asr domain.TranscriberPort,
	diarizer domain.DiarizerPort,
	classifier domain.ClassifierPort,
	rewriter domain.RewriterPort,
	synth domain.SynthesizerPort,
	runs RunStore,
) *Svc {
	if asr == nil || classifier == nil {
		panic("moderation.Service requires transcription and classification ports")
	}
	return &Svc{
		cfg:        cfg.withDefaults(),
		log:        *logger.Named("moderation"),
		asr:        asr,
		diarizer:   diarizer,
		classifier: classifier,
		rewriter:   rewriter,
		synth:      synth,
		runs:       runs,
	}
}

// Moderate runs the full pipeline for one uploaded recording
func (s *Svc) Moderate(ctx context.Context, in domain.ModerateInput) (domain.ModerationResult, error) {
	if in.Mode == "" {
		in.Mode = domain.ModeRedact
	}
	if in.Mode != domain.ModeClassify && in.Mode != domain.ModeRedact {
		return domain.ModerationResult{}, perr.InvalidArgf("unknown mode %q", in.Mode)
	}
	if len(in.Audio) == 0 {
		return domain.ModerationResult{}, perr.InvalidArgf("empty audio upload")
	}

	if s.cfg.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.JobTimeout)
		defer cancel()
	}

	// Redaction stitches PCM, so the upload must decode up front
	var (
		format timeline.Format
		pcm    []byte
	)
	if in.Mode == domain.ModeRedact {
		if s.rewriter == nil || s.synth == nil {
			return domain.ModerationResult{}, perr.Configf("redact mode requires rewrite and synthesis collaborators")
		}
		f, p, err := timeline.DecodeWAV(in.Audio)
		if err != nil {
			return domain.ModerationResult{}, perr.UnsupportedMediaf("redact mode needs PCM WAV input: %v", err)
		}
		format, pcm = f, p
	}

	// Transcription and diarization are prerequisites: nothing downstream
	// exists without them, so their failure fails the job
	tr, err := s.asr.Transcribe(ctx, in.Filename, in.Audio, in.Language)
	if err != nil {
		return domain.ModerationResult{}, err
	}
	segs := tr.Segments

	if s.diarizer != nil && len(segs) > 0 {
		windows := make([][2]float64, len(segs))
		for i, sg := range segs {
			windows[i] = [2]float64{sg.Start, sg.End}
		}
		speakers, err := s.diarizer.AssignSpeakers(ctx, in.Audio, windows)
		if err != nil {
			return domain.ModerationResult{}, err
		}
		for i := range segs {
			segs[i].SpeakerID = speakers[i]
		}
	}

	cls := s.classifyAll(ctx, segs)

	norm := make([][]spanset.Span, len(segs))
	verdicts := make([]taxonomy.Verdict, len(segs))
	decisions := make([]policy.Decision, len(segs))
	for i, sg := range segs {
		raw := make([]spanset.Span, 0, len(cls[i].Spans))
		for _, sp := range cls[i].Spans {
			raw = append(raw, spanset.Span{Start: sp.CharStart, End: sp.CharEnd})
		}
		norm[i] = spanset.Normalize(sg.Text, raw)
		verdicts[i] = taxonomy.Verdict{Index: sg.Index, Label: cls[i].Label, HasSpans: len(norm[i]) > 0}
		decisions[i] = policy.Decide(sg.Text, cls[i].Label, norm[i], s.cfg.Policy)
	}
	summary := taxonomy.Aggregate(verdicts, s.cfg.Flagged)

	var records []domain.RemediationRecord
	var sanitized *domain.AudioBlob
	if in.Mode == domain.ModeRedact {
		records = s.remediate(ctx, segs, decisions, format, pcm)
		sanitized, err = s.assemble(in.Filename, format, pcm, segs, decisions, records)
		if err != nil {
			return domain.ModerationResult{}, err
		}
	}

	res := buildResult(in, tr, segs, cls, norm, decisions, summary, records, sanitized)

	if s.runs != nil {
		if err := s.runs.InsertRun(ctx, res); err != nil {
			s.log.Error().Err(err).Str("run_id", res.ID).Msg("persist moderation run")
		}
	}

	s.log.Info().
		Str("run_id", res.ID).
		Str("mode", string(res.Mode)).
		Str("status", string(res.Status)).
		Int("segments", summary.TotalSegments).
		Int("flagged", summary.FlaggedSegments).
		Msg("moderation run finished")
	return res, nil
}

// GetRun reads a persisted run back, without audio
func (s *Svc) GetRun(ctx context.Context, id string) (domain.ModerationResult, error) {
	if s.runs == nil {
		return domain.ModerationResult{}, perr.NotFoundf("run persistence disabled")
	}
	return s.runs.GetRun(ctx, id)
}

// classifyAll fans classification out over a bounded pool. Classifier
// failure for one segment abstains that segment instead of failing the run
func (s *Svc) classifyAll(ctx context.Context, segs []domain.Segment) []domain.Classification {
	cls := make([]domain.Classification, len(segs))

	var g errgroup.Group
	g.SetLimit(s.cfg.ClassifyWorkers)
	for i := range segs {
		i := i
		g.Go(func() error {
			c, err := s.classifier.Classify(ctx, segs[i].Text)
			if err != nil {
				s.log.Warn().Err(err).Int("segment", segs[i].Index).Msg("classification failed, abstaining")
				c = domain.Classification{
					Label:     taxonomy.LabelUnclear,
					Rationale: "classifier unavailable: " + err.Error(),
				}
			}
			cls[i] = c
			return nil
		})
	}
	_ = g.Wait()
	return cls
}
