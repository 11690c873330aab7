package service

import (
	"context"

	"golang.org/x/sync/errgroup"

	"hushcut/internal/core/policy"
	"hushcut/internal/core/timeline"
	perr "hushcut/internal/platform/errors"
	"hushcut/internal/services/moderation/domain"
)

// remediate rewrites and resynthesizes every segment the policy selected.
// Segments run concurrently on a bounded pool and fail independently; a
// context expiry marks the not-yet-processed remainder as failed so the
// assembler excises them
func (s *Svc) remediate(
	ctx context.Context,
	segs []domain.Segment,
	decisions []policy.Decision,
	format timeline.Format,
	pcm []byte,
) []domain.RemediationRecord {
	selected := make([]int, 0, len(segs))
	for i, d := range decisions {
		if d.Action == policy.ActionRewriteResynth {
			selected = append(selected, i)
		}
	}
	if len(selected) == 0 {
		return nil
	}

	firstBySpeaker := referenceWindows(segs)

	records := make([]domain.RemediationRecord, len(selected))
	var g errgroup.Group
	g.SetLimit(s.cfg.RemediateWorkers)
	for slot, idx := range selected {
		slot, idx := slot, idx
		g.Go(func() error {
			records[slot] = s.remediateOne(ctx, segs[idx], decisions[idx], format, pcm, firstBySpeaker)
			return nil
		})
	}
	_ = g.Wait()
	return records
}

func (s *Svc) remediateOne(
	ctx context.Context,
	seg domain.Segment,
	dec policy.Decision,
	format timeline.Format,
	pcm []byte,
	firstBySpeaker map[string][2]float64,
) domain.RemediationRecord {
	rec := domain.RemediationRecord{
		SegmentIndex:  seg.Index,
		OriginalText:  seg.Text,
		RewrittenText: seg.Text,
	}

	if err := ctx.Err(); err != nil {
		rec.Error = "remediation not attempted: " + err.Error()
		return rec
	}

	if dec.DictionaryOnly {
		// text-only path: rewrite locally, leave the audio untouched
		rewritten := s.rewriter.RewriteLocal(seg.Text)
		rec.RewrittenText = rewritten
		rec.WasRewritten = rewritten != seg.Text
		return rec
	}

	rewritten, err := s.rewriter.Rewrite(ctx, seg.Text)
	if err != nil {
		s.log.Warn().Err(err).Int("segment", seg.Index).Msg("rewrite failed")
		rec.Error = err.Error()
		return rec
	}

	rec.RewrittenText = rewritten
	if rewritten == seg.Text {
		// nothing changed, nothing to resynthesize
		return rec
	}
	rec.WasRewritten = true

	audio, err := s.resynthesize(ctx, seg, rewritten, format, pcm, firstBySpeaker)
	if err != nil {
		s.log.Warn().Err(err).Int("segment", seg.Index).Str("speaker", seg.SpeakerID).Msg("synthesis failed")
		rec.Error = err.Error()
		return rec
	}
	rec.GeneratedAudio = audio
	return rec
}

func (s *Svc) resynthesize(
	ctx context.Context,
	seg domain.Segment,
	text string,
	format timeline.Format,
	pcm []byte,
	firstBySpeaker map[string][2]float64,
) (*domain.AudioBlob, error) {
	if seg.SpeakerID == "" {
		return nil, perr.Synthesisf("segment %d has no attributed speaker", seg.Index)
	}

	ref, ok := firstBySpeaker[seg.SpeakerID]
	if !ok {
		return nil, perr.Synthesisf("no reference window for speaker %s", seg.SpeakerID)
	}

	voiceID, err := s.synth.VoiceFor(ctx, seg.SpeakerID, func() ([]byte, error) {
		clip := timeline.Slice(format, pcm, ref[0], ref[1])
		if len(clip) == 0 {
			return nil, perr.Synthesisf("empty reference clip for speaker %s", seg.SpeakerID)
		}
		return timeline.EncodeWAV(format, clip), nil
	})
	if err != nil {
		return nil, err
	}

	raw, err := s.synth.Synthesize(ctx, voiceID, text)
	if err != nil {
		return nil, err
	}
	if s.cfg.SynthSampleRate > 0 && s.cfg.SynthSampleRate != format.SampleRate {
		s.log.Warn().
			Int("segment", seg.Index).
			Int("synth_rate", s.cfg.SynthSampleRate).
			Int("track_rate", format.SampleRate).
			Msg("synthesized audio sample rate differs from the source track")
	}
	if ba := format.BlockAlign(); ba > 0 && len(raw)%ba != 0 {
		s.log.Warn().
			Int("segment", seg.Index).
			Int("bytes", len(raw)).
			Int("block_align", ba).
			Msg("trimming replacement audio to a frame boundary")
		raw = raw[:len(raw)-len(raw)%ba]
	}
	if len(raw) == 0 {
		return nil, perr.Synthesisf("replacement audio for segment %d is empty", seg.Index)
	}
	return &domain.AudioBlob{
		Filename:    "segment.pcm",
		ContentType: "audio/pcm",
		Bytes:       raw,
	}, nil
}

// referenceWindows picks each speaker's longest segment as the clone
// reference so every synthesis call for that speaker shares one sample
func referenceWindows(segs []domain.Segment) map[string][2]float64 {
	out := make(map[string][2]float64)
	for _, sg := range segs {
		if sg.SpeakerID == "" {
			continue
		}
		cur, ok := out[sg.SpeakerID]
		if !ok || sg.End-sg.Start > cur[1]-cur[0] {
			out[sg.SpeakerID] = [2]float64{sg.Start, sg.End}
		}
	}
	return out
}

// assemble stitches the sanitized track from originals, replacements, and
// silence fallbacks, in segment start order
func (s *Svc) assemble(
	filename string,
	format timeline.Format,
	pcm []byte,
	segs []domain.Segment,
	decisions []policy.Decision,
	records []domain.RemediationRecord,
) (*domain.AudioBlob, error) {
	byIndex := make(map[int]domain.RemediationRecord, len(records))
	for _, r := range records {
		byIndex[r.SegmentIndex] = r
	}

	excerpts := make([]timeline.Excerpt, 0, len(segs))
	for i, sg := range segs {
		ex := timeline.Excerpt{Index: sg.Index, Start: sg.Start, End: sg.End, Source: timeline.SourceOriginal}
		if decisions[i].Action == policy.ActionRewriteResynth && !decisions[i].DictionaryOnly {
			// failed remediation excises rather than leaking the original
			ex.Source = timeline.SourceSilence
			if r, ok := byIndex[sg.Index]; ok && r.GeneratedAudio != nil {
				ex.Source = timeline.SourceReplacement
				ex.Replacement = r.GeneratedAudio.Bytes
			}
		}
		excerpts = append(excerpts, ex)
	}

	out, err := timeline.Assemble(format, pcm, excerpts)
	if err != nil {
		return nil, err
	}
	return &domain.AudioBlob{
		Filename:    sanitizedName(filename),
		ContentType: "audio/wav",
		Bytes:       timeline.EncodeWAV(format, out),
	}, nil
}

func sanitizedName(filename string) string {
	if filename == "" {
		return "sanitized.wav"
	}
	for i := len(filename) - 1; i >= 0; i-- {
		if filename[i] == '.' {
			return filename[:i] + ".sanitized.wav"
		}
	}
	return filename + ".sanitized.wav"
}
