package module

import (
	"context"
	"strconv"
	"strings"

	"hushcut/internal/adapters/asr"
	"hushcut/internal/adapters/classify"
	"hushcut/internal/adapters/diarize"
	"hushcut/internal/adapters/rewrite"
	"hushcut/internal/adapters/synth"
	"hushcut/internal/services/moderation/domain"
)

// The resolvers adapt the concrete collaborator clients to the narrow ports
// declared in domain; the pipeline never sees the clients directly.

// pcmRate extracts the sample rate from a raw-PCM output format such as
// "pcm_44100". Compressed formats yield zero, the rate is unknown
func pcmRate(format string) int {
	rest, ok := strings.CutPrefix(format, "pcm_")
	if !ok {
		return 0
	}
	rate, err := strconv.Atoi(rest)
	if err != nil {
		return 0
	}
	return rate
}

type transcriberAdapter struct{ c *asr.Client }

func (a transcriberAdapter) Transcribe(ctx context.Context, filename string, audio []byte, language string) (domain.Transcript, error) {
	tr, err := a.c.Transcribe(ctx, filename, audio, language)
	if err != nil {
		return domain.Transcript{}, err
	}
	out := domain.Transcript{
		Text:     tr.Text,
		Language: tr.Language,
		Duration: tr.Duration,
		Segments: make([]domain.Segment, len(tr.Segments)),
	}
	for i, sg := range tr.Segments {
		out.Segments[i] = domain.Segment{
			Index: i,
			Start: sg.Start,
			End:   sg.End,
			Text:  sg.Text,
		}
	}
	return out, nil
}

type diarizerAdapter struct {
	c          *diarize.Client
	minOverlap float64
}

func (a diarizerAdapter) AssignSpeakers(ctx context.Context, audio []byte, windows [][2]float64) ([]string, error) {
	turns, err := a.c.Diarize(ctx, audio)
	if err != nil {
		return nil, err
	}
	return diarize.Speakers(windows, turns, a.minOverlap), nil
}

type classifierAdapter struct{ c *classify.Client }

func newClassifier(o Options) domain.ClassifierPort {
	return classifierAdapter{c: classify.NewClient(o.Classify)}
}

func (a classifierAdapter) Classify(ctx context.Context, text string) (domain.Classification, error) {
	cl, err := a.c.Classify(ctx, text)
	if err != nil {
		return domain.Classification{}, err
	}
	out := domain.Classification{
		Label:     cl.Label,
		Rationale: cl.Rationale,
		Spans:     make([]domain.ClassificationSpan, len(cl.Spans)),
	}
	for i, sp := range cl.Spans {
		out.Spans[i] = domain.ClassificationSpan{
			Quote:     sp.Quote,
			CharStart: sp.CharStart,
			CharEnd:   sp.CharEnd,
		}
	}
	return out, nil
}

type rewriterAdapter struct{ r *rewrite.Rewriter }

func newRewriter(o Options) domain.RewriterPort {
	return rewriterAdapter{r: rewrite.NewRewriter(o.Rewrite)}
}

func (a rewriterAdapter) Rewrite(ctx context.Context, text string) (string, error) {
	return a.r.Rewrite(ctx, text)
}

func (a rewriterAdapter) RewriteLocal(text string) string {
	if out, ok := rewrite.Dictionary(text); ok {
		return out
	}
	return rewrite.Fallback(text)
}

type synthesizerAdapter struct {
	c     *synth.Client
	cache *synth.VoiceCache
}

func newSynthesizer(o Options) domain.SynthesizerPort {
	c := synth.NewClient(o.Synth)
	return &synthesizerAdapter{c: c, cache: synth.NewVoiceCache(c)}
}

func (a *synthesizerAdapter) VoiceFor(ctx context.Context, speaker string, reference func() ([]byte, error)) (string, error) {
	return a.cache.VoiceFor(ctx, speaker, reference)
}

func (a *synthesizerAdapter) Synthesize(ctx context.Context, voiceID, text string) ([]byte, error) {
	return a.c.Synthesize(ctx, voiceID, text)
}
