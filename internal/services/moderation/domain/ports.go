package domain

import "context"

// TranscriberPort produces a time-aligned transcript from raw audio
type TranscriberPort interface {
	Transcribe(ctx context.Context, filename string, audio []byte, language string) (Transcript, error)
}

// DiarizerPort attributes a speaker to each time window. The returned slice
// is parallel to windows; an empty string means no confident attribution
type DiarizerPort interface {
	AssignSpeakers(ctx context.Context, audio []byte, windows [][2]float64) ([]string, error)
}

// ClassifierPort labels one segment's text
type ClassifierPort interface {
	Classify(ctx context.Context, text string) (Classification, error)
}

// RewriterPort produces clean replacement text
type RewriterPort interface {
	// Rewrite may consult an upstream model
	Rewrite(ctx context.Context, text string) (string, error)
	// RewriteLocal uses only the built-in dictionary, never the network
	RewriteLocal(text string) string
}

// SynthesizerPort renders speech in a cloned voice. VoiceFor calls reference
// lazily and guarantees at most one clone per speaker per cache
type SynthesizerPort interface {
	VoiceFor(ctx context.Context, speaker string, reference func() ([]byte, error)) (string, error)
	Synthesize(ctx context.Context, voiceID, text string) ([]byte, error)
}

// RunReaderPort reads persisted runs back
type RunReaderPort interface {
	GetRun(ctx context.Context, id string) (ModerationResult, error)
}

// ModeratorPort is the pipeline entry point
type ModeratorPort interface {
	Moderate(ctx context.Context, in ModerateInput) (ModerationResult, error)
}

// ModerateInput is one job submission
type ModerateInput struct {
	Filename string
	Audio    []byte
	Mode     Mode
	Language string
}
