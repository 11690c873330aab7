package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"hushcut/internal/core/policy"
	"hushcut/internal/core/taxonomy"
	"hushcut/internal/core/timeline"
	"hushcut/internal/platform/testkit"
	"hushcut/internal/services/moderation/domain"
)

// 10 Hz mono 8-bit keeps byte offsets equal to deciseconds
var testFmt = timeline.Format{SampleRate: 10, Channels: 1, BitsPerSample: 8}

func ramp(n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(i)
	}
	return out
}

type fakeTranscriber struct {
	tr  domain.Transcript
	err error
}

func (f fakeTranscriber) Transcribe(context.Context, string, []byte, string) (domain.Transcript, error) {
	return f.tr, f.err
}

type fakeDiarizer struct{ speaker string }

func (f fakeDiarizer) AssignSpeakers(_ context.Context, _ []byte, windows [][2]float64) ([]string, error) {
	out := make([]string, len(windows))
	for i := range out {
		out[i] = f.speaker
	}
	return out, nil
}

type fakeClassifier struct {
	byText map[string]domain.Classification
	err    error
}

func (f fakeClassifier) Classify(_ context.Context, text string) (domain.Classification, error) {
	if f.err != nil {
		return domain.Classification{}, f.err
	}
	if c, ok := f.byText[text]; ok {
		return c, nil
	}
	return domain.Classification{Label: taxonomy.LabelNone}, nil
}

type fakeRewriter struct {
	byText  map[string]string
	failOn  string
	local   map[string]string
	touched []string
}

func (f *fakeRewriter) Rewrite(_ context.Context, text string) (string, error) {
	f.touched = append(f.touched, text)
	if text == f.failOn {
		return "", errors.New("rewrite upstream down")
	}
	if out, ok := f.byText[text]; ok {
		return out, nil
	}
	return text, nil
}

func (f *fakeRewriter) RewriteLocal(text string) string {
	if out, ok := f.local[text]; ok {
		return out
	}
	return text
}

type fakeSynth struct {
	audio  []byte
	err    error
	clones int
}

func (f *fakeSynth) VoiceFor(_ context.Context, speaker string, _ func() ([]byte, error)) (string, error) {
	f.clones++
	return "voice-" + speaker, nil
}

func (f *fakeSynth) Synthesize(context.Context, string, string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.audio, nil
}

func testTranscript() domain.Transcript {
	return domain.Transcript{
		Text:     "hello there I hate those people",
		Language: "en",
		Duration: 4,
		Segments: []domain.Segment{
			{Index: 0, Start: 0, End: 1, Text: "hello there"},
			{Index: 1, Start: 2, End: 3, Text: "I hate those people"},
		},
	}
}

func hateClassifier() fakeClassifier {
	return fakeClassifier{byText: map[string]domain.Classification{
		"I hate those people": {
			Label:     taxonomy.LabelHate,
			Rationale: "targets a group",
			Spans:     []domain.ClassificationSpan{{Quote: "hate", CharStart: 2, CharEnd: 6}},
		},
	}}
}

func TestModerate_RedactReplacesFlaggedAudio(t *testing.T) {
	original := ramp(40)
	replacement := []byte{0xAA, 0xBB, 0xCC}

	rw := &fakeRewriter{byText: map[string]string{
		"I hate those people": "I disagree with those people",
	}}
	sy := &fakeSynth{audio: replacement}

	svc := New(
		Config{},
		fakeTranscriber{tr: testTranscript()},
		fakeDiarizer{speaker: "spk_0"},
		hateClassifier(),
		rw,
		sy,
		nil,
	)

	res, err := svc.Moderate(context.Background(), domain.ModerateInput{
		Filename: "meeting.wav",
		Audio:    timeline.EncodeWAV(testFmt, original),
		Mode:     domain.ModeRedact,
	})
	if err != nil {
		t.Fatalf("Moderate: %v", err)
	}

	if res.Status != domain.StatusSuccess {
		t.Errorf("status = %q, want %q", res.Status, domain.StatusSuccess)
	}
	if res.Summary.FlaggedSegments != 1 {
		t.Errorf("flagged = %d, want 1", res.Summary.FlaggedSegments)
	}
	if len(res.Remediations) != 1 {
		t.Fatalf("remediations = %d, want 1", len(res.Remediations))
	}
	rec := res.Remediations[0]
	if rec.SegmentIndex != 1 || !rec.WasRewritten || rec.Error != "" {
		t.Errorf("unexpected record: %+v", rec)
	}
	if rec.RewrittenText != "I disagree with those people" {
		t.Errorf("rewritten = %q", rec.RewrittenText)
	}

	if res.Audio == nil {
		t.Fatal("no sanitized audio")
	}
	_, pcm, err := timeline.DecodeWAV(res.Audio.Bytes)
	if err != nil {
		t.Fatalf("decode sanitized track: %v", err)
	}

	// kept excerpt, gap, replacement, trailing audio
	want := append([]byte{}, original[:20]...)
	want = append(want, replacement...)
	want = append(want, original[30:]...)
	if !bytes.Equal(pcm, want) {
		t.Errorf("sanitized pcm = %v, want %v", pcm, want)
	}
	if bytes.Contains(pcm, original[20:30]) {
		t.Error("flagged original excerpt leaked into sanitized track")
	}
}

func TestModerate_SynthesisFailureExcises(t *testing.T) {
	original := ramp(40)

	rw := &fakeRewriter{byText: map[string]string{
		"I hate those people": "I disagree with those people",
	}}
	sy := &fakeSynth{err: errors.New("voice profile unavailable")}

	svc := New(
		Config{},
		fakeTranscriber{tr: testTranscript()},
		fakeDiarizer{speaker: "spk_0"},
		hateClassifier(),
		rw,
		sy,
		nil,
	)

	res, err := svc.Moderate(context.Background(), domain.ModerateInput{
		Filename: "meeting.wav",
		Audio:    timeline.EncodeWAV(testFmt, original),
		Mode:     domain.ModeRedact,
	})
	if err != nil {
		t.Fatalf("Moderate: %v", err)
	}

	if res.Status != domain.StatusPartial {
		t.Errorf("status = %q, want %q", res.Status, domain.StatusPartial)
	}
	rec := res.Remediations[0]
	if rec.GeneratedAudio != nil {
		t.Error("failed synthesis still produced audio")
	}
	if rec.Error == "" {
		t.Error("failed synthesis left error empty")
	}

	_, pcm, err := timeline.DecodeWAV(res.Audio.Bytes)
	if err != nil {
		t.Fatalf("decode sanitized track: %v", err)
	}
	if len(pcm) != 40 {
		t.Fatalf("pcm length = %d, want 40", len(pcm))
	}
	for i := 20; i < 30; i++ {
		if pcm[i] != 0 {
			t.Fatalf("byte %d = %d, flagged excerpt not silenced", i, pcm[i])
		}
	}
}

func TestModerate_MisalignedReplacementTrimmed(t *testing.T) {
	f := timeline.Format{SampleRate: 10, Channels: 1, BitsPerSample: 16} // 2 byte frames
	original := ramp(80)

	rw := &fakeRewriter{byText: map[string]string{
		"I hate those people": "I disagree with those people",
	}}
	sy := &fakeSynth{audio: []byte{0xAA, 0xBB, 0xCC}} // partial trailing frame

	svc := New(
		Config{},
		fakeTranscriber{tr: testTranscript()},
		fakeDiarizer{speaker: "spk_0"},
		hateClassifier(),
		rw,
		sy,
		nil,
	)

	res, err := svc.Moderate(context.Background(), domain.ModerateInput{
		Filename: "meeting.wav",
		Audio:    timeline.EncodeWAV(f, original),
		Mode:     domain.ModeRedact,
	})
	if err != nil {
		t.Fatalf("Moderate: %v", err)
	}

	rec := res.Remediations[0]
	if rec.GeneratedAudio == nil {
		t.Fatal("no replacement audio")
	}
	if len(rec.GeneratedAudio.Bytes) != 2 {
		t.Fatalf("replacement length = %d, want 2 after frame alignment", len(rec.GeneratedAudio.Bytes))
	}

	_, pcm, err := timeline.DecodeWAV(res.Audio.Bytes)
	if err != nil {
		t.Fatalf("decode sanitized track: %v", err)
	}
	want := append([]byte{}, original[:40]...)
	want = append(want, 0xAA, 0xBB)
	want = append(want, original[60:]...)
	if !bytes.Equal(pcm, want) {
		t.Errorf("sanitized pcm = %v, want %v", pcm, want)
	}
	if len(pcm)%f.BlockAlign() != 0 {
		t.Errorf("output length %d not frame aligned", len(pcm))
	}
}

func TestModerate_SegmentFailuresAreIndependent(t *testing.T) {
	segs := []domain.Segment{
		{Index: 0, Start: 0, End: 1, Text: "you people are vermin"},
		{Index: 1, Start: 1, End: 2, Text: "I hate everyone here"},
		{Index: 2, Start: 2, End: 3, Text: "they should all disappear"},
	}
	cls := map[string]domain.Classification{}
	for _, sg := range segs {
		cls[sg.Text] = domain.Classification{Label: taxonomy.LabelHate}
	}

	rw := &fakeRewriter{
		byText: map[string]string{
			"you people are vermin":     "you folks are difficult",
			"they should all disappear": "they should reconsider",
		},
		failOn: "I hate everyone here",
	}
	sy := &fakeSynth{audio: []byte{0x01}}

	svc := New(
		Config{RemediateWorkers: 1},
		fakeTranscriber{tr: domain.Transcript{Text: "x", Language: "en", Duration: 3, Segments: segs}},
		fakeDiarizer{speaker: "spk_0"},
		fakeClassifier{byText: cls},
		rw,
		sy,
		nil,
	)

	res, err := svc.Moderate(context.Background(), domain.ModerateInput{
		Filename: "meeting.wav",
		Audio:    timeline.EncodeWAV(testFmt, ramp(30)),
		Mode:     domain.ModeRedact,
	})
	if err != nil {
		t.Fatalf("Moderate: %v", err)
	}

	if len(res.Remediations) != 3 {
		t.Fatalf("remediations = %d, want 3", len(res.Remediations))
	}
	byIdx := map[int]domain.RemediationRecord{}
	for _, r := range res.Remediations {
		byIdx[r.SegmentIndex] = r
	}
	if byIdx[1].Error == "" {
		t.Error("segment 1 rewrite failure not recorded")
	}
	if byIdx[0].Error != "" || byIdx[2].Error != "" {
		t.Error("failure of segment 1 affected its neighbors")
	}
	if !byIdx[0].WasRewritten || !byIdx[2].WasRewritten {
		t.Error("surviving segments were not rewritten")
	}
	if res.Status != domain.StatusPartial {
		t.Errorf("status = %q, want %q", res.Status, domain.StatusPartial)
	}
}

func TestModerate_CancelledContextFailsRemaining(t *testing.T) {
	rw := &fakeRewriter{byText: map[string]string{
		"I hate those people": "I disagree with those people",
	}}
	sy := &fakeSynth{audio: []byte{0x01}}

	svc := New(
		Config{},
		fakeTranscriber{tr: testTranscript()},
		fakeDiarizer{speaker: "spk_0"},
		hateClassifier(),
		rw,
		sy,
		nil,
	)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := svc.Moderate(ctx, domain.ModerateInput{
		Filename: "meeting.wav",
		Audio:    timeline.EncodeWAV(testFmt, ramp(40)),
		Mode:     domain.ModeRedact,
	})
	if err != nil {
		t.Fatalf("Moderate: %v", err)
	}

	if len(res.Remediations) != 1 {
		t.Fatalf("remediations = %d, want 1", len(res.Remediations))
	}
	rec := res.Remediations[0]
	if !strings.Contains(rec.Error, "not attempted") {
		t.Errorf("error = %q, want a not-attempted marker", rec.Error)
	}
	if rec.GeneratedAudio != nil {
		t.Error("unattempted segment produced audio")
	}
	if len(rw.touched) != 0 {
		t.Errorf("rewriter was called %d times after cancellation", len(rw.touched))
	}
}

func TestModerate_DictionaryOnlyKeepsAudio(t *testing.T) {
	original := ramp(40)
	tr := domain.Transcript{
		Text:     "this is fucking annoying",
		Language: "en",
		Duration: 4,
		Segments: []domain.Segment{{Index: 0, Start: 1, End: 3, Text: "this is fucking annoying"}},
	}

	rw := &fakeRewriter{local: map[string]string{
		"this is fucking annoying": "this is really annoying",
	}}
	sy := &fakeSynth{audio: []byte{0x01}}

	cfg := Config{Policy: policy.Config{
		Removal:                     taxonomy.NewLabelSet(taxonomy.LabelHate, taxonomy.LabelExtremist, taxonomy.LabelBoth, taxonomy.LabelProfanity),
		WholeSegmentWhenUnlocalized: true,
		ProfanityDictionaryOnly:     true,
	}}

	svc := New(
		cfg,
		fakeTranscriber{tr: tr},
		fakeDiarizer{speaker: "spk_0"},
		fakeClassifier{byText: map[string]domain.Classification{
			"this is fucking annoying": {
				Label: taxonomy.LabelProfanity,
				Spans: []domain.ClassificationSpan{{Quote: "fucking", CharStart: 8, CharEnd: 15}},
			},
		}},
		rw,
		sy,
		nil,
	)

	res, err := svc.Moderate(context.Background(), domain.ModerateInput{
		Filename: "meeting.wav",
		Audio:    timeline.EncodeWAV(testFmt, original),
		Mode:     domain.ModeRedact,
	})
	if err != nil {
		t.Fatalf("Moderate: %v", err)
	}

	rec := res.Remediations[0]
	if rec.RewrittenText != "this is really annoying" || !rec.WasRewritten {
		t.Errorf("unexpected record: %+v", rec)
	}
	if sy.clones != 0 {
		t.Errorf("dictionary-only path cloned a voice %d times", sy.clones)
	}

	_, pcm, err := timeline.DecodeWAV(res.Audio.Bytes)
	if err != nil {
		t.Fatalf("decode sanitized track: %v", err)
	}
	if !bytes.Equal(pcm, original) {
		t.Error("dictionary-only rewrite changed the audio track")
	}
}

func TestModerate_ClassifyModeSkipsAudioWork(t *testing.T) {
	sy := &fakeSynth{audio: []byte{0x01}}
	rw := &fakeRewriter{}

	svc := New(
		Config{},
		fakeTranscriber{tr: testTranscript()},
		fakeDiarizer{speaker: "spk_0"},
		hateClassifier(),
		rw,
		sy,
		nil,
	)

	// classify mode must accept non-WAV input, the audio is never decoded
	res, err := svc.Moderate(context.Background(), domain.ModerateInput{
		Filename: "meeting.mp3",
		Audio:    []byte("not a wav"),
		Mode:     domain.ModeClassify,
	})
	if err != nil {
		t.Fatalf("Moderate: %v", err)
	}

	if res.Audio != nil {
		t.Error("classify mode produced audio")
	}
	if len(res.Remediations) != 0 {
		t.Error("classify mode attempted remediation")
	}
	if res.Summary.FlaggedSegments != 1 {
		t.Errorf("flagged = %d, want 1", res.Summary.FlaggedSegments)
	}
	if len(rw.touched) != 0 {
		t.Error("classify mode called the rewriter")
	}
}

func TestModerate_ClassifierFailureAbstains(t *testing.T) {
	svc := New(
		Config{},
		fakeTranscriber{tr: testTranscript()},
		fakeDiarizer{speaker: "spk_0"},
		fakeClassifier{err: errors.New("model overloaded")},
		&fakeRewriter{},
		&fakeSynth{},
		nil,
	)

	res, err := svc.Moderate(context.Background(), domain.ModerateInput{
		Filename: "meeting.mp3",
		Audio:    []byte("opaque"),
		Mode:     domain.ModeClassify,
	})
	if err != nil {
		t.Fatalf("Moderate: %v", err)
	}

	if res.Status != domain.StatusClean {
		t.Errorf("status = %q, want %q", res.Status, domain.StatusClean)
	}
	for _, sg := range res.Segments {
		if sg.Classification.Label != taxonomy.LabelUnclear {
			t.Errorf("segment %d label = %q, want %q", sg.Index, sg.Classification.Label, taxonomy.LabelUnclear)
		}
	}
	if got := res.Summary.LabelCounts[taxonomy.LabelUnclear]; got != 2 {
		t.Errorf("UNCLEAR count = %d, want 2", got)
	}
}

func TestNew_RequiresCorePorts(t *testing.T) {
	testkit.MustPanic(t, func() {
		New(Config{}, nil, nil, fakeClassifier{}, nil, nil, nil)
	})
	testkit.MustPanic(t, func() {
		New(Config{}, fakeTranscriber{}, nil, nil, nil, nil, nil)
	})
	testkit.MustNotPanic(t, func() {
		New(Config{}, fakeTranscriber{}, nil, fakeClassifier{}, nil, nil, nil)
	})
}

func TestRunStatus(t *testing.T) {
	tests := []struct {
		name    string
		summary taxonomy.RunSummary
		records []domain.RemediationRecord
		want    domain.Status
	}{
		{
			name:    "nothing flagged",
			summary: taxonomy.RunSummary{TotalSegments: 3},
			want:    domain.StatusClean,
		},
		{
			name:    "all remediations succeeded",
			summary: taxonomy.RunSummary{TotalSegments: 3, FlaggedSegments: 1},
			records: []domain.RemediationRecord{{SegmentIndex: 0, WasRewritten: true}},
			want:    domain.StatusSuccess,
		},
		{
			name:    "one remediation failed",
			summary: taxonomy.RunSummary{TotalSegments: 3, FlaggedSegments: 2},
			records: []domain.RemediationRecord{
				{SegmentIndex: 0, WasRewritten: true},
				{SegmentIndex: 1, Error: "synthesis failed"},
			},
			want: domain.StatusPartial,
		},
		{
			name:    "flagged but kept",
			summary: taxonomy.RunSummary{TotalSegments: 3, FlaggedSegments: 1},
			want:    domain.StatusSuccess,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := runStatus(tt.summary, tt.records); got != tt.want {
				t.Errorf("runStatus = %q, want %q", got, tt.want)
			}
		})
	}
}
