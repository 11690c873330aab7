// hushcut-moderate runs the moderation pipeline once against a local file
// and writes the sanitized track plus an optional JSON report.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"path/filepath"

	"hushcut/internal/modkit"
	"hushcut/internal/modkit/module"
	"hushcut/internal/platform/config"
	"hushcut/internal/platform/logger"
	"hushcut/internal/services/moderation/domain"
	moderationmod "hushcut/internal/services/moderation/module"
)

func main() {
	var (
		in       = flag.String("in", "", "input audio file (PCM WAV for redact mode)")
		out      = flag.String("out", "", "sanitized audio output path (default <in>.sanitized.wav)")
		report   = flag.String("report", "", "write the moderation report as JSON to this path")
		mode     = flag.String("mode", "redact", "pipeline mode: classify or redact")
		language = flag.String("language", "", "language hint for transcription")
	)
	flag.Parse()

	l := logger.Get()
	if *in == "" {
		l.Fatal().Msg("missing -in flag")
	}

	audio, err := os.ReadFile(*in)
	if err != nil {
		l.Fatal().Err(err).Str("path", *in).Msg("read input")
	}

	mod := moderationmod.New(modkit.Deps{Cfg: config.New()})
	svc := module.MustPortsOf[moderationmod.Ports](mod).Moderator

	res, err := svc.Moderate(context.Background(), domain.ModerateInput{
		Filename: filepath.Base(*in),
		Audio:    audio,
		Mode:     domain.Mode(*mode),
		Language: *language,
	})
	if err != nil {
		l.Fatal().Err(err).Msg("moderation failed")
	}

	l.Info().
		Str("status", string(res.Status)).
		Int("segments", res.Summary.TotalSegments).
		Int("flagged", res.Summary.FlaggedSegments).
		Msg("moderation finished")

	if res.Audio != nil {
		dst := *out
		if dst == "" {
			dst = res.Audio.Filename
		}
		if err := os.WriteFile(dst, res.Audio.Bytes, 0o644); err != nil {
			l.Fatal().Err(err).Str("path", dst).Msg("write sanitized audio")
		}
		l.Info().Str("path", dst).Msg("sanitized audio written")
	}

	if *report != "" {
		res.Audio = nil
		raw, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			l.Fatal().Err(err).Msg("marshal report")
		}
		if err := os.WriteFile(*report, raw, 0o644); err != nil {
			l.Fatal().Err(err).Str("path", *report).Msg("write report")
		}
		l.Info().Str("path", *report).Msg("report written")
	}
}
