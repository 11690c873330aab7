package module

import (
	"time"

	"hushcut/internal/adapters/asr"
	"hushcut/internal/adapters/classify"
	"hushcut/internal/adapters/diarize"
	"hushcut/internal/adapters/rewrite"
	"hushcut/internal/adapters/synth"
	"hushcut/internal/core/policy"
	"hushcut/internal/core/taxonomy"
	"hushcut/internal/platform/config"
	moderationsvc "hushcut/internal/services/moderation/service"
)

// Options collects everything the moderation module reads from env
type Options struct {
	Service        moderationsvc.Config
	MaxUploadBytes int64
	MinOverlap     float64

	ASR      asr.Options
	Diarize  diarize.Options
	Classify classify.Options
	Rewrite  rewrite.Options
	Synth    synth.Options
}

// FromConfig reads collaborator and policy configuration. Collaborators use
// their own env prefix so credentials stay per-service
func FromConfig(cfg config.Conf) Options {
	mod := cfg.Prefix("MODERATION_")

	pol := policy.Config{
		Removal:                     taxonomy.ParseLabelSet(mod.MayCSV("REMOVAL_LABELS", []string{"HATE", "EXTREMIST", "BOTH"})),
		WholeSegmentWhenUnlocalized: mod.MayBool("WHOLE_SEGMENT_UNLOCALIZED", true),
		ProfanityDictionaryOnly:     mod.MayBool("PROFANITY_DICTIONARY_ONLY", false),
	}

	flagged := taxonomy.ParseLabelSet(mod.MayCSV("FLAGGED_LABELS", []string{"PROFANITY", "HATE", "EXTREMIST", "BOTH"}))

	asrCfg := cfg.Prefix("ASR_")
	diaCfg := cfg.Prefix("DIARIZE_")
	clsCfg := cfg.Prefix("CLASSIFY_")
	rwCfg := cfg.Prefix("REWRITE_")
	synCfg := cfg.Prefix("SYNTH_")

	return Options{
		Service: moderationsvc.Config{
			Flagged:          flagged,
			Policy:           pol,
			ClassifyWorkers:  mod.MayInt("CLASSIFY_WORKERS", 4),
			RemediateWorkers: mod.MayInt("REMEDIATE_WORKERS", 4),
			JobTimeout:       mod.MayDuration("JOB_TIMEOUT", 15*time.Minute),
		},
		MaxUploadBytes: int64(mod.MayInt("MAX_UPLOAD_MB", 100)) << 20,
		MinOverlap:     mod.MayFloat64("DIARIZATION_MIN_OVERLAP", diarize.DefaultMinOverlap),

		ASR: asr.Options{
			BaseURL:       asrCfg.MayString("BASE_URL", "https://api.openai.com"),
			APIKey:        asrCfg.MayString("API_KEY", ""),
			Model:         asrCfg.MayString("MODEL", "whisper-1"),
			Timeout:       asrCfg.MayDuration("TIMEOUT", 10*time.Minute),
			Temperature:   asrCfg.MayFloat64("TEMPERATURE", 0),
			InitialPrompt: asrCfg.MayString("INITIAL_PROMPT", ""),
		},
		Diarize: diarize.Options{
			BaseURL:     diaCfg.MayString("BASE_URL", "http://localhost:8388"),
			Timeout:     diaCfg.MayDuration("TIMEOUT", 5*time.Minute),
			NumSpeakers: diaCfg.MayInt("NUM_SPEAKERS", 0),
			MinSpeakers: diaCfg.MayInt("MIN_SPEAKERS", 0),
			MaxSpeakers: diaCfg.MayInt("MAX_SPEAKERS", 0),
		},
		Classify: classify.Options{
			BaseURL:     clsCfg.MayString("BASE_URL", "https://api.openai.com"),
			APIKey:      clsCfg.MayString("API_KEY", ""),
			Model:       clsCfg.MayString("MODEL", "gpt-4o-mini"),
			Timeout:     clsCfg.MayDuration("TIMEOUT", 2*time.Minute),
			Temperature: clsCfg.MayFloat64("TEMPERATURE", 0),
			MaxTokens:   clsCfg.MayInt("MAX_TOKENS", 1024),
		},
		Rewrite: rewrite.Options{
			BaseURL:     rwCfg.MayString("BASE_URL", ""),
			APIKey:      rwCfg.MayString("API_KEY", ""),
			Model:       rwCfg.MayString("MODEL", "llama-3.1-8b-instant"),
			Timeout:     rwCfg.MayDuration("TIMEOUT", time.Minute),
			Temperature: rwCfg.MayFloat64("TEMPERATURE", 0),
		},
		Synth: synth.Options{
			BaseURL: synCfg.MayString("BASE_URL", "https://api.elevenlabs.io"),
			APIKey:  synCfg.MayString("API_KEY", ""),
			ModelID: synCfg.MayString("MODEL_ID", "eleven_multilingual_v2"),
			// raw PCM keeps replacement excerpts stitchable into the track
			OutputFormat: synCfg.MayString("OUTPUT_FORMAT", "pcm_44100"),
			Timeout:      synCfg.MayDuration("TIMEOUT", 3*time.Minute),
		},
	}
}
