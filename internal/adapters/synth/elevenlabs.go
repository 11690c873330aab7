// Package synth resynthesizes rewritten speech in the original speaker's
// voice. The client speaks the ElevenLabs instant-voice-cloning API; the
// VoiceCache guards each speaker's clone so a voice is created at most once
// per run no matter how many segments need it.
package synth

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	perr "hushcut/internal/platform/errors"
	"hushcut/internal/platform/logger"
)

const (
	defaultBaseURL      = "https://api.elevenlabs.io"
	defaultModelID      = "eleven_multilingual_v2"
	defaultOutputFormat = "mp3_44100_128"
	defaultTimeout      = 3 * time.Minute
)

// Options configures the Client
type Options struct {
	BaseURL      string
	APIKey       string
	ModelID      string
	OutputFormat string
	Timeout      time.Duration
}

// Client is a speech synthesis backend with instant voice cloning
type Client struct {
	http *http.Client
	opts Options
	log  logger.Logger
}

// NewClient creates a Client with sane defaults
func NewClient(o Options) *Client {
	if o.BaseURL == "" {
		o.BaseURL = defaultBaseURL
	}
	if o.ModelID == "" {
		o.ModelID = defaultModelID
	}
	if o.OutputFormat == "" {
		o.OutputFormat = defaultOutputFormat
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	return &Client{
		http: &http.Client{Timeout: o.Timeout},
		opts: o,
		log:  *logger.Named("synth"),
	}
}

// CloneVoice creates a voice from reference audio and returns its id
func (c *Client) CloneVoice(ctx context.Context, name string, reference []byte) (string, error) {
	if c.opts.APIKey == "" {
		return "", perr.Configf("synth: api key not configured")
	}
	if len(reference) == 0 {
		return "", perr.InvalidArgf("synth: empty reference audio")
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("name", name); err != nil {
		return "", perr.Wrap(err, perr.ErrorCodeUnknown, "synth: write name field")
	}
	if err := w.WriteField("description", "cloned for one moderation run"); err != nil {
		return "", perr.Wrap(err, perr.ErrorCodeUnknown, "synth: write description field")
	}
	part, err := w.CreateFormFile("files", "reference.wav")
	if err != nil {
		return "", perr.Wrap(err, perr.ErrorCodeUnknown, "synth: create file part")
	}
	if _, err := part.Write(reference); err != nil {
		return "", perr.Wrap(err, perr.ErrorCodeUnknown, "synth: write reference audio")
	}
	if err := w.Close(); err != nil {
		return "", perr.Wrap(err, perr.ErrorCodeUnknown, "synth: close multipart writer")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.BaseURL+"/v1/voices/add", &buf)
	if err != nil {
		return "", perr.Wrap(err, perr.ErrorCodeUnknown, "synth: build clone request")
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("xi-api-key", c.opts.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", perr.Synthesisf("synth: clone request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", perr.Synthesisf("synth: clone http %d: %s", resp.StatusCode, string(b))
	}

	var out struct {
		VoiceID string `json:"voice_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", perr.Synthesisf("synth: decode clone response: %v", err)
	}
	if out.VoiceID == "" {
		return "", perr.Synthesisf("synth: clone response missing voice_id")
	}

	c.log.Info().Str("voice_id", out.VoiceID).Str("name", name).Msg("voice cloned")
	return out.VoiceID, nil
}

// Synthesize renders text with a previously cloned voice and returns the
// encoded audio
func (c *Client) Synthesize(ctx context.Context, voiceID, text string) ([]byte, error) {
	if c.opts.APIKey == "" {
		return nil, perr.Configf("synth: api key not configured")
	}
	if voiceID == "" {
		return nil, perr.InvalidArgf("synth: empty voice id")
	}
	if text == "" {
		return nil, perr.InvalidArgf("synth: empty text")
	}

	body, err := json.Marshal(map[string]string{
		"text":     text,
		"model_id": c.opts.ModelID,
	})
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeJSON, "synth: marshal request")
	}

	url := c.opts.BaseURL + "/v1/text-to-speech/" + voiceID + "?output_format=" + c.opts.OutputFormat
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeUnknown, "synth: build tts request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", c.opts.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, perr.Synthesisf("synth: tts request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, perr.Synthesisf("synth: tts http %d: %s", resp.StatusCode, string(b))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, perr.Synthesisf("synth: read tts audio: %v", err)
	}
	if len(audio) == 0 {
		return nil, perr.Synthesisf("synth: empty tts audio")
	}
	return audio, nil
}

// DeleteVoice removes a cloned voice. Best effort cleanup at end of run
func (c *Client) DeleteVoice(ctx context.Context, voiceID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.opts.BaseURL+"/v1/voices/"+voiceID, nil)
	if err != nil {
		return perr.Wrap(err, perr.ErrorCodeUnknown, "synth: build delete request")
	}
	req.Header.Set("xi-api-key", c.opts.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return perr.Synthesisf("synth: delete request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return perr.Synthesisf("synth: delete http %d", resp.StatusCode)
	}
	return nil
}
