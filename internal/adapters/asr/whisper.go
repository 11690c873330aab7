// Package asr provides a Whisper-compatible transcription client.
// Any backend speaking the /v1/audio/transcriptions multipart contract works:
// OpenAI, faster-whisper-server, or a local sidecar
package asr

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	perr "hushcut/internal/platform/errors"
	"hushcut/internal/platform/logger"
)

const (
	defaultTimeout = 10 * time.Minute
	defaultModel   = "whisper-1"
)

// Segment is one time-bounded unit of transcribed speech
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Transcript bundles the segments with run-level metadata
type Transcript struct {
	Text     string
	Language string
	Duration float64
	Segments []Segment
}

// Options configures the Client
type Options struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration

	// Temperature and InitialPrompt tune decoding, both optional
	Temperature   float64
	InitialPrompt string
}

// Client calls a Whisper-compatible transcription backend
type Client struct {
	http *http.Client
	opts Options
	log  logger.Logger
}

// NewClient creates a Client with sane defaults
func NewClient(o Options) *Client {
	if o.Model == "" {
		o.Model = defaultModel
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	return &Client{
		http: &http.Client{Timeout: o.Timeout},
		opts: o,
		log:  *logger.Named("asr"),
	}
}

// verboseResp is the verbose_json response shape
type verboseResp struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
	Segments []struct {
		ID    int     `json:"id"`
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

// Transcribe uploads audio and returns the time-aligned transcript.
// language is an optional hint, empty means autodetect
func (c *Client) Transcribe(ctx context.Context, filename string, audio []byte, language string) (Transcript, error) {
	if c.opts.BaseURL == "" {
		return Transcript{}, perr.Configf("asr: base url not configured")
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fields := map[string]string{
		"model":           c.opts.Model,
		"response_format": "verbose_json",
	}
	if language != "" {
		fields["language"] = language
	}
	if c.opts.Temperature > 0 {
		fields["temperature"] = strconv.FormatFloat(c.opts.Temperature, 'f', -1, 64)
	}
	if c.opts.InitialPrompt != "" {
		fields["prompt"] = c.opts.InitialPrompt
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return Transcript{}, perr.Wrap(err, perr.ErrorCodeUnknown, "asr: write field")
		}
	}

	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return Transcript{}, perr.Wrap(err, perr.ErrorCodeUnknown, "asr: create form file")
	}
	if _, err := fw.Write(audio); err != nil {
		return Transcript{}, perr.Wrap(err, perr.ErrorCodeUnknown, "asr: write audio")
	}
	if err := mw.Close(); err != nil {
		return Transcript{}, perr.Wrap(err, perr.ErrorCodeUnknown, "asr: close multipart")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.BaseURL+"/v1/audio/transcriptions", &body)
	if err != nil {
		return Transcript{}, perr.Wrap(err, perr.ErrorCodeUnknown, "asr: build request")
	}
	if c.opts.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.opts.APIKey)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return Transcript{}, perr.Upstreamf("asr: transcription request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return Transcript{}, perr.Upstreamf("asr: http %d: %s", resp.StatusCode, string(b))
	}

	var vr verboseResp
	if err := json.NewDecoder(resp.Body).Decode(&vr); err != nil {
		return Transcript{}, perr.Upstreamf("asr: decode response: %v", err)
	}

	out := Transcript{
		Text:     vr.Text,
		Language: vr.Language,
		Duration: vr.Duration,
		Segments: make([]Segment, 0, len(vr.Segments)),
	}
	for _, s := range vr.Segments {
		out.Segments = append(out.Segments, Segment{Start: s.Start, End: s.End, Text: s.Text})
	}

	c.log.Debug().
		Int("segments", len(out.Segments)).
		Str("language", out.Language).
		Dur("elapsed", time.Since(start)).
		Msg("transcription done")

	return out, nil
}

// Ping reports backend reachability for readiness checks
func (c *Client) Ping(ctx context.Context) error {
	if c.opts.BaseURL == "" {
		return perr.Configf("asr: base url not configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.opts.BaseURL+"/v1/models", nil)
	if err != nil {
		return err
	}
	if c.opts.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.opts.APIKey)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return perr.Upstreamf("asr: unreachable: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return perr.Upstreamf("asr: health returned %d", resp.StatusCode)
	}
	return nil
}
