// Package diarize provides a client for a pyannote-style diarization sidecar
// plus the speaker attribution step that annotates transcript segments.
package diarize

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
	defaultBaseURL = "http://localhost:8388"
	defaultTimeout = 5 * time.Minute
)

// Turn is one contiguous speaker turn reported by the sidecar
type Turn struct {
	Speaker string
	Start   float64
	End     float64
}

// Options configures the Client
type Options struct {
	BaseURL string
	Timeout time.Duration

	// speaker count hints, zero means let the model decide
	NumSpeakers int
	MinSpeakers int
	MaxSpeakers int
}

// Client talks to the diarization sidecar over HTTP
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
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	return &Client{
		http: &http.Client{Timeout: o.Timeout},
		opts: o,
		log:  *logger.Named("diarize"),
	}
}

// Ping checks whether the sidecar is reachable
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.opts.BaseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return perr.Upstreamf("diarize: unreachable: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return perr.Upstreamf("diarize: health returned %d", resp.StatusCode)
	}
	return nil
}

type sidecarResp struct {
	Segments []struct {
		SpeakerID string  `json:"speaker_id"`
		StartTime float64 `json:"start_time"`
		EndTime   float64 `json:"end_time"`
	} `json:"segments"`
	NumSpeakers int    `json:"num_speakers"`
	Error       string `json:"error,omitempty"`
}

// Diarize uploads audio and returns the speaker turns in time order
func (c *Client) Diarize(ctx context.Context, audio []byte) ([]Turn, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile("audio", "audio.wav")
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeUnknown, "diarize: create form file")
	}
	if _, err := part.Write(audio); err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeUnknown, "diarize: write audio")
	}
	if c.opts.NumSpeakers > 0 {
		_ = mw.WriteField("num_speakers", strconv.Itoa(c.opts.NumSpeakers))
	}
	if c.opts.MinSpeakers > 0 {
		_ = mw.WriteField("min_speakers", strconv.Itoa(c.opts.MinSpeakers))
	}
	if c.opts.MaxSpeakers > 0 {
		_ = mw.WriteField("max_speakers", strconv.Itoa(c.opts.MaxSpeakers))
	}
	if err := mw.Close(); err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeUnknown, "diarize: close multipart")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.BaseURL+"/diarize", &buf)
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeUnknown, "diarize: build request")
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, perr.Upstreamf("diarize: request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, perr.Upstreamf("diarize: http %d: %s", resp.StatusCode, string(b))
	}

	var sr sidecarResp
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, perr.Upstreamf("diarize: decode response: %v", err)
	}
	if sr.Error != "" {
		return nil, perr.Upstreamf("diarize: %s", sr.Error)
	}

	turns := make([]Turn, 0, len(sr.Segments))
	for _, s := range sr.Segments {
		turns = append(turns, Turn{Speaker: s.SpeakerID, Start: s.StartTime, End: s.EndTime})
	}

	c.log.Debug().
		Int("turns", len(turns)).
		Int("speakers", sr.NumSpeakers).
		Msg("diarization done")

	return turns, nil
}
