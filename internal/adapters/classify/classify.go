// Package classify provides the content classifier: an OpenAI-compatible
// chat-completions client that labels one segment of transcribed speech and
// returns candidate offensive character spans.
package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"hushcut/internal/core/taxonomy"
	perr "hushcut/internal/platform/errors"
	"hushcut/internal/platform/logger"
)

const defaultTimeout = 2 * time.Minute

const systemPrompt = `You are a strict content moderation classifier for transcribed speech.

Classify the text into exactly one label:
- NONE: no profanity, hate speech, or extremist content.
- PROFANITY: swearing/insults not targeting a protected class.
- HATE: attacks/dehumanization targeting a protected class.
- EXTREMIST: praise/propaganda/recruitment for violent extremist orgs/ideologies; calls to violence; explicit support for terrorism/violent acts.
- BOTH: contains both HATE and EXTREMIST.
- UNCLEAR: ambiguous/quoted/satire.
- UNCLEAR_ASR: transcription confidence too low to judge.

For every non-NONE label, list the offending spans as exact quotes with
character offsets into the input text.

Return ONLY a JSON object, no explanation:
{"label": "...", "rationale": "...", "spans": [{"quote": "...", "char_start": 0, "char_end": 0}]}`

// Span is one candidate offensive range reported by the model
type Span struct {
	Quote     string `json:"quote"`
	CharStart int    `json:"char_start"`
	CharEnd   int    `json:"char_end"`
}

// Classification is the verdict for one segment
type Classification struct {
	Label     taxonomy.Label `json:"label"`
	Rationale string         `json:"rationale"`
	Spans     []Span         `json:"spans"`
}

// Options configures the Client
type Options struct {
	BaseURL     string
	APIKey      string
	Model       string
	Timeout     time.Duration
	Temperature float64
	MaxTokens   int
}

// Client calls an OpenAI-compatible chat completions backend
type Client struct {
	http *http.Client
	opts Options
	log  logger.Logger
}

// NewClient creates a Client with sane defaults
func NewClient(o Options) *Client {
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = 1024
	}
	return &Client{
		http: &http.Client{Timeout: o.Timeout},
		opts: o,
		log:  *logger.Named("classify"),
	}
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// Classify labels text and returns candidate spans. Span offsets reported by
// the model are verified against the text and relocated by quote when wrong,
// since small models routinely get offsets off by a few characters
func (c *Client) Classify(ctx context.Context, text string) (Classification, error) {
	if c.opts.BaseURL == "" {
		return Classification{}, perr.Configf("classify: base url not configured")
	}
	if strings.TrimSpace(text) == "" {
		return Classification{Label: taxonomy.LabelNone}, nil
	}

	body, err := json.Marshal(chatRequest{
		Model: c.opts.Model,
		Messages: []message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: "Text to classify:\n" + text},
		},
		Temperature: c.opts.Temperature,
		MaxTokens:   c.opts.MaxTokens,
	})
	if err != nil {
		return Classification{}, perr.Wrap(err, perr.ErrorCodeJSON, "classify: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.BaseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return Classification{}, perr.Wrap(err, perr.ErrorCodeUnknown, "classify: build request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.opts.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.opts.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Classification{}, perr.Upstreamf("classify: request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return Classification{}, perr.Upstreamf("classify: http %d: %s", resp.StatusCode, string(b))
	}

	var cr chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return Classification{}, perr.Upstreamf("classify: decode response: %v", err)
	}
	if len(cr.Choices) == 0 {
		return Classification{}, perr.Upstreamf("classify: empty choices")
	}
	if cr.Choices[0].FinishReason == "length" {
		c.log.Warn().Msg("classifier response truncated by token limit")
	}

	return ParseVerdict(text, cr.Choices[0].Message.Content)
}

// ParseVerdict extracts the Classification from raw model output and
// validates its spans against the classified text
func ParseVerdict(text, raw string) (Classification, error) {
	content := stripCodeFence(strings.TrimSpace(raw))
	if i := strings.Index(content, "{"); i > 0 {
		content = content[i:]
	}

	var wire struct {
		Label     string `json:"label"`
		Rationale string `json:"rationale"`
		Spans     []Span `json:"spans"`
	}
	if err := json.Unmarshal([]byte(content), &wire); err != nil {
		return Classification{}, perr.Upstreamf("classify: unparseable verdict: %v", err)
	}

	out := Classification{
		Label:     taxonomy.ParseLabel(wire.Label),
		Rationale: wire.Rationale,
	}
	for _, sp := range wire.Spans {
		if v, ok := verifySpan(text, sp); ok {
			out.Spans = append(out.Spans, v)
		}
	}
	return out, nil
}

// verifySpan checks the model's offsets against the quote, relocating by
// substring search when they disagree. Spans whose quote does not occur in
// the text at all are dropped
func verifySpan(text string, sp Span) (Span, bool) {
	q := strings.TrimSpace(sp.Quote)
	if q == "" {
		// offset-only span, keep whatever survives clamping downstream
		if sp.CharEnd > sp.CharStart {
			return sp, true
		}
		return Span{}, false
	}
	if sp.CharStart >= 0 && sp.CharEnd <= len(text) && sp.CharEnd > sp.CharStart {
		if text[sp.CharStart:sp.CharEnd] == sp.Quote || text[sp.CharStart:sp.CharEnd] == q {
			return sp, true
		}
	}
	if idx := strings.Index(text, q); idx >= 0 {
		return Span{Quote: q, CharStart: idx, CharEnd: idx + len(q)}, true
	}
	if idx := strings.Index(strings.ToLower(text), strings.ToLower(q)); idx >= 0 {
		return Span{Quote: text[idx : idx+len(q)], CharStart: idx, CharEnd: idx + len(q)}, true
	}
	return Span{}, false
}

// stripCodeFence unwraps ```json ... ``` fences some models insist on
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
