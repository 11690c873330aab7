// Package rewrite produces clean replacement text for flagged speech. A
// curated phrase dictionary handles the common cases; anything it misses is
// sent to an LLM with strict prompting, and its output is scrubbed and, when
// unusable, replaced by a word-level fallback so the pipeline never emits
// the original offensive text.
package rewrite

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	perr "hushcut/internal/platform/errors"
	"hushcut/internal/platform/logger"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const defaultTimeout = time.Minute

const systemPrompt = "You are a professional language filter. Replace offensive " +
	"language with appropriate alternatives while maintaining the same meaning " +
	"and tone. Output ONLY the clean replacement text - no explanations, " +
	"examples, or formatting."

type entry struct {
	match, replace string
}

var dictionary = []entry{
	{"all over the fucking place", "completely disorganized"},
	{"get our shit together", "get organized"},
	{"didn't give a shit", "didn't care"},
	{"like they're on crack", "very erratically"},
	{"tired of this crap", "tired of this nonsense"},
	{"what a fucking joke", "disappointing"},
	{"go down the toilet", "go down the drain"},
	{"embarrassing as hell", "totally humiliating"},
	{"don't give a damn", "don't care"},
	{"completely fucked", "completely broken"},
	{"shit-tier garbage", "terrible quality"},
	{"total clusterfuck", "total mess"},
	{"this is bullshit", "this is nonsense"},
	{"absolute garbage", "poor quality"},
	{"driving me crazy", "driving me nuts"},
	{"fucking around", "wasting time"},
	{"fucking place", "place"},
	{"clusterfuck", "clustermess"},
	{"half-assed", "half-hearted"},
	{"screw this", "forget about it"},
	{"damn minds", "minds"},
	{"bullshit", "nonsense"},
	{"fucking", "really"},
	{"garbage", "trash"},
	{"shitty", "terrible"},
	{"fucked", "broken"},
	{"fuck", "mess"},
	{"shit", "poor"},
	{"crap", "junk"},
	{"damn", "very"},
}

var fallbackWords = []entry{
	{"bullshit", "nonsense"},
	{"fucking", "really"},
	{"fuck", "mess"},
	{"shit", "poor"},
	{"crap", "junk"},
	{"damn", "very"},
}

// Options configures the Rewriter
type Options struct {
	BaseURL     string
	APIKey      string
	Model       string
	Timeout     time.Duration
	Temperature float64
}

// Rewriter rewrites offensive text via dictionary lookup with an LLM backstop
type Rewriter struct {
	http *http.Client
	opts Options
	log  logger.Logger
}

// NewRewriter creates a Rewriter with sane defaults
func NewRewriter(o Options) *Rewriter {
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	return &Rewriter{
		http: &http.Client{Timeout: o.Timeout},
		opts: o,
		log:  *logger.Named("rewrite"),
	}
}

// Rewrite returns clean replacement text for text. Dictionary matches are
// applied locally; misses go to the configured LLM. The returned string is
// never the unchanged offensive input
func (r *Rewriter) Rewrite(ctx context.Context, text string) (string, error) {
	if out, ok := Dictionary(text); ok {
		return out, nil
	}
	if r.opts.BaseURL == "" {
		return Fallback(text), nil
	}

	out, err := r.complete(ctx, text)
	if err != nil {
		r.log.Warn().Err(err).Msg("llm rewrite failed, using word fallback")
		return Fallback(text), nil
	}

	out = cleanArtifacts(out)
	if problematic(out, text) {
		return Fallback(text), nil
	}
	return out, nil
}

func (r *Rewriter) complete(ctx context.Context, text string) (string, error) {
	maxTokens := len(strings.Fields(text)) + 5
	if maxTokens < 20 {
		maxTokens = 20
	}

	body, err := json.Marshal(map[string]any{
		"model": r.opts.Model,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": "Clean this text: " + text},
		},
		"max_tokens":  maxTokens,
		"temperature": r.opts.Temperature,
	})
	if err != nil {
		return "", perr.Wrap(err, perr.ErrorCodeJSON, "rewrite: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.opts.BaseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", perr.Wrap(err, perr.ErrorCodeUnknown, "rewrite: build request")
	}
	req.Header.Set("Content-Type", "application/json")
	if r.opts.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.opts.APIKey)
	}

	resp, err := r.http.Do(req)
	if err != nil {
		return "", perr.Rewritef("rewrite: request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", perr.Rewritef("rewrite: http %d: %s", resp.StatusCode, string(b))
	}

	var cr struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", perr.Rewritef("rewrite: decode response: %v", err)
	}
	if len(cr.Choices) == 0 {
		return "", perr.Rewritef("rewrite: empty choices")
	}
	return strings.TrimSpace(cr.Choices[0].Message.Content), nil
}

// Dictionary applies the longest matching dictionary phrase, preserving the
// capitalization of the matched text. Phrase matches win over the single
// words they contain. The second return is false when no phrase matches
func Dictionary(text string) (string, bool) {
	lower := strings.ToLower(text)

	bestIdx, bestLen := -1, 0
	var best entry
	for _, e := range dictionary {
		if len(e.match) <= bestLen {
			continue
		}
		if idx := strings.Index(lower, e.match); idx >= 0 {
			best, bestIdx, bestLen = e, idx, len(e.match)
		}
	}
	if bestIdx < 0 {
		return text, false
	}
	return replacePreservingCase(text, bestIdx, len(best.match), best.replace), true
}

// Fallback substitutes offensive single words case-insensitively. It is the
// last resort when both dictionary and LLM rewriting come up empty
func Fallback(text string) string {
	out := text
	for _, e := range fallbackWords {
		for {
			idx := strings.Index(strings.ToLower(out), e.match)
			if idx < 0 {
				break
			}
			out = replacePreservingCase(out, idx, len(e.match), e.replace)
		}
	}
	return out
}

var titleCaser = cases.Title(language.English)

func replacePreservingCase(text string, idx, n int, replacement string) string {
	original := text[idx : idx+n]
	switch {
	case original == strings.ToUpper(original) && original != strings.ToLower(original):
		replacement = strings.ToUpper(replacement)
	case original == titleCaser.String(original):
		replacement = upperFirst(replacement)
	case original[0] >= 'A' && original[0] <= 'Z':
		replacement = upperFirst(replacement)
	}
	return text[:idx] + replacement + text[idx+n:]
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

var (
	arrowLine    = regexp.MustCompile(`.*?(→|->).*`)
	labeledLine  = regexp.MustCompile(`(?s)(Example:|Output:|Clean version:).*`)
	bulletPrefix = regexp.MustCompile(`^[-*•]\s*`)
	numberPrefix = regexp.MustCompile(`^\d+\.\s*`)
)

// cleanArtifacts strips formatting the model tends to smuggle into its
// answer and keeps only the first sentence
func cleanArtifacts(s string) string {
	s = strings.Trim(s, `"'`)
	s = arrowLine.ReplaceAllString(s, "")
	s = labeledLine.ReplaceAllString(s, "")
	s = bulletPrefix.ReplaceAllString(s, "")
	s = numberPrefix.ReplaceAllString(s, "")

	if parts := strings.SplitN(s, ".", 2); len(parts) > 0 {
		first := strings.TrimSpace(parts[0])
		if first != "" {
			s = first
			if len(parts) > 1 {
				s += "."
			}
		}
	}
	return strings.TrimSpace(s)
}

// problematic reports whether the model output must be discarded in favor of
// the word fallback
func problematic(rewritten, original string) bool {
	if strings.TrimSpace(rewritten) == "" {
		return true
	}
	if len(rewritten) > len(original)*3 {
		return true
	}
	if strings.ContainsAny(rewritten, `"'`) {
		return true
	}
	if strings.Contains(rewritten, "→") || strings.Contains(rewritten, "->") {
		return true
	}
	return false
}
