// Package generator asks a language model for reflective questions about
// recent journal entries.
package generator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/pbaille/journal/internal/domain"
)

const (
	// DefaultModel is used when no model is configured
	DefaultModel = "claude-sonnet-4-20250514"

	defaultMaxTokens = 1024

	// maxPatterns caps how many questions are kept from one response
	maxPatterns = 3
)

// ErrNoAPIKey is returned by New when no API key is configured
var ErrNoAPIKey = errors.New("anthropic api key not set")

// Config configures the Anthropic generator
type Config struct {
	APIKey    string
	Model     string
	BaseURL   string
	MaxTokens int64
}

// Anthropic generates reflections with the Anthropic Messages API
type Anthropic struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// New creates a generator. Extra request options are appended after the
// ones derived from cfg.
func New(cfg Config, opts ...option.RequestOption) (*Anthropic, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrNoAPIKey
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}
	reqOpts = append(reqOpts, opts...)

	return &Anthropic{
		client:    anthropic.NewClient(reqOpts...),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
	}, nil
}

// Generate returns up to three open questions drawn from entries
func (a *Anthropic) Generate(ctx context.Context, entries []domain.Entry) ([]string, error) {
	if len(entries) == 0 {
		return nil, nil
	}

	resp, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: a.maxTokens,
		System:    []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(buildPrompt(entries))),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("api call: %w", err)
	}

	for _, block := range resp.Content {
		if block.Type == "text" {
			return parseResponse(block.Text)
		}
	}
	return nil, fmt.Errorf("empty response")
}

// FormatContext renders entries as one dated line each
func FormatContext(entries []domain.Entry) string {
	var sb strings.Builder
	for i, e := range entries {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString("[")
		sb.WriteString(e.Timestamp.UTC().Format("2006-01-02"))
		sb.WriteString("] ")
		sb.WriteString(e.Text)
	}
	return sb.String()
}

func buildPrompt(entries []domain.Entry) string {
	return "Analyze these entries and return 3 deep inquiries:\n" + FormatContext(entries)
}

func parseResponse(resp string) ([]string, error) {
	// Models sometimes wrap JSON in markdown fences despite instructions
	resp = strings.TrimSpace(resp)
	resp = strings.TrimPrefix(resp, "```json")
	resp = strings.TrimPrefix(resp, "```")
	resp = strings.TrimSuffix(resp, "```")
	resp = strings.TrimSpace(resp)

	if resp == "" {
		return nil, nil
	}

	var patterns []string
	if err := json.Unmarshal([]byte(resp), &patterns); err != nil {
		return nil, fmt.Errorf("parse json: %w (response: %s)", err, resp)
	}

	if len(patterns) > maxPatterns {
		patterns = patterns[:maxPatterns]
	}
	return patterns, nil
}

const systemPrompt = `You are a mirror that does not just reflect the surface, but questions the depth.
The user is writing in a minimalist journal that logs "evidence" of existence.

Your Goal:
Read the provided entries. Do not just look at the words. Look at the *intent*.
Ask yourself: "Who is the person writing this? Why was *this* specific moment important enough to keep?"

Output:
Identify 3 subtle currents in the text.
Convert these currents into **open-ended, existential questions** for the user.

Core Principles:
1. NO PREACHING. Do not give advice. Do not suggest they "explore feelings."
2. NO THERAPY SPEAK. Avoid words like "process," "heal," "mental health," "coping."
3. LOOK FOR THE UNSAID. If they describe noise, ask about the silence. If they describe objects, ask about the space around them.
4. BE OBLIQUE. The question should feel like a riddle or a poem that only they can answer.

Examples of the desired Output Style:
- "You document the texture of walls and stones. What are your hands trying to remember?"
- "The entries often end abruptly. What is the thought you are choosing not to write?"
- "You write about light only when it is fading. What does the darkness offer you?"
- "There is a recurring mention of 'waiting'. Who is the one waiting, and what arrives in the delay?"

Return ONLY a JSON array of strings. No intro, no markdown.`
