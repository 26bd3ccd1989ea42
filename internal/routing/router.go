package routing

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	openai "github.com/sashabaranov/go-openai"
)

// completer is the slice of the OpenAI client the router needs.
// *openai.Client satisfies it; tests substitute a fake.
type completer interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

var _ completer = (*openai.Client)(nil)

// Options configures an LLMRouter.
type Options struct {
	// Model is the chat model used for classification.
	Model string

	// Timeout bounds a single classification call.
	Timeout time.Duration

	// CacheSize is the number of cached decisions. Zero disables caching.
	CacheSize int

	// TemplateNames is the registry vocabulary embedded in the prompt.
	TemplateNames []string

	Logger *slog.Logger
}

// LLMRouter classifies questions with a chat completion model.
// Any failure, transport, timeout, or unparseable output, degrades to
// FallbackDecision; Route never returns an error.
type LLMRouter struct {
	client        completer
	model         string
	timeout       time.Duration
	templateNames []string
	cache         *lru.Cache[string, *Decision]
	logger        *slog.Logger
}

// NewLLMRouter builds a router over an OpenAI-compatible chat client.
func NewLLMRouter(client *openai.Client, opts Options) (*LLMRouter, error) {
	return newLLMRouter(client, opts)
}

func newLLMRouter(client completer, opts Options) (*LLMRouter, error) {
	if opts.Model == "" {
		opts.Model = "gpt-4o-mini"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	r := &LLMRouter{
		client:        client,
		model:         opts.Model,
		timeout:       opts.Timeout,
		templateNames: opts.TemplateNames,
		logger:        opts.Logger.With("component", "routing"),
	}
	if opts.CacheSize > 0 {
		cache, err := lru.New[string, *Decision](opts.CacheSize)
		if err != nil {
			return nil, err
		}
		r.cache = cache
	}
	return r, nil
}

// Route classifies a question. The returned decision is always usable.
func (r *LLMRouter) Route(ctx context.Context, question string) (*Decision, error) {
	key := cacheKey(question)
	if r.cache != nil {
		if dec, ok := r.cache.Get(key); ok {
			return dec, nil
		}
	}

	dec := r.classify(ctx, question)
	if r.cache != nil {
		r.cache.Add(key, dec)
	}
	return dec, nil
}

// Close releases the decision cache.
func (r *LLMRouter) Close() error {
	if r.cache != nil {
		r.cache.Purge()
	}
	return nil
}

func (r *LLMRouter) classify(ctx context.Context, question string) *Decision {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: r.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: BuildPrompt(question, r.templateNames)},
		},
		Temperature: 0,
		MaxTokens:   512,
	})
	if err != nil {
		r.logger.Warn("routing call failed, using fallback",
			"error", err,
			"duration_ms", time.Since(start).Milliseconds())
		return FallbackDecision("classification failed: " + err.Error())
	}
	if len(resp.Choices) == 0 {
		r.logger.Warn("routing returned no choices, using fallback")
		return FallbackDecision("classification failed: empty response")
	}

	dec, err := ParseDecision(resp.Choices[0].Message.Content)
	if err != nil {
		r.logger.Warn("routing output unparseable, using fallback",
			"error", err)
		return FallbackDecision("classification failed: " + err.Error())
	}

	r.logger.Debug("routed question",
		"strategy", dec.Strategy,
		"intent", dec.Intent,
		"confidence", dec.Confidence,
		"duration_ms", time.Since(start).Milliseconds())
	return dec
}

// rawDecision is the wire shape emitted by the model. Confidence is a
// pointer so an omitted field is distinguishable from 0.
type rawDecision struct {
	QueryType    string   `json:"query_type"`
	Intent       string   `json:"intent"`
	Confidence   *float64 `json:"confidence"`
	Entities     Entities `json:"entities"`
	TemplateHint string   `json:"template_hint"`
	Reasoning    string   `json:"reasoning"`
}

// ParseDecision parses model output into a decision. Markdown code fences
// around the JSON are stripped first. An unknown query_type fails the whole
// parse; an unknown intent degrades to general_question in place.
func ParseDecision(content string) (*Decision, error) {
	text := StripCodeFences(content)

	var raw rawDecision
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, err
	}

	strategy, ok := ParseStrategy(raw.QueryType)
	if !ok {
		return nil, &UnknownStrategyError{Value: raw.QueryType}
	}

	confidence := 0.8
	if raw.Confidence != nil {
		confidence = math.Min(math.Max(*raw.Confidence, 0), 1)
	}

	return &Decision{
		Strategy:     strategy,
		Intent:       ParseIntent(raw.Intent),
		Confidence:   confidence,
		Entities:     raw.Entities,
		TemplateHint: raw.TemplateHint,
		Reasoning:    raw.Reasoning,
	}, nil
}

// UnknownStrategyError reports a query_type outside the known set.
type UnknownStrategyError struct {
	Value string
}

func (e *UnknownStrategyError) Error() string {
	return "unknown query_type: " + e.Value
}

// StripCodeFences removes a surrounding markdown code fence, with or
// without a language tag, from model output. Content without a fence is
// returned trimmed.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.Index(s, "\n"); idx >= 0 {
		// Drop the language tag line (```json).
		first := strings.TrimSpace(s[:idx])
		if first == "json" || first == "" {
			s = s[idx+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func cacheKey(question string) string {
	return strings.ToLower(strings.TrimSpace(question))
}
