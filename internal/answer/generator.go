// Package answer generates cited natural-language answers from ranked
// retrieval results.
package answer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/clinrag/clinrag/internal/search"
)

const answerPrompt = `You are a clinical decision support assistant helping physicians with chronic kidney disease management decisions based on the clinical practice guideline.

IMPORTANT RULES:
1. ONLY use information from the provided recommendations below - never make up or invent recommendations
2. Always cite specific recommendation IDs (e.g., "Recommendation 22" or "REC_022")
3. Include the strength (Strong/Weak) and direction (For/Against) when discussing recommendations
4. If the provided context doesn't contain relevant information, say "Based on the available recommendations, I don't have specific guidance on this topic."
5. Keep answers concise but complete (2-3 paragraphs max)
6. Use markdown formatting: **bold** for recommendation IDs and key terms
7. When multiple recommendations apply, prioritize Strong recommendations over Weak ones

RETRIEVED RECOMMENDATIONS:
%s

PHYSICIAN'S QUESTION:
%s

Provide a helpful, accurate answer that cites the specific recommendations:`

// NoResultsResponse is returned without a model call when retrieval found
// nothing to ground an answer in.
const NoResultsResponse = `Based on the available recommendations in the clinical practice guideline, I don't have specific guidance that directly addresses your question.

You may want to:
- Rephrase your question with different terms
- Ask about a specific aspect of kidney disease management (e.g., medications, monitoring, comorbidities)
- Consult the full guideline document for comprehensive information`

// Rough estimate of 4 characters per token for context budgeting.
const (
	maxContextTokens = 6000
	charsPerToken    = 4
)

// TokenUsage reports the model tokens one generation consumed.
type TokenUsage struct {
	Prompt     int `json:"prompt"`
	Completion int `json:"completion"`
}

// Citation points an answer back at a retrieved recommendation.
type Citation struct {
	RecID     string  `json:"rec_id"`
	Text      string  `json:"rec_text,omitempty"`
	Strength  string  `json:"strength,omitempty"`
	Direction string  `json:"direction,omitempty"`
	Topic     string  `json:"topic,omitempty"`
	Score     float64 `json:"score"`
}

// Answer is one generated response.
type Answer struct {
	Text         string     `json:"answer"`
	Citations    []Citation `json:"citations"`
	Tokens       TokenUsage `json:"tokens"`
	Model        string     `json:"model"`
	GenerationMS int64      `json:"generation_ms"`
}

// chatClient is the slice of the OpenAI client the generator needs.
type chatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

var _ chatClient = (*openai.Client)(nil)

// Generator synthesizes answers with a chat completion model. Generation
// failures degrade to an apologetic message rather than an error; the
// retrieval results alongside the answer are still usable.
type Generator struct {
	client  chatClient
	model   string
	timeout time.Duration
	logger  *slog.Logger
}

// Options configures a Generator.
type Options struct {
	Model   string
	Timeout time.Duration
	Logger  *slog.Logger
}

// NewGenerator builds a generator over an OpenAI-compatible chat client.
func NewGenerator(client *openai.Client, opts Options) *Generator {
	return newGenerator(client, opts)
}

func newGenerator(client chatClient, opts Options) *Generator {
	if opts.Model == "" {
		opts.Model = "gpt-4o"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Generator{
		client:  client,
		model:   opts.Model,
		timeout: opts.Timeout,
		logger:  opts.Logger.With("component", "answer"),
	}
}

// Generate produces a cited answer for question from the ranked records.
func (g *Generator) Generate(ctx context.Context, question string, records []search.Record) *Answer {
	if len(records) == 0 {
		return &Answer{
			Text:      NoResultsResponse,
			Citations: []Citation{},
			Model:     g.model,
		}
	}

	start := time.Now()
	answer := &Answer{
		Citations: buildCitations(records),
		Model:     g.model,
	}

	contextText := truncateContext(buildContext(records), maxContextTokens)
	prompt := fmt.Sprintf(answerPrompt, contextText, question)

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens: 1024,
	})
	if err != nil || len(resp.Choices) == 0 {
		g.logger.Warn("answer generation failed, degrading", "error", err)
		answer.Text = "I apologize, but I encountered an error generating the answer. Please try again."
		answer.GenerationMS = time.Since(start).Milliseconds()
		return answer
	}

	answer.Text = resp.Choices[0].Message.Content
	answer.Tokens = TokenUsage{
		Prompt:     resp.Usage.PromptTokens,
		Completion: resp.Usage.CompletionTokens,
	}
	answer.GenerationMS = time.Since(start).Milliseconds()

	g.logger.Debug("generated answer",
		"citations", len(answer.Citations),
		"prompt_tokens", answer.Tokens.Prompt,
		"completion_tokens", answer.Tokens.Completion,
		"generation_ms", answer.GenerationMS)
	return answer
}

func buildCitations(records []search.Record) []Citation {
	citations := make([]Citation, len(records))
	for i, rec := range records {
		citations[i] = Citation{
			RecID:     rec.ID,
			Text:      rec.Text,
			Strength:  rec.Strength,
			Direction: rec.Direction,
			Topic:     rec.Topic,
			Score:     rec.Score,
		}
	}
	return citations
}

func buildContext(records []search.Record) string {
	parts := make([]string, 0, len(records))
	for i, rec := range records {
		recID := rec.ID
		if recID == "" {
			recID = fmt.Sprintf("REC_%d", i+1)
		}
		text := rec.Text
		if text == "" {
			text = "No text available"
		}

		var b strings.Builder
		fmt.Fprintf(&b, "\n---\n**Recommendation %s**\n", recID)
		fmt.Fprintf(&b, "- Topic: %s\n", valueOr(rec.Topic, "General"))
		fmt.Fprintf(&b, "- Strength: %s\n", valueOr(rec.Strength, "Unknown"))
		fmt.Fprintf(&b, "- Direction: %s\n", valueOr(rec.Direction, "Unknown"))
		fmt.Fprintf(&b, "- Relevance Score: %.2f\n\nText: %s\n", bestScore(rec), text)
		if rec.EvidenceQuality != "" {
			fmt.Fprintf(&b, "- Evidence Quality: %s\n", rec.EvidenceQuality)
		}
		if rec.StudyCount > 0 {
			fmt.Fprintf(&b, "- Supporting Studies: %d\n", rec.StudyCount)
		}
		parts = append(parts, b.String())
	}
	return strings.Join(parts, "\n")
}

func bestScore(rec search.Record) float64 {
	if rec.Score != 0 {
		return rec.Score
	}
	return rec.SimilarityScore
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

// truncateContext bounds the context size, preferring to cut at a
// recommendation boundary when one falls in the second half.
func truncateContext(text string, maxTokens int) string {
	maxChars := maxTokens * charsPerToken
	if len(text) <= maxChars {
		return text
	}

	truncated := text[:maxChars]
	if boundary := strings.LastIndex(truncated, "\n---\n"); boundary > maxChars/2 {
		truncated = truncated[:boundary]
	}
	return truncated + "\n\n[Additional recommendations truncated for brevity]"
}
