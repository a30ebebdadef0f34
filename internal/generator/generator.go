package generator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"quizle/internal/model"

	openai "github.com/sashabaranov/go-openai"
)

// ErrNotConfigured is returned by GenerateStrict when no API key is set.
var ErrNotConfigured = errors.New("llm api key not configured")

// Generator produces quiz questions from free-text study notes using an
// OpenAI-compatible chat completion API.
type Generator struct {
	api        *openai.Client
	model      string
	configured bool
}

// New creates a generator. An empty API key leaves the generator
// unconfigured: Generate then always returns the fallback set, so the
// application remains fully usable offline.
func New(baseURL, apiKey, modelName string) *Generator {
	if apiKey == "" {
		return &Generator{model: modelName}
	}
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Generator{
		api:        openai.NewClientWithConfig(config),
		model:      modelName,
		configured: true,
	}
}

// Generate converts study notes into a quiz set. Model output is unreliable
// by nature, so any failure — transport error, unparsable output, wrong
// shape — degrades to the fixed fallback set instead of an error. The
// returned error is advisory only: the quiz set is always usable.
func (g *Generator) Generate(ctx context.Context, factsText string) (model.QuizSet, error) {
	qs, err := g.GenerateStrict(ctx, factsText)
	if err != nil {
		slog.Warn("quiz generation failed, using fallback set", "error", err)
		return Fallback(), err
	}
	return qs, nil
}

// GenerateStrict calls the upstream model and validates its output without
// falling back. The hosted generation endpoint uses it to distinguish
// upstream failures from missing configuration.
func (g *Generator) GenerateStrict(ctx context.Context, factsText string) (model.QuizSet, error) {
	if !g.configured {
		return nil, ErrNotConfigured
	}

	resp, err := g.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: buildQuizPrompt(factsText)},
		},
		Temperature: 0.7,
	})
	if err != nil {
		return nil, fmt.Errorf("LLM API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("LLM returned no choices")
	}

	raw := resp.Choices[0].Message.Content
	slog.Debug("LLM response", "raw", raw)

	qs, err := ParseQuizJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("parse LLM response: %w", err)
	}
	return qs, nil
}

// Ping verifies the upstream endpoint responds at all.
func (g *Generator) Ping(ctx context.Context) error {
	if !g.configured {
		return ErrNotConfigured
	}
	_, err := g.api.ListModels(ctx)
	return err
}

var jsonArrayRe = regexp.MustCompile(`(?s)\[\s*\{.*\}\s*\]`)

var lineCommentRe = regexp.MustCompile(`(?m)//.*$`)

// ParseQuizJSON extracts and validates a question array from raw model
// output. Models wrap the JSON in prose, code fences, or comments, so the
// array is located by pattern before decoding.
func ParseQuizJSON(raw string) (model.QuizSet, error) {
	text := raw
	if match := jsonArrayRe.FindString(text); match != "" {
		text = match
	}
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	text = lineCommentRe.ReplaceAllString(text, "")
	text = strings.TrimSpace(text)

	var qs model.QuizSet
	if err := json.Unmarshal([]byte(text), &qs); err != nil {
		return nil, fmt.Errorf("decode question array: %w", err)
	}
	if err := qs.Validate(); err != nil {
		return nil, fmt.Errorf("invalid quiz data structure: %w", err)
	}
	return qs, nil
}

func buildQuizPrompt(factsText string) string {
	var sb strings.Builder
	sb.WriteString("You are a quiz generator for students reviewing their notes.\n\n")
	sb.WriteString("Create a multiple choice quiz from the following study material:\n")
	sb.WriteString(factsText + "\n\n")
	sb.WriteString("Rules:\n")
	sb.WriteString("1. Generate exactly 1 question per distinct fact or concept in the input.\n")
	sb.WriteString("2. Mix question styles: some should test recall and others should test application.\n")
	sb.WriteString("3. Each question has 4 answer choices with exactly 1 correct answer.\n")
	sb.WriteString("4. Make distractors plausible by using related terms, similar concepts, or common misconceptions from the same subject area.\n")
	sb.WriteString("5. Keep all answer choices similar in length and detail.\n")
	sb.WriteString("6. Randomize the position of the correct answer across questions.\n")
	sb.WriteString("7. Difficulty should be appropriate for a study review session: challenging enough to confirm understanding, not trick questions.\n\n")
	sb.WriteString("Return ONLY a JSON array with this exact structure, no other text:\n")
	sb.WriteString(`[{"question": "Question text here?", "options": ["Option A", "Option B", "Option C", "Option D"], "correctAnswerIndex": 0}]`)
	sb.WriteString("\n")
	return sb.String()
}
