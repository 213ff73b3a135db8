package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// openAIRefiner asks a chat model for refinement suggestions constrained to
// a JSON schema.
type openAIRefiner struct {
	client openai.Client
	logger *slog.Logger
}

func newOpenAIRefiner(apiKey string, logger *slog.Logger) *openAIRefiner {
	return &openAIRefiner{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		logger: logger,
	}
}

const refinerSystemPrompt = `You are a strength coach reviewing a client's training split.
Suggest conservative, concrete adjustments that follow the client's instruction.
Never suggest more than three changes. Keep the notes under 150 words of markdown.`

func (r *openAIRefiner) RefineSplit(ctx context.Context, req RefinementRequest) (Refinement, error) {
	planJSON, err := json.Marshal(req)
	if err != nil {
		return Refinement{}, fmt.Errorf("marshal request: %w", err)
	}

	prompt := fmt.Sprintf("Current split and instruction:\n%s", planJSON)

	chat, err := r.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(refinerSystemPrompt),
			openai.UserMessage(prompt),
		},
		Model: openai.ChatModelGPT4o,
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:        "split_refinement",
					Description: openai.String("Suggested adjustments to a training split"),
					Schema:      refinementSchema(),
					Strict:      openai.Bool(true),
				},
			},
		},
	})
	if err != nil {
		return Refinement{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(chat.Choices) == 0 {
		return Refinement{}, errors.New("chat completion returned no choices")
	}

	var refinement Refinement
	if err = json.Unmarshal([]byte(chat.Choices[0].Message.Content), &refinement); err != nil {
		return Refinement{}, fmt.Errorf("parse refinement response: %w", err)
	}
	if refinement.Summary == "" {
		return Refinement{}, errors.New("refinement response is missing a summary")
	}

	r.logger.LogAttrs(ctx, slog.LevelDebug, "received split refinement",
		slog.Int("changes", len(refinement.Changes)))
	return refinement, nil
}

func refinementSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"summary":        map[string]any{"type": "string"},
			"notes_markdown": map[string]any{"type": "string"},
			"changes": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"action": map[string]any{
							"type": "string",
							"enum": []string{"add_muscle", "remove_muscle", "swap_days", "adjust_volume"},
						},
						"target": map[string]any{"type": "string"},
						"detail": map[string]any{"type": "string"},
					},
					"required":             []string{"action", "target", "detail"},
					"additionalProperties": false,
				},
			},
		},
		"required":             []string{"summary", "notes_markdown", "changes"},
		"additionalProperties": false,
	}
}
