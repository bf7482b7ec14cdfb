package engine

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	"go.uber.org/zap"
)

// OpenAIEngine drives any chat-completions compatible backend: OpenAI
// itself, or DeepSeek and friends via a custom base URL.
type OpenAIEngine struct {
	client openai.Client
	model  string
	log    *zap.Logger
}

// OpenAIConfig configures the backend. BaseURL is optional; set it to point
// at an OpenAI-compatible provider.
type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// NewOpenAIEngine creates the engine.
func NewOpenAIEngine(log *zap.Logger, cfg OpenAIConfig) (*OpenAIEngine, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai engine: api key is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("openai engine: model is required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAIEngine{
		client: openai.NewClient(opts...),
		model:  cfg.Model,
		log:    log.Named("engine.openai"),
	}, nil
}

func (e *OpenAIEngine) Name() string { return "openai" }

// Decide sends the page state and screenshot and parses the reply.
func (e *OpenAIEngine) Decide(ctx context.Context, req Request) (Decision, error) {
	parts := []openai.ChatCompletionContentPartUnionParam{
		openai.TextContentPart(BuildUserPrompt(req)),
	}
	if len(req.Screenshot) > 0 {
		dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(req.Screenshot)
		parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
			URL: dataURL,
		}))
	}

	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(e.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(parts),
		},
	}

	resp, err := e.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return Decision{}, fmt.Errorf("openai completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Decision{}, fmt.Errorf("%w: empty completion", ErrDecisionParse)
	}

	raw := resp.Choices[0].Message.Content
	e.log.Debug("model reply", zap.String("content", raw))
	return ParseDecision(raw)
}
