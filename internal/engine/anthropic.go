package engine

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"
)

// AnthropicEngine drives Claude models through the Messages API.
type AnthropicEngine struct {
	client anthropic.Client
	model  string
	log    *zap.Logger
}

// AnthropicConfig configures the backend.
type AnthropicConfig struct {
	APIKey string
	Model  string
}

// NewAnthropicEngine creates the engine.
func NewAnthropicEngine(log *zap.Logger, cfg AnthropicConfig) (*AnthropicEngine, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic engine: api key is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("anthropic engine: model is required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &AnthropicEngine{
		client: anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:  cfg.Model,
		log:    log.Named("engine.anthropic"),
	}, nil
}

func (e *AnthropicEngine) Name() string { return "anthropic" }

// Decide sends the page state and screenshot and parses the reply.
func (e *AnthropicEngine) Decide(ctx context.Context, req Request) (Decision, error) {
	blocks := []anthropic.ContentBlockParamUnion{
		anthropic.NewTextBlock(BuildUserPrompt(req)),
	}
	if len(req.Screenshot) > 0 {
		b64 := base64.StdEncoding.EncodeToString(req.Screenshot)
		blocks = append(blocks, anthropic.NewImageBlockBase64("image/png", b64))
	}

	resp, err := e.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(e.model),
		MaxTokens: 1024,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(blocks...),
		},
	})
	if err != nil {
		return Decision{}, fmt.Errorf("anthropic message: %w", err)
	}

	var parts []string
	for _, blk := range resp.Content {
		if text, ok := blk.AsAny().(anthropic.TextBlock); ok {
			parts = append(parts, text.Text)
		}
	}
	raw := strings.Join(parts, "\n")
	e.log.Debug("model reply", zap.String("content", raw))
	return ParseDecision(raw)
}
