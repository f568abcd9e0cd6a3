package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/sahaay-health/sahaay/backend/internal/config"
	"github.com/sahaay-health/sahaay/backend/internal/metrics"
	"github.com/sahaay-health/sahaay/backend/pkg/log"
)

// ErrServiceUnavailable is returned whenever the backing model cannot produce an answer.
var ErrServiceUnavailable = errors.New("generative service unavailable")

// SystemPrompt is the fixed instruction sent with every generated answer.
const SystemPrompt = "You are a medical assistant providing detailed and scholarly responses, citing multiple references"

// Request carries one completion call. Unset generation fields fall back to configuration;
// Temperature is a pointer so an explicit zero is honoured.
type Request struct {
	SystemPrompt string
	Context      string
	Model        string
	Temperature  *float64
	MaxTokens    int
}

// Service encapsulates the text-completion chain.
type Service struct {
	chatModel model.BaseChatModel
	cfg       config.AIConfig
	chain     compose.Runnable[map[string]any, *schema.Message]
}

// NewService creates the configured chat model and compiles the completion chain.
func NewService(ctx context.Context, cfg config.AIConfig) (*Service, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return NewServiceWithModel(ctx, chatModel, cfg)
}

// NewServiceWithModel compiles the chain around an existing chat model.
func NewServiceWithModel(ctx context.Context, chatModel model.BaseChatModel, cfg config.AIConfig) (*Service, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("chat model is required")
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.UserMessage("{message}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &Service{
		chatModel: chatModel,
		cfg:       cfg,
		chain:     runnable,
	}, nil
}

// Generate runs one completion and returns the trimmed answer text.
func (s *Service) Generate(ctx context.Context, req Request) (string, error) {
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	systemPrompt := req.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = SystemPrompt
	}

	input := map[string]any{
		"system":  systemPrompt,
		"message": req.Context,
	}

	start := time.Now()
	response, err := s.chain.Invoke(ctx, input, compose.WithChatModelOption(s.options(req)...))
	metrics.GenerationDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.GenerationFailures.Inc()
		return "", fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	if response == nil || strings.TrimSpace(response.Content) == "" {
		metrics.GenerationFailures.Inc()
		return "", fmt.Errorf("%w: empty model response", ErrServiceUnavailable)
	}

	text := strings.TrimSpace(response.Content)
	log.Infow("generated response", "model", s.modelName(req), "length", len(text), "latency", time.Since(start).String())
	return text, nil
}

func (s *Service) options(req Request) []model.Option {
	temperature := s.cfg.Temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = s.cfg.MaxTokens
	}

	opts := []model.Option{model.WithTemperature(float32(temperature))}
	if maxTokens > 0 {
		opts = append(opts, model.WithMaxTokens(maxTokens))
	}
	if name := s.modelName(req); name != "" {
		opts = append(opts, model.WithModel(name))
	}
	return opts
}

func (s *Service) modelName(req Request) string {
	if req.Model != "" {
		return req.Model
	}
	return s.cfg.Model
}
