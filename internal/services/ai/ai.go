// Package ai wraps an OpenAI-compatible endpoint as the judgment capability
// monitors and the scheduler consume. A nil or empty result always means "no
// match" / "no content" to callers, never an abort.
package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"

	"github.com/tg-sentinel-go/internal/config"
	"github.com/tg-sentinel-go/internal/middleware"
)

// Service is the AI judgment capability.
type Service interface {
	// Configured reports whether an endpoint is available at all.
	Configured() bool
	// Judge sends a free-form judgment prompt and returns the raw response.
	Judge(ctx context.Context, prompt string) (string, error)
	// GenerateReply asks for message body text.
	GenerateReply(ctx context.Context, prompt string) (string, error)
	// ChooseButton picks one of options for the given message, returning the
	// chosen option text or "" when the model declines.
	ChooseButton(ctx context.Context, messageText string, options []string, prompt string) (string, error)
	// JudgeImage sends a vision prompt with a base64-encoded JPEG.
	JudgeImage(ctx context.Context, prompt, imageBase64 string) (string, error)
}

// OpenAIService implements Service over go-openai.
type OpenAIService struct {
	client      *openai.Client
	model       string
	visionModel string
	timeout     time.Duration
	maxRetries  int
	enabled     bool
	metrics     *middleware.Metrics
	logger      *logrus.Logger
}

// NewOpenAIService builds the capability from config. With Enabled false the
// service reports unconfigured and every call returns empty results.
func NewOpenAIService(cfg *config.AIConfig, metrics *middleware.Metrics, logger *logrus.Logger) *OpenAIService {
	s := &OpenAIService{
		model:       cfg.Model,
		visionModel: cfg.VisionModel,
		timeout:     cfg.Timeout,
		maxRetries:  cfg.MaxRetries,
		enabled:     cfg.Enabled && cfg.APIKey != "",
		metrics:     metrics,
		logger:      logger,
	}
	if s.visionModel == "" {
		s.visionModel = s.model
	}
	if s.enabled {
		oc := openai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			oc.BaseURL = cfg.BaseURL
		}
		s.client = openai.NewClientWithConfig(oc)
	}
	return s
}

func (s *OpenAIService) Configured() bool {
	return s.enabled
}

func (s *OpenAIService) Judge(ctx context.Context, prompt string) (string, error) {
	return s.complete(ctx, s.model, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleUser, Content: prompt},
	})
}

func (s *OpenAIService) GenerateReply(ctx context.Context, prompt string) (string, error) {
	return s.complete(ctx, s.model, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleUser, Content: prompt},
	})
}

func (s *OpenAIService) ChooseButton(ctx context.Context, messageText string, options []string, prompt string) (string, error) {
	if prompt == "" {
		prompt = "Pick the button that best fits the message."
	}
	full := fmt.Sprintf("%s\nMessage: %s\nButtons:\n%s\nAnswer with the exact text of one button, or 'none'.",
		prompt, messageText, strings.Join(options, "\n"))

	resp, err := s.complete(ctx, s.model, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleUser, Content: full},
	})
	if err != nil || resp == "" {
		return "", err
	}

	choice := strings.TrimSpace(resp)
	if strings.EqualFold(choice, "none") {
		return "", nil
	}
	// The model may quote or echo more than the option text; keep the option
	// that the answer contains.
	for _, opt := range options {
		if strings.Contains(strings.ToLower(choice), strings.ToLower(opt)) {
			return opt, nil
		}
	}
	return "", nil
}

func (s *OpenAIService) JudgeImage(ctx context.Context, prompt, imageBase64 string) (string, error) {
	if !s.enabled {
		return "", nil
	}
	msg := openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleUser,
		MultiContent: []openai.ChatMessagePart{
			{Type: openai.ChatMessagePartTypeText, Text: prompt},
			{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL: "data:image/jpeg;base64," + imageBase64,
				},
			},
		},
	}
	return s.complete(ctx, s.visionModel, []openai.ChatCompletionMessage{msg})
}

func (s *OpenAIService) complete(ctx context.Context, model string, messages []openai.ChatCompletionMessage) (string, error) {
	if !s.enabled {
		return "", nil
	}

	var lastErr error
	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		start := time.Now()
		reqCtx, cancel := context.WithTimeout(ctx, s.timeout)
		resp, err := s.client.CreateChatCompletion(reqCtx, openai.ChatCompletionRequest{
			Model:    model,
			Messages: messages,
		})
		cancel()

		if err == nil {
			s.metrics.RecordAIRequest(model, "ok", time.Since(start))
			if len(resp.Choices) == 0 {
				return "", nil
			}
			return strings.TrimSpace(resp.Choices[0].Message.Content), nil
		}

		s.metrics.RecordAIRequest(model, "error", time.Since(start))
		lastErr = err
		s.logger.WithError(err).WithFields(logrus.Fields{
			"attempt": attempt,
			"model":   model,
		}).Warn("AI request failed")

		if attempt < s.maxRetries {
			wait := time.Duration(2<<uint(attempt-1)) * time.Second
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(wait):
			}
		}
	}
	return "", fmt.Errorf("ai request failed after %d attempts: %w", s.maxRetries, lastErr)
}
