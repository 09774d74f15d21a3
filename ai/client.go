package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"
	"github.com/tnicklin/hanabot/logger"
	"github.com/tnicklin/hanabot/persona"
)

var _ Client = (*DefaultClient)(nil)

// DefaultClient talks to an OpenAI-compatible chat-completion API.
type DefaultClient struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	logger      logger.Logger
}

type Params struct {
	Config Config
	Logger logger.Logger
}

// New creates a completion client from the given config.
func New(p Params) *DefaultClient {
	cfg := p.Config

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.HTTPClient != nil {
		clientCfg.HTTPClient = cfg.HTTPClient
	}

	log := p.Logger
	if log == nil {
		log = logger.NewNop()
	}

	return &DefaultClient{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		logger:      log,
	}
}

// Reply sends the conversation to the completion API and returns the
// assistant's text. An empty completion is an error.
func (c *DefaultClient) Reply(ctx context.Context, conv Conversation) (string, error) {
	messages := buildMessages(conv)
	if len(messages) == 0 {
		return "", errors.New("ai: empty conversation")
	}

	requestID := uuid.NewString()
	c.logger.DebugW("chat completion request",
		"request_id", requestID,
		"model", c.model,
		"messages", len(messages),
		"has_image", conv.ImageURL != "",
	)

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		c.logger.ErrorW("chat completion failed", "request_id", requestID, "error", err)
		return "", fmt.Errorf("chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("ai: no choices in completion response")
	}

	reply := strings.TrimSpace(resp.Choices[0].Message.Content)
	if reply == "" {
		return "", errors.New("ai: empty completion")
	}

	c.logger.InfoW("chat completion",
		"request_id", requestID,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
	)

	return reply, nil
}

// buildMessages flattens a Conversation into API messages, preserving the
// priming / memories / history / closing / current-turn order.
func buildMessages(conv Conversation) []openai.ChatCompletionMessage {
	size := len(conv.Priming) + len(conv.History) + len(conv.Closing) + 2
	out := make([]openai.ChatCompletionMessage, 0, size)

	appendTranscript := func(t []persona.Message) {
		for _, msg := range t {
			out = append(out, openai.ChatCompletionMessage{
				Role:    msg.Role,
				Content: msg.Content,
			})
		}
	}

	appendTranscript(conv.Priming)

	if len(conv.Memories) > 0 {
		var sb strings.Builder
		sb.WriteString("Things you remember about this channel:")
		for _, memory := range conv.Memories {
			sb.WriteString("\n- ")
			sb.WriteString(memory)
		}
		out = append(out, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: sb.String(),
		})
	}

	appendTranscript(conv.History)
	appendTranscript(conv.Closing)

	if conv.Prompt == "" && conv.ImageURL == "" {
		return out
	}

	if conv.ImageURL != "" {
		out = append(out, openai.ChatCompletionMessage{
			Role: openai.ChatMessageRoleUser,
			MultiContent: []openai.ChatMessagePart{
				{
					Type: openai.ChatMessagePartTypeText,
					Text: conv.Prompt,
				},
				{
					Type: openai.ChatMessagePartTypeImageURL,
					ImageURL: &openai.ChatMessageImageURL{
						URL: conv.ImageURL,
					},
				},
			},
		})
		return out
	}

	out = append(out, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: conv.Prompt,
	})
	return out
}
