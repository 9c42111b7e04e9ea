package llm

import (
	"context"
	"strings"

	"pairtalk/app/config"
	"pairtalk/app/util/apperr"

	"github.com/samber/oops"
	"github.com/tmc/langchaingo/llms"
	lcopenai "github.com/tmc/langchaingo/llms/openai"
)

var _ Completer = (*LangChain)(nil)

// LangChain completes through a langchaingo model speaking the OpenAI protocol.
type LangChain struct {
	cfg   config.LLM
	model llms.Model
}

func NewLangChain(cfg config.LLM) (*LangChain, error) {
	model, err := lcopenai.New(
		lcopenai.WithToken(cfg.Token),
		lcopenai.WithBaseURL(cfg.BaseURL),
		lcopenai.WithModel(cfg.Model),
		lcopenai.WithCallback(LogCallbackHandler{}),
	)
	if err != nil {
		return nil, oops.Errorf("failed to create langchain model: %w", err)
	}

	return NewLangChainWithModel(cfg, model), nil
}

func NewLangChainWithModel(cfg config.LLM, model llms.Model) *LangChain {
	return &LangChain{
		cfg:   cfg,
		model: model,
	}
}

func (l *LangChain) Complete(ctx context.Context, messages []Message) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, l.cfg.Timeout)
	defer cancel()

	content := make([]llms.MessageContent, 0, len(messages))
	for _, msg := range messages {
		content = append(content, llms.TextParts(langChainRole(msg.Role), msg.Content))
	}

	response, err := l.model.GenerateContent(ctx, content,
		llms.WithTemperature(float64(l.cfg.SamplingTemperature())),
		llms.WithMaxTokens(l.cfg.MaxTokens),
	)
	if err != nil {
		return "", apperr.Upstream(domain, err, "failed to generate content")
	}

	if len(response.Choices) == 0 {
		return "", apperr.Upstream(domain, oops.Errorf("empty choices"), "no content generated")
	}

	return strings.TrimSpace(response.Choices[0].Content), nil
}

func langChainRole(role Role) llms.ChatMessageType {
	switch role {
	case RoleSystem:
		return llms.ChatMessageTypeSystem
	case RoleAssistant:
		return llms.ChatMessageTypeAI
	default:
		return llms.ChatMessageTypeHuman
	}
}
