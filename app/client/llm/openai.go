package llm

import (
	"context"
	"math"
	"net/http"
	"strings"

	"pairtalk/app/config"
	"pairtalk/app/util/apperr"

	"github.com/samber/oops"
	"github.com/sashabaranov/go-openai"
)

var _ Completer = (*OpenAI)(nil)

type OpenAI struct {
	cfg    config.LLM
	client *openai.Client
}

func NewOpenAI(cfg config.LLM) *OpenAI {
	return &OpenAI{
		cfg:    cfg,
		client: createClient(cfg),
	}
}

func createClient(cfg config.LLM) *openai.Client {
	clientConfig := openai.DefaultConfig(cfg.Token)

	clientConfig.BaseURL = cfg.BaseURL
	clientConfig.HTTPClient = &http.Client{
		Timeout: cfg.Timeout,
	}

	return openai.NewClientWithConfig(clientConfig)
}

func (o *OpenAI) Complete(ctx context.Context, messages []Message) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	defer cancel()

	request := openai.ChatCompletionRequest{
		Model:               o.cfg.Model,
		Messages:            make([]openai.ChatCompletionMessage, 0, len(messages)),
		MaxCompletionTokens: o.cfg.MaxTokens,
		Temperature:         o.cfg.SamplingTemperature(),
	}

	// go-openai drops a zero temperature from the request
	if request.Temperature == 0 {
		request.Temperature = math.SmallestNonzeroFloat32
	}

	for _, msg := range messages {
		request.Messages = append(request.Messages, openai.ChatCompletionMessage{
			Role:    openAIRole(msg.Role),
			Content: msg.Content,
		})
	}

	aiResponse, err := o.client.CreateChatCompletion(ctx, request)
	if err != nil {
		return "", apperr.Upstream(domain, err, "failed to create chat completion")
	}

	if len(aiResponse.Choices) == 0 {
		return "", apperr.Upstream(domain, oops.Errorf("empty choices"), "no chat completion found")
	}

	return strings.TrimSpace(aiResponse.Choices[0].Message.Content), nil
}

func openAIRole(role Role) string {
	switch role {
	case RoleSystem:
		return openai.ChatMessageRoleSystem
	case RoleAssistant:
		return openai.ChatMessageRoleAssistant
	default:
		return openai.ChatMessageRoleUser
	}
}
