package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"pairtalk/app/config"
	"pairtalk/app/util/apperr"

	"github.com/samber/do"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

func testLLMConfig(baseURL string) config.LLM {
	temperature := float32(0.5)

	return config.LLM{
		Provider:    "openai",
		BaseURL:     baseURL,
		Token:       "sk-test",
		Model:       "test-model",
		Temperature: &temperature,
		MaxTokens:   100,
		Timeout:     5 * time.Second,
	}
}

func TestScriptedAsksThenSummarizes(t *testing.T) {
	s := NewScripted(2, "Here's what I have understood so far from your perspective")
	ctx := context.Background()

	reply, err := s.Complete(ctx, []Message{{Role: RoleSystem, Content: "prompt"}})
	require.NoError(t, err)
	assert.Equal(t, "What would you like to talk about?", reply)

	reply, err = s.Complete(ctx, []Message{
		{Role: RoleSystem, Content: "prompt"},
		{Role: RoleUser, Content: "we fight about money"},
	})
	require.NoError(t, err)
	assert.Contains(t, reply, "we fight about money")
	assert.NotContains(t, reply, "understood so far")

	reply, err = s.Complete(ctx, []Message{
		{Role: RoleSystem, Content: "prompt"},
		{Role: RoleUser, Content: "we fight about money"},
		{Role: RoleAssistant, Content: "tell me more"},
		{Role: RoleUser, Content: "I feel ignored"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Here's what I have understood so far from your perspective: we fight about money / I feel ignored", reply)
}

func TestScriptedHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewScripted(1, "m").Complete(ctx, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOpenAISendsTranscript(t *testing.T) {
	var received struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"  hello there  "},"finish_reason":"stop"}]}`))
	}))
	defer server.Close()

	client := NewOpenAI(testLLMConfig(server.URL))

	reply, err := client.Complete(context.Background(), []Message{
		{Role: RoleSystem, Content: "be kind"},
		{Role: RoleUser, Content: "hi"},
		{Role: RoleAssistant, Content: "hello"},
	})
	require.NoError(t, err)
	assert.Equal(t, "hello there", reply)

	assert.Equal(t, "test-model", received.Model)
	require.Len(t, received.Messages, 3)
	assert.Equal(t, "system", received.Messages[0].Role)
	assert.Equal(t, "user", received.Messages[1].Role)
	assert.Equal(t, "assistant", received.Messages[2].Role)
}

func TestOpenAISendsZeroTemperature(t *testing.T) {
	var received struct {
		Temperature *float32 `json:"temperature"`
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"ok"},"finish_reason":"stop"}]}`))
	}))
	defer server.Close()

	cfg := testLLMConfig(server.URL)
	zero := float32(0)
	cfg.Temperature = &zero

	_, err := NewOpenAI(cfg).Complete(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	require.NoError(t, err)

	require.NotNil(t, received.Temperature)
	assert.InDelta(t, 0, *received.Temperature, 1e-6)
}

func TestLangChainPassesTemperature(t *testing.T) {
	var opts llms.CallOptions
	model := &optionsModel{opts: &opts}

	cfg := testLLMConfig("")
	zero := float32(0)
	cfg.Temperature = &zero

	_, err := NewLangChainWithModel(cfg, model).Complete(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	require.NoError(t, err)
	assert.Zero(t, opts.Temperature)
	assert.Equal(t, 100, opts.MaxTokens)
}

func TestOpenAIFailureIsUpstream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
	}))
	defer server.Close()

	_, err := NewOpenAI(testLLMConfig(server.URL)).Complete(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	assert.ErrorIs(t, err, apperr.ErrUpstream)
}

func TestOpenAIEmptyChoicesIsUpstream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","choices":[]}`))
	}))
	defer server.Close()

	_, err := NewOpenAI(testLLMConfig(server.URL)).Complete(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	assert.ErrorIs(t, err, apperr.ErrUpstream)
}

type fakeModel struct {
	got   []llms.MessageContent
	reply string
	err   error
}

func (f *fakeModel) GenerateContent(_ context.Context, messages []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	f.got = messages
	if f.err != nil {
		return nil, f.err
	}

	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: f.reply}}}, nil
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

// optionsModel records the call options it was given.
type optionsModel struct {
	fakeModel
	opts *llms.CallOptions
}

func (m *optionsModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	for _, opt := range options {
		opt(m.opts)
	}

	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: "ok"}}}, nil
}

func TestLangChainMapsRoles(t *testing.T) {
	model := &fakeModel{reply: " ok "}
	client := NewLangChainWithModel(testLLMConfig(""), model)

	reply, err := client.Complete(context.Background(), []Message{
		{Role: RoleSystem, Content: "be kind"},
		{Role: RoleUser, Content: "hi"},
		{Role: RoleAssistant, Content: "hello"},
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", reply)

	require.Len(t, model.got, 3)
	assert.Equal(t, llms.ChatMessageTypeSystem, model.got[0].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, model.got[1].Role)
	assert.Equal(t, llms.ChatMessageTypeAI, model.got[2].Role)
}

func TestLangChainFailureIsUpstream(t *testing.T) {
	client := NewLangChainWithModel(testLLMConfig(""), &fakeModel{err: errors.New("quota")})

	_, err := client.Complete(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	assert.ErrorIs(t, err, apperr.ErrUpstream)
}

func TestNewClientSelectsProvider(t *testing.T) {
	cfg, err := config.Parse([]byte("{}"))
	require.NoError(t, err)

	di := do.New()
	do.ProvideValue(di, cfg)
	do.Provide(di, NewClient)

	client := do.MustInvoke[Completer](di)
	assert.IsType(t, &Scripted{}, client)
}
