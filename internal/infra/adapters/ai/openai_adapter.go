package ai

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/pkoukk/tiktoken-go"

	"career-advisor-platform/internal/domain/ports/adapter"
)

// Compile-time assurance this adapter satisfies the port
var _ adapter.AIServiceAdapter = (*OpenAIAdapter)(nil)

// OpenAIAdapter implements adapter.AIServiceAdapter on the Chat Completions
// API. A non-empty base URL points it at any compatible endpoint.
type OpenAIAdapter struct {
	client openai.Client
	model  string
	maxOut int

	encMu sync.Mutex
	encs  map[string]*tiktoken.Tiktoken
}

func NewOpenAIAdapter(apiKey, baseURL, model string, maxOut int) (*OpenAIAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("openai api key empty")
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if strings.TrimSpace(baseURL) != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIAdapter{
		client: openai.NewClient(opts...),
		model:  model,
		maxOut: maxOut,
		encs:   map[string]*tiktoken.Tiktoken{},
	}, nil
}

func (o *OpenAIAdapter) Name() string { return "openai" }

// CountTokens uses the model's tiktoken encoding, falling back to cl100k_base
// and finally to a length heuristic when no encoding can be loaded.
func (o *OpenAIAdapter) CountTokens(ctx context.Context, model string, messages []adapter.Message) (int, error) {
	enc := o.encoding(modelOrDefault(model, o.model))
	total := 0
	for _, m := range messages {
		// role and separators cost a few tokens per message
		total += 4
		if enc != nil {
			total += len(enc.Encode(m.Content, nil, nil))
		} else {
			total += estimateTokens(m.Content)
		}
	}
	return total, nil
}

func (o *OpenAIAdapter) encoding(model string) *tiktoken.Tiktoken {
	o.encMu.Lock()
	defer o.encMu.Unlock()
	if enc, ok := o.encs[model]; ok {
		return enc
	}
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
	}
	if err != nil {
		enc = nil
	}
	o.encs[model] = enc
	return enc
}

func (o *OpenAIAdapter) ChatWithUsage(ctx context.Context, model string, messages []adapter.Message) (string, adapter.Usage, error) {
	if len(messages) == 0 {
		return "", adapter.Usage{}, errors.New("openai: no messages")
	}
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(modelOrDefault(model, o.model)),
		Messages: toOpenAIMessages(messages),
	}
	if o.maxOut > 0 {
		params.MaxCompletionTokens = openai.Int(int64(o.maxOut))
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", adapter.Usage{}, err
	}
	u := adapter.Usage{
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
		TotalTokens:      int(resp.Usage.TotalTokens),
	}
	for _, c := range resp.Choices {
		if c.Message.Content != "" {
			return c.Message.Content, u, nil
		}
	}
	return "", u, errors.New("openai: no choice content")
}

func toOpenAIMessages(msgs []adapter.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch strings.ToLower(m.Role) {
		case adapter.RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case adapter.RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

// estimateTokens approximates four characters per token.
func estimateTokens(s string) int {
	n := len([]rune(s))
	return (n + 3) / 4
}
