package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"career-advisor-platform/internal/domain/ports/adapter"
)

var _ adapter.AIServiceAdapter = (*GeminiAdapter)(nil)

// GeminiAdapter implements adapter.AIServiceAdapter on the Gemini API with
// one stateless GenerateContent call per request.
type GeminiAdapter struct {
	client *genai.Client
	model  string
	maxOut int
}

func NewGeminiAdapter(ctx context.Context, apiKey, baseURL, model string, maxOut int) (*GeminiAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("gemini api key empty")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	cc := &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI}
	if strings.TrimSpace(baseURL) != "" {
		cc.HTTPOptions.BaseURL = baseURL
	}
	c, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return &GeminiAdapter{client: c, model: model, maxOut: maxOut}, nil
}

func (g *GeminiAdapter) Name() string { return "gemini" }

// CountTokens asks the API. When the call fails the length heuristic is
// returned with the error so callers may still decide.
func (g *GeminiAdapter) CountTokens(ctx context.Context, model string, messages []adapter.Message) (int, error) {
	system, contents := splitMessages(messages)
	if system != nil {
		contents = append([]*genai.Content{system}, contents...)
	}
	resp, err := g.client.Models.CountTokens(ctx, modelOrDefault(model, g.model), contents, nil)
	if err != nil {
		return estimateMessages(messages), fmt.Errorf("gemini count tokens: %w", err)
	}
	return int(resp.TotalTokens), nil
}

// ChatWithUsage sends the whole conversation. System messages become the
// system instruction; the last message must come from the user.
func (g *GeminiAdapter) ChatWithUsage(ctx context.Context, model string, messages []adapter.Message) (string, adapter.Usage, error) {
	system, contents := splitMessages(messages)
	if len(contents) == 0 || contents[len(contents)-1].Role != genai.RoleUser {
		return "", adapter.Usage{}, errors.New("gemini: conversation must end with a user message")
	}

	cfg := &genai.GenerateContentConfig{SystemInstruction: system}
	if g.maxOut > 0 {
		cfg.MaxOutputTokens = int32(g.maxOut)
	}
	resp, err := g.client.Models.GenerateContent(ctx, modelOrDefault(model, g.model), contents, cfg)
	if err != nil {
		return "", adapter.Usage{}, fmt.Errorf("gemini generate: %w", err)
	}

	text := candidateText(resp)
	if text == "" {
		return "", adapter.Usage{}, errors.New("gemini: empty candidate")
	}
	var u adapter.Usage
	if md := resp.UsageMetadata; md != nil {
		u = adapter.Usage{
			PromptTokens:     int(md.PromptTokenCount),
			CompletionTokens: int(md.CandidatesTokenCount),
			TotalTokens:      int(md.TotalTokenCount),
		}
	}
	return text, u, nil
}

// splitMessages maps port messages to Gemini contents. System messages are
// merged into one instruction; assistant turns use the model role.
func splitMessages(msgs []adapter.Message) (*genai.Content, []*genai.Content) {
	var system *genai.Content
	contents := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		part := &genai.Part{Text: m.Content}
		switch strings.ToLower(m.Role) {
		case adapter.RoleSystem:
			if system == nil {
				system = &genai.Content{Role: genai.RoleUser}
			}
			system.Parts = append(system.Parts, part)
		case adapter.RoleAssistant, "model":
			contents = append(contents, &genai.Content{Role: genai.RoleModel, Parts: []*genai.Part{part}})
		default:
			contents = append(contents, &genai.Content{Role: genai.RoleUser, Parts: []*genai.Part{part}})
		}
	}
	return system, contents
}

func candidateText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if p != nil {
			sb.WriteString(p.Text)
		}
	}
	return strings.TrimSpace(sb.String())
}
