package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"career-advisor-platform/internal/domain"
	"career-advisor-platform/internal/domain/model"
	"career-advisor-platform/internal/domain/ports/adapter"
	"career-advisor-platform/internal/infra/logging"
	"career-advisor-platform/internal/infra/metrics"
)

// Compile-time check
var _ AdvisorUseCase = (*advisorUC)(nil)

const (
	chatSystemPrompt = "You are a career advisor. Give concise, practical guidance on careers, skills and job search."

	roadmapSystemPrompt = `You are a career advisor. Reply with JSON only, shaped as
{"steps":[{"title":"...","description":"...","durationWeeks":4,"resources":["..."]}]}`

	fallbackChatReply = "Our advisor is temporarily unavailable. Meanwhile, write down the role you are aiming for, " +
		"list the skills it asks for, and pick one you can practice this week. Please try again in a few minutes."
)

type AdvisorUseCase interface {
	Chat(ctx context.Context, userID, message string) (model.Result[model.ChatReply], error)
	Roadmap(ctx context.Context, userID, goal string) (model.Result[model.Roadmap], error)
}

type advisorUC struct {
	ai        adapter.AIServiceAdapter
	model     string
	maxPrompt int
	warn      *logging.RateLimited
	log       *zerolog.Logger
}

// NewAdvisorUseCase builds the advisor. An empty model lets the adapter pick
// its default.
func NewAdvisorUseCase(ai adapter.AIServiceAdapter, model string, maxPromptTokens int, warn *logging.RateLimited, logger *zerolog.Logger) *advisorUC {
	if maxPromptTokens <= 0 {
		maxPromptTokens = 2000
	}
	return &advisorUC{ai: ai, model: model, maxPrompt: maxPromptTokens, warn: warn, log: logger}
}

func (u *advisorUC) Chat(ctx context.Context, userID, message string) (model.Result[model.ChatReply], error) {
	defer logging.TraceDuration(u.log, "AdvisorUC.Chat")()

	message = strings.TrimSpace(message)
	if message == "" {
		return model.Result[model.ChatReply]{}, fmt.Errorf("empty message: %w", domain.ErrInvalidArgument)
	}
	msgs := []adapter.Message{
		{Role: adapter.RoleSystem, Content: chatSystemPrompt},
		{Role: adapter.RoleUser, Content: message},
	}
	if err := u.checkPrompt(ctx, msgs); err != nil {
		return model.Result[model.ChatReply]{}, err
	}

	text, err := u.call(ctx, "chat", msgs)
	if err != nil {
		if ctx.Err() != nil {
			return model.Result[model.ChatReply]{}, ctx.Err()
		}
		u.degraded("chat", model.DegradedLLMUnavailable, userID, err)
		return model.Fallback(model.ChatReply{Reply: fallbackChatReply}, model.DegradedLLMUnavailable), nil
	}
	return model.Real(model.ChatReply{Reply: text}), nil
}

func (u *advisorUC) Roadmap(ctx context.Context, userID, goal string) (model.Result[model.Roadmap], error) {
	defer logging.TraceDuration(u.log, "AdvisorUC.Roadmap")()

	goal = strings.TrimSpace(goal)
	if goal == "" {
		return model.Result[model.Roadmap]{}, fmt.Errorf("empty goal: %w", domain.ErrInvalidArgument)
	}
	msgs := []adapter.Message{
		{Role: adapter.RoleSystem, Content: roadmapSystemPrompt},
		{Role: adapter.RoleUser, Content: "Build a step by step learning roadmap for this goal: " + goal},
	}
	if err := u.checkPrompt(ctx, msgs); err != nil {
		return model.Result[model.Roadmap]{}, err
	}

	text, err := u.call(ctx, "roadmap", msgs)
	if err != nil {
		if ctx.Err() != nil {
			return model.Result[model.Roadmap]{}, ctx.Err()
		}
		u.degraded("roadmap", model.DegradedLLMUnavailable, userID, err)
		return model.Fallback(DefaultRoadmap(goal), model.DegradedLLMUnavailable), nil
	}

	steps, ok := ParseRoadmapSteps(text)
	if !ok {
		u.degraded("roadmap", model.DegradedLLMMalformed, userID, nil)
		return model.Fallback(DefaultRoadmap(goal), model.DegradedLLMMalformed), nil
	}
	return model.Real(model.Roadmap{Goal: goal, Steps: steps}), nil
}

// checkPrompt rejects prompts over the token budget. A counting failure is
// not fatal; the provider enforces its own context limit.
func (u *advisorUC) checkPrompt(ctx context.Context, msgs []adapter.Message) error {
	n, err := u.ai.CountTokens(ctx, u.model, msgs)
	if err != nil {
		logging.With(ctx, u.log).Debug().Err(err).Msg("token count unavailable")
		return nil
	}
	if n > u.maxPrompt {
		return fmt.Errorf("prompt is %d tokens, limit %d: %w", n, u.maxPrompt, domain.ErrInvalidArgument)
	}
	return nil
}

func (u *advisorUC) call(ctx context.Context, op string, msgs []adapter.Message) (string, error) {
	started := time.Now()
	text, usage, err := u.ai.ChatWithUsage(ctx, u.model, msgs)
	if err == nil && strings.TrimSpace(text) == "" {
		err = fmt.Errorf("%s: empty completion", op)
	}
	metrics.ObserveLLMCall(u.ai.Name(), u.model, usage.TotalTokens, time.Since(started), err)
	return strings.TrimSpace(text), err
}

func (u *advisorUC) degraded(op string, reason model.DegradedReason, userID string, cause error) {
	metrics.IncDegraded(op, string(reason))
	ev := u.warn.Warn(op + ":" + string(reason))
	if cause != nil {
		ev = ev.Err(cause)
	}
	ev.Str("user_id", userID).Str("reason", string(reason)).Msg("advisor returned fallback")
}

var fencedBlock = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*(.*?)```")

// ParseRoadmapSteps extracts steps from a model reply. Accepted shapes are
// {"roadmap":{"steps":[...]}}, {"steps":[...]} and a bare array, optionally
// inside a fenced code block or surrounded by prose.
func ParseRoadmapSteps(text string) ([]model.RoadmapStep, bool) {
	text = strings.TrimSpace(text)
	if m := fencedBlock.FindStringSubmatch(text); m != nil {
		text = strings.TrimSpace(m[1])
	}

	for _, candidate := range jsonCandidates(text) {
		if steps, ok := decodeSteps(candidate); ok {
			return steps, true
		}
	}
	return nil, false
}

func jsonCandidates(text string) []string {
	out := []string{text}
	if i, j := strings.Index(text, "{"), strings.LastIndex(text, "}"); i >= 0 && j > i {
		out = append(out, text[i:j+1])
	}
	if i, j := strings.Index(text, "["), strings.LastIndex(text, "]"); i >= 0 && j > i {
		out = append(out, text[i:j+1])
	}
	return out
}

func decodeSteps(s string) ([]model.RoadmapStep, bool) {
	var steps []model.RoadmapStep
	if strings.HasPrefix(s, "[") {
		if err := json.Unmarshal([]byte(s), &steps); err != nil {
			return nil, false
		}
		return validSteps(steps)
	}

	var obj struct {
		Roadmap *struct {
			Steps []model.RoadmapStep `json:"steps"`
		} `json:"roadmap"`
		Steps []model.RoadmapStep `json:"steps"`
	}
	if err := json.Unmarshal([]byte(s), &obj); err != nil {
		return nil, false
	}
	if obj.Roadmap != nil && len(obj.Roadmap.Steps) > 0 {
		return validSteps(obj.Roadmap.Steps)
	}
	return validSteps(obj.Steps)
}

func validSteps(steps []model.RoadmapStep) ([]model.RoadmapStep, bool) {
	if len(steps) == 0 {
		return nil, false
	}
	for _, s := range steps {
		if strings.TrimSpace(s.Title) == "" {
			return nil, false
		}
	}
	return steps, true
}

// DefaultRoadmap is served when the model is unavailable or its reply cannot be parsed.
func DefaultRoadmap(goal string) model.Roadmap {
	return model.Roadmap{
		Goal: goal,
		Steps: []model.RoadmapStep{
			{Title: "Assess your starting point", Description: "List the skills the target role asks for and mark the ones you already have.", DurationWeeks: 1},
			{Title: "Close the biggest gap", Description: "Pick the most requested missing skill and study it with a structured course.", DurationWeeks: 4},
			{Title: "Build a portfolio project", Description: "Apply the new skill in a small project you can show and explain.", DurationWeeks: 4},
			{Title: "Apply and iterate", Description: "Tailor your resume to the role, apply, and adjust based on feedback.", DurationWeeks: 3},
		},
	}
}
