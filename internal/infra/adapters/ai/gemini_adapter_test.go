//go:build !integration

package ai

import (
	"testing"

	"google.golang.org/genai"

	"career-advisor-platform/internal/domain/ports/adapter"
)

func TestSplitMessages(t *testing.T) {
	system, contents := splitMessages([]adapter.Message{
		{Role: "system", Content: "You are a career advisor."},
		{Role: "user", Content: "I like data."},
		{Role: "assistant", Content: "Try analytics."},
		{Role: "system", Content: "Answer briefly."},
		{Role: "user", Content: "What first?"},
	})

	if system == nil || len(system.Parts) != 2 {
		t.Fatalf("expected both system messages merged, got %+v", system)
	}
	if len(contents) != 3 {
		t.Fatalf("expected 3 conversation turns, got %d", len(contents))
	}
	want := []*genai.Content{{Role: genai.RoleUser}, {Role: genai.RoleModel}, {Role: genai.RoleUser}}
	for i, c := range contents {
		if c.Role != want[i].Role {
			t.Errorf("turn %d: expected role %s, got %s", i, want[i].Role, c.Role)
		}
	}
}

func TestCandidateText(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: " Learn SQL"}, nil, {Text: " first. "}}},
		}},
	}
	if got := candidateText(resp); got != "Learn SQL first." {
		t.Errorf("unexpected text %q", got)
	}
	if got := candidateText(&genai.GenerateContentResponse{}); got != "" {
		t.Errorf("expected empty text for no candidates, got %q", got)
	}
}
