package brain

import (
	"context"
	"fmt"

	"github.com/agenthands/brain/internal/llm"
	"github.com/agenthands/brain/internal/model"
)

const summaryChunkSize = 20

const episodeSummaryPrompt = `You are summarizing a cluster of related work items and documents.

Members:
%s

Respond with JSON: {"title": "<short episode title>", "summary": "<two or three sentence summary>"}`

const episodeReducePrompt = `You are combining partial summaries of one cluster of related work.

Partial summaries:
%s

Respond with JSON: {"title": "<short episode title>", "summary": "<two or three sentence summary>"}`

type episodeSummary struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
}

// EpisodeSummarizer produces a title and summary for an episode from its
// member summaries. Large episodes are reduced chunk by chunk so any
// member count fits the model context.
type EpisodeSummarizer struct {
	LLM llm.LLMClient
}

func NewEpisodeSummarizer(llmClient llm.LLMClient) *EpisodeSummarizer {
	return &EpisodeSummarizer{LLM: llmClient}
}

func (s *EpisodeSummarizer) Summarize(ctx context.Context, ep *model.Episode) (string, string, error) {
	lines := make([]string, 0, len(ep.Members))
	for _, m := range ep.Members {
		text := m.Summary
		if text == "" {
			text = m.Title
		}
		if text == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("- %s: %s", m.NodeID, text))
	}
	if len(lines) == 0 {
		return "", "", fmt.Errorf("no member text to summarize")
	}
	return s.summarizeLines(ctx, lines, episodeSummaryPrompt)
}

func (s *EpisodeSummarizer) summarizeLines(ctx context.Context, lines []string, promptTemplate string) (string, string, error) {
	if len(lines) <= summaryChunkSize {
		prompt := fmt.Sprintf(promptTemplate, joinLines(lines))
		response, err := s.LLM.Generate(ctx, prompt)
		if err != nil {
			return "", "", fmt.Errorf("failed to generate episode summary: %w", err)
		}
		result, err := llm.ParseJSON[episodeSummary](response)
		if err != nil {
			return "", "", fmt.Errorf("failed to parse episode summary: %w", err)
		}
		return result.Title, result.Summary, nil
	}

	var partials []string
	for i := 0; i < len(lines); i += summaryChunkSize {
		end := i + summaryChunkSize
		if end > len(lines) {
			end = len(lines)
		}
		_, summary, err := s.summarizeLines(ctx, lines[i:end], promptTemplate)
		if err != nil {
			continue
		}
		partials = append(partials, fmt.Sprintf("- part %d: %s", len(partials)+1, summary))
	}
	if len(partials) == 0 {
		return "", "", fmt.Errorf("all summary chunks failed")
	}
	return s.summarizeLines(ctx, partials, episodeReducePrompt)
}

func joinLines(lines []string) string {
	out := ""
	for _, l := range lines {
		out += l + "\n"
	}
	return out
}
