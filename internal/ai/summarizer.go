package ai

import (
	"context"
	"fmt"
	"strings"
)

// SummarizerClient produces two-sentence plain-language summaries of
// grant listings. A failed or empty generation yields "", never an
// error surfaced to the pipeline: records are useful without summaries.
type SummarizerClient struct {
	client *OllamaClient
}

func NewSummarizer(client *OllamaClient) *SummarizerClient {
	return &SummarizerClient{client: client}
}

func (s *SummarizerClient) Summarize(ctx context.Context, title, description string) (string, error) {
	if s.client == nil || strings.TrimSpace(description) == "" {
		return "", nil
	}

	prompt := fmt.Sprintf(`Summarize this government grant opportunity in exactly two short sentences for a local council officer. State what it funds and who can apply. Do not invent amounts or dates.

Title: %s
Description: %s

Summary:`, title, description)

	out, err := s.client.GenerateCompletion(ctx, prompt, false)
	if err != nil {
		return "", nil
	}
	return strings.TrimSpace(out), nil
}
