// Package agent talks to the hosted LLM that analyzes pitch decks and answers
// investor questions. A Runtime streams one model turn; App layers session
// history on top of it.
package agent

import (
	"context"
	"strings"

	"ventureai/internal/sessions"
)

const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Chunk is one streamed piece of model output.
type Chunk struct {
	Text string
}

type Request struct {
	System  string
	History []sessions.Content
	Message sessions.Content
}

// Runtime streams a single model turn, invoking fn for every text chunk in
// arrival order. An error from fn aborts the stream and is returned as is.
type Runtime interface {
	Stream(ctx context.Context, req Request, fn func(Chunk) error) error
}

// CollectText concatenates chunk text in order.
func CollectText(chunks []Chunk) string {
	var b strings.Builder
	for _, c := range chunks {
		b.WriteString(c.Text)
	}
	return b.String()
}

// UserMessage builds a user message from optional inline documents and a prompt.
func UserMessage(prompt string, docs ...sessions.Part) sessions.Content {
	parts := make([]sessions.Part, 0, len(docs)+1)
	parts = append(parts, docs...)
	if prompt != "" {
		parts = append(parts, sessions.Part{Text: prompt})
	}
	return sessions.Content{Role: RoleUser, Parts: parts}
}
