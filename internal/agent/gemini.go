package agent

import (
	"context"
	"fmt"
	"iter"
	"strings"

	"google.golang.org/genai"

	"ventureai/internal/sessions"
)

type streamFunc func(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error]

// GeminiRuntime streams turns through the Gemini API.
type GeminiRuntime struct {
	model  string
	stream streamFunc
}

func NewGeminiRuntime(ctx context.Context, apiKey, model string) (*GeminiRuntime, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if model == "" {
		model = "gemini-2.5-pro"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GeminiRuntime{model: model, stream: client.Models.GenerateContentStream}, nil
}

func (r *GeminiRuntime) Stream(ctx context.Context, req Request, fn func(Chunk) error) error {
	contents := make([]*genai.Content, 0, len(req.History)+1)
	for _, c := range req.History {
		if gc := geminiContent(c, false); gc != nil {
			contents = append(contents, gc)
		}
	}
	if gc := geminiContent(req.Message, true); gc != nil {
		contents = append(contents, gc)
	}

	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(0.2)),
	}
	if strings.TrimSpace(req.System) != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	for resp, err := range r.stream(ctx, r.model, contents, cfg) {
		if err != nil {
			return fmt.Errorf("gemini stream: %w", err)
		}
		for _, text := range responseTexts(resp) {
			if err := fn(Chunk{Text: text}); err != nil {
				return err
			}
		}
	}
	return nil
}

func geminiContent(c sessions.Content, live bool) *genai.Content {
	role := genai.RoleUser
	if c.Role == RoleModel {
		role = genai.RoleModel
	}

	var parts []*genai.Part
	for _, p := range c.Parts {
		switch {
		case p.Text != "":
			parts = append(parts, genai.NewPartFromText(p.Text))
		case live && len(p.Data) > 0:
			parts = append(parts, genai.NewPartFromBytes(p.Data, p.MIMEType))
		case p.MIMEType != "":
			parts = append(parts, genai.NewPartFromText(attachmentMarker(p)))
		}
	}
	if len(parts) == 0 {
		return nil
	}
	return genai.NewContentFromParts(parts, genai.Role(role))
}

// responseTexts returns every non-thought text part of every candidate.
func responseTexts(resp *genai.GenerateContentResponse) []string {
	if resp == nil {
		return nil
	}
	var out []string
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, p := range cand.Content.Parts {
			if p == nil || p.Thought || p.Text == "" {
				continue
			}
			out = append(out, p.Text)
		}
	}
	return out
}
