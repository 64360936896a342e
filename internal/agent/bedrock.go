package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"ventureai/internal/sessions"
)

type BedrockClient interface {
	ConverseStream(ctx context.Context, params *bedrockruntime.ConverseStreamInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseStreamOutput, error)
}

var _ BedrockClient = (*bedrockruntime.Client)(nil)

// BedrockRuntime streams turns through the Bedrock Converse API.
type BedrockRuntime struct {
	client    BedrockClient
	modelID   string
	maxTokens int32
}

func NewBedrockRuntime(client BedrockClient, modelID string) (*BedrockRuntime, error) {
	if strings.TrimSpace(modelID) == "" {
		return nil, fmt.Errorf("missing env BEDROCK_MODEL_ID")
	}
	return &BedrockRuntime{client: client, modelID: modelID, maxTokens: 8192}, nil
}

func (r *BedrockRuntime) Stream(ctx context.Context, req Request, fn func(Chunk) error) error {
	in := r.converseInput(req)
	out, err := r.client.ConverseStream(ctx, in)
	if err != nil {
		return fmt.Errorf("bedrock ConverseStream: %w", err)
	}

	stream := out.GetStream()
	defer stream.Close()

	if err := drainConverseEvents(stream.Events(), fn); err != nil {
		return err
	}
	if err := stream.Err(); err != nil {
		return fmt.Errorf("bedrock stream: %w", err)
	}
	return nil
}

func (r *BedrockRuntime) converseInput(req Request) *bedrockruntime.ConverseStreamInput {
	var msgs []brtypes.Message
	for _, c := range req.History {
		msgs = appendMessage(msgs, bedrockMessage(c, false))
	}
	msgs = appendMessage(msgs, bedrockMessage(req.Message, true))

	in := &bedrockruntime.ConverseStreamInput{
		ModelId:  aws.String(r.modelID),
		Messages: msgs,
		InferenceConfig: &brtypes.InferenceConfiguration{
			MaxTokens:   aws.Int32(r.maxTokens),
			Temperature: aws.Float32(0.2),
		},
	}
	if strings.TrimSpace(req.System) != "" {
		in.System = []brtypes.SystemContentBlock{
			&brtypes.SystemContentBlockMemberText{Value: req.System},
		}
	}
	return in
}

// appendMessage merges consecutive same-role messages; Converse requires
// strictly alternating roles.
func appendMessage(msgs []brtypes.Message, m brtypes.Message) []brtypes.Message {
	if len(m.Content) == 0 {
		return msgs
	}
	if n := len(msgs); n > 0 && msgs[n-1].Role == m.Role {
		msgs[n-1].Content = append(msgs[n-1].Content, m.Content...)
		return msgs
	}
	return append(msgs, m)
}

// bedrockMessage converts a stored message. Only the live message carries
// document bytes; history keeps a text marker where a document was attached.
func bedrockMessage(c sessions.Content, live bool) brtypes.Message {
	role := brtypes.ConversationRoleUser
	if c.Role == RoleModel || c.Role == "assistant" {
		role = brtypes.ConversationRoleAssistant
	}

	m := brtypes.Message{Role: role}
	docN := 0
	for _, p := range c.Parts {
		switch {
		case p.Text != "":
			m.Content = append(m.Content, &brtypes.ContentBlockMemberText{Value: p.Text})
		case live && len(p.Data) > 0 && p.MIMEType == "application/pdf":
			docN++
			m.Content = append(m.Content, &brtypes.ContentBlockMemberDocument{Value: brtypes.DocumentBlock{
				Format: brtypes.DocumentFormatPdf,
				Name:   aws.String(fmt.Sprintf("pitch-deck-%d", docN)),
				Source: &brtypes.DocumentSourceMemberBytes{Value: p.Data},
			}})
		case p.MIMEType != "":
			m.Content = append(m.Content, &brtypes.ContentBlockMemberText{Value: attachmentMarker(p)})
		}
	}
	return m
}

func attachmentMarker(p sessions.Part) string {
	size := p.Size
	if len(p.Data) > 0 {
		size = len(p.Data)
	}
	return fmt.Sprintf("[attached %s, %d bytes]", p.MIMEType, size)
}

// drainConverseEvents forwards text deltas to fn until the channel closes.
func drainConverseEvents(events <-chan brtypes.ConverseStreamOutput, fn func(Chunk) error) error {
	for ev := range events {
		delta, ok := ev.(*brtypes.ConverseStreamOutputMemberContentBlockDelta)
		if !ok {
			continue
		}
		text, ok := delta.Value.Delta.(*brtypes.ContentBlockDeltaMemberText)
		if !ok || text.Value == "" {
			continue
		}
		if err := fn(Chunk{Text: text.Value}); err != nil {
			return err
		}
	}
	return nil
}
