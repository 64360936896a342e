package agent

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"ventureai/internal/config"
)

// NewRuntimeFromEnv picks the model backend named by AGENT_PROVIDER.
func NewRuntimeFromEnv(ctx context.Context, cfg aws.Config) (Runtime, error) {
	switch p := config.AgentProvider(); p {
	case "bedrock":
		rt, err := NewBedrockRuntime(bedrockruntime.NewFromConfig(cfg), config.BedrockModelID())
		if err != nil {
			return nil, err
		}
		return rt, nil
	case "gemini":
		key, err := config.Secret(ctx, ssm.NewFromConfig(cfg), "GEMINI_API_KEY", "GEMINI_API_KEY_PARAM")
		if err != nil {
			return nil, fmt.Errorf("gemini api key: %w", err)
		}
		rt, err := NewGeminiRuntime(ctx, key, config.GeminiModel())
		if err != nil {
			return nil, err
		}
		return rt, nil
	default:
		return nil, fmt.Errorf("unknown AGENT_PROVIDER %q", p)
	}
}
