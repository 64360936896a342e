package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// LoadAWS loads the shared AWS config (Lambda execution role creds when deployed).
func LoadAWS(ctx context.Context) (aws.Config, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return cfg, nil
}

type SSMClient interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// Secret returns the value of env var name, or, when that is empty, the decrypted
// SSM parameter whose name is held in paramEnv.
func Secret(ctx context.Context, c SSMClient, name, paramEnv string) (string, error) {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		return v, nil
	}
	param := strings.TrimSpace(os.Getenv(paramEnv))
	if param == "" {
		return "", fmt.Errorf("missing env %s or %s", name, paramEnv)
	}
	if c == nil {
		return "", fmt.Errorf("no ssm client to resolve %s", param)
	}

	out, err := c.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(param),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("ssm GetParameter %s: %w", param, err)
	}
	if out.Parameter == nil || strings.TrimSpace(aws.ToString(out.Parameter.Value)) == "" {
		return "", fmt.Errorf("ssm parameter %s is empty", param)
	}
	return strings.TrimSpace(aws.ToString(out.Parameter.Value)), nil
}
