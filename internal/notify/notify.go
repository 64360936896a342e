// Package notify announces finished analyses on an SNS topic.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
	"golang.org/x/text/unicode/norm"
)

type Publisher interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

var _ Publisher = (*sns.Client)(nil)

// AnalysisEvent is the JSON message body.
type AnalysisEvent struct {
	AnalysisID      string `json:"analysis_id"`
	UserID          string `json:"user_id"`
	SessionID       string `json:"session_id"`
	CompanyName     string `json:"company_name,omitempty"`
	Recommendation  string `json:"recommendation,omitempty"`
	GeneratedPDFURL string `json:"generated_pdf_url"`
}

type Notifier struct {
	sns   Publisher
	topic string
}

// New returns a notifier; with an empty topic every call is a no-op.
func New(p Publisher, topicArn string) *Notifier {
	return &Notifier{sns: p, topic: strings.TrimSpace(topicArn)}
}

func (n *Notifier) Enabled() bool {
	return n != nil && n.topic != ""
}

// SNS subjects are limited to 100 printable ASCII characters.
func subject(company string) string {
	s := "VentureAI: investment memo ready"
	if company = asciiText(company); company != "" {
		s += " for " + company
	}
	if r := []rune(s); len(r) > 100 {
		s = string(r[:97]) + "..."
	}
	return s
}

// asciiText folds accents ("Café" becomes "Cafe"), turns whitespace into
// single spaces and drops every other non-printable or non-ASCII rune.
func asciiText(s string) string {
	var b strings.Builder
	for _, r := range norm.NFKD.String(s) {
		switch {
		case r >= 0x20 && r < 0x7f:
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func (n *Notifier) AnalysisReady(ctx context.Context, ev AnalysisEvent) (string, error) {
	if !n.Enabled() {
		return "", nil
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return "", fmt.Errorf("encode notification: %w", err)
	}
	attrs := map[string]snstypes.MessageAttributeValue{
		"event": stringAttr("analysis.ready"),
	}
	// empty attribute values are rejected by SNS
	if ev.UserID != "" {
		attrs["user_id"] = stringAttr(ev.UserID)
	}
	out, err := n.sns.Publish(ctx, &sns.PublishInput{
		TopicArn:          aws.String(n.topic),
		Subject:           aws.String(subject(ev.CompanyName)),
		Message:           aws.String(string(body)),
		MessageAttributes: attrs,
	})
	if err != nil {
		return "", fmt.Errorf("sns Publish: %w", err)
	}
	return aws.ToString(out.MessageId), nil
}

func stringAttr(v string) snstypes.MessageAttributeValue {
	return snstypes.MessageAttributeValue{DataType: aws.String("String"), StringValue: aws.String(v)}
}
