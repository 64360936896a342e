package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

type fakeSNS struct {
	inputs []*sns.PublishInput
	err    error
}

func (f *fakeSNS) Publish(_ context.Context, in *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return nil, f.err
	}
	return &sns.PublishOutput{MessageId: aws.String("m-1")}, nil
}

func TestAnalysisReady(t *testing.T) {
	f := &fakeSNS{}
	n := New(f, "arn:aws:sns:us-east-1:1:analyses")

	id, err := n.AnalysisReady(context.Background(), AnalysisEvent{
		AnalysisID:      "a-1",
		UserID:          "u-1",
		SessionID:       "s-1",
		CompanyName:     "Acme",
		GeneratedPDFURL: "https://r/a-1.pdf",
	})
	require.NoError(t, err)
	assert.Equal(t, "m-1", id)

	require.Len(t, f.inputs, 1)
	in := f.inputs[0]
	assert.Equal(t, "VentureAI: investment memo ready for Acme", aws.ToString(in.Subject))
	msg := aws.ToString(in.Message)
	assert.Equal(t, "a-1", gjson.Get(msg, "analysis_id").String())
	assert.Equal(t, "https://r/a-1.pdf", gjson.Get(msg, "generated_pdf_url").String())
	assert.False(t, gjson.Get(msg, "recommendation").Exists())
	assert.Equal(t, "u-1", aws.ToString(in.MessageAttributes["user_id"].StringValue))
}

func TestAnalysisReadyDisabled(t *testing.T) {
	f := &fakeSNS{}
	id, err := New(f, "  ").AnalysisReady(context.Background(), AnalysisEvent{AnalysisID: "a"})
	require.NoError(t, err)
	assert.Empty(t, id)
	assert.Empty(t, f.inputs)

	var nilNotifier *Notifier
	assert.False(t, nilNotifier.Enabled())
}

func TestAnalysisReadyError(t *testing.T) {
	f := &fakeSNS{err: errors.New("throttled")}
	_, err := New(f, "arn").AnalysisReady(context.Background(), AnalysisEvent{})
	assert.ErrorContains(t, err, "throttled")
	_, hasUser := f.inputs[0].MessageAttributes["user_id"]
	assert.False(t, hasUser)
}

func TestSubjectTruncated(t *testing.T) {
	s := subject(strings.Repeat("x", 200))
	assert.Len(t, s, 100)
	assert.True(t, strings.HasSuffix(s, "..."))
}

func TestSubjectIsASCII(t *testing.T) {
	assert.Equal(t, "VentureAI: investment memo ready for Cafe Senor Ltd", subject("Café  Señor\nLtd"))
	assert.Equal(t, "VentureAI: investment memo ready", subject("北京科技"))

	s := subject(strings.Repeat("é", 150))
	assert.Len(t, s, 100)
	for _, r := range s {
		assert.Less(t, r, rune(0x7f))
	}
}
