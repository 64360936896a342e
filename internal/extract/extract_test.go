package extract

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/textract"
	tt "github.com/aws/aws-sdk-go-v2/service/textract/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetch struct {
	data []byte
	err  error
}

func (f fakeFetch) Fetch(context.Context, string) ([]byte, error) { return f.data, f.err }

type fakeS3 struct{ keys []string }

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.keys = append(f.keys, aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key))
	return &s3.PutObjectOutput{}, nil
}

type fakeTextract struct {
	started  *textract.StartDocumentTextDetectionInput
	statuses []tt.JobStatus
	message  string
	polls    int
	pages    map[string]*textract.GetDocumentTextDetectionOutput
}

func (f *fakeTextract) StartDocumentTextDetection(_ context.Context, in *textract.StartDocumentTextDetectionInput, _ ...func(*textract.Options)) (*textract.StartDocumentTextDetectionOutput, error) {
	f.started = in
	return &textract.StartDocumentTextDetectionOutput{JobId: aws.String("job-1")}, nil
}

func (f *fakeTextract) GetDocumentTextDetection(_ context.Context, in *textract.GetDocumentTextDetectionInput, _ ...func(*textract.Options)) (*textract.GetDocumentTextDetectionOutput, error) {
	if in.NextToken != nil {
		return f.pages[aws.ToString(in.NextToken)], nil
	}
	st := f.statuses[len(f.statuses)-1]
	if f.polls < len(f.statuses) {
		st = f.statuses[f.polls]
	}
	f.polls++
	if st != tt.JobStatusSucceeded {
		return &textract.GetDocumentTextDetectionOutput{JobStatus: st, StatusMessage: aws.String(f.message)}, nil
	}
	out := *f.pages[""]
	out.JobStatus = st
	return &out, nil
}

func line(page int32, text string) tt.Block {
	return tt.Block{BlockType: tt.BlockTypeLine, Page: aws.Int32(page), Text: aws.String(text)}
}

func newTestExtractor(t *testing.T, tc TextractClient, s3c S3PutClient, f Downloader) *Extractor {
	t.Helper()
	x, err := New(f, s3c, tc, Options{Bucket: "uploads-bkt", PollInterval: time.Millisecond, MaxWait: 100 * time.Millisecond})
	require.NoError(t, err)
	x.newID = func() string { return "fixed" }
	return x
}

func TestExtractURL(t *testing.T) {
	tc := &fakeTextract{
		statuses: []tt.JobStatus{tt.JobStatusInProgress, tt.JobStatusSucceeded},
		pages: map[string]*textract.GetDocumentTextDetectionOutput{
			"": {
				DocumentMetadata: &tt.DocumentMetadata{Pages: aws.Int32(3)},
				Blocks: []tt.Block{
					{BlockType: tt.BlockTypePage, Page: aws.Int32(1)},
					line(1, "Sia"),
					{BlockType: tt.BlockTypeWord, Page: aws.Int32(1), Text: aws.String("Sia")},
					line(1, "Agentic analytics"),
				},
				NextToken: aws.String("p2"),
			},
			"p2": {Blocks: []tt.Block{line(3, "Thank you")}},
		},
	}
	s3c := &fakeS3{}
	x := newTestExtractor(t, tc, s3c, fakeFetch{data: []byte("%PDF-1.4")})

	res, err := x.ExtractURL(context.Background(), "https://example.com/deck.pdf")
	require.NoError(t, err)

	assert.Equal(t, []string{"uploads-bkt/uploads/fixed.pdf"}, s3c.keys)
	assert.Equal(t, "uploads/fixed.pdf", aws.ToString(tc.started.DocumentLocation.S3Object.Name))
	assert.Equal(t, "job-1", res.JobID)
	assert.Equal(t, 3, res.Pages)
	assert.Equal(t, []string{"Sia\nAgentic analytics", "", "Thank you"}, res.PageTexts)
	assert.Equal(t, "Sia\nAgentic analytics\n\n\n\nThank you", res.Text)
}

func TestExtractJobFailed(t *testing.T) {
	tc := &fakeTextract{statuses: []tt.JobStatus{tt.JobStatusFailed}, message: "UNSUPPORTED_DOCUMENT"}
	x := newTestExtractor(t, tc, &fakeS3{}, fakeFetch{data: []byte("x")})

	_, err := x.ExtractURL(context.Background(), "https://example.com/a.pdf")
	var je *JobError
	require.ErrorAs(t, err, &je)
	assert.Equal(t, "FAILED", je.Status)
	assert.Equal(t, "UNSUPPORTED_DOCUMENT", je.Message)
}

func TestExtractTimeout(t *testing.T) {
	tc := &fakeTextract{statuses: []tt.JobStatus{tt.JobStatusInProgress}}
	x := newTestExtractor(t, tc, &fakeS3{}, fakeFetch{data: []byte("x")})

	_, err := x.ExtractURL(context.Background(), "https://example.com/a.pdf")
	var je *JobError
	require.ErrorAs(t, err, &je)
	assert.Equal(t, "TIMEOUT", je.Status)
}

func TestExtractDownloadError(t *testing.T) {
	s3c := &fakeS3{}
	x := newTestExtractor(t, &fakeTextract{}, s3c, fakeFetch{err: errors.New("404")})
	_, err := x.ExtractURL(context.Background(), "https://example.com/a.pdf")
	assert.ErrorContains(t, err, "download pdf")
	assert.Empty(t, s3c.keys)
}

func TestNewRequiresBucket(t *testing.T) {
	_, err := New(fakeFetch{}, &fakeS3{}, &fakeTextract{}, Options{})
	assert.Error(t, err)
}
