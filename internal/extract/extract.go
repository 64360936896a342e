// Package extract pulls plain text out of PDF decks with Textract.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/textract"
	tt "github.com/aws/aws-sdk-go-v2/service/textract/types"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"ventureai/internal/logging"
)

type TextractClient interface {
	StartDocumentTextDetection(ctx context.Context, params *textract.StartDocumentTextDetectionInput, optFns ...func(*textract.Options)) (*textract.StartDocumentTextDetectionOutput, error)
	GetDocumentTextDetection(ctx context.Context, params *textract.GetDocumentTextDetectionInput, optFns ...func(*textract.Options)) (*textract.GetDocumentTextDetectionOutput, error)
}

type S3PutClient interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type Downloader interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

var _ TextractClient = (*textract.Client)(nil)

// JobError is a Textract job that failed or did not finish in time.
type JobError struct {
	JobID   string
	Status  string
	Message string
}

func (e *JobError) Error() string {
	return fmt.Sprintf("textract job %s %s: %s", e.JobID, e.Status, e.Message)
}

var errInProgress = errors.New("textract job in progress")

type Result struct {
	Text      string   `json:"text"`
	Pages     int      `json:"pages"`
	PageTexts []string `json:"page_texts,omitempty"`
	JobID     string   `json:"job_id"`
}

type Options struct {
	Bucket       string
	Prefix       string // default "uploads/"
	PollInterval time.Duration
	MaxWait      time.Duration
}

type Extractor struct {
	fetch    Downloader
	s3       S3PutClient
	textract TextractClient
	opt      Options
	newID    func() string
}

func New(f Downloader, s3c S3PutClient, tc TextractClient, opt Options) (*Extractor, error) {
	if strings.TrimSpace(opt.Bucket) == "" {
		return nil, fmt.Errorf("missing env UPLOADS_BUCKET")
	}
	if opt.Prefix == "" {
		opt.Prefix = "uploads/"
	}
	if opt.PollInterval == 0 {
		opt.PollInterval = time.Second
	}
	if opt.MaxWait == 0 {
		opt.MaxWait = 2 * time.Minute
	}
	return &Extractor{fetch: f, s3: s3c, textract: tc, opt: opt, newID: uuid.NewString}, nil
}

// ExtractURL downloads the PDF at url, stages it in S3 and returns its text.
func (x *Extractor) ExtractURL(ctx context.Context, url string) (*Result, error) {
	data, err := x.fetch.Fetch(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("download pdf: %w", err)
	}
	key := x.opt.Prefix + x.newID() + ".pdf"
	if _, err := x.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(x.opt.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/pdf"),
	}); err != nil {
		return nil, fmt.Errorf("s3 PutObject %s: %w", key, err)
	}
	return x.ExtractObject(ctx, x.opt.Bucket, key)
}

// ExtractObject runs async text detection over an object already in S3.
func (x *Extractor) ExtractObject(ctx context.Context, bucket, key string) (*Result, error) {
	start, err := x.textract.StartDocumentTextDetection(ctx, &textract.StartDocumentTextDetectionInput{
		DocumentLocation: &tt.DocumentLocation{
			S3Object: &tt.S3Object{Bucket: aws.String(bucket), Name: aws.String(key)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("textract StartDocumentTextDetection: %w", err)
	}
	jobID := aws.ToString(start.JobId)
	logging.Info().Str("job_id", jobID).Str("key", key).Msg("textract job started")

	first, err := x.wait(ctx, jobID)
	if err != nil {
		return nil, err
	}

	lines := map[int][]string{}
	var pages int
	if first.DocumentMetadata != nil {
		pages = int(aws.ToInt32(first.DocumentMetadata.Pages))
	}
	out := first
	for {
		for _, b := range out.Blocks {
			if b.BlockType != tt.BlockTypeLine {
				continue
			}
			p := int(aws.ToInt32(b.Page))
			lines[p] = append(lines[p], aws.ToString(b.Text))
		}
		if aws.ToString(out.NextToken) == "" {
			break
		}
		out, err = x.textract.GetDocumentTextDetection(ctx, &textract.GetDocumentTextDetectionInput{
			JobId:     aws.String(jobID),
			NextToken: out.NextToken,
		})
		if err != nil {
			return nil, fmt.Errorf("textract GetDocumentTextDetection: %w", err)
		}
	}

	res := &Result{JobID: jobID, Pages: pages}
	res.PageTexts = joinPages(lines, pages)
	res.Text = strings.Join(res.PageTexts, "\n\n")
	if res.Pages == 0 {
		res.Pages = len(res.PageTexts)
	}
	return res, nil
}

func (x *Extractor) wait(ctx context.Context, jobID string) (*textract.GetDocumentTextDetectionOutput, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = x.opt.PollInterval
	b.MaxInterval = 5 * x.opt.PollInterval
	b.MaxElapsedTime = x.opt.MaxWait

	var out *textract.GetDocumentTextDetectionOutput
	op := func() error {
		o, err := x.textract.GetDocumentTextDetection(ctx, &textract.GetDocumentTextDetectionInput{
			JobId: aws.String(jobID),
		})
		if err != nil {
			return backoff.Permanent(fmt.Errorf("textract GetDocumentTextDetection: %w", err))
		}
		switch o.JobStatus {
		case tt.JobStatusSucceeded, tt.JobStatusPartialSuccess:
			out = o
			return nil
		case tt.JobStatusFailed:
			return backoff.Permanent(&JobError{JobID: jobID, Status: string(o.JobStatus), Message: aws.ToString(o.StatusMessage)})
		default:
			return errInProgress
		}
	}
	if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
		if errors.Is(err, errInProgress) {
			return nil, &JobError{JobID: jobID, Status: "TIMEOUT", Message: "job did not finish in time"}
		}
		return nil, err
	}
	return out, nil
}

// joinPages returns one string per page, 1-based pages in order. Pages with no
// lines are kept as empty strings so indexes line up with page numbers.
func joinPages(lines map[int][]string, pages int) []string {
	nums := make([]int, 0, len(lines))
	for p := range lines {
		nums = append(nums, p)
	}
	sort.Ints(nums)
	if len(nums) > 0 && nums[len(nums)-1] > pages {
		pages = nums[len(nums)-1]
	}
	out := make([]string, pages)
	for _, p := range nums {
		if p < 1 {
			continue
		}
		out[p-1] = strings.Join(lines[p], "\n")
	}
	return out
}
