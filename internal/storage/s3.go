// Package storage uploads generated reports to S3 and hands back a URL.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

const (
	ModePublic  = "public"
	ModePresign = "presign"
)

type PutAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type PresignAPI interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

var (
	_ PutAPI     = (*s3.Client)(nil)
	_ PresignAPI = (*s3.PresignClient)(nil)
)

type Options struct {
	Bucket string
	Region string
	// Mode is ModePublic or ModePresign.
	Mode string
	// PublicBaseURL replaces the virtual-hosted bucket URL in public mode (e.g. a CDN).
	PublicBaseURL string
	TTL           time.Duration
}

type Uploader struct {
	put     PutAPI
	presign PresignAPI
	opt     Options
}

func NewUploader(put PutAPI, presign PresignAPI, opt Options) (*Uploader, error) {
	if strings.TrimSpace(opt.Bucket) == "" {
		return nil, fmt.Errorf("missing env REPORTS_BUCKET")
	}
	switch opt.Mode {
	case "":
		opt.Mode = ModePublic
	case ModePublic, ModePresign:
	default:
		return nil, fmt.Errorf("unknown REPORT_URL_MODE %q", opt.Mode)
	}
	if opt.Mode == ModePresign && presign == nil {
		return nil, fmt.Errorf("presign mode needs a presign client")
	}
	if opt.TTL <= 0 {
		opt.TTL = 7 * 24 * time.Hour
	}
	return &Uploader{put: put, presign: presign, opt: opt}, nil
}

// ReportKey is where the memo PDF for an analysis lives.
func ReportKey(analysisID string) string {
	return fmt.Sprintf("investment_memos/%s.pdf", analysisID)
}

// Upload stores data at key and returns a URL a browser can fetch.
func (u *Uploader) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	in := &s3.PutObjectInput{
		Bucket:      aws.String(u.opt.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	}
	if u.opt.Mode == ModePublic {
		in.ACL = s3types.ObjectCannedACLPublicRead
	}
	if _, err := u.put.PutObject(ctx, in); err != nil {
		return "", fmt.Errorf("s3 PutObject %s/%s: %w", u.opt.Bucket, key, err)
	}

	if u.opt.Mode == ModePresign {
		req, err := u.presign.PresignGetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(u.opt.Bucket),
			Key:    aws.String(key),
		}, s3.WithPresignExpires(u.opt.TTL))
		if err != nil {
			return "", fmt.Errorf("presign %s: %w", key, err)
		}
		return req.URL, nil
	}
	return u.PublicURL(key), nil
}

func (u *Uploader) PublicURL(key string) string {
	escaped := escapeKey(key)
	if u.opt.PublicBaseURL != "" {
		return strings.TrimRight(u.opt.PublicBaseURL, "/") + "/" + escaped
	}
	if u.opt.Region == "" || u.opt.Region == "us-east-1" {
		return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", u.opt.Bucket, escaped)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", u.opt.Bucket, u.opt.Region, escaped)
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

// NewFromConfig builds an Uploader for the reports bucket from env settings.
func NewFromConfig(cfg aws.Config, opt Options) (*Uploader, error) {
	client := s3.NewFromConfig(cfg)
	if opt.Region == "" {
		opt.Region = cfg.Region
	}
	return NewUploader(client, s3.NewPresignClient(client), opt)
}
