package warehouse

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/glue"
	gluetypes "github.com/aws/aws-sdk-go-v2/service/glue/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/writer"

	"ventureai/internal/logging"
)

type S3PutClient interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type PartitionClient interface {
	CreatePartition(ctx context.Context, params *glue.CreatePartitionInput, optFns ...func(*glue.Options)) (*glue.CreatePartitionOutput, error)
}

// Writer appends analysis rows to the table, one Parquet file per row.
type Writer struct {
	s3    S3PutClient
	glue  PartitionClient
	table Table
}

func NewWriter(s3c S3PutClient, gc PartitionClient, t Table) *Writer {
	return &Writer{s3: s3c, glue: gc, table: t}
}

// ObjectKey is where a row's Parquet file is written:
//
//	<prefix>dt=YYYY-MM-DD/part-<analysis id>.parquet
func (w *Writer) ObjectKey(row *AnalysisRow) string {
	return fmt.Sprintf("%s%s=%s/part-%s.parquet", w.table.Prefix, PartitionColumn, row.Partition(), aws.ToString(row.AnalysisID))
}

// Insert writes row and registers its partition so Athena sees it immediately.
func (w *Writer) Insert(ctx context.Context, row *AnalysisRow) (string, error) {
	if err := w.table.validate(); err != nil {
		return "", err
	}
	if row.AnalysisID == nil || *row.AnalysisID == "" {
		return "", fmt.Errorf("insert: row has no analysis_id")
	}

	data, err := encodeParquet(row)
	if err != nil {
		return "", err
	}

	key := w.ObjectKey(row)
	_, err = w.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(w.table.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/octet-stream"),
	})
	if err != nil {
		return "", fmt.Errorf("s3 PutObject %s: %w", key, err)
	}

	dt := row.Partition()
	if err := w.addPartition(ctx, dt); err != nil {
		return "", err
	}

	logging.Info().
		Str("analysis_id", aws.ToString(row.AnalysisID)).
		Str("key", key).
		Msg("new row successfully added to warehouse")
	return key, nil
}

func (w *Writer) addPartition(ctx context.Context, dt string) error {
	_, err := w.glue.CreatePartition(ctx, &glue.CreatePartitionInput{
		DatabaseName: aws.String(w.table.Database),
		TableName:    aws.String(w.table.Name),
		PartitionInput: &gluetypes.PartitionInput{
			Values:            []string{dt},
			StorageDescriptor: storageDescriptor(w.table.PartitionLocation(dt)),
		},
	})
	if err == nil {
		return nil
	}
	var ae *gluetypes.AlreadyExistsException
	if errors.As(err, &ae) {
		return nil
	}
	return fmt.Errorf("glue CreatePartition dt=%s: %w", dt, err)
}

// encodeParquet writes a single-row Parquet file through a temp file, which is
// what the local source writer needs.
func encodeParquet(row *AnalysisRow) ([]byte, error) {
	localPath := filepath.Join(os.TempDir(), "analysis_"+randHex(8)+".parquet")
	defer func() { _ = os.Remove(localPath) }()

	fw, err := local.NewLocalFileWriter(localPath)
	if err != nil {
		return nil, fmt.Errorf("parquet file writer: %w", err)
	}

	pw, err := writer.NewParquetWriter(fw, new(AnalysisRow), 1)
	if err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("parquet writer: %w", err)
	}
	pw.RowGroupSize = 128 * 1024 * 1024
	pw.PageSize = 8 * 1024
	pw.CompressionType = 0 // no snappy

	if err := pw.Write(*row); err != nil {
		_ = pw.WriteStop()
		_ = fw.Close()
		return nil, fmt.Errorf("parquet write row: %w", err)
	}
	if err := pw.WriteStop(); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("parquet write stop: %w", err)
	}
	if err := fw.Close(); err != nil {
		return nil, fmt.Errorf("parquet close: %w", err)
	}

	data, err := os.ReadFile(localPath)
	if err != nil {
		return nil, fmt.Errorf("read parquet tmp: %w", err)
	}
	return data, nil
}

func randHex(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
