package warehouse

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/glue"
	gluetypes "github.com/aws/aws-sdk-go-v2/service/glue/types"

	"ventureai/internal/logging"
)

const (
	parquetInputFormat  = "org.apache.hadoop.hive.ql.io.parquet.MapredParquetInputFormat"
	parquetOutputFormat = "org.apache.hadoop.hive.ql.io.parquet.MapredParquetOutputFormat"
	parquetSerde        = "org.apache.hadoop.hive.ql.io.parquet.serde.ParquetHiveSerDe"
)

type GlueClient interface {
	GetDatabase(ctx context.Context, params *glue.GetDatabaseInput, optFns ...func(*glue.Options)) (*glue.GetDatabaseOutput, error)
	CreateDatabase(ctx context.Context, params *glue.CreateDatabaseInput, optFns ...func(*glue.Options)) (*glue.CreateDatabaseOutput, error)
	GetTable(ctx context.Context, params *glue.GetTableInput, optFns ...func(*glue.Options)) (*glue.GetTableOutput, error)
	CreateTable(ctx context.Context, params *glue.CreateTableInput, optFns ...func(*glue.Options)) (*glue.CreateTableOutput, error)
	CreatePartition(ctx context.Context, params *glue.CreatePartitionInput, optFns ...func(*glue.Options)) (*glue.CreatePartitionOutput, error)
}

var _ GlueClient = (*glue.Client)(nil)

// Table identifies the analyses table and where its files live.
type Table struct {
	Database string
	Name     string
	Bucket   string
	// Prefix ends with "/", e.g. "analyses/".
	Prefix string
}

func (t Table) Location() string {
	return fmt.Sprintf("s3://%s/%s", t.Bucket, t.Prefix)
}

func (t Table) PartitionLocation(dt string) string {
	return fmt.Sprintf("%s%s=%s/", t.Location(), PartitionColumn, dt)
}

func (t Table) validate() error {
	if strings.TrimSpace(t.Database) == "" || strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("missing env vars: GLUE_DATABASE and/or ANALYSES_TABLE")
	}
	if strings.TrimSpace(t.Bucket) == "" {
		return fmt.Errorf("missing env WAREHOUSE_BUCKET")
	}
	return nil
}

type Column struct {
	Name string
	Type string
}

// TableSchema is the catalog view of a table.
type TableSchema struct {
	Database   string
	Table      string
	Location   string
	Columns    []Column
	Partitions []Column
}

// Schema creates the Glue database and table on first use.
type Schema struct {
	glue  GlueClient
	table Table

	mu      sync.Mutex
	ensured bool
}

func NewSchema(c GlueClient, t Table) *Schema {
	return &Schema{glue: c, table: t}
}

func glueColumns() []gluetypes.Column {
	cols := make([]gluetypes.Column, 0, len(columnNames))
	for _, name := range columnNames {
		cols = append(cols, gluetypes.Column{Name: aws.String(name), Type: aws.String("string")})
	}
	return cols
}

func storageDescriptor(location string) *gluetypes.StorageDescriptor {
	return &gluetypes.StorageDescriptor{
		Columns:      glueColumns(),
		Location:     aws.String(location),
		InputFormat:  aws.String(parquetInputFormat),
		OutputFormat: aws.String(parquetOutputFormat),
		SerdeInfo: &gluetypes.SerDeInfo{
			SerializationLibrary: aws.String(parquetSerde),
			Parameters:           map[string]string{"serialization.format": "1"},
		},
	}
}

// Ensure makes sure the database and table exist. Success is remembered for
// the life of the process; failures are retried on the next call.
func (s *Schema) Ensure(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ensured {
		return nil
	}
	if err := s.table.validate(); err != nil {
		return err
	}
	if err := s.ensureDatabase(ctx); err != nil {
		return err
	}
	if err := s.ensureTable(ctx); err != nil {
		return err
	}
	s.ensured = true
	return nil
}

func (s *Schema) ensureDatabase(ctx context.Context) error {
	_, err := s.glue.GetDatabase(ctx, &glue.GetDatabaseInput{Name: aws.String(s.table.Database)})
	if err == nil {
		return nil
	}
	var nf *gluetypes.EntityNotFoundException
	if !errors.As(err, &nf) {
		return fmt.Errorf("glue GetDatabase %s: %w", s.table.Database, err)
	}

	logging.Info().Str("database", s.table.Database).Msg("glue database not found, creating it")
	_, err = s.glue.CreateDatabase(ctx, &glue.CreateDatabaseInput{
		DatabaseInput: &gluetypes.DatabaseInput{
			Name:        aws.String(s.table.Database),
			Description: aws.String("VentureAI pitch deck analyses"),
		},
	})
	var ae *gluetypes.AlreadyExistsException
	if err != nil && !errors.As(err, &ae) {
		return fmt.Errorf("glue CreateDatabase %s: %w", s.table.Database, err)
	}
	return nil
}

func (s *Schema) ensureTable(ctx context.Context) error {
	_, err := s.glue.GetTable(ctx, &glue.GetTableInput{
		DatabaseName: aws.String(s.table.Database),
		Name:         aws.String(s.table.Name),
	})
	if err == nil {
		logging.Debug().Str("table", s.table.Name).Msg("glue table already exists")
		return nil
	}
	var nf *gluetypes.EntityNotFoundException
	if !errors.As(err, &nf) {
		return fmt.Errorf("glue GetTable %s.%s: %w", s.table.Database, s.table.Name, err)
	}

	logging.Info().Str("table", s.table.Name).Msg("glue table not found, creating it")
	_, err = s.glue.CreateTable(ctx, &glue.CreateTableInput{
		DatabaseName: aws.String(s.table.Database),
		TableInput: &gluetypes.TableInput{
			Name:      aws.String(s.table.Name),
			TableType: aws.String("EXTERNAL_TABLE"),
			Parameters: map[string]string{
				"classification": "parquet",
				"EXTERNAL":       "TRUE",
			},
			PartitionKeys:     []gluetypes.Column{{Name: aws.String(PartitionColumn), Type: aws.String("string")}},
			StorageDescriptor: storageDescriptor(s.table.Location()),
		},
	})
	var ae *gluetypes.AlreadyExistsException
	if err != nil && !errors.As(err, &ae) {
		return fmt.Errorf("glue CreateTable %s.%s: %w", s.table.Database, s.table.Name, err)
	}
	return nil
}

// Describe loads the table definition from the catalog.
func (s *Schema) Describe(ctx context.Context) (*TableSchema, error) {
	out, err := s.glue.GetTable(ctx, &glue.GetTableInput{
		DatabaseName: aws.String(s.table.Database),
		Name:         aws.String(s.table.Name),
	})
	if err != nil {
		return nil, fmt.Errorf("glue GetTable %s.%s: %w", s.table.Database, s.table.Name, err)
	}

	ti := out.Table
	schema := &TableSchema{Database: s.table.Database, Table: aws.ToString(ti.Name)}
	if sd := ti.StorageDescriptor; sd != nil {
		schema.Location = aws.ToString(sd.Location)
		for _, c := range sd.Columns {
			schema.Columns = append(schema.Columns, Column{Name: aws.ToString(c.Name), Type: aws.ToString(c.Type)})
		}
	}
	for _, p := range ti.PartitionKeys {
		schema.Partitions = append(schema.Partitions, Column{Name: aws.ToString(p.Name), Type: aws.ToString(p.Type)})
	}
	return schema, nil
}

// CompactSchemaText renders a schema as a short DDL-like block:
//
//	DATABASE venture_ai
//	TABLE pitch_deck_analysis ( ... )
//	PARTITIONED BY (dt string)
//	LOCATION s3://...
func CompactSchemaText(s *TableSchema) string {
	var b strings.Builder

	fmt.Fprintf(&b, "DATABASE %s\n", s.Database)
	fmt.Fprintf(&b, "TABLE %s (\n", s.Table)
	for i, c := range s.Columns {
		comma := ","
		if i == len(s.Columns)-1 {
			comma = ""
		}
		fmt.Fprintf(&b, "  %s %s%s\n", c.Name, c.Type, comma)
	}
	b.WriteString(")\n")

	if len(s.Partitions) > 0 {
		b.WriteString("PARTITIONED BY (")
		for i, p := range s.Partitions {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s %s", p.Name, p.Type)
		}
		b.WriteString(")\n")
	}
	if s.Location != "" {
		fmt.Fprintf(&b, "LOCATION %s\n", s.Location)
	}
	return b.String()
}
