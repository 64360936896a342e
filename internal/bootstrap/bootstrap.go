// Package bootstrap builds the services from AWS config and environment
// variables. Lambda mains build one Clients at cold start and reuse it.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/athena"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/glue"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/textract"

	"ventureai/internal/agent"
	"ventureai/internal/analysis"
	"ventureai/internal/config"
	"ventureai/internal/extract"
	"ventureai/internal/fetch"
	"ventureai/internal/notify"
	"ventureai/internal/report"
	"ventureai/internal/sessions"
	"ventureai/internal/storage"
	"ventureai/internal/warehouse"
)

type Clients struct {
	AWS      aws.Config
	DDB      *dynamodb.Client
	S3       *s3.Client
	Glue     *glue.Client
	Athena   *athena.Client
	SNS      *sns.Client
	Textract *textract.Client
}

func NewClients(cfg aws.Config) *Clients {
	return &Clients{
		AWS:      cfg,
		DDB:      dynamodb.NewFromConfig(cfg),
		S3:       s3.NewFromConfig(cfg),
		Glue:     glue.NewFromConfig(cfg),
		Athena:   athena.NewFromConfig(cfg),
		SNS:      sns.NewFromConfig(cfg),
		Textract: textract.NewFromConfig(cfg),
	}
}

// Load reads the default AWS config and builds every client.
func Load(ctx context.Context) (*Clients, error) {
	cfg, err := config.LoadAWS(ctx)
	if err != nil {
		return nil, err
	}
	return NewClients(cfg), nil
}

func (c *Clients) Table() warehouse.Table {
	return warehouse.Table{
		Database: config.GlueDatabase(),
		Name:     config.AnalysesTableName(),
		Bucket:   config.WarehouseBucket(),
		Prefix:   config.AnalysesPrefix(),
	}
}

func (c *Clients) SessionStore() (*sessions.Store, error) {
	table := config.SessionsTableName()
	if table == "" {
		return nil, fmt.Errorf("missing env SESSIONS_TABLE")
	}
	return sessions.NewStore(c.DDB, table), nil
}

// Broker lists and creates sessions only, so its app has no model runtime.
func (c *Clients) Broker() (*sessions.Broker, error) {
	store, err := c.SessionStore()
	if err != nil {
		return nil, err
	}
	return sessions.NewBroker(agent.NewApp(config.AppName(), store, nil, "")), nil
}

func (c *Clients) Runner(maxWait time.Duration) *warehouse.Runner {
	return warehouse.NewRunner(c.Athena, warehouse.RunOptions{
		Database:       config.GlueDatabase(),
		Workgroup:      config.AthenaWorkgroup(),
		OutputLocation: config.AthenaOutput(),
		MaxWait:        maxWait,
	})
}

func (c *Clients) Schema() *warehouse.Schema {
	return warehouse.NewSchema(c.Glue, c.Table())
}

// Queries caches results only when DASHBOARD_CACHE_TABLE is set.
func (c *Clients) Queries() *warehouse.Queries {
	var cache warehouse.ResultCache
	if t := config.DashboardCacheTableName(); t != "" {
		cache = warehouse.NewCache(c.DDB, t, config.DashboardCacheTTL())
	}
	return warehouse.NewQueries(c.Runner(25*time.Second), c.Table(), cache)
}

func (c *Clients) Fetcher() *fetch.Fetcher {
	return fetch.New(60*time.Second, config.MaxPDFBytes())
}

func (c *Clients) Uploader() (*storage.Uploader, error) {
	return storage.NewFromConfig(c.AWS, storage.Options{
		Bucket:        config.ReportsBucket(),
		Mode:          config.ReportURLMode(),
		PublicBaseURL: config.ReportPublicBaseURL(),
		TTL:           config.ReportURLTTL(),
	})
}

// AnalysisService wires the full pipeline, including the model runtime
// chosen by AGENT_PROVIDER.
func (c *Clients) AnalysisService(ctx context.Context) (*analysis.Service, error) {
	store, err := c.SessionStore()
	if err != nil {
		return nil, err
	}
	rt, err := agent.NewRuntimeFromEnv(ctx, c.AWS)
	if err != nil {
		return nil, err
	}
	up, err := c.Uploader()
	if err != nil {
		return nil, err
	}

	analyst := agent.NewApp(config.AppName(), store, rt, agent.ManagerInstruction)
	return analysis.NewService(analysis.Deps{
		Schema:   c.Schema(),
		Fetcher:  c.Fetcher(),
		Analyst:  analyst,
		Investor: analyst.WithInstruction(agent.InvestorQueryInstruction),
		Renderer: report.NewPDFRenderer(),
		Uploader: up,
		Writer:   warehouse.NewWriter(c.S3, c.Glue, c.Table()),
		Sessions: store,
		Reader:   c.Queries(),
		Notifier: notify.New(c.SNS, config.AnalysisTopicArn()),
	}), nil
}

func (c *Clients) Extractor() (*extract.Extractor, error) {
	return extract.New(c.Fetcher(), c.S3, c.Textract, extract.Options{Bucket: config.UploadsBucket()})
}
