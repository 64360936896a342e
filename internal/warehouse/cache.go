package warehouse

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"ventureai/internal/logging"
)

type CacheClient interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

var _ CacheClient = (*dynamodb.Client)(nil)

type cacheItem struct {
	PK        string
	SK        string
	Payload   string
	ExpiresAt int64
	CreatedAt int64
}

// Cache keeps query results in DynamoDB for a short TTL. The table must have
// TTL enabled on ExpiresAt; expired items that have not been swept yet are
// ignored on read.
type Cache struct {
	ddb   CacheClient
	table string
	ttl   time.Duration
	now   func() time.Time
}

func NewCache(ddb CacheClient, table string, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 300 * time.Second
	}
	return &Cache{ddb: ddb, table: table, ttl: ttl, now: time.Now}
}

func cachePK(query string) string {
	return "QUERY#" + query
}

func cacheSK(args []any) string {
	parts := make([]string, 0, len(args))
	for _, a := range args {
		parts = append(parts, Literal(a))
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return "ARGS#" + hex.EncodeToString(sum[:])
}

func (c *Cache) Get(ctx context.Context, query string, args []any) ([]map[string]any, bool, error) {
	out, err := c.ddb.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.table),
		Key: map[string]ddbtypes.AttributeValue{
			"PK": &ddbtypes.AttributeValueMemberS{Value: cachePK(query)},
			"SK": &ddbtypes.AttributeValueMemberS{Value: cacheSK(args)},
		},
	})
	if err != nil {
		return nil, false, fmt.Errorf("cache GetItem: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, false, nil
	}

	var item cacheItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, false, nil
	}
	if item.ExpiresAt <= c.now().Unix() {
		return nil, false, nil
	}
	var rows []map[string]any
	if err := json.Unmarshal([]byte(item.Payload), &rows); err != nil {
		logging.Warn().Err(err).Str("query", query).Msg("discarding unreadable cache entry")
		return nil, false, nil
	}
	return rows, true, nil
}

func (c *Cache) Put(ctx context.Context, query string, args []any, rows []map[string]any) error {
	b, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("cache encode: %w", err)
	}
	now := c.now().UTC()
	item, err := attributevalue.MarshalMap(cacheItem{
		PK:        cachePK(query),
		SK:        cacheSK(args),
		Payload:   string(b),
		ExpiresAt: now.Add(c.ttl).Unix(),
		CreatedAt: now.Unix(),
	})
	if err != nil {
		return fmt.Errorf("cache marshal: %w", err)
	}
	if _, err := c.ddb.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.table),
		Item:      item,
	}); err != nil {
		return fmt.Errorf("cache PutItem: %w", err)
	}
	return nil
}
