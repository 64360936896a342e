package sessions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"ventureai/internal/logging"
)

const (
	metaSK      = "META"
	eventPrefix = "EVENT#"
	gsi1        = "GSI1"
	batchSize   = 25
)

type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

var _ DynamoAPI = (*dynamodb.Client)(nil)

type sessionItem struct {
	PK         string         `dynamodbav:"PK"`
	SK         string         `dynamodbav:"SK"`
	GSI1PK     string         `dynamodbav:"GSI1PK"`
	GSI1SK     string         `dynamodbav:"GSI1SK"`
	SessionID  string         `dynamodbav:"SessionId"`
	AppName    string         `dynamodbav:"AppName"`
	UserID     string         `dynamodbav:"UserId"`
	State      map[string]any `dynamodbav:"State"`
	CreateTime string         `dynamodbav:"CreateTime"`
	UpdateTime string         `dynamodbav:"UpdateTime"`
}

type storedPart struct {
	Text     string `dynamodbav:"Text,omitempty"`
	MIMEType string `dynamodbav:"MimeType,omitempty"`
	Size     int    `dynamodbav:"Size,omitempty"`
}

type storedContent struct {
	Role  string       `dynamodbav:"Role"`
	Parts []storedPart `dynamodbav:"Parts"`
}

type eventItem struct {
	PK             string         `dynamodbav:"PK"`
	SK             string         `dynamodbav:"SK"`
	EventID        string         `dynamodbav:"EventId"`
	Author         string         `dynamodbav:"Author"`
	InvocationID   string         `dynamodbav:"InvocationId,omitempty"`
	TimestampNanos int64          `dynamodbav:"TimestampNanos"`
	Content        *storedContent `dynamodbav:"Content,omitempty"`
	StateDelta     map[string]any `dynamodbav:"StateDelta,omitempty"`
	Partial        bool           `dynamodbav:"Partial"`
	TurnComplete   bool           `dynamodbav:"TurnComplete"`
	ErrorCode      string         `dynamodbav:"ErrorCode,omitempty"`
	ErrorMessage   string         `dynamodbav:"ErrorMessage,omitempty"`
}

// Store implements session persistence over a single DynamoDB table.
type Store struct {
	ddb   DynamoAPI
	table string
	now   func() time.Time
	newID func() string
}

func NewStore(ddb DynamoAPI, table string) *Store {
	return &Store{
		ddb:   ddb,
		table: table,
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
}

func sessionPK(id string) string {
	return "SESSION#" + id
}

func userGSI1PK(app, user string) string {
	return fmt.Sprintf("APP#%s#USER#%s", app, user)
}

func eventSK(ts time.Time, id string) string {
	return fmt.Sprintf("%s%020d#%s", eventPrefix, ts.UnixNano(), id)
}

func metaKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: sessionPK(id)},
		"SK": &types.AttributeValueMemberS{Value: metaSK},
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func (s *Store) CreateSession(ctx context.Context, req CreateRequest) (*Session, error) {
	if strings.TrimSpace(req.SessionID) != "" {
		return nil, ErrCustomSessionID
	}
	if strings.TrimSpace(req.UserID) == "" {
		return nil, fmt.Errorf("create session: missing user id")
	}
	state := req.State
	if state == nil {
		state = map[string]any{}
	}

	id := s.newID()
	now := s.now()
	item := sessionItem{
		PK:         sessionPK(id),
		SK:         metaSK,
		GSI1PK:     userGSI1PK(req.AppName, req.UserID),
		GSI1SK:     formatTime(now),
		SessionID:  id,
		AppName:    req.AppName,
		UserID:     req.UserID,
		State:      state,
		CreateTime: formatTime(now),
		UpdateTime: formatTime(now),
	}
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return nil, fmt.Errorf("marshal session: %w", err)
	}

	_, err = s.ddb.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.table),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil {
		return nil, fmt.Errorf("put session: %w", err)
	}

	logging.Info().Str("session_id", id).Str("user_id", req.UserID).Msg("session created")
	return &Session{
		ID:         id,
		AppName:    req.AppName,
		UserID:     req.UserID,
		State:      state,
		CreateTime: now,
		UpdateTime: now,
	}, nil
}

func (s *Store) loadMeta(ctx context.Context, id string) (*sessionItem, error) {
	out, err := s.ddb.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            metaKey(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var item sessionItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &item, nil
}

func (item *sessionItem) toSession() Session {
	state := item.State
	if state == nil {
		state = map[string]any{}
	}
	return Session{
		ID:         item.SessionID,
		AppName:    item.AppName,
		UserID:     item.UserID,
		State:      state,
		CreateTime: parseTime(item.CreateTime),
		UpdateTime: parseTime(item.UpdateTime),
	}
}

func (s *Store) GetSession(ctx context.Context, req GetRequest) (*Session, error) {
	item, err := s.loadMeta(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	if item == nil || item.AppName != req.AppName || item.UserID != req.UserID {
		return nil, ErrSessionNotFound
	}

	sess := item.toSession()
	events, err := s.loadEvents(ctx, req)
	if err != nil {
		return nil, err
	}
	sess.Events = events
	return &sess, nil
}

func (s *Store) loadEvents(ctx context.Context, req GetRequest) ([]Event, error) {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :ev)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: sessionPK(req.SessionID)},
			":ev": &types.AttributeValueMemberS{Value: eventPrefix},
		},
		ScanIndexForward: aws.Bool(true),
		ConsistentRead:   aws.Bool(true),
	}

	switch {
	case req.NumRecentEvents > 0:
		in.ScanIndexForward = aws.Bool(false)
		in.Limit = aws.Int32(int32(req.NumRecentEvents))
	case !req.AfterTimestamp.IsZero():
		// "~" sorts after every digit, so the range covers all later events.
		in.KeyConditionExpression = aws.String("PK = :pk AND SK BETWEEN :from AND :to")
		in.ExpressionAttributeValues = map[string]types.AttributeValue{
			":pk":   &types.AttributeValueMemberS{Value: sessionPK(req.SessionID)},
			":from": &types.AttributeValueMemberS{Value: fmt.Sprintf("%s%020d", eventPrefix, req.AfterTimestamp.UnixNano())},
			":to":   &types.AttributeValueMemberS{Value: eventPrefix + "~"},
		}
	}

	var items []eventItem
	for {
		out, err := s.ddb.Query(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("query events: %w", err)
		}
		var page []eventItem
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, fmt.Errorf("unmarshal events: %w", err)
		}
		items = append(items, page...)

		if req.NumRecentEvents > 0 && len(items) >= req.NumRecentEvents {
			items = items[:req.NumRecentEvents]
			break
		}
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}

	if req.NumRecentEvents > 0 {
		for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
			items[i], items[j] = items[j], items[i]
		}
	}

	events := make([]Event, 0, len(items))
	for _, it := range items {
		events = append(events, it.toEvent())
	}
	return events, nil
}

func (s *Store) ListSessions(ctx context.Context, app, user string) ([]Session, error) {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		IndexName:              aws.String(gsi1),
		KeyConditionExpression: aws.String("GSI1PK = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: userGSI1PK(app, user)},
		},
		ScanIndexForward: aws.Bool(false),
	}

	out := []Session{}
	for {
		res, err := s.ddb.Query(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("query sessions: %w", err)
		}
		var items []sessionItem
		if err := attributevalue.UnmarshalListOfMaps(res.Items, &items); err != nil {
			return nil, fmt.Errorf("unmarshal sessions: %w", err)
		}
		for i := range items {
			out = append(out, items[i].toSession())
		}
		if len(res.LastEvaluatedKey) == 0 {
			break
		}
		in.ExclusiveStartKey = res.LastEvaluatedKey
	}
	return out, nil
}

func (s *Store) DeleteSession(ctx context.Context, app, user, id string) error {
	item, err := s.loadMeta(ctx, id)
	if err != nil {
		return err
	}
	if item == nil || item.AppName != app || item.UserID != user {
		return nil
	}

	in := &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		KeyConditionExpression: aws.String("PK = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: sessionPK(id)},
		},
		ProjectionExpression: aws.String("PK, SK"),
	}

	var keys []map[string]types.AttributeValue
	for {
		out, err := s.ddb.Query(ctx, in)
		if err != nil {
			return fmt.Errorf("query session items: %w", err)
		}
		keys = append(keys, out.Items...)
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}

	for start := 0; start < len(keys); start += batchSize {
		end := min(start+batchSize, len(keys))
		reqs := make([]types.WriteRequest, 0, end-start)
		for _, k := range keys[start:end] {
			reqs = append(reqs, types.WriteRequest{
				DeleteRequest: &types.DeleteRequest{Key: map[string]types.AttributeValue{"PK": k["PK"], "SK": k["SK"]}},
			})
		}
		if err := s.batchDelete(ctx, reqs); err != nil {
			return err
		}
	}

	logging.Info().Str("session_id", id).Int("items", len(keys)).Msg("session deleted")
	return nil
}

// batchDelete resubmits unprocessed items until DynamoDB accepts them all.
func (s *Store) batchDelete(ctx context.Context, reqs []types.WriteRequest) error {
	pending := map[string][]types.WriteRequest{s.table: reqs}

	op := func() error {
		out, err := s.ddb.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{RequestItems: pending})
		if err != nil {
			return backoff.Permanent(fmt.Errorf("batch delete: %w", err))
		}
		if len(out.UnprocessedItems) > 0 && len(out.UnprocessedItems[s.table]) > 0 {
			pending = out.UnprocessedItems
			return fmt.Errorf("batch delete: %d unprocessed", len(pending[s.table]))
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 50 * time.Millisecond
	bo.MaxElapsedTime = 10 * time.Second
	return backoff.Retry(op, backoff.WithContext(bo, ctx))
}

// AppendEvent records e against sess. Partial (streaming) events are returned
// untouched. The event item and the session's state delta are written in one
// transaction, after which sess is updated in place.
func (s *Store) AppendEvent(ctx context.Context, sess *Session, e *Event) (*Event, error) {
	if e.Partial {
		return e, nil
	}
	if e.ID == "" {
		e.ID = s.newID()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = s.now()
	}

	delta := persistentDelta(e.StateDelta)
	item := eventItemFrom(sess.ID, e, delta)
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}

	update, names, values, err := stateUpdate(delta, e.Timestamp)
	if err != nil {
		return nil, err
	}

	_, err = s.ddb.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{TableName: aws.String(s.table), Item: av}},
			{Update: &types.Update{
				TableName:                 aws.String(s.table),
				Key:                       metaKey(sess.ID),
				UpdateExpression:          aws.String(update),
				ConditionExpression:       aws.String("attribute_exists(PK)"),
				ExpressionAttributeNames:  names,
				ExpressionAttributeValues: values,
			}},
		},
	})
	if err != nil {
		if isConditionFailure(err) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("append event: %w", err)
	}

	if sess.State == nil {
		sess.State = map[string]any{}
	}
	for k, v := range e.StateDelta {
		if strings.HasPrefix(k, TempPrefix) {
			continue
		}
		sess.State[k] = v
	}
	sess.UpdateTime = e.Timestamp
	sess.Events = append(sess.Events, *e)
	return e, nil
}

// UpdateState sets individual state keys without touching the rest of the map.
func (s *Store) UpdateState(ctx context.Context, id string, fields map[string]any) error {
	update, names, values, err := stateUpdate(fields, s.now())
	if err != nil {
		return err
	}
	_, err = s.ddb.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.table),
		Key:                       metaKey(id),
		UpdateExpression:          aws.String(update),
		ConditionExpression:       aws.String("attribute_exists(PK)"),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	})
	if err != nil {
		if isConditionFailure(err) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("update session state: %w", err)
	}
	return nil
}

func stateUpdate(fields map[string]any, now time.Time) (string, map[string]string, map[string]types.AttributeValue, error) {
	names := map[string]string{"#ut": "UpdateTime"}
	values := map[string]types.AttributeValue{
		":ut": &types.AttributeValueMemberS{Value: formatTime(now)},
	}
	sets := []string{"#ut = :ut"}

	i := 0
	for k, v := range fields {
		av, err := attributevalue.Marshal(v)
		if err != nil {
			return "", nil, nil, fmt.Errorf("marshal state %q: %w", k, err)
		}
		if i == 0 {
			names["#st"] = "State"
		}
		nk, vk := fmt.Sprintf("#k%d", i), fmt.Sprintf(":v%d", i)
		names[nk] = k
		values[vk] = av
		sets = append(sets, fmt.Sprintf("#st.%s = %s", nk, vk))
		i++
	}
	return "SET " + strings.Join(sets, ", "), names, values, nil
}

func persistentDelta(delta map[string]any) map[string]any {
	if len(delta) == 0 {
		return nil
	}
	out := make(map[string]any, len(delta))
	for k, v := range delta {
		if strings.HasPrefix(k, TempPrefix) {
			continue
		}
		out[k] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func eventItemFrom(sessionID string, e *Event, delta map[string]any) eventItem {
	item := eventItem{
		PK:             sessionPK(sessionID),
		SK:             eventSK(e.Timestamp, e.ID),
		EventID:        e.ID,
		Author:         e.Author,
		InvocationID:   e.InvocationID,
		TimestampNanos: e.Timestamp.UnixNano(),
		StateDelta:     delta,
		Partial:        e.Partial,
		TurnComplete:   e.TurnComplete,
		ErrorCode:      e.ErrorCode,
		ErrorMessage:   e.ErrorMessage,
	}
	if e.Content != nil {
		c := &storedContent{Role: e.Content.Role, Parts: make([]storedPart, 0, len(e.Content.Parts))}
		for _, p := range e.Content.Parts {
			sp := storedPart{Text: p.Text, MIMEType: p.MIMEType, Size: p.Size}
			if len(p.Data) > 0 {
				sp.Size = len(p.Data)
			}
			c.Parts = append(c.Parts, sp)
		}
		item.Content = c
	}
	return item
}

func (it eventItem) toEvent() Event {
	e := Event{
		ID:           it.EventID,
		Author:       it.Author,
		InvocationID: it.InvocationID,
		Timestamp:    time.Unix(0, it.TimestampNanos).UTC(),
		StateDelta:   it.StateDelta,
		Partial:      it.Partial,
		TurnComplete: it.TurnComplete,
		ErrorCode:    it.ErrorCode,
		ErrorMessage: it.ErrorMessage,
	}
	if it.Content != nil {
		c := &Content{Role: it.Content.Role}
		for _, p := range it.Content.Parts {
			c.Parts = append(c.Parts, Part{Text: p.Text, MIMEType: p.MIMEType, Size: p.Size})
		}
		e.Content = c
	}
	return e
}

func isConditionFailure(err error) bool {
	var cfe *types.ConditionalCheckFailedException
	if errors.As(err, &cfe) {
		return true
	}
	var tce *types.TransactionCanceledException
	if errors.As(err, &tce) {
		for _, r := range tce.CancellationReasons {
			if aws.ToString(r.Code) == "ConditionalCheckFailed" {
				return true
			}
		}
	}
	return false
}
