// Package repository stores conversation sessions in a DynamoDB single table.
//
// Layout: PK = SESSION#<id>. The META# item carries the session state and the
// MSG#<timestamp>#<n> items carry the append-only turn history.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"formula-agent/internal/domain"
)

const (
	pkPrefix    = "SESSION#"
	skPrefixMsg = "MSG#"
	skMeta      = "META#"
	ttlDuration = 30 * 24 * time.Hour

	// Fixed-width so sort keys order lexically.
	skTimeLayout = "2006-01-02T15:04:05.000000000Z"
)

// ErrConflict is returned when the session changed since it was read, or
// when a new session id already exists.
var ErrConflict = errors.New("repository: session modified concurrently")

// dynamodbAPI is the subset of *dynamodb.Client the repository calls.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Client wraps a DynamoDB table for session state.
type Client struct {
	api       dynamodbAPI
	tableName string
	now       func() time.Time
}

type Option func(*Client)

func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// New creates a new repository Client.
func New(api dynamodbAPI, tableName string, opts ...Option) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	c := &Client{api: api, tableName: tableName, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func sessionPK(id string) string {
	return pkPrefix + id
}

func msgSK(ts time.Time, n int) string {
	return fmt.Sprintf("%s%s#%02d", skPrefixMsg, ts.UTC().Format(skTimeLayout), n)
}

func (c *Client) ttlValue() int64 {
	return c.now().Add(ttlDuration).Unix()
}

// GetSession loads the session state. ok is false when the session does not exist.
func (c *Client) GetSession(ctx context.Context, id string) (domain.Session, bool, error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: sessionPK(id)},
			"SK": &types.AttributeValueMemberS{Value: skMeta},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return domain.Session{}, false, fmt.Errorf("repository: GetSession get item: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return domain.Session{}, false, nil
	}
	sess, err := itemToSession(out.Item)
	if err != nil {
		return domain.Session{}, false, fmt.Errorf("repository: GetSession decode: %w", err)
	}
	sess.ID = id
	return sess, true, nil
}

// GetHistory returns up to limit most recent turns in chronological order.
func (c *Client) GetHistory(ctx context.Context, id string, limit int) ([]domain.Turn, error) {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: sessionPK(id)},
			":prefix": &types.AttributeValueMemberS{Value: skPrefixMsg},
		},
		// Newest first so Limit keeps the most recent context.
		ScanIndexForward: aws.Bool(false),
		ConsistentRead:   aws.Bool(true),
	}
	if limit > 0 {
		in.Limit = aws.Int32(int32(limit))
	}

	out, err := c.api.Query(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("repository: GetHistory query: %w", err)
	}

	turns := make([]domain.Turn, 0, len(out.Items))
	for _, item := range out.Items {
		t, err := itemToTurn(item)
		if err != nil {
			return nil, fmt.Errorf("repository: GetHistory unmarshal: %w", err)
		}
		turns = append(turns, t)
	}
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// CreateSession writes a new session and its opening turns. It fails with
// ErrConflict if the id is taken.
func (c *Client) CreateSession(ctx context.Context, sess domain.Session, turns ...domain.Turn) error {
	if strings.TrimSpace(sess.ID) == "" {
		return errors.New("repository: CreateSession: session id is required")
	}
	meta := &types.Put{
		TableName:           aws.String(c.tableName),
		Item:                c.sessionItem(sess),
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	}
	if err := c.write(ctx, meta, sess.ID, turns); err != nil {
		return fmt.Errorf("repository: CreateSession: %w", err)
	}
	return nil
}

// SaveTurn appends turns and replaces the session state in one transaction.
// The write only succeeds if the stored turn counter still equals
// expectedTurns; otherwise ErrConflict is returned and nothing is written.
func (c *Client) SaveTurn(ctx context.Context, sess domain.Session, expectedTurns int, turns ...domain.Turn) error {
	if strings.TrimSpace(sess.ID) == "" {
		return errors.New("repository: SaveTurn: session id is required")
	}
	meta := &types.Put{
		TableName:           aws.String(c.tableName),
		Item:                c.sessionItem(sess),
		ConditionExpression: aws.String("attribute_exists(PK) AND turns = :expected"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":expected": &types.AttributeValueMemberN{Value: strconv.Itoa(expectedTurns)},
		},
	}
	if err := c.write(ctx, meta, sess.ID, turns); err != nil {
		return fmt.Errorf("repository: SaveTurn: %w", err)
	}
	return nil
}

func (c *Client) write(ctx context.Context, meta *types.Put, id string, turns []domain.Turn) error {
	items := []types.TransactWriteItem{{Put: meta}}
	for i, t := range turns {
		item, err := c.turnItem(id, i, t)
		if err != nil {
			return err
		}
		items = append(items, types.TransactWriteItem{Put: &types.Put{
			TableName:           aws.String(c.tableName),
			Item:                item,
			ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
		}})
	}

	_, err := c.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
	if err != nil {
		if isConditionFailure(err) {
			return fmt.Errorf("%w: %w", ErrConflict, err)
		}
		return err
	}
	return nil
}

func isConditionFailure(err error) bool {
	var canceled *types.TransactionCanceledException
	if !errors.As(err, &canceled) {
		return false
	}
	for _, r := range canceled.CancellationReasons {
		if aws.ToString(r.Code) == "ConditionalCheckFailed" {
			return true
		}
	}
	return false
}

func (c *Client) sessionItem(sess domain.Session) map[string]types.AttributeValue {
	form, _ := json.Marshal(sess.Form.Clone())
	ingredients, _ := json.Marshal(sess.Ingredients)
	item := map[string]types.AttributeValue{
		"PK":          &types.AttributeValueMemberS{Value: sessionPK(sess.ID)},
		"SK":          &types.AttributeValueMemberS{Value: skMeta},
		"sessionId":   &types.AttributeValueMemberS{Value: sess.ID},
		"form":        &types.AttributeValueMemberS{Value: string(form)},
		"lastAsked":   &types.AttributeValueMemberS{Value: string(sess.LastAsked)},
		"ingredients": &types.AttributeValueMemberS{Value: string(ingredients)},
		"turns":       &types.AttributeValueMemberN{Value: strconv.Itoa(sess.Turns)},
		"complete":    &types.AttributeValueMemberBOOL{Value: sess.Complete},
		"checkoutUrl": &types.AttributeValueMemberS{Value: sess.CheckoutURL},
		"updatedAt":   &types.AttributeValueMemberS{Value: c.now().UTC().Format(time.RFC3339)},
		"ttl":         &types.AttributeValueMemberN{Value: strconv.FormatInt(c.ttlValue(), 10)},
	}
	if !sess.LastRequestAt.IsZero() {
		item["lastRequestAt"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(sess.LastRequestAt.UnixMilli(), 10)}
	}
	return item
}

func itemToSession(item map[string]types.AttributeValue) (domain.Session, error) {
	var sess domain.Session
	form, err := strAttr(item, "form")
	if err != nil {
		return sess, err
	}
	if err := json.Unmarshal([]byte(form), &sess.Form); err != nil {
		return sess, fmt.Errorf("repository: decode form: %w", err)
	}
	sess.Form = sess.Form.Clone()
	if sess.Turns, err = intAttr(item, "turns"); err != nil {
		return sess, err
	}
	lastAsked, _ := strAttr(item, "lastAsked")
	sess.LastAsked = domain.SlotKey(lastAsked)
	if raw, _ := strAttr(item, "ingredients"); raw != "" && raw != "null" {
		if err := json.Unmarshal([]byte(raw), &sess.Ingredients); err != nil {
			return sess, fmt.Errorf("repository: decode ingredients: %w", err)
		}
	}
	if ms, err := intAttr(item, "lastRequestAt"); err == nil {
		sess.LastRequestAt = time.UnixMilli(int64(ms)).UTC()
	}
	if v, ok := item["complete"].(*types.AttributeValueMemberBOOL); ok {
		sess.Complete = v.Value
	}
	sess.CheckoutURL, _ = strAttr(item, "checkoutUrl")
	return sess, nil
}

func (c *Client) turnItem(id string, n int, t domain.Turn) (map[string]types.AttributeValue, error) {
	created := t.CreatedAt
	if created.IsZero() {
		created = c.now()
	}
	item := map[string]types.AttributeValue{
		"PK":        &types.AttributeValueMemberS{Value: sessionPK(id)},
		"SK":        &types.AttributeValueMemberS{Value: msgSK(created, n)},
		"sender":    &types.AttributeValueMemberS{Value: string(t.Sender)},
		"text":      &types.AttributeValueMemberS{Value: t.Text},
		"component": &types.AttributeValueMemberS{Value: string(t.Component)},
		"createdAt": &types.AttributeValueMemberS{Value: created.UTC().Format(time.RFC3339Nano)},
		"ttl":       &types.AttributeValueMemberN{Value: strconv.FormatInt(c.ttlValue(), 10)},
	}
	if t.Reply != nil {
		raw, err := json.Marshal(t.Reply)
		if err != nil {
			return nil, fmt.Errorf("repository: encode reply: %w", err)
		}
		item["reply"] = &types.AttributeValueMemberS{Value: string(raw)}
	}
	return item, nil
}

func itemToTurn(item map[string]types.AttributeValue) (domain.Turn, error) {
	sender, err := strAttr(item, "sender")
	if err != nil {
		return domain.Turn{}, err
	}
	text, err := strAttr(item, "text")
	if err != nil {
		return domain.Turn{}, err
	}
	t := domain.Turn{Sender: domain.Sender(sender), Text: text}
	component, _ := strAttr(item, "component")
	t.Component = domain.SlotKey(component)
	if created, _ := strAttr(item, "createdAt"); created != "" {
		t.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	}
	if raw, _ := strAttr(item, "reply"); raw != "" {
		var r domain.Reply
		if err := json.Unmarshal([]byte(raw), &r); err != nil {
			return domain.Turn{}, fmt.Errorf("repository: decode reply: %w", err)
		}
		t.Reply = &r
	}
	return t, nil
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}

func intAttr(item map[string]types.AttributeValue, key string) (int, error) {
	v, ok := item[key]
	if !ok {
		return 0, fmt.Errorf("repository: missing attribute %q", key)
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("repository: attribute %q is not a number", key)
	}
	parsed, err := strconv.Atoi(n.Value)
	if err != nil {
		return 0, fmt.Errorf("repository: parse attribute %q: %w", key, err)
	}
	return parsed, nil
}
