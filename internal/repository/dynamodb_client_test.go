package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/require"

	"formula-agent/internal/domain"
)

type fakeDynamo struct {
	getOut       *dynamodb.GetItemOutput
	getErr       error
	queryOut     *dynamodb.QueryOutput
	queryErr     error
	txErr        error
	lastGetInput *dynamodb.GetItemInput
	lastQueryIn  *dynamodb.QueryInput
	lastTxInput  *dynamodb.TransactWriteItemsInput
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.lastGetInput = in
	return f.getOut, f.getErr
}

func (f *fakeDynamo) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.lastQueryIn = in
	return f.queryOut, f.queryErr
}

func (f *fakeDynamo) TransactWriteItems(_ context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	f.lastTxInput = in
	return &dynamodb.TransactWriteItemsOutput{}, f.txErr
}

var testNow = time.Date(2026, 2, 25, 10, 0, 0, 500, time.UTC)

func mustNewClient(t *testing.T, db *fakeDynamo) *Client {
	t.Helper()
	c, err := New(db, "test-table", WithClock(func() time.Time { return testNow }))
	require.NoError(t, err)
	return c
}

func testSession() domain.Session {
	return domain.Session{
		ID:            "abc",
		Form:          domain.FormState{domain.SlotGoal: "Energy", domain.SlotFormat: "Stick Pack"},
		LastAsked:     domain.SlotRoutine,
		Ingredients:   []domain.Ingredient{{Name: "Caffeine", Min: 50, Max: 200, Suggested: 100, Unit: "mg"}},
		LastRequestAt: time.UnixMilli(1772013600123).UTC(),
		Turns:         2,
	}
}

func metaFromTx(t *testing.T, in *dynamodb.TransactWriteItemsInput) map[string]types.AttributeValue {
	t.Helper()
	require.NotNil(t, in)
	require.NotEmpty(t, in.TransactItems)
	return in.TransactItems[0].Put.Item
}

func TestSessionRoundTrip(t *testing.T) {
	db := &fakeDynamo{}
	c := mustNewClient(t, db)
	sess := testSession()
	sess.Complete = true
	sess.CheckoutURL = "https://shop.example/c/1"
	require.NoError(t, c.SaveTurn(context.Background(), sess, 1))

	db.getOut = &dynamodb.GetItemOutput{Item: metaFromTx(t, db.lastTxInput)}
	got, ok, err := c.GetSession(context.Background(), "abc")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, sess, got)
	require.True(t, *db.lastGetInput.ConsistentRead)
}

func TestGetSession_Missing(t *testing.T) {
	db := &fakeDynamo{getOut: &dynamodb.GetItemOutput{}}
	c := mustNewClient(t, db)
	_, ok, err := c.GetSession(context.Background(), "abc")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestGetSession_Errors(t *testing.T) {
	c := mustNewClient(t, &fakeDynamo{getErr: errors.New("boom")})
	_, _, err := c.GetSession(context.Background(), "abc")
	require.ErrorContains(t, err, "GetSession")

	c = mustNewClient(t, &fakeDynamo{getOut: &dynamodb.GetItemOutput{Item: map[string]types.AttributeValue{
		"form":  &types.AttributeValueMemberS{Value: "{}"},
		"turns": &types.AttributeValueMemberS{Value: "bad"},
	}}})
	_, _, err = c.GetSession(context.Background(), "abc")
	require.ErrorContains(t, err, "not a number")
}

func TestGetSession_EmptyFormNeverNil(t *testing.T) {
	c := mustNewClient(t, &fakeDynamo{getOut: &dynamodb.GetItemOutput{Item: map[string]types.AttributeValue{
		"form":  &types.AttributeValueMemberS{Value: "null"},
		"turns": &types.AttributeValueMemberN{Value: "0"},
	}}})
	sess, ok, err := c.GetSession(context.Background(), "abc")
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, sess.Form)
	require.True(t, sess.LastRequestAt.IsZero())
}

func TestSaveTurn_ConditionAndItems(t *testing.T) {
	db := &fakeDynamo{}
	c := mustNewClient(t, db)
	turns := []domain.Turn{
		{Sender: domain.SenderUser, Text: "mornings", Component: domain.SlotRoutine},
		{Sender: domain.SenderBot, Text: "Nice! How active are you?", Component: domain.SlotLifestyle,
			Reply: &domain.Reply{Text: "Nice! How active are you?", Component: domain.SlotLifestyle}},
	}
	require.NoError(t, c.SaveTurn(context.Background(), testSession(), 1, turns...))

	items := db.lastTxInput.TransactItems
	require.Len(t, items, 3)
	require.Equal(t, "attribute_exists(PK) AND turns = :expected", *items[0].Put.ConditionExpression)
	require.Equal(t, "1", items[0].Put.ExpressionAttributeValues[":expected"].(*types.AttributeValueMemberN).Value)
	require.Equal(t, "2", items[0].Put.Item["turns"].(*types.AttributeValueMemberN).Value)

	sk0 := items[1].Put.Item["SK"].(*types.AttributeValueMemberS).Value
	sk1 := items[2].Put.Item["SK"].(*types.AttributeValueMemberS).Value
	require.Equal(t, "MSG#2026-02-25T10:00:00.000000500Z#00", sk0)
	require.Less(t, sk0, sk1)
	require.Equal(t, "attribute_not_exists(PK) AND attribute_not_exists(SK)", *items[1].Put.ConditionExpression)
	_, hasReply := items[1].Put.Item["reply"]
	require.False(t, hasReply)
	require.Contains(t, items[2].Put.Item["reply"].(*types.AttributeValueMemberS).Value, `"component":"Lifestyle"`)
	require.Equal(t, "SESSION#abc", items[2].Put.Item["PK"].(*types.AttributeValueMemberS).Value)
}

func TestSaveTurn_Conflict(t *testing.T) {
	db := &fakeDynamo{txErr: &types.TransactionCanceledException{
		Message: aws.String("Transaction cancelled"),
		CancellationReasons: []types.CancellationReason{
			{Code: aws.String("ConditionalCheckFailed")},
			{Code: aws.String("None")},
		},
	}}
	c := mustNewClient(t, db)
	err := c.SaveTurn(context.Background(), testSession(), 1)
	require.ErrorIs(t, err, ErrConflict)
}

func TestSaveTurn_OtherError(t *testing.T) {
	db := &fakeDynamo{txErr: errors.New("throughput exceeded")}
	c := mustNewClient(t, db)
	err := c.SaveTurn(context.Background(), testSession(), 1)
	require.ErrorContains(t, err, "SaveTurn")
	require.NotErrorIs(t, err, ErrConflict)
}

func TestSaveTurn_MissingID(t *testing.T) {
	c := mustNewClient(t, &fakeDynamo{})
	require.ErrorContains(t, c.SaveTurn(context.Background(), domain.Session{}, 0), "session id is required")
}

func TestCreateSession(t *testing.T) {
	db := &fakeDynamo{}
	c := mustNewClient(t, db)
	sess := domain.Session{ID: "new", Form: domain.FormState{}}
	require.NoError(t, c.CreateSession(context.Background(), sess, domain.Turn{Sender: domain.SenderBot, Text: "Hey!"}))

	items := db.lastTxInput.TransactItems
	require.Len(t, items, 2)
	require.Equal(t, "attribute_not_exists(PK)", *items[0].Put.ConditionExpression)
	require.Equal(t, "{}", items[0].Put.Item["form"].(*types.AttributeValueMemberS).Value)
	_, hasLast := items[0].Put.Item["lastRequestAt"]
	require.False(t, hasLast)
	require.Equal(t, "bot", items[1].Put.Item["sender"].(*types.AttributeValueMemberS).Value)
}

func TestCreateSession_Taken(t *testing.T) {
	db := &fakeDynamo{txErr: &types.TransactionCanceledException{
		CancellationReasons: []types.CancellationReason{{Code: aws.String("ConditionalCheckFailed")}},
	}}
	c := mustNewClient(t, db)
	err := c.CreateSession(context.Background(), domain.Session{ID: "dup"})
	require.ErrorIs(t, err, ErrConflict)
	require.ErrorContains(t, err, "CreateSession")
}

func TestGetHistory_ChronologicalWithReplies(t *testing.T) {
	db := &fakeDynamo{queryOut: &dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{
		{
			"sender":    &types.AttributeValueMemberS{Value: "bot"},
			"text":      &types.AttributeValueMemberS{Value: "Stick Pack, Capsule, or Pod?"},
			"component": &types.AttributeValueMemberS{Value: "Format"},
			"reply":     &types.AttributeValueMemberS{Value: `{"text":"Stick Pack, Capsule, or Pod?","component":"Format","inputType":"options","options":["Stick Pack","Capsule","Pod"],"isComplete":false}`},
			"createdAt": &types.AttributeValueMemberS{Value: "2026-02-25T10:00:01Z"},
		},
		{
			"sender":    &types.AttributeValueMemberS{Value: "user"},
			"text":      &types.AttributeValueMemberS{Value: "energy"},
			"component": &types.AttributeValueMemberS{Value: "Goal"},
			"createdAt": &types.AttributeValueMemberS{Value: "2026-02-25T10:00:00Z"},
		},
	}}}
	c := mustNewClient(t, db)
	turns, err := c.GetHistory(context.Background(), "abc", 20)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	require.Equal(t, domain.SenderUser, turns[0].Sender)
	require.Equal(t, domain.SlotGoal, turns[0].Component)
	require.Nil(t, turns[0].Reply)
	require.Equal(t, domain.SlotFormat, turns[1].Reply.Component)
	require.Equal(t, []string{"Stick Pack", "Capsule", "Pod"}, turns[1].Reply.Options)
	require.Equal(t, 2026, turns[1].CreatedAt.Year())

	require.Equal(t, "PK = :pk AND begins_with(SK, :prefix)", *db.lastQueryIn.KeyConditionExpression)
	require.False(t, *db.lastQueryIn.ScanIndexForward)
	require.Equal(t, int32(20), *db.lastQueryIn.Limit)
	require.Equal(t, "SESSION#abc", db.lastQueryIn.ExpressionAttributeValues[":pk"].(*types.AttributeValueMemberS).Value)
}

func TestGetHistory_NoLimit(t *testing.T) {
	db := &fakeDynamo{queryOut: &dynamodb.QueryOutput{}}
	c := mustNewClient(t, db)
	turns, err := c.GetHistory(context.Background(), "abc", 0)
	require.NoError(t, err)
	require.Empty(t, turns)
	require.Nil(t, db.lastQueryIn.Limit)
}

func TestGetHistory_Errors(t *testing.T) {
	c := mustNewClient(t, &fakeDynamo{queryErr: errors.New("ResourceNotFoundException")})
	_, err := c.GetHistory(context.Background(), "abc", 20)
	require.ErrorContains(t, err, "GetHistory")

	c = mustNewClient(t, &fakeDynamo{queryOut: &dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{
		{"sender": &types.AttributeValueMemberS{Value: "user"}},
	}}})
	_, err = c.GetHistory(context.Background(), "abc", 20)
	require.ErrorContains(t, err, `"text"`)

	c = mustNewClient(t, &fakeDynamo{queryOut: &dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{{
		"sender": &types.AttributeValueMemberS{Value: "bot"},
		"text":   &types.AttributeValueMemberS{Value: "x"},
		"reply":  &types.AttributeValueMemberS{Value: "{broken"},
	}}}})
	_, err = c.GetHistory(context.Background(), "abc", 20)
	require.ErrorContains(t, err, "decode reply")
}

func TestMsgSK_SortsLexically(t *testing.T) {
	a := msgSK(time.Date(2026, 2, 25, 10, 0, 0, 100000000, time.UTC), 0)
	b := msgSK(time.Date(2026, 2, 25, 10, 0, 0, 120000000, time.UTC), 0)
	c := msgSK(time.Date(2026, 2, 25, 10, 0, 1, 0, time.UTC), 0)
	require.Less(t, a, b)
	require.Less(t, b, c)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, "test-table")
	require.ErrorContains(t, err, "must not be nil")
	_, err = New(&fakeDynamo{}, " ")
	require.ErrorContains(t, err, "must not be empty")
}
