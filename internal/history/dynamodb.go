package history

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/suPer8Hu/chatbot/internal/chat"
)

// DynamoAPI is the subset of the DynamoDB client the driver uses.
type DynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

var _ DynamoAPI = (*dynamodb.Client)(nil)

// dynamoItem mirrors the table: partition key session_id (S), sort key
// sequence (N).
type dynamoItem struct {
	SessionID string          `dynamodbav:"session_id"`
	Sequence  int             `dynamodbav:"sequence"`
	Role      string          `dynamodbav:"role"`
	Content   []dynamoContent `dynamodbav:"content"`
}

type dynamoContent struct {
	Text string `dynamodbav:"text"`
}

// DynamoDriver writes with unconditional PutItem, so the last write to a key
// wins.
type DynamoDriver struct {
	client DynamoAPI
	table  string
}

func NewDynamoDriver(client DynamoAPI, table string) *DynamoDriver {
	return &DynamoDriver{client: client, table: table}
}

func (d *DynamoDriver) Put(ctx context.Context, rec chat.Record) error {
	content := make([]dynamoContent, 0, len(rec.Content))
	for _, c := range rec.Content {
		content = append(content, dynamoContent{Text: c.Text})
	}
	item, err := attributevalue.MarshalMap(dynamoItem{
		SessionID: rec.SessionID,
		Sequence:  rec.Sequence,
		Role:      rec.Role.String(),
		Content:   content,
	})
	if err != nil {
		return fmt.Errorf("history: marshal item: %w", err)
	}

	_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.table),
		Item:      item,
	})
	return err
}

func (d *DynamoDriver) List(ctx context.Context, sessionID string) ([]chat.Record, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(d.table),
		KeyConditionExpression: aws.String("session_id = :sid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":sid": &types.AttributeValueMemberS{Value: sessionID},
		},
		ConsistentRead:   aws.Bool(true),
		ScanIndexForward: aws.Bool(true),
	}

	var out []chat.Record
	for {
		page, err := d.client.Query(ctx, input)
		if err != nil {
			return nil, err
		}

		var items []dynamoItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, fmt.Errorf("history: unmarshal items: %w", err)
		}
		for _, it := range items {
			role, err := chat.ParseRole(it.Role)
			if err != nil {
				return nil, fmt.Errorf("history: item %s/%d: %w", it.SessionID, it.Sequence, err)
			}
			content := make([]chat.ContentItem, 0, len(it.Content))
			for _, c := range it.Content {
				content = append(content, chat.ContentItem{Text: c.Text})
			}
			out = append(out, chat.Record{
				SessionID: it.SessionID,
				Sequence:  it.Sequence,
				Role:      role,
				Content:   content,
			})
		}

		if len(page.LastEvaluatedKey) == 0 {
			break
		}
		input.ExclusiveStartKey = page.LastEvaluatedKey
	}
	return out, nil
}

// Close is a no-op; the SDK client holds no connections to release.
func (d *DynamoDriver) Close() error { return nil }
