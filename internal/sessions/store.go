package sessions

import (
	"context"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoAPI is the narrow DynamoDB surface the session store uses.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Store persists session records and their sessionId pointers. Every write
// touches both records in one transaction so they cannot drift.
type Store struct {
	client    DynamoAPI
	tableName string
}

// NewStore returns a session store over the commerce table.
func NewStore(client DynamoAPI, tableName string) *Store {
	return &Store{client: client, tableName: tableName}
}

// PutLinked writes the session record and its pointer atomically.
func (s *Store) PutLinked(ctx context.Context, rec Record, ptr Pointer) error {
	recItem, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("marshal session record: %w", err)
	}
	ptrItem, err := attributevalue.MarshalMap(ptr)
	if err != nil {
		return fmt.Errorf("marshal session pointer: %w", err)
	}

	_, err = s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{TableName: &s.tableName, Item: recItem}},
			{Put: &types.Put{TableName: &s.tableName, Item: ptrItem}},
		},
	})
	if err != nil {
		return fmt.Errorf("persist session link: %w", err)
	}
	return nil
}

// GetPointer returns the pointer for a sessionId, or nil when unknown.
func (s *Store) GetPointer(ctx context.Context, sessionID string) (*Pointer, error) {
	key, err := attributevalue.MarshalMap(map[string]string{
		"PK": "SESSION#" + sessionID,
		"SK": "METADATA",
	})
	if err != nil {
		return nil, fmt.Errorf("marshal pointer key: %w", err)
	}

	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &s.tableName,
		Key:       key,
	})
	if err != nil {
		return nil, fmt.Errorf("get session pointer: %w", err)
	}
	if out.Item == nil {
		return nil, nil
	}

	var ptr Pointer
	if err := attributevalue.UnmarshalMap(out.Item, &ptr); err != nil {
		return nil, fmt.Errorf("unmarshal session pointer: %w", err)
	}
	return &ptr, nil
}

// UpdateStatus advances both the session record and the pointer to a new
// status in one transaction. extra attributes (processor status mirrors,
// payment status) are set alongside.
func (s *Store) UpdateStatus(ctx context.Context, quoteSignature, sessionID, status, updatedAt string, extra map[string]string) error {
	expr, names, values := buildStatusUpdate(status, updatedAt, extra)

	recKey, err := attributevalue.MarshalMap(map[string]string{
		"PK": "QUOTE#" + quoteSignature,
		"SK": "SESSION#" + sessionID,
	})
	if err != nil {
		return fmt.Errorf("marshal session key: %w", err)
	}
	ptrKey, err := attributevalue.MarshalMap(map[string]string{
		"PK": "SESSION#" + sessionID,
		"SK": "METADATA",
	})
	if err != nil {
		return fmt.Errorf("marshal pointer key: %w", err)
	}

	_, err = s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Update: &types.Update{
				TableName:                 &s.tableName,
				Key:                       recKey,
				UpdateExpression:          &expr,
				ExpressionAttributeNames:  names,
				ExpressionAttributeValues: values,
			}},
			{Update: &types.Update{
				TableName:                 &s.tableName,
				Key:                       ptrKey,
				UpdateExpression:          &expr,
				ExpressionAttributeNames:  names,
				ExpressionAttributeValues: values,
			}},
		},
	})
	if err != nil {
		return fmt.Errorf("update session status: %w", err)
	}
	return nil
}

func buildStatusUpdate(status, updatedAt string, extra map[string]string) (string, map[string]string, map[string]types.AttributeValue) {
	names := map[string]string{"#status": "status"}
	values := map[string]types.AttributeValue{
		":status":    &types.AttributeValueMemberS{Value: status},
		":updatedAt": &types.AttributeValueMemberS{Value: updatedAt},
	}
	expr := "SET #status = :status, updatedAt = :updatedAt"

	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for i, k := range keys {
		nameRef := fmt.Sprintf("#x%d", i)
		valueRef := fmt.Sprintf(":x%d", i)
		names[nameRef] = k
		values[valueRef] = &types.AttributeValueMemberS{Value: extra[k]}
		expr += fmt.Sprintf(", %s = %s", nameRef, valueRef)
	}
	return expr, names, values
}
