package events

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoAPI is the narrow DynamoDB surface the event store uses.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// Store persists event dedupe records.
type Store struct {
	client    DynamoAPI
	tableName string
}

// NewStore returns an event store.
func NewStore(client DynamoAPI, tableName string) *Store {
	return &Store{client: client, tableName: tableName}
}

// Get returns the record for an event id, or nil when unseen.
func (s *Store) Get(ctx context.Context, eventID string) (*Record, error) {
	key, err := attributevalue.MarshalMap(map[string]string{
		"PK": "EVENT#" + eventID,
		"SK": "METADATA",
	})
	if err != nil {
		return nil, fmt.Errorf("marshal event key: %w", err)
	}

	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &s.tableName,
		Key:       key,
	})
	if err != nil {
		return nil, fmt.Errorf("get event record: %w", err)
	}
	if out.Item == nil {
		return nil, nil
	}

	var rec Record
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal event record: %w", err)
	}
	return &rec, nil
}

// CreateIfNotExists writes the record guarded by a condition on the
// partition key. It returns false when a concurrent delivery won the write.
func (s *Store) CreateIfNotExists(ctx context.Context, rec *Record) (bool, error) {
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return false, fmt.Errorf("marshal event record: %w", err)
	}

	condition := "attribute_not_exists(PK)"
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           &s.tableName,
		Item:                item,
		ConditionExpression: &condition,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return false, nil
		}
		return false, fmt.Errorf("persist event record: %w", err)
	}
	return true, nil
}
