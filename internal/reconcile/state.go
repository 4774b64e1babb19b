package reconcile

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// SyncState is the single bookkeeping record for the nightly sweep, stored
// at a fixed key so each run overwrites the last.
type SyncState struct {
	PK string `dynamodbav:"PK"` // SYSTEM
	SK string `dynamodbav:"SK"` // ORDER_SYNC

	LastSyncStartedAt   string `dynamodbav:"lastSyncStartedAt"`
	LastSyncCompletedAt string `dynamodbav:"lastSyncCompletedAt"`
	LookbackStart       int64  `dynamodbav:"lookbackStart"`
	LookbackEnd         int64  `dynamodbav:"lookbackEnd"`
	Processed           int    `dynamodbav:"processed"`
	Created             int    `dynamodbav:"created"`
	Skipped             int    `dynamodbav:"skipped"`
	Errors              int    `dynamodbav:"errors"`
	UpdatedAt           string `dynamodbav:"updatedAt"`
}

// DynamoAPI is the narrow DynamoDB surface the state store uses.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// StateStore reads and writes the sweep bookkeeping record.
type StateStore struct {
	client    DynamoAPI
	tableName string
}

// NewStateStore returns a StateStore.
func NewStateStore(client DynamoAPI, tableName string) *StateStore {
	return &StateStore{client: client, tableName: tableName}
}

// Get returns the last recorded state, or nil when no sweep has run.
func (s *StateStore) Get(ctx context.Context) (*SyncState, error) {
	key, err := attributevalue.MarshalMap(map[string]string{
		"PK": "SYSTEM",
		"SK": "ORDER_SYNC",
	})
	if err != nil {
		return nil, fmt.Errorf("marshal state key: %w", err)
	}

	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &s.tableName,
		Key:       key,
	})
	if err != nil {
		return nil, fmt.Errorf("get sync state: %w", err)
	}
	if out.Item == nil {
		return nil, nil
	}

	var state SyncState
	if err := attributevalue.UnmarshalMap(out.Item, &state); err != nil {
		return nil, fmt.Errorf("unmarshal sync state: %w", err)
	}
	return &state, nil
}

// Put overwrites the state record.
func (s *StateStore) Put(ctx context.Context, state *SyncState) error {
	state.PK = "SYSTEM"
	state.SK = "ORDER_SYNC"

	item, err := attributevalue.MarshalMap(state)
	if err != nil {
		return fmt.Errorf("marshal sync state: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &s.tableName,
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("persist sync state: %w", err)
	}
	return nil
}
