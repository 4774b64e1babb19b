package orders

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoAPI is the narrow DynamoDB surface the order store uses.
type DynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// Store persists order snapshots in the commerce table.
type Store struct {
	client    DynamoAPI
	tableName string
}

// NewStore returns an order store.
func NewStore(client DynamoAPI, tableName string) *Store {
	return &Store{client: client, tableName: tableName}
}

// Put writes a snapshot.
func (s *Store) Put(ctx context.Context, snap *Snapshot) error {
	item, err := attributevalue.MarshalMap(snap)
	if err != nil {
		return fmt.Errorf("marshal order snapshot: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &s.tableName,
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("persist order snapshot: %w", err)
	}
	return nil
}

// ExistsForSession reports whether the owner already has an order for the
// session. The query pages through the full partition; a filtered page can
// be empty while later pages still hold the match.
func (s *Store) ExistsForSession(ctx context.Context, ownerID, sessionID string) (bool, error) {
	snap, err := s.findOne(ctx, ownerID, "sessionRef", sessionID)
	if err != nil {
		return false, err
	}
	return snap != nil, nil
}

// GetByOrderID returns the owner's snapshot with the given orderId, or nil.
func (s *Store) GetByOrderID(ctx context.Context, ownerID, orderID string) (*Snapshot, error) {
	return s.findOne(ctx, ownerID, "orderId", orderID)
}

func (s *Store) findOne(ctx context.Context, ownerID, attr, value string) (*Snapshot, error) {
	var startKey map[string]types.AttributeValue
	for {
		out, err := s.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              &s.tableName,
			KeyConditionExpression: strPtr("PK = :pk AND begins_with(SK, :sk)"),
			FilterExpression:       strPtr("#a = :v"),
			ExpressionAttributeNames: map[string]string{
				"#a": attr,
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":pk": &types.AttributeValueMemberS{Value: "USER#" + ownerID},
				":sk": &types.AttributeValueMemberS{Value: "ORDER#"},
				":v":  &types.AttributeValueMemberS{Value: value},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("query orders for %s: %w", attr, err)
		}
		if len(out.Items) > 0 {
			var snap Snapshot
			if err := attributevalue.UnmarshalMap(out.Items[0], &snap); err != nil {
				return nil, fmt.Errorf("unmarshal order snapshot: %w", err)
			}
			return &snap, nil
		}
		if out.LastEvaluatedKey == nil {
			return nil, nil
		}
		startKey = out.LastEvaluatedKey
	}
}

func strPtr(s string) *string { return &s }
