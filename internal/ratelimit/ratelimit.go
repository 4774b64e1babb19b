// Package ratelimit implements a fixed-window request counter backed by a
// DynamoDB table with TTL cleanup.
package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog/log"
)

// DynamoAPI is the single call the limiter needs.
type DynamoAPI interface {
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// Limiter counts requests per key per minute. It fails open: when the
// counter table is unreachable or unconfigured, requests pass.
type Limiter struct {
	client    DynamoAPI
	tableName string
	maxPerMin int
	nowFunc   func() time.Time
}

// NewLimiter returns a limiter. An empty table name disables limiting.
func NewLimiter(client DynamoAPI, tableName string, maxPerMin int) *Limiter {
	return &Limiter{
		client:    client,
		tableName: tableName,
		maxPerMin: maxPerMin,
		nowFunc:   time.Now,
	}
}

// Allow increments the current window's counter for key and reports whether
// the request is under the limit.
func (l *Limiter) Allow(ctx context.Context, key string) bool {
	if l == nil || l.tableName == "" || l.client == nil || l.maxPerMin <= 0 {
		return true
	}

	now := l.nowFunc().UTC()
	windowKey := fmt.Sprintf("%s#%s", key, now.Format("200601021504"))
	ttl := now.Add(2 * time.Minute).Unix()

	expr := "SET requests = if_not_exists(requests, :zero) + :one, expiresAt = :ttl"
	out, err := l.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: &l.tableName,
		Key: map[string]types.AttributeValue{
			"rateLimitKey": &types.AttributeValueMemberS{Value: windowKey},
		},
		UpdateExpression: &expr,
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":zero": &types.AttributeValueMemberN{Value: "0"},
			":one":  &types.AttributeValueMemberN{Value: "1"},
			":ttl":  &types.AttributeValueMemberN{Value: strconv.FormatInt(ttl, 10)},
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	})
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("rate limit counter unavailable")
		return true
	}

	count, ok := out.Attributes["requests"].(*types.AttributeValueMemberN)
	if !ok {
		return true
	}
	n, err := strconv.ParseInt(count.Value, 10, 64)
	if err != nil {
		return true
	}
	return n <= int64(l.maxPerMin)
}
