package aws

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// OrderNotifier publishes order-created messages to an SQS queue for
// downstream consumers (notification service, analytics). It is optional:
// a notifier with an empty queue URL drops every message.
type OrderNotifier struct {
	SQS      SQSAPI
	QueueURL string
}

// NewOrderNotifier returns an OrderNotifier bound to a queue URL.
func NewOrderNotifier(sqsClient SQSAPI, queueURL string) *OrderNotifier {
	return &OrderNotifier{
		SQS:      sqsClient,
		QueueURL: queueURL,
	}
}

// OrderCreatedMessage is the payload sent when an order snapshot is persisted.
type OrderCreatedMessage struct {
	OrderID     string `json:"order_id"`
	OrderNumber string `json:"order_number"`
	OwnerID     string `json:"owner_id"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	Source      string `json:"source"`
}

// Enabled reports whether a queue is configured.
func (n *OrderNotifier) Enabled() bool {
	return n != nil && n.QueueURL != "" && n.SQS != nil
}

// NotifyOrderCreated sends one OrderCreatedMessage. The source attribute is
// duplicated as a message attribute so consumers can filter without decoding.
func (n *OrderNotifier) NotifyOrderCreated(ctx context.Context, msg OrderCreatedMessage) error {
	if !n.Enabled() {
		return nil
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal order message: %w", err)
	}
	bodyStr := string(body)

	input := &sqs.SendMessageInput{
		QueueUrl:    &n.QueueURL,
		MessageBody: &bodyStr,
		MessageAttributes: map[string]sqstypes.MessageAttributeValue{
			"source": {
				DataType:    awsString("String"),
				StringValue: &msg.Source,
			},
			"order_number": {
				DataType:    awsString("String"),
				StringValue: &msg.OrderNumber,
			},
		},
	}

	if _, err := n.SQS.SendMessage(ctx, input); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// awsString helper
func awsString(s string) *string { return &s }
