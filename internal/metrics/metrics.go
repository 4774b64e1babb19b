// Package metrics publishes reconciliation counters to CloudWatch.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	internalaws "github.com/thebabesclub/commerce/internal/aws"
)

// Publisher emits counters under a namespace. An empty namespace disables
// publishing entirely.
type Publisher struct {
	client    internalaws.CloudWatchAPI
	namespace string
	nowFunc   func() time.Time
}

// NewPublisher returns a Publisher.
func NewPublisher(client internalaws.CloudWatchAPI, namespace string) *Publisher {
	return &Publisher{
		client:    client,
		namespace: namespace,
		nowFunc:   time.Now,
	}
}

// Enabled reports whether metrics will actually be sent.
func (p *Publisher) Enabled() bool {
	return p != nil && p.namespace != "" && p.client != nil
}

// PublishCounts sends one datapoint per named counter.
func (p *Publisher) PublishCounts(ctx context.Context, counts map[string]int) error {
	if !p.Enabled() || len(counts) == 0 {
		return nil
	}

	now := p.nowFunc()
	data := make([]cwtypes.MetricDatum, 0, len(counts))
	for name, value := range counts {
		n := name
		v := float64(value)
		data = append(data, cwtypes.MetricDatum{
			MetricName: &n,
			Value:      &v,
			Unit:       cwtypes.StandardUnitCount,
			Timestamp:  &now,
		})
	}

	_, err := p.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  &p.namespace,
		MetricData: data,
	})
	if err != nil {
		return fmt.Errorf("put metric data: %w", err)
	}
	return nil
}
