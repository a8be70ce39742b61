// Package messaging provides message queue adapters.
package messaging

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"

	"classifier_server/core/port/out"

	"github.com/redis/go-redis/v9"
)

// Stream names
const (
	StreamClassify   = "classify:email"
	StreamReclassify = "classify:reclassify"
	StreamApplyRule  = "classify:apply_rule"
	StreamMine       = "classify:mine"
)

// AllStreams lists every stream the worker consumes.
var AllStreams = []string{
	StreamClassify,
	StreamReclassify,
	StreamApplyRule,
	StreamMine,
}

// RedisProducer implements out.MessageProducer using Redis Streams.
type RedisProducer struct {
	client *redis.Client
}

// NewRedisProducer creates a new RedisProducer.
func NewRedisProducer(client *redis.Client) *RedisProducer {
	return &RedisProducer{client: client}
}

// PublishClassify publishes a single-email classification job.
func (p *RedisProducer) PublishClassify(ctx context.Context, job *out.ClassifyJob) error {
	return p.publish(ctx, StreamClassify, job)
}

// PublishReclassify publishes a bulk reclassification job.
func (p *RedisProducer) PublishReclassify(ctx context.Context, job *out.ReclassifyJob) error {
	return p.publish(ctx, StreamReclassify, job)
}

// PublishApplyRule publishes a single-rule application job.
func (p *RedisProducer) PublishApplyRule(ctx context.Context, job *out.ApplyRuleJob) error {
	return p.publish(ctx, StreamApplyRule, job)
}

// PublishMine publishes a suggestion-mining job.
func (p *RedisProducer) PublishMine(ctx context.Context, job *out.MineJob) error {
	return p.publish(ctx, StreamMine, job)
}

// publish publishes a job to a stream using go-redis.
func (p *RedisProducer) publish(ctx context.Context, stream string, job interface{}) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		ID:     "*",
		Values: map[string]interface{}{
			"data": string(data),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", stream, err)
	}

	return nil
}

// Ensure RedisProducer implements out.MessageProducer
var _ out.MessageProducer = (*RedisProducer)(nil)
