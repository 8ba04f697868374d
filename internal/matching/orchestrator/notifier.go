package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

const (
	EventMatchingCompleted = "matching.completed"
	EventMatchingFailed    = "matching.failed"
)

// Publisher is the subset of the SNS client the notifier needs.
type Publisher interface {
	Publish(ctx context.Context, input *sns.PublishInput) (*sns.PublishOutput, error)
}

// Event is the JSON body published to the topic.
type Event struct {
	Type           string    `json:"type"`
	QueryProfileID int64     `json:"queryProfileId"`
	MatchCount     int       `json:"matchCount,omitempty"`
	Error          string    `json:"error,omitempty"`
	OccurredAt     time.Time `json:"occurredAt"`
}

// Notifier publishes run completion and failure events to an SNS topic so the
// profile owner can be told their results are ready.
type Notifier struct {
	publisher Publisher
	topicARN  string
	now       func() time.Time
}

func NewNotifier(publisher Publisher, topicARN string) *Notifier {
	return &Notifier{publisher: publisher, topicARN: topicARN, now: time.Now}
}

func (n *Notifier) MarkProcessing(context.Context, int64) error { return nil }

func (n *Notifier) MarkCompleted(ctx context.Context, id int64, count int, at time.Time) error {
	return n.publish(ctx, Event{
		Type:           EventMatchingCompleted,
		QueryProfileID: id,
		MatchCount:     count,
		OccurredAt:     at.UTC(),
	})
}

func (n *Notifier) MarkFailed(ctx context.Context, id int64, cause error) error {
	ev := Event{
		Type:           EventMatchingFailed,
		QueryProfileID: id,
		OccurredAt:     n.now().UTC(),
	}
	if cause != nil {
		ev.Error = cause.Error()
	}
	return n.publish(ctx, ev)
}

func (n *Notifier) publish(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", ev.Type, err)
	}

	_, err = n.publisher.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(n.topicARN),
		Subject:  aws.String(ev.Type),
		Message:  aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"eventType": {
				DataType:    aws.String("String"),
				StringValue: aws.String(ev.Type),
			},
			"queryProfileId": {
				DataType:    aws.String("Number"),
				StringValue: aws.String(strconv.FormatInt(ev.QueryProfileID, 10)),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	return nil
}
