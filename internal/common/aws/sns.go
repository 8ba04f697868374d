// internal/common/aws/sns.go
package aws

import (
	"context"
	"fmt"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"matching-workers/internal/common/config"
)

// SNSClient publishes matching run events.
type SNSClient struct {
	client   *sns.Client
	topicARN string
}

// NewSNSClient loads the default AWS credential chain for the configured
// region. A non-empty Endpoint overrides the service URL.
func NewSNSClient(ctx context.Context, cfg config.SNSConfig) (*SNSClient, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := sns.NewFromConfig(awsCfg, func(o *sns.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = awssdk.String(cfg.Endpoint)
		}
	})
	return &SNSClient{client: client, topicARN: cfg.TopicARN}, nil
}

func (s *SNSClient) TopicARN() string {
	return s.topicARN
}

func (s *SNSClient) Publish(ctx context.Context, input *sns.PublishInput) (*sns.PublishOutput, error) {
	return s.client.Publish(ctx, input)
}
