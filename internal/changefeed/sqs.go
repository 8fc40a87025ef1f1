package changefeed

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// SQSConfig holds SQS publisher configuration.
type SQSConfig struct {
	QueueURL string
	Region   string

	// CustomEndpoint points at LocalStack in tests
	CustomEndpoint string
	// AccessKeyID and SecretAccessKey override the default credential
	// chain (testing only)
	AccessKeyID     string
	SecretAccessKey string
}

// SQSAPI is the subset of the SQS client the publisher uses (for testing).
type SQSAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// sqsPublisher publishes change events to an SQS queue.
type sqsPublisher struct {
	client   SQSAPI
	queueURL string
}

// NewSQSPublisher creates an SQS-backed publisher.
func NewSQSPublisher(ctx context.Context, cfg SQSConfig) (Publisher, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
		if cfg.CustomEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.CustomEndpoint)
		}
	})
	return &sqsPublisher{client: client, queueURL: cfg.QueueURL}, nil
}

// NewSQSPublisherWithClient wires a prebuilt client (testing).
func NewSQSPublisherWithClient(client SQSAPI, queueURL string) Publisher {
	return &sqsPublisher{client: client, queueURL: queueURL}
}

// Publish sends the event with its subject and entity carried as message
// attributes so consumers can filter without decoding the body.
func (p *sqsPublisher) Publish(ctx context.Context, event Event) error {
	data, err := encode(event)
	if err != nil {
		return err
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(data)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"subject": {
				DataType:    aws.String("String"),
				StringValue: aws.String(event.Subject()),
			},
			"entity": {
				DataType:    aws.String("String"),
				StringValue: aws.String(event.Entity),
			},
			"operation": {
				DataType:    aws.String("String"),
				StringValue: aws.String(event.Operation),
			},
		},
	}
	if _, err := p.client.SendMessage(ctx, input); err != nil {
		return fmt.Errorf("failed to send change event: %w", err)
	}
	return nil
}

func (p *sqsPublisher) Close() error {
	return nil
}
