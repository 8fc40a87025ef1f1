package changefeed

import (
	"context"
	"fmt"
)

// FeedType selects the change feed implementation.
type FeedType string

const (
	FeedTypeNone     FeedType = ""         // change events disabled
	FeedTypeEmbedded FeedType = "embedded" // embedded NATS for dev
	FeedTypeNATS     FeedType = "nats"     // external NATS
	FeedTypeSQS      FeedType = "sqs"      // AWS SQS
)

// Config selects and configures the change feed.
type Config struct {
	Type FeedType
	NATS NATSConfig
	SQS  SQSConfig
}

// New builds the configured publisher. A disabled feed yields (nil, nil);
// callers treat a nil publisher as "no change events".
func New(ctx context.Context, cfg Config) (Publisher, error) {
	switch cfg.Type {
	case FeedTypeNone:
		return nil, nil
	case FeedTypeEmbedded:
		natsCfg := cfg.NATS
		natsCfg.Embedded = true
		return NewNATSPublisher(ctx, natsCfg)
	case FeedTypeNATS:
		return NewNATSPublisher(ctx, cfg.NATS)
	case FeedTypeSQS:
		return NewSQSPublisher(ctx, cfg.SQS)
	default:
		return nil, fmt.Errorf("unknown change feed type %q", cfg.Type)
	}
}
