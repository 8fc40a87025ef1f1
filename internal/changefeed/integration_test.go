//go:build integration

// Integration tests for the SQS change feed publisher. They require Docker
// and start a LocalStack container per test.
package changefeed

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/localstack"

	"go.crudcast.dev/internal/crud"
)

type localStack struct {
	container *localstack.LocalStackContainer
	endpoint  string
	client    *sqs.Client
}

func startLocalStack(ctx context.Context, t *testing.T) *localStack {
	t.Helper()

	container, err := localstack.Run(ctx,
		"localstack/localstack:3.0",
		testcontainers.WithEnv(map[string]string{
			"SERVICES": "sqs",
		}),
	)
	if err != nil {
		t.Fatalf("Failed to start localstack: %v", err)
	}
	t.Cleanup(func() { container.Terminate(context.Background()) })

	endpoint, err := container.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("Failed to get endpoint: %v", err)
	}
	endpoint = "http://" + endpoint

	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion("us-east-1"),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			"test", "test", "test",
		)),
	)
	if err != nil {
		t.Fatalf("Failed to load AWS config: %v", err)
	}
	client := sqs.NewFromConfig(cfg, func(o *sqs.Options) {
		o.BaseEndpoint = aws.String(endpoint)
	})

	return &localStack{container: container, endpoint: endpoint, client: client}
}

func (l *localStack) createQueue(ctx context.Context, t *testing.T, name string) string {
	t.Helper()
	result, err := l.client.CreateQueue(ctx, &sqs.CreateQueueInput{
		QueueName: aws.String(name),
	})
	if err != nil {
		t.Fatalf("Failed to create queue: %v", err)
	}
	return *result.QueueUrl
}

func (l *localStack) receiveOne(ctx context.Context, t *testing.T, queueURL string) types.Message {
	t.Helper()
	deadline := time.Now().Add(15 * time.Second)
	for time.Now().Before(deadline) {
		out, err := l.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:              aws.String(queueURL),
			MaxNumberOfMessages:   1,
			WaitTimeSeconds:       1,
			MessageAttributeNames: []string{"All"},
		})
		if err != nil {
			t.Fatalf("Failed to receive: %v", err)
		}
		if len(out.Messages) > 0 {
			return out.Messages[0]
		}
	}
	t.Fatal("Timeout waiting for message")
	return types.Message{}
}

func TestSQSIntegration_PublishChangeEvent(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()
	ls := startLocalStack(ctx, t)
	queueURL := ls.createQueue(ctx, t, "change-events")

	publisher, err := NewSQSPublisher(ctx, SQSConfig{
		QueueURL:        queueURL,
		Region:          "us-east-1",
		CustomEndpoint:  ls.endpoint,
		AccessKeyID:     "test",
		SecretAccessKey: "test",
	})
	if err != nil {
		t.Fatalf("Failed to create publisher: %v", err)
	}
	defer publisher.Close()

	event := Event{
		ID:         "evt-integration-1",
		Entity:     "users",
		Operation:  "create",
		EntityID:   "42",
		Data:       crud.Entity{"firstName": "Bill", "email": "bill@mail.com"},
		OccurredAt: time.Now().UTC(),
	}
	if err := publisher.Publish(ctx, event); err != nil {
		t.Fatalf("Failed to publish: %v", err)
	}

	msg := ls.receiveOne(ctx, t, queueURL)

	var decoded Event
	if err := json.Unmarshal([]byte(*msg.Body), &decoded); err != nil {
		t.Fatalf("Failed to decode body: %v", err)
	}
	if decoded.ID != event.ID || decoded.EntityID != "42" {
		t.Errorf("Decoded event mismatch: %+v", decoded)
	}
	if decoded.Data["email"] != "bill@mail.com" {
		t.Errorf("Data mismatch: %v", decoded.Data)
	}

	if got := *msg.MessageAttributes["subject"].StringValue; got != "crudcast.users.create" {
		t.Errorf("Subject attribute: got %s, want crudcast.users.create", got)
	}
	if got := *msg.MessageAttributes["entity"].StringValue; got != "users" {
		t.Errorf("Entity attribute: got %s, want users", got)
	}
}

func TestSQSIntegration_HookDeliversWrites(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()
	ls := startLocalStack(ctx, t)
	queueURL := ls.createQueue(ctx, t, "hook-events")

	publisher, err := NewSQSPublisher(ctx, SQSConfig{
		QueueURL:        queueURL,
		Region:          "us-east-1",
		CustomEndpoint:  ls.endpoint,
		AccessKeyID:     "test",
		SecretAccessKey: "test",
	})
	if err != nil {
		t.Fatalf("Failed to create publisher: %v", err)
	}
	defer publisher.Close()

	hook := Hook(publisher, "departments")
	hook(ctx, crud.OpDelete, "3", crud.Entity{"id": "3", "name": "Sales"})

	msg := ls.receiveOne(ctx, t, queueURL)
	var decoded Event
	if err := json.Unmarshal([]byte(*msg.Body), &decoded); err != nil {
		t.Fatalf("Failed to decode body: %v", err)
	}
	if decoded.Entity != "departments" || decoded.Operation != "delete" || decoded.EntityID != "3" {
		t.Errorf("Decoded event mismatch: %+v", decoded)
	}
	if decoded.ID == "" {
		t.Error("Event ID should not be empty")
	}
}
