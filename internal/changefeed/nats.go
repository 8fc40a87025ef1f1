package changefeed

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"log/slog"
)

// NATSConfig holds NATS publisher configuration.
type NATSConfig struct {
	// URL of the external server; ignored in embedded mode
	URL string

	// StreamName is the JetStream stream receiving change events
	StreamName string

	// Embedded runs an in-process NATS server (dev mode)
	Embedded bool

	// DataDir is the JetStream persistence directory in embedded mode
	DataDir string

	// Host and Port bind the embedded server
	Host string
	Port int
}

// natsPublisher publishes change events to a JetStream stream.
type natsPublisher struct {
	conn     *nats.Conn
	js       jetstream.JetStream
	embedded *server.Server
}

// NewNATSPublisher connects to NATS (starting an embedded server first when
// configured), ensures the change stream exists, and returns the publisher.
func NewNATSPublisher(ctx context.Context, cfg NATSConfig) (Publisher, error) {
	if cfg.StreamName == "" {
		cfg.StreamName = "CHANGES"
	}

	url := cfg.URL
	var embedded *server.Server
	if cfg.Embedded {
		var err error
		embedded, url, err = startEmbeddedServer(cfg)
		if err != nil {
			return nil, err
		}
	}

	conn, err := nats.Connect(url,
		nats.ReconnectWait(time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			slog.Info("NATS reconnected")
		}),
	)
	if err != nil {
		if embedded != nil {
			embedded.Shutdown()
		}
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		if embedded != nil {
			embedded.Shutdown()
		}
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     cfg.StreamName,
		Subjects: []string{"crudcast.>"},
		MaxAge:   24 * time.Hour,
	})
	if err != nil {
		conn.Close()
		if embedded != nil {
			embedded.Shutdown()
		}
		return nil, fmt.Errorf("failed to create change stream: %w", err)
	}

	return &natsPublisher{conn: conn, js: js, embedded: embedded}, nil
}

func startEmbeddedServer(cfg NATSConfig) (*server.Server, string, error) {
	if cfg.DataDir == "" {
		cfg.DataDir = "./data/nats"
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 4222
	}
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, "", fmt.Errorf("failed to create data directory: %w", err)
	}

	ns, err := server.NewServer(&server.Options{
		Host:      cfg.Host,
		Port:      cfg.Port,
		JetStream: true,
		StoreDir:  cfg.DataDir,
		NoLog:     true,
		NoSigs:    true,
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to create NATS server: %w", err)
	}

	go ns.Start()
	if !ns.ReadyForConnections(10 * time.Second) {
		ns.Shutdown()
		return nil, "", fmt.Errorf("NATS server failed to start within timeout")
	}
	slog.Info("Embedded NATS server started", "host", cfg.Host, "port", cfg.Port, "dataDir", cfg.DataDir)

	return ns, fmt.Sprintf("nats://%s:%d", cfg.Host, cfg.Port), nil
}

// Publish sends the event to its subject, deduplicated by event id.
func (p *natsPublisher) Publish(ctx context.Context, event Event) error {
	data, err := encode(event)
	if err != nil {
		return err
	}

	msg := &nats.Msg{
		Subject: event.Subject(),
		Data:    data,
		Header:  make(nats.Header),
	}
	msg.Header.Set("Nats-Msg-Id", event.ID)

	if _, err := p.js.PublishMsg(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish change event: %w", err)
	}
	return nil
}

func (p *natsPublisher) Close() error {
	p.conn.Close()
	if p.embedded != nil {
		p.embedded.Shutdown()
	}
	return nil
}
