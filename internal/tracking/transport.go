// Recommendcore - Recommendation Request Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommendcore

package tracking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/nats-io/nats-server/v2/server"
	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// Transport drivers.
const (
	DriverMemory = "memory"
	DriverNATS   = "nats"
)

// TransportConfig selects and configures the feedback pub/sub transport.
type TransportConfig struct {
	// Driver is "memory" (in-process gochannel) or "nats" (JetStream).
	Driver string `koanf:"driver"`

	// MemoryBuffer is the gochannel output buffer per subscriber.
	MemoryBuffer int64 `koanf:"memory_buffer"`

	NATS NATSConfig `koanf:"nats"`
}

// NATSConfig configures the JetStream transport.
type NATSConfig struct {
	// URL of an external server. Ignored when Embedded is set.
	URL string `koanf:"url"`

	// Embedded starts an in-process NATS server with JetStream.
	Embedded bool   `koanf:"embedded"`
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	StoreDir string `koanf:"store_dir"`

	JetStreamMaxMem   int64 `koanf:"jetstream_max_mem"`
	JetStreamMaxStore int64 `koanf:"jetstream_max_store"`

	// StreamName is the JetStream stream holding the feedback subjects.
	StreamName      string        `koanf:"stream_name"`
	StreamMaxAge    time.Duration `koanf:"stream_max_age"`
	DuplicateWindow time.Duration `koanf:"duplicate_window"`

	MaxReconnects    int           `koanf:"max_reconnects"`
	ReconnectWait    time.Duration `koanf:"reconnect_wait"`
	QueueGroup       string        `koanf:"queue_group"`
	DurableName      string        `koanf:"durable_name"`
	SubscribersCount int           `koanf:"subscribers_count"`
	AckWaitTimeout   time.Duration `koanf:"ack_wait_timeout"`
	MaxDeliver       int           `koanf:"max_deliver"`
	CloseTimeout     time.Duration `koanf:"close_timeout"`
}

// DefaultTransportConfig returns the single-instance default: in-memory.
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		Driver:       DriverMemory,
		MemoryBuffer: 1024,
		NATS: NATSConfig{
			URL:               natsgo.DefaultURL,
			Host:              "127.0.0.1",
			Port:              4222,
			StoreDir:          "/data/nats",
			JetStreamMaxMem:   64 * 1024 * 1024,
			JetStreamMaxStore: 1024 * 1024 * 1024,
			StreamName:        "FEEDBACK",
			StreamMaxAge:      7 * 24 * time.Hour,
			DuplicateWindow:   2 * time.Minute,
			MaxReconnects:     -1,
			ReconnectWait:     2 * time.Second,
			QueueGroup:        "recommendcore",
			DurableName:       "recommendcore",
			SubscribersCount:  2,
			AckWaitTimeout:    30 * time.Second,
			MaxDeliver:        10,
			CloseTimeout:      30 * time.Second,
		},
	}
}

// Transport bundles a publisher/subscriber pair and anything backing them.
type Transport struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber

	server *EmbeddedServer
	conn   *natsgo.Conn
}

// NewTransport builds the configured transport.
//
//nolint:gocritic // hugeParam: config passed by value for immutability
func NewTransport(ctx context.Context, cfg TransportConfig, logger watermill.LoggerAdapter) (*Transport, error) {
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	switch cfg.Driver {
	case "", DriverMemory:
		return newMemoryTransport(cfg.MemoryBuffer, logger), nil
	case DriverNATS:
		return newNATSTransport(ctx, &cfg.NATS, logger)
	default:
		return nil, fmt.Errorf("unknown transport driver %q", cfg.Driver)
	}
}

func newMemoryTransport(buffer int64, logger watermill.LoggerAdapter) *Transport {
	pubSub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: buffer,
	}, logger)
	return &Transport{Publisher: pubSub, Subscriber: pubSub}
}

func newNATSTransport(ctx context.Context, cfg *NATSConfig, logger watermill.LoggerAdapter) (*Transport, error) {
	t := &Transport{}
	url := cfg.URL

	if cfg.Embedded {
		srv, err := NewEmbeddedServer(cfg)
		if err != nil {
			return nil, err
		}
		t.server = srv
		url = srv.ClientURL()
	}

	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.DisconnectErrHandler(func(nc *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{
				"url": nc.ConnectedUrl(),
			})
		}),
	}

	// Pre-create the stream; the watermill side binds to it instead of
	// auto-provisioning one per topic.
	nc, err := natsgo.Connect(url, natsOpts...)
	if err != nil {
		t.shutdownServer()
		return nil, fmt.Errorf("connect NATS: %w", err)
	}
	t.conn = nc
	if err := ensureStream(ctx, nc, cfg); err != nil {
		_ = t.Close()
		return nil, err
	}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         url,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			AutoProvision: false,
			TrackMsgId:    true,
			PublishOptions: []natsgo.PubOpt{
				natsgo.RetryAttempts(3),
				natsgo.RetryWait(100 * time.Millisecond),
			},
		},
	}, logger)
	if err != nil {
		_ = t.Close()
		return nil, fmt.Errorf("create watermill publisher: %w", err)
	}
	t.Publisher = pub

	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:              url,
		QueueGroupPrefix: cfg.QueueGroup,
		SubscribersCount: cfg.SubscribersCount,
		AckWaitTimeout:   cfg.AckWaitTimeout,
		CloseTimeout:     cfg.CloseTimeout,
		NatsOptions:      natsOpts,
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			AutoProvision: false,
			AckAsync:      false,
			SubscribeOptions: []natsgo.SubOpt{
				natsgo.BindStream(cfg.StreamName),
				natsgo.MaxDeliver(cfg.MaxDeliver),
				natsgo.AckWait(cfg.AckWaitTimeout),
				natsgo.DeliverAll(),
			},
			DurablePrefix: cfg.DurableName,
		},
	}, logger)
	if err != nil {
		_ = t.Close()
		return nil, fmt.Errorf("create watermill subscriber: %w", err)
	}
	t.Subscriber = sub

	return t, nil
}

// ensureStream creates or updates the feedback stream.
func ensureStream(ctx context.Context, nc *natsgo.Conn, cfg *NATSConfig) error {
	js, err := jetstream.New(nc)
	if err != nil {
		return fmt.Errorf("create JetStream context: %w", err)
	}

	streamCfg := jetstream.StreamConfig{
		Name:       cfg.StreamName,
		Subjects:   []string{FeedbackTopic, FeedbackTopic + ".>"},
		Retention:  jetstream.LimitsPolicy,
		MaxAge:     cfg.StreamMaxAge,
		Duplicates: cfg.DuplicateWindow,
		Storage:    jetstream.FileStorage,
		Discard:    jetstream.DiscardOld,
	}

	_, err = js.Stream(ctx, cfg.StreamName)
	switch {
	case err == nil:
		if _, err := js.UpdateStream(ctx, streamCfg); err != nil {
			return fmt.Errorf("update stream %s: %w", cfg.StreamName, err)
		}
	case errors.Is(err, jetstream.ErrStreamNotFound):
		if _, err := js.CreateStream(ctx, streamCfg); err != nil {
			return fmt.Errorf("create stream %s: %w", cfg.StreamName, err)
		}
	default:
		return fmt.Errorf("check stream %s: %w", cfg.StreamName, err)
	}
	return nil
}

// Close closes the publisher, subscriber and any embedded server.
func (t *Transport) Close() error {
	var errs []error
	if t.Subscriber != nil {
		errs = append(errs, t.Subscriber.Close())
	}
	// gochannel uses one object for both sides.
	if t.Publisher != nil && any(t.Publisher) != any(t.Subscriber) {
		errs = append(errs, t.Publisher.Close())
	}
	if t.conn != nil {
		t.conn.Close()
	}
	t.shutdownServer()
	return errors.Join(errs...)
}

func (t *Transport) shutdownServer() {
	if t.server != nil {
		t.server.Shutdown()
	}
}

// EmbeddedServer wraps an in-process NATS server with JetStream enabled.
type EmbeddedServer struct {
	server    *server.Server
	clientURL string
}

// NewEmbeddedServer starts a server and waits until it accepts connections.
func NewEmbeddedServer(cfg *NATSConfig) (*EmbeddedServer, error) {
	opts := &server.Options{
		ServerName:         "recommendcore",
		Host:               cfg.Host,
		Port:               cfg.Port,
		JetStream:          true,
		StoreDir:           cfg.StoreDir,
		JetStreamMaxMemory: cfg.JetStreamMaxMem,
		JetStreamMaxStore:  cfg.JetStreamMaxStore,
		MaxPayload:         1024 * 1024,
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("create NATS server: %w", err)
	}

	ns.ConfigureLogger()
	go ns.Start()

	if !ns.ReadyForConnections(30 * time.Second) {
		ns.Shutdown()
		return nil, fmt.Errorf("NATS server not ready within timeout")
	}

	return &EmbeddedServer{server: ns, clientURL: ns.ClientURL()}, nil
}

// ClientURL returns the URL clients should connect to.
func (s *EmbeddedServer) ClientURL() string {
	return s.clientURL
}

// Shutdown stops the server and waits for it to exit.
func (s *EmbeddedServer) Shutdown() {
	s.server.Shutdown()
	s.server.WaitForShutdown()
}

// IsRunning reports whether the server is running.
func (s *EmbeddedServer) IsRunning() bool {
	return s.server.Running()
}

// JetStreamEnabled reports whether JetStream is on.
func (s *EmbeddedServer) JetStreamEnabled() bool {
	return s.server.JetStreamEnabled()
}
