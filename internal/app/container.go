// Package app wires configuration, logging, vendor clients and services
// into a single container shared by the entrypoint.
package app

import (
	"context"
	"fmt"

	"github.com/bdevz/ultravox-twilio-integration-sub000/internal/config"
	"github.com/bdevz/ultravox-twilio-integration-sub000/internal/domain"
	"github.com/bdevz/ultravox-twilio-integration-sub000/internal/httpclient"
	"github.com/bdevz/ultravox-twilio-integration-sub000/internal/observability"
	"github.com/bdevz/ultravox-twilio-integration-sub000/internal/queue"
	"github.com/bdevz/ultravox-twilio-integration-sub000/internal/ratelimit"
	agentsvc "github.com/bdevz/ultravox-twilio-integration-sub000/internal/service/agent"
	callsvc "github.com/bdevz/ultravox-twilio-integration-sub000/internal/service/call"
	"github.com/bdevz/ultravox-twilio-integration-sub000/internal/tracking"
	"github.com/bdevz/ultravox-twilio-integration-sub000/internal/twilio"
	"github.com/bdevz/ultravox-twilio-integration-sub000/internal/ultravox"
	"github.com/bdevz/ultravox-twilio-integration-sub000/pkg/logger"
)

// Container wires together shared infrastructure dependencies.
type Container struct {
	Config   *config.Config
	Logger   *logger.Logger
	Recorder *observability.PrometheusRecorder
	Kafka    *queue.Kafka // nil when no brokers are configured
	Limiter  *ratelimit.Limiter
	Inflight *tracking.Inflight

	vendors  *vendors
	services *services
	events   *queue.CallEventPublisher
}

type vendors struct {
	Ultravox *ultravox.Client
	Twilio   *twilio.Client
}

type services struct {
	Call  *callsvc.Service
	Agent *agentsvc.Service
}

// Build constructs a container for the given configuration path.
func Build(configPath string) (*Container, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	lg, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, err
	}

	var kafka *queue.Kafka
	if len(cfg.Kafka.Brokers) > 0 {
		kafka, err = queue.NewKafka(cfg.Kafka)
		if err != nil {
			return nil, fmt.Errorf("bootstrap kafka: %w", err)
		}
	}

	container := &Container{
		Config:   cfg,
		Logger:   lg,
		Recorder: observability.NewPrometheusRecorder(),
		Kafka:    kafka,
		Limiter: ratelimit.New(ratelimit.Limits{
			Burst:     cfg.RateLimit.Burst,
			PerMinute: cfg.RateLimit.PerMinute,
			PerHour:   cfg.RateLimit.PerHour,
		}, cfg.RateLimit.SweepInterval, lg),
		Inflight: tracking.NewInflight(),
	}

	if err := container.initComponents(); err != nil {
		return nil, err
	}
	return container, nil
}

func (c *Container) initComponents() error {
	policy := domain.RetryPolicy{
		MaxRetries:        c.Config.Retry.MaxRetries,
		BaseDelay:         c.Config.Retry.BaseDelay,
		MaxDelay:          c.Config.Retry.MaxDelay,
		BackoffMultiplier: c.Config.Retry.BackoffMultiplier,
		Jitter:            c.Config.Retry.Jitter,
	}

	ultravoxTransport, err := httpclient.New("ultravox", policy, c.Config.Ultravox.RequestTimeout, c.Recorder, c.Logger)
	if err != nil {
		return fmt.Errorf("bootstrap ultravox transport: %w", err)
	}

	twilioTransport, err := httpclient.New("twilio", policy, c.Config.Twilio.RequestTimeout, c.Recorder, c.Logger)
	if err != nil {
		return fmt.Errorf("bootstrap twilio transport: %w", err)
	}

	c.vendors = &vendors{
		Ultravox: ultravox.NewClient(c.Config.Ultravox, ultravoxTransport),
		Twilio:   twilio.NewClient(c.Config.Twilio, twilioTransport),
	}

	// events stays a nil interface when Kafka is off so the call service
	// skips publishing instead of hitting a typed nil.
	var events callsvc.EventPublisher
	if c.Kafka != nil {
		publisher := queue.NewCallEventPublisher(c.Kafka, c.Config.Kafka.CallEventTopic)
		c.events = publisher
		events = publisher
	}

	c.services = &services{
		Call: callsvc.NewService(
			c.vendors.Ultravox,
			c.vendors.Twilio,
			c.Inflight,
			events,
			c.Recorder,
			c.Logger,
		),
		Agent: agentsvc.NewService(c.vendors.Ultravox),
	}
	return nil
}

// Services exposes initialized services.
func (c *Container) Services() *services {
	return c.services
}

// Vendors exposes the external API clients.
func (c *Container) Vendors() *vendors {
	return c.vendors
}

// Close releases all held resources.
func (c *Container) Close() error {
	var errs []error
	if c.events != nil {
		if err := c.events.Close(); err != nil {
			errs = append(errs, fmt.Errorf("event publisher close: %w", err))
		}
	}
	if c.Kafka != nil {
		if err := c.Kafka.Close(); err != nil {
			errs = append(errs, fmt.Errorf("kafka close: %w", err))
		}
	}
	if c.Logger != nil {
		c.Logger.Sync()
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// EnsureTopics ensures the call event topic exists. No-op without Kafka.
func (c *Container) EnsureTopics(ctx context.Context) error {
	if c.Kafka == nil {
		return nil
	}
	return c.Kafka.EnsureTopics(ctx, []string{c.Config.Kafka.CallEventTopic}, 12, 1)
}
