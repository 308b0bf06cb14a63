package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/nerrad567/netpanel/internal/freebox"
	"github.com/nerrad567/netpanel/internal/history"
	"github.com/nerrad567/netpanel/internal/infrastructure/config"
	"github.com/nerrad567/netpanel/internal/infrastructure/logging"
)

// Executor is the slice of the router client the collector needs.
// Satisfied by *freebox.Client; tests substitute a fake.
type Executor interface {
	Execute(ctx context.Context, method, path string, body any) freebox.Envelope
}

// Publisher delivers a status sample to MQTT. Optional.
type Publisher interface {
	Publish(topic string, payload []byte, retain bool) error
}

// MetricWriter records a status sample as a metric point. Optional.
type MetricWriter interface {
	WritePoint(measurement string, tags map[string]string, fields map[string]any, ts time.Time) error
}

// ModelReader reports the router hardware identifier, "" when unknown.
type ModelReader interface {
	Model() string
}

// Deps holds the dependencies required by the collector.
type Deps struct {
	Config  config.CollectorConfig
	Client  Executor
	Profile ModelReader
	Store   *history.Store
	MQTT    Publisher    // nil disables MQTT publication
	Metrics MetricWriter // nil disables metric writes
	Logger  *logging.Logger

	// TopicPrefix for MQTT status topics.
	TopicPrefix string
}

// Collector polls a fixed set of router API endpoints on an interval and
// records one history sample per poll, with optional fan-out to MQTT and
// InfluxDB.
//
// Session-expired responses are recorded like any other failure and not
// retried: re-authentication is a user action driven through the
// dashboard API, and the collector keeps sampling (and keeps recording
// the auth failure) until that happens.
type Collector struct {
	cfg     config.CollectorConfig
	client  Executor
	profile ModelReader
	store   *history.Store
	mqtt    Publisher
	metrics MetricWriter
	logger  *logging.Logger
	prefix  string

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a collector from its dependencies.
func New(deps Deps) (*Collector, error) {
	if deps.Client == nil {
		return nil, fmt.Errorf("router client is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("history store is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	prefix := deps.TopicPrefix
	if prefix == "" {
		prefix = "netpanel"
	}

	return &Collector{
		cfg:     deps.Config,
		client:  deps.Client,
		profile: deps.Profile,
		store:   deps.Store,
		mqtt:    deps.MQTT,
		metrics: deps.Metrics,
		logger:  deps.Logger.With("component", "collector"),
		prefix:  prefix,
	}, nil
}

// Start launches the poll loop in a background goroutine. An immediate
// first poll runs before the ticker takes over. Stop with Close().
func (c *Collector) Start(ctx context.Context) {
	var loopCtx context.Context
	loopCtx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})

	go func() {
		defer close(c.done)

		c.PollOnce(loopCtx)

		ticker := time.NewTicker(time.Duration(c.cfg.Interval) * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				c.PollOnce(loopCtx)
			}
		}
	}()
}

// Close stops the poll loop and waits for the in-flight poll to finish.
func (c *Collector) Close() {
	if c.cancel == nil {
		return
	}
	c.cancel()
	<-c.done
}

// PollOnce polls every configured endpoint once.
func (c *Collector) PollOnce(ctx context.Context) {
	for _, endpoint := range c.cfg.Endpoints {
		if ctx.Err() != nil {
			return
		}
		c.pollEndpoint(ctx, endpoint)
	}
}

// pollEndpoint issues one read, records the sample, and fans it out.
func (c *Collector) pollEndpoint(ctx context.Context, endpoint string) {
	start := time.Now()
	env := c.client.Execute(ctx, http.MethodGet, endpoint, nil)
	latency := time.Since(start)

	sample := history.Sample{
		Endpoint:  endpoint,
		Success:   env.Success,
		ErrorCode: env.ErrorCode,
		LatencyMS: latency.Milliseconds(),
		Payload:   env.Result,
		SampledAt: start.UTC(),
	}

	stored, err := c.store.Insert(ctx, sample)
	if err != nil {
		c.logger.Error("storing status sample failed", "endpoint", endpoint, "error", err)
		return
	}

	if !env.Success {
		c.logger.Warn("endpoint poll failed",
			"endpoint", endpoint,
			"error_code", env.ErrorCode,
			"msg", env.Message,
		)
	}

	c.publishSample(stored)
	c.writeMetric(stored)
}

// publishSample sends the sample JSON to MQTT when a publisher is wired.
func (c *Collector) publishSample(sample history.Sample) {
	if c.mqtt == nil {
		return
	}

	payload, err := json.Marshal(sample)
	if err != nil {
		c.logger.Error("encoding sample for MQTT failed", "endpoint", sample.Endpoint, "error", err)
		return
	}

	topic := c.prefix + "/status" + topicSuffix(sample.Endpoint)
	if err := c.mqtt.Publish(topic, payload, true); err != nil {
		c.logger.Warn("publishing sample failed", "topic", topic, "error", err)
	}
}

// writeMetric queues the sample as an availability point when a metric
// writer is wired.
func (c *Collector) writeMetric(sample history.Sample) {
	if c.metrics == nil {
		return
	}

	tags := map[string]string{"endpoint": sample.Endpoint}
	if c.profile != nil {
		if model := c.profile.Model(); model != "" {
			tags["model"] = model
		}
	}

	success := 0
	if sample.Success {
		success = 1
	}

	err := c.metrics.WritePoint("availability", tags, map[string]any{
		"success":    success,
		"latency_ms": sample.LatencyMS,
	}, sample.SampledAt)
	if err != nil {
		c.logger.Warn("writing availability metric failed", "endpoint", sample.Endpoint, "error", err)
	}
}

// topicSuffix converts an API path into an MQTT topic suffix:
// "/dhcp/dynamic_lease/" becomes "/dhcp/dynamic_lease".
func topicSuffix(endpoint string) string {
	trimmed := strings.TrimSuffix(endpoint, "/")
	if trimmed == "" {
		return "/root"
	}
	return trimmed
}
