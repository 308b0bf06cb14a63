package collector

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"
	"time"

	_ "github.com/nerrad567/netpanel/migrations"

	"github.com/nerrad567/netpanel/internal/freebox"
	"github.com/nerrad567/netpanel/internal/history"
	"github.com/nerrad567/netpanel/internal/infrastructure/config"
	"github.com/nerrad567/netpanel/internal/infrastructure/database"
	"github.com/nerrad567/netpanel/internal/infrastructure/logging"
)

// fakeExecutor returns canned envelopes per path.
type fakeExecutor struct {
	mu        sync.Mutex
	envelopes map[string]freebox.Envelope
	calls     []string
}

func (f *fakeExecutor) Execute(_ context.Context, _ string, path string, _ any) freebox.Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, path)
	if env, ok := f.envelopes[path]; ok {
		return env
	}
	return freebox.Envelope{Success: true, Result: json.RawMessage(`{}`)}
}

// fakePublisher records published topics.
type fakePublisher struct {
	mu     sync.Mutex
	topics []string
}

func (f *fakePublisher) Publish(topic string, _ []byte, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.topics = append(f.topics, topic)
	return nil
}

// fakeMetrics records written points.
type fakeMetrics struct {
	mu     sync.Mutex
	points []map[string]any
}

func (f *fakeMetrics) WritePoint(_ string, _ map[string]string, fields map[string]any, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.points = append(f.points, fields)
	return nil
}

func newTestStore(t *testing.T) *history.Store {
	t.Helper()
	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "collector.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrating database: %v", err)
	}
	store, err := history.NewStore(db)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	return store
}

func newTestCollector(t *testing.T, client Executor, mqtt Publisher, metrics MetricWriter) (*Collector, *history.Store) {
	t.Helper()
	store := newTestStore(t)
	c, err := New(Deps{
		Config: config.CollectorConfig{
			Enabled:   true,
			Interval:  60,
			Endpoints: []string{"/system/", "/connection/"},
		},
		Client:      client,
		Store:       store,
		MQTT:        mqtt,
		Metrics:     metrics,
		Logger:      logging.Default(),
		TopicPrefix: "netpanel",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c, store
}

func TestPollOnce_RecordsSamples(t *testing.T) {
	client := &fakeExecutor{
		envelopes: map[string]freebox.Envelope{
			"/connection/": {ErrorCode: freebox.ErrCodeRequestFailed, Message: "down"},
		},
	}
	c, store := newTestCollector(t, client, nil, nil)

	c.PollOnce(context.Background())

	latest, err := store.LatestByEndpoint(context.Background())
	if err != nil {
		t.Fatalf("LatestByEndpoint() error = %v", err)
	}
	if len(latest) != 2 {
		t.Fatalf("recorded %d endpoints, want 2", len(latest))
	}
	if !latest["/system/"].Success {
		t.Error("/system/ sample should be successful")
	}
	if latest["/connection/"].Success {
		t.Error("/connection/ sample should be a failure")
	}
	if latest["/connection/"].ErrorCode != freebox.ErrCodeRequestFailed {
		t.Errorf("/connection/ error code = %q, want %q",
			latest["/connection/"].ErrorCode, freebox.ErrCodeRequestFailed)
	}
}

func TestPollOnce_PublishesAndWritesMetrics(t *testing.T) {
	client := &fakeExecutor{}
	mqtt := &fakePublisher{}
	metrics := &fakeMetrics{}
	c, _ := newTestCollector(t, client, mqtt, metrics)

	c.PollOnce(context.Background())

	mqtt.mu.Lock()
	topics := append([]string(nil), mqtt.topics...)
	mqtt.mu.Unlock()

	if len(topics) != 2 {
		t.Fatalf("published %d topics, want 2", len(topics))
	}
	if topics[0] != "netpanel/status/system" {
		t.Errorf("first topic = %q, want %q", topics[0], "netpanel/status/system")
	}

	metrics.mu.Lock()
	points := len(metrics.points)
	metrics.mu.Unlock()
	if points != 2 {
		t.Errorf("wrote %d metric points, want 2", points)
	}
}

func TestStartClose_StopsLoop(t *testing.T) {
	client := &fakeExecutor{}
	c, _ := newTestCollector(t, client, nil, nil)

	c.Start(context.Background())
	c.Close()

	client.mu.Lock()
	calls := len(client.calls)
	client.mu.Unlock()

	// The immediate first poll covers both endpoints; the 60s ticker
	// never fires within the test.
	if calls != 2 {
		t.Errorf("client calls = %d, want 2", calls)
	}
}

func TestNew_RequiresDependencies(t *testing.T) {
	store := newTestStore(t)

	if _, err := New(Deps{Store: store, Logger: logging.Default()}); err == nil {
		t.Error("New() without client expected error")
	}
	if _, err := New(Deps{Client: &fakeExecutor{}, Logger: logging.Default()}); err == nil {
		t.Error("New() without store expected error")
	}
	if _, err := New(Deps{Client: &fakeExecutor{}, Store: store}); err == nil {
		t.Error("New() without logger expected error")
	}
}
