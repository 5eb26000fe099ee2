package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/autopeer-io/remotepilot/internal/edgeagent/core"
	"github.com/autopeer-io/remotepilot/pkg/mqtt"
	mqtttopic "github.com/autopeer-io/remotepilot/pkg/mqtt/topic"
)

type message struct {
	topic   string
	qos     byte
	retain  bool
	payload map[string]any
}

type fakeClient struct {
	mu        sync.Mutex
	connected bool
	messages  []message
	disc      bool
}

func (c *fakeClient) Start(context.Context) error { return nil }

func (c *fakeClient) Disconnect(context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disc = true
}

func (c *fakeClient) Publish(_ context.Context, msg mqtt.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return mqtt.ErrOffline
	}
	var m map[string]any
	if err := json.Unmarshal(msg.Payload, &m); err != nil {
		return err
	}
	c.messages = append(c.messages, message{topic: msg.Topic, qos: msg.QoS, retain: msg.Retain, payload: m})
	return nil
}

func (c *fakeClient) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *fakeClient) byTopic(topic string) []message {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []message
	for _, m := range c.messages {
		if m.topic == topic {
			out = append(out, m)
		}
	}
	return out
}

func testStats() core.Stats {
	return core.Stats{
		Elapsed:        2 * time.Second,
		FramesCaptured: 50,
		FramesSent:     40,
		LinkState:      "online",
		LastCommand:    core.ControlCommand{Direction: core.DirectionLeft, Speed: 4},
	}
}

func TestReporterLifecycle(t *testing.T) {
	client := &fakeClient{connected: true}
	r := NewReporter(client, mqtttopic.NewBuilder("rpilot/v1"), "car-1", 5*time.Millisecond, testStats)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Start(ctx) }()
	r.Connected()
	r.Connected()

	deadline := time.Now().Add(time.Second)
	for len(client.byTopic("rpilot/v1/telemetry/car-1")) == 0 || len(client.byTopic("rpilot/v1/online/car-1")) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("no telemetry or online status published")
		}
		time.Sleep(time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatal(err)
	}

	tele := client.byTopic("rpilot/v1/telemetry/car-1")[0]
	if tele.payload["framesSent"] != float64(40) || tele.payload["fps"] != float64(20) || tele.payload["lastCommand"] != "left" {
		t.Errorf("telemetry payload = %v", tele.payload)
	}

	online := client.byTopic("rpilot/v1/online/car-1")
	if len(online) == 0 {
		t.Fatal("no online status published")
	}
	if first := online[0]; first.payload["online"] != true || first.payload["reason"] != "connected" {
		t.Errorf("first online status = %+v", first)
	}
	var offline *message
	for i := range online {
		if online[i].payload["reason"] == "shutdown" {
			offline = &online[i]
		}
	}
	if offline == nil || !offline.retain || offline.payload["online"] != false {
		t.Errorf("offline status = %+v", online)
	}
	if !client.disc {
		t.Error("client not disconnected")
	}
}

func TestReporterAlert(t *testing.T) {
	client := &fakeClient{connected: true}
	r := NewReporter(client, mqtttopic.NewBuilder("rpilot/v1"), "car-1", time.Second, testStats)

	r.Alert(context.Background(), "reconnect_budget_exhausted", errors.New("connection refused"))

	alerts := client.byTopic("rpilot/v1/alert/car-1")
	if len(alerts) != 1 {
		t.Fatalf("published %d alerts, want 1", len(alerts))
	}
	if a := alerts[0]; a.qos != 1 || a.payload["kind"] != "reconnect_budget_exhausted" || a.payload["error"] != "connection refused" {
		t.Errorf("alert = %+v", a)
	}
}

func TestReportWhileDisconnected(t *testing.T) {
	r := NewReporter(&fakeClient{}, mqtttopic.NewBuilder("rpilot/v1"), "car-1", time.Second, testStats)
	if err := r.Report(context.Background()); !errors.Is(err, mqtt.ErrOffline) {
		t.Errorf("Report() error = %v, want ErrOffline", err)
	}
}
