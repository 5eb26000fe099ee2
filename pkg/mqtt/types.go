package mqtt

import (
	"context"
	"errors"
)

var (
	// ErrNotStarted is returned by Publish before Start.
	ErrNotStarted = errors.New("mqtt client not started")

	// ErrOffline is returned for an at-most-once message while the broker is
	// unreachable. Such messages are dropped rather than queued.
	ErrOffline = errors.New("mqtt broker offline")
)

// Message is one publication.
type Message struct {
	Topic   string
	QoS     byte
	Retain  bool
	Payload []byte
}

// Publisher is the publish side of an MQTT connection. The edge agent only
// reports; it never subscribes.
type Publisher interface {
	// Start connects in the background and keeps reconnecting until ctx is
	// done or Disconnect is called.
	Start(ctx context.Context) error

	Publish(ctx context.Context, m Message) error

	// Connected reports whether the broker connection is currently up.
	Connected() bool

	// Disconnect closes the connection cleanly, so the broker does not
	// publish the will.
	Disconnect(ctx context.Context)
}
