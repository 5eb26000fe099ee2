// Package mqtt is a small publish-only MQTT v5 client on top of autopaho.
package mqtt

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/url"
	"sync/atomic"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"

	"github.com/autopeer-io/remotepilot/pkg/log"
)

var _ Publisher = (*client)(nil)

type client struct {
	cfg ClientConfig
	url *url.URL
	log log.Logger

	cm        atomic.Pointer[autopaho.ConnectionManager]
	connected atomic.Bool
}

// NewClient validates cfg and returns an unstarted Publisher.
func NewClient(cfg *ClientConfig) (Publisher, error) {
	if cfg == nil {
		return nil, fmt.Errorf("mqtt config is required")
	}
	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid mqtt config: %w", err)
	}

	u, _ := url.Parse(cfg.BrokerURL)
	return &client{
		cfg: *cfg,
		url: u,
		log: log.WithName("mqtt").WithValues("broker", u.Host, "clientID", cfg.ClientID),
	}, nil
}

func (c *client) Start(ctx context.Context) error {
	pc := autopaho.ClientConfig{
		ServerUrls:                    []*url.URL{c.url},
		KeepAlive:                     c.cfg.KeepAlive,
		CleanStartOnInitialConnection: c.cfg.CleanStart,
		SessionExpiryInterval:         c.cfg.SessionExpiry,
		ReconnectBackoff:              autopaho.NewConstantBackoff(c.cfg.ReconnectBackoff),
		ConnectTimeout:                c.cfg.ConnectTimeout,
		ConnectUsername:               c.cfg.Username,
		ConnectPassword:               []byte(c.cfg.Password),
		TlsCfg:                        &tls.Config{InsecureSkipVerify: c.cfg.InsecureSkipVerify},
		OnConnectionUp:                c.onConnectionUp,
		OnConnectError:                c.onConnectError,
		ClientConfig: paho.ClientConfig{
			ClientID:           c.cfg.ClientID,
			OnClientError:      c.onClientError,
			OnServerDisconnect: c.onServerDisconnect,
		},
	}
	if w := c.cfg.Will; w != nil {
		pc.WillMessage = &paho.WillMessage{Topic: w.Topic, Payload: w.Payload, QoS: w.QoS, Retain: w.Retain}
	}

	cm, err := autopaho.NewConnection(ctx, pc)
	if err != nil {
		return err
	}
	c.cm.Store(cm)
	c.log.Info("MQTT client started")
	return nil
}

func (c *client) Publish(ctx context.Context, m Message) error {
	cm := c.cm.Load()
	if cm == nil {
		return ErrNotStarted
	}
	if m.QoS == 0 && !c.connected.Load() {
		return ErrOffline
	}

	_, err := cm.Publish(ctx, &paho.Publish{
		Topic:   m.Topic,
		QoS:     m.QoS,
		Retain:  m.Retain,
		Payload: m.Payload,
	})
	return err
}

func (c *client) Connected() bool {
	return c.connected.Load()
}

func (c *client) Disconnect(ctx context.Context) {
	cm := c.cm.Swap(nil)
	if cm == nil {
		return
	}
	if err := cm.Disconnect(ctx); err != nil {
		c.log.Debug("MQTT disconnect was not clean", "error", err)
	}
	c.connected.Store(false)
	c.log.Info("MQTT client disconnected")
}

func (c *client) onConnectionUp(_ *autopaho.ConnectionManager, _ *paho.Connack) {
	c.connected.Store(true)
	c.log.Info("MQTT connection established")
	if c.cfg.OnConnect != nil {
		c.cfg.OnConnect()
	}
}

func (c *client) onConnectError(err error) {
	c.connected.Store(false)
	c.log.Warn("MQTT connection failed, retrying", "error", err, "backoff", c.cfg.ReconnectBackoff)
}

func (c *client) onClientError(err error) {
	c.connected.Store(false)
	c.log.Error(err, "MQTT client error")
}

func (c *client) onServerDisconnect(d *paho.Disconnect) {
	c.connected.Store(false)
	reason := ""
	if d.Properties != nil {
		reason = d.Properties.ReasonString
	}
	c.log.Warn("MQTT broker closed the connection", "code", d.ReasonCode, "reason", reason)
}
