package mqtt

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

const (
	defaultKeepAlive        = 60
	defaultConnectTimeout   = 5 * time.Second
	defaultReconnectBackoff = 3 * time.Second
)

// ClientConfig configures a Publisher.
type ClientConfig struct {
	BrokerURL string
	ClientID  string
	Username  string
	Password  string

	// KeepAlive in seconds.
	KeepAlive      uint16
	ConnectTimeout time.Duration
	// SessionExpiry in seconds.
	SessionExpiry uint32
	CleanStart    bool

	InsecureSkipVerify bool

	// ReconnectBackoff is the constant delay between two connection attempts.
	ReconnectBackoff time.Duration

	// Will is published by the broker when the client vanishes without a
	// DISCONNECT. Nil sends no will.
	Will *Message

	// OnConnect runs after every successful (re)connection, on the client's
	// goroutine. It must not block for long.
	OnConnect func()
}

func (c *ClientConfig) setDefaults() {
	if c.KeepAlive == 0 {
		c.KeepAlive = defaultKeepAlive
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = defaultConnectTimeout
	}
	if c.ReconnectBackoff == 0 {
		c.ReconnectBackoff = defaultReconnectBackoff
	}
}

// Validate checks the configuration.
func (c *ClientConfig) Validate() error {
	if c.BrokerURL == "" {
		return errors.New("broker url is required")
	}
	u, err := url.Parse(c.BrokerURL)
	if err != nil {
		return err
	}
	if u.Host == "" {
		return fmt.Errorf("broker url %q has no host", c.BrokerURL)
	}
	if c.ClientID == "" {
		return errors.New("client id is required")
	}
	if c.Will != nil {
		if c.Will.Topic == "" {
			return errors.New("will topic is required")
		}
		if c.Will.QoS > 2 {
			return errors.New("will qos must be 0, 1 or 2")
		}
	}
	return nil
}
