package source

import (
	"context"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"

	"github.com/luki/o2ring/internal/feed"
)

// MQTTOptions configures the MQTT source.
type MQTTOptions struct {
	Broker   string
	Topic    string
	ClientID string
	Username string
	Password string
	QoS      byte
}

// MQTT subscribes to a topic where a gateway publishes status lines.
type MQTT struct {
	Options MQTTOptions
}

func (m *MQTT) Name() string { return "mqtt " + m.Options.Topic }

func (m *MQTT) Run(ctx context.Context, sink feed.Sink) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(m.Options.Broker)
	opts.SetClientID(m.Options.ClientID)
	if m.Options.Username != "" {
		opts.SetUsername(m.Options.Username)
	}
	if m.Options.Password != "" {
		opts.SetPassword(m.Options.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(DefaultInterval)

	handler := func(_ mqtt.Client, msg mqtt.Message) {
		m.handlePayload(sink, msg.Payload(), time.Now())
	}
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		// subscriptions do not survive a clean-session reconnect
		token := c.Subscribe(m.Options.Topic, m.Options.QoS, handler)
		if token.Wait() && token.Error() != nil {
			log.WithError(token.Error()).WithField("topic", m.Options.Topic).Error("subscribe failed")
			sink.Deliver(feed.StateEvent(feed.StateError, "Subscribe failed", token.Error()))
			return
		}
		sink.Deliver(feed.StateEvent(feed.StateConnected, fmt.Sprintf("Subscribed to %s", m.Options.Topic), nil))
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.WithError(err).Warn("mqtt connection lost")
		sink.Deliver(feed.StateEvent(feed.StateDisconnected, "Broker connection lost", err))
	})

	client := mqtt.NewClient(opts)

	sink.Deliver(feed.StateEvent(feed.StateConnecting, fmt.Sprintf("Connecting to %s", m.Options.Broker), nil))
	token := client.Connect()
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			sink.Deliver(feed.StateEvent(feed.StateError, "Broker connection failed", err))
			return fmt.Errorf("failed to connect to MQTT broker: %w", err)
		}
	case <-ctx.Done():
		client.Disconnect(250)
		return nil
	}

	<-ctx.Done()
	client.Disconnect(250)
	sink.Deliver(feed.StateEvent(feed.StateDisconnected, "Disconnected", nil))
	return nil
}

// handlePayload treats every line of a message as a status line.
func (m *MQTT) handlePayload(sink feed.Sink, payload []byte, t time.Time) {
	for _, line := range strings.Split(string(payload), "\n") {
		deliverLine(sink, line, t)
	}
}
