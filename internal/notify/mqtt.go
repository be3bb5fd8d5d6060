package notify

import (
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// MQTTOptions configures the broker connection
type MQTTOptions struct {
	Broker      string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
}

// MQTTPublisher forwards events to <prefix>/<sessionID>/events at QoS 0
type MQTTPublisher struct {
	client mqtt.Client
	prefix string
	logger logrus.FieldLogger
}

// NewMQTTPublisher connects to the broker
func NewMQTTPublisher(opts MQTTOptions, logger logrus.FieldLogger) (*MQTTPublisher, error) {
	if opts.Broker == "" {
		return nil, fmt.Errorf("mqtt broker not configured")
	}
	clientID := opts.ClientID
	if clientID == "" {
		clientID = "photobooth-" + uuid.New().String()
	}

	log := logger.WithFields(logrus.Fields{
		"broker":    opts.Broker,
		"client_id": clientID,
	})

	clientOpts := mqtt.NewClientOptions().AddBroker(opts.Broker).SetClientID(clientID)
	clientOpts.SetKeepAlive(30 * time.Second)
	clientOpts.SetPingTimeout(5 * time.Second)
	clientOpts.SetConnectTimeout(10 * time.Second)
	clientOpts.SetAutoReconnect(true)
	if opts.Username != "" {
		clientOpts.SetUsername(opts.Username)
		clientOpts.SetPassword(opts.Password)
	}
	clientOpts.OnConnect = func(c mqtt.Client) {
		log.Info("Connected to MQTT")
	}
	clientOpts.OnConnectionLost = func(c mqtt.Client, err error) {
		log.WithError(err).Warn("MQTT connection lost")
	}

	client := mqtt.NewClient(clientOpts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to mqtt broker %s: %w", opts.Broker, token.Error())
	}

	return newMQTTPublisher(client, opts.TopicPrefix, logger), nil
}

func newMQTTPublisher(client mqtt.Client, prefix string, logger logrus.FieldLogger) *MQTTPublisher {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" {
		prefix = "photobooth"
	}
	return &MQTTPublisher{client: client, prefix: prefix, logger: logger}
}

// Topic returns the topic events of sessionID go to
func (p *MQTTPublisher) Topic(sessionID string) string {
	return p.prefix + "/" + sessionID + "/events"
}

// Publish sends without waiting for delivery
func (p *MQTTPublisher) Publish(event Event) {
	topic := p.Topic(event.SessionID)
	token := p.client.Publish(topic, 0, false, mustMarshal(event))

	go func() {
		if token.WaitTimeout(5*time.Second) && token.Error() != nil {
			p.logger.WithFields(logrus.Fields{
				"topic": topic,
				"event": event.Type,
			}).WithError(token.Error()).Warn("MQTT publish failed")
		}
	}()
}

// Close disconnects from the broker
func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
}
