// Package publisher republishes light readings over MQTT.
package publisher

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	defaultClientID = "lightmeter"
	defaultTopic    = "lightmeter/readings"
)

// Reading is the JSON payload published for each recorded measurement.
type Reading struct {
	JobID           string    `json:"job_id"`
	Lux             uint32    `json:"lux"`
	FullSpectrum    float64   `json:"full_spectrum"`
	Visible         float64   `json:"visible"`
	Infrared        float64   `json:"infrared"`
	Gain            string    `json:"gain"`
	IntegrationTime string    `json:"integration_time"`
	Timestamp       time.Time `json:"timestamp"`
}

// Publisher sends readings somewhere off-device.
type Publisher interface {
	Publish(Reading) error
	Close() error
}

type MQTTPublisher struct {
	client mqtt.Client
	topic  string
}

// NewMQTTFromEnv builds a publisher from the MQTT_* environment variables.
// With no MQTT_BROKER set it returns nil and the service runs standalone.
func NewMQTTFromEnv() (*MQTTPublisher, error) {
	broker := os.Getenv("MQTT_BROKER")
	if broker == "" {
		return nil, nil
	}

	clientID := os.Getenv("MQTT_CLIENT_ID")
	if clientID == "" {
		clientID = defaultClientID
	}
	topic := os.Getenv("MQTT_TOPIC")
	if topic == "" {
		topic = defaultTopic
	}

	opts := mqtt.NewClientOptions().AddBroker(broker).SetClientID(clientID)
	if user := os.Getenv("MQTT_USERNAME"); user != "" {
		opts.SetUsername(user)
	}
	if pass := os.Getenv("MQTT_PASSWORD"); pass != "" {
		opts.SetPassword(pass)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect: %w", token.Error())
	}
	return &MQTTPublisher{client: client, topic: topic}, nil
}

func (m *MQTTPublisher) Publish(r Reading) error {
	b, err := json.Marshal(r)
	if err != nil {
		return err
	}
	token := m.client.Publish(m.topic, 0, false, b)
	token.Wait()
	return token.Error()
}

func (m *MQTTPublisher) Close() error {
	if m.client != nil {
		m.client.Disconnect(250)
	}
	return nil
}
