// Package forward exports accepted change events to external systems.
//
// Forwarding is an audit/export concern: every event read off the socket is
// re-published, including types the dispatcher does not recognize. Failures
// are logged by the caller and never stop the sync engine.
package forward

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"

	"github.com/statuswatch/statuswatch/internal/dispatch"
)

// Forwarder publishes events to an external sink.
type Forwarder interface {
	Forward(orgID string, env dispatch.Envelope) error
	Close() error
}

// KafkaConfig holds Kafka forwarder settings.
type KafkaConfig struct {
	Brokers  []string
	Topic    string
	ClientID string
	Version  string
}

// Kafka publishes events to a Kafka topic, keyed by organization id so one
// organization's events stay ordered within a partition.
type Kafka struct {
	producer sarama.SyncProducer
	topic    string
}

// message is the exported record shape.
type message struct {
	OrganizationID string             `json:"organization_id"`
	ReceivedAt     time.Time          `json:"received_at"`
	Event          dispatch.Envelope `json:"event"`
}

// NewKafka creates a Kafka forwarder.
func NewKafka(cfg KafkaConfig) (*Kafka, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers cannot be empty")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka topic cannot be empty")
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "statuswatch-forwarder"
	}
	if cfg.Version == "" {
		cfg.Version = "2.8.0"
	}

	version, err := sarama.ParseKafkaVersion(cfg.Version)
	if err != nil {
		return nil, fmt.Errorf("invalid kafka version: %w", err)
	}

	kafkaConfig := sarama.NewConfig()
	kafkaConfig.Version = version
	kafkaConfig.ClientID = cfg.ClientID
	kafkaConfig.Producer.Return.Successes = true
	kafkaConfig.Producer.Return.Errors = true
	kafkaConfig.Producer.Retry.Max = 3
	kafkaConfig.Producer.RequiredAcks = sarama.WaitForAll
	kafkaConfig.Net.DialTimeout = 10 * time.Second
	kafkaConfig.Net.ReadTimeout = 10 * time.Second
	kafkaConfig.Net.WriteTimeout = 10 * time.Second

	producer, err := sarama.NewSyncProducer(cfg.Brokers, kafkaConfig)
	if err != nil {
		return nil, fmt.Errorf("creating kafka producer: %w", err)
	}

	return &Kafka{
		producer: producer,
		topic:    cfg.Topic,
	}, nil
}

// Forward publishes one event.
func (k *Kafka) Forward(orgID string, env dispatch.Envelope) error {
	data, err := json.Marshal(message{
		OrganizationID: orgID,
		ReceivedAt:     time.Now().UTC(),
		Event:          env,
	})
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}

	_, _, err = k.producer.SendMessage(&sarama.ProducerMessage{
		Topic: k.topic,
		Key:   sarama.StringEncoder(orgID),
		Value: sarama.ByteEncoder(data),
	})
	if err != nil {
		return fmt.Errorf("publishing event: %w", err)
	}
	return nil
}

// Close shuts down the producer.
func (k *Kafka) Close() error {
	return k.producer.Close()
}
