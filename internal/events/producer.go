package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/sirupsen/logrus"

	"github.com/jogardn/laptop-store/internal/circuitbreaker"
)

const DefaultChangesTopic = "store.changes"

const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
	// ActionPurged reports a delete-all; it carries no entity id.
	ActionPurged = "purged"
)

type ChangeEvent struct {
	Entity    string      `json:"entity"`
	Action    string      `json:"action"`
	EntityID  int64       `json:"entity_id,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	EventTime time.Time   `json:"event_time"`
}

// Key partitions events so that changes to one record stay ordered.
func (e ChangeEvent) Key() string {
	if e.Action == ActionPurged {
		return e.Entity + ":all"
	}
	return fmt.Sprintf("%s:%d", e.Entity, e.EntityID)
}

type Publisher interface {
	PublishChange(ctx context.Context, event ChangeEvent) error
	Close() error
}

type KafkaProducer struct {
	producer sarama.SyncProducer
	topic    string
	breaker  *circuitbreaker.Breaker
	logger   *logrus.Logger
}

func NewKafkaProducer(brokers []string, topic string, breaker *circuitbreaker.Breaker, logger *logrus.Logger) (*KafkaProducer, error) {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true
	config.Version = sarama.V2_6_0_0

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, err
	}
	return NewKafkaProducerWith(producer, topic, breaker, logger), nil
}

// NewKafkaProducerWith wraps an existing sync producer.
func NewKafkaProducerWith(producer sarama.SyncProducer, topic string, breaker *circuitbreaker.Breaker, logger *logrus.Logger) *KafkaProducer {
	if topic == "" {
		topic = DefaultChangesTopic
	}
	return &KafkaProducer{
		producer: producer,
		topic:    topic,
		breaker:  breaker,
		logger:   logger,
	}
}

func (p *KafkaProducer) PublishChange(ctx context.Context, event ChangeEvent) error {
	if event.EventTime.IsZero() {
		event.EventTime = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(event.Key()),
		Value: sarama.ByteEncoder(data),
	}

	var partition int32
	var offset int64
	send := func(context.Context) error {
		partition, offset, err = p.producer.SendMessage(msg)
		return err
	}
	if p.breaker != nil {
		err = p.breaker.Execute(ctx, send)
	} else {
		err = send(ctx)
	}
	if err != nil {
		p.logger.WithError(err).WithField("key", event.Key()).Error("Failed to send change event to Kafka")
		return err
	}

	p.logger.WithFields(logrus.Fields{
		"topic":     p.topic,
		"partition": partition,
		"offset":    offset,
		"key":       event.Key(),
	}).Debug("Change event published to Kafka")
	return nil
}

func (p *KafkaProducer) Close() error {
	return p.producer.Close()
}

// NopPublisher drops every event. It stands in when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) PublishChange(context.Context, ChangeEvent) error { return nil }
func (NopPublisher) Close() error                                    { return nil }
