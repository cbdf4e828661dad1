package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/sirupsen/logrus"

	"github.com/jogardn/laptop-store/internal/circuitbreaker"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func TestChangeEventKey(t *testing.T) {
	tests := []struct {
		event ChangeEvent
		want  string
	}{
		{ChangeEvent{Entity: "laptop", Action: ActionCreated, EntityID: 7}, "laptop:7"},
		{ChangeEvent{Entity: "order", Action: ActionDeleted, EntityID: 2}, "order:2"},
		{ChangeEvent{Entity: "cart", Action: ActionPurged}, "cart:all"},
	}
	for _, tt := range tests {
		if got := tt.event.Key(); got != tt.want {
			t.Errorf("Expected key %s, got %s", tt.want, got)
		}
	}
}

func TestPublishChangeSendsKeyedJSON(t *testing.T) {
	config := mocks.NewTestConfig()
	config.Producer.Return.Successes = true
	producer := mocks.NewSyncProducer(t, config)

	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != "test.changes" {
			return fmt.Errorf("unexpected topic %s", msg.Topic)
		}
		key, err := msg.Key.Encode()
		if err != nil {
			return err
		}
		if string(key) != "laptop:7" {
			return fmt.Errorf("unexpected key %s", key)
		}
		value, err := msg.Value.Encode()
		if err != nil {
			return err
		}
		var event ChangeEvent
		if err := json.Unmarshal(value, &event); err != nil {
			return err
		}
		if event.Action != ActionUpdated || event.EntityID != 7 || event.EventTime.IsZero() {
			return fmt.Errorf("unexpected event %+v", event)
		}
		return nil
	})

	p := NewKafkaProducerWith(producer, "test.changes", nil, quietLogger())
	defer p.Close()

	err := p.PublishChange(context.Background(), ChangeEvent{
		Entity:   "laptop",
		Action:   ActionUpdated,
		EntityID: 7,
		Data:     map[string]string{"L_NAME": "XPS 13"},
	})
	if err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestPublishChangeOpensBreakerOnFailures(t *testing.T) {
	config := mocks.NewTestConfig()
	config.Producer.Return.Successes = true
	producer := mocks.NewSyncProducer(t, config)
	sendErr := errors.New("broker down")
	producer.ExpectSendMessageAndFail(sendErr)
	producer.ExpectSendMessageAndFail(sendErr)

	breaker := circuitbreaker.New(circuitbreaker.Settings{
		Name:        "kafka-producer",
		MaxFailures: 2,
		OpenTimeout: time.Minute,
	}, quietLogger())
	p := NewKafkaProducerWith(producer, "", breaker, quietLogger())
	defer p.Close()

	event := ChangeEvent{Entity: "order", Action: ActionCreated, EntityID: 1}
	for i := 0; i < 2; i++ {
		if err := p.PublishChange(context.Background(), event); !errors.Is(err, sendErr) {
			t.Fatalf("Expected send error, got %v", err)
		}
	}

	if err := p.PublishChange(context.Background(), event); !errors.Is(err, circuitbreaker.ErrOpen) {
		t.Errorf("Expected ErrOpen, got %v", err)
	}
	if p.topic != DefaultChangesTopic {
		t.Errorf("Expected default topic, got %s", p.topic)
	}
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}
	if err := p.PublishChange(context.Background(), ChangeEvent{}); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestHandleMessageDispatchesDecodedEvent(t *testing.T) {
	var got ChangeEvent
	h := &consumerGroupHandler{
		handler: ChangeHandlerFunc(func(event ChangeEvent) error {
			got = event
			return nil
		}),
		logger: quietLogger(),
	}

	value := []byte(`{"entity":"customer","action":"deleted","entity_id":3,"event_time":"2024-05-01T10:00:00Z"}`)
	if err := h.handleMessage(&sarama.ConsumerMessage{Key: []byte("customer:3"), Value: value}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got.Entity != "customer" || got.Action != ActionDeleted || got.EntityID != 3 {
		t.Errorf("Unexpected event: %+v", got)
	}
}

func TestHandleMessageRejectsInvalidJSON(t *testing.T) {
	called := false
	h := &consumerGroupHandler{
		handler: ChangeHandlerFunc(func(ChangeEvent) error {
			called = true
			return nil
		}),
		logger: quietLogger(),
	}

	if err := h.handleMessage(&sarama.ConsumerMessage{Value: []byte("not json")}); err == nil {
		t.Error("Expected error for invalid JSON")
	}
	if called {
		t.Error("Expected handler not to be called")
	}
}
