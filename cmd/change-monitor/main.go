package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/jogardn/laptop-store/internal/config"
	"github.com/jogardn/laptop-store/internal/events"
)

// tally counts change events per entity and action.
type tally struct {
	mu     sync.Mutex
	counts map[string]int
}

func (t *tally) add(event events.ChangeEvent) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := event.Entity + "." + event.Action
	t.counts[key]++
	return t.counts[key]
}

func (t *tally) snapshot() map[string]int {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]int, len(t.counts))
	for k, v := range t.counts {
		out[k] = v
	}
	return out
}

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}
	logger.SetLevel(cfg.LogLevel)

	brokers := cfg.KafkaBrokers
	if len(brokers) == 0 {
		brokers = []string{"localhost:9092"}
	}

	counts := &tally{counts: make(map[string]int)}
	handler := events.ChangeHandlerFunc(func(event events.ChangeEvent) error {
		logger.WithFields(logrus.Fields{
			"entity":     event.Entity,
			"action":     event.Action,
			"entity_id":  event.EntityID,
			"key":        event.Key(),
			"event_time": event.EventTime,
			"seen":       counts.add(event),
		}).Info("Change observed")
		return nil
	})

	consumer, err := events.NewKafkaConsumer(brokers, cfg.KafkaGroupID, cfg.KafkaTopic, handler, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create change consumer")
	}
	defer consumer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.WithField("topic", cfg.KafkaTopic).Info("Change monitor started")
	if err := consumer.Start(ctx); err != nil {
		logger.WithError(err).Error("Change consumer stopped")
	}

	logger.WithField("counts", counts.snapshot()).Info("Shutting down change monitor...")
}
