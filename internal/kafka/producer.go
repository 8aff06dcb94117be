package kafka

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/launcher-backend/internal/config"
	"github.com/launcher-backend/internal/domain"
)

// Producer publishes launcher events to a Kafka topic. Publishing is
// fire-and-forget: a full pipeline drops the event rather than slowing
// the request that produced it.
type Producer struct {
	topic    string
	producer sarama.AsyncProducer
	logger   *slog.Logger
	wg       sync.WaitGroup
	done     chan struct{}
}

// NewProducer creates a new Kafka event producer
func NewProducer(cfg *config.KafkaConfig, logger *slog.Logger) (*Producer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_0_0_0
	saramaConfig.Producer.RequiredAcks = sarama.WaitForLocal
	saramaConfig.Producer.Compression = sarama.CompressionSnappy
	saramaConfig.Producer.Flush.Frequency = 100 * time.Millisecond
	saramaConfig.Producer.Return.Successes = false
	saramaConfig.Producer.Return.Errors = true

	asyncProducer, err := sarama.NewAsyncProducer(cfg.Brokers, saramaConfig)
	if err != nil {
		return nil, err
	}

	p := &Producer{
		topic:    cfg.Topic,
		producer: asyncProducer,
		logger:   logger,
		done:     make(chan struct{}),
	}

	// Drain producer errors so the internal channel never blocks
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for err := range asyncProducer.Errors() {
			p.logger.Error("failed to publish event", "error", err)
		}
	}()

	return p, nil
}

// Publish enqueues an event for delivery. Events are keyed by channel
// when set, otherwise by email, so per-entity ordering is preserved.
func (p *Producer) Publish(event domain.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("failed to marshal event", "type", event.Type, "error", err)
		return
	}

	key := event.Channel
	if key == "" {
		key = event.Email
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(data),
	}

	select {
	case p.producer.Input() <- msg:
	case <-p.done:
	default:
		p.logger.Warn("producer pipeline full, dropping event", "type", event.Type)
	}
}

// Close shuts the producer down, flushing buffered events
func (p *Producer) Close() error {
	close(p.done)
	p.producer.AsyncClose()
	p.wg.Wait()
	return nil
}
