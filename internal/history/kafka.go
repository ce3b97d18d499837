package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/armada-loadtest/coordinator/internal/model"
)

// messageWriter is the subset of *kafka.Writer used by KafkaPublisher.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher publishes each completed run to a Kafka topic, keyed by room id.
type KafkaPublisher struct {
	writer messageWriter
}

// NewKafkaPublisher creates a publisher writing to topic on brokers.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: 50 * time.Millisecond,
			RequiredAcks: kafka.RequireOne,
		},
	}
}

// Record implements Recorder.
func (p *KafkaPublisher) Record(ctx context.Context, run *model.Run) error {
	msg, err := runMessage(run)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish run %s: %w", run.ID, err)
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func runMessage(run *model.Run) (kafka.Message, error) {
	value, err := json.Marshal(run)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to serialize run: %w", err)
	}
	return kafka.Message{
		Key:   []byte(run.RoomID),
		Value: value,
		Time:  run.CompletedAt,
		Headers: []kafka.Header{
			{Key: "run-id", Value: []byte(run.ID)},
		},
	}, nil
}
