package kafka

import (
	"context"
	"encoding/json"

	"github.com/twmb/franz-go/pkg/kgo"

	"frauddet/backend/services/prediction-stream/internal/models"
)

// Producer is the part of *kgo.Client the publisher needs.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// Publisher sends prediction records to kafka, keyed by session.
type Publisher struct {
	producer Producer
	topic    string
}

// NewPublisher returns publisher. An empty topic uses the client's default.
func NewPublisher(producer Producer, topic string) *Publisher {
	return &Publisher{producer: producer, topic: topic}
}

// Name identifies the sink.
func (p *Publisher) Name() string {
	return "kafka"
}

// Write publishes the record and waits for the broker ack.
func (p *Publisher) Write(ctx context.Context, rec models.PredictionRecord) error {
	value, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	record := &kgo.Record{
		Key:   []byte(rec.SessionID),
		Value: value,
		Topic: p.topic,
		Headers: []kgo.RecordHeader{
			{Key: "source", Value: []byte(rec.Source)},
		},
	}
	return p.producer.ProduceSync(ctx, record).FirstErr()
}
