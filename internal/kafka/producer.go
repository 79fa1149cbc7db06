package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"soc-log-pipeline/config"
	"soc-log-pipeline/internal/model"
)

type AlertProducer interface {
	Produce(ctx context.Context, alerts []model.Alert) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type kafkaAlertProducer struct {
	writer messageWriter
	topic  string
}

func NewKafkaAlertProducer(cfg *config.Config) (AlertProducer, error) {
	if len(cfg.Kafka.Brokers) == 0 || cfg.Kafka.AlertTopic == "" {
		return nil, errors.New("kafka configuration missing")
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Kafka.Brokers...),
		Topic:                  cfg.Kafka.AlertTopic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           100 * time.Millisecond,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
	log.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.AlertTopic).Msg("Kafka alert producer initialized")
	return newAlertProducer(writer, cfg.Kafka.AlertTopic), nil
}

func newAlertProducer(w messageWriter, topic string) *kafkaAlertProducer {
	return &kafkaAlertProducer{writer: w, topic: topic}
}

func (p *kafkaAlertProducer) Produce(ctx context.Context, alerts []model.Alert) error {
	if len(alerts) == 0 {
		return nil
	}
	messages := make([]kafka.Message, 0, len(alerts))
	for _, alert := range alerts {
		value, err := json.Marshal(alert)
		if err != nil {
			log.Error().Err(err).Str("event_id", alert.EventID).Msg("Failed to marshal alert for Kafka")
			continue
		}
		messages = append(messages, kafka.Message{
			Key:   []byte(alert.EventID),
			Value: value,
			Time:  alert.AnalyzedAt,
		})
	}
	if len(messages) == 0 {
		log.Warn().Msg("No valid messages to produce.")
		return nil
	}

	if err := p.writer.WriteMessages(ctx, messages...); err != nil {
		log.Error().Err(err).Int("message_count", len(messages)).Msg("Failed to write alerts to Kafka")
		return err
	}
	log.Debug().Int("message_count", len(messages)).Str("topic", p.topic).Msg("Successfully produced alerts to Kafka")
	return nil
}

func (p *kafkaAlertProducer) Close() error {
	return p.writer.Close()
}
