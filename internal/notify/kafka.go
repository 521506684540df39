package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// KafkaSender publishes refill alerts to a Kafka topic, keyed by patient id
// so one patient's alerts stay ordered. A circuit breaker sheds publishes
// while the cluster is down instead of stalling the evaluator.
type KafkaSender struct {
	producer sarama.SyncProducer
	topic    string
	breaker  *gobreaker.CircuitBreaker[struct{}]
	log      *zap.Logger
}

func NewKafkaSender(brokers []string, topic string, log *zap.Logger) (*KafkaSender, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Return.Successes = true
	cfg.Producer.Idempotent = true
	cfg.Net.MaxOpenRequests = 1

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating kafka producer: %w", err)
	}

	breaker := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:    "refill-alerts-kafka",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("kafka sender circuit state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &KafkaSender{
		producer: producer,
		topic:    topic,
		breaker:  breaker,
		log:      log,
	}, nil
}

func (s *KafkaSender) Send(ctx context.Context, alert RefillAlert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("encoding refill alert: %w", err)
	}

	_, err = s.breaker.Execute(func() (struct{}, error) {
		if err := ctx.Err(); err != nil {
			return struct{}{}, err
		}
		partition, offset, err := s.producer.SendMessage(&sarama.ProducerMessage{
			Topic: s.topic,
			Key:   sarama.StringEncoder(alert.PatientID.String()),
			Value: sarama.ByteEncoder(payload),
		})
		if err != nil {
			return struct{}{}, err
		}
		s.log.Debug("refill alert published",
			zap.String("medication_id", alert.MedicationID.String()),
			zap.Int32("partition", partition),
			zap.Int64("offset", offset),
		)
		return struct{}{}, nil
	})
	if err != nil {
		return fmt.Errorf("publishing refill alert: %w", err)
	}
	return nil
}

func (s *KafkaSender) Close() error {
	return s.producer.Close()
}
