package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/i-dot-ai/medguard-paper-sub001/pkg/common/config"
	"github.com/i-dot-ai/medguard-paper-sub001/pkg/common/logger"
	"github.com/i-dot-ai/medguard-paper-sub001/pkg/common/models"
	"github.com/segmentio/kafka-go"
)

type Producer struct {
	writer *kafka.Writer
}

func NewProducer(topic string) *Producer {
	cfg := config.Load()
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.KafkaBrokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
		BatchSize:    1,
		BatchTimeout: 10 * time.Millisecond,
	}

	return &Producer{writer: writer}
}

// PublishAudit emits one stage-completion record for the external
// report layer. Audit failures are logged but never fail the run.
func (p *Producer) PublishAudit(ctx context.Context, audit models.RunAudit) error {
	payload, err := json.Marshal(audit)
	if err != nil {
		return fmt.Errorf("failed to marshal audit record: %w", err)
	}

	message := kafka.Message{
		Key:   []byte(uuid.New().String()),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "run-id", Value: []byte(audit.RunID)},
			{Key: "stage", Value: []byte(audit.Stage)},
		},
	}

	if err := p.writer.WriteMessages(ctx, message); err != nil {
		logger.Log.WithError(err).WithFields(map[string]interface{}{
			"run_id": audit.RunID,
			"stage":  audit.Stage,
		}).Error("Failed to publish audit record")
		return err
	}

	logger.Log.WithFields(map[string]interface{}{
		"run_id": audit.RunID,
		"stage":  audit.Stage,
		"status": audit.Status,
		"topic":  p.writer.Topic,
	}).Info("Audit record published")

	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
