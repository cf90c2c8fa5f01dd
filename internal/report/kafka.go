package report

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/compress"

	"firestige.xyz/netanon/internal/config"
	"firestige.xyz/netanon/internal/core"
	"firestige.xyz/netanon/internal/metrics"
)

const (
	defaultBatchSize    = 100
	defaultBatchTimeout = 100 * time.Millisecond
	defaultMaxAttempts  = 3
)

// messageWriter is the subset of *kafka.Writer used by KafkaSink.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// auditMessage is the JSON value of one Kafka message.
type auditMessage struct {
	RunID         string `json:"run_id"`
	PrivateIP     string `json:"private_ip"`
	PublicIP      string `json:"public_ip"`
	ReplacementIP string `json:"replacement_ip"`
}

// KafkaSink publishes audit records to a topic, keyed by private address so
// the records of one host share a partition.
type KafkaSink struct {
	writer messageWriter
	topic  string
}

// NewKafkaSink creates a synchronous writer for cfg.
func NewKafkaSink(cfg config.KafkaAuditConfig) (*KafkaSink, error) {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" {
		return nil, fmt.Errorf("%w: kafka audit sink requires brokers and topic", core.ErrConfigInvalid)
	}

	wc := kafka.WriterConfig{
		Brokers:      cfg.Brokers,
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    defaultBatchSize,
		BatchTimeout: defaultBatchTimeout,
		MaxAttempts:  defaultMaxAttempts,
	}
	if cfg.BatchSize > 0 {
		wc.BatchSize = cfg.BatchSize
	}
	if cfg.MaxAttempts > 0 {
		wc.MaxAttempts = cfg.MaxAttempts
	}
	if cfg.BatchTimeout != "" {
		d, err := time.ParseDuration(cfg.BatchTimeout)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid batch_timeout: %v", core.ErrConfigInvalid, err)
		}
		wc.BatchTimeout = d
	}

	switch cfg.Compression {
	case "none", "":
	case "gzip":
		wc.CompressionCodec = compress.Gzip.Codec()
	case "snappy":
		wc.CompressionCodec = compress.Snappy.Codec()
	case "lz4":
		wc.CompressionCodec = compress.Lz4.Codec()
	default:
		return nil, fmt.Errorf("%w: invalid compression type: %s", core.ErrConfigInvalid, cfg.Compression)
	}

	slog.Info("kafka audit sink configured",
		"brokers", cfg.Brokers,
		"topic", cfg.Topic,
		"compression", cfg.Compression)

	return &KafkaSink{writer: kafka.NewWriter(wc), topic: cfg.Topic}, nil
}

func (s *KafkaSink) Name() string { return "kafka" }

func (s *KafkaSink) Emit(ctx context.Context, runID string, records []core.AuditRecord) error {
	if len(records) == 0 {
		return nil
	}
	msgs, err := encodeMessages(runID, records)
	if err != nil {
		return err
	}
	if err := s.writer.WriteMessages(ctx, msgs...); err != nil {
		metrics.AuditSinkErrorsTotal.WithLabelValues(s.Name()).Inc()
		return fmt.Errorf("kafka write to %s failed: %w", s.topic, err)
	}
	slog.Debug("audit records published", "topic", s.topic, "run_id", runID, "records", len(msgs))
	return nil
}

func (s *KafkaSink) Close() error {
	if err := s.writer.Close(); err != nil {
		return fmt.Errorf("closing kafka writer: %w", err)
	}
	return nil
}

func encodeMessages(runID string, records []core.AuditRecord) ([]kafka.Message, error) {
	now := time.Now()
	msgs := make([]kafka.Message, 0, len(records))
	for _, r := range records {
		value, err := json.Marshal(auditMessage{
			RunID:         runID,
			PrivateIP:     r.Private.String(),
			PublicIP:      r.Public.String(),
			ReplacementIP: r.Replacement.String(),
		})
		if err != nil {
			return nil, fmt.Errorf("serialize audit record failed: %w", err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(r.Private.String()),
			Value: value,
			Time:  now,
		})
	}
	return msgs, nil
}
