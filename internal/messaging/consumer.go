package messaging

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

var consumerTracer = otel.Tracer("messaging/consumer")

// ErrSkip marks a message the handler can never process. The consumer logs
// it, commits past it and keeps going; any other handler error stops Consume.
var ErrSkip = errors.New("skip message")

// Delivery is one fetched message.
type Delivery struct {
	Key       string
	Kind      string
	Payload   []byte
	Partition int
	Offset    int64
}

type Handler func(ctx context.Context, d Delivery) error

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	reader  messageReader
	topic   string
	groupID string
	logger  *slog.Logger
}

type ConsumerOption func(*consumerConfig)

type consumerConfig struct {
	reader kafka.ReaderConfig
	logger *slog.Logger
}

func WithStartOffset(offset int64) ConsumerOption {
	return func(cfg *consumerConfig) {
		cfg.reader.StartOffset = offset
	}
}

func WithLogger(logger *slog.Logger) ConsumerOption {
	return func(cfg *consumerConfig) {
		cfg.logger = logger
	}
}

func NewConsumer(brokers []string, topic, groupID string, opts ...ConsumerOption) *Consumer {
	cfg := consumerConfig{
		reader: kafka.ReaderConfig{
			Brokers: brokers,
			Topic:   topic,
			GroupID: groupID,
		},
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return newConsumer(kafka.NewReader(cfg.reader), topic, groupID, cfg.logger)
}

func newConsumer(r messageReader, topic, groupID string, logger *slog.Logger) *Consumer {
	return &Consumer{reader: r, topic: topic, groupID: groupID, logger: logger}
}

// Consume processes messages until ctx is cancelled or a handler fails
// with an error other than ErrSkip. Offsets are committed after handling.
func (c *Consumer) Consume(ctx context.Context, handler Handler) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			return err
		}

		if err := c.processMessage(ctx, msg, handler); err != nil {
			if !errors.Is(err, ErrSkip) {
				return err
			}
			c.logger.Warn("skipping message", "topic", c.topic, "partition", msg.Partition, "offset", msg.Offset, "error", err)
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			return err
		}
	}
}

func (c *Consumer) processMessage(ctx context.Context, msg kafka.Message, handler Handler) error {
	parentCtx := otel.GetTextMapPropagator().Extract(ctx, NewHeaderCarrier(&msg))

	spanCtx, span := consumerTracer.Start(parentCtx, "process "+c.topic,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			semconv.MessagingSystemKafka,
			semconv.MessagingOperationName("process"),
			semconv.MessagingOperationTypeDeliver,
			semconv.MessagingDestinationName(c.topic),
			semconv.MessagingKafkaConsumerGroup(c.groupID),
			semconv.MessagingKafkaMessageOffset(int(msg.Offset)),
			semconv.MessagingDestinationPartitionID(strconv.Itoa(msg.Partition)),
			semconv.MessagingKafkaMessageKey(string(msg.Key)),
		),
	)
	defer span.End()

	d := Delivery{
		Key:       string(msg.Key),
		Kind:      header(&msg, HeaderKind),
		Payload:   msg.Value,
		Partition: msg.Partition,
		Offset:    msg.Offset,
	}
	if err := handler(spanCtx, d); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	return nil
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
