package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/shelfwise/catalog-notifier/internal/model"
)

// ErrBreakerOpen is returned when the firehose breaker rejects a write.
var ErrBreakerOpen = errors.New("kafka: breaker open")

type ProducerConfig struct {
	Brokers       []string
	Topic         string
	WriteTimeout  time.Duration // default 5s
	FailThreshold int           // default 5
	OpenFor       time.Duration // default 30s
}

// Producer writes delivered events to the analytics firehose topic. Writes
// are breaker-guarded so a slow or down broker cannot stall the relay; the
// relay treats firehose errors as droppable.
type Producer struct {
	w            *kafka.Writer
	br           *MicroBreaker
	writeTimeout time.Duration
	log          *zap.Logger
}

func NewProducer(c ProducerConfig, log *zap.Logger) (*Producer, error) {
	if len(c.Brokers) == 0 || c.Topic == "" {
		return nil, errors.New("kafka: brokers and topic are required")
	}
	wt := c.WriteTimeout
	if wt <= 0 {
		wt = 5 * time.Second
	}
	th := c.FailThreshold
	if th <= 0 {
		th = 5
	}
	of := c.OpenFor
	if of <= 0 {
		of = 30 * time.Second
	}

	w := &kafka.Writer{
		Addr:         kafka.TCP(c.Brokers...),
		Topic:        c.Topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 50 * time.Millisecond,
	}
	return &Producer{w: w, br: NewMicroBreaker(th, of), writeTimeout: wt, log: log}, nil
}

// Emit serializes the envelope and writes it keyed by tenant, preserving
// per-tenant ordering within the topic.
func (p *Producer) Emit(ctx context.Context, ev model.DeliveredEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	if !p.br.TryAcquire() {
		return ErrBreakerOpen
	}

	writeCtx, cancel := context.WithTimeout(ctx, p.writeTimeout)
	defer cancel()
	if err := p.w.WriteMessages(writeCtx, kafka.Message{
		Key:   []byte(ev.OrgID.String()),
		Value: payload,
	}); err != nil {
		p.br.OnFailure()
		return err
	}
	p.br.OnSuccess()
	return nil
}

func (p *Producer) Close() error {
	return p.w.Close()
}
