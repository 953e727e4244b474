package worker

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/suPer8Hu/gemini-chat/internal/store/rabbitmq"
	"go.uber.org/zap"
)

const (
	DefaultMaxAttempts = 3
	DefaultRetryDelay  = 5 * time.Second

	retryHeader = "x-retry-count"
)

var ErrDeliveriesClosed = errors.New("delivery channel closed")

// Consumer feeds deliveries from queue to a fixed pool of goroutines.
// Transient failures go through the retry queue; the rest end in the DLQ.
type Consumer struct {
	ch          *amqp.Channel
	queue       string
	concurrency int
	maxAttempts int
	retryDelay  time.Duration
	proc        *Processor
	log         *zap.Logger
}

func NewConsumer(ch *amqp.Channel, queue string, concurrency int, proc *Processor, log *zap.Logger) *Consumer {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Consumer{
		ch:          ch,
		queue:       queue,
		concurrency: concurrency,
		maxAttempts: DefaultMaxAttempts,
		retryDelay:  DefaultRetryDelay,
		proc:        proc,
		log:         log.Named("consumer"),
	}
}

// Run consumes until ctx is done, then drains in-flight jobs.
func (c *Consumer) Run(ctx context.Context) error {
	if err := rabbitmq.DeclareQueues(c.ch, c.queue); err != nil {
		return err
	}
	//  strict concurrency control
	if err := c.ch.Qos(c.concurrency, 0, false); err != nil {
		return err
	}
	msgs, err := c.ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	c.log.Info("worker started", zap.String("queue", c.queue), zap.Int("concurrency", c.concurrency))

	jobs := make(chan amqp.Delivery, c.concurrency*2)
	var wg sync.WaitGroup
	wg.Add(c.concurrency)
	for i := 0; i < c.concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			for d := range jobs {
				c.handle(ctx, workerID, d)
			}
		}(i)
	}

	// dispatcher
	for {
		select {
		case <-ctx.Done():
			c.log.Info("worker shutting down")
			close(jobs)
			wg.Wait()
			return nil

		case d, ok := <-msgs:
			if !ok {
				close(jobs)
				wg.Wait()
				return ErrDeliveriesClosed
			}
			jobs <- d
		}
	}
}

func (c *Consumer) handle(ctx context.Context, workerID int, d amqp.Delivery) {
	log := c.log.With(zap.Int("worker", workerID))

	m, err := rabbitmq.DecodeJob(d.Body)
	if err != nil || m.JobID == "" {
		log.Warn("bad message", zap.ByteString("body", d.Body), zap.Error(err))
		_ = d.Nack(false, false)
		return
	}
	log = log.With(zap.String("job_id", m.JobID))

	attempt := retryCount(d.Headers) + 1
	last := attempt >= c.maxAttempts

	err = c.proc.Handle(ctx, m.JobID, last)
	if err == nil {
		if err := d.Ack(false); err != nil {
			log.Warn("ack failed", zap.Error(err))
		}
		return
	}

	if last || IsPermanent(err) {
		log.Error("job dead-lettered", zap.Int("attempt", attempt), zap.Error(err))
		_ = d.Nack(false, false)
		return
	}

	if err := c.retry(ctx, d, attempt); err != nil {
		log.Error("schedule retry failed", zap.Error(err))
		_ = d.Nack(false, true)
		return
	}
	log.Warn("job scheduled for retry", zap.Int("attempt", attempt), zap.Duration("delay", c.retryDelay))
	_ = d.Ack(false)
}

// retry republishes d to the retry queue, whose TTL dead-letters it back to
// the main queue after retryDelay.
func (c *Consumer) retry(ctx context.Context, d amqp.Delivery, attempt int) error {
	headers := amqp.Table{}
	for k, v := range d.Headers {
		headers[k] = v
	}
	headers[retryHeader] = int32(attempt)

	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	return c.ch.PublishWithContext(cctx, "", c.queue+".retry", false, false, amqp.Publishing{
		ContentType:  d.ContentType,
		DeliveryMode: amqp.Persistent,
		Body:         d.Body,
		Headers:      headers,
		Expiration:   strconv.FormatInt(c.retryDelay.Milliseconds(), 10),
		Timestamp:    time.Now(),
	})
}

func retryCount(h amqp.Table) int {
	switch v := h[retryHeader].(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	default:
		return 0
	}
}
