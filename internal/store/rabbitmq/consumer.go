package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// JobHandler processes one job id. A non-nil error nacks the delivery
// without requeue, sending it to the DLQ.
type JobHandler func(ctx context.Context, jobID string) error

type Consumer struct {
	URL         string
	Queue       string
	Concurrency int
	Logger      *slog.Logger
}

var ErrDeliveriesClosed = errors.New("rabbitmq: delivery channel closed")

// ClampConcurrency bounds worker pool size to [1, 50], defaulting to 2.
func ClampConcurrency(n int) int {
	if n <= 0 {
		return 2
	}
	if n > 50 {
		return 50
	}
	return n
}

func DecodeJob(body []byte) (string, error) {
	var m JobMessage
	if err := json.Unmarshal(body, &m); err != nil {
		return "", err
	}
	if m.JobID == "" {
		return "", errors.New("job_id is empty")
	}
	return m.JobID, nil
}

// Run consumes until ctx is cancelled or the broker closes the channel.
func (c *Consumer) Run(ctx context.Context, handle JobHandler) error {
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := amqp.Dial(c.URL)
	if err != nil {
		return err
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if err := declareQueues(ch, c.Queue); err != nil {
		return err
	}

	// strict concurrency control
	concurrency := ClampConcurrency(c.Concurrency)
	if err := ch.Qos(concurrency, 0, false); err != nil {
		return err
	}

	msgs, err := ch.Consume(c.Queue, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	logger.Info("worker started", slog.String("queue", c.Queue), slog.Int("concurrency", concurrency))

	// worker pool
	jobs := make(chan amqp.Delivery, concurrency*2)

	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			for d := range jobs {
				jobID, err := DecodeJob(d.Body)
				if err != nil {
					logger.Warn("bad message", slog.Int("worker", workerID), slog.Any("err", err))
					_ = d.Nack(false, false)
					continue
				}

				start := time.Now()
				if err := handle(ctx, jobID); err != nil {
					logger.Warn("job failed",
						slog.Int("worker", workerID),
						slog.String("job_id", jobID),
						slog.Duration("cost", time.Since(start)),
						slog.Any("err", err))
					_ = d.Nack(false, false)
					continue
				}

				if err := d.Ack(false); err != nil {
					logger.Warn("ack failed", slog.Int("worker", workerID), slog.String("job_id", jobID), slog.Any("err", err))
				}
			}
		}(i)
	}

	// dispatcher
	for {
		select {
		case <-ctx.Done():
			logger.Info("worker shutting down")
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
