// Package scheduler moves inbound blocks from the network loop to the
// processor and routes results back, across two bounded queues.
//
// NetworkPass runs on the server event loop. RunProcessing runs on its own
// goroutine. The queues are the only state the two share.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/bft-labs/ebridge/internal/app"
	"github.com/bft-labs/ebridge/internal/domain"
	"github.com/bft-labs/ebridge/internal/metrics"
	"github.com/bft-labs/ebridge/internal/ports"
	"github.com/bft-labs/ebridge/pkg/log"
)

const (
	// DefaultQueueDepth is the capacity of each cross-boundary queue.
	DefaultQueueDepth = 4

	// DefaultHoldRetry is how long the processing loop waits before retrying
	// a result that did not fit on a full queue.
	DefaultHoldRetry = 5 * time.Millisecond

	queueToProcessing   = "to_processing"
	queueFromProcessing = "from_processing"
)

// Network is the registry side of the scheduler.
type Network interface {
	CollectPending(limit int) []domain.Envelope
	Dispatch(envs []domain.Envelope) int
	Invalidate(id domain.ConnID, err error)
}

// Config holds scheduler parameters.
type Config struct {
	BatchSize  int
	QueueDepth int
	HoldRetry  time.Duration
	Processor  ports.Processor
	Logger     ports.Logger
	Metrics    *metrics.Metrics
}

// Scheduler batches pending blocks for the processor.
type Scheduler struct {
	net       Network
	proc      ports.Processor
	batchSize int
	holdRetry time.Duration
	logger    ports.Logger
	metrics   *metrics.Metrics

	toProcessing   *Queue[[]domain.Envelope]
	fromProcessing *Queue[domain.Result]

	// processing goroutine only
	held     *domain.Result
	batchSeq uint64
}

// New creates a scheduler feeding cfg.Processor from net.
func New(net Network, cfg Config) (*Scheduler, error) {
	if cfg.Processor == nil {
		return nil, fmt.Errorf("%w: scheduler needs a processor", domain.ErrInvalidConfig)
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = app.DefaultBatchSize
	}
	if cfg.HoldRetry <= 0 {
		cfg.HoldRetry = DefaultHoldRetry
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewNoopLogger()
	}
	return &Scheduler{
		net:            net,
		proc:           cfg.Processor,
		batchSize:      cfg.BatchSize,
		holdRetry:      cfg.HoldRetry,
		logger:         cfg.Logger,
		metrics:        cfg.Metrics,
		toProcessing:   NewQueue[[]domain.Envelope](cfg.QueueDepth),
		fromProcessing: NewQueue[domain.Result](cfg.QueueDepth),
	}, nil
}

// NetworkPass hands newly collected blocks to the processing side if there
// is room, and applies one processed result if one is ready. It never blocks
// and reports whether it did anything.
func (s *Scheduler) NetworkPass() bool {
	work := false

	if s.toProcessing.Full() {
		s.metrics.QueueFull(queueToProcessing)
	} else if envs := s.net.CollectPending(-1); len(envs) > 0 {
		// only this goroutine pushes, so a queue seen with room stays so
		s.toProcessing.TryPush(envs)
		work = true
	}

	if res, ok := s.fromProcessing.TryPop(); ok {
		for _, f := range res.Failures {
			s.net.Invalidate(f.ConnID, f.Err)
		}
		s.net.Dispatch(res.Envelopes)
		work = true
	}
	return work
}

// RunProcessing consumes collected batches until ctx is done. A batch that
// is already being processed when ctx is cancelled is finished first.
func (s *Scheduler) RunProcessing(ctx context.Context) error {
	for {
		if s.held != nil {
			if !s.fromProcessing.TryPush(*s.held) {
				s.metrics.QueueFull(queueFromProcessing)
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(s.holdRetry):
				}
				continue
			}
			s.held = nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case envs := <-s.toProcessing.C():
			res := s.Process(context.WithoutCancel(ctx), envs)
			if res.Empty() {
				continue
			}
			if !s.fromProcessing.TryPush(res) {
				s.held = &res
			}
		}
	}
}

// Process runs envs through the processor in sub-batches of the configured
// size. When a sub-batch fails, its items are retried one at a time so only
// the connections whose own items fail are reported.
func (s *Scheduler) Process(ctx context.Context, envs []domain.Envelope) domain.Result {
	var res domain.Result
	failed := make(map[domain.ConnID]bool)

	for _, batch := range app.SplitBatches(envs, s.batchSize) {
		tag := fmt.Sprintf("batch-%d", s.batchSeq)
		s.batchSeq++

		out, err := s.call(ctx, tag, batch)
		if err == nil {
			res.Envelopes = append(res.Envelopes, out...)
			continue
		}

		s.logger.Warn("processor batch failed, isolating items",
			ports.String("tag", tag),
			ports.Int("items", batch.Size()),
			ports.Err(err),
		)
		for i, env := range batch.Envelopes {
			if failed[env.ConnID] {
				continue
			}
			single, _ := app.SliceBatch([]domain.Envelope{env}, 1)
			out, err := s.call(ctx, fmt.Sprintf("%s.%d", tag, i), single)
			if err != nil {
				failed[env.ConnID] = true
				res.Failures = append(res.Failures, domain.Failure{ConnID: env.ConnID, Err: err})
				continue
			}
			res.Envelopes = append(res.Envelopes, out...)
		}
	}

	if len(failed) > 0 {
		kept := res.Envelopes[:0]
		for _, env := range res.Envelopes {
			if !failed[env.ConnID] {
				kept = append(kept, env)
			}
		}
		res.Envelopes = kept
	}
	return res
}

func (s *Scheduler) call(ctx context.Context, tag string, batch *domain.Batch) ([]domain.Envelope, error) {
	start := time.Now()
	out, err := s.proc.Process(ctx, tag, batch.Blocks)
	s.metrics.ObserveBatch(batch.Size(), time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("%w: processor %s: %v", domain.ErrTransformFailure, tag, err)
	}
	return app.PackResults(batch, out)
}

// Pending returns the number of batches waiting on each queue.
func (s *Scheduler) Pending() (toProcessing, fromProcessing int) {
	return s.toProcessing.Len(), s.fromProcessing.Len()
}
