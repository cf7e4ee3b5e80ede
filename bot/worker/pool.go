// Package worker runs dispatches for inbound chat commands on a bounded set
// of goroutines so the transport never blocks on the remote API.
package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/papercomputeco/gymqr/pkg/dispatcher"
)

const (
	defaultNumWorkers = 4
	defaultQueueSize  = 64
)

// Dispatcher is the part of *dispatcher.Dispatcher the pool needs.
type Dispatcher interface {
	Dispatch(ctx context.Context, cmd dispatcher.InboundCommand) dispatcher.Result
}

// Job is a single inbound command waiting to be dispatched.
type Job = dispatcher.InboundCommand

// Config configures a Pool.
type Config struct {
	Dispatcher Dispatcher
	Logger     *zap.Logger

	// NumWorkers is the number of concurrent pipelines. Defaults to 4.
	NumWorkers int

	// QueueSize bounds the number of waiting jobs. Defaults to 64.
	QueueSize int

	// JobTimeout bounds a single dispatch. Zero means no limit beyond the
	// HTTP client timeouts. The remote API calls honor it; delivery through
	// a Sender without context support (telegram.Client) does not, and is
	// bounded by that client's own HTTP timeout instead.
	JobTimeout time.Duration
}

// Pool runs each enqueued Job as an independent pipeline.
type Pool struct {
	dispatcher Dispatcher
	logger     *zap.Logger
	jobTimeout time.Duration

	jobs   chan Job
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewPool starts the workers.
func NewPool(c *Config) (*Pool, error) {
	if c == nil || c.Dispatcher == nil {
		return nil, errors.New("dispatcher is required")
	}

	logger := c.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	numWorkers := c.NumWorkers
	if numWorkers <= 0 {
		numWorkers = defaultNumWorkers
	}
	queueSize := c.QueueSize
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		dispatcher: c.Dispatcher,
		logger:     logger,
		jobTimeout: c.JobTimeout,
		jobs:       make(chan Job, queueSize),
		ctx:        ctx,
		cancel:     cancel,
	}

	for i := range numWorkers {
		p.wg.Add(1)
		go p.work(i)
	}

	logger.Debug("worker pool started",
		zap.Int("workers", numWorkers),
		zap.Int("queue_size", queueSize),
	)

	return p, nil
}

// Enqueue schedules job. It returns false without blocking when the pool is
// closed or the queue is full.
func (p *Pool) Enqueue(job Job) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return false
	}

	select {
	case p.jobs <- job:
		return true
	default:
		p.logger.Warn("worker queue full, dropping command",
			zap.Int64("chat_id", job.ChatID),
			zap.Stringer("command", job.Command),
		)
		return false
	}
}

// Close stops accepting jobs, waits for queued and in-flight jobs to finish,
// and returns. It is safe to call more than once.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()

	p.wg.Wait()
	p.cancel()
}

func (p *Pool) work(id int) {
	defer p.wg.Done()

	for job := range p.jobs {
		p.run(id, job)
	}
}

func (p *Pool) run(id int, job Job) {
	ctx := p.ctx
	if p.jobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.jobTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("dispatch panicked",
				zap.Int("worker", id),
				zap.Int64("chat_id", job.ChatID),
				zap.Any("panic", r),
			)
		}
	}()

	res := p.dispatcher.Dispatch(ctx, job)
	p.logger.Debug("job finished",
		zap.Int("worker", id),
		zap.String("request_id", res.RequestID),
		zap.Stringer("state", res.State),
	)
}
