package queuex

import (
	"context"
	"time"

	"github.com/astralabs/astra-backend/pkg/logx"
)

// HandlerFunc processes one dequeued envelope. Errors are logged per item and
// do not stop the worker loop; recovery policy is the handler's responsibility.
type HandlerFunc func(ctx context.Context, env *Envelope) error

// WorkerOptions tunes the polling worker loop.
type WorkerOptions struct {
	// Interval is the base poll interval on the non-blocking path and the
	// reset value after a hit.
	Interval time.Duration

	// MaxInterval bounds the exponential backoff on empty polls.
	MaxInterval time.Duration

	// BackoffFactor multiplies the interval after each empty poll.
	BackoffFactor float64

	// BlockTimeout is the per-iteration blocking-pop wait on the persistent
	// transport.
	BlockTimeout time.Duration
}

func (o *WorkerOptions) withDefaults() {
	if o.Interval <= 0 {
		o.Interval = 500 * time.Millisecond
	}
	if o.MaxInterval <= 0 {
		o.MaxInterval = 5 * time.Second
	}
	if o.BackoffFactor <= 1 {
		o.BackoffFactor = 1.5
	}
	if o.BlockTimeout <= 0 {
		o.BlockTimeout = time.Second
	}
}

// StartPollingWorker runs a consumer loop for queueKey in a background
// goroutine until ctx is cancelled or the returned stop function is called.
func (q *Queue) StartPollingWorker(ctx context.Context, queueKey string, handler HandlerFunc, opts WorkerOptions) (stop func()) {
	opts.withDefaults()

	ctx, cancel := context.WithCancel(ctx)
	go q.workerLoop(ctx, queueKey, handler, opts)
	return cancel
}

func (q *Queue) workerLoop(ctx context.Context, queueKey string, handler HandlerFunc, opts WorkerOptions) {
	logx.Infof("queuex: worker started on %s (blocking=%v)", queueKey, q.store.SupportsBlocking())

	interval := opts.Interval
	for {
		select {
		case <-ctx.Done():
			logx.Infof("queuex: worker on %s stopped", queueKey)
			return
		default:
		}

		if q.store.SupportsBlocking() {
			env, err := q.DequeueOnce(ctx, queueKey, opts.BlockTimeout)
			if err != nil {
				if ctx.Err() != nil {
					continue
				}
				logx.WithError(err).Errorf("queuex: worker dequeue error on %s", queueKey)
				sleep(ctx, time.Second)
				continue
			}
			if env == nil {
				sleep(ctx, 100*time.Millisecond)
				continue
			}
			q.runHandler(ctx, queueKey, handler, env)
			interval = opts.Interval
			continue
		}

		env, err := q.DequeueOnce(ctx, queueKey, 0)
		if err != nil {
			logx.WithError(err).Errorf("queuex: worker poll error on %s", queueKey)
			sleep(ctx, time.Second)
			continue
		}
		if env != nil {
			q.runHandler(ctx, queueKey, handler, env)
			interval = opts.Interval
			continue
		}

		// Empty poll: back off up to the cap.
		interval = time.Duration(float64(interval) * opts.BackoffFactor)
		if interval > opts.MaxInterval {
			interval = opts.MaxInterval
		}
		sleep(ctx, interval)
	}
}

func (q *Queue) runHandler(ctx context.Context, queueKey string, handler HandlerFunc, env *Envelope) {
	if err := handler(ctx, env); err != nil {
		logx.WithFields(logx.Fields{
			"queue":  queueKey,
			"job_id": env.ID,
		}).Errorf("queuex: handler failed: %v", err)
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
