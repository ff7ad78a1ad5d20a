package delivery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/RenatoCabral2022/mixlab-host/internal/audio"
	"github.com/RenatoCabral2022/mixlab-host/internal/config"
	"github.com/RenatoCabral2022/mixlab-host/internal/metrics"
	"github.com/RenatoCabral2022/mixlab-host/internal/ringbuffer"
	"github.com/RenatoCabral2022/mixlab-host/internal/window"
)

// ErrClosed is returned by Send once the channel is closed or the event loop
// it wakes has gone away.
var ErrClosed = fmt.Errorf("delivery channel: %w", audio.ErrSinkClosed)

// Options configures a Channel.
type Options struct {
	// Capacity bounds the queue; 0 means unbounded.
	Capacity int
	// Policy is config.OverflowBlock or config.OverflowDropOldest.
	Policy string
	// BacklogWarn logs a warning when this many blocks are queued; 0 disables.
	BacklogWarn int
}

// Channel carries blocks from the generator goroutine to the event-loop
// goroutine. Blocks are queued in arrival order and the loop is woken with a
// single EventBlocksReady per batch: a new wake is posted only after the loop
// has started draining the previous one.
type Channel struct {
	poster window.Poster
	logger *zap.Logger
	opts   Options

	mu     sync.Mutex
	queue  *ringbuffer.RingBuffer[*audio.Block]
	warned bool

	pending   atomic.Bool
	space     chan struct{}
	closed    chan struct{}
	closeOnce sync.Once

	sent      atomic.Uint64
	delivered atomic.Uint64
	wakes     atomic.Uint64
}

var _ audio.BlockSink = (*Channel)(nil)

// New creates a channel that wakes poster's loop when blocks arrive.
func New(poster window.Poster, opts Options, logger *zap.Logger) (*Channel, error) {
	if poster == nil {
		return nil, errors.New("delivery channel needs an event poster")
	}
	if opts.Capacity < 0 {
		return nil, fmt.Errorf("invalid queue capacity %d", opts.Capacity)
	}
	policy := ringbuffer.Reject
	switch opts.Policy {
	case "", config.OverflowBlock:
		opts.Policy = config.OverflowBlock
	case config.OverflowDropOldest:
		policy = ringbuffer.DropOldest
	default:
		return nil, fmt.Errorf("unknown overflow policy %q", opts.Policy)
	}
	return &Channel{
		poster: poster,
		logger: logger.With(zap.String("component", "delivery")),
		opts:   opts,
		queue:  ringbuffer.New[*audio.Block](opts.Capacity, policy),
		space:  make(chan struct{}, 1),
		closed: make(chan struct{}),
	}, nil
}

// Send enqueues b and wakes the event loop if no wake is outstanding. On a
// full queue with the block policy it waits for room, ctx, or Close.
func (c *Channel) Send(ctx context.Context, b *audio.Block) error {
	for {
		select {
		case <-c.closed:
			return ErrClosed
		default:
		}

		c.mu.Lock()
		evicted, dropped, err := c.queue.Push(b)
		n := c.queue.Len()
		c.mu.Unlock()

		if err == nil {
			c.sent.Add(1)
			metrics.DeliveryBacklog.Set(float64(n))
			if dropped {
				metrics.BlocksDroppedTotal.Inc()
				c.logger.Warn("delivery queue full, dropped oldest block",
					zap.Uint64("seq", evicted.Seq),
					zap.Int("capacity", c.opts.Capacity),
				)
			}
			c.checkBacklog(n)
			return c.wake()
		}

		select {
		case <-c.space:
		case <-ctx.Done():
			return ctx.Err()
		case <-c.closed:
			return ErrClosed
		}
	}
}

func (c *Channel) wake() error {
	if !c.pending.CompareAndSwap(false, true) {
		return nil
	}
	if err := c.poster.Post(window.Event{Kind: window.EventBlocksReady}); err != nil {
		c.pending.Store(false)
		if errors.Is(err, window.ErrLoopClosed) {
			return ErrClosed
		}
		return fmt.Errorf("post blocks ready: %w", err)
	}
	c.wakes.Add(1)
	return nil
}

func (c *Channel) checkBacklog(n int) {
	if c.opts.BacklogWarn <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if n >= c.opts.BacklogWarn && !c.warned {
		c.warned = true
		c.logger.Warn("delivery backlog growing", zap.Int("queued", n))
	}
}

// Receive removes the oldest block without blocking.
func (c *Channel) Receive() (*audio.Block, bool) {
	c.mu.Lock()
	b, ok := c.queue.Pop()
	n := c.queue.Len()
	if n == 0 {
		c.warned = false
	}
	c.mu.Unlock()

	if !ok {
		return nil, false
	}
	c.delivered.Add(1)
	metrics.DeliveryBacklog.Set(float64(n))
	select {
	case c.space <- struct{}{}:
	default:
	}
	return b, true
}

// Drain hands every queued block to fn in order and returns how many it
// delivered. It is meant to run on the event-loop goroutine in response to
// EventBlocksReady. The outstanding wake is cleared before the queue is read,
// so a block enqueued after the last Receive always posts a fresh wake.
func (c *Channel) Drain(fn func(*audio.Block)) int {
	c.pending.Store(false)
	n := 0
	for {
		b, ok := c.Receive()
		if !ok {
			return n
		}
		fn(b)
		n++
	}
}

// Close makes further sends fail with ErrClosed. Queued blocks stay available
// to Receive and Drain. Idempotent.
func (c *Channel) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.logger.Info("delivery channel closed",
			zap.Uint64("sent", c.sent.Load()),
			zap.Uint64("delivered", c.delivered.Load()),
			zap.Int("queued", c.Len()),
		)
	})
}

// Len returns the number of queued blocks.
func (c *Channel) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queue.Len()
}

// Stats is a snapshot of channel counters.
type Stats struct {
	Sent      uint64 `json:"sent"`
	Delivered uint64 `json:"delivered"`
	Dropped   uint64 `json:"dropped"`
	Wakes     uint64 `json:"wakes"`
	Queued    int    `json:"queued"`
}

// Stats returns the channel counters.
func (c *Channel) Stats() Stats {
	c.mu.Lock()
	dropped := c.queue.Dropped()
	queued := c.queue.Len()
	c.mu.Unlock()
	return Stats{
		Sent:      c.sent.Load(),
		Delivered: c.delivered.Load(),
		Dropped:   dropped,
		Wakes:     c.wakes.Load(),
		Queued:    queued,
	}
}
