package audio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/RenatoCabral2022/mixlab-host/internal/metrics"
)

// Generator lifecycle states.
const (
	StateIdle     = "idle"
	StateRunning  = "running"
	StateStopped  = "stopped"
	StateFinished = "finished"
	StateError    = "error"
)

// slipLogInterval rate-limits timing slip warnings.
const slipLogInterval = time.Second

// GeneratorConfig fixes the signal and cadence.
type GeneratorConfig struct {
	SampleRate int
	BlockSize  int
	Frequency  float64
	// MaxBlocks ends the run after this many blocks; 0 runs until stopped.
	MaxBlocks uint64
}

// Status is a snapshot of generator progress.
type Status struct {
	State     string        `json:"state"`
	Blocks    uint64        `json:"blocks"`
	Frames    int64         `json:"frames"`
	Slips     uint64        `json:"slips"`
	MaxSlip   time.Duration `json:"maxSlipNs"`
	LastError string        `json:"lastError,omitempty"`
}

// Generator synthesizes the test tone one block at a time and hands each block
// to a sink at wall-clock cadence. Block k is handed off no earlier than
// start + k*BlockSize/SampleRate; deadlines are derived from the start instant
// and the absolute frame count so scheduling jitter never accumulates.
type Generator struct {
	cfg    GeneratorConfig
	sink   BlockSink
	logger *zap.Logger
	now    func() time.Time

	mu        sync.Mutex
	state     string
	lastError string
	cancel    context.CancelFunc

	blocks  atomic.Uint64
	frames  atomic.Int64
	slips   atomic.Uint64
	maxSlip atomic.Int64
}

// NewGenerator creates a generator writing to sink.
func NewGenerator(cfg GeneratorConfig, sink BlockSink, logger *zap.Logger) (*Generator, error) {
	if cfg.SampleRate <= 0 || cfg.BlockSize <= 0 {
		return nil, fmt.Errorf("invalid generator config: rate %d, block %d", cfg.SampleRate, cfg.BlockSize)
	}
	if cfg.Frequency <= 0 {
		cfg.Frequency = ToneFrequency
	}
	return &Generator{
		cfg:    cfg,
		sink:   sink,
		logger: logger.With(zap.String("component", "generator")),
		now:    time.Now,
		state:  StateIdle,
	}, nil
}

// Deadline returns the offset from the start instant at which the block
// beginning at frame t may be handed off, rounded up to the nanosecond.
func Deadline(t int64, sampleRate int) time.Duration {
	sr := int64(sampleRate)
	secs, rem := t/sr, t%sr
	return time.Duration(secs)*time.Second + time.Duration((rem*int64(time.Second)+sr-1)/sr)
}

// Run produces blocks until ctx is cancelled, Stop is called, the sink
// reports it is closed, or MaxBlocks have been sent. It returns nil on those
// ordinary exits.
func (g *Generator) Run(ctx context.Context) error {
	g.mu.Lock()
	if g.state == StateRunning {
		g.mu.Unlock()
		return errors.New("generator already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	g.cancel = cancel
	g.state = StateRunning
	g.lastError = ""
	g.mu.Unlock()
	defer cancel()

	g.logger.Info("generator started",
		zap.Int("sampleRate", g.cfg.SampleRate),
		zap.Int("blockSize", g.cfg.BlockSize),
		zap.Float64("frequency", g.cfg.Frequency),
	)

	finished, err := g.loop(runCtx)

	g.mu.Lock()
	defer g.mu.Unlock()
	if err != nil {
		g.state = StateError
		g.lastError = err.Error()
		g.logger.Warn("generator failed", zap.Error(err))
		return err
	}
	g.state = StateStopped
	if finished {
		g.state = StateFinished
	}
	g.logger.Info("generator stopped",
		zap.Uint64("blocks", g.blocks.Load()),
		zap.Uint64("slips", g.slips.Load()),
	)
	return nil
}

func (g *Generator) loop(ctx context.Context) (finished bool, err error) {
	start := g.now()
	var t int64
	var lastSlipLog time.Time

	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for seq := uint64(0); ; seq++ {
		if ctx.Err() != nil {
			return false, nil
		}

		block := &Block{Seq: seq, Start: t, Samples: make([]float32, g.cfg.BlockSize)}
		FillTone(block.Samples, t, g.cfg.Frequency, g.cfg.SampleRate)

		if err := g.sink.Send(ctx, block); err != nil {
			if errors.Is(err, ErrSinkClosed) {
				g.logger.Info("block sink closed, generator exiting")
				return false, nil
			}
			if ctx.Err() != nil {
				return false, nil
			}
			return false, fmt.Errorf("send block %d: %w", seq, err)
		}
		g.blocks.Add(1)
		metrics.BlocksGeneratedTotal.Inc()

		t += int64(g.cfg.BlockSize)
		g.frames.Store(t)
		if g.cfg.MaxBlocks > 0 && seq+1 >= g.cfg.MaxBlocks {
			return true, nil
		}

		deadline := start.Add(Deadline(t, g.cfg.SampleRate))
		now := g.now()
		if wait := deadline.Sub(now); wait > 0 {
			timer.Reset(wait)
			select {
			case <-timer.C:
			case <-ctx.Done():
				return false, nil
			}
			continue
		}

		// Behind schedule: proceed immediately; the next deadline is still
		// computed from start, so the generator catches up.
		late := now.Sub(deadline)
		if late > 0 {
			g.slips.Add(1)
			if int64(late) > g.maxSlip.Load() {
				g.maxSlip.Store(int64(late))
			}
			metrics.TimingSlipsTotal.Inc()
			metrics.TimingSlipMs.Observe(float64(late.Microseconds()) / 1000.0)
			if now.Sub(lastSlipLog) >= slipLogInterval {
				lastSlipLog = now
				g.logger.Warn("generator behind deadline",
					zap.Uint64("block", seq+1),
					zap.Duration("late", late),
					zap.Uint64("slips", g.slips.Load()),
				)
			}
		}
	}
}

// Stop ends a running generator. Idempotent.
func (g *Generator) Stop() {
	g.mu.Lock()
	cancel := g.cancel
	g.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Status returns a snapshot of generator progress.
func (g *Generator) Status() Status {
	g.mu.Lock()
	state := g.state
	lastErr := g.lastError
	g.mu.Unlock()

	return Status{
		State:     state,
		Blocks:    g.blocks.Load(),
		Frames:    g.frames.Load(),
		Slips:     g.slips.Load(),
		MaxSlip:   time.Duration(g.maxSlip.Load()),
		LastError: lastErr,
	}
}
