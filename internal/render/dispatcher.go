package render

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/RenatoCabral2022/mixlab-host/internal/audio"
	"github.com/RenatoCabral2022/mixlab-host/internal/metrics"
	"github.com/RenatoCabral2022/mixlab-host/internal/session"
)

// Processor runs one block through the plugin. *session.Session implements it.
type Processor interface {
	Process(inputs, outputs [][]float32, frames int) error
}

// OutputSink receives the rendered output channels of each block. The slices
// are only valid for the duration of the call.
type OutputSink interface {
	Consume(seq uint64, outputs [][]float32)
}

// Dispatcher turns delivered blocks into plugin process calls. It is not safe
// for concurrent use; it runs on the event-loop goroutine that owns the session.
type Dispatcher struct {
	proc      Processor
	sink      OutputSink
	logger    *zap.Logger
	blockSize int
	outputs   *audio.OutputPool
	inputs    [][]float32
	silence   *audio.Silence

	nextSeq   uint64
	processed uint64
	position  int64
	gaps      uint64
	restores  uint64
}

// New creates a dispatcher for blocks of blockSize frames. sink may be nil.
func New(proc Processor, blockSize int, sink OutputSink, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		proc:      proc,
		sink:      sink,
		logger:    logger.With(zap.String("component", "render")),
		blockSize: blockSize,
		outputs:   audio.NewOutputPool(session.OutputChannels, blockSize),
		inputs:    make([][]float32, session.InputChannels),
		silence:   audio.NewSilence(blockSize),
	}
}

// Render processes one block. A block of the wrong length or a process
// failure is a host defect and panics.
func (d *Dispatcher) Render(b *audio.Block) {
	if b.Frames() != d.blockSize {
		panic(fmt.Sprintf("render: block %d has %d frames, want %d", b.Seq, b.Frames(), d.blockSize))
	}
	if b.Seq != d.nextSeq {
		d.gaps++
		metrics.BlockGapsTotal.Inc()
		d.logger.Warn("block sequence gap",
			zap.Uint64("expected", d.nextSeq),
			zap.Uint64("got", b.Seq),
		)
	}
	d.nextSeq = b.Seq + 1

	for ch := range d.inputs {
		if ch < session.LiveInputs {
			d.inputs[ch] = b.Samples
		} else {
			d.inputs[ch] = d.silence.Samples()
		}
	}

	out := d.outputs.Acquire()
	defer d.outputs.Release(out)

	if err := d.proc.Process(d.inputs, out.Channels, d.blockSize); err != nil {
		panic(fmt.Sprintf("render: process block %d: %v", b.Seq, err))
	}
	if d.silence.Restore() {
		d.restores++
		metrics.SilenceRestoredTotal.Inc()
		if d.restores == 1 {
			d.logger.Warn("plugin wrote to a silent input; re-zeroed",
				zap.Uint64("block", b.Seq),
			)
		} else {
			d.logger.Debug("silent inputs re-zeroed",
				zap.Uint64("block", b.Seq),
				zap.Uint64("restores", d.restores),
			)
		}
	}

	d.processed++
	d.position = b.Start + int64(d.blockSize)
	metrics.BlocksProcessedTotal.Inc()

	if d.sink != nil {
		d.sink.Consume(b.Seq, out.Channels)
	}
}

// Processed returns the number of blocks rendered.
func (d *Dispatcher) Processed() uint64 { return d.processed }

// Position returns the frame offset just past the last rendered block.
func (d *Dispatcher) Position() int64 { return d.position }

// Gaps returns how many sequence discontinuities were observed.
func (d *Dispatcher) Gaps() uint64 { return d.gaps }

// SilenceRestores returns how many process calls left the silent inputs dirty.
func (d *Dispatcher) SilenceRestores() uint64 { return d.restores }
