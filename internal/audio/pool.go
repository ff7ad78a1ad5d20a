package audio

import "sync"

// OutputBuffers holds one block of per-channel output buffers for the
// process call. Used via sync.Pool to avoid per-block allocations in the
// render path.
type OutputBuffers struct {
	Channels [][]float32
}

// Zero clears every channel.
func (b *OutputBuffers) Zero() {
	for _, ch := range b.Channels {
		clear(ch)
	}
}

// OutputPool hands out zeroed output buffers of a fixed shape.
type OutputPool struct {
	channels int
	frames   int
	pool     sync.Pool
}

// NewOutputPool creates a pool of channels x frames buffers.
func NewOutputPool(channels, frames int) *OutputPool {
	p := &OutputPool{channels: channels, frames: frames}
	p.pool.New = func() interface{} {
		b := &OutputBuffers{Channels: make([][]float32, channels)}
		for i := range b.Channels {
			b.Channels[i] = make([]float32, frames)
		}
		return b
	}
	return p
}

// Acquire gets a zeroed set of buffers from the pool.
func (p *OutputPool) Acquire() *OutputBuffers {
	b := p.pool.Get().(*OutputBuffers)
	b.Zero()
	return b
}

// Release returns buffers to the pool. Buffers of the wrong shape are dropped.
func (p *OutputPool) Release(b *OutputBuffers) {
	if b == nil || len(b.Channels) != p.channels {
		return
	}
	for _, ch := range b.Channels {
		if len(ch) != p.frames {
			return
		}
	}
	p.pool.Put(b)
}

// Silence is a zero buffer handed to a processor for its unused inputs.
// Processors must treat it as read-only; Restore puts it back if one did not.
type Silence struct {
	buf []float32
}

// NewSilence allocates a silent buffer of the given length.
func NewSilence(frames int) *Silence {
	return &Silence{buf: make([]float32, frames)}
}

// Samples returns the buffer itself, not a copy.
func (s *Silence) Samples() []float32 { return s.buf }

// Restore zeroes the buffer if anything was written to it and reports
// whether it had to.
func (s *Silence) Restore() bool {
	for _, v := range s.buf {
		if v != 0 {
			clear(s.buf)
			return true
		}
	}
	return false
}
