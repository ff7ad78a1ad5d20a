package render

import (
	"math"
	"strconv"
	"sync"

	goaudio "github.com/go-audio/audio"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/RenatoCabral2022/mixlab-host/internal/metrics"
)

// Meter is an OutputSink that tracks per-channel peaks of the last rendered
// block and keeps an interleaved copy of it.
type Meter struct {
	gauges []prometheus.Gauge

	mu     sync.RWMutex
	peaks  []float32
	last   *goaudio.Float32Buffer
	blocks uint64
}

// NewMeter creates a meter for the given channel count.
func NewMeter(channels, sampleRate int) *Meter {
	m := &Meter{
		gauges: make([]prometheus.Gauge, channels),
		peaks:  make([]float32, channels),
		last: &goaudio.Float32Buffer{
			Format: &goaudio.Format{NumChannels: channels, SampleRate: sampleRate},
		},
	}
	for ch := range m.gauges {
		m.gauges[ch] = metrics.OutputPeak.WithLabelValues(strconv.Itoa(ch))
	}
	return m
}

// Consume implements OutputSink.
func (m *Meter) Consume(_ uint64, outputs [][]float32) {
	if len(outputs) == 0 {
		return
	}
	channels := len(m.peaks)
	frames := len(outputs[0])

	m.mu.Lock()
	defer m.mu.Unlock()

	if cap(m.last.Data) < frames*channels {
		m.last.Data = make([]float32, frames*channels)
	}
	m.last.Data = m.last.Data[:frames*channels]
	clear(m.last.Data)

	for ch := 0; ch < channels && ch < len(outputs); ch++ {
		var peak float32
		for i, v := range outputs[ch] {
			m.last.Data[i*channels+ch] = v
			if a := float32(math.Abs(float64(v))); a > peak {
				peak = a
			}
		}
		m.peaks[ch] = peak
		m.gauges[ch].Set(float64(peak))
	}
	m.blocks++
}

// Peaks returns the per-channel absolute peaks of the last block.
func (m *Meter) Peaks() []float32 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]float32(nil), m.peaks...)
}

// Blocks returns how many blocks the meter has seen.
func (m *Meter) Blocks() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.blocks
}

// Snapshot returns an interleaved copy of the last block.
func (m *Meter) Snapshot() *goaudio.Float32Buffer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	format := *m.last.Format
	return &goaudio.Float32Buffer{
		Format: &format,
		Data:   append([]float32(nil), m.last.Data...),
	}
}
