package audio

import (
	"math"
	"testing"
)

func TestToneSample(t *testing.T) {
	if got := ToneSample(0, 220, 44100); got != 0 {
		t.Errorf("sample 0: expected 0, got %v", got)
	}
	// Quarter period of 220 Hz at 44100 Hz is 50.11 frames; peak amplitude is 0.5.
	var peak float32
	for n := int64(0); n < 44100; n++ {
		v := ToneSample(n, 220, 44100)
		if v > peak {
			peak = v
		}
		if v < -ToneAmplitude-1e-6 || v > ToneAmplitude+1e-6 {
			t.Fatalf("sample %d out of range: %v", n, v)
		}
	}
	if math.Abs(float64(peak)-ToneAmplitude) > 1e-3 {
		t.Errorf("expected peak near %v, got %v", ToneAmplitude, peak)
	}
}

func TestFillToneContinuesAcrossBlocks(t *testing.T) {
	whole := make([]float32, 882)
	FillTone(whole, 0, 220, 44100)

	a := make([]float32, 441)
	b := make([]float32, 441)
	FillTone(a, 0, 220, 44100)
	FillTone(b, 441, 220, 44100)

	for i := range a {
		if a[i] != whole[i] || b[i] != whole[441+i] {
			t.Fatalf("frame %d differs between split and whole fill", i)
		}
	}
}

func TestOutputPoolZeroes(t *testing.T) {
	p := NewOutputPool(8, 441)
	b := p.Acquire()
	if len(b.Channels) != 8 {
		t.Fatalf("expected 8 channels, got %d", len(b.Channels))
	}
	for i := range b.Channels {
		if len(b.Channels[i]) != 441 {
			t.Fatalf("channel %d: expected 441 frames, got %d", i, len(b.Channels[i]))
		}
		b.Channels[i][0] = 1
	}
	p.Release(b)

	for round := 0; round < 4; round++ {
		b := p.Acquire()
		for i, ch := range b.Channels {
			for k, v := range ch {
				if v != 0 {
					t.Fatalf("round %d: channel %d frame %d not zeroed", round, i, k)
				}
			}
		}
		b.Channels[3][10] = 0.5
		p.Release(b)
	}
}

func TestSilenceRestore(t *testing.T) {
	s := NewSilence(441)
	if len(s.Samples()) != 441 {
		t.Fatalf("unexpected length %d", len(s.Samples()))
	}
	if s.Restore() {
		t.Error("untouched silence must not need restoring")
	}

	s.Samples()[440] = 0.25
	if !s.Restore() {
		t.Fatal("expected a write to be detected")
	}
	for i, v := range s.Samples() {
		if v != 0 {
			t.Fatalf("frame %d still holds %v", i, v)
		}
	}
	if s.Restore() {
		t.Error("restored silence must stay clean")
	}

	// Separate buffers never alias.
	other := NewSilence(441)
	s.Samples()[0] = 1
	if other.Samples()[0] != 0 {
		t.Error("silence buffers must not be shared between owners")
	}
}
