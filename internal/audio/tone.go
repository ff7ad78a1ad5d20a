package audio

import "math"

const (
	ToneFrequency = 220.0
	ToneAmplitude = 0.5
)

// ToneSample returns sample n of a half-scale sine at frequency Hz.
func ToneSample(n int64, frequency float64, sampleRate int) float32 {
	t := float64(n) / float64(sampleRate)
	return float32(math.Sin(2*math.Pi*frequency*t) * ToneAmplitude)
}

// FillTone writes len(dst) consecutive tone samples starting at absolute frame start.
func FillTone(dst []float32, start int64, frequency float64, sampleRate int) {
	for i := range dst {
		dst[i] = ToneSample(start+int64(i), frequency, sampleRate)
	}
}
