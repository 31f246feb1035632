package alert

import (
	"encoding/binary"
	"math"
	"time"
)

const (
	sampleRate   = 44100
	fadeDuration = 10 * time.Millisecond
)

// synthTone renders a sine wave as 16-bit mono PCM with a short fade-out so
// the beep ends without a click. Amplitude is in [0,1].
func synthTone(frequency float64, duration time.Duration, amplitude float64) []int16 {
	if amplitude < 0 {
		amplitude = 0
	}
	if amplitude > 1 {
		amplitude = 1
	}

	total := int(float64(sampleRate) * duration.Seconds())
	samples := make([]int16, total)
	step := 2 * math.Pi * frequency / sampleRate
	for i := range samples {
		samples[i] = int16(amplitude * math.Sin(step*float64(i)) * math.MaxInt16)
	}

	fade := int(float64(sampleRate) * fadeDuration.Seconds())
	if fade > total {
		fade = total
	}
	for i := 0; i < fade; i++ {
		scale := float64(fade-1-i) / float64(fade)
		index := total - fade + i
		samples[index] = int16(float64(samples[index]) * scale)
	}
	return samples
}

// wavBytes wraps PCM samples in a minimal RIFF/WAVE container so any system
// player can consume them.
func wavBytes(samples []int16) []byte {
	dataSize := len(samples) * 2
	out := make([]byte, 0, 44+dataSize)

	le := binary.LittleEndian
	header := make([]byte, 44)
	copy(header[0:4], "RIFF")
	le.PutUint32(header[4:8], uint32(36+dataSize))
	copy(header[8:12], "WAVE")
	copy(header[12:16], "fmt ")
	le.PutUint32(header[16:20], 16)         // PCM chunk size
	le.PutUint16(header[20:22], 1)          // PCM format
	le.PutUint16(header[22:24], 1)          // mono
	le.PutUint32(header[24:28], sampleRate)
	le.PutUint32(header[28:32], sampleRate*2) // byte rate
	le.PutUint16(header[32:34], 2)            // block align
	le.PutUint16(header[34:36], 16)           // bits per sample
	copy(header[36:40], "data")
	le.PutUint32(header[40:44], uint32(dataSize))

	out = append(out, header...)
	for _, sample := range samples {
		out = append(out, byte(sample), byte(sample>>8))
	}
	return out
}
