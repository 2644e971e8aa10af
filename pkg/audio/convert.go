package audio

import (
	"encoding/binary"
	"math"
	"time"
)

// PCM here is always signed 16-bit little-endian, interleaved by frame when
// there is more than one channel.

func decode16(pcm []byte) []int16 {
	s := make([]int16, len(pcm)/2)
	for i := range s {
		s[i] = int16(binary.LittleEndian.Uint16(pcm[2*i:]))
	}
	return s
}

func encode16(s []int16) []byte {
	pcm := make([]byte, 2*len(s))
	for i, v := range s {
		binary.LittleEndian.PutUint16(pcm[2*i:], uint16(v))
	}
	return pcm
}

// Downmix averages the channels of every frame into one mono sample. Mono
// input is returned as is.
func Downmix(pcm []byte, channels int) []byte {
	if channels <= 1 {
		return pcm
	}
	in := decode16(pcm)
	out := make([]int16, len(in)/channels)
	for f := range out {
		var sum int32
		for _, v := range in[f*channels : (f+1)*channels] {
			sum += int32(v)
		}
		out[f] = int16(sum / int32(channels))
	}
	return encode16(out)
}

// Resample converts mono PCM from one sample rate to another by linear
// interpolation. Equal rates return pcm unchanged.
func Resample(pcm []byte, from, to int) []byte {
	if from <= 0 || to <= 0 || from == to || len(pcm) < 2 {
		return pcm
	}
	in := decode16(pcm)
	n := int(int64(len(in)) * int64(to) / int64(from))
	if n == 0 {
		return nil
	}

	out := make([]int16, n)
	step := float64(from) / float64(to)
	last := len(in) - 1
	for i := range out {
		pos := float64(i) * step
		j := int(pos)
		next := min(j+1, last)
		frac := pos - float64(j)
		out[i] = int16(float64(in[j]) + (float64(in[next])-float64(in[j]))*frac)
	}
	return encode16(out)
}

// ToMono16k converts PCM of any rate and channel count to 16 kHz mono, the
// input every speech-to-text backend accepts.
func ToMono16k(pcm []byte, sampleRate, channels int) []byte {
	return Resample(Downmix(pcm, channels), sampleRate, SpeechSampleRate)
}

// Float32 converts mono PCM to float samples in [-1, 1).
func Float32(pcm []byte) []float32 {
	in := decode16(pcm)
	out := make([]float32, len(in))
	for i, v := range in {
		out[i] = float32(v) / 32768
	}
	return out
}

// RMS is the root-mean-square level of pcm in sample units (0 to 32767).
func RMS(pcm []byte) float64 {
	in := decode16(pcm)
	if len(in) == 0 {
		return 0
	}
	var sum float64
	for _, v := range in {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum / float64(len(in)))
}

// PCMDuration is the playback length of pcm.
func PCMDuration(pcm []byte, sampleRate, channels int) time.Duration {
	if sampleRate <= 0 || channels <= 0 {
		return 0
	}
	return time.Duration(len(pcm)) * time.Second / time.Duration(2*sampleRate*channels)
}
