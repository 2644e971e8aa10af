package audio

import (
	"errors"
	"fmt"
	"sync"
)

// Frame encodings accepted by a [Recorder].
const (
	EncodingPCM16 = "pcm16"
	EncodingOpus  = "opus"
)

// ErrRecordingTooLarge is returned by [Recorder.Write] once the recording
// exceeds its byte cap.
var ErrRecordingTooLarge = errors.New("audio: recording too large")

// RecorderFormat describes the frames a client will stream.
type RecorderFormat struct {
	// Encoding is EncodingPCM16 or EncodingOpus.
	Encoding string
	// SampleRate of PCM16 frames. Opus is always 48 kHz.
	SampleRate int
	// Channels is 1 or 2.
	Channels int
}

// Recorder accumulates the frames of one user answer and produces a 16 kHz
// mono WAV clip when the answer is finished. It is safe for concurrent use.
type Recorder struct {
	mu       sync.Mutex
	format   RecorderFormat
	dec      *OpusDecoder
	pcm      []byte
	maxBytes int
}

// NewRecorder validates f and returns an empty recorder. maxBytes caps the
// decoded PCM size; 0 disables the cap.
func NewRecorder(f RecorderFormat, maxBytes int) (*Recorder, error) {
	if f.Channels == 0 {
		f.Channels = 1
	}
	if f.Channels != 1 && f.Channels != 2 {
		return nil, fmt.Errorf("audio: recorder channels must be 1 or 2, got %d", f.Channels)
	}
	r := &Recorder{format: f, maxBytes: maxBytes}
	switch f.Encoding {
	case EncodingOpus:
		dec, err := NewOpusDecoder(f.Channels)
		if err != nil {
			return nil, err
		}
		r.dec = dec
		r.format.SampleRate = OpusSampleRate
	case EncodingPCM16, "":
		r.format.Encoding = EncodingPCM16
		if f.SampleRate <= 0 {
			return nil, fmt.Errorf("audio: pcm16 recorder needs a sample rate")
		}
	default:
		return nil, fmt.Errorf("audio: unknown recorder encoding %q", f.Encoding)
	}
	return r, nil
}

// Write appends one frame. Opus frames are decoded immediately so decoder
// state stays in packet order.
func (r *Recorder) Write(frame []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data := frame
	if r.dec != nil {
		pcm, err := r.dec.Decode(frame)
		if err != nil {
			return err
		}
		data = pcm
	}
	if r.maxBytes > 0 && len(r.pcm)+len(data) > r.maxBytes {
		return ErrRecordingTooLarge
	}
	r.pcm = append(r.pcm, data...)
	return nil
}

// Len returns the number of buffered PCM bytes.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pcm)
}

// Finish converts everything written so far into a 16 kHz mono WAV clip and
// resets the buffer. An empty recording yields an empty clip.
func (r *Recorder) Finish() Clip {
	r.mu.Lock()
	pcm := r.pcm
	r.pcm = nil
	r.mu.Unlock()

	if len(pcm) == 0 {
		return Clip{ContentType: ContentTypeWAV, SampleRate: SpeechSampleRate, Channels: 1}
	}
	mono := ToMono16k(pcm, r.format.SampleRate, r.format.Channels)
	return Clip{
		Data:        EncodeWAV(mono, SpeechSampleRate, 1),
		ContentType: ContentTypeWAV,
		SampleRate:  SpeechSampleRate,
		Channels:    1,
	}
}
