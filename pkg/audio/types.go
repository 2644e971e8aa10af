// Package audio holds the clip type shared by the speech providers and the
// coaching orchestrator, plus the PCM, WAV and Opus helpers needed to turn a
// browser recording into something a transcriber accepts.
package audio

import "time"

// SpeechSampleRate is the rate every transcriber is fed (16 kHz mono).
const SpeechSampleRate = 16000

// Content types produced and accepted by the providers.
const (
	ContentTypeMP3  = "audio/mpeg"
	ContentTypeWAV  = "audio/wav"
	ContentTypePCM  = "audio/pcm"
	ContentTypeOpus = "audio/opus"
	ContentTypeWebM = "audio/webm"
)

// Clip is one complete, encoded piece of audio: a synthesised question, a
// model-answer sentence, or a finished user recording.
type Clip struct {
	// ID identifies the clip for playback bookkeeping. Clips produced by a
	// provider carry an empty ID until the player assigns one.
	ID string

	// Data is the encoded payload (MP3, WAV, raw PCM, ...).
	Data []byte

	// ContentType describes Data, e.g. [ContentTypeMP3].
	ContentType string

	// SampleRate and Channels are set for PCM and WAV clips. They are zero for
	// compressed formats where the decoder determines them.
	SampleRate int
	Channels   int
}

// Empty reports whether the clip carries no audio payload.
func (c Clip) Empty() bool { return len(c.Data) == 0 }

// PCM returns the raw sample data for PCM and WAV clips. ok is false for
// compressed formats.
func (c Clip) PCM() (pcm []byte, sampleRate, channels int, ok bool) {
	switch c.ContentType {
	case ContentTypePCM:
		return c.Data, c.SampleRate, c.Channels, true
	case ContentTypeWAV:
		info, err := ParseWAV(c.Data)
		if err != nil {
			return nil, 0, 0, false
		}
		return info.PCM, info.SampleRate, info.Channels, true
	default:
		return nil, 0, 0, false
	}
}

// Duration returns the playback length for PCM and WAV clips, or 0 when the
// format does not allow a cheap computation.
func (c Clip) Duration() time.Duration {
	pcm, rate, ch, ok := c.PCM()
	if !ok {
		return 0
	}
	return PCMDuration(pcm, rate, ch)
}

// SilenceThreshold is the RMS level (in int16 sample units) below which a
// recording counts as silent.
const SilenceThreshold = 100.0

// IsSilent reports whether the clip holds no audible speech. Compressed
// clips are only considered silent when empty.
func (c Clip) IsSilent() bool {
	if c.Empty() {
		return true
	}
	pcm, _, _, ok := c.PCM()
	if !ok {
		return false
	}
	return RMS(pcm) < SilenceThreshold
}
