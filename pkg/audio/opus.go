package audio

import (
	"fmt"

	"layeh.com/gopus"
)

// Browsers encode Opus at 48 kHz.
const (
	OpusSampleRate = 48000
	// opusMaxFrameSize covers the longest Opus frame (120 ms) so packets with
	// a non-default duration still decode.
	opusMaxFrameSize = OpusSampleRate * 120 / 1000
)

// OpusDecoder decodes a single stream of raw Opus packets. Decoder state
// carries across packets, so one decoder must be used per recording.
type OpusDecoder struct {
	dec      *gopus.Decoder
	channels int
}

// NewOpusDecoder returns a decoder for 48 kHz Opus with the given channel
// count (1 or 2).
func NewOpusDecoder(channels int) (*OpusDecoder, error) {
	if channels != 1 && channels != 2 {
		return nil, fmt.Errorf("audio: opus channels must be 1 or 2, got %d", channels)
	}
	dec, err := gopus.NewDecoder(OpusSampleRate, channels)
	if err != nil {
		return nil, fmt.Errorf("audio: create opus decoder: %w", err)
	}
	return &OpusDecoder{dec: dec, channels: channels}, nil
}

// Channels returns the decoder's channel count.
func (d *OpusDecoder) Channels() int { return d.channels }

// Decode decodes one Opus packet into interleaved little-endian PCM.
func (d *OpusDecoder) Decode(packet []byte) ([]byte, error) {
	pcm, err := d.dec.Decode(packet, opusMaxFrameSize, false)
	if err != nil {
		return nil, fmt.Errorf("audio: opus decode: %w", err)
	}
	return encode16(pcm), nil
}
