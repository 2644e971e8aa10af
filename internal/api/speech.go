package api

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/MrWong99/echocoach/pkg/audio"
	"github.com/MrWong99/echocoach/pkg/provider/tts"
)

// multipartOverhead is the allowance for form boundaries and headers on top
// of the audio payload.
const multipartOverhead = 64 << 10

type synthesizeRequest struct {
	Text    string  `json:"text"`
	VoiceID string  `json:"voice_id"`
	Speed   float64 `json:"speed"`
}

type synthesizeResponse struct {
	Audio  string `json:"audio"`
	Format string `json:"format"`
}

// synthesize handles POST /v1/tts/synthesize.
func (s *Server) synthesize(w http.ResponseWriter, r *http.Request) {
	var req synthesizeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		s.fail(w, r, invalid("text is required"))
		return
	}

	clip, err := s.svc.Synthesize(r.Context(), req.Text, tts.Voice{ID: req.VoiceID, Speed: req.Speed})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, synthesizeResponse{
		Audio:  base64.StdEncoding.EncodeToString(clip.Data),
		Format: formatName(clip.ContentType),
	})
}

// voices handles GET /v1/tts/voices.
func (s *Server) voices(w http.ResponseWriter, r *http.Request) {
	voices, err := s.svc.Voices(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if voices == nil {
		voices = []tts.Voice{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"voices": voices})
}

type transcribeResponse struct {
	Transcript string `json:"transcript"`
	Success    bool   `json:"success"`
}

// transcribe handles POST /v1/stt/transcribe. The recording is the
// multipart file field "audio".
func (s *Server) transcribe(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload+multipartOverhead)
	f, hdr, err := r.FormFile("audio")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			s.fail(w, r, fmt.Errorf("%w: upload exceeds %d bytes", audio.ErrRecordingTooLarge, s.maxUpload))
			return
		}
		s.fail(w, r, invalid("audio file is required"))
		return
	}
	defer f.Close()
	if hdr.Size > s.maxUpload {
		s.fail(w, r, fmt.Errorf("%w: upload exceeds %d bytes", audio.ErrRecordingTooLarge, s.maxUpload))
		return
	}

	data, err := io.ReadAll(f)
	if err != nil {
		s.fail(w, r, fmt.Errorf("api: read upload: %w", err))
		return
	}
	clip := uploadedClip(data, hdr.Header.Get("Content-Type"))
	s.log.Debug("transcribing upload", "bytes", len(data), "content_type", clip.ContentType)

	text, err := s.svc.Transcribe(r.Context(), clip)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, transcribeResponse{Transcript: text, Success: true})
}

// uploadedClip wraps an uploaded file. WAV uploads get their sample rate and
// channel count from the header; other formats are left to the transcriber.
func uploadedClip(data []byte, contentType string) audio.Clip {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || mediaType == "" || mediaType == "application/octet-stream" {
		mediaType = sniffAudio(data)
	}
	clip := audio.Clip{Data: data, ContentType: mediaType}
	if mediaType == audio.ContentTypeWAV || mediaType == "audio/x-wav" || mediaType == "audio/wave" {
		clip.ContentType = audio.ContentTypeWAV
		if info, err := audio.ParseWAV(data); err == nil {
			clip.SampleRate, clip.Channels = info.SampleRate, info.Channels
		}
	}
	return clip
}

func sniffAudio(data []byte) string {
	switch ct := http.DetectContentType(data); {
	case strings.HasPrefix(ct, "audio/wave"):
		return audio.ContentTypeWAV
	case ct == "audio/mpeg":
		return audio.ContentTypeMP3
	case ct == "video/webm":
		return audio.ContentTypeWebM
	case ct == "application/ogg":
		return audio.ContentTypeOpus
	default:
		return audio.ContentTypeWebM
	}
}

// formatName returns the short format name clients expect ("mp3", "wav").
func formatName(contentType string) string {
	switch contentType {
	case audio.ContentTypeMP3, "":
		return "mp3"
	case audio.ContentTypeWAV:
		return "wav"
	case audio.ContentTypePCM:
		return "pcm"
	case audio.ContentTypeOpus:
		return "opus"
	default:
		_, sub, _ := strings.Cut(contentType, "/")
		return sub
	}
}
