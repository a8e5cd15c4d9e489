package voice

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"deal_scout/config"
)

const defaultContentType = "audio/mpeg"

// Audio is a synthesized speech stream. Callers must close it.
type Audio struct {
	io.ReadCloser
	ContentType string
}

// Speaker turns text into speech with the given voice model.
type Speaker interface {
	Speak(ctx context.Context, text, voice string) (*Audio, error)
}

// HTTPSpeaker calls a text-to-speech endpoint of the form
// <url>?text=<text>&model=<voice>.
type HTTPSpeaker struct {
	client       *http.Client
	baseURL      string
	defaultVoice string
}

func NewHTTPSpeaker(cfg config.VoiceConfig, client *http.Client) *HTTPSpeaker {
	return &HTTPSpeaker{client: client, baseURL: cfg.TTSURL, defaultVoice: cfg.Voice}
}

func (s *HTTPSpeaker) Speak(ctx context.Context, text, voice string) (*Audio, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("speak: empty text")
	}
	if voice == "" {
		voice = s.defaultVoice
	}

	u, err := url.Parse(s.baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse tts url: %w", err)
	}
	q := u.Query()
	q.Set("text", text)
	q.Set("model", voice)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tts request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("tts status %d", resp.StatusCode)
	}

	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = defaultContentType
	}
	return &Audio{ReadCloser: resp.Body, ContentType: ct}, nil
}

// TranscriptHandler receives one finalized speech-to-text transcript.
type TranscriptHandler func(ctx context.Context, transcript string)

// Dispatch trims each transcript and forwards the non-empty ones to query.
func Dispatch(query func(ctx context.Context, text string)) TranscriptHandler {
	return func(ctx context.Context, transcript string) {
		text := strings.TrimSpace(transcript)
		if text == "" {
			return
		}
		query(ctx, text)
	}
}

// ReadTranscripts treats every line of r as a final transcript.
func ReadTranscripts(ctx context.Context, r io.Reader, h TranscriptHandler) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		h(ctx, scanner.Text())
	}
	return scanner.Err()
}
