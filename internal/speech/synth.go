package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Synthesizer renders text as audio. The caller closes the returned reader.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (audio io.ReadCloser, contentType string, err error)
}

const elevenLabsAPI = "https://api.elevenlabs.io/v1"

// ElevenLabsSynthesizer streams speech from the ElevenLabs API.
type ElevenLabsSynthesizer struct {
	APIKey  string
	VoiceID string
	Model   string
	BaseURL string
	Client  *http.Client
}

func NewElevenLabsSynthesizer(apiKey, voiceID, model string) *ElevenLabsSynthesizer {
	return &ElevenLabsSynthesizer{
		APIKey:  apiKey,
		VoiceID: voiceID,
		Model:   model,
		BaseURL: elevenLabsAPI,
		Client:  &http.Client{Timeout: 60 * time.Second},
	}
}

func (e *ElevenLabsSynthesizer) Synthesize(ctx context.Context, text string) (io.ReadCloser, string, error) {
	return e.SynthesizeVoice(ctx, text, "")
}

// SynthesizeVoice uses voiceID when set, else the configured voice.
func (e *ElevenLabsSynthesizer) SynthesizeVoice(ctx context.Context, text, voiceID string) (io.ReadCloser, string, error) {
	if e.APIKey == "" {
		return nil, "", fmt.Errorf("elevenlabs not configured")
	}
	if strings.TrimSpace(voiceID) == "" {
		voiceID = e.VoiceID
	}
	if strings.TrimSpace(voiceID) == "" {
		return nil, "", fmt.Errorf("no elevenlabs voice configured or provided")
	}
	payload := map[string]any{
		"text":     text,
		"model_id": e.Model,
		"voice_settings": map[string]any{
			"stability":         0.5,
			"similarity_boost":  0.7,
			"style":             0.2,
			"use_speaker_boost": true,
		},
		"optimize_streaming_latency": 4,
		"output_format":              "mp3_44100_128",
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, "", err
	}
	url := fmt.Sprintf("%s/text-to-speech/%s/stream", e.BaseURL, voiceID)
	resp, err := e.do(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, "", err
	}
	return resp.Body, "audio/mpeg", nil
}

// Voices returns the raw JSON voice listing.
func (e *ElevenLabsSynthesizer) Voices(ctx context.Context) (io.ReadCloser, error) {
	if e.APIKey == "" {
		return nil, fmt.Errorf("elevenlabs not configured")
	}
	resp, err := e.do(ctx, http.MethodGet, e.BaseURL+"/voices", nil)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (e *ElevenLabsSynthesizer) do(ctx context.Context, method, url string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("xi-api-key", e.APIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := e.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs request: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		bb, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("elevenlabs error: status %d: %s", resp.StatusCode, strings.TrimSpace(string(bb)))
	}
	return resp, nil
}

// OpenAISynthesizer uses the OpenAI speech endpoint.
type OpenAISynthesizer struct {
	client *openai.Client
	model  string
	voice  string
}

func NewOpenAISynthesizer(client *openai.Client, model, voice string) *OpenAISynthesizer {
	return &OpenAISynthesizer{client: client, model: model, voice: voice}
}

func (o *OpenAISynthesizer) Synthesize(ctx context.Context, text string) (io.ReadCloser, string, error) {
	resp, err := o.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(o.model),
		Input:          text,
		Voice:          openai.SpeechVoice(o.voice),
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return nil, "", fmt.Errorf("openai speech: %w", err)
	}
	return resp, "audio/mpeg", nil
}
