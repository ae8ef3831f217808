package speech

import (
	"context"
	"fmt"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Transcriber turns recorded audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error)
}

// WhisperTranscriber uses the OpenAI transcription endpoint.
type WhisperTranscriber struct {
	client   *openai.Client
	model    string
	language string
}

// NewWhisperTranscriber takes a BCP-47 tag such as "en-US"; only the
// language part is sent.
func NewWhisperTranscriber(client *openai.Client, model, lang string) *WhisperTranscriber {
	language, _, _ := strings.Cut(strings.ToLower(strings.TrimSpace(lang)), "-")
	return &WhisperTranscriber{client: client, model: model, language: language}
}

func (w *WhisperTranscriber) Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error) {
	resp, err := w.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    w.model,
		Reader:   audio,
		FilePath: filename,
		Language: w.language,
	})
	if err != nil {
		return "", fmt.Errorf("transcription: %w", err)
	}
	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", fmt.Errorf("empty transcription")
	}
	return text, nil
}
