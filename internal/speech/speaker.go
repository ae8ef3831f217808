package speech

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
)

// Speaker voices one utterance. Utterances are not queued beyond what the
// implementation does on its own.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

// TextSpeaker writes each utterance as a line, for terminals and logs.
type TextSpeaker struct {
	mu     sync.Mutex
	w      io.Writer
	prefix string
}

func NewTextSpeaker(w io.Writer, prefix string) *TextSpeaker {
	return &TextSpeaker{w: w, prefix: prefix}
}

func (t *TextSpeaker) Speak(_ context.Context, text string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, err := fmt.Fprintf(t.w, "%s%s\n", t.prefix, text)
	return err
}

// AudioSpeaker synthesizes each utterance into a numbered mp3 file in dir.
type AudioSpeaker struct {
	synth  Synthesizer
	dir    string
	logger zerolog.Logger

	mu sync.Mutex
	n  int
}

func NewAudioSpeaker(synth Synthesizer, dir string, logger zerolog.Logger) *AudioSpeaker {
	return &AudioSpeaker{synth: synth, dir: dir, logger: logger}
}

func (a *AudioSpeaker) Speak(ctx context.Context, text string) error {
	audio, _, err := a.synth.Synthesize(ctx, text)
	if err != nil {
		return err
	}
	defer audio.Close()

	a.mu.Lock()
	a.n++
	name := filepath.Join(a.dir, fmt.Sprintf("reply-%03d.mp3", a.n))
	a.mu.Unlock()

	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return err
	}
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, audio); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	a.logger.Debug().Str("file", name).Msg("utterance synthesized")
	return nil
}

// SpeakAll voices utterances in order and stops at the first failure.
func SpeakAll(ctx context.Context, sp Speaker, utterances []string) error {
	for _, u := range utterances {
		if err := sp.Speak(ctx, u); err != nil {
			return err
		}
	}
	return nil
}
