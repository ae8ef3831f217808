package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Handler receives finalized transcripts, one at a time.
type Handler func(ctx context.Context, transcript string)

// Listener owns the listening flag. While the flag is set it keeps a
// recognition stream open, re-opening it whenever the stream ends.
type Listener struct {
	source  Source
	handler Handler
	logger  zerolog.Logger

	mu        sync.Mutex
	listening bool
	// OnStateChange is called after every flag change, e.g. to refresh a UI.
	OnStateChange func(listening bool)
}

func NewListener(source Source, handler Handler, logger zerolog.Logger) *Listener {
	return &Listener{source: source, handler: handler, logger: logger}
}

func (l *Listener) Listening() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.listening
}

func (l *Listener) setListening(v bool) {
	l.mu.Lock()
	changed := l.listening != v
	l.listening = v
	cb := l.OnStateChange
	l.mu.Unlock()
	if changed && cb != nil {
		cb(v)
	}
}

// Start raises the listening flag. Without a source the feature stays off.
func (l *Listener) Start() error {
	if l.source == nil {
		l.logger.Warn().Msg("speech recognition not initialized")
		return ErrUnsupportedPlatform
	}
	l.setListening(true)
	l.logger.Info().Msg("voice recognition started")
	return nil
}

func (l *Listener) Stop() {
	if l.source == nil {
		return
	}
	l.setListening(false)
	l.logger.Info().Msg("voice recognition stopped")
}

// Toggle flips the flag and returns the new state.
func (l *Listener) Toggle() (bool, error) {
	if l.Listening() {
		l.Stop()
		return false, nil
	}
	if err := l.Start(); err != nil {
		return false, err
	}
	return true, nil
}

// Run processes streams until the flag drops, the source runs dry or ctx is
// done. A recognition error lowers the flag and is returned.
func (l *Listener) Run(ctx context.Context) error {
	if l.source == nil {
		return ErrUnsupportedPlatform
	}
	for l.Listening() {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := l.stream(ctx)
		switch {
		case errors.Is(err, io.EOF):
			l.setListening(false)
			return nil
		case err != nil:
			l.logger.Error().Err(err).Msg("speech recognition error")
			l.setListening(false)
			return err
		}
		if l.Listening() {
			l.logger.Debug().Msg("recognition stream ended, restarting")
		}
	}
	return nil
}

func (l *Listener) stream(ctx context.Context) error {
	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	results, err := l.source.Open(streamCtx)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, ErrUnsupportedPlatform) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrRecognition, err)
	}
	for r := range results {
		if r.Err != nil {
			return r.Err
		}
		if !r.Final {
			continue
		}
		transcript := strings.TrimSpace(r.Transcript)
		if transcript == "" {
			continue
		}
		l.handler(ctx, transcript)
		if !l.Listening() {
			return nil
		}
	}
	return ctx.Err()
}

// ListeningTitle is the hint shown on the microphone toggle.
func ListeningTitle(listening bool) string {
	if listening {
		return "Listening... Click to stop"
	}
	return "Click to speak"
}
