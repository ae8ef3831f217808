package speech

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var (
	// ErrUnsupportedPlatform means no recognition source is available.
	ErrUnsupportedPlatform = errors.New("speech recognition not supported")
	// ErrRecognition wraps failures of a running recognition stream.
	ErrRecognition = errors.New("speech recognition error")
)

// Result is one recognition hypothesis. Only final results are acted upon.
type Result struct {
	Transcript string
	Final      bool
	Err        error
}

// Source produces recognition streams. Each Open starts a stream whose
// channel is closed when the stream ends. Open returns io.EOF once the
// source has no more input to offer.
type Source interface {
	Open(ctx context.Context) (<-chan Result, error)
}

func send(ctx context.Context, ch chan<- Result, r Result) bool {
	select {
	case ch <- r:
		return true
	case <-ctx.Done():
		return false
	}
}

// LineSource treats every line of a reader as a spoken phrase. Lines starting
// with "~" are interim hypotheses. The reader is consumed by a single stream.
type LineSource struct {
	mu      sync.Mutex
	scanner *bufio.Scanner
	done    bool
}

func NewLineSource(r io.Reader) *LineSource {
	return &LineSource{scanner: bufio.NewScanner(r)}
}

func (s *LineSource) Open(ctx context.Context) (<-chan Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return nil, io.EOF
	}
	s.done = true
	out := make(chan Result)
	go func() {
		defer close(out)
		for s.scanner.Scan() {
			line := strings.TrimSpace(s.scanner.Text())
			if line == "" {
				continue
			}
			r := Result{Transcript: line, Final: true}
			if strings.HasPrefix(line, "~") {
				r = Result{Transcript: strings.TrimSpace(line[1:])}
			}
			if !send(ctx, out, r) {
				return
			}
		}
		if err := s.scanner.Err(); err != nil {
			send(ctx, out, Result{Err: fmt.Errorf("%w: %w", ErrRecognition, err)})
		}
	}()
	return out, nil
}

// FileSource transcribes recorded audio files, one final result per file.
// Each stream covers the files not yet transcribed.
type FileSource struct {
	mu          sync.Mutex
	paths       []string
	transcriber Transcriber
}

func NewFileSource(t Transcriber, paths ...string) *FileSource {
	return &FileSource{paths: append([]string(nil), paths...), transcriber: t}
}

func (s *FileSource) next() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.paths) == 0 {
		return "", false
	}
	p := s.paths[0]
	s.paths = s.paths[1:]
	return p, true
}

func (s *FileSource) Open(ctx context.Context) (<-chan Result, error) {
	if s.transcriber == nil {
		return nil, ErrUnsupportedPlatform
	}
	s.mu.Lock()
	remaining := len(s.paths)
	s.mu.Unlock()
	if remaining == 0 {
		return nil, io.EOF
	}
	out := make(chan Result)
	go func() {
		defer close(out)
		for {
			path, ok := s.next()
			if !ok {
				return
			}
			text, err := s.transcribeFile(ctx, path)
			if err != nil {
				send(ctx, out, Result{Err: fmt.Errorf("%w: %s: %w", ErrRecognition, path, err)})
				return
			}
			if !send(ctx, out, Result{Transcript: text, Final: true}) {
				return
			}
		}
	}()
	return out, nil
}

func (s *FileSource) transcribeFile(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return s.transcriber.Transcribe(ctx, filepath.Base(path), f)
}
