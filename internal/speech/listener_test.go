package speech

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"testing/iotest"

	"github.com/rs/zerolog"
)

type recorder struct {
	mu   sync.Mutex
	seen []string
}

func (r *recorder) handle(_ context.Context, transcript string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, transcript)
}

func (r *recorder) transcripts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.seen...)
}

func TestListenerHandlesFinalResults(t *testing.T) {
	src := NewLineSource(strings.NewReader("~check status\ncheck status of ticket 1\n\n   \nhelp\n"))
	rec := &recorder{}
	l := NewListener(src, rec.handle, zerolog.Nop())
	var states []bool
	l.OnStateChange = func(on bool) { states = append(states, on) }

	if err := l.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := l.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	got := rec.transcripts()
	if strings.Join(got, "|") != "check status of ticket 1|help" {
		t.Fatalf("unexpected transcripts %q", got)
	}
	if l.Listening() {
		t.Fatalf("expected listening to drop once the source is exhausted")
	}
	if len(states) != 2 || !states[0] || states[1] {
		t.Fatalf("unexpected state changes %v", states)
	}
}

// scriptedSource serves one stream per batch, then io.EOF.
type scriptedSource struct {
	mu      sync.Mutex
	batches [][]Result
	opens   int
}

func (s *scriptedSource) Open(ctx context.Context) (<-chan Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opens++
	if len(s.batches) == 0 {
		return nil, io.EOF
	}
	batch := s.batches[0]
	s.batches = s.batches[1:]
	out := make(chan Result)
	go func() {
		defer close(out)
		for _, r := range batch {
			if !send(ctx, out, r) {
				return
			}
		}
	}()
	return out, nil
}

func (s *scriptedSource) openCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opens
}

func TestListenerReopensEndedStreams(t *testing.T) {
	src := &scriptedSource{batches: [][]Result{
		{{Transcript: "a", Final: true}},
		{},
		{{Transcript: "b (interim)"}, {Transcript: "b", Final: true}, {Transcript: "c", Final: true}},
	}}
	rec := &recorder{}
	l := NewListener(src, rec.handle, zerolog.Nop())
	var states []bool
	l.OnStateChange = func(on bool) { states = append(states, on) }

	if err := l.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := l.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if n := src.openCount(); n != 4 {
		t.Fatalf("expected three streams plus the exhausted open, got %d opens", n)
	}
	if got := rec.transcripts(); strings.Join(got, "|") != "a|b|c" {
		t.Fatalf("unexpected transcripts %q", got)
	}
	if l.Listening() {
		t.Fatalf("expected listening to drop once the source is exhausted")
	}
	if len(states) != 2 || !states[0] || states[1] {
		t.Fatalf("unexpected state changes %v", states)
	}
}

func TestListenerRecognitionError(t *testing.T) {
	src := NewLineSource(iotest.ErrReader(errors.New("mic unplugged")))
	l := NewListener(src, func(context.Context, string) {}, zerolog.Nop())
	var last *bool
	l.OnStateChange = func(on bool) { last = &on }

	if err := l.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	err := l.Run(context.Background())
	if !errors.Is(err, ErrRecognition) {
		t.Fatalf("expected ErrRecognition, got %v", err)
	}
	if l.Listening() {
		t.Fatalf("expected listening to be reset after an error")
	}
	if last == nil || *last {
		t.Fatalf("expected the state callback to report false")
	}
}

func TestListenerStopFromHandler(t *testing.T) {
	src := NewLineSource(strings.NewReader("one\ntwo\nthree\n"))
	rec := &recorder{}
	var l *Listener
	l = NewListener(src, func(ctx context.Context, transcript string) {
		rec.handle(ctx, transcript)
		l.Stop()
	}, zerolog.Nop())

	if err := l.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := l.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := rec.transcripts(); len(got) != 1 || got[0] != "one" {
		t.Fatalf("expected only the first phrase, got %q", got)
	}
}

func TestListenerWithoutSource(t *testing.T) {
	l := NewListener(nil, func(context.Context, string) {}, zerolog.Nop())
	if err := l.Start(); !errors.Is(err, ErrUnsupportedPlatform) {
		t.Fatalf("expected ErrUnsupportedPlatform, got %v", err)
	}
	on, err := l.Toggle()
	if on || !errors.Is(err, ErrUnsupportedPlatform) {
		t.Fatalf("toggle without source: %v %v", on, err)
	}
	if err := l.Run(context.Background()); !errors.Is(err, ErrUnsupportedPlatform) {
		t.Fatalf("expected ErrUnsupportedPlatform from run, got %v", err)
	}
}

func TestListenerToggle(t *testing.T) {
	l := NewListener(NewLineSource(strings.NewReader("")), func(context.Context, string) {}, zerolog.Nop())
	on, err := l.Toggle()
	if err != nil || !on {
		t.Fatalf("expected toggle on, got %v %v", on, err)
	}
	on, err = l.Toggle()
	if err != nil || on {
		t.Fatalf("expected toggle off, got %v %v", on, err)
	}
}

func TestListenerContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	l := NewListener(NewLineSource(strings.NewReader("help\n")), func(context.Context, string) {}, zerolog.Nop())
	if err := l.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := l.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

type fakeTranscriber struct {
	fail string
}

func (f fakeTranscriber) Transcribe(_ context.Context, filename string, audio io.Reader) (string, error) {
	if filename == f.fail {
		return "", errors.New("unintelligible")
	}
	b, err := io.ReadAll(audio)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func writeAudio(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestListenerFileSource(t *testing.T) {
	dir := t.TempDir()
	a := writeAudio(t, dir, "a.wav", "check ticket 5")
	b := writeAudio(t, dir, "b.wav", "help")

	rec := &recorder{}
	l := NewListener(NewFileSource(fakeTranscriber{}, a, b), rec.handle, zerolog.Nop())
	if err := l.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := l.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := rec.transcripts(); strings.Join(got, "|") != "check ticket 5|help" {
		t.Fatalf("unexpected transcripts %q", got)
	}
}

func TestFileSourceTranscriptionError(t *testing.T) {
	dir := t.TempDir()
	a := writeAudio(t, dir, "bad.wav", "???")

	l := NewListener(NewFileSource(fakeTranscriber{fail: "bad.wav"}, a), func(context.Context, string) {}, zerolog.Nop())
	if err := l.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := l.Run(context.Background()); !errors.Is(err, ErrRecognition) {
		t.Fatalf("expected ErrRecognition, got %v", err)
	}
}

func TestFileSourceWithoutTranscriber(t *testing.T) {
	if _, err := NewFileSource(nil, "a.wav").Open(context.Background()); !errors.Is(err, ErrUnsupportedPlatform) {
		t.Fatalf("expected ErrUnsupportedPlatform, got %v", err)
	}
}

func TestListeningTitle(t *testing.T) {
	if ListeningTitle(true) != "Listening... Click to stop" {
		t.Fatalf("unexpected listening title")
	}
	if ListeningTitle(false) != "Click to speak" {
		t.Fatalf("unexpected idle title")
	}
}
