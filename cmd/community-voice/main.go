// Command community-voice runs the voice assistant in a terminal. Each line
// on stdin is treated as a finalized transcript, or recorded audio files are
// transcribed with Whisper; replies are printed or synthesized to mp3 files.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"github.com/spf13/pflag"

	"community-voice/internal/assistant"
	"community-voice/internal/community"
	"community-voice/internal/config"
	"community-voice/internal/speech"
	"community-voice/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "community-voice:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()

	var (
		apiURL   = pflag.String("api-url", cfg.CommunityAPIURL, "ticketing and events service base URL")
		timeout  = pflag.Duration("timeout", cfg.CommunityAPITimeout, "per-request timeout for the service (0 disables)")
		audio    = pflag.StringSlice("audio", nil, "audio files to transcribe instead of reading transcripts from stdin")
		speakTo  = pflag.String("speak-to", "", "directory to write synthesized replies to instead of printing them")
		helpFile = pflag.String("help-file", cfg.HelpFile, "YAML file replacing the built-in help script")
		logLevel = pflag.String("log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	)
	pflag.Parse()
	cfg.CommunityAPIURL = *apiURL
	cfg.CommunityAPITimeout = *timeout

	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		return fmt.Errorf("invalid --log-level %q", *logLevel)
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(level).With().Timestamp().Str("service", "community-voice").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := community.NewClientFromConfig(ctx, cfg, store.NewFileTokenStore(cfg.CommunityTokenFile), logger)

	var opts []assistant.Option
	if *helpFile != "" {
		help, err := assistant.LoadHelp(*helpFile)
		if err != nil {
			return err
		}
		opts = append(opts, assistant.WithHelp(help))
	}
	interp := assistant.New(client, logger, opts...)

	var oa *openai.Client
	if cfg.OpenAIAPIKey != "" {
		oa = openai.NewClient(cfg.OpenAIAPIKey)
	}

	var source speech.Source
	switch {
	case len(*audio) == 0:
		source = speech.NewLineSource(os.Stdin)
	case oa != nil:
		source = speech.NewFileSource(speech.NewWhisperTranscriber(oa, cfg.STTModel, cfg.SpeechLang), *audio...)
	}

	var speaker speech.Speaker = speech.NewTextSpeaker(os.Stdout, "assistant: ")
	if *speakTo != "" {
		synth, err := synthesizer(cfg, oa)
		if err != nil {
			return err
		}
		speaker = speech.NewAudioSpeaker(synth, *speakTo, logger)
	}

	handler := func(ctx context.Context, transcript string) {
		reply, err := interp.Interpret(ctx, transcript)
		if serr := speech.SpeakAll(ctx, speaker, reply.Utterances); serr != nil {
			logger.Error().Err(serr).Msg("speaking reply")
		}
		if err != nil {
			logger.Error().Err(err).Str("transcript", transcript).Msg("voice command failed")
		}
	}

	listener := speech.NewListener(source, handler, logger)
	listener.OnStateChange = func(listening bool) {
		logger.Debug().Bool("listening", listening).Msg(speech.ListeningTitle(listening))
	}
	if err := listener.Start(); err != nil {
		if errors.Is(err, speech.ErrUnsupportedPlatform) {
			return fmt.Errorf("%w: set OPENAI_API_KEY to transcribe audio files", err)
		}
		return err
	}
	err = listener.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func synthesizer(cfg config.Config, oa *openai.Client) (speech.Synthesizer, error) {
	switch {
	case cfg.TTSProvider == "openai" && oa != nil:
		return speech.NewOpenAISynthesizer(oa, cfg.TTSModel, cfg.TTSVoice), nil
	case cfg.ElevenAPIKey != "":
		return speech.NewElevenLabsSynthesizer(cfg.ElevenAPIKey, cfg.ElevenVoiceID, cfg.ElevenModel), nil
	default:
		return nil, errors.New("--speak-to needs ELEVEN_API_KEY, or TTS_PROVIDER=openai with OPENAI_API_KEY")
	}
}
