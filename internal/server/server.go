package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"community-voice/internal/assistant"
	"community-voice/internal/community"
	"community-voice/internal/config"
	"community-voice/internal/db"
	"community-voice/internal/speech"
	"community-voice/internal/store"
	"community-voice/internal/types"
)

// VoiceLister lists the voices a text-to-speech provider offers.
type VoiceLister interface {
	Voices(ctx context.Context) (io.ReadCloser, error)
}

// Deps are the collaborators of the server. Nil speech fields disable the
// matching endpoints; a nil Database keeps history in memory only.
type Deps struct {
	Client      community.Client
	Interpreter *assistant.Interpreter
	Transcriber speech.Transcriber
	Synthesizer speech.Synthesizer
	Voices      VoiceLister
	Database    *db.DB
}

type Server struct {
	router        *chi.Mux
	store         *store.MemoryStore
	cfg           config.Config
	logger        zerolog.Logger
	validate      *validator.Validate
	client        community.Client
	interpreter   *assistant.Interpreter
	transcriber   speech.Transcriber
	synth         speech.Synthesizer
	voices        VoiceLister
	database      *db.DB
	databaseStore *store.DatabaseStore
}

// NewServer wires the server from configuration.
func NewServer(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*Server, error) {
	client := community.NewClientFromConfig(ctx, cfg, store.NewFileTokenStore(cfg.CommunityTokenFile), logger)

	opts := []assistant.Option{}
	if cfg.HelpFile != "" {
		help, err := assistant.LoadHelp(cfg.HelpFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load help script: %w", err)
		}
		opts = append(opts, assistant.WithHelp(help))
	}

	deps := Deps{
		Client:      client,
		Interpreter: assistant.New(client, logger.With().Str("component", "interpreter").Logger(), opts...),
	}

	if cfg.OpenAIAPIKey != "" {
		oa := openai.NewClient(cfg.OpenAIAPIKey)
		deps.Transcriber = speech.NewWhisperTranscriber(oa, cfg.STTModel, cfg.SpeechLang)
		if cfg.TTSProvider == "openai" {
			deps.Synthesizer = speech.NewOpenAISynthesizer(oa, cfg.TTSModel, cfg.TTSVoice)
		}
	} else {
		logger.Warn().Msg("speech recognition not supported: OPENAI_API_KEY is not set")
	}
	if cfg.ElevenAPIKey != "" {
		eleven := speech.NewElevenLabsSynthesizer(cfg.ElevenAPIKey, cfg.ElevenVoiceID, cfg.ElevenModel)
		deps.Voices = eleven
		if deps.Synthesizer == nil {
			deps.Synthesizer = eleven
		}
	}

	if cfg.DatabaseURL != "" {
		database, err := db.New(ctx, cfg.DatabaseURL, logger.With().Str("component", "db").Logger())
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		logger.Info().Msg("database connection established")
		if cfg.RunMigrations {
			if err := database.RunMigrations(ctx, cfg.MigrationsDir); err != nil {
				database.Close()
				return nil, fmt.Errorf("failed to run migrations: %w", err)
			}
		}
		deps.Database = database
	} else {
		logger.Warn().Msg("DB_URL not provided, interaction history kept in memory only")
	}

	return New(cfg, deps, logger), nil
}

// New builds a server around already constructed dependencies.
func New(cfg config.Config, deps Deps, logger zerolog.Logger) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.AllowedOrigin},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Requested-With", "X-Session-Id"},
		ExposedHeaders:   []string{"X-Session-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	interp := deps.Interpreter
	if interp == nil {
		interp = assistant.New(deps.Client, logger)
	}
	s := &Server{
		router:      r,
		store:       store.NewMemoryStore(cfg.HistorySize),
		cfg:         cfg,
		logger:      logger,
		validate:    validator.New(),
		client:      deps.Client,
		interpreter: interp,
		transcriber: deps.Transcriber,
		synth:       deps.Synthesizer,
		voices:      deps.Voices,
		database:    deps.Database,
	}
	if deps.Database != nil {
		s.databaseStore = store.NewDatabaseStore(deps.Database)
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Get("/api/health", s.handleHealth)
	s.router.Post("/api/command", s.handleCommand)
	s.router.Post("/api/voice", s.handleVoice)
	s.router.Post("/api/tts", s.handleTTS)
	s.router.Get("/api/tts/voices", s.handleTTSVoices)
	s.router.Get("/api/listening", s.handleListening)
	s.router.Post("/api/listening", s.handleSetListening)
	s.router.Post("/api/listening/toggle", s.handleToggleListening)
	s.router.Get("/api/history", s.handleHistory)
	s.router.Get("/api/dashboard", s.handleDashboard)
}

func (s *Server) Router() http.Handler { return s.router }

// Close releases the database pool, if any.
func (s *Server) Close() error {
	if s.database != nil {
		return s.database.Close()
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]string{"status": "ok"}
	code := http.StatusOK
	if s.database != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.database.HealthCheck(ctx); err != nil {
			s.logger.Error().Err(err).Msg("database health check failed")
			resp["status"] = "degraded"
			resp["database"] = "unavailable"
			code = http.StatusServiceUnavailable
		} else {
			resp["database"] = "ok"
		}
	}
	s.writeJSON(w, code, resp)
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req types.CommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req.Transcript = strings.TrimSpace(req.Transcript)
	if err := s.validate.Struct(req); err != nil {
		s.writeError(w, http.StatusBadRequest, "transcript is required (max 2000 characters)")
		return
	}
	if req.SessionID != "" && getSessionID(r) == "" {
		r.Header.Set("X-Session-Id", req.SessionID)
	}
	sid := getOrCreateSessionID(w, r, s.logger)

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()
	resp := s.runCommand(ctx, sid, req.Transcript)
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleVoice(w http.ResponseWriter, r *http.Request) {
	if s.transcriber == nil {
		s.writeError(w, http.StatusServiceUnavailable, "speech recognition not supported on this server")
		return
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	sid := getOrCreateSessionID(w, r, s.logger)
	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "audio file is required (field 'file')")
		return
	}
	defer file.Close()

	ctx, cancel := context.WithTimeout(r.Context(), 180*time.Second)
	defer cancel()

	transcript, err := s.transcriber.Transcribe(ctx, header.Filename, file)
	if err != nil {
		s.logger.Error().Err(err).Str("session", sid).Msg("transcription failed")
		s.store.SetListening(sid, false)
		s.writeError(w, http.StatusBadGateway, "transcription failed")
		return
	}

	resp := s.runCommand(ctx, sid, transcript)
	resp.Transcript = transcript
	s.writeJSON(w, http.StatusOK, resp)
}

// runCommand interprets a transcript for a session and records the exchange.
func (s *Server) runCommand(ctx context.Context, sid, transcript string) types.CommandResponse {
	s.store.Append(sid, store.Message{Role: "user", Content: transcript})

	reply, err := s.interpreter.Interpret(ctx, transcript)
	failed := err != nil
	if failed {
		s.logger.Error().Err(err).Str("session", sid).Msg("voice command failed")
	}
	text := reply.Text()
	kind := string(reply.Intent.Kind)
	s.store.Append(sid, store.Message{Role: "assistant", Content: text, Intent: kind})

	if s.databaseStore != nil {
		rec := &store.Interaction{SessionID: sid, Transcript: transcript, Intent: kind, Reply: text, Failed: failed}
		if err := s.databaseStore.SaveInteraction(ctx, rec); err != nil {
			s.logger.Error().Err(err).Str("session", sid).Msg("failed to record interaction")
		}
	}

	return types.CommandResponse{
		SessionID:  sid,
		Reply:      text,
		Utterances: reply.Utterances,
		Intent:     intentResponse(reply),
		Failed:     failed,
	}
}

func intentResponse(reply assistant.Reply) *types.IntentResponse {
	payload := map[string]any{}
	if reply.Intent.TicketID != "" {
		payload["ticketId"] = reply.Intent.TicketID
	}
	if reply.Ticket != nil {
		payload["ticket"] = reply.Ticket
	}
	if reply.Draft != nil {
		payload["draft"] = reply.Draft
	}
	if reply.Intent.Kind == assistant.IntentEvents {
		payload["events"] = reply.Events
	}
	// A created ticket changes what the dashboard shows.
	if reply.Intent.Kind == assistant.IntentCreateTicket && reply.Ticket != nil {
		payload["refreshDashboard"] = true
	}
	if len(payload) == 0 {
		payload = nil
	}
	return &types.IntentResponse{Type: string(reply.Intent.Kind), Payload: payload}
}

// Text-to-speech: JSON { text, voiceId? } -> audio
func (s *Server) handleTTS(w http.ResponseWriter, r *http.Request) {
	var body types.TTSRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || s.validate.Struct(body) != nil || strings.TrimSpace(body.Text) == "" {
		s.writeError(w, http.StatusBadRequest, "invalid text body")
		return
	}
	if s.synth == nil {
		s.writeError(w, http.StatusBadRequest, "text-to-speech not configured")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()

	var (
		audio       io.ReadCloser
		contentType string
		err         error
	)
	if el, ok := s.synth.(*speech.ElevenLabsSynthesizer); ok && strings.TrimSpace(body.VoiceID) != "" {
		audio, contentType, err = el.SynthesizeVoice(ctx, body.Text, body.VoiceID)
	} else {
		audio, contentType, err = s.synth.Synthesize(ctx, body.Text)
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("tts failed")
		s.writeError(w, http.StatusBadGateway, "tts error")
		return
	}
	defer audio.Close()
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, audio)
}

// Voices proxy: GET -> JSON { voices: [...] }
func (s *Server) handleTTSVoices(w http.ResponseWriter, r *http.Request) {
	if s.voices == nil {
		s.writeError(w, http.StatusBadRequest, "elevenlabs not configured")
		return
	}
	body, err := s.voices.Voices(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("voices listing failed")
		s.writeError(w, http.StatusBadGateway, "voices error")
		return
	}
	defer body.Close()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, body)
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error().Err(err).Msg("encoding response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, code int, msg string) {
	s.writeJSON(w, code, types.ErrorResponse{Error: msg})
}
