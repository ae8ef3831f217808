package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Port          string
	AllowedOrigin string
	LogLevel      string
	// Ticketing/events service
	CommunityAPIURL     string
	CommunityAPITimeout time.Duration
	// Optional OAuth2 client credentials for the ticketing service
	CommunityClientID     string
	CommunityClientSecret string
	CommunityTokenURL     string
	CommunityScopes       []string
	CommunityTokenFile    string
	// Speech
	SpeechLang    string
	OpenAIAPIKey  string
	STTModel      string
	TTSProvider   string
	TTSModel      string
	TTSVoice      string
	ElevenAPIKey  string
	ElevenVoiceID string
	ElevenModel   string
	// Database
	DatabaseURL   string
	MigrationsDir string
	RunMigrations bool
	// Optional override of the embedded help script
	HelpFile string
	// Session history kept in memory per session
	HistorySize int
}

func Load() Config {
	_ = godotenv.Load()
	cfg := Config{
		Port:                  getEnvDefault("PORT", "8080"),
		AllowedOrigin:         getEnvDefault("ALLOWED_ORIGIN", "*"),
		LogLevel:              getEnvDefault("LOG_LEVEL", "info"),
		CommunityAPIURL:       strings.TrimRight(getEnvDefault("COMMUNITY_API_URL", "http://localhost:8000"), "/"),
		CommunityAPITimeout:   getEnvDurationDefault("COMMUNITY_API_TIMEOUT", 20*time.Second),
		CommunityClientID:     os.Getenv("COMMUNITY_CLIENT_ID"),
		CommunityClientSecret: os.Getenv("COMMUNITY_CLIENT_SECRET"),
		CommunityTokenURL:     os.Getenv("COMMUNITY_TOKEN_URL"),
		CommunityScopes:       getEnvListDefault("COMMUNITY_SCOPES", []string{"tickets", "events"}),
		CommunityTokenFile:    getEnvDefault("COMMUNITY_TOKEN_FILE", "data/community_token.json"),
		SpeechLang:            getEnvDefault("SPEECH_LANG", "en-US"),
		OpenAIAPIKey:          os.Getenv("OPENAI_API_KEY"),
		STTModel:              getEnvDefault("OPENAI_STT_MODEL", "whisper-1"),
		TTSProvider:           strings.ToLower(getEnvDefault("TTS_PROVIDER", "elevenlabs")),
		TTSModel:              getEnvDefault("OPENAI_TTS_MODEL", "tts-1"),
		TTSVoice:              getEnvDefault("OPENAI_TTS_VOICE", "alloy"),
		ElevenAPIKey:          os.Getenv("ELEVEN_API_KEY"),
		ElevenVoiceID:         os.Getenv("ELEVEN_VOICE_ID"),
		ElevenModel:           getEnvDefault("ELEVEN_MODEL_ID", "eleven_multilingual_v2"),
		DatabaseURL:           os.Getenv("DB_URL"),
		MigrationsDir:         getEnvDefault("MIGRATIONS_DIR", "./migrations"),
		RunMigrations:         getEnvBoolDefault("DB_RUN_MIGRATIONS", true),
		HelpFile:              os.Getenv("HELP_FILE"),
		HistorySize:           getEnvIntDefault("HISTORY_SIZE", 40),
	}
	if cfg.OpenAIAPIKey == "" {
		log.Warn().Msg("OPENAI_API_KEY is not set; voice uploads cannot be transcribed")
	}
	return cfg
}

// OAuthEnabled reports whether client credentials are complete enough to
// authenticate against the ticketing service.
func (c Config) OAuthEnabled() bool {
	return c.CommunityClientID != "" && c.CommunityClientSecret != "" && c.CommunityTokenURL != ""
}

func getEnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvListDefault(key string, def []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			s := strings.TrimSpace(p)
			if s != "" {
				out = append(out, s)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return def
}

func getEnvBoolDefault(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getEnvDurationDefault(key string, def time.Duration) time.Duration {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		log.Warn().Str("key", key).Str("value", v).Msg("invalid duration, using default")
	}
	return def
}

func getEnvIntDefault(key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		log.Warn().Str("key", key).Str("value", v).Msg("invalid integer, using default")
	}
	return def
}
