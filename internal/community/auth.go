package community

import (
	"context"
	"net/http"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"community-voice/internal/config"
)

// TokenCache persists access tokens between process restarts.
type TokenCache interface {
	Read() (*oauth2.Token, error)
	Write(tok *oauth2.Token) error
}

// cachedTokenSource serves a still-valid cached token before asking the
// token endpoint, and writes every fresh token back to the cache.
type cachedTokenSource struct {
	mu     sync.Mutex
	base   oauth2.TokenSource
	cache  TokenCache
	logger zerolog.Logger
}

func (s *cachedTokenSource) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cache != nil {
		if tok, err := s.cache.Read(); err != nil {
			s.logger.Warn().Err(err).Msg("reading cached community token")
		} else if tok.Valid() {
			return tok, nil
		}
	}
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.Write(tok); err != nil {
			s.logger.Warn().Err(err).Msg("caching community token")
		}
	}
	return tok, nil
}

// NewOAuthHTTPClient returns an http.Client that authenticates with the
// client-credentials grant. cache may be nil.
func NewOAuthHTTPClient(ctx context.Context, cc *clientcredentials.Config, cache TokenCache, logger zerolog.Logger) *http.Client {
	src := &cachedTokenSource{base: cc.TokenSource(ctx), cache: cache, logger: logger}
	return oauth2.NewClient(ctx, oauth2.ReuseTokenSource(nil, src))
}

// NewClientFromConfig builds the API client, authenticating with client
// credentials when they are configured.
func NewClientFromConfig(ctx context.Context, cfg config.Config, cache TokenCache, logger zerolog.Logger) *APIClient {
	var httpClient *http.Client
	if cfg.OAuthEnabled() {
		cc := &clientcredentials.Config{
			ClientID:     cfg.CommunityClientID,
			ClientSecret: cfg.CommunityClientSecret,
			TokenURL:     cfg.CommunityTokenURL,
			Scopes:       cfg.CommunityScopes,
		}
		httpClient = NewOAuthHTTPClient(ctx, cc, cache, logger)
		logger.Info().Msg("community api client credentials enabled")
	}
	return NewAPIClient(cfg.CommunityAPIURL, httpClient, cfg.CommunityAPITimeout)
}
