package server

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// CookieName is the name of the session cookie
	CookieName = "community_session"
	// CookieMaxAge is how long an idle voice session is remembered
	CookieMaxAge = 30 * time.Minute
)

// SetSessionCookie sets an HTTP-only session cookie, marked Secure when the
// request came over TLS.
func SetSessionCookie(w http.ResponseWriter, r *http.Request, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    sessionID,
		Path:     "/",
		MaxAge:   int(CookieMaxAge.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
	})
}

// GetSessionCookie reads the session ID from the cookie
func GetSessionCookie(r *http.Request) (string, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return "", err
	}
	return cookie.Value, nil
}

func newSessionID() string {
	return "s_" + uuid.NewString()
}

// getSessionID looks at the cookie, then the X-Session-Id header, then the
// sessionId query parameter.
func getSessionID(r *http.Request) string {
	if cookie, err := GetSessionCookie(r); err == nil && cookie != "" {
		return cookie
	}
	if sid := r.Header.Get("X-Session-Id"); sid != "" {
		return sid
	}
	return r.URL.Query().Get("sessionId")
}

// getOrCreateSessionID returns the caller's session, starting a new one
// (and setting its cookie) when there is none.
func getOrCreateSessionID(w http.ResponseWriter, r *http.Request, logger zerolog.Logger) string {
	sid := getSessionID(r)
	if sid == "" {
		sid = newSessionID()
		logger.Debug().Str("session", sid).Str("path", r.URL.Path).Msg("creating new session")
		SetSessionCookie(w, r, sid)
	}
	w.Header().Set("X-Session-Id", sid)
	return sid
}
