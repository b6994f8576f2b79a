package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hostel-inventory/apiserver/config"
	"github.com/hostel-inventory/apiserver/internal/store"
)

// ErrNotFound is returned by a Store when the id is unknown or expired.
var ErrNotFound = store.ErrNotFound

// Store persists the binding between a session id and a user id.
type Store interface {
	Get(ctx context.Context, id string) (int, error)
	Set(ctx context.Context, id string, userID int, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
}

// Manager reads and writes the session cookie.
type Manager struct {
	store      Store
	cookieName string
	ttl        time.Duration
	secure     bool
	sameSite   http.SameSite
}

func NewManager(store Store, cfg config.SessionConfig) *Manager {
	name := cfg.CookieName
	if name == "" {
		name = "sessionid"
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Manager{
		store:      store,
		cookieName: name,
		ttl:        ttl,
		secure:     cfg.Secure,
		sameSite:   parseSameSite(cfg.SameSite),
	}
}

// HandlerFunc is an http handler that receives the caller's session explicitly.
type HandlerFunc func(w http.ResponseWriter, r *http.Request, sess *Session)

// Handle loads the session for every request and passes it to fn.
func (m *Manager) Handle(fn HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fn(w, r, m.Load(w, r))
	}
}

// Load returns the session bound to the request cookie. A missing, unknown
// or expired cookie yields an anonymous session.
func (m *Manager) Load(w http.ResponseWriter, r *http.Request) *Session {
	sess := &Session{manager: m, w: w}

	cookie, err := r.Cookie(m.cookieName)
	if err != nil || strings.TrimSpace(cookie.Value) == "" {
		return sess
	}
	sess.id = cookie.Value

	userID, err := m.store.Get(r.Context(), cookie.Value)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			slog.WarnContext(r.Context(), "session lookup failed", "error", err)
		}
		return sess
	}
	sess.userID = userID
	return sess
}

func (m *Manager) writeCookie(w http.ResponseWriter, value string, maxAge int) {
	cookie := &http.Cookie{
		Name:     m.cookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: m.sameSite,
	}
	if maxAge > 0 {
		cookie.Expires = time.Now().Add(time.Duration(maxAge) * time.Second)
	}
	http.SetCookie(w, cookie)
}

// Session is the server-side state of one browser session.
type Session struct {
	manager *Manager
	w       http.ResponseWriter
	id      string
	userID  int
}

// UserID reports the user bound to the session, if any.
func (s *Session) UserID() (int, bool) {
	return s.userID, s.userID > 0
}

// Set binds userID to the session. A fresh id is issued on every login.
func (s *Session) Set(ctx context.Context, userID int) error {
	if s.id != "" {
		if err := s.manager.store.Delete(ctx, s.id); err != nil {
			return err
		}
	}
	id, err := newID()
	if err != nil {
		return err
	}
	if err := s.manager.store.Set(ctx, id, userID, s.manager.ttl); err != nil {
		return err
	}
	s.id = id
	s.userID = userID
	s.manager.writeCookie(s.w, id, int(s.manager.ttl/time.Second))
	return nil
}

// Clear drops the session. Clearing an anonymous session only expires the cookie.
func (s *Session) Clear(ctx context.Context) error {
	var err error
	if s.id != "" {
		err = s.manager.store.Delete(ctx, s.id)
	}
	s.id = ""
	s.userID = 0
	s.manager.writeCookie(s.w, "", -1)
	return err
}

func newID() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func parseSameSite(value string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}
