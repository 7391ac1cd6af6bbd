package session

import (
	"encoding/base64"
	"net/http"
	"time"
)

const sessionCookiePrefix = "session_"

// CookieConfig controls the cookies written by CookieStore.
type CookieConfig struct {
	Secure bool
	Domain string
	// RememberFor is the lifetime of durable cookies.
	RememberFor time.Duration
}

// CookieStore is a Store backed by the cookies of one request. Writes are
// sent as Set-Cookie headers and are visible to later reads on the same
// store.
type CookieStore struct {
	w      http.ResponseWriter
	config CookieConfig
	values map[Scope]map[string]string
}

var _ Store = (*CookieStore)(nil)

// NewCookieStore reads the auth cookies of r. w receives cookie updates and
// may be nil for a read-only store.
func NewCookieStore(w http.ResponseWriter, r *http.Request, config CookieConfig) *CookieStore {
	s := &CookieStore{
		w:      w,
		config: config,
		values: map[Scope]map[string]string{
			Durable: {},
			Session: {},
		},
	}

	for _, scope := range []Scope{Durable, Session} {
		for _, key := range []string{KeyToken, KeyUser} {
			c, err := r.Cookie(cookieName(scope, key))
			if err != nil {
				continue
			}
			v, err := base64.RawURLEncoding.DecodeString(c.Value)
			if err != nil {
				continue
			}
			s.values[scope][key] = string(v)
		}
	}

	return s
}

// Get implements Store.
func (s *CookieStore) Get(scope Scope, key string) (string, bool) {
	v, ok := s.values[scope][key]
	return v, ok
}

// Set implements Store.
func (s *CookieStore) Set(scope Scope, key, value string) {
	s.values[scope][key] = value

	c := s.cookie(scope, key)
	c.Value = base64.RawURLEncoding.EncodeToString([]byte(value))
	if scope == Durable && s.config.RememberFor > 0 {
		c.MaxAge = int(s.config.RememberFor.Seconds())
	}
	s.write(c)
}

// Clear implements Store.
func (s *CookieStore) Clear(scope Scope, key string) {
	_, had := s.values[scope][key]
	delete(s.values[scope], key)
	if !had {
		return
	}

	c := s.cookie(scope, key)
	c.MaxAge = -1
	s.write(c)
}

func (s *CookieStore) cookie(scope Scope, key string) *http.Cookie {
	return &http.Cookie{
		Name:     cookieName(scope, key),
		Path:     "/",
		Domain:   s.config.Domain,
		Secure:   s.config.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

func (s *CookieStore) write(c *http.Cookie) {
	if s.w != nil {
		http.SetCookie(s.w, c)
	}
}

func cookieName(scope Scope, key string) string {
	if scope == Session {
		return sessionCookiePrefix + key
	}
	return key
}
