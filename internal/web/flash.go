package web

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/suanfamama/atelier/internal/session"
)

const flashCookie = "flash"

// flash is a one-time message carried across a redirect.
type flash struct {
	Message string `json:"m,omitempty"`
	Email   string `json:"e,omitempty"`
}

func (f flash) empty() bool {
	return f.Message == "" && f.Email == ""
}

func setFlash(w http.ResponseWriter, cfg session.CookieConfig, f flash) {
	if f.empty() {
		return
	}
	data, err := json.Marshal(f)
	if err != nil {
		return
	}
	http.SetCookie(w, flashCookieFor(cfg, base64.RawURLEncoding.EncodeToString(data), 60))
}

// takeFlash reads the flash cookie and clears it. A missing or corrupt cookie
// yields an empty flash.
func takeFlash(w http.ResponseWriter, r *http.Request, cfg session.CookieConfig) flash {
	c, err := r.Cookie(flashCookie)
	if err != nil {
		return flash{}
	}
	http.SetCookie(w, flashCookieFor(cfg, "", -1))

	var f flash
	data, err := base64.RawURLEncoding.DecodeString(c.Value)
	if err != nil {
		return flash{}
	}
	if err := json.Unmarshal(data, &f); err != nil {
		return flash{}
	}
	return f
}

// clearFlash drops a pending flash without reading it.
func clearFlash(w http.ResponseWriter, r *http.Request, cfg session.CookieConfig) {
	if _, err := r.Cookie(flashCookie); err == nil {
		http.SetCookie(w, flashCookieFor(cfg, "", -1))
	}
}

func flashCookieFor(cfg session.CookieConfig, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     flashCookie,
		Value:    value,
		Path:     "/",
		Domain:   cfg.Domain,
		MaxAge:   maxAge,
		Secure:   cfg.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}
