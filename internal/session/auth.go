package session

import (
	"encoding/json"
	"fmt"

	"github.com/suanfamama/atelier/internal/domain"
)

// SaveSignUp stores the result of a sign-up in the durable scope. An empty
// token is not stored, so the visitor stays signed out until login.
func SaveSignUp(s Store, auth *domain.AuthResponse) error {
	return save(s, Durable, auth)
}

// SaveLogin stores the result of a login. With remember the values go to the
// durable scope, otherwise to the session scope; the other scope is cleared.
func SaveLogin(s Store, auth *domain.AuthResponse, remember bool) error {
	keep, drop := Session, Durable
	if remember {
		keep, drop = Durable, Session
	}

	if err := save(s, keep, auth); err != nil {
		return err
	}
	s.Clear(drop, KeyToken)
	s.Clear(drop, KeyUser)
	return nil
}

func save(s Store, scope Scope, auth *domain.AuthResponse) error {
	if auth.User != nil {
		data, err := json.Marshal(auth.User)
		if err != nil {
			return fmt.Errorf("encode user: %w", err)
		}
		s.Set(scope, KeyUser, string(data))
	}
	if auth.Token != "" {
		s.Set(scope, KeyToken, auth.Token)
	}
	return nil
}

// Token returns the stored token, durable scope first.
func Token(s Store) (string, bool) {
	for _, scope := range []Scope{Durable, Session} {
		if t, ok := s.Get(scope, KeyToken); ok && t != "" {
			return t, true
		}
	}
	return "", false
}

// User returns the stored user, durable scope first. Undecodable values are
// treated as absent.
func User(s Store) (*domain.User, bool) {
	for _, scope := range []Scope{Durable, Session} {
		raw, ok := s.Get(scope, KeyUser)
		if !ok {
			continue
		}
		var u domain.User
		if err := json.Unmarshal([]byte(raw), &u); err != nil {
			continue
		}
		return &u, true
	}
	return nil, false
}

// ClearAll removes the token and user from both scopes.
func ClearAll(s Store) {
	for _, scope := range []Scope{Durable, Session} {
		s.Clear(scope, KeyToken)
		s.Clear(scope, KeyUser)
	}
}
