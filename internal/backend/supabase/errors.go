package supabase

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/suanfamama/atelier/internal/backend"
)

// APIError is a non-2xx answer from GoTrue or PostgREST.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("supabase error %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("supabase error %d: %s", e.Status, e.Message)
}

// PublicMessage returns the service message for client errors. Server
// failures stay opaque.
func (e *APIError) PublicMessage() string {
	if e.Status >= 400 && e.Status < 500 {
		return e.Message
	}
	return ""
}

// Unwrap maps well-known failures onto backend sentinel errors so callers
// can use errors.Is without knowing about Supabase.
func (e *APIError) Unwrap() error {
	code := strings.ToLower(e.Code)
	msg := strings.ToLower(e.Message)

	switch {
	case code == "user_already_exists" || code == "email_exists" || strings.Contains(msg, "already registered"):
		return backend.ErrEmailExists
	case code == "invalid_credentials" || code == "invalid_grant" || strings.Contains(msg, "invalid login credentials"):
		return backend.ErrInvalidCredentials
	case code == "otp_expired" || strings.Contains(msg, "expired"):
		return backend.ErrTokenExpired
	case code == "bad_jwt" || code == "session_not_found" || strings.Contains(msg, "invalid") && strings.Contains(msg, "token"):
		return backend.ErrInvalidToken
	case e.Status == http.StatusNotFound || code == "pgrst116":
		return backend.ErrNotFound
	}
	return nil
}

// errorBody covers the shapes GoTrue and PostgREST use for errors.
type errorBody struct {
	Code             json.RawMessage `json:"code"`
	ErrorCode        string          `json:"error_code"`
	Msg              string          `json:"msg"`
	Message          string          `json:"message"`
	Error            string          `json:"error"`
	ErrorDescription string          `json:"error_description"`
}

func parseError(resp *http.Response) error {
	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}

	var body errorBody
	if err := json.Unmarshal(data, &body); err != nil {
		msg := strings.TrimSpace(string(data))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}

	apiErr := &APIError{Status: resp.StatusCode}

	switch {
	case body.ErrorCode != "":
		apiErr.Code = body.ErrorCode
	case body.Error != "":
		apiErr.Code = body.Error
	default:
		// PostgREST sends a string code, GoTrue sometimes a numeric status.
		var s string
		if json.Unmarshal(body.Code, &s) == nil {
			apiErr.Code = s
		}
	}

	for _, m := range []string{body.Msg, body.Message, body.ErrorDescription, body.Error} {
		if m != "" {
			apiErr.Message = m
			break
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}

	return apiErr
}
