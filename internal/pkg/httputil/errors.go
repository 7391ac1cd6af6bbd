package httputil

import (
	"context"
	"errors"
	"net/http"

	"github.com/suanfamama/atelier/internal/pkg/ctxlog"
)

// ErrorMapping ties a sentinel error to the status and message clients see.
// An empty Message exposes err.Error().
type ErrorMapping struct {
	Error   error
	Status  int
	Message string
}

// HandleError writes the first mapping err matches. Unmapped errors are
// logged and answered with 500 without leaking their text.
func HandleError(ctx context.Context, w http.ResponseWriter, err error, mappings []ErrorMapping) {
	m, ok := MatchError(err, mappings)
	if !ok {
		ctxlog.FromContext(ctx).Error("unhandled error", "error", err)
		Error(w, http.StatusInternalServerError, "internal error")
		return
	}

	ctxlog.FromContext(ctx).Debug("request failed", "status", m.Status, "error", err)
	if m.Message == "" {
		m.Message = err.Error()
	}
	Error(w, m.Status, m.Message)
}

// MatchError returns the first mapping whose sentinel err wraps.
func MatchError(err error, mappings []ErrorMapping) (ErrorMapping, bool) {
	for _, m := range mappings {
		if errors.Is(err, m.Error) {
			return m, true
		}
	}
	return ErrorMapping{}, false
}
