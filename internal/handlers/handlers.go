// Package handlers translates HTTP requests into engine calls. Each
// mutation route declares its scope requirement and, where relevant,
// an ownership predicate, and runs both through the permission gate
// before touching the engine.
package handlers

import (
	"errors"
	"net/http"

	"github.com/example/comment-platform/internal/engine"
	"github.com/example/comment-platform/internal/platform/api"
)

const maxBodyBytes = 1 << 20

// writeEngineError maps engine sentinels onto the error envelope.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrNotFound):
		api.Error(w, http.StatusNotFound, err.Error())
	case errors.Is(err, engine.ErrUnprocessable):
		api.Error(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, engine.ErrForbidden):
		api.Error(w, http.StatusForbidden, err.Error())
	default:
		api.Error(w, http.StatusInternalServerError, "internal server error")
	}
}
