package bridge

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/marmos91/dittowopi/internal/logger"
	"github.com/marmos91/dittowopi/pkg/storage"
)

// Client-facing messages. Backend detail is logged, never returned.
const (
	msgMissingToken   = "missing token"
	msgInvalidToken   = "invalid or expired token"
	msgInvalidFileID  = "invalid file id"
	msgMissingPath    = "missing path"
	msgInvalidPath    = "invalid path"
	msgFileNotFound   = "file not found"
	msgTooLarge       = "request body too large"
	msgIncompleteBody = "incomplete request body"
	msgRateLimited    = "rate limit exceeded"
	msgNoRevoke       = "token revocation not supported"
	msgInternal       = "internal server error"
)

// ErrorResponse is the JSON body of every error reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("Failed to write JSON response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// writeStorageError maps a gateway failure onto the client-facing taxonomy:
//
//	storage.ErrNotFound    -> 404
//	storage.ErrInvalidKey  -> 400
//	anything else          -> 500 (detail logged with the request id)
func writeStorageError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		requestLog(r).Debug("%s: %v", op, err)
		writeError(w, http.StatusNotFound, msgFileNotFound)
	case errors.Is(err, storage.ErrInvalidKey):
		requestLog(r).Debug("%s: %v", op, err)
		writeError(w, http.StatusBadRequest, msgInvalidFileID)
	default:
		requestLog(r).Error("%s failed: %v", op, err)
		writeError(w, http.StatusInternalServerError, msgInternal)
	}
}

// writePutError is writeStorageError for writes. A failed write is never the
// client's missing file, so only storage.ErrInvalidKey keeps its 400; every
// other failure, storage.ErrNotFound included, is a 500.
func writePutError(w http.ResponseWriter, r *http.Request, op string, err error) {
	if errors.Is(err, storage.ErrInvalidKey) {
		requestLog(r).Debug("%s: %v", op, err)
		writeError(w, http.StatusBadRequest, msgInvalidFileID)
		return
	}
	requestLog(r).Error("%s failed: %v", op, err)
	writeError(w, http.StatusInternalServerError, msgInternal)
}
