package bridge

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"
)

// CheckFileInfoResponse is the WOPI CheckFileInfo body.
//
// Identity fields are placeholders and write capability is granted to every
// authorized token; there is no ACL behind the bridge.
type CheckFileInfoResponse struct {
	BaseFileName     string `json:"BaseFileName"`
	Size             int64  `json:"Size"`
	Version          string `json:"Version"`
	OwnerId          string `json:"OwnerId"`
	UserId           string `json:"UserId"`
	SupportsUpdate   bool   `json:"SupportsUpdate"`
	UserCanWrite     bool   `json:"UserCanWrite"`
	LastModifiedTime string `json:"LastModifiedTime"`
}

// versionOf derives the WOPI Version from a modification time: milliseconds
// since the epoch, so every overwrite observed by the backend changes it.
func versionOf(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

// handleCheckFileInfo serves GET /wopi/files/{fileId}.
func (h *Handler) handleCheckFileInfo(w http.ResponseWriter, r *http.Request) {
	key := mustKey(r)

	info, err := h.gateway.Head(r.Context(), key)
	if err != nil {
		writeStorageError(w, r, opCheckFileInfo, err)
		return
	}

	writeJSON(w, http.StatusOK, CheckFileInfoResponse{
		BaseFileName:     key.BaseName(),
		Size:             info.Size,
		Version:          versionOf(info.ModifiedAt),
		OwnerId:          h.cfg.OwnerID,
		UserId:           h.cfg.UserID,
		SupportsUpdate:   true,
		UserCanWrite:     true,
		LastModifiedTime: info.ModifiedAt.UTC().Format(time.RFC3339),
	})
}

// writerOnly hides io.ReaderFrom so io.CopyBuffer uses the pooled buffer.
type writerOnly struct {
	io.Writer
}

// handleGetFile serves GET /wopi/files/{fileId}/contents.
//
// If the initial fetch fails nothing is streamed and a JSON error is sent.
// If the stream fails after bytes reached the client the connection is
// aborted, so the client sees a truncated transfer rather than a valid file.
func (h *Handler) handleGetFile(w http.ResponseWriter, r *http.Request) {
	key := mustKey(r)

	body, err := h.gateway.GetContent(r.Context(), key)
	if err != nil {
		writeStorageError(w, r, opGetFile, err)
		return
	}
	defer body.Close()

	buf := getBuffer(smallBufferSize)
	defer putBuffer(buf)

	w.Header().Set("Content-Type", h.cfg.ContentType)
	n, err := io.CopyBuffer(writerOnly{w}, body, buf)
	h.metrics.RecordBytesTransferred("read", n)
	if err == nil {
		return
	}

	if r.Context().Err() != nil {
		requestLog(r).Debug("GetFile %q: client went away after %d bytes", key, n)
		return
	}
	if n == 0 {
		writeStorageError(w, r, opGetFile, err)
		return
	}

	requestLog(r).Error("GetFile %q: stream failed after %d bytes: %v", key, n, err)
	panic(http.ErrAbortHandler)
}

// handlePutFile serves POST /wopi/files/{fileId}/contents.
//
// The body replaces the whole object. Oversized bodies are refused with 413
// before the gateway is touched: a declared Content-Length is checked up
// front, and the body is fully read (bounded) before PutContent is called.
func (h *Handler) handlePutFile(w http.ResponseWriter, r *http.Request) {
	key := mustKey(r)
	limit := h.cfg.MaxBodySize

	if r.ContentLength > limit {
		writeError(w, http.StatusRequestEntityTooLarge, msgTooLarge)
		return
	}

	body := http.MaxBytesReader(w, r.Body, limit)
	data, release, err := readBody(body, r.ContentLength)
	defer release()
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, msgTooLarge)
		case errors.Is(err, io.ErrUnexpectedEOF):
			writeError(w, http.StatusBadRequest, msgIncompleteBody)
		default:
			requestLog(r).Debug("PutFile %q: reading body: %v", key, err)
			writeError(w, http.StatusBadRequest, msgIncompleteBody)
		}
		return
	}

	if err := h.gateway.PutContent(r.Context(), key, bytes.NewReader(data), int64(len(data))); err != nil {
		writePutError(w, r, opPutFile, err)
		return
	}

	h.metrics.RecordBytesTransferred("write", int64(len(data)))
	requestLog(r).Debug("PutFile %q: stored %d bytes", key, len(data))
	w.WriteHeader(http.StatusOK)
}

// readBody reads body completely. With a known length it fills a pooled
// buffer; release returns that buffer and must be called once data is no
// longer needed.
func readBody(body io.Reader, contentLength int64) (data []byte, release func(), err error) {
	if contentLength < 0 {
		data, err = io.ReadAll(body)
		return data, func() {}, err
	}

	buf := getBuffer(int(contentLength))
	release = func() { putBuffer(buf) }

	if _, err := io.ReadFull(body, buf); err != nil {
		return nil, release, err
	}
	return buf, release, nil
}
