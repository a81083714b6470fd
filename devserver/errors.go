package devserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/jmcleod/folio/admin"
	"github.com/jmcleod/folio/auth"
	"github.com/jmcleod/folio/storage"
)

const maxJSONBody = 1 << 20

// response is the envelope every endpoint answers with.
type response struct {
	Success    bool            `json:"success"`
	Message    string          `json:"message,omitempty"`
	Data       any             `json:"data,omitempty"`
	Pagination *PaginationMeta `json:"pagination,omitempty"`
}

// httpError carries the status and client-facing message of a failure.
type httpError struct {
	status  int
	message string
}

func (e *httpError) Error() string { return e.message }

func errorf(status int, message string) error {
	return &httpError{status: status, message: message}
}

var (
	errInvalidBody   = errorf(http.StatusBadRequest, "Invalid request body")
	errUnauthorized  = errorf(http.StatusUnauthorized, "Authentication required")
	errInvalidBearer = errorf(http.StatusUnauthorized, "Invalid or expired token")
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, response{Success: true, Message: message, Data: data})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, response{Success: false, Message: msg})
}

func (a *API) mapError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		he  *httpError
		ave *auth.ValidationError
		mve *admin.ValidationError
	)
	switch {
	case errors.As(err, &he):
		writeError(w, he.status, he.message)
	case errors.As(err, &ave):
		writeError(w, http.StatusBadRequest, ave.Message)
	case errors.As(err, &mve):
		writeError(w, http.StatusBadRequest, mve.Message)
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, storage.ErrBucketNotFound):
		writeError(w, http.StatusNotFound, "Not found")
	case errors.Is(err, storage.ErrExists):
		writeError(w, http.StatusConflict, "Already exists")
	default:
		a.logger.ErrorContext(r.Context(), "request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// decodeJSON reads a bounded JSON body into T.
func decodeJSON[T any](w http.ResponseWriter, r *http.Request) (T, error) {
	var v T
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(&v); err != nil {
		return v, errInvalidBody
	}
	return v, nil
}
