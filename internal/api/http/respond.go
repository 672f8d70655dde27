package http

import (
	"encoding/json"
	"errors"
	"net/http"

	apperrors "github.com/louisbranch/rewind/internal/platform/errors"
	"github.com/louisbranch/rewind/internal/storage"
)

// errorBody is the wire form of a failed request.
type errorBody struct {
	Error    string            `json:"error"`
	Code     string            `json:"code"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers are already committed.
		return
	}
}

// writeError renders err with the status its code maps to. Uncoded storage
// misses surface as not found.
func writeError(w http.ResponseWriter, err error) {
	code := apperrors.CodeOf(err)
	if code == apperrors.CodeUnknown && errors.Is(err, storage.ErrNotFound) {
		code = apperrors.CodeNotFound
	}
	body := errorBody{Error: err.Error(), Code: string(code)}
	var de *apperrors.Error
	if errors.As(err, &de) {
		body.Metadata = de.Metadata
	}
	writeJSON(w, code.HTTPStatus(), body)
}
