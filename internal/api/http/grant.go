package http

import (
	"net/http"
	"strings"

	"github.com/louisbranch/rewind/internal/ingest"
	apperrors "github.com/louisbranch/rewind/internal/platform/errors"
	"github.com/louisbranch/rewind/internal/platform/requestctx"
)

// requireGrant wraps a write handler with bearer grant verification. With no
// grant config wired the handler runs unguarded; read routes never pass
// through here.
func (s *Server) requireGrant(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.Grant == nil {
			next(w, r)
			return
		}
		header := r.Header.Get("Authorization")
		if header == "" {
			writeError(w, apperrors.New(apperrors.CodeIngestGrantInvalid, "authorization header is required"))
			return
		}
		const prefix = "Bearer "
		if !strings.HasPrefix(header, prefix) {
			writeError(w, apperrors.New(apperrors.CodeIngestGrantInvalid, "authorization must use the bearer scheme"))
			return
		}
		claims, err := ingest.ValidateGrant(strings.TrimPrefix(header, prefix), *s.Grant)
		if err != nil {
			writeError(w, err)
			return
		}
		ctx := requestctx.WithSubject(r.Context(), claims.Subject)
		next(w, r.WithContext(ctx))
	}
}
