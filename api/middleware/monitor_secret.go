package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/angelmondragon/archivemint-backend/api/responses"
	pkgerrors "github.com/angelmondragon/archivemint-backend/pkg/errors"
	"github.com/angelmondragon/archivemint-backend/pkg/logger"
)

const monitorSecretHeader = "X-Monitor-Secret"

// MonitorSecret guards scheduler-facing endpoints with a shared secret passed in the
// X-Monitor-Secret header or the secret query parameter. An empty configured secret
// rejects every call.
func MonitorSecret(secret string, logg *logger.Logger) func(http.Handler) http.Handler {
	expected := []byte(secret)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(expected) == 0 {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "monitor endpoint disabled"))
				return
			}
			provided := strings.TrimSpace(r.Header.Get(monitorSecretHeader))
			if provided == "" {
				provided = strings.TrimSpace(r.URL.Query().Get("secret"))
			}
			if provided == "" || subtle.ConstantTimeCompare([]byte(provided), expected) != 1 {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid monitor secret"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
