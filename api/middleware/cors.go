package middleware

import (
	"net/http"
	"strings"

	"github.com/go-chi/cors"
)

const localOrigin = "http://localhost:3000"

// CORS allows the web client at publicURL plus the local dev origin.
func CORS(publicURL string) func(http.Handler) http.Handler {
	origins := []string{localOrigin}
	if trimmed := strings.TrimRight(strings.TrimSpace(publicURL), "/"); trimmed != "" && trimmed != localOrigin {
		origins = append(origins, trimmed)
	}
	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "HEAD", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-Requested-With"},
		ExposedHeaders:   []string{"X-Request-Id", "X-Status", "X-Mints-Remaining", "X-Days-Remaining"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler
}
