package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

var defaultCORSOrigins = []string{
	"http://localhost:3000",         // local dev
	"https://gatsishub.gr",          // production frontend
	"https://www.gatsishub.gr",      // production frontend (www)
	"https://gatsishub.vercel.app",  // staging deployment
}

// CORS returns middleware that applies the API's allowed origin policy.
func CORS() func(http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins:   defaultCORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-GH-Token", "Idempotency-Key", "X-Requested-With"},
		ExposedHeaders:   []string{"X-GH-Token"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler
}
