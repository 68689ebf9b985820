package handlers

import "net/http"

// CORSMiddleware adds the CORS headers to every response so lead magnet pages
// served from another origin (a custom domain in front of a CDN) can still post
// to the submission endpoint.
// For production, allowedOrigin should be restricted to the public page origin.
func CORSMiddleware(allowedOrigin string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(responseWriter http.ResponseWriter, request *http.Request) {
			responseWriter.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
			responseWriter.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
			responseWriter.Header().Set("Access-Control-Allow-Headers", "Content-Type")

			// preflight requests (OPTIONS) get an immediate 204 response with no body
			if request.Method == http.MethodOptions {
				responseWriter.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(responseWriter, request)
		})
	}
}

// BodyLimitMiddleware caps the request body at maxBytes.
// reads past the cap fail with *http.MaxBytesError, which the handlers turn into 413.
func BodyLimitMiddleware(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(responseWriter http.ResponseWriter, request *http.Request) {
			request.Body = http.MaxBytesReader(responseWriter, request.Body, maxBytes)
			next.ServeHTTP(responseWriter, request)
		})
	}
}
