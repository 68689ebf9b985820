package handlers

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"log/slog"
	"net/http"
	"time"
)

const (
	// AdminSessionCookie holds the admin session token
	AdminSessionCookie = "admin-session"

	// sessionTokenNamespace keeps the token from being the bare hash of the password
	sessionTokenNamespace = "tenant-lm:"

	sessionMaxAge = 30 * 24 * time.Hour
)

// sessionToken derives the cookie value from the admin password: hex(sha256("tenant-lm:" + password)).
// the token is stable across restarts and instances, changing the password logs everyone out.
func sessionToken(adminPassword string) string {
	sum := sha256.Sum256([]byte(sessionTokenNamespace + adminPassword))
	return hex.EncodeToString(sum[:])
}

// AuthHandler handles the admin login and logout endpoints.
type AuthHandler struct {
	adminPassword string
	logger        *slog.Logger
}

// NewAuthHandler constructs an AuthHandler. an empty adminPassword makes login answer 500.
func NewAuthHandler(adminPassword string, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{adminPassword: adminPassword, logger: logger}
}

type loginRequest struct {
	Password string `json:"password"`
}

// Login handles POST /api/auth.
// a correct password sets the admin-session cookie for 30 days.
func (handler *AuthHandler) Login(responseWriter http.ResponseWriter, request *http.Request) {
	if handler.adminPassword == "" {
		writeErrorJsonAndLogIt(responseWriter, http.StatusInternalServerError, "ADMIN_PASSWORD not configured", handler.logger)
		return
	}

	var body loginRequest
	if _, err := decodeJsonBody(request, &body); err != nil {
		writeErrorJsonAndLogIt(responseWriter, http.StatusBadRequest, "request body must be JSON", handler.logger)
		return
	}

	// constant time so the response time does not leak how much of the password matched
	if subtle.ConstantTimeCompare([]byte(body.Password), []byte(handler.adminPassword)) != 1 {
		writeErrorJsonAndLogIt(responseWriter, http.StatusUnauthorized, "Invalid password", handler.logger)
		return
	}

	http.SetCookie(responseWriter, &http.Cookie{
		Name:     AdminSessionCookie,
		Value:    sessionToken(handler.adminPassword),
		Path:     "/",
		MaxAge:   int(sessionMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   isSecureRequest(request),
		SameSite: http.SameSiteLaxMode,
	})
	writeJsonAndRespond(responseWriter, http.StatusOK, map[string]bool{"success": true})
}

// Logout handles DELETE /api/auth by expiring the cookie.
func (handler *AuthHandler) Logout(responseWriter http.ResponseWriter, request *http.Request) {
	http.SetCookie(responseWriter, &http.Cookie{
		Name:     AdminSessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJsonAndRespond(responseWriter, http.StatusOK, map[string]bool{"success": true})
}

// AdminSessionMiddleware rejects admin API requests without a valid session cookie (401 JSON).
// with no admin password configured every request passes, which is only meant for local development.
func AdminSessionMiddleware(adminPassword string, logger *slog.Logger) func(http.Handler) http.Handler {
	expectedToken := sessionToken(adminPassword)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(responseWriter http.ResponseWriter, request *http.Request) {
			if adminPassword == "" {
				next.ServeHTTP(responseWriter, request)
				return
			}

			cookie, err := request.Cookie(AdminSessionCookie)
			if err != nil || subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(expectedToken)) != 1 {
				writeErrorJsonAndLogIt(responseWriter, http.StatusUnauthorized, "Unauthorized", logger)
				return
			}

			next.ServeHTTP(responseWriter, request)
		})
	}
}

// isSecureRequest reports whether the client reached us over HTTPS, directly or through a proxy.
func isSecureRequest(request *http.Request) bool {
	return request.TLS != nil || request.Header.Get("X-Forwarded-Proto") == "https"
}
