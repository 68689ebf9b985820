package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/sasta-kro/corvus-paas/leadmagnet-host/db"
	"github.com/sasta-kro/corvus-paas/leadmagnet-host/models"
	"github.com/sasta-kro/corvus-paas/leadmagnet-host/util"
)

// SubmissionHandler records the form posts coming from the injected form script.
type SubmissionHandler struct {
	database *db.Database
	logger   *slog.Logger
}

// NewSubmissionHandler constructs a SubmissionHandler with its required dependencies.
func NewSubmissionHandler(database *db.Database, logger *slog.Logger) *SubmissionHandler {
	return &SubmissionHandler{database: database, logger: logger}
}

// submissionResponse is the 201 body
type submissionResponse struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
}

// emailKeys and nameKeys are checked in order, the first non-empty value wins
var (
	emailKeys = []string{"email", "Email"}
	nameKeys  = []string{"name", "Name", "full_name", "fullName"}
)

// CreateSubmission handles POST /api/submissions.
//
// the only accepted payload is {"slug": "...", "data": {...}}. the older flattened
// shape ({"slug": "...", "email": "...", ...}) is rejected with a message naming the
// expected shape, instead of being guessed at.
//
// validation happens before any lookup, and nothing is written unless the lead magnet
// exists and is active (404 unknown slug, 410 draft or archived).
func (handler *SubmissionHandler) CreateSubmission(responseWriter http.ResponseWriter, request *http.Request) {
	// ===== decode
	// RawMessage per key first, so "data missing" and "data is not an object" can be told apart
	var payload map[string]json.RawMessage
	tooLarge, err := decodeJsonBody(request, &payload)
	if tooLarge {
		writeErrorJsonAndLogIt(responseWriter, http.StatusRequestEntityTooLarge, "submission is too large", handler.logger)
		return
	}
	if err != nil || payload == nil {
		writeErrorJsonAndLogIt(responseWriter, http.StatusBadRequest, "request body must be a JSON object", handler.logger)
		return
	}

	// ===== validate
	var slug string
	if rawSlug, ok := payload["slug"]; ok {
		json.Unmarshal(rawSlug, &slug) // nolint:errcheck -- a non-string slug stays empty and is rejected below
	}
	slug = strings.TrimSpace(slug)
	if slug == "" {
		writeErrorJsonAndLogIt(responseWriter, http.StatusBadRequest, "slug is required", handler.logger)
		return
	}

	rawData, hasData := payload["data"]
	if !hasData {
		if len(payload) > 1 {
			writeErrorJsonAndLogIt(responseWriter, http.StatusBadRequest,
				`unsupported payload shape: form fields must be sent inside "data" as {"slug": "...", "data": {...}}`,
				handler.logger)
			return
		}
		writeErrorJsonAndLogIt(responseWriter, http.StatusBadRequest, "data is required", handler.logger)
		return
	}

	var data map[string]any
	if err := json.Unmarshal(rawData, &data); err != nil || data == nil {
		writeErrorJsonAndLogIt(responseWriter, http.StatusBadRequest, "data must be a JSON object", handler.logger)
		return
	}
	sanitizeFields(data)

	email := firstField(data, emailKeys)
	if email == "" {
		email = fieldContaining(data, "email")
	}
	if email == "" {
		writeErrorJsonAndLogIt(responseWriter, http.StatusBadRequest, "email is required", handler.logger)
		return
	}

	// ===== look up the lead magnet
	leadMagnet, err := handler.database.GetLeadMagnetBySlug(request.Context(), slug)
	if errors.Is(err, db.ErrRecordNotFound) {
		writeErrorJsonAndLogIt(responseWriter, http.StatusNotFound, "Lead magnet not found", handler.logger)
		return
	}
	if err != nil {
		handler.logger.Error("failed to look up lead magnet for submission", "slug", slug, "error", err)
		writeErrorJsonAndLogIt(responseWriter, http.StatusInternalServerError, "Failed to process submission", handler.logger)
		return
	}
	if !leadMagnet.IsAcceptingSubmissions() {
		writeErrorJsonAndLogIt(responseWriter, http.StatusGone, "This lead magnet is no longer active", handler.logger)
		return
	}

	// ===== persist
	encodedData, err := json.Marshal(data)
	if err != nil {
		handler.logger.Error("failed to encode submission data", "slug", slug, "error", err)
		writeErrorJsonAndLogIt(responseWriter, http.StatusInternalServerError, "Failed to process submission", handler.logger)
		return
	}
	dataString := string(encodedData)

	submission := &models.Submission{
		ID:           uuid.New().String(),
		LeadMagnetID: leadMagnet.ID,
		Email:        email,
		Data:         &dataString,
	}
	if name := firstField(data, nameKeys); name != "" {
		submission.Name = &name
	}

	if err := handler.database.InsertSubmission(request.Context(), submission); err != nil {
		handler.logger.Error("failed to insert submission", "slug", slug, "error", err)
		writeErrorJsonAndLogIt(responseWriter, http.StatusInternalServerError, "Failed to process submission", handler.logger)
		return
	}

	handler.logger.Info("submission recorded",
		"slug", slug,
		"lead_magnet_id", leadMagnet.ID,
		"submission_id", submission.ID,
	)
	writeJsonAndRespond(responseWriter, http.StatusCreated, submissionResponse{Success: true, ID: submission.ID})
}

// sanitizeFields strips markup from every string value, including strings inside
// the arrays the form script builds for repeated field names. the map is edited in place.
func sanitizeFields(data map[string]any) {
	for key, value := range data {
		switch typed := value.(type) {
		case string:
			data[key] = util.PlainText(typed)
		case []any:
			for index, item := range typed {
				if text, ok := item.(string); ok {
					typed[index] = util.PlainText(text)
				}
			}
		}
	}
}

// firstField returns the first non-empty string found under keys.
// for a repeated field (sent as an array) its first string element is used.
func firstField(data map[string]any, keys []string) string {
	for _, key := range keys {
		if value := fieldString(data[key]); value != "" {
			return value
		}
	}
	return ""
}

// fieldContaining returns the value of the first key (in sorted order) whose lowercase
// form contains needle, eg "work_email" or "EmailAddress".
func fieldContaining(data map[string]any, needle string) string {
	keys := make([]string, 0, len(data))
	for key := range data {
		if strings.Contains(strings.ToLower(key), needle) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return firstField(data, keys)
}

func fieldString(value any) string {
	switch typed := value.(type) {
	case string:
		return strings.TrimSpace(typed)
	case []any:
		for _, item := range typed {
			if text, ok := item.(string); ok && strings.TrimSpace(text) != "" {
				return strings.TrimSpace(text)
			}
		}
	}
	return ""
}
