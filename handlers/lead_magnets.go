package handlers

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sasta-kro/corvus-paas/leadmagnet-host/archive"
	"github.com/sasta-kro/corvus-paas/leadmagnet-host/db"
	"github.com/sasta-kro/corvus-paas/leadmagnet-host/models"
	"github.com/sasta-kro/corvus-paas/leadmagnet-host/publish"
	"github.com/sasta-kro/corvus-paas/leadmagnet-host/util"
)

// LeadMagnetHandler holds the dependencies needed by the admin lead magnet endpoints.
type LeadMagnetHandler struct {
	database  *db.Database
	publisher *publish.Publisher
	logger    *slog.Logger
}

// NewLeadMagnetHandler constructs a LeadMagnetHandler with its required dependencies.
func NewLeadMagnetHandler(
	database *db.Database,
	publisher *publish.Publisher,
	logger *slog.Logger,
) *LeadMagnetHandler {
	return &LeadMagnetHandler{
		database:  database,
		publisher: publisher,
		logger:    logger,
	}
}

// Upload handles POST /api/upload (multipart: file, name, description).
// the publish is synchronous, 201 means the page is already live at the returned url.
func (handler *LeadMagnetHandler) Upload(responseWriter http.ResponseWriter, request *http.Request) {
	// ===== parse multipart form
	// parts above maxMemoryBytes are spilled to temp files by the standard library,
	// the hard cap on the whole body is the BodyLimitMiddleware in front of this route.
	const maxMemoryBytes = 32 << 20 // 32MB
	if err := request.ParseMultipartForm(maxMemoryBytes); err != nil {
		if isBodyTooLarge(err) {
			writeErrorJsonAndLogIt(responseWriter, http.StatusRequestEntityTooLarge, "upload is too large", handler.logger)
			return
		}
		writeErrorJsonAndLogIt(responseWriter, http.StatusBadRequest, "failed to parse multipart form", handler.logger)
		return
	}
	defer request.MultipartForm.RemoveAll() // nolint:errcheck -- temp file cleanup

	// ===== read form fields
	name := request.FormValue("name")
	uploadedFile, fileHeader, err := request.FormFile("file")
	if err != nil || strings.TrimSpace(name) == "" {
		writeErrorJsonAndLogIt(responseWriter, http.StatusBadRequest, "File and name are required", handler.logger)
		return
	}
	defer uploadedFile.Close()

	if !strings.HasSuffix(strings.ToLower(fileHeader.Filename), ".zip") {
		writeErrorJsonAndLogIt(responseWriter, http.StatusBadRequest, "Only ZIP files are accepted", handler.logger)
		return
	}

	archiveBytes, err := io.ReadAll(uploadedFile)
	if err != nil {
		handler.logger.Error("failed to read uploaded file", "error", err)
		writeErrorJsonAndLogIt(responseWriter, http.StatusBadRequest, "failed to read uploaded file", handler.logger)
		return
	}

	// ===== publish
	result, err := handler.publisher.Publish(request.Context(), publish.Request{
		ArchiveBytes: archiveBytes,
		Name:         name,
		Description:  request.FormValue("description"),
	})
	if err != nil {
		statusCode, message := publishErrorResponse(err)
		if statusCode >= http.StatusInternalServerError {
			handler.logger.Error("publish failed", "name", name, "error", err)
		}
		writeErrorJsonAndLogIt(responseWriter, statusCode, message, handler.logger)
		return
	}

	handler.logger.Info("lead magnet published",
		"id", result.ID,
		"slug", result.Slug,
		"files_bytes", len(archiveBytes),
	)
	writeJsonAndRespond(responseWriter, http.StatusCreated, result)
}

// publishErrorResponse maps a publish error onto a status code and a controlled client message.
func publishErrorResponse(err error) (int, string) {
	switch {
	case errors.Is(err, publish.ErrNameRequired):
		return http.StatusBadRequest, "name is required"
	case errors.Is(err, publish.ErrNotZip):
		return http.StatusBadRequest, "file must be a ZIP archive"
	case errors.Is(err, archive.ErrArchiveTooLarge):
		return http.StatusRequestEntityTooLarge, "ZIP contents exceed the allowed size"
	case errors.Is(err, archive.ErrUnsafePath):
		return http.StatusBadRequest, "ZIP contains invalid paths"
	case errors.Is(err, archive.ErrMissingIndex):
		return http.StatusBadRequest, "ZIP must contain an index.html file"
	case errors.Is(err, publish.ErrInvalidArchive):
		return http.StatusBadRequest, "ZIP archive is corrupt or unreadable"
	case errors.Is(err, publish.ErrSlugCollision):
		return http.StatusConflict, "A lead magnet with a similar name already exists. Please choose a different name."
	default:
		return http.StatusInternalServerError, "failed to publish lead magnet"
	}
}

// ListLeadMagnets handles GET /api/lead-magnets.
// newest first, each with its submission_count. an empty table gives [] (not null).
func (handler *LeadMagnetHandler) ListLeadMagnets(responseWriter http.ResponseWriter, request *http.Request) {
	leadMagnets, err := handler.database.ListLeadMagnets(request.Context())
	if err != nil {
		handler.logger.Error("failed to list lead magnets", "error", err)
		writeErrorJsonAndLogIt(responseWriter, http.StatusInternalServerError, "failed to retrieve lead magnets", handler.logger)
		return
	}
	writeJsonAndRespond(responseWriter, http.StatusOK, leadMagnets)
}

// leadMagnetDetailResponse is a lead magnet with its submissions inlined.
type leadMagnetDetailResponse struct {
	*models.LeadMagnet
	Submissions []*models.Submission `json:"submissions"`
}

// GetLeadMagnet handles GET /api/lead-magnets/{id}: the record plus its submissions, newest first.
func (handler *LeadMagnetHandler) GetLeadMagnet(responseWriter http.ResponseWriter, request *http.Request) {
	leadMagnet, ok := handler.loadLeadMagnet(responseWriter, request)
	if !ok {
		return
	}

	submissions, err := handler.database.ListSubmissions(request.Context(), leadMagnet.ID)
	if err != nil {
		handler.logger.Error("failed to list submissions", "id", leadMagnet.ID, "error", err)
		writeErrorJsonAndLogIt(responseWriter, http.StatusInternalServerError, "failed to retrieve submissions", handler.logger)
		return
	}
	leadMagnet.SubmissionCount = len(submissions)

	writeJsonAndRespond(responseWriter, http.StatusOK, leadMagnetDetailResponse{
		LeadMagnet:  leadMagnet,
		Submissions: submissions,
	})
}

// patchLeadMagnetRequest uses pointers so an absent field is distinguishable from "".
type patchLeadMagnetRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
}

// PatchLeadMagnet handles PATCH /api/lead-magnets/{id}.
// name and description are stripped of markup, an empty description clears it.
// status moves are limited to active <-> archived and draft -> active.
// the slug never changes, it is the asset namespace.
func (handler *LeadMagnetHandler) PatchLeadMagnet(responseWriter http.ResponseWriter, request *http.Request) {
	var body patchLeadMagnetRequest
	tooLarge, err := decodeJsonBody(request, &body)
	if tooLarge {
		writeErrorJsonAndLogIt(responseWriter, http.StatusRequestEntityTooLarge, "request body is too large", handler.logger)
		return
	}
	if err != nil {
		writeErrorJsonAndLogIt(responseWriter, http.StatusBadRequest, "request body must be a JSON object", handler.logger)
		return
	}

	// ===== validate fields before touching the record
	var patch models.LeadMagnetPatch
	if body.Name != nil {
		name := util.PlainText(*body.Name)
		if name == "" {
			writeErrorJsonAndLogIt(responseWriter, http.StatusBadRequest, "name must not be empty", handler.logger)
			return
		}
		patch.Name = &name
	}
	if body.Description != nil {
		description := util.PlainText(*body.Description)
		patch.Description = &description
	}
	if body.Status != nil {
		status, ok := models.ParseLeadMagnetStatus(*body.Status)
		if !ok {
			writeErrorJsonAndLogIt(responseWriter, http.StatusBadRequest, "status must be one of active, draft, archived", handler.logger)
			return
		}
		patch.Status = &status
	}

	leadMagnet, ok := handler.loadLeadMagnet(responseWriter, request)
	if !ok {
		return
	}

	if patch.Status != nil && !leadMagnet.Status.CanTransitionTo(*patch.Status) {
		writeErrorJsonAndLogIt(responseWriter, http.StatusBadRequest,
			fmt.Sprintf("cannot change status from %s to %s", leadMagnet.Status, *patch.Status),
			handler.logger)
		return
	}

	updated, err := handler.database.UpdateLeadMagnet(request.Context(), leadMagnet.ID, patch)
	if errors.Is(err, db.ErrRecordNotFound) {
		// deleted between the read and the update
		writeErrorJsonAndLogIt(responseWriter, http.StatusNotFound, "lead magnet not found", handler.logger)
		return
	}
	if err != nil {
		handler.logger.Error("failed to update lead magnet", "id", leadMagnet.ID, "error", err)
		writeErrorJsonAndLogIt(responseWriter, http.StatusInternalServerError, "failed to update lead magnet", handler.logger)
		return
	}

	handler.logger.Info("lead magnet updated", "id", updated.ID, "slug", updated.Slug, "status", updated.Status)
	writeJsonAndRespond(responseWriter, http.StatusOK, updated)
}

// DeleteLeadMagnet handles DELETE /api/lead-magnets/{id}.
// performs the full teardown (stored assets, publish log, submissions, record).
// returns 204 No Content on success.
func (handler *LeadMagnetHandler) DeleteLeadMagnet(responseWriter http.ResponseWriter, request *http.Request) {
	leadMagnet, ok := handler.loadLeadMagnet(responseWriter, request)
	if !ok {
		return
	}

	handler.logger.Info("deleting lead magnet", "id", leadMagnet.ID, "slug", leadMagnet.Slug)

	if err := handler.publisher.Teardown(request.Context(), leadMagnet); err != nil {
		handler.logger.Error("failed to tear down lead magnet", "id", leadMagnet.ID, "slug", leadMagnet.Slug, "error", err)
		writeErrorJsonAndLogIt(responseWriter, http.StatusInternalServerError, "failed to delete lead magnet", handler.logger)
		return
	}

	responseWriter.WriteHeader(http.StatusNoContent)
}

// csvHeader is the first row of every export
var csvHeader = []string{"Email", "Name", "Date", "Extra Data"}

// ExportSubmissionsCSV handles GET /api/lead-magnets/{id}/submissions.csv.
// one row per submission, newest first, downloaded as "<slug>-submissions.csv".
func (handler *LeadMagnetHandler) ExportSubmissionsCSV(responseWriter http.ResponseWriter, request *http.Request) {
	leadMagnet, ok := handler.loadLeadMagnet(responseWriter, request)
	if !ok {
		return
	}

	submissions, err := handler.database.ListSubmissions(request.Context(), leadMagnet.ID)
	if err != nil {
		handler.logger.Error("failed to list submissions for export", "id", leadMagnet.ID, "error", err)
		writeErrorJsonAndLogIt(responseWriter, http.StatusInternalServerError, "failed to export submissions", handler.logger)
		return
	}

	// built in memory first so a failure can still be reported as a 500
	var buffer bytes.Buffer
	csvWriter := csv.NewWriter(&buffer)
	csvWriter.Write(csvHeader) // nolint:errcheck -- checked once through csvWriter.Error()
	for _, submission := range submissions {
		csvWriter.Write([]string{ // nolint:errcheck
			csvCell(submission.Email),
			csvCell(stringOrEmpty(submission.Name)),
			submission.CreatedAt.UTC().Format(time.RFC3339),
			csvCell(stringOrEmpty(submission.Data)),
		})
	}
	csvWriter.Flush()
	if err := csvWriter.Error(); err != nil {
		handler.logger.Error("failed to encode submissions csv", "id", leadMagnet.ID, "error", err)
		writeErrorJsonAndLogIt(responseWriter, http.StatusInternalServerError, "failed to export submissions", handler.logger)
		return
	}

	responseWriter.Header().Set("Content-Type", "text/csv; charset=utf-8")
	responseWriter.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s-submissions.csv"`, leadMagnet.Slug))
	responseWriter.WriteHeader(http.StatusOK)
	responseWriter.Write(buffer.Bytes()) // nolint:errcheck
}

// loadLeadMagnet reads the {id} route param and fetches the record.
// it writes the 404/500 response itself and reports whether the caller may continue.
func (handler *LeadMagnetHandler) loadLeadMagnet(responseWriter http.ResponseWriter, request *http.Request) (*models.LeadMagnet, bool) {
	leadMagnetID := chi.URLParam(request, "id")

	leadMagnet, err := handler.database.GetLeadMagnet(request.Context(), leadMagnetID)
	if errors.Is(err, db.ErrRecordNotFound) {
		writeErrorJsonAndLogIt(responseWriter, http.StatusNotFound, "lead magnet not found", handler.logger)
		return nil, false
	}
	if err != nil {
		handler.logger.Error("failed to get lead magnet", "id", leadMagnetID, "error", err)
		writeErrorJsonAndLogIt(responseWriter, http.StatusInternalServerError, "failed to retrieve lead magnet", handler.logger)
		return nil, false
	}
	return leadMagnet, true
}

// csvCell neutralises values a spreadsheet would evaluate as a formula (=, +, -, @)
// by prefixing them with a single quote. submitted values are visitor controlled.
func csvCell(value string) string {
	if value != "" && strings.ContainsRune("=+-@", rune(value[0])) {
		return "'" + value
	}
	return value
}

func stringOrEmpty(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

// isBodyTooLarge reports whether err came from the BodyLimitMiddleware cap.
// some multipart errors only keep the message of the underlying MaxBytesError.
func isBodyTooLarge(err error) bool {
	var maxBytesError *http.MaxBytesError
	return errors.As(err, &maxBytesError) || strings.Contains(err.Error(), "request body too large")
}
