package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sasta-kro/corvus-paas/leadmagnet-host/site"
)

// SiteHandler serves the public lead magnet pages. errors are plain text, not JSON:
// these URLs are opened by browsers, not API clients.
type SiteHandler struct {
	responder *site.Responder
	logger    *slog.Logger
}

// NewSiteHandler constructs a SiteHandler with its required dependencies.
func NewSiteHandler(responder *site.Responder, logger *slog.Logger) *SiteHandler {
	return &SiteHandler{responder: responder, logger: logger}
}

// ServeRoot handles GET /lm/{slug}: the augmented index.html.
func (handler *SiteHandler) ServeRoot(responseWriter http.ResponseWriter, request *http.Request) {
	slug, err := decodedURLParam(request, "slug")
	if err != nil {
		http.Error(responseWriter, "Forbidden", http.StatusForbidden)
		return
	}

	asset, err := handler.responder.ServeRoot(request.Context(), slug)
	handler.writeAsset(responseWriter, asset, err, slug)
}

// ServeAsset handles GET /lm/{slug}/*.
// "%2e%2e/secret" is rejected the same way as "../secret".
func (handler *SiteHandler) ServeAsset(responseWriter http.ResponseWriter, request *http.Request) {
	slug, errSlug := decodedURLParam(request, "slug")
	decodedPath, err := decodedURLParam(request, "*")
	if errSlug != nil || err != nil {
		http.Error(responseWriter, "Forbidden", http.StatusForbidden)
		return
	}

	asset, err := handler.responder.ServeAsset(request.Context(), slug, strings.Split(decodedPath, "/"))
	handler.writeAsset(responseWriter, asset, err, slug)
}

// decodedURLParam returns a route param as decoded text.
// chi matches on request.URL.RawPath when the request has one, and then its params are
// still escaped. otherwise they come from the already decoded Path and are used as is,
// so a stored "50%off.png" is not decoded a second time.
func decodedURLParam(request *http.Request, name string) (string, error) {
	value := chi.URLParam(request, name)
	if request.URL.RawPath == "" {
		return value, nil
	}
	return url.PathUnescape(value)
}

func (handler *SiteHandler) writeAsset(responseWriter http.ResponseWriter, asset *site.Asset, err error, slug string) {
	switch {
	case errors.Is(err, site.ErrForbidden):
		handler.logger.Warn("blocked lead magnet path", "slug", slug)
		http.Error(responseWriter, "Forbidden", http.StatusForbidden)
		return
	case errors.Is(err, site.ErrNotFound):
		http.Error(responseWriter, "Not found", http.StatusNotFound)
		return
	case err != nil:
		handler.logger.Error("failed to serve lead magnet", "slug", slug, "error", err)
		http.Error(responseWriter, "Internal server error", http.StatusInternalServerError)
		return
	}

	responseWriter.Header().Set("Content-Type", asset.ContentType)
	responseWriter.Header().Set("Cache-Control", asset.CacheControl)
	responseWriter.Header().Set("Content-Length", strconv.Itoa(len(asset.Body)))
	responseWriter.WriteHeader(http.StatusOK)
	responseWriter.Write(asset.Body) // nolint:errcheck
}
