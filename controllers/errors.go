package controllers

import (
	"errors"
	"net/http"

	"kairo-keeper/internal/models"

	"github.com/gin-gonic/gin"
)

type errorMapping struct {
	err    error
	status int
	code   string
}

// checked in order, the first match wins
var errorMappings = []errorMapping{
	{models.ErrTunnelNotFound, http.StatusNotFound, "tunnel.not_found"},
	{models.ErrAlreadyRunning, http.StatusConflict, "tunnel.already_running"},
	{models.ErrInvalidBinaryPath, http.StatusPreconditionFailed, "binary.invalid_path"},
	{models.ErrProcessStartFailed, http.StatusInternalServerError, "tunnel.start_failed"},
	{models.ErrCancelled, http.StatusServiceUnavailable, "request.cancelled"},
	{models.ErrMetadataUnavailable, http.StatusBadGateway, "release.metadata_unavailable"},
	{models.ErrNoAssetsFound, http.StatusBadGateway, "release.no_assets"},
	{models.ErrChecksumMismatch, http.StatusBadGateway, "binary.checksum_mismatch"},
	{models.ErrDownloadFailed, http.StatusBadGateway, "binary.download_failed"},
	{models.ErrExecutableNotFound, http.StatusBadGateway, "binary.executable_not_found"},
	{models.ErrExtractionFailed, http.StatusInternalServerError, "binary.extraction_failed"},
}

// respondError writes err as an ErrorResponse with a status derived from its sentinel.
func respondError(c *gin.Context, err error) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			c.JSON(m.status, &models.ErrorResponse{Code: m.code, Error: err.Error()})
			return
		}
	}
	c.JSON(http.StatusInternalServerError, &models.ErrorResponse{Code: "internal", Error: err.Error()})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, &models.ErrorResponse{Code: "request.invalid", Error: msg})
}
