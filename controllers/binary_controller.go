package controllers

import (
	"context"
	"net/http"
	"sync"

	"kairo-keeper/internal/models"
	"kairo-keeper/services"

	"github.com/gin-gonic/gin"
)

// BinaryProvider is the part of services.BinaryService the controllers use.
type BinaryProvider interface {
	Installed() (models.InstalledBinary, bool)
	Ensure(ctx context.Context, onStatus services.StatusFunc, onProgress services.ProgressFunc) (models.InstalledBinary, error)
	Acquire(ctx context.Context, onStatus services.StatusFunc, onProgress services.ProgressFunc) (models.InstalledBinary, error)
	Check(ctx context.Context) (services.UpgradeCheck, error)
}

type BinaryController struct {
	binaries BinaryProvider
}

func NewBinaryController(binaries BinaryProvider) *BinaryController {
	return &BinaryController{binaries: binaries}
}

// GetBinary reports the installed tunnel client
//
//	@Summary		Installed binary
//	@Description	Installed tunnel client; with check=true also the latest release version
//	@Tags			Binary
//	@Produce		json
//	@Param			check	query		bool	false	"Compare with the latest release"
//	@Success		200		{object}	models.BinaryStatus
//	@Failure		502		{object}	models.ErrorResponse	"Release metadata unavailable"
//	@Router			/kairo/api/v1/binary [get]
func (bc *BinaryController) GetBinary(c *gin.Context) {
	var status models.BinaryStatus
	if bin, ok := bc.binaries.Installed(); ok {
		status.Installed = true
		status.Binary = &bin
	}
	if c.Query("check") == "true" {
		check, err := bc.binaries.Check(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		status.Latest = check.Latest
		status.Upgrade = check.Upgrade
	}
	c.JSON(http.StatusOK, &status)
}

// AcquireBinary downloads and installs the latest tunnel client
//
//	@Summary		Acquire binary
//	@Description	Runs the acquisition pipeline and returns the installed binary with the stage messages
//	@Tags			Binary
//	@Produce		json
//	@Success		200	{object}	models.AcquireResponse
//	@Failure		502	{object}	models.ErrorResponse	"Download or verification failure"
//	@Router			/kairo/api/v1/binary/acquire [post]
func (bc *BinaryController) AcquireBinary(c *gin.Context) {
	var mu sync.Mutex
	statuses := []string{}
	bin, err := bc.binaries.Acquire(c.Request.Context(), func(text string) {
		mu.Lock()
		statuses = append(statuses, text)
		mu.Unlock()
	}, nil)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, &models.AcquireResponse{Binary: bin, Statuses: statuses})
}

func (bc *BinaryController) RegisterRoutes(r *gin.Engine) {
	binary := r.Group("/kairo/api/v1/binary")
	{
		binary.GET("", bc.GetBinary)
		binary.POST("/acquire", bc.AcquireBinary)
	}
}
