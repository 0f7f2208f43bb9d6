package controllers

import (
	"fmt"
	"net/http"
	"strconv"

	"kairo-keeper/internal/models"
	"kairo-keeper/services"

	"github.com/gin-gonic/gin"
)

// TunnelController handles tunnel-related HTTP requests
type TunnelController struct {
	manager  *services.TunnelManager
	logs     *services.TunnelLogBuffer
	binaries BinaryProvider
}

// NewTunnelController creates a TunnelController on top of a running TunnelManager
func NewTunnelController(manager *services.TunnelManager, logs *services.TunnelLogBuffer, binaries BinaryProvider) *TunnelController {
	return &TunnelController{
		manager:  manager,
		logs:     logs,
		binaries: binaries,
	}
}

func tunnelIdParam(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		badRequest(c, "Invalid tunnel id parameter")
		return 0, false
	}
	return id, true
}

// CreateTunnel starts a tunnel client
//
//	@Summary		Start tunnel
//	@Description	Start the tunnel client for a tunnel id, installing the client first when missing
//	@Tags			Tunnels
//	@Accept			json
//	@Produce		json
//	@Param			body	body		models.CreateTunnelRequest	true	"Create tunnel request parameters"
//	@Success		200		{object}	models.TunnelResponse		"Tunnel started"
//	@Failure		400		{object}	models.ErrorResponse		"Invalid parameter error response"
//	@Failure		409		{object}	models.ErrorResponse		"Tunnel already running"
//	@Failure		500		{object}	models.ErrorResponse		"Tunnel start failure error response"
//	@Router			/kairo/api/v1/tunnels [post]
func (tc *TunnelController) CreateTunnel(c *gin.Context) {
	var req models.CreateTunnelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request parameters")
		return
	}

	bin, err := tc.binaries.Ensure(c.Request.Context(), nil, nil)
	if err != nil {
		respondError(c, err)
		return
	}

	pid, err := tc.manager.Start(req.TunnelId, bin.AbsolutePath, req.Token)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, &models.TunnelResponse{
		TunnelId: req.TunnelId,
		Pid:      pid,
		Status:   string(models.StatusRunning),
		Message:  fmt.Sprintf("Successfully started tunnel %d", req.TunnelId),
	})
}

// DeleteTunnel stops one tunnel
//
//	@Summary		Stop tunnel
//	@Tags			Tunnels
//	@Produce		json
//	@Param			id	path		int						true	"Tunnel id"
//	@Success		200	{object}	models.TunnelResponse	"Tunnel stopped"
//	@Failure		404	{object}	models.ErrorResponse	"Tunnel not running"
//	@Router			/kairo/api/v1/tunnels/{id} [delete]
func (tc *TunnelController) DeleteTunnel(c *gin.Context) {
	id, ok := tunnelIdParam(c)
	if !ok {
		return
	}
	if !tc.manager.Stop(id) {
		respondError(c, fmt.Errorf("%w: %d", models.ErrTunnelNotFound, id))
		return
	}

	c.JSON(http.StatusOK, &models.TunnelResponse{
		TunnelId: id,
		Status:   string(models.StatusStopped),
		Message:  fmt.Sprintf("Successfully stopped tunnel %d", id),
	})
}

// DeleteAllTunnels stops every running tunnel
//
//	@Summary		Stop all tunnels
//	@Tags			Tunnels
//	@Produce		json
//	@Success		200	{object}	models.StopAllResponse
//	@Router			/kairo/api/v1/tunnels [delete]
func (tc *TunnelController) DeleteAllTunnels(c *gin.Context) {
	c.JSON(http.StatusOK, &models.StopAllResponse{Stopped: tc.manager.StopAll()})
}

// ListTunnels lists all running tunnels
//
//	@Summary		List all tunnels
//	@Tags			Tunnels
//	@Produce		json
//	@Success		200	{array}		models.TunnelRecord	"Tunnel list response"
//	@Router			/kairo/api/v1/tunnels [get]
func (tc *TunnelController) ListTunnels(c *gin.Context) {
	c.JSON(http.StatusOK, tc.manager.List())
}

// GetTunnelInfo gets details of a running tunnel
//
//	@Summary		Get tunnel info
//	@Tags			Tunnels
//	@Produce		json
//	@Param			id	path		int						true	"Tunnel id"
//	@Success		200	{object}	models.TunnelRecord		"Tunnel details response"
//	@Failure		404	{object}	models.ErrorResponse	"Tunnel not found error response"
//	@Router			/kairo/api/v1/tunnels/{id} [get]
func (tc *TunnelController) GetTunnelInfo(c *gin.Context) {
	id, ok := tunnelIdParam(c)
	if !ok {
		return
	}
	rec, err := tc.manager.Get(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// GetTunnelLogs returns the retained output lines of a tunnel
//
//	@Summary		Tunnel logs
//	@Description	Recent output lines of a tunnel, oldest first. Lines survive the process exit.
//	@Tags			Tunnels
//	@Produce		json
//	@Param			id		path		int		true	"Tunnel id"
//	@Param			tail	query		int		false	"Only the last N lines"
//	@Success		200		{array}		models.LogLine
//	@Router			/kairo/api/v1/tunnels/{id}/logs [get]
func (tc *TunnelController) GetTunnelLogs(c *gin.Context) {
	id, ok := tunnelIdParam(c)
	if !ok {
		return
	}
	lines := tc.logs.Lines(id)
	if tail, err := strconv.Atoi(c.Query("tail")); err == nil && tail >= 0 && tail < len(lines) {
		lines = lines[len(lines)-tail:]
	}
	c.JSON(http.StatusOK, lines)
}

/**
* Register all tunnel-related routes to Gin engine
* @param {*gin.Engine} r - Gin router instance
* @description
* - POST /kairo/api/v1/tunnels, start a tunnel
* - GET /kairo/api/v1/tunnels, list running tunnels
* - DELETE /kairo/api/v1/tunnels, stop all
* - GET|DELETE /kairo/api/v1/tunnels/{id}
* - GET /kairo/api/v1/tunnels/{id}/logs
 */
func (tc *TunnelController) RegisterRoutes(r *gin.Engine) {
	tunnelAPI := r.Group("/kairo/api/v1")
	{
		// 隧道管理接口
		tunnels := tunnelAPI.Group("/tunnels")
		{
			tunnels.POST("", tc.CreateTunnel)
			tunnels.GET("", tc.ListTunnels)
			tunnels.DELETE("", tc.DeleteAllTunnels)
			tunnels.GET("/:id", tc.GetTunnelInfo)
			tunnels.DELETE("/:id", tc.DeleteTunnel)
			tunnels.GET("/:id/logs", tc.GetTunnelLogs)
		}
	}
}
