package controllers

import (
	"net/http"
	"time"

	"kairo-keeper/internal/config"
	"kairo-keeper/internal/models"
	"kairo-keeper/services"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Version is stamped by cmd at startup.
var Version = "dev"

type APIController struct {
	binaries  BinaryProvider
	startTime time.Time
}

/**
 * Create new API controller instance
 * @param {BinaryProvider} binaries - Installed binary lookup for /healthz
 * @returns {*APIController} New API controller instance
 * @example
 * controller := controllers.NewAPIController(binaryService)
 * controller.RegisterRoutes(router)
 */
func NewAPIController(binaries BinaryProvider) *APIController {
	return &APIController{
		binaries:  binaries,
		startTime: time.Now(),
	}
}

/**
 * Register all API routes to Gin engine
 * @param {*gin.Engine} r - Gin router instance
 * @description
 * - POST /kairo/api/v1/reload
 * - GET /healthz
 * - GET /metrics (prometheus exposition)
 */
func (a *APIController) RegisterRoutes(r *gin.Engine) {
	r.POST("/kairo/api/v1/reload", a.ReloadConfig)
	r.GET("/healthz", a.Healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// @Summary 重新加载配置
// @Description 重新加载应用配置文件
// @Tags Config
// @Success 200 {object} map[string]interface{}
// @Failure 500 {object} models.ErrorResponse
// @Router /kairo/api/v1/reload [post]
func (a *APIController) ReloadConfig(c *gin.Context) {
	if err := config.ReloadConfig(); err != nil {
		c.JSON(http.StatusInternalServerError, &models.ErrorResponse{
			Code:  "config.reload_failed",
			Error: "Failed to reload configuration: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "Configuration reloaded successfully",
	})
}

// @Summary 业务就绪探针
// @Description 返回服务版本、启动时间、健康状态和关键指标统计结果
// @Tags System
// @Produce json
// @Success 200 {object} models.HealthResponse
// @Router /healthz [get]
func (a *APIController) Healthz(c *gin.Context) {
	installed := false
	if a.binaries != nil {
		_, installed = a.binaries.Installed()
	}
	c.JSON(http.StatusOK, &models.HealthResponse{
		Version:   Version,
		StartTime: a.startTime.Format(time.RFC3339),
		Status:    "UP",
		Uptime:    time.Since(a.startTime).Round(time.Second).String(),
		Metrics: models.Metrics{
			TotalRequests:   services.GetTotalRequestCount(),
			ErrorRequests:   services.GetTotalErrorCount(),
			ActiveTunnels:   services.GetTunnelsRunning(),
			BinaryInstalled: installed,
		},
	})
}
