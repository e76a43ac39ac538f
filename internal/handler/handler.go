// Package handler HTTP 接口
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"credit-risk-backend/internal/ensemble"
	"credit-risk-backend/internal/service"
	"credit-risk-backend/internal/statement"
)

// Handler 持有各服务
type Handler struct {
	models         *service.ModelService
	evaluator      *service.EvaluationService
	tasks          *service.TrainTasks
	auth           *Auth
	maxUploadBytes int64
}

// New maxUploadMB<=0 时默认10MB
func New(models *service.ModelService, evaluator *service.EvaluationService, tasks *service.TrainTasks, auth *Auth, maxUploadMB int) *Handler {
	if maxUploadMB <= 0 {
		maxUploadMB = 10
	}
	return &Handler{
		models:         models,
		evaluator:      evaluator,
		tasks:          tasks,
		auth:           auth,
		maxUploadBytes: int64(maxUploadMB) << 20,
	}
}

// Register 注册路由
func (h *Handler) Register(r gin.IRouter) {
	api := r.Group("/api")
	{
		api.GET("/health", h.Health)
		api.GET("/risk-bands", h.RiskBands)
		api.POST("/upload-financial-report", h.UploadFinancialReport)
		api.POST("/evaluate", h.Evaluate)
		api.POST("/auth/token", h.auth.IssueToken)
		api.GET("/models/status", h.ModelStatus)
	}

	admin := api.Group("/models")
	admin.Use(h.auth.Middleware())
	{
		admin.POST("/train", h.TrainModels)
		admin.GET("/train/:task_id", h.GetTrainTask)
		admin.DELETE("/train/:task_id", h.CancelTrainTask)
	}
}

// errorStatus 业务错误 -> HTTP 状态码
func errorStatus(err error) int {
	switch {
	case errors.Is(err, statement.ErrMissingStatement):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ensemble.ErrModelNotReady):
		return http.StatusServiceUnavailable
	case errors.Is(err, statement.ErrBadWorkbook):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func abortWithError(c *gin.Context, err error) {
	c.JSON(errorStatus(err), gin.H{
		"success": false,
		"error":   err.Error(),
	})
}
