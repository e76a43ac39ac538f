package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"credit-risk-backend/internal/service"
)

type TrainRequest struct {
	RequestID string `json:"request_id"`
}

// TrainModels 创建后台训练任务
func (h *Handler) TrainModels(c *gin.Context) {
	var req TrainRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "请求参数错误: " + err.Error()})
			return
		}
	}
	if req.RequestID == "" {
		req.RequestID = c.GetHeader("X-Request-ID")
	}

	status, created := h.tasks.Create(service.TriggerManual, req.RequestID)
	code := http.StatusAccepted
	if !created {
		code = http.StatusOK
	}
	c.JSON(code, gin.H{
		"created": created,
		"task":    status,
	})
}

func (h *Handler) GetTrainTask(c *gin.Context) {
	taskID := c.Param("task_id")
	if taskID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少task_id"})
		return
	}

	status, ok := h.tasks.Get(taskID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "任务不存在或已过期"})
		return
	}

	c.JSON(http.StatusOK, status)
}

func (h *Handler) CancelTrainTask(c *gin.Context) {
	taskID := c.Param("task_id")
	if taskID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少task_id"})
		return
	}

	status, ok := h.tasks.Cancel(taskID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "任务不存在或已过期"})
		return
	}

	c.JSON(http.StatusOK, status)
}
