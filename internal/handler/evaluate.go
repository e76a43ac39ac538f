package handler

import (
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"credit-risk-backend/internal/model"
	"credit-risk-backend/internal/risk"
	"credit-risk-backend/internal/service"
)

// Health 健康检查
func (h *Handler) Health(c *gin.Context) {
	st := h.models.Status()
	c.JSON(http.StatusOK, gin.H{
		"status":         "healthy",
		"timestamp":      time.Now(),
		"models_trained": st.Ready,
		"trained_at":     st.TrainedAt,
	})
}

// ModelStatus 模型状态与留出集指标
func (h *Handler) ModelStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.models.Status())
}

// RiskBands 五级风险等级
func (h *Handler) RiskBands(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"bands": risk.Bands()})
}

// UploadFinancialReport 上传 Excel（CDKT / BCTN / LCTT 三个工作表）并评估
func (h *Handler) UploadFinancialReport(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+(1<<20))

	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "请上传文件"})
		return
	}
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if ext != ".xlsx" && ext != ".xls" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "文件必须是Excel（.xlsx 或 .xls）"})
		return
	}
	if file.Size > h.maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"success": false, "error": "文件过大"})
		return
	}

	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "读取文件失败: " + err.Error()})
		return
	}
	defer f.Close()

	ev, err := h.evaluator.EvaluateWorkbook(f, strings.TrimSpace(c.PostForm("company_name")))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.EvaluateResponse{Success: true, Evaluation: ev, Message: "计算成功"})
}

// Evaluate JSON 方式提交三张报表
func (h *Handler) Evaluate(c *gin.Context) {
	var req model.EvaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "请求参数错误: " + err.Error(),
		})
		return
	}

	ev, err := h.evaluator.Evaluate(req.Statements, strings.TrimSpace(req.CompanyName), service.SourceJSON)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.EvaluateResponse{Success: true, Evaluation: ev, Message: "计算成功"})
}
