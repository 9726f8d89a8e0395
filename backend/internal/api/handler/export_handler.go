package handler

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"contract-tracker/backend/internal/service"
	"contract-tracker/backend/pkg/response"
)

const (
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypeICS  = "text/calendar; charset=utf-8"
)

// ExportHandler 导出模块 HTTP 处理器
type ExportHandler struct {
	exportSvc service.ExportService
}

// NewExportHandler 创建 ExportHandler
func NewExportHandler(exportSvc service.ExportService) *ExportHandler {
	return &ExportHandler{exportSvc: exportSvc}
}

// ExportSchedule 导出项目进度表
// GET /api/v1/projects/:id/export/schedule?format=xlsx|ics
func (h *ExportHandler) ExportSchedule(c *gin.Context) {
	projectID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var (
		export      func(context.Context, int64) (*bytes.Buffer, string, error)
		contentType string
	)
	switch c.DefaultQuery("format", "xlsx") {
	case "xlsx":
		export, contentType = h.exportSvc.ExportScheduleXLSX, contentTypeXLSX
	case "ics":
		export, contentType = h.exportSvc.ExportScheduleICS, contentTypeICS
	default:
		response.BadRequest(c, 10001, "format 仅支持 xlsx 或 ics")
		return
	}

	buf, filename, err := export(c.Request.Context(), projectID)
	if err != nil {
		h.handleExportError(c, err)
		return
	}

	// 设置下载响应头
	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+url.QueryEscape(filename))
	c.Data(http.StatusOK, contentType, buf.Bytes())
}

func (h *ExportHandler) handleExportError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrProjectNotFound):
		response.NotFound(c, 30001, "项目不存在")
	case errors.Is(err, service.ErrExportNoMilestones):
		response.BadRequest(c, 35001, "该项目暂无里程碑")
	default:
		response.InternalError(c)
	}
}
