package handler

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"regdesk/internal/service"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ExportHandler 导出模块 HTTP 处理器
type ExportHandler struct {
	exportSvc service.ExportService
}

// NewExportHandler 创建 ExportHandler
func NewExportHandler(exportSvc service.ExportService) *ExportHandler {
	return &ExportHandler{exportSvc: exportSvc}
}

// ExportPending 导出待审批申请
// GET /api/v1/requests/export
func (h *ExportHandler) ExportPending(c *gin.Context) {
	buf, filename, err := h.exportSvc.ExportPending(c.Request.Context(), CurrentActor(c))
	if err != nil {
		handleServiceError(c, err)
		return
	}

	// 设置下载响应头
	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+url.PathEscape(filename))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}
