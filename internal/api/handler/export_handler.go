package handler

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"imhere/backend/internal/service"
)

const (
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	icsContentType  = "text/calendar; charset=utf-8"
)

// ExportHandler 导出模块 HTTP 处理器
type ExportHandler struct {
	exportSvc service.ExportService
}

// NewExportHandler 创建 ExportHandler
func NewExportHandler(exportSvc service.ExportService) *ExportHandler {
	return &ExportHandler{exportSvc: exportSvc}
}

// ExportAttendance 导出出勤表
// GET /api/v1/courses/:id/export/xlsx
func (h *ExportHandler) ExportAttendance(c *gin.Context) {
	course, ok := MustGetCourse(c)
	if !ok {
		return
	}

	buf, filename, err := h.exportSvc.ExportAttendance(c.Request.Context(), course.CourseID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	attachment(c, filename, xlsxContentType, buf.Bytes())
}

// ExportCalendar 导出考勤窗口日历
// GET /api/v1/courses/:id/export/ics
func (h *ExportHandler) ExportCalendar(c *gin.Context) {
	course, ok := MustGetCourse(c)
	if !ok {
		return
	}

	data, filename, err := h.exportSvc.ExportSessionsICS(c.Request.Context(), course.CourseID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	attachment(c, filename, icsContentType, data)
}

// attachment 以下载方式写出文件
func attachment(c *gin.Context, filename, contentType string, data []byte) {
	// RFC 5987 要求空格编码为 %20
	encodedFilename := strings.ReplaceAll(url.QueryEscape(filename), "+", "%20")
	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+encodedFilename)
	c.Data(http.StatusOK, contentType, data)
}
