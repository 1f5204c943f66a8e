package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"imhere/backend/internal/dto"
	"imhere/backend/internal/service"
	"imhere/backend/pkg/response"
)

// maxRosterFileSize 名单 Excel 文件大小上限
const maxRosterFileSize = 2 << 20

// RosterHandler 课程名单（学生 / 助教）HTTP 处理器
type RosterHandler struct {
	rosterSvc service.RosterService
	userSvc   service.UserService
}

// NewRosterHandler 创建 RosterHandler
func NewRosterHandler(rosterSvc service.RosterService, userSvc service.UserService) *RosterHandler {
	return &RosterHandler{rosterSvc: rosterSvc, userSvc: userSvc}
}

type (
	listFunc   func(ctx context.Context, courseID uint) ([]dto.RosterMemberResponse, error)
	memberFunc func(ctx context.Context, courseID, userID uint) error
	bulkFunc   func(ctx context.Context, courseID uint, entries []service.RosterEntry) (*dto.RosterImportResponse, error)
)

// ── 学生 ──

// ListStudents GET /api/v1/courses/:id/students
func (h *RosterHandler) ListStudents(c *gin.Context) { h.list(c, h.rosterSvc.ListStudents) }

// AddStudent POST /api/v1/courses/:id/students
func (h *RosterHandler) AddStudent(c *gin.Context) { h.add(c, h.rosterSvc.AddStudent) }

// RemoveStudent DELETE /api/v1/courses/:id/students/:uid
func (h *RosterHandler) RemoveStudent(c *gin.Context) { h.remove(c, h.rosterSvc.RemoveStudent) }

// BulkAddStudents POST /api/v1/courses/:id/students/bulk
func (h *RosterHandler) BulkAddStudents(c *gin.Context) { h.bulk(c, h.rosterSvc.AddStudentsByUNIs) }

// ImportStudents POST /api/v1/courses/:id/students/import
func (h *RosterHandler) ImportStudents(c *gin.Context) {
	h.importFile(c, h.rosterSvc.AddStudentsByUNIs)
}

// ── 助教 ──

// ListTAs GET /api/v1/courses/:id/tas
func (h *RosterHandler) ListTAs(c *gin.Context) { h.list(c, h.rosterSvc.ListTAs) }

// AddTA POST /api/v1/courses/:id/tas
func (h *RosterHandler) AddTA(c *gin.Context) { h.add(c, h.rosterSvc.AddTA) }

// RemoveTA DELETE /api/v1/courses/:id/tas/:uid
func (h *RosterHandler) RemoveTA(c *gin.Context) { h.remove(c, h.rosterSvc.RemoveTA) }

// BulkAddTAs POST /api/v1/courses/:id/tas/bulk
func (h *RosterHandler) BulkAddTAs(c *gin.Context) { h.bulk(c, h.rosterSvc.AddTAsByUNIs) }

// ImportTAs POST /api/v1/courses/:id/tas/import
func (h *RosterHandler) ImportTAs(c *gin.Context) { h.importFile(c, h.rosterSvc.AddTAsByUNIs) }

// ── 内部实现 ──

func (h *RosterHandler) list(c *gin.Context, fn listFunc) {
	course, ok := MustGetCourse(c)
	if !ok {
		return
	}

	members, err := fn(c.Request.Context(), course.CourseID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, gin.H{"list": members})
}

func (h *RosterHandler) add(c *gin.Context, fn memberFunc) {
	course, ok := MustGetCourse(c)
	if !ok {
		return
	}

	var req dto.RosterMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleBindError(c, err)
		return
	}
	if req.UserID == nil && req.UNI == "" {
		response.BadRequest(c, 10001, "user_id 与 uni 至少提供一个")
		return
	}

	user, err := h.userSvc.Resolve(c.Request.Context(), &dto.UserQuery{ID: req.UserID, UNI: req.UNI})
	if err != nil {
		handleServiceError(c, err)
		return
	}

	if err := fn(c.Request.Context(), course.CourseID, user.UserID); err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, nil)
}

func (h *RosterHandler) remove(c *gin.Context, fn memberFunc) {
	course, ok := MustGetCourse(c)
	if !ok {
		return
	}
	userID, ok := parseIDParam(c, "uid")
	if !ok {
		return
	}

	if err := fn(c.Request.Context(), course.CourseID, userID); err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, nil)
}

func (h *RosterHandler) bulk(c *gin.Context, fn bulkFunc) {
	course, ok := MustGetCourse(c)
	if !ok {
		return
	}

	var req dto.RosterBulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleBindError(c, err)
		return
	}

	result, err := fn(c.Request.Context(), course.CourseID, service.ParseUNIList(req.UNIs))
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, result)
}

func (h *RosterHandler) importFile(c *gin.Context, fn bulkFunc) {
	course, ok := MustGetCourse(c)
	if !ok {
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		handleBindError(c, err)
		return
	}
	if fileHeader.Size > maxRosterFileSize {
		response.BadRequest(c, 12104, "文件大小不能超过 2MB")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.BadRequest(c, 12103, "无法读取上传文件")
		return
	}
	defer file.Close()

	entries, err := h.rosterSvc.ParseRosterFile(file)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	result, err := fn(c.Request.Context(), course.CourseID, entries)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, result)
}
