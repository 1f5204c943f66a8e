package handler

import (
	"github.com/gin-gonic/gin"

	"imhere/backend/internal/dto"
	"imhere/backend/internal/service"
	"imhere/backend/pkg/response"
)

// CourseHandler 课程模块 HTTP 处理器
type CourseHandler struct {
	courseSvc service.CourseService
}

// NewCourseHandler 创建 CourseHandler
func NewCourseHandler(courseSvc service.CourseService) *CourseHandler {
	return &CourseHandler{courseSvc: courseSvc}
}

// CreateCourse 教师创建课程
// POST /api/v1/courses
func (h *CourseHandler) CreateCourse(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.CreateCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleBindError(c, err)
		return
	}

	course, err := h.courseSvc.Create(c.Request.Context(), userID, &req)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.Created(c, course)
}

// GetCourse 教师课程视图：开放中的签到码、窗口数与名单人数
// GET /api/v1/courses/:id
func (h *CourseHandler) GetCourse(c *gin.Context) {
	course, ok := MustGetCourse(c)
	if !ok {
		return
	}

	overview, err := h.courseSvc.GetOverview(c.Request.Context(), course.CourseID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, overview)
}

// DeleteCourse 删除课程及其全部考勤数据
// DELETE /api/v1/courses/:id
func (h *CourseHandler) DeleteCourse(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	course, ok := MustGetCourse(c)
	if !ok {
		return
	}

	if err := h.courseSvc.Remove(c.Request.Context(), userID, course.CourseID); err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, nil)
}
