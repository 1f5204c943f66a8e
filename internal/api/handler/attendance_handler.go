package handler

import (
	"github.com/gin-gonic/gin"

	"imhere/backend/internal/dto"
	"imhere/backend/internal/service"
	"imhere/backend/pkg/response"
)

// AttendanceHandler 考勤模块 HTTP 处理器
type AttendanceHandler struct {
	attendanceSvc service.AttendanceService
}

// NewAttendanceHandler 创建 AttendanceHandler
func NewAttendanceHandler(attendanceSvc service.AttendanceService) *AttendanceHandler {
	return &AttendanceHandler{attendanceSvc: attendanceSvc}
}

// ────────────────────── 考勤窗口（教师） ──────────────────────

// OpenSession 开放考勤窗口，返回签到码
// POST /api/v1/courses/:id/session/open
func (h *AttendanceHandler) OpenSession(c *gin.Context) {
	course, ok := MustGetCourse(c)
	if !ok {
		return
	}

	secret, err := h.attendanceSvc.OpenSession(c.Request.Context(), course.CourseID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, dto.OpenSessionResponse{Secret: secret})
}

// CloseSession 关闭考勤窗口
// POST /api/v1/courses/:id/session/close
func (h *AttendanceHandler) CloseSession(c *gin.Context) {
	course, ok := MustGetCourse(c)
	if !ok {
		return
	}

	if err := h.attendanceSvc.CloseSession(c.Request.Context(), course.CourseID); err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, nil)
}

// ListSessions 课程全部考勤窗口
// GET /api/v1/courses/:id/sessions
func (h *AttendanceHandler) ListSessions(c *gin.Context) {
	course, ok := MustGetCourse(c)
	if !ok {
		return
	}

	sessions, err := h.attendanceSvc.ListSessions(c.Request.Context(), course.CourseID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, gin.H{"list": sessions})
}

// ────────────────────── 签到（学生 / 助教） ──────────────────────

// GetSessionStatus 当前是否有开放窗口以及本人是否已签到
// GET /api/v1/courses/:id/session
func (h *AttendanceHandler) GetSessionStatus(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	course, ok := MustGetCourse(c)
	if !ok {
		return
	}

	open, err := h.attendanceSvc.GetOpenSession(c.Request.Context(), course.CourseID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	signedIn, err := h.attendanceSvc.CurrentlySignedIn(c.Request.Context(), course.CourseID, userID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, gin.H{"open": open != nil, "signed_in": signedIn})
}

// SignIn 签到；签到码错误时 signed_in 为 false
// POST /api/v1/courses/:id/signin
func (h *AttendanceHandler) SignIn(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	course, ok := MustGetCourse(c)
	if !ok {
		return
	}

	var req dto.SignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleBindError(c, err)
		return
	}

	signedIn, err := h.attendanceSvc.SignIn(c.Request.Context(), course.CourseID, userID, req.Secret)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, dto.SignInResponse{SignedIn: signedIn})
}

// GetMyAttendance 本人在该课程每个窗口的出勤情况
// GET /api/v1/courses/:id/my-attendance
func (h *AttendanceHandler) GetMyAttendance(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	h.details(c, userID)
}

// ────────────────────── 记录查询与修改（教师） ──────────────────────

// ListRecords 签到记录，可按 student_id 或 ta_id 过滤
// GET /api/v1/courses/:id/records
func (h *AttendanceHandler) ListRecords(c *gin.Context) {
	course, ok := MustGetCourse(c)
	if !ok {
		return
	}

	var filter dto.RecordFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	records, err := h.attendanceSvc.GetAttendanceRecords(c.Request.Context(), course.CourseID, &filter)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, gin.H{"list": records})
}

// GetAttendance 指定用户的出勤明细
// GET /api/v1/courses/:id/attendance/:uid
func (h *AttendanceHandler) GetAttendance(c *gin.Context) {
	userID, ok := parseIDParam(c, "uid")
	if !ok {
		return
	}
	h.details(c, userID)
}

// EditAttendance 修改历史出勤
// PUT /api/v1/courses/:id/attendance/:uid
func (h *AttendanceHandler) EditAttendance(c *gin.Context) {
	course, ok := MustGetCourse(c)
	if !ok {
		return
	}
	userID, ok := parseIDParam(c, "uid")
	if !ok {
		return
	}

	var req dto.EditAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleBindError(c, err)
		return
	}
	req.UserID = userID

	if err := h.attendanceSvc.EditAttendanceHistory(c.Request.Context(), course.CourseID, &req); err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, nil)
}

// GetSummary 每位学生的累计出勤
// GET /api/v1/courses/:id/summary
func (h *AttendanceHandler) GetSummary(c *gin.Context) {
	course, ok := MustGetCourse(c)
	if !ok {
		return
	}

	summary, err := h.attendanceSvc.GetRosterSummary(c.Request.Context(), course.CourseID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, gin.H{"list": summary})
}

func (h *AttendanceHandler) details(c *gin.Context, userID uint) {
	course, ok := MustGetCourse(c)
	if !ok {
		return
	}

	details, err := h.attendanceSvc.GetAttendanceDetails(c.Request.Context(), course.CourseID, userID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, gin.H{"list": details})
}
