package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"imhere/backend/internal/service"
	pkgerrors "imhere/backend/pkg/errors"
	"imhere/backend/pkg/response"
)

// errorCodes 业务错误码
// 100xx 通用 | 110xx 用户 | 120xx 课程 | 121xx 名单 | 130xx 考勤 | 161xx 导出
var errorCodes = []struct {
	err  error
	code int
}{
	{pkgerrors.ErrOptimisticLock, 10006},

	{service.ErrUserNotFound, 11001},
	{service.ErrEmailRequired, 11002},
	{service.ErrInvalidUNI, 11003},
	{service.ErrDuplicateUNI, 11004},
	{service.ErrNothingToRegister, 11005},
	{service.ErrNotAStudent, 11006},

	{service.ErrCourseNotFound, 12001},
	{service.ErrCourseNameRequired, 12002},
	{service.ErrNotATeacher, 12003},
	{service.ErrNotCourseTeacher, 12004},

	{service.ErrRosterEmpty, 12101},
	{service.ErrRosterTooLarge, 12102},
	{service.ErrRosterFileFormat, 12103},

	{service.ErrNotInCourse, 13001},
	{service.ErrStudentNotInCourse, 13002},
	{service.ErrTANotInCourse, 13003},
	{service.ErrNoOpenSession, 13004},
	{service.ErrAlreadySignedIn, 13005},
	{service.ErrTooManyAttempts, 13006},
	{service.ErrSessionNotFound, 13007},
	{service.ErrAmbiguousRecordFilter, 13008},
	{service.ErrSessionIDRequired, 13009},
	{service.ErrAttendedRequired, 13010},
	{service.ErrInvalidRosterRole, 13011},

	{service.ErrExportNoSessions, 16101},
}

// handleServiceError 将 Service 错误映射为 HTTP 响应
// HTTP 状态由错误分类决定，业务码由具体哨兵错误决定
func handleServiceError(c *gin.Context, err error) {
	kind := pkgerrors.KindOf(err)
	if kind == pkgerrors.KindInternal {
		_ = c.Error(err)
		response.InternalError(c)
		return
	}

	code := 10001
	for _, e := range errorCodes {
		if errors.Is(err, e.err) {
			code = e.code
			break
		}
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrTooManyAttempts):
		status = http.StatusTooManyRequests
	case kind == pkgerrors.KindNotFound:
		status = http.StatusNotFound
	case kind == pkgerrors.KindValidation:
		status = http.StatusBadRequest
	case kind == pkgerrors.KindPermissionDenied:
		status = http.StatusForbidden
	case kind == pkgerrors.KindStateConflict, kind == pkgerrors.KindDomainConflict:
		status = http.StatusConflict
	}

	response.Error(c, status, code, err.Error())
}

// handleBindError 请求体绑定失败：超出大小限制时返回 413，其余为 400
func handleBindError(c *gin.Context, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		response.Error(c, http.StatusRequestEntityTooLarge, 10005, "请求体过大")
		return
	}
	response.BadRequest(c, 10001, "参数校验失败")
}
