package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"imhere/backend/internal/api/middleware"
	"imhere/backend/internal/model"
	"imhere/backend/pkg/response"
)

// MustGetUserID 从 Gin 上下文中安全提取 user_id。
// 如果 JWT 中间件未正确注入 user_id，返回 false 并写入 401 响应。
// 调用方应在 ok=false 时直接 return。
func MustGetUserID(c *gin.Context) (uint, bool) {
	v, exists := c.Get(middleware.ContextUserID)
	if !exists {
		response.Unauthorized(c, 10002, "未认证")
		return 0, false
	}
	id, ok := v.(uint)
	if !ok || id == 0 {
		response.Unauthorized(c, 10002, "未认证")
		return 0, false
	}
	return id, true
}

// MustGetCourse 提取 CourseContext 中间件解析出的课程
func MustGetCourse(c *gin.Context) (*model.Course, bool) {
	v, exists := c.Get(middleware.ContextCourse)
	if !exists {
		response.InternalError(c)
		return nil, false
	}
	course, ok := v.(*model.Course)
	if !ok || course == nil {
		response.InternalError(c)
		return nil, false
	}
	return course, true
}

// tokenInfo 当前 Access Token 的 JTI 与过期时间，登出时使用
func tokenInfo(c *gin.Context) (string, time.Time) {
	jti := c.GetString(middleware.ContextTokenJTI)
	exp, _ := c.Get(middleware.ContextTokenExp)
	expiresAt, _ := exp.(time.Time)
	return jti, expiresAt
}

// parseIDParam 解析路径中的正整数 ID，非法时写入 400
func parseIDParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		response.BadRequest(c, 10001, name+" 无效")
		return 0, false
	}
	return uint(id), true
}
