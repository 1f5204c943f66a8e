package middleware

import (
	"context"
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"imhere/backend/internal/model"
	"imhere/backend/internal/service"
	"imhere/backend/pkg/response"
)

// ContextCourse 已解析的课程
const ContextCourse = "course"

// CourseLookup 课程解析与授课关系查询，由 service.CourseService 实现
type CourseLookup interface {
	GetByID(ctx context.Context, courseID uint) (*model.Course, error)
	TeachesCourse(ctx context.Context, teacherID, courseID uint) (bool, error)
}

// CourseContext 解析路径参数 :id 对应的课程并注入上下文，不存在时返回 404
func CourseContext(courses CourseLookup, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil || id == 0 {
			response.BadRequest(c, 10001, "课程 ID 无效")
			c.Abort()
			return
		}

		course, err := courses.GetByID(c.Request.Context(), uint(id))
		if err != nil {
			if errors.Is(err, service.ErrCourseNotFound) {
				response.NotFound(c, 12001, "课程不存在")
			} else {
				logger.Error("解析课程失败", zap.Uint64("course_id", id), zap.Error(err))
				response.InternalError(c)
			}
			c.Abort()
			return
		}

		c.Set(ContextCourse, course)
		c.Next()
	}
}

// CourseTeacher 要求当前用户讲授该课程，须挂在 JWTAuth 与 CourseContext 之后
func CourseTeacher(courses CourseLookup, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := c.Get(ContextUserID)
		if !ok {
			response.Unauthorized(c, 10002, "未认证")
			c.Abort()
			return
		}
		v, ok := c.Get(ContextCourse)
		if !ok {
			response.InternalError(c)
			c.Abort()
			return
		}
		course := v.(*model.Course)

		teaches, err := courses.TeachesCourse(c.Request.Context(), userID.(uint), course.CourseID)
		if err != nil {
			logger.Error("查询授课关系失败", zap.Uint("course_id", course.CourseID), zap.Error(err))
			response.InternalError(c)
			c.Abort()
			return
		}
		if !teaches {
			response.Forbidden(c, 12004, "无权管理该课程")
			c.Abort()
			return
		}

		c.Next()
	}
}
