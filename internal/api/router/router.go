package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"imhere/backend/config"
	"imhere/backend/internal/api/handler"
	"imhere/backend/internal/api/middleware"
	"imhere/backend/pkg/jwt"
	"imhere/backend/pkg/redis"
)

// Deps 路由依赖
type Deps struct {
	Config  *config.Config
	Handler *handler.Handler
	Courses middleware.CourseLookup
	JWT     *jwt.Manager
	Redis   *redis.Client // 可为 nil
	DB      *gorm.DB      // 健康检查用，可为 nil
	Logger  *zap.Logger
}

// Setup 初始化并返回 Gin 路由引擎
func Setup(d Deps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	cfg, h, logger := d.Config, d.Handler, d.Logger
	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.BodyLimit(cfg.Server.MaxBodyBytes))

	// ── 健康检查 ──
	r.GET("/health", func(c *gin.Context) {
		if d.DB != nil {
			sqlDB, err := d.DB.DB()
			if err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db_unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	{
		// 身份代理换取 Token（无需 JWT）
		v1.POST("/auth/session", middleware.IdentityProxy(cfg.Auth.IdentityProxySecret), h.Auth.Session)

		authorized := v1.Group("")
		authorized.Use(middleware.JWTAuth(d.JWT, d.Redis, logger))
		{
			authorized.POST("/auth/logout", h.Auth.Logout)

			// 当前用户
			me := authorized.Group("/me")
			{
				me.GET("", h.User.GetCurrentUser)
				me.POST("/register", h.User.Register)
				me.GET("/courses", h.User.ListMyCourses)
			}

			authorized.POST("/courses", h.Course.CreateCourse)

			course := authorized.Group("/courses/:id")
			course.Use(middleware.CourseContext(d.Courses, logger))
			{
				// 学生 / 助教
				course.GET("/session", h.Attendance.GetSessionStatus)
				course.POST("/signin",
					middleware.RateLimit(d.Redis, cfg.Attendance.SignInRateLimit, cfg.Attendance.SignInRateWindow),
					h.Attendance.SignIn)
				course.GET("/my-attendance", h.Attendance.GetMyAttendance)

				// 教师
				teacher := course.Group("")
				teacher.Use(middleware.CourseTeacher(d.Courses, logger))
				{
					teacher.GET("", h.Course.GetCourse)
					teacher.DELETE("", h.Course.DeleteCourse)

					teacher.GET("/students", h.Roster.ListStudents)
					teacher.POST("/students", h.Roster.AddStudent)
					teacher.POST("/students/bulk", h.Roster.BulkAddStudents)
					teacher.POST("/students/import", h.Roster.ImportStudents)
					teacher.DELETE("/students/:uid", h.Roster.RemoveStudent)

					teacher.GET("/tas", h.Roster.ListTAs)
					teacher.POST("/tas", h.Roster.AddTA)
					teacher.POST("/tas/bulk", h.Roster.BulkAddTAs)
					teacher.POST("/tas/import", h.Roster.ImportTAs)
					teacher.DELETE("/tas/:uid", h.Roster.RemoveTA)

					teacher.POST("/session/open", h.Attendance.OpenSession)
					teacher.POST("/session/close", h.Attendance.CloseSession)
					teacher.GET("/sessions", h.Attendance.ListSessions)

					teacher.GET("/records", h.Attendance.ListRecords)
					teacher.GET("/summary", h.Attendance.GetSummary)
					teacher.GET("/attendance/:uid", h.Attendance.GetAttendance)
					teacher.PUT("/attendance/:uid", h.Attendance.EditAttendance)

					teacher.GET("/export/xlsx", h.Export.ExportAttendance)
					teacher.GET("/export/ics", h.Export.ExportCalendar)
				}
			}
		}
	}

	return r
}
