package service

import (
	"go.uber.org/zap"

	"imhere/backend/internal/repository"
	"imhere/backend/pkg/jwt"
)

// Service 所有 Service 的聚合入口
type Service struct {
	Auth       AuthService
	User       UserService
	Course     CourseService
	Roster     RosterService
	Attendance AttendanceService
	Export     ExportService
}

// NewService 创建 Service 聚合
//
// blacklist 与 limiter 依赖 Redis，Redis 不可用时传 nil，相关能力自动降级。
func NewService(
	repo *repository.Repository,
	jwtMgr *jwt.Manager,
	blacklist TokenBlacklist,
	limiter SignInLimiter,
	logger *zap.Logger,
) *Service {
	userSvc := NewUserService(repo, logger)
	return &Service{
		Auth:       NewAuthService(userSvc, jwtMgr, blacklist, logger),
		User:       userSvc,
		Course:     NewCourseService(repo, logger),
		Roster:     NewRosterService(repo, logger),
		Attendance: NewAttendanceService(repo, limiter, logger),
		Export:     NewExportService(repo, logger),
	}
}
