package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"imhere/backend/internal/dto"
	"imhere/backend/internal/model"
	"imhere/backend/internal/repository"
	pkgerrors "imhere/backend/pkg/errors"
)

// ── 课程模块业务错误 ──

var (
	ErrCourseNotFound     = pkgerrors.New(pkgerrors.KindNotFound, "课程不存在")
	ErrCourseNameRequired = pkgerrors.New(pkgerrors.KindValidation, "课程名称不能为空")
	ErrNotATeacher        = pkgerrors.New(pkgerrors.KindPermissionDenied, "用户尚未注册为教师")
	ErrNotCourseTeacher   = pkgerrors.New(pkgerrors.KindPermissionDenied, "无权管理该课程")
)

const maxCourseNameLength = 200

// CourseService 课程生命周期业务接口
type CourseService interface {
	Create(ctx context.Context, teacherID uint, req *dto.CreateCourseRequest) (*dto.CourseBrief, error)
	GetByID(ctx context.Context, courseID uint) (*model.Course, error)
	GetOverview(ctx context.Context, courseID uint) (*dto.CourseOverviewResponse, error)
	TeachesCourse(ctx context.Context, teacherID, courseID uint) (bool, error)
	// Remove 教师删除自己讲授的课程；未讲授时为空操作
	Remove(ctx context.Context, teacherID, courseID uint) error
	// Destroy 原子地删除课程及其窗口、签到记录、选课、助教与授课关系
	Destroy(ctx context.Context, courseID uint) error
}

type courseService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewCourseService 创建 CourseService 实例
func NewCourseService(repo *repository.Repository, logger *zap.Logger) CourseService {
	return &courseService{repo: repo, logger: logger}
}

// ────────────────────── Create ──────────────────────

func (s *courseService) Create(ctx context.Context, teacherID uint, req *dto.CreateCourseRequest) (*dto.CourseBrief, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" || len(name) > maxCourseNameLength {
		return nil, ErrCourseNameRequired
	}

	var course *model.Course
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		teacher, err := getUser(ctx, tx, teacherID)
		if err != nil {
			return err
		}
		if !teacher.IsTeacher() {
			return ErrNotATeacher
		}

		course = &model.Course{Name: name}
		if err := tx.Course.Create(ctx, course); err != nil {
			return err
		}
		return tx.Teaching.Create(ctx, &model.Teaching{CourseID: course.CourseID, TeacherID: teacherID})
	})
	if err != nil {
		if pkgerrors.KindOf(err) == pkgerrors.KindInternal {
			s.logger.Error("创建课程失败", zap.Uint("teacher_id", teacherID), zap.Error(err))
		}
		return nil, err
	}

	s.logger.Info("课程已创建", zap.Uint("course_id", course.CourseID), zap.Uint("teacher_id", teacherID))
	return &dto.CourseBrief{ID: course.CourseID, Name: course.Name}, nil
}

// ────────────────────── GetByID ──────────────────────

func (s *courseService) GetByID(ctx context.Context, courseID uint) (*model.Course, error) {
	return getCourse(ctx, s.repo, courseID)
}

// ────────────────────── GetOverview ──────────────────────

func (s *courseService) GetOverview(ctx context.Context, courseID uint) (*dto.CourseOverviewResponse, error) {
	course, err := getCourse(ctx, s.repo, courseID)
	if err != nil {
		return nil, err
	}

	resp := &dto.CourseOverviewResponse{ID: course.CourseID, Name: course.Name}

	open, err := s.repo.Session.GetOpen(ctx, courseID)
	switch {
	case err == nil:
		secret := open.Secret
		resp.Secret = &secret
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}

	if resp.SessionCount, err = s.repo.Session.CountByCourse(ctx, courseID); err != nil {
		return nil, err
	}
	if resp.StudentCount, err = s.repo.Enrollment.CountByCourse(ctx, courseID); err != nil {
		return nil, err
	}
	if resp.TACount, err = s.repo.TAAssignment.CountByCourse(ctx, courseID); err != nil {
		return nil, err
	}
	return resp, nil
}

// ────────────────────── TeachesCourse ──────────────────────

func (s *courseService) TeachesCourse(ctx context.Context, teacherID, courseID uint) (bool, error) {
	return s.repo.Teaching.Exists(ctx, courseID, teacherID)
}

// ────────────────────── Remove ──────────────────────

func (s *courseService) Remove(ctx context.Context, teacherID, courseID uint) error {
	teacher, err := getUser(ctx, s.repo, teacherID)
	if err != nil {
		return err
	}
	if !teacher.IsTeacher() {
		return ErrNotATeacher
	}

	teaches, err := s.repo.Teaching.Exists(ctx, courseID, teacherID)
	if err != nil {
		return err
	}
	if !teaches {
		return nil
	}
	return s.Destroy(ctx, courseID)
}

// ────────────────────── Destroy ──────────────────────

func (s *courseService) Destroy(ctx context.Context, courseID uint) error {
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		if _, err := lockCourse(ctx, tx, courseID); err != nil {
			return err
		}
		if err := tx.AttendanceRecord.DeleteByCourse(ctx, courseID); err != nil {
			return err
		}
		if err := tx.Session.DeleteByCourse(ctx, courseID); err != nil {
			return err
		}
		if err := tx.Enrollment.DeleteByCourse(ctx, courseID); err != nil {
			return err
		}
		if err := tx.TAAssignment.DeleteByCourse(ctx, courseID); err != nil {
			return err
		}
		if err := tx.Teaching.DeleteByCourse(ctx, courseID); err != nil {
			return err
		}
		return tx.Course.Delete(ctx, courseID)
	})
	if err != nil {
		if pkgerrors.KindOf(err) == pkgerrors.KindInternal {
			s.logger.Error("删除课程失败", zap.Uint("course_id", courseID), zap.Error(err))
		}
		return err
	}

	s.logger.Info("课程已删除", zap.Uint("course_id", courseID))
	return nil
}

// ── 内部辅助 ──

func getCourse(ctx context.Context, repo *repository.Repository, id uint) (*model.Course, error) {
	course, err := repo.Course.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCourseNotFound
		}
		return nil, err
	}
	return course, nil
}

// lockCourse 在事务内锁定课程行，同一课程上的检查-写入操作由此串行化
func lockCourse(ctx context.Context, repo *repository.Repository, id uint) (*model.Course, error) {
	course, err := repo.Course.GetByIDForUpdate(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCourseNotFound
		}
		return nil, err
	}
	return course, nil
}
