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

// ── 用户模块业务错误 ──

var (
	ErrUserNotFound      = pkgerrors.New(pkgerrors.KindNotFound, "用户不存在")
	ErrEmailRequired     = pkgerrors.New(pkgerrors.KindValidation, "邮箱不能为空")
	ErrInvalidUNI        = pkgerrors.New(pkgerrors.KindValidation, "UNI 不能为空且长度不超过 20")
	ErrDuplicateUNI      = pkgerrors.New(pkgerrors.KindValidation, "该 UNI 已被其他用户使用")
	ErrNothingToRegister = pkgerrors.New(pkgerrors.KindValidation, "请选择注册为教师或提供 UNI 注册为学生")
	ErrNotAStudent       = pkgerrors.New(pkgerrors.KindValidation, "用户尚未注册为学生")
)

const maxUNILength = 20

// UserService 用户与角色业务接口
type UserService interface {
	// Resolve 依次按 ID、UNI、邮箱查找，第一个命中者返回
	Resolve(ctx context.Context, q *dto.UserQuery) (*model.User, error)
	GetByID(ctx context.Context, id uint) (*dto.UserResponse, error)
	GetOrCreate(ctx context.Context, req *dto.IdentityRequest) (*model.User, bool, error)
	RegisterAsTeacher(ctx context.Context, userID uint) error
	RegisterAsStudent(ctx context.Context, userID uint, uni string) error
	Register(ctx context.Context, userID uint, req *dto.RegisterRequest) (*dto.UserResponse, error)
	TakesCourse(ctx context.Context, userID, courseID uint) (bool, error)
	TAsCourse(ctx context.Context, userID, courseID uint) (bool, error)
	ListCourses(ctx context.Context, userID uint) (*dto.MyCoursesResponse, error)
}

type userService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewUserService 创建 UserService 实例
func NewUserService(repo *repository.Repository, logger *zap.Logger) UserService {
	return &userService{repo: repo, logger: logger}
}

// ────────────────────── Resolve ──────────────────────

func (s *userService) Resolve(ctx context.Context, q *dto.UserQuery) (*model.User, error) {
	return resolveUser(ctx, s.repo, q)
}

func resolveUser(ctx context.Context, repo *repository.Repository, q *dto.UserQuery) (*model.User, error) {
	if q.ID != nil {
		user, err := repo.User.GetByID(ctx, *q.ID)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	if uni := strings.TrimSpace(q.UNI); uni != "" {
		user, err := repo.User.GetByUNI(ctx, uni)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	if email := normalizeEmail(q.Email); email != "" {
		user, err := repo.User.GetByEmail(ctx, email)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	return nil, ErrUserNotFound
}

// ────────────────────── GetByID ──────────────────────

func (s *userService) GetByID(ctx context.Context, id uint) (*dto.UserResponse, error) {
	user, err := s.repo.User.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		s.logger.Error("查询用户失败", zap.Uint("id", id), zap.Error(err))
		return nil, err
	}
	return toUserResponse(user), nil
}

// ────────────────────── GetOrCreate ──────────────────────

// GetOrCreate 按邮箱查找用户，不存在则创建；第二个返回值表示是否新建
func (s *userService) GetOrCreate(ctx context.Context, req *dto.IdentityRequest) (*model.User, bool, error) {
	email := normalizeEmail(req.Email)
	if email == "" {
		return nil, false, ErrEmailRequired
	}

	user, err := s.repo.User.GetByEmail(ctx, email)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("查询用户失败", zap.String("email", email), zap.Error(err))
		return nil, false, err
	}

	user = &model.User{
		Email:       email,
		DisplayName: strings.TrimSpace(req.DisplayName),
		Provider:    strings.TrimSpace(req.Provider),
	}
	if err := s.repo.User.Create(ctx, user); err != nil {
		// 并发首次登录：另一请求已创建同邮箱用户
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			existing, getErr := s.repo.User.GetByEmail(ctx, email)
			if getErr != nil {
				return nil, false, getErr
			}
			return existing, false, nil
		}
		s.logger.Error("创建用户失败", zap.String("email", email), zap.Error(err))
		return nil, false, err
	}

	s.logger.Info("新用户创建", zap.Uint("user_id", user.UserID), zap.String("provider", user.Provider))
	return user, true, nil
}

// ────────────────────── RegisterAsTeacher ──────────────────────

func (s *userService) RegisterAsTeacher(ctx context.Context, userID uint) error {
	return s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		return registerTeacher(ctx, tx, userID)
	})
}

func registerTeacher(ctx context.Context, repo *repository.Repository, userID uint) error {
	user, err := getUser(ctx, repo, userID)
	if err != nil {
		return err
	}
	if user.IsTeacher() {
		return nil
	}
	user.Teacher = true
	return repo.User.Update(ctx, user)
}

// ────────────────────── RegisterAsStudent ──────────────────────

func (s *userService) RegisterAsStudent(ctx context.Context, userID uint, uni string) error {
	return s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		return registerStudent(ctx, tx, userID, uni)
	})
}

// registerStudent 设置 UNI；与本人已有 UNI 相同视为成功，不同则覆盖
func registerStudent(ctx context.Context, repo *repository.Repository, userID uint, uni string) error {
	uni = strings.TrimSpace(uni)
	if uni == "" || len(uni) > maxUNILength {
		return ErrInvalidUNI
	}

	user, err := getUser(ctx, repo, userID)
	if err != nil {
		return err
	}
	if user.UNIValue() == uni {
		return nil
	}

	holder, err := repo.User.GetByUNI(ctx, uni)
	if err == nil && holder.UserID != userID {
		return ErrDuplicateUNI
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	user.UNI = &uni
	if err := repo.User.Update(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateUNI
		}
		return err
	}
	return nil
}

// ────────────────────── Register ──────────────────────

func (s *userService) Register(ctx context.Context, userID uint, req *dto.RegisterRequest) (*dto.UserResponse, error) {
	if !req.AsTeacher && strings.TrimSpace(req.UNI) == "" {
		return nil, ErrNothingToRegister
	}

	var result *model.User
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		if strings.TrimSpace(req.UNI) != "" {
			if err := registerStudent(ctx, tx, userID, req.UNI); err != nil {
				return err
			}
		}
		if req.AsTeacher {
			if err := registerTeacher(ctx, tx, userID); err != nil {
				return err
			}
		}
		user, err := getUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		result = user
		return nil
	})
	if err != nil {
		if pkgerrors.KindOf(err) == pkgerrors.KindInternal {
			s.logger.Error("用户注册失败", zap.Uint("user_id", userID), zap.Error(err))
		}
		return nil, err
	}

	return toUserResponse(result), nil
}

// ────────────────────── 角色关系查询 ──────────────────────

// TakesCourse 学生是否选修该课程；用户未注册为学生时返回 ErrNotAStudent
func (s *userService) TakesCourse(ctx context.Context, userID, courseID uint) (bool, error) {
	user, err := getUser(ctx, s.repo, userID)
	if err != nil {
		return false, err
	}
	if !user.IsStudent() {
		return false, ErrNotAStudent
	}
	return s.repo.Enrollment.Exists(ctx, courseID, userID)
}

func (s *userService) TAsCourse(ctx context.Context, userID, courseID uint) (bool, error) {
	if _, err := getUser(ctx, s.repo, userID); err != nil {
		return false, err
	}
	return s.repo.TAAssignment.Exists(ctx, courseID, userID)
}

// ListCourses 返回用户作为教师、学生、助教关联的全部课程
func (s *userService) ListCourses(ctx context.Context, userID uint) (*dto.MyCoursesResponse, error) {
	user, err := getUser(ctx, s.repo, userID)
	if err != nil {
		return nil, err
	}

	resp := &dto.MyCoursesResponse{
		Teaching: []dto.CourseBrief{},
		Taking:   []dto.CourseBrief{},
		TAing:    []dto.CourseBrief{},
	}

	if user.IsTeacher() {
		ids, err := s.repo.Teaching.ListCourseIDsByTeacher(ctx, userID)
		if err != nil {
			return nil, err
		}
		if resp.Teaching, err = s.courseBriefs(ctx, ids); err != nil {
			return nil, err
		}
	}

	if user.IsStudent() {
		ids, err := s.repo.Enrollment.ListCourseIDsByStudent(ctx, userID)
		if err != nil {
			return nil, err
		}
		if resp.Taking, err = s.courseBriefs(ctx, ids); err != nil {
			return nil, err
		}
	}

	ids, err := s.repo.TAAssignment.ListCourseIDsByTA(ctx, userID)
	if err != nil {
		return nil, err
	}
	if resp.TAing, err = s.courseBriefs(ctx, ids); err != nil {
		return nil, err
	}

	return resp, nil
}

func (s *userService) courseBriefs(ctx context.Context, ids []uint) ([]dto.CourseBrief, error) {
	courses, err := s.repo.Course.ListByIDs(ctx, ids)
	if err != nil {
		s.logger.Error("查询课程列表失败", zap.Error(err))
		return nil, err
	}
	result := make([]dto.CourseBrief, 0, len(courses))
	for _, c := range courses {
		result = append(result, dto.CourseBrief{ID: c.CourseID, Name: c.Name})
	}
	return result, nil
}

// ── 内部辅助 ──

func getUser(ctx context.Context, repo *repository.Repository, id uint) (*model.User, error) {
	user, err := repo.User.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func toUserResponse(u *model.User) *dto.UserResponse {
	return &dto.UserResponse{
		ID:          u.UserID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		UNI:         u.UNIValue(),
		IsTeacher:   u.IsTeacher(),
		IsStudent:   u.IsStudent(),
	}
}
