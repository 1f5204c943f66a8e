package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"imhere/backend/internal/dto"
	"imhere/backend/internal/model"
	"imhere/backend/internal/repository"
	pkgerrors "imhere/backend/pkg/errors"
)

// ── 考勤模块业务错误 ──

var (
	ErrNotInCourse           = pkgerrors.New(pkgerrors.KindPermissionDenied, "用户不是该课程的学生或助教")
	ErrStudentNotInCourse    = pkgerrors.New(pkgerrors.KindPermissionDenied, "该学生未选修此课程")
	ErrTANotInCourse         = pkgerrors.New(pkgerrors.KindPermissionDenied, "该用户不是此课程的助教")
	ErrNoOpenSession         = pkgerrors.New(pkgerrors.KindDomainConflict, "课程当前未开放签到")
	ErrAlreadySignedIn       = pkgerrors.New(pkgerrors.KindStateConflict, "本次考勤已签到")
	ErrTooManyAttempts       = pkgerrors.New(pkgerrors.KindStateConflict, "签到码错误次数过多，请稍后再试")
	ErrSessionNotFound       = pkgerrors.New(pkgerrors.KindNotFound, "考勤窗口不存在")
	ErrAmbiguousRecordFilter = pkgerrors.New(pkgerrors.KindValidation, "student_id 与 ta_id 只能指定一个")
	ErrSessionIDRequired     = pkgerrors.New(pkgerrors.KindValidation, "缺少 session_id")
	ErrAttendedRequired      = pkgerrors.New(pkgerrors.KindValidation, "缺少 attended")
	ErrInvalidRosterRole     = pkgerrors.New(pkgerrors.KindValidation, "role 只能是 student 或 ta")
)

// SignInLimiter 签到码错误计数；为 nil 时不限制
type SignInLimiter interface {
	Blocked(ctx context.Context, courseID, userID uint) (bool, error)
	RecordFailure(ctx context.Context, courseID, userID uint) error
	Reset(ctx context.Context, courseID, userID uint) error
}

// AttendanceService 考勤窗口、签到与历史记录业务接口
type AttendanceService interface {
	// OpenSession 开放考勤窗口并返回签到码；已有开放窗口时返回其签到码
	OpenSession(ctx context.Context, courseID uint) (int, error)
	// CloseSession 关闭开放中的窗口；没有开放窗口时为空操作
	CloseSession(ctx context.Context, courseID uint) error
	// GetOpenSession 没有开放窗口时返回 nil, nil
	GetOpenSession(ctx context.Context, courseID uint) (*model.Session, error)
	SessionCount(ctx context.Context, courseID uint) (int64, error)
	ListSessions(ctx context.Context, courseID uint) ([]dto.SessionResponse, error)

	// SignIn 签到码不匹配时返回 false 而非错误
	SignIn(ctx context.Context, courseID, userID uint, secret *int) (bool, error)
	CurrentlySignedIn(ctx context.Context, courseID, userID uint) (bool, error)

	GetAttendanceRecords(ctx context.Context, courseID uint, filter *dto.RecordFilter) ([]dto.RecordResponse, error)
	GetAttendanceDetails(ctx context.Context, courseID, userID uint) ([]dto.AttendanceDetail, error)
	EditAttendanceHistory(ctx context.Context, courseID uint, req *dto.EditAttendanceRequest) error
	GetRosterSummary(ctx context.Context, courseID uint) ([]dto.StudentAttendanceSummary, error)
}

type attendanceService struct {
	repo      *repository.Repository
	limiter   SignInLimiter
	logger    *zap.Logger
	genSecret SecretGenerator
	now       func() time.Time
}

// NewAttendanceService 创建 AttendanceService 实例
func NewAttendanceService(repo *repository.Repository, limiter SignInLimiter, logger *zap.Logger) AttendanceService {
	return &attendanceService{
		repo:      repo,
		limiter:   limiter,
		logger:    logger,
		genSecret: randomSecret,
		now:       time.Now,
	}
}

// ────────────────────── OpenSession ──────────────────────

func (s *attendanceService) OpenSession(ctx context.Context, courseID uint) (int, error) {
	var secret int
	var created bool
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		if _, err := lockCourse(ctx, tx, courseID); err != nil {
			return err
		}

		open, err := getOpenSession(ctx, tx, courseID)
		if err != nil {
			return err
		}
		if open != nil {
			secret = open.Secret
			return nil
		}

		if secret, err = s.genSecret(); err != nil {
			return err
		}
		created = true
		return tx.Session.Create(ctx, &model.Session{
			CourseID: courseID,
			OpenedAt: s.now(),
			Secret:   secret,
		})
	})
	if err != nil {
		if pkgerrors.KindOf(err) == pkgerrors.KindInternal {
			s.logger.Error("开放考勤窗口失败", zap.Uint("course_id", courseID), zap.Error(err))
		}
		return 0, err
	}

	if created {
		s.logger.Info("考勤窗口已开放", zap.Uint("course_id", courseID))
	}
	return secret, nil
}

// ────────────────────── CloseSession ──────────────────────

func (s *attendanceService) CloseSession(ctx context.Context, courseID uint) error {
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		if _, err := lockCourse(ctx, tx, courseID); err != nil {
			return err
		}
		open, err := getOpenSession(ctx, tx, courseID)
		if err != nil || open == nil {
			return err
		}
		return tx.Session.Close(ctx, open.SessionID, s.now())
	})
	if err != nil && pkgerrors.KindOf(err) == pkgerrors.KindInternal {
		s.logger.Error("关闭考勤窗口失败", zap.Uint("course_id", courseID), zap.Error(err))
	}
	return err
}

// ────────────────────── 窗口查询 ──────────────────────

func (s *attendanceService) GetOpenSession(ctx context.Context, courseID uint) (*model.Session, error) {
	return getOpenSession(ctx, s.repo, courseID)
}

func (s *attendanceService) SessionCount(ctx context.Context, courseID uint) (int64, error) {
	return s.repo.Session.CountByCourse(ctx, courseID)
}

func (s *attendanceService) ListSessions(ctx context.Context, courseID uint) ([]dto.SessionResponse, error) {
	sessions, err := s.sortedSessions(ctx, courseID)
	if err != nil {
		return nil, err
	}
	result := make([]dto.SessionResponse, 0, len(sessions))
	for _, sess := range sessions {
		result = append(result, dto.SessionResponse{
			ID:       sess.SessionID,
			OpenedAt: sess.OpenedAt,
			ClosedAt: sess.ClosedAt,
			Open:     sess.IsOpen(),
		})
	}
	return result, nil
}

// ────────────────────── SignIn ──────────────────────

func (s *attendanceService) SignIn(ctx context.Context, courseID, userID uint, secret *int) (bool, error) {
	var signedIn, mismatch bool
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		if _, err := lockCourse(ctx, tx, courseID); err != nil {
			return err
		}

		enrolled, err := tx.Enrollment.Exists(ctx, courseID, userID)
		if err != nil {
			return err
		}
		isTA, err := tx.TAAssignment.Exists(ctx, courseID, userID)
		if err != nil {
			return err
		}
		if !enrolled && !isTA {
			return ErrNotInCourse
		}

		open, err := getOpenSession(ctx, tx, courseID)
		if err != nil {
			return err
		}
		if open == nil {
			return ErrNoOpenSession
		}

		if s.blocked(ctx, courseID, userID) {
			return ErrTooManyAttempts
		}

		// 助教不带签到码时直接放行
		taSelfCheckIn := secret == nil && isTA
		if !taSelfCheckIn && (secret == nil || *secret != open.Secret) {
			mismatch = secret != nil
			return nil
		}

		exists, err := tx.AttendanceRecord.Exists(ctx, open.SessionID, userID)
		if err != nil {
			return err
		}
		if exists {
			return ErrAlreadySignedIn
		}

		err = tx.AttendanceRecord.Create(ctx, &model.AttendanceRecord{
			SessionID: open.SessionID,
			CourseID:  courseID,
			UserID:    userID,
		})
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrAlreadySignedIn
		}
		if err != nil {
			return err
		}
		signedIn = true
		return nil
	})
	if err != nil {
		if pkgerrors.KindOf(err) == pkgerrors.KindInternal {
			s.logger.Error("签到失败", zap.Uint("course_id", courseID), zap.Uint("user_id", userID), zap.Error(err))
		}
		return false, err
	}

	switch {
	case mismatch:
		s.recordFailure(ctx, courseID, userID)
	case signedIn:
		s.resetFailures(ctx, courseID, userID)
	}
	return signedIn, nil
}

// ────────────────────── CurrentlySignedIn ──────────────────────

func (s *attendanceService) CurrentlySignedIn(ctx context.Context, courseID, userID uint) (bool, error) {
	open, err := getOpenSession(ctx, s.repo, courseID)
	if err != nil || open == nil {
		return false, err
	}
	return s.repo.AttendanceRecord.Exists(ctx, open.SessionID, userID)
}

// ────────────────────── GetAttendanceRecords ──────────────────────

// GetAttendanceRecords student_id 与 ta_id 都按用户 ID 过滤，区别仅在调用方语义
func (s *attendanceService) GetAttendanceRecords(ctx context.Context, courseID uint, filter *dto.RecordFilter) ([]dto.RecordResponse, error) {
	var userID *uint
	if filter != nil {
		if filter.StudentID != nil && filter.TAID != nil {
			return nil, ErrAmbiguousRecordFilter
		}
		userID = filter.StudentID
		if userID == nil {
			userID = filter.TAID
		}
	}

	records, err := s.repo.AttendanceRecord.ListByCourse(ctx, courseID, userID)
	if err != nil {
		s.logger.Error("查询签到记录失败", zap.Uint("course_id", courseID), zap.Error(err))
		return nil, err
	}

	result := make([]dto.RecordResponse, 0, len(records))
	for _, r := range records {
		result = append(result, dto.RecordResponse{ID: r.RecordID, SessionID: r.SessionID, UserID: r.UserID})
	}
	return result, nil
}

// ────────────────────── GetAttendanceDetails ──────────────────────

// GetAttendanceDetails 课程每个窗口一条，标明该用户是否出勤；非成员返回空列表
func (s *attendanceService) GetAttendanceDetails(ctx context.Context, courseID, userID uint) ([]dto.AttendanceDetail, error) {
	enrolled, err := s.repo.Enrollment.Exists(ctx, courseID, userID)
	if err != nil {
		return nil, err
	}
	isTA, err := s.repo.TAAssignment.Exists(ctx, courseID, userID)
	if err != nil {
		return nil, err
	}
	if !enrolled && !isTA {
		return []dto.AttendanceDetail{}, nil
	}

	sessions, err := s.sortedSessions(ctx, courseID)
	if err != nil {
		return nil, err
	}
	records, err := s.repo.AttendanceRecord.ListByCourse(ctx, courseID, &userID)
	if err != nil {
		return nil, err
	}

	attended := make(map[uint]bool, len(records))
	for _, r := range records {
		attended[r.SessionID] = true
	}

	result := make([]dto.AttendanceDetail, 0, len(sessions))
	for _, sess := range sessions {
		result = append(result, dto.AttendanceDetail{
			SessionID: sess.SessionID,
			UserID:    userID,
			OpenedAt:  sess.OpenedAt,
			ClosedAt:  sess.ClosedAt,
			Attended:  attended[sess.SessionID],
		})
	}
	return result, nil
}

// ────────────────────── EditAttendanceHistory ──────────────────────

func (s *attendanceService) EditAttendanceHistory(ctx context.Context, courseID uint, req *dto.EditAttendanceRequest) error {
	if req.Role != dto.RoleStudent && req.Role != dto.RoleTA {
		return ErrInvalidRosterRole
	}
	if req.SessionID == nil {
		return ErrSessionIDRequired
	}
	if req.Attended == nil {
		return ErrAttendedRequired
	}

	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		if _, err := lockCourse(ctx, tx, courseID); err != nil {
			return err
		}
		user, err := getUser(ctx, tx, req.UserID)
		if err != nil {
			return err
		}

		if req.Role == dto.RoleStudent {
			if !user.IsStudent() {
				return ErrNotAStudent
			}
			enrolled, err := tx.Enrollment.Exists(ctx, courseID, user.UserID)
			if err != nil {
				return err
			}
			if !enrolled {
				return ErrStudentNotInCourse
			}
		} else {
			assigned, err := tx.TAAssignment.Exists(ctx, courseID, user.UserID)
			if err != nil {
				return err
			}
			if !assigned {
				return ErrTANotInCourse
			}
		}

		sess, err := tx.Session.GetByID(ctx, *req.SessionID)
		if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && sess.CourseID != courseID) {
			return ErrSessionNotFound
		}
		if err != nil {
			return err
		}

		exists, err := tx.AttendanceRecord.Exists(ctx, sess.SessionID, user.UserID)
		if err != nil {
			return err
		}
		if exists == *req.Attended {
			return nil
		}

		if *req.Attended {
			err := tx.AttendanceRecord.Create(ctx, &model.AttendanceRecord{
				SessionID: sess.SessionID,
				CourseID:  courseID,
				UserID:    user.UserID,
			})
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return nil
			}
			return err
		}
		return tx.AttendanceRecord.Delete(ctx, sess.SessionID, user.UserID)
	})
	if err != nil {
		if pkgerrors.KindOf(err) == pkgerrors.KindInternal {
			s.logger.Error("修改出勤记录失败",
				zap.Uint("course_id", courseID),
				zap.Uint("user_id", req.UserID),
				zap.Error(err),
			)
		}
		return err
	}
	return nil
}

// ────────────────────── GetRosterSummary ──────────────────────

// GetRosterSummary 每位选课学生的累计出勤次数
func (s *attendanceService) GetRosterSummary(ctx context.Context, courseID uint) ([]dto.StudentAttendanceSummary, error) {
	ids, err := s.repo.Enrollment.ListStudentIDs(ctx, courseID)
	if err != nil {
		return nil, err
	}
	users, err := s.repo.User.ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	total, err := s.repo.Session.CountByCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	records, err := s.repo.AttendanceRecord.ListByCourse(ctx, courseID, nil)
	if err != nil {
		return nil, err
	}

	counts := make(map[uint]int, len(users))
	for _, r := range records {
		counts[r.UserID]++
	}

	result := make([]dto.StudentAttendanceSummary, 0, len(users))
	for _, u := range users {
		result = append(result, dto.StudentAttendanceSummary{
			UserID:      u.UserID,
			DisplayName: u.DisplayName,
			Email:       u.Email,
			UNI:         u.UNIValue(),
			Attended:    counts[u.UserID],
			Sessions:    int(total),
		})
	}
	return result, nil
}

// ── 内部辅助 ──

func getOpenSession(ctx context.Context, repo *repository.Repository, courseID uint) (*model.Session, error) {
	sess, err := repo.Session.GetOpen(ctx, courseID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return sess, err
}

// sortedSessions 按 (opened_at, closed_at) 升序，closed_at 为空的排在最后
func (s *attendanceService) sortedSessions(ctx context.Context, courseID uint) ([]model.Session, error) {
	sessions, err := s.repo.Session.ListByCourse(ctx, courseID)
	if err != nil {
		s.logger.Error("查询考勤窗口失败", zap.Uint("course_id", courseID), zap.Error(err))
		return nil, err
	}
	sortSessions(sessions)
	return sessions, nil
}

func sortSessions(sessions []model.Session) {
	sort.SliceStable(sessions, func(i, j int) bool {
		a, b := sessions[i], sessions[j]
		if !a.OpenedAt.Equal(b.OpenedAt) {
			return a.OpenedAt.Before(b.OpenedAt)
		}
		switch {
		case a.ClosedAt == nil:
			return false
		case b.ClosedAt == nil:
			return true
		default:
			return a.ClosedAt.Before(*b.ClosedAt)
		}
	})
}

// ── 签到码错误计数（Redis 不可用时降级放行） ──

func (s *attendanceService) blocked(ctx context.Context, courseID, userID uint) bool {
	if s.limiter == nil {
		return false
	}
	blocked, err := s.limiter.Blocked(ctx, courseID, userID)
	if err != nil {
		s.logger.Warn("读取签到错误计数失败", zap.Error(err))
		return false
	}
	return blocked
}

func (s *attendanceService) recordFailure(ctx context.Context, courseID, userID uint) {
	if s.limiter == nil {
		return
	}
	if err := s.limiter.RecordFailure(ctx, courseID, userID); err != nil {
		s.logger.Warn("记录签到错误失败", zap.Error(err))
	}
}

func (s *attendanceService) resetFailures(ctx context.Context, courseID, userID uint) {
	if s.limiter == nil {
		return
	}
	if err := s.limiter.Reset(ctx, courseID, userID); err != nil {
		s.logger.Warn("清除签到错误计数失败", zap.Error(err))
	}
}
