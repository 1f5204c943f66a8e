package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"imhere/backend/internal/model"
)

// ── 考勤窗口 ──

// SessionRepository 考勤窗口数据访问接口
type SessionRepository interface {
	Create(ctx context.Context, s *model.Session) error
	GetByID(ctx context.Context, id uint) (*model.Session, error)
	// GetOpen 返回课程当前开放的窗口，不存在时返回 gorm.ErrRecordNotFound
	GetOpen(ctx context.Context, courseID uint) (*model.Session, error)
	Close(ctx context.Context, sessionID uint, closedAt time.Time) error
	CountByCourse(ctx context.Context, courseID uint) (int64, error)
	// ListByCourse 按 (opened_at, closed_at) 升序，未关闭的窗口排在同一开始时间的最后
	ListByCourse(ctx context.Context, courseID uint) ([]model.Session, error)
	DeleteByCourse(ctx context.Context, courseID uint) error
}

type sessionRepo struct {
	db *gorm.DB
}

// NewSessionRepo 创建 SessionRepository 实例
func NewSessionRepo(db *gorm.DB) SessionRepository {
	return &sessionRepo{db: db}
}

func (r *sessionRepo) Create(ctx context.Context, s *model.Session) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *sessionRepo) GetByID(ctx context.Context, id uint) (*model.Session, error) {
	var s model.Session
	if err := r.db.WithContext(ctx).Where("session_id = ?", id).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *sessionRepo) GetOpen(ctx context.Context, courseID uint) (*model.Session, error) {
	var s model.Session
	err := r.db.WithContext(ctx).
		Where("course_id = ? AND closed_at IS NULL", courseID).
		Order("opened_at DESC").
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *sessionRepo) Close(ctx context.Context, sessionID uint, closedAt time.Time) error {
	return r.db.WithContext(ctx).Model(&model.Session{}).
		Where("session_id = ? AND closed_at IS NULL", sessionID).
		Update("closed_at", closedAt).Error
}

func (r *sessionRepo) CountByCourse(ctx context.Context, courseID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Session{}).
		Where("course_id = ?", courseID).
		Count(&count).Error
	return count, err
}

func (r *sessionRepo) ListByCourse(ctx context.Context, courseID uint) ([]model.Session, error) {
	var sessions []model.Session
	err := r.db.WithContext(ctx).
		Where("course_id = ?", courseID).
		Order("opened_at ASC, closed_at ASC NULLS LAST, session_id ASC").
		Find(&sessions).Error
	return sessions, err
}

func (r *sessionRepo) DeleteByCourse(ctx context.Context, courseID uint) error {
	return r.db.WithContext(ctx).Where("course_id = ?", courseID).Delete(&model.Session{}).Error
}

// ── 签到记录 ──

// AttendanceRecordRepository 签到记录数据访问接口
type AttendanceRecordRepository interface {
	Create(ctx context.Context, rec *model.AttendanceRecord) error
	Exists(ctx context.Context, sessionID, userID uint) (bool, error)
	// ListByCourse userID 为 nil 时返回课程全部记录
	ListByCourse(ctx context.Context, courseID uint, userID *uint) ([]model.AttendanceRecord, error)
	Delete(ctx context.Context, sessionID, userID uint) error
	DeleteByCourseAndUser(ctx context.Context, courseID, userID uint) error
	DeleteByCourse(ctx context.Context, courseID uint) error
}

type attendanceRecordRepo struct {
	db *gorm.DB
}

// NewAttendanceRecordRepo 创建 AttendanceRecordRepository 实例
func NewAttendanceRecordRepo(db *gorm.DB) AttendanceRecordRepository {
	return &attendanceRecordRepo{db: db}
}

func (r *attendanceRecordRepo) Create(ctx context.Context, rec *model.AttendanceRecord) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

func (r *attendanceRecordRepo) Exists(ctx context.Context, sessionID, userID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.AttendanceRecord{}).
		Where("session_id = ? AND user_id = ?", sessionID, userID).
		Count(&count).Error
	return count > 0, err
}

func (r *attendanceRecordRepo) ListByCourse(ctx context.Context, courseID uint, userID *uint) ([]model.AttendanceRecord, error) {
	var records []model.AttendanceRecord
	db := r.db.WithContext(ctx).Where("course_id = ?", courseID)
	if userID != nil {
		db = db.Where("user_id = ?", *userID)
	}
	err := db.Order("session_id ASC, user_id ASC").Find(&records).Error
	return records, err
}

func (r *attendanceRecordRepo) Delete(ctx context.Context, sessionID, userID uint) error {
	return r.db.WithContext(ctx).
		Where("session_id = ? AND user_id = ?", sessionID, userID).
		Delete(&model.AttendanceRecord{}).Error
}

func (r *attendanceRecordRepo) DeleteByCourseAndUser(ctx context.Context, courseID, userID uint) error {
	return r.db.WithContext(ctx).
		Where("course_id = ? AND user_id = ?", courseID, userID).
		Delete(&model.AttendanceRecord{}).Error
}

func (r *attendanceRecordRepo) DeleteByCourse(ctx context.Context, courseID uint) error {
	return r.db.WithContext(ctx).Where("course_id = ?", courseID).Delete(&model.AttendanceRecord{}).Error
}
