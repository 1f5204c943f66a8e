package repository

import (
	"context"

	"gorm.io/gorm"
)

// Repository 所有 Repository 的聚合入口
type Repository struct {
	db *gorm.DB

	User             UserRepository
	Course           CourseRepository
	Teaching         TeachingRepository
	Enrollment       EnrollmentRepository
	TAAssignment     TAAssignmentRepository
	Session          SessionRepository
	AttendanceRecord AttendanceRecordRepository
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db:               db,
		User:             NewUserRepo(db),
		Course:           NewCourseRepo(db),
		Teaching:         NewTeachingRepo(db),
		Enrollment:       NewEnrollmentRepo(db),
		TAAssignment:     NewTAAssignmentRepo(db),
		Session:          NewSessionRepo(db),
		AttendanceRecord: NewAttendanceRecordRepo(db),
	}
}

// WithTx 返回绑定到事务 tx 的 Repository 聚合
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return NewRepository(tx)
}

// Transaction 在单个数据库事务中执行 fn
//
// fn 返回错误时整体回滚。未绑定数据库的聚合（单元测试中手工组装的 mock）直接执行 fn。
func (r *Repository) Transaction(ctx context.Context, fn func(txRepo *Repository) error) error {
	if r.db == nil {
		return fn(r)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(r.WithTx(tx))
	})
}
