package repository

import (
	"context"

	"gorm.io/gorm"

	"imhere/backend/internal/model"
)

// ── 授课关系 ──

// TeachingRepository 授课关系数据访问接口
type TeachingRepository interface {
	Create(ctx context.Context, t *model.Teaching) error
	Exists(ctx context.Context, courseID, teacherID uint) (bool, error)
	ListCourseIDsByTeacher(ctx context.Context, teacherID uint) ([]uint, error)
	DeleteByCourse(ctx context.Context, courseID uint) error
}

type teachingRepo struct {
	db *gorm.DB
}

// NewTeachingRepo 创建 TeachingRepository 实例
func NewTeachingRepo(db *gorm.DB) TeachingRepository {
	return &teachingRepo{db: db}
}

func (r *teachingRepo) Create(ctx context.Context, t *model.Teaching) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *teachingRepo) Exists(ctx context.Context, courseID, teacherID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Teaching{}).
		Where("course_id = ? AND teacher_id = ?", courseID, teacherID).
		Count(&count).Error
	return count > 0, err
}

func (r *teachingRepo) ListCourseIDsByTeacher(ctx context.Context, teacherID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&model.Teaching{}).
		Where("teacher_id = ?", teacherID).
		Order("course_id ASC").
		Pluck("course_id", &ids).Error
	return ids, err
}

func (r *teachingRepo) DeleteByCourse(ctx context.Context, courseID uint) error {
	return r.db.WithContext(ctx).Where("course_id = ?", courseID).Delete(&model.Teaching{}).Error
}

// ── 选课关系 ──

// EnrollmentRepository 选课关系数据访问接口
type EnrollmentRepository interface {
	Create(ctx context.Context, e *model.Enrollment) error
	Exists(ctx context.Context, courseID, studentID uint) (bool, error)
	Delete(ctx context.Context, courseID, studentID uint) error
	ListStudentIDs(ctx context.Context, courseID uint) ([]uint, error)
	ListCourseIDsByStudent(ctx context.Context, studentID uint) ([]uint, error)
	CountByCourse(ctx context.Context, courseID uint) (int64, error)
	DeleteByCourse(ctx context.Context, courseID uint) error
}

type enrollmentRepo struct {
	db *gorm.DB
}

// NewEnrollmentRepo 创建 EnrollmentRepository 实例
func NewEnrollmentRepo(db *gorm.DB) EnrollmentRepository {
	return &enrollmentRepo{db: db}
}

func (r *enrollmentRepo) Create(ctx context.Context, e *model.Enrollment) error {
	return r.db.WithContext(ctx).Create(e).Error
}

func (r *enrollmentRepo) Exists(ctx context.Context, courseID, studentID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Enrollment{}).
		Where("course_id = ? AND student_id = ?", courseID, studentID).
		Count(&count).Error
	return count > 0, err
}

func (r *enrollmentRepo) Delete(ctx context.Context, courseID, studentID uint) error {
	return r.db.WithContext(ctx).
		Where("course_id = ? AND student_id = ?", courseID, studentID).
		Delete(&model.Enrollment{}).Error
}

func (r *enrollmentRepo) ListStudentIDs(ctx context.Context, courseID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&model.Enrollment{}).
		Where("course_id = ?", courseID).
		Order("student_id ASC").
		Pluck("student_id", &ids).Error
	return ids, err
}

func (r *enrollmentRepo) ListCourseIDsByStudent(ctx context.Context, studentID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&model.Enrollment{}).
		Where("student_id = ?", studentID).
		Order("course_id ASC").
		Pluck("course_id", &ids).Error
	return ids, err
}

func (r *enrollmentRepo) CountByCourse(ctx context.Context, courseID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Enrollment{}).
		Where("course_id = ?", courseID).
		Count(&count).Error
	return count, err
}

func (r *enrollmentRepo) DeleteByCourse(ctx context.Context, courseID uint) error {
	return r.db.WithContext(ctx).Where("course_id = ?", courseID).Delete(&model.Enrollment{}).Error
}

// ── 助教关系 ──

// TAAssignmentRepository 助教关系数据访问接口
type TAAssignmentRepository interface {
	Create(ctx context.Context, a *model.TAAssignment) error
	Exists(ctx context.Context, courseID, taID uint) (bool, error)
	Delete(ctx context.Context, courseID, taID uint) error
	ListTAIDs(ctx context.Context, courseID uint) ([]uint, error)
	ListCourseIDsByTA(ctx context.Context, taID uint) ([]uint, error)
	CountByCourse(ctx context.Context, courseID uint) (int64, error)
	DeleteByCourse(ctx context.Context, courseID uint) error
}

type taAssignmentRepo struct {
	db *gorm.DB
}

// NewTAAssignmentRepo 创建 TAAssignmentRepository 实例
func NewTAAssignmentRepo(db *gorm.DB) TAAssignmentRepository {
	return &taAssignmentRepo{db: db}
}

func (r *taAssignmentRepo) Create(ctx context.Context, a *model.TAAssignment) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *taAssignmentRepo) Exists(ctx context.Context, courseID, taID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.TAAssignment{}).
		Where("course_id = ? AND ta_id = ?", courseID, taID).
		Count(&count).Error
	return count > 0, err
}

func (r *taAssignmentRepo) Delete(ctx context.Context, courseID, taID uint) error {
	return r.db.WithContext(ctx).
		Where("course_id = ? AND ta_id = ?", courseID, taID).
		Delete(&model.TAAssignment{}).Error
}

func (r *taAssignmentRepo) ListTAIDs(ctx context.Context, courseID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&model.TAAssignment{}).
		Where("course_id = ?", courseID).
		Order("ta_id ASC").
		Pluck("ta_id", &ids).Error
	return ids, err
}

func (r *taAssignmentRepo) ListCourseIDsByTA(ctx context.Context, taID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&model.TAAssignment{}).
		Where("ta_id = ?", taID).
		Order("course_id ASC").
		Pluck("course_id", &ids).Error
	return ids, err
}

func (r *taAssignmentRepo) CountByCourse(ctx context.Context, courseID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.TAAssignment{}).
		Where("course_id = ?", courseID).
		Count(&count).Error
	return count, err
}

func (r *taAssignmentRepo) DeleteByCourse(ctx context.Context, courseID uint) error {
	return r.db.WithContext(ctx).Where("course_id = ?", courseID).Delete(&model.TAAssignment{}).Error
}
