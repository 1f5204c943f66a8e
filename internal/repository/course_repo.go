package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"imhere/backend/internal/model"
)

// CourseRepository 课程数据访问接口
type CourseRepository interface {
	Create(ctx context.Context, course *model.Course) error
	GetByID(ctx context.Context, id uint) (*model.Course, error)
	// GetByIDForUpdate 在当前事务中对课程行加 FOR UPDATE 锁，串行化同一课程上的写操作
	GetByIDForUpdate(ctx context.Context, id uint) (*model.Course, error)
	ListByIDs(ctx context.Context, ids []uint) ([]model.Course, error)
	Delete(ctx context.Context, id uint) error
}

type courseRepo struct {
	db *gorm.DB
}

// NewCourseRepo 创建 CourseRepository 实例
func NewCourseRepo(db *gorm.DB) CourseRepository {
	return &courseRepo{db: db}
}

func (r *courseRepo) Create(ctx context.Context, course *model.Course) error {
	return r.db.WithContext(ctx).Create(course).Error
}

func (r *courseRepo) GetByID(ctx context.Context, id uint) (*model.Course, error) {
	var course model.Course
	if err := r.db.WithContext(ctx).Where("course_id = ?", id).First(&course).Error; err != nil {
		return nil, err
	}
	return &course, nil
}

func (r *courseRepo) GetByIDForUpdate(ctx context.Context, id uint) (*model.Course, error) {
	var course model.Course
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("course_id = ?", id).
		First(&course).Error
	if err != nil {
		return nil, err
	}
	return &course, nil
}

func (r *courseRepo) ListByIDs(ctx context.Context, ids []uint) ([]model.Course, error) {
	var courses []model.Course
	if len(ids) == 0 {
		return courses, nil
	}
	err := r.db.WithContext(ctx).
		Where("course_id IN ?", ids).
		Order("course_id ASC").
		Find(&courses).Error
	return courses, err
}

func (r *courseRepo) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Where("course_id = ?", id).Delete(&model.Course{}).Error
}
