package model

import "time"

// Course 课程表 — 对应 courses
type Course struct {
	CourseID uint   `gorm:"primaryKey;autoIncrement"    json:"course_id"`
	Name     string `gorm:"type:varchar(200);not null"  json:"name"`
	BaseModel
}

// TableName 指定表名
func (Course) TableName() string { return "courses" }

// Teaching 授课关系 — 对应 course_teachers
type Teaching struct {
	TeachingID uint      `gorm:"primaryKey;autoIncrement"                                     json:"teaching_id"`
	CourseID   uint      `gorm:"not null;uniqueIndex:idx_course_teachers_pair,priority:1"     json:"course_id"`
	TeacherID  uint      `gorm:"not null;uniqueIndex:idx_course_teachers_pair,priority:2;index:idx_course_teachers_teacher" json:"teacher_id"`
	CreatedAt  time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"                           json:"created_at"`
}

// TableName 指定表名
func (Teaching) TableName() string { return "course_teachers" }

// Enrollment 选课关系 — 对应 enrollments
type Enrollment struct {
	EnrollmentID uint      `gorm:"primaryKey;autoIncrement"                                  json:"enrollment_id"`
	CourseID     uint      `gorm:"not null;uniqueIndex:idx_enrollments_pair,priority:1"      json:"course_id"`
	StudentID    uint      `gorm:"not null;uniqueIndex:idx_enrollments_pair,priority:2;index:idx_enrollments_student" json:"student_id"`
	CreatedAt    time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"                        json:"created_at"`
}

// TableName 指定表名
func (Enrollment) TableName() string { return "enrollments" }

// TAAssignment 助教关系 — 对应 ta_assignments
type TAAssignment struct {
	TAAssignmentID uint      `gorm:"primaryKey;autoIncrement"                                   json:"ta_assignment_id"`
	CourseID       uint      `gorm:"not null;uniqueIndex:idx_ta_assignments_pair,priority:1"     json:"course_id"`
	TAID           uint      `gorm:"column:ta_id;not null;uniqueIndex:idx_ta_assignments_pair,priority:2;index:idx_ta_assignments_ta" json:"ta_id"`
	CreatedAt      time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"                         json:"created_at"`
}

// TableName 指定表名
func (TAAssignment) TableName() string { return "ta_assignments" }
