package model

import "strings"

// User 用户表 — 对应 users
//
// 教师与学生不是独立的表：is_teacher 为真即教师，uni 非空即学生，二者可同时成立。
// TA 是用户在某门课程上的关系，见 TAAssignment。
type User struct {
	UserID      uint    `gorm:"primaryKey;autoIncrement"                            json:"user_id"`
	Email       string  `gorm:"type:varchar(255);not null;uniqueIndex:idx_users_email" json:"email"`
	DisplayName string  `gorm:"type:varchar(255);not null;default:''"               json:"display_name"`
	Provider    string  `gorm:"type:varchar(50);not null;default:''"                json:"provider"`
	UNI         *string `gorm:"column:uni;type:varchar(20);uniqueIndex:idx_users_uni" json:"uni,omitempty"`
	Teacher     bool    `gorm:"column:is_teacher;not null;default:false"            json:"is_teacher"`
	VersionedModel
}

// TableName 指定表名
func (User) TableName() string { return "users" }

// IsTeacher 是否已注册为教师
func (u *User) IsTeacher() bool { return u.Teacher }

// IsStudent 是否已注册为学生（持有 UNI）
func (u *User) IsStudent() bool {
	return u.UNI != nil && strings.TrimSpace(*u.UNI) != ""
}

// UNIValue 返回 UNI，未注册时为空串
func (u *User) UNIValue() string {
	if u.UNI == nil {
		return ""
	}
	return *u.UNI
}
