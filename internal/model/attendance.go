package model

import "time"

// Session 考勤窗口 — 对应 attendance_sessions
// closed_at 为 NULL 表示窗口仍开放。
type Session struct {
	SessionID uint       `gorm:"primaryKey;autoIncrement"                          json:"session_id"`
	CourseID  uint       `gorm:"not null;index:idx_attendance_sessions_course,priority:1" json:"course_id"`
	OpenedAt  time.Time  `gorm:"not null;index:idx_attendance_sessions_course,priority:2" json:"opened_at"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
	Secret    int        `gorm:"not null;check:secret BETWEEN 1000 AND 9999"       json:"-"`
}

// TableName 指定表名
func (Session) TableName() string { return "attendance_sessions" }

// IsOpen 窗口是否开放
func (s *Session) IsOpen() bool { return s.ClosedAt == nil }

// AttendanceRecord 签到记录 — 对应 attendance_records
type AttendanceRecord struct {
	RecordID  uint      `gorm:"primaryKey;autoIncrement"                                      json:"record_id"`
	SessionID uint      `gorm:"not null;uniqueIndex:idx_attendance_records_pair,priority:1"   json:"session_id"`
	CourseID  uint      `gorm:"not null;index:idx_attendance_records_course_user,priority:1"  json:"course_id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_attendance_records_pair,priority:2;index:idx_attendance_records_course_user,priority:2" json:"user_id"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"                            json:"created_at"`
}

// TableName 指定表名
func (AttendanceRecord) TableName() string { return "attendance_records" }
