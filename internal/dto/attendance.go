package dto

import "time"

// ── 考勤模块 DTO ──

// Role 名单角色
const (
	RoleStudent = "student"
	RoleTA      = "ta"
)

// SessionResponse 考勤窗口信息
type SessionResponse struct {
	ID       uint       `json:"id"`
	OpenedAt time.Time  `json:"opened_at"`
	ClosedAt *time.Time `json:"closed_at,omitempty"`
	Open     bool       `json:"open"`
}

// OpenSessionResponse 开放窗口结果，含签到码
type OpenSessionResponse struct {
	Secret int `json:"secret"`
}

// SignInRequest 签到请求；TA 可不带签到码
type SignInRequest struct {
	Secret *int `json:"secret" binding:"omitempty,min=0,max=9999"`
}

// SignInResponse 签到结果；签到码错误时 signed_in 为 false
type SignInResponse struct {
	SignedIn bool `json:"signed_in"`
}

// RecordFilter 签到记录过滤条件，两者至多设置一个
type RecordFilter struct {
	StudentID *uint `form:"student_id"`
	TAID      *uint `form:"ta_id"`
}

// RecordResponse 签到记录
type RecordResponse struct {
	ID        uint `json:"id"`
	SessionID uint `json:"session_id"`
	UserID    uint `json:"user_id"`
}

// AttendanceDetail 某用户在某窗口的出勤情况
type AttendanceDetail struct {
	SessionID uint       `json:"session_id"`
	UserID    uint       `json:"user_id"`
	OpenedAt  time.Time  `json:"opened_at"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
	Attended  bool       `json:"attended"`
}

// EditAttendanceRequest 修改历史出勤
type EditAttendanceRequest struct {
	Role      string `json:"role"       binding:"required,oneof=student ta"`
	UserID    uint   `json:"-"`
	SessionID *uint  `json:"session_id"`
	Attended  *bool  `json:"attended"`
}

// StudentAttendanceSummary 学生累计出勤
type StudentAttendanceSummary struct {
	UserID      uint   `json:"user_id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	UNI         string `json:"uni"`
	Attended    int    `json:"attended"`
	Sessions    int    `json:"sessions"`
}
