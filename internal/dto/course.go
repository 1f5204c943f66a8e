package dto

// ── 课程模块 DTO ──

// CreateCourseRequest 创建课程请求
type CreateCourseRequest struct {
	Name string `json:"name" binding:"required,max=200"`
}

// CourseBrief 课程简要信息
type CourseBrief struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

// CourseOverviewResponse 教师课程视图
type CourseOverviewResponse struct {
	ID           uint   `json:"id"`
	Name         string `json:"name"`
	Secret       *int   `json:"secret,omitempty"` // 仅在窗口开放时返回
	SessionCount int64  `json:"session_count"`
	StudentCount int64  `json:"student_count"`
	TACount      int64  `json:"ta_count"`
}

// ── 名单管理 ──

// RosterMemberRequest 按用户 ID 或 UNI 添加名单成员
type RosterMemberRequest struct {
	UserID *uint  `json:"user_id"`
	UNI    string `json:"uni" binding:"max=20"`
}

// RosterBulkRequest 批量添加：以换行分隔的 UNI 列表
type RosterBulkRequest struct {
	UNIs string `json:"unis" binding:"required"`
}

// RosterMemberResponse 名单成员
type RosterMemberResponse struct {
	ID          uint   `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	UNI         string `json:"uni,omitempty"`
}

// RosterImportResponse 批量导入结果
type RosterImportResponse struct {
	Total   int                 `json:"total"`
	Success int                 `json:"success"`
	Failed  int                 `json:"failed"`
	Errors  []RosterImportError `json:"errors,omitempty"`
}

// RosterImportError 导入错误详情
type RosterImportError struct {
	Line   int    `json:"line"`
	UNI    string `json:"uni"`
	Reason string `json:"reason"`
}
