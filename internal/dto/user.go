package dto

// ── 用户模块 DTO ──

// UserQuery 用户解析条件，优先级 ID > UNI > Email
type UserQuery struct {
	ID    *uint
	UNI   string
	Email string
}

// RegisterRequest 注册为教师和 / 或学生
type RegisterRequest struct {
	AsTeacher bool   `json:"as_teacher"`
	UNI       string `json:"uni" binding:"max=20"`
}

// UserResponse 用户信息响应
type UserResponse struct {
	ID          uint   `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	UNI         string `json:"uni,omitempty"`
	IsTeacher   bool   `json:"is_teacher"`
	IsStudent   bool   `json:"is_student"`
}

// MyCoursesResponse 当前用户关联的课程，按角色分组
type MyCoursesResponse struct {
	Teaching []CourseBrief `json:"teaching"`
	Taking   []CourseBrief `json:"taking"`
	TAing    []CourseBrief `json:"taing"`
}
