package dto

// ── 认证模块 DTO ──

// IdentityRequest 上游身份代理完成 OAuth 后提交的身份信息
type IdentityRequest struct {
	Provider    string `json:"provider"     binding:"required,max=50"`
	Email       string `json:"email"        binding:"required,email,max=255"`
	DisplayName string `json:"display_name" binding:"max=255"`
}

// TokenResponse 登录成功响应
type TokenResponse struct {
	AccessToken string       `json:"access_token"`
	ExpiresIn   int          `json:"expires_in"` // Access Token 有效期（秒）
	Created     bool         `json:"created"`    // 本次登录是否新建了用户
	User        UserResponse `json:"user"`
}
