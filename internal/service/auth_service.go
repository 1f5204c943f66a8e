package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"imhere/backend/internal/dto"
	"imhere/backend/pkg/jwt"
)

// TokenBlacklist 已注销 Token 的存储；为 nil 时注销仅由客户端丢弃 Token
type TokenBlacklist interface {
	BlacklistToken(ctx context.Context, jti string, ttl time.Duration) error
}

// AuthService 认证业务接口
//
// 身份校验由上游 OAuth 代理完成，本服务只负责把外部身份映射为用户并签发 Token。
type AuthService interface {
	Login(ctx context.Context, req *dto.IdentityRequest) (*dto.TokenResponse, error)
	Logout(ctx context.Context, jti string, expiresAt time.Time) error
}

type authService struct {
	userSvc   UserService
	jwtMgr    *jwt.Manager
	blacklist TokenBlacklist
	logger    *zap.Logger
}

// NewAuthService 创建 AuthService 实例
func NewAuthService(
	userSvc UserService,
	jwtMgr *jwt.Manager,
	blacklist TokenBlacklist,
	logger *zap.Logger,
) AuthService {
	return &authService{
		userSvc:   userSvc,
		jwtMgr:    jwtMgr,
		blacklist: blacklist,
		logger:    logger,
	}
}

// ────────────────────── Login ──────────────────────

func (s *authService) Login(ctx context.Context, req *dto.IdentityRequest) (*dto.TokenResponse, error) {
	user, created, err := s.userSvc.GetOrCreate(ctx, req)
	if err != nil {
		return nil, err
	}

	accessToken, err := s.jwtMgr.GenerateAccessToken(user.UserID)
	if err != nil {
		s.logger.Error("生成 AccessToken 失败", zap.Uint("user_id", user.UserID), zap.Error(err))
		return nil, err
	}

	return &dto.TokenResponse{
		AccessToken: accessToken,
		ExpiresIn:   int(s.jwtMgr.AccessTokenTTL().Seconds()),
		Created:     created,
		User:        *toUserResponse(user),
	}, nil
}

// ────────────────────── Logout ──────────────────────

func (s *authService) Logout(ctx context.Context, jti string, expiresAt time.Time) error {
	if s.blacklist == nil || jti == "" {
		return nil
	}
	if err := s.blacklist.BlacklistToken(ctx, jti, time.Until(expiresAt)); err != nil {
		s.logger.Error("Token 加入黑名单失败", zap.String("jti", jti), zap.Error(err))
		return err
	}
	return nil
}
