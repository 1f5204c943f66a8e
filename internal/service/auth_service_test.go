package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"imhere/backend/config"
	"imhere/backend/internal/dto"
	"imhere/backend/pkg/jwt"
)

// ── Mock TokenBlacklist ──

type mockBlacklist struct {
	tokens map[string]time.Duration
	err    error
}

func (b *mockBlacklist) BlacklistToken(_ context.Context, jti string, ttl time.Duration) error {
	if b.err != nil {
		return b.err
	}
	b.tokens[jti] = ttl
	return nil
}

func setupTestAuthService(blacklist TokenBlacklist) (AuthService, *memStore, *jwt.Manager) {
	store := newMemStore()
	jwtMgr := jwt.NewManager(&config.AuthConfig{
		JWTSecret:      "test-secret-key-for-unit-testing-2026",
		AccessTokenTTL: 15 * time.Minute,
	})
	userSvc := NewUserService(store.repository(), zap.NewNop())
	return NewAuthService(userSvc, jwtMgr, blacklist, zap.NewNop()), store, jwtMgr
}

func TestAuthService_Login_CreatesUser(t *testing.T) {
	svc, store, jwtMgr := setupTestAuthService(nil)

	resp, err := svc.Login(context.Background(), &dto.IdentityRequest{
		Provider:    "google",
		Email:       "New@Test.com",
		DisplayName: "新用户",
	})
	if err != nil {
		t.Fatalf("Login 应成功: %v", err)
	}
	if !resp.Created {
		t.Error("首次登录应创建用户")
	}
	if resp.User.Email != "new@test.com" {
		t.Errorf("邮箱应规范化为小写，实际 %s", resp.User.Email)
	}
	if resp.ExpiresIn != 900 {
		t.Errorf("期望 ExpiresIn=900，实际 %d", resp.ExpiresIn)
	}
	if len(store.users) != 1 {
		t.Errorf("期望 1 个用户，实际 %d", len(store.users))
	}

	claims, err := jwtMgr.ParseToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("签发的 Token 应可解析: %v", err)
	}
	if claims.UserID != resp.User.ID {
		t.Errorf("Token 中 UserID=%d 与用户 %d 不符", claims.UserID, resp.User.ID)
	}
}

func TestAuthService_Login_ExistingUser(t *testing.T) {
	svc, store, _ := setupTestAuthService(nil)
	existing := store.addUser("old@test.com", "ol0001", false)

	resp, err := svc.Login(context.Background(), &dto.IdentityRequest{Provider: "google", Email: "old@test.com"})
	if err != nil {
		t.Fatalf("Login 应成功: %v", err)
	}
	if resp.Created {
		t.Error("已有用户登录不应标记为新建")
	}
	if resp.User.ID != existing.UserID || !resp.User.IsStudent {
		t.Errorf("返回用户不符: %+v", resp.User)
	}
}

func TestAuthService_Login_EmailRequired(t *testing.T) {
	svc, _, _ := setupTestAuthService(nil)

	_, err := svc.Login(context.Background(), &dto.IdentityRequest{Provider: "google", Email: "  "})
	if !errors.Is(err, ErrEmailRequired) {
		t.Errorf("期望 ErrEmailRequired，实际: %v", err)
	}
}

func TestAuthService_Logout(t *testing.T) {
	bl := &mockBlacklist{tokens: map[string]time.Duration{}}
	svc, _, _ := setupTestAuthService(bl)

	if err := svc.Logout(context.Background(), "jti-1", time.Now().Add(10*time.Minute)); err != nil {
		t.Fatalf("Logout 应成功: %v", err)
	}
	ttl, ok := bl.tokens["jti-1"]
	if !ok {
		t.Fatal("Token 应加入黑名单")
	}
	if ttl <= 0 || ttl > 10*time.Minute {
		t.Errorf("黑名单 TTL 应为剩余有效期，实际 %v", ttl)
	}

	if err := svc.Logout(context.Background(), "", time.Now().Add(time.Minute)); err != nil {
		t.Errorf("空 JTI 应忽略: %v", err)
	}
	if len(bl.tokens) != 1 {
		t.Error("空 JTI 不应写入黑名单")
	}
}

func TestAuthService_Logout_BlacklistError(t *testing.T) {
	bl := &mockBlacklist{tokens: map[string]time.Duration{}, err: errors.New("redis down")}
	svc, _, _ := setupTestAuthService(bl)

	if err := svc.Logout(context.Background(), "jti-1", time.Now().Add(time.Minute)); err == nil {
		t.Error("黑名单写入失败应返回错误")
	}
}

func TestAuthService_Logout_NoBlacklist(t *testing.T) {
	svc, _, _ := setupTestAuthService(nil)

	if err := svc.Logout(context.Background(), "jti-1", time.Now().Add(time.Minute)); err != nil {
		t.Errorf("未启用黑名单时 Logout 应为空操作: %v", err)
	}
}
