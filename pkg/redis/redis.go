package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"imhere/backend/config"
)

// Client Redis 客户端封装
// 用于 Token 黑名单、接口限流与签到码错误计数；均为可降级的辅助能力，
// 考勤数据本身只存放在 PostgreSQL 中。
type Client struct {
	rdb    *goredis.Client
	logger *zap.Logger
}

// NewClient 创建 Redis 连接并执行 Ping 健康检查
func NewClient(cfg *config.RedisConfig, logger *zap.Logger) (*Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("Redis 连接失败: %w", err)
	}

	logger.Info("Redis 连接成功", zap.String("addr", cfg.Addr))

	return &Client{rdb: rdb, logger: logger}, nil
}

// ── Token 黑名单 ──

const blacklistPrefix = "token:blacklist:"

// BlacklistToken 将 JWT ID 加入黑名单，TTL 与 Token 剩余有效期一致
func (c *Client) BlacklistToken(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil // Token 已过期，无需加入黑名单
	}
	return c.rdb.Set(ctx, blacklistPrefix+jti, "1", ttl).Err()
}

// IsBlacklisted 检查 JWT ID 是否在黑名单中
func (c *Client) IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	n, err := c.rdb.Exists(ctx, blacklistPrefix+jti).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ── 滑动窗口限流 ──

// CheckRateLimit 基于 ZSET 的滑动窗口计数，返回本次请求是否放行
func (c *Client) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	now := time.Now()
	windowStart := now.Add(-window).UnixNano()

	pipe := c.rdb.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(windowStart, 10))
	pipe.ZAdd(ctx, key, goredis.Z{Score: float64(now.UnixNano()), Member: uuid.NewString()})
	card := pipe.ZCard(ctx, key)
	pipe.Expire(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}

	return card.Val() <= int64(limit), nil
}

// ── 签到码错误计数 ──

const signInFailurePrefix = "signin:failures:"

// SignInGuard 记录每个 (课程, 用户) 在窗口期内输错签到码的次数
// 4 位签到码只有 9000 种可能，需要限制猜测次数。
type SignInGuard struct {
	client      *Client
	maxFailures int
	window      time.Duration
}

// NewSignInGuard 创建签到码错误计数器
func NewSignInGuard(client *Client, cfg *config.AttendanceConfig) *SignInGuard {
	return &SignInGuard{
		client:      client,
		maxFailures: cfg.MaxSecretFailures,
		window:      cfg.FailureWindow,
	}
}

func signInFailureKey(courseID, userID uint) string {
	return fmt.Sprintf("%s%d:%d", signInFailurePrefix, courseID, userID)
}

// Blocked 判断该用户在该课程的签到是否因错误次数过多被暂时拒绝
func (g *SignInGuard) Blocked(ctx context.Context, courseID, userID uint) (bool, error) {
	n, err := g.client.rdb.Get(ctx, signInFailureKey(courseID, userID)).Int64()
	if errors.Is(err, goredis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return n >= int64(g.maxFailures), nil
}

// RecordFailure 累加一次错误；首次错误时开始计时窗口
func (g *SignInGuard) RecordFailure(ctx context.Context, courseID, userID uint) error {
	key := signInFailureKey(courseID, userID)
	n, err := g.client.rdb.Incr(ctx, key).Result()
	if err != nil {
		return err
	}
	if n == 1 {
		return g.client.rdb.Expire(ctx, key, g.window).Err()
	}
	return nil
}

// Reset 签到成功后清除错误计数
func (g *SignInGuard) Reset(ctx context.Context, courseID, userID uint) error {
	return g.client.rdb.Del(ctx, signInFailureKey(courseID, userID)).Err()
}

// Close 关闭 Redis 连接
func (c *Client) Close() error {
	return c.rdb.Close()
}
