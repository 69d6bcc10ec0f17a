package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"regdesk/config"
)

// Client Redis 客户端封装
// 当前用于审批分布式锁：多实例部署时同一申请同一时刻只允许一个审批流程进入事务
type Client struct {
	rdb    goredis.UniversalClient
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
		_ = rdb.Close()
		return nil, fmt.Errorf("Redis 连接失败: %w", err)
	}

	logger.Info("Redis 连接成功", zap.String("addr", cfg.Addr))

	return &Client{rdb: rdb, logger: logger}, nil
}

// ── 分布式锁 ──

const lockPrefix = "lock:"

// releaseScript 仅当锁仍由本持有者持有时才删除，避免误删他人续上的锁
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// AcquireLock 以 SET NX PX 获取锁，返回是否获取成功
func (c *Client) AcquireLock(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, lockPrefix+key, owner, ttl).Result()
}

// ReleaseLock 释放由 owner 持有的锁
func (c *Client) ReleaseLock(ctx context.Context, key, owner string) error {
	return releaseScript.Run(ctx, c.rdb, []string{lockPrefix + key}, owner).Err()
}

// Ping 健康检查
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close 关闭 Redis 连接
func (c *Client) Close() error {
	return c.rdb.Close()
}
