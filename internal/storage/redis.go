package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"

	"resume-match-go/internal/config"
	"resume-match-go/internal/constants"
	"resume-match-go/internal/types"
)

// ErrNotFound 键不存在
var ErrNotFound = redis.Nil

// ErrLockNotAcquired 未能获得分布式锁（已有并发操作持有）
var ErrLockNotAcquired = errors.New("未能获得分布式锁")

// releaseLockScript 只释放自己持有的锁，避免误删他人的锁
var releaseLockScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`)

// Redis 封装分布式锁与打分结果缓存
type Redis struct {
	client        *redis.Client
	lockTTL       time.Duration
	scoreCacheTTL time.Duration
}

// NewRedis 创建Redis适配器并安装OTel钩子
func NewRedis(cfg *config.RedisConfig) (*Redis, error) {
	if cfg == nil || cfg.Address == "" {
		return nil, fmt.Errorf("redis配置不能为空")
	}

	opts := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if cfg.MinIdleConns > 0 {
		opts.MinIdleConns = cfg.MinIdleConns
	}
	if cfg.DialTimeoutSeconds > 0 {
		opts.DialTimeout = time.Duration(cfg.DialTimeoutSeconds) * time.Second
	}
	if cfg.ReadTimeoutSeconds > 0 {
		opts.ReadTimeout = time.Duration(cfg.ReadTimeoutSeconds) * time.Second
	}
	if cfg.WriteTimeoutSeconds > 0 {
		opts.WriteTimeout = time.Duration(cfg.WriteTimeoutSeconds) * time.Second
	}

	client := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		return nil, fmt.Errorf("安装Redis追踪钩子失败: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("连接Redis失败: %w", err)
	}

	lockTTL := time.Duration(cfg.LockTTLSeconds) * time.Second
	if lockTTL == 0 {
		lockTTL = 5 * time.Minute
	}
	scoreCacheTTL := time.Duration(cfg.ScoreCacheTTLMinutes) * time.Minute
	if scoreCacheTTL == 0 {
		scoreCacheTTL = time.Hour
	}

	return &Redis{
		client:        client,
		lockTTL:       lockTTL,
		scoreCacheTTL: scoreCacheTTL,
	}, nil
}

// NewRedisWithClient 用现成的客户端构造适配器，测试用
func NewRedisWithClient(client *redis.Client, lockTTL, scoreCacheTTL time.Duration) *Redis {
	return &Redis{
		client:        client,
		lockTTL:       lockTTL,
		scoreCacheTTL: scoreCacheTTL,
	}
}

// Close 关闭连接
func (r *Redis) Close() error {
	return r.client.Close()
}

// AcquireLock 尝试获取锁，返回释放凭证
// 拿不到锁时返回 ErrLockNotAcquired；锁带TTL防止持有者崩溃后死锁
func (r *Redis) AcquireLock(ctx context.Context, key string) (string, error) {
	token := uuid.NewString()
	ok, err := r.client.SetNX(ctx, key, token, r.lockTTL).Result()
	if err != nil {
		return "", fmt.Errorf("获取锁失败: %w", err)
	}
	if !ok {
		return "", ErrLockNotAcquired
	}
	return token, nil
}

// ReleaseLock 用凭证释放锁，凭证不符时不动
func (r *Redis) ReleaseLock(ctx context.Context, key, token string) error {
	if err := releaseLockScript.Run(ctx, r.client, []string{key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("释放锁失败: %w", err)
	}
	return nil
}

// LockResume 获取一份简历的摄取锁
func (r *Redis) LockResume(ctx context.Context, resumeID string) (string, error) {
	return r.AcquireLock(ctx, constants.ResumeLockKey(resumeID))
}

// UnlockResume 释放简历摄取锁
func (r *Redis) UnlockResume(ctx context.Context, resumeID, token string) error {
	return r.ReleaseLock(ctx, constants.ResumeLockKey(resumeID), token)
}

// LockJob 获取一个岗位的打分批次锁
func (r *Redis) LockJob(ctx context.Context, jobID string) (string, error) {
	return r.AcquireLock(ctx, constants.JobLockKey(jobID))
}

// UnlockJob 释放岗位打分批次锁
func (r *Redis) UnlockJob(ctx context.Context, jobID, token string) error {
	return r.ReleaseLock(ctx, constants.JobLockKey(jobID), token)
}

// CacheJobScores 缓存一个岗位的完整打分结果集，整体覆盖
func (r *Redis) CacheJobScores(ctx context.Context, jobID string, results []types.ScoreResult) error {
	data, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("序列化打分结果失败: %w", err)
	}
	if err := r.client.Set(ctx, constants.JobScoresCacheKey(jobID), data, r.scoreCacheTTL).Err(); err != nil {
		return fmt.Errorf("缓存打分结果失败: %w", err)
	}
	return nil
}

// GetCachedJobScores 读取缓存的打分结果集，不存在时返回 ErrNotFound
func (r *Redis) GetCachedJobScores(ctx context.Context, jobID string) ([]types.ScoreResult, error) {
	data, err := r.client.Get(ctx, constants.JobScoresCacheKey(jobID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("读取打分结果缓存失败: %w", err)
	}

	var results []types.ScoreResult
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, fmt.Errorf("反序列化打分结果失败: %w", err)
	}
	return results, nil
}
