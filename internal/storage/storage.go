package storage

import (
	"context"
	"fmt"
	"strings"

	"resume-match-go/internal/config"
	"resume-match-go/internal/logger"
)

// Storage 存储管理器，聚合所有存储相关依赖
type Storage struct {
	// 向量索引（Qdrant未配置时降级为进程内索引）
	VectorIndex VectorIndex

	// 键值存储：分布式锁与结果缓存
	Redis *Redis

	// 关系型数据库：简历/岗位/打分记录
	MySQL *MySQL

	// 消息队列：索引/打分完成事件（可选）
	RabbitMQ *RabbitMQ
}

// NewStorage 按配置初始化各存储组件
// 可选组件初始化失败只告警不中断；全部失败时返回错误
func NewStorage(ctx context.Context, cfg *config.Config) (*Storage, error) {
	if cfg == nil {
		return nil, fmt.Errorf("配置不能为空")
	}

	storage := &Storage{}
	var initErrors []string

	// 向量索引
	if cfg.Qdrant.Endpoint != "" {
		qdrant, err := NewQdrant(&cfg.Qdrant)
		if err != nil {
			logger.Warn().Err(err).Msg("初始化Qdrant失败")
			initErrors = append(initErrors, fmt.Sprintf("Qdrant: %v", err))
		} else {
			storage.VectorIndex = qdrant
		}
	}
	if storage.VectorIndex == nil {
		logger.Warn().Msg("Qdrant不可用，降级为进程内向量索引")
		storage.VectorIndex = NewMemoryVectorIndex()
	}

	// Redis
	if cfg.Redis.Address != "" {
		redis, err := NewRedis(&cfg.Redis)
		if err != nil {
			logger.Warn().Err(err).Msg("初始化Redis失败")
			initErrors = append(initErrors, fmt.Sprintf("Redis: %v", err))
		} else {
			storage.Redis = redis
			logger.Info().Str("address", cfg.Redis.Address).Msg("Redis客户端初始化成功")
		}
	}

	// MySQL
	if cfg.MySQL.Host != "" {
		mysql, err := NewMySQL(&cfg.MySQL)
		if err != nil {
			logger.Warn().Err(err).Msg("初始化MySQL失败")
			initErrors = append(initErrors, fmt.Sprintf("MySQL: %v", err))
		} else {
			storage.MySQL = mysql
			logger.Info().Str("host", cfg.MySQL.Host).Msg("MySQL客户端初始化成功")
		}
	}

	// RabbitMQ（可选）
	if cfg.RabbitMQ.URL != "" {
		rabbitmq, err := NewRabbitMQ(&cfg.RabbitMQ)
		if err != nil {
			logger.Warn().Err(err).Msg("初始化RabbitMQ失败")
			initErrors = append(initErrors, fmt.Sprintf("RabbitMQ: %v", err))
		} else {
			storage.RabbitMQ = rabbitmq
			logger.Info().Msg("RabbitMQ客户端初始化成功")
		}
	}

	if storage.Redis == nil && storage.MySQL == nil && storage.RabbitMQ == nil && cfg.MySQL.Host != "" {
		return nil, fmt.Errorf("所有存储组件初始化失败: %s", strings.Join(initErrors, "; "))
	}
	if len(initErrors) > 0 {
		logger.Warn().Str("errors", strings.Join(initErrors, "; ")).Msg("部分存储组件初始化失败")
	}

	return storage, nil
}

// Close 关闭所有连接
func (s *Storage) Close() {
	if s.RabbitMQ != nil {
		if err := s.RabbitMQ.Close(); err != nil {
			logger.Warn().Err(err).Msg("关闭RabbitMQ连接失败")
		}
	}
	if s.MySQL != nil {
		if err := s.MySQL.Close(); err != nil {
			logger.Warn().Err(err).Msg("关闭MySQL连接失败")
		}
	}
	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			logger.Warn().Err(err).Msg("关闭Redis连接失败")
		}
	}
}
