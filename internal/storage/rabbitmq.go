package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"resume-match-go/internal/config"
	"resume-match-go/internal/logger"
)

// ResumeIndexedEvent 简历索引完成事件
type ResumeIndexedEvent struct {
	EventID    string    `json:"event_id"`
	ResumeID   string    `json:"resume_id"`
	JobID      string    `json:"job_id,omitempty"`
	ChunkCount int       `json:"chunk_count"`
	IndexedAt  time.Time `json:"indexed_at"`
}

// JobScoredEvent 岗位批量打分完成事件
type JobScoredEvent struct {
	EventID     string    `json:"event_id"`
	JobID       string    `json:"job_id"`
	ResumeCount int       `json:"resume_count"`
	FailedCount int       `json:"failed_count"`
	ScoredAt    time.Time `json:"scored_at"`
}

// RabbitMQ 索引/打分完成事件的发布端
type RabbitMQ struct {
	conn              *amqp.Connection
	channel           *amqp.Channel
	exchange          string
	indexedRoutingKey string
	scoredRoutingKey  string
	publishTimeout    time.Duration
}

// NewRabbitMQ 建立连接并声明事件交换机
func NewRabbitMQ(cfg *config.RabbitMQConfig) (*RabbitMQ, error) {
	if cfg == nil || cfg.URL == "" {
		return nil, fmt.Errorf("rabbitmq配置不能为空")
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("连接RabbitMQ失败: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("创建RabbitMQ通道失败: %w", err)
	}

	exchange := cfg.EventsExchange
	if exchange == "" {
		exchange = "resume.events"
	}
	if err := channel.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("声明交换机失败: %w", err)
	}

	indexedKey := cfg.IndexedRoutingKey
	if indexedKey == "" {
		indexedKey = "resume.indexed"
	}
	scoredKey := cfg.ScoredRoutingKey
	if scoredKey == "" {
		scoredKey = "job.scored"
	}
	publishTimeout := time.Duration(cfg.PublishTimeoutSecs) * time.Second
	if publishTimeout == 0 {
		publishTimeout = 5 * time.Second
	}

	return &RabbitMQ{
		conn:              conn,
		channel:           channel,
		exchange:          exchange,
		indexedRoutingKey: indexedKey,
		scoredRoutingKey:  scoredKey,
		publishTimeout:    publishTimeout,
	}, nil
}

// Close 关闭通道与连接
func (r *RabbitMQ) Close() error {
	if r.channel != nil {
		if err := r.channel.Close(); err != nil {
			logger.Warn().Err(err).Msg("关闭RabbitMQ通道失败")
		}
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}

// PublishResumeIndexed 发布简历索引完成事件
func (r *RabbitMQ) PublishResumeIndexed(ctx context.Context, resumeID, jobID string, chunkCount int) error {
	event := ResumeIndexedEvent{
		EventID:    uuid.NewString(),
		ResumeID:   resumeID,
		JobID:      jobID,
		ChunkCount: chunkCount,
		IndexedAt:  time.Now(),
	}
	return r.publish(ctx, r.indexedRoutingKey, event)
}

// PublishJobScored 发布岗位打分完成事件
func (r *RabbitMQ) PublishJobScored(ctx context.Context, jobID string, resumeCount, failedCount int) error {
	event := JobScoredEvent{
		EventID:     uuid.NewString(),
		JobID:       jobID,
		ResumeCount: resumeCount,
		FailedCount: failedCount,
		ScoredAt:    time.Now(),
	}
	return r.publish(ctx, r.scoredRoutingKey, event)
}

func (r *RabbitMQ) publish(ctx context.Context, routingKey string, event interface{}) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("序列化事件失败: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.publishTimeout)
	defer cancel()

	if err := r.channel.PublishWithContext(ctx,
		r.exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	); err != nil {
		return fmt.Errorf("发布事件到 %s 失败: %w", routingKey, err)
	}
	return nil
}
