package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"resume-match-go/internal/config"
	"resume-match-go/internal/storage/models"
	"resume-match-go/internal/types"
)

// ErrRecordNotFound 记录不存在
var ErrRecordNotFound = gorm.ErrRecordNotFound

// MySQL 简历/岗位/打分记录的关系型存储
type MySQL struct {
	db *gorm.DB
}

// NewMySQL 创建MySQL存储并自动迁移表结构
func NewMySQL(cfg *config.MySQLConfig) (*MySQL, error) {
	if cfg == nil || cfg.Host == "" {
		return nil, fmt.Errorf("mysql配置不能为空")
	}

	logLevel := gormlogger.Warn
	switch cfg.LogLevel {
	case "silent":
		logLevel = gormlogger.Silent
	case "info":
		logLevel = gormlogger.Info
	case "error":
		logLevel = gormlogger.Error
	}

	db, err := gorm.Open(mysql.Open(cfg.DSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("连接MySQL失败: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取底层连接池失败: %w", err)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)
	}

	m := &MySQL{db: db}
	if err := m.autoMigrateSchema(); err != nil {
		return nil, fmt.Errorf("自动迁移表结构失败: %w", err)
	}
	return m, nil
}

// NewMySQLWithDB 用现成的gorm连接构造存储，测试用
func NewMySQLWithDB(db *gorm.DB) *MySQL {
	return &MySQL{db: db}
}

func (m *MySQL) autoMigrateSchema() error {
	return m.db.AutoMigrate(
		&models.Candidate{},
		&models.Job{},
		&models.ResumeScore{},
	)
}

// DB 返回底层gorm实例
func (m *MySQL) DB() *gorm.DB {
	return m.db
}

// Close 关闭连接池
func (m *MySQL) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// GetResumeProfile 按ID读取简历的结构化视图
func (m *MySQL) GetResumeProfile(ctx context.Context, resumeID string) (types.ResumeProfile, error) {
	var record models.Candidate
	if err := m.db.WithContext(ctx).First(&record, "resume_id = ?", resumeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return types.ResumeProfile{}, fmt.Errorf("简历 %s 不存在: %w", resumeID, ErrRecordNotFound)
		}
		return types.ResumeProfile{}, fmt.Errorf("读取简历失败: %w", err)
	}
	return candidateToProfile(record)
}

// ListResumesByJob 列出一个岗位下的全部简历，按创建时间升序
// 这个顺序也是批量排名时分数相同的平局次序
func (m *MySQL) ListResumesByJob(ctx context.Context, jobID string) ([]types.ResumeProfile, error) {
	var records []models.Candidate
	if err := m.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("created_at ASC, resume_id ASC").
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("读取岗位简历列表失败: %w", err)
	}

	profiles := make([]types.ResumeProfile, 0, len(records))
	for _, record := range records {
		profile, err := candidateToProfile(record)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, profile)
	}
	return profiles, nil
}

// GetJobRequirement 按ID读取岗位要求
func (m *MySQL) GetJobRequirement(ctx context.Context, jobID string) (types.JobRequirement, error) {
	var record models.Job
	if err := m.db.WithContext(ctx).First(&record, "job_id = ?", jobID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return types.JobRequirement{}, fmt.Errorf("岗位 %s 不存在: %w", jobID, ErrRecordNotFound)
		}
		return types.JobRequirement{}, fmt.Errorf("读取岗位失败: %w", err)
	}

	skills, err := models.JSONToStringSlice(record.RequiredSkills)
	if err != nil {
		return types.JobRequirement{}, fmt.Errorf("解析岗位技能列表失败: %w", err)
	}
	return types.JobRequirement{
		JobID:                  record.JobID,
		Title:                  record.Title,
		RequiredSkills:         skills,
		MinimumExperienceYears: record.MinimumExperienceYears,
		DescriptionText:        record.DescriptionText,
	}, nil
}

// SaveScoreResults 持久化一个岗位的完整打分结果集
// 先删旧记录再写新记录，同一事务内完成，保证名次整体覆盖
func (m *MySQL) SaveScoreResults(ctx context.Context, jobID string, results []types.ScoreResult) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("job_id = ?", jobID).Delete(&models.ResumeScore{}).Error; err != nil {
			return fmt.Errorf("删除旧打分记录失败: %w", err)
		}

		if len(results) == 0 {
			return nil
		}

		records := make([]models.ResumeScore, 0, len(results))
		for _, r := range results {
			records = append(records, models.ResumeScore{
				JobID:           jobID,
				ResumeID:        r.ResumeID,
				SkillScore:      r.SkillScore,
				ExperienceScore: r.ExperienceScore,
				SemanticScore:   r.SemanticScore,
				TotalScore:      r.TotalScore,
				Rank:            r.Rank,
			})
		}
		if err := tx.Create(&records).Error; err != nil {
			return fmt.Errorf("写入打分记录失败: %w", err)
		}
		return nil
	})
}

// candidateToProfile 把存储记录转换为核心使用的结构化视图
func candidateToProfile(record models.Candidate) (types.ResumeProfile, error) {
	skills, err := models.JSONToStringSlice(record.Skills)
	if err != nil {
		return types.ResumeProfile{}, fmt.Errorf("解析简历技能列表失败: %w", err)
	}

	var entries []types.ExperienceEntry
	if len(record.ExperienceEntries) > 0 {
		if err := json.Unmarshal(record.ExperienceEntries, &entries); err != nil {
			return types.ResumeProfile{}, fmt.Errorf("解析工作经历失败: %w", err)
		}
	}

	return types.ResumeProfile{
		ResumeID:             record.ResumeID,
		JobID:                record.JobID,
		CandidateName:        record.CandidateName,
		Skills:               skills,
		ExperienceEntries:    entries,
		TotalExperienceYears: record.TotalExperienceYears,
		RawText:              record.RawText,
		Summary:              record.Summary,
	}, nil
}
