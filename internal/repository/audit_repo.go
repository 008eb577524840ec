package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/gosignals-ai/bet-analyzer/internal/model"
)

// AuditRepository 运行审计日志
type AuditRepository interface {
	Record(ctx context.Context, source, action string, details interface{}) error
	ListRecent(ctx context.Context, action string, limit int) ([]model.AuditLog, error)
}

type auditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) AuditRepository {
	return &auditRepository{db: db}
}

func (r *auditRepository) Record(ctx context.Context, source, action string, details interface{}) error {
	raw, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("序列化审计详情失败: %w", err)
	}
	row := &model.AuditLog{Source: source, Action: action, Details: datatypes.JSON(raw)}
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("写入审计日志失败: %w", err)
	}
	return nil
}

func (r *auditRepository) ListRecent(ctx context.Context, action string, limit int) ([]model.AuditLog, error) {
	q := r.db.WithContext(ctx).Model(&model.AuditLog{})
	if action != "" {
		q = q.Where("action = ?", action)
	}
	if limit <= 0 {
		limit = 50
	}
	var logs []model.AuditLog
	if err := q.Order("id DESC").Limit(limit).Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("查询审计日志失败: %w", err)
	}
	return logs, nil
}
