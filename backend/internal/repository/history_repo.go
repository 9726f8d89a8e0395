package repository

import (
	"context"

	"gorm.io/gorm"

	"contract-tracker/backend/internal/model"
)

// HistoryRepository 审计日志数据访问接口（仅追加）
type HistoryRepository interface {
	Create(ctx context.Context, entry *model.ProjectHistory) error
	// List 按 history_id 倒序的键集分页；cursor 非空时只取 id 小于 cursor 的行
	List(ctx context.Context, projectID int64, cursor *int64, limit int) ([]model.ProjectHistory, error)
}

type historyRepo struct {
	db *gorm.DB
}

// NewHistoryRepo 创建 HistoryRepository 实例
func NewHistoryRepo(db *gorm.DB) HistoryRepository {
	return &historyRepo{db: db}
}

func (r *historyRepo) Create(ctx context.Context, entry *model.ProjectHistory) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *historyRepo) List(ctx context.Context, projectID int64, cursor *int64, limit int) ([]model.ProjectHistory, error) {
	var entries []model.ProjectHistory
	db := r.db.WithContext(ctx).Where("project_id = ?", projectID)
	if cursor != nil {
		db = db.Where("history_id < ?", *cursor)
	}
	err := db.Order("history_id DESC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}
