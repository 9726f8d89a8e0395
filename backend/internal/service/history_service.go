package service

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"contract-tracker/backend/internal/dto"
	"contract-tracker/backend/internal/model"
	"contract-tracker/backend/internal/repository"
)

// 审计实体
const (
	EntityProject    = "project"
	EntityMilestone  = "milestone"
	EntityDependency = "dependency"
	EntityFunding    = "funding"
	EntityContract   = "contract"
	EntityIPT        = "ipt"
)

// HistoryService 审计日志查询接口
type HistoryService interface {
	List(ctx context.Context, projectID int64, req *dto.CursorRequest) ([]dto.HistoryResponse, *int64, error)
}

type historyService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewHistoryService 创建 HistoryService 实例
func NewHistoryService(repo *repository.Repository, logger *zap.Logger) HistoryService {
	return &historyService{repo: repo, logger: logger}
}

// ────────────────────── List ──────────────────────

// List 多取一行判断是否还有下一页；返回的游标为本页最后一行的 ID
func (s *historyService) List(ctx context.Context, projectID int64, req *dto.CursorRequest) ([]dto.HistoryResponse, *int64, error) {
	limit := req.GetLimit()
	entries, err := s.repo.History.List(ctx, projectID, req.Cursor, limit+1)
	if err != nil {
		s.logger.Error("查询审计日志失败", zap.Int64("project_id", projectID), zap.Error(err))
		return nil, nil, err
	}

	var next *int64
	if len(entries) > limit {
		entries = entries[:limit]
		last := entries[limit-1].HistoryID
		next = &last
	}

	result := make([]dto.HistoryResponse, 0, len(entries))
	for i := range entries {
		e := &entries[i]
		result = append(result, dto.HistoryResponse{
			ID:        e.HistoryID,
			ProjectID: e.ProjectID,
			UserID:    e.UserID,
			Entity:    e.Entity,
			Action:    e.Action,
			Changes:   json.RawMessage(e.Changes),
			CreatedAt: e.CreatedAt.Format(time.RFC3339),
		})
	}
	return result, next, nil
}

// ── 写入辅助 ──

// appendHistory 追加一条审计日志；repo 可以是事务内的聚合
func appendHistory(ctx context.Context, repo *repository.Repository, projectID, userID int64, entity, action string, changes interface{}) error {
	payload, err := json.Marshal(changes)
	if err != nil {
		return err
	}
	entry := &model.ProjectHistory{
		ProjectID: projectID,
		Entity:    entity,
		Action:    action,
		Changes:   datatypes.JSON(payload),
	}
	if userID != 0 {
		entry.UserID = &userID
	}
	return repo.History.Create(ctx, entry)
}
