package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"contract-tracker/backend/internal/dto"
	"contract-tracker/backend/internal/model"
	"contract-tracker/backend/internal/repository"
	"contract-tracker/backend/pkg/metrics"
)

// ── 里程碑模块业务错误 ──

var (
	ErrMilestoneNotFound          = errors.New("里程碑不存在")
	ErrMilestoneDateRequired      = errors.New("预计开始与结束日期不能为空")
	ErrMilestoneDateInvalid       = errors.New("预计结束日期不能早于预计开始日期")
	ErrMilestoneActualDateInvalid = errors.New("实际结束日期不能早于实际开始日期")
	ErrPlaceholderInvalid         = errors.New("临时 ID 为空或重复")
	ErrPlaceholderUnknown         = errors.New("前驱引用了本批次中不存在的临时 ID")
)

// MilestoneService 里程碑业务接口
type MilestoneService interface {
	ListByProject(ctx context.Context, projectID int64) ([]dto.MilestoneResponse, error)
	GetByID(ctx context.Context, id int64) (*dto.MilestoneResponse, error)
	Update(ctx context.Context, id int64, fields dto.MilestoneFields, callerID int64) (*dto.MilestoneResponse, error)
	// BulkCreate 在一个事务内写入全部新行及其前驱边，返回临时 ID 到服务端 ID 的映射（与 rows 同序）
	BulkCreate(ctx context.Context, projectID int64, rows []dto.NewMilestoneRow, callerID int64) ([]dto.PlaceholderMapping, error)
	Delete(ctx context.Context, id int64, callerID int64) error
}

type milestoneService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewMilestoneService 创建 MilestoneService 实例
func NewMilestoneService(repo *repository.Repository, logger *zap.Logger) MilestoneService {
	return &milestoneService{repo: repo, logger: logger}
}

// ────────────────────── ListByProject ──────────────────────

func (s *milestoneService) ListByProject(ctx context.Context, projectID int64) ([]dto.MilestoneResponse, error) {
	if _, err := s.repo.Project.GetByID(ctx, projectID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		s.logger.Error("查询项目失败", zap.Int64("project_id", projectID), zap.Error(err))
		return nil, err
	}

	milestones, err := s.repo.Milestone.ListByProject(ctx, projectID)
	if err != nil {
		s.logger.Error("列出里程碑失败", zap.Int64("project_id", projectID), zap.Error(err))
		return nil, err
	}

	result := make([]dto.MilestoneResponse, 0, len(milestones))
	for i := range milestones {
		result = append(result, toMilestoneResponse(&milestones[i]))
	}
	return result, nil
}

// ────────────────────── GetByID ──────────────────────

func (s *milestoneService) GetByID(ctx context.Context, id int64) (*dto.MilestoneResponse, error) {
	milestone, err := s.getMilestone(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := toMilestoneResponse(milestone)
	return &resp, nil
}

// ────────────────────── Update ──────────────────────

func (s *milestoneService) Update(ctx context.Context, id int64, fields dto.MilestoneFields, callerID int64) (*dto.MilestoneResponse, error) {
	if err := validateMilestoneFields(&fields); err != nil {
		return nil, err
	}

	milestone, err := s.getMilestone(ctx, id)
	if err != nil {
		return nil, err
	}

	applyMilestoneFields(milestone, &fields)

	if err := s.repo.Milestone.Update(ctx, milestone); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMilestoneNotFound
		}
		s.logger.Error("更新里程碑失败", zap.Int64("id", id), zap.Error(err))
		return nil, err
	}

	if err := appendHistory(ctx, s.repo, milestone.ProjectID, callerID, EntityMilestone, model.ActionUpdate,
		toMilestoneResponse(milestone)); err != nil {
		s.logger.Warn("写入审计日志失败", zap.Int64("milestone_id", id), zap.Error(err))
	}

	resp := toMilestoneResponse(milestone)
	return &resp, nil
}

// ────────────────────── BulkCreate ──────────────────────

func (s *milestoneService) BulkCreate(ctx context.Context, projectID int64, rows []dto.NewMilestoneRow, callerID int64) ([]dto.PlaceholderMapping, error) {
	if len(rows) == 0 {
		return []dto.PlaceholderMapping{}, nil
	}

	if _, err := s.repo.Project.GetByID(ctx, projectID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		s.logger.Error("查询项目失败", zap.Int64("project_id", projectID), zap.Error(err))
		return nil, err
	}

	// 1. 校验临时 ID 与字段
	index := make(map[string]int, len(rows))
	var persistedPreds []int64
	for i := range rows {
		ph := rows[i].PlaceholderID
		if ph == "" {
			return nil, ErrPlaceholderInvalid
		}
		if _, dup := index[ph]; dup {
			return nil, ErrPlaceholderInvalid
		}
		index[ph] = i
		if err := validateMilestoneFields(&rows[i].Fields); err != nil {
			return nil, err
		}
		persistedPreds = append(persistedPreds, rows[i].Predecessors...)
	}
	for i := range rows {
		for _, ref := range rows[i].PredecessorPlaceholders {
			j, ok := index[ref]
			if !ok {
				return nil, ErrPlaceholderUnknown
			}
			if j == i {
				return nil, ErrSelfDependency
			}
		}
	}

	// 2. 已持久化的前驱必须存在，并确定其所属项目
	predProjects, err := s.repo.Milestone.ResolveProjects(ctx, NormalizePredecessors(persistedPreds))
	if err != nil {
		s.logger.Error("解析前驱所属项目失败", zap.Error(err))
		return nil, err
	}
	for _, id := range persistedPreds {
		if _, ok := predProjects[id]; !ok {
			return nil, ErrPredecessorNotFound
		}
	}

	// 3. 单事务：插入新行 → 回填 ID → 插入前驱边
	milestones := make([]model.Milestone, len(rows))
	for i := range rows {
		milestones[i].ProjectID = projectID
		applyMilestoneFields(&milestones[i], &rows[i].Fields)
	}

	err = runInTx(ctx, s.repo, s.logger, func(txRepo *repository.Repository) error {
		if err := txRepo.Milestone.BatchCreate(ctx, milestones); err != nil {
			return err
		}

		var edges []model.MilestoneDependency
		for i := range rows {
			succ := milestones[i].MilestoneID
			seen := make(map[int64]bool)
			for _, id := range NormalizePredecessors(rows[i].Predecessors) {
				seen[id] = true
				edges = append(edges, model.MilestoneDependency{
					PredecessorProjectID:   predProjects[id],
					PredecessorMilestoneID: id,
					SuccessorProjectID:     projectID,
					SuccessorMilestoneID:   succ,
				})
			}
			for _, ref := range rows[i].PredecessorPlaceholders {
				id := milestones[index[ref]].MilestoneID
				if seen[id] {
					continue
				}
				seen[id] = true
				edges = append(edges, model.MilestoneDependency{
					PredecessorProjectID:   projectID,
					PredecessorMilestoneID: id,
					SuccessorProjectID:     projectID,
					SuccessorMilestoneID:   succ,
				})
			}
		}
		if err := txRepo.Dependency.BatchCreate(ctx, edges); err != nil {
			return err
		}

		created := make([]int64, len(milestones))
		for i := range milestones {
			created[i] = milestones[i].MilestoneID
		}
		return appendHistory(ctx, txRepo, projectID, callerID, EntityMilestone, model.ActionCreate,
			map[string]interface{}{"milestone_ids": created})
	})
	metrics.RecordBatch("bulk_create_milestones", err)
	if err != nil {
		s.logger.Error("批量创建里程碑失败", zap.Int64("project_id", projectID), zap.Int("rows", len(rows)), zap.Error(err))
		return nil, err
	}

	mappings := make([]dto.PlaceholderMapping, len(rows))
	for i := range rows {
		mappings[i] = dto.PlaceholderMapping{
			PlaceholderID: rows[i].PlaceholderID,
			MilestoneID:   milestones[i].MilestoneID,
		}
	}
	return mappings, nil
}

// ────────────────────── Delete ──────────────────────

// Delete 删除里程碑及其作为前驱或后继的全部依赖边
func (s *milestoneService) Delete(ctx context.Context, id int64, callerID int64) error {
	milestone, err := s.getMilestone(ctx, id)
	if err != nil {
		return err
	}

	err = runInTx(ctx, s.repo, s.logger, func(txRepo *repository.Repository) error {
		if err := txRepo.Dependency.DeleteByMilestone(ctx, id); err != nil {
			return err
		}
		if err := txRepo.Milestone.Delete(ctx, id); err != nil {
			return err
		}
		return appendHistory(ctx, txRepo, milestone.ProjectID, callerID, EntityMilestone, model.ActionDelete,
			map[string]interface{}{"milestone_id": id, "task_name": milestone.TaskName})
	})
	metrics.RecordBatch("delete_milestone", err)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrMilestoneNotFound
		}
		s.logger.Error("删除里程碑失败", zap.Int64("id", id), zap.Error(err))
		return err
	}
	return nil
}

// ── 内部辅助方法 ──

func (s *milestoneService) getMilestone(ctx context.Context, id int64) (*model.Milestone, error) {
	milestone, err := s.repo.Milestone.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMilestoneNotFound
		}
		s.logger.Error("查询里程碑失败", zap.Int64("id", id), zap.Error(err))
		return nil, err
	}
	return milestone, nil
}

// validateMilestoneFields 实际日期只在两端都存在时比较
func validateMilestoneFields(f *dto.MilestoneFields) error {
	if f.ProjectedStart.IsZero() || f.ProjectedEnd.IsZero() {
		return ErrMilestoneDateRequired
	}
	if f.ProjectedEnd.Before(f.ProjectedStart) {
		return ErrMilestoneDateInvalid
	}
	if f.ActualStart != nil && f.ActualEnd != nil && f.ActualEnd.Before(*f.ActualStart) {
		return ErrMilestoneActualDateInvalid
	}
	return nil
}

func applyMilestoneFields(m *model.Milestone, f *dto.MilestoneFields) {
	m.TaskName = strings.TrimSpace(f.TaskName)
	m.ProjectedStart = dto.NewDate(f.ProjectedStart).Time
	m.ProjectedEnd = dto.NewDate(f.ProjectedEnd).Time
	m.ActualStart = dto.DatePtr(f.ActualStart).TimePtr()
	m.ActualEnd = dto.DatePtr(f.ActualEnd).TimePtr()
}

func toMilestoneResponse(m *model.Milestone) dto.MilestoneResponse {
	preds := []int64(m.Predecessors)
	if preds == nil {
		preds = []int64{}
	}
	return dto.MilestoneResponse{
		ID:               m.MilestoneID,
		ProjectID:        m.ProjectID,
		TaskName:         m.TaskName,
		ProjectedStart:   dto.NewDate(m.ProjectedStart),
		ProjectedEnd:     dto.NewDate(m.ProjectedEnd),
		ActualStart:      dto.DatePtr(m.ActualStart),
		ActualEnd:        dto.DatePtr(m.ActualEnd),
		Predecessors:     preds,
		PredecessorLabel: PredecessorLabel(preds),
	}
}
