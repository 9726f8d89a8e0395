package service

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"contract-tracker/backend/internal/dto"
	"contract-tracker/backend/internal/model"
	"contract-tracker/backend/internal/repository"
	"contract-tracker/backend/pkg/metrics"
)

// ── 依赖模块业务错误 ──

var (
	ErrSelfDependency            = errors.New("里程碑不能依赖自身")
	ErrPredecessorNotFound       = errors.New("前驱里程碑不存在")
	ErrDependencyNotFound        = errors.New("依赖关系不存在")
	ErrDependencyProjectMismatch = errors.New("里程碑不属于指定项目")
)

// DependencyService 里程碑依赖业务接口
type DependencyService interface {
	// ReplacePredecessors 在一个事务内以 ids 整体替换里程碑的前驱集合，返回规范化后的集合
	ReplacePredecessors(ctx context.Context, milestoneID int64, ids []int64, callerID int64) ([]int64, error)
	Add(ctx context.Context, edge *dto.DependencyEdge, callerID int64) error
	Remove(ctx context.Context, edge *dto.DependencyEdge, callerID int64) error
	ListPredecessors(ctx context.Context, milestoneID int64) ([]dto.DependencyResponse, error)
	ListSuccessors(ctx context.Context, milestoneID int64) ([]dto.DependencyResponse, error)
}

type dependencyService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewDependencyService 创建 DependencyService 实例
func NewDependencyService(repo *repository.Repository, logger *zap.Logger) DependencyService {
	return &dependencyService{repo: repo, logger: logger}
}

// ────────────────────── ReplacePredecessors ──────────────────────

func (s *dependencyService) ReplacePredecessors(ctx context.Context, milestoneID int64, ids []int64, callerID int64) ([]int64, error) {
	milestone, err := s.repo.Milestone.GetByID(ctx, milestoneID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMilestoneNotFound
		}
		s.logger.Error("查询里程碑失败", zap.Int64("id", milestoneID), zap.Error(err))
		return nil, err
	}

	ids = NormalizePredecessors(ids)
	for _, id := range ids {
		if id == milestoneID {
			return nil, ErrSelfDependency
		}
	}

	// 集合未变化时不触碰依赖表
	if sameIDSet(ids, milestone.Predecessors) {
		return ids, nil
	}

	projects, err := s.repo.Milestone.ResolveProjects(ctx, ids)
	if err != nil {
		s.logger.Error("解析前驱所属项目失败", zap.Int64("id", milestoneID), zap.Error(err))
		return nil, err
	}
	edges := make([]model.MilestoneDependency, 0, len(ids))
	for _, id := range ids {
		projectID, ok := projects[id]
		if !ok {
			return nil, ErrPredecessorNotFound
		}
		edges = append(edges, model.MilestoneDependency{
			PredecessorProjectID:   projectID,
			PredecessorMilestoneID: id,
			SuccessorProjectID:     milestone.ProjectID,
			SuccessorMilestoneID:   milestoneID,
		})
	}

	err = runInTx(ctx, s.repo, s.logger, func(txRepo *repository.Repository) error {
		if err := txRepo.Dependency.DeleteBySuccessor(ctx, milestoneID); err != nil {
			return err
		}
		if err := txRepo.Dependency.BatchCreate(ctx, edges); err != nil {
			return err
		}
		return appendHistory(ctx, txRepo, milestone.ProjectID, callerID, EntityDependency, model.ActionUpdate,
			map[string]interface{}{
				"milestone_id": milestoneID,
				"from":         []int64(milestone.Predecessors),
				"to":           ids,
			})
	})
	metrics.RecordBatch("replace_predecessors", err)
	if err != nil {
		s.logger.Error("替换前驱失败", zap.Int64("id", milestoneID), zap.Error(err))
		return nil, err
	}

	return ids, nil
}

// ────────────────────── Add ──────────────────────

// Add 显式添加一条依赖边，边已存在时视为成功
func (s *dependencyService) Add(ctx context.Context, edge *dto.DependencyEdge, callerID int64) error {
	if err := s.checkEdge(ctx, edge); err != nil {
		return err
	}

	created, err := s.repo.Dependency.Create(ctx, toDependencyModel(edge))
	if err != nil {
		s.logger.Error("添加依赖失败", zap.Int64("successor", edge.SuccessorMilestoneID), zap.Error(err))
		return err
	}
	if created {
		if err := appendHistory(ctx, s.repo, edge.SuccessorProjectID, callerID, EntityDependency, model.ActionCreate, edge); err != nil {
			s.logger.Warn("写入审计日志失败", zap.Error(err))
		}
	}
	return nil
}

// ────────────────────── Remove ──────────────────────

func (s *dependencyService) Remove(ctx context.Context, edge *dto.DependencyEdge, callerID int64) error {
	deleted, err := s.repo.Dependency.Delete(ctx, toDependencyModel(edge))
	if err != nil {
		s.logger.Error("删除依赖失败", zap.Int64("successor", edge.SuccessorMilestoneID), zap.Error(err))
		return err
	}
	if deleted == 0 {
		return ErrDependencyNotFound
	}

	if err := appendHistory(ctx, s.repo, edge.SuccessorProjectID, callerID, EntityDependency, model.ActionDelete, edge); err != nil {
		s.logger.Warn("写入审计日志失败", zap.Error(err))
	}
	return nil
}

// ────────────────────── ListPredecessors / ListSuccessors ──────────────────────

func (s *dependencyService) ListPredecessors(ctx context.Context, milestoneID int64) ([]dto.DependencyResponse, error) {
	if _, err := s.repo.Milestone.GetByID(ctx, milestoneID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMilestoneNotFound
		}
		return nil, err
	}

	rows, err := s.repo.Dependency.ListPredecessors(ctx, milestoneID)
	if err != nil {
		s.logger.Error("查询前驱失败", zap.Int64("id", milestoneID), zap.Error(err))
		return nil, err
	}
	return toDependencyResponses(rows), nil
}

func (s *dependencyService) ListSuccessors(ctx context.Context, milestoneID int64) ([]dto.DependencyResponse, error) {
	if _, err := s.repo.Milestone.GetByID(ctx, milestoneID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMilestoneNotFound
		}
		return nil, err
	}

	rows, err := s.repo.Dependency.ListSuccessors(ctx, milestoneID)
	if err != nil {
		s.logger.Error("查询后继失败", zap.Int64("id", milestoneID), zap.Error(err))
		return nil, err
	}
	return toDependencyResponses(rows), nil
}

// ── 内部辅助方法 ──

// checkEdge 两端都必须存在且属于边中声明的项目
func (s *dependencyService) checkEdge(ctx context.Context, edge *dto.DependencyEdge) error {
	if edge.PredecessorMilestoneID == edge.SuccessorMilestoneID {
		return ErrSelfDependency
	}

	projects, err := s.repo.Milestone.ResolveProjects(ctx,
		[]int64{edge.PredecessorMilestoneID, edge.SuccessorMilestoneID})
	if err != nil {
		s.logger.Error("解析里程碑所属项目失败", zap.Error(err))
		return err
	}

	predProject, ok := projects[edge.PredecessorMilestoneID]
	if !ok {
		return ErrPredecessorNotFound
	}
	succProject, ok := projects[edge.SuccessorMilestoneID]
	if !ok {
		return ErrMilestoneNotFound
	}
	if predProject != edge.PredecessorProjectID || succProject != edge.SuccessorProjectID {
		return ErrDependencyProjectMismatch
	}
	return nil
}

func toDependencyModel(edge *dto.DependencyEdge) *model.MilestoneDependency {
	return &model.MilestoneDependency{
		PredecessorProjectID:   edge.PredecessorProjectID,
		PredecessorMilestoneID: edge.PredecessorMilestoneID,
		SuccessorProjectID:     edge.SuccessorProjectID,
		SuccessorMilestoneID:   edge.SuccessorMilestoneID,
	}
}

func toDependencyResponses(rows []model.DependencyView) []dto.DependencyResponse {
	result := make([]dto.DependencyResponse, 0, len(rows))
	for _, r := range rows {
		result = append(result, dto.DependencyResponse{
			PredecessorProjectID:   r.PredecessorProjectID,
			PredecessorProjectName: r.PredecessorProjectName,
			PredecessorMilestoneID: r.PredecessorMilestoneID,
			PredecessorTaskName:    r.PredecessorTaskName,
			PredecessorEnd:         dto.NewDate(r.PredecessorEnd),
			PredecessorActualEnd:   dto.DatePtr(r.PredecessorActualEnd),
			SuccessorProjectID:     r.SuccessorProjectID,
			SuccessorProjectName:   r.SuccessorProjectName,
			SuccessorMilestoneID:   r.SuccessorMilestoneID,
			SuccessorTaskName:      r.SuccessorTaskName,
			SuccessorStart:         dto.NewDate(r.SuccessorStart),
		})
	}
	return result
}

// ── 前驱集合 ──

// ParsePredecessorText 解析逗号分隔的前驱文本，例如 "3, 7, abc, 9" → [3 7 9]。
// 非整数或非正数的片段被忽略，保留首次出现的顺序并去重。
func ParsePredecessorText(text string) []int64 {
	var ids []int64
	for _, token := range strings.Split(text, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		id, err := strconv.ParseInt(token, 10, 64)
		if err != nil || id <= 0 {
			continue
		}
		ids = append(ids, id)
	}
	return NormalizePredecessors(ids)
}

// NormalizePredecessors 去重并剔除非正数，保持原有顺序；结果非 nil
func NormalizePredecessors(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	result := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 || seen[id] {
			continue
		}
		seen[id] = true
		result = append(result, id)
	}
	return result
}

// PredecessorLabel 前驱集合的展示文本，例如 [3 7 9] → "3, 7, 9"
func PredecessorLabel(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ", ")
}

// sameIDSet 忽略顺序比较两个前驱集合
func sameIDSet(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	x := append([]int64(nil), a...)
	y := append([]int64(nil), b...)
	sort.Slice(x, func(i, j int) bool { return x[i] < x[j] })
	sort.Slice(y, func(i, j int) bool { return y[i] < y[j] })
	for i := range x {
		if x[i] != y[i] {
			return false
		}
	}
	return true
}
