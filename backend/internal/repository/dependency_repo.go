package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"contract-tracker/backend/internal/model"
)

// DependencyRepository 里程碑依赖边数据访问接口
type DependencyRepository interface {
	// Create 边已存在时返回 false
	Create(ctx context.Context, edge *model.MilestoneDependency) (bool, error)
	BatchCreate(ctx context.Context, edges []model.MilestoneDependency) error
	// Delete 返回实际删除的行数
	Delete(ctx context.Context, edge *model.MilestoneDependency) (int64, error)
	DeleteBySuccessor(ctx context.Context, successorMilestoneID int64) error
	// DeleteByMilestone 删除该里程碑作为前驱或后继的全部边
	DeleteByMilestone(ctx context.Context, milestoneID int64) error
	ListPredecessors(ctx context.Context, milestoneID int64) ([]model.DependencyView, error)
	ListSuccessors(ctx context.Context, milestoneID int64) ([]model.DependencyView, error)
}

type dependencyRepo struct {
	db *gorm.DB
}

// NewDependencyRepo 创建 DependencyRepository 实例
func NewDependencyRepo(db *gorm.DB) DependencyRepository {
	return &dependencyRepo{db: db}
}

func (r *dependencyRepo) Create(ctx context.Context, edge *model.MilestoneDependency) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(edge)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *dependencyRepo) BatchCreate(ctx context.Context, edges []model.MilestoneDependency) error {
	if len(edges) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&edges).Error
}

func (r *dependencyRepo) Delete(ctx context.Context, edge *model.MilestoneDependency) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("predecessor_project_id = ? AND predecessor_milestone_id = ? AND successor_project_id = ? AND successor_milestone_id = ?",
			edge.PredecessorProjectID, edge.PredecessorMilestoneID, edge.SuccessorProjectID, edge.SuccessorMilestoneID).
		Delete(&model.MilestoneDependency{})
	return result.RowsAffected, result.Error
}

func (r *dependencyRepo) DeleteBySuccessor(ctx context.Context, successorMilestoneID int64) error {
	return r.db.WithContext(ctx).
		Where("successor_milestone_id = ?", successorMilestoneID).
		Delete(&model.MilestoneDependency{}).Error
}

func (r *dependencyRepo) DeleteByMilestone(ctx context.Context, milestoneID int64) error {
	return r.db.WithContext(ctx).
		Where("predecessor_milestone_id = ? OR successor_milestone_id = ?", milestoneID, milestoneID).
		Delete(&model.MilestoneDependency{}).Error
}

const dependencyViewQuery = `
SELECT d.predecessor_project_id,
       pp.project_name    AS predecessor_project_name,
       d.predecessor_milestone_id,
       pm.task_name       AS predecessor_task_name,
       pm.projected_end   AS predecessor_end,
       pm.actual_end      AS predecessor_actual_end,
       d.successor_project_id,
       sp.project_name    AS successor_project_name,
       d.successor_milestone_id,
       sm.task_name       AS successor_task_name,
       sm.projected_start AS successor_start
FROM project_milestone_dependency d
JOIN project_milestones pm ON pm.project_id = d.predecessor_project_id AND pm.milestone_id = d.predecessor_milestone_id
JOIN project pp ON pp.project_id = d.predecessor_project_id
JOIN project_milestones sm ON sm.project_id = d.successor_project_id AND sm.milestone_id = d.successor_milestone_id
JOIN project sp ON sp.project_id = d.successor_project_id`

func (r *dependencyRepo) ListPredecessors(ctx context.Context, milestoneID int64) ([]model.DependencyView, error) {
	var rows []model.DependencyView
	err := r.db.WithContext(ctx).
		Raw(dependencyViewQuery+" WHERE d.successor_milestone_id = ? ORDER BY pm.projected_end, d.predecessor_milestone_id", milestoneID).
		Scan(&rows).Error
	return rows, err
}

func (r *dependencyRepo) ListSuccessors(ctx context.Context, milestoneID int64) ([]model.DependencyView, error) {
	var rows []model.DependencyView
	err := r.db.WithContext(ctx).
		Raw(dependencyViewQuery+" WHERE d.predecessor_milestone_id = ? ORDER BY sm.projected_start, d.successor_milestone_id", milestoneID).
		Scan(&rows).Error
	return rows, err
}
