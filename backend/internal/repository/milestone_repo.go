package repository

import (
	"context"

	"gorm.io/gorm"

	"contract-tracker/backend/internal/model"
)

// MilestoneRepository 里程碑数据访问接口
type MilestoneRepository interface {
	GetByID(ctx context.Context, id int64) (*model.Milestone, error)
	ListByProject(ctx context.Context, projectID int64) ([]model.Milestone, error)
	BatchCreate(ctx context.Context, milestones []model.Milestone) error
	Update(ctx context.Context, milestone *model.Milestone) error
	Delete(ctx context.Context, id int64) error
	// ResolveProjects 返回给定里程碑 ID 所属的项目 ID，不存在的 ID 不出现在结果中
	ResolveProjects(ctx context.Context, ids []int64) (map[int64]int64, error)
}

type milestoneRepo struct {
	db *gorm.DB
}

// NewMilestoneRepo 创建 MilestoneRepository 实例
func NewMilestoneRepo(db *gorm.DB) MilestoneRepository {
	return &milestoneRepo{db: db}
}

// predecessorsColumn 以依赖表为准聚合出前驱 ID 列表
const predecessorsColumn = `project_milestones.*, (
	SELECT array_agg(d.predecessor_milestone_id ORDER BY d.predecessor_milestone_id)
	FROM project_milestone_dependency d
	WHERE d.successor_milestone_id = project_milestones.milestone_id
) AS predecessors`

func (r *milestoneRepo) GetByID(ctx context.Context, id int64) (*model.Milestone, error) {
	var milestone model.Milestone
	err := r.db.WithContext(ctx).
		Select(predecessorsColumn).
		Where("milestone_id = ?", id).
		First(&milestone).Error
	if err != nil {
		return nil, err
	}
	return &milestone, nil
}

func (r *milestoneRepo) ListByProject(ctx context.Context, projectID int64) ([]model.Milestone, error) {
	var milestones []model.Milestone
	err := r.db.WithContext(ctx).
		Select(predecessorsColumn).
		Where("project_id = ?", projectID).
		Order("projected_start ASC, milestone_id ASC").
		Find(&milestones).Error
	return milestones, err
}

// BatchCreate 单条 INSERT 写入全部行，回填自增 ID
func (r *milestoneRepo) BatchCreate(ctx context.Context, milestones []model.Milestone) error {
	if len(milestones) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&milestones).Error
}

func (r *milestoneRepo) Update(ctx context.Context, milestone *model.Milestone) error {
	result := r.db.WithContext(ctx).
		Model(&model.Milestone{}).
		Where("milestone_id = ?", milestone.MilestoneID).
		Updates(map[string]interface{}{
			"task_name":       milestone.TaskName,
			"projected_start": milestone.ProjectedStart,
			"projected_end":   milestone.ProjectedEnd,
			"actual_start":    milestone.ActualStart,
			"actual_end":      milestone.ActualEnd,
			"updated_at":      gorm.Expr("NOW()"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Delete 依赖边由复合外键 ON DELETE CASCADE 清理
func (r *milestoneRepo) Delete(ctx context.Context, id int64) error {
	result := r.db.WithContext(ctx).
		Where("milestone_id = ?", id).
		Delete(&model.Milestone{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *milestoneRepo) ResolveProjects(ctx context.Context, ids []int64) (map[int64]int64, error) {
	result := make(map[int64]int64, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	var rows []struct {
		MilestoneID int64
		ProjectID   int64
	}
	err := r.db.WithContext(ctx).
		Model(&model.Milestone{}).
		Select("milestone_id, project_id").
		Where("milestone_id IN ?", ids).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		result[row.MilestoneID] = row.ProjectID
	}
	return result, nil
}
