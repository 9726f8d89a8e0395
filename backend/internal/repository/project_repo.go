package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"contract-tracker/backend/internal/model"
	pkgerrors "contract-tracker/backend/pkg/errors"
)

// ProjectFilter 项目列表筛选条件
type ProjectFilter struct {
	Status      string
	Keyword     string
	FavoritesOf int64 // 非 0 时只列出该用户收藏的项目
}

// ProjectRepository 项目、IPT 成员与收藏数据访问接口
type ProjectRepository interface {
	Create(ctx context.Context, project *model.Project) error
	GetByID(ctx context.Context, id int64) (*model.Project, error)
	Update(ctx context.Context, project *model.Project) error
	Delete(ctx context.Context, id int64) error
	ListView(ctx context.Context, filter ProjectFilter, offset, limit int) ([]model.ViewProject, int64, error)
	GetView(ctx context.Context, id int64) (*model.ViewProject, error)

	AddMember(ctx context.Context, projectID, userID int64) (bool, error)
	RemoveMember(ctx context.Context, projectID, userID int64) error
	ListMembers(ctx context.Context, projectID int64) ([]model.UserProjectLink, error)

	AddFavorite(ctx context.Context, projectID, userID int64) error
	RemoveFavorite(ctx context.Context, projectID, userID int64) error
	IsFavorite(ctx context.Context, projectID, userID int64) (bool, error)
	FavoriteProjectIDs(ctx context.Context, userID int64) ([]int64, error)
}

type projectRepo struct {
	db *gorm.DB
}

// NewProjectRepo 创建 ProjectRepository 实例
func NewProjectRepo(db *gorm.DB) ProjectRepository {
	return &projectRepo{db: db}
}

func (r *projectRepo) Create(ctx context.Context, project *model.Project) error {
	return r.db.WithContext(ctx).Create(project).Error
}

func (r *projectRepo) GetByID(ctx context.Context, id int64) (*model.Project, error) {
	var project model.Project
	err := r.db.WithContext(ctx).
		Where("project_id = ?", id).
		First(&project).Error
	if err != nil {
		return nil, err
	}
	return &project, nil
}

// Update 按版本号更新，版本不匹配返回 ErrOptimisticLock
func (r *projectRepo) Update(ctx context.Context, project *model.Project) error {
	oldVersion := project.Version
	result := r.db.WithContext(ctx).
		Model(&model.Project{}).
		Where("project_id = ? AND version = ?", project.ProjectID, oldVersion).
		Updates(map[string]interface{}{
			"project_name":        project.ProjectName,
			"project_type":        project.ProjectType,
			"project_status":      project.ProjectStatus,
			"description":         project.Description,
			"branch_id":           project.BranchID,
			"requirement_type_id": project.RequirementTypeID,
			"updated_by":          project.UpdatedBy,
			"updated_at":          gorm.Expr("NOW()"),
			"version":             oldVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	project.Version = oldVersion + 1
	return nil
}

// Delete 物理删除，里程碑、依赖、拨款、成员与收藏由外键级联清理
func (r *projectRepo) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).
		Where("project_id = ?", id).
		Delete(&model.Project{}).Error
}

func (r *projectRepo) ListView(ctx context.Context, filter ProjectFilter, offset, limit int) ([]model.ViewProject, int64, error) {
	var rows []model.ViewProject
	var total int64

	db := r.db.WithContext(ctx).Model(&model.ViewProject{})
	if filter.Status != "" {
		db = db.Where("project_status = ?", filter.Status)
	}
	if filter.Keyword != "" {
		db = db.Where("project_name ILIKE ?", "%"+filter.Keyword+"%")
	}
	if filter.FavoritesOf != 0 {
		db = db.Where("project_id IN (?)",
			r.db.Model(&model.Favorite{}).Select("project_id").Where("user_id = ?", filter.FavoritesOf))
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := db.Offset(offset).Limit(limit).
		Order("updated_at DESC, project_id DESC").
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	return rows, total, nil
}

func (r *projectRepo) GetView(ctx context.Context, id int64) (*model.ViewProject, error) {
	var row model.ViewProject
	err := r.db.WithContext(ctx).
		Where("project_id = ?", id).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// ── IPT 成员 ──

// AddMember 已是成员时不报错，返回 false
func (r *projectRepo) AddMember(ctx context.Context, projectID, userID int64) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.UserProjectLink{UserID: userID, ProjectID: projectID})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *projectRepo) RemoveMember(ctx context.Context, projectID, userID int64) error {
	return r.db.WithContext(ctx).
		Where("project_id = ? AND user_id = ?", projectID, userID).
		Delete(&model.UserProjectLink{}).Error
}

func (r *projectRepo) ListMembers(ctx context.Context, projectID int64) ([]model.UserProjectLink, error) {
	var links []model.UserProjectLink
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("project_id = ?", projectID).
		Order("created_at ASC").
		Find(&links).Error
	return links, err
}

// ── 收藏 ──

func (r *projectRepo) AddFavorite(ctx context.Context, projectID, userID int64) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.Favorite{UserID: userID, ProjectID: projectID}).Error
}

func (r *projectRepo) RemoveFavorite(ctx context.Context, projectID, userID int64) error {
	return r.db.WithContext(ctx).
		Where("project_id = ? AND user_id = ?", projectID, userID).
		Delete(&model.Favorite{}).Error
}

func (r *projectRepo) IsFavorite(ctx context.Context, projectID, userID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Favorite{}).
		Where("project_id = ? AND user_id = ?", projectID, userID).
		Count(&count).Error
	return count > 0, err
}

func (r *projectRepo) FavoriteProjectIDs(ctx context.Context, userID int64) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).
		Model(&model.Favorite{}).
		Where("user_id = ?", userID).
		Pluck("project_id", &ids).Error
	return ids, err
}
