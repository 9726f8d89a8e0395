package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"contract-tracker/backend/internal/dto"
	"contract-tracker/backend/internal/model"
	"contract-tracker/backend/internal/repository"
	pkgerrors "contract-tracker/backend/pkg/errors"
)

// ── 项目模块业务错误 ──

var (
	ErrProjectNotFound = errors.New("项目不存在")
	ErrMemberNotFound  = errors.New("该用户不是项目成员")
	ErrVersionConflict = pkgerrors.ErrOptimisticLock
)

// ProjectService 项目业务接口
type ProjectService interface {
	List(ctx context.Context, req *dto.ProjectListRequest, callerID int64) ([]dto.ProjectListItem, int64, error)
	GetByID(ctx context.Context, id int64) (*dto.ProjectResponse, error)
	Create(ctx context.Context, req *dto.CreateProjectRequest, callerID int64) (*dto.ProjectResponse, error)
	Update(ctx context.Context, id int64, req *dto.UpdateProjectRequest, callerID int64) (*dto.ProjectResponse, error)
	Delete(ctx context.Context, id int64, callerID int64) error

	AddMember(ctx context.Context, projectID, userID, callerID int64) error
	RemoveMember(ctx context.Context, projectID, userID, callerID int64) error
	ListMembers(ctx context.Context, projectID int64) ([]dto.MemberResponse, error)

	ToggleFavorite(ctx context.Context, projectID, callerID int64) (*dto.FavoriteResponse, error)
}

type projectService struct {
	repo     *repository.Repository
	notifier Notifier
	baseURL  string
	logger   *zap.Logger
}

// NewProjectService 创建 ProjectService 实例
func NewProjectService(repo *repository.Repository, notifier Notifier, baseURL string, logger *zap.Logger) ProjectService {
	return &projectService{repo: repo, notifier: notifier, baseURL: baseURL, logger: logger}
}

// ────────────────────── List ──────────────────────

func (s *projectService) List(ctx context.Context, req *dto.ProjectListRequest, callerID int64) ([]dto.ProjectListItem, int64, error) {
	filter := repository.ProjectFilter{
		Status:  req.Status,
		Keyword: req.Keyword,
	}
	if req.FavoritesOnly {
		filter.FavoritesOf = callerID
	}

	rows, total, err := s.repo.Project.ListView(ctx, filter, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("列出项目失败", zap.Error(err))
		return nil, 0, err
	}

	favIDs, err := s.repo.Project.FavoriteProjectIDs(ctx, callerID)
	if err != nil {
		s.logger.Error("查询收藏失败", zap.Int64("user_id", callerID), zap.Error(err))
		return nil, 0, err
	}
	favorites := make(map[int64]bool, len(favIDs))
	for _, id := range favIDs {
		favorites[id] = true
	}

	result := make([]dto.ProjectListItem, 0, len(rows))
	for i := range rows {
		v := &rows[i]
		item := dto.ProjectListItem{
			ID:                      v.ProjectID,
			ProjectName:             v.ProjectName,
			ProjectType:             v.ProjectType,
			ProjectStatus:           v.ProjectStatus,
			MilestoneCount:          v.MilestoneCount,
			CompletedMilestoneCount: v.CompletedMilestoneCount,
			ApprovedTotal:           v.ApprovedTotal,
			IsFavorite:              favorites[v.ProjectID],
		}
		if v.BranchName != nil {
			item.BranchName = *v.BranchName
		}
		if v.RequirementType != nil {
			item.RequirementType = *v.RequirementType
		}
		result = append(result, item)
	}

	return result, total, nil
}

// ────────────────────── GetByID ──────────────────────

func (s *projectService) GetByID(ctx context.Context, id int64) (*dto.ProjectResponse, error) {
	project, err := s.getProject(ctx, id)
	if err != nil {
		return nil, err
	}
	return toProjectResponse(project), nil
}

// ────────────────────── Create ──────────────────────

func (s *projectService) Create(ctx context.Context, req *dto.CreateProjectRequest, callerID int64) (*dto.ProjectResponse, error) {
	project := &model.Project{
		ProjectName:       req.ProjectName,
		ProjectType:       req.ProjectType,
		ProjectStatus:     model.StatusPreAward,
		Description:       req.Description,
		BranchID:          req.BranchID,
		RequirementTypeID: req.RequirementTypeID,
	}
	project.CreatedBy = &callerID
	project.UpdatedBy = &callerID
	project.Version = 1

	if err := s.repo.Project.Create(ctx, project); err != nil {
		s.logger.Error("创建项目失败", zap.Error(err))
		return nil, err
	}

	if err := appendHistory(ctx, s.repo, project.ProjectID, callerID, EntityProject, model.ActionCreate, req); err != nil {
		s.logger.Warn("写入审计日志失败", zap.Int64("project_id", project.ProjectID), zap.Error(err))
	}

	return toProjectResponse(project), nil
}

// ────────────────────── Update ──────────────────────

func (s *projectService) Update(ctx context.Context, id int64, req *dto.UpdateProjectRequest, callerID int64) (*dto.ProjectResponse, error) {
	project, err := s.getProject(ctx, id)
	if err != nil {
		return nil, err
	}
	if project.Version != req.Version {
		return nil, ErrVersionConflict
	}

	if req.ProjectName != nil {
		project.ProjectName = *req.ProjectName
	}
	if req.ProjectType != nil {
		project.ProjectType = *req.ProjectType
	}
	if req.ProjectStatus != nil {
		project.ProjectStatus = *req.ProjectStatus
	}
	if req.Description != nil {
		project.Description = *req.Description
	}
	if req.BranchID != nil {
		project.BranchID = req.BranchID
	}
	if req.RequirementTypeID != nil {
		project.RequirementTypeID = req.RequirementTypeID
	}
	project.UpdatedBy = &callerID

	if err := s.repo.Project.Update(ctx, project); err != nil {
		if errors.Is(err, pkgerrors.ErrOptimisticLock) {
			return nil, ErrVersionConflict
		}
		s.logger.Error("更新项目失败", zap.Int64("id", id), zap.Error(err))
		return nil, err
	}

	if err := appendHistory(ctx, s.repo, id, callerID, EntityProject, model.ActionUpdate, req); err != nil {
		s.logger.Warn("写入审计日志失败", zap.Int64("project_id", id), zap.Error(err))
	}

	return toProjectResponse(project), nil
}

// ────────────────────── Delete ──────────────────────

func (s *projectService) Delete(ctx context.Context, id int64, callerID int64) error {
	if _, err := s.getProject(ctx, id); err != nil {
		return err
	}

	if err := s.repo.Project.Delete(ctx, id); err != nil {
		s.logger.Error("删除项目失败", zap.Int64("id", id), zap.Error(err))
		return err
	}

	s.logger.Info("项目已删除", zap.Int64("id", id), zap.Int64("by", callerID))
	return nil
}

// ────────────────────── AddMember ──────────────────────

// AddMember 新加入的成员收到一封通知邮件；重复添加不重复发送
func (s *projectService) AddMember(ctx context.Context, projectID, userID, callerID int64) error {
	project, err := s.getProject(ctx, projectID)
	if err != nil {
		return err
	}

	user, err := s.repo.User.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		s.logger.Error("查询用户失败", zap.Int64("user_id", userID), zap.Error(err))
		return err
	}

	added, err := s.repo.Project.AddMember(ctx, projectID, userID)
	if err != nil {
		s.logger.Error("添加 IPT 成员失败",
			zap.Int64("project_id", projectID), zap.Int64("user_id", userID), zap.Error(err))
		return err
	}
	if !added {
		return nil
	}

	if err := appendHistory(ctx, s.repo, projectID, callerID, EntityIPT, model.ActionCreate,
		map[string]interface{}{"user_id": userID}); err != nil {
		s.logger.Warn("写入审计日志失败", zap.Int64("project_id", projectID), zap.Error(err))
	}

	subject := fmt.Sprintf("您已加入项目 %s 的 IPT", project.ProjectName)
	body := fmt.Sprintf("%s，您好：\n\n您已被添加为项目「%s」的 IPT 成员。\n查看项目：%s/projects/%d\n",
		user.Name, project.ProjectName, s.baseURL, projectID)
	s.notifier.Notify(ctx, EventMemberAdded, []string{user.Email}, subject, body)

	return nil
}

// ────────────────────── RemoveMember ──────────────────────

func (s *projectService) RemoveMember(ctx context.Context, projectID, userID, callerID int64) error {
	members, err := s.repo.Project.ListMembers(ctx, projectID)
	if err != nil {
		s.logger.Error("查询 IPT 成员失败", zap.Int64("project_id", projectID), zap.Error(err))
		return err
	}
	found := false
	for _, m := range members {
		if m.UserID == userID {
			found = true
			break
		}
	}
	if !found {
		return ErrMemberNotFound
	}

	if err := s.repo.Project.RemoveMember(ctx, projectID, userID); err != nil {
		s.logger.Error("移除 IPT 成员失败",
			zap.Int64("project_id", projectID), zap.Int64("user_id", userID), zap.Error(err))
		return err
	}

	if err := appendHistory(ctx, s.repo, projectID, callerID, EntityIPT, model.ActionDelete,
		map[string]interface{}{"user_id": userID}); err != nil {
		s.logger.Warn("写入审计日志失败", zap.Int64("project_id", projectID), zap.Error(err))
	}
	return nil
}

// ────────────────────── ListMembers ──────────────────────

func (s *projectService) ListMembers(ctx context.Context, projectID int64) ([]dto.MemberResponse, error) {
	if _, err := s.getProject(ctx, projectID); err != nil {
		return nil, err
	}

	links, err := s.repo.Project.ListMembers(ctx, projectID)
	if err != nil {
		s.logger.Error("查询 IPT 成员失败", zap.Int64("project_id", projectID), zap.Error(err))
		return nil, err
	}

	result := make([]dto.MemberResponse, 0, len(links))
	for _, l := range links {
		m := dto.MemberResponse{
			UserID:  l.UserID,
			AddedAt: l.CreatedAt.Format(time.RFC3339),
		}
		if l.User != nil {
			m.Name = l.User.Name
			m.Email = l.User.Email
			m.Role = l.User.Role
		}
		result = append(result, m)
	}
	return result, nil
}

// ────────────────────── ToggleFavorite ──────────────────────

func (s *projectService) ToggleFavorite(ctx context.Context, projectID, callerID int64) (*dto.FavoriteResponse, error) {
	if _, err := s.getProject(ctx, projectID); err != nil {
		return nil, err
	}

	isFav, err := s.repo.Project.IsFavorite(ctx, projectID, callerID)
	if err != nil {
		s.logger.Error("查询收藏失败", zap.Int64("project_id", projectID), zap.Error(err))
		return nil, err
	}

	if isFav {
		err = s.repo.Project.RemoveFavorite(ctx, projectID, callerID)
	} else {
		err = s.repo.Project.AddFavorite(ctx, projectID, callerID)
	}
	if err != nil {
		s.logger.Error("切换收藏失败", zap.Int64("project_id", projectID), zap.Error(err))
		return nil, err
	}

	return &dto.FavoriteResponse{ProjectID: projectID, IsFavorite: !isFav}, nil
}

// ── 内部辅助方法 ──

func (s *projectService) getProject(ctx context.Context, id int64) (*model.Project, error) {
	project, err := s.repo.Project.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		s.logger.Error("查询项目失败", zap.Int64("id", id), zap.Error(err))
		return nil, err
	}
	return project, nil
}

// memberEmails 项目全部 IPT 成员的邮箱
func memberEmails(ctx context.Context, repo *repository.Repository, projectID int64) ([]string, error) {
	links, err := repo.Project.ListMembers(ctx, projectID)
	if err != nil {
		return nil, err
	}
	emails := make([]string, 0, len(links))
	for _, l := range links {
		if l.User != nil && l.User.Email != "" {
			emails = append(emails, l.User.Email)
		}
	}
	return emails, nil
}

func toProjectResponse(p *model.Project) *dto.ProjectResponse {
	return &dto.ProjectResponse{
		ID:                p.ProjectID,
		ProjectName:       p.ProjectName,
		ProjectType:       p.ProjectType,
		ProjectStatus:     p.ProjectStatus,
		Description:       p.Description,
		BranchID:          p.BranchID,
		RequirementTypeID: p.RequirementTypeID,
		Version:           p.Version,
		CreatedAt:         p.CreatedAt.Format(time.RFC3339),
		UpdatedAt:         p.UpdatedAt.Format(time.RFC3339),
	}
}
