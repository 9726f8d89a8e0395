package dto

import "github.com/shopspring/decimal"

// ── 项目模块 DTO ──

// CreateProjectRequest 创建项目请求
type CreateProjectRequest struct {
	ProjectName       string `json:"project_name"        binding:"required,min=2,max=200"`
	ProjectType       string `json:"project_type"        binding:"required,oneof=PROGRAM PROJECT STUDY"`
	Description       string `json:"description"         binding:"omitempty,max=4000"`
	BranchID          *int   `json:"branch_id"           binding:"omitempty,min=1"`
	RequirementTypeID *int   `json:"requirement_type_id" binding:"omitempty,min=1"`
}

// UpdateProjectRequest 更新项目请求（字段均可选，Version 用于乐观锁）
type UpdateProjectRequest struct {
	ProjectName       *string `json:"project_name"        binding:"omitempty,min=2,max=200"`
	ProjectType       *string `json:"project_type"        binding:"omitempty,oneof=PROGRAM PROJECT STUDY"`
	ProjectStatus     *string `json:"project_status"      binding:"omitempty,oneof=PRE_AWARD AWARDED CLOSED"`
	Description       *string `json:"description"         binding:"omitempty,max=4000"`
	BranchID          *int    `json:"branch_id"           binding:"omitempty,min=1"`
	RequirementTypeID *int    `json:"requirement_type_id" binding:"omitempty,min=1"`
	Version           int     `json:"version"             binding:"required,min=1"`
}

// ProjectListRequest 项目列表查询参数
type ProjectListRequest struct {
	PaginationRequest
	Status        string `form:"status"         binding:"omitempty,oneof=PRE_AWARD AWARDED CLOSED"`
	Keyword       string `form:"keyword"        binding:"omitempty,max=100"`
	FavoritesOnly bool   `form:"favorites_only"`
}

// ProjectResponse 项目详情响应
type ProjectResponse struct {
	ID                int64  `json:"id"`
	ProjectName       string `json:"project_name"`
	ProjectType       string `json:"project_type"`
	ProjectStatus     string `json:"project_status"`
	Description       string `json:"description"`
	BranchID          *int   `json:"branch_id,omitempty"`
	RequirementTypeID *int   `json:"requirement_type_id,omitempty"`
	Version           int    `json:"version"`
	CreatedAt         string `json:"created_at"`
	UpdatedAt         string `json:"updated_at"`
}

// ProjectListItem 项目列表行（来自 view_project）
type ProjectListItem struct {
	ID                      int64           `json:"id"`
	ProjectName             string          `json:"project_name"`
	ProjectType             string          `json:"project_type"`
	ProjectStatus           string          `json:"project_status"`
	BranchName              string          `json:"branch_name,omitempty"`
	RequirementType         string          `json:"requirement_type,omitempty"`
	MilestoneCount          int             `json:"milestone_count"`
	CompletedMilestoneCount int             `json:"completed_milestone_count"`
	ApprovedTotal           decimal.Decimal `json:"approved_total"`
	IsFavorite              bool            `json:"is_favorite"`
}

// AddMemberRequest 添加 IPT 成员请求
type AddMemberRequest struct {
	UserID int64 `json:"user_id" binding:"required,min=1"`
}

// MemberResponse IPT 成员
type MemberResponse struct {
	UserID  int64  `json:"user_id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Role    string `json:"role"`
	AddedAt string `json:"added_at"`
}

// FavoriteResponse 收藏切换结果
type FavoriteResponse struct {
	ProjectID  int64 `json:"project_id"`
	IsFavorite bool  `json:"is_favorite"`
}
