package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// 项目/合同状态
const (
	StatusPreAward = "PRE_AWARD"
	StatusAwarded  = "AWARDED"
	StatusClosed   = "CLOSED"
)

// Project 项目表 — 对应 project
type Project struct {
	ProjectID         int64  `gorm:"primaryKey;autoIncrement"              json:"project_id"`
	ProjectName       string `gorm:"type:varchar(200);not null"            json:"project_name"`
	ProjectType       string `gorm:"type:varchar(20);not null"             json:"project_type"` // PROGRAM | PROJECT | STUDY
	ProjectStatus     string `gorm:"type:varchar(20);not null"             json:"project_status"`
	Description       string `gorm:"type:text;not null;default:''"         json:"description"`
	BranchID          *int   `json:"branch_id,omitempty"`
	RequirementTypeID *int   `json:"requirement_type_id,omitempty"`
	VersionedModel
}

func (Project) TableName() string { return "project" }

// UserProjectLink IPT 成员关系 — 对应 user_project_link
type UserProjectLink struct {
	UserID    int64     `gorm:"primaryKey;autoIncrement:false"     json:"user_id"`
	ProjectID int64     `gorm:"primaryKey;autoIncrement:false"     json:"project_id"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`

	// 关联
	User *User `gorm:"foreignKey:UserID;references:UserID" json:"user,omitempty"`
}

func (UserProjectLink) TableName() string { return "user_project_link" }

// Favorite 收藏 — 对应 favorites
type Favorite struct {
	UserID    int64     `gorm:"primaryKey;autoIncrement:false"     json:"user_id"`
	ProjectID int64     `gorm:"primaryKey;autoIncrement:false"     json:"project_id"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Favorite) TableName() string { return "favorites" }

// ViewProject 项目列表只读视图 — 对应 view_project
type ViewProject struct {
	ProjectID               int64           `json:"project_id"`
	ProjectName             string          `json:"project_name"`
	ProjectType             string          `json:"project_type"`
	ProjectStatus           string          `json:"project_status"`
	BranchID                *int            `json:"branch_id,omitempty"`
	BranchName              *string         `json:"branch_name,omitempty"`
	RequirementTypeID       *int            `json:"requirement_type_id,omitempty"`
	RequirementType         *string         `json:"requirement_type,omitempty"`
	MilestoneCount          int             `json:"milestone_count"`
	CompletedMilestoneCount int             `json:"completed_milestone_count"`
	ApprovedTotal           decimal.Decimal `json:"approved_total"`
	UpdatedAt               time.Time       `json:"updated_at"`
}

func (ViewProject) TableName() string { return "view_project" }
