package model

// 用户角色
const (
	RoleAdmin      = "ADMIN"
	RoleIPTMember  = "IPT_MEMBER"
	RoleContractor = "CONTRACTOR"
	RoleViewer     = "VIEWER"
)

// User 用户表 — 对应 users
type User struct {
	UserID        int64  `gorm:"primaryKey;autoIncrement"         json:"user_id"`
	Name          string `gorm:"type:varchar(100);not null"       json:"name"`
	Email         string `gorm:"type:varchar(255);not null;unique" json:"email"`
	PasswordHash  string `gorm:"type:varchar(255);not null"       json:"-"`
	Role          string `gorm:"type:varchar(20);not null"        json:"role"`
	MilJobTitleID *int   `gorm:"column:mil_job_title_id"          json:"mil_job_title_id,omitempty"`
	BranchID      *int   `json:"branch_id,omitempty"`
	VersionedModel
}

// TableName 指定表名
func (User) TableName() string { return "users" }
