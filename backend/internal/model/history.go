package model

import (
	"time"

	"gorm.io/datatypes"
)

// 审计动作
const (
	ActionCreate = "CREATE"
	ActionUpdate = "UPDATE"
	ActionDelete = "DELETE"
)

// ProjectHistory 项目审计日志 — 对应 project_history（仅追加）
type ProjectHistory struct {
	HistoryID int64          `gorm:"primaryKey;autoIncrement"           json:"history_id"`
	ProjectID int64          `gorm:"not null"                           json:"project_id"`
	UserID    *int64         `json:"user_id,omitempty"`
	Entity    string         `gorm:"type:varchar(50);not null"          json:"entity"` // project | milestone | dependency | funding | contract | ipt
	Action    string         `gorm:"type:varchar(20);not null"          json:"action"`
	Changes   datatypes.JSON `gorm:"type:jsonb;not null"                json:"changes"`
	CreatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (ProjectHistory) TableName() string { return "project_history" }
