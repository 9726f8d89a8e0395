package model

import "time"

// Milestone 项目里程碑 — 对应 project_milestones
// 日期列均为 DATE；实际开始/结束为空表示尚未发生
type Milestone struct {
	MilestoneID    int64      `gorm:"primaryKey;autoIncrement"        json:"milestone_id"`
	ProjectID      int64      `gorm:"not null"                        json:"project_id"`
	TaskName       string     `gorm:"type:varchar(200);not null"      json:"task_name"`
	ProjectedStart time.Time  `gorm:"type:date;not null"              json:"projected_start"`
	ProjectedEnd   time.Time  `gorm:"type:date;not null"              json:"projected_end"`
	ActualStart    *time.Time `gorm:"type:date"                       json:"actual_start,omitempty"`
	ActualEnd      *time.Time `gorm:"type:date"                       json:"actual_end,omitempty"`
	CreatedAt      time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`

	// 只读：由查询按依赖表聚合填充，按前驱 ID 升序
	Predecessors Int64Array `gorm:"->;-:migration;column:predecessors" json:"predecessors"`
}

func (Milestone) TableName() string { return "project_milestones" }

// MilestoneDependency 里程碑依赖边 — 对应 project_milestone_dependency
// 四元组即自然主键，无独立 ID
type MilestoneDependency struct {
	PredecessorProjectID   int64     `gorm:"primaryKey;autoIncrement:false" json:"predecessor_project_id"`
	PredecessorMilestoneID int64     `gorm:"primaryKey;autoIncrement:false" json:"predecessor_milestone_id"`
	SuccessorProjectID     int64     `gorm:"primaryKey;autoIncrement:false" json:"successor_project_id"`
	SuccessorMilestoneID   int64     `gorm:"primaryKey;autoIncrement:false" json:"successor_milestone_id"`
	CreatedAt              time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (MilestoneDependency) TableName() string { return "project_milestone_dependency" }

// DependencyView 依赖展示行（前驱/后继视图），由依赖表 JOIN 里程碑与项目得到
type DependencyView struct {
	PredecessorProjectID   int64      `json:"predecessor_project_id"`
	PredecessorProjectName string     `json:"predecessor_project_name"`
	PredecessorMilestoneID int64      `json:"predecessor_milestone_id"`
	PredecessorTaskName    string     `json:"predecessor_task_name"`
	PredecessorEnd         time.Time  `json:"predecessor_end"`
	PredecessorActualEnd   *time.Time `json:"predecessor_actual_end,omitempty"`
	SuccessorProjectID     int64      `json:"successor_project_id"`
	SuccessorProjectName   string     `json:"successor_project_name"`
	SuccessorMilestoneID   int64      `json:"successor_milestone_id"`
	SuccessorTaskName      string     `json:"successor_task_name"`
	SuccessorStart         time.Time  `json:"successor_start"`
}
