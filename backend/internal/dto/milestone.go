package dto

import "time"

// ── 里程碑模块 DTO ──

// MilestoneFields 里程碑可编辑字段（Service 层入参）
// 实际日期为 nil 表示尚未发生，不使用任何占位日期
type MilestoneFields struct {
	TaskName       string
	ProjectedStart time.Time
	ProjectedEnd   time.Time
	ActualStart    *time.Time
	ActualEnd      *time.Time
}

// NewMilestoneRow 批量新建的一行，PlaceholderID 为编辑会话中的临时字母 ID
// PredecessorPlaceholders 引用同一批次中其他新行的临时 ID
type NewMilestoneRow struct {
	PlaceholderID           string
	Fields                  MilestoneFields
	Predecessors            []int64
	PredecessorPlaceholders []string
}

// PlaceholderMapping 临时 ID 与服务端 ID 的对应关系
type PlaceholderMapping struct {
	PlaceholderID string `json:"placeholder_id"`
	MilestoneID   int64  `json:"milestone_id"`
}

// UpdateMilestoneRequest 更新里程碑请求（整行覆盖）
type UpdateMilestoneRequest struct {
	TaskName       string `json:"task_name"       binding:"required,max=200"`
	ProjectedStart Date   `json:"projected_start" binding:"required"`
	ProjectedEnd   Date   `json:"projected_end"   binding:"required"`
	ActualStart    *Date  `json:"actual_start"`
	ActualEnd      *Date  `json:"actual_end"`
}

// Fields 转为 Service 层入参
func (r *UpdateMilestoneRequest) Fields() MilestoneFields {
	return MilestoneFields{
		TaskName:       r.TaskName,
		ProjectedStart: r.ProjectedStart.Time,
		ProjectedEnd:   r.ProjectedEnd.Time,
		ActualStart:    r.ActualStart.TimePtr(),
		ActualEnd:      r.ActualEnd.TimePtr(),
	}
}

// BulkCreateMilestoneRow 批量新建请求中的一行
type BulkCreateMilestoneRow struct {
	PlaceholderID           string   `json:"placeholder_id"           binding:"required,alpha,max=8"`
	TaskName                string   `json:"task_name"                binding:"max=200"`
	ProjectedStart          Date     `json:"projected_start"          binding:"required"`
	ProjectedEnd            Date     `json:"projected_end"            binding:"required"`
	ActualStart             *Date    `json:"actual_start"`
	ActualEnd               *Date    `json:"actual_end"`
	Predecessors            []int64  `json:"predecessors"             binding:"omitempty,dive,min=1"`
	PredecessorPlaceholders []string `json:"predecessor_placeholders" binding:"omitempty,dive,alpha,max=8"`
}

// BulkCreateMilestonesRequest 批量新建里程碑请求
type BulkCreateMilestonesRequest struct {
	Rows []BulkCreateMilestoneRow `json:"rows" binding:"required,min=1,max=500,dive"`
}

// ToRows 转为 Service 层入参
func (r *BulkCreateMilestonesRequest) ToRows() []NewMilestoneRow {
	rows := make([]NewMilestoneRow, 0, len(r.Rows))
	for _, row := range r.Rows {
		rows = append(rows, NewMilestoneRow{
			PlaceholderID: row.PlaceholderID,
			Fields: MilestoneFields{
				TaskName:       row.TaskName,
				ProjectedStart: row.ProjectedStart.Time,
				ProjectedEnd:   row.ProjectedEnd.Time,
				ActualStart:    row.ActualStart.TimePtr(),
				ActualEnd:      row.ActualEnd.TimePtr(),
			},
			Predecessors:            row.Predecessors,
			PredecessorPlaceholders: row.PredecessorPlaceholders,
		})
	}
	return rows
}

// MilestoneResponse 里程碑响应
// PredecessorLabel 仅供展示，唯一数据源是 Predecessors
type MilestoneResponse struct {
	ID               int64   `json:"id"`
	ProjectID        int64   `json:"project_id"`
	TaskName         string  `json:"task_name"`
	ProjectedStart   Date    `json:"projected_start"`
	ProjectedEnd     Date    `json:"projected_end"`
	ActualStart      *Date   `json:"actual_start"`
	ActualEnd        *Date   `json:"actual_end"`
	Predecessors     []int64 `json:"predecessors"`
	PredecessorLabel string  `json:"predecessor_label"`
}
