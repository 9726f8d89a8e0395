package dto

// ── 编辑会话 DTO ──

// UpdateRowFieldRequest 以文本值修改工作集中某行的字段
type UpdateRowFieldRequest struct {
	Field string `json:"field" binding:"required,oneof=task_name projected_start projected_end actual_start actual_end predecessors"`
	Value string `json:"value" binding:"max=2000"`
}

// ClearDateRequest 清空某行的日期字段
type ClearDateRequest struct {
	Field string `json:"field" binding:"required,oneof=projected_start projected_end actual_start actual_end"`
}

// CloseSessionRequest 关闭会话；Save 为 true 时先保存
type CloseSessionRequest struct {
	Save bool `json:"save"`
}
