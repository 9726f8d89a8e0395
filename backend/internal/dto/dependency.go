package dto

// ── 依赖模块 DTO ──

// DependencyEdge 依赖边四元组，唯一标识一条边
type DependencyEdge struct {
	PredecessorProjectID   int64 `json:"predecessor_project_id"   binding:"required,min=1"`
	PredecessorMilestoneID int64 `json:"predecessor_milestone_id" binding:"required,min=1"`
	SuccessorProjectID     int64 `json:"successor_project_id"     binding:"required,min=1"`
	SuccessorMilestoneID   int64 `json:"successor_milestone_id"   binding:"required,min=1,nefield=PredecessorMilestoneID"`
}

// ReplacePredecessorsRequest 整体替换某里程碑的前驱集合
// Predecessors 与 PredecessorText 二选一；文本形式按逗号拆分，非整数项被忽略
type ReplacePredecessorsRequest struct {
	Predecessors    []int64 `json:"predecessors"     binding:"omitempty,dive,min=1"`
	PredecessorText *string `json:"predecessor_text" binding:"omitempty,max=2000"`
}

// DependencyResponse 依赖展示行
type DependencyResponse struct {
	PredecessorProjectID   int64  `json:"predecessor_project_id"`
	PredecessorProjectName string `json:"predecessor_project_name"`
	PredecessorMilestoneID int64  `json:"predecessor_milestone_id"`
	PredecessorTaskName    string `json:"predecessor_task_name"`
	PredecessorEnd         Date   `json:"predecessor_end"`
	PredecessorActualEnd   *Date  `json:"predecessor_actual_end"`
	SuccessorProjectID     int64  `json:"successor_project_id"`
	SuccessorProjectName   string `json:"successor_project_name"`
	SuccessorMilestoneID   int64  `json:"successor_milestone_id"`
	SuccessorTaskName      string `json:"successor_task_name"`
	SuccessorStart         Date   `json:"successor_start"`
}
