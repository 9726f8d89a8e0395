package dto

import "encoding/json"

// HistoryResponse 审计日志行
type HistoryResponse struct {
	ID        int64           `json:"id"`
	ProjectID int64           `json:"project_id"`
	UserID    *int64          `json:"user_id,omitempty"`
	Entity    string          `json:"entity"`
	Action    string          `json:"action"`
	Changes   json.RawMessage `json:"changes"`
	CreatedAt string          `json:"created_at"`
}
