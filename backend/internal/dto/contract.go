package dto

import "github.com/shopspring/decimal"

// ── 合同模块 DTO ──

// CreateContractRequest 创建合同请求
type CreateContractRequest struct {
	ContractNumber string          `json:"contract_number" binding:"required,max=100"`
	ContractorID   *int            `json:"contractor_id"   binding:"omitempty,min=1"`
	ContractStatus string          `json:"contract_status" binding:"omitempty,oneof=PRE_AWARD AWARDED CLOSED"`
	AwardDate      *Date           `json:"award_date"`
	ContractValue  decimal.Decimal `json:"contract_value"`
}

// UpdateContractRequest 更新合同请求
type UpdateContractRequest struct {
	ContractNumber *string          `json:"contract_number" binding:"omitempty,max=100"`
	ContractorID   *int             `json:"contractor_id"   binding:"omitempty,min=1"`
	ContractStatus *string          `json:"contract_status" binding:"omitempty,oneof=PRE_AWARD AWARDED CLOSED"`
	AwardDate      *Date            `json:"award_date"`
	ContractValue  *decimal.Decimal `json:"contract_value"`
	Version        int              `json:"version"         binding:"required,min=1"`
}

// ContractResponse 合同响应
type ContractResponse struct {
	ID             int64           `json:"id"`
	ProjectID      int64           `json:"project_id"`
	ContractNumber string          `json:"contract_number"`
	ContractorID   *int            `json:"contractor_id,omitempty"`
	ContractStatus string          `json:"contract_status"`
	AwardDate      *Date           `json:"award_date"`
	ContractValue  decimal.Decimal `json:"contract_value"`
	Version        int             `json:"version"`
}
