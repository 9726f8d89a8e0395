package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ContractAward 合同 — 对应 contract_award
type ContractAward struct {
	ContractID     int64           `gorm:"primaryKey;autoIncrement"      json:"contract_id"`
	ProjectID      int64           `gorm:"not null"                      json:"project_id"`
	ContractNumber string          `gorm:"type:varchar(100);not null"    json:"contract_number"`
	ContractorID   *int            `json:"contractor_id,omitempty"`
	ContractStatus string          `gorm:"type:varchar(20);not null"     json:"contract_status"` // PRE_AWARD | AWARDED | CLOSED
	AwardDate      *time.Time      `gorm:"type:date"                     json:"award_date,omitempty"`
	ContractValue  decimal.Decimal `gorm:"type:numeric(14,2);not null"   json:"contract_value"`
	VersionedModel
}

func (ContractAward) TableName() string { return "contract_award" }
